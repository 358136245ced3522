package ports

import (
	"context"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

// ProfileRepository is the profile table: a keyed read, the signup insert
// and the administrative role update.
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Profile, error)
	Insert(ctx context.Context, profile *domain.Profile) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
}

// ProfileResolver fetches the profile bound to an identity.
type ProfileResolver interface {
	Resolve(ctx context.Context, identity domain.Identity) (*domain.Profile, error)
}
