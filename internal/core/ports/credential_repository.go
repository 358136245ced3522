package ports

import (
	"context"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

// CredentialRepository persists login records for the identity service.
type CredentialRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	FindByID(ctx context.Context, id string) (*domain.Credential, error)
	Create(ctx context.Context, cred *domain.Credential) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}
