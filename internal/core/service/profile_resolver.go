package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// ProfileResolver fetches the profile row keyed by an identity id and
// classifies failures as ErrProfileNotFound or ErrBackendUnavailable.
type ProfileResolver struct {
	repo ports.ProfileRepository
	log  zerolog.Logger
}

var _ ports.ProfileResolver = (*ProfileResolver)(nil)

func NewProfileResolver(repo ports.ProfileRepository, log zerolog.Logger) *ProfileResolver {
	return &ProfileResolver{repo: repo, log: log.With().Str("component", "profile_resolver").Logger()}
}

// Resolve returns the profile of identity. A row whose role is outside the
// known set is reported as ErrBackendUnavailable.
func (r *ProfileResolver) Resolve(ctx context.Context, identity domain.Identity) (*domain.Profile, error) {
	profile, err := r.repo.FindByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			r.log.Warn().Str("identity_id", identity.ID).Msg("identity has no profile row")
			return nil, fmt.Errorf("resolve profile %s: %w", identity.ID, domain.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("resolve profile %s: %w: %w", identity.ID, domain.ErrBackendUnavailable, err)
	}

	if !profile.Role.IsValid() {
		return nil, fmt.Errorf("resolve profile %s: %w: %w", identity.ID, domain.ErrBackendUnavailable, domain.ErrUnknownRole)
	}
	if profile.Email == "" {
		profile.Email = identity.Email
	}
	return profile, nil
}
