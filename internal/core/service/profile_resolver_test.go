package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
)

func TestProfileResolver_Resolve(t *testing.T) {
	identity := domain.Identity{ID: "u-1", Email: "ana@example.com"}

	tests := []struct {
		name     string
		repo     *memProfiles
		wantRole domain.Role
		wantErr  error
	}{
		{
			name:     "module role",
			repo:     newMemProfiles(profileFor("u-1", "ana@example.com", domain.RoleSales)),
			wantRole: domain.RoleSales,
		},
		{
			name:     "pending",
			repo:     newMemProfiles(profileFor("u-1", "ana@example.com", domain.RolePending)),
			wantRole: domain.RolePending,
		},
		{
			name:    "missing row",
			repo:    newMemProfiles(),
			wantErr: domain.ErrProfileNotFound,
		},
		{
			name:    "unknown role",
			repo:    newMemProfiles(profileFor("u-1", "ana@example.com", "diretoria")),
			wantErr: domain.ErrBackendUnavailable,
		},
		{
			name:    "store down",
			repo:    &memProfiles{rows: map[string]domain.Profile{}, findErr: errors.New("timeout")},
			wantErr: domain.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewProfileResolver(tt.repo, zerolog.Nop())
			profile, err := r.Resolve(context.Background(), identity)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, profile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, profile.Role)
		})
	}
}

func TestProfileResolver_FillsMissingEmail(t *testing.T) {
	row := profileFor("u-1", "", domain.RoleHR)
	r := NewProfileResolver(newMemProfiles(row), zerolog.Nop())

	profile, err := r.Resolve(context.Background(), domain.Identity{ID: "u-1", Email: "rh@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "rh@example.com", profile.Email)
}
