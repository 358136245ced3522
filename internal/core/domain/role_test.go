package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range append(ModuleRoles(), RolePending) {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	got, err := ParseRole("  VENDAS ")
	require.NoError(t, err)
	assert.Equal(t, RoleSales, got)

	_, err = ParseRole("admin")
	assert.True(t, errors.Is(err, ErrUnknownRole))
}

func TestRole_IsModule(t *testing.T) {
	assert.True(t, RoleHR.IsModule())
	assert.False(t, RolePending.IsModule())
	assert.True(t, RolePending.IsValid())
	assert.False(t, Role("").IsValid())
}

func TestRole_PathAndTitle(t *testing.T) {
	assert.Equal(t, "/vendas", RoleSales.Path())
	assert.Equal(t, "Recepção", RoleReception.Title())
	assert.Equal(t, "SIGEM", RolePending.Title())
}

func TestModuleRoles_ReturnsCopy(t *testing.T) {
	roles := ModuleRoles()
	roles[0] = "x"
	assert.Equal(t, RoleManagement, ModuleRoles()[0])
}
