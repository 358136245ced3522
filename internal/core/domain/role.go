package domain

import (
	"fmt"
	"strings"
)

// Role gates module access. Values match the URL segment of each module.
type Role string

const (
	RoleManagement Role = "gerencia"
	RoleSales      Role = "vendas"
	RoleReception  Role = "recepcao"
	RoleMonitoring Role = "monitorias"
	RoleHR         Role = "rh"

	// RolePending marks an account that is authenticated but not yet
	// authorized for any module.
	RolePending Role = "pendente"
)

var moduleRoles = []Role{RoleManagement, RoleSales, RoleReception, RoleMonitoring, RoleHR}

var moduleTitles = map[Role]string{
	RoleManagement: "Gerência",
	RoleSales:      "Vendas",
	RoleReception:  "Recepção",
	RoleMonitoring: "Monitorias",
	RoleHR:         "RH",
}

// ModuleRoles returns the roles that own a module, in sidebar order.
func ModuleRoles() []Role {
	out := make([]Role, len(moduleRoles))
	copy(out, moduleRoles)
	return out
}

// ParseRole converts a stored or requested role label into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// IsValid reports whether r is a module role or the pending sentinel.
func (r Role) IsValid() bool {
	return r == RolePending || r.IsModule()
}

// IsModule reports whether r grants access to a module.
func (r Role) IsModule() bool {
	_, ok := moduleTitles[r]
	return ok
}

// Path is the root of the module owned by r.
func (r Role) Path() string {
	return "/" + string(r)
}

// Title is the display name of the module owned by r.
func (r Role) Title() string {
	if t, ok := moduleTitles[r]; ok {
		return t
	}
	return "SIGEM"
}

func (r Role) String() string { return string(r) }
