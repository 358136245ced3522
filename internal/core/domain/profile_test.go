package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestResponsibleNameFor(t *testing.T) {
	assert.Equal(t, "DAVIDDAMASCENO", ResponsibleNameFor("David", "Damasceno"))
	assert.Equal(t, "ANAMARIASOUZA", ResponsibleNameFor(" Ana Maria", " Souza "))
	assert.Equal(t, "", ResponsibleNameFor("", ""))
}

func TestProfile_Initials(t *testing.T) {
	p := &Profile{Name: strPtr("david"), Surname: strPtr("damasceno")}
	assert.Equal(t, "DD", p.Initials())

	assert.Equal(t, "U", (&Profile{Name: strPtr("David")}).Initials())
	assert.Equal(t, "U", (&Profile{Surname: strPtr("Damasceno")}).Initials())
	assert.Equal(t, "U", (&Profile{Name: strPtr(" "), Surname: strPtr("X")}).Initials())
}

func TestProfile_DisplayName(t *testing.T) {
	p := &Profile{Name: strPtr("David"), Surname: strPtr("Damasceno"), Email: "d@x.com"}
	assert.Equal(t, "David Damasceno", p.DisplayName())
	assert.Equal(t, "d@x.com", (&Profile{Email: "d@x.com"}).DisplayName())
}

func TestProfile_FunctionLabel(t *testing.T) {
	assert.Equal(t, "Não especificada", (&Profile{}).FunctionLabel())
	assert.Equal(t, "Vendedor", (&Profile{Function: strPtr("Vendedor")}).FunctionLabel())
}

func TestNewPendingProfile(t *testing.T) {
	id := Identity{ID: "u-1", Email: "new@x.com"}
	p := NewPendingProfile(id, "Ana", "Souza", nil)

	assert.Equal(t, "u-1", p.ID)
	assert.Equal(t, RolePending, p.Role)
	assert.Equal(t, "ANASOUZA", p.ResponsibleName)
	assert.Equal(t, "new@x.com", p.Email)
	assert.True(t, p.IsPending())
	assert.Nil(t, p.Function)

	blank := NewPendingProfile(id, "", "", nil)
	assert.Nil(t, blank.Name)
	assert.Nil(t, blank.Surname)
}
