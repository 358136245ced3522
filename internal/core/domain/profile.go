package domain

import (
	"strings"
	"unicode"
)

// Profile is the application-level record carrying the role and display
// attributes of an identity. Optional columns are pointers; nil means the
// value was never filled in.
type Profile struct {
	ID              string  `json:"id"`
	Name            *string `json:"name,omitempty"`
	Surname         *string `json:"surname,omitempty"`
	Role            Role    `json:"role"`
	ResponsibleName string  `json:"responsible_name"`
	Email           string  `json:"email"`
	PhotoURL        *string `json:"photo_url,omitempty"`
	JobTitle        *string `json:"job_title,omitempty"`
	// Function is a free-form descriptive title ("função"). It never
	// participates in access control.
	Function *string `json:"function,omitempty"`
}

// IsPending reports whether the profile still awaits approval.
func (p *Profile) IsPending() bool {
	return p.Role == RolePending
}

// DisplayName joins name and surname, falling back to the email.
func (p *Profile) DisplayName() string {
	full := strings.TrimSpace(deref(p.Name) + " " + deref(p.Surname))
	if full == "" {
		return p.Email
	}
	return full
}

// Initials returns the avatar initials, or "U" when name or surname is missing.
func (p *Profile) Initials() string {
	name, surname := strings.TrimSpace(deref(p.Name)), strings.TrimSpace(deref(p.Surname))
	if name == "" || surname == "" {
		return "U"
	}
	return strings.ToUpper(string(firstRune(name)) + string(firstRune(surname)))
}

// FunctionLabel returns the descriptive function or a placeholder.
func (p *Profile) FunctionLabel() string {
	if f := strings.TrimSpace(deref(p.Function)); f != "" {
		return f
	}
	return "Não especificada"
}

// ResponsibleNameFor derives the owner lookup key used by module views:
// the full name uppercased with whitespace removed.
func ResponsibleNameFor(name, surname string) string {
	var b strings.Builder
	for _, r := range name + surname {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// NewPendingProfile builds the row inserted at signup.
func NewPendingProfile(identity Identity, name, surname string, function *string) *Profile {
	p := &Profile{
		ID:              identity.ID,
		Role:            RolePending,
		ResponsibleName: ResponsibleNameFor(name, surname),
		Email:           identity.Email,
		Function:        function,
	}
	if n := strings.TrimSpace(name); n != "" {
		p.Name = &n
	}
	if s := strings.TrimSpace(surname); s != "" {
		p.Surname = &s
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
