package domain

import "time"

// Identity is the authenticated principal issued by the auth backend.
type Identity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"-"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the identity's token is past its expiry at now.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Session pairs a live identity with its resolved profile.
type Session struct {
	Identity Identity `json:"identity"`
	Profile  Profile  `json:"profile"`
}

// Credential is the backend's stored login record for an identity.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
