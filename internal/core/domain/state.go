package domain

import (
	"encoding/json"
	"fmt"
)

// StateKind enumerates the auth state machine states.
type StateKind int

const (
	StateLoggedOut StateKind = iota
	StateResolving
	StatePending
	StateAuthenticated
)

var stateNames = map[StateKind]string{
	StateLoggedOut:     "logged_out",
	StateResolving:     "resolving",
	StatePending:       "pending",
	StateAuthenticated: "authenticated",
}

func (k StateKind) String() string {
	if s, ok := stateNames[k]; ok {
		return s
	}
	return fmt.Sprintf("state(%d)", int(k))
}

// AuthState is the value held by the auth state machine. IdentityID is set
// for every kind except LoggedOut; Session is set for Pending and
// Authenticated.
type AuthState struct {
	Kind       StateKind
	IdentityID string
	Session    *Session
}

// LoggedOut is the state with no identity.
func LoggedOut() AuthState {
	return AuthState{Kind: StateLoggedOut}
}

// Resolving is the state while the profile of identityID is being fetched.
func Resolving(identityID string) AuthState {
	return AuthState{Kind: StateResolving, IdentityID: identityID}
}

// SessionState maps a resolved session onto Pending or Authenticated.
func SessionState(s Session) AuthState {
	kind := StateAuthenticated
	if s.Profile.IsPending() {
		kind = StatePending
	}
	return AuthState{Kind: kind, IdentityID: s.Identity.ID, Session: &s}
}

// NextState computes the state that follows a profile resolution. Any
// failure, a missing profile, or a role outside the known set yields
// LoggedOut; the machine never lands on an authenticated state with an
// unknown role.
func NextState(identity *Identity, profile *Profile, err error) AuthState {
	if identity == nil || err != nil || profile == nil || !profile.Role.IsValid() {
		return LoggedOut()
	}
	return SessionState(Session{Identity: *identity, Profile: *profile})
}

// Role returns the module role of an Authenticated state, RolePending for
// Pending, and "" otherwise.
func (s AuthState) Role() Role {
	if s.Session == nil {
		return ""
	}
	switch s.Kind {
	case StatePending:
		return RolePending
	case StateAuthenticated:
		return s.Session.Profile.Role
	}
	return ""
}

// Profile returns the resolved profile, if any.
func (s AuthState) Profile() *Profile {
	if s.Session == nil {
		return nil
	}
	p := s.Session.Profile
	return &p
}

func (s AuthState) String() string {
	if s.Kind == StateAuthenticated {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Role())
	}
	return s.Kind.String()
}

type authStateJSON struct {
	Status string `json:"status"`
	Role   Role   `json:"role,omitempty"`
}

// MarshalJSON renders the state as {"status": ..., "role": ...}.
func (s AuthState) MarshalJSON() ([]byte, error) {
	out := authStateJSON{Status: s.Kind.String()}
	if s.Kind == StateAuthenticated {
		out.Role = s.Role()
	}
	return json.Marshal(out)
}
