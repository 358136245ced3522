package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountPending     = errors.New("account pending approval")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrLogoutFailed       = errors.New("logout failed")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrNoSession          = errors.New("no active session")
	ErrUnknownRole        = errors.New("unknown role")
)

// MinPasswordLength is the only password policy enforced.
const MinPasswordLength = 6
