package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

const (
	tokenTypeAccess   = "access"
	tokenTypeRecovery = "recovery"

	defaultTokenTTL    = 24 * time.Hour
	defaultRecoveryTTL = time.Hour
)

// IdentityOptions configures token minting.
type IdentityOptions struct {
	JWTSecret   string
	TokenTTL    time.Duration
	RecoveryTTL time.Duration
}

type tokenClaims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	// IssuedNano orders tokens against revocation marks at sub-second
	// precision; the registered iat claim only carries seconds.
	IssuedNano int64 `json:"iat_ns"`
	jwt.RegisteredClaims
}

// IdentityService is the auth backend: password credentials, HS256 access
// and recovery tokens, global sign-out, and auth event publication.
type IdentityService struct {
	creds       ports.CredentialRepository
	revocations ports.TokenRevocations
	bus         ports.AuthEventBus
	mailer      ports.Mailer
	validate    *validator.Validate

	jwtSecret   []byte
	tokenTTL    time.Duration
	recoveryTTL time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

var _ ports.AuthBackend = (*IdentityService)(nil)

func NewIdentityService(
	creds ports.CredentialRepository,
	revocations ports.TokenRevocations,
	bus ports.AuthEventBus,
	mailer ports.Mailer,
	opts IdentityOptions,
	log zerolog.Logger,
) *IdentityService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.RecoveryTTL <= 0 {
		opts.RecoveryTTL = defaultRecoveryTTL
	}
	return &IdentityService{
		creds:       creds,
		revocations: revocations,
		bus:         bus,
		mailer:      mailer,
		validate:    validator.New(),
		jwtSecret:   []byte(opts.JWTSecret),
		tokenTTL:    opts.TokenTTL,
		recoveryTTL: opts.RecoveryTTL,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "identity").Logger(),
	}
}

// SignInWithPassword exchanges email and password for an access token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	cred, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign in: %w: %w", domain.ErrBackendUnavailable, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	identity, err := s.mint(cred, tokenTypeAccess, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventSignedIn, cred.ID)
	return identity, nil
}

// SignUp creates a credential and signs the new identity in.
func (s *IdentityService) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if len(password) < domain.MinPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cred := &domain.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("sign up: %w: %w", domain.ErrBackendUnavailable, err)
	}

	identity, err := s.mint(cred, tokenTypeAccess, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("identity_id", cred.ID).Msg("identity created")
	s.publish(ctx, domain.EventSignedIn, cred.ID)
	return identity, nil
}

// SignOut revokes every token issued to the token's identity so far.
func (s *IdentityService) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.parse(accessToken)
	if err != nil {
		return domain.ErrNoSession
	}
	if err := s.revocations.Revoke(ctx, claims.Subject, s.now()); err != nil {
		return fmt.Errorf("sign out: %w: %w", domain.ErrBackendUnavailable, err)
	}
	s.publish(ctx, domain.EventSignedOut, claims.Subject)
	return nil
}

// ResetPasswordForEmail mails a recovery link when the email is known. The
// result never reveals whether the account exists.
func (s *IdentityService) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.ErrInvalidEmail
	}

	cred, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Debug().Msg("recovery requested for unknown email")
			return nil
		}
		return fmt.Errorf("reset password: %w: %w", domain.ErrBackendUnavailable, err)
	}

	recovery, err := s.mint(cred, tokenTypeRecovery, s.recoveryTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.SendRecovery(ctx, cred.Email, recoveryLink(redirectTo, recovery.AccessToken)); err != nil {
		return fmt.Errorf("reset password: %w: %w", domain.ErrBackendUnavailable, err)
	}
	s.publish(ctx, domain.EventPasswordRecovery, cred.ID)
	return nil
}

// UpdateUser sets a new password for the identity behind an access or
// recovery token.
func (s *IdentityService) UpdateUser(ctx context.Context, accessToken, password string) error {
	if len(password) < domain.MinPasswordLength {
		return domain.ErrWeakPassword
	}
	identity, err := s.session(ctx, accessToken, tokenTypeAccess, tokenTypeRecovery)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.creds.UpdatePassword(ctx, identity.ID, string(hash)); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrNoSession
		}
		return fmt.Errorf("update user: %w: %w", domain.ErrBackendUnavailable, err)
	}
	s.publish(ctx, domain.EventUserUpdated, identity.ID)
	return nil
}

// GetSession validates an access token against signature, expiry and
// revocation. Recovery tokens are not sessions.
func (s *IdentityService) GetSession(ctx context.Context, accessToken string) (*domain.Identity, error) {
	return s.session(ctx, accessToken, tokenTypeAccess)
}

func (s *IdentityService) session(ctx context.Context, token string, types ...string) (*domain.Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, domain.ErrNoSession
	}
	if !slices.Contains(types, claims.Type) {
		return nil, domain.ErrNoSession
	}

	revokedAt, revoked, err := s.revocations.RevokedAt(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("get session: %w: %w", domain.ErrBackendUnavailable, err)
	}
	if revoked && claims.IssuedNano <= revokedAt.UnixNano() {
		return nil, domain.ErrNoSession
	}

	return claimsIdentity(claims, token), nil
}

// OnAuthStateChange subscribes handler to auth events of every instance.
func (s *IdentityService) OnAuthStateChange(handler ports.AuthEventHandler) func() {
	return s.bus.Subscribe(handler)
}

func (s *IdentityService) mint(cred *domain.Credential, typ string, ttl time.Duration) (*domain.Identity, error) {
	now := s.now()
	claims := tokenClaims{
		Email:      cred.Email,
		Type:       typ,
		IssuedNano: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cred.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return claimsIdentity(&claims, signed), nil
}

func (s *IdentityService) parse(token string) (*tokenClaims, error) {
	if token == "" {
		return nil, domain.ErrNoSession
	}
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, domain.ErrNoSession
	}
	return claims, nil
}

func (s *IdentityService) publish(ctx context.Context, typ domain.AuthEventType, identityID string) {
	ev := domain.AuthEvent{
		Type:       typ,
		IdentityID: identityID,
		Origin:     domain.OriginFrom(ctx),
		At:         s.now(),
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", string(typ)).Str("identity_id", identityID).Msg("failed to publish auth event")
	}
}

func claimsIdentity(c *tokenClaims, token string) *domain.Identity {
	identity := &domain.Identity{
		ID:          c.Subject,
		Email:       c.Email,
		AccessToken: token,
	}
	if c.IssuedAt != nil {
		identity.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		identity.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return identity
}

func recoveryLink(redirectTo, token string) string {
	fragment := url.Values{}
	fragment.Set("access_token", token)
	fragment.Set("type", tokenTypeRecovery)
	return redirectTo + "#" + fragment.Encode()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
