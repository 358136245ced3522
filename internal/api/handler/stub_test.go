package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rlrepresentacoes/sigem/internal/api/middleware"
	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

type stubSession struct {
	state      domain.AuthState
	navigateTo string

	loginFn          func(ctx context.Context, email, password string) (domain.AuthState, error)
	signupFn         func(ctx context.Context, in ports.SignupInput) (*ports.SignupResult, error)
	logoutFn         func(ctx context.Context) error
	resetPasswordFn  func(ctx context.Context, email string) error
	updatePasswordFn func(ctx context.Context, token, password, confirm string) error
}

func (s *stubSession) ID() string              { return "client-1" }
func (s *stubSession) State() domain.AuthState { return s.state }

func (s *stubSession) Login(ctx context.Context, email, password string) (domain.AuthState, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubSession) Signup(ctx context.Context, in ports.SignupInput) (*ports.SignupResult, error) {
	return s.signupFn(ctx, in)
}

func (s *stubSession) Logout(ctx context.Context) error {
	return s.logoutFn(ctx)
}

func (s *stubSession) ResetPassword(ctx context.Context, email string) error {
	return s.resetPasswordFn(ctx, email)
}

func (s *stubSession) UpdatePassword(ctx context.Context, token, password, confirm string) error {
	return s.updatePasswordFn(ctx, token, password, confirm)
}

func (s *stubSession) TakeNavigation() (string, bool) {
	target := s.navigateTo
	s.navigateTo = ""
	return target, target != ""
}

func newContext(method, path, body string, cs ports.ClientSession) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	if cs != nil {
		c.Set(middleware.SessionContextKey, cs)
	}
	return c, rec
}

func strPtr(s string) *string { return &s }

func stateFor(role domain.Role) domain.AuthState {
	return domain.SessionState(domain.Session{
		Identity: domain.Identity{ID: "u-1", Email: "ana@example.com"},
		Profile: domain.Profile{
			ID:              "u-1",
			Name:            strPtr("Ana"),
			Surname:         strPtr("Lima Souza"),
			Role:            role,
			ResponsibleName: "ANALIMASOUZA",
			Email:           "ana@example.com",
		},
	})
}
