package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/api/middleware"
	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/navigation"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

type routerSession struct {
	id    string
	state domain.AuthState
}

func (s *routerSession) ID() string              { return s.id }
func (s *routerSession) State() domain.AuthState { return s.state }
func (s *routerSession) Login(context.Context, string, string) (domain.AuthState, error) {
	return s.state, nil
}
func (s *routerSession) Signup(context.Context, ports.SignupInput) (*ports.SignupResult, error) {
	return nil, domain.ErrUserExists
}
func (s *routerSession) Logout(context.Context) error                                 { return nil }
func (s *routerSession) ResetPassword(context.Context, string) error                  { return nil }
func (s *routerSession) UpdatePassword(context.Context, string, string, string) error { return nil }
func (s *routerSession) TakeNavigation() (string, bool)                               { return "", false }

// cookieStates resolves the cookie value to a fixed state. Opened sessions
// are named "fresh" and log in as sales.
type cookieStates map[string]domain.AuthState

func (m cookieStates) Resume(_ context.Context, id string) (ports.ClientSession, error) {
	state, ok := m[id]
	if !ok {
		return nil, domain.ErrNoSession
	}
	return &routerSession{id: id, state: state}, nil
}

func (m cookieStates) Open(context.Context) (ports.ClientSession, error) {
	return &routerSession{id: "fresh", state: profileState(domain.RoleSales)}, nil
}

func (m cookieStates) Anonymous() ports.ClientSession {
	return &routerSession{state: domain.LoggedOut()}
}

func profileState(role domain.Role) domain.AuthState {
	return domain.SessionState(domain.Session{
		Identity: domain.Identity{ID: "u-" + string(role)},
		Profile:  domain.Profile{ID: "u-" + string(role), Role: role, Email: string(role) + "@example.com"},
	})
}

// echoprometheus registers its collectors globally, so one router serves
// every test in the package.
var testRouter = sync.OnceValue(func() *echo.Echo {
	catalog, err := navigation.Default()
	if err != nil {
		panic(err)
	}
	return NewRouter(Deps{
		Sessions: cookieStates{
			"sales":   profileState(domain.RoleSales),
			"hr":      profileState(domain.RoleHR),
			"pending": profileState(domain.RolePending),
		},
		Catalog: catalog,
		Cookie:  middleware.SessionOptions{Cookie: "sigem_session"},
		Log:     zerolog.Nop(),
	})
})

func serve(method, path, cookie string) *httptest.ResponseRecorder {
	return serveBody(method, path, cookie, "")
}

func serveBody(method, path, cookie, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "sigem_session", Value: cookie})
	}
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, req)
	return rec
}

func TestRouter_GuardedRoutes(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		cookie   string
		wantCode int
		wantLoc  string
	}{
		{"anonymous to module", "/vendas", "", http.StatusFound, "/"},
		{"anonymous to shared page", "/me", "", http.StatusFound, "/"},
		{"sales to own page", "/vendas/clientes", "sales", http.StatusOK, ""},
		{"sales to hidden own page", "/vendas/analises", "sales", http.StatusOK, ""},
		{"sales to hr", "/rh/funcionarios", "sales", http.StatusFound, "/vendas"},
		{"hr to management", "/gerencia", "hr", http.StatusFound, "/rh"},
		{"hr to pending page", "/pending-approval", "hr", http.StatusFound, "/rh"},
		{"pending to module", "/vendas", "pending", http.StatusFound, "/pending-approval"},
		{"pending to navigation", "/navigation", "pending", http.StatusFound, "/pending-approval"},
		{"pending to pending page", "/pending-approval", "pending", http.StatusOK, ""},
		{"signed in to login page", "/", "hr", http.StatusFound, "/rh"},
		{"anonymous to login page", "/", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(http.MethodGet, tt.path, tt.cookie)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d (%s)", tt.wantCode, rec.Code, rec.Body.String())
			}
			if loc := rec.Header().Get(echo.HeaderLocation); loc != tt.wantLoc {
				t.Fatalf("expected Location %q, got %q", tt.wantLoc, loc)
			}
		})
	}
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "sigem_session" {
			return ck
		}
	}
	return nil
}

func TestRouter_AnonymousRequestsSetNoCookie(t *testing.T) {
	for _, path := range []string{"/auth/session", "/", "/vendas"} {
		rec := serve(http.MethodGet, path, "")
		if ck := sessionCookie(rec); ck != nil {
			t.Fatalf("%s: anonymous request got a session cookie %+v", path, ck)
		}
	}
	if rec := serve(http.MethodPost, "/auth/login", ""); sessionCookie(rec) != nil {
		t.Fatalf("a rejected login payload must not open a session")
	}
}

func TestRouter_UnknownCookieIsExpired(t *testing.T) {
	rec := serve(http.MethodGet, "/auth/session", "evicted")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ck := sessionCookie(rec)
	if ck == nil || ck.MaxAge >= 0 {
		t.Fatalf("expected the stale cookie to be expired, got %+v", ck)
	}
}

func TestRouter_LoginOpensSession(t *testing.T) {
	rec := serveBody(http.MethodPost, "/auth/login", "", `{"email":"vendas@example.com","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	ck := sessionCookie(rec)
	if ck == nil || ck.Value != "fresh" || !ck.HttpOnly {
		t.Fatalf("session cookie not set: %+v", ck)
	}
}

func TestRouter_ErrorsUseEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantMsg  string
	}{
		{"unknown route", http.MethodGet, "/nowhere", http.StatusNotFound, "not found"},
		{"empty login payload", http.MethodPost, "/auth/login", http.StatusBadRequest, "email is required; password is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.method, tt.path, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.Error != tt.wantMsg {
				t.Fatalf("expected %q, got %q", tt.wantMsg, resp.Error)
			}
		})
	}
}

func TestRouter_Liveness(t *testing.T) {
	if rec := serve(http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
