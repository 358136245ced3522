package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// SessionContextKey is the echo context key holding the ports.ClientSession.
const SessionContextKey = "client_session"

const sessionOpenerKey = "client_session_opener"

// SessionOptions configures the client session cookie.
type SessionOptions struct {
	Cookie string
	Secure bool
}

// Session attaches the caller's client session to the context. A missing
// or unknown cookie yields an anonymous session and no new cookie; an
// unknown cookie is expired. Handlers that must own a session call
// OpenSession.
func Session(sessions ports.SessionResumer, opts SessionOptions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var id string
			if ck, err := c.Cookie(opts.Cookie); err == nil {
				id = ck.Value
			}

			cs, err := sessions.Resume(c.Request().Context(), id)
			switch {
			case errors.Is(err, domain.ErrNoSession):
				cs = sessions.Anonymous()
				if id != "" {
					c.SetCookie(sessionCookie(opts, "", -1))
				}
			case err != nil:
				return err
			}

			c.Set(SessionContextKey, cs)
			c.Set(sessionOpenerKey, &opener{sessions: sessions, opts: opts})
			return next(c)
		}
	}
}

type opener struct {
	sessions ports.SessionResumer
	opts     SessionOptions
}

// OpenSession returns the caller's session, first opening a registered one
// and setting its cookie when the caller is anonymous.
func OpenSession(c echo.Context) (ports.ClientSession, error) {
	cs, err := SessionFrom(c)
	if err != nil {
		return nil, err
	}
	if cs.ID() != "" {
		return cs, nil
	}

	o, ok := c.Get(sessionOpenerKey).(*opener)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "client session missing")
	}
	cs, err = o.sessions.Open(c.Request().Context())
	if err != nil {
		return nil, err
	}
	c.SetCookie(sessionCookie(o.opts, cs.ID(), 0))
	c.Set(SessionContextKey, cs)
	return cs, nil
}

// SessionFrom returns the client session set by Session.
func SessionFrom(c echo.Context) (ports.ClientSession, error) {
	cs, ok := c.Get(SessionContextKey).(ports.ClientSession)
	if !ok || cs == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "client session missing")
	}
	return cs, nil
}

func sessionCookie(opts SessionOptions, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     opts.Cookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
