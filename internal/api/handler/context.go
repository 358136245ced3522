package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rlrepresentacoes/sigem/internal/api/middleware"
	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// bindAndValidate decodes the body into req and runs the echo validator.
// Failures come back as 400s.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// ctxProfile returns the session and its resolved profile. Guarded routes
// always have one; reaching here without it means the guard was skipped.
func ctxProfile(c echo.Context) (ports.ClientSession, *domain.Profile, error) {
	cs, err := middleware.SessionFrom(c)
	if err != nil {
		return nil, nil, err
	}
	profile := cs.State().Profile()
	if profile == nil {
		return nil, nil, domain.ErrNoSession
	}
	return cs, profile, nil
}
