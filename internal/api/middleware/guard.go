package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rlrepresentacoes/sigem/internal/api/metrics"
	"github.com/rlrepresentacoes/sigem/internal/core/guard"
)

// Guard admits the request to route or redirects it with 302 Found to the
// page the route guard picks. It never answers with a forbidden status.
func Guard(route guard.Route) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cs, err := SessionFrom(c)
			if err != nil {
				return err
			}

			state := cs.State()
			d := guard.Decide(state, route)
			metrics.GuardDecisionsTotal.WithLabelValues(d.Action.String(), state.Kind.String()).Inc()

			if d.Action == guard.Redirect {
				return c.Redirect(http.StatusFound, d.Target)
			}
			return next(c)
		}
	}
}
