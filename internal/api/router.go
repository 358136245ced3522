package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/rlrepresentacoes/sigem/docs"
	"github.com/rlrepresentacoes/sigem/internal/api/handler"
	"github.com/rlrepresentacoes/sigem/internal/api/middleware"
	"github.com/rlrepresentacoes/sigem/internal/core/guard"
	"github.com/rlrepresentacoes/sigem/internal/core/navigation"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Sessions ports.SessionResumer
	Catalog  *navigation.Catalog
	Cookie   middleware.SessionOptions
	Health   []handler.Dependency
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("sigem"))

	// --- Public infrastructure routes ---
	health := handler.NewHealthHandler(d.Health...)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Client-session routes ---
	app := e.Group("", middleware.Session(d.Sessions, d.Cookie))

	auth := handler.NewAuthHandler(d.Log)
	app.POST("/auth/login", auth.Login)
	app.POST("/auth/signup", auth.Signup)
	app.POST("/auth/logout", auth.Logout)
	app.POST("/auth/reset-password", auth.ResetPassword)
	app.POST("/auth/update-password", auth.UpdatePassword)
	app.GET("/auth/session", auth.Session)

	pages := handler.NewModuleHandler(d.Catalog)
	app.GET(guard.PathLogin, pages.LoginPage)
	app.GET(guard.PathPending, pages.PendingApproval, middleware.Guard(guard.Route{Path: guard.PathPending}))
	app.GET("/me", pages.Me, middleware.Guard(guard.Route{Path: "/me"}))
	app.GET("/navigation", pages.Navigation, middleware.Guard(guard.Route{Path: "/navigation"}))

	for _, m := range d.Catalog.Modules() {
		for _, p := range m.Pages {
			app.GET(p.Path, pages.Page, middleware.Guard(guard.Route{Path: p.Path, Module: m.Role}))
		}
	}

	return e
}
