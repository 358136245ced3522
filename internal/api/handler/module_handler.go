package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rlrepresentacoes/sigem/internal/api/middleware"
	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/guard"
	"github.com/rlrepresentacoes/sigem/internal/core/navigation"
)

const pendingStatus = "Pendente de aprovação"

// ModuleHandler serves the login page, the pending-approval page, and the
// module pages listed in the navigation catalog.
type ModuleHandler struct {
	catalog *navigation.Catalog
}

func NewModuleHandler(catalog *navigation.Catalog) *ModuleHandler {
	return &ModuleHandler{catalog: catalog}
}

type userSummary struct {
	ID              string      `json:"id"`
	DisplayName     string      `json:"display_name"`
	Initials        string      `json:"initials"`
	Email           string      `json:"email"`
	Role            domain.Role `json:"role"`
	ResponsibleName string      `json:"responsible_name"`
	Function        string      `json:"function"`
	PhotoURL        *string     `json:"photo_url,omitempty"`
}

func newUserSummary(p *domain.Profile) userSummary {
	return userSummary{
		ID:              p.ID,
		DisplayName:     p.DisplayName(),
		Initials:        p.Initials(),
		Email:           p.Email,
		Role:            p.Role,
		ResponsibleName: p.ResponsibleName,
		Function:        p.FunctionLabel(),
		PhotoURL:        p.PhotoURL,
	}
}

type loginPageResponse struct {
	Page   string `json:"page"`
	Status string `json:"status"`
}

type pendingResponse struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Function string `json:"function"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type navigationResponse struct {
	Module domain.Role       `json:"module"`
	Title  string            `json:"title"`
	Items  []navigation.Page `json:"items"`
}

type pageResponse struct {
	Module     domain.Role        `json:"module"`
	Title      string             `json:"title"`
	Page       navigation.Page    `json:"page"`
	User       userSummary        `json:"user"`
	Navigation navigationResponse `json:"navigation"`
}

// LoginPage is the public entry page. Signed-in sessions are sent to
// their landing page.
//
// @Summary      Login page
// @Tags         pages
// @Produce      json
// @Success      200  {object}  loginPageResponse
// @Success      302
// @Router       / [get]
func (h *ModuleHandler) LoginPage(c echo.Context) error {
	cs, err := middleware.SessionFrom(c)
	if err != nil {
		return err
	}

	state := cs.State()
	if landing := guard.Landing(state); landing != guard.PathLogin {
		return c.Redirect(http.StatusFound, landing)
	}
	return c.JSON(http.StatusOK, loginPageResponse{Page: "login", Status: state.Kind.String()})
}

// PendingApproval shows the account details of a session awaiting approval.
//
// @Summary      Pending approval page
// @Tags         pages
// @Produce      json
// @Success      200  {object}  pendingResponse
// @Success      302
// @Router       /pending-approval [get]
func (h *ModuleHandler) PendingApproval(c echo.Context) error {
	_, p, err := ctxProfile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pendingResponse{
		Name:     p.DisplayName(),
		Email:    p.Email,
		Function: p.FunctionLabel(),
		Status:   pendingStatus,
		Message:  domain.ErrAccountPending.Error(),
	})
}

// Me returns the signed-in user's summary.
//
// @Summary      Current user
// @Tags         pages
// @Produce      json
// @Success      200  {object}  userSummary
// @Success      302
// @Router       /me [get]
func (h *ModuleHandler) Me(c echo.Context) error {
	_, p, err := ctxProfile(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserSummary(p))
}

// Navigation returns the sidebar of the caller's module.
//
// @Summary      Sidebar
// @Tags         pages
// @Produce      json
// @Success      200  {object}  navigationResponse
// @Success      302
// @Router       /navigation [get]
func (h *ModuleHandler) Navigation(c echo.Context) error {
	_, p, err := ctxProfile(c)
	if err != nil {
		return err
	}
	nav, err := h.navigationFor(p.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, nav)
}

// Page renders a module page. It is mounted on every catalog path, behind
// the guard for the owning module.
//
// @Summary      Module page
// @Tags         pages
// @Produce      json
// @Param        path  path      string  true  "module page path"
// @Success      200   {object}  pageResponse
// @Success      302
// @Router       /{path} [get]
func (h *ModuleHandler) Page(c echo.Context) error {
	_, p, err := ctxProfile(c)
	if err != nil {
		return err
	}

	module, page, ok := h.catalog.Page(c.Path())
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	nav, err := h.navigationFor(module.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pageResponse{
		Module:     module.Role,
		Title:      module.Title,
		Page:       page,
		User:       newUserSummary(p),
		Navigation: nav,
	})
}

func (h *ModuleHandler) navigationFor(role domain.Role) (navigationResponse, error) {
	m, ok := h.catalog.Module(role)
	if !ok {
		return navigationResponse{}, domain.ErrUnknownRole
	}
	return navigationResponse{Module: m.Role, Title: m.Title, Items: m.Sidebar()}, nil
}
