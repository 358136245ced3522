package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rlrepresentacoes/sigem/internal/api/metrics"
	"github.com/rlrepresentacoes/sigem/internal/api/middleware"
	"github.com/rlrepresentacoes/sigem/internal/core/domain"
	"github.com/rlrepresentacoes/sigem/internal/core/guard"
	"github.com/rlrepresentacoes/sigem/internal/core/ports"
)

const resetPasswordMessage = "Se o email estiver cadastrado, você receberá um link para redefinir sua senha."

type AuthHandler struct {
	log zerolog.Logger
}

func NewAuthHandler(log zerolog.Logger) *AuthHandler {
	return &AuthHandler{log: log.With().Str("component", "auth_handler").Logger()}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupRequest struct {
	Email           string  `json:"email" validate:"required,email"`
	Password        string  `json:"password" validate:"required,min=6"`
	ConfirmPassword string  `json:"confirm_password" validate:"required,eqfield=Password"`
	Name            string  `json:"name" validate:"required,max=100"`
	Surname         string  `json:"surname" validate:"required,max=100"`
	Function        *string `json:"function,omitempty" validate:"omitempty,max=100"`
}

type resetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type updatePasswordRequest struct {
	// AccessToken is the recovery token from the reset link. Empty means
	// the current session changes its own password.
	AccessToken     string `json:"access_token,omitempty"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// sessionResponse describes the caller's auth state after an operation.
type sessionResponse struct {
	Status     string      `json:"status"`
	Role       domain.Role `json:"role,omitempty"`
	RedirectTo string      `json:"redirect_to,omitempty"`
	Message    string      `json:"message,omitempty"`
	Warning    string      `json:"warning,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newSessionResponse(state domain.AuthState, redirectTo string) sessionResponse {
	resp := sessionResponse{Status: state.Kind.String(), RedirectTo: redirectTo}
	switch state.Kind {
	case domain.StateAuthenticated:
		resp.Role = state.Role()
	case domain.StatePending:
		resp.Message = domain.ErrAccountPending.Error()
	}
	return resp
}

// navigationTarget takes the pending navigation of cs, falling back to the
// landing page of state.
func navigationTarget(cs ports.ClientSession, state domain.AuthState) string {
	if target, ok := cs.TakeNavigation(); ok {
		return target
	}
	return guard.Landing(state)
}

// Login signs the client session in and resolves its profile.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cs, err := middleware.OpenSession(c)
	if err != nil {
		return err
	}

	state, err := cs.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(loginOutcome(err)).Inc()
		return err
	}
	if state.Kind == domain.StateLoggedOut {
		// A sign-out or another login on this session overtook the
		// resolution; resolution failures come back as errors above.
		metrics.LoginsTotal.WithLabelValues("superseded").Inc()
		return domain.ErrNoSession
	}

	metrics.LoginsTotal.WithLabelValues(state.Kind.String()).Inc()
	return c.JSON(http.StatusOK, newSessionResponse(state, navigationTarget(cs, state)))
}

func loginOutcome(err error) string {
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return "invalid_credentials"
	}
	return "error"
}

// Signup creates an account awaiting approval.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cs, err := middleware.OpenSession(c)
	if err != nil {
		return err
	}

	res, err := cs.Signup(c.Request().Context(), ports.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Surname:  req.Surname,
		Function: req.Function,
	})
	if err != nil {
		return err
	}

	state := cs.State()
	resp := newSessionResponse(state, navigationTarget(cs, state))
	if res.ProfileErr != nil {
		metrics.SignupsTotal.WithLabelValues("failed").Inc()
		h.log.Error().Err(res.ProfileErr).Str("identity_id", res.Identity.ID).Msg("signup completed without profile")
		resp.Warning = "conta criada, mas o perfil não pôde ser registrado; contate o administrador"
	} else {
		metrics.SignupsTotal.WithLabelValues("inserted").Inc()
	}
	return c.JSON(http.StatusCreated, resp)
}

// Logout clears the client session. A backend failure still logs the
// client out and is reported as a warning.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200   {object}  sessionResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	cs, err := middleware.SessionFrom(c)
	if err != nil {
		return err
	}

	resp := sessionResponse{}
	if err := cs.Logout(c.Request().Context()); err != nil {
		if !errors.Is(err, domain.ErrLogoutFailed) {
			return err
		}
		metrics.LogoutsTotal.WithLabelValues("failed").Inc()
		resp.Warning = "sessão encerrada localmente; o servidor de autenticação não confirmou o logout"
	} else {
		metrics.LogoutsTotal.WithLabelValues("ok").Inc()
	}

	state := cs.State()
	resp.Status = state.Kind.String()
	resp.RedirectTo = navigationTarget(cs, state)
	return c.JSON(http.StatusOK, resp)
}

// ResetPassword sends a recovery link. The answer is the same whether or
// not the email is registered.
//
// @Summary      Request password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cs, err := middleware.SessionFrom(c)
	if err != nil {
		return err
	}

	if err := cs.ResetPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: resetPasswordMessage})
}

// UpdatePassword sets a new password from a recovery link or for the
// signed-in session.
//
// @Summary      Update password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      updatePasswordRequest  true  "New password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/update-password [post]
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	var req updatePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cs, err := middleware.SessionFrom(c)
	if err != nil {
		return err
	}

	if err := cs.UpdatePassword(c.Request().Context(), req.AccessToken, req.Password, req.ConfirmPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "senha atualizada"})
}

// Session reports the current auth state and any navigation triggered by
// events since the last call.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200   {object}  sessionResponse
// @Router       /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	cs, err := middleware.SessionFrom(c)
	if err != nil {
		return err
	}

	state := cs.State()
	target, _ := cs.TakeNavigation()
	return c.JSON(http.StatusOK, newSessionResponse(state, target))
}
