package http

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/njprem/ems_auth_backend/internal/service"
	"github.com/njprem/ems_auth_backend/internal/util"
)

const (
	msgInvalidBody        = "invalid request body"
	msgUnavailable        = "service temporarily unavailable, please retry"
	msgInternal           = "something went wrong"
	msgTokenValid         = "Token is valid"
	msgTokenInvalid       = "Invalid reset token"
	msgTokenExpired       = "Reset token has expired"
	msgTokenUsed          = "Reset token has already been used"
	msgResetRejected      = "Invalid or expired reset token"
	msgResetIncomplete    = "Password reset could not be completed. Please request a new reset link."
	msgInvalidCredentials = "invalid credentials"
)

type AuthHandler struct {
	auth   *service.AuthService
	resets *service.PasswordResetService
}

func RegisterAuth(e *echo.Echo, auth *service.AuthService, resets *service.PasswordResetService) {
	h := &AuthHandler{auth: auth, resets: resets}

	g := e.Group("/auth")
	g.POST("/login", h.login)
	g.POST("/register", h.register)
	g.POST("/forgot-password", h.forgotPassword)
	g.GET("/validate-reset-token", h.validateResetToken)
	g.POST("/reset-password", h.resetPassword)
}

func (h *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(msgInvalidBody))
	}

	result, err := h.auth.Login(c.Request().Context(), req.Identifier, req.Secret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, util.Error(msgInvalidCredentials))
		case errors.Is(err, service.ErrStoreUnavailable):
			return c.JSON(http.StatusServiceUnavailable, util.Error(msgUnavailable))
		default:
			log.Printf("login failed: %v", err)
			return c.JSON(http.StatusInternalServerError, util.Error(msgInternal))
		}
	}
	return c.JSON(http.StatusOK, tokenResponse(result))
}

func (h *AuthHandler) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(msgInvalidBody))
	}

	result, err := h.auth.Register(c.Request().Context(), req.Identifier, req.Secret, req.EmployeeID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrPasswordTooWeak):
			return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
		case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrEmployeeAlreadyLinked):
			return c.JSON(http.StatusConflict, util.Error(err.Error()))
		case errors.Is(err, service.ErrEmployeeNotFound):
			return c.JSON(http.StatusNotFound, util.Error(err.Error()))
		case errors.Is(err, service.ErrStoreUnavailable):
			return c.JSON(http.StatusServiceUnavailable, util.Error(msgUnavailable))
		default:
			log.Printf("register failed: %v", err)
			return c.JSON(http.StatusInternalServerError, util.Error(msgInternal))
		}
	}
	return c.JSON(http.StatusCreated, tokenResponse(result))
}

// forgotPassword answers the same way whether or not the account exists.
func (h *AuthHandler) forgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Outcome(msgInvalidBody, false))
	}
	message := h.resets.ForgotPassword(c.Request().Context(), req.Identifier)
	return c.JSON(http.StatusOK, util.Outcome(message, true))
}

func (h *AuthHandler) validateResetToken(c echo.Context) error {
	err := h.resets.ValidateToken(c.Request().Context(), c.QueryParam("token"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, util.Validity(true, msgTokenValid))
	case errors.Is(err, service.ErrResetTokenInvalid):
		return c.JSON(http.StatusBadRequest, util.Validity(false, msgTokenInvalid))
	case errors.Is(err, service.ErrResetTokenExpired):
		return c.JSON(http.StatusBadRequest, util.Validity(false, msgTokenExpired))
	case errors.Is(err, service.ErrResetTokenUsed):
		return c.JSON(http.StatusBadRequest, util.Validity(false, msgTokenUsed))
	case errors.Is(err, service.ErrStoreUnavailable):
		return c.JSON(http.StatusServiceUnavailable, util.Validity(false, msgUnavailable))
	default:
		log.Printf("validate reset token failed: %v", err)
		return c.JSON(http.StatusInternalServerError, util.Validity(false, msgInternal))
	}
}

func (h *AuthHandler) resetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Outcome(msgInvalidBody, false))
	}

	err := h.resets.ResetPassword(c.Request().Context(), req.Token, req.NewSecret)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, util.Outcome(service.ResetSuccessMessage, true))
	case errors.Is(err, service.ErrResetTokenInvalid),
		errors.Is(err, service.ErrResetTokenExpired),
		errors.Is(err, service.ErrResetTokenUsed):
		return c.JSON(http.StatusBadRequest, util.Outcome(msgResetRejected, false))
	case errors.Is(err, service.ErrPasswordTooWeak):
		return c.JSON(http.StatusBadRequest, util.Outcome(err.Error(), false))
	case errors.Is(err, service.ErrResetIncomplete):
		return c.JSON(http.StatusInternalServerError, util.Outcome(msgResetIncomplete, false))
	case errors.Is(err, service.ErrStoreUnavailable):
		return c.JSON(http.StatusServiceUnavailable, util.Outcome(msgUnavailable, false))
	default:
		log.Printf("reset password failed: %v", err)
		return c.JSON(http.StatusInternalServerError, util.Outcome(msgInternal, false))
	}
}

func tokenResponse(result *service.LoginResult) AuthTokenResponse {
	return AuthTokenResponse{
		Token:      result.Token,
		ExpiresAt:  result.ExpiresAt.UTC().Format(time.RFC3339),
		AccountID:  result.Account.ID,
		Identifier: result.Account.Username,
		RoleName:   result.Role.String(),
	}
}
