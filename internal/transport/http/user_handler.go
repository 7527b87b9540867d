package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/njprem/ems_auth_backend/internal/domain"
	"github.com/njprem/ems_auth_backend/internal/service"
	"github.com/njprem/ems_auth_backend/internal/util"
)

type UserHandler struct {
	auth *service.AuthService
}

func RegisterUsers(e *echo.Echo, auth *service.AuthService) {
	h := &UserHandler{auth: auth}

	g := e.Group("/users", RequireAuth(auth))
	g.GET("/me", h.me)
	g.PATCH("/:id/toggle-status", h.toggleStatus, RequireRoles(domain.RoleAdmin))
}

func (h *UserHandler) me(c echo.Context) error {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	return c.JSON(http.StatusOK, PrincipalResponse{
		AccountID:  principal.AccountID,
		Identifier: principal.Username,
		RoleName:   principal.Role.String(),
		ExpiresAt:  principal.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *UserHandler) toggleStatus(c echo.Context) error {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || accountID <= 0 {
		return c.JSON(http.StatusBadRequest, util.Error("id must be a positive integer"))
	}

	account, err := h.auth.ToggleAccountStatus(c.Request().Context(), principal, accountID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			return c.JSON(http.StatusForbidden, util.Error("insufficient privileges"))
		case errors.Is(err, service.ErrAccountNotFound):
			return c.JSON(http.StatusNotFound, util.Error("account not found"))
		case errors.Is(err, service.ErrStoreUnavailable):
			return c.JSON(http.StatusServiceUnavailable, util.Error(msgUnavailable))
		default:
			log.Printf("toggle account %d failed: %v", accountID, err)
			return c.JSON(http.StatusInternalServerError, util.Error(msgInternal))
		}
	}
	return c.JSON(http.StatusOK, AccountStatusResponse{AccountID: account.ID, Enabled: account.Enabled})
}
