package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/njprem/ems_auth_backend/internal/domain"
	"github.com/njprem/ems_auth_backend/internal/service"
	"github.com/njprem/ems_auth_backend/internal/util"
)

const contextPrincipalKey = "auth.principal"

// RequireAuth resolves the bearer token into a *service.Principal stored on
// the request context.
func RequireAuth(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.TrimSpace(authHeader) == "" {
				return c.JSON(http.StatusUnauthorized, util.Error("missing authorization header"))
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return c.JSON(http.StatusUnauthorized, util.Error("invalid authorization header"))
			}
			principal, err := auth.Authenticate(c.Request().Context(), parts[1])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, util.Error("invalid or expired session"))
			}
			c.Set(contextPrincipalKey, principal)
			return next(c)
		}
	}
}

// RequireRoles rejects principals whose role is not listed. It must run after RequireAuth.
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := CurrentPrincipal(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
			}
			if !service.Authorize(principal.Role, roles...) {
				return c.JSON(http.StatusForbidden, util.Error("insufficient privileges"))
			}
			return next(c)
		}
	}
}

func CurrentPrincipal(c echo.Context) (*service.Principal, bool) {
	principal, ok := c.Get(contextPrincipalKey).(*service.Principal)
	return principal, ok && principal != nil
}
