package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/coursebooking/course_backend/internal/models"
	"github.com/coursebooking/course_backend/internal/tokens"
)

const claimsKey = "claims"

type Middleware struct {
	Issuer *tokens.Issuer
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// ClaimsFrom returns the verified claims for the request, or nil for an
// anonymous caller.
func ClaimsFrom(c echo.Context) *tokens.Claims {
	if v, ok := c.Get(claimsKey).(*tokens.Claims); ok {
		return v
	}
	return nil
}

// Requires is the capability check gating role-bound operations. Missing
// claims or an empty role set mean no access, never an internal error.
func Requires(claims *tokens.Claims, role string) error {
	if claims == nil || !claims.HasRole(role) {
		return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("requires %s role", role))
	}
	return nil
}

func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}
		claims, err := m.Issuer.Verify(raw, tokens.TypeAccess)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
		c.Set(claimsKey, claims)
		return next(c)
	}
}

// OptionalAuth attaches claims when a valid access token is present and lets
// the request through anonymously otherwise.
func (m *Middleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if raw := bearerToken(c); raw != "" {
			if claims, err := m.Issuer.Verify(raw, tokens.TypeAccess); err == nil {
				c.Set(claimsKey, claims)
			}
		}
		return next(c)
	}
}

func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireAuth(func(c echo.Context) error {
		if err := Requires(ClaimsFrom(c), models.RoleAdmin); err != nil {
			return err
		}
		return next(c)
	})
}
