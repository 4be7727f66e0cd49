package middleware

import (
	"net/http"
	"strings"

	"communication-service/internal/database"
	"communication-service/internal/models"
	"communication-service/internal/utils"

	"github.com/labstack/echo/v4"
)

// JWTAuth guards the management API. It expects a Bearer token, verifies
// it, decompresses the custom claim and loads the acting user into the
// request context. A token without a role in its custom claim is rejected.
func JWTAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		claims, err := utils.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		custom, _ := claims[utils.CustomClaimKey].(map[string]interface{})
		role, _ := custom["role"].(string)
		if role == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		userID, _ := claims["user_id"].(string)
		var user models.User
		if err := database.DB.First(&user, "id = ? AND is_active = true", userID).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set("user", &user)
		c.Set("user_id", userID)
		c.Set("role", role)
		return next(c)
	}
}

// RequireRole rejects authenticated requests whose token role doesn't
// match. Meant to be chained after JWTAuth.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if current, _ := c.Get("role").(string); current != role {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user set by JWTAuth, or nil.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get("user").(*models.User)
	return user
}
