package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"ClassRoutineTracker/internal/faculty"
)

// JWT authenticates the bearer token and stores its claims on the context
// for handlers and the RBAC middleware.
func JWT(issuer *faculty.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing Token"})
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			tokenString = strings.TrimSpace(tokenString)

			claims, err := issuer.Parse(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid Token"})
			}
			faculty.SetClaims(c, claims)
			return next(c)
		}
	}
}
