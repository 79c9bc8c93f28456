package utils

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	errUnauthorized = apperr.New(http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
	errForbidden    = apperr.New(http.StatusForbidden, "forbidden", errors.New("admin only"))
)

// AuthMiddleware verifies JWT and sets user context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			Abort(c, errUnauthorized)
			return
		}
		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			Abort(c, errUnauthorized)
			return
		}
		claims, err := VerifyToken(strings.TrimSpace(tokenParts[1]))
		if err != nil {
			Abort(c, errUnauthorized)
			return
		}
		c.Set("username", claims.Username)
		c.Set("user_id", claims.UserId)
		c.Next()
	}
}

// AdminMiddleware allows only the configured admin usernames through.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		for _, admin := range config.AppConfig.AdminUsers {
			if username != "" && strings.EqualFold(admin, username) {
				c.Next()
				return
			}
		}
		Abort(c, errForbidden)
	}
}
