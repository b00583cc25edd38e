package middleware

import (
	"errors"
	"net/http"
	"strings"

	"compliance-tracker/internal/models"
	"compliance-tracker/internal/policy"
	"compliance-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Where clients are sent after a 401 or 403
const (
	LoginRedirect     = "/api/auth/login"
	ForbiddenRedirect = "/api/dashboard"
)

func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			Unauthorized(c, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			Unauthorized(c, "Invalid authorization header format")
			return
		}

		token := parts[1]

		session, err := authService.GetSession(c.Request.Context(), token)
		switch {
		case errors.Is(err, services.ErrAccountDisabled):
			Unauthorized(c, "Your account has been deactivated")
			return
		case errors.Is(err, services.ErrPersistence):
			log.Error().Err(err).Msg("session lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		case err != nil:
			Unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set("user", &session.User)
		c.Set("user_id", session.UserID)
		c.Set("session", session)
		c.Set("token", token)

		c.Next()
	}
}

// RequireAction admits the request when the current user's role passes the
// entry gate for action.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			Unauthorized(c, "Unauthorized")
			return
		}

		if !policy.CanEnter(user.Role, action) {
			Forbidden(c, "You do not have permission to perform this action")
			return
		}

		c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware, or nil
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentToken returns the bearer token of the current session
func CurrentToken(c *gin.Context) string {
	return c.GetString("token")
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "redirect": LoginRedirect})
}

func Forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg, "redirect": ForbiddenRedirect})
}
