package auth

import (
	"net/http"
	"strings"

	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userContextKey = "user"

	// TokenCookie carries the bearer token for browser clients.
	TokenCookie = "auth_token"
)

// Middleware resolves the current user from the Authorization header or the token cookie.
// Requests without credentials continue as anonymous; invalid credentials are rejected.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		userID, err := s.ValidateToken(token)
		if err == nil {
			var user *models.User
			user, err = s.UserByID(c.Request.Context(), userID)
			if err == nil {
				c.Set(userContextKey, user)
				c.Next()
				return
			}
		}

		s.logger.Warn("Rejected credentials",
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err))
		c.Header("Content-Type", "application/problem+json")
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			errors.ToProblemDetails(errors.Unauthorized.Explain("invalid or expired token"), c.Request.URL.Path))
	}
}

// RequireLogin rejects anonymous requests.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Header("Content-Type", "application/problem+json")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errors.ToProblemDetails(errors.Unauthorized.Explain("login required"), c.Request.URL.Path))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}
