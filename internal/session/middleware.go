package session

import (
	"net/http"

	"github.com/Aidin1998/catalogue/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionContextKey = "session_id"

// Middleware makes sure every request carries a session cookie holding a uuid.
func Middleware(cfg config.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cfg.CookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cfg.CookieName, id, int(cfg.MaxAge.Seconds()), "/", "", cfg.Secure, true)
		}
		c.Set(sessionContextKey, id)
		c.Next()
	}
}

// ID returns the session id set by Middleware.
func ID(c *gin.Context) string {
	return c.GetString(sessionContextKey)
}
