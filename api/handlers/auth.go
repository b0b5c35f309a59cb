package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/Aidin1998/catalogue/api/responses"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
	Next     string `form:"next" json:"-"`
}

// defaultLanding is where a browser login lands without a next parameter.
const defaultLanding = "/data/collections"

// Login checks a username and password and hands out a bearer token,
// also stored in a cookie for browsers
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.fail(c, errors.Invalid.Explain("username and password are required").
			WithField("required", "username", "This field is required.").
			WithField("required", "password", "This field is required."))
		return
	}

	user, token, err := h.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.TokenCookie, token, h.cookies.TokenMaxAge, "/", "", h.cookies.Secure, true)

	if responses.WantsHTML(c) {
		responses.SeeOther(c, safeNext(req.Next))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": h.cookies.TokenMaxAge,
		"user":       user,
	})
}

// Logout drops the token cookie
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(auth.TokenCookie, "", -1, "/", "", h.cookies.Secure, true)
	if responses.WantsHTML(c) {
		responses.SeeOther(c, defaultLanding)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated user
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentUser(c))
}

// safeNext only follows local paths. Browsers read a backslash as a slash and drop
// tabs and newlines, so either could turn "/x" into a protocol-relative URL.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return defaultLanding
	}
	if strings.IndexFunc(next, unicode.IsControl) >= 0 {
		return defaultLanding
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return defaultLanding
	}
	return next
}
