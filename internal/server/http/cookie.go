package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "session_token"

// CookieConfig controls attributes of the session cookie.
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge time.Duration
}

// CookieHelper manages the session cookie.
type CookieHelper struct {
	config CookieConfig
}

// NewCookieHelper creates a new cookie helper with the given configuration.
func NewCookieHelper(config CookieConfig) *CookieHelper {
	return &CookieHelper{config: config}
}

// SetSession writes the session cookie.
func (h *CookieHelper) SetSession(c *gin.Context, token string) {
	h.setCookie(c, token, int(h.config.MaxAge.Seconds()))
}

// ClearSession expires the session cookie.
func (h *CookieHelper) ClearSession(c *gin.Context) {
	h.setCookie(c, "", -1)
}

// Token returns the session token from the cookie or, failing that, from an
// "Authorization: Bearer" header.
func (h *CookieHelper) Token(c *gin.Context) string {
	if tok, err := c.Cookie(SessionCookie); err == nil && tok != "" {
		return tok
	}
	return bearerToken(c.GetHeader("Authorization"))
}

func (h *CookieHelper) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		SessionCookie,
		value,
		maxAge,
		"/",
		h.config.Domain,
		h.config.Secure,
		true,
	)
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
