package httpserver

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/bairro-board/internal/authz"
	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/session"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "bb.request_id"

// RequestID assigns every request an id, reusing a short client-supplied one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			if u, err := uuid.NewV4(); err == nil {
				id = u.String()
			}
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Recover turns panics into 500 responses.
func Recover(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", requestID(c)),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": internalMessage})
			}
		}()
		c.Next()
	}
}

// Logging writes one access log line per request.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		// metadata only, never bodies
		log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", requestID(c)),
		)
	}
}

// CSRF rejects state-changing cookie-authenticated requests whose Origin (or
// Referer) is not in allowed. Requests without the session cookie (bearer
// clients, login) are not checked. An empty list disables the check.
func CSRF(allowed []string) gin.HandlerFunc {
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[normalizeOrigin(origin)] = true
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if len(allowedSet) == 0 || method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			c.Next()
			return
		}
		if tok, err := c.Cookie(SessionCookie); err != nil || tok == "" {
			c.Next()
			return
		}

		if origin := c.GetHeader("Origin"); origin != "" {
			if !allowedSet[normalizeOrigin(origin)] {
				abortMsg(c, http.StatusForbidden, "CSRF validation failed: invalid origin")
				return
			}
			c.Next()
			return
		}
		if referer := c.GetHeader("Referer"); referer != "" {
			if !allowedSet[normalizeOrigin(extractOrigin(referer))] {
				abortMsg(c, http.StatusForbidden, "CSRF validation failed: invalid referer")
				return
			}
			c.Next()
			return
		}
		abortMsg(c, http.StatusForbidden, "CSRF validation failed: missing origin")
	}
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
}

func extractOrigin(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// Authenticate resolves the session token and rejects the request without one.
func Authenticate(sessions session.Manager, cookies *CookieHelper, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := cookies.Token(c)
		if tok == "" {
			abortMsg(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		s, err := sessions.Resolve(c.Request.Context(), tok)
		if isKind(err, errs.ErrUnauthorized) {
			abortMsg(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if err != nil {
			log.Error("resolve session", zap.Error(err), zap.String("request_id", requestID(c)))
			abortMsg(c, http.StatusInternalServerError, internalMessage)
			return
		}
		setSession(c, s)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := sessionFrom(c)
		if !ok {
			abortMsg(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if err := authz.RequireAdmin(s.Role); err != nil {
			abortMsg(c, http.StatusForbidden, err.Error())
			return
		}
		c.Next()
	}
}
