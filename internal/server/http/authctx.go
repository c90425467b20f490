package httpserver

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/and161185/bairro-board/internal/model"
)

type ctxKey string

const sessionKey ctxKey = "bb.session"

// WithSession stores the authenticated session in context.
func WithSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromCtx fetches the session from context.
func SessionFromCtx(ctx context.Context) (model.Session, bool) {
	v := ctx.Value(sessionKey)
	if v == nil {
		return model.Session{}, false
	}
	s, ok := v.(model.Session)
	return s, ok
}

func setSession(c *gin.Context, s model.Session) {
	c.Request = c.Request.WithContext(WithSession(c.Request.Context(), s))
}

func sessionFrom(c *gin.Context) (model.Session, bool) {
	return SessionFromCtx(c.Request.Context())
}
