package httpserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/bairro-board/internal/errs"
)

const internalMessage = "Internal server error"

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch errs.Kind(err) {
	case errs.ErrValidation, errs.ErrAlreadyExists:
		return http.StatusBadRequest
	case errs.ErrInvalidCredentials, errs.ErrUnauthorized:
		return http.StatusUnauthorized
	case errs.ErrForbidden:
		return http.StatusForbidden
	case errs.ErrNotFound:
		return http.StatusNotFound
	case errs.ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"error": msg} for err. Server-side failures are logged and
// answered with a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(code, gin.H{"error": internalMessage})
		return
	}
	if d, ok := errs.RetryAfter(err); ok && d > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func abortMsg(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

var errInvalidBody = errs.New(errs.ErrValidation, "Invalid request body")

func isKind(err, kind error) bool { return errors.Is(err, kind) }
