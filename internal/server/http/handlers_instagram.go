package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/instagram"
)

func refreshParam(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("refresh"))
	return v
}

func (s *Server) instagramProfile(c *gin.Context) {
	p, err := s.profiles.Profile(c.Request.Context(), c.Param("username"), refreshParam(c))
	s.writeProfile(c, p, err)
}

func (s *Server) instagramAdProfile(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.profiles.AdProfile(c.Request.Context(), id, refreshParam(c))
	s.writeProfile(c, p, err)
}

// writeProfile answers 403 for private profiles, echoing the username.
func (s *Server) writeProfile(c *gin.Context, p instagram.Profile, err error) {
	if isKind(err, errs.ErrForbidden) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error(), "username": p.Username, "isPublic": false})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) clearInstagramCache(c *gin.Context) {
	sess, _ := sessionFrom(c)
	username := c.Query("username")
	if err := s.profiles.ClearCache(c.Request.Context(), sess.Role, username); err != nil {
		s.fail(c, err)
		return
	}
	msg := "Cache cleared"
	if username != "" {
		msg = "Cache cleared for " + username
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}
