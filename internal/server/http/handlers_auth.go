package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errInvalidBody)
		return
	}
	sess, u, err := s.accounts.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.cookies.SetSession(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

// logout always succeeds, with or without a live session.
func (s *Server) logout(c *gin.Context) {
	if tok := s.cookies.Token(c); tok != "" {
		if err := s.accounts.Logout(c.Request.Context(), tok); err != nil {
			s.fail(c, err)
			return
		}
	}
	s.cookies.ClearSession(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) me(c *gin.Context) {
	sess, _ := sessionFrom(c)
	u, err := s.accounts.WhoAmI(c.Request.Context(), sess)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
