package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/and161185/bairro-board/internal/model"
)

type collaboratorRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
}

func (s *Server) listCollaborators(c *gin.Context) {
	sess, _ := sessionFrom(c)
	users, err := s.accounts.ListCollaborators(c.Request.Context(), sess.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) createCollaborator(c *gin.Context) {
	var req collaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errInvalidBody)
		return
	}
	sess, _ := sessionFrom(c)
	u, err := s.accounts.CreateCollaborator(c.Request.Context(), sess.Role, model.NewCollaborator{
		Username: deref(req.Username),
		Password: deref(req.Password),
		Name:     deref(req.Name),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) updateCollaborator(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req collaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errInvalidBody)
		return
	}
	sess, _ := sessionFrom(c)
	u, err := s.accounts.UpdateCollaborator(c.Request.Context(), sess.Role, id, model.UserPatch{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) deleteCollaborator(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess, _ := sessionFrom(c)
	removed, err := s.accounts.DeleteCollaborator(c.Request.Context(), sess.Role, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Collaborator deleted successfully",
		"adsRemoved": removed,
	})
}

func (s *Server) adminAds(c *gin.Context) {
	sess, _ := sessionFrom(c)
	ads, err := s.accounts.ListAdsWithOwners(c.Request.Context(), sess.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ads)
}
