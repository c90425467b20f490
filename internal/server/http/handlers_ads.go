package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

// adRequest is shared by create and update; nil means the field was absent.
type adRequest struct {
	Category    *string `json:"category"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	WhatsApp    *string `json:"whatsapp"`
	Instagram   *string `json:"instagram"`
}

func (r adRequest) input() model.AdInput {
	return model.AdInput{
		Category:    deref(r.Category),
		Title:       deref(r.Title),
		Description: deref(r.Description),
		Image:       deref(r.Image),
		WhatsApp:    deref(r.WhatsApp),
		Instagram:   deref(r.Instagram),
	}
}

func (r adRequest) patch() model.AdPatch {
	return model.AdPatch{
		Category:    r.Category,
		Title:       r.Title,
		Description: r.Description,
		Image:       r.Image,
		WhatsApp:    r.WhatsApp,
		Instagram:   r.Instagram,
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.New(errs.ErrValidation, "Invalid id")
	}
	return id, nil
}

func (s *Server) listAds(c *gin.Context) {
	ads, err := s.listings.ListAll(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ads)
}

func (s *Server) listAdsByCategory(c *gin.Context) {
	ads, err := s.listings.ListByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ads)
}

func (s *Server) getAd(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	ad, err := s.listings.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *Server) myAds(c *gin.Context) {
	sess, _ := sessionFrom(c)
	ads, err := s.listings.ListByOwner(c.Request.Context(), sess.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ads)
}

func (s *Server) createAd(c *gin.Context) {
	var req adRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errInvalidBody)
		return
	}
	sess, _ := sessionFrom(c)
	ad, err := s.listings.Create(c.Request.Context(), sess.UserID, req.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ad)
}

func (s *Server) updateAd(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req adRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errInvalidBody)
		return
	}
	sess, _ := sessionFrom(c)
	ad, err := s.listings.Update(c.Request.Context(), id, sess.Actor(), req.patch())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *Server) deleteAd(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess, _ := sessionFrom(c)
	if err := s.listings.Delete(c.Request.Context(), id, sess.Actor()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Ad deleted successfully"})
}
