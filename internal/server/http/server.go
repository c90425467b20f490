// Package httpserver exposes the classifieds HTTP/JSON API over gin.
package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/bairro-board/internal/service"
	"github.com/and161185/bairro-board/internal/session"
)

// Options configures transport-level behavior.
type Options struct {
	SessionTTL     time.Duration
	CookieSecure   bool
	CookieDomain   string
	AllowedOrigins []string
	TrustedProxies []string
	StaticDir      string
}

// Server wires services into HTTP handlers.
type Server struct {
	accounts service.AccountService
	listings service.ListingService
	profiles service.ProfileService
	sessions session.Manager
	cookies  *CookieHelper
	log      *zap.Logger
	opts     Options
}

// New constructs the HTTP server with injected services.
func New(accounts service.AccountService, listings service.ListingService, profiles service.ProfileService, sessions session.Manager, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	return &Server{
		accounts: accounts,
		listings: listings,
		profiles: profiles,
		sessions: sessions,
		cookies:  NewCookieHelper(CookieConfig{Domain: opts.CookieDomain, Secure: opts.CookieSecure, MaxAge: opts.SessionTTL}),
		log:      log,
		opts:     opts,
	}
}

// Router builds the gin engine with middleware and all routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(s.opts.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(
		RequestID(),
		Recover(s.log),
		Logging(s.log),
		CSRF(s.opts.AllowedOrigins),
	)

	r.GET("/health", s.health)

	auth := Authenticate(s.sessions, s.cookies, s.log)
	api := r.Group("/api")
	{
		api.POST("/login", s.login)
		api.POST("/logout", s.logout)
		api.GET("/auth/me", auth, s.me)

		api.GET("/ads", s.listAds)
		api.GET("/ads/category/:category", s.listAdsByCategory)
		api.GET("/ads/id/:id", s.getAd)
		api.GET("/ads/my", auth, s.myAds)
		api.POST("/ads", auth, s.createAd)
		api.PUT("/ads/:id", auth, s.updateAd)
		api.DELETE("/ads/:id", auth, s.deleteAd)

		api.GET("/instagram/profile/:username", s.instagramProfile)
		api.GET("/instagram/ad/:id", s.instagramAdProfile)
	}

	admin := api.Group("/admin", auth, RequireAdmin())
	{
		admin.GET("/collaborators", s.listCollaborators)
		admin.POST("/collaborators", s.createCollaborator)
		admin.PUT("/collaborators/:id", s.updateCollaborator)
		admin.DELETE("/collaborators/:id", s.deleteCollaborator)
		admin.GET("/ads", s.adminAds)
		admin.DELETE("/instagram/cache", s.clearInstagramCache)
	}

	r.NoRoute(s.noRoute())
	return r, nil
}

func (s *Server) noRoute() gin.HandlerFunc {
	var files http.Handler
	if s.opts.StaticDir != "" {
		files = http.FileServer(http.Dir(s.opts.StaticDir))
	}
	return func(c *gin.Context) {
		if files == nil || strings.HasPrefix(c.Request.URL.Path, "/api/") ||
			(c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			abortMsg(c, http.StatusNotFound, "Not found")
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
