package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/and161185/bairro-board/internal/crypto"
	"github.com/and161185/bairro-board/internal/instagram"
	"github.com/and161185/bairro-board/internal/limiter"
	"github.com/and161185/bairro-board/internal/model"
	"github.com/and161185/bairro-board/internal/repository"
	"github.com/and161185/bairro-board/internal/repository/memory"
	"github.com/and161185/bairro-board/internal/service"
	"github.com/and161185/bairro-board/internal/session"
)

func init() { gin.SetMode(gin.TestMode) }

type harness struct {
	t        *testing.T
	router   *gin.Engine
	backend  *memory.Backend
	sessions *session.MemoryStore
	upstream *httptest.Server
}

type harnessOpts struct {
	server  Options
	limiter limiter.Limiter
}

// newHarness wires the real services over an in-memory document seeded
// with admin/admin123 (id 1) and a fake Instagram upstream.
func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)

	hasher, err := crypto.NewHasher(crypto.SchemeBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	backend := memory.New(nil)
	store := repository.NewStore(backend, log)
	sessions := session.NewMemoryStore(time.Hour)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/open/":
			_, _ = w.Write([]byte(`{"graphql":{"user":{"username":"open","full_name":"Open Shop","edge_followed_by":{"count":9}}}}`))
		case "/closed/":
			_, _ = w.Write([]byte(`{"graphql":{"user":{"username":"closed","is_private":true}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)
	fetcher := instagram.NewFetcher(instagram.Options{BaseURL: upstream.URL, Timeout: time.Second}, log)

	accounts := service.NewAccountService(store, sessions, hasher, o.limiter, log)
	listings := service.NewListingService(store)
	profiles := service.NewProfileService(store, fetcher)

	created, err := accounts.EnsureAdmin(t.Context(), "admin", "admin123", "Administrator")
	require.NoError(t, err)
	require.True(t, created)

	o.server.SessionTTL = time.Hour
	srv := New(accounts, listings, profiles, sessions, o.server, log)
	router, err := srv.Router()
	require.NoError(t, err)

	return &harness{t: t, router: router, backend: backend, sessions: sessions, upstream: upstream}
}

type reqOpt func(*http.Request)

func withCookie(c *http.Cookie) reqOpt { return func(r *http.Request) { r.AddCookie(c) } }

func withHeader(k, v string) reqOpt { return func(r *http.Request) { r.Header.Set(k, v) } }

func (h *harness) do(method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) login(username, password string) *http.Cookie {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/login", map[string]string{"username": username, "password": password})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	h.t.Fatalf("no session cookie in login response")
	return nil
}

// createCollaborator creates biz1/pw as admin and returns its id.
func (h *harness) createCollaborator(admin *http.Cookie, username string) int64 {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/admin/collaborators",
		map[string]string{"username": username, "password": "pw", "name": "Biz " + username}, withCookie(admin))
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var u model.PublicUser
	decode(h.t, rec, &u)
	return u.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}
