// Command bairro-server starts the neighborhood classifieds HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/bairro-board/internal/config"
	"github.com/and161185/bairro-board/internal/crypto"
	"github.com/and161185/bairro-board/internal/instagram"
	"github.com/and161185/bairro-board/internal/limiter"
	"github.com/and161185/bairro-board/internal/migrate"
	"github.com/and161185/bairro-board/internal/repository"
	"github.com/and161185/bairro-board/internal/repository/file"
	"github.com/and161185/bairro-board/internal/repository/postgres"
	"github.com/and161185/bairro-board/internal/repository/s3"
	httpserver "github.com/and161185/bairro-board/internal/server/http"
	"github.com/and161185/bairro-board/internal/service"
	"github.com/and161185/bairro-board/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, wires the selected backends and serves HTTP until
// SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.Stringer("config", cfg),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Document store
	var (
		backend repository.Backend
		lim     limiter.Limiter
	)
	policy := limiter.Policy{Window: cfg.LoginWindow, MaxFails: cfg.LoginMaxFails, BlockFor: cfg.LoginBlock}
	switch cfg.Store {
	case config.StorePostgres:
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			logger.Fatal("postgres.New", zap.Error(err))
		}
		defer db.Close()
		backend = postgres.NewDocumentRepo(db, cfg.DocumentID)
		lim = limiter.NewPG(db.Pool, policy)
	case config.StoreS3:
		client, err := s3.NewClient(ctx, s3.ClientOptions{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Fatal("s3 client", zap.Error(err))
		}
		backend = s3.New(client, cfg.S3Bucket, cfg.S3Key)
	default:
		backend = file.New(cfg.DataFile)
	}
	if lim == nil {
		mem := limiter.NewMemory(policy)
		go pruneLoop(ctx, mem, time.Minute)
		lim = mem
	}
	store := repository.NewStore(backend, logger)

	// Sessions
	var sessions session.Manager
	switch cfg.SessionStore {
	case config.SessionsRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL)
	default:
		mem := session.NewMemoryStore(cfg.SessionTTL)
		go mem.RunJanitor(ctx, time.Minute)
		sessions = mem
	}

	hasher, err := crypto.NewHasher(cfg.HashScheme, cfg.BcryptCost)
	if err != nil {
		logger.Fatal("hasher", zap.Error(err))
	}
	fetcher := instagram.NewFetcher(instagram.Options{
		BaseURL:  cfg.InstagramBaseURL,
		Timeout:  cfg.InstagramTimeout,
		CacheTTL: cfg.InstagramCacheTTL,
	}, logger)

	// Services
	accounts := service.NewAccountService(store, sessions, hasher, lim, logger)
	listings := service.NewListingService(store)
	profiles := service.NewProfileService(store, fetcher)

	created, err := accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminName)
	if err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	if created {
		logger.Info("admin account created", zap.String("username", cfg.AdminUsername))
	}
	if cfg.AdminPassword == config.DefaultAdminPassword {
		logger.Warn("admin password is the built-in default; set ADMIN_PASSWORD")
	}

	app := httpserver.New(accounts, listings, profiles, sessions, httpserver.Options{
		SessionTTL:     cfg.SessionTTL,
		CookieSecure:   cfg.CookieSecure,
		CookieDomain:   cfg.CookieDomain,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		StaticDir:      cfg.StaticDir,
	}, logger)
	router, err := app.Router()
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		// graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func pruneLoop(ctx context.Context, m *limiter.Memory, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Prune()
		}
	}
}
