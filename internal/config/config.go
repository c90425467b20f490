// Package config loads server settings from flags, each defaulting from an
// environment variable.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Document store kinds.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

// Session store kinds.
const (
	SessionsMemory = "memory"
	SessionsRedis  = "redis"
)

// DefaultAdminPassword is the seed password the server warns about.
const DefaultAdminPassword = "admin123"

// Config holds all runtime settings.
type Config struct {
	Addr string
	Dev  bool

	Store      string
	DataFile   string
	DSN        string
	DocumentID string

	S3Bucket    string
	S3Key       string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	SessionStore  string
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	CookieSecure   bool
	CookieDomain   string
	AllowedOrigins []string
	TrustedProxies []string
	StaticDir      string

	AdminUsername string
	AdminPassword string
	AdminName     string

	HashScheme string
	BcryptCost int

	InstagramBaseURL  string
	InstagramCacheTTL time.Duration
	InstagramTimeout  time.Duration

	LoginMaxFails int
	LoginWindow   time.Duration
	LoginBlock    time.Duration
}

// Load parses args (without the program name). Flags override environment
// variables, which override built-in defaults.
func Load(args []string) (*Config, error) {
	env := &envReader{}
	c := &Config{}
	var origins, proxies string

	fs := flag.NewFlagSet("bairro-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.Addr, "addr", env.str("ADDR", ":3000"), "listen address")
	fs.BoolVar(&c.Dev, "dev", env.boolean("DEV", false), "development logging")

	fs.StringVar(&c.Store, "store", env.str("STORE", StoreFile), "document store: file|postgres|s3")
	fs.StringVar(&c.DataFile, "data-file", env.str("DATA_FILE", "data.json"), "document path for the file store")
	fs.StringVar(&c.DSN, "dsn", env.str("DATABASE_DSN", ""), "PostgreSQL DSN")
	fs.StringVar(&c.DocumentID, "document-id", env.str("DOCUMENT_ID", "main"), "document row id for the postgres store")

	fs.StringVar(&c.S3Bucket, "s3-bucket", env.str("S3_BUCKET", ""), "bucket for the s3 store")
	fs.StringVar(&c.S3Key, "s3-key", env.str("S3_KEY", "data.json"), "object key for the s3 store")
	fs.StringVar(&c.S3Region, "s3-region", env.str("S3_REGION", "us-east-1"), "S3 region")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", env.str("S3_ENDPOINT", ""), "custom S3 endpoint")
	fs.StringVar(&c.S3AccessKey, "s3-access-key", env.str("S3_ACCESS_KEY", ""), "S3 access key")
	fs.StringVar(&c.S3SecretKey, "s3-secret-key", env.str("S3_SECRET_KEY", ""), "S3 secret key")

	fs.StringVar(&c.SessionStore, "session-store", env.str("SESSION_STORE", SessionsMemory), "session store: memory|redis")
	fs.StringVar(&c.RedisAddr, "redis-addr", env.str("REDIS_ADDR", "localhost:6379"), "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", env.str("REDIS_PASSWORD", ""), "Redis password")
	fs.DurationVar(&c.SessionTTL, "session-ttl", env.duration("SESSION_TTL", 24*time.Hour), "absolute session lifetime")

	fs.BoolVar(&c.CookieSecure, "cookie-secure", env.boolean("COOKIE_SECURE", false), "mark the session cookie Secure")
	fs.StringVar(&c.CookieDomain, "cookie-domain", env.str("COOKIE_DOMAIN", ""), "session cookie domain")
	fs.StringVar(&origins, "allowed-origins", env.str("ALLOWED_ORIGINS", ""), "comma-separated origins allowed to mutate")
	fs.StringVar(&proxies, "trusted-proxies", env.str("TRUSTED_PROXIES", ""), "comma-separated trusted proxy CIDRs")
	fs.StringVar(&c.StaticDir, "static-dir", env.str("STATIC_DIR", ""), "directory served for non-API paths")

	fs.StringVar(&c.AdminUsername, "admin-username", env.str("ADMIN_USERNAME", "admin"), "seeded admin username")
	fs.StringVar(&c.AdminPassword, "admin-password", env.str("ADMIN_PASSWORD", DefaultAdminPassword), "seeded admin password")
	fs.StringVar(&c.AdminName, "admin-name", env.str("ADMIN_NAME", "Administrator"), "seeded admin display name")

	fs.StringVar(&c.HashScheme, "hash-scheme", env.str("HASH_SCHEME", "bcrypt"), "password hash scheme: bcrypt|argon2id")
	fs.IntVar(&c.BcryptCost, "bcrypt-cost", env.integer("BCRYPT_COST", 10), "bcrypt cost")

	fs.StringVar(&c.InstagramBaseURL, "instagram-base-url", env.str("INSTAGRAM_BASE_URL", "https://www.instagram.com"), "Instagram base URL")
	fs.DurationVar(&c.InstagramCacheTTL, "instagram-cache", env.duration("INSTAGRAM_CACHE_DURATION", time.Hour), "profile cache lifetime")
	fs.DurationVar(&c.InstagramTimeout, "instagram-timeout", env.duration("INSTAGRAM_TIMEOUT", 10*time.Second), "profile fetch timeout")

	fs.IntVar(&c.LoginMaxFails, "login-max-fails", env.integer("LOGIN_MAX_FAILS", 5), "failed logins before a block")
	fs.DurationVar(&c.LoginWindow, "login-window", env.duration("LOGIN_WINDOW", 15*time.Minute), "failure counting window")
	fs.DurationVar(&c.LoginBlock, "login-block", env.duration("LOGIN_BLOCK", 15*time.Minute), "block duration")

	if env.err != nil {
		return nil, env.err
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.AllowedOrigins = splitList(origins)
	c.TrustedProxies = splitList(proxies)

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var problems []error
	switch c.Store {
	case StoreFile:
		if c.DataFile == "" {
			problems = append(problems, errors.New("DATA_FILE is required for the file store"))
		}
	case StorePostgres:
		if c.DSN == "" {
			problems = append(problems, errors.New("DATABASE_DSN is required for the postgres store"))
		}
	case StoreS3:
		if c.S3Bucket == "" {
			problems = append(problems, errors.New("S3_BUCKET is required for the s3 store"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown STORE %q", c.Store))
	}
	switch c.SessionStore {
	case SessionsMemory:
	case SessionsRedis:
		if c.RedisAddr == "" {
			problems = append(problems, errors.New("REDIS_ADDR is required for the redis session store"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore))
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, errors.New("SESSION_TTL must be positive"))
	}
	if c.InstagramCacheTTL <= 0 || c.InstagramTimeout <= 0 {
		problems = append(problems, errors.New("instagram durations must be positive"))
	}
	if c.LoginMaxFails <= 0 || c.LoginWindow <= 0 || c.LoginBlock <= 0 {
		problems = append(problems, errors.New("login limiter settings must be positive"))
	}
	if c.AdminUsername == "" || c.AdminPassword == "" {
		problems = append(problems, errors.New("admin username and password are required"))
	}
	return errors.Join(problems...)
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Addr: %s, Store: %s, DataFile: %s, DSN: %s, S3Bucket: %s, S3SecretKey: %s, SessionStore: %s, RedisPassword: %s, SessionTTL: %s, AllowedOrigins: %v, AdminUsername: %s, AdminPassword: %s, HashScheme: %s}",
		c.Addr, c.Store, c.DataFile, mask(c.DSN), c.S3Bucket, mask(c.S3SecretKey),
		c.SessionStore, mask(c.RedisPassword), c.SessionTTL, c.AllowedOrigins,
		c.AdminUsername, mask(c.AdminPassword), c.HashScheme,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envReader reads typed defaults from the environment and keeps the first
// parse error.
type envReader struct{ err error }

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid integer for %s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid boolean for %s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	// bare integers are milliseconds
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid duration for %s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
