package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const appName = "together"

// Journal fallback backends
const (
	JournalFallbackFile   = "file"
	JournalFallbackBadger = "badger"
)

// Image backends
const (
	ImageBackendLocal = "local"
	ImageBackendS3    = "s3"
	ImageBackendRedis = "redis"
)

// Upload limits in bytes
const (
	DefaultMaxUploadBytes     int64 = 16 << 20
	ConstrainedMaxUploadBytes int64 = 4 << 20
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Auth
	Password     string        // plain password, hashed at startup
	PasswordHash string        // bcrypt hash, preferred over Password
	SecretKey    string        // signs the session cookie
	SessionTTL   time.Duration // login lifetime (default: 7 days)

	ProfileFile string // optional profile.yaml (names, start date, timezone)

	// Storage
	DataDir         string // root for the journal file, badger and images
	Constrained     bool   // small hosting profile: /tmp paths and 4 MiB uploads
	MaxUploadBytes  int64
	JournalFile     string // JSON file used when the journal falls back to "file"
	JournalFallback string // "file" | "badger"
	BadgerDir       string
	ImageBackend    string // "local" | "s3" | "redis"
	ImageDir        string // local image directory
	SweepInterval   time.Duration
	SweepMaxAge     time.Duration

	// Redis (optional, empty address = journal runs on the fallback only)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // startup retry budget
	RedisRetryInterval  time.Duration // first wait between startup attempts
	RedisMaxWait        time.Duration // cap on the wait between attempts
	RedisPingTimeout    time.Duration // bound on every liveness probe

	// S3-compatible object storage
	S3Bucket    string
	S3Endpoint  string // empty for AWS itself
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string
	S3PathStyle bool

	// Access restrictions
	AllowedHosts    []string      // optional, restrict access to specific Host headers
	AllowedCIDRS    []string      // optional, restrict /api/status to these networks
	TrustProxy      bool          // true => trust X-Forwarded-For headers
	LoginRateLimit  int           // login attempts per window and client
	LoginRateWindow time.Duration // window for LoginRateLimit
}

// Load reads the configuration from the environment, after applying the
// .env file if there is one. Misconfiguration panics.
func Load() *Config {
	loadDotEnv(getenv("TOGETHER_ENV_FILE", ".env"))

	// VERCEL=1 is set by that platform, whose functions only get /tmp.
	constrained := mustBool("TOGETHER_CONSTRAINED", os.Getenv("VERCEL") == "1")
	dataDir := getenv("TOGETHER_DATA_DIR", defaultDataDir(constrained))
	maxUpload := DefaultMaxUploadBytes
	if constrained {
		maxUpload = ConstrainedMaxUploadBytes
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TOGETHER_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TOGETHER_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("TOGETHER_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TOGETHER_PRETTY_LOG", false),

		// Auth
		Password:     os.Getenv("TOGETHER_PASSWORD"),
		PasswordHash: os.Getenv("TOGETHER_PASSWORD_HASH"),
		SecretKey:    requireEnv("TOGETHER_SECRET_KEY"),
		SessionTTL:   mustDuration("TOGETHER_SESSION_TTL", 7*24*time.Hour),

		ProfileFile: getenv("TOGETHER_PROFILE_FILE", ""),

		// Storage
		DataDir:         dataDir,
		Constrained:     constrained,
		MaxUploadBytes:  getenvInt64("TOGETHER_MAX_UPLOAD_BYTES", maxUpload),
		JournalFile:     getenv("TOGETHER_JOURNAL_FILE", filepath.Join(dataDir, "journal.json")),
		JournalFallback: oneOf("TOGETHER_JOURNAL_FALLBACK", JournalFallbackFile, JournalFallbackFile, JournalFallbackBadger),
		BadgerDir:       getenv("TOGETHER_BADGER_DIR", filepath.Join(dataDir, "badger")),
		ImageBackend:    oneOf("TOGETHER_IMAGE_BACKEND", ImageBackendLocal, ImageBackendLocal, ImageBackendS3, ImageBackendRedis),
		ImageDir:        getenv("TOGETHER_IMAGE_DIR", filepath.Join(dataDir, "images")),
		SweepInterval:   mustDuration("TOGETHER_SWEEP_INTERVAL", time.Hour),
		SweepMaxAge:     mustDuration("TOGETHER_SWEEP_MAX_AGE", time.Hour),

		// Redis settings
		RedisAddr:           getenv("TOGETHER_REDIS_ADDR", ""),
		RedisUser:           getenv("TOGETHER_REDIS_USERNAME", ""),
		RedisPassword:       getenv("TOGETHER_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("TOGETHER_REDIS_DB", 0),
		RedisDT:             mustDuration("TOGETHER_REDIS_DIAL_TIMEOUT", 2*time.Second),
		RedisRT:             mustDuration("TOGETHER_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("TOGETHER_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("TOGETHER_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("TOGETHER_REDIS_CONNECT_TIMEOUT", 10*time.Second),
		RedisRetryInterval:  mustDuration("TOGETHER_REDIS_RETRY_INTERVAL", time.Second),
		RedisMaxWait:        mustDuration("TOGETHER_REDIS_MAX_WAIT", 5*time.Second),
		RedisPingTimeout:    mustDuration("TOGETHER_REDIS_PING_TIMEOUT", 2*time.Second),

		// S3 settings
		S3Bucket:    getenv("TOGETHER_S3_BUCKET", ""),
		S3Endpoint:  getenv("TOGETHER_S3_ENDPOINT", ""),
		S3Region:    getenv("TOGETHER_S3_REGION", "us-east-1"),
		S3AccessKey: getenv("TOGETHER_S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("TOGETHER_S3_SECRET_KEY", ""),
		S3Prefix:    getenv("TOGETHER_S3_PREFIX", "images/"),
		S3PathStyle: mustBool("TOGETHER_S3_PATH_STYLE", false),

		// Access restrictions
		AllowedHosts:    splitAndTrim(getenv("TOGETHER_ALLOWED_HOSTS", "")),
		AllowedCIDRS:    splitAndTrim(getenv("TOGETHER_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("TOGETHER_TRUST_PROXY", false),
		LoginRateLimit:  getenvInt("TOGETHER_LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: mustDuration("TOGETHER_LOGIN_RATE_WINDOW", time.Minute),
	}

	cfg.validate()

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// validate checks presence only: the values themselves are parsed by the
// components that use them.
func (c *Config) validate() {
	if c.Password == "" && c.PasswordHash == "" {
		panic("❌ FATAL: one of TOGETHER_PASSWORD or TOGETHER_PASSWORD_HASH must be set")
	}
	switch c.ImageBackend {
	case ImageBackendS3:
		if c.S3Bucket == "" {
			panic("❌ FATAL: TOGETHER_S3_BUCKET is required when TOGETHER_IMAGE_BACKEND=s3")
		}
	case ImageBackendRedis:
		if c.RedisAddr == "" {
			panic("❌ FATAL: TOGETHER_REDIS_ADDR is required when TOGETHER_IMAGE_BACKEND=redis")
		}
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{&cp.Password, &cp.PasswordHash, &cp.SecretKey, &cp.RedisPassword, &cp.S3SecretKey} {
		if *s != "" {
			*s = "***REDACTED***"
		}
	}
	return cp
}

func defaultDataDir(constrained bool) string {
	if constrained {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(xdg.DataHome, appName)
}

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("❌ FATAL: cannot load %s: %v", path, err))
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(getenv(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: %s must be one of %s, got %q", key, strings.Join(allowed, ", "), v))
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
