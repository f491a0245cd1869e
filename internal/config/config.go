package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/park285/Cheese-Ladder-bot/internal/store"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	AllowedRooms []string

	// EgressMode is http, ws or auto.
	EgressMode string
	// DryRun logs replies instead of sending them.
	DryRun bool

	Store store.Options

	LeaderboardSize  int
	LeaderboardImage bool
	MessagesDir      string
}

// Headers returns the Iris auth headers that are set.
func (c *AppConfig) Headers() map[string]string {
	h := map[string]string{}
	if c.XUserID != "" {
		h["X-User-Id"] = c.XUserID
	}
	if c.XUserEmail != "" {
		h["X-User-Email"] = c.XUserEmail
	}
	if c.XSessionID != "" {
		h["X-Session-Id"] = c.XSessionID
	}
	return h
}

// Load reads .env when present, then the environment, for the bot process.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	st, err := loadStore()
	if err != nil {
		return nil, err
	}
	cfg := &AppConfig{
		IrisBaseURL:      getenv("IRIS_BASE_URL", ""),
		IrisWSURL:        getenv("IRIS_WS_URL", ""),
		BotPrefix:        getenv("BOT_PREFIX", ""),
		XUserID:          getenv("X_USER_ID", ""),
		XUserEmail:       getenv("X_USER_EMAIL", ""),
		XSessionID:       getenv("X_SESSION_ID", ""),
		AllowedRooms:     splitList(os.Getenv("ALLOWED_ROOMS")),
		EgressMode:       strings.ToLower(getenv("EGRESS_MODE", "http")),
		Store:            *st,
		LeaderboardSize:  10,
		LeaderboardImage: true,
		MessagesDir:      getenv("MESSAGES_DIR", ""),
	}

	if v := getenv("LEADERBOARD_SIZE", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid LEADERBOARD_SIZE %q", v)
		}
		cfg.LeaderboardSize = n
	}
	if v := getenv("LEADERBOARD_IMAGE", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LEADERBOARD_IMAGE %q", v)
		}
		cfg.LeaderboardImage = b
	}
	if v := getenv("EGRESS_DRYRUN", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EGRESS_DRYRUN %q", v)
		}
		cfg.DryRun = b
	}
	switch cfg.EgressMode {
	case "http", "ws", "auto":
	default:
		return nil, fmt.Errorf("invalid EGRESS_MODE %q", cfg.EgressMode)
	}

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	return cfg, nil
}

// LoadIris reads only the Iris endpoint and auth settings, unvalidated.
func LoadIris() *AppConfig {
	_ = godotenv.Load()
	return &AppConfig{
		IrisBaseURL: getenv("IRIS_BASE_URL", ""),
		IrisWSURL:   getenv("IRIS_WS_URL", ""),
		XUserID:     getenv("X_USER_ID", ""),
		XUserEmail:  getenv("X_USER_EMAIL", ""),
		XSessionID:  getenv("X_SESSION_ID", ""),
	}
}

// LoadStore reads only the persistence settings. The admin CLI needs nothing else.
func LoadStore() (*store.Options, error) {
	_ = godotenv.Load()
	return loadStore()
}

func loadStore() (*store.Options, error) {
	opts := &store.Options{
		Backend:     strings.ToLower(getenv("STORE_BACKEND", store.BackendFile)),
		FilePath:    getenv("STATE_FILE", "data/ladder.json"),
		RedisURL:    getenv("REDIS_URL", ""),
		RedisKey:    getenv("REDIS_STATE_KEY", store.DefaultRedisKey),
		DatabaseURL: getenv("DATABASE_URL", ""),
		SQLitePath:  getenv("SQLITE_PATH", "data/ladder.db"),
		S3Bucket:    getenv("S3_BUCKET", ""),
		S3Key:       getenv("S3_STATE_KEY", store.DefaultS3Key),
	}
	switch opts.Backend {
	case store.BackendMemory, store.BackendFile, store.BackendSQLite:
	case store.BackendRedis:
		if opts.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required when STORE_BACKEND=redis")
		}
	case store.BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case store.BackendS3:
		if opts.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when STORE_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", opts.Backend)
	}
	return opts, nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
