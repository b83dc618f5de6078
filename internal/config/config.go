package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/storage"
)

// キャッシュバックエンドの種類
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Storage
	StorageBackend storage.Backend
	StoragePrefix  string
	DataDir        string
	SQLitePath     string
	DatabaseURL    string
	RedisURL       string

	// Upstream
	CacheBackend          string
	UpstreamTimeout       time.Duration
	UpstreamMaxSize       int64
	UpstreamCacheTTL      time.Duration
	UpstreamRatePerMinute int
	SodexoBaseURL         string
	JamixBaseURL          string

	// Menu
	MenuTimezone    string
	Location        *time.Location
	DefaultLanguage model.Language

	// Reminder
	ReminderInterval time.Duration
	NotifyWebhookURL string

	// Rate Limit（req/min）
	RateLimitGeneral int
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（既定は.env）が存在する場合は先に読み込むが、設定済みの環境変数は上書きしない。
// 選択したバックエンドに必要な環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}

	backend, err := storage.ParseBackend(getEnvString("STORAGE_BACKEND", string(storage.BackendSQLite)))
	if err != nil {
		return nil, err
	}
	cfg.StorageBackend = backend

	cfg.CacheBackend = getEnvString("CACHE_BACKEND", CacheBackendMemory)
	if cfg.CacheBackend != CacheBackendMemory && cfg.CacheBackend != CacheBackendRedis {
		return nil, fmt.Errorf("unknown cache backend: %q", cfg.CacheBackend)
	}

	// Conditionally required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StorageBackend == storage.BackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.UsesRedis() && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.MenuTimezone = getEnvString("MENU_TIMEZONE", "Europe/Helsinki")
	cfg.Location, err = time.LoadLocation(cfg.MenuTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid MENU_TIMEZONE %q: %w", cfg.MenuTimezone, err)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")
	cfg.StoragePrefix = getEnvString("STORAGE_PREFIX", "menuman:")
	cfg.DataDir = getEnvString("DATA_DIR", defaultDataDir())
	cfg.SQLitePath = getEnvString("SQLITE_PATH", filepath.Join(cfg.DataDir, "menuman.db"))
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.UpstreamMaxSize = getEnvInt64("UPSTREAM_MAX_SIZE", 5242880)
	cfg.UpstreamCacheTTL = getEnvDuration("UPSTREAM_CACHE_TTL", time.Hour)
	cfg.UpstreamRatePerMinute = getEnvInt("UPSTREAM_RATE_PER_MINUTE", 60)
	cfg.SodexoBaseURL = getEnvString("SODEXO_BASE_URL", "")
	cfg.JamixBaseURL = getEnvString("JAMIX_BASE_URL", "")
	cfg.DefaultLanguage = model.ParseLanguage(os.Getenv("DEFAULT_LANGUAGE"), model.LanguageEnglish)
	cfg.ReminderInterval = getEnvDuration("REMINDER_INTERVAL", time.Minute)
	cfg.NotifyWebhookURL = getEnvString("NOTIFY_WEBHOOK_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	return cfg, nil
}

// UsesRedis はストレージかキャッシュのいずれかがRedisを使うかを返す。
func (c *Config) UsesRedis() bool {
	return c.StorageBackend == storage.BackendRedis || c.CacheBackend == CacheBackendRedis
}

// loadEnvFile は.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// defaultDataDir は ~/.menuman を返す。ホームディレクトリが不明な場合はカレントディレクトリ配下を使う。
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".menuman")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
