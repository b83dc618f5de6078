package app

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/menuman/internal/config"
	"github.com/hitoshi/menuman/internal/database"
	"github.com/hitoshi/menuman/internal/handler"
	"github.com/hitoshi/menuman/internal/menuview"
	"github.com/hitoshi/menuman/internal/metrics"
	"github.com/hitoshi/menuman/internal/pipeline"
	"github.com/hitoshi/menuman/internal/preference"
	"github.com/hitoshi/menuman/internal/restaurant"
	"github.com/hitoshi/menuman/internal/security"
	"github.com/hitoshi/menuman/internal/storage"
	"github.com/hitoshi/menuman/internal/upstream"
)

// upstreamCacheRetention はRedisキャッシュにフィードを保持する期間。
// 有効期限（UPSTREAM_CACHE_TTL）を過ぎても再検証と取得失敗時の代替に使う。
const upstreamCacheRetention = 7 * 24 * time.Hour

// backend は設定データの保存先と、その疎通確認・後始末をまとめる。
type backend struct {
	kv      storage.KV
	health  handler.HealthChecker
	redis   *redis.Client
	closers []io.Closer
}

// Close は開いた接続を逆順に閉じる。
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			slog.Warn("failed to close backend", slog.String("error", err.Error()))
		}
	}
}

// redisPinger はRedisクライアントをヘルスチェックに適合させる。
type redisPinger struct {
	client redis.Cmdable
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// openBackend は設定に従って保存先を開く。
// SQLiteはクライアントローカルの保存先のため、開いた時点でマイグレーションを適用する。
// PostgreSQLのスキーマはmigrateサブコマンドで適用しておくこと。
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	if cfg.UsesRedis() {
		client, err := storage.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.redis = client
		b.closers = append(b.closers, client)
		slog.Info("redis connection established")
	}

	var kv storage.KV
	switch cfg.StorageBackend {
	case storage.BackendMemory:
		kv = storage.NewMemoryStore()

	case storage.BackendFile:
		fs, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			b.Close()
			return nil, err
		}
		kv = fs

	case storage.BackendSQLite:
		db, err := database.OpenSQLite(database.SQLiteConfig{Path: cfg.SQLitePath})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, db)
		if err := database.RunMigrations(database.SQLiteURL(cfg.SQLitePath)); err != nil {
			b.Close()
			return nil, err
		}
		kv = storage.NewSQLiteStore(db)
		b.health = db
		slog.Info("sqlite storage ready", slog.String("path", cfg.SQLitePath))

	case storage.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, db)
		if err := db.PingContext(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		kv = storage.NewPostgresStore(db)
		b.health = db
		slog.Info("database connection established")

	case storage.BackendRedis:
		kv = storage.NewRedisStore(b.redis)
		b.health = redisPinger{client: b.redis}

	default:
		b.Close()
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.StorageBackend)
	}

	b.kv = storage.WithPrefix(kv, cfg.StoragePrefix)
	return b, nil
}

// components はserveとmenuで共有する依存関係。
type components struct {
	backend   *backend
	registry  *prometheus.Registry
	collector *metrics.Collector
	directory *restaurant.Directory
	prefs     *preference.Preferences
	upstream  *upstream.Client
	menus     *menuview.Service
	session   *menuview.Session
}

// Close は保存先の接続を閉じる。
func (c *components) Close() {
	c.backend.Close()
}

// newComponents は保存先を開き、設定を復元し、メニュー表示までの依存関係を組み立てる。
func newComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	prefs := preference.New(b.kv, logger)
	prefs.Load(ctx)

	directory := restaurant.Default()

	client := upstream.NewClient(
		upstream.Options{
			SodexoBaseURL: cfg.SodexoBaseURL,
			JamixBaseURL:  cfg.JamixBaseURL,
			Timeout:       cfg.UpstreamTimeout,
			MaxBodySize:   cfg.UpstreamMaxSize,
			CacheTTL:      cfg.UpstreamCacheTTL,
			RatePerMinute: cfg.UpstreamRatePerMinute,
		},
		security.NewSSRFGuard(upstreamHosts(cfg)...),
		newUpstreamCache(cfg, b.redis),
		collector,
		logger,
	)

	menus := menuview.NewService(
		directory,
		client,
		pipeline.Deps{
			MealTypes: prefs.MealTypes,
			Blacklist: prefs.Blacklist,
			Favorites: prefs.Favorites,
		},
		cfg.Location,
		collector,
		logger,
	)

	return &components{
		backend:   b,
		registry:  registry,
		collector: collector,
		directory: directory,
		prefs:     prefs,
		upstream:  client,
		menus:     menus,
		session:   menuview.NewSession(menus, logger),
	}, nil
}

// newUpstreamCache はCACHE_BACKENDに従って上流フィードのキャッシュを返す。
func newUpstreamCache(cfg *config.Config, client *redis.Client) upstream.Cache {
	if cfg.CacheBackend == config.CacheBackendRedis && client != nil {
		return upstream.NewRedisCache(client, max(upstreamCacheRetention, cfg.UpstreamCacheTTL))
	}
	return upstream.NewMemoryCache()
}

// upstreamHosts は上流APIのホスト名を返す。上流クライアントはこのホストにのみ接続する。
func upstreamHosts(cfg *config.Config) []string {
	var hosts []string
	for _, raw := range []string{
		cmp.Or(cfg.SodexoBaseURL, upstream.DefaultSodexoBaseURL),
		cmp.Or(cfg.JamixBaseURL, upstream.DefaultJamixBaseURL),
	} {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			hosts = append(hosts, u.Hostname())
		}
	}
	return hosts
}
