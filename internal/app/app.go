package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/menuman/internal/config"
	"github.com/hitoshi/menuman/internal/database"
	"github.com/hitoshi/menuman/internal/handler"
	"github.com/hitoshi/menuman/internal/logger"
	"github.com/hitoshi/menuman/internal/metrics"
	"github.com/hitoshi/menuman/internal/middleware"
	"github.com/hitoshi/menuman/internal/notify"
	"github.com/hitoshi/menuman/internal/reminder"
	"github.com/hitoshi/menuman/internal/security"
	"github.com/hitoshi/menuman/internal/storage"
)

// stdout はmenuサブコマンドの出力先。
var stdout io.Writer = os.Stdout

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_backend", string(cfg.StorageBackend)),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMenu:
		return runMenu(cfg, stdout, args[1:])
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// 保存先を開き、全依存関係をワイヤリングし、リマインダーとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.Default()

	// 1. 保存先・設定・メニュー表示
	c, err := newComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	// 2. 通知の配信先
	hub := notify.NewHub(log, cfg.CORSAllowedOrigin)
	notifiers := notify.Multi{notify.NewLogNotifier(log), hub}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.NotifyWebhookURL, security.NewSSRFGuard()))
		slog.Info("webhook notifier enabled")
	}

	// 3. リマインダー
	permissions := reminder.NewPermissions(notifiers, log)
	scheduler := reminder.NewScheduler(c.prefs.Favorites, permissions, notifiers, c.collector, log, cfg.Location)
	c.prefs.Favorites.OnChange(scheduler.Refresh)
	permissions.OnChange(scheduler.Refresh)
	go scheduler.Start(ctx, cfg.ReminderInterval)

	// 4. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rateLimitPerSecond(cfg.RateLimitGeneral)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker:  c.backend.health,
		MetricsHandler: metrics.Handler(c.registry),

		Directory:       c.directory,
		Selector:        c.prefs.Selector,
		Menus:           c.menus,
		Session:         c.session,
		DefaultLanguage: cfg.DefaultLanguage,
		Upstream:        c.upstream,

		Blacklist: c.prefs.Blacklist,
		Favorites: c.prefs.Favorites,
		MealTypes: c.prefs.MealTypes,

		Permissions:        permissions,
		NotificationStream: hub,
	}

	router := handler.NewRouter(deps)

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	// リマインダーを先に止める
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate は設定データ用のスキーマのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	var migrationURL string
	switch cfg.StorageBackend {
	case storage.BackendPostgres:
		migrationURL = cfg.DatabaseURL
	case storage.BackendSQLite:
		migrationURL = database.SQLiteURL(cfg.SQLitePath)
	default:
		return fmt.Errorf("migrate requires sqlite or postgres storage backend, got %q", cfg.StorageBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(migrationURL)),
	)

	if err := database.RunMigrations(migrationURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// rateLimitPerSecond はreq/minをrate.Limit（req/sec）に変換する。
func rateLimitPerSecond(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
