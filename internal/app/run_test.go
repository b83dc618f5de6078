package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/menuman/internal/config"
	"github.com/hitoshi/menuman/internal/model"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)
	t.Setenv("STORAGE_BACKEND", "redis")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("Run with missing REDIS_URL should return error")
	}
}

func TestRun_Healthcheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("failed to split test server address: %v", err)
	}
	t.Setenv("SERVER_PORT", port)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err != nil {
		t.Errorf("Run(healthcheck) error = %v", err)
	}
}

func TestRunHealthcheck_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, port, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	err := runHealthcheck(port)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("runHealthcheck error = %v, want status 503", err)
	}
}

func TestRunMigrate_SQLite(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "menuman.db"))

	cfg := loadTestConfig(t)
	// runMigrateはディレクトリを作らないため、先に保存先を開いて作成しておく
	b, err := openBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openBackend() error = %v", err)
	}
	b.Close()

	// 適用済みでも再実行できること
	if err := runMigrate(cfg); err != nil {
		t.Errorf("runMigrate() error = %v", err)
	}
}

func TestRunMigrate_UnsupportedBackend(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)

	cfg := loadTestConfig(t)
	if err := runMigrate(cfg); err == nil {
		t.Fatal("memory backend should not support migrate")
	}
}

func TestOpenBackend_FileStorePersists(t *testing.T) {
	setTestEnv(t)
	t.Setenv("STORAGE_BACKEND", "file")

	cfg := loadTestConfig(t)
	ctx := context.Background()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("openBackend() error = %v", err)
	}
	if err := b.kv.Set(ctx, "blacklist", []byte(`[]`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	b.Close()

	reopened, err := openBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("openBackend() error = %v", err)
	}
	defer reopened.Close()

	got, found, err := reopened.kv.Get(ctx, "blacklist")
	if err != nil || !found || string(got) != `[]` {
		t.Errorf("Get() = %q, %v, %v; want persisted value", got, found, err)
	}
	if reopened.health != nil {
		t.Error("fileバックエンドにはヘルスチェックを設定しない")
	}
}

func TestOpenBackend_SQLiteHealth(t *testing.T) {
	setTestEnv(t)
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "nested", "menuman.db"))

	cfg := loadTestConfig(t)
	ctx := context.Background()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("openBackend() error = %v", err)
	}
	defer b.Close()

	if b.health == nil {
		t.Fatal("sqliteバックエンドはヘルスチェックを持つこと")
	}
	if err := b.health.PingContext(ctx); err != nil {
		t.Errorf("PingContext() error = %v", err)
	}
	if err := b.kv.Set(ctx, "meal-types", []byte(`["Lunch"]`)); err != nil {
		t.Errorf("Set() error = %v", err)
	}
}

func TestUpstreamHosts(t *testing.T) {
	cfg := &config.Config{JamixBaseURL: "https://jamix.example.com/menu"}
	got := upstreamHosts(cfg)
	want := []string{"www.sodexo.fi", "jamix.example.com"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("upstreamHosts = %v, want %v", got, want)
	}
}

func TestRunMenu_UnknownRestaurant(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)

	var out bytes.Buffer
	err := runMenu(loadTestConfig(t), &out, []string{"no-such-restaurant"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRestaurantNotFound {
		t.Errorf("runMenu error = %v, want RESTAURANT_NOT_FOUND", err)
	}
}

func TestRunMenu_RequiresRestaurant(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)

	var out bytes.Buffer
	err := runMenu(loadTestConfig(t), &out, nil)
	if !errors.Is(err, errRestaurantRequired) {
		t.Errorf("runMenu error = %v, want errRestaurantRequired", err)
	}
}

func TestRunMenu_UpstreamUnavailable(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)

	var out bytes.Buffer
	if err := runMenu(loadTestConfig(t), &out, []string{"1045996"}); err != nil {
		t.Fatalf("runMenu error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Helsinki University Main Building (Helsinki)") {
		t.Errorf("output should start with the restaurant header:\n%s", got)
	}
	if !strings.Contains(got, "Menu is unavailable right now.") {
		t.Errorf("output should report unavailable menu:\n%s", got)
	}
}

func TestRunMenu_JSON(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)

	var out bytes.Buffer
	if err := runMenu(loadTestConfig(t), &out, []string{"-json", "-lang", "fi", "1045996"}); err != nil {
		t.Fatalf("runMenu error = %v", err)
	}
	if !strings.Contains(out.String(), `"status": "unavailable"`) {
		t.Errorf("JSON output should carry status:\n%s", out.String())
	}
}

func TestRunMenu_InvalidFlag(t *testing.T) {
	restoreDefaultLogger(t)
	setTestEnv(t)

	var out bytes.Buffer
	if err := runMenu(loadTestConfig(t), &out, []string{"-unknown"}); err == nil {
		t.Fatal("unknown flag should return error")
	}
}
