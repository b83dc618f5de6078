package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newChainRouter(buf *bytes.Buffer, allowedOrigin string) (*chi.Mux, *RateLimiter) {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rl := NewRateLimiter(testRateLimiterConfig(2, 1))

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewCORSMiddleware(allowedOrigin))
	r.Route("/api", func(r chi.Router) {
		r.Use(rl.GeneralMiddleware())
		r.Get("/cities", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})
	return r, rl
}

// TestMiddlewareChain_HeadersOnEveryResponse はチェーン全体でヘッダーが付与されることを検証する。
func TestMiddlewareChain_HeadersOnEveryResponse(t *testing.T) {
	var buf bytes.Buffer
	r, rl := newChainRouter(&buf, "http://localhost:3000")
	defer rl.Stop()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cities", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options が付与されていない")
	}
	if !strings.Contains(resp.Header.Get("Content-Security-Policy"), "default-src 'none'") {
		t.Errorf("Content-Security-Policy = %q", resp.Header.Get("Content-Security-Policy"))
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("CORSヘッダーが付与されていない")
	}
	if !strings.Contains(buf.String(), `"msg":"http_request"`) {
		t.Errorf("リクエストログが出力されていない: %s", buf.String())
	}
}

// TestMiddlewareChain_PanicReturnsUnifiedError はpanicが統一フォーマットの500になることを検証する。
func TestMiddlewareChain_PanicReturnsUnifiedError(t *testing.T) {
	var buf bytes.Buffer
	r, rl := newChainRouter(&buf, "")
	defer rl.Stop()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("panicがログに記録されていない")
	}
}

// TestMiddlewareChain_RateLimitInsideLogging はレート制限の429がリクエストログに記録されることを検証する。
func TestMiddlewareChain_RateLimitInsideLogging(t *testing.T) {
	var buf bytes.Buffer
	r, rl := newChainRouter(&buf, "")
	defer rl.Stop()

	var last int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cities", nil))
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
	if !strings.Contains(buf.String(), `"status":429`) {
		t.Errorf("429がログに記録されていない: %s", buf.String())
	}
}
