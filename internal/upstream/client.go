// Package upstream は上流メニューAPIからフィードを取得する。
// レスポンスはキャッシュし、有効期限後は条件付きGETで再検証する。
// 取得に失敗した場合は期限切れのキャッシュを代わりに返す。
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/menuman/internal/metrics"
	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/security"
)

// 上流APIのデフォルトURL
const (
	DefaultSodexoBaseURL = "https://www.sodexo.fi/en/ruokalistat/output/weekly_json"
	DefaultJamixBaseURL  = "https://fi.jamix.cloud/apps/menuservice/rest/haku/menu"
)

// Options はClientの設定。
type Options struct {
	SodexoBaseURL string
	JamixBaseURL  string
	Timeout       time.Duration
	MaxBodySize   int64
	CacheTTL      time.Duration
	RatePerMinute int
}

// Response は上流から取得した生のフィード。
type Response struct {
	Body        []byte
	ContentType string
	FetchedAt   time.Time
	// Result は取得経路（metrics.FetchFresh など）。
	Result string
}

// Stale は期限切れのキャッシュを返したかを返す。
func (r *Response) Stale() bool {
	return r.Result == metrics.FetchStale
}

// Client は上流メニューAPIのクライアント。
type Client struct {
	opts    Options
	guard   security.SSRFGuardService
	http    *http.Client
	cache   Cache
	limiter *rate.Limiter
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient はClientを生成する。
// cacheがnilの場合はMemoryCache、mcがnilの場合はメトリクスを記録しない。
func NewClient(
	opts Options,
	guard security.SSRFGuardService,
	cache Cache,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Client {
	if opts.SodexoBaseURL == "" {
		opts.SodexoBaseURL = DefaultSodexoBaseURL
	}
	if opts.JamixBaseURL == "" {
		opts.JamixBaseURL = DefaultJamixBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 5 * 1024 * 1024
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}

	limit := rate.Inf
	burst := 1
	if opts.RatePerMinute > 0 {
		limit = rate.Limit(float64(opts.RatePerMinute) / 60.0)
		burst = max(1, opts.RatePerMinute/6)
	}

	return &Client{
		opts:    opts,
		guard:   guard,
		http:    guard.NewSafeClient(opts.Timeout),
		cache:   cache,
		limiter: rate.NewLimiter(limit, burst),
		metrics: mc,
		logger:  logger,
		now:     time.Now,
	}
}

// SodexoURL はSodexo週次フィードのURLを返す。
func (c *Client) SodexoURL(restaurantID string) string {
	return strings.TrimRight(c.opts.SodexoBaseURL, "/") + "/" + url.PathEscape(restaurantID)
}

// JamixURL はJAMIXフィードのURLを返す。
func (c *Client) JamixURL(customerID, kitchenID int) string {
	return fmt.Sprintf("%s/%d/%d?lang=en&type=json",
		strings.TrimRight(c.opts.JamixBaseURL, "/"), customerID, kitchenID)
}

// FetchSodexo はSodexoの週次フィードを取得する。
func (c *Client) FetchSodexo(ctx context.Context, restaurantID string) (*Response, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, model.NewInvalidRequestError("restaurant ID is required")
	}
	return c.fetch(ctx, string(model.ProviderSodexo), c.SodexoURL(restaurantID))
}

// FetchJamix はJAMIXのキッチンフィードを取得する。
func (c *Client) FetchJamix(ctx context.Context, customerID, kitchenID int) (*Response, error) {
	if customerID <= 0 || kitchenID <= 0 {
		return nil, model.NewInvalidRequestError("customer ID and kitchen ID are required")
	}
	return c.fetch(ctx, "jamix", c.JamixURL(customerID, kitchenID))
}

// FetchRestaurant はレストランのプロバイダに応じたフィードを取得する。
func (c *Client) FetchRestaurant(ctx context.Context, r model.Restaurant) (*Response, error) {
	kind, ok := r.Provider.FeedKind()
	if !ok {
		return nil, model.NewUnknownProviderError(string(r.Provider))
	}
	switch kind {
	case model.FeedFlatWeekly:
		return c.FetchSodexo(ctx, r.ID)
	default:
		return c.FetchJamix(ctx, r.CustomerID, r.KitchenID)
	}
}

// fetch はキャッシュを確認し、必要な場合のみ上流に問い合わせる。
func (c *Client) fetch(ctx context.Context, provider, rawURL string) (*Response, error) {
	now := c.now()

	entry, found, err := c.cache.Get(ctx, rawURL)
	if err != nil {
		c.logger.Warn("キャッシュの読み込みに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		found = false
	}

	if found && now.Sub(entry.FetchedAt) < c.opts.CacheTTL {
		c.metrics.RecordUpstreamFetch(provider, metrics.FetchCached)
		return entryResponse(entry, metrics.FetchCached), nil
	}
	if found && now.Before(entry.RetryAt) {
		c.metrics.RecordUpstreamFetch(provider, metrics.FetchStale)
		return entryResponse(entry, metrics.FetchStale), nil
	}

	if err := c.guard.ValidateURL(rawURL); err != nil {
		c.logger.Error("SSRF検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInvalidURLError(err.Error())
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx, provider, rawURL)
		}
		return c.fail(ctx, provider, rawURL, entry, fmt.Sprintf("rate limit wait: %s", err.Error()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "menuman/1.0")
	req.Header.Set("Accept", "application/json")
	if found {
		// 条件付きGET
		if entry.ETag != "" {
			req.Header.Set("If-None-Match", entry.ETag)
		}
		if entry.LastModified != "" {
			req.Header.Set("If-Modified-Since", entry.LastModified)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamLatency(provider, time.Since(start))
		if ctx.Err() != nil {
			return c.abort(ctx, provider, rawURL)
		}
		return c.fail(ctx, provider, rawURL, entry, fmt.Sprintf("request failed: %s", err.Error()))
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamStatus(provider, resp.StatusCode)

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultOK:
		// 以下で処理を続行
	case FetchResultNotModified:
		c.metrics.RecordUpstreamLatency(provider, time.Since(start))
		if !found {
			return c.fail(ctx, provider, rawURL, nil, "unexpected 304 without cached entry")
		}
		entry.FetchedAt = now
		entry.ConsecutiveErrors = 0
		entry.RetryAt = time.Time{}
		c.store(ctx, rawURL, entry)
		c.logger.Info("フィードは未変更です（304）",
			slog.String("provider", provider),
			slog.String("url", rawURL),
		)
		c.metrics.RecordUpstreamFetch(provider, metrics.FetchRevalidated)
		return entryResponse(entry, metrics.FetchRevalidated), nil
	default:
		c.metrics.RecordUpstreamLatency(provider, time.Since(start))
		return c.fail(ctx, provider, rawURL, entry, "upstream returned "+strconv.Itoa(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodySize+1))
	c.metrics.RecordUpstreamLatency(provider, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx, provider, rawURL)
		}
		return c.fail(ctx, provider, rawURL, entry, fmt.Sprintf("read body: %s", err.Error()))
	}
	if int64(len(body)) > c.opts.MaxBodySize {
		return c.fail(ctx, provider, rawURL, entry, "response body too large")
	}
	if !json.Valid(body) {
		return c.fail(ctx, provider, rawURL, entry, "response is not valid JSON")
	}

	fresh := &Entry{
		Body:         body,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    now,
	}
	c.store(ctx, rawURL, fresh)

	c.logger.Info("上流フィードを取得しました",
		slog.String("provider", provider),
		slog.String("url", rawURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	c.metrics.RecordUpstreamFetch(provider, metrics.FetchFresh)
	return entryResponse(fresh, metrics.FetchFresh), nil
}

// abort は呼び出し側のキャンセルで中断した取得を処理する。
// 上流の失敗ではないため、キャッシュのエントリとバックオフは変更しない。
func (c *Client) abort(ctx context.Context, provider, rawURL string) (*Response, error) {
	c.logger.Info("上流フィードの取得が中断されました",
		slog.String("provider", provider),
		slog.String("url", rawURL),
		slog.String("reason", ctx.Err().Error()),
	)
	return nil, ctx.Err()
}

// fail は取得失敗を処理する。キャッシュがあればバックオフを設定して期限切れのキャッシュを返す。
func (c *Client) fail(ctx context.Context, provider, rawURL string, entry *Entry, reason string) (*Response, error) {
	if entry == nil {
		c.logger.Error("上流フィードの取得に失敗しました",
			slog.String("provider", provider),
			slog.String("url", rawURL),
			slog.String("reason", reason),
		)
		c.metrics.RecordUpstreamFetch(provider, metrics.FetchFailed)
		return nil, model.NewUpstreamFailedError(reason)
	}

	entry.ConsecutiveErrors++
	entry.RetryAt = c.now().Add(CalculateBackoff(entry.ConsecutiveErrors - 1))
	c.store(ctx, rawURL, entry)

	c.logger.Warn("上流フィードの取得に失敗したため期限切れのキャッシュを返します",
		slog.String("provider", provider),
		slog.String("url", rawURL),
		slog.String("reason", reason),
		slog.Int("consecutive_errors", entry.ConsecutiveErrors),
		slog.Time("fetched_at", entry.FetchedAt),
	)
	c.metrics.RecordUpstreamFetch(provider, metrics.FetchStale)
	return entryResponse(entry, metrics.FetchStale), nil
}

func (c *Client) store(ctx context.Context, key string, e *Entry) {
	if err := c.cache.Set(ctx, key, e); err != nil {
		c.logger.Warn("キャッシュの保存に失敗しました",
			slog.String("url", key),
			slog.String("error", err.Error()),
		)
	}
}

func entryResponse(e *Entry, result string) *Response {
	return &Response{
		Body:        e.Body,
		ContentType: e.ContentType,
		FetchedAt:   e.FetchedAt,
		Result:      result,
	}
}
