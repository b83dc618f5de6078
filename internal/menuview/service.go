// Package menuview はレストランの当日メニューを取得・正規化し、ユーザー設定を適用した表示データを組み立てる。
package menuview

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/menuman/internal/menu"
	"github.com/hitoshi/menuman/internal/metrics"
	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/pipeline"
	"github.com/hitoshi/menuman/internal/upstream"
)

// StatusUnavailable は上流からメニューを取得できなかった状態。
// pipeline.StatusNoMenu（上流にコースがない）とは区別する。
const StatusUnavailable = "unavailable"

// RestaurantFinder はレストラン定義の検索を表す。
type RestaurantFinder interface {
	Find(id string) (model.Restaurant, bool)
}

// FeedFetcher は上流フィードの取得を表す。
type FeedFetcher interface {
	FetchRestaurant(ctx context.Context, r model.Restaurant) (*upstream.Response, error)
}

// View は当日メニューの表示データ。
type View struct {
	Restaurant  model.Restaurant `json:"restaurant"`
	DisplayDate string           `json:"display_date"`
	IsToday     bool             `json:"is_today"`
	Status      string           `json:"status"`
	Groups      []pipeline.Group `json:"groups"`
	TotalCount  int              `json:"total_count"`
	HiddenCount int              `json:"hidden_count"`
	// Stale は期限切れのキャッシュから組み立てたかを表す。
	Stale     bool      `json:"stale"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

// Service は当日メニューの表示データを組み立てる。
type Service struct {
	restaurants RestaurantFinder
	fetcher     FeedFetcher
	deps        pipeline.Deps
	loc         *time.Location
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。
// locはメニュー提供地のタイムゾーン。nilの場合はtime.Localを使う。
func NewService(
	restaurants RestaurantFinder,
	fetcher FeedFetcher,
	deps pipeline.Deps,
	loc *time.Location,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		restaurants: restaurants,
		fetcher:     fetcher,
		deps:        deps,
		loc:         loc,
		metrics:     mc,
		logger:      logger,
		now:         time.Now,
	}
}

// Today は指定レストランの当日メニューを返す。
// 未登録のレストランはRESTAURANT_NOT_FOUNDエラー、取得失敗はStatusUnavailableのViewを返す。
func (s *Service) Today(ctx context.Context, restaurantID string, lang model.Language) (*View, error) {
	r, ok := s.restaurants.Find(restaurantID)
	if !ok {
		return nil, model.NewRestaurantNotFoundError(restaurantID)
	}
	kind, ok := r.Provider.FeedKind()
	if !ok {
		return nil, model.NewUnknownProviderError(string(r.Provider))
	}

	resp, err := s.fetcher.FetchRestaurant(ctx, r)
	if err != nil {
		s.logger.Warn("メニューを取得できませんでした",
			slog.String("restaurant_id", r.ID),
			slog.String("provider", string(r.Provider)),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordMenuView(StatusUnavailable)
		return &View{Restaurant: r, Status: StatusUnavailable, Groups: []pipeline.Group{}}, nil
	}

	normalized := menu.Normalize(kind, resp.Body, menu.Options{
		Now:      s.now().In(s.loc),
		Language: lang,
	})
	result := pipeline.Run(ctx, normalized.Courses, r.ID, s.deps)

	s.metrics.RecordMenuView(string(result.Status))
	return &View{
		Restaurant:  r,
		DisplayDate: normalized.DisplayDate,
		IsToday:     normalized.IsToday,
		Status:      string(result.Status),
		Groups:      result.Groups,
		TotalCount:  result.TotalCount,
		HiddenCount: result.HiddenCount,
		Stale:       resp.Stale(),
		FetchedAt:   resp.FetchedAt,
	}, nil
}
