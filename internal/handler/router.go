package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/menuman/internal/middleware"
	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/reminder"
)

// HealthChecker は永続化先の疎通確認を表す。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Permissions は通知の許可状態の管理を表す。reminder.Permissionsが満たす。
type Permissions interface {
	PermissionService
	NotificationPermission
}

var _ Permissions = (*reminder.Permissions)(nil)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ヘルスチェック（nilの場合は常にok）
	HealthChecker HealthChecker
	// メトリクス（nilの場合は/metricsを公開しない）
	MetricsHandler http.Handler

	// レストランとメニュー
	Directory       RestaurantDirectory
	Selector        SelectorService
	Menus           MenuService
	Session         SessionService
	DefaultLanguage model.Language
	Upstream        UpstreamFetcher

	// ユーザー設定
	Blacklist BlacklistService
	Favorites FavoriteService
	MealTypes MealTypeService

	// 通知
	Permissions Permissions
	// NotificationStream はWebSocketの通知配信（nilの場合は公開しない）
	NotificationStream http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	restaurantHandler := NewRestaurantHandler(deps.Directory, deps.Selector, deps.Menus, deps.Session, deps.DefaultLanguage)
	upstreamHandler := NewUpstreamHandler(deps.Upstream)
	prefHandler := NewPreferenceHandler(deps.Blacklist, deps.Favorites, deps.MealTypes, deps.Permissions)
	notificationHandler := NewNotificationHandler(deps.Permissions)

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// レストランとメニュー
		r.Get("/cities", restaurantHandler.ListCities)
		r.Route("/restaurants", func(r chi.Router) {
			r.Get("/", restaurantHandler.ListRestaurants)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/menu", restaurantHandler.GetMenu)
				r.Post("/hidden", restaurantHandler.HideRestaurant)
				r.Delete("/hidden", restaurantHandler.ShowRestaurant)
			})
		})
		r.Get("/selector", restaurantHandler.GetSelector)
		r.Put("/selector", restaurantHandler.UpdateSelector)
		r.Put("/session/selection", restaurantHandler.SelectRestaurant)
		r.Get("/session/menu", restaurantHandler.GetSessionMenu)

		// 上流プロキシ（プロキシ専用レート制限を追加）
		r.Route("/upstream", func(r chi.Router) {
			r.Use(deps.RateLimiter.ProxyMiddleware())
			r.Get("/sodexo/{restaurantId}", upstreamHandler.ProxySodexo)
			r.Get("/jamix/{customerId}/{kitchenId}", upstreamHandler.ProxyJamix)
		})

		// ブラックリスト
		r.Route("/blacklist", func(r chi.Router) {
			r.Get("/", prefHandler.ListBlacklist)
			r.Post("/", prefHandler.AddBlacklist)
			r.Delete("/", prefHandler.RestoreAllBlacklist)
			r.Delete("/{restaurantId}/{name}", prefHandler.RestoreBlacklist)
		})

		// お気に入り
		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", prefHandler.ListFavorites)
			r.Post("/", prefHandler.AddFavorite)
			r.Route("/{restaurantId}/{name}", func(r chi.Router) {
				r.Delete("/", prefHandler.RemoveFavorite)
				r.Put("/notification", prefHandler.UpdateFavoriteNotification)
			})
		})

		// メニュー種別フィルタ
		r.Get("/meal-types", prefHandler.ListMealTypes)
		r.Put("/meal-types/hidden", prefHandler.SetMealTypeVisibility)
		r.Delete("/meal-types/hidden", prefHandler.ShowAllMealTypes)

		// 通知
		r.Get("/notifications/permission", notificationHandler.GetPermission)
		r.Post("/notifications/permission", notificationHandler.RequestPermission)
		if deps.NotificationStream != nil {
			r.Get("/notifications/ws", deps.NotificationStream.ServeHTTP)
		}
	})

	return r
}

// healthHandler は/healthのハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
