package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/menuman/internal/label"
	"github.com/hitoshi/menuman/internal/model"
)

// BlacklistService はブラックリスト操作を表す。
type BlacklistService interface {
	Add(ctx context.Context, name, restaurantID, restaurantName, reason string) (model.BlacklistEntry, error)
	Restore(ctx context.Context, name, restaurantID string) bool
	RestoreAll(ctx context.Context)
	Items() []model.BlacklistEntry
}

// FavoriteService はお気に入り操作を表す。
type FavoriteService interface {
	Add(ctx context.Context, name, restaurantID, restaurantName, category string, rule *model.NotificationRule) (model.Favorite, error)
	Remove(ctx context.Context, name, restaurantID string) bool
	UpdateNotification(ctx context.Context, name, restaurantID string, rule model.NotificationRule) (model.Favorite, bool, error)
	Items() []model.Favorite
}

// MealTypeService はメニュー種別フィルタ操作を表す。
type MealTypeService interface {
	Toggle(ctx context.Context, mealType string) bool
	Hide(ctx context.Context, mealType string)
	Show(ctx context.Context, mealType string)
	ShowAll(ctx context.Context)
	HiddenTypes() []string
	KnownTypes() []string
	AllTypes() []string
}

// NotificationPermission はリマインダー通知の許可確認を表す。
type NotificationPermission interface {
	EnsureForRule(ctx context.Context, rule model.NotificationRule) (model.NotificationRule, bool)
}

// PreferenceHandler はブラックリスト・お気に入り・メニュー種別フィルタのHTTPハンドラー。
type PreferenceHandler struct {
	blacklist   BlacklistService
	favorites   FavoriteService
	mealTypes   MealTypeService
	permissions NotificationPermission
}

// NewPreferenceHandler はPreferenceHandlerを生成する。
func NewPreferenceHandler(
	blacklist BlacklistService,
	favorites FavoriteService,
	mealTypes MealTypeService,
	permissions NotificationPermission,
) *PreferenceHandler {
	return &PreferenceHandler{
		blacklist:   blacklist,
		favorites:   favorites,
		mealTypes:   mealTypes,
		permissions: permissions,
	}
}

// blacklistRequest はブラックリスト追加リクエストのボディ。
type blacklistRequest struct {
	Name           string `json:"name"`
	RestaurantID   string `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name"`
	Reason         string `json:"reason"`
}

// favoriteRequest はお気に入り追加リクエストのボディ。
type favoriteRequest struct {
	Name           string                  `json:"name"`
	RestaurantID   string                  `json:"restaurant_id"`
	RestaurantName string                  `json:"restaurant_name"`
	Category       string                  `json:"category"`
	Notification   *model.NotificationRule `json:"notification"`
}

// favoriteResponse はお気に入り更新のレスポンス。
// 通知の許可が得られずリマインダーを無効にした場合はPermissionDeniedがtrueになる。
type favoriteResponse struct {
	model.Favorite
	PermissionDenied bool `json:"permission_denied"`
}

// mealTypesResponse はメニュー種別一覧のレスポンス。
type mealTypesResponse struct {
	All        []string `json:"all"`
	Predefined []string `json:"predefined"`
	Known      []string `json:"known"`
	Hidden     []string `json:"hidden"`
}

// mealTypeVisibilityRequest はメニュー種別の表示切り替えリクエストのボディ。
// Hiddenがnilの場合は現在の状態を反転する。
type mealTypeVisibilityRequest struct {
	Type   string `json:"type"`
	Hidden *bool  `json:"hidden"`
}

// mealTypeVisibilityResponse はメニュー種別の表示切り替え結果。
type mealTypeVisibilityResponse struct {
	Type   string `json:"type"`
	Hidden bool   `json:"hidden"`
}

// ListBlacklist はブラックリストを新しい順に返す。
// GET /api/blacklist
func (h *PreferenceHandler) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.blacklist.Items())
}

// AddBlacklist は料理をブラックリストに追加する。
// POST /api/blacklist
func (h *PreferenceHandler) AddBlacklist(w http.ResponseWriter, r *http.Request) {
	var req blacklistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.blacklist.Add(r.Context(), req.Name, req.RestaurantID, req.RestaurantName, req.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// RestoreBlacklist はブラックリストから1件を戻す。
// DELETE /api/blacklist/{restaurantId}/{name}
func (h *PreferenceHandler) RestoreBlacklist(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantId")
	name := chi.URLParam(r, "name")

	if !h.blacklist.Restore(r.Context(), name, restaurantID) {
		handleServiceError(w, model.NewBlacklistNotFoundError(restaurantID, name))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestoreAllBlacklist はブラックリストを空にする。
// DELETE /api/blacklist
func (h *PreferenceHandler) RestoreAllBlacklist(w http.ResponseWriter, r *http.Request) {
	h.blacklist.RestoreAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ListFavorites はお気に入りを新しい順に返す。
// GET /api/favorites
func (h *PreferenceHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.favorites.Items())
}

// AddFavorite は料理をお気に入りに追加する。
// 通知を有効にするルールが指定された場合はこの時点で通知の許可を求める。
// POST /api/favorites
func (h *PreferenceHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var denied bool
	if req.Notification != nil {
		rule, err := model.ValidateNotificationRule(*req.Notification)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		rule, denied = h.permissions.EnsureForRule(r.Context(), rule)
		req.Notification = &rule
	}

	fav, err := h.favorites.Add(r.Context(), req.Name, req.RestaurantID, req.RestaurantName, req.Category, req.Notification)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, favoriteResponse{Favorite: fav, PermissionDenied: denied})
}

// RemoveFavorite はお気に入りを解除する。
// DELETE /api/favorites/{restaurantId}/{name}
func (h *PreferenceHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantId")
	name := chi.URLParam(r, "name")

	if !h.favorites.Remove(r.Context(), name, restaurantID) {
		handleServiceError(w, model.NewFavoriteNotFoundError(restaurantID, name))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateFavoriteNotification はお気に入りのリマインダー設定を更新する。
// PUT /api/favorites/{restaurantId}/{name}/notification
func (h *PreferenceHandler) UpdateFavoriteNotification(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantId")
	name := chi.URLParam(r, "name")

	var rule model.NotificationRule
	if !decodeJSON(w, r, &rule) {
		return
	}
	rule, err := model.ValidateNotificationRule(rule)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	rule, denied := h.permissions.EnsureForRule(r.Context(), rule)

	fav, ok, err := h.favorites.UpdateNotification(r.Context(), name, restaurantID, rule)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !ok {
		handleServiceError(w, model.NewFavoriteNotFoundError(restaurantID, name))
		return
	}

	writeJSON(w, http.StatusOK, favoriteResponse{Favorite: fav, PermissionDenied: denied})
}

// ListMealTypes はメニュー種別の一覧と非表示状態を返す。
// GET /api/meal-types
func (h *PreferenceHandler) ListMealTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mealTypesResponse{
		All:        h.mealTypes.AllTypes(),
		Predefined: label.PredefinedMealTypes(),
		Known:      h.mealTypes.KnownTypes(),
		Hidden:     h.mealTypes.HiddenTypes(),
	})
}

// SetMealTypeVisibility はメニュー種別の表示状態を変更する。
// PUT /api/meal-types/hidden
func (h *PreferenceHandler) SetMealTypeVisibility(w http.ResponseWriter, r *http.Request) {
	var req mealTypeVisibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		handleServiceError(w, model.NewInvalidRequestError("type is required"))
		return
	}

	var hidden bool
	switch {
	case req.Hidden == nil:
		hidden = h.mealTypes.Toggle(r.Context(), req.Type)
	case *req.Hidden:
		h.mealTypes.Hide(r.Context(), req.Type)
		hidden = true
	default:
		h.mealTypes.Show(r.Context(), req.Type)
	}

	writeJSON(w, http.StatusOK, mealTypeVisibilityResponse{Type: req.Type, Hidden: hidden})
}

// ShowAllMealTypes は全てのメニュー種別を表示に戻す。
// DELETE /api/meal-types/hidden
func (h *PreferenceHandler) ShowAllMealTypes(w http.ResponseWriter, r *http.Request) {
	h.mealTypes.ShowAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
