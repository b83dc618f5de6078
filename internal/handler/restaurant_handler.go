package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/menuman/internal/menuview"
	"github.com/hitoshi/menuman/internal/middleware"
	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/preference"
)

// RestaurantDirectory はレストラン一覧の参照を表す。
type RestaurantDirectory interface {
	Find(id string) (model.Restaurant, bool)
	All() []model.Restaurant
	ByCity(city string) []model.Restaurant
	Cities() []string
}

// SelectorService はレストラン選択の設定を表す。
type SelectorService interface {
	State() preference.SelectorState
	SetDefaultCity(ctx context.Context, city string)
	SetDefaultRestaurant(ctx context.Context, city, restaurantID string)
	HideRestaurant(ctx context.Context, restaurantID string)
	ShowRestaurant(ctx context.Context, restaurantID string)
	IsRestaurantHidden(restaurantID string) bool
}

// MenuService は当日メニューの取得を表す。
type MenuService interface {
	Today(ctx context.Context, restaurantID string, lang model.Language) (*menuview.View, error)
}

// SessionService は選択中レストランのセッションを表す。
type SessionService interface {
	Select(ctx context.Context, restaurantID string, lang model.Language)
	Current() menuview.Selection
}

// RestaurantHandler はレストラン一覧・メニュー・選択設定のHTTPハンドラー。
type RestaurantHandler struct {
	directory   RestaurantDirectory
	selector    SelectorService
	menus       MenuService
	session     SessionService
	defaultLang model.Language
}

// NewRestaurantHandler はRestaurantHandlerを生成する。
func NewRestaurantHandler(
	directory RestaurantDirectory,
	selector SelectorService,
	menus MenuService,
	session SessionService,
	defaultLang model.Language,
) *RestaurantHandler {
	if defaultLang == "" {
		defaultLang = model.LanguageEnglish
	}
	return &RestaurantHandler{
		directory:   directory,
		selector:    selector,
		menus:       menus,
		session:     session,
		defaultLang: defaultLang,
	}
}

// restaurantResponse はレストラン一覧の1件。
type restaurantResponse struct {
	model.Restaurant
	Hidden    bool `json:"hidden"`
	IsDefault bool `json:"is_default"`
}

// citiesResponse は都市一覧のレスポンス。
type citiesResponse struct {
	Cities      []string `json:"cities"`
	DefaultCity string   `json:"default_city,omitempty"`
}

// selectorRequest は選択設定更新リクエストのボディ。
// nilのフィールドは変更しない。
type selectorRequest struct {
	DefaultCity         *string `json:"default_city"`
	City                string  `json:"city"`
	DefaultRestaurantID *string `json:"default_restaurant_id"`
}

// selectionRequest はセッション選択リクエストのボディ。
type selectionRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Language     string `json:"lang"`
}

// selectionResponse はセッション選択状態のレスポンス。
type selectionResponse struct {
	menuview.Selection
	Error *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// ListCities は都市一覧を返す。
// GET /api/cities
func (h *RestaurantHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, citiesResponse{
		Cities:      h.directory.Cities(),
		DefaultCity: h.selector.State().DefaultCity,
	})
}

// ListRestaurants はレストラン一覧を返す。
// 非表示のレストランはinclude_hidden=trueの場合のみ含める。
// GET /api/restaurants?city=&include_hidden=
func (h *RestaurantHandler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	includeHidden := r.URL.Query().Get("include_hidden") == "true"

	var restaurants []model.Restaurant
	if city != "" {
		restaurants = h.directory.ByCity(city)
	} else {
		restaurants = h.directory.All()
	}

	defaults := h.selector.State().DefaultRestaurants
	results := make([]restaurantResponse, 0, len(restaurants))
	for _, rest := range restaurants {
		hidden := h.selector.IsRestaurantHidden(rest.ID)
		if hidden && !includeHidden {
			continue
		}
		results = append(results, restaurantResponse{
			Restaurant: rest,
			Hidden:     hidden,
			IsDefault:  defaults[rest.City] == rest.ID,
		})
	}

	writeJSON(w, http.StatusOK, results)
}

// GetMenu は指定レストランの当日メニューを返す。
// GET /api/restaurants/{id}/menu?lang=
func (h *RestaurantHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	lang := model.ParseLanguage(r.URL.Query().Get("lang"), h.defaultLang)

	view, err := h.menus.Today(r.Context(), chi.URLParam(r, "id"), lang)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// HideRestaurant はレストランを一覧から非表示にする。
// POST /api/restaurants/{id}/hidden
func (h *RestaurantHandler) HideRestaurant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.directory.Find(id); !ok {
		handleServiceError(w, model.NewRestaurantNotFoundError(id))
		return
	}

	h.selector.HideRestaurant(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// ShowRestaurant は非表示のレストランを一覧に戻す。
// DELETE /api/restaurants/{id}/hidden
func (h *RestaurantHandler) ShowRestaurant(w http.ResponseWriter, r *http.Request) {
	h.selector.ShowRestaurant(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// GetSelector はレストラン選択の設定を返す。
// GET /api/selector
func (h *RestaurantHandler) GetSelector(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.selector.State())
}

// UpdateSelector はデフォルトの都市とレストランを更新する。
// default_restaurant_idを空文字にすると都市のデフォルトを解除する。
// PUT /api/selector
func (h *RestaurantHandler) UpdateSelector(w http.ResponseWriter, r *http.Request) {
	var req selectorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.DefaultRestaurantID != nil {
		if req.City == "" {
			handleServiceError(w, model.NewInvalidRequestError("city is required with default_restaurant_id"))
			return
		}
		if id := *req.DefaultRestaurantID; id != "" {
			if _, ok := h.directory.Find(id); !ok {
				handleServiceError(w, model.NewRestaurantNotFoundError(id))
				return
			}
		}
	}

	if req.DefaultCity != nil {
		h.selector.SetDefaultCity(r.Context(), *req.DefaultCity)
	}
	if req.DefaultRestaurantID != nil {
		h.selector.SetDefaultRestaurant(r.Context(), req.City, *req.DefaultRestaurantID)
	}

	writeJSON(w, http.StatusOK, h.selector.State())
}

// SelectRestaurant はセッションのレストランを選択し、メニューの読み込みを開始する。
// PUT /api/session/selection
func (h *RestaurantHandler) SelectRestaurant(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := h.directory.Find(req.RestaurantID); !ok {
		handleServiceError(w, model.NewRestaurantNotFoundError(req.RestaurantID))
		return
	}

	h.session.Select(r.Context(), req.RestaurantID, model.ParseLanguage(req.Language, h.defaultLang))
	writeJSON(w, http.StatusAccepted, toSelectionResponse(h.session.Current()))
}

// GetSessionMenu はセッションで選択中のレストランと読み込み状態を返す。
// GET /api/session/menu
func (h *RestaurantHandler) GetSessionMenu(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSelectionResponse(h.session.Current()))
}

func toSelectionResponse(sel menuview.Selection) selectionResponse {
	resp := selectionResponse{Selection: sel}
	if sel.Error == nil {
		return resp
	}
	var apiErr *model.APIError
	if !errors.As(sel.Error, &apiErr) {
		apiErr = model.NewInternalError("メニューの読み込みに失敗しました。")
	}
	body := middleware.ErrorBody(apiErr)
	resp.Error = &body
	return resp
}
