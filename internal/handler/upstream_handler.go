package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/upstream"
)

// UpstreamFetcher は上流フィードの生データ取得を表す。
type UpstreamFetcher interface {
	FetchSodexo(ctx context.Context, restaurantID string) (*upstream.Response, error)
	FetchJamix(ctx context.Context, customerID, kitchenID int) (*upstream.Response, error)
}

// UpstreamHandler は上流フィードをそのまま中継するHTTPハンドラー。
type UpstreamHandler struct {
	fetcher UpstreamFetcher
}

// NewUpstreamHandler はUpstreamHandlerを生成する。
func NewUpstreamHandler(fetcher UpstreamFetcher) *UpstreamHandler {
	return &UpstreamHandler{fetcher: fetcher}
}

// cacheResultHeader は取得経路（fresh/cached/revalidated/stale）を示すレスポンスヘッダー。
const cacheResultHeader = "X-Menuman-Cache"

// ProxySodexo はSodexoの週次フィードを中継する。
// GET /api/upstream/sodexo/{restaurantId}
func (h *UpstreamHandler) ProxySodexo(w http.ResponseWriter, r *http.Request) {
	resp, err := h.fetcher.FetchSodexo(r.Context(), chi.URLParam(r, "restaurantId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeRaw(w, resp)
}

// ProxyJamix はJAMIXのキッチンフィードを中継する。
// GET /api/upstream/jamix/{customerId}/{kitchenId}
func (h *UpstreamHandler) ProxyJamix(w http.ResponseWriter, r *http.Request) {
	customerID, err1 := strconv.Atoi(chi.URLParam(r, "customerId"))
	kitchenID, err2 := strconv.Atoi(chi.URLParam(r, "kitchenId"))
	if err1 != nil || err2 != nil {
		handleServiceError(w, model.NewInvalidRequestError("customer ID and kitchen ID must be integers"))
		return
	}

	resp, err := h.fetcher.FetchJamix(r.Context(), customerID, kitchenID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeRaw(w, resp)
}

func writeRaw(w http.ResponseWriter, resp *upstream.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(cacheResultHeader, resp.Result)
	if !resp.FetchedAt.IsZero() {
		w.Header().Set("Last-Modified", resp.FetchedAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}
