package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/menuman/internal/reminder"
)

// PermissionService は通知の許可状態の参照と要求を表す。
type PermissionService interface {
	State() reminder.PermissionState
	Request(ctx context.Context) reminder.PermissionState
	Reset()
}

// NotificationHandler は通知の許可状態のHTTPハンドラー。
type NotificationHandler struct {
	permissions PermissionService
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(permissions PermissionService) *NotificationHandler {
	return &NotificationHandler{permissions: permissions}
}

// permissionResponse は許可状態のレスポンス。
type permissionResponse struct {
	State reminder.PermissionState `json:"state"`
}

// GetPermission は現在の許可状態を返す。
// GET /api/notifications/permission
func (h *NotificationHandler) GetPermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissionResponse{State: h.permissions.State()})
}

// RequestPermission は通知の許可を求める。
// 一度決まった状態は保持されるため、再確認する場合はretry=trueを指定する。
// POST /api/notifications/permission?retry=
func (h *NotificationHandler) RequestPermission(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("retry") == "true" {
		h.permissions.Reset()
	}
	writeJSON(w, http.StatusOK, permissionResponse{State: h.permissions.Request(r.Context())})
}
