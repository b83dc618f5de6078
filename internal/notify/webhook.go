package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/menuman/internal/security"
)

// webhookTimeout はWebhook送信のタイムアウト。
const webhookTimeout = 5 * time.Second

// WebhookNotifier は通知をJSONとしてWebhook URLにPOSTする。
// 送信にはSSRF防止付きのHTTPクライアントを使う。
type WebhookNotifier struct {
	url    string
	guard  security.SSRFGuardService
	client *http.Client
}

// NewWebhookNotifier はWebhookNotifierを生成する。
func NewWebhookNotifier(rawURL string, guard security.SSRFGuardService) *WebhookNotifier {
	return &WebhookNotifier{
		url:    rawURL,
		guard:  guard,
		client: guard.NewSafeClient(webhookTimeout),
	}
}

var _ Notifier = (*WebhookNotifier)(nil)

// RequestPermission はWebhook URLが安全と判定された場合にtrueを返す。
func (w *WebhookNotifier) RequestPermission(_ context.Context) (bool, error) {
	if err := w.guard.ValidateURL(w.url); err != nil {
		return false, nil
	}
	return true, nil
}

// Notify は通知をPOSTする。2xx以外の応答はエラーとして返す。
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	if err := w.guard.ValidateURL(w.url); err != nil {
		return fmt.Errorf("validate webhook url: %w", err)
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "menuman/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
