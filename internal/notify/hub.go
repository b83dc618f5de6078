package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait はWebSocketへの1回の書き込みの期限。
const writeWait = 2 * time.Second

// hubMessage はWebSocketで送るメッセージ。
type hubMessage struct {
	Type         string        `json:"type"`
	ClientID     string        `json:"client_id,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *hubClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// writeMessage はエンコード済みのJSONをテキストメッセージとして送る。
func (c *hubClient) writeMessage(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub は接続中のWebSocketクライアントに通知をプッシュする。
// クライアントが1つ以上接続している間のみ通知を許可する。
// 同じTagの通知は同じ分のうちに1回だけ送る。
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu       sync.Mutex
	clients  map[string]*hubClient
	lastSent map[string]string // tag → 送信した分（YYYY-MM-DDTHH:MM）
}

// NewHub はHubを生成する。allowedOriginが空の場合は全てのOriginからの接続を受け付ける。
func NewHub(logger *slog.Logger, allowedOrigin string) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
		now:      time.Now,
		clients:  make(map[string]*hubClient),
		lastSent: make(map[string]string),
	}
}

var _ Notifier = (*Hub)(nil)

// ServeHTTP は接続をWebSocketにアップグレードし、切断されるまで保持する。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("error", err.Error()),
		)
		return
	}
	// サーバーのReadTimeoutは長時間接続には適用しない
	_ = conn.SetReadDeadline(time.Time{})

	c := &hubClient{id: uuid.New().String(), conn: conn}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("notification client connected", slog.String("client_id", c.id))

	if err := c.writeJSON(hubMessage{Type: "welcome", ClientID: c.id}); err != nil {
		h.remove(c)
		return
	}

	// 受信メッセージは読み捨てる。読み込みエラーで切断とみなす。
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	_ = c.conn.Close()
	h.logger.Info("notification client disconnected", slog.String("client_id", c.id))
}

// Count は接続中のクライアント数を返す。
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// RequestPermission はクライアントが接続していればtrueを返す。
func (h *Hub) RequestPermission(_ context.Context) (bool, error) {
	return h.Count() > 0, nil
}

// Notify は接続中の全クライアントに通知を送る。
// 書き込みに失敗したクライアントは切断する。
func (h *Hub) Notify(_ context.Context, n Notification) error {
	minute := h.now().Format("2006-01-02T15:04")

	h.mu.Lock()
	if n.Tag != "" && h.lastSent[n.Tag] == minute {
		h.mu.Unlock()
		return nil
	}
	if n.Tag != "" {
		h.lastSent[n.Tag] = minute
	}
	clients := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	payload, err := json.Marshal(hubMessage{Type: "notification", Notification: &n})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	failed := 0
	for _, c := range clients {
		if err := c.writeMessage(payload); err != nil {
			failed++
			h.logger.Warn("notification push failed",
				slog.String("client_id", c.id),
				slog.String("error", err.Error()),
			)
			_ = c.conn.Close()
		}
	}
	if failed > 0 && failed == len(clients) {
		return fmt.Errorf("push notification: all %d clients failed", failed)
	}
	return nil
}
