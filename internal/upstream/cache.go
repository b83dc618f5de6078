package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry はキャッシュした上流レスポンス。
type Entry struct {
	Body              []byte    `json:"body"`
	ContentType       string    `json:"content_type,omitempty"`
	ETag              string    `json:"etag,omitempty"`
	LastModified      string    `json:"last_modified,omitempty"`
	FetchedAt         time.Time `json:"fetched_at"`
	ConsecutiveErrors int       `json:"consecutive_errors,omitempty"`
	RetryAt           time.Time `json:"retry_at,omitempty"`
}

// Cache は上流レスポンスのキャッシュ。
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, e *Entry) error
}

// MemoryCache はプロセス内のCache実装。
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache はMemoryCacheを生成する。
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

var _ Cache = (*MemoryCache)(nil)

func (m *MemoryCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	e.Body = append([]byte(nil), e.Body...)
	return &e, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.Body = append([]byte(nil), e.Body...)
	m.entries[key] = cp
	return nil
}

// redisKeyPrefix はRedisキャッシュのキー接頭辞。
const redisKeyPrefix = "menuman:upstream:"

// RedisCache はRedisを使うCache実装。有効期限切れの後も再検証と
// 取得失敗時の代替に使うため、retention の間は保持する。
type RedisCache struct {
	client    redis.Cmdable
	retention time.Duration
}

// NewRedisCache はRedisCacheを生成する。
func NewRedisCache(client redis.Cmdable, retention time.Duration) *RedisCache {
	return &RedisCache{client: client, retention: retention}
}

var _ Cache = (*RedisCache)(nil)

func (r *RedisCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// 壊れたエントリはキャッシュミスとして扱う
		return nil, false, nil
	}
	return &e, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, raw, r.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
