// Package preference はユーザー設定（非表示の料理、お気に入り、メニュー種別フィルタ、
// レストラン選択）を永続化付きで管理する。
//
// 各ストアはセッション開始時に1回だけ生成し、Loadで永続化済みの状態を復元する。
// 変更のたびにブロブ全体を書き直す。Load完了前の変更は永続化しない。
// 永続化の失敗はログに記録するだけで呼び出し元には返さない。
package preference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/menuman/internal/storage"
)

// Store は挿入順を保持するキー→レコードの永続化マップ。
// 永続化形式は [[key, record], ...] のペア配列。
type Store[V any] struct {
	name   string
	kv     storage.KV
	logger *slog.Logger

	mu       sync.RWMutex
	keys     []string
	values   map[string]V
	loaded   bool
	onChange []func()
}

// NewStore はStoreを生成する。nameは永続化先のキーとして使われる。
func NewStore[V any](name string, kv storage.KV, logger *slog.Logger) *Store[V] {
	return &Store[V]{
		name:   name,
		kv:     kv,
		logger: logger,
		values: make(map[string]V),
	}
}

// Load は永続化済みの状態を復元する。
// 値が存在しない場合は空、JSONが壊れている場合はログを出して空から始める。
func (s *Store[V]) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = nil
	s.values = make(map[string]V)
	defer func() { s.loaded = true }()

	raw, found, err := s.kv.Get(ctx, s.name)
	if err != nil {
		s.logger.Error("設定の読み込みに失敗しました。空の状態で開始します",
			slog.String("store", s.name),
			slog.String("error", err.Error()),
		)
		return
	}
	if !found {
		return
	}

	keys, values, err := decodePairs[V](raw)
	if err != nil {
		s.logger.Error("保存された設定が壊れています。空の状態で開始します",
			slog.String("store", s.name),
			slog.String("error", err.Error()),
		)
		return
	}
	s.keys, s.values = keys, values
}

// Loaded はLoadが完了しているかを返す。
func (s *Store[V]) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// OnChange は変更があるたびに呼ばれるコールバックを登録する。
// コールバックはストアのロックを解放した後に呼ばれる。
func (s *Store[V]) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Upsert はレコードを追加または上書きする。既存キーの場合は挿入位置を維持する。
func (s *Store[V]) Upsert(ctx context.Context, key string, v V) {
	s.UpsertFunc(ctx, key, func(V, bool) V { return v })
}

// UpsertFunc は既存レコードを参照して新しいレコードを決める。
// 読み出しと書き込みは同じロック内で行われる。
func (s *Store[V]) UpsertFunc(ctx context.Context, key string, fn func(prev V, exists bool) V) V {
	s.mu.Lock()
	prev, exists := s.values[key]
	next := fn(prev, exists)
	if !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = next
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return next
}

// UpdateFunc は既存レコードのみを更新する。キーが存在しない場合はfalseを返し、何もしない。
func (s *Store[V]) UpdateFunc(ctx context.Context, key string, fn func(prev V) V) (V, bool) {
	s.mu.Lock()
	prev, exists := s.values[key]
	if !exists {
		s.mu.Unlock()
		var zero V
		return zero, false
	}
	next := fn(prev)
	s.values[key] = next
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return next, true
}

// Remove はレコードを削除する。削除した場合はtrueを返す。
func (s *Store[V]) Remove(ctx context.Context, key string) bool {
	s.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return true
}

// Clear は全レコードを削除する。
func (s *Store[V]) Clear(ctx context.Context) {
	s.mu.Lock()
	s.keys = nil
	s.values = make(map[string]V)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
}

// Has はキーが存在するかを返す。
func (s *Store[V]) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Get はキーに対応するレコードを返す。
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Values は全レコードを挿入順で返す。
func (s *Store[V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.values[k])
	}
	return out
}

// Keys は全キーを挿入順で返す。
func (s *Store[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keys...)
}

// Len はレコード数を返す。
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// persistLocked はブロブ全体を書き直す。s.muを保持した状態で呼ぶこと。
func (s *Store[V]) persistLocked(ctx context.Context) {
	if !s.loaded {
		return
	}

	pairs := make([][2]any, 0, len(s.keys))
	for _, k := range s.keys {
		pairs = append(pairs, [2]any{k, s.values[k]})
	}
	writeBlob(ctx, s.kv, s.logger, s.name, pairs)
}

func (s *Store[V]) notify() {
	s.mu.RLock()
	hooks := append([]func(){}, s.onChange...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// decodePairs はペア配列をデコードする。
// 形の合わないペアは読み飛ばし、ブロブ全体が配列でない場合のみエラーを返す。
// 同じキーが複数回現れた場合は後勝ちで、位置は最初の出現を維持する。
func decodePairs[V any](raw []byte) ([]string, map[string]V, error) {
	var rawPairs []json.RawMessage
	if err := json.Unmarshal(raw, &rawPairs); err != nil {
		return nil, nil, fmt.Errorf("decode pairs: %w", err)
	}

	keys := make([]string, 0, len(rawPairs))
	values := make(map[string]V, len(rawPairs))
	for _, rp := range rawPairs {
		var pair []json.RawMessage
		if err := json.Unmarshal(rp, &pair); err != nil || len(pair) != 2 {
			continue
		}
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil || key == "" {
			continue
		}
		var v V
		if err := json.Unmarshal(pair[1], &v); err != nil {
			continue
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = v
	}
	return keys, values, nil
}

// writeBlob はvをJSONにして保存する。失敗はログに記録するだけ。
func writeBlob(ctx context.Context, kv storage.KV, logger *slog.Logger, name string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("設定のシリアライズに失敗しました",
			slog.String("store", name),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := kv.Set(ctx, name, b); err != nil {
		logger.Error("設定の保存に失敗しました",
			slog.String("store", name),
			slog.String("error", err.Error()),
		)
	}
}

// readBlob は保存済みのJSONをvにデコードする。
// 値がない場合はfalse、読み込みまたはデコードに失敗した場合はログを出してfalseを返す。
func readBlob(ctx context.Context, kv storage.KV, logger *slog.Logger, name string, v any) bool {
	raw, found, err := kv.Get(ctx, name)
	if err != nil {
		logger.Error("設定の読み込みに失敗しました。空の状態で開始します",
			slog.String("store", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		logger.Error("保存された設定が壊れています。空の状態で開始します",
			slog.String("store", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}
