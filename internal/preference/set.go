package preference

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/menuman/internal/storage"
)

// StringSet は文字列集合の永続化ストア。永続化形式は文字列配列。
// sortedがtrueの場合は常に昇順を保つ。falseの場合は追加順を保つ。
type StringSet struct {
	name   string
	kv     storage.KV
	logger *slog.Logger
	sorted bool

	mu     sync.RWMutex
	items  []string
	loaded bool
}

// NewStringSet はStringSetを生成する。
func NewStringSet(name string, kv storage.KV, logger *slog.Logger, sorted bool) *StringSet {
	return &StringSet{name: name, kv: kv, logger: logger, sorted: sorted}
}

// Load は永続化済みの集合を復元する。空文字列と重複は取り除く。
func (s *StringSet) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	var stored []string
	if readBlob(ctx, s.kv, s.logger, s.name, &stored) {
		for _, v := range stored {
			if v != "" && !slices.Contains(s.items, v) {
				s.items = append(s.items, v)
			}
		}
		if s.sorted {
			slices.Sort(s.items)
		}
	}
	s.loaded = true
}

// Add は要素を追加する。追加された要素が1つでもあればtrueを返し、その場合のみ永続化する。
func (s *StringSet) Add(ctx context.Context, values ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	grown := false
	for _, v := range values {
		if v == "" || slices.Contains(s.items, v) {
			continue
		}
		s.items = append(s.items, v)
		grown = true
	}
	if !grown {
		return false
	}
	if s.sorted {
		slices.Sort(s.items)
	}
	s.persistLocked(ctx)
	return true
}

// Remove は要素を削除する。削除した場合はtrueを返す。
func (s *StringSet) Remove(ctx context.Context, v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.items, v)
	if i < 0 {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.persistLocked(ctx)
	return true
}

// Clear は全要素を削除する。
func (s *StringSet) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.persistLocked(ctx)
}

// Has は要素が含まれるかを返す。
func (s *StringSet) Has(v string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.items, v)
}

// Items は要素のコピーを返す。
func (s *StringSet) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.items...)
}

// Snapshot は要素を検索用のmapとして返す。
func (s *StringSet) Snapshot() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[string]struct{}, len(s.items))
	for _, v := range s.items {
		m[v] = struct{}{}
	}
	return m
}

func (s *StringSet) persistLocked(ctx context.Context) {
	if !s.loaded {
		return
	}
	items := s.items
	if items == nil {
		items = []string{}
	}
	writeBlob(ctx, s.kv, s.logger, s.name, items)
}
