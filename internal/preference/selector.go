package preference

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/hitoshi/menuman/internal/storage"
)

// KeySelector はレストラン選択設定の永続化キー。
const KeySelector = "restaurant-selector"

// SelectorState はレストラン選択画面の設定。
type SelectorState struct {
	DefaultCity        string            `json:"default_city,omitempty"`
	HiddenRestaurants  []string          `json:"hidden_restaurants"`
	DefaultRestaurants map[string]string `json:"default_restaurants"` // 都市 → レストランID
}

func (s SelectorState) clone() SelectorState {
	return SelectorState{
		DefaultCity:        s.DefaultCity,
		HiddenRestaurants:  append([]string{}, s.HiddenRestaurants...),
		DefaultRestaurants: maps.Clone(s.DefaultRestaurants),
	}
}

// SelectorPrefs はデフォルトの都市、都市ごとのデフォルトレストラン、
// 一覧から隠したレストランを管理する。
type SelectorPrefs struct {
	kv     storage.KV
	logger *slog.Logger

	mu     sync.RWMutex
	state  SelectorState
	loaded bool
}

// NewSelectorPrefs はSelectorPrefsを生成する。
func NewSelectorPrefs(kv storage.KV, logger *slog.Logger) *SelectorPrefs {
	return &SelectorPrefs{
		kv:     kv,
		logger: logger,
		state:  SelectorState{DefaultRestaurants: map[string]string{}},
	}
}

// Load は永続化済みの設定を復元する。
func (p *SelectorPrefs) Load(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var st SelectorState
	if !readBlob(ctx, p.kv, p.logger, KeySelector, &st) {
		st = SelectorState{}
	}
	if st.DefaultRestaurants == nil {
		st.DefaultRestaurants = map[string]string{}
	}
	p.state = st
	p.loaded = true
}

// State は現在の設定のコピーを返す。
func (p *SelectorPrefs) State() SelectorState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.clone()
}

// SetDefaultCity はデフォルトの都市を設定する。空文字列で解除する。
func (p *SelectorPrefs) SetDefaultCity(ctx context.Context, city string) {
	p.mutate(ctx, func(s *SelectorState) { s.DefaultCity = city })
}

// SetDefaultRestaurant は都市ごとのデフォルトレストランを設定する。restaurantIDが空なら解除する。
func (p *SelectorPrefs) SetDefaultRestaurant(ctx context.Context, city, restaurantID string) {
	p.mutate(ctx, func(s *SelectorState) {
		if restaurantID == "" {
			delete(s.DefaultRestaurants, city)
			return
		}
		s.DefaultRestaurants[city] = restaurantID
	})
}

// DefaultRestaurant は都市のデフォルトレストランを返す。
func (p *SelectorPrefs) DefaultRestaurant(city string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.state.DefaultRestaurants[city]
	return id, ok
}

// HideRestaurant はレストランを一覧から隠す。
func (p *SelectorPrefs) HideRestaurant(ctx context.Context, restaurantID string) {
	p.mutate(ctx, func(s *SelectorState) {
		if !slices.Contains(s.HiddenRestaurants, restaurantID) {
			s.HiddenRestaurants = append(s.HiddenRestaurants, restaurantID)
		}
	})
}

// ShowRestaurant は隠したレストランを一覧に戻す。
func (p *SelectorPrefs) ShowRestaurant(ctx context.Context, restaurantID string) {
	p.mutate(ctx, func(s *SelectorState) {
		s.HiddenRestaurants = slices.DeleteFunc(s.HiddenRestaurants, func(id string) bool {
			return id == restaurantID
		})
	})
}

// IsRestaurantHidden はレストランが一覧から隠されているかを返す。
func (p *SelectorPrefs) IsRestaurantHidden(restaurantID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Contains(p.state.HiddenRestaurants, restaurantID)
}

func (p *SelectorPrefs) mutate(ctx context.Context, fn func(*SelectorState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.state)
	if p.loaded {
		writeBlob(ctx, p.kv, p.logger, KeySelector, p.state)
	}
}
