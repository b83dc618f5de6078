package preference

import (
	"context"
	"log/slog"

	"github.com/hitoshi/menuman/internal/storage"
)

// Preferences はセッションで共有する全ての設定ストアをまとめる。
type Preferences struct {
	Blacklist *Blacklist
	Favorites *Favorites
	MealTypes *MealTypeFilter
	Selector  *SelectorPrefs
}

// New は全ストアを生成する。永続化済みの状態はLoadを呼ぶまで反映されない。
func New(kv storage.KV, logger *slog.Logger) *Preferences {
	return &Preferences{
		Blacklist: NewBlacklist(kv, logger),
		Favorites: NewFavorites(kv, logger),
		MealTypes: NewMealTypeFilter(kv, logger),
		Selector:  NewSelectorPrefs(kv, logger),
	}
}

// Load は全ストアの状態を復元する。
func (p *Preferences) Load(ctx context.Context) {
	p.Blacklist.Load(ctx)
	p.Favorites.Load(ctx)
	p.MealTypes.Load(ctx)
	p.Selector.Load(ctx)
}
