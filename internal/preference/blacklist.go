package preference

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/storage"
)

// KeyBlacklist はブラックリストの永続化キー。
const KeyBlacklist = "blacklisted-foods"

// Blacklist はレストランごとに非表示にした料理を管理する。
// キーは model.PreferenceKey(restaurantID, name) で、同名の料理でもレストランごとに独立する。
type Blacklist struct {
	store *Store[model.BlacklistEntry]
	now   func() time.Time
}

// NewBlacklist はBlacklistを生成する。
func NewBlacklist(kv storage.KV, logger *slog.Logger) *Blacklist {
	return &Blacklist{
		store: NewStore[model.BlacklistEntry](KeyBlacklist, kv, logger),
		now:   time.Now,
	}
}

// Load は永続化済みのブラックリストを復元する。
func (b *Blacklist) Load(ctx context.Context) {
	b.store.Load(ctx)
}

// Add は料理をブラックリストに追加する。既存の記録は理由と日時を含めて完全に置き換える。
func (b *Blacklist) Add(ctx context.Context, name, restaurantID, restaurantName, reason string) (model.BlacklistEntry, error) {
	if strings.TrimSpace(name) == "" || restaurantID == "" {
		return model.BlacklistEntry{}, model.NewNameRequiredError()
	}

	entry := model.BlacklistEntry{
		Name:           name,
		RestaurantID:   restaurantID,
		RestaurantName: restaurantName,
		Reason:         strings.TrimSpace(reason),
		BlacklistedAt:  b.now(),
	}
	b.store.Upsert(ctx, model.PreferenceKey(restaurantID, name), entry)
	return entry, nil
}

// Restore は料理をブラックリストから外す。登録されていなかった場合はfalseを返す。
func (b *Blacklist) Restore(ctx context.Context, name, restaurantID string) bool {
	return b.store.Remove(ctx, model.PreferenceKey(restaurantID, name))
}

// RestoreAll は全ての料理をブラックリストから外す。
func (b *Blacklist) RestoreAll(ctx context.Context) {
	b.store.Clear(ctx)
}

// IsBlacklisted は料理が非表示に設定されているかを返す。名前の大文字小文字と前後の空白は無視する。
func (b *Blacklist) IsBlacklisted(name, restaurantID string) bool {
	return b.store.Has(model.PreferenceKey(restaurantID, name))
}

// Reason は登録時の理由を返す。未登録または理由なしの場合は空文字列。
func (b *Blacklist) Reason(name, restaurantID string) string {
	e, _ := b.store.Get(model.PreferenceKey(restaurantID, name))
	return e.Reason
}

// Get は登録内容を返す。
func (b *Blacklist) Get(name, restaurantID string) (model.BlacklistEntry, bool) {
	return b.store.Get(model.PreferenceKey(restaurantID, name))
}

// Items は全登録を新しい順で返す。
func (b *Blacklist) Items() []model.BlacklistEntry {
	items := b.store.Values()
	slices.SortStableFunc(items, func(x, y model.BlacklistEntry) int {
		return y.BlacklistedAt.Compare(x.BlacklistedAt)
	})
	return items
}

// Count は登録数を返す。
func (b *Blacklist) Count() int {
	return b.store.Len()
}
