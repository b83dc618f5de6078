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

// KeyFavorites はお気に入りの永続化キー。
const KeyFavorites = "favorites"

// Favorites はレストランごとのお気に入り料理とリマインダー設定を管理する。
type Favorites struct {
	store *Store[model.Favorite]
	now   func() time.Time
}

// NewFavorites はFavoritesを生成する。
func NewFavorites(kv storage.KV, logger *slog.Logger) *Favorites {
	return &Favorites{
		store: NewStore[model.Favorite](KeyFavorites, kv, logger),
		now:   time.Now,
	}
}

// Load は永続化済みのお気に入りを復元する。
func (f *Favorites) Load(ctx context.Context) {
	f.store.Load(ctx)
}

// OnChange はお気に入りが変更されるたびに呼ばれるコールバックを登録する。
func (f *Favorites) OnChange(fn func()) {
	f.store.OnChange(fn)
}

// Add はお気に入りを追加または上書きする。
// ruleがnilの場合、既存の通知設定を引き継ぐ（新規の場合はデフォルト設定）。
// ruleを指定した場合は検証してから置き換える。
func (f *Favorites) Add(ctx context.Context, name, restaurantID, restaurantName, category string, rule *model.NotificationRule) (model.Favorite, error) {
	if strings.TrimSpace(name) == "" || restaurantID == "" {
		return model.Favorite{}, model.NewNameRequiredError()
	}

	var validated *model.NotificationRule
	if rule != nil {
		r, err := model.ValidateNotificationRule(*rule)
		if err != nil {
			return model.Favorite{}, err
		}
		validated = &r
	}

	now := f.now()
	fav := f.store.UpsertFunc(ctx, model.PreferenceKey(restaurantID, name), func(prev model.Favorite, exists bool) model.Favorite {
		notification := model.DefaultNotificationRule()
		switch {
		case validated != nil:
			notification = *validated
		case exists:
			notification = prev.Notification
		}
		return model.Favorite{
			Name:           name,
			RestaurantID:   restaurantID,
			RestaurantName: restaurantName,
			Category:       category,
			Notification:   notification,
			FavoritedAt:    now,
		}
	})
	return fav, nil
}

// Remove はお気に入りを削除する。登録されていなかった場合はfalseを返す。
func (f *Favorites) Remove(ctx context.Context, name, restaurantID string) bool {
	return f.store.Remove(ctx, model.PreferenceKey(restaurantID, name))
}

// UpdateNotification は既存のお気に入りの通知設定のみを置き換える。
// 未登録の場合は何もせずfalseを返す。
func (f *Favorites) UpdateNotification(ctx context.Context, name, restaurantID string, rule model.NotificationRule) (model.Favorite, bool, error) {
	validated, err := model.ValidateNotificationRule(rule)
	if err != nil {
		return model.Favorite{}, false, err
	}

	fav, ok := f.store.UpdateFunc(ctx, model.PreferenceKey(restaurantID, name), func(prev model.Favorite) model.Favorite {
		prev.Notification = validated
		return prev
	})
	return fav, ok, nil
}

// IsFavorite はお気に入り登録済みかを返す。名前の大文字小文字と前後の空白は無視する。
func (f *Favorites) IsFavorite(name, restaurantID string) bool {
	return f.store.Has(model.PreferenceKey(restaurantID, name))
}

// Get は登録内容を返す。
func (f *Favorites) Get(name, restaurantID string) (model.Favorite, bool) {
	return f.store.Get(model.PreferenceKey(restaurantID, name))
}

// Items は全登録を新しい順で返す。
func (f *Favorites) Items() []model.Favorite {
	items := f.store.Values()
	slices.SortStableFunc(items, func(x, y model.Favorite) int {
		return y.FavoritedAt.Compare(x.FavoritedAt)
	})
	return items
}

// Reminders は通知が有効なお気に入りを登録順で返す。
func (f *Favorites) Reminders() []model.Favorite {
	var out []model.Favorite
	for _, fav := range f.store.Values() {
		if fav.Notification.Enabled {
			out = append(out, fav)
		}
	}
	return out
}

// Count は登録数を返す。
func (f *Favorites) Count() int {
	return f.store.Len()
}
