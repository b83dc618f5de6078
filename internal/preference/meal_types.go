package preference

import (
	"context"
	"log/slog"
	"slices"

	"github.com/hitoshi/menuman/internal/label"
	"github.com/hitoshi/menuman/internal/storage"
)

// 永続化キー
const (
	KeyHiddenMealTypes = "hidden-meal-types"
	KeyKnownMealTypes  = "known-meal-types"
)

// MealTypeFilter はメニュー種別ごとの表示/非表示を管理する。
// 設定はレストランをまたいで共通で、種別名は大文字小文字を区別してそのまま比較する。
//
// knownは観測したことのある種別名の登録簿で、追加のみ行い削除しない。
// 非表示中の種別も設定画面から戻せるように、表示状態に関係なく登録する。
type MealTypeFilter struct {
	hidden *StringSet
	known  *StringSet
}

// NewMealTypeFilter はMealTypeFilterを生成する。
func NewMealTypeFilter(kv storage.KV, logger *slog.Logger) *MealTypeFilter {
	return &MealTypeFilter{
		hidden: NewStringSet(KeyHiddenMealTypes, kv, logger, false),
		known:  NewStringSet(KeyKnownMealTypes, kv, logger, true),
	}
}

// Load は永続化済みの状態を復元する。
func (m *MealTypeFilter) Load(ctx context.Context) {
	m.hidden.Load(ctx)
	m.known.Load(ctx)
}

// Toggle は表示状態を反転し、反転後に非表示であればtrueを返す。
func (m *MealTypeFilter) Toggle(ctx context.Context, mealType string) bool {
	if m.hidden.Has(mealType) {
		m.hidden.Remove(ctx, mealType)
		return false
	}
	m.hidden.Add(ctx, mealType)
	return true
}

// Hide は種別を非表示にする。
func (m *MealTypeFilter) Hide(ctx context.Context, mealType string) {
	m.hidden.Add(ctx, mealType)
}

// Show は種別を表示に戻す。
func (m *MealTypeFilter) Show(ctx context.Context, mealType string) {
	m.hidden.Remove(ctx, mealType)
}

// ShowAll は全ての種別を表示に戻す。
func (m *MealTypeFilter) ShowAll(ctx context.Context) {
	m.hidden.Clear(ctx)
}

// IsHidden は種別が非表示かを返す。
func (m *MealTypeFilter) IsHidden(mealType string) bool {
	return m.hidden.Has(mealType)
}

// HiddenTypes は非表示の種別を設定順で返す。
func (m *MealTypeFilter) HiddenTypes() []string {
	return m.hidden.Items()
}

// HiddenSnapshot は非表示の種別を検索用のmapとして返す。
func (m *MealTypeFilter) HiddenSnapshot() map[string]struct{} {
	return m.hidden.Snapshot()
}

// RegisterKnownTypes は観測した種別名を登録簿に追加する。
// 新しい種別が含まれていた場合のみ永続化する。
func (m *MealTypeFilter) RegisterKnownTypes(ctx context.Context, types ...string) {
	m.known.Add(ctx, types...)
}

// KnownTypes は観測済みの種別名を昇順で返す。
func (m *MealTypeFilter) KnownTypes() []string {
	return m.known.Items()
}

// AllTypes は定義済みの種別と観測済みの種別の和集合を昇順で返す。
func (m *MealTypeFilter) AllTypes() []string {
	all := label.PredefinedMealTypes()
	for _, t := range m.known.Items() {
		if !slices.Contains(all, t) {
			all = append(all, t)
		}
	}
	slices.Sort(all)
	return all
}
