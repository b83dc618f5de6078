// Package pipeline は正規化済みのコースにユーザー設定を適用し、表示用にグループ化する。
package pipeline

import (
	"context"
	"slices"

	"github.com/hitoshi/menuman/internal/label"
	"github.com/hitoshi/menuman/internal/model"
)

// OtherCategory はカテゴリを持たないコースをまとめるグループ名。
const OtherCategory = "Other"

// Status はパイプラインの結果状態。
type Status string

const (
	// StatusOK は表示するコースが1件以上ある。
	StatusOK Status = "ok"
	// StatusAllHidden は上流にコースがあるが全てフィルタで非表示になった。
	StatusAllHidden Status = "all_hidden"
	// StatusNoMenu は上流にコースが1件もない。
	StatusNoMenu Status = "no_menu"
)

// MealTypeRegistry はメニュー種別フィルタへのアクセスを表す。
type MealTypeRegistry interface {
	RegisterKnownTypes(ctx context.Context, types ...string)
	HiddenSnapshot() map[string]struct{}
}

// BlacklistLookup はブラックリストの参照を表す。
type BlacklistLookup interface {
	IsBlacklisted(name, restaurantID string) bool
}

// FavoriteLookup はお気に入りの参照を表す。
type FavoriteLookup interface {
	IsFavorite(name, restaurantID string) bool
}

// Deps はパイプラインが参照する設定。nilのフィールドは未設定として扱う。
type Deps struct {
	MealTypes MealTypeRegistry
	Blacklist BlacklistLookup
	Favorites FavoriteLookup
}

// DecoratedCourse は表示用の派生情報を付与したコース。
// 元のmodel.Courseは変更しない。
type DecoratedCourse struct {
	model.Course
	CategoryLabel string   `json:"category_label,omitempty"`
	DietLabels    []string `json:"diet_labels"`
	IsBlacklisted bool     `json:"is_blacklisted"`
	IsFavorite    bool     `json:"is_favorite"`
}

// Group はカテゴリごとのコースのまとまり。
type Group struct {
	Category string            `json:"category"`
	Label    string            `json:"label"`
	Courses  []DecoratedCourse `json:"courses"`
}

// Result はパイプラインの出力。
type Result struct {
	Groups      []Group `json:"groups"`
	Status      Status  `json:"status"`
	TotalCount  int     `json:"total_count"`
	HiddenCount int     `json:"hidden_count"`
}

// Run はコースを種別フィルタで絞り込み、カテゴリごとにグループ化する。
//
// カテゴリを持つコースは表示状態に関係なく観測済み種別として登録する。
// 非表示判定は大文字小文字を区別する完全一致。
// グループは最初に現れた順、グループ内は入力順を保つ。
func Run(ctx context.Context, courses []model.Course, restaurantID string, deps Deps) Result {
	var hidden map[string]struct{}
	if deps.MealTypes != nil {
		var observed []string
		for _, c := range courses {
			if c.HasCategory() && !slices.Contains(observed, c.Category) {
				observed = append(observed, c.Category)
			}
		}
		if len(observed) > 0 {
			deps.MealTypes.RegisterKnownTypes(ctx, observed...)
		}
		hidden = deps.MealTypes.HiddenSnapshot()
	}

	result := Result{
		Groups:     []Group{},
		TotalCount: len(courses),
	}

	index := make(map[string]int)
	for _, c := range courses {
		if c.HasCategory() {
			if _, ok := hidden[c.Category]; ok {
				result.HiddenCount++
				continue
			}
		}

		key := c.Category
		if !c.HasCategory() {
			key = OtherCategory
		}
		i, ok := index[key]
		if !ok {
			i = len(result.Groups)
			index[key] = i
			result.Groups = append(result.Groups, Group{
				Category: key,
				Label:    label.MealTypeLabel(key),
				Courses:  []DecoratedCourse{},
			})
		}
		result.Groups[i].Courses = append(result.Groups[i].Courses, decorate(c, restaurantID, deps))
	}

	switch {
	case len(courses) == 0:
		result.Status = StatusNoMenu
	case len(result.Groups) == 0:
		result.Status = StatusAllHidden
	default:
		result.Status = StatusOK
	}
	return result
}

func decorate(c model.Course, restaurantID string, deps Deps) DecoratedCourse {
	course := c
	course.DietCodes = slices.Clone(c.DietCodes)
	if course.DietCodes == nil {
		course.DietCodes = []string{}
	}

	d := DecoratedCourse{
		Course:     course,
		DietLabels: label.DietLabels(c.DietCodes),
	}
	if c.HasCategory() {
		d.CategoryLabel = label.MealTypeLabel(c.Category)
	}
	if deps.Blacklist != nil {
		d.IsBlacklisted = deps.Blacklist.IsBlacklisted(c.Name, restaurantID)
	}
	if deps.Favorites != nil {
		d.IsFavorite = deps.Favorites.IsFavorite(c.Name, restaurantID)
	}
	return d
}
