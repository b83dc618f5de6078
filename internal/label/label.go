// Package label は食事制限コードとメニュー種別の表示ラベルを提供する。
package label

import (
	"slices"
	"strings"
)

// dietLabels は食事制限コードの表示ラベル。大文字小文字を区別する（Veg と VEG は別物）。
var dietLabels = map[string]string{
	"G":   "Gluten-free",
	"L":   "Lactose-free",
	"M":   "Milk-free",
	"VL":  "Low lactose",
	"Veg": "Vegan",
	"VEG": "Vegetarian",
	"Mu":  "Contains Mustard",
}

// mealTypeLabels は上流のカテゴリ名から表示名への対応表。
var mealTypeLabels = map[string]string{
	"Lounas":           "Lunch",
	"Kasvislounas":     "Vegetarian Lunch",
	"Vegan lounas":     "Vegan Lunch",
	"Jälkiruoka":       "Dessert",
	"Salaatti":         "Salad",
	"Keitto":           "Soup",
	"Erikoisannos":     "Special",
	"Koko Linja":       "Main Line",
	"Salaattilinjasto": "Salad Bar",
	"Grill":            "Grill",
	"Deli":             "Deli",
	"Dessert":          "Dessert",
	"Pizza":            "Pizza",
	"Pasta":            "Pasta",
	"Wok":              "Wok",
	"Soup":             "Soup",
}

// DietLabel はコードをトリムしてからラベルを引く。
func DietLabel(code string) (string, bool) {
	l, ok := dietLabels[strings.TrimSpace(code)]
	return l, ok
}

// DietLabels は既知のコードのラベルを入力順で返す。未知のコードは読み飛ばす。
func DietLabels(codes []string) []string {
	labels := make([]string, 0, len(codes))
	for _, c := range codes {
		if l, ok := DietLabel(c); ok {
			labels = append(labels, l)
		}
	}
	return labels
}

// MealTypeLabel はカテゴリの表示名を返す。対応表にない場合はそのまま返す。
func MealTypeLabel(mealType string) string {
	if l, ok := mealTypeLabels[mealType]; ok {
		return l
	}
	return mealType
}

// PredefinedMealTypes は対応表に登録済みのカテゴリ名を昇順で返す。
func PredefinedMealTypes() []string {
	types := make([]string, 0, len(mealTypeLabels))
	for t := range mealTypeLabels {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
