package menu

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hitoshi/menuman/internal/model"
)

// 入れ子フィード（JAMIX）: kitchens → menuTypes → menus → days → mealoptions → menuItems
type kitchen struct {
	MenuTypes looseList[menuType] `json:"menuTypes"`
}

type menuType struct {
	Menus looseList[kitchenMenu] `json:"menus"`
}

type kitchenMenu struct {
	Days looseList[menuDay] `json:"days"`
}

type menuDay struct {
	Date        looseInt              `json:"date"`
	MealOptions looseList[mealOption] `json:"mealoptions"`
}

type mealOption struct {
	Name      looseString         `json:"name"`
	MenuItems looseList[menuItem] `json:"menuItems"`
}

type menuItem struct {
	Name        looseString `json:"name"`
	Diets       looseString `json:"diets"`
	Ingredients looseString `json:"ingredients"`
}

// ParseNestedKitchenFeed は入れ子フィードから今日（または次の提供日）のコース一覧を取り出す。
// todayDateはYYYYMMDD形式の数値。先頭のキッチンのみを対象にする。
//
// 各メニューの日リストから、todayDateと一致する日、なければtodayDate以降で日付が最も小さい日、
// それもなければ先頭の日を選ぶ。最初に選ばれた日が結果全体のDisplayDateとIsTodayを決める。
func ParseNestedKitchenFeed(raw []byte, todayDate int) model.NormalizedMenu {
	result := emptyMenu()

	var kitchens looseList[kitchen]
	if err := json.Unmarshal(raw, &kitchens); err != nil || len(kitchens) == 0 {
		return result
	}

	dateFixed := false
	for _, mt := range kitchens[0].MenuTypes {
		for _, m := range mt.Menus {
			day, ok := resolveDay(m.Days, todayDate)
			if !ok {
				continue
			}

			if !dateFixed {
				result.DisplayDate = FormatDisplayDate(int(day.Date))
				result.IsToday = int(day.Date) == todayDate
				dateFixed = true
			}

			for _, opt := range day.MealOptions {
				category := textSanitizer.Sanitize(string(opt.Name))
				if strings.TrimSpace(category) == "" {
					category = ""
				}
				for _, it := range opt.MenuItems {
					name := textSanitizer.Sanitize(string(it.Name))
					if strings.TrimSpace(name) == "" {
						continue
					}
					result.Courses = append(result.Courses, model.Course{
						Name:      name,
						Category:  category,
						DietCodes: ParseDietCodes(string(it.Diets)),
						Allergens: ExtractAllergens(string(it.Ingredients)),
					})
				}
			}
		}
	}

	return result
}

// resolveDay は日リストから表示対象の日を選ぶ。リストが空ならokはfalse。
// todayDate以降の日は、リスト内の順序ではなく日付が最も小さいものを選ぶ。
// 日付順に並んだフィードではリストの先頭から探した場合と同じ結果になる。
func resolveDay(days []menuDay, todayDate int) (day menuDay, ok bool) {
	if len(days) == 0 {
		return menuDay{}, false
	}

	next := -1
	for i, d := range days {
		date := int(d.Date)
		if date == todayDate {
			return d, true
		}
		if date >= todayDate && (next < 0 || date < int(days[next].Date)) {
			next = i
		}
	}
	if next >= 0 {
		return days[next], true
	}
	return days[0], true
}

// FormatDisplayDate はYYYYMMDD形式の数値を "Saturday, 31 January" の形式に整形する。
// 範囲外の月日はカレンダー上で繰り上げる。0以下の場合は空文字列を返す。
func FormatDisplayDate(date int) string {
	if date <= 0 {
		return ""
	}
	year := date / 10000
	month := time.Month((date % 10000) / 100)
	day := date % 100
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("Monday, 2 January")
}

// DateNumber は時刻をYYYYMMDD形式の数値に変換する。
func DateNumber(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
