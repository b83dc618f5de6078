package menu

import (
	"encoding/json"
	"strings"

	"github.com/hitoshi/menuman/internal/model"
)

// flatFeed は週次フィード（Sodexo）のトップレベル。
type flatFeed struct {
	TimePeriod looseString        `json:"timeperiod"`
	MealDates  looseList[flatDay] `json:"mealdates"`
}

type flatDay struct {
	Date    looseString             `json:"date"`
	Courses orderedObject[flatCourse] `json:"courses"`
}

type flatCourse struct {
	TitleFI            looseString  `json:"title_fi"`
	TitleEN            looseString  `json:"title_en"`
	Category           looseString  `json:"category"`
	MealCategory       looseString  `json:"meal_category"`
	DietCodes          looseString  `json:"dietcodes"`
	AdditionalDietInfo flatDietInfo `json:"additionalDietInfo"`
}

type flatDietInfo struct {
	Allergens looseString `json:"allergens"`
}

func (d *flatDietInfo) UnmarshalJSON(data []byte) error {
	type plain flatDietInfo
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*d = flatDietInfo{}
		return nil
	}
	*d = flatDietInfo(p)
	return nil
}

// ParseFlatWeeklyFeed は週次フィードから今日のコース一覧を取り出す。
// todayWeekdayは英語の曜日名（例: "Wednesday"）で、大文字小文字を区別せずに照合する。
// 一致する日がなければ先頭の日を使う。構造が想定外の場合は空の結果を返す。
func ParseFlatWeeklyFeed(raw []byte, todayWeekday string, lang model.Language) model.NormalizedMenu {
	result := emptyMenu()

	var feed flatFeed
	if err := json.Unmarshal(raw, &feed); err != nil && !isFieldTypeError(err) {
		return result
	}
	if len(feed.MealDates) == 0 {
		return result
	}

	day := feed.MealDates[0]
	for _, d := range feed.MealDates {
		if strings.EqualFold(string(d.Date), todayWeekday) {
			day = d
			break
		}
	}

	result.DisplayDate = string(day.Date)
	result.IsToday = strings.EqualFold(string(day.Date), todayWeekday)

	for _, c := range day.Courses {
		name := textSanitizer.Sanitize(pickTitle(c, lang))
		if strings.TrimSpace(name) == "" {
			continue
		}

		category := textSanitizer.Sanitize(string(c.Category))
		if strings.TrimSpace(category) == "" {
			category = textSanitizer.Sanitize(string(c.MealCategory))
		}
		if strings.TrimSpace(category) == "" {
			category = ""
		}

		result.Courses = append(result.Courses, model.Course{
			Name:      name,
			Category:  category,
			DietCodes: ParseDietCodes(string(c.DietCodes)),
			Allergens: strings.TrimSpace(textSanitizer.Sanitize(string(c.AdditionalDietInfo.Allergens))),
		})
	}

	return result
}

// pickTitle は表示言語のタイトルを優先し、空ならもう一方の言語にフォールバックする。
func pickTitle(c flatCourse, lang model.Language) string {
	primary, secondary := string(c.TitleEN), string(c.TitleFI)
	if lang == model.LanguageFinnish {
		primary, secondary = secondary, primary
	}
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return secondary
}
