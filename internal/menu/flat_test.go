package menu

import (
	"slices"
	"testing"

	"github.com/hitoshi/menuman/internal/model"
)

const sampleFlatFeed = `{
  "timeperiod": "26.1. - 1.2.",
  "mealdates": [
    {
      "date": "Monday",
      "courses": {
        "1": {"title_fi": "Maanantain keitto", "title_en": "Monday soup", "category": "Soup", "dietcodes": "G, L"}
      }
    },
    {
      "date": "Wednesday",
      "courses": {
        "3": {"title_fi": "Kasvispihvi", "title_en": "Veggie patty", "category": "Kasvislounas", "dietcodes": "Veg, *, G, SIS.ALLERGEENIT, G", "additionalDietInfo": {"allergens": " Celery "}},
        "1": {"title_fi": "Lohikeitto", "title_en": "", "category": "", "meal_category": "Keitto", "dietcodes": "L"},
        "2": {"title_fi": "", "title_en": "", "category": "Lounas", "dietcodes": "G"},
        "4": {"title_fi": "Pizza", "title_en": "Pizza <b>Margherita</b>", "category": "Pizza", "dietcodes": 12, "additionalDietInfo": "broken"}
      }
    }
  ]
}`

func TestParseFlatWeeklyFeed_SelectsTodayCaseInsensitive(t *testing.T) {
	got := ParseFlatWeeklyFeed([]byte(sampleFlatFeed), "wednesday", model.LanguageEnglish)

	if got.DisplayDate != "Wednesday" {
		t.Errorf("DisplayDate = %q, want %q", got.DisplayDate, "Wednesday")
	}
	if !got.IsToday {
		t.Error("IsToday should be true when weekday matches")
	}
	if len(got.Courses) != 3 {
		t.Fatalf("len(Courses) = %d, want 3: %+v", len(got.Courses), got.Courses)
	}
}

func TestParseFlatWeeklyFeed_PreservesDocumentOrder(t *testing.T) {
	got := ParseFlatWeeklyFeed([]byte(sampleFlatFeed), "Wednesday", model.LanguageEnglish)

	var names []string
	for _, c := range got.Courses {
		names = append(names, c.Name)
	}
	want := []string{"Veggie patty", "Lohikeitto", "Pizza Margherita"}
	if !slices.Equal(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestParseFlatWeeklyFeed_CourseFields(t *testing.T) {
	got := ParseFlatWeeklyFeed([]byte(sampleFlatFeed), "Wednesday", model.LanguageEnglish)
	if len(got.Courses) != 3 {
		t.Fatalf("len(Courses) = %d, want 3", len(got.Courses))
	}

	patty := got.Courses[0]
	if patty.Category != "Kasvislounas" {
		t.Errorf("Category = %q, want Kasvislounas", patty.Category)
	}
	if !slices.Equal(patty.DietCodes, []string{"Veg", "G"}) {
		t.Errorf("DietCodes = %v, want [Veg G]", patty.DietCodes)
	}
	if patty.Allergens != "Celery" {
		t.Errorf("Allergens = %q, want Celery", patty.Allergens)
	}

	soup := got.Courses[1]
	if soup.Category != "Keitto" {
		t.Errorf("meal_category へのフォールバック: Category = %q, want Keitto", soup.Category)
	}

	pizza := got.Courses[2]
	if len(pizza.DietCodes) != 1 || pizza.DietCodes[0] != "12" {
		t.Errorf("数値のdietcodesは文字列として扱う: got %v", pizza.DietCodes)
	}
	if pizza.Allergens != "" {
		t.Errorf("不正なadditionalDietInfoは無視する: got %q", pizza.Allergens)
	}
}

func TestParseFlatWeeklyFeed_LanguageFallback(t *testing.T) {
	fi := ParseFlatWeeklyFeed([]byte(sampleFlatFeed), "Wednesday", model.LanguageFinnish)
	if fi.Courses[0].Name != "Kasvispihvi" {
		t.Errorf("fi name = %q, want Kasvispihvi", fi.Courses[0].Name)
	}

	en := ParseFlatWeeklyFeed([]byte(sampleFlatFeed), "Wednesday", model.LanguageEnglish)
	if en.Courses[1].Name != "Lohikeitto" {
		t.Errorf("英語タイトルが空ならフィンランド語を使う: got %q", en.Courses[1].Name)
	}
}

func TestParseFlatWeeklyFeed_FallsBackToFirstDay(t *testing.T) {
	got := ParseFlatWeeklyFeed([]byte(sampleFlatFeed), "Sunday", model.LanguageEnglish)

	if got.DisplayDate != "Monday" {
		t.Errorf("DisplayDate = %q, want Monday", got.DisplayDate)
	}
	if got.IsToday {
		t.Error("IsToday should be false for fallback day")
	}
	if len(got.Courses) != 1 || got.Courses[0].Name != "Monday soup" {
		t.Errorf("Courses = %+v", got.Courses)
	}
}

func TestParseFlatWeeklyFeed_MalformedInput(t *testing.T) {
	inputs := map[string]string{
		"空":           ``,
		"不正なJSON":     `{"mealdates": [`,
		"配列":           `[1, 2, 3]`,
		"mealdatesが文字列": `{"mealdates": "none"}`,
		"coursesが配列":   `{"mealdates": [{"date": "Monday", "courses": []}]}`,
		"日が文字列":        `{"mealdates": ["Monday"]}`,
		"null":         `null`,
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got := ParseFlatWeeklyFeed([]byte(in), "Monday", model.LanguageEnglish)
			if got.Courses == nil {
				t.Fatal("Courses should be an empty slice, not nil")
			}
			if len(got.Courses) != 0 {
				t.Errorf("len(Courses) = %d, want 0", len(got.Courses))
			}
		})
	}
}
