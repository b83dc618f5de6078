package menu

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/menuman/internal/model"
)

// nestedFeed は日付ごとに1品だけを持つ入れ子フィードを組み立てる。
func nestedFeed(menus ...[]int) string {
	var menuJSON []string
	for _, dates := range menus {
		var days []string
		for _, d := range dates {
			days = append(days, fmt.Sprintf(
				`{"date": %d, "mealoptions": [{"name": "LUNCH", "menuItems": [{"name": "Dish %d", "diets": "G"}]}]}`, d, d))
		}
		menuJSON = append(menuJSON, `{"days": [`+strings.Join(days, ",")+`]}`)
	}
	return `[{"menuTypes": [{"menus": [` + strings.Join(menuJSON, ",") + `]}]}]`
}

func TestParseNestedKitchenFeed_EarliestUpcomingDay(t *testing.T) {
	raw := nestedFeed([]int{20260128, 20260129, 20260131})

	got := ParseNestedKitchenFeed([]byte(raw), 20260130)

	if got.IsToday {
		t.Error("IsToday should be false")
	}
	if got.DisplayDate != "Saturday, 31 January" {
		t.Errorf("DisplayDate = %q, want %q", got.DisplayDate, "Saturday, 31 January")
	}
	if len(got.Courses) != 1 || got.Courses[0].Name != "Dish 20260131" {
		t.Errorf("Courses = %+v", got.Courses)
	}
}

func TestParseNestedKitchenFeed_ExactToday(t *testing.T) {
	raw := nestedFeed([]int{20260131, 20260130, 20260129})

	got := ParseNestedKitchenFeed([]byte(raw), 20260130)

	if !got.IsToday {
		t.Error("IsToday should be true")
	}
	if got.DisplayDate != "Friday, 30 January" {
		t.Errorf("DisplayDate = %q", got.DisplayDate)
	}
	if got.Courses[0].Name != "Dish 20260130" {
		t.Errorf("Name = %q, want Dish 20260130", got.Courses[0].Name)
	}
}

func TestParseNestedKitchenFeed_UpcomingIgnoresListOrder(t *testing.T) {
	raw := nestedFeed([]int{20260205, 20260131, 20260202})

	got := ParseNestedKitchenFeed([]byte(raw), 20260130)

	if got.Courses[0].Name != "Dish 20260131" {
		t.Errorf("最も早い未来日を選ぶべき: got %q", got.Courses[0].Name)
	}
}

func TestParseNestedKitchenFeed_AllPastFallsBackToFirst(t *testing.T) {
	raw := nestedFeed([]int{20260120, 20260125})

	got := ParseNestedKitchenFeed([]byte(raw), 20260130)

	if got.DisplayDate != "Tuesday, 20 January" {
		t.Errorf("DisplayDate = %q, want %q", got.DisplayDate, "Tuesday, 20 January")
	}
	if got.Courses[0].Name != "Dish 20260120" {
		t.Errorf("Name = %q", got.Courses[0].Name)
	}
}

func TestParseNestedKitchenFeed_FirstResolvedDayFixesDate(t *testing.T) {
	raw := nestedFeed([]int{20260131}, []int{20260130})

	got := ParseNestedKitchenFeed([]byte(raw), 20260130)

	if got.IsToday {
		t.Error("先に解決した日（1/31）が日付を決めるため IsToday は false")
	}
	if got.DisplayDate != "Saturday, 31 January" {
		t.Errorf("DisplayDate = %q", got.DisplayDate)
	}
	names := []string{got.Courses[0].Name, got.Courses[1].Name}
	if !slices.Equal(names, []string{"Dish 20260131", "Dish 20260130"}) {
		t.Errorf("後続メニューのコースも含めるべき: %v", names)
	}
}

func TestParseNestedKitchenFeed_ItemFields(t *testing.T) {
	raw := `[{"menuTypes": [{"menus": [{"days": [{"date": 20260130, "mealoptions": [
		{"name": "VEGETARIAN LUNCH", "menuItems": [
			{"name": "Lentil stew", "diets": "VEG, *, SIS. KANAA, L, VEG", "ingredients": "Lentils <strong>(celery, mustard)</strong>, tomato <strong>(celery)</strong>"},
			{"name": "", "diets": "G"},
			{"name": "   "},
			{"diets": "G"}
		]},
		{"menuItems": [{"name": "Bread"}]}
	]}]}]}]},
	{"menuTypes": [{"menus": [{"days": [{"date": 20260130, "mealoptions": [{"name": "X", "menuItems": [{"name": "Second kitchen"}]}]}]}]}]}]`

	got := ParseNestedKitchenFeed([]byte(raw), 20260130)

	if len(got.Courses) != 2 {
		t.Fatalf("len(Courses) = %d, want 2: %+v", len(got.Courses), got.Courses)
	}

	stew := got.Courses[0]
	if stew.Category != "VEGETARIAN LUNCH" {
		t.Errorf("Category = %q", stew.Category)
	}
	if !slices.Equal(stew.DietCodes, []string{"VEG", "L"}) {
		t.Errorf("DietCodes = %v, want [VEG L]", stew.DietCodes)
	}
	if stew.Allergens != "celery, mustard" {
		t.Errorf("Allergens = %q, want %q", stew.Allergens, "celery, mustard")
	}

	bread := got.Courses[1]
	if bread.HasCategory() {
		t.Errorf("名前のない食事オプションはカテゴリなし: got %q", bread.Category)
	}
	if len(bread.DietCodes) != 0 {
		t.Errorf("DietCodes = %v, want empty", bread.DietCodes)
	}
}

func TestParseNestedKitchenFeed_MalformedInput(t *testing.T) {
	inputs := map[string]string{
		"空配列":         `[]`,
		"オブジェクト":      `{"menuTypes": []}`,
		"不正なJSON":     `[{"menuTypes": [`,
		"menuTypesなし": `[{}]`,
		"daysが文字列":    `[{"menuTypes": [{"menus": [{"days": "soon"}]}]}]`,
		"数値":          `42`,
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got := ParseNestedKitchenFeed([]byte(in), 20260130)
			if got.Courses == nil || len(got.Courses) != 0 {
				t.Errorf("Courses = %#v, want empty slice", got.Courses)
			}
			if got.DisplayDate != "" || got.IsToday {
				t.Errorf("date metadata should be empty: %+v", got)
			}
		})
	}
}

func TestParseNestedKitchenFeed_StringDate(t *testing.T) {
	raw := `[{"menuTypes": [{"menus": [{"days": [{"date": "20260130", "mealoptions": [{"name": "L", "menuItems": [{"name": "Soup"}]}]}]}]}]}]`

	got := ParseNestedKitchenFeed([]byte(raw), 20260130)
	if !got.IsToday {
		t.Error("文字列の日付も数値として扱うべき")
	}
}

func TestExtractAllergens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"基本", "Contains <strong>(milk, gluten)</strong> and nuts", "milk, gluten"},
		{"重複除去", "<strong>(milk)</strong> x <strong>(milk, egg)</strong>", "milk, egg"},
		{"括弧なしは無視", "<strong>milk</strong>", ""},
		{"strongなし", "(milk, gluten)", ""},
		{"空", "", ""},
		{"空要素", "<strong>(milk, , egg)</strong>", "milk, egg"},
		{"エンティティ", "<strong>(s&auml;ilyke)</strong>", "säilyke"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAllergens(tt.input); got != tt.want {
				t.Errorf("ExtractAllergens(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDietCodes_ExcludesPlaceholders(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"G, L, *", []string{"G", "L"}},
		{"SIS.A, SIS. B,M", []string{"M"}},
		{"G,G,L,G", []string{"G", "L"}},
		{"", []string{}},
		{" , ,", []string{}},
	}

	for _, tt := range tests {
		got := ParseDietCodes(tt.input)
		if !slices.Equal(got, tt.want) {
			t.Errorf("ParseDietCodes(%q) = %v, want %v", tt.input, got, tt.want)
		}
		for _, c := range got {
			if c == "*" || strings.HasPrefix(c, "SIS.") {
				t.Errorf("placeholder %q leaked", c)
			}
		}
	}
}

func TestFormatDisplayDate(t *testing.T) {
	if got := FormatDisplayDate(20260131); got != "Saturday, 31 January" {
		t.Errorf("got %q", got)
	}
	if got := FormatDisplayDate(0); got != "" {
		t.Errorf("0 should format as empty, got %q", got)
	}
}

func TestNormalize_DispatchesByKind(t *testing.T) {
	now := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC) // Wednesday

	flat := Normalize(model.FeedFlatWeekly, []byte(sampleFlatFeed), Options{Now: now, Language: model.LanguageEnglish})
	if flat.DisplayDate != "Wednesday" || !flat.IsToday {
		t.Errorf("flat = %+v", flat)
	}

	nested := Normalize(model.FeedNestedKitchen, []byte(nestedFeed([]int{20260128})), Options{Now: now})
	if !nested.IsToday || nested.DisplayDate != "Wednesday, 28 January" {
		t.Errorf("nested = %+v", nested)
	}

	unknown := Normalize(model.FeedKind(99), []byte(sampleFlatFeed), Options{Now: now})
	if len(unknown.Courses) != 0 {
		t.Error("unknown kind should yield empty result")
	}
}
