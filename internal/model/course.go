package model

// Course はプロバイダに依存しない正規化済みのメニュー1品を表す。
// Nameは常に空白以外の文字を含む。
type Course struct {
	Name      string   `json:"name"`
	Category  string   `json:"category,omitempty"`
	DietCodes []string `json:"diet_codes"`
	Allergens string   `json:"allergens,omitempty"`
}

// HasCategory はカテゴリが設定されているかを返す。
func (c Course) HasCategory() bool {
	return c.Category != ""
}

// NormalizedMenu はメニュー正規化の結果を表す。
type NormalizedMenu struct {
	Courses     []Course `json:"courses"`
	DisplayDate string   `json:"display_date"`
	IsToday     bool     `json:"is_today"`
}

// FeedKind は上流フィードの形式を表すタグ。
type FeedKind int

const (
	// FeedFlatWeekly は曜日ごとのコース辞書を持つ週次フィード。
	FeedFlatWeekly FeedKind = iota
	// FeedNestedKitchen はキッチン/メニュー種別/日/食事オプションの入れ子フィード。
	FeedNestedKitchen
)

// String はFeedKindの文字列表現を返す。
func (k FeedKind) String() string {
	switch k {
	case FeedFlatWeekly:
		return "flat_weekly"
	case FeedNestedKitchen:
		return "nested_kitchen"
	default:
		return "unknown"
	}
}

// Language はメニュー表示言語。
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageFinnish Language = "fi"
)

// ParseLanguage は文字列を表示言語に変換する。未対応の値はfallbackを返す。
func ParseLanguage(s string, fallback Language) Language {
	switch Language(s) {
	case LanguageEnglish, LanguageFinnish:
		return Language(s)
	default:
		return fallback
	}
}
