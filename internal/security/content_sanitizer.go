package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は上流フィードの文字列からマークアップを除去するインターフェース。
// 料理名、カテゴリ名、アレルゲン表記に使用される。
type TextSanitizerService interface {
	// Sanitize は全てのタグを除去したプレーンテキストを返す。
	// HTMLエンティティは元の文字に戻す。同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyを保持する。
// Policyはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はマークアップを除去する。
// StrictPolicyは出力をエスケープするため、テキストとして扱えるようにアンエスケープする。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return html.UnescapeString(s.policy.Sanitize(raw))
}
