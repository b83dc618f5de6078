// Package menu は上流プロバイダのメニューフィードを共通のコースモデルに正規化する。
//
// 2種類のフィード形式（週次フィードと入れ子のキッチンフィード）はmodel.FeedKindで
// 区別し、Normalizeで振り分ける。どの関数も不正な入力に対してpanicやエラーを返さず、
// 空の結果を返す。
package menu

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/security"
)

var textSanitizer security.TextSanitizerService = security.NewTextSanitizer()

// Options は正規化時の基準時刻と表示言語を指定する。
// Nowはメニュー提供地のロケーションに変換済みであること。
type Options struct {
	Now      time.Time
	Language model.Language
}

// Normalize はフィード形式に応じたパーサーで生データを正規化する。
func Normalize(kind model.FeedKind, raw []byte, opts Options) model.NormalizedMenu {
	switch kind {
	case model.FeedFlatWeekly:
		return ParseFlatWeeklyFeed(raw, opts.Now.Weekday().String(), opts.Language)
	case model.FeedNestedKitchen:
		return ParseNestedKitchenFeed(raw, DateNumber(opts.Now))
	default:
		return emptyMenu()
	}
}

func emptyMenu() model.NormalizedMenu {
	return model.NormalizedMenu{Courses: []model.Course{}}
}

// ParseDietCodes はカンマ区切りの食事制限コードを分解する。
// 空要素、プレースホルダ "*"、"SIS." で始まるトークンを除き、重複は最初の出現のみ残す。
func ParseDietCodes(s string) []string {
	codes := []string{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || tok == "*" || strings.HasPrefix(tok, "SIS.") {
			continue
		}
		if slices.Contains(codes, tok) {
			continue
		}
		codes = append(codes, tok)
	}
	return codes
}

// ExtractAllergens は原材料テキストから <strong>(...)</strong> で囲まれたアレルゲンを取り出し、
// 重複を除いて ", " で連結する。該当がなければ空文字列を返す。
func ExtractAllergens(ingredients string) string {
	if ingredients == "" {
		return ""
	}

	var allergens []string
	z := html.NewTokenizer(strings.NewReader(ingredients))
	depth := 0
	var span strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(allergens, ", ")
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "strong" {
				if depth == 0 {
					span.Reset()
				}
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "strong" && depth > 0 {
				depth--
				if depth == 0 {
					allergens = appendAllergenSpan(allergens, span.String())
				}
			}
		case html.TextToken:
			if depth > 0 {
				span.Write(z.Text())
			}
		}
	}
}

// appendAllergenSpan は "(milk, gluten)" 形式のスパンを分解して追加する。
// 括弧で囲まれていないスパンは無視する。
func appendAllergenSpan(allergens []string, span string) []string {
	span = strings.TrimSpace(span)
	if len(span) < 3 || !strings.HasPrefix(span, "(") || !strings.HasSuffix(span, ")") {
		return allergens
	}
	inner := span[1 : len(span)-1]
	if strings.Contains(inner, ")") {
		return allergens
	}
	for _, a := range strings.Split(inner, ",") {
		a = strings.TrimSpace(a)
		if a == "" || slices.Contains(allergens, a) {
			continue
		}
		allergens = append(allergens, a)
	}
	return allergens
}
