package security

import "testing"

func TestTextSanitizer_StripsMarkup(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Chicken curry", "Chicken curry"},
		{"タグを除去", "Chicken <b>curry</b>", "Chicken curry"},
		{"scriptを中身ごと除去", "Soup<script>alert(1)</script>", "Soup"},
		{"エンティティを戻す", "Fish &amp; chips", "Fish & chips"},
		{"アンパサンドを保持", "Fish & chips", "Fish & chips"},
		{"ウムラウトを保持", "Jälkiruoka", "Jälkiruoka"},
		{"空文字列", "", ""},
		{"タグのみ", "<br/>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := "Pasta <i>carbonara</i> &amp; salad"
	first := s.Sanitize(input)
	if second := s.Sanitize(first); second != first {
		t.Errorf("Sanitize is not idempotent: %q -> %q", first, second)
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizerService = NewTextSanitizer()
}
