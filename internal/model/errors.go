// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, menu, preference, notification, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRestaurantNotFound      = "RESTAURANT_NOT_FOUND"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeNameRequired            = "NAME_REQUIRED"
	ErrCodeInvalidNotificationTime = "INVALID_NOTIFICATION_TIME"
	ErrCodeInvalidDayOfWeek        = "INVALID_DAY_OF_WEEK"
	ErrCodeFavoriteNotFound        = "FAVORITE_NOT_FOUND"
	ErrCodeBlacklistNotFound       = "BLACKLIST_NOT_FOUND"
	ErrCodeUpstreamFailed          = "UPSTREAM_FAILED"
	ErrCodeUnknownProvider         = "UNKNOWN_PROVIDER"
	ErrCodeInvalidURL              = "INVALID_URL"
	ErrCodeInternal                = "INTERNAL_ERROR"
)

// NewRestaurantNotFoundError はレストラン未検出エラーを生成する。
func NewRestaurantNotFoundError(restaurantID string) *APIError {
	return &APIError{
		Code:     ErrCodeRestaurantNotFound,
		Message:  fmt.Sprintf("指定されたレストランが見つかりません: %s", restaurantID),
		Category: "menu",
		Action:   "レストラン一覧からIDを確認してください。",
	}
}

// NewInvalidRequestError は不正なリクエストボディのエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}

// NewNameRequiredError は料理名が空の場合のエラーを生成する。
func NewNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeNameRequired,
		Message:  "料理名とレストランIDは必須です。",
		Category: "validation",
		Action:   "name と restaurant_id を指定してください。",
	}
}

// NewInvalidNotificationTimeError は通知時刻の形式が不正な場合のエラーを生成する。
func NewInvalidNotificationTimeError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidNotificationTime,
		Message:  fmt.Sprintf("無効な通知時刻です: %q", value),
		Category: "validation",
		Action:   "通知時刻は HH:MM 形式（00:00〜23:59）で指定してください。",
	}
}

// NewInvalidDayOfWeekError は曜日が範囲外の場合のエラーを生成する。
func NewInvalidDayOfWeekError(day int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDayOfWeek,
		Message:  fmt.Sprintf("無効な曜日です: %d", day),
		Category: "validation",
		Action:   "曜日は 0（日曜）〜6（土曜）の範囲で指定してください。",
	}
}

// NewFavoriteNotFoundError はお気に入り未登録エラーを生成する。
func NewFavoriteNotFoundError(restaurantID, name string) *APIError {
	return &APIError{
		Code:     ErrCodeFavoriteNotFound,
		Message:  fmt.Sprintf("お気に入りが見つかりません: %s / %s", restaurantID, name),
		Category: "preference",
		Action:   "先にお気に入りに追加してください。",
	}
}

// NewBlacklistNotFoundError はブラックリスト未登録エラーを生成する。
func NewBlacklistNotFoundError(restaurantID, name string) *APIError {
	return &APIError{
		Code:     ErrCodeBlacklistNotFound,
		Message:  fmt.Sprintf("非表示リストに登録されていません: %s / %s", restaurantID, name),
		Category: "preference",
		Action:   "非表示リストの一覧を確認してください。",
	}
}

// NewUpstreamFailedError は上流メニューAPIの取得失敗エラーを生成する。
func NewUpstreamFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("メニューの取得に失敗しました: %s", reason),
		Category: "menu",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnknownProviderError は未対応のプロバイダのエラーを生成する。
func NewUnknownProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProvider,
		Message:  fmt.Sprintf("未対応のメニュープロバイダです: %s", provider),
		Category: "system",
		Action:   "レストラン定義を確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録し、messageには利用者向けの説明を渡す。
func NewInternalError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  message,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。解決しない場合は設定の保存先と上流APIの状態を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "公開されている http:// または https:// のURLを指定してください。",
	}
}
