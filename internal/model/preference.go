package model

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// PreferenceKey はブラックリストとお気に入りの複合キーを生成する。
// 同じ料理名でもレストランごとに独立して登録できる。
func PreferenceKey(restaurantID, name string) string {
	return restaurantID + ":" + strings.ToLower(strings.TrimSpace(name))
}

// BlacklistEntry は非表示にした料理の記録を表す。
type BlacklistEntry struct {
	Name           string    `json:"name"`
	RestaurantID   string    `json:"restaurant_id"`
	RestaurantName string    `json:"restaurant_name"`
	Reason         string    `json:"reason,omitempty"`
	BlacklistedAt  time.Time `json:"blacklisted_at"`
}

// NotificationRule はお気に入りのリマインダー設定を表す。
// DaysOfWeekは0（日曜）〜6（土曜）。
type NotificationRule struct {
	Enabled    bool   `json:"enabled"`
	Time       string `json:"time"`
	DaysOfWeek []int  `json:"days_of_week"`
}

// DefaultNotificationRule は平日11:00の無効化されたルールを返す。
func DefaultNotificationRule() NotificationRule {
	return NotificationRule{
		Enabled:    false,
		Time:       "11:00",
		DaysOfWeek: []int{1, 2, 3, 4, 5},
	}
}

// Favorite はお気に入り登録した料理を表す。
type Favorite struct {
	Name           string           `json:"name"`
	RestaurantID   string           `json:"restaurant_id"`
	RestaurantName string           `json:"restaurant_name"`
	Category       string           `json:"category,omitempty"`
	Notification   NotificationRule `json:"notification"`
	FavoritedAt    time.Time        `json:"favorited_at"`
}

// Tag は配信層が重複通知を置き換えるためのタグを返す。
func (f Favorite) Tag() string {
	return "favorite-" + f.RestaurantID + "-" + f.Name
}

var notificationTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateNotificationRule はルールを検証し、曜日を重複除去・昇順にした正規形を返す。
func ValidateNotificationRule(rule NotificationRule) (NotificationRule, error) {
	if !notificationTimePattern.MatchString(rule.Time) {
		return rule, NewInvalidNotificationTimeError(rule.Time)
	}

	days := make([]int, 0, len(rule.DaysOfWeek))
	for _, d := range rule.DaysOfWeek {
		if d < 0 || d > 6 {
			return rule, NewInvalidDayOfWeekError(d)
		}
		if !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)

	return NotificationRule{
		Enabled:    rule.Enabled,
		Time:       rule.Time,
		DaysOfWeek: days,
	}, nil
}

// Matches は指定時刻（呼び出し側のロケーション）がルールに一致するかを返す。
func (r NotificationRule) Matches(now time.Time) bool {
	if !r.Enabled {
		return false
	}
	if now.Format("15:04") != r.Time {
		return false
	}
	return slices.Contains(r.DaysOfWeek, int(now.Weekday()))
}
