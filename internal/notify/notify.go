// Package notify はリマインダー通知の配信先を提供する。
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Notification は配信する通知1件を表す。
// 配信先は同じTagの通知を積み重ねずに置き換える。
type Notification struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier は通知の配信先を表す。
type Notifier interface {
	// RequestPermission は通知の許可を求める。許可された場合はtrueを返す。
	RequestPermission(ctx context.Context) (bool, error)

	// Notify は通知を1件配信する。
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier は通知を構造化ログとして出力する。常に許可を返す。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

var _ Notifier = (*LogNotifier)(nil)

// RequestPermission は常にtrueを返す。
func (l *LogNotifier) RequestPermission(_ context.Context) (bool, error) {
	return true, nil
}

// Notify は通知をINFOレベルでログに出力する。
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info("notification",
		slog.String("title", n.Title),
		slog.String("body", n.Body),
		slog.String("tag", n.Tag),
	)
	return nil
}

// Multi は複数の配信先に通知を配る。
type Multi []Notifier

var _ Notifier = Multi(nil)

// RequestPermission は全ての配信先に許可を求め、1つでも許可されればtrueを返す。
// 全ての配信先がエラーを返した場合のみエラーを返す。
func (m Multi) RequestPermission(ctx context.Context) (bool, error) {
	granted := false
	var errs []error
	for _, n := range m {
		ok, err := n.RequestPermission(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		granted = granted || ok
	}
	if !granted && len(errs) > 0 && len(errs) == len(m) {
		return false, errors.Join(errs...)
	}
	return granted, nil
}

// Notify は全ての配信先に通知を配る。失敗した配信先のエラーはまとめて返す。
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, child := range m {
		if err := child.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
