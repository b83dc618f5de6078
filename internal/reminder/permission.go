package reminder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/notify"
)

// PermissionState は通知の許可状態。
type PermissionState string

const (
	PermissionDefault PermissionState = "default"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// Permissions は通知の許可状態を管理する。
// 配信先への問い合わせは1回だけ行い、結果を保持する。Resetで未確認に戻す。
type Permissions struct {
	notifier notify.Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	state    PermissionState
	onChange []func()
}

// NewPermissions はPermissionsを生成する。
func NewPermissions(notifier notify.Notifier, logger *slog.Logger) *Permissions {
	return &Permissions{
		notifier: notifier,
		logger:   logger,
		state:    PermissionDefault,
	}
}

// OnChange は許可状態が変わるたびに呼ばれるコールバックを登録する。
func (p *Permissions) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// State は現在の許可状態を返す。
func (p *Permissions) State() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Granted は通知が許可されているかを返す。
func (p *Permissions) Granted() bool {
	return p.State() == PermissionGranted
}

// Request は通知の許可を求める。確認済みの場合は保持している状態を返す。
// 配信先がエラーを返した場合は拒否として扱う。
func (p *Permissions) Request(ctx context.Context) PermissionState {
	p.mu.Lock()
	if p.state != PermissionDefault {
		st := p.state
		p.mu.Unlock()
		return st
	}
	p.mu.Unlock()

	granted, err := p.notifier.RequestPermission(ctx)
	if err != nil {
		p.logger.Warn("通知の許可確認に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	st := PermissionDenied
	if granted && err == nil {
		st = PermissionGranted
	}
	p.set(st)
	return st
}

// Reset は許可状態を未確認に戻す。
func (p *Permissions) Reset() {
	p.set(PermissionDefault)
}

func (p *Permissions) set(st PermissionState) {
	p.mu.Lock()
	changed := p.state != st
	p.state = st
	hooks := append([]func(){}, p.onChange...)
	p.mu.Unlock()

	if changed {
		for _, fn := range hooks {
			fn()
		}
	}
}

// EnsureForRule は通知を有効にするルールについて、必要なら許可を求める。
// 許可されなかった場合は通知を無効にしたデフォルトのルールを返し、deniedをtrueにする。
// 通知を有効にしないルールはそのまま返す。
func (p *Permissions) EnsureForRule(ctx context.Context, rule model.NotificationRule) (model.NotificationRule, bool) {
	if !rule.Enabled {
		return rule, false
	}
	if p.Request(ctx) == PermissionGranted {
		return rule, false
	}
	return model.DefaultNotificationRule(), true
}
