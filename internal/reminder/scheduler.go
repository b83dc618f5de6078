// Package reminder はお気に入りの通知ルールを定期的に照合し、リマインダーを配信する。
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/menuman/internal/metrics"
	"github.com/hitoshi/menuman/internal/model"
	"github.com/hitoshi/menuman/internal/notify"
)

// DefaultInterval は照合の間隔。
const DefaultInterval = time.Minute

// State はスケジューラの状態。
type State string

const (
	// StateIdle は通知が許可されていないか、通知が有効なお気に入りがない。
	StateIdle State = "idle"
	// StateArmed は定期照合が動作している。
	StateArmed State = "armed"
)

// FavoriteSource は通知が有効なお気に入りを返す。
type FavoriteSource interface {
	Reminders() []model.Favorite
}

// PermissionChecker は通知が許可されているかを返す。
type PermissionChecker interface {
	Granted() bool
}

// Scheduler はお気に入りの通知ルールを毎分照合する。
// 同じタグの通知は同じ分のうちに1回だけ送る。
// 未送信の通知は永続化しない。再起動後は次の照合から再開する。
type Scheduler struct {
	favorites FavoriteSource
	perms     PermissionChecker
	notifier  notify.Notifier
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time

	refresh chan struct{}

	mu    sync.Mutex
	state State
	sent  map[string]string // tag → 送信した分
}

// NewScheduler はSchedulerを生成する。locがnilの場合はtime.Localを使う。
func NewScheduler(
	favorites FavoriteSource,
	perms PermissionChecker,
	notifier notify.Notifier,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	loc *time.Location,
) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Scheduler{
		favorites: favorites,
		perms:     perms,
		notifier:  notifier,
		metrics:   mc,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
		refresh:   make(chan struct{}, 1),
		state:     StateIdle,
		sent:      make(map[string]string),
	}
}

// State は現在の状態を返す。
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refresh は状態の再評価を要求する。お気に入りや許可状態が変わったときに呼ぶ。
// ブロックしない。
func (s *Scheduler) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Start は指定間隔で照合を行う。コンテキストがキャンセルされるまで実行を継続する。
// idleからarmedに遷移したときは直ちに1回照合する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リマインダースケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	if s.evaluate() == StateArmed {
		s.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.state = StateIdle
			s.mu.Unlock()
			s.logger.Info("リマインダースケジューラを停止しました")
			return
		case <-s.refresh:
			prev := s.State()
			if s.evaluate() == StateArmed && prev == StateIdle {
				ticker.Reset(interval)
				s.RunOnce(ctx)
			}
		case <-ticker.C:
			if s.evaluate() == StateArmed {
				s.RunOnce(ctx)
			}
		}
	}
}

// evaluate は状態を再計算して返す。
func (s *Scheduler) evaluate() State {
	next := StateIdle
	if s.perms.Granted() && len(s.favorites.Reminders()) > 0 {
		next = StateArmed
	}

	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev != next {
		s.logger.Info("リマインダーの状態が変わりました",
			slog.String("from", string(prev)),
			slog.String("to", string(next)),
		)
	}
	return next
}

// RunOnce は現在時刻で1回照合する。
func (s *Scheduler) RunOnce(ctx context.Context) int {
	return s.CheckAt(ctx, s.now())
}

// CheckAt は指定時刻で照合し、送信した通知の数を返す。
// 時刻と曜日はスケジューラのタイムゾーンで判定する。
func (s *Scheduler) CheckAt(ctx context.Context, now time.Time) int {
	local := now.In(s.loc)
	minute := local.Format("2006-01-02T15:04")

	sent := 0
	for _, fav := range s.favorites.Reminders() {
		if !fav.Notification.Matches(local) {
			continue
		}

		tag := fav.Tag()
		if !s.claim(tag, minute) {
			continue
		}

		n := notify.Notification{
			Title:     "Don't forget: " + fav.Name,
			Body:      "Available at " + fav.RestaurantName,
			Tag:       tag,
			CreatedAt: now,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.metrics.RecordNotification(false)
			s.logger.Error("リマインダーの送信に失敗しました",
				slog.String("tag", tag),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.metrics.RecordNotification(true)
		sent++
	}
	return sent
}

// claim は(tag, minute)の送信権を取得する。同じ分に既に送信済みならfalseを返す。
// 過去の分の記録は取得のたびに捨てる。
func (s *Scheduler) claim(tag, minute string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for t, m := range s.sent {
		if m != minute {
			delete(s.sent, t)
		}
	}
	if s.sent[tag] == minute {
		return false
	}
	s.sent[tag] = minute
	return true
}
