package menuview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/menuman/internal/model"
)

// Viewer は当日メニューの取得を表す。
type Viewer interface {
	Today(ctx context.Context, restaurantID string, lang model.Language) (*View, error)
}

var _ Viewer = (*Service)(nil)

// Selection はセッションで選択中のレストランと読み込み状態。
type Selection struct {
	RestaurantID string         `json:"restaurant_id"`
	Language     model.Language `json:"language"`
	Loading      bool           `json:"loading"`
	View         *View          `json:"view,omitempty"`
	Error        error          `json:"-"`
}

// Session は選択中のレストランを1つだけ保持する。
// 選択ごとに世代番号を進め、古い世代の読み込み結果は破棄する。
type Session struct {
	viewer Viewer
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	current Selection
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession はSessionを生成する。
func NewSession(viewer Viewer, logger *slog.Logger) *Session {
	done := make(chan struct{})
	close(done)
	return &Session{viewer: viewer, logger: logger, done: done}
}

// Select はレストランを選択し、バックグラウンドでメニューの読み込みを開始する。
// 読み込みは呼び出し元のキャンセルから切り離し、次のSelectで中断する。
func (s *Session) Select(ctx context.Context, restaurantID string, lang model.Language) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.current = Selection{RestaurantID: restaurantID, Language: lang, Loading: true}
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		view, err := s.viewer.Today(loadCtx, restaurantID, lang)
		s.apply(gen, view, err)
	}()
}

func (s *Session) apply(gen uint64, view *View, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.logger.Debug("古い選択の読み込み結果を破棄しました",
			slog.String("restaurant_id", s.current.RestaurantID),
			slog.Uint64("generation", gen),
		)
		return
	}
	s.current.Loading = false
	s.current.View = view
	s.current.Error = err
}

// Current は現在の選択状態を返す。
func (s *Session) Current() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Wait は現在の選択の読み込みが終わるまで待つ。
// 待機中に選択が変わった場合は新しい選択の完了まで待つ。
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		gen, done := s.gen, s.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.Lock()
		same := gen == s.gen
		s.mu.Unlock()
		if same {
			return nil
		}
	}
}
