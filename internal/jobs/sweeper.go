package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval は期限切れセッションを掃除する間隔です。
const DefaultSweepInterval = time.Hour

// ExpiredDeleter は期限切れのセッションを削除できるストアです。
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper は一定間隔で期限切れセッションを削除します。
// Redis やメモリのストアは自前で期限を扱うため、PostgreSQL ストアでのみ使います。
type Sweeper struct {
	store    ExpiredDeleter
	interval time.Duration
	logger   *slog.Logger

	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSweeper は Sweeper を作成します。interval が 0 以下の場合は DefaultSweepInterval を使います。
func NewSweeper(store ExpiredDeleter, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start はバックグラウンドの掃除ループを開始します。Close で停止してください。
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

// Close はループを停止し、終了を待ちます。
func (s *Sweeper) Close() error {
	close(s.stopChan)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// Sweep は期限切れセッションを一度だけ削除します。
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to delete expired sessions", "error", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions deleted", "count", n)
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
