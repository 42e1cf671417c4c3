package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leonmuriithi/transit-core-poc/internal/pkg/logger"
)

// BookingReleaser は期限切れ予約のロックを解放するインターフェース
type BookingReleaser interface {
	ReleaseExpiredBookings(ctx context.Context) (int, error)
}

// ExpiredLockSweeper はロック保持期限切れの座席区間を解放するワーカー
// 決済失敗通知と同じ冪等な解放経路を使うため、両者が競合しても安全
type ExpiredLockSweeper struct {
	bookingService BookingReleaser
	interval       time.Duration
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewExpiredLockSweeper は新しいスイーパーを作成
func NewExpiredLockSweeper(bs BookingReleaser, interval time.Duration) *ExpiredLockSweeper {
	return &ExpiredLockSweeper{
		bookingService: bs,
		interval:       interval,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start はスイーパーを開始
func (s *ExpiredLockSweeper) Start(ctx context.Context) {
	logger.Info("期限切れロックスイーパー開始",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れロックスイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("期限切れロックスイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (s *ExpiredLockSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep は期限切れ予約を解放
func (s *ExpiredLockSweeper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れロックのスイープ開始")

	count, err := s.bookingService.ReleaseExpiredBookings(ctx)
	if err != nil {
		log.Error("期限切れロックのスイープ失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("期限切れロックを解放", zap.Int("count", count))
	} else {
		log.Debug("期限切れロックなし")
	}
}
