package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/booking"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/transaction"
	redisinfra "github.com/leonmuriithi/transit-core-poc/internal/infrastructure/redis"
	"github.com/leonmuriithi/transit-core-poc/internal/locking"
	"github.com/leonmuriithi/transit-core-poc/internal/pkg/logger"
	"github.com/leonmuriithi/transit-core-poc/internal/pkg/metrics"
)

// ErrReconciliationRequired は決済成功の通知が届いた時点でロックが失効していた
// 場合に返される（入金済み・座席喪失。外部での突合対応が必要）
var ErrReconciliationRequired = errors.New("決済結果と座席ロックの状態が一致しません（要突合対応）")

// BookingService は予約ライフサイクルの調整役
// ロックエンジンの confirm / release を呼ぶのはこのサービスだけであり、
// 決済コールバックと期限切れスイープは必ずここを経由して終端状態へ遷移する
type BookingService struct {
	txManager     transaction.Manager
	bookingRepo   booking.Repository
	routeRepo     route.Repository
	inventoryRepo inventory.Repository
	engine        *locking.Engine
	lockManager   *redisinfra.LockManager
	gateway       PaymentGateway
	cache         *redisinfra.AvailabilityCache
	holdWindow    time.Duration
}

func NewBookingService(
	txManager transaction.Manager,
	br booking.Repository,
	rr route.Repository,
	ir inventory.Repository,
	engine *locking.Engine,
	lm *redisinfra.LockManager,
	gateway PaymentGateway,
	cache *redisinfra.AvailabilityCache,
	holdWindow time.Duration,
) *BookingService {
	return &BookingService{
		txManager:     txManager,
		bookingRepo:   br,
		routeRepo:     rr,
		inventoryRepo: ir,
		engine:        engine,
		lockManager:   lm,
		gateway:       gateway,
		cache:         cache,
		holdWindow:    holdWindow,
	}
}

type CreateBookingInput struct {
	UserID         string
	PassengerName  string
	RouteID        string
	TravelDate     string
	SeatNumber     int
	BoardingStopID string
	DropOffStopID  string
	Amount         int
	PayerPhone     string
	IdempotencyKey string
}

// CreateBooking は予約意図を受け付け、区間を解決してロックし、チケットを発行する
// ロック成功後にSTKプッシュを送信する。送信に失敗しても予約は保留のまま残し、
// 期限切れスイープに回収させる（失敗を握りつぶさずログに残す）
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	// 冪等性チェック
	existing, err := s.bookingRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, booking.ErrBookingNotFound) {
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}

	// 区間解決（純粋・決定的。同じ旅程は常に同じロック対象になる）
	rt, err := s.routeRepo.GetByID(ctx, input.RouteID)
	if err != nil {
		return nil, fmt.Errorf("路線取得に失敗: %w", err)
	}
	segments, err := rt.ResolveSegments(input.BoardingStopID, input.DropOffStopID)
	if err != nil {
		return nil, err
	}
	segmentIDs := make([]string, len(segments))
	for i, seg := range segments {
		segmentIDs[i] = seg.ID
	}

	// 分散ロックで同一座席への同時試行のDB競合を減らす
	// （正しさの根拠は行ロック側にあり、これは短い前段ガード）
	if s.lockManager != nil {
		lockKey := fmt.Sprintf("seat:%s:%s:%d", input.RouteID, input.TravelDate, input.SeatNumber)
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, lockKey, 10*time.Second, 3, 100*time.Millisecond)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				s.countBooking("lock_failed")
				return nil, fmt.Errorf("座席が他のユーザーによって処理中です")
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)
	}

	b := booking.NewBooking(input.UserID, input.PassengerName, input.RouteID, input.TravelDate,
		input.SeatNumber, input.BoardingStopID, input.DropOffStopID, segmentIDs,
		input.Amount, input.PayerPhone, input.IdempotencyKey, s.holdWindow)
	if err := b.Validate(); err != nil {
		return nil, err
	}

	// 予約作成と区間ロックを1つのトランザクションで実行する
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
		// 冪等性チェックとINSERTの間に同じキーで勝った予約があれば、それを返す
		if errors.Is(err, booking.ErrIdempotencyKeyAlreadyExists) {
			if existing, lookupErr := s.bookingRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	key := inventory.Key{RouteID: input.RouteID, TravelDate: input.TravelDate, SeatNumber: input.SeatNumber}
	if err := s.engine.TryLock(ctx, tx, key, segmentIDs, b.ID); err != nil {
		if errors.Is(err, inventory.ErrSegmentConflict) {
			s.countBooking("conflict")
			s.countConflict("try_lock")
		} else {
			s.countBooking("error")
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countBooking("success")
	if m := metrics.Get(); m != nil {
		m.ActiveLocks.Inc()
	}
	s.invalidateCache(ctx, b.RouteID, b.TravelDate)

	if s.gateway != nil {
		if err := s.gateway.InitiatePayment(ctx, PaymentRequest{
			Amount:           b.Amount,
			PayerPhone:       b.PayerPhone,
			AccountReference: b.AccountReference,
		}); err != nil {
			logger.Error("STKプッシュ送信に失敗（予約は保留のままスイープを待つ）",
				zap.String("ticket_id", b.TicketID), zap.Error(err))
		}
	}

	return b, nil
}

// HandlePaymentOutcome は決済ゲートウェイの非同期通知を処理する
// 同じ通知が二重に届いた場合、終端状態の予約はそのまま返す
func (s *BookingService) HandlePaymentOutcome(ctx context.Context, n PaymentNotification) (*booking.Booking, error) {
	b, err := s.bookingRepo.GetByAccountReference(ctx, n.AccountReference)
	if err != nil {
		return nil, fmt.Errorf("予約の突合に失敗: %w", err)
	}
	if !b.IsPending() {
		logger.Info("終端状態の予約への決済通知を無視",
			zap.String("ticket_id", b.TicketID),
			zap.String("payment_status", string(b.PaymentStatus)),
		)
		return b, nil
	}

	if n.Outcome == OutcomeSuccess {
		return s.confirmBooking(ctx, b, n.ReceiptNumber)
	}
	return s.releaseBooking(ctx, b)
}

// confirmBooking は区間確定と予約確定を1つのトランザクションで実行する
func (s *BookingService) confirmBooking(ctx context.Context, b *booking.Booking, receiptNumber string) (*booking.Booking, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	key := inventory.Key{RouteID: b.RouteID, TravelDate: b.TravelDate, SeatNumber: b.SeatNumber}
	if err := s.engine.Confirm(ctx, tx, key, b.SegmentIDs, b.ID); err != nil {
		tx.Rollback()
		if errors.Is(err, inventory.ErrNotLocked) {
			// スイープが先にロックを解放していた。入金済みだが座席は失われている
			// ため、確定させずに突合事案として報告する
			return nil, s.markReconciliation(ctx, b)
		}
		s.countConflict("confirm")
		return nil, err
	}
	if err := b.Complete(receiptNumber); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	if m := metrics.Get(); m != nil {
		m.ActiveLocks.Dec()
	}
	s.invalidateCache(ctx, b.RouteID, b.TravelDate)
	logger.Info("予約確定",
		zap.String("ticket_id", b.TicketID),
		zap.String("receipt_number", receiptNumber),
	)
	return b, nil
}

// markReconciliation は入金済み・座席喪失の予約を失敗状態にし、突合事案として報告する
func (s *BookingService) markReconciliation(ctx context.Context, b *booking.Booking) error {
	if m := metrics.Get(); m != nil {
		m.ReconciliationsTotal.Inc()
	}
	logger.Error("決済成功の通知時点でロックが失効（要突合対応）",
		zap.String("ticket_id", b.TicketID),
		zap.String("account_reference", b.AccountReference),
	)

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := b.Fail(); err != nil {
		return err
	}
	if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return fmt.Errorf("%w: ticket=%s", ErrReconciliationRequired, b.TicketID)
}

// releaseBooking は区間解放と予約失敗を1つのトランザクションで実行する
// 明示的な決済失敗通知と期限切れスイープの両方がこの経路を共有する（冪等）
func (s *BookingService) releaseBooking(ctx context.Context, b *booking.Booking) (*booking.Booking, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	key := inventory.Key{RouteID: b.RouteID, TravelDate: b.TravelDate, SeatNumber: b.SeatNumber}
	if err := s.engine.Release(ctx, tx, key, b.SegmentIDs, b.ID); err != nil {
		return nil, err
	}
	if err := b.Fail(); err != nil {
		return nil, err
	}
	if err := s.bookingRepo.Update(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	if m := metrics.Get(); m != nil {
		m.ActiveLocks.Dec()
	}
	s.invalidateCache(ctx, b.RouteID, b.TravelDate)
	logger.Info("予約解放", zap.String("ticket_id", b.TicketID))
	return b, nil
}

// ReleaseExpiredBookings はロック保持期限切れの保留中予約を解放する
// 期限切れスイーパーから定期的に呼び出される
func (s *BookingService) ReleaseExpiredBookings(ctx context.Context) (int, error) {
	expired, err := s.bookingRepo.GetExpiredPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}

	count := 0
	for _, b := range expired {
		if _, err := s.releaseBooking(ctx, b); err != nil {
			// 1件の失敗で全体を止めない。決済失敗通知との競合はここに現れる
			logger.Warn("期限切れ予約の解放に失敗",
				zap.String("ticket_id", b.TicketID), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *BookingService) GetBookingByTicketID(ctx context.Context, ticketID string) (*booking.Booking, error) {
	return s.bookingRepo.GetByTicketID(ctx, ticketID)
}

func (s *BookingService) GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.bookingRepo.GetByUserID(ctx, userID, limit, offset)
}

func (s *BookingService) invalidateCache(ctx context.Context, routeID, travelDate string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, routeID, travelDate); err != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Error(err))
		}
	}
}

func (s *BookingService) countBooking(status string) {
	if m := metrics.Get(); m != nil {
		m.BookingsTotal.WithLabelValues(status).Inc()
	}
}

func (s *BookingService) countConflict(operation string) {
	if m := metrics.Get(); m != nil {
		m.SegmentConflictsTotal.WithLabelValues(operation).Inc()
	}
}
