package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/booking"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/transaction"
	"github.com/leonmuriithi/transit-core-poc/internal/locking"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByTicketID(ctx context.Context, ticketID string) (*booking.Booking, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByAccountReference(ctx context.Context, accountReference string) (*booking.Booking, error) {
	args := m.Called(ctx, accountReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) GetExpiredPending(ctx context.Context) ([]*booking.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

// MockRouteRepository implements route.Repository
type MockRouteRepository struct {
	mock.Mock
}

func (m *MockRouteRepository) Create(ctx context.Context, r *route.Route) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRouteRepository) GetByID(ctx context.Context, id string) (*route.Route, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*route.Route), args.Error(1)
}

func (m *MockRouteRepository) List(ctx context.Context, limit, offset int) ([]*route.Route, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*route.Route), args.Error(1)
}

// MockInventoryRepository implements inventory.Repository
type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) CreateBulk(ctx context.Context, records []*inventory.SeatSegment) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockInventoryRepository) GetByKey(ctx context.Context, key inventory.Key, segmentIDs []string) ([]*inventory.SeatSegment, error) {
	args := m.Called(ctx, key, segmentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inventory.SeatSegment), args.Error(1)
}

func (m *MockInventoryRepository) GetBySeat(ctx context.Context, key inventory.Key) ([]*inventory.SeatSegment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inventory.SeatSegment), args.Error(1)
}

func (m *MockInventoryRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, key inventory.Key, segmentIDs []string) ([]*inventory.SeatSegment, error) {
	args := m.Called(ctx, tx, key, segmentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inventory.SeatSegment), args.Error(1)
}

func (m *MockInventoryRepository) SaveStatuses(ctx context.Context, tx transaction.Tx, records []*inventory.SeatSegment) error {
	args := m.Called(ctx, tx, records)
	return args.Error(0)
}

func (m *MockInventoryRepository) CountOpen(ctx context.Context, routeID, travelDate string) (int, error) {
	args := m.Called(ctx, routeID, travelDate)
	return args.Int(0), args.Error(1)
}

// MockPaymentGateway implements PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) InitiatePayment(ctx context.Context, p PaymentRequest) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// === Fixtures ===

func nairobiEldoretRoute() *route.Route {
	rt := route.NewRoute("Nairobi - Eldoret", []route.Stop{
		{ID: "NRB", Name: "Nairobi", OrderIndex: 0},
		{ID: "NKR", Name: "Nakuru", OrderIndex: 1},
		{ID: "ELD", Name: "Eldoret", OrderIndex: 2},
	})
	rt.ID = "route-123"
	return rt
}

func openRecords(key inventory.Key, segmentIDs ...string) []*inventory.SeatSegment {
	records := make([]*inventory.SeatSegment, len(segmentIDs))
	for i, id := range segmentIDs {
		records[i] = inventory.NewSeatSegment(key.RouteID, key.TravelDate, key.SeatNumber, id, i)
	}
	return records
}

func lockedRecords(key inventory.Key, holderID string, segmentIDs ...string) []*inventory.SeatSegment {
	records := openRecords(key, segmentIDs...)
	for _, rec := range records {
		rec.Lock(holderID, time.Now())
	}
	return records
}

func validCreateInput() CreateBookingInput {
	return CreateBookingInput{
		UserID:         "user-123",
		PassengerName:  "Jane Wanjiku",
		RouteID:        "route-123",
		TravelDate:     "2026-09-01",
		SeatNumber:     7,
		BoardingStopID: "NRB",
		DropOffStopID:  "ELD",
		Amount:         1200,
		PayerPhone:     "254712345678",
		IdempotencyKey: "idem-key-1",
	}
}

type serviceFixture struct {
	txManager     *MockTxManager
	tx            *MockTx
	bookingRepo   *MockBookingRepository
	routeRepo     *MockRouteRepository
	inventoryRepo *MockInventoryRepository
	gateway       *MockPaymentGateway
	service       *BookingService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		txManager:     new(MockTxManager),
		tx:            new(MockTx),
		bookingRepo:   new(MockBookingRepository),
		routeRepo:     new(MockRouteRepository),
		inventoryRepo: new(MockInventoryRepository),
		gateway:       new(MockPaymentGateway),
	}
	engine := locking.NewEngine(f.inventoryRepo)
	// Redisロックとキャッシュはユニットテストでは使用しない
	f.service = NewBookingService(f.txManager, f.bookingRepo, f.routeRepo, f.inventoryRepo,
		engine, nil, f.gateway, nil, 5*time.Minute)
	return f
}

// === Tests ===

func TestBookingService_CreateBooking(t *testing.T) {
	ctx := context.Background()
	key := inventory.Key{RouteID: "route-123", TravelDate: "2026-09-01", SeatNumber: 7}
	allSegments := []string{"SEG_NRB_NKR", "SEG_NKR_ELD"}

	t.Run("区間を解決してロックしチケットを発行する", func(t *testing.T) {
		f := newServiceFixture()
		input := validCreateInput()

		f.bookingRepo.On("GetByIdempotencyKey", ctx, input.IdempotencyKey).Return(nil, booking.ErrBookingNotFound)
		f.routeRepo.On("GetByID", ctx, input.RouteID).Return(nairobiEldoretRoute(), nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil).Maybe()
		f.tx.On("Commit").Return(nil).Once()
		f.bookingRepo.On("Create", ctx, f.tx, mock.AnythingOfType("*booking.Booking")).
			Run(func(args mock.Arguments) {
				args.Get(2).(*booking.Booking).ID = "booking-1"
			}).Return(nil)
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).Return(openRecords(key, allSegments...), nil)
		f.inventoryRepo.On("SaveStatuses", ctx, f.tx, mock.Anything).Return(nil)
		f.gateway.On("InitiatePayment", mock.Anything, mock.MatchedBy(func(p PaymentRequest) bool {
			return p.Amount == 1200 && p.PayerPhone == "254712345678" && p.AccountReference != ""
		})).Return(nil)

		b, err := f.service.CreateBooking(ctx, input)

		require.NoError(t, err)
		assert.Equal(t, "booking-1", b.ID)
		assert.Equal(t, allSegments, b.SegmentIDs)
		assert.Equal(t, booking.StatusPending, b.PaymentStatus)
		assert.NotEmpty(t, b.TicketID)
		f.bookingRepo.AssertExpectations(t)
		f.inventoryRepo.AssertExpectations(t)
		f.gateway.AssertExpectations(t)
	})

	t.Run("同じ冪等性キーの再送には既存の予約を返す", func(t *testing.T) {
		f := newServiceFixture()
		input := validCreateInput()
		existing := &booking.Booking{ID: "booking-1", TicketID: "TKT-ABCD1234"}

		f.bookingRepo.On("GetByIdempotencyKey", ctx, input.IdempotencyKey).Return(existing, nil)

		b, err := f.service.CreateBooking(ctx, input)

		require.NoError(t, err)
		assert.Equal(t, existing, b)
		f.routeRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
		f.txManager.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("冪等性キーの同時挿入では勝った予約を返す", func(t *testing.T) {
		f := newServiceFixture()
		input := validCreateInput()
		winner := &booking.Booking{ID: "booking-winner", TicketID: "TKT-WINNER01"}

		// 冪等性チェック時点では未登録、INSERT時点で先客が勝っている
		f.bookingRepo.On("GetByIdempotencyKey", ctx, input.IdempotencyKey).
			Return(nil, booking.ErrBookingNotFound).Once()
		f.routeRepo.On("GetByID", ctx, input.RouteID).Return(nairobiEldoretRoute(), nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil).Once()
		f.bookingRepo.On("Create", ctx, f.tx, mock.AnythingOfType("*booking.Booking")).
			Return(booking.ErrIdempotencyKeyAlreadyExists)
		f.bookingRepo.On("GetByIdempotencyKey", ctx, input.IdempotencyKey).
			Return(winner, nil).Once()

		b, err := f.service.CreateBooking(ctx, input)

		require.NoError(t, err)
		assert.Equal(t, winner, b)
		f.tx.AssertNotCalled(t, "Commit")
		f.inventoryRepo.AssertNotCalled(t, "GetForUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.gateway.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
	})

	t.Run("区間競合時は予約もロックも残らない", func(t *testing.T) {
		f := newServiceFixture()
		input := validCreateInput()

		// 後半区間を先客が保持している
		records := openRecords(key, allSegments...)
		records[1].Lock("booking-other", time.Now())

		f.bookingRepo.On("GetByIdempotencyKey", ctx, input.IdempotencyKey).Return(nil, booking.ErrBookingNotFound)
		f.routeRepo.On("GetByID", ctx, input.RouteID).Return(nairobiEldoretRoute(), nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil).Once()
		f.bookingRepo.On("Create", ctx, f.tx, mock.AnythingOfType("*booking.Booking")).
			Run(func(args mock.Arguments) {
				args.Get(2).(*booking.Booking).ID = "booking-1"
			}).Return(nil)
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).Return(records, nil)

		_, err := f.service.CreateBooking(ctx, input)

		require.Error(t, err)
		assert.ErrorIs(t, err, inventory.ErrSegmentConflict)
		var conflictErr *inventory.ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, "SEG_NKR_ELD", conflictErr.SegmentID)
		f.tx.AssertNotCalled(t, "Commit")
		f.inventoryRepo.AssertNotCalled(t, "SaveStatuses", mock.Anything, mock.Anything, mock.Anything)
		f.gateway.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
	})

	t.Run("未知の停留所はエラー", func(t *testing.T) {
		f := newServiceFixture()
		input := validCreateInput()
		input.BoardingStopID = "XXX"

		f.bookingRepo.On("GetByIdempotencyKey", ctx, input.IdempotencyKey).Return(nil, booking.ErrBookingNotFound)
		f.routeRepo.On("GetByID", ctx, input.RouteID).Return(nairobiEldoretRoute(), nil)

		_, err := f.service.CreateBooking(ctx, input)

		assert.ErrorIs(t, err, route.ErrUnknownStop)
		f.txManager.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("進行方向と逆向きの旅程はエラー", func(t *testing.T) {
		f := newServiceFixture()
		input := validCreateInput()
		input.BoardingStopID = "ELD"
		input.DropOffStopID = "NRB"

		f.bookingRepo.On("GetByIdempotencyKey", ctx, input.IdempotencyKey).Return(nil, booking.ErrBookingNotFound)
		f.routeRepo.On("GetByID", ctx, input.RouteID).Return(nairobiEldoretRoute(), nil)

		_, err := f.service.CreateBooking(ctx, input)

		assert.ErrorIs(t, err, route.ErrInvalidInterval)
	})

	t.Run("STKプッシュ送信に失敗しても予約は保留のまま返す", func(t *testing.T) {
		f := newServiceFixture()
		input := validCreateInput()

		f.bookingRepo.On("GetByIdempotencyKey", ctx, input.IdempotencyKey).Return(nil, booking.ErrBookingNotFound)
		f.routeRepo.On("GetByID", ctx, input.RouteID).Return(nairobiEldoretRoute(), nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil).Maybe()
		f.tx.On("Commit").Return(nil).Once()
		f.bookingRepo.On("Create", ctx, f.tx, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(2).(*booking.Booking).ID = "booking-1"
			}).Return(nil)
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).Return(openRecords(key, allSegments...), nil)
		f.inventoryRepo.On("SaveStatuses", ctx, f.tx, mock.Anything).Return(nil)
		f.gateway.On("InitiatePayment", mock.Anything, mock.Anything).Return(assert.AnError)

		b, err := f.service.CreateBooking(ctx, input)

		require.NoError(t, err)
		assert.True(t, b.IsPending())
	})
}

func TestBookingService_HandlePaymentOutcome(t *testing.T) {
	ctx := context.Background()
	key := inventory.Key{RouteID: "route-123", TravelDate: "2026-09-01", SeatNumber: 7}
	allSegments := []string{"SEG_NRB_NKR", "SEG_NKR_ELD"}

	pendingBooking := func() *booking.Booking {
		b := booking.NewBooking("user-123", "Jane Wanjiku", "route-123", "2026-09-01", 7,
			"NRB", "ELD", allSegments, 1200, "254712345678", "idem-key-1", 5*time.Minute)
		b.ID = "booking-1"
		return b
	}

	t.Run("成功通知で区間と予約が確定する", func(t *testing.T) {
		f := newServiceFixture()
		b := pendingBooking()

		f.bookingRepo.On("GetByAccountReference", ctx, b.AccountReference).Return(b, nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil).Maybe()
		f.tx.On("Commit").Return(nil).Once()
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).
			Return(lockedRecords(key, b.ID, allSegments...), nil)
		f.inventoryRepo.On("SaveStatuses", ctx, f.tx, mock.Anything).Return(nil)
		f.bookingRepo.On("Update", ctx, f.tx, b).Return(nil)

		result, err := f.service.HandlePaymentOutcome(ctx, PaymentNotification{
			AccountReference: b.AccountReference,
			Outcome:          OutcomeSuccess,
			ReceiptNumber:    "SHD31H4K2",
		})

		require.NoError(t, err)
		assert.Equal(t, booking.StatusCompleted, result.PaymentStatus)
		require.NotNil(t, result.ReceiptNumber)
		assert.Equal(t, "SHD31H4K2", *result.ReceiptNumber)
		f.inventoryRepo.AssertExpectations(t)
	})

	t.Run("失敗通知で区間が解放され予約は失敗になる", func(t *testing.T) {
		f := newServiceFixture()
		b := pendingBooking()

		f.bookingRepo.On("GetByAccountReference", ctx, b.AccountReference).Return(b, nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil).Maybe()
		f.tx.On("Commit").Return(nil).Once()
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).
			Return(lockedRecords(key, b.ID, allSegments...), nil)
		f.inventoryRepo.On("SaveStatuses", ctx, f.tx, mock.MatchedBy(func(records []*inventory.SeatSegment) bool {
			for _, rec := range records {
				if !rec.IsOpen() {
					return false
				}
			}
			return len(records) == 2
		})).Return(nil)
		f.bookingRepo.On("Update", ctx, f.tx, b).Return(nil)

		result, err := f.service.HandlePaymentOutcome(ctx, PaymentNotification{
			AccountReference: b.AccountReference,
			Outcome:          OutcomeFailure,
		})

		require.NoError(t, err)
		assert.Equal(t, booking.StatusFailed, result.PaymentStatus)
		f.inventoryRepo.AssertExpectations(t)
	})

	t.Run("終端状態の予約への二重通知はそのまま返す", func(t *testing.T) {
		f := newServiceFixture()
		b := pendingBooking()
		require.NoError(t, b.Complete("SHD31H4K2"))

		f.bookingRepo.On("GetByAccountReference", ctx, b.AccountReference).Return(b, nil)

		result, err := f.service.HandlePaymentOutcome(ctx, PaymentNotification{
			AccountReference: b.AccountReference,
			Outcome:          OutcomeSuccess,
			ReceiptNumber:    "SHD31H4K2",
		})

		require.NoError(t, err)
		assert.Equal(t, booking.StatusCompleted, result.PaymentStatus)
		f.txManager.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("通知時点でロックが失効していたら要突合として失敗させる", func(t *testing.T) {
		f := newServiceFixture()
		b := pendingBooking()

		f.bookingRepo.On("GetByAccountReference", ctx, b.AccountReference).Return(b, nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil)
		f.tx.On("Commit").Return(nil).Once()
		// スイープが先に解放しており、全区間が開放状態に戻っている
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).
			Return(openRecords(key, allSegments...), nil)
		f.bookingRepo.On("Update", ctx, f.tx, b).Return(nil)

		_, err := f.service.HandlePaymentOutcome(ctx, PaymentNotification{
			AccountReference: b.AccountReference,
			Outcome:          OutcomeSuccess,
			ReceiptNumber:    "SHD31H4K2",
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrReconciliationRequired)
		assert.Contains(t, err.Error(), b.TicketID)
		// ロックを復活させることなく予約を失敗で終端させる
		assert.Equal(t, booking.StatusFailed, b.PaymentStatus)
		f.inventoryRepo.AssertNotCalled(t, "SaveStatuses", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("突合キーに一致する予約がない場合はエラー", func(t *testing.T) {
		f := newServiceFixture()

		f.bookingRepo.On("GetByAccountReference", ctx, "unknown-ref").Return(nil, booking.ErrBookingNotFound)

		_, err := f.service.HandlePaymentOutcome(ctx, PaymentNotification{
			AccountReference: "unknown-ref",
			Outcome:          OutcomeSuccess,
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	})
}

func TestBookingService_ReleaseExpiredBookings(t *testing.T) {
	ctx := context.Background()
	key := inventory.Key{RouteID: "route-123", TravelDate: "2026-09-01", SeatNumber: 7}
	allSegments := []string{"SEG_NRB_NKR", "SEG_NKR_ELD"}

	expiredBooking := func(id string) *booking.Booking {
		b := booking.NewBooking("user-123", "Jane Wanjiku", "route-123", "2026-09-01", 7,
			"NRB", "ELD", allSegments, 1200, "254712345678", "idem-"+id, 5*time.Minute)
		b.ID = id
		b.ExpiresAt = time.Now().Add(-1 * time.Minute)
		return b
	}

	t.Run("期限切れ予約を解放して件数を返す", func(t *testing.T) {
		f := newServiceFixture()
		b1 := expiredBooking("booking-1")
		b2 := expiredBooking("booking-2")

		f.bookingRepo.On("GetExpiredPending", ctx).Return([]*booking.Booking{b1, b2}, nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil).Maybe()
		f.tx.On("Commit").Return(nil).Times(2)
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).
			Return(lockedRecords(key, "booking-1", allSegments...), nil).Once()
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).
			Return(lockedRecords(key, "booking-2", allSegments...), nil).Once()
		f.inventoryRepo.On("SaveStatuses", ctx, f.tx, mock.Anything).Return(nil)
		f.bookingRepo.On("Update", ctx, f.tx, mock.Anything).Return(nil)

		count, err := f.service.ReleaseExpiredBookings(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, booking.StatusFailed, b1.PaymentStatus)
		assert.Equal(t, booking.StatusFailed, b2.PaymentStatus)
	})

	t.Run("1件の解放失敗で全体を止めない", func(t *testing.T) {
		f := newServiceFixture()
		b1 := expiredBooking("booking-1")
		b2 := expiredBooking("booking-2")

		f.bookingRepo.On("GetExpiredPending", ctx).Return([]*booking.Booking{b1, b2}, nil)
		f.txManager.On("Begin", ctx).Return(f.tx, nil)
		f.tx.On("Rollback").Return(nil).Maybe()
		f.tx.On("Commit").Return(nil).Once()
		// 1件目は取得に失敗、2件目は解放に成功
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).
			Return(nil, assert.AnError).Once()
		f.inventoryRepo.On("GetForUpdate", ctx, f.tx, key, allSegments).
			Return(lockedRecords(key, "booking-2", allSegments...), nil).Once()
		f.inventoryRepo.On("SaveStatuses", ctx, f.tx, mock.Anything).Return(nil)
		f.bookingRepo.On("Update", ctx, f.tx, b2).Return(nil)

		count, err := f.service.ReleaseExpiredBookings(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("期限切れ予約の取得に失敗した場合はエラー", func(t *testing.T) {
		f := newServiceFixture()

		f.bookingRepo.On("GetExpiredPending", ctx).Return(nil, assert.AnError)

		_, err := f.service.ReleaseExpiredBookings(ctx)

		require.Error(t, err)
	})
}

func TestBookingService_GetUserBookings(t *testing.T) {
	ctx := context.Background()

	t.Run("limit未指定時はデフォルト値が使われる", func(t *testing.T) {
		f := newServiceFixture()
		f.bookingRepo.On("GetByUserID", ctx, "user-123", 20, 0).Return([]*booking.Booking{}, nil)

		_, err := f.service.GetUserBookings(ctx, "user-123", 0, 0)

		require.NoError(t, err)
		f.bookingRepo.AssertExpectations(t)
	})
}
