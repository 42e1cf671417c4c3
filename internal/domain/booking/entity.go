package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus は予約の決済状態を表す
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// Booking は予約エンティティを表す
// 1つの予約は1つの座席区間集合を生涯にわたって所有し、
// completed / failed は終端状態となる
type Booking struct {
	ID               string
	TicketID         string
	AccountReference string // 決済コールバックとの突合キー
	UserID           string
	PassengerName    string
	RouteID          string
	TravelDate       string // YYYY-MM-DD
	SeatNumber       int
	BoardingStopID   string
	DropOffStopID    string
	SegmentIDs       []string
	PaymentStatus    PaymentStatus
	ReceiptNumber    *string
	Amount           int
	PayerPhone       string
	IdempotencyKey   string
	ExpiresAt        time.Time
	ConfirmedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewBooking は保留中の新しい予約を作成する
// holdWindow はロック保持期限で、超過した予約はスイーパーが解放する
func NewBooking(userID, passengerName, routeID, travelDate string, seatNumber int, boardingStopID, dropOffStopID string, segmentIDs []string, amount int, payerPhone, idempotencyKey string, holdWindow time.Duration) *Booking {
	now := time.Now()
	return &Booking{
		TicketID:         newTicketID(),
		AccountReference: uuid.New().String(),
		UserID:           userID,
		PassengerName:    passengerName,
		RouteID:          routeID,
		TravelDate:       travelDate,
		SeatNumber:       seatNumber,
		BoardingStopID:   boardingStopID,
		DropOffStopID:    dropOffStopID,
		SegmentIDs:       segmentIDs,
		PaymentStatus:    StatusPending,
		Amount:           amount,
		PayerPhone:       payerPhone,
		IdempotencyKey:   idempotencyKey,
		ExpiresAt:        now.Add(holdWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// newTicketID は外部向けチケット識別子を生成する
func newTicketID() string {
	return "TKT-" + strings.ToUpper(uuid.New().String()[:8])
}

// IsPending は予約が保留中かを返す
func (b *Booking) IsPending() bool {
	return b.PaymentStatus == StatusPending
}

// IsExpired は予約のロック保持期限が切れているかを返す
func (b *Booking) IsExpired() bool {
	return time.Now().After(b.ExpiresAt)
}

// Complete は決済成功を受けて予約を確定する
func (b *Booking) Complete(receiptNumber string) error {
	if b.PaymentStatus != StatusPending {
		return ErrBookingNotPending
	}
	now := time.Now()
	b.PaymentStatus = StatusCompleted
	b.ReceiptNumber = &receiptNumber
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

// Fail は決済失敗または期限切れを受けて予約を失敗状態にする
func (b *Booking) Fail() error {
	if b.PaymentStatus == StatusCompleted {
		return ErrBookingAlreadyCompleted
	}
	if b.PaymentStatus == StatusFailed {
		return ErrBookingAlreadyFailed
	}
	b.PaymentStatus = StatusFailed
	b.UpdatedAt = time.Now()
	return nil
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.RouteID == "" {
		return ErrRouteIDRequired
	}
	if b.TravelDate == "" {
		return ErrTravelDateRequired
	}
	if b.SeatNumber <= 0 {
		return ErrInvalidSeatNumber
	}
	if len(b.SegmentIDs) == 0 {
		return ErrSegmentIDsRequired
	}
	if b.IdempotencyKey == "" {
		return ErrIdempotencyKeyRequired
	}
	return nil
}
