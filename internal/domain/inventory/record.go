package inventory

import (
	"fmt"
	"time"
)

// Status は座席区間の状態を表す
type Status string

const (
	StatusOpen   Status = "open"
	StatusLocked Status = "locked"
	StatusBooked Status = "booked"
)

// PaymentStatus は座席区間に紐づく決済の状態を表す
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = "none"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Key は運行日・座席単位の在庫キーを表す
type Key struct {
	RouteID    string
	TravelDate string // YYYY-MM-DD
	SeatNumber int
}

// SeatSegment は座席区間レコードを表す
// (routeID, travelDate, seatNumber, segmentID) が複合キーとなる
// 状態遷移は open→locked→booked と locked→open のみ許可し、booked は終端
type SeatSegment struct {
	RouteID       string
	TravelDate    string
	SeatNumber    int
	SegmentID     string
	Position      int // 路線進行方向の区間位置
	Status        Status
	LockedBy      *string
	LockedAt      *time.Time
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSeatSegment は開放状態の座席区間レコードを作成する
func NewSeatSegment(routeID, travelDate string, seatNumber int, segmentID string, position int) *SeatSegment {
	now := time.Now()
	return &SeatSegment{
		RouteID:       routeID,
		TravelDate:    travelDate,
		SeatNumber:    seatNumber,
		SegmentID:     segmentID,
		Position:      position,
		Status:        StatusOpen,
		PaymentStatus: PaymentNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Key はレコードの在庫キーを返す
func (s *SeatSegment) Key() Key {
	return Key{RouteID: s.RouteID, TravelDate: s.TravelDate, SeatNumber: s.SeatNumber}
}

// IsOpen はレコードが開放状態かを返す
func (s *SeatSegment) IsOpen() bool {
	return s.Status == StatusOpen
}

// IsLockedBy はレコードが指定ホルダーにロックされているかを返す
func (s *SeatSegment) IsLockedBy(holderID string) bool {
	return s.Status == StatusLocked && s.LockedBy != nil && *s.LockedBy == holderID
}

// Lock はレコードをロック状態に遷移させる
func (s *SeatSegment) Lock(holderID string, now time.Time) error {
	if s.Status != StatusOpen {
		return &ConflictError{SegmentID: s.SegmentID}
	}
	s.Status = StatusLocked
	s.LockedBy = &holderID
	s.LockedAt = &now
	s.PaymentStatus = PaymentPending
	s.UpdatedAt = now
	return nil
}

// Book はロック済みレコードを確定状態に遷移させる
// booked は終端状態であり、以後いかなる遷移も受け付けない
func (s *SeatSegment) Book(holderID string) error {
	if s.Status != StatusLocked {
		return ErrNotLocked
	}
	if !s.IsLockedBy(holderID) {
		return ErrOwnershipMismatch
	}
	s.Status = StatusBooked
	s.PaymentStatus = PaymentCompleted
	s.UpdatedAt = time.Now()
	return nil
}

// Release はロック済みレコードを開放状態に戻す
// 既に開放済みの場合は何もしない（解放は冪等）
func (s *SeatSegment) Release(holderID string) error {
	switch s.Status {
	case StatusOpen:
		return nil
	case StatusBooked:
		return fmt.Errorf("%w: %s", ErrAlreadyBooked, s.SegmentID)
	}
	if !s.IsLockedBy(holderID) {
		return ErrOwnershipMismatch
	}
	s.Status = StatusOpen
	s.LockedBy = nil
	s.LockedAt = nil
	s.PaymentStatus = PaymentFailed
	s.UpdatedAt = time.Now()
	return nil
}
