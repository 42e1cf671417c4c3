package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/booking"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/transaction"
)

type bookingRow struct {
	ID               string     `db:"id"`
	TicketID         string     `db:"ticket_id"`
	AccountReference string     `db:"account_reference"`
	UserID           string     `db:"user_id"`
	PassengerName    string     `db:"passenger_name"`
	RouteID          string     `db:"route_id"`
	TravelDate       string     `db:"travel_date"`
	SeatNumber       int        `db:"seat_number"`
	BoardingStopID   string     `db:"boarding_stop_id"`
	DropOffStopID    string     `db:"drop_off_stop_id"`
	PaymentStatus    string     `db:"payment_status"`
	ReceiptNumber    *string    `db:"receipt_number"`
	Amount           int        `db:"amount"`
	PayerPhone       string     `db:"payer_phone"`
	IdempotencyKey   string     `db:"idempotency_key"`
	ExpiresAt        time.Time  `db:"expires_at"`
	ConfirmedAt      *time.Time `db:"confirmed_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

const bookingColumns = `id, ticket_id, account_reference, user_id, passenger_name, route_id, travel_date, seat_number, boarding_stop_id, drop_off_stop_id, payment_status, receipt_number, amount, payer_phone, idempotency_key, expires_at, confirmed_at, created_at, updated_at`

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}
	query := `INSERT INTO bookings (ticket_id, account_reference, user_id, passenger_name, route_id, travel_date, seat_number, boarding_stop_id, drop_off_stop_id, payment_status, amount, payer_phone, idempotency_key, expires_at, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query,
		b.TicketID, b.AccountReference, b.UserID, b.PassengerName, b.RouteID, b.TravelDate,
		b.SeatNumber, b.BoardingStopID, b.DropOffStopID, string(b.PaymentStatus),
		b.Amount, b.PayerPhone, b.IdempotencyKey, b.ExpiresAt, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID); err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return booking.ErrIdempotencyKeyAlreadyExists
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	for i, segmentID := range b.SegmentIDs {
		if _, err := sqlxTx.ExecContext(ctx,
			`INSERT INTO booking_segments (booking_id, segment_id, position) VALUES ($1, $2, $3)`,
			b.ID, segmentID, i); err != nil {
			return fmt.Errorf("予約区間関連付けに失敗: %w", err)
		}
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *BookingRepository) GetByTicketID(ctx context.Context, ticketID string) (*booking.Booking, error) {
	return r.getBy(ctx, `ticket_id = $1`, ticketID)
}

func (r *BookingRepository) GetByAccountReference(ctx context.Context, accountReference string) (*booking.Booking, error) {
	return r.getBy(ctx, `account_reference = $1`, accountReference)
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	return r.getBy(ctx, `idempotency_key = $1`, key)
}

func (r *BookingRepository) getBy(ctx context.Context, where string, arg interface{}) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + where
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	segmentIDs, err := r.getSegmentIDs(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return toBookingEntity(&row, segmentIDs), nil
}

func (r *BookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return r.toEntities(ctx, rows)
}

func (r *BookingRepository) Update(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}
	query := `UPDATE bookings SET payment_status = $1, receipt_number = $2, confirmed_at = $3, updated_at = $4 WHERE id = $5`
	result, err := sqlxTx.ExecContext(ctx, query, string(b.PaymentStatus), b.ReceiptNumber, b.ConfirmedAt, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) GetExpiredPending(ctx context.Context) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_status = 'pending' AND expires_at < NOW()`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	return r.toEntities(ctx, rows)
}

func (r *BookingRepository) getSegmentIDs(ctx context.Context, bookingID string) ([]string, error) {
	var segmentIDs []string
	if err := r.db.SelectContext(ctx, &segmentIDs, `SELECT segment_id FROM booking_segments WHERE booking_id = $1 ORDER BY position`, bookingID); err != nil {
		return nil, fmt.Errorf("予約区間取得に失敗: %w", err)
	}
	return segmentIDs, nil
}

func (r *BookingRepository) toEntities(ctx context.Context, rows []bookingRow) ([]*booking.Booking, error) {
	result := make([]*booking.Booking, len(rows))
	for i, row := range rows {
		segmentIDs, err := r.getSegmentIDs(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		result[i] = toBookingEntity(&row, segmentIDs)
	}
	return result, nil
}

func toBookingEntity(row *bookingRow, segmentIDs []string) *booking.Booking {
	return &booking.Booking{
		ID: row.ID, TicketID: row.TicketID, AccountReference: row.AccountReference,
		UserID: row.UserID, PassengerName: row.PassengerName,
		RouteID: row.RouteID, TravelDate: row.TravelDate, SeatNumber: row.SeatNumber,
		BoardingStopID: row.BoardingStopID, DropOffStopID: row.DropOffStopID,
		SegmentIDs:    segmentIDs,
		PaymentStatus: booking.PaymentStatus(row.PaymentStatus),
		ReceiptNumber: row.ReceiptNumber, Amount: row.Amount, PayerPhone: row.PayerPhone,
		IdempotencyKey: row.IdempotencyKey, ExpiresAt: row.ExpiresAt,
		ConfirmedAt: row.ConfirmedAt, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

var _ booking.Repository = (*BookingRepository)(nil)
