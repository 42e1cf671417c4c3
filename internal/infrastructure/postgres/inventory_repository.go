package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/transaction"
)

type seatSegmentRow struct {
	RouteID       string     `db:"route_id"`
	TravelDate    string     `db:"travel_date"`
	SeatNumber    int        `db:"seat_number"`
	SegmentID     string     `db:"segment_id"`
	Position      int        `db:"position"`
	Status        string     `db:"status"`
	LockedBy      *string    `db:"locked_by"`
	LockedAt      *time.Time `db:"locked_at"`
	PaymentStatus string     `db:"payment_status"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (r *seatSegmentRow) toEntity() *inventory.SeatSegment {
	return &inventory.SeatSegment{
		RouteID: r.RouteID, TravelDate: r.TravelDate, SeatNumber: r.SeatNumber,
		SegmentID: r.SegmentID, Position: r.Position,
		Status: inventory.Status(r.Status), LockedBy: r.LockedBy, LockedAt: r.LockedAt,
		PaymentStatus: inventory.PaymentStatus(r.PaymentStatus),
		CreatedAt:     r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

const seatSegmentColumns = `route_id, travel_date, seat_number, segment_id, position, status, locked_by, locked_at, payment_status, created_at, updated_at`

type InventoryRepository struct{ db *sqlx.DB }

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) CreateBulk(ctx context.Context, records []*inventory.SeatSegment) error {
	if len(records) == 0 {
		return nil
	}

	// バッチサイズごとに分割してマルチバリューINSERTを実行
	const batchSize = 1000
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := r.createBulkBatch(ctx, records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *InventoryRepository) createBulkBatch(ctx context.Context, records []*inventory.SeatSegment) error {
	query := `INSERT INTO seat_segments (` + seatSegmentColumns + `) VALUES `
	args := make([]interface{}, 0, len(records)*11)
	placeholders := make([]string, 0, len(records))

	for i, rec := range records {
		base := i * 11
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11))
		args = append(args, rec.RouteID, rec.TravelDate, rec.SeatNumber, rec.SegmentID, rec.Position,
			string(rec.Status), rec.LockedBy, rec.LockedAt, string(rec.PaymentStatus), rec.CreatedAt, rec.UpdatedAt)
	}

	query += strings.Join(placeholders, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("座席区間一括作成に失敗: %w", err)
	}
	return nil
}

func (r *InventoryRepository) GetByKey(ctx context.Context, key inventory.Key, segmentIDs []string) ([]*inventory.SeatSegment, error) {
	query := `SELECT ` + seatSegmentColumns + ` FROM seat_segments WHERE route_id = $1 AND travel_date = $2 AND seat_number = $3 AND segment_id = ANY($4) ORDER BY position`
	var rows []seatSegmentRow
	if err := r.db.SelectContext(ctx, &rows, query, key.RouteID, key.TravelDate, key.SeatNumber, pq.Array(segmentIDs)); err != nil {
		return nil, fmt.Errorf("座席区間取得に失敗: %w", err)
	}
	return toSeatSegmentEntities(rows), nil
}

func (r *InventoryRepository) GetBySeat(ctx context.Context, key inventory.Key) ([]*inventory.SeatSegment, error) {
	query := `SELECT ` + seatSegmentColumns + ` FROM seat_segments WHERE route_id = $1 AND travel_date = $2 AND seat_number = $3 ORDER BY position`
	var rows []seatSegmentRow
	if err := r.db.SelectContext(ctx, &rows, query, key.RouteID, key.TravelDate, key.SeatNumber); err != nil {
		return nil, fmt.Errorf("座席区間取得に失敗: %w", err)
	}
	return toSeatSegmentEntities(rows), nil
}

// GetForUpdate は SELECT ... FOR UPDATE で対象行をロックして取得する
// 同じ区間集合に触れる並行トランザクションはここで直列化される
func (r *InventoryRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, key inventory.Key, segmentIDs []string) ([]*inventory.SeatSegment, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, fmt.Errorf("トランザクションが不正です")
	}
	query := `SELECT ` + seatSegmentColumns + ` FROM seat_segments WHERE route_id = $1 AND travel_date = $2 AND seat_number = $3 AND segment_id = ANY($4) ORDER BY position FOR UPDATE`
	var rows []seatSegmentRow
	if err := sqlxTx.SelectContext(ctx, &rows, query, key.RouteID, key.TravelDate, key.SeatNumber, pq.Array(segmentIDs)); err != nil {
		return nil, fmt.Errorf("座席区間の行ロック取得に失敗: %w", err)
	}
	return toSeatSegmentEntities(rows), nil
}

func (r *InventoryRepository) SaveStatuses(ctx context.Context, tx transaction.Tx, records []*inventory.SeatSegment) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}
	query := `UPDATE seat_segments SET status = $1, locked_by = $2, locked_at = $3, payment_status = $4, updated_at = $5 WHERE route_id = $6 AND travel_date = $7 AND seat_number = $8 AND segment_id = $9`
	for _, rec := range records {
		result, err := sqlxTx.ExecContext(ctx, query,
			string(rec.Status), rec.LockedBy, rec.LockedAt, string(rec.PaymentStatus), rec.UpdatedAt,
			rec.RouteID, rec.TravelDate, rec.SeatNumber, rec.SegmentID)
		if err != nil {
			return fmt.Errorf("座席区間更新に失敗: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return inventory.ErrRecordNotFound
		}
	}
	return nil
}

func (r *InventoryRepository) CountOpen(ctx context.Context, routeID, travelDate string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM seat_segments WHERE route_id = $1 AND travel_date = $2 AND status = 'open'`, routeID, travelDate)
	if err != nil {
		return 0, fmt.Errorf("開放区間数取得に失敗: %w", err)
	}
	return count, nil
}

func toSeatSegmentEntities(rows []seatSegmentRow) []*inventory.SeatSegment {
	records := make([]*inventory.SeatSegment, len(rows))
	for i := range rows {
		records[i] = rows[i].toEntity()
	}
	return records
}

var _ inventory.Repository = (*InventoryRepository)(nil)
