package booking

import (
	"context"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByTicketID はチケットIDから予約を取得する
	GetByTicketID(ctx context.Context, ticketID string) (*Booking, error)

	// GetByAccountReference は決済突合キーから予約を取得する
	GetByAccountReference(ctx context.Context, accountReference string) (*Booking, error)

	// GetByIdempotencyKey は冪等性キーから予約を取得する
	GetByIdempotencyKey(ctx context.Context, key string) (*Booking, error)

	// GetByUserID はユーザーIDから予約一覧を取得する
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// Update は予約を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, b *Booking) error

	// GetExpiredPending はロック保持期限切れの保留中予約を取得する
	GetExpiredPending(ctx context.Context) ([]*Booking, error)
}
