package inventory

import (
	"context"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/transaction"
)

// Repository は座席区間在庫リポジトリのインターフェース
// 所有権のルールはロックエンジン側にあり、リポジトリはレコードの形と
// トランザクション境界のみを提供する
type Repository interface {
	// CreateBulk は座席区間レコードを一括作成する
	CreateBulk(ctx context.Context, records []*SeatSegment) error

	// GetByKey は指定区間集合のレコードを区間位置順に取得する
	GetByKey(ctx context.Context, key Key, segmentIDs []string) ([]*SeatSegment, error)

	// GetBySeat は座席の全区間レコードを区間位置順に取得する
	GetBySeat(ctx context.Context, key Key) ([]*SeatSegment, error)

	// GetForUpdate は指定区間集合のレコードを行ロック付きで取得する（トランザクション必須）
	GetForUpdate(ctx context.Context, tx transaction.Tx, key Key, segmentIDs []string) ([]*SeatSegment, error)

	// SaveStatuses はレコードの状態変更を永続化する（トランザクション必須）
	SaveStatuses(ctx context.Context, tx transaction.Tx, records []*SeatSegment) error

	// CountOpen は運行日の開放区間数を取得する
	CountOpen(ctx context.Context, routeID, travelDate string) (int, error)
}
