package locking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/transaction"
	"github.com/leonmuriithi/transit-core-poc/internal/pkg/logger"
)

var (
	ErrEmptySegmentSet = errors.New("区間集合が空です")
	ErrHolderRequired  = errors.New("ホルダーIDは必須です")
)

// Engine は座席区間に対するロック操作を実行するエンジン
// 各操作は呼び出し側が開始したトランザクション内で、対象レコード全件を
// 行ロック付きで読み取ってから状態遷移を適用する
// 途中で失敗した操作はトランザクションのロールバックにより一切の変更を残さない
type Engine struct {
	inventoryRepo inventory.Repository
}

// NewEngine は新しいロックエンジンを作成する
func NewEngine(inventoryRepo inventory.Repository) *Engine {
	return &Engine{inventoryRepo: inventoryRepo}
}

// TryLock は対象の全区間が開放状態の場合に限り、全件をロック状態に遷移させる
// 1件でも開放されていなければ何も変更せず、路線進行方向で最初に競合した区間を
// 保持する inventory.ConflictError を返す
// エンジン内部でのリトライは行わない（リトライ方針は呼び出し側の責務）
func (e *Engine) TryLock(ctx context.Context, tx transaction.Tx, key inventory.Key, segmentIDs []string, holderID string) error {
	records, err := e.fetch(ctx, tx, key, segmentIDs, holderID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, rec := range records {
		if err := rec.Lock(holderID, now); err != nil {
			return err
		}
	}

	if err := e.inventoryRepo.SaveStatuses(ctx, tx, records); err != nil {
		return fmt.Errorf("ロック状態の保存に失敗: %w", err)
	}

	logger.Debug("区間をロック",
		zap.String("route_id", key.RouteID),
		zap.String("travel_date", key.TravelDate),
		zap.Int("seat_number", key.SeatNumber),
		zap.Int("segments", len(records)),
		zap.String("holder_id", holderID),
	)
	return nil
}

// Confirm はホルダーがロック中の全区間を確定状態に遷移させる
// 既に解放済みの区間が含まれる場合は ErrNotLocked を返し、期限切れロックを
// 復活させることはない（決済成功との突合は呼び出し側で扱う）
func (e *Engine) Confirm(ctx context.Context, tx transaction.Tx, key inventory.Key, segmentIDs []string, holderID string) error {
	records, err := e.fetch(ctx, tx, key, segmentIDs, holderID)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := rec.Book(holderID); err != nil {
			return err
		}
	}

	if err := e.inventoryRepo.SaveStatuses(ctx, tx, records); err != nil {
		return fmt.Errorf("確定状態の保存に失敗: %w", err)
	}
	return nil
}

// Release はホルダーがロック中の全区間を開放状態に戻す
// 既に開放済みの区間は読み飛ばす（明示的な決済失敗通知と期限切れスイープが
// 競合しても安全なように、解放は冪等）
func (e *Engine) Release(ctx context.Context, tx transaction.Tx, key inventory.Key, segmentIDs []string, holderID string) error {
	records, err := e.fetch(ctx, tx, key, segmentIDs, holderID)
	if err != nil {
		return err
	}

	changed := make([]*inventory.SeatSegment, 0, len(records))
	for _, rec := range records {
		if rec.IsOpen() {
			continue
		}
		if err := rec.Release(holderID); err != nil {
			return err
		}
		changed = append(changed, rec)
	}
	if len(changed) == 0 {
		return nil
	}

	if err := e.inventoryRepo.SaveStatuses(ctx, tx, changed); err != nil {
		return fmt.Errorf("開放状態の保存に失敗: %w", err)
	}

	logger.Debug("区間を解放",
		zap.String("route_id", key.RouteID),
		zap.Int("seat_number", key.SeatNumber),
		zap.Int("segments", len(changed)),
		zap.String("holder_id", holderID),
	)
	return nil
}

// fetch は対象レコードを行ロック付きで取得し、区間位置順に揃える
func (e *Engine) fetch(ctx context.Context, tx transaction.Tx, key inventory.Key, segmentIDs []string, holderID string) ([]*inventory.SeatSegment, error) {
	if len(segmentIDs) == 0 {
		return nil, ErrEmptySegmentSet
	}
	if holderID == "" {
		return nil, ErrHolderRequired
	}

	records, err := e.inventoryRepo.GetForUpdate(ctx, tx, key, segmentIDs)
	if err != nil {
		return nil, fmt.Errorf("座席区間の取得に失敗: %w", err)
	}
	if len(records) != len(segmentIDs) {
		return nil, inventory.ErrRecordNotFound
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Position < records[j].Position
	})
	return records, nil
}
