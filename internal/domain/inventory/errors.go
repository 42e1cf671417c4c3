package inventory

import (
	"errors"
	"fmt"
)

// Inventory ドメインのエラー定義
var (
	ErrRecordNotFound    = errors.New("座席区間レコードが見つかりません")
	ErrSegmentConflict   = errors.New("区間は既に他の予約に確保されています")
	ErrOwnershipMismatch = errors.New("ロックの所有者が一致しません")
	ErrNotLocked         = errors.New("区間はロックされていません")
	ErrAlreadyBooked     = errors.New("区間は既に確定済みです")
)

// ConflictError は競合した最初の区間を保持するエラー
// errors.Is(err, ErrSegmentConflict) で判定できる
type ConflictError struct {
	SegmentID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("区間 %s は既に他の予約に確保されています", e.SegmentID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSegmentConflict
}
