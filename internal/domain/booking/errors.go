package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound             = errors.New("予約が見つかりません")
	ErrBookingNotPending           = errors.New("予約は保留中ではありません")
	ErrBookingAlreadyCompleted     = errors.New("予約は既に確定されています")
	ErrBookingAlreadyFailed        = errors.New("予約は既に失敗状態です")
	ErrUserIDRequired              = errors.New("ユーザーIDは必須です")
	ErrRouteIDRequired             = errors.New("路線IDは必須です")
	ErrTravelDateRequired          = errors.New("運行日は必須です")
	ErrInvalidSeatNumber           = errors.New("座席番号は1以上である必要があります")
	ErrSegmentIDsRequired          = errors.New("区間IDは必須です")
	ErrIdempotencyKeyRequired      = errors.New("冪等性キーは必須です")
	ErrIdempotencyKeyAlreadyExists = errors.New("同じ冪等性キーの予約が既に存在します")
)
