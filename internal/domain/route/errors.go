package route

import "errors"

// Route ドメインのエラー定義
var (
	ErrRouteNotFound          = errors.New("路線が見つかりません")
	ErrUnknownStop            = errors.New("停留所が路線上に存在しません")
	ErrInvalidInterval        = errors.New("乗車停留所は降車停留所より前である必要があります")
	ErrRouteNameRequired      = errors.New("路線名は必須です")
	ErrNotEnoughStops         = errors.New("路線には2つ以上の停留所が必要です")
	ErrStopIDRequired         = errors.New("停留所IDは必須です")
	ErrDuplicateStop          = errors.New("停留所IDが重複しています")
	ErrStopOrderNotIncreasing = errors.New("停留所の順序は厳密に増加する必要があります")
)
