package route

import "context"

// Repository は路線リポジトリのインターフェース
type Repository interface {
	// Create は新しい路線を作成する
	Create(ctx context.Context, r *Route) error

	// GetByID はIDから路線を取得する
	GetByID(ctx context.Context, id string) (*Route, error)

	// List は路線一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Route, error)
}
