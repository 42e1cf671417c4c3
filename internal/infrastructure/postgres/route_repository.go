package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
)

type routeRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	Version   int       `db:"version"`
}

type stopRow struct {
	RouteID    string `db:"route_id"`
	StopID     string `db:"stop_id"`
	Name       string `db:"name"`
	OrderIndex int    `db:"order_index"`
}

type RouteRepository struct{ db *sqlx.DB }

func NewRouteRepository(db *sqlx.DB) *RouteRepository { return &RouteRepository{db: db} }

func (r *RouteRepository) Create(ctx context.Context, rt *route.Route) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO routes (name, created_at, updated_at, version) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := tx.QueryRowContext(ctx, query, rt.Name, rt.CreatedAt, rt.UpdatedAt, rt.Version).Scan(&rt.ID); err != nil {
		return fmt.Errorf("路線作成に失敗: %w", err)
	}
	for _, s := range rt.Stops {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO route_stops (route_id, stop_id, name, order_index) VALUES ($1, $2, $3, $4)`,
			rt.ID, s.ID, s.Name, s.OrderIndex); err != nil {
			return fmt.Errorf("停留所作成に失敗: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

func (r *RouteRepository) GetByID(ctx context.Context, id string) (*route.Route, error) {
	var row routeRow
	if err := r.db.GetContext(ctx, &row, `SELECT id, name, created_at, updated_at, version FROM routes WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, route.ErrRouteNotFound
		}
		return nil, fmt.Errorf("路線取得に失敗: %w", err)
	}
	stops, err := r.getStops(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRouteEntity(&row, stops), nil
}

func (r *RouteRepository) List(ctx context.Context, limit, offset int) ([]*route.Route, error) {
	var rows []routeRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, name, created_at, updated_at, version FROM routes ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset); err != nil {
		return nil, fmt.Errorf("路線一覧取得に失敗: %w", err)
	}
	result := make([]*route.Route, len(rows))
	for i, row := range rows {
		stops, err := r.getStops(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		result[i] = toRouteEntity(&row, stops)
	}
	return result, nil
}

func (r *RouteRepository) getStops(ctx context.Context, routeID string) ([]route.Stop, error) {
	var rows []stopRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT route_id, stop_id, name, order_index FROM route_stops WHERE route_id = $1 ORDER BY order_index`, routeID); err != nil {
		return nil, fmt.Errorf("停留所取得に失敗: %w", err)
	}
	stops := make([]route.Stop, len(rows))
	for i, row := range rows {
		stops[i] = route.Stop{ID: row.StopID, Name: row.Name, OrderIndex: row.OrderIndex}
	}
	return stops, nil
}

func toRouteEntity(row *routeRow, stops []route.Stop) *route.Route {
	return &route.Route{
		ID: row.ID, Name: row.Name, Stops: stops,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt, Version: row.Version,
	}
}

var _ route.Repository = (*RouteRepository)(nil)
