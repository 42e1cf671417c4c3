package application

import (
	"context"
	"fmt"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
)

type RouteService struct {
	routeRepo     route.Repository
	inventoryRepo inventory.Repository
}

func NewRouteService(rr route.Repository, ir inventory.Repository) *RouteService {
	return &RouteService{routeRepo: rr, inventoryRepo: ir}
}

type StopInput struct {
	ID         string
	Name       string
	OrderIndex int
}

type CreateRouteInput struct {
	Name  string
	Stops []StopInput
}

func (s *RouteService) CreateRoute(ctx context.Context, input CreateRouteInput) (*route.Route, error) {
	stops := make([]route.Stop, len(input.Stops))
	for i, st := range input.Stops {
		stops[i] = route.Stop{ID: st.ID, Name: st.Name, OrderIndex: st.OrderIndex}
	}
	rt := route.NewRoute(input.Name, stops)
	if err := rt.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.routeRepo.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("路線作成に失敗しました: %w", err)
	}
	return rt, nil
}

func (s *RouteService) GetRoute(ctx context.Context, id string) (*route.Route, error) {
	return s.routeRepo.GetByID(ctx, id)
}

func (s *RouteService) ListRoutes(ctx context.Context, limit, offset int) ([]*route.Route, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.routeRepo.List(ctx, limit, offset)
}

type PublishInventoryInput struct {
	RouteID    string
	TravelDate string
	SeatCount  int
}

// PublishInventory は運行日の座席区間在庫を公開する
// 全座席×全区間のレコードを開放状態で一括作成する
func (s *RouteService) PublishInventory(ctx context.Context, input PublishInventoryInput) (int, error) {
	if input.SeatCount <= 0 {
		return 0, fmt.Errorf("座席数は1以上である必要があります")
	}
	rt, err := s.routeRepo.GetByID(ctx, input.RouteID)
	if err != nil {
		return 0, fmt.Errorf("路線取得に失敗: %w", err)
	}
	segments := rt.Segments()
	if len(segments) == 0 {
		return 0, route.ErrNotEnoughStops
	}

	records := make([]*inventory.SeatSegment, 0, input.SeatCount*len(segments))
	for seat := 1; seat <= input.SeatCount; seat++ {
		for _, seg := range segments {
			records = append(records, inventory.NewSeatSegment(
				rt.ID, input.TravelDate, seat, seg.ID, seg.Position))
		}
	}
	if err := s.inventoryRepo.CreateBulk(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
