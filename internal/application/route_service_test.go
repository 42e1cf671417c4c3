package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
)

func validRouteInput() CreateRouteInput {
	return CreateRouteInput{
		Name: "Nairobi - Eldoret",
		Stops: []StopInput{
			{ID: "NRB", Name: "Nairobi", OrderIndex: 0},
			{ID: "NKR", Name: "Nakuru", OrderIndex: 1},
			{ID: "ELD", Name: "Eldoret", OrderIndex: 2},
		},
	}
}

func TestRouteService_CreateRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("正常に路線を作成できる", func(t *testing.T) {
		routeRepo := new(MockRouteRepository)
		service := NewRouteService(routeRepo, new(MockInventoryRepository))

		routeRepo.On("Create", ctx, mock.AnythingOfType("*route.Route")).Return(nil)

		rt, err := service.CreateRoute(ctx, validRouteInput())

		require.NoError(t, err)
		assert.Equal(t, "Nairobi - Eldoret", rt.Name)
		assert.Len(t, rt.Stops, 3)
		routeRepo.AssertExpectations(t)
	})

	t.Run("停留所が2未満の場合はエラー", func(t *testing.T) {
		routeRepo := new(MockRouteRepository)
		service := NewRouteService(routeRepo, new(MockInventoryRepository))

		input := validRouteInput()
		input.Stops = input.Stops[:1]

		_, err := service.CreateRoute(ctx, input)

		require.Error(t, err)
		assert.ErrorIs(t, err, route.ErrNotEnoughStops)
		routeRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("停留所IDが重複している場合はエラー", func(t *testing.T) {
		routeRepo := new(MockRouteRepository)
		service := NewRouteService(routeRepo, new(MockInventoryRepository))

		input := validRouteInput()
		input.Stops[2].ID = "NRB"

		_, err := service.CreateRoute(ctx, input)

		assert.ErrorIs(t, err, route.ErrDuplicateStop)
	})
}

func TestRouteService_ListRoutes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		limit          int
		offset         int
		expectedLimit  int
		expectedOffset int
	}{
		{"デフォルトのlimit", 0, 0, 20, 0},
		{"上限を超えるlimitは丸められる", 500, 0, 100, 0},
		{"負のoffsetは0に丸められる", 10, -5, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routeRepo := new(MockRouteRepository)
			service := NewRouteService(routeRepo, new(MockInventoryRepository))

			routeRepo.On("List", ctx, tt.expectedLimit, tt.expectedOffset).Return([]*route.Route{}, nil)

			_, err := service.ListRoutes(ctx, tt.limit, tt.offset)

			require.NoError(t, err)
			routeRepo.AssertExpectations(t)
		})
	}
}

func TestRouteService_PublishInventory(t *testing.T) {
	ctx := context.Background()

	t.Run("全座席×全区間のレコードが開放状態で作成される", func(t *testing.T) {
		routeRepo := new(MockRouteRepository)
		inventoryRepo := new(MockInventoryRepository)
		service := NewRouteService(routeRepo, inventoryRepo)

		routeRepo.On("GetByID", ctx, "route-123").Return(nairobiEldoretRoute(), nil)
		inventoryRepo.On("CreateBulk", ctx, mock.MatchedBy(func(records []*inventory.SeatSegment) bool {
			// 3座席 × 2区間 = 6レコード、すべて開放状態
			if len(records) != 6 {
				return false
			}
			for _, rec := range records {
				if !rec.IsOpen() || rec.TravelDate != "2026-09-01" {
					return false
				}
			}
			return true
		})).Return(nil)

		count, err := service.PublishInventory(ctx, PublishInventoryInput{
			RouteID: "route-123", TravelDate: "2026-09-01", SeatCount: 3,
		})

		require.NoError(t, err)
		assert.Equal(t, 6, count)
		inventoryRepo.AssertExpectations(t)
	})

	t.Run("座席数が0以下の場合はエラー", func(t *testing.T) {
		service := NewRouteService(new(MockRouteRepository), new(MockInventoryRepository))

		_, err := service.PublishInventory(ctx, PublishInventoryInput{
			RouteID: "route-123", TravelDate: "2026-09-01", SeatCount: 0,
		})

		require.Error(t, err)
	})

	t.Run("路線が存在しない場合はエラー", func(t *testing.T) {
		routeRepo := new(MockRouteRepository)
		service := NewRouteService(routeRepo, new(MockInventoryRepository))

		routeRepo.On("GetByID", ctx, "route-404").Return(nil, route.ErrRouteNotFound)

		_, err := service.PublishInventory(ctx, PublishInventoryInput{
			RouteID: "route-404", TravelDate: "2026-09-01", SeatCount: 3,
		})

		assert.ErrorIs(t, err, route.ErrRouteNotFound)
	})
}
