package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/leonmuriithi/transit-core-poc/internal/domain/inventory"
	"github.com/leonmuriithi/transit-core-poc/internal/domain/route"
	redisinfra "github.com/leonmuriithi/transit-core-poc/internal/infrastructure/redis"
	"github.com/leonmuriithi/transit-core-poc/internal/pkg/logger"
)

const (
	openCountCacheTTL = 30 * time.Second
)

// AvailabilityService は座席区間の空き状況照会を提供する
// 在庫の変更は一切行わない（変更はロックエンジン経由のみ）
type AvailabilityService struct {
	inventoryRepo inventory.Repository
	routeRepo     route.Repository
	cache         *redisinfra.AvailabilityCache
}

func NewAvailabilityService(ir inventory.Repository, rr route.Repository, cache *redisinfra.AvailabilityCache) *AvailabilityService {
	return &AvailabilityService{inventoryRepo: ir, routeRepo: rr, cache: cache}
}

// GetSeatAvailability は座席の全区間の状態を区間位置順に返す
func (s *AvailabilityService) GetSeatAvailability(ctx context.Context, routeID, travelDate string, seatNumber int) ([]*inventory.SeatSegment, error) {
	key := inventory.Key{RouteID: routeID, TravelDate: travelDate, SeatNumber: seatNumber}
	return s.inventoryRepo.GetBySeat(ctx, key)
}

// QuerySegmentStatus は旅程が占有する区間の現在状態を返す
func (s *AvailabilityService) QuerySegmentStatus(ctx context.Context, routeID, travelDate string, seatNumber int, boardingStopID, dropOffStopID string) ([]*inventory.SeatSegment, error) {
	rt, err := s.routeRepo.GetByID(ctx, routeID)
	if err != nil {
		return nil, err
	}
	segments, err := rt.ResolveSegments(boardingStopID, dropOffStopID)
	if err != nil {
		return nil, err
	}
	segmentIDs := make([]string, len(segments))
	for i, seg := range segments {
		segmentIDs[i] = seg.ID
	}
	key := inventory.Key{RouteID: routeID, TravelDate: travelDate, SeatNumber: seatNumber}
	return s.inventoryRepo.GetByKey(ctx, key, segmentIDs)
}

// CountOpenSegments は運行日の開放区間数を返す（キャッシュ付き）
func (s *AvailabilityService) CountOpenSegments(ctx context.Context, routeID, travelDate string) (int, error) {
	// キャッシュから取得を試みる
	if s.cache != nil {
		count, err := s.cache.GetOpenCount(ctx, routeID, travelDate)
		if err == nil {
			logger.Debug("キャッシュヒット",
				zap.String("route_id", routeID),
				zap.String("travel_date", travelDate),
				zap.Int("count", count))
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	// DBから取得
	count, err := s.inventoryRepo.CountOpen(ctx, routeID, travelDate)
	if err != nil {
		return 0, err
	}

	// キャッシュに保存
	if s.cache != nil {
		if cacheErr := s.cache.SetOpenCount(ctx, routeID, travelDate, count, openCountCacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}

	return count, nil
}
