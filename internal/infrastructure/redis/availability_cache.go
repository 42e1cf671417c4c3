package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCache は運行日ごとの開放区間数キャッシュを管理する
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// GetOpenCount は運行日の開放区間数をキャッシュから取得する
func (c *AvailabilityCache) GetOpenCount(ctx context.Context, routeID, travelDate string) (int, error) {
	key := c.openCountKey(routeID, travelDate)
	val, err := c.client.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetOpenCount は運行日の開放区間数をキャッシュに保存する
func (c *AvailabilityCache) SetOpenCount(ctx context.Context, routeID, travelDate string, count int, ttl time.Duration) error {
	key := c.openCountKey(routeID, travelDate)
	if err := c.client.Set(ctx, key, count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は運行日のキャッシュを無効化する
// ロック・確定・解放のたびに呼び出される
func (c *AvailabilityCache) Invalidate(ctx context.Context, routeID, travelDate string) error {
	key := c.openCountKey(routeID, travelDate)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) openCountKey(routeID, travelDate string) string {
	return fmt.Sprintf("segments:open:%s:%s", routeID, travelDate)
}
