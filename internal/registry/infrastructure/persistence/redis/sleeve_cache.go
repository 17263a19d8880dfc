// Package redis 为注册表仓储提供 Redis 读缓存
package redis

import (
	"context"
	"time"

	"github.com/wyfcoding/tradingassistant/internal/registry/domain"
	"github.com/wyfcoding/tradingassistant/pkg/cache"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
)

const sleevesKey = "registry:sleeves"

// jsonCache cache.RedisCache 中本包用到的方法
type jsonCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var _ jsonCache = (*cache.RedisCache)(nil)

type cachedSleeveRepository struct {
	domain.SleeveRepository
	cache jsonCache
	ttl   time.Duration
}

// NewCachedSleeveRepository 缓存分组列表，Seed 后失效；缓存读写失败时回落到底层仓储
func NewCachedSleeveRepository(next domain.SleeveRepository, c jsonCache, ttl time.Duration) domain.SleeveRepository {
	return &cachedSleeveRepository{SleeveRepository: next, cache: c, ttl: ttl}
}

func (r *cachedSleeveRepository) List(ctx context.Context) ([]*domain.Sleeve, error) {
	var cached []*domain.Sleeve
	hit, err := r.cache.GetJSON(ctx, sleevesKey, &cached)
	if err != nil {
		logger.Warn(ctx, "Sleeve cache read failed", "error", err)
	}
	if hit {
		return cached, nil
	}

	sleeves, err := r.SleeveRepository.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetJSON(ctx, sleevesKey, sleeves, r.ttl); err != nil {
		logger.Warn(ctx, "Sleeve cache write failed", "error", err)
	}
	return sleeves, nil
}

func (r *cachedSleeveRepository) Seed(ctx context.Context, sleeves []domain.Sleeve) error {
	if err := r.SleeveRepository.Seed(ctx, sleeves); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, sleevesKey); err != nil {
		logger.Warn(ctx, "Sleeve cache invalidation failed", "error", err)
	}
	return nil
}
