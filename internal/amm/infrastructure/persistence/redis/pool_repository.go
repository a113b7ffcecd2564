package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oddslab/probpricing/internal/amm/domain"
	"github.com/oddslab/probpricing/pkg/cache"
)

const (
	poolKeyPrefix = "amm:pool:"
	poolTTL       = 24 * time.Hour
)

// PoolRepository 池快照的 Redis 读模型仓储
type PoolRepository struct {
	cache *cache.RedisCache
}

// NewPoolRepository 创建池仓储
func NewPoolRepository(c *cache.RedisCache) *PoolRepository {
	return &PoolRepository{cache: c}
}

// SaveSnapshot 写入池快照
func (r *PoolRepository) SaveSnapshot(ctx context.Context, snapshot *domain.PoolSnapshot) error {
	key := poolKeyPrefix + snapshot.InstrumentID
	if err := r.cache.SetJSON(ctx, key, snapshot, poolTTL); err != nil {
		return fmt.Errorf("save pool snapshot %s: %w", snapshot.InstrumentID, err)
	}
	return nil
}

// GetSnapshot 读取池快照，不存在时返回 ErrPoolNotFound
func (r *PoolRepository) GetSnapshot(ctx context.Context, instrumentID string) (*domain.PoolSnapshot, error) {
	key := poolKeyPrefix + instrumentID
	var snapshot domain.PoolSnapshot
	if err := r.cache.GetJSON(ctx, key, &snapshot); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domain.ErrPoolNotFound
		}
		return nil, fmt.Errorf("get pool snapshot %s: %w", instrumentID, err)
	}
	return &snapshot, nil
}
