package application

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddslab/probpricing/internal/amm/domain"
	pricing "github.com/oddslab/probpricing/internal/pricing/domain"
	"github.com/oddslab/probpricing/pkg/logger"
	"github.com/oddslab/probpricing/pkg/metrics"
)

// AMMService 流动性池应用服务
// 持有进程内的池注册表；注册表锁只保护 map 本身，
// 池内部状态由各池自己的锁串行化
type AMMService struct {
	mu    sync.RWMutex
	pools map[string]*domain.Pool

	repo      domain.PoolRepository
	publisher domain.EventPublisher
	metrics   *metrics.Metrics
}

// NewAMMService 创建 AMM 应用服务
func NewAMMService(repo domain.PoolRepository, publisher domain.EventPublisher, m *metrics.Metrics) *AMMService {
	return &AMMService{
		pools:     make(map[string]*domain.Pool),
		repo:      repo,
		publisher: publisher,
		metrics:   m,
	}
}

// InitializePool 初始化池，幂等：已存在的池原样返回
func (s *AMMService) InitializePool(ctx context.Context, instrumentID string, initialPrice float64) (*domain.PoolSnapshot, error) {
	if instrumentID == "" || initialPrice < 0 || initialPrice > 1 {
		return nil, domain.ErrInvalidInput
	}

	s.mu.Lock()
	pool, ok := s.pools[instrumentID]
	if !ok {
		pool = domain.NewPool(instrumentID, initialPrice)
		s.pools[instrumentID] = pool
		if s.metrics != nil {
			s.metrics.PoolsActive.Inc()
		}
	}
	s.mu.Unlock()

	snapshot := pool.Snapshot()
	if !ok {
		logger.Info(ctx, "liquidity pool initialized",
			"instrument_id", instrumentID,
			"initial_price", initialPrice)
		s.saveSnapshot(ctx, &snapshot)
	}
	return &snapshot, nil
}

// neutralInitialPrice 懒创建池时合成报价使用的中性初始价
const neutralInitialPrice = 0.5

// AddLiquidity 注入流动性，池不存在时懒创建
func (s *AMMService) AddLiquidity(ctx context.Context, instrumentID string, amount float64) (*domain.LiquidityResult, error) {
	if instrumentID == "" || amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	pool := s.getOrCreatePool(ctx, instrumentID)

	result := pool.AddLiquidity(amount)
	logger.Info(ctx, "liquidity added",
		"instrument_id", instrumentID,
		"amount", amount,
		"total_liquidity", result.TotalLiquidity)

	s.publishLiquidityChanged(ctx, instrumentID, amount, result)
	snapshot := pool.Snapshot()
	s.saveSnapshot(ctx, &snapshot)
	return &result, nil
}

// RemoveLiquidity 移除流动性，超过余量时按余量移除
func (s *AMMService) RemoveLiquidity(ctx context.Context, instrumentID string, amount float64) (*domain.LiquidityResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidInput
	}
	pool, err := s.getPool(instrumentID)
	if err != nil {
		return nil, err
	}

	result := pool.RemoveLiquidity(amount)
	logger.Info(ctx, "liquidity removed",
		"instrument_id", instrumentID,
		"amount_removed", result.AmountRemoved,
		"total_liquidity", result.TotalLiquidity)

	s.publishLiquidityChanged(ctx, instrumentID, -result.AmountRemoved, result)
	snapshot := pool.Snapshot()
	s.saveSnapshot(ctx, &snapshot)
	return &result, nil
}

// ExecuteTrade 在池中执行一笔交易
func (s *AMMService) ExecuteTrade(ctx context.Context, instrumentID string, direction domain.Direction, amount float64) (*domain.TradeReceipt, error) {
	pool, err := s.getPool(instrumentID)
	if err != nil {
		return nil, err
	}

	receipt, err := pool.ExecuteTrade(direction, amount)
	if err != nil {
		if s.metrics != nil {
			s.metrics.TradesRejected.Inc()
		}
		logger.Warn(ctx, "trade rejected",
			"instrument_id", instrumentID,
			"direction", string(direction),
			"amount", amount,
			"error", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TradesTotal.Inc()
	}
	logger.Info(ctx, "trade executed",
		"instrument_id", instrumentID,
		"direction", string(direction),
		"amount", amount,
		"execution_price", receipt.ExecutionPrice,
		"slippage", receipt.Slippage)

	if s.publisher != nil {
		if err := s.publisher.PublishTradeExecuted(ctx, domain.NewTradeExecutedEvent(receipt)); err != nil {
			logger.Warn(ctx, "failed to publish trade event", "error", err)
		}
	}

	snapshot := pool.Snapshot()
	s.saveSnapshot(ctx, &snapshot)
	return &receipt, nil
}

// AdjustQuote 按池状态调整模型报价；池不存在时原样返回
func (s *AMMService) AdjustQuote(instrumentID string, base pricing.PriceQuote) pricing.PriceQuote {
	pool, err := s.getPool(instrumentID)
	if err != nil {
		return base
	}
	adjusted := pool.AdjustQuote(base, time.Now())
	pool.SetLastQuote(adjusted)
	return adjusted
}

// GetPoolSnapshot 返回池的一致性快照
func (s *AMMService) GetPoolSnapshot(instrumentID string) (*domain.PoolSnapshot, error) {
	pool, err := s.getPool(instrumentID)
	if err != nil {
		return nil, err
	}
	snapshot := pool.Snapshot()
	return &snapshot, nil
}

// HasPool 判断池是否存在
func (s *AMMService) HasPool(instrumentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pools[instrumentID]
	return ok
}

func (s *AMMService) getOrCreatePool(ctx context.Context, instrumentID string) *domain.Pool {
	s.mu.Lock()
	pool, ok := s.pools[instrumentID]
	if !ok {
		pool = domain.NewPool(instrumentID, neutralInitialPrice)
		s.pools[instrumentID] = pool
		if s.metrics != nil {
			s.metrics.PoolsActive.Inc()
		}
	}
	s.mu.Unlock()

	if !ok {
		logger.Info(ctx, "liquidity pool created lazily", "instrument_id", instrumentID)
	}
	return pool
}

func (s *AMMService) getPool(instrumentID string) (*domain.Pool, error) {
	s.mu.RLock()
	pool, ok := s.pools[instrumentID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	return pool, nil
}

func (s *AMMService) publishLiquidityChanged(ctx context.Context, instrumentID string, change float64, result domain.LiquidityResult) {
	if s.publisher == nil {
		return
	}
	event := &domain.LiquidityChangedEvent{
		InstrumentID:   instrumentID,
		Change:         decimal.NewFromFloat(change),
		TotalLiquidity: decimal.NewFromFloat(result.TotalLiquidity),
		MaxOrderSize:   decimal.NewFromFloat(result.MaxOrderSize),
		OccurredOn:     time.Now().UnixMilli(),
	}
	if err := s.publisher.PublishLiquidityChanged(ctx, event); err != nil {
		logger.Warn(ctx, "failed to publish liquidity event", "error", err)
	}
}

func (s *AMMService) saveSnapshot(ctx context.Context, snapshot *domain.PoolSnapshot) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveSnapshot(ctx, snapshot); err != nil {
		logger.Warn(ctx, "failed to save pool snapshot",
			"instrument_id", snapshot.InstrumentID,
			"error", err)
	}
}
