// Package application 波动率服务：按市场缓存估计值并支持异步重算
package application

import (
	"context"
	"sync"
	"time"

	"github.com/oddslab/probpricing/internal/volatility/domain"
	"github.com/oddslab/probpricing/pkg/logger"
	"github.com/oddslab/probpricing/pkg/metrics"
)

// VolatilityService 波动率应用服务
// 缓存读从不等待重算：重算期间返回上一次的估计（或默认值），
// 这是有意的最终一致性选择，报价路径不允许被波动率刷新阻塞
type VolatilityService struct {
	repo       domain.HistoryRepository
	estimator  *domain.Estimator
	windowDays int
	metrics    *metrics.Metrics

	mu    sync.RWMutex
	cache map[string]domain.Estimate
}

// NewVolatilityService 构造函数
func NewVolatilityService(repo domain.HistoryRepository, windowDays int, m *metrics.Metrics) *VolatilityService {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &VolatilityService{
		repo:       repo,
		estimator:  domain.NewEstimator(),
		windowDays: windowDays,
		metrics:    m,
		cache:      make(map[string]domain.Estimate),
	}
}

// Get 读取缓存的年化波动率，无缓存时返回默认值
func (s *VolatilityService) Get(instrumentID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if est, ok := s.cache[instrumentID]; ok {
		return est.AnnualizedVol
	}
	return domain.DefaultVolatility
}

// GetEstimate 读取缓存的完整估计，第二个返回值表示是否命中
func (s *VolatilityService) GetEstimate(instrumentID string) (domain.Estimate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	est, ok := s.cache[instrumentID]
	return est, ok
}

// Refresh 从历史数据重算估计并写入缓存（后写覆盖）
func (s *VolatilityService) Refresh(ctx context.Context, instrumentID string, method domain.Method) (domain.Estimate, error) {
	points, err := s.repo.GetHistoricalData(ctx, instrumentID, s.windowDays)
	if err != nil {
		return domain.Estimate{}, err
	}

	est := domain.Estimate{
		InstrumentID:  instrumentID,
		AnnualizedVol: s.estimator.Estimate(points, method),
		Method:        method,
		ComputedAt:    time.Now(),
	}

	s.mu.Lock()
	s.cache[instrumentID] = est
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.VolatilityRefreshes.Inc()
	}
	logger.Debug(ctx, "volatility estimate refreshed",
		"instrument_id", instrumentID,
		"method", string(method),
		"annualized_vol", est.AnnualizedVol,
	)
	return est, nil
}

// RefreshAsync 异步重算，失败只记录日志
// 行情显著变化触发的刷新路径使用本方法，调用方不关心结果
func (s *VolatilityService) RefreshAsync(instrumentID string, method domain.Method) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := s.Refresh(ctx, instrumentID, method); err != nil {
			logger.Warn(ctx, "async volatility refresh failed",
				"instrument_id", instrumentID,
				"error", err,
			)
		}
	}()
}

// ApplyTermStructure 对缓存估计应用期限结构调整
func (s *VolatilityService) ApplyTermStructure(baseVol, timeToExpiry float64) float64 {
	return s.estimator.ApplyTermStructure(baseVol, timeToExpiry)
}
