package application

import (
	"context"
	"time"

	ammapp "github.com/oddslab/probpricing/internal/amm/application"
	monitordomain "github.com/oddslab/probpricing/internal/marketmonitor/domain"
	"github.com/oddslab/probpricing/internal/pricing/domain"
	volapp "github.com/oddslab/probpricing/internal/volatility/application"
	voldomain "github.com/oddslab/probpricing/internal/volatility/domain"
	"github.com/oddslab/probpricing/pkg/logger"
	"github.com/oddslab/probpricing/pkg/metrics"
)

const (
	// RiskFreeRate 定价使用的无风险利率
	RiskFreeRate = 0.05
	// BaseLiquidityFactor 基础点差系数，后续由池状态调整替代
	BaseLiquidityFactor = 0.10
)

// QuoteResult 对外报价结果
type QuoteResult struct {
	Descriptor   domain.OptionDescriptor `json:"descriptor"`
	Quote        domain.PriceQuote       `json:"quote"`
	Volatility   float64                 `json:"volatility"`
	TimeToExpiry float64                 `json:"time_to_expiry"`
	PoolAdjusted bool                    `json:"pool_adjusted"`
}

// PricingService 定价编排服务
// 汇聚波动率估计、模型定价与池状态调整
type PricingService struct {
	model      *domain.BinaryBlackScholes
	volatility *volapp.VolatilityService
	amm        *ammapp.AMMService
	publisher  domain.EventPublisher
	metrics    *metrics.Metrics
}

// NewPricingService 创建定价服务
func NewPricingService(vol *volapp.VolatilityService, amm *ammapp.AMMService, publisher domain.EventPublisher, m *metrics.Metrics) *PricingService {
	return &PricingService{
		model:      domain.NewBinaryBlackScholes(),
		volatility: vol,
		amm:        amm,
		publisher:  publisher,
		metrics:    m,
	}
}

// GetQuote 计算期权报价
// poolAdjusted 为 true 且该市场存在流动性池时，按池状态加宽点差
func (s *PricingService) GetQuote(ctx context.Context, desc domain.OptionDescriptor, poolAdjusted bool) (*QuoteResult, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	t := desc.TimeToExpiry(start)

	baseVol := s.volatility.Get(desc.InstrumentID)
	vol := s.volatility.ApplyTermStructure(baseVol, t)

	quote := s.model.Price(desc, t, domain.PricingInput{
		Volatility:      vol,
		RiskFreeRate:    RiskFreeRate,
		LiquidityFactor: BaseLiquidityFactor,
	})

	adjusted := poolAdjusted && s.amm != nil && s.amm.HasPool(desc.InstrumentID)
	if adjusted {
		quote = s.amm.AdjustQuote(desc.InstrumentID, quote)
	}

	if s.metrics != nil {
		s.metrics.QuotesTotal.Inc()
		s.metrics.QuoteDuration.Observe(time.Since(start).Seconds())
	}
	logger.Debug(ctx, "quote computed",
		"instrument_id", desc.InstrumentID,
		"kind", string(desc.Kind),
		"mid", quote.Mid,
		"volatility", vol,
		"pool_adjusted", adjusted)

	s.publishOptionPriced(ctx, desc, quote, vol, adjusted)

	return &QuoteResult{
		Descriptor:   desc,
		Quote:        quote,
		Volatility:   vol,
		TimeToExpiry: t,
		PoolAdjusted: adjusted,
	}, nil
}

// OnMarketUpdate 行情更新回调
// 显著变化触发该市场波动率的异步重算，常规更新不动缓存
func (s *PricingService) OnMarketUpdate(ctx context.Context, update monitordomain.MarketUpdate) {
	if update.Kind != monitordomain.UpdateSignificantChange {
		return
	}
	logger.Info(ctx, "refreshing volatility on significant change",
		"instrument_id", update.Data.InstrumentID,
		"mid_change", update.MidChange)
	s.volatility.RefreshAsync(update.Data.InstrumentID, voldomain.MethodEWMA)
}

func (s *PricingService) publishOptionPriced(ctx context.Context, desc domain.OptionDescriptor, quote domain.PriceQuote, vol float64, adjusted bool) {
	if s.publisher == nil {
		return
	}
	event := domain.OptionPricedEvent{
		InstrumentID:   desc.InstrumentID,
		Kind:           desc.Kind,
		UnderlyingProb: desc.UnderlyingProb,
		StrikeProb:     desc.StrikeProb,
		Expiry:         desc.Expiry.UnixMilli(),
		Mid:            quote.Mid,
		Bid:            quote.Bid,
		Ask:            quote.Ask,
		Volatility:     vol,
		PoolAdjusted:   adjusted,
		OccurredOn:     quote.ComputedAt,
	}
	if err := s.publisher.PublishOptionPriced(ctx, event); err != nil {
		logger.Warn(ctx, "failed to publish option priced event",
			"instrument_id", desc.InstrumentID,
			"error", err)
	}
}
