package domain

import (
	"math"
	"sync"
	"time"

	pricing "github.com/oddslab/probpricing/internal/pricing/domain"
)

const (
	// MaxOrderRatio 单笔上限占总流动性的比例
	MaxOrderRatio = 0.10
	// MaxSlippage 滑点上限
	MaxSlippage = 0.20
	// MinExecutionPrice 成交价下限
	MinExecutionPrice = 0.01
	// MaxExecutionPrice 成交价上限
	MaxExecutionPrice = 0.99
	// recentTradeWindow 近期活跃折扣的时间窗口
	recentTradeWindow = time.Hour
)

// Pool 单个市场的流动性池聚合
// 同一 instrumentId 同时只允许一个在途变更；读快照与变更互斥，
// 保证观察到的要么是变更前、要么是变更后的完整状态
type Pool struct {
	mu sync.RWMutex

	instrumentID string
	liquidity    float64
	maxOrderSize float64
	totalVolume  float64
	buyVolume    float64
	sellVolume   float64
	imbalance    float64
	lastQuote    pricing.PriceQuote
	lastTrade    *TradeRecord
}

// PoolSnapshot 池状态的一致性快照
type PoolSnapshot struct {
	InstrumentID   string             `json:"instrument_id"`
	Liquidity      float64            `json:"liquidity"`
	MaxOrderSize   float64            `json:"max_order_size"`
	TotalVolume    float64            `json:"total_volume"`
	BuyVolume      float64            `json:"buy_volume"`
	SellVolume     float64            `json:"sell_volume"`
	ImbalanceRatio float64            `json:"imbalance_ratio"`
	LastQuote      pricing.PriceQuote `json:"last_quote"`
	LastTrade      *TradeRecord       `json:"last_trade,omitempty"`
}

// LiquidityResult 流动性变更结果
type LiquidityResult struct {
	AmountRemoved  float64 `json:"amount_removed,omitempty"`
	TotalLiquidity float64 `json:"total_liquidity"`
	MaxOrderSize   float64 `json:"max_order_size"`
}

// NewPool 创建流动性为零的新池，并设置合成初始报价
func NewPool(instrumentID string, initialPrice float64) *Pool {
	now := time.Now()
	return &Pool{
		instrumentID: instrumentID,
		lastQuote: pricing.PriceQuote{
			Bid:        clamp01(0.95 * initialPrice),
			Mid:        clamp01(initialPrice),
			Ask:        clamp01(1.05 * initialPrice),
			ComputedAt: now,
		},
	}
}

// InstrumentID 返回池所属的市场标识
func (p *Pool) InstrumentID() string {
	return p.instrumentID
}

// AddLiquidity 注入流动性并重算单笔上限
func (p *Pool) AddLiquidity(amount float64) LiquidityResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.liquidity += amount
	p.maxOrderSize = MaxOrderRatio * p.liquidity

	return LiquidityResult{
		TotalLiquidity: p.liquidity,
		MaxOrderSize:   p.maxOrderSize,
	}
}

// RemoveLiquidity 移除流动性，实际移除量不超过当前余量
// 池被抽干后仍保留成交量与失衡的历史记录（审计属性）
func (p *Pool) RemoveLiquidity(amount float64) LiquidityResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := math.Min(amount, p.liquidity)
	p.liquidity -= removed
	p.maxOrderSize = MaxOrderRatio * p.liquidity

	return LiquidityResult{
		AmountRemoved:  removed,
		TotalLiquidity: p.liquidity,
		MaxOrderSize:   p.maxOrderSize,
	}
}

// ExecuteTrade 执行一笔交易：校验上限、计算滑点与成交价、
// 更新成交量计数与失衡比，全部变更在单次加锁内完成
func (p *Pool) ExecuteTrade(direction Direction, amount float64) (TradeReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount <= 0 || !direction.Valid() {
		return TradeReceipt{}, ErrInvalidInput
	}
	if amount > p.maxOrderSize {
		return TradeReceipt{}, ErrOrderTooLarge
	}

	slippage := math.Min(MaxSlippage, math.Pow(amount/p.liquidity, 1.5)*0.5)

	var price float64
	if direction == DirectionBuy {
		price = math.Min(p.lastQuote.Ask*(1+slippage), MaxExecutionPrice)
		p.buyVolume += amount
	} else {
		price = math.Max(p.lastQuote.Bid*(1-slippage), MinExecutionPrice)
		p.sellVolume += amount
	}

	p.totalVolume = p.buyVolume + p.sellVolume
	if p.totalVolume > 0 {
		p.imbalance = math.Abs(p.buyVolume-p.sellVolume) / p.totalVolume
	} else {
		p.imbalance = 0
	}

	now := time.Now()
	p.lastTrade = &TradeRecord{
		Amount:    amount,
		Direction: direction,
		Timestamp: now,
	}

	return TradeReceipt{
		InstrumentID:   p.instrumentID,
		Direction:      direction,
		Amount:         amount,
		ExecutionPrice: price,
		Slippage:       slippage,
		Timestamp:      now,
	}, nil
}

// AdjustQuote 按池状态加宽模型报价的半点差
// 只读操作：与变更并发时观察到变更前或变更后的完整状态
func (p *Pool) AdjustQuote(base pricing.PriceQuote, now time.Time) pricing.PriceQuote {
	p.mu.RLock()
	defer p.mu.RUnlock()

	factor := p.liquidityFactorLocked(now)
	halfSpread := (base.Ask - base.Bid) / 2 * (1 + factor)

	adjusted := base
	adjusted.Bid = clamp01(base.Mid - halfSpread)
	adjusted.Ask = clamp01(base.Mid + halfSpread)
	return adjusted
}

// SetLastQuote 记录最近一次对外报价，供后续成交定价使用
func (p *Pool) SetLastQuote(quote pricing.PriceQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastQuote = quote
}

// liquidityFactorLocked 计算流动性点差系数，调用方必须持有读锁
func (p *Pool) liquidityFactorLocked(now time.Time) float64 {
	liquidityScale := clampRange(p.liquidity/10000, 0.1, 1.0)

	imbalanceFactor := 1 + p.imbalance*3
	if imbalanceFactor > 2.0 {
		imbalanceFactor = 2.0
	}

	var recentActivityDiscount float64
	if p.lastTrade != nil {
		age := now.Sub(p.lastTrade.Timestamp)
		recentActivityDiscount = clampRange(1-age.Seconds()/recentTradeWindow.Seconds(), 0.5, 1.0)
	}

	return (1 / liquidityScale) * imbalanceFactor * (1 - recentActivityDiscount*0.2)
}

// Snapshot 返回一致性快照
func (p *Pool) Snapshot() PoolSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var lastTrade *TradeRecord
	if p.lastTrade != nil {
		t := *p.lastTrade
		lastTrade = &t
	}

	return PoolSnapshot{
		InstrumentID:   p.instrumentID,
		Liquidity:      p.liquidity,
		MaxOrderSize:   p.maxOrderSize,
		TotalVolume:    p.totalVolume,
		BuyVolume:      p.buyVolume,
		SellVolume:     p.sellVolume,
		ImbalanceRatio: p.imbalance,
		LastQuote:      p.lastQuote,
		LastTrade:      lastTrade,
	}
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
