package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/oddslab/probpricing/internal/marketmonitor/domain"
)

// SimFeed 本地模拟行情源，用于开发与联调
// 每个市场的中间价围绕初始值做有界随机游走
type SimFeed struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
}

// NewSimFeed 创建模拟行情源
func NewSimFeed(seed int64) *SimFeed {
	return &SimFeed{
		rng:    rand.New(rand.NewSource(seed)),
		prices: make(map[string]float64),
	}
}

// Fetch 生成下一份模拟行情
func (f *SimFeed) Fetch(ctx context.Context, instrumentID string) (domain.MarketData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	price, ok := f.prices[instrumentID]
	if !ok {
		price = 0.3 + f.rng.Float64()*0.4
	}

	price += (f.rng.Float64() - 0.5) * 0.02
	price = math.Min(math.Max(price, 0.01), 0.99)
	f.prices[instrumentID] = price

	spread := 0.005 + f.rng.Float64()*0.005
	return domain.MarketData{
		InstrumentID: instrumentID,
		MidPrice:     price,
		BestBid:      math.Max(price-spread/2, 0),
		BestAsk:      math.Min(price+spread/2, 1),
		Volume24h:    f.rng.Float64() * 50000,
		Timestamp:    time.Now(),
	}, nil
}
