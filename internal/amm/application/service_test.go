package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/oddslab/probpricing/internal/amm/domain"
	pricing "github.com/oddslab/probpricing/internal/pricing/domain"
)

type recordingPublisher struct {
	mu        sync.Mutex
	trades    []*domain.TradeExecutedEvent
	liquidity []*domain.LiquidityChangedEvent
}

func (p *recordingPublisher) PublishTradeExecuted(ctx context.Context, event *domain.TradeExecutedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades = append(p.trades, event)
	return nil
}

func (p *recordingPublisher) PublishLiquidityChanged(ctx context.Context, event *domain.LiquidityChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liquidity = append(p.liquidity, event)
	return nil
}

func TestInitializePoolIdempotent(t *testing.T) {
	svc := NewAMMService(nil, nil, nil)
	ctx := context.Background()

	first, err := svc.InitializePool(ctx, "m1", 0.60)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}

	if _, err := svc.AddLiquidity(ctx, "m1", 5000); err != nil {
		t.Fatalf("add liquidity failed: %v", err)
	}

	// 重复初始化不得重置已有状态
	second, err := svc.InitializePool(ctx, "m1", 0.10)
	if err != nil {
		t.Fatalf("re-init failed: %v", err)
	}
	if second.Liquidity != 5000 {
		t.Errorf("re-init reset liquidity: %v", second.Liquidity)
	}
	if second.LastQuote.Mid != first.LastQuote.Mid {
		t.Errorf("re-init replaced quote: %v", second.LastQuote.Mid)
	}
}

func TestInitializePoolRejectsBadInput(t *testing.T) {
	svc := NewAMMService(nil, nil, nil)
	ctx := context.Background()

	if _, err := svc.InitializePool(ctx, "", 0.5); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty instrument: got %v", err)
	}
	if _, err := svc.InitializePool(ctx, "m1", 1.5); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("out-of-range price: got %v", err)
	}
}

func TestAddLiquidityCreatesPoolLazily(t *testing.T) {
	svc := NewAMMService(nil, nil, nil)
	ctx := context.Background()

	result, err := svc.AddLiquidity(ctx, "fresh-market", 10000)
	if err != nil {
		t.Fatalf("addLiquidity on absent pool must lazily create, got error: %v", err)
	}
	if result.TotalLiquidity != 10000 || result.MaxOrderSize != 1000 {
		t.Errorf("lazy-created pool result: %+v", result)
	}

	snap, err := svc.GetPoolSnapshot("fresh-market")
	if err != nil {
		t.Fatalf("lazy-created pool missing: %v", err)
	}
	if snap.LastQuote.Mid != 0.5 {
		t.Errorf("lazy pool should carry neutral synthetic quote, mid = %v", snap.LastQuote.Mid)
	}

	// 懒创建的池可以直接交易
	if _, err := svc.ExecuteTrade(ctx, "fresh-market", domain.DirectionBuy, 500); err != nil {
		t.Errorf("trade on lazy-created pool failed: %v", err)
	}
}

func TestOperationsOnMissingPool(t *testing.T) {
	svc := NewAMMService(nil, nil, nil)
	ctx := context.Background()

	if _, err := svc.RemoveLiquidity(ctx, "ghost", 1000); !errors.Is(err, domain.ErrPoolNotFound) {
		t.Errorf("remove: got %v", err)
	}
	if _, err := svc.ExecuteTrade(ctx, "ghost", domain.DirectionBuy, 10); !errors.Is(err, domain.ErrPoolNotFound) {
		t.Errorf("trade: got %v", err)
	}
	if _, err := svc.GetPoolSnapshot("ghost"); !errors.Is(err, domain.ErrPoolNotFound) {
		t.Errorf("snapshot: got %v", err)
	}
}

func TestLiquidityRoundTrip(t *testing.T) {
	svc := NewAMMService(nil, nil, nil)
	ctx := context.Background()
	svc.InitializePool(ctx, "m1", 0.5)

	add, _ := svc.AddLiquidity(ctx, "m1", 10000)
	if add.MaxOrderSize != 1000 {
		t.Errorf("maxOrderSize = %v", add.MaxOrderSize)
	}

	remove, _ := svc.RemoveLiquidity(ctx, "m1", 4000)
	if remove.AmountRemoved != 4000 || remove.TotalLiquidity != 6000 {
		t.Errorf("remove result: %+v", remove)
	}
	if remove.MaxOrderSize != 600 {
		t.Errorf("maxOrderSize after remove = %v", remove.MaxOrderSize)
	}
}

func TestTradePublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewAMMService(nil, pub, nil)
	ctx := context.Background()

	svc.InitializePool(ctx, "m1", 0.5)
	svc.AddLiquidity(ctx, "m1", 10000)

	receipt, err := svc.ExecuteTrade(ctx, "m1", domain.DirectionBuy, 500)
	if err != nil {
		t.Fatalf("trade failed: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.trades) != 1 {
		t.Fatalf("expected 1 trade event, got %d", len(pub.trades))
	}
	event := pub.trades[0]
	if event.InstrumentID != "m1" || !event.ExecutionPrice.Equal(decimal.NewFromFloat(receipt.ExecutionPrice)) {
		t.Errorf("event mismatch: %+v vs %+v", event, receipt)
	}
	if len(pub.liquidity) != 1 {
		t.Errorf("expected 1 liquidity event, got %d", len(pub.liquidity))
	}
}

func TestAdjustQuotePassthroughWithoutPool(t *testing.T) {
	svc := NewAMMService(nil, nil, nil)

	base := pricing.PriceQuote{Bid: 0.58, Mid: 0.60, Ask: 0.62}
	got := svc.AdjustQuote("ghost", base)
	if got != base {
		t.Errorf("missing pool should pass quote through: %+v", got)
	}
}

func TestCrossPoolConcurrency(t *testing.T) {
	svc := NewAMMService(nil, nil, nil)
	ctx := context.Background()

	instruments := []string{"m1", "m2", "m3", "m4"}
	for _, id := range instruments {
		svc.InitializePool(ctx, id, 0.5)
		svc.AddLiquidity(ctx, id, 100000)
	}

	var wg sync.WaitGroup
	for _, id := range instruments {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(instrumentID string) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					if _, err := svc.ExecuteTrade(ctx, instrumentID, domain.DirectionBuy, 10); err != nil {
						t.Errorf("trade on %s failed: %v", instrumentID, err)
						return
					}
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range instruments {
		snap, err := svc.GetPoolSnapshot(id)
		if err != nil {
			t.Fatalf("snapshot %s: %v", id, err)
		}
		if snap.TotalVolume != 1000 {
			t.Errorf("%s total volume = %v, want 1000", id, snap.TotalVolume)
		}
	}
}
