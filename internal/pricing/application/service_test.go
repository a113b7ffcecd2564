package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	ammapp "github.com/oddslab/probpricing/internal/amm/application"
	monitordomain "github.com/oddslab/probpricing/internal/marketmonitor/domain"
	"github.com/oddslab/probpricing/internal/pricing/domain"
	volapp "github.com/oddslab/probpricing/internal/volatility/application"
	voldomain "github.com/oddslab/probpricing/internal/volatility/domain"
)

type fixedHistoryRepo struct {
	mu     sync.Mutex
	points []voldomain.PricePoint
	calls  int
}

func (r *fixedHistoryRepo) GetHistoricalData(ctx context.Context, instrumentID string, windowDays int) ([]voldomain.PricePoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.points, nil
}

func (r *fixedHistoryRepo) StoreDataPoint(ctx context.Context, instrumentID string, point voldomain.PricePoint) error {
	return nil
}

func (r *fixedHistoryRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type capturedEvents struct {
	mu     sync.Mutex
	events []domain.OptionPricedEvent
}

func (c *capturedEvents) PublishOptionPriced(ctx context.Context, event domain.OptionPricedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func newTestService(repo *fixedHistoryRepo, pub domain.EventPublisher) (*PricingService, *ammapp.AMMService) {
	vol := volapp.NewVolatilityService(repo, 30, nil)
	amm := ammapp.NewAMMService(nil, nil, nil)
	return NewPricingService(vol, amm, pub, nil), amm
}

func descriptor(id string) domain.OptionDescriptor {
	return domain.OptionDescriptor{
		InstrumentID:   id,
		UnderlyingProb: 0.6,
		StrikeProb:     0.5,
		Expiry:         time.Now().Add(90 * 24 * time.Hour),
		Kind:           domain.OptionKindCall,
	}
}

func TestGetQuoteUsesDefaultVolatilityWhenCold(t *testing.T) {
	svc, _ := newTestService(&fixedHistoryRepo{}, nil)

	result, err := svc.GetQuote(context.Background(), descriptor("m1"), false)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	// 90 天约 0.25 年，处于期限结构的中间段，波动率应保持默认值
	if math.Abs(result.Volatility-voldomain.DefaultVolatility) > 1e-12 {
		t.Errorf("volatility = %v, want default %v", result.Volatility, voldomain.DefaultVolatility)
	}
	if result.Quote.Bid > result.Quote.Mid || result.Quote.Mid > result.Quote.Ask {
		t.Errorf("quote ordering violated: %+v", result.Quote)
	}
	if result.PoolAdjusted {
		t.Error("no pool exists, result must not be pool-adjusted")
	}
}

func TestGetQuoteRejectsInvalidDescriptor(t *testing.T) {
	svc, _ := newTestService(&fixedHistoryRepo{}, nil)

	bad := descriptor("m1")
	bad.UnderlyingProb = 1.5
	if _, err := svc.GetQuote(context.Background(), bad, false); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetQuoteAppliesTermStructure(t *testing.T) {
	svc, _ := newTestService(&fixedHistoryRepo{}, nil)

	nearExpiry := descriptor("m1")
	nearExpiry.Expiry = time.Now().Add(7 * 24 * time.Hour)

	result, err := svc.GetQuote(context.Background(), nearExpiry, false)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if result.Volatility <= voldomain.DefaultVolatility {
		t.Errorf("short expiry should scale volatility up: %v", result.Volatility)
	}
}

func TestGetQuotePoolAdjustment(t *testing.T) {
	svc, amm := newTestService(&fixedHistoryRepo{}, nil)
	ctx := context.Background()

	amm.InitializePool(ctx, "m1", 0.6)
	amm.AddLiquidity(ctx, "m1", 2000) // 稀薄的池，点差应放大

	plain, err := svc.GetQuote(ctx, descriptor("m1"), false)
	if err != nil {
		t.Fatalf("plain quote failed: %v", err)
	}
	adjusted, err := svc.GetQuote(ctx, descriptor("m1"), true)
	if err != nil {
		t.Fatalf("adjusted quote failed: %v", err)
	}

	if !adjusted.PoolAdjusted {
		t.Error("expected pool-adjusted result")
	}
	if adjusted.Quote.Ask-adjusted.Quote.Bid <= plain.Quote.Ask-plain.Quote.Bid {
		t.Errorf("thin pool should widen spread: %v vs %v",
			adjusted.Quote.Ask-adjusted.Quote.Bid, plain.Quote.Ask-plain.Quote.Bid)
	}
	if adjusted.Quote.Mid != plain.Quote.Mid {
		t.Errorf("pool adjustment must not move mid: %v vs %v", adjusted.Quote.Mid, plain.Quote.Mid)
	}
}

func TestGetQuotePublishesEvent(t *testing.T) {
	pub := &capturedEvents{}
	svc, _ := newTestService(&fixedHistoryRepo{}, pub)

	result, err := svc.GetQuote(context.Background(), descriptor("m1"), false)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	if pub.events[0].Mid != result.Quote.Mid {
		t.Errorf("event mid %v != quote mid %v", pub.events[0].Mid, result.Quote.Mid)
	}
}

func TestOnMarketUpdateRefreshesOnSignificantChange(t *testing.T) {
	repo := &fixedHistoryRepo{}
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	regular := monitordomain.MarketUpdate{
		Kind: monitordomain.UpdateRegular,
		Data: monitordomain.MarketData{InstrumentID: "m1", MidPrice: 0.52},
	}
	svc.OnMarketUpdate(ctx, regular)
	time.Sleep(50 * time.Millisecond)
	if repo.callCount() != 0 {
		t.Errorf("regular update must not trigger refresh, calls = %d", repo.callCount())
	}

	significant := monitordomain.MarketUpdate{
		Kind:      monitordomain.UpdateSignificantChange,
		Data:      monitordomain.MarketData{InstrumentID: "m1", MidPrice: 0.62},
		MidChange: 0.10,
	}
	svc.OnMarketUpdate(ctx, significant)

	deadline := time.Now().Add(2 * time.Second)
	for repo.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if repo.callCount() != 1 {
		t.Errorf("significant update should trigger one refresh, calls = %d", repo.callCount())
	}
}
