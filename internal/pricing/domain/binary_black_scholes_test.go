package domain

import (
	"math"
	"testing"
	"time"
)

func testDescriptor(kind OptionKind, underlying, strike float64) OptionDescriptor {
	return OptionDescriptor{
		InstrumentID:   "election-2026-senate",
		UnderlyingProb: underlying,
		StrikeProb:     strike,
		Expiry:         time.Now().Add(90 * 24 * time.Hour),
		Kind:           kind,
	}
}

func TestNormCDFSpotValues(t *testing.T) {
	cases := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1.0, 0.8413447},
		{-1.0, 0.1586553},
		{2.0, 0.9772499},
		{-2.0, 0.0227501},
		{1.96, 0.9750021},
	}

	// Abramowitz-Stegun 逼近的误差上界约 1.5e-7
	for _, c := range cases {
		got := normCDF(c.x)
		if math.Abs(got-c.want) > 2e-7 {
			t.Errorf("normCDF(%v) = %v, want %v", c.x, got, c.want)
		}
	}
}

func TestNormCDFSymmetry(t *testing.T) {
	for _, x := range []float64{0.1, 0.73, 1.5, 2.8, 4.0} {
		sum := normCDF(x) + normCDF(-x)
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("normCDF(%v) + normCDF(-%v) = %v, want 1", x, x, sum)
		}
	}
}

func TestPriceDeterministic(t *testing.T) {
	model := NewBinaryBlackScholes()
	desc := testDescriptor(OptionKindCall, 0.6, 0.5)
	in := PricingInput{Volatility: 0.3, RiskFreeRate: 0.05, LiquidityFactor: 0.1}

	a := model.Price(desc, 0.25, in)
	b := model.Price(desc, 0.25, in)
	if a.Mid != b.Mid || a.Delta != b.Delta || a.Theta != b.Theta {
		t.Fatal("same inputs must produce bit-identical outputs")
	}
}

func TestPriceBounds(t *testing.T) {
	model := NewBinaryBlackScholes()
	in := PricingInput{Volatility: 0.8, RiskFreeRate: 0.05, LiquidityFactor: 0.1}

	for _, kind := range []OptionKind{OptionKindCall, OptionKindPut} {
		for _, p := range []float64{0.01, 0.3, 0.5, 0.7, 0.99} {
			for _, k := range []float64{0.01, 0.5, 0.99} {
				for _, years := range []float64{0, 0.01, 0.25, 1.0} {
					q := model.Price(testDescriptor(kind, p, k), years, in)
					if q.Mid < 0 || q.Mid > 1 {
						t.Fatalf("mid %v out of [0,1] (kind=%s p=%v k=%v t=%v)", q.Mid, kind, p, k, years)
					}
					if q.Bid < 0 || q.Ask > 1 {
						t.Fatalf("bid/ask out of [0,1]: %v / %v", q.Bid, q.Ask)
					}
					if q.Bid > q.Mid || q.Mid > q.Ask {
						t.Fatalf("expected bid <= mid <= ask, got %v / %v / %v", q.Bid, q.Mid, q.Ask)
					}
				}
			}
		}
	}
}

func TestCallPutParity(t *testing.T) {
	// 同一 d2 下 call + put = e^(-rT)
	model := NewBinaryBlackScholes()
	in := PricingInput{Volatility: 0.3, RiskFreeRate: 0.05}
	years := 0.25

	call := model.Price(testDescriptor(OptionKindCall, 0.6, 0.5), years, in)
	put := model.Price(testDescriptor(OptionKindPut, 0.6, 0.5), years, in)

	discount := math.Exp(-in.RiskFreeRate * years)
	if math.Abs(call.Mid+put.Mid-discount) > 1e-12 {
		t.Errorf("call + put = %v, want %v", call.Mid+put.Mid, discount)
	}
}

func TestPriceExpiredOption(t *testing.T) {
	// T = 0 走退化分支：d1 = d2 = 0，无折现
	model := NewBinaryBlackScholes()
	in := PricingInput{Volatility: 0.3, RiskFreeRate: 0.05, LiquidityFactor: 0.1}

	call := model.Price(testDescriptor(OptionKindCall, 0.6, 0.5), 0, in)
	if math.Abs(call.Mid-0.5) > 2e-7 {
		t.Errorf("expired call mid = %v, want 0.5", call.Mid)
	}
	if call.Gamma != 0 || call.Vega != 0 || call.Theta != 0 {
		t.Errorf("expired option should have zero gamma/vega/theta, got %v/%v/%v", call.Gamma, call.Vega, call.Theta)
	}
	if call.Bid != call.Mid || call.Ask != call.Mid {
		t.Errorf("expired option spread should collapse, got %v / %v", call.Bid, call.Ask)
	}
}

func TestPriceZeroVolatility(t *testing.T) {
	model := NewBinaryBlackScholes()
	in := PricingInput{Volatility: 0, RiskFreeRate: 0.05}

	q := model.Price(testDescriptor(OptionKindCall, 0.6, 0.5), 0.25, in)
	want := math.Exp(-0.05*0.25) * 0.5
	if math.Abs(q.Mid-want) > 2e-7 {
		t.Errorf("zero-vol call mid = %v, want %v", q.Mid, want)
	}
}

func TestPriceDegenerateProbabilities(t *testing.T) {
	model := NewBinaryBlackScholes()
	in := PricingInput{Volatility: 0.3, RiskFreeRate: 0.05}

	// p = 0 或 k = 0 时 log 无定义，取 d2 = 0
	for _, desc := range []OptionDescriptor{
		testDescriptor(OptionKindCall, 0, 0.5),
		testDescriptor(OptionKindCall, 0.5, 0),
	} {
		q := model.Price(desc, 0.25, in)
		if math.IsNaN(q.Mid) || math.IsInf(q.Mid, 0) {
			t.Fatalf("degenerate input produced non-finite mid: %v", q.Mid)
		}
	}
}

func TestDeltaSign(t *testing.T) {
	model := NewBinaryBlackScholes()
	in := PricingInput{Volatility: 0.3, RiskFreeRate: 0.05}

	call := model.Price(testDescriptor(OptionKindCall, 0.6, 0.5), 0.25, in)
	put := model.Price(testDescriptor(OptionKindPut, 0.6, 0.5), 0.25, in)

	if call.Delta < 0 || call.Delta > 1 {
		t.Errorf("call delta %v out of [0,1]", call.Delta)
	}
	if put.Delta > 0 || put.Delta < -1 {
		t.Errorf("put delta %v out of [-1,0]", put.Delta)
	}
	if math.Abs(call.Delta-put.Delta-1) > 1e-12 {
		t.Errorf("delta parity violated: %v - %v != 1", call.Delta, put.Delta)
	}
}

func TestSpreadWidensWithLiquidityFactor(t *testing.T) {
	model := NewBinaryBlackScholes()
	desc := testDescriptor(OptionKindCall, 0.5, 0.5)

	narrow := model.Price(desc, 0.25, PricingInput{Volatility: 0.3, RiskFreeRate: 0.05, LiquidityFactor: 0.1})
	wide := model.Price(desc, 0.25, PricingInput{Volatility: 0.3, RiskFreeRate: 0.05, LiquidityFactor: 0.3})

	if wide.Ask-wide.Bid <= narrow.Ask-narrow.Bid {
		t.Errorf("larger liquidity factor should widen spread: %v vs %v",
			wide.Ask-wide.Bid, narrow.Ask-narrow.Bid)
	}
}

func TestDescriptorValidate(t *testing.T) {
	valid := testDescriptor(OptionKindCall, 0.6, 0.5)
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid descriptor rejected: %v", err)
	}

	cases := []OptionDescriptor{
		{UnderlyingProb: 0.5, StrikeProb: 0.5, Kind: OptionKindCall}, // 缺 instrument
		testDescriptor(OptionKindCall, -0.1, 0.5),
		testDescriptor(OptionKindCall, 0.5, 1.1),
		testDescriptor(OptionKind("STRADDLE"), 0.5, 0.5),
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestTimeToExpiry(t *testing.T) {
	now := time.Now()

	d := OptionDescriptor{Expiry: now.Add(365 * 24 * time.Hour)}
	if got := d.TimeToExpiry(now); math.Abs(got-1) > 1e-9 {
		t.Errorf("one year out: got %v", got)
	}

	past := OptionDescriptor{Expiry: now.Add(-time.Hour)}
	if got := past.TimeToExpiry(now); got != 0 {
		t.Errorf("expired option: got %v, want 0", got)
	}
}
