package domain

import (
	"testing"
	"time"
)

func snapshot(mid float64) MarketData {
	return MarketData{
		InstrumentID: "m1",
		MidPrice:     mid,
		BestBid:      mid - 0.005,
		BestAsk:      mid + 0.005,
		Timestamp:    time.Now(),
	}
}

func TestClassifyFirstObservation(t *testing.T) {
	update := Classify(nil, snapshot(0.60))
	if update.Kind != UpdateRegular {
		t.Errorf("first observation: got %v", update.Kind)
	}
	if update.MidChange != 0 {
		t.Errorf("first observation change = %v", update.MidChange)
	}
}

func TestClassifyThreshold(t *testing.T) {
	prev := snapshot(0.60)

	cases := []struct {
		mid  float64
		want UpdateKind
	}{
		{0.60, UpdateRegular},
		{0.64, UpdateRegular},
		{0.66, UpdateSignificantChange},
		{0.54, UpdateSignificantChange},
		{0.56, UpdateRegular},
	}
	for _, c := range cases {
		update := Classify(&prev, snapshot(c.mid))
		if update.Kind != c.want {
			t.Errorf("mid %v -> %v: got %v, want %v", prev.MidPrice, c.mid, update.Kind, c.want)
		}
	}
}

func TestClassifyRecordsChange(t *testing.T) {
	prev := snapshot(0.60)
	update := Classify(&prev, snapshot(0.70))

	if update.PrevMid != 0.60 {
		t.Errorf("prev mid = %v", update.PrevMid)
	}
	if diff := update.MidChange - 0.10; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("mid change = %v, want 0.10", update.MidChange)
	}
}

func TestBandTrackerEmpty(t *testing.T) {
	tr := NewBandTracker(8)
	band, err := tr.Band()
	if err != nil {
		t.Fatalf("band: %v", err)
	}
	if band.Count != 0 || band.High != 0 || band.Low != 0 || band.Volume != 0 {
		t.Errorf("empty tracker band = %+v", band)
	}
}

func TestBandTrackerHighLowVolume(t *testing.T) {
	tr := NewBandTracker(8)
	for _, obs := range []struct{ mid, vol float64 }{
		{0.50, 100}, {0.55, 200}, {0.48, 50}, {0.62, 300}, {0.51, 150},
	} {
		if err := tr.Observe(obs.mid, obs.vol); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}

	band, err := tr.Band()
	if err != nil {
		t.Fatalf("band: %v", err)
	}
	if band.Count != 5 {
		t.Errorf("count = %d", band.Count)
	}
	if band.High != 0.62 {
		t.Errorf("high = %v", band.High)
	}
	if band.Low != 0.48 {
		t.Errorf("low = %v", band.Low)
	}
	if band.Volume != 800 {
		t.Errorf("volume = %v, want 800", band.Volume)
	}
}

func TestBandTrackerEvictsOldObservations(t *testing.T) {
	tr := NewBandTracker(3)
	for _, obs := range []struct{ mid, vol float64 }{
		{0.90, 500}, {0.50, 100}, {0.52, 100}, {0.51, 100},
	} {
		if err := tr.Observe(obs.mid, obs.vol); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}

	// 容量 3，最早的 0.90 已被覆盖
	band, err := tr.Band()
	if err != nil {
		t.Fatalf("band: %v", err)
	}
	if band.High != 0.52 {
		t.Errorf("high = %v, want 0.52", band.High)
	}
	if band.Count != 3 {
		t.Errorf("count = %d, want 3", band.Count)
	}
	if band.Volume != 300 {
		t.Errorf("volume = %v, want 300", band.Volume)
	}
}
