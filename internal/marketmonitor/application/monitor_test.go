package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oddslab/probpricing/internal/marketmonitor/domain"
)

type scriptedFeed struct {
	mu     sync.Mutex
	prices []float64
	next   int
	err    error
}

func (f *scriptedFeed) Fetch(ctx context.Context, instrumentID string) (domain.MarketData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return domain.MarketData{}, f.err
	}

	price := f.prices[f.next]
	if f.next < len(f.prices)-1 {
		f.next++
	}
	return domain.MarketData{
		InstrumentID: instrumentID,
		MidPrice:     price,
		BestBid:      price - 0.005,
		BestAsk:      price + 0.005,
		Timestamp:    time.Now(),
	}, nil
}

func (f *scriptedFeed) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartMonitoringDeliversUpdates(t *testing.T) {
	feed := &scriptedFeed{prices: []float64{0.50, 0.52, 0.60}}
	monitor := NewMarketMonitor(feed, nil, nil, nil, 10*time.Millisecond)
	defer monitor.StopMonitoring("m1")

	sub := monitor.Subscribe("m1")
	defer monitor.Unsubscribe("m1", sub.Token)

	monitor.StartMonitoring("m1", 0)

	select {
	case update := <-sub.Updates:
		if update.Data.InstrumentID != "m1" {
			t.Errorf("wrong instrument: %s", update.Data.InstrumentID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	waitFor(t, 2*time.Second, func() bool {
		return monitor.GetLatest("m1") != nil
	})
}

func TestSignificantChangeClassification(t *testing.T) {
	// 0.50 -> 0.52 常规，0.52 -> 0.60 显著
	feed := &scriptedFeed{prices: []float64{0.50, 0.52, 0.60}}
	monitor := NewMarketMonitor(feed, nil, nil, nil, 10*time.Millisecond)
	defer monitor.StopMonitoring("m1")

	sub := monitor.Subscribe("m1")
	defer monitor.Unsubscribe("m1", sub.Token)

	monitor.StartMonitoring("m1", 0)

	var kinds []domain.UpdateKind
	deadline := time.After(2 * time.Second)
	for len(kinds) < 3 {
		select {
		case update := <-sub.Updates:
			kinds = append(kinds, update.Kind)
		case <-deadline:
			t.Fatalf("only received %d updates", len(kinds))
		}
	}

	if kinds[0] != domain.UpdateRegular || kinds[1] != domain.UpdateRegular {
		t.Errorf("early updates should be regular: %v", kinds)
	}
	if kinds[2] != domain.UpdateSignificantChange {
		t.Errorf("jump to 0.60 should be significant: %v", kinds)
	}
}

func TestStartMonitoringIdempotent(t *testing.T) {
	feed := &scriptedFeed{prices: []float64{0.50}}
	monitor := NewMarketMonitor(feed, nil, nil, nil, 10*time.Millisecond)
	defer monitor.StopMonitoring("m1")

	monitor.StartMonitoring("m1", 0)
	monitor.StartMonitoring("m1", 0)

	if got := len(monitor.Monitored()); got != 1 {
		t.Errorf("monitored count = %d, want 1", got)
	}
}

func TestStartMonitoringPerCallInterval(t *testing.T) {
	feed := &scriptedFeed{prices: []float64{0.50, 0.52, 0.53}}
	monitor := NewMarketMonitor(feed, nil, nil, nil, time.Hour)
	defer monitor.StopMonitoring("m1")

	// 调用级轮询间隔覆盖服务默认值
	monitor.StartMonitoring("m1", 10*time.Millisecond)

	waitFor(t, 2*time.Second, func() bool {
		band, ok := monitor.GetPriceBand("m1")
		return ok && band.Count >= 3
	})
}

func TestStopMonitoringIdempotentAndKeepsSnapshot(t *testing.T) {
	feed := &scriptedFeed{prices: []float64{0.50}}
	monitor := NewMarketMonitor(feed, nil, nil, nil, 10*time.Millisecond)

	monitor.StartMonitoring("m1", 0)
	waitFor(t, 2*time.Second, func() bool {
		return monitor.GetLatest("m1") != nil
	})

	monitor.StopMonitoring("m1")
	monitor.StopMonitoring("m1") // 重复停止无操作

	if monitor.GetLatest("m1") == nil {
		t.Error("snapshot must survive stop")
	}
	if len(monitor.Monitored()) != 0 {
		t.Error("instrument still listed after stop")
	}
}

func TestFailedFetchRetainsSnapshot(t *testing.T) {
	feed := &scriptedFeed{prices: []float64{0.50}}
	monitor := NewMarketMonitor(feed, nil, nil, nil, 10*time.Millisecond)
	defer monitor.StopMonitoring("m1")

	monitor.StartMonitoring("m1", 0)
	waitFor(t, 2*time.Second, func() bool {
		return monitor.GetLatest("m1") != nil
	})
	before := monitor.GetLatest("m1")

	sub := monitor.Subscribe("m1")
	defer monitor.Unsubscribe("m1", sub.Token)
	feed.fail(errors.New("feed down"))

	// 等待若干轮失败抓取，快照不变且无通知
	time.Sleep(100 * time.Millisecond)
	after := monitor.GetLatest("m1")
	if after == nil || after.MidPrice != before.MidPrice {
		t.Errorf("failed fetch must retain snapshot: %+v", after)
	}
	select {
	case update := <-sub.Updates:
		t.Errorf("unexpected update during outage: %+v", update)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	feed := &scriptedFeed{prices: []float64{0.50}}
	monitor := NewMarketMonitor(feed, nil, nil, nil, time.Hour)

	sub := monitor.Subscribe("m1")
	monitor.Unsubscribe("m1", sub.Token)

	if _, ok := <-sub.Updates; ok {
		t.Error("channel should be closed after unsubscribe")
	}

	// 未知令牌无操作
	monitor.Unsubscribe("m1", "bogus-token")
}

func TestPriceBandTracksObservations(t *testing.T) {
	feed := &scriptedFeed{prices: []float64{0.50, 0.58, 0.47}}
	monitor := NewMarketMonitor(feed, nil, nil, nil, 10*time.Millisecond)
	defer monitor.StopMonitoring("m1")

	if _, ok := monitor.GetPriceBand("m1"); ok {
		t.Error("band must not exist before monitoring starts")
	}

	monitor.StartMonitoring("m1", 0)
	waitFor(t, 2*time.Second, func() bool {
		band, ok := monitor.GetPriceBand("m1")
		return ok && band.Count >= 3
	})

	band, _ := monitor.GetPriceBand("m1")
	if band.High < 0.58 || band.Low > 0.47 {
		t.Errorf("band does not cover observations: %+v", band)
	}
}
