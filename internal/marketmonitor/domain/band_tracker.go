package domain

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/oddslab/probpricing/pkg/algos"
)

// PriceBand 最近 N 次观测的中间价区间与累计成交量
type PriceBand struct {
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
	Count  int     `json:"count"`
}

// BandTracker 环形窗口的观测跟踪器
// 极值线段树维护窗口内最高/最低中间价，区间和线段树维护窗口成交量，
// 观测满窗后覆盖最旧的槽位
type BandTracker struct {
	mu       sync.Mutex
	maxTree  *algos.ExtremumSegmentTree
	minTree  *algos.ExtremumSegmentTree
	volTree  *algos.SumSegmentTree
	capacity int
	next     int
	count    int
}

// NewBandTracker 创建容量为 capacity 的跟踪器
func NewBandTracker(capacity int) *BandTracker {
	if capacity <= 0 {
		capacity = 64
	}
	seed := make([]decimal.Decimal, capacity)
	for i := range seed {
		seed[i] = decimal.Zero
	}
	return &BandTracker{
		maxTree:  algos.NewExtremumSegmentTree(seed, algos.MaxTree),
		minTree:  algos.NewExtremumSegmentTree(seed, algos.MinTree),
		volTree:  algos.NewSumSegmentTree(seed),
		capacity: capacity,
	}
}

// Observe 记录一次中间价与成交量观测
func (t *BandTracker) Observe(mid, volume float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	price := decimal.NewFromFloat(mid)
	if err := t.maxTree.Update(t.next, price); err != nil {
		return err
	}
	if err := t.minTree.Update(t.next, price); err != nil {
		return err
	}
	if err := t.volTree.Update(t.next, decimal.NewFromFloat(volume)); err != nil {
		return err
	}

	t.next = (t.next + 1) % t.capacity
	if t.count < t.capacity {
		t.count++
	}
	return nil
}

// Band 返回当前窗口的区间；没有观测时返回零值
func (t *BandTracker) Band() (PriceBand, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return PriceBand{}, nil
	}

	high, err := t.maxTree.Query(0, t.count-1)
	if err != nil {
		return PriceBand{}, err
	}
	low, err := t.minTree.Query(0, t.count-1)
	if err != nil {
		return PriceBand{}, err
	}
	volume, err := t.volTree.Query(0, t.count-1)
	if err != nil {
		return PriceBand{}, err
	}

	return PriceBand{
		High:   high.InexactFloat64(),
		Low:    low.InexactFloat64(),
		Volume: volume.InexactFloat64(),
		Count:  t.count,
	}, nil
}
