package domain

import (
	"context"
	"math"
	"time"
)

// SignificantChangeThreshold 中间价变化超过该值视为显著变化
const SignificantChangeThreshold = 0.05

// UpdateKind 行情更新类型
type UpdateKind string

const (
	// UpdateRegular 常规更新
	UpdateRegular UpdateKind = "REGULAR"
	// UpdateSignificantChange 显著变化更新
	UpdateSignificantChange UpdateKind = "SIGNIFICANT_CHANGE"
)

// MarketData 一次行情抓取的结果
type MarketData struct {
	InstrumentID string    `json:"instrument_id"`
	MidPrice     float64   `json:"mid_price"`
	BestBid      float64   `json:"best_bid"`
	BestAsk      float64   `json:"best_ask"`
	Volume24h    float64   `json:"volume_24h"`
	Timestamp    time.Time `json:"timestamp"`
}

// MarketUpdate 推送给订阅者的行情更新
type MarketUpdate struct {
	Kind      UpdateKind `json:"kind"`
	Data      MarketData `json:"data"`
	PrevMid   float64    `json:"prev_mid"`
	MidChange float64    `json:"mid_change"`
}

// Classify 对比上一份快照给出更新类型
// 没有上一份快照时视为常规更新
func Classify(prev *MarketData, current MarketData) MarketUpdate {
	update := MarketUpdate{
		Kind: UpdateRegular,
		Data: current,
	}
	if prev == nil {
		return update
	}

	update.PrevMid = prev.MidPrice
	update.MidChange = current.MidPrice - prev.MidPrice
	if math.Abs(update.MidChange) > SignificantChangeThreshold {
		update.Kind = UpdateSignificantChange
	}
	return update
}

// Feed 行情数据源
type Feed interface {
	Fetch(ctx context.Context, instrumentID string) (MarketData, error)
}

// UpdatePublisher 行情更新对外发布接口
type UpdatePublisher interface {
	PublishMarketUpdate(ctx context.Context, update *MarketUpdate) error
}
