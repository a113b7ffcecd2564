package domain

import (
	"context"
	"time"
)

const (
	OptionPricedEventType = "OptionPriced"
)

// OptionPricedEvent 期权定价完成事件
type OptionPricedEvent struct {
	InstrumentID   string     `json:"instrument_id"`
	Kind           OptionKind `json:"kind"`
	UnderlyingProb float64    `json:"underlying_prob"`
	StrikeProb     float64    `json:"strike_prob"`
	Expiry         int64      `json:"expiry"`
	Mid            float64    `json:"mid"`
	Bid            float64    `json:"bid"`
	Ask            float64    `json:"ask"`
	Volatility     float64    `json:"volatility"`
	PoolAdjusted   bool       `json:"pool_adjusted"`
	OccurredOn     time.Time  `json:"occurred_on"`
}

// EventPublisher 事件发布者接口
type EventPublisher interface {
	// PublishOptionPriced 发布期权定价完成事件
	PublishOptionPriced(ctx context.Context, event OptionPricedEvent) error
}
