package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// TradeExecutedEvent 成交事件，金额字段以 decimal 序列化
type TradeExecutedEvent struct {
	InstrumentID   string          `json:"instrument_id"`
	Direction      string          `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	Slippage       decimal.Decimal `json:"slippage"`
	OccurredOn     int64           `json:"occurred_on"`
}

// NewTradeExecutedEvent 由成交回执构造事件
func NewTradeExecutedEvent(receipt TradeReceipt) *TradeExecutedEvent {
	return &TradeExecutedEvent{
		InstrumentID:   receipt.InstrumentID,
		Direction:      string(receipt.Direction),
		Amount:         decimal.NewFromFloat(receipt.Amount),
		ExecutionPrice: decimal.NewFromFloat(receipt.ExecutionPrice),
		Slippage:       decimal.NewFromFloat(receipt.Slippage),
		OccurredOn:     receipt.Timestamp.UnixMilli(),
	}
}

// LiquidityChangedEvent 流动性变更事件
type LiquidityChangedEvent struct {
	InstrumentID   string          `json:"instrument_id"`
	Change         decimal.Decimal `json:"change"`
	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
	MaxOrderSize   decimal.Decimal `json:"max_order_size"`
	OccurredOn     int64           `json:"occurred_on"`
}

// EventPublisher 池事件发布接口
type EventPublisher interface {
	PublishTradeExecuted(ctx context.Context, event *TradeExecutedEvent) error
	PublishLiquidityChanged(ctx context.Context, event *LiquidityChangedEvent) error
}

// PoolRepository 池读模型仓储，用于对外暴露池状态
type PoolRepository interface {
	SaveSnapshot(ctx context.Context, snapshot *PoolSnapshot) error
	GetSnapshot(ctx context.Context, instrumentID string) (*PoolSnapshot, error)
}
