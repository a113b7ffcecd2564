package domain

import "time"

// Direction 交易方向
type Direction string

const (
	DirectionBuy  Direction = "BUY"  // 买入
	DirectionSell Direction = "SELL" // 卖出
)

// Valid 判断方向是否合法
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// TradeReceipt 成交回执
// 不可变结果值，本核心不落盘（持久化属于外部协作方）
type TradeReceipt struct {
	InstrumentID   string    `json:"instrument_id"`
	Direction      Direction `json:"direction"`
	Amount         float64   `json:"amount"`
	ExecutionPrice float64   `json:"execution_price"`
	Slippage       float64   `json:"slippage"`
	Timestamp      time.Time `json:"timestamp"`
}

// TradeRecord 池内记录的最近一笔成交
type TradeRecord struct {
	Amount    float64   `json:"amount"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}
