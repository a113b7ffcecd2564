// Package domain 概率空间二元期权的领域模型与定价模型
package domain

import (
	"time"
)

// OptionKind 期权类型
type OptionKind string

const (
	OptionKindCall OptionKind = "CALL" // 看涨期权
	OptionKindPut  OptionKind = "PUT"  // 看跌期权
)

// OptionDescriptor 期权描述符
// 标的与行权价均为 [0,1] 区间的概率，按报价请求构造，不可变
type OptionDescriptor struct {
	InstrumentID   string     `json:"instrument_id"`
	UnderlyingProb float64    `json:"underlying_prob"`
	StrikeProb     float64    `json:"strike_prob"`
	Expiry         time.Time  `json:"expiry"`
	Kind           OptionKind `json:"kind"`
}

// Validate 校验描述符字段
func (d OptionDescriptor) Validate() error {
	if d.InstrumentID == "" {
		return ErrInvalidInput
	}
	if d.UnderlyingProb < 0 || d.UnderlyingProb > 1 {
		return ErrInvalidInput
	}
	if d.StrikeProb < 0 || d.StrikeProb > 1 {
		return ErrInvalidInput
	}
	if d.Kind != OptionKindCall && d.Kind != OptionKindPut {
		return ErrInvalidInput
	}
	return nil
}

// TimeToExpiry 以年为单位计算剩余时间，已到期返回 0
func (d OptionDescriptor) TimeToExpiry(now time.Time) float64 {
	t := d.Expiry.Sub(now).Hours() / 24 / 365
	if t < 0 {
		return 0
	}
	return t
}

// PriceQuote 定价结果
// Bid <= Mid <= Ask，三者均被钳制在 [0,1]；每次定价新建，不做原地修改
type PriceQuote struct {
	Mid        float64   `json:"mid"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Delta      float64   `json:"delta"`
	Gamma      float64   `json:"gamma"`
	Theta      float64   `json:"theta"`
	Vega       float64   `json:"vega"`
	ComputedAt time.Time `json:"computed_at"`
}
