// Package domain 波动率估计的领域模型与算法
package domain

import (
	"context"
	"time"
)

// Method 波动率估计方法
type Method string

const (
	MethodHistorical Method = "HISTORICAL" // 历史波动率
	MethodEWMA       Method = "EWMA"       // 指数加权移动平均
)

// Estimate 波动率估计结果
// 按 instrumentId 缓存，后写覆盖
type Estimate struct {
	InstrumentID  string    `json:"instrument_id"`
	AnnualizedVol float64   `json:"annualized_vol"`
	Method        Method    `json:"method"`
	ComputedAt    time.Time `json:"computed_at"`
}

// PricePoint 历史价格数据点
type PricePoint struct {
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryRepository 历史行情数据提供方接口
// 不假设返回序列有序，估计器内部按时间排序
type HistoryRepository interface {
	// GetHistoricalData 查询指定市场近 windowDays 天的价格序列
	GetHistoricalData(ctx context.Context, instrumentID string, windowDays int) ([]PricePoint, error)
	// StoreDataPoint 写入一个数据点
	StoreDataPoint(ctx context.Context, instrumentID string, point PricePoint) error
}
