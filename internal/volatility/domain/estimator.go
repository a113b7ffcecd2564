package domain

import (
	"math"
	"sort"
)

const (
	// DefaultVolatility 可用观测不足 2 个时的默认波动率
	DefaultVolatility = 0.30
	// MinVolatility 年化波动率下限
	MinVolatility = 0.10
	// MaxVolatility 年化波动率上限
	MaxVolatility = 1.00
	// EWMALambda EWMA 衰减系数
	EWMALambda = 0.94
	// AnnualizationDays 年化天数，序列按日频处理
	AnnualizationDays = 365
	// ewmaSeedWindow EWMA 种子方差的窗口上限
	ewmaSeedWindow = 5
)

// Estimator 波动率估计器
// 提供历史波动率与 EWMA 两种竞争方法，以及期限结构调整
type Estimator struct{}

// NewEstimator 创建波动率估计器
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate 按指定方法估计年化波动率
// 可用观测（价格 > 0）不足 2 个时返回 DefaultVolatility
func (e *Estimator) Estimate(points []PricePoint, method Method) float64 {
	returns := logReturns(points)
	if len(returns) < 1 {
		return DefaultVolatility
	}

	var variance float64
	switch method {
	case MethodEWMA:
		variance = e.ewmaVariance(returns)
	default:
		variance = e.sampleVariance(returns)
	}

	return clampVol(math.Sqrt(variance * AnnualizationDays))
}

// sampleVariance 对数收益的样本方差（n-1 分母）
func (e *Estimator) sampleVariance(returns []float64) float64 {
	if len(returns) < 2 {
		// 单个收益无法计算样本方差，退回其平方
		return returns[0] * returns[0]
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	return ss / float64(len(returns)-1)
}

// ewmaVariance EWMA 方差，λ = 0.94
// 种子取前 min(5, n) 个收益平方的简单均值，再折叠全部收益
func (e *Estimator) ewmaVariance(returns []float64) float64 {
	seedN := len(returns)
	if seedN > ewmaSeedWindow {
		seedN = ewmaSeedWindow
	}

	var seed float64
	for _, r := range returns[:seedN] {
		seed += r * r
	}
	variance := seed / float64(seedN)

	for _, r := range returns {
		variance = EWMALambda*variance + (1-EWMALambda)*r*r
	}
	return variance
}

// ApplyTermStructure 期限结构调整，在报价时应用，不写入缓存
// 短期（T < 0.1 年）上调波动率，长期（T > 0.5 年）下调
func (e *Estimator) ApplyTermStructure(baseVol, timeToExpiry float64) float64 {
	switch {
	case timeToExpiry < 0.1:
		return baseVol * (1 + (0.1-timeToExpiry)*3)
	case timeToExpiry > 0.5:
		return baseVol * (1 - math.Min(0.3, (timeToExpiry-0.5)*0.3))
	default:
		return baseVol
	}
}

// logReturns 按时间升序排序后计算对数收益，跳过非正价格
func logReturns(points []PricePoint) []float64 {
	sorted := make([]PricePoint, 0, len(points))
	for _, p := range points {
		if p.Price > 0 {
			sorted = append(sorted, p)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	if len(sorted) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		returns = append(returns, math.Log(sorted[i].Price/sorted[i-1].Price))
	}
	return returns
}

func clampVol(v float64) float64 {
	if v < MinVolatility {
		return MinVolatility
	}
	if v > MaxVolatility {
		return MaxVolatility
	}
	return v
}
