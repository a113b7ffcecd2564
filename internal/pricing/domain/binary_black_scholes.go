package domain

import (
	"math"
	"time"
)

// BinaryBlackScholes 概率空间的二元期权定价模型
// 由经典 Black-Scholes 改造而来：标的价格与行权价均为 [0,1] 概率，
// 二元期权的价格即折现后的行权概率 e^(-rT)·Φ(d2)
type BinaryBlackScholes struct{}

// NewBinaryBlackScholes 创建定价模型实例
func NewBinaryBlackScholes() *BinaryBlackScholes {
	return &BinaryBlackScholes{}
}

// PricingInput 定价输入
type PricingInput struct {
	Volatility      float64 // 年化波动率
	RiskFreeRate    float64 // 无风险利率
	LiquidityFactor float64 // 点差系数
}

// Price 计算二元期权价格与 Greeks
// 纯函数：相同输入总是产生相同输出
// T <= 0 或 σ <= 0 时取 d1 = d2 = 0 作为定义好的退化分支，而非错误
func (m *BinaryBlackScholes) Price(desc OptionDescriptor, timeToExpiry float64, in PricingInput) PriceQuote {
	p := desc.UnderlyingProb
	k := desc.StrikeProb
	t := timeToExpiry
	if t < 0 {
		t = 0
	}
	sigma := in.Volatility
	r := in.RiskFreeRate

	var d1, d2 float64
	sigmaSqrtT := sigma * math.Sqrt(t)
	if t > 0 && sigma > 0 && p > 0 && k > 0 {
		d1 = (math.Log(p/k) + (r+0.5*sigma*sigma)*t) / sigmaSqrtT
		d2 = d1 - sigmaSqrtT
	}

	discount := math.Exp(-r * t)

	var mid float64
	if desc.Kind == OptionKindCall {
		mid = discount * normCDF(d2)
	} else {
		mid = discount * (1 - normCDF(d2))
	}
	mid = clamp01(mid)

	spread := in.LiquidityFactor * sigmaSqrtT
	bid := clamp01(mid - spread/2)
	ask := clamp01(mid + spread/2)

	return PriceQuote{
		Mid:        mid,
		Bid:        bid,
		Ask:        ask,
		Delta:      m.delta(desc.Kind, d1),
		Gamma:      m.gamma(p, sigmaSqrtT, d1),
		Theta:      m.theta(desc.Kind, p, k, r, t, sigma, d1, d2),
		Vega:       m.vega(p, t, sigmaSqrtT, d1),
		ComputedAt: time.Now(),
	}
}

func (m *BinaryBlackScholes) delta(kind OptionKind, d1 float64) float64 {
	if kind == OptionKindCall {
		return normCDF(d1)
	}
	return normCDF(d1) - 1
}

func (m *BinaryBlackScholes) gamma(p, sigmaSqrtT, d1 float64) float64 {
	if sigmaSqrtT == 0 || p == 0 {
		return 0
	}
	return normPDF(d1) / (p * sigmaSqrtT)
}

func (m *BinaryBlackScholes) vega(p, t, sigmaSqrtT, d1 float64) float64 {
	if sigmaSqrtT == 0 {
		return 0
	}
	return p * normPDF(d1) * math.Sqrt(t) / 100
}

// theta 返回按日折算的时间价值衰减
func (m *BinaryBlackScholes) theta(kind OptionKind, p, k, r, t, sigma, d1, d2 float64) float64 {
	if sigma*math.Sqrt(t) == 0 {
		return 0
	}

	decay := -p * normPDF(d1) * sigma / (2 * math.Sqrt(t))

	var carry float64
	if kind == OptionKindCall {
		carry = -r * k * math.Exp(-r*t) * normCDF(d2)
	} else {
		carry = r * k * math.Exp(-r*t) * normCDF(-d2)
	}

	return (decay + carry) / 365
}

// Abramowitz-Stegun 有理逼近的系数
// 为保证跨实现的测试一致性，常数必须逐位一致
const (
	asA1 = 0.254829592
	asA2 = -0.284496736
	asA3 = 1.421413741
	asA4 = -1.453152027
	asA5 = 1.061405429
	asP  = 0.3275911
)

// normCDF 标准正态分布累积分布函数
// 采用 Abramowitz-Stegun 有理逼近（误差约 1.5e-7），保证确定性
func normCDF(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}
	x = x / math.Sqrt2

	t := 1.0 / (1.0 + asP*x)
	y := 1.0 - (((((asA5*t+asA4)*t)+asA3)*t+asA2)*t+asA1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

// normPDF 标准正态分布概率密度函数
func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
