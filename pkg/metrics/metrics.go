// Package metrics 提供 Prometheus helper，包含服务通用指标与定价/做市业务指标
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oddslab/probpricing/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 报价计算计数
	QuotesTotal prometheus.Counter
	// 报价计算耗时
	QuoteDuration prometheus.Histogram

	// 成交计数
	TradesTotal prometheus.Counter
	// 被拒绝的交易计数（超限、无池等）
	TradesRejected prometheus.Counter
	// 活跃流动性池数量
	PoolsActive prometheus.Gauge

	// 波动率重算计数
	VolatilityRefreshes prometheus.Counter
	// 行情抓取失败计数
	FeedFetchFailures prometheus.Counter
	// 行情更新计数
	MarketUpdatesTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		QuotesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "quotes_total",
			Help:      "Total price quotes computed",
		}),
		QuoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "quote_duration_seconds",
			Help:      "Quote computation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "trades_total",
			Help:      "Total trades executed against liquidity pools",
		}),
		TradesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "trades_rejected_total",
			Help:      "Total trades rejected (order too large, missing pool, bad input)",
		}),
		PoolsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "pools_active",
			Help:      "Number of initialized liquidity pools",
		}),
		VolatilityRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "volatility_refreshes_total",
			Help:      "Total volatility estimate recomputations",
		}),
		FeedFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "feed_fetch_failures_total",
			Help:      "Total failed market feed fetches",
		}),
		MarketUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "probpricing",
			Subsystem: serviceName,
			Name:      "market_updates_total",
			Help:      "Total market updates dispatched to subscribers",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.QuotesTotal,
		m.QuoteDuration,
		m.TradesTotal,
		m.TradesRejected,
		m.PoolsActive,
		m.VolatilityRefreshes,
		m.FeedFetchFailures,
		m.MarketUpdatesTotal,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
