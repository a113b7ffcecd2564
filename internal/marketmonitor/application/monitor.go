package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oddslab/probpricing/internal/marketmonitor/domain"
	volatility "github.com/oddslab/probpricing/internal/volatility/domain"
	"github.com/oddslab/probpricing/pkg/logger"
	"github.com/oddslab/probpricing/pkg/metrics"
)

const (
	fetchTimeout      = 10 * time.Second
	subscriberBuffer  = 16
	bandWindowSamples = 128
)

// Subscription 订阅句柄
type Subscription struct {
	Token   string
	Updates <-chan domain.MarketUpdate
}

type subscriber struct {
	ch chan domain.MarketUpdate
}

type monitorState struct {
	cancel  context.CancelFunc
	tracker *domain.BandTracker
}

// MarketMonitor 行情监控应用服务
// 每个被监控的市场一个轮询 goroutine；订阅者通过带缓冲通道接收更新，
// 慢订阅者会丢弃更新而不是阻塞分发
type MarketMonitor struct {
	feed            domain.Feed
	history         volatility.HistoryRepository
	publisher       domain.UpdatePublisher
	metrics         *metrics.Metrics
	defaultInterval time.Duration

	// 轮询 goroutine 挂在监控器自身的生命周期上，
	// 与发起 StartMonitoring 的调用方 context 无关
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu          sync.Mutex
	monitors    map[string]*monitorState
	latest      map[string]*domain.MarketData
	subscribers map[string]map[string]*subscriber
}

// NewMarketMonitor 创建行情监控服务
func NewMarketMonitor(feed domain.Feed, history volatility.HistoryRepository, publisher domain.UpdatePublisher, m *metrics.Metrics, defaultInterval time.Duration) *MarketMonitor {
	if defaultInterval <= 0 {
		defaultInterval = 30 * time.Second
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &MarketMonitor{
		feed:            feed,
		history:         history,
		publisher:       publisher,
		metrics:         m,
		defaultInterval: defaultInterval,
		baseCtx:         baseCtx,
		baseCancel:      baseCancel,
		monitors:        make(map[string]*monitorState),
		latest:          make(map[string]*domain.MarketData),
		subscribers:     make(map[string]map[string]*subscriber),
	}
}

// StartMonitoring 开始监控市场，幂等：已在监控中则直接返回
// interval <= 0 时使用服务默认轮询间隔
func (m *MarketMonitor) StartMonitoring(instrumentID string, interval time.Duration) {
	if interval <= 0 {
		interval = m.defaultInterval
	}

	m.mu.Lock()
	if _, ok := m.monitors[instrumentID]; ok {
		m.mu.Unlock()
		return
	}

	runCtx, cancel := context.WithCancel(m.baseCtx)
	state := &monitorState{
		cancel:  cancel,
		tracker: domain.NewBandTracker(bandWindowSamples),
	}
	m.monitors[instrumentID] = state
	m.mu.Unlock()

	logger.Info(runCtx, "monitoring started",
		"instrument_id", instrumentID,
		"interval", interval)
	go m.run(runCtx, instrumentID, interval, state.tracker)
}

// Shutdown 停止所有监控任务
func (m *MarketMonitor) Shutdown() {
	m.baseCancel()

	m.mu.Lock()
	m.monitors = make(map[string]*monitorState)
	m.mu.Unlock()
}

// StopMonitoring 停止监控市场，幂等：未在监控中则无操作
// 最后一份快照保留，仍可通过 GetLatest 读取
func (m *MarketMonitor) StopMonitoring(instrumentID string) {
	m.mu.Lock()
	state, ok := m.monitors[instrumentID]
	if ok {
		delete(m.monitors, instrumentID)
	}
	m.mu.Unlock()

	if ok {
		state.cancel()
		logger.Info(context.Background(), "monitoring stopped", "instrument_id", instrumentID)
	}
}

// Subscribe 订阅市场更新，返回带唯一令牌的订阅句柄
func (m *MarketMonitor) Subscribe(instrumentID string) Subscription {
	token := uuid.New().String()
	sub := &subscriber{ch: make(chan domain.MarketUpdate, subscriberBuffer)}

	m.mu.Lock()
	if m.subscribers[instrumentID] == nil {
		m.subscribers[instrumentID] = make(map[string]*subscriber)
	}
	m.subscribers[instrumentID][token] = sub
	m.mu.Unlock()

	return Subscription{Token: token, Updates: sub.ch}
}

// Unsubscribe 取消订阅并关闭通道；未知令牌无操作
func (m *MarketMonitor) Unsubscribe(instrumentID, token string) {
	m.mu.Lock()
	subs := m.subscribers[instrumentID]
	sub, ok := subs[token]
	if ok {
		delete(subs, token)
	}
	m.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

// GetLatest 返回最近一次成功抓取的行情，可能为 nil
func (m *MarketMonitor) GetLatest(instrumentID string) *domain.MarketData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest[instrumentID]
}

// GetPriceBand 返回被监控市场近期观测的价格区间
func (m *MarketMonitor) GetPriceBand(instrumentID string) (domain.PriceBand, bool) {
	m.mu.Lock()
	state, ok := m.monitors[instrumentID]
	m.mu.Unlock()
	if !ok {
		return domain.PriceBand{}, false
	}

	band, err := state.tracker.Band()
	if err != nil {
		logger.Warn(m.baseCtx, "price band query failed",
			"instrument_id", instrumentID,
			"error", err)
		return domain.PriceBand{}, false
	}
	return band, true
}

// Monitored 返回当前监控中的市场列表
func (m *MarketMonitor) Monitored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.monitors))
	for id := range m.monitors {
		ids = append(ids, id)
	}
	return ids
}

func (m *MarketMonitor) run(ctx context.Context, instrumentID string, interval time.Duration, tracker *domain.BandTracker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.poll(ctx, instrumentID, tracker)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx, instrumentID, tracker)
		}
	}
}

func (m *MarketMonitor) poll(ctx context.Context, instrumentID string, tracker *domain.BandTracker) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	data, err := m.feed.Fetch(fetchCtx, instrumentID)
	cancel()
	if err != nil {
		// 抓取失败保留上一份快照，不通知订阅者
		if m.metrics != nil {
			m.metrics.FeedFetchFailures.Inc()
		}
		logger.Warn(ctx, "market fetch failed",
			"instrument_id", instrumentID,
			"error", err)
		return
	}

	m.mu.Lock()
	prev := m.latest[instrumentID]
	stored := data
	m.latest[instrumentID] = &stored
	m.mu.Unlock()

	if err := tracker.Observe(data.MidPrice, data.Volume24h); err != nil {
		logger.Warn(ctx, "price band update failed",
			"instrument_id", instrumentID,
			"error", err)
	}
	m.storeTick(ctx, data)

	update := domain.Classify(prev, data)
	m.dispatch(ctx, instrumentID, update)
}

// dispatch 先落盘后通知；慢订阅者丢弃本次更新
func (m *MarketMonitor) dispatch(ctx context.Context, instrumentID string, update domain.MarketUpdate) {
	if m.metrics != nil {
		m.metrics.MarketUpdatesTotal.Inc()
	}
	if update.Kind == domain.UpdateSignificantChange {
		logger.Info(ctx, "significant market change",
			"instrument_id", instrumentID,
			"prev_mid", update.PrevMid,
			"mid", update.Data.MidPrice,
			"change", update.MidChange)
	}

	if m.publisher != nil {
		if err := m.publisher.PublishMarketUpdate(ctx, &update); err != nil {
			logger.Warn(ctx, "failed to publish market update",
				"instrument_id", instrumentID,
				"error", err)
		}
	}

	// 发送在锁内完成，避免与 Unsubscribe 的 close 竞争；
	// select-default 保证不会在锁内阻塞
	m.mu.Lock()
	for _, sub := range m.subscribers[instrumentID] {
		select {
		case sub.ch <- update:
		default:
		}
	}
	m.mu.Unlock()
}

func (m *MarketMonitor) storeTick(ctx context.Context, data domain.MarketData) {
	if m.history == nil {
		return
	}
	point := volatility.PricePoint{
		Price:     data.MidPrice,
		Volume:    data.Volume24h,
		Timestamp: data.Timestamp,
	}
	if err := m.history.StoreDataPoint(ctx, data.InstrumentID, point); err != nil {
		logger.Warn(ctx, "failed to store market tick",
			"instrument_id", data.InstrumentID,
			"error", err)
	}
}
