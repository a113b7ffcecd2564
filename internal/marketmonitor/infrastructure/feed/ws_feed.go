package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oddslab/probpricing/internal/marketmonitor/domain"
	"github.com/oddslab/probpricing/pkg/logger"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 60 * time.Second
	wsReconnectBackoff = 5 * time.Second
)

// WSFeed 通过 WebSocket 订阅行情推送
// 后台 goroutine 持续读取并缓存每个市场的最新数据，
// Fetch 直接返回缓存值，连接断开时自动重连
type WSFeed struct {
	endpoint string

	mu     sync.RWMutex
	latest map[string]domain.MarketData

	cancel context.CancelFunc
	done   chan struct{}
}

type wsMessage struct {
	InstrumentID string  `json:"instrument_id"`
	MidPrice     float64 `json:"mid_price"`
	BestBid      float64 `json:"best_bid"`
	BestAsk      float64 `json:"best_ask"`
	Volume24h    float64 `json:"volume_24h"`
	Timestamp    int64   `json:"timestamp"`
}

// NewWSFeed 创建并启动 WebSocket 行情源
func NewWSFeed(endpoint string) *WSFeed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &WSFeed{
		endpoint: endpoint,
		latest:   make(map[string]domain.MarketData),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go f.readLoop(ctx)
	return f
}

// Fetch 返回该市场最近一次推送的行情
func (f *WSFeed) Fetch(ctx context.Context, instrumentID string) (domain.MarketData, error) {
	f.mu.RLock()
	data, ok := f.latest[instrumentID]
	f.mu.RUnlock()
	if !ok {
		return domain.MarketData{}, fmt.Errorf("no market data received yet for %s", instrumentID)
	}
	return data, nil
}

// Close 停止后台读取并等待退出
func (f *WSFeed) Close() error {
	f.cancel()
	<-f.done
	return nil
}

func (f *WSFeed) readLoop(ctx context.Context) {
	defer close(f.done)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := f.dial(ctx)
		if err != nil {
			logger.Warn(ctx, "websocket dial failed", "endpoint", f.endpoint, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wsReconnectBackoff):
			}
			continue
		}

		f.consume(ctx, conn)
		_ = conn.Close()
	}
}

func (f *WSFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "websocket feed connected", "endpoint", f.endpoint)
	return conn, nil
}

func (f *WSFeed) consume(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn(ctx, "websocket read failed", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn(ctx, "websocket message decode failed", "error", err)
			continue
		}
		if msg.InstrumentID == "" {
			continue
		}

		f.mu.Lock()
		f.latest[msg.InstrumentID] = domain.MarketData{
			InstrumentID: msg.InstrumentID,
			MidPrice:     msg.MidPrice,
			BestBid:      msg.BestBid,
			BestAsk:      msg.BestAsk,
			Volume24h:    msg.Volume24h,
			Timestamp:    time.UnixMilli(msg.Timestamp),
		}
		f.mu.Unlock()
	}
}
