// Package feed 提供行情数据源实现：HTTP 拉取、WebSocket 推送与本地模拟
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/oddslab/probpricing/internal/marketmonitor/domain"
)

// HTTPFeed 通过 REST 接口拉取行情
type HTTPFeed struct {
	endpoint string
	client   *http.Client
}

// NewHTTPFeed 创建 HTTP 行情源
func NewHTTPFeed(endpoint string, timeout time.Duration) *HTTPFeed {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFeed{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type marketDataResponse struct {
	InstrumentID string  `json:"instrument_id"`
	MidPrice     float64 `json:"mid_price"`
	BestBid      float64 `json:"best_bid"`
	BestAsk      float64 `json:"best_ask"`
	Volume24h    float64 `json:"volume_24h"`
	Timestamp    int64   `json:"timestamp"`
}

// Fetch 拉取单个市场的最新行情
func (f *HTTPFeed) Fetch(ctx context.Context, instrumentID string) (domain.MarketData, error) {
	u := fmt.Sprintf("%s/markets/%s", f.endpoint, url.PathEscape(instrumentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("build market request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("fetch market %s: %w", instrumentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.MarketData{}, fmt.Errorf("fetch market %s: unexpected status %d", instrumentID, resp.StatusCode)
	}

	var body marketDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.MarketData{}, fmt.Errorf("decode market %s: %w", instrumentID, err)
	}

	return domain.MarketData{
		InstrumentID: instrumentID,
		MidPrice:     body.MidPrice,
		BestBid:      body.BestBid,
		BestAsk:      body.BestAsk,
		Volume24h:    body.Volume24h,
		Timestamp:    time.UnixMilli(body.Timestamp),
	}, nil
}
