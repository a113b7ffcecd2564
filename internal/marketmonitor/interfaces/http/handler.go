// Package http 提供行情监控的 REST 与 WebSocket 接口
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/oddslab/probpricing/internal/marketmonitor/application"
	"github.com/oddslab/probpricing/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler 行情监控的 HTTP 处理器
type Handler struct {
	monitor *application.MarketMonitor
}

// NewHandler 创建处理器
func NewHandler(monitor *application.MarketMonitor) *Handler {
	return &Handler{monitor: monitor}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/markets", h.ListMonitored)
		v1.POST("/markets/:instrumentId/monitor", h.StartMonitoring)
		v1.DELETE("/markets/:instrumentId/monitor", h.StopMonitoring)
		v1.GET("/markets/:instrumentId/latest", h.GetLatest)
		v1.GET("/markets/:instrumentId/band", h.GetPriceBand)
		v1.GET("/markets/:instrumentId/stream", h.Stream)
	}
}

// ListMonitored 返回监控中的市场列表
func (h *Handler) ListMonitored(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instruments": h.monitor.Monitored()})
}

// StartMonitoring 开始监控市场
// 可选 interval_ms 指定轮询间隔，缺省或为 0 时使用服务默认间隔；
// 轮询任务的生命周期由监控器持有，不随本次请求结束
func (h *Handler) StartMonitoring(c *gin.Context) {
	instrumentID := c.Param("instrumentId")

	intervalMs, err := strconv.Atoi(c.DefaultQuery("interval_ms", "0"))
	if err != nil || intervalMs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interval_ms"})
		return
	}

	h.monitor.StartMonitoring(instrumentID, time.Duration(intervalMs)*time.Millisecond)
	c.JSON(http.StatusOK, gin.H{"instrument_id": instrumentID, "monitoring": true})
}

// StopMonitoring 停止监控市场
func (h *Handler) StopMonitoring(c *gin.Context) {
	instrumentID := c.Param("instrumentId")
	h.monitor.StopMonitoring(instrumentID)
	c.JSON(http.StatusOK, gin.H{"instrument_id": instrumentID, "monitoring": false})
}

// GetLatest 返回最近一次抓取的行情
func (h *Handler) GetLatest(c *gin.Context) {
	data := h.monitor.GetLatest(c.Param("instrumentId"))
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no market data"})
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetPriceBand 返回近期观测的价格区间
func (h *Handler) GetPriceBand(c *gin.Context) {
	band, ok := h.monitor.GetPriceBand(c.Param("instrumentId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "instrument not monitored"})
		return
	}
	c.JSON(http.StatusOK, band)
}

// Stream 通过 WebSocket 推送该市场的实时更新
func (h *Handler) Stream(c *gin.Context) {
	instrumentID := c.Param("instrumentId")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.monitor.Subscribe(instrumentID)
	defer h.monitor.Unsubscribe(instrumentID, sub.Token)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-sub.Updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		}
	}
}
