// Package http 提供定价与做市的 REST 接口
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ammapp "github.com/oddslab/probpricing/internal/amm/application"
	ammdomain "github.com/oddslab/probpricing/internal/amm/domain"
	pricingapp "github.com/oddslab/probpricing/internal/pricing/application"
	"github.com/oddslab/probpricing/internal/pricing/domain"
)

// Handler 定价服务的 HTTP 处理器
type Handler struct {
	pricing *pricingapp.PricingService
	amm     *ammapp.AMMService
}

// NewHandler 创建处理器
func NewHandler(pricing *pricingapp.PricingService, amm *ammapp.AMMService) *Handler {
	return &Handler{pricing: pricing, amm: amm}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/quotes", h.GetQuote)
		v1.POST("/pools", h.InitializePool)
		v1.GET("/pools/:instrumentId", h.GetPool)
		v1.POST("/pools/:instrumentId/liquidity", h.ChangeLiquidity)
		v1.POST("/pools/:instrumentId/trades", h.ExecuteTrade)
	}
}

type quoteRequest struct {
	InstrumentID   string  `json:"instrument_id" binding:"required"`
	UnderlyingProb float64 `json:"underlying_prob"`
	StrikeProb     float64 `json:"strike_prob"`
	ExpiryMs       int64   `json:"expiry_ms" binding:"required"`
	Kind           string  `json:"kind" binding:"required"`
	PoolAdjusted   bool    `json:"pool_adjusted"`
}

// GetQuote 计算期权报价
func (h *Handler) GetQuote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	desc := domain.OptionDescriptor{
		InstrumentID:   req.InstrumentID,
		UnderlyingProb: req.UnderlyingProb,
		StrikeProb:     req.StrikeProb,
		Expiry:         time.UnixMilli(req.ExpiryMs),
		Kind:           domain.OptionKind(req.Kind),
	}

	result, err := h.pricing.GetQuote(c.Request.Context(), desc, req.PoolAdjusted)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type initPoolRequest struct {
	InstrumentID string  `json:"instrument_id" binding:"required"`
	InitialPrice float64 `json:"initial_price"`
}

// InitializePool 初始化流动性池
func (h *Handler) InitializePool(c *gin.Context) {
	var req initPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := h.amm.InitializePool(c.Request.Context(), req.InstrumentID, req.InitialPrice)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetPool 返回池快照
func (h *Handler) GetPool(c *gin.Context) {
	snapshot, err := h.amm.GetPoolSnapshot(c.Param("instrumentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type liquidityRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Action string  `json:"action" binding:"required,oneof=add remove"`
}

// ChangeLiquidity 注入或移除流动性
func (h *Handler) ChangeLiquidity(c *gin.Context) {
	var req liquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	instrumentID := c.Param("instrumentId")
	var (
		result *ammdomain.LiquidityResult
		err    error
	)
	if req.Action == "add" {
		result, err = h.amm.AddLiquidity(c.Request.Context(), instrumentID, req.Amount)
	} else {
		result, err = h.amm.RemoveLiquidity(c.Request.Context(), instrumentID, req.Amount)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type tradeRequest struct {
	Direction string  `json:"direction" binding:"required,oneof=BUY SELL"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

// ExecuteTrade 在池中执行交易
func (h *Handler) ExecuteTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.amm.ExecuteTrade(
		c.Request.Context(),
		c.Param("instrumentId"),
		ammdomain.Direction(req.Direction),
		req.Amount,
	)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ammdomain.ErrPoolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ammdomain.ErrOrderTooLarge):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ammdomain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
