// Package http 注册表 HTTP 接口
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/tradingassistant/internal/registry/application"
	"github.com/wyfcoding/tradingassistant/internal/registry/domain"
	"github.com/wyfcoding/tradingassistant/pkg/middleware"
	"github.com/wyfcoding/tradingassistant/pkg/response"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// RegistryHandler HTTP 处理器
// 负责处理金融工具、挂牌与策略分组相关的请求
type RegistryHandler struct {
	app *application.RegistryService
}

// NewRegistryHandler 创建 HTTP 处理器实例
func NewRegistryHandler(app *application.RegistryService) *RegistryHandler {
	return &RegistryHandler{app: app}
}

// RegisterRoutes 注册 /registry 路由，mids 通常为认证中间件
func (h *RegistryHandler) RegisterRoutes(r *gin.RouterGroup, mids ...gin.HandlerFunc) {
	api := r.Group("/registry", mids...)
	{
		api.POST("/instruments", h.CreateInstrument)
		api.GET("/instruments", h.ListInstruments)
		api.GET("/instruments/:id", h.GetInstrument)
		api.GET("/instruments/:id/listings", h.ListListings)
		api.POST("/listings", h.CreateListing)
		api.GET("/sleeves", h.ListSleeves)
	}
}

type createInstrumentRequest struct {
	ISIN           string `json:"isin" binding:"required,len=12"`
	Name           string `json:"name" binding:"required"`
	InstrumentType string `json:"instrument_type" binding:"required"`
}

// CreateInstrument 创建金融工具
func (h *RegistryHandler) CreateInstrument(c *gin.Context) {
	var req createInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	instrument, err := h.app.CreateInstrument(c.Request.Context(), application.CreateInstrumentCommand{
		ISIN:           req.ISIN,
		Name:           req.Name,
		InstrumentType: req.InstrumentType,
		CreatedBy:      middleware.UserID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, instrument)
}

type pageQuery struct {
	Limit  *int `form:"limit" binding:"omitempty,min=1"`
	Offset int  `form:"offset" binding:"omitempty,min=0"`
}

type instrumentPage struct {
	Items  []*domain.Instrument `json:"items"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Total  int64                `json:"total"`
}

// ListInstruments 分页列出金融工具
func (h *RegistryHandler) ListInstruments(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err)
		return
	}
	limit := defaultPageLimit
	if q.Limit != nil {
		limit = min(*q.Limit, maxPageLimit)
	}
	items, total, err := h.app.ListInstruments(c.Request.Context(), limit, q.Offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, instrumentPage{Items: items, Limit: limit, Offset: q.Offset, Total: total})
}

// GetInstrument 获取金融工具
func (h *RegistryHandler) GetInstrument(c *gin.Context) {
	instrument, err := h.app.GetInstrument(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, instrument)
}

// ListListings 列出金融工具的挂牌
func (h *RegistryHandler) ListListings(c *gin.Context) {
	listings, err := h.app.ListListings(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

type createListingRequest struct {
	InstrumentID    string `json:"instrument_id" binding:"required,uuid"`
	Ticker          string `json:"ticker" binding:"required"`
	Exchange        string `json:"exchange" binding:"required"`
	TradingCurrency string `json:"trading_currency"`
	PriceScale      string `json:"price_scale" binding:"omitempty,oneof=MAJOR MINOR"`
	IsPrimary       bool   `json:"is_primary"`
}

// CreateListing 创建挂牌
func (h *RegistryHandler) CreateListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	listing, err := h.app.CreateListing(c.Request.Context(), application.CreateListingCommand{
		InstrumentID:    req.InstrumentID,
		Ticker:          req.Ticker,
		Exchange:        req.Exchange,
		TradingCurrency: req.TradingCurrency,
		PriceScale:      domain.PriceScale(req.PriceScale),
		IsPrimary:       req.IsPrimary,
		CreatedBy:       middleware.UserID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// ListSleeves 列出策略分组
func (h *RegistryHandler) ListSleeves(c *gin.Context) {
	sleeves, err := h.app.ListSleeves(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, sleeves)
}
