// Package http 投资组合 HTTP 接口
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/tradingassistant/internal/portfolio/application"
	"github.com/wyfcoding/tradingassistant/internal/portfolio/domain"
	"github.com/wyfcoding/tradingassistant/pkg/middleware"
	"github.com/wyfcoding/tradingassistant/pkg/response"
)

// PortfolioHandler HTTP 处理器
type PortfolioHandler struct {
	app *application.PortfolioService
}

// NewPortfolioHandler 创建 HTTP 处理器实例
func NewPortfolioHandler(app *application.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{app: app}
}

// RegisterRoutes 注册 /portfolios 路由，mids 通常为认证中间件
func (h *PortfolioHandler) RegisterRoutes(r *gin.RouterGroup, mids ...gin.HandlerFunc) {
	api := r.Group("/portfolios", mids...)
	{
		api.GET("", h.ListPortfolios)
		api.POST("", h.CreatePortfolio)
		api.GET("/:id", h.GetPortfolio)
		api.PUT("/:id/constituents", h.BulkUpsertConstituents)
		api.GET("/:id/constituents", h.GetConstituents)
	}
}

type portfolioResponse struct {
	PortfolioID  string    `json:"portfolio_id"`
	OwnerUserID  string    `json:"owner_user_id"`
	Name         string    `json:"name"`
	Broker       string    `json:"broker"`
	BaseCurrency string    `json:"base_currency"`
	TaxTreatment string    `json:"tax_treatment"`
	TaxProfile   string    `json:"tax_profile"`
	IsEnabled    bool      `json:"is_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toPortfolioResponse(p *domain.Portfolio) portfolioResponse {
	return portfolioResponse{
		PortfolioID:  p.ID,
		OwnerUserID:  p.OwnerUserID,
		Name:         p.Name,
		Broker:       p.Broker,
		BaseCurrency: p.BaseCurrency,
		TaxTreatment: string(p.TaxTreatment),
		TaxProfile:   string(p.TaxTreatment),
		IsEnabled:    p.IsEnabled,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type constituentResponse struct {
	PortfolioID string    `json:"portfolio_id"`
	ListingID   string    `json:"listing_id"`
	SleeveCode  string    `json:"sleeve_code"`
	IsMonitored bool      `json:"is_monitored"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListPortfolios 列出调用者的组合
func (h *PortfolioHandler) ListPortfolios(c *gin.Context) {
	list, err := h.app.GetPortfolios(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]portfolioResponse, len(list))
	for i, p := range list {
		out[i] = toPortfolioResponse(p)
	}
	c.JSON(http.StatusOK, out)
}

// createPortfolioRequest tax_profile 为 tax_treatment 的别名
type createPortfolioRequest struct {
	Name         string `json:"name" binding:"required"`
	Broker       string `json:"broker"`
	BaseCurrency string `json:"base_currency"`
	TaxTreatment string `json:"tax_treatment"`
	TaxProfile   string `json:"tax_profile"`
}

// CreatePortfolio 创建组合
func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	var req createPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	tax := req.TaxTreatment
	if tax == "" {
		tax = req.TaxProfile
	}
	p, err := h.app.CreatePortfolio(c.Request.Context(), application.CreatePortfolioCommand{
		OwnerUserID:  middleware.UserID(c),
		Name:         req.Name,
		Broker:       req.Broker,
		BaseCurrency: req.BaseCurrency,
		TaxTreatment: tax,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPortfolioResponse(p))
}

// GetPortfolio 获取组合
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	p, err := h.app.GetPortfolio(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toPortfolioResponse(p))
}

type constituentItemRequest struct {
	ListingID   string `json:"listing_id" binding:"required,uuid"`
	SleeveCode  string `json:"sleeve_code" binding:"required"`
	IsMonitored *bool  `json:"is_monitored"`
}

type bulkUpsertRequest struct {
	Items          []constituentItemRequest `json:"items" binding:"required,dive"`
	ReplaceMissing bool                     `json:"replace_missing"`
}

// BulkUpsertConstituents 批量写入组合成分
func (h *PortfolioHandler) BulkUpsertConstituents(c *gin.Context) {
	var req bulkUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	items := make([]domain.ConstituentItem, len(req.Items))
	for i, it := range req.Items {
		monitored := true
		if it.IsMonitored != nil {
			monitored = *it.IsMonitored
		}
		items[i] = domain.ConstituentItem{ListingID: it.ListingID, SleeveCode: it.SleeveCode, IsMonitored: monitored}
	}
	n, err := h.app.BulkUpsertConstituents(c.Request.Context(), application.BulkUpsertCommand{
		CallerID:       middleware.UserID(c),
		PortfolioID:    c.Param("id"),
		Items:          items,
		ReplaceMissing: req.ReplaceMissing,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "updated_count": n})
}

// GetConstituents 列出组合成分
func (h *PortfolioHandler) GetConstituents(c *gin.Context) {
	list, err := h.app.GetConstituents(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]constituentResponse, len(list))
	for i, m := range list {
		out[i] = constituentResponse{
			PortfolioID: m.PortfolioID,
			ListingID:   m.ListingID,
			SleeveCode:  m.SleeveCode,
			IsMonitored: m.IsMonitored,
			CreatedAt:   m.CreatedAt,
			UpdatedAt:   m.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, out)
}
