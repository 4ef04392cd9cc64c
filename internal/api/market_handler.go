package api

import (
	"errors"
	"net/http"
	"strconv"

	"OddsSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MarketHandler 市场目录与维护接口
type MarketHandler struct {
	marketService  *service.MarketService
	staleAfterDays int
	logger         *logrus.Logger
}

// NewMarketHandler 创建 MarketHandler
func NewMarketHandler(marketService *service.MarketService, staleAfterDays int, logger *logrus.Logger) *MarketHandler {
	return &MarketHandler{
		marketService:  marketService,
		staleAfterDays: staleAfterDays,
		logger:         logger,
	}
}

// ListMarkets 市场目录接口
// GET /api/markets?category=GOALS（缺省返回全部，优先级降序）
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	category := c.Query("category")

	views, err := h.marketService.ListMarketsByCategory(c.Request.Context(), category)
	if err != nil {
		h.logger.WithError(err).Error("ListMarkets failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   len(views),
		"markets": views,
	})
}

// GetMarket 单市场详情接口
// GET /api/markets/:key（key大小写不敏感，未知key返回404）
func (h *MarketHandler) GetMarket(c *gin.Context) {
	key := c.Param("key")

	view, err := h.marketService.GetMarketByKey(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "未知市场key"})
			return
		}
		h.logger.WithError(err).WithField("key", key).Error("GetMarket failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, view)
}

// PruneMarkets 过期市场清理（同步路径之外唯一删除入口，供运维/定时任务调用）
// POST /api/markets/prune?days=30（缺省用配置值）
func (h *MarketHandler) PruneMarkets(c *gin.Context) {
	days := h.staleAfterDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days须为正整数"})
			return
		}
		days = parsed
	}

	removed, err := h.marketService.PruneStaleMarkets(c.Request.Context(), days)
	if err != nil {
		h.logger.WithError(err).Error("PruneMarkets failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
		"days":    days,
	})
}
