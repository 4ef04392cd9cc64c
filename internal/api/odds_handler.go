package api

import (
	"net/http"
	"strconv"

	"OddsSync/internal/model"
	"OddsSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OddsHandler 赔率查询接口
type OddsHandler struct {
	marketService *service.MarketService
	logger        *logrus.Logger
}

// NewOddsHandler 创建 OddsHandler
func NewOddsHandler(marketService *service.MarketService, logger *logrus.Logger) *OddsHandler {
	return &OddsHandler{
		marketService: marketService,
		logger:        logger,
	}
}

// GetFixtureOdds 指定bookmaker的分类赔率视图
// GET /api/odds/:fixture_id?bookmaker=Bet365（缺省返回Average共识视图）
func (h *OddsHandler) GetFixtureOdds(c *gin.Context) {
	fixtureID, err := strconv.ParseInt(c.Param("fixture_id"), 10, 64)
	if err != nil || fixtureID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fixture_id须为正整数"})
		return
	}
	bookmaker := c.DefaultQuery("bookmaker", model.BookmakerAverage)

	view, err := h.marketService.GetFixtureOdds(c.Request.Context(), fixtureID, bookmaker)
	if err != nil {
		h.logger.WithError(err).WithField("fixture_id", fixtureID).Error("GetFixtureOdds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetBestOdds 全bookmaker最优价视图
// GET /api/odds/:fixture_id/best
func (h *OddsHandler) GetBestOdds(c *gin.Context) {
	fixtureID, err := strconv.ParseInt(c.Param("fixture_id"), 10, 64)
	if err != nil || fixtureID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fixture_id须为正整数"})
		return
	}

	view, err := h.marketService.GetBestOdds(c.Request.Context(), fixtureID)
	if err != nil {
		h.logger.WithError(err).WithField("fixture_id", fixtureID).Error("GetBestOdds failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, view)
}
