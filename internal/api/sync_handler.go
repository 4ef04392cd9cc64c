package api

import (
	"errors"
	"net/http"
	"strconv"

	"OddsSync/internal/repository"
	"OddsSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SyncHandler 同步触发接口（调度任务与手动触发共用）
type SyncHandler struct {
	syncService *service.OddsSyncService
	logger      *logrus.Logger
}

// NewSyncHandler 创建 SyncHandler
func NewSyncHandler(syncService *service.OddsSyncService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// SyncFixtureHandler 同步指定fixture的赔率
// @Summary 同步单fixture赔率
// @Param fixture_id path int true "fixture ID"
// @Success 200 {object} service.SyncSummary
// @Failure 502 {object} map[string]string
// @Router /sync/fixture/{fixture_id} [post]
func (h *SyncHandler) SyncFixtureHandler(c *gin.Context) {
	fixtureID, err := strconv.ParseInt(c.Param("fixture_id"), 10, 64)
	if err != nil || fixtureID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fixture_id须为正整数"})
		return
	}

	summary, err := h.syncService.SyncFixture(c.Request.Context(), fixtureID)
	if err != nil {
		h.logger.WithError(err).WithField("fixture_id", fixtureID).Error("同步失败")
		status := http.StatusBadGateway
		if errors.Is(err, repository.ErrBudgetExhausted) {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	// 部分失败是常态：errors计数随summary返回，不作为HTTP错误
	c.JSON(http.StatusOK, summary)
}
