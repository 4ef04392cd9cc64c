package sportsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"OddsSync/internal/config"
	"OddsSync/internal/interfaces"
	"OddsSync/internal/model"
	"OddsSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// Adapter 上游体育赔率API适配器（GET /odds?fixture=<id>，bookmakers/bets/values三层结构）
type Adapter struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewAdapter 创建适配器实例
func NewAdapter(cfg *config.ProviderConfig, logger *logrus.Logger) interfaces.OddsProvider {
	return &Adapter{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(cfg, logger),
		logger:     logger,
	}
}

// GetName ========== 实现OddsProvider接口 ==========
func (a *Adapter) GetName() string {
	if a.cfg.Name != "" {
		return a.cfg.Name
	}
	return "sportsapi"
}

// FetchFixtureOdds 拉取单fixture原始赔率。上游不可用/非200整体报错（由调用方决定重试节奏）
func (a *Adapter) FetchFixtureOdds(ctx context.Context, fixtureID int64) (*model.FixtureOddsPayload, error) {
	// 1. 组装请求（API密钥走header）
	oddsURL := fmt.Sprintf("%s/odds?fixture=%d", a.cfg.BaseURL, fixtureID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oddsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构建赔率请求失败: %w", err)
	}
	req.Header.Set("x-apisports-key", a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("拉取fixture %d赔率失败: %w", fixtureID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("赔率接口返回异常状态码: %d", resp.StatusCode)
	}

	// 2. 解码外层response数组
	var decoded model.ProviderOddsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析赔率响应失败: %w", err)
	}

	// 3. 归并为单fixture载荷（接口按fixture查询，正常只有一项；多项时合并bookmaker块）
	payload := &model.FixtureOddsPayload{FixtureID: fixtureID}
	for _, entry := range decoded.Response {
		if entry.Fixture.ID != 0 && entry.Fixture.ID != fixtureID {
			a.logger.WithFields(logrus.Fields{
				"want": fixtureID,
				"got":  entry.Fixture.ID,
			}).Warn("响应中出现非目标fixture，跳过")
			continue
		}
		payload.Bookmakers = append(payload.Bookmakers, entry.Bookmakers...)
	}

	return payload, nil
}
