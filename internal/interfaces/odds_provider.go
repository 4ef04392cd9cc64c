package interfaces

import (
	"context"

	"OddsSync/internal/model"
)

// OddsProvider 上游赔率数据源必须实现的核心接口
type OddsProvider interface {
	// GetName 数据源名称
	GetName() string
	// FetchFixtureOdds 拉取单fixture的原始赔率（bookmaker块列表）
	FetchFixtureOdds(ctx context.Context, fixtureID int64) (*model.FixtureOddsPayload, error)
}
