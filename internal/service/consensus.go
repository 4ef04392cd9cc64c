package service

import (
	"context"
	"fmt"
	"time"

	"OddsSync/internal/model"
	"OddsSync/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ConsensusService 共识价计算：对每个(fixture, market)，按选项对全部真实bookmaker
// 价格取算术平均，以保留bookmaker名"Average"落一行合成价。
// 输入不变时重算结果一致（2位小数内幂等）
type ConsensusService struct {
	oddsRepo repository.OddsRepository
	logger   *logrus.Logger
}

// NewConsensusService 创建共识计算服务
func NewConsensusService(oddsRepo repository.OddsRepository, logger *logrus.Logger) *ConsensusService {
	return &ConsensusService{
		oddsRepo: oddsRepo,
		logger:   logger,
	}
}

// Recompute 重算指定市场集合的Average行。单市场失败不阻塞其余市场
func (c *ConsensusService) Recompute(ctx context.Context, fixtureID int64, marketIDs []uint64) error {
	var failed int
	for _, marketID := range marketIDs {
		if err := c.recomputeMarket(ctx, fixtureID, marketID); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"fixture_id": fixtureID,
				"market_id":  marketID,
			}).Warn("单市场共识重算失败，跳过")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("共识重算部分失败: %d/%d个市场", failed, len(marketIDs))
	}
	return nil
}

func (c *ConsensusService) recomputeMarket(ctx context.Context, fixtureID int64, marketID uint64) error {
	// 1. 取全部真实bookmaker价格行（排除Average自身）
	rows, err := c.oddsRepo.ListRealByFixtureMarket(ctx, fixtureID, marketID)
	if err != nil {
		return fmt.Errorf("读取价格行失败: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	// 2. 按选项分组（单行也成组：单bookmaker的均值即其本身）
	grouped := make(map[string][]*model.Odds)
	order := make([]string, 0)
	for _, row := range rows {
		if _, ok := grouped[row.Outcome]; !ok {
			order = append(order, row.Outcome)
		}
		grouped[row.Outcome] = append(grouped[row.Outcome], row)
	}

	// 3. 逐选项求算术平均，落Average行
	now := time.Now()
	consensus := make([]*model.Odds, 0, len(grouped))
	for _, outcome := range order {
		group := grouped[outcome]
		prices := make([]decimal.Decimal, 0, len(group))
		for _, row := range group {
			prices = append(prices, decimal.NewFromFloat(row.Price))
		}
		mean := decimal.Avg(prices[0], prices[1:]...).Round(2)
		price, _ := mean.Float64()
		implied, _ := decimal.NewFromInt(100).Div(mean).Round(2).Float64()

		consensus = append(consensus, &model.Odds{
			FixtureID:          fixtureID,
			MarketID:           marketID,
			Outcome:            outcome,
			Bookmaker:          model.BookmakerAverage,
			Value:              group[0].Value,
			Price:              price,
			ImpliedProbability: implied,
			LastUpdated:        now,
		})
	}

	if err := c.oddsRepo.UpsertConsensus(ctx, consensus); err != nil {
		return fmt.Errorf("写入Average行失败: %w", err)
	}
	return nil
}
