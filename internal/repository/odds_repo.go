package repository

import (
	"context"
	"fmt"
	"strings"

	"OddsSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OddsRepository 价格行仓储（幂等键：fixture_id+market_id+outcome+bookmaker）
type OddsRepository interface {
	// UpsertPrice 价格行写入：四元组不存在则创建，存在则原地覆盖
	// price/implied_probability/value/last_updated。返回是否新建
	UpsertPrice(ctx context.Context, row *model.Odds) (bool, error)
	// ListByFixture 查询fixture全部价格行（含Average），按id升序（先写先返回，best-price平局裁决依赖此序）
	ListByFixture(ctx context.Context, fixtureID int64) ([]*model.Odds, error)
	// ListRealByFixtureMarket 查询某(fixture, market)下全部真实bookmaker价格行（排除Average）
	ListRealByFixtureMarket(ctx context.Context, fixtureID int64, marketID uint64) ([]*model.Odds, error)
	// ListByFixtureBookmaker 查询fixture下指定bookmaker的价格行
	ListByFixtureBookmaker(ctx context.Context, fixtureID int64, bookmaker string) ([]*model.Odds, error)
	// UpsertConsensus 批量写入Average共识行（冲突即覆盖）
	UpsertConsensus(ctx context.Context, rows []*model.Odds) error
}

type oddsRepository struct {
	db *gorm.DB
}

// NewOddsRepository 创建 OddsRepository 实例
func NewOddsRepository(db *gorm.DB) OddsRepository {
	return &oddsRepository{db: db}
}

// UpsertPrice 先Create，撞唯一约束转Update（保留创建/更新计数语义）
func (r *oddsRepository) UpsertPrice(ctx context.Context, row *model.Odds) (bool, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if !strings.Contains(err.Error(), "uk_fixture_market_outcome_bk") {
			return false, fmt.Errorf("写入价格行失败: %w", err)
		}
		// 已存在：last-write-wins，只覆盖价格相关列
		if err := r.db.WithContext(ctx).Model(&model.Odds{}).
			Where("fixture_id = ? AND market_id = ? AND outcome = ? AND bookmaker = ?",
				row.FixtureID, row.MarketID, row.Outcome, row.Bookmaker).
			Updates(map[string]interface{}{
				"price":               row.Price,
				"implied_probability": row.ImpliedProbability,
				"value":               row.Value,
				"last_updated":        row.LastUpdated,
			}).Error; err != nil {
			return false, fmt.Errorf("覆盖价格行失败: %w", err)
		}
		return false, nil
	}
	return true, nil
}

func (r *oddsRepository) ListByFixture(ctx context.Context, fixtureID int64) ([]*model.Odds, error) {
	var rows []*model.Odds
	if err := r.db.WithContext(ctx).
		Where("fixture_id = ?", fixtureID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *oddsRepository) ListRealByFixtureMarket(ctx context.Context, fixtureID int64, marketID uint64) ([]*model.Odds, error) {
	var rows []*model.Odds
	if err := r.db.WithContext(ctx).
		Where("fixture_id = ? AND market_id = ? AND bookmaker <> ?", fixtureID, marketID, model.BookmakerAverage).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *oddsRepository) ListByFixtureBookmaker(ctx context.Context, fixtureID int64, bookmaker string) ([]*model.Odds, error) {
	var rows []*model.Odds
	if err := r.db.WithContext(ctx).
		Where("fixture_id = ? AND bookmaker = ?", fixtureID, bookmaker).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertConsensus Average行整批upsert：按四元组冲突即覆盖（共识重算天然幂等）
func (r *oddsRepository) UpsertConsensus(ctx context.Context, rows []*model.Odds) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "fixture_id"}, {Name: "market_id"}, {Name: "outcome"}, {Name: "bookmaker"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"price", "implied_probability", "value", "last_updated"}),
	}).Create(rows).Error
}
