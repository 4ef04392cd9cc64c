package model

import (
	"time"
)

// BookmakerAverage 合成共识价的保留bookmaker名，真实bookmaker不得使用
const BookmakerAverage = "Average"

// Odds 价格行（(fixture_id, market_id, outcome, bookmaker) 四元组唯一，幂等键）
// 只保留最新值：同步到已存在的四元组时原地覆盖，不留历史
type Odds struct {
	ID                 uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	FixtureID          int64     `gorm:"column:fixture_id;not null;uniqueIndex:uk_fixture_market_outcome_bk;index;comment:赛事ID（外部所有，仅作外键）"`
	MarketID           uint64    `gorm:"column:market_id;not null;uniqueIndex:uk_fixture_market_outcome_bk;comment:关联市场ID"`
	Outcome            string    `gorm:"column:outcome;type:varchar(64);not null;uniqueIndex:uk_fixture_market_outcome_bk;comment:规范化选项token"`
	Bookmaker          string    `gorm:"column:bookmaker;type:varchar(64);not null;uniqueIndex:uk_fixture_market_outcome_bk;comment:bookmaker名称（Average为合成共识）"`
	Value              *float64  `gorm:"column:value;type:numeric(10,2);comment:原始标签内嵌数值（如盘口线）"`
	Price              float64   `gorm:"column:price;type:numeric(10,2);not null;comment:欧赔（>1.0）"`
	ImpliedProbability float64   `gorm:"column:implied_probability;type:numeric(8,2);not null;comment:隐含概率=100/price"`
	LastUpdated        time.Time `gorm:"column:last_updated;type:timestamp;not null;comment:最近更新时间"`
}

func (Odds) TableName() string { return "odds" }
