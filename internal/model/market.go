package model

import (
	"encoding/json"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// MarketCategory 市场分类标签（封闭集合，库里按varchar存，扩展只改代码不迁移枚举）
type MarketCategory string

const (
	CategoryMatchResult  MarketCategory = "MATCH_RESULT"  // 胜平负/1X2
	CategoryGoals        MarketCategory = "GOALS"         // 进球数大小
	CategoryHalftime     MarketCategory = "HALFTIME"      // 上半场
	CategorySecondHalf   MarketCategory = "SECOND_HALF"   // 下半场
	CategoryCorners      MarketCategory = "CORNERS"       // 角球
	CategoryCards        MarketCategory = "CARDS"         // 红黄牌
	CategoryExactScore   MarketCategory = "EXACT_SCORE"   // 精确比分
	CategoryHandicap     MarketCategory = "HANDICAP"      // 让球
	CategorySpecials     MarketCategory = "SPECIALS"      // 特殊玩法
	CategoryPlayerProps  MarketCategory = "PLAYER_PROPS"  // 球员玩法
	CategoryCombined     MarketCategory = "COMBINED"      // 组合玩法
	CategoryTimeSpecific MarketCategory = "TIME_SPECIFIC" // 分钟段玩法
	CategoryOther        MarketCategory = "OTHER"         // 兜底
)

// MarketParameters 分类器从市场名中抽取的结构化参数（jsonb存储）
type MarketParameters struct {
	Line              *float64 `json:"line,omitempty"`      // 盘口线（名称中第一个小数）
	Timeframe         *int     `json:"timeframe,omitempty"` // 分钟段（如 0-15 分钟玩法）
	Team              string   `json:"team,omitempty"`      // home/away
	Period            string   `json:"period,omitempty"`    // first_half/second_half
	OutcomeCount      int      `json:"outcome_count"`       // 首次观察到的选项数量
	HasNumericOutcome bool     `json:"has_numeric_outcome"` // 选项标签是否含数字
}

// Market 规范化市场主表（同一provider市场id全局一条）
// provider_market_id 是唯一稳定身份；key 仅在首次创建时生成，后续同步不改名
type Market struct {
	ID               uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	ProviderMarketID int64          `gorm:"column:provider_market_id;uniqueIndex;not null;comment:provider市场ID（稳定身份）"`
	Key              string         `gorm:"column:key;type:varchar(64);uniqueIndex;not null;comment:规范化key（slug）"`
	Name             string         `gorm:"column:name;type:varchar(256);not null;comment:provider市场名称"`
	Category         MarketCategory `gorm:"column:category;type:varchar(32);not null;default:OTHER;comment:分类标签"`
	Parameters       datatypes.JSON `gorm:"column:parameters;type:jsonb;comment:结构化参数（线/时段/主客）"`
	PossibleOutcomes datatypes.JSON `gorm:"column:possible_outcomes;type:jsonb;not null;comment:已观察到的规范化选项集合"`
	Priority         int            `gorm:"column:priority;type:int;default:10;comment:展示优先级[10,100]"`
	UsageCount       int64          `gorm:"column:usage_count;type:bigint;default:1;comment:被观察次数"`
	LastSeenAt       time.Time      `gorm:"column:last_seen_at;type:timestamp;not null;comment:最近一次出现时间"`
	CreatedAt        time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (Market) TableName() string { return "markets" }

// OutcomeTokens 解析 possible_outcomes 为字符串切片（解析失败返回空集）
func (m *Market) OutcomeTokens() []string {
	var tokens []string
	if len(m.PossibleOutcomes) == 0 {
		return tokens
	}
	if err := json.Unmarshal(m.PossibleOutcomes, &tokens); err != nil {
		return nil
	}
	return tokens
}

// EncodeOutcomeTokens 规范化选项集合编码为jsonb：去重+排序，保证同集合编码唯一
func EncodeOutcomeTokens(tokens []string) datatypes.JSON {
	seen := make(map[string]struct{}, len(tokens))
	uniq := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)
	b, err := json.Marshal(uniq)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return b
}

// UnionOutcomeTokens 合并已存集合与新观察集合，返回并集与是否有新增
func UnionOutcomeTokens(stored, observed []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(stored))
	merged := make([]string, 0, len(stored)+len(observed))
	for _, t := range stored {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			merged = append(merged, t)
		}
	}
	grew := false
	for _, t := range observed {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			merged = append(merged, t)
			grew = true
		}
	}
	sort.Strings(merged)
	return merged, grew
}
