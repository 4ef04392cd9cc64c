package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"OddsSync/internal/cache"
	"OddsSync/internal/model"
	"OddsSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// OutcomePriceView 单选项报价
type OutcomePriceView struct {
	Price              float64   `json:"price"`
	ImpliedProbability float64   `json:"implied_probability"`
	Value              *float64  `json:"value,omitempty"`
	LastUpdated        time.Time `json:"last_updated"`
}

// MarketOddsView 单市场报价（选项token -> 报价）
type MarketOddsView struct {
	Key      string                      `json:"key"`
	Name     string                      `json:"name"`
	Category string                      `json:"category"`
	Priority int                         `json:"priority"`
	Outcomes map[string]OutcomePriceView `json:"outcomes"`
}

// FixtureOddsView 分bookmaker的分类视图。无任何价格行时available=false（不是错误）
type FixtureOddsView struct {
	FixtureID  int64                       `json:"fixture_id"`
	Bookmaker  string                      `json:"bookmaker"`
	Available  bool                        `json:"available"`
	Categories map[string][]MarketOddsView `json:"categories,omitempty"`
}

// BestPriceView 单选项最优报价（带归属bookmaker）
type BestPriceView struct {
	Price       float64   `json:"price"`
	Bookmaker   string    `json:"bookmaker"`
	LastUpdated time.Time `json:"last_updated"`
}

// BestMarketView 单市场最优报价
type BestMarketView struct {
	Key      string                   `json:"key"`
	Name     string                   `json:"name"`
	Category string                   `json:"category"`
	Priority int                      `json:"priority"`
	Outcomes map[string]BestPriceView `json:"outcomes"`
}

// BestOddsView 全市场最优价视图（市场按优先级降序）
type BestOddsView struct {
	FixtureID int64            `json:"fixture_id"`
	Available bool             `json:"available"`
	Markets   []BestMarketView `json:"markets,omitempty"`
}

// MarketDescriptorView 规范化市场描述符（目录查询用）
type MarketDescriptorView struct {
	ProviderMarketID int64           `json:"provider_market_id"`
	Key              string          `json:"key"`
	Name             string          `json:"name"`
	Category         string          `json:"category"`
	Priority         int             `json:"priority"`
	Parameters       json.RawMessage `json:"parameters,omitempty"`
	PossibleOutcomes []string        `json:"possible_outcomes"`
	UsageCount       int64           `json:"usage_count"`
	LastSeenAt       time.Time       `json:"last_seen_at"`
}

// MarketService 面向API层的市场/赔率查询服务。读路径走短TTL缓存：
// 未命中回源（注册表+价格表）再写回，缓存故障降级为直查
type MarketService struct {
	marketRepo repository.MarketRepository
	oddsRepo   repository.OddsRepository
	cache      cache.OddsCache
	logger     *logrus.Logger
}

// NewMarketService 创建 MarketService
func NewMarketService(marketRepo repository.MarketRepository, oddsRepo repository.OddsRepository, oddsCache cache.OddsCache, logger *logrus.Logger) *MarketService {
	return &MarketService{
		marketRepo: marketRepo,
		oddsRepo:   oddsRepo,
		cache:      oddsCache,
		logger:     logger,
	}
}

// GetFixtureOdds 指定bookmaker的分类报价视图（bookmaker传Average即共识视图）
func (s *MarketService) GetFixtureOdds(ctx context.Context, fixtureID int64, bookmaker string) (*FixtureOddsView, error) {
	cacheKey := cache.FixtureOddsKey(fixtureID, bookmaker)
	var cached FixtureOddsView
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	rows, err := s.oddsRepo.ListByFixtureBookmaker(ctx, fixtureID, bookmaker)
	if err != nil {
		return nil, err
	}
	view := &FixtureOddsView{
		FixtureID: fixtureID,
		Bookmaker: bookmaker,
	}
	if len(rows) == 0 {
		// 无赔率：显式空结果而非404
		s.cache.Set(ctx, cacheKey, view)
		return view, nil
	}

	markets, err := s.loadMarkets(ctx, rows)
	if err != nil {
		return nil, err
	}

	// 按市场聚合选项，再按分类归桶
	perMarket := make(map[uint64]*MarketOddsView)
	for _, row := range rows {
		market, ok := markets[row.MarketID]
		if !ok {
			continue
		}
		mv, ok := perMarket[row.MarketID]
		if !ok {
			mv = &MarketOddsView{
				Key:      market.Key,
				Name:     market.Name,
				Category: string(market.Category),
				Priority: market.Priority,
				Outcomes: make(map[string]OutcomePriceView),
			}
			perMarket[row.MarketID] = mv
		}
		mv.Outcomes[row.Outcome] = OutcomePriceView{
			Price:              row.Price,
			ImpliedProbability: row.ImpliedProbability,
			Value:              row.Value,
			LastUpdated:        row.LastUpdated,
		}
	}

	view.Available = true
	view.Categories = make(map[string][]MarketOddsView)
	for _, mv := range perMarket {
		view.Categories[mv.Category] = append(view.Categories[mv.Category], *mv)
	}
	for category := range view.Categories {
		bucket := view.Categories[category]
		sort.Slice(bucket, func(i, j int) bool {
			if bucket[i].Priority != bucket[j].Priority {
				return bucket[i].Priority > bucket[j].Priority
			}
			return bucket[i].Key < bucket[j].Key
		})
		view.Categories[category] = bucket
	}

	s.cache.Set(ctx, cacheKey, view)
	return view, nil
}

// GetBestOdds 全bookmaker最优价视图：每(市场,选项)取最高价并标注来源bookmaker。
// 同价取存储序先到者（行按id升序返回）
func (s *MarketService) GetBestOdds(ctx context.Context, fixtureID int64) (*BestOddsView, error) {
	cacheKey := cache.BestOddsKey(fixtureID)
	var cached BestOddsView
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	rows, err := s.oddsRepo.ListByFixture(ctx, fixtureID)
	if err != nil {
		return nil, err
	}

	view := &BestOddsView{FixtureID: fixtureID}
	best := make(map[uint64]map[string]*model.Odds)
	for _, row := range rows {
		if row.Bookmaker == model.BookmakerAverage {
			continue
		}
		outcomes, ok := best[row.MarketID]
		if !ok {
			outcomes = make(map[string]*model.Odds)
			best[row.MarketID] = outcomes
		}
		// 严格大于才替换：同价保留先出现的行
		if current, ok := outcomes[row.Outcome]; !ok || row.Price > current.Price {
			outcomes[row.Outcome] = row
		}
	}
	if len(best) == 0 {
		s.cache.Set(ctx, cacheKey, view)
		return view, nil
	}

	markets, err := s.loadMarkets(ctx, rows)
	if err != nil {
		return nil, err
	}

	for marketID, outcomes := range best {
		market, ok := markets[marketID]
		if !ok {
			continue
		}
		mv := BestMarketView{
			Key:      market.Key,
			Name:     market.Name,
			Category: string(market.Category),
			Priority: market.Priority,
			Outcomes: make(map[string]BestPriceView, len(outcomes)),
		}
		for outcome, row := range outcomes {
			mv.Outcomes[outcome] = BestPriceView{
				Price:       row.Price,
				Bookmaker:   row.Bookmaker,
				LastUpdated: row.LastUpdated,
			}
		}
		view.Markets = append(view.Markets, mv)
	}
	// 展示顺序：优先级降序
	sort.Slice(view.Markets, func(i, j int) bool {
		if view.Markets[i].Priority != view.Markets[j].Priority {
			return view.Markets[i].Priority > view.Markets[j].Priority
		}
		return view.Markets[i].Key < view.Markets[j].Key
	})
	view.Available = true

	s.cache.Set(ctx, cacheKey, view)
	return view, nil
}

// ListMarketsByCategory 市场目录查询（category为空返回全部），优先级降序
func (s *MarketService) ListMarketsByCategory(ctx context.Context, category string) ([]MarketDescriptorView, error) {
	normalized := model.MarketCategory(strings.ToUpper(strings.TrimSpace(category)))
	markets, err := s.marketRepo.ListByCategory(ctx, normalized)
	if err != nil {
		return nil, err
	}
	views := make([]MarketDescriptorView, 0, len(markets))
	for _, m := range markets {
		views = append(views, MarketDescriptorView{
			ProviderMarketID: m.ProviderMarketID,
			Key:              m.Key,
			Name:             m.Name,
			Category:         string(m.Category),
			Priority:         m.Priority,
			Parameters:       json.RawMessage(m.Parameters),
			PossibleOutcomes: m.OutcomeTokens(),
			UsageCount:       m.UsageCount,
			LastSeenAt:       m.LastSeenAt,
		})
	}
	return views, nil
}

// GetMarketByKey 按规范化key查询单个市场描述符（未命中原样透传gorm.ErrRecordNotFound）
func (s *MarketService) GetMarketByKey(ctx context.Context, key string) (*MarketDescriptorView, error) {
	normalized := strings.ToUpper(strings.TrimSpace(key))
	m, err := s.marketRepo.GetByKey(ctx, normalized)
	if err != nil {
		return nil, err
	}
	view := MarketDescriptorView{
		ProviderMarketID: m.ProviderMarketID,
		Key:              m.Key,
		Name:             m.Name,
		Category:         string(m.Category),
		Priority:         m.Priority,
		Parameters:       json.RawMessage(m.Parameters),
		PossibleOutcomes: m.OutcomeTokens(),
		UsageCount:       m.UsageCount,
		LastSeenAt:       m.LastSeenAt,
	}
	return &view, nil
}

// PruneStaleMarkets 清理超过staleAfterDays未出现的市场（同步路径之外唯一删除入口）
func (s *MarketService) PruneStaleMarkets(ctx context.Context, staleAfterDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -staleAfterDays)
	removed, err := s.marketRepo.PruneStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("过期市场清理完成")
	}
	return removed, nil
}

// loadMarkets 批量加载价格行涉及的市场描述符
func (s *MarketService) loadMarkets(ctx context.Context, rows []*model.Odds) (map[uint64]*model.Market, error) {
	idSet := make(map[uint64]struct{})
	ids := make([]uint64, 0)
	for _, row := range rows {
		if _, ok := idSet[row.MarketID]; !ok {
			idSet[row.MarketID] = struct{}{}
			ids = append(ids, row.MarketID)
		}
	}
	markets, err := s.marketRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.Market, len(markets))
	for _, m := range markets {
		byID[m.ID] = m
	}
	return byID, nil
}
