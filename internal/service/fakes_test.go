package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"OddsSync/internal/classify"
	"OddsSync/internal/model"
	"OddsSync/internal/repository"

	"gorm.io/gorm"
)

// 内存版仓储/适配器实现，供服务层测试使用（无真实Postgres/Redis依赖）

type fakeMarketRepo struct {
	byProviderID map[int64]*model.Market
	nextID       uint64
}

func newFakeMarketRepo() *fakeMarketRepo {
	return &fakeMarketRepo{byProviderID: make(map[int64]*model.Market)}
}

func (r *fakeMarketRepo) Upsert(ctx context.Context, providerMarketID int64, name string, c classify.Classification) (*model.Market, bool, error) {
	observed := make([]string, 0, len(c.Outcomes))
	for _, o := range c.Outcomes {
		observed = append(observed, o.Normalized)
	}
	now := time.Now()

	if existing, ok := r.byProviderID[providerMarketID]; ok {
		merged, _ := model.UnionOutcomeTokens(existing.OutcomeTokens(), observed)
		existing.UsageCount++
		existing.LastSeenAt = now
		existing.PossibleOutcomes = model.EncodeOutcomeTokens(merged)
		return existing, false, nil
	}

	r.nextID++
	params, _ := json.Marshal(c.Parameters)
	market := &model.Market{
		ID:               r.nextID,
		ProviderMarketID: providerMarketID,
		Key:              c.Key,
		Name:             name,
		Category:         c.Category,
		Parameters:       params,
		PossibleOutcomes: model.EncodeOutcomeTokens(observed),
		Priority:         c.Priority,
		UsageCount:       1,
		LastSeenAt:       now,
	}
	r.byProviderID[providerMarketID] = market
	return market, true, nil
}

func (r *fakeMarketRepo) GetByProviderMarketID(ctx context.Context, providerMarketID int64) (*model.Market, error) {
	if m, ok := r.byProviderID[providerMarketID]; ok {
		return m, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMarketRepo) GetByKey(ctx context.Context, key string) (*model.Market, error) {
	for _, m := range r.byProviderID {
		if m.Key == key {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMarketRepo) ListByCategory(ctx context.Context, category model.MarketCategory) ([]*model.Market, error) {
	var markets []*model.Market
	for _, m := range r.byProviderID {
		if category == "" || m.Category == category {
			markets = append(markets, m)
		}
	}
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].Priority != markets[j].Priority {
			return markets[i].Priority > markets[j].Priority
		}
		return markets[i].ID < markets[j].ID
	})
	return markets, nil
}

func (r *fakeMarketRepo) GetByIDs(ctx context.Context, ids []uint64) ([]*model.Market, error) {
	want := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var markets []*model.Market
	for _, m := range r.byProviderID {
		if _, ok := want[m.ID]; ok {
			markets = append(markets, m)
		}
	}
	return markets, nil
}

func (r *fakeMarketRepo) PruneStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for pid, m := range r.byProviderID {
		if m.LastSeenAt.Before(cutoff) {
			delete(r.byProviderID, pid)
			removed++
		}
	}
	return removed, nil
}

type fakeOddsRepo struct {
	rows   []*model.Odds
	nextID uint64
}

func newFakeOddsRepo() *fakeOddsRepo {
	return &fakeOddsRepo{}
}

func (r *fakeOddsRepo) find(fixtureID int64, marketID uint64, outcome, bookmaker string) *model.Odds {
	for _, row := range r.rows {
		if row.FixtureID == fixtureID && row.MarketID == marketID && row.Outcome == outcome && row.Bookmaker == bookmaker {
			return row
		}
	}
	return nil
}

func (r *fakeOddsRepo) UpsertPrice(ctx context.Context, row *model.Odds) (bool, error) {
	if existing := r.find(row.FixtureID, row.MarketID, row.Outcome, row.Bookmaker); existing != nil {
		existing.Price = row.Price
		existing.ImpliedProbability = row.ImpliedProbability
		existing.Value = row.Value
		existing.LastUpdated = row.LastUpdated
		return false, nil
	}
	r.nextID++
	clone := *row
	clone.ID = r.nextID
	r.rows = append(r.rows, &clone)
	return true, nil
}

func (r *fakeOddsRepo) ListByFixture(ctx context.Context, fixtureID int64) ([]*model.Odds, error) {
	var out []*model.Odds
	for _, row := range r.rows {
		if row.FixtureID == fixtureID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeOddsRepo) ListRealByFixtureMarket(ctx context.Context, fixtureID int64, marketID uint64) ([]*model.Odds, error) {
	var out []*model.Odds
	for _, row := range r.rows {
		if row.FixtureID == fixtureID && row.MarketID == marketID && row.Bookmaker != model.BookmakerAverage {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeOddsRepo) ListByFixtureBookmaker(ctx context.Context, fixtureID int64, bookmaker string) ([]*model.Odds, error) {
	var out []*model.Odds
	for _, row := range r.rows {
		if row.FixtureID == fixtureID && row.Bookmaker == bookmaker {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeOddsRepo) UpsertConsensus(ctx context.Context, rows []*model.Odds) error {
	for _, row := range rows {
		if _, err := r.UpsertPrice(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

type fakeProviderRepo struct {
	remaining int
	consumed  int
}

func (r *fakeProviderRepo) EnsureProvider(ctx context.Context, name string, dailyLimit int) error {
	return nil
}

func (r *fakeProviderRepo) ConsumeBudget(ctx context.Context, name string) error {
	if r.remaining <= 0 {
		return repository.ErrBudgetExhausted
	}
	r.remaining--
	r.consumed++
	return nil
}

type fakeProvider struct {
	payload *model.FixtureOddsPayload
	err     error
	calls   int
}

func (p *fakeProvider) GetName() string { return "fake" }

func (p *fakeProvider) FetchFixtureOdds(ctx context.Context, fixtureID int64) (*model.FixtureOddsPayload, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.payload, nil
}

// fakeCache 记录读写的内存缓存（TTL不模拟，测试只关心命中/写回路径）
type fakeCache struct {
	entries map[string][]byte
	sets    int
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := c.entries[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false
	}
	c.hits++
	return true
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.entries[key] = raw
	c.sets++
}
