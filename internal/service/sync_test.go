package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"OddsSync/internal/cache"
	"OddsSync/internal/model"
	"OddsSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// testLogger 静默logger（测试输出不混日志）
func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// matchWinnerPayload 两家bookmaker挂同一个1X2市场的典型载荷
func matchWinnerPayload(t *testing.T) *model.FixtureOddsPayload {
	t.Helper()
	return &model.FixtureOddsPayload{
		FixtureID: 100,
		Bookmakers: []model.RawBookmaker{
			{
				ID: 10, Name: "A",
				Bets: []model.RawMarket{{
					ID: 1, Name: "Match Winner",
					Values: []model.RawOutcome{
						{Value: "Home", Odd: "2.00"},
						{Value: "Draw", Odd: "3.00"},
						{Value: "Away", Odd: "4.00"},
					},
				}},
			},
			{
				ID: 20, Name: "B",
				Bets: []model.RawMarket{{
					ID: 1, Name: "Match Winner",
					Values: []model.RawOutcome{
						{Value: "Home", Odd: "2.20"},
						{Value: "Draw", Odd: "3.10"},
						{Value: "Away", Odd: "3.80"},
					},
				}},
			},
		},
	}
}

func newSyncFixtureEnv(payload *model.FixtureOddsPayload) (*OddsSyncService, *fakeMarketRepo, *fakeOddsRepo, *fakeProviderRepo, *fakeProvider) {
	marketRepo := newFakeMarketRepo()
	oddsRepo := newFakeOddsRepo()
	providerRepo := &fakeProviderRepo{remaining: 100}
	provider := &fakeProvider{payload: payload}
	logger := testLogger()
	consensus := NewConsensusService(oddsRepo, logger)
	svc := NewOddsSyncService(provider, providerRepo, marketRepo, oddsRepo, consensus, logger)
	return svc, marketRepo, oddsRepo, providerRepo, provider
}

func TestSyncFixtureEndToEnd(t *testing.T) {
	svc, marketRepo, oddsRepo, _, _ := newSyncFixtureEnv(matchWinnerPayload(t))

	summary, err := svc.SyncFixture(context.Background(), 100)
	if err != nil {
		t.Fatalf("SyncFixture failed: %v", err)
	}
	if summary.Created != 6 || summary.Updated != 0 || summary.Errors != 0 {
		t.Errorf("summary = created %d / updated %d / errors %d, want 6/0/0",
			summary.Created, summary.Updated, summary.Errors)
	}
	if summary.MarketsProcessed != 1 || summary.NewMarkets != 1 {
		t.Errorf("markets = %d (new %d), want 1 (new 1)", summary.MarketsProcessed, summary.NewMarkets)
	}
	if summary.RunID == "" {
		t.Error("run_id must be set")
	}

	// 市场描述符：provider id 1，MATCH_RESULT，选项集{HOME,DRAW,AWAY}
	market, err := marketRepo.GetByProviderMarketID(context.Background(), 1)
	if err != nil {
		t.Fatalf("market not registered: %v", err)
	}
	if market.Category != model.CategoryMatchResult {
		t.Errorf("category = %s, want MATCH_RESULT", market.Category)
	}
	tokens := market.OutcomeTokens()
	if len(tokens) != 3 {
		t.Fatalf("possible_outcomes = %v, want 3 tokens", tokens)
	}
	// 同一市场被两家bookmaker观察：计数器推进两次
	if market.UsageCount != 2 {
		t.Errorf("usage_count = %d, want 2", market.UsageCount)
	}

	// Average共识行：HOME=2.10 DRAW=3.05 AWAY=3.90
	avgRows, _ := oddsRepo.ListByFixtureBookmaker(context.Background(), 100, model.BookmakerAverage)
	wantAvg := map[string]float64{"HOME": 2.10, "DRAW": 3.05, "AWAY": 3.90}
	if len(avgRows) != 3 {
		t.Fatalf("average rows = %d, want 3", len(avgRows))
	}
	for _, row := range avgRows {
		want, ok := wantAvg[row.Outcome]
		if !ok {
			t.Errorf("unexpected average outcome %q", row.Outcome)
			continue
		}
		if diff := row.Price - want; diff > 0.01 || diff < -0.01 {
			t.Errorf("average %s = %.2f, want %.2f", row.Outcome, row.Price, want)
		}
	}

	// 最优价：HOME→2.20(B) DRAW→3.10(B) AWAY→4.00(A)
	marketSvc := NewMarketService(marketRepo, oddsRepo, cache.NoopCache{}, testLogger())
	best, err := marketSvc.GetBestOdds(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetBestOdds failed: %v", err)
	}
	if !best.Available || len(best.Markets) != 1 {
		t.Fatalf("best view = %+v, want 1 market available", best)
	}
	wantBest := map[string]struct {
		price float64
		bk    string
	}{
		"HOME": {2.20, "B"},
		"DRAW": {3.10, "B"},
		"AWAY": {4.00, "A"},
	}
	for outcome, want := range wantBest {
		got, ok := best.Markets[0].Outcomes[outcome]
		if !ok {
			t.Errorf("best outcome %s missing", outcome)
			continue
		}
		if got.Price != want.price || got.Bookmaker != want.bk {
			t.Errorf("best %s = %.2f(%s), want %.2f(%s)", outcome, got.Price, got.Bookmaker, want.price, want.bk)
		}
	}
}

func TestSyncFixtureIdempotent(t *testing.T) {
	svc, _, oddsRepo, _, _ := newSyncFixtureEnv(matchWinnerPayload(t))
	ctx := context.Background()

	if _, err := svc.SyncFixture(ctx, 100); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	rowsAfterFirst, _ := oddsRepo.ListByFixture(ctx, 100)

	summary, err := svc.SyncFixture(ctx, 100)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if summary.Created != 0 || summary.Updated != 6 {
		t.Errorf("second sync = created %d / updated %d, want 0/6", summary.Created, summary.Updated)
	}
	rowsAfterSecond, _ := oddsRepo.ListByFixture(ctx, 100)
	if len(rowsAfterSecond) != len(rowsAfterFirst) {
		t.Errorf("row count changed %d -> %d（复合键幂等被破坏）", len(rowsAfterFirst), len(rowsAfterSecond))
	}
}

func TestSyncFixtureBudgetExhausted(t *testing.T) {
	svc, _, _, providerRepo, provider := newSyncFixtureEnv(matchWinnerPayload(t))
	providerRepo.remaining = 0

	_, err := svc.SyncFixture(context.Background(), 100)
	if !errors.Is(err, repository.ErrBudgetExhausted) {
		t.Fatalf("err = %v, want ErrBudgetExhausted", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times despite exhausted budget", provider.calls)
	}
}

func TestSyncFixtureProviderFailure(t *testing.T) {
	svc, _, oddsRepo, _, provider := newSyncFixtureEnv(nil)
	provider.err = errors.New("upstream 503")

	_, err := svc.SyncFixture(context.Background(), 100)
	if err == nil {
		t.Fatal("want error on provider failure")
	}
	rows, _ := oddsRepo.ListByFixture(context.Background(), 100)
	if len(rows) != 0 {
		t.Errorf("rows written despite fetch failure: %d", len(rows))
	}
}

func TestSyncFixturePartialFailure(t *testing.T) {
	payload := &model.FixtureOddsPayload{
		FixtureID: 200,
		Bookmakers: []model.RawBookmaker{
			{
				ID: 10, Name: "A",
				Bets: []model.RawMarket{
					{
						ID: 1, Name: "Match Winner",
						Values: []model.RawOutcome{
							{Value: "Home", Odd: "abc"},  // 坏价格：跳过
							{Value: "Draw", Odd: "0.95"}, // 价格<=1：跳过
							{Value: "Away", Odd: "4.00"}, // 正常
						},
					},
					{ID: 0, Name: "", Values: nil}, // 坏市场：跳过
				},
			},
			{ID: 30, Name: model.BookmakerAverage}, // 保留名占用：整块跳过
		},
	}
	svc, _, oddsRepo, _, _ := newSyncFixtureEnv(payload)

	summary, err := svc.SyncFixture(context.Background(), 200)
	if err != nil {
		t.Fatalf("partial failure must not abort sync: %v", err)
	}
	if summary.Created != 1 {
		t.Errorf("created = %d, want 1（仅Away成功）", summary.Created)
	}
	if summary.Errors != 4 {
		t.Errorf("errors = %d, want 4（坏价格+低价格+坏市场+保留名）", summary.Errors)
	}

	rows, _ := oddsRepo.ListByFixtureBookmaker(context.Background(), 200, "A")
	if len(rows) != 1 || rows[0].Outcome != "AWAY" {
		t.Errorf("rows = %+v, want single AWAY row", rows)
	}
}

func TestSyncFixtureOutcomeSetNeverShrinks(t *testing.T) {
	svc, marketRepo, _, _, provider := newSyncFixtureEnv(matchWinnerPayload(t))
	ctx := context.Background()

	if _, err := svc.SyncFixture(ctx, 100); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	before, _ := marketRepo.GetByProviderMarketID(ctx, 1)
	keyBefore := before.Key

	// 第二次同步只带Home：选项集不得缩小，key不得改名
	provider.payload = &model.FixtureOddsPayload{
		FixtureID: 100,
		Bookmakers: []model.RawBookmaker{{
			ID: 10, Name: "A",
			Bets: []model.RawMarket{{
				ID: 1, Name: "Match Winner",
				Values: []model.RawOutcome{{Value: "Home", Odd: "2.05"}},
			}},
		}},
	}
	if _, err := svc.SyncFixture(ctx, 100); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	after, _ := marketRepo.GetByProviderMarketID(ctx, 1)
	if len(after.OutcomeTokens()) != 3 {
		t.Errorf("possible_outcomes shrank to %v", after.OutcomeTokens())
	}
	if after.Key != keyBefore {
		t.Errorf("key renamed %q -> %q", keyBefore, after.Key)
	}
}
