package service

import (
	"context"
	"testing"
	"time"

	"OddsSync/internal/model"
)

func seedRow(t *testing.T, repo *fakeOddsRepo, fixtureID int64, marketID uint64, outcome, bookmaker string, price float64) {
	t.Helper()
	_, err := repo.UpsertPrice(context.Background(), &model.Odds{
		FixtureID:          fixtureID,
		MarketID:           marketID,
		Outcome:            outcome,
		Bookmaker:          bookmaker,
		Price:              price,
		ImpliedProbability: 100 / price,
		LastUpdated:        time.Now(),
	})
	if err != nil {
		t.Fatalf("seed row failed: %v", err)
	}
}

func averagePrice(t *testing.T, repo *fakeOddsRepo, fixtureID int64, marketID uint64, outcome string) float64 {
	t.Helper()
	row := repo.find(fixtureID, marketID, outcome, model.BookmakerAverage)
	if row == nil {
		t.Fatalf("average row for %s missing", outcome)
	}
	return row.Price
}

func TestConsensusArithmeticMean(t *testing.T) {
	repo := newFakeOddsRepo()
	seedRow(t, repo, 1, 7, "HOME", "A", 2.00)
	seedRow(t, repo, 1, 7, "HOME", "B", 2.20)
	seedRow(t, repo, 1, 7, "HOME", "C", 2.60)
	seedRow(t, repo, 1, 7, "DRAW", "A", 3.00)

	svc := NewConsensusService(repo, testLogger())
	if err := svc.Recompute(context.Background(), 1, []uint64{7}); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	// (2.00+2.20+2.60)/3 = 2.27（2位小数）
	if got := averagePrice(t, repo, 1, 7, "HOME"); got != 2.27 {
		t.Errorf("average HOME = %.2f, want 2.27", got)
	}
	// 单bookmaker选项：均值即其本身
	if got := averagePrice(t, repo, 1, 7, "DRAW"); got != 3.00 {
		t.Errorf("average DRAW = %.2f, want 3.00", got)
	}
}

func TestConsensusExcludesAverageRows(t *testing.T) {
	repo := newFakeOddsRepo()
	seedRow(t, repo, 1, 7, "HOME", "A", 2.00)
	// 已存在的旧Average行不得参与均值
	seedRow(t, repo, 1, 7, "HOME", model.BookmakerAverage, 9.99)

	svc := NewConsensusService(repo, testLogger())
	if err := svc.Recompute(context.Background(), 1, []uint64{7}); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if got := averagePrice(t, repo, 1, 7, "HOME"); got != 2.00 {
		t.Errorf("average HOME = %.2f, want 2.00（旧Average行不应污染均值）", got)
	}
}

func TestConsensusIdempotent(t *testing.T) {
	repo := newFakeOddsRepo()
	seedRow(t, repo, 1, 7, "HOME", "A", 2.01)
	seedRow(t, repo, 1, 7, "HOME", "B", 2.02)

	svc := NewConsensusService(repo, testLogger())
	ctx := context.Background()
	if err := svc.Recompute(ctx, 1, []uint64{7}); err != nil {
		t.Fatalf("first recompute failed: %v", err)
	}
	first := averagePrice(t, repo, 1, 7, "HOME")

	if err := svc.Recompute(ctx, 1, []uint64{7}); err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}
	second := averagePrice(t, repo, 1, 7, "HOME")

	if diff := first - second; diff > 0.01 || diff < -0.01 {
		t.Errorf("recompute not idempotent: %.2f then %.2f", first, second)
	}
	rows, _ := repo.ListByFixtureBookmaker(ctx, 1, model.BookmakerAverage)
	if len(rows) != 1 {
		t.Errorf("average rows = %d, want 1（重算应覆盖而非追加）", len(rows))
	}
}

func TestConsensusImpliedProbability(t *testing.T) {
	repo := newFakeOddsRepo()
	seedRow(t, repo, 1, 7, "HOME", "A", 2.00)

	svc := NewConsensusService(repo, testLogger())
	if err := svc.Recompute(context.Background(), 1, []uint64{7}); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	row := repo.find(1, 7, "HOME", model.BookmakerAverage)
	if row.ImpliedProbability != 50.00 {
		t.Errorf("implied probability = %.2f, want 50.00", row.ImpliedProbability)
	}
}

func TestConsensusNoRowsNoop(t *testing.T) {
	repo := newFakeOddsRepo()
	svc := NewConsensusService(repo, testLogger())
	if err := svc.Recompute(context.Background(), 1, []uint64{99}); err != nil {
		t.Fatalf("Recompute on empty market must be a no-op, got: %v", err)
	}
	rows, _ := repo.ListByFixture(context.Background(), 1)
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}
