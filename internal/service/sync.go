package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"OddsSync/internal/classify"
	"OddsSync/internal/interfaces"
	"OddsSync/internal/model"
	"OddsSync/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SyncSummary 单次同步的结构化结果。计数器按次隔离（无进程级可变状态），
// 部分失败是常态：errors>0不代表整次同步失败
type SyncSummary struct {
	RunID            string `json:"run_id"`            // 本次同步运行ID（日志关联用）
	FixtureID        int64  `json:"fixture_id"`        // 目标fixture
	Created          int    `json:"created"`           // 新建价格行数
	Updated          int    `json:"updated"`           // 覆盖价格行数
	Errors           int    `json:"errors"`            // 条目级失败数（坏价格/坏市场等）
	MarketsProcessed int    `json:"markets_processed"` // 本次触达的市场数（去重）
	NewMarkets       int    `json:"new_markets"`       // 首次观察到的市场数
}

// OddsSyncService 赔率同步管道：bookmaker -> market -> outcome逐层展开，
// 分类/规范化/注册后逐行upsert价格，最后对触达的市场重算Average共识
type OddsSyncService struct {
	provider     interfaces.OddsProvider
	providerRepo repository.ProviderRepository
	marketRepo   repository.MarketRepository
	oddsRepo     repository.OddsRepository
	consensus    *ConsensusService
	logger       *logrus.Logger
}

// NewOddsSyncService 创建赔率同步服务
func NewOddsSyncService(
	provider interfaces.OddsProvider,
	providerRepo repository.ProviderRepository,
	marketRepo repository.MarketRepository,
	oddsRepo repository.OddsRepository,
	consensus *ConsensusService,
	logger *logrus.Logger,
) *OddsSyncService {
	return &OddsSyncService{
		provider:     provider,
		providerRepo: providerRepo,
		marketRepo:   marketRepo,
		oddsRepo:     oddsRepo,
		consensus:    consensus,
		logger:       logger,
	}
}

// SyncFixture 同步单fixture赔率。上游不可用/预算耗尽整体报错（已入库的行不回滚）；
// 条目级失败只计数不中断兄弟条目
func (s *OddsSyncService) SyncFixture(ctx context.Context, fixtureID int64) (*SyncSummary, error) {
	summary := &SyncSummary{
		RunID:     uuid.NewString(),
		FixtureID: fixtureID,
	}

	// 1. 请求预算检查：耗尽fail fast，不内部重试
	if err := s.providerRepo.ConsumeBudget(ctx, s.provider.GetName()); err != nil {
		return nil, fmt.Errorf("请求预算检查失败: %w", err)
	}

	// 2. 拉取原始赔率
	payload, err := s.provider.FetchFixtureOdds(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("拉取fixture %d赔率失败: %w", fixtureID, err)
	}

	// 3. 逐bookmaker -> 市场 -> 选项处理
	// 分类结果按provider市场id缓存（同一市场多bookmaker重复出现时只分类一次）
	classifications := make(map[int64]classify.Classification)
	touched := make(map[uint64]struct{})

	for _, bm := range payload.Bookmakers {
		if bm.Name == "" || bm.Name == model.BookmakerAverage {
			// Average是合成共识保留名，真实bookmaker不允许占用
			s.logger.WithField("bookmaker", bm.Name).Warn("非法bookmaker名，整块跳过")
			summary.Errors++
			continue
		}
		for _, bet := range bm.Bets {
			if bet.ID == 0 || bet.Name == "" {
				summary.Errors++
				continue
			}

			cls, ok := classifications[bet.ID]
			if !ok {
				labels := make([]string, 0, len(bet.Values))
				for _, v := range bet.Values {
					labels = append(labels, v.Value)
				}
				cls = classify.Classify(bet.ID, bet.Name, labels)
				classifications[bet.ID] = cls
			}

			market, created, err := s.marketRepo.Upsert(ctx, bet.ID, bet.Name, cls)
			if err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"run_id":             summary.RunID,
					"provider_market_id": bet.ID,
				}).Warn("市场注册失败，跳过该市场")
				summary.Errors++
				continue
			}
			if _, seen := touched[market.ID]; !seen {
				touched[market.ID] = struct{}{}
				summary.MarketsProcessed++
			}
			if created {
				summary.NewMarkets++
			}

			for _, val := range bet.Values {
				if err := s.upsertPriceRow(ctx, fixtureID, market.ID, bm.Name, val, summary); err != nil {
					s.logger.WithError(err).WithFields(logrus.Fields{
						"run_id":    summary.RunID,
						"bookmaker": bm.Name,
						"market_id": market.ID,
						"label":     val.Value,
					}).Warn("价格行写入失败，跳过该选项")
					summary.Errors++
				}
			}
		}
	}

	// 4. 对本次触达的市场重算Average共识（失败计入errors，不影响已写入的价格行）
	marketIDs := make([]uint64, 0, len(touched))
	for id := range touched {
		marketIDs = append(marketIDs, id)
	}
	sort.Slice(marketIDs, func(i, j int) bool { return marketIDs[i] < marketIDs[j] })
	if err := s.consensus.Recompute(ctx, fixtureID, marketIDs); err != nil {
		s.logger.WithError(err).WithField("run_id", summary.RunID).Warn("共识重算失败")
		summary.Errors++
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":     summary.RunID,
		"fixture_id": fixtureID,
	}).Infof("同步完成：新建%d 覆盖%d 失败%d 市场%d（新%d）",
		summary.Created, summary.Updated, summary.Errors, summary.MarketsProcessed, summary.NewMarkets)
	return summary, nil
}

// upsertPriceRow 单条价格行处理：解析价格、规范化选项、计算隐含概率、幂等写入
func (s *OddsSyncService) upsertPriceRow(ctx context.Context, fixtureID int64, marketID uint64, bookmaker string, raw model.RawOutcome, summary *SyncSummary) error {
	price, implied, err := parsePrice(raw.Odd)
	if err != nil {
		return err
	}
	outcome := classify.Normalize(raw.Value)

	row := &model.Odds{
		FixtureID:          fixtureID,
		MarketID:           marketID,
		Outcome:            outcome,
		Bookmaker:          bookmaker,
		Value:              classify.ExtractNumericValue(raw.Value),
		Price:              price,
		ImpliedProbability: implied,
		LastUpdated:        time.Now(),
	}
	created, err := s.oddsRepo.UpsertPrice(ctx, row)
	if err != nil {
		return err
	}
	if created {
		summary.Created++
	} else {
		summary.Updated++
	}
	return nil
}

// parsePrice 欧赔字符串 -> (price, 隐含概率)。price必须>1.0，隐含概率=100/price（保留2位）
func parsePrice(odd string) (float64, float64, error) {
	d, err := decimal.NewFromString(odd)
	if err != nil {
		return 0, 0, fmt.Errorf("价格解析失败 %q: %w", odd, err)
	}
	if d.LessThanOrEqual(decimal.NewFromInt(1)) {
		return 0, 0, fmt.Errorf("非法价格 %q（须大于1.0）", odd)
	}
	price, _ := d.Round(2).Float64()
	implied, _ := decimal.NewFromInt(100).Div(d).Round(2).Float64()
	return price, implied, nil
}
