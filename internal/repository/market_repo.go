package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"OddsSync/internal/classify"
	"OddsSync/internal/model"

	"gorm.io/gorm"
)

// MarketRepository 规范化市场注册表仓储
type MarketRepository interface {
	// Upsert 按provider_market_id幂等注册市场：
	// 不存在则用分类结果创建；存在则usage_count+1、last_seen_at刷新、选项集合并集（只增不减），
	// key与category保持首次创建值不变。返回(market, 是否新建)
	Upsert(ctx context.Context, providerMarketID int64, name string, c classify.Classification) (*model.Market, bool, error)
	// GetByProviderMarketID 按provider市场ID查询
	GetByProviderMarketID(ctx context.Context, providerMarketID int64) (*model.Market, error)
	// GetByKey 按规范化key查询（未命中返回gorm.ErrRecordNotFound）
	GetByKey(ctx context.Context, key string) (*model.Market, error)
	// ListByCategory 按分类列出市场描述符（category为空返回全部），优先级降序
	ListByCategory(ctx context.Context, category model.MarketCategory) ([]*model.Market, error)
	// GetByIDs 批量按主键查询
	GetByIDs(ctx context.Context, ids []uint64) ([]*model.Market, error)
	// PruneStale 删除last_seen_at早于cutoff的市场（同步路径之外唯一的删除入口），返回删除数
	PruneStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type marketRepository struct {
	db *gorm.DB
}

// NewMarketRepository 创建 MarketRepository 实例
func NewMarketRepository(db *gorm.DB) MarketRepository {
	return &marketRepository{db: db}
}

func (r *marketRepository) Upsert(ctx context.Context, providerMarketID int64, name string, c classify.Classification) (*model.Market, bool, error) {
	var existing model.Market
	err := r.db.WithContext(ctx).
		Where("provider_market_id = ?", providerMarketID).
		First(&existing).Error

	observed := make([]string, 0, len(c.Outcomes))
	for _, o := range c.Outcomes {
		observed = append(observed, o.Normalized)
	}
	now := time.Now()

	if errors.Is(err, gorm.ErrRecordNotFound) {
		market, err := r.create(ctx, providerMarketID, name, c, observed, now)
		if err != nil {
			return nil, false, err
		}
		return market, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("查询市场失败: %w", err)
	}

	// 已存在：计数器与时间戳推进，选项集合并集；key/category不回写（避免下游引用失效）
	merged, _ := model.UnionOutcomeTokens(existing.OutcomeTokens(), observed)
	updates := map[string]interface{}{
		"usage_count":       gorm.Expr("usage_count + 1"),
		"last_seen_at":      now,
		"possible_outcomes": model.EncodeOutcomeTokens(merged),
		"updated_at":        now,
	}
	if err := r.db.WithContext(ctx).Model(&model.Market{}).
		Where("provider_market_id = ?", providerMarketID).
		Updates(updates).Error; err != nil {
		return nil, false, fmt.Errorf("更新市场失败: %w", err)
	}

	existing.UsageCount++
	existing.LastSeenAt = now
	existing.PossibleOutcomes = model.EncodeOutcomeTokens(merged)
	return &existing, false, nil
}

// create 首次观察到该provider市场时入库。不同provider id生成同名key时
// 撞唯一索引，追加provider id后缀重试一次（已接受的权衡，身份始终以provider id为准）
func (r *marketRepository) create(ctx context.Context, providerMarketID int64, name string, c classify.Classification, observed []string, now time.Time) (*model.Market, error) {
	params, err := json.Marshal(c.Parameters)
	if err != nil {
		params = []byte("{}")
	}
	market := &model.Market{
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
	if err := r.db.WithContext(ctx).Create(market).Error; err != nil {
		if strings.Contains(err.Error(), "idx_markets_key") || strings.Contains(err.Error(), "markets_key") {
			market.ID = 0
			market.Key = fmt.Sprintf("%s_%d", c.Key, providerMarketID)
			if err := r.db.WithContext(ctx).Create(market).Error; err != nil {
				return nil, fmt.Errorf("创建市场失败（key冲突重试后）: %w", err)
			}
			return market, nil
		}
		return nil, fmt.Errorf("创建市场失败: %w", err)
	}
	return market, nil
}

func (r *marketRepository) GetByProviderMarketID(ctx context.Context, providerMarketID int64) (*model.Market, error) {
	var market model.Market
	if err := r.db.WithContext(ctx).
		Where("provider_market_id = ?", providerMarketID).
		First(&market).Error; err != nil {
		return nil, err
	}
	return &market, nil
}

func (r *marketRepository) GetByKey(ctx context.Context, key string) (*model.Market, error) {
	var market model.Market
	if err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&market).Error; err != nil {
		return nil, err
	}
	return &market, nil
}

func (r *marketRepository) ListByCategory(ctx context.Context, category model.MarketCategory) ([]*model.Market, error) {
	db := r.db.WithContext(ctx).Model(&model.Market{})
	if category != "" {
		db = db.Where("category = ?", category)
	}
	var markets []*model.Market
	if err := db.Order("priority DESC, id ASC").Find(&markets).Error; err != nil {
		return nil, err
	}
	return markets, nil
}

func (r *marketRepository) GetByIDs(ctx context.Context, ids []uint64) ([]*model.Market, error) {
	if len(ids) == 0 {
		return []*model.Market{}, nil
	}
	var markets []*model.Market
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&markets).Error; err != nil {
		return nil, err
	}
	return markets, nil
}

func (r *marketRepository) PruneStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("last_seen_at < ?", cutoff).
		Delete(&model.Market{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
