package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OddsSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrBudgetExhausted 24小时滚动请求预算耗尽（同步应fail fast，不重试）
var ErrBudgetExhausted = errors.New("provider请求预算已耗尽")

// ProviderRepository 上游数据源状态仓储（请求预算计数）
type ProviderRepository interface {
	// EnsureProvider 确保provider状态行存在（幂等，服务启动时调用）
	EnsureProvider(ctx context.Context, name string, dailyLimit int) error
	// ConsumeBudget 消费一次请求预算：窗口到期先归零重开，再原子+1；
	// 预算耗尽返回ErrBudgetExhausted
	ConsumeBudget(ctx context.Context, name string) error
}

type providerRepository struct {
	db *gorm.DB
}

// NewProviderRepository 创建 ProviderRepository 实例
func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) EnsureProvider(ctx context.Context, name string, dailyLimit int) error {
	state := &model.ProviderState{
		Name:          name,
		DailyLimit:    dailyLimit,
		WindowResetAt: time.Now().Add(24 * time.Hour),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_limit", "updated_at"}),
	}).Create(state).Error
}

func (r *providerRepository) ConsumeBudget(ctx context.Context, name string) error {
	now := time.Now()

	// 1. 窗口到期：归零并滚动到下一个24小时窗口（条件更新，天然幂等）
	if err := r.db.WithContext(ctx).Model(&model.ProviderState{}).
		Where("name = ? AND window_reset_at <= ?", name, now).
		Updates(map[string]interface{}{
			"used_today":      0,
			"window_reset_at": now.Add(24 * time.Hour),
			"updated_at":      now,
		}).Error; err != nil {
		return fmt.Errorf("重置预算窗口失败: %w", err)
	}

	// 2. 原子消费：单条UPDATE自带读改写保护，并发同步不会超发
	res := r.db.WithContext(ctx).Model(&model.ProviderState{}).
		Where("name = ? AND used_today < daily_limit", name).
		Updates(map[string]interface{}{
			"used_today": gorm.Expr("used_today + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("消费请求预算失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBudgetExhausted
	}
	return nil
}
