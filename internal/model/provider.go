package model

import (
	"time"
)

// ProviderState 上游数据源请求预算状态（单行每provider）
// 预算按24小时滚动窗口计数：window_reset_at到期后归零重计
type ProviderState struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Name          string    `gorm:"column:name;type:varchar(32);uniqueIndex;not null;comment:provider名称"`
	DailyLimit    int       `gorm:"column:daily_limit;type:int;default:100;comment:24小时请求预算"`
	UsedToday     int       `gorm:"column:used_today;type:int;default:0;comment:窗口内已用次数"`
	WindowResetAt time.Time `gorm:"column:window_reset_at;type:timestamp;not null;comment:当前窗口重置时间"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (ProviderState) TableName() string { return "provider_states" }
