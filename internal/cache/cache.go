package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"OddsSync/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// OddsCache 查询结果读缓存。短TTL到期即失效，不做写穿透：
// 同步后立刻读到的可能是旧数据，这是已接受的时延/一致性权衡。
// 缓存不可用一律降级为未命中，绝不让读请求失败
type OddsCache interface {
	// Get 按key取缓存并反序列化到dest，返回是否命中
	Get(ctx context.Context, key string, dest interface{}) bool
	// Set 序列化写入缓存（fire-and-forget，失败只记日志）
	Set(ctx context.Context, key string, value interface{})
}

// FixtureOddsKey 分bookmaker的赔率视图缓存key
func FixtureOddsKey(fixtureID int64, bookmaker string) string {
	return fmt.Sprintf("odds:fixture:%d:bk:%s", fixtureID, bookmaker)
}

// BestOddsKey 最优价视图缓存key
func BestOddsKey(fixtureID int64) string {
	return fmt.Sprintf("odds:fixture:%d:best", fixtureID)
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisCache 创建Redis读缓存
func NewRedisCache(cfg *config.CacheConfig, logger *logrus.Logger) OddsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Warn("缓存读取失败，降级为未命中")
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("缓存内容解析失败，降级为未命中")
		return false
	}
	return true
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("缓存序列化失败，跳过写入")
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("缓存写入失败，忽略")
	}
}

// NoopCache 空实现：未配置Redis时使用，读恒未命中、写为空操作
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string, dest interface{}) bool { return false }
func (NoopCache) Set(ctx context.Context, key string, value interface{})     {}
