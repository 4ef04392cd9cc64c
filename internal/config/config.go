package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Postgres PostgresConfig `mapstructure:"postgres"` // PostgreSQL配置
	Provider ProviderConfig `mapstructure:"provider"` // 上游赔率数据源配置
	Cache    CacheConfig    `mapstructure:"cache"`    // 读缓存（Redis）配置
	Registry RegistryConfig `mapstructure:"registry"` // 市场注册表维护配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PostgresConfig PostgreSQL数据库配置
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// ProviderConfig 上游赔率数据源配置（单一数据源，按fixture拉取）
type ProviderConfig struct {
	Name       string `mapstructure:"name"`        // 数据源名称（入库标识）
	BaseURL    string `mapstructure:"base_url"`    // API基础地址
	APIKey     string `mapstructure:"api_key"`     // API密钥（建议走.env）
	Timeout    int    `mapstructure:"timeout"`     // 请求超时（秒）
	RetryCount int    `mapstructure:"retry_count"` // 重试次数（预算耗尽类错误不重试）
	Proxy      string `mapstructure:"proxy"`       // 代理地址
	DailyLimit int    `mapstructure:"daily_limit"` // 24小时滚动请求预算
}

// CacheConfig 读缓存配置（短TTL，到期即失效，不做写穿透）
type CacheConfig struct {
	Addr     string        `mapstructure:"addr"`     // Redis地址
	Password string        `mapstructure:"password"` // Redis密码
	DB       int           `mapstructure:"db"`       // Redis库编号
	TTL      time.Duration `mapstructure:"ttl"`      // 条目存活时间（分钟级）
}

// RegistryConfig 市场注册表维护配置
type RegistryConfig struct {
	StaleAfterDays int `mapstructure:"stale_after_days"` // 市场多少天未出现视为过期（清理任务用）
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_PROXY"); v != "" {
		cfg.Provider.Proxy = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
}

// applyDefaults 关键参数兜底（配置缺省时给出可运行默认值）
func applyDefaults(cfg *Config) {
	if cfg.Provider.Timeout <= 0 {
		cfg.Provider.Timeout = 15
	}
	if cfg.Provider.DailyLimit <= 0 {
		cfg.Provider.DailyLimit = 100
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Registry.StaleAfterDays <= 0 {
		cfg.Registry.StaleAfterDays = 30
	}
}
