package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Session  SessionConfig  `mapstructure:"session"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`

	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
	MaxBodyBytes int64           `mapstructure:"max_body_bytes"`
}

// RateLimitConfig 按客户端 IP 的限流配置，per_second <= 0 表示不限流
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// CatalogConfig 课程数据集配置
type CatalogConfig struct {
	Source       string        `mapstructure:"source"` // 本地文件路径或 http(s) URL
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// SessionConfig 选课会话配置
type SessionConfig struct {
	Debounce    time.Duration `mapstructure:"debounce"`     // 广播防抖窗口
	PersistTemp bool          `mapstructure:"persist_temp"` // 是否持久化临时预览 CRN
	KeyPrefix   string        `mapstructure:"key_prefix"`
	Timezone    string        `mapstructure:"timezone"`     // 屏蔽时段与日历导出使用的时区
	IdleTimeout time.Duration `mapstructure:"idle_timeout"` // 进程内会话的空闲淘汰时间，0 表示不淘汰
}

// StorageConfig 会话持久化存储配置
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory | redis | postgres
}

// 存储驱动
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 连接最大生命周期（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 会话令牌配置
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	SessionTokenTTL time.Duration `mapstructure:"session_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadCatalog 只读取 catalog 段，供命令行工具使用，不要求 auth 等服务端配置
func LoadCatalog(path string) (*CatalogConfig, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	var cfg CatalogConfig
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if strings.TrimSpace(cfg.Source) == "" {
		return nil, fmt.Errorf("配置校验失败: catalog.source 不能为空")
	}
	return &cfg, nil
}

func read(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit.per_second", 20)
	v.SetDefault("server.rate_limit.burst", 40)
	v.SetDefault("server.max_body_bytes", 6<<20)

	v.SetDefault("catalog.source", "./data/data.json")
	v.SetDefault("catalog.fetch_timeout", "30s")

	v.SetDefault("session.debounce", "100ms")
	v.SetDefault("session.persist_temp", false)
	v.SetDefault("session.key_prefix", "semesterService")
	v.SetDefault("session.timezone", "Local")
	v.SetDefault("session.idle_timeout", "2h")

	v.SetDefault("storage.driver", StorageMemory)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "semester_planner")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "America/New_York")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 60)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 无默认值的键也要登记，否则 AutomaticEnv 不会在 Unmarshal 时读取对应环境变量
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_token_ttl", "720h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Location 会话时区，空串按 Local 处理
func (c *SessionConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if strings.TrimSpace(c.Catalog.Source) == "" {
		return fmt.Errorf("配置校验失败: catalog.source 不能为空")
	}
	if c.Session.Debounce < 0 {
		return fmt.Errorf("配置校验失败: session.debounce 不能为负数")
	}
	if c.Session.IdleTimeout < 0 {
		return fmt.Errorf("配置校验失败: session.idle_timeout 不能为负数")
	}
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: session.timezone 无效: %w", err)
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageRedis, StoragePostgres:
	default:
		return fmt.Errorf("配置校验失败: 未知的 storage.driver %q", c.Storage.Driver)
	}
	return nil
}
