package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Club       ClubConfig       `mapstructure:"club"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

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
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 分钟
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（可选，连接失败时降级运行）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// Token 由门户认证服务签发，这里只负责校验
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// TelegramConfig Telegram 消息网关配置
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	Debug       bool          `mapstructure:"debug"`
}

// ClubConfig 俱乐部业务配置
type ClubConfig struct {
	Timezone      string `mapstructure:"timezone"`        // 训练日期/时间所在时区
	PublicBaseURL string `mapstructure:"public_base_url"` // 消息中按钮跳转的门户地址
}

// Location 解析俱乐部时区
func (c *ClubConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DispatcherConfig 通知调度配置
type DispatcherConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	CronSpec       string            `mapstructure:"cron_spec"`
	LockTTL        time.Duration     `mapstructure:"lock_ttl"`
	RenewalLeadDay int               `mapstructure:"renewal_lead_days"`
	MealTimes      map[string]string `mapstructure:"meal_times"` // breakfast/lunch/dinner → "HH:MM"
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > .env > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "fitclub")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Almaty")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 无默认值的键也需登记，否则 AutomaticEnv 的值不会进入 Unmarshal
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.send_timeout", "10s")
	v.SetDefault("telegram.debug", false)

	v.SetDefault("club.timezone", "Asia/Almaty")
	v.SetDefault("club.public_base_url", "http://localhost:5173")

	v.SetDefault("dispatcher.enabled", true)
	v.SetDefault("dispatcher.cron_spec", "0 * * * * *")
	v.SetDefault("dispatcher.lock_ttl", "2m")
	v.SetDefault("dispatcher.renewal_lead_days", 5)
	v.SetDefault("dispatcher.meal_times", map[string]string{
		"breakfast": "09:00",
		"lunch":     "12:00",
		"dinner":    "18:00",
	})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
	v.SetEnvPrefix("FITCLUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
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
	if _, err := c.Club.Location(); err != nil {
		return fmt.Errorf("配置校验失败: club.timezone 无效: %w", err)
	}
	if _, err := cron.Parse(c.Dispatcher.CronSpec); err != nil {
		return fmt.Errorf("配置校验失败: dispatcher.cron_spec 无效: %w", err)
	}
	for meal, hhmm := range c.Dispatcher.MealTimes {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return fmt.Errorf("配置校验失败: dispatcher.meal_times.%s 格式应为 HH:MM", meal)
		}
	}
	if c.Dispatcher.RenewalLeadDay <= 0 {
		return fmt.Errorf("配置校验失败: dispatcher.renewal_lead_days 必须为正数")
	}
	return nil
}
