// Package config 提供 TOML 配置加载、.env 读取、环境变量覆盖与校验
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string          `mapstructure:"environment"`
	HTTP        HTTPConfig      `mapstructure:"http"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	Logger      LoggerConfig    `mapstructure:"logger"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Auth        AuthConfig      `mapstructure:"auth"`
	Cookie      CookieConfig    `mapstructure:"cookie"`
	CORS        CORSConfig      `mapstructure:"cors"`
	Bootstrap   BootstrapConfig `mapstructure:"bootstrap"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 路由前缀，例如 /api/v1
	APIPrefix string `mapstructure:"api_prefix"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// Addr 返回监听地址
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：postgres, mysql, memory
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// 启动时执行表结构迁移与种子数据
	AutoMigrate  bool `mapstructure:"auto_migrate"`
	MaxOpenConns int  `mapstructure:"max_open_conns"`
	MaxIdleConns int  `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int  `mapstructure:"conn_max_lifetime"`
	LogEnabled      bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// RedisConfig Redis 配置，Enabled 为 false 时会话保存在数据库中
type RedisConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout  int `mapstructure:"conn_timeout"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 领域事件配置
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	MaxAttempts  int `mapstructure:"max_attempts"`
	// 后台发送队列长度，满时丢弃事件
	QueueSize int `mapstructure:"queue_size"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level string `mapstructure:"level"`
	// 输出格式：json 或 text
	Format string `mapstructure:"format"`
	// 输出目标：stdout, file, both
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AuthConfig 令牌签发配置
type AuthConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	// HMAC 算法：HS256, HS384, HS512
	Algorithm                string `mapstructure:"algorithm"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
	RefreshTokenExpireDays   int    `mapstructure:"refresh_token_expire_days"`
	BcryptCost               int    `mapstructure:"bcrypt_cost"`
}

// AccessTTL 访问令牌有效期
func (c AuthConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTTL 刷新令牌有效期
func (c AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

// CookieConfig 刷新令牌与 CSRF Cookie 配置
type CookieConfig struct {
	RefreshName string `mapstructure:"refresh_name"`
	CSRFName    string `mapstructure:"csrf_name"`
	Path        string `mapstructure:"path"`
	Domain      string `mapstructure:"domain"`
	Secure      bool   `mapstructure:"secure"`
	// lax, strict, none
	SameSite string `mapstructure:"same_site"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// BootstrapConfig 初始管理员配置
type BootstrapConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// RateLimitConfig 登录限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 每个窗口允许的请求数
	Rate int `mapstructure:"rate"`
	// 突发容量
	Burst int `mapstructure:"burst"`
	// 窗口长度（秒）
	Period int `mapstructure:"period"`
}

// legacyEnv 兼容旧部署使用的环境变量名
var legacyEnv = map[string]string{
	"database.dsn":                     "DATABASE_URL",
	"auth.secret_key":                  "SECRET_KEY",
	"auth.algorithm":                   "ALGORITHM",
	"auth.access_token_expire_minutes": "ACCESS_TOKEN_EXPIRE_MINUTES",
	"auth.refresh_token_expire_days":   "REFRESH_TOKEN_EXPIRE_DAYS",
	"cookie.refresh_name":              "REFRESH_COOKIE_NAME",
	"cookie.csrf_name":                 "CSRF_COOKIE_NAME",
	"cookie.secure":                    "COOKIE_SECURE",
	"cookie.same_site":                 "COOKIE_SAMESITE",
	"bootstrap.email":                  "BOOTSTRAP_ADMIN_EMAIL",
	"bootstrap.password":               "BOOTSTRAP_ADMIN_PASSWORD",
	"bootstrap.enabled":                "BOOTSTRAP_ADMIN_ENABLED",
}

// Load 从 TOML 文件加载配置，文件不存在时仅使用默认值与环境变量
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// BACKEND_CORS_ORIGINS 为逗号分隔列表
	if origins := os.Getenv("BACKEND_CORS_ORIGINS"); origins != "" {
		cfg.CORS.AllowOrigins = splitList(origins)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "postgres", "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Auth.SecretKey == "" {
		return errors.New("auth.secret_key is required")
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported signing algorithm: %s", c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return errors.New("auth.access_token_expire_minutes must be positive")
	}
	if c.Auth.RefreshTokenExpireDays <= 0 {
		return errors.New("auth.refresh_token_expire_days must be positive")
	}
	refreshRoute := c.RefreshRoute()
	if c.Cookie.Path == "" {
		c.Cookie.Path = refreshRoute
	}
	if !cookiePathCovers(c.Cookie.Path, refreshRoute) {
		return fmt.Errorf("cookie.path %q is not sent to the refresh route %q", c.Cookie.Path, refreshRoute)
	}
	switch strings.ToLower(c.Cookie.SameSite) {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("invalid cookie.same_site: %s", c.Cookie.SameSite)
	}
	if c.Bootstrap.Enabled && (c.Bootstrap.Email == "" || c.Bootstrap.Password == "") {
		return errors.New("bootstrap admin requires email and password")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

// RefreshRoute 刷新接口的完整路径
func (c *Config) RefreshRoute() string {
	return strings.TrimRight(c.HTTP.APIPrefix, "/") + "/auth/refresh"
}

// cookiePathCovers 按 RFC 6265 路径匹配规则判断 Cookie 是否会随 route 发送
func cookiePathCovers(cookiePath, route string) bool {
	if cookiePath == route || cookiePath == "/" {
		return true
	}
	if !strings.HasPrefix(route, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || route[len(cookiePath)] == '/'
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "tradingassistant")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.api_prefix", "/api/v1")
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.write_timeout", 10)
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("kafka.queue_size", 1024)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.access_token_expire_minutes", 15)
	v.SetDefault("auth.refresh_token_expire_days", 7)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("cookie.refresh_name", "ta_refresh")
	v.SetDefault("cookie.csrf_name", "ta_csrf")
	v.SetDefault("cookie.path", "")
	v.SetDefault("cookie.secure", false)
	v.SetDefault("cookie.same_site", "lax")

	v.SetDefault("cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("bootstrap.enabled", true)
	v.SetDefault("bootstrap.email", "admin@example.com")
	v.SetDefault("bootstrap.password", "admin123")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rate", 10)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.period", 60)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
