package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Chat      ChatConfig      `mapstructure:"chat"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTPPort       int      `mapstructure:"http_port"`
	Mode           string   `mapstructure:"mode"`
	MachineId      uint16   `mapstructure:"machine_id"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds relational datastore configuration
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, postgres or sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	SSLMode      string `mapstructure:"ssl_mode"`
	Path         string `mapstructure:"path"` // sqlite file, ":memory:" allowed
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// DSN returns the data source name for the configured driver
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	case "sqlite":
		return c.Path
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
	}
}

// RedisConfig holds Redis configuration. Redis is optional: with an empty
// host the token store, unread cache and shared rate limiter are disabled.
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Enabled reports whether a Redis server is configured
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RateLimitConfig holds per-group request budgets
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	ChatLimit     int           `mapstructure:"chat_limit"`
	ChatWindow    time.Duration `mapstructure:"chat_window"`
	GenericLimit  int           `mapstructure:"generic_limit"`
	GenericWindow time.Duration `mapstructure:"generic_window"`
}

// ChatConfig holds chat service tuning
type ChatConfig struct {
	UnreadCacheTTL time.Duration `mapstructure:"unread_cache_ttl"`
}

// Global config instance
var GlobalConfig *Config

// Load loads configuration from file. Every key can be overridden by an
// environment variable such as CAMPUSCHAT_JWT_SECRET.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("campuschat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("database.auto_migrate", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// SetDefaults fills zero values with defaults
func (cfg *Config) SetDefaults() {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Server.MachineId == 0 {
		cfg.Server.MachineId = 1
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Database.Charset == "" {
		cfg.Database.Charset = "utf8mb4"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "campuschat.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 100
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "campuschat:"
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 168 // 7 days
	}
	if cfg.RateLimit.ChatLimit == 0 {
		cfg.RateLimit.ChatLimit = 200
	}
	if cfg.RateLimit.ChatWindow == 0 {
		cfg.RateLimit.ChatWindow = time.Minute
	}
	if cfg.RateLimit.GenericLimit == 0 {
		cfg.RateLimit.GenericLimit = 100
	}
	if cfg.RateLimit.GenericWindow == 0 {
		cfg.RateLimit.GenericWindow = 15 * time.Minute
	}
	if cfg.Chat.UnreadCacheTTL == 0 {
		cfg.Chat.UnreadCacheTTL = 30 * time.Second
	}
}

// Validate rejects configurations the server cannot run with
func (cfg *Config) Validate() error {
	switch cfg.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret must be set")
	}
	return nil
}
