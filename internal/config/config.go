package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Pump     PumpConfig     `mapstructure:"pump"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// RedisConfig holds the distributed sender cache configuration. An empty
// address selects the in-process cache instead.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MailboxConfig holds mailbox provider configuration
type MailboxConfig struct {
	Provider     string `mapstructure:"provider"` // gmail or imap
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPUser     string `mapstructure:"imap_user"`
	IMAPPassword string `mapstructure:"imap_password"`
}

// LLMProviderConfig holds one classification provider endpoint
type LLMProviderConfig struct {
	Name    string        `mapstructure:"name"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds the classification layer configuration
type LLMConfig struct {
	Primary         LLMProviderConfig `mapstructure:"primary"`
	Fallback        LLMProviderConfig `mapstructure:"fallback"`
	BatchSize       int               `mapstructure:"batch_size"`
	MaxRetries      int               `mapstructure:"max_retries"`
	BreakerFailures int               `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration     `mapstructure:"breaker_cooldown"`
	CostPerItem     int64             `mapstructure:"cost_per_item_micro_usd"`
}

// CacheConfig holds sender reputation cache tuning
type CacheConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	DecayPerDay    float64       `mapstructure:"decay_per_day"`
	MaxDecay       float64       `mapstructure:"max_decay"`
	ReuseThreshold float64       `mapstructure:"reuse_threshold"`
	MemoryCapacity int           `mapstructure:"memory_capacity"`
}

// ScanConfig holds scan orchestration tuning
type ScanConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	MaxItems  int `mapstructure:"max_items"`
}

// ExecutorConfig holds action execution tuning
type ExecutorConfig struct {
	ChunkLimit int           `mapstructure:"chunk_limit"`
	UndoWindow time.Duration `mapstructure:"undo_window"`
	MaxIDs     int           `mapstructure:"max_ids"`
}

// PumpConfig holds the background scan pump configuration
type PumpConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)

	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("mailbox.provider", "gmail")
	viper.SetDefault("mailbox.imap_host", "imap.gmail.com")
	viper.SetDefault("mailbox.imap_port", 993)

	viper.SetDefault("llm.batch_size", 20)
	viper.SetDefault("llm.max_retries", 2)
	viper.SetDefault("llm.breaker_failures", 3)
	viper.SetDefault("llm.breaker_cooldown", "60s")
	viper.SetDefault("llm.cost_per_item_micro_usd", 150)
	viper.SetDefault("llm.primary.timeout", "30s")
	viper.SetDefault("llm.fallback.timeout", "30s")

	viper.SetDefault("cache.ttl", "720h")
	viper.SetDefault("cache.decay_per_day", 0.01)
	viper.SetDefault("cache.max_decay", 0.30)
	viper.SetDefault("cache.reuse_threshold", 0.80)
	viper.SetDefault("cache.memory_capacity", 10000)

	viper.SetDefault("scan.batch_size", 30)
	viper.SetDefault("scan.max_items", 1000)

	viper.SetDefault("executor.chunk_limit", 50)
	viper.SetDefault("executor.undo_window", "5m")
	viper.SetDefault("executor.max_ids", 500)

	viper.SetDefault("pump.enabled", false)
	viper.SetDefault("pump.interval_seconds", 15)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")

	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("mailbox.provider", "MAILBOX_PROVIDER")
	viper.BindEnv("mailbox.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("mailbox.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("mailbox.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("mailbox.user_email", "GMAIL_USER_EMAIL")
	viper.BindEnv("mailbox.imap_host", "IMAP_HOST")
	viper.BindEnv("mailbox.imap_port", "IMAP_PORT")
	viper.BindEnv("mailbox.imap_user", "IMAP_USER")
	viper.BindEnv("mailbox.imap_password", "IMAP_PASSWORD")

	viper.BindEnv("llm.primary.base_url", "LLM_PRIMARY_BASE_URL")
	viper.BindEnv("llm.primary.api_key", "LLM_PRIMARY_API_KEY")
	viper.BindEnv("llm.primary.model", "LLM_PRIMARY_MODEL")
	viper.BindEnv("llm.fallback.base_url", "LLM_FALLBACK_BASE_URL")
	viper.BindEnv("llm.fallback.api_key", "LLM_FALLBACK_API_KEY")
	viper.BindEnv("llm.fallback.model", "LLM_FALLBACK_MODEL")

	viper.BindEnv("pump.enabled", "PUMP_ENABLED")
	viper.BindEnv("pump.interval_seconds", "PUMP_INTERVAL_SECONDS")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	switch c.Mailbox.Provider {
	case "gmail":
		if c.Mailbox.ClientID == "" || c.Mailbox.ClientSecret == "" || c.Mailbox.RefreshToken == "" {
			return fmt.Errorf("gmail OAuth2 credentials are required for the gmail provider")
		}
	case "imap":
		if c.Mailbox.IMAPUser == "" || c.Mailbox.IMAPPassword == "" {
			return fmt.Errorf("IMAP credentials are required for the imap provider")
		}
	default:
		return fmt.Errorf("unknown mailbox provider: %s", c.Mailbox.Provider)
	}

	if c.LLM.Primary.BaseURL == "" {
		return fmt.Errorf("llm primary base_url is required")
	}

	if c.Scan.BatchSize <= 0 || c.Scan.MaxItems <= 0 {
		return fmt.Errorf("scan batch_size and max_items must be greater than 0")
	}

	if c.Executor.ChunkLimit <= 0 {
		return fmt.Errorf("executor chunk_limit must be greater than 0")
	}

	if c.Cache.ReuseThreshold < 0 || c.Cache.ReuseThreshold > 1 {
		return fmt.Errorf("cache reuse_threshold must be within [0,1]")
	}

	if c.Pump.Enabled && c.Pump.IntervalSeconds <= 0 {
		return fmt.Errorf("pump interval must be greater than 0")
	}

	return nil
}
