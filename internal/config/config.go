package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"StockPipeline/internal/model"

	"gopkg.in/yaml.v3"
)

// Storage drivers accepted by database.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNoop     = "noop"
)

// DefaultSymbols is the watch list used when none is configured.
var DefaultSymbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"}

// Config holds all application configuration.
type Config struct {
	Symbols      []string `yaml:"symbols"`
	AlphaVantage struct {
		BaseURL          string `yaml:"base_url"`
		APIKey           string `yaml:"api_key"`
		TimeoutSec       int    `yaml:"timeout_sec"`
		MaxAttempts      int    `yaml:"max_attempts"`
		RetryDelaySec    int    `yaml:"retry_delay_sec"`
		QuotaCooldownSec int    `yaml:"quota_cooldown_sec"`
		MaxNoticeRetries *int   `yaml:"max_notice_retries"`
	} `yaml:"alpha_vantage"`
	Pacing struct {
		IntervalSec *int `yaml:"interval_sec"`
	} `yaml:"pacing"`
	Batch struct {
		FailureThreshold float64 `yaml:"failure_threshold"`
	} `yaml:"batch"`
	Database struct {
		Driver     string `yaml:"driver"`
		Host       string `yaml:"host"`
		Port       int    `yaml:"port"`
		Name       string `yaml:"name"`
		User       string `yaml:"user"`
		Password   string `yaml:"password"`
		SSLMode    string `yaml:"sslmode"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		Cron           string `yaml:"cron"`
		SkipClosedDays bool   `yaml:"skip_closed_days"`
		Market         string `yaml:"market"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("STOCK_SYMBOLS"); v != "" {
		cfg.Symbols = splitList(v)
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_BASE_URL"); v != "" {
		cfg.AlphaVantage.BaseURL = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("POSTGRES_PORT: %w", err)
		}
		cfg.Database.Port = port
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("STATUS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if cfg.AlphaVantage.BaseURL == "" {
		cfg.AlphaVantage.BaseURL = "https://www.alphavantage.co"
	}
	if cfg.AlphaVantage.TimeoutSec == 0 {
		cfg.AlphaVantage.TimeoutSec = 30
	}
	if cfg.AlphaVantage.MaxAttempts == 0 {
		cfg.AlphaVantage.MaxAttempts = 3
	}
	if cfg.AlphaVantage.RetryDelaySec == 0 {
		cfg.AlphaVantage.RetryDelaySec = 2
	}
	if cfg.AlphaVantage.QuotaCooldownSec == 0 {
		cfg.AlphaVantage.QuotaCooldownSec = 60
	}
	if cfg.AlphaVantage.MaxNoticeRetries == nil {
		cfg.AlphaVantage.MaxNoticeRetries = intPtr(1)
	}
	if cfg.Pacing.IntervalSec == nil {
		cfg.Pacing.IntervalSec = intPtr(12)
	}
	if cfg.Batch.FailureThreshold == 0 {
		cfg.Batch.FailureThreshold = 0.5
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "postgres-data"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "stockdata"
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "stockuser"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stock_data.db"
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 0 */6 * * *"
	}
	if cfg.Schedule.Market == "" {
		cfg.Schedule.Market = "xnys"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AlphaVantage.APIKey) == "" {
		return invalid("alpha_vantage.api_key is required (ALPHA_VANTAGE_API_KEY)", nil)
	}
	if _, err := c.WatchList(); err != nil {
		return invalid("symbols", err)
	}
	if c.AlphaVantage.MaxAttempts < 1 {
		return invalid("alpha_vantage.max_attempts must be at least 1", nil)
	}
	if c.AlphaVantage.TimeoutSec < 0 || c.AlphaVantage.RetryDelaySec < 0 || c.AlphaVantage.QuotaCooldownSec < 0 {
		return invalid("alpha_vantage durations must not be negative", nil)
	}
	if c.AlphaVantage.MaxNoticeRetries != nil && *c.AlphaVantage.MaxNoticeRetries < 0 {
		return invalid("alpha_vantage.max_notice_retries must not be negative", nil)
	}
	if c.Pacing.IntervalSec != nil && *c.Pacing.IntervalSec < 0 {
		return invalid("pacing.interval_sec must not be negative", nil)
	}
	if c.Batch.FailureThreshold <= 0 || c.Batch.FailureThreshold > 1 {
		return invalid("batch.failure_threshold must be in (0, 1]", nil)
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverNoop:
	default:
		return invalid(fmt.Sprintf("database.driver %q is not one of postgres, sqlite, noop", c.Database.Driver), nil)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return invalid("telegram.bot_token and telegram.chat_id must be set together", nil)
	}
	return nil
}

// WatchList returns the configured symbols, validated and de-duplicated in
// configured order.
func (c *Config) WatchList() ([]model.Symbol, error) {
	seen := make(map[model.Symbol]bool, len(c.Symbols))
	out := make([]model.Symbol, 0, len(c.Symbols))
	for _, raw := range c.Symbols {
		sym, err := model.ParseSymbol(raw)
		if err != nil {
			return nil, err
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}
	return out, nil
}

// Timeout is the HTTP client timeout for provider calls.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.AlphaVantage.TimeoutSec) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.AlphaVantage.RetryDelaySec) * time.Second
}

func (c *Config) QuotaCooldown() time.Duration {
	return time.Duration(c.AlphaVantage.QuotaCooldownSec) * time.Second
}

func (c *Config) PaceInterval() time.Duration {
	if c.Pacing.IntervalSec == nil {
		return 0
	}
	return time.Duration(*c.Pacing.IntervalSec) * time.Second
}

// NotifierEnabled reports whether Telegram credentials are configured.
func (c *Config) NotifierEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func invalid(msg string, cause error) error {
	return &model.ConfigurationError{Message: msg, Cause: cause}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intPtr(v int) *int { return &v }
