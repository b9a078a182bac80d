package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `env:", prefix=SERVER_"`
	MySQL   MySQLConfig   `env:", prefix=MYSQL_"`
	Redis   RedisConfig   `env:", prefix=REDIS_"`
	NATS    NATSConfig    `env:", prefix=NATS_"`
	Source  SourceConfig  `env:", prefix=SSI_"`
	Sync    SyncConfig    `env:", prefix=SYNC_"`
	Logging LoggingConfig `env:", prefix=LOG_"`
}

// ServerConfig holds the status API server configuration.
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
	CORSEnabled  bool          `env:"CORS_ENABLED, default=true"`
}

// MySQLConfig holds MySQL configuration.
type MySQLConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=stockdata"`
	User            string        `env:"USER, default=stockdata"`
	Password        string        `env:"PASSWORD, default=stockdata123"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=5"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=true"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	DrainTimeout  time.Duration `env:"DRAIN_TIMEOUT, default=30s"`
}

// SourceConfig holds the SSI quote API configuration.
type SourceConfig struct {
	StockInfoURL   string        `env:"STOCK_INFO_URL, default=https://iboard-api.ssi.com.vn/statistics/company/ssmi/stock-info"`
	ChartsURL      string        `env:"CHARTS_URL, default=https://iboard-api.ssi.com.vn/statistics/charts/history"`
	GroupURL       string        `env:"GROUP_URL, default=https://iboard-query.ssi.com.vn/stock/group"`
	IndexGroup     string        `env:"INDEX_GROUP, default=VN100"`
	BenchmarkIndex string        `env:"BENCHMARK_INDEX, default=VNINDEX"`
	UserAgent      string        `env:"USER_AGENT, default=Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"`
	Referer        string        `env:"REFERER, default=https://iboard.ssi.com.vn/"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=30s"`
}

// SyncConfig holds the incremental synchronization engine configuration.
type SyncConfig struct {
	Mode             string        `env:"MODE, default=production"`
	MaxWorkers       int           `env:"MAX_WORKERS, default=5"`
	MaxSymbols       int           `env:"MAX_SYMBOLS, default=0"`
	PageSize         int           `env:"PAGE_SIZE, default=100"`
	MaxPages         int           `env:"MAX_PAGES, default=1000"`
	MaxRetries       int           `env:"MAX_RETRIES, default=3"`
	RetryDelay       time.Duration `env:"RETRY_DELAY, default=1s"`
	RateLimitDelay   time.Duration `env:"RATE_LIMIT_DELAY, default=100ms"`
	CutoffHour       int           `env:"CUTOFF_HOUR, default=17"`
	UTCOffsetHours   int           `env:"UTC_OFFSET_HOURS, default=7"`
	EpochDate        string        `env:"EPOCH_DATE, default=2010-01-01"`
	Holidays         []string      `env:"HOLIDAYS"`
	UpdateInterval   time.Duration `env:"UPDATE_INTERVAL, default=6h"`
	RunTimeout       time.Duration `env:"RUN_TIMEOUT, default=2h"`
	DryRun           bool          `env:"DRY_RUN, default=false"`
	UniverseCacheTTL time.Duration `env:"UNIVERSE_CACHE_TTL, default=1h"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=text"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Sync modes.
const (
	ModeDebug      = "debug"
	ModeProduction = "production"
	ModeBackground = "background"
)

// Load loads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.MySQL.Host == "" {
		return fmt.Errorf("MySQL host is required")
	}

	switch c.Sync.Mode {
	case ModeDebug, ModeProduction, ModeBackground:
	default:
		return fmt.Errorf("invalid sync mode: %s", c.Sync.Mode)
	}

	if c.Sync.MaxWorkers < 1 {
		return fmt.Errorf("sync max workers must be >= 1, got %d", c.Sync.MaxWorkers)
	}

	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync max retries must be >= 1, got %d", c.Sync.MaxRetries)
	}

	if c.Sync.CutoffHour < 0 || c.Sync.CutoffHour > 23 {
		return fmt.Errorf("invalid cutoff hour: %d", c.Sync.CutoffHour)
	}

	if _, err := c.Sync.Epoch(); err != nil {
		return err
	}

	return nil
}

// Epoch parses the configured historical floor date.
func (s *SyncConfig) Epoch() (time.Time, error) {
	t, err := time.Parse("2006-01-02", s.EpochDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch date %q: %w", s.EpochDate, err)
	}
	return t.UTC(), nil
}

// Location returns the fixed-offset exchange timezone used for the
// market-close cutoff comparison.
func (s *SyncConfig) Location() *time.Location {
	return time.FixedZone("exchange", s.UTCOffsetHours*3600)
}

// GetMySQLDSN returns the MySQL DSN string.
func (c *Config) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Database,
	)
}

// Addr returns the host:port dial address.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetServerAddr returns the status API server address.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
