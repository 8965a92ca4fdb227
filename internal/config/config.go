package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Economy EconomyConfig
	Store   StoreConfig
	Cache   CacheConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"economycraft"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys     string `envconfig:"API_KEYS" default:""` // comma separated
}

// EconomyConfig holds the economy tunables. Read-only to the engine.
type EconomyConfig struct {
	StartingBalance     int64         `envconfig:"STARTING_BALANCE" default:"1000"`
	DailyAmount         int64         `envconfig:"DAILY_AMOUNT" default:"250"`
	DailySellLimit      int64         `envconfig:"DAILY_SELL_LIMIT" default:"0"` // 0 disables
	TaxRate             float64       `envconfig:"TAX_RATE" default:"0.05"`
	PvPBalanceLossPct   float64       `envconfig:"PVP_BALANCE_LOSS_PERCENTAGE" default:"0"`
	MaxRequestStacks    int           `envconfig:"MAX_REQUEST_STACKS" default:"36"`
	SellConfirmWindow   time.Duration `envconfig:"SELL_CONFIRM_WINDOW" default:"20s"`
	Timezone            string        `envconfig:"ECONOMY_TIMEZONE" default:"Local"`
	ServerShopEnabled   bool          `envconfig:"SERVER_SHOP_ENABLED" default:"true"`
	ItemCatalogPath     string        `envconfig:"ITEM_CATALOG_PATH" default:"./data/items.yaml"`
	TopPageSize         int           `envconfig:"BALANCE_TOP_PAGE_SIZE" default:"10"`
	EventSubscriberSize int           `envconfig:"EVENT_SUBSCRIBER_BUFFER" default:"64"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Type          string        `envconfig:"STORE_TYPE" default:"file"` // file, sqlite, postgres, mysql, mongodb
	Path          string        `envconfig:"STORE_PATH" default:"./data"`
	RetryInterval time.Duration `envconfig:"STORE_RETRY_INTERVAL" default:"30s"`
	FlushInterval time.Duration `envconfig:"STORE_FLUSH_INTERVAL" default:"5s"`
	Buffered      bool          `envconfig:"STORE_REDIS_BUFFER" default:"false"`
	// SQL settings (postgres, mysql)
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	Name     string `envconfig:"STORE_DB_NAME" default:"economycraft"`
	User     string `envconfig:"STORE_DB_USER" default:"postgres"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI      string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"economycraft"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"economycraft"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	File       string `envconfig:"LOG_FILE" default:"./logs/economy.log"`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`
}

// Validate checks the economy tunables for values the engine cannot honour.
func (e *EconomyConfig) Validate() error {
	var errs []error
	if e.StartingBalance < 0 {
		errs = append(errs, errors.New("STARTING_BALANCE must not be negative"))
	}
	if e.DailyAmount < 0 {
		errs = append(errs, errors.New("DAILY_AMOUNT must not be negative"))
	}
	if e.TaxRate < 0 || e.TaxRate > 1 {
		errs = append(errs, errors.New("TAX_RATE must be within [0,1]"))
	}
	if e.PvPBalanceLossPct < 0 || e.PvPBalanceLossPct > 1 {
		errs = append(errs, errors.New("PVP_BALANCE_LOSS_PERCENTAGE must be within [0,1]"))
	}
	if e.MaxRequestStacks <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_STACKS must be positive"))
	}
	if e.SellConfirmWindow <= 0 {
		errs = append(errs, errors.New("SELL_CONFIRM_WINDOW must be positive"))
	}
	if _, err := e.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves the timezone used for day boundaries.
func (e *EconomyConfig) Location() (*time.Location, error) {
	if e.Timezone == "" || strings.EqualFold(e.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ECONOMY_TIMEZONE: %w", err)
	}
	return loc, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Keys returns the configured API keys.
func (a *AppConfig) Keys() []string {
	var keys []string
	for _, k := range strings.Split(a.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Economy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid economy config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
