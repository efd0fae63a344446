package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration shared by the stonklytics binaries.
type Config struct {
	Backend  Backend  `yaml:"backend"`
	Client   Client   `yaml:"client"`
	Identity Identity `yaml:"identity"`
	Server   Server   `yaml:"server"`
	Storage  Storage  `yaml:"storage"`
	Cache    Cache    `yaml:"cache"`
	Auth     Auth     `yaml:"auth"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
}

// Backend describes how the client reaches the REST backend.
type Backend struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	ChatTimeout     time.Duration `yaml:"chat_timeout"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
}

// Client tunes the interactive controllers.
type Client struct {
	SearchDebounce   time.Duration `yaml:"search_debounce"`
	SearchMinChars   int           `yaml:"search_min_chars"`
	BannerTTL        time.Duration `yaml:"banner_ttl"`
	PriceConcurrency int           `yaml:"price_concurrency"`
}

// Identity is the externally supplied identity-provider configuration plus
// an optional pre-issued session for non-interactive use.
type Identity struct {
	ProjectID string `yaml:"project_id"`
	APIKey    string `yaml:"api_key"`
	IDToken   string `yaml:"id_token"`
	UserID    string `yaml:"user_id"`
	Email     string `yaml:"email"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Storage selects the watchlist database and data paths.
type Storage struct {
	Driver       string `yaml:"driver"` // "sqlite" or "postgres"
	SQLitePath   string `yaml:"sqlite_path"`
	PostgresURL  string `yaml:"postgres_url"`
	DataDir      string `yaml:"data_dir"`
	FixturesPath string `yaml:"fixtures_path"`
}

// Cache configures market data caching. An empty RedisAddr selects the
// in-process cache.
type Cache struct {
	RedisAddr   string        `yaml:"redis_addr"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
	SummaryTTL  time.Duration `yaml:"summary_ttl"`
}

// Auth maps static bearer tokens to user IDs for the reference backend.
type Auth struct {
	Tokens map[string]string `yaml:"tokens"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills defaults, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000/api"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}
	if cfg.Backend.ChatTimeout == 0 {
		cfg.Backend.ChatTimeout = 60 * time.Second
	}

	if cfg.Client.SearchDebounce == 0 {
		cfg.Client.SearchDebounce = 450 * time.Millisecond
	}
	if cfg.Client.SearchMinChars == 0 {
		cfg.Client.SearchMinChars = 2
	}
	if cfg.Client.BannerTTL == 0 {
		cfg.Client.BannerTTL = 3 * time.Second
	}
	if cfg.Client.PriceConcurrency == 0 {
		cfg.Client.PriceConcurrency = 8
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 9090
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "stonklytics.db"
	}

	if cfg.Cache.SnapshotTTL == 0 {
		cfg.Cache.SnapshotTTL = time.Hour
	}
	if cfg.Cache.SummaryTTL == 0 {
		cfg.Cache.SummaryTTL = 30 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STONK_API_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("STONK_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.RateLimitPerMin = n
		}
	}

	if v := os.Getenv("STONK_ID_TOKEN"); v != "" {
		cfg.Identity.IDToken = v
	}
	if v := os.Getenv("STONK_USER_ID"); v != "" {
		cfg.Identity.UserID = v
	}
	if v := os.Getenv("STONK_USER_EMAIL"); v != "" {
		cfg.Identity.Email = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.PostgresURL = v
		cfg.Storage.Driver = "postgres"
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
