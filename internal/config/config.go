package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SourceConfig configures one listing source adapter.
type SourceConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BaseURL  string  `yaml:"base_url" validate:"omitempty,url"`
	APIURL   string  `yaml:"api_url" validate:"omitempty,url"`
	Category int     `yaml:"category" validate:"gte=0"`
	PageSize int     `yaml:"page_size" validate:"gte=0"`
	DelayMin float64 `yaml:"delay_min" validate:"gte=0"`
	DelayMax float64 `yaml:"delay_max" validate:"gtefield=DelayMin"`
}

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format" validate:"oneof=text json"`
	} `yaml:"log"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Sources map[string]SourceConfig `yaml:"sources" validate:"dive"`
	Scrape  struct {
		Cron           string `yaml:"cron" validate:"required"`
		MaxPages       int    `yaml:"max_pages" validate:"gt=0"`
		TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gt=0"`
		MaxRetries     *int   `yaml:"max_retries" validate:"omitempty,gte=0,lte=1"`
		Concurrency    int    `yaml:"concurrency" validate:"gt=0"`
	} `yaml:"scrape"`
	Analysis struct {
		Cron                string  `yaml:"cron" validate:"required"`
		LookbackDays        int     `yaml:"lookback_days" validate:"gt=0"`
		DealThreshold       float64 `yaml:"deal_threshold" validate:"gt=0,lte=1"`
		MinLocationListings int     `yaml:"min_location_listings" validate:"gt=0"`
		TopDeals            int     `yaml:"top_deals" validate:"gte=0"`
	} `yaml:"analysis"`
	Database struct {
		Driver      string `yaml:"driver" validate:"oneof=sqlite postgres memory"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
	} `yaml:"database"`
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Stats struct {
		StateFile string `yaml:"state_file"`
	} `yaml:"stats"`
	API struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`
	Proxy string `yaml:"proxy" validate:"omitempty,url"`
}

// Load reads .env, then the YAML file, then applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_SCRAPE"); v != "" {
		cfg.Scrape.Cron = v
	}
	if v := os.Getenv("CRON_ANALYSIS"); v != "" {
		cfg.Analysis.Cron = v
	}
	if v := os.Getenv("MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scrape.MaxPages = n
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scrape.MaxRetries = &n
		}
	}
	if v := os.Getenv("DEAL_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.DealThreshold = f
		}
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("API_LISTEN"); v != "" {
		cfg.API.Listen = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{
			"chotot": {Enabled: true},
		}
	}
	if cfg.Scrape.Cron == "" {
		cfg.Scrape.Cron = "0 0 */6 * * *"
	}
	if cfg.Scrape.MaxPages == 0 {
		cfg.Scrape.MaxPages = 10
	}
	if cfg.Scrape.TimeoutSeconds == 0 {
		cfg.Scrape.TimeoutSeconds = 30
	}
	if cfg.Scrape.MaxRetries == nil {
		n := 1
		cfg.Scrape.MaxRetries = &n
	}
	if cfg.Scrape.Concurrency == 0 {
		cfg.Scrape.Concurrency = 2
	}
	if cfg.Analysis.Cron == "" {
		cfg.Analysis.Cron = "0 30 2 * * *"
	}
	if cfg.Analysis.LookbackDays == 0 {
		cfg.Analysis.LookbackDays = 30
	}
	if cfg.Analysis.DealThreshold == 0 {
		cfg.Analysis.DealThreshold = 0.8
	}
	if cfg.Analysis.MinLocationListings == 0 {
		cfg.Analysis.MinLocationListings = 5
	}
	if cfg.Analysis.TopDeals == 0 {
		cfg.Analysis.TopDeals = 5
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/estate_sentinel.db"
	}
	if cfg.Stats.StateFile == "" {
		cfg.Stats.StateFile = "data/run_stats.json"
	}
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Database.Driver == "sqlite" && c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
	}
	enabled := 0
	for _, s := range c.Sources {
		if s.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	return nil
}

// ScrapeTimeout returns the per-request fetch timeout.
func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSeconds) * time.Second
}

// Retries returns how many times a failed page fetch is retried. 0 disables retries.
func (c *Config) Retries() int {
	if c.Scrape.MaxRetries == nil {
		return 1
	}
	return *c.Scrape.MaxRetries
}

// EnabledSources returns the names of enabled sources.
func (c *Config) EnabledSources() []string {
	var names []string
	for name, s := range c.Sources {
		if s.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
