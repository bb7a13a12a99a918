package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	SAM      SAMConfig      `yaml:"sam" mapstructure:"sam"`
	Places   PlacesConfig   `yaml:"places" mapstructure:"places"`
	Quota    QuotaConfig    `yaml:"quota" mapstructure:"quota"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Harvest  HarvestConfig  `yaml:"harvest" mapstructure:"harvest"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SAMConfig holds SAM.gov Get Opportunities API settings.
type SAMConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	PageSize         int    `yaml:"page_size" mapstructure:"page_size"`
	PostedWindowDays int    `yaml:"posted_window_days" mapstructure:"posted_window_days"`
	State            string `yaml:"state" mapstructure:"state"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key           string   `yaml:"key" mapstructure:"key"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	SearchTerms   []string `yaml:"search_terms" mapstructure:"search_terms"`
	DetailsLookup bool     `yaml:"details_lookup" mapstructure:"details_lookup"`
}

// QuotaConfig holds the per-source daily budgets and pacing limits.
type QuotaConfig struct {
	CatalogDailyLimit int     `yaml:"catalog_daily_limit" mapstructure:"catalog_daily_limit"`
	PlacesDailyLimit  int     `yaml:"places_daily_limit" mapstructure:"places_daily_limit"`
	CatalogPerSecond  float64 `yaml:"catalog_per_second" mapstructure:"catalog_per_second"`
	PlacesPerSecond   float64 `yaml:"places_per_second" mapstructure:"places_per_second"`
	ResetZone         string  `yaml:"reset_zone" mapstructure:"reset_zone"`
}

// ClassifyConfig holds the tier cascade tables and per-unit caps.
type ClassifyConfig struct {
	PrimaryNAICS    string   `yaml:"primary_naics" mapstructure:"primary_naics"`
	RelatedNAICS    []string `yaml:"related_naics" mapstructure:"related_naics"`
	CoreKeywords    []string `yaml:"core_keywords" mapstructure:"core_keywords"`
	RelatedKeywords []string `yaml:"related_keywords" mapstructure:"related_keywords"`
	SectorTerms     []string `yaml:"sector_terms" mapstructure:"sector_terms"`
	Tier4Cap        int      `yaml:"tier4_cap" mapstructure:"tier4_cap"`
	Tier5Cap        int      `yaml:"tier5_cap" mapstructure:"tier5_cap"`
	Tier6Cap        int      `yaml:"tier6_cap" mapstructure:"tier6_cap"`
}

// HarvestConfig configures the orchestrator.
type HarvestConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ServerConfig configures the operator HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VCLEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "vcleads.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("sam.base_url", "https://api.sam.gov/opportunities/v2")
	v.SetDefault("sam.page_size", 100)
	v.SetDefault("sam.posted_window_days", 90)
	v.SetDefault("sam.state", "VA")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.search_terms", []string{
		"commercial property management",
		"office park",
		"shopping center",
		"airport",
	})
	v.SetDefault("places.details_lookup", true)
	v.SetDefault("quota.catalog_daily_limit", 1000)
	v.SetDefault("quota.places_daily_limit", 500)
	v.SetDefault("quota.catalog_per_second", 1.0)
	v.SetDefault("quota.places_per_second", 2.0)
	v.SetDefault("quota.reset_zone", "America/New_York")
	v.SetDefault("classify.primary_naics", "238990")
	v.SetDefault("classify.related_naics", []string{"237310", "238110", "561790"})
	v.SetDefault("classify.core_keywords", []string{
		"asphalt", "paving", "sealcoating", "parking lot", "pavement striping",
	})
	v.SetDefault("classify.related_keywords", []string{
		"property management", "facility maintenance", "commercial real estate",
		"shopping center", "office park", "airport", "airfield",
	})
	v.SetDefault("classify.sector_terms", []string{
		"contractor", "construction", "maintenance",
	})
	v.SetDefault("classify.tier4_cap", 25)
	v.SetDefault("classify.tier5_cap", 10)
	v.SetDefault("classify.tier6_cap", 5)
	v.SetDefault("harvest.workers", 2)
	v.SetDefault("harvest.max_attempts", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks credentials and bounds a run cannot start without. Called
// once at startup; a failure here is globally fatal before any plan unit is
// attempted.
func (c *Config) Validate() error {
	if c.SAM.Key == "" {
		return eris.New("config: sam.key is required")
	}
	if c.Places.Key == "" {
		return eris.New("config: places.key is required")
	}
	if c.Harvest.Workers < 1 || c.Harvest.Workers > 4 {
		return eris.Errorf("config: harvest.workers must be 1-4, got %d", c.Harvest.Workers)
	}
	if c.Quota.CatalogDailyLimit <= 0 || c.Quota.PlacesDailyLimit <= 0 {
		return eris.New("config: quota daily limits must be positive")
	}
	// A zero rate would block every reserve after the first permit.
	if c.Quota.CatalogPerSecond <= 0 || c.Quota.PlacesPerSecond <= 0 {
		return eris.New("config: quota pacing rates must be positive")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
