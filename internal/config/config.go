// Package config loads pipeline configuration from file, environment, and
// defaults, and initializes the global logger.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Deployment targets.
const (
	TargetLocal = "local"
	TargetCloud = "cloud"
)

// Ledger drivers.
const (
	LedgerDriverJSON   = "json"
	LedgerDriverSQLite = "sqlite"
	LedgerDriverDynamo = "dynamo"
)

// Config holds the full application configuration.
type Config struct {
	Target    string          `yaml:"target" mapstructure:"target"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Ledger    LedgerConfig    `yaml:"ledger" mapstructure:"ledger"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	WorldBank WorldBankConfig `yaml:"worldbank" mapstructure:"worldbank"`
	Wikipedia WikipediaConfig `yaml:"wikipedia" mapstructure:"wikipedia"`
	Mapping   MappingConfig   `yaml:"mapping" mapstructure:"mapping"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the data lake for both targets.
type DataConfig struct {
	Root   string `yaml:"root" mapstructure:"root"`
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// LedgerConfig selects and locates the run/checkpoint backend.
type LedgerConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
	Table  string `yaml:"table" mapstructure:"table"`
}

// HTTPConfig tunes the upstream fetch behavior.
type HTTPConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// WorldBankConfig selects the ingested indicator.
type WorldBankConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Indicator string `yaml:"indicator" mapstructure:"indicator"`
	MinYear   int    `yaml:"min_year" mapstructure:"min_year"`
}

// WikipediaConfig selects the scraped page.
type WikipediaConfig struct {
	PageURL string `yaml:"page_url" mapstructure:"page_url"`
}

// MappingConfig locates the manual country overrides.
type MappingConfig struct {
	OverridePath string `yaml:"override_path" mapstructure:"override_path"`
}

// AnalysisConfig selects the years analyzed by default.
type AnalysisConfig struct {
	Years []int `yaml:"years" mapstructure:"years"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// .env is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ECONPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("target", TargetLocal)
	v.SetDefault("data.root", "data")
	v.SetDefault("data.prefix", "")
	v.SetDefault("ledger.driver", LedgerDriverJSON)
	v.SetDefault("ledger.path", "data/metadata.json")
	v.SetDefault("ledger.table", "econpipe-metadata")
	v.SetDefault("http.user_agent", "econpipe/1.0 (data pipeline)")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 4)
	v.SetDefault("worldbank.base_url", "https://api.worldbank.org/v2")
	v.SetDefault("worldbank.indicator", "NY.GDP.PCAP.CD")
	v.SetDefault("worldbank.min_year", 2000)
	v.SetDefault("wikipedia.page_url",
		"https://en.wikipedia.org/wiki/List_of_countries_by_carbon_dioxide_emissions_per_capita")
	v.SetDefault("mapping.override_path", "")
	v.SetDefault("analysis.years", []int{2023})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Target {
	case TargetLocal, TargetCloud:
	default:
		return eris.Errorf("config: unknown target %q", c.Target)
	}
	switch c.Ledger.Driver {
	case LedgerDriverJSON, LedgerDriverSQLite, LedgerDriverDynamo:
	default:
		return eris.Errorf("config: unknown ledger driver %q", c.Ledger.Driver)
	}
	if c.Target == TargetCloud && c.Data.Bucket == "" {
		return eris.New("config: cloud target requires data.bucket")
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
