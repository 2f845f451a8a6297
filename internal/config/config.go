package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Census     CensusConfig     `yaml:"census" mapstructure:"census"`
	Employment EmploymentConfig `yaml:"employment" mapstructure:"employment"`
	Crashes    CrashesConfig    `yaml:"crashes" mapstructure:"crashes"`
	Transit    TransitConfig    `yaml:"transit" mapstructure:"transit"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`

	// CalibrationPath points at an optional YAML file overriding the
	// equity/scoring threshold constants. Empty means built-in defaults.
	CalibrationPath string `yaml:"calibration_path" mapstructure:"calibration_path"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures the shared HTTP fetcher.
type FetchConfig struct {
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries      int    `yaml:"retries" mapstructure:"retries"`
	RetryDelayMs int    `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
}

// Timeout returns the per-attempt timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RetryDelay returns the base backoff delay as a duration.
func (c FetchConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// CensusConfig configures the Census/ACS demographic source.
type CensusConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	FCCURL  string `yaml:"fcc_url" mapstructure:"fcc_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Year    string `yaml:"year" mapstructure:"year"`
	Dataset string `yaml:"dataset" mapstructure:"dataset"`
}

// EmploymentConfig configures the LODES employment source.
type EmploymentConfig struct {
	// LiveURL is the OnTheMap-style summary endpoint. Empty disables the
	// live path and the source always produces the ACS-calibrated estimate.
	LiveURL string `yaml:"live_url" mapstructure:"live_url"`
}

// CrashesConfig configures the crash safety source.
type CrashesConfig struct {
	FARSURL string `yaml:"fars_url" mapstructure:"fars_url"`
	Years   []int  `yaml:"years" mapstructure:"years"`

	// LocalDatasetURL points at an authoritative state/local crash extract
	// (CSV, XLSX, or point shapefile) via file://, http(s)://, or ftp://.
	LocalDatasetURL string `yaml:"local_dataset_url" mapstructure:"local_dataset_url"`
}

// TransitConfig configures the Overpass transit stop source.
type TransitConfig struct {
	Endpoints []string `yaml:"endpoints" mapstructure:"endpoints"`
}

// AnthropicConfig holds the optional narrative generator settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// NotionConfig holds Notion export credentials.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	RunsDB string `yaml:"runs_db" mapstructure:"runs_db"`
}

// ServerConfig configures the analysis HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("CORRIDOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "corridor.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.user_agent", "corridor-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 12)
	v.SetDefault("fetch.retries", 1)
	v.SetDefault("fetch.retry_delay_ms", 250)
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.fcc_url", "https://geo.fcc.gov/api/census/block/find")
	v.SetDefault("census.year", "2023")
	v.SetDefault("census.dataset", "acs/acs5")
	v.SetDefault("crashes.fars_url", "https://crashviewer.nhtsa.dot.gov/CrashAPI/crashes/GetCrashesByLocation")
	v.SetDefault("crashes.years", []int{2022, 2021, 2020})
	v.SetDefault("transit.endpoints", []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
	})
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")

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
