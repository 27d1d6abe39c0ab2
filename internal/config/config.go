package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Detector     DetectorConfig     `yaml:"detector" mapstructure:"detector"`
	GlobalPCodes GlobalPCodesConfig `yaml:"global_pcodes" mapstructure:"global_pcodes"`
	Catalog      CatalogConfig      `yaml:"catalog" mapstructure:"catalog"`
	Download     DownloadConfig     `yaml:"download" mapstructure:"download"`
	GDAL         GDALConfig         `yaml:"gdal" mapstructure:"gdal"`
	Slack        SlackConfig        `yaml:"slack" mapstructure:"slack"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Listener     ListenerConfig     `yaml:"listener" mapstructure:"listener"`
	Batch        BatchConfig        `yaml:"batch" mapstructure:"batch"`
	Monitor      MonitorConfig      `yaml:"monitor" mapstructure:"monitor"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// DetectorConfig holds the classification filters and thresholds.
type DetectorConfig struct {
	OrgExceptions    []string `yaml:"org_exceptions" mapstructure:"org_exceptions"`
	AllowedFileTypes []string `yaml:"allowed_filetypes" mapstructure:"allowed_filetypes"`
	ResourceSize     int64    `yaml:"resource_size" mapstructure:"resource_size"`
	NumberOfRows     int      `yaml:"number_of_rows" mapstructure:"number_of_rows"`
	PercentMatch     float64  `yaml:"percent_match" mapstructure:"percent_match"`
	Miscoded         bool     `yaml:"miscoded" mapstructure:"miscoded"`
	TempDir          string   `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// GlobalPCodesConfig locates the reference code list in the catalog.
type GlobalPCodesConfig struct {
	Dataset string `yaml:"dataset" mapstructure:"dataset"`
	Name    string `yaml:"name" mapstructure:"name"`
	PCode   string `yaml:"p_code" mapstructure:"p_code"`
	Admin   string `yaml:"admin" mapstructure:"admin"`
}

// CatalogConfig holds CKAN API settings.
type CatalogConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SearchQuery string  `yaml:"search_query" mapstructure:"search_query"`
	// Consecutive write-back failures before updates are suspended.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// DownloadConfig configures resource downloads.
type DownloadConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// GDALConfig locates the GDAL command-line tools used for FileGDB layers.
type GDALConfig struct {
	OGRInfoPath string `yaml:"ogrinfo_path" mapstructure:"ogrinfo_path"`
	OGR2OGRPath string `yaml:"ogr2ogr_path" mapstructure:"ogr2ogr_path"`
}

// SlackConfig configures the alert channel. An empty token logs alerts instead.
type SlackConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	Channel string `yaml:"channel" mapstructure:"channel"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// StoreConfig configures the verdict ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ListenerConfig configures event mode.
type ListenerConfig struct {
	Port      int    `yaml:"port" mapstructure:"port"`
	SpoolDir  string `yaml:"spool_dir" mapstructure:"spool_dir"`
	QueueSize int    `yaml:"queue_size" mapstructure:"queue_size"`
}

// BatchConfig configures catalog-wide runs.
type BatchConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	ReportPath    string `yaml:"report_path" mapstructure:"report_path"`
}

// MonitorConfig configures the undetermined-rate check.
type MonitorConfig struct {
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackHours        int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	MinClassified        int     `yaml:"min_classified" mapstructure:"min_classified"`
	UndeterminedRateWarn float64 `yaml:"undetermined_rate_warn" mapstructure:"undetermined_rate_warn"`
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
	v.SetEnvPrefix("PCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("detector.org_exceptions", []string{"hot"})
	v.SetDefault("detector.allowed_filetypes", []string{
		"csv", "geojson", "json", "topojson", "shp", "xls", "xlsx", "gdb", "gpkg",
	})
	v.SetDefault("detector.resource_size", int64(1<<30))
	v.SetDefault("detector.number_of_rows", 200)
	v.SetDefault("detector.percent_match", 0.9)
	v.SetDefault("detector.miscoded", false)
	v.SetDefault("detector.temp_dir", "")
	v.SetDefault("global_pcodes.dataset", "global-pcodes")
	v.SetDefault("global_pcodes.name", "global_pcodes.csv")
	v.SetDefault("global_pcodes.p_code", "P-Code")
	v.SetDefault("global_pcodes.admin", "Location")
	v.SetDefault("catalog.base_url", "https://data.humdata.org")
	v.SetDefault("catalog.api_key", "")
	v.SetDefault("catalog.user_agent", "pcode-detector")
	v.SetDefault("catalog.rate_per_sec", 10)
	v.SetDefault("catalog.timeout_secs", 60)
	v.SetDefault("catalog.search_query", `vocab_Topics:"common operational dataset - cod"`)
	v.SetDefault("catalog.breaker_threshold", 5)
	v.SetDefault("catalog.breaker_reset_secs", 120)
	v.SetDefault("download.timeout_secs", 300)
	v.SetDefault("download.max_retries", 1)
	v.SetDefault("download.rate_per_sec", 10)
	v.SetDefault("gdal.ogrinfo_path", "ogrinfo")
	v.SetDefault("gdal.ogr2ogr_path", "ogr2ogr")
	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel", "pcode-detector")
	v.SetDefault("slack.base_url", "https://slack.com/api")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pcode-verdicts.db")
	v.SetDefault("listener.port", 8080)
	v.SetDefault("listener.spool_dir", "")
	v.SetDefault("listener.queue_size", 100)
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("batch.report_path", "datasets_location_status.csv")
	v.SetDefault("monitor.check_interval_secs", 300)
	v.SetDefault("monitor.lookback_hours", 24)
	v.SetDefault("monitor.min_classified", 20)
	v.SetDefault("monitor.undetermined_rate_warn", 0.25)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode depends on. Modes are
// classify, batch, listen, pcodes and monitor.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "classify", "batch", "listen", "pcodes", "monitor":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Catalog.BaseURL == "" {
		errs = append(errs, "catalog.base_url is required")
	}
	if c.GlobalPCodes.Dataset == "" || c.GlobalPCodes.Name == "" {
		errs = append(errs, "global_pcodes.dataset and global_pcodes.name are required")
	}
	if c.GlobalPCodes.PCode == "" || c.GlobalPCodes.Admin == "" {
		errs = append(errs, "global_pcodes.p_code and global_pcodes.admin are required")
	}
	if c.Detector.PercentMatch <= 0 || c.Detector.PercentMatch > 1 {
		errs = append(errs, fmt.Sprintf("detector.percent_match must be in (0, 1], got %g", c.Detector.PercentMatch))
	}
	if c.Detector.NumberOfRows < 1 {
		errs = append(errs, "detector.number_of_rows must be >= 1")
	}
	if c.Detector.ResourceSize < 1 {
		errs = append(errs, "detector.resource_size must be >= 1")
	}
	if c.Download.MaxRetries < 1 {
		errs = append(errs, "download.max_retries must be >= 1")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for driver "+c.Store.Driver)
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres, none", c.Store.Driver))
	}

	switch mode {
	case "batch":
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 32 {
			errs = append(errs, "batch.max_concurrent must be between 1 and 32")
		}
	case "listen":
		if c.Listener.Port <= 0 && c.Listener.SpoolDir == "" {
			errs = append(errs, "listener.port must be > 0 or listener.spool_dir set")
		}
		if c.Listener.QueueSize < 1 {
			errs = append(errs, "listener.queue_size must be >= 1")
		}
	case "monitor":
		if c.Store.Driver == "none" || c.Store.Driver == "" {
			errs = append(errs, "monitor needs a store driver")
		}
		if c.Monitor.UndeterminedRateWarn <= 0 || c.Monitor.UndeterminedRateWarn > 1 {
			errs = append(errs, "monitor.undetermined_rate_warn must be in (0, 1]")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
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
