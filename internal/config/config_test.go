package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"hot"}, cfg.Detector.OrgExceptions)
	assert.Contains(t, cfg.Detector.AllowedFileTypes, "csv")
	assert.Contains(t, cfg.Detector.AllowedFileTypes, "gpkg")
	assert.Equal(t, int64(1<<30), cfg.Detector.ResourceSize)
	assert.Equal(t, 200, cfg.Detector.NumberOfRows)
	assert.InDelta(t, 0.9, cfg.Detector.PercentMatch, 0.001)
	assert.False(t, cfg.Detector.Miscoded)
	assert.Equal(t, "global-pcodes", cfg.GlobalPCodes.Dataset)
	assert.Equal(t, "global_pcodes.csv", cfg.GlobalPCodes.Name)
	assert.Equal(t, "P-Code", cfg.GlobalPCodes.PCode)
	assert.Equal(t, "Location", cfg.GlobalPCodes.Admin)
	assert.Equal(t, "https://data.humdata.org", cfg.Catalog.BaseURL)
	assert.Equal(t, 5, cfg.Catalog.BreakerThreshold)
	assert.Equal(t, 120, cfg.Catalog.BreakerResetSecs)
	assert.Equal(t, 1, cfg.Download.MaxRetries)
	assert.Equal(t, "ogrinfo", cfg.GDAL.OGRInfoPath)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Listener.Port)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrent)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate("batch"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
detector:
  org_exceptions: [hot, wfp]
  number_of_rows: 50
  percent_match: 0.8
store:
  driver: none
log:
  level: debug
  format: console
listener:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"hot", "wfp"}, cfg.Detector.OrgExceptions)
	assert.Equal(t, 50, cfg.Detector.NumberOfRows)
	assert.InDelta(t, 0.8, cfg.Detector.PercentMatch, 0.001)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Listener.Port)
	// Defaults still apply for unset values
	assert.Equal(t, int64(1<<30), cfg.Detector.ResourceSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PCODE_STORE_DRIVER", "postgres")
	t.Setenv("PCODE_LOG_LEVEL", "warn")
	t.Setenv("PCODE_CATALOG_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "secret", cfg.Catalog.APIKey)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("detector: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Detector.ResourceSize = 1 << 30
	cfg.Detector.NumberOfRows = 200
	cfg.Detector.PercentMatch = 0.9
	cfg.GlobalPCodes = GlobalPCodesConfig{Dataset: "global-pcodes", Name: "global_pcodes.csv", PCode: "P-Code", Admin: "Location"}
	cfg.Catalog.BaseURL = "https://data.humdata.org"
	cfg.Download.MaxRetries = 1
	cfg.Store = StoreConfig{Driver: "sqlite", DatabaseURL: "verdicts.db"}
	cfg.Listener = ListenerConfig{Port: 8080, QueueSize: 100}
	cfg.Batch.MaxConcurrent = 4
	cfg.Monitor.UndeterminedRateWarn = 0.25
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"classify", "batch", "listen", "pcodes", "monitor"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_DetectorRanges(t *testing.T) {
	cfg := validDefaults()
	cfg.Detector.PercentMatch = 1.5
	cfg.Detector.NumberOfRows = 0
	cfg.Download.MaxRetries = 0

	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector.percent_match must be in (0, 1]")
	assert.Contains(t, err.Error(), "detector.number_of_rows must be >= 1")
	assert.Contains(t, err.Error(), "download.max_retries must be >= 1")
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)

	cfg.Store.Driver = "none"
	assert.NoError(t, cfg.Validate("classify"))
	err = cfg.Validate("monitor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor needs a store driver")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrent = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent must be between 1 and 32")

	cfg.Batch.MaxConcurrent = 33
	assert.Error(t, cfg.Validate("batch"))

	// Only batch mode checks concurrency.
	assert.NoError(t, cfg.Validate("classify"))

	cfg.Batch.MaxConcurrent = 32
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateListen(t *testing.T) {
	cfg := validDefaults()
	cfg.Listener.Port = 0
	err := cfg.Validate("listen")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listener.port must be > 0")

	cfg.Listener.SpoolDir = "/var/spool/pcode"
	assert.NoError(t, cfg.Validate("listen"))
}
