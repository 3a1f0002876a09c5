// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all process-level configuration knobs loaded via Viper.
// Domain tables (sources, keywords, score weights) live in their own
// embedded YAML files; this covers the run itself.
type Config struct {
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Output   OutputConfig   `mapstructure:"output"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DispatchConfig governs the fetcher worker pool.
type DispatchConfig struct {
	Workers          int `mapstructure:"workers"`
	SourceTimeoutSec int `mapstructure:"source_timeout_seconds"`
	BatchTimeoutSec  int `mapstructure:"batch_timeout_seconds"` // 0 = no batch deadline
}

// HTTPConfig configures fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
}

// OutputConfig sets where snapshot artifacts are written.
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	SnapshotFile string `mapstructure:"snapshot_file"`
	MatrixFile   string `mapstructure:"matrix_file"`
	QCReportFile string `mapstructure:"qc_report_file"`
}

// ServerConfig controls the snapshot HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional file plus TOPO_* environment
// overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dispatch.workers", 8)
	v.SetDefault("dispatch.source_timeout_seconds", 45)
	v.SetDefault("dispatch.batch_timeout_seconds", 0)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.rate_limit_rps", 2.0)
	v.SetDefault("output.dir", "data/processed")
	v.SetDefault("output.snapshot_file", "opportunities.json")
	v.SetDefault("output.matrix_file", "sources_matrix.csv")
	v.SetDefault("output.qc_report_file", "qc_report.json")
	v.SetDefault("server.port", 8081)
	v.SetDefault("logging.development", false)
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("dispatch.workers must be positive, got %d", c.Dispatch.Workers)
	}
	if c.Dispatch.SourceTimeoutSec <= 0 {
		return fmt.Errorf("dispatch.source_timeout_seconds must be positive, got %d", c.Dispatch.SourceTimeoutSec)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative, got %d", c.HTTP.MaxRetries)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	return nil
}
