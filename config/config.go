package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Arbflow   ArbflowConfig   `yaml:"arbflow"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Reader    ReaderConfig    `yaml:"reader"`
	Processor ProcessorConfig `yaml:"processor"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Exchanges ExchangesConfig `yaml:"exchanges"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ArbflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ChannelsConfig struct {
	RawBuffer         int `yaml:"raw_buffer"`
	OpportunityBuffer int `yaml:"opportunity_buffer"`
}

type ReaderConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	Interval          time.Duration `yaml:"interval"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent"`
}

type ProcessorConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// ScannerConfig carries the arbitrage thresholds as decimal strings so no
// precision is lost between the YAML file and the scan arithmetic.
type ScannerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	MinProfit    string        `yaml:"min_profit"`
	MinVolume    string        `yaml:"min_volume"`
	MaxSpreadPct string        `yaml:"max_spread_pct"`
	FeeRate      string        `yaml:"fee_rate"`
}

type ExchangesConfig struct {
	Okx     ExchangeConfig `yaml:"okx"`
	Binance ExchangeConfig `yaml:"binance"`
	Bitget  ExchangeConfig `yaml:"bitget"`
	Gate    ExchangeConfig `yaml:"gate"`
	Mexc    ExchangeConfig `yaml:"mexc"`
	Htx     ExchangeConfig `yaml:"htx"`
}

type ExchangeConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type StorageConfig struct {
	Snapshot SnapshotConfig `yaml:"snapshot"`
	S3       S3Config       `yaml:"s3"`
	Parquet  ParquetConfig  `yaml:"parquet"`
}

type SnapshotConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type DashboardConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogHistory      int           `yaml:"log_history"`
	MetricsHistory  int           `yaml:"metrics_history"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Reader: ReaderConfig{
			Timeout:           10 * time.Second,
			Interval:          time.Minute,
			RequestsPerSecond: 2,
			UserAgent:         "Arbflow/1.0",
		},
		Scanner: ScannerConfig{
			Interval:     time.Minute,
			MinProfit:    "0.0005",
			MinVolume:    "10",
			MaxSpreadPct: "50",
			FeeRate:      "0.002",
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// EnabledExchanges returns the (exchange id, url) pairs for every venue
// turned on in the configuration. The ids match the adapter registry.
func (c *Config) EnabledExchanges() map[string]string {
	out := make(map[string]string)
	for id, ec := range map[string]ExchangeConfig{
		"OKX":     c.Exchanges.Okx,
		"Binance": c.Exchanges.Binance,
		"Bitget":  c.Exchanges.Bitget,
		"Gate":    c.Exchanges.Gate,
		"MEXC":    c.Exchanges.Mexc,
		"HTX":     c.Exchanges.Htx,
	} {
		if ec.Enabled {
			out[id] = ec.URL
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Arbflow.Name == "" {
		return fmt.Errorf("arbflow.name is required")
	}
	if cfg.Arbflow.Version == "" {
		return fmt.Errorf("arbflow.version is required")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}
	if cfg.Channels.OpportunityBuffer <= 0 {
		return fmt.Errorf("channels.opportunity_buffer must be greater than 0")
	}

	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}
	if cfg.Reader.Interval <= 0 {
		return fmt.Errorf("reader.interval must be greater than 0")
	}

	if cfg.Processor.MaxWorkers <= 0 {
		return fmt.Errorf("processor.max_workers must be greater than 0")
	}

	if cfg.Scanner.Interval <= 0 {
		return fmt.Errorf("scanner.interval must be greater than 0")
	}
	for name, v := range map[string]string{
		"scanner.min_profit":     cfg.Scanner.MinProfit,
		"scanner.min_volume":     cfg.Scanner.MinVolume,
		"scanner.max_spread_pct": cfg.Scanner.MaxSpreadPct,
		"scanner.fee_rate":       cfg.Scanner.FeeRate,
	} {
		if _, err := decimal.NewFromString(v); err != nil {
			return fmt.Errorf("%s is not a valid decimal: %q", name, v)
		}
	}

	for id, url := range cfg.EnabledExchanges() {
		if url == "" {
			return fmt.Errorf("exchanges: %s is enabled but has no url", strings.ToLower(id))
		}
	}

	if cfg.Storage.Snapshot.Enabled {
		if cfg.Storage.Snapshot.Path == "" {
			return fmt.Errorf("storage.snapshot.path is required when snapshot persistence is enabled")
		}
		if cfg.Storage.Snapshot.FlushInterval <= 0 {
			return fmt.Errorf("storage.snapshot.flush_interval must be greater than 0")
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Parquet.Enabled && cfg.Storage.Parquet.Dir == "" {
		return fmt.Errorf("storage.parquet.dir is required when parquet output is enabled")
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
