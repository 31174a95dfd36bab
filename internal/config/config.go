// Package config loads logagent settings from file, environment and flags
// through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logs     StreamConfig   `mapstructure:"logs"`
	Metrics  StreamConfig   `mapstructure:"metrics"`
	Commits  CommitsConfig  `mapstructure:"commits"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Detect   DetectConfig   `mapstructure:"detect"`
	Store    StoreConfig    `mapstructure:"store"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Watch    bool           `mapstructure:"watch"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// StreamConfig describes one polled text stream.
type StreamConfig struct {
	Source   string        `mapstructure:"source"`
	Window   int           `mapstructure:"window"`
	Interval time.Duration `mapstructure:"interval"`
}

type CommitsConfig struct {
	Source   string        `mapstructure:"source"`
	Static   string        `mapstructure:"static"`
	Repo     string        `mapstructure:"repo"`
	Limit    int           `mapstructure:"limit"` // <= 0 keeps every commit
	Interval time.Duration `mapstructure:"interval"`
}

type UpstreamConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	StatusInterval  time.Duration `mapstructure:"status_interval"`
	AnalysisPolling time.Duration `mapstructure:"analysis_interval"`
}

type DetectConfig struct {
	CPUThreshold    float64  `mapstructure:"cpu_threshold"`
	MemoryThreshold float64  `mapstructure:"memory_threshold"`
	Keywords        []string `mapstructure:"keywords"`
	AutoAnalyze     bool     `mapstructure:"auto_analyze"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type AWSConfig struct {
	Region   string        `mapstructure:"region"`
	Profile  string        `mapstructure:"profile"`
	Lookback time.Duration `mapstructure:"lookback"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("logs.source", "data/filteredLogs.txt")
	v.SetDefault("logs.window", 50)
	v.SetDefault("logs.interval", 5*time.Second)

	v.SetDefault("metrics.source", "data/metrics.txt")
	v.SetDefault("metrics.window", 30)
	v.SetDefault("metrics.interval", 5*time.Second)

	v.SetDefault("commits.static", "data/commit.json")
	v.SetDefault("commits.limit", 5)
	v.SetDefault("commits.interval", time.Minute)

	v.SetDefault("upstream.url", "http://127.0.0.1:8000")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.status_interval", 5*time.Second)
	v.SetDefault("upstream.analysis_interval", 3*time.Second)

	v.SetDefault("detect.cpu_threshold", 85.0)
	v.SetDefault("detect.memory_threshold", 90.0)
	v.SetDefault("detect.keywords", []string{"error", "failed", "exception", "critical"})
	v.SetDefault("detect.auto_analyze", false)

	v.SetDefault("store.path", "logagent.db")

	v.SetDefault("aws.lookback", time.Hour)

	v.SetDefault("watch", true)
}

// Load reads the config file (explicit path, or .logagent.yaml in $HOME or
// the working directory) and environment variables prefixed LOGAGENT_.
// A missing default config file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".logagent")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LOGAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the collector cannot run with.
func (c *Config) Validate() error {
	if c.Logs.Window <= 0 {
		return fmt.Errorf("logs.window must be positive, got %d", c.Logs.Window)
	}
	if c.Metrics.Window <= 0 {
		return fmt.Errorf("metrics.window must be positive, got %d", c.Metrics.Window)
	}
	for name, d := range map[string]time.Duration{
		"logs.interval":    c.Logs.Interval,
		"metrics.interval": c.Metrics.Interval,
		"commits.interval": c.Commits.Interval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	return nil
}
