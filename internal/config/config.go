package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all settings for the CLI and the HTTP service.
type Config struct {
	// Mirror layout
	BaseDir string `mapstructure:"MIRROR_BASE_DIR"`

	// Concurrency
	PageConcurrency  int `mapstructure:"PAGE_CONCURRENCY"`
	AssetConcurrency int `mapstructure:"ASSET_CONCURRENCY"`

	// Fetching
	FetchTimeout time.Duration `mapstructure:"FETCH_TIMEOUT"`
	DialTimeout  time.Duration `mapstructure:"DIAL_TIMEOUT"`
	MaxBodyBytes int64         `mapstructure:"MAX_BODY_BYTES"`
	FetchRPS     float64       `mapstructure:"FETCH_RPS"`
	FetchBurst   int           `mapstructure:"FETCH_BURST"`
	UserAgent    string        `mapstructure:"USER_AGENT"`

	ServerAddr string `mapstructure:"SERVER_ADDR"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"base-dir":          "MIRROR_BASE_DIR",
	"page-concurrency":  "PAGE_CONCURRENCY",
	"asset-concurrency": "ASSET_CONCURRENCY",
	"timeout":           "FETCH_TIMEOUT",
	"rps":               "FETCH_RPS",
	"user-agent":        "USER_AGENT",
	"addr":              "SERVER_ADDR",
	"log-level":         "LOG_LEVEL",
	"log-format":        "LOG_FORMAT",
}

// LoadConfig resolves configuration from, in increasing priority: defaults,
// the optional YAML file, environment variables and flags that were set.
func LoadConfig(flags *pflag.FlagSet, file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("MIRROR_BASE_DIR", "downloads")
	v.SetDefault("PAGE_CONCURRENCY", 4)
	v.SetDefault("ASSET_CONCURRENCY", 8)
	v.SetDefault("FETCH_TIMEOUT", 15*time.Second)
	v.SetDefault("DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("MAX_BODY_BYTES", 10*1024*1024)
	v.SetDefault("FETCH_RPS", 0)
	v.SetDefault("FETCH_BURST", 1)
	v.SetDefault("USER_AGENT", "pagemirror/1.0")
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}
