// Package config loads the YAML configuration file that drives
// cmd/signalhub, mirroring the original implementation's config.rs
// sections (log, port, tls, ratelimit, stats, security) via viper instead
// of serde_yaml.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Log mirrors the original's Log section.
type Log struct {
	Writers        string `mapstructure:"writers"`
	Level          string `mapstructure:"logger_level"`
	Dir            string `mapstructure:"logger_dir"`
	RotateDateDays int    `mapstructure:"log_rotate_date"`
	RotateSizeMB   int    `mapstructure:"log_rotate_size"`
}

// TLSCert is one listen port plus the cert/key pair serving it.
type TLSCert struct {
	Port int    `mapstructure:"port"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

// RateLimit mirrors the original's Ratelimit section.
type RateLimit struct {
	Enable  bool    `mapstructure:"enable"`
	MaxRate float64 `mapstructure:"max_rate"`
}

// Stats gates the observability endpoints.
type Stats struct {
	Enable bool   `mapstructure:"enable"`
	Token  string `mapstructure:"token"`
}

// Security mirrors the original's Security section: the HMAC pre-shared
// token check described in spec.md §6.
type Security struct {
	Enable          bool   `mapstructure:"enable"`
	MaxTimestampAge int64  `mapstructure:"maxTimeStampAge"`
	Token           string `mapstructure:"token"`
}

// Config is the top-level document.
type Config struct {
	Log       Log       `mapstructure:"log"`
	Listen    []int     `mapstructure:"port"`
	TLS       []TLSCert `mapstructure:"tls"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	Stats     Stats     `mapstructure:"stats"`
	Security  Security  `mapstructure:"security"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("log.writers", "console")
	v.SetDefault("log.logger_level", "info")
	v.SetDefault("port", []int{8080})

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}
