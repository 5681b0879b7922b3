// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memoteca Contributors

// Package config loads service configuration from a YAML file with
// command-line flag overrides.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// TokenConfig configures the session token issuer.
type TokenConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

// SMTPConfig configures mail delivery. An empty Addr disables SMTP and
// falls back to the log dispatcher.
type SMTPConfig struct {
	Addr     string `koanf:"addr"`
	From     string `koanf:"from"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	BaseURL  string `koanf:"base_url"`
}

// S3Config configures object storage. An empty Bucket disables uploads.
type S3Config struct {
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

// Argon2Config tunes the password hasher cost parameters.
type Argon2Config struct {
	Time    uint32 `koanf:"time"`
	Memory  uint32 `koanf:"memory"`
	Threads uint8  `koanf:"threads"`
}

// Config holds all service configuration.
type Config struct {
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	DatabaseURL string `koanf:"database_url"`
	LogFormat   string `koanf:"log_format"`

	Token  TokenConfig  `koanf:"token"`
	SMTP   SMTPConfig   `koanf:"smtp"`
	S3     S3Config     `koanf:"s3"`
	Argon2 Argon2Config `koanf:"argon2"`
}

// Default returns the configuration defaults. File and flag values are
// merged over these.
func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		MetricsAddr: "127.0.0.1:9100",
		LogFormat:   "json",
		Token: TokenConfig{
			TTL: time.Hour,
		},
		Argon2: Argon2Config{
			Time:    1,
			Memory:  64 * 1024,
			Threads: 4,
		},
	}
}

// Load reads configuration from the YAML file at path (if non-empty) and
// applies overrides from flags (if non-nil). Flag names use hyphens and
// map onto underscore keys, so --listen-addr overrides listen_addr.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithValue(flags, ".", k,
			func(key, value string) (string, any) {
				return strings.ReplaceAll(key, "-", "_"), value
			})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.Token.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("token.secret is required")
	}
	if c.Token.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token.ttl must be positive")
	}
	return nil
}
