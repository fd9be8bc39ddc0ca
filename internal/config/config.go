// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

// Package config loads and validates ProComply client configuration.
// Values layer in increasing precedence: built-in defaults, a YAML file,
// PROCOMPLY_ environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/procomply/procomply/internal/xdg"
)

// envPrefix namespaces environment variables. Double underscore separates
// nesting levels so single underscores survive inside key names, e.g.
// PROCOMPLY_API__BASE_URL maps to api.base_url.
const envPrefix = "PROCOMPLY_"

// FileName is the config file looked up under the XDG config directory
// when no --config flag is given.
const FileName = "config.yaml"

// API configures the backend HTTP client.
type API struct {
	BaseURL    string `koanf:"base_url" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Root URL of the ProComply API"`
	Timeout    string `koanf:"timeout" json:"timeout,omitempty" jsonschema:"description=Request timeout as a Go duration string"`
	MaxRetries int    `koanf:"max_retries" json:"max_retries,omitempty" jsonschema:"description=Retry attempts for idempotent requests,minimum=0,maximum=10"`
}

// TimeoutDuration returns the parsed request timeout. Validate guarantees
// the string parses, so errors here only occur on unvalidated configs.
func (a API) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Web configures the local web UI server.
type Web struct {
	Addr        string   `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Listen address for the local web UI"`
	PublicPaths []string `koanf:"public_paths" json:"public_paths,omitempty" jsonschema:"description=Glob patterns for routes served without a session"`
}

// Log configures structured logging.
type Log struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Metrics configures the observability HTTP server.
type Metrics struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Metrics/health listen address (empty disables)"`
}

// Config is the full client configuration.
type Config struct {
	API     API     `koanf:"api" json:"api,omitempty"`
	Web     Web     `koanf:"web" json:"web,omitempty"`
	Log     Log     `koanf:"log" json:"log,omitempty"`
	Metrics Metrics `koanf:"metrics" json:"metrics,omitempty"`
}

// Default values.
const (
	defaultBaseURL     = "http://127.0.0.1:8000/api"
	defaultTimeout     = "30s"
	defaultMaxRetries  = 2
	defaultWebAddr     = "127.0.0.1:8080"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"
	defaultLogLevel    = "info"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: API{
			BaseURL:    defaultBaseURL,
			Timeout:    defaultTimeout,
			MaxRetries: defaultMaxRetries,
		},
		Web: Web{
			Addr: defaultWebAddr,
			PublicPaths: []string{
				"/",
				"/login",
				"/register",
				"/static/*",
				"/healthz",
			},
		},
		Log:     Log{Format: defaultLogFormat, Level: defaultLogLevel},
		Metrics: Metrics{Addr: defaultMetricsAddr},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return fmt.Errorf("api.timeout must be a duration like '30s', got %q", c.API.Timeout)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must not be negative, got %d", c.API.MaxRetries)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	for _, pattern := range c.Web.PublicPaths {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("web.public_paths pattern %q does not compile: %w", pattern, err)
		}
	}
	return nil
}

// DefaultPath returns the XDG location of the config file.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), FileName)
}

// Load builds the configuration. path overrides the default file location;
// an explicit path must exist, the default one may be absent. flags may be
// nil when no command-line layer applies.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	k := koanf.New(".")

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if schemaErr := ValidateSchema(raw); schemaErr != nil {
			return nil, fmt.Errorf("config file %s: %s", path, FormatSchemaError(schemaErr))
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// Default file is optional.
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(key, "__", "."), value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
