// Package config loads the node's resolver configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"

	"github.com/atrium-iot/netsvc/base/log"
)

// Limits and defaults.
const (
	MaxNameservers       = 4
	DefaultCacheBudget   = 256
	DefaultSelfTTL       = 10000
	DefaultRetryInterval = time.Second
	DefaultMaxRetries    = 5
	DefaultMaxAliases    = 32
	DefaultLogLevel      = "info"
)

// ErrInvalidConfig is returned for configurations that fail validation.
var ErrInvalidConfig = errors.New("invalid config")

// Duration is a time.Duration that is written as a string like "1s".
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler. Plain numbers are seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs float64
		if err := json.Unmarshal(data, &secs); err != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the resolver configuration.
type Config struct {
	// Hostname is the node's own name, announced via mDNS as <hostname>.local.
	Hostname string `json:"hostname,omitempty"`
	// Interface is the network interface used for mDNS.
	Interface string `json:"interface,omitempty"`
	// Nameservers are the unicast DNS servers, at most four.
	Nameservers []string `json:"nameservers,omitempty"`

	CacheBudget   int      `json:"cacheBudget,omitempty"`
	SelfTTL       uint32   `json:"selfTTL,omitempty"`
	RetryInterval Duration `json:"retryInterval,omitempty"`
	MaxRetries    int      `json:"maxRetries,omitempty"`
	MaxAliases    int      `json:"maxAliases,omitempty"`
	MulticastIPv6 bool     `json:"multicastIPv6,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`
}

// Defaults returns a configuration with all defaults set.
func Defaults() *Config {
	return &Config{
		CacheBudget:   DefaultCacheBudget,
		SelfTTL:       DefaultSelfTTL,
		RetryInterval: Duration(DefaultRetryInterval),
		MaxRetries:    DefaultMaxRetries,
		MaxAliases:    DefaultMaxAliases,
		LogLevel:      DefaultLogLevel,
	}
}

// Load reads a YAML (or JSON) configuration file. Missing values are set to
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML (or JSON) configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills in defaults for zero values.
func (c *Config) Validate() error {
	if len(c.Nameservers) > MaxNameservers {
		return fmt.Errorf("%w: %d nameservers configured, at most %d are supported", ErrInvalidConfig, len(c.Nameservers), MaxNameservers)
	}
	if c.CacheBudget < 0 || c.MaxRetries < 0 || c.MaxAliases < 0 || c.RetryInterval < 0 {
		return fmt.Errorf("%w: negative values are not allowed", ErrInvalidConfig)
	}
	if c.LogLevel != "" && log.ParseLevel(c.LogLevel) == 0 {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}

	if c.CacheBudget == 0 {
		c.CacheBudget = DefaultCacheBudget
	}
	if c.SelfTTL == 0 {
		c.SelfTTL = DefaultSelfTTL
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = Duration(DefaultRetryInterval)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxAliases == 0 {
		c.MaxAliases = DefaultMaxAliases
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
