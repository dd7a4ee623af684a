// Package config handles configuration loading from environment variables and plugin options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the external tools
const (
	DefaultRmqctlBin     = "/usr/sbin/rabbitmqctl"
	DefaultPmapBin       = "/usr/bin/pmap"
	DefaultPidofBin      = "/bin/pidof"
	DefaultBrokerProcess = "beam.smp"
)

// Config holds all configuration for the Quasar RabbitMQ agent.
// A collection cycle works on a copy, so fields must not be mutated while a cycle runs.
type Config struct {
	// Service identification
	Service string // Required: service name (e.g., "billing-rabbit")
	Name    string // Optional: custom node name (defaults to hostname)

	// External tools
	RmqctlBin     string
	PmapBin       string
	PidofBin      string
	BrokerProcess string        // OS process name passed to pidof
	Timeout       time.Duration // Upper bound for each external command

	// Logging
	Verbose bool

	// Transport Redis (optional, for gauges and heartbeats)
	TransportRedisURL string

	// Prometheus listen address (optional, e.g. ":9419")
	MetricsAddr string

	// Agent behavior
	Interval time.Duration // Collection interval (default: 10s)

	// Options holds raw plugin-style Key=Value pairs that Apply has not consumed yet
	Options []Option
}

// Option is a single plugin-style configuration entry, e.g. RmqcBin=/opt/rabbitmqctl
type Option struct {
	Key   string
	Value string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service:       "rabbitmq",
		RmqctlBin:     DefaultRmqctlBin,
		PmapBin:       DefaultPmapBin,
		PidofBin:      DefaultPidofBin,
		BrokerProcess: DefaultBrokerProcess,
		Timeout:       5 * time.Second,
		Interval:      10 * time.Second,
	}
}

// Load creates a Config from environment variables
func Load() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("QUASAR_SERVICE"); v != "" {
		cfg.Service = v
	}

	if v := os.Getenv("QUASAR_NAME"); v != "" {
		cfg.Name = v
	}

	// Tool paths
	if v := os.Getenv("QUASAR_RMQCTL_BIN"); v != "" {
		cfg.RmqctlBin = v
	}
	if v := os.Getenv("QUASAR_PMAP_BIN"); v != "" {
		cfg.PmapBin = v
	}
	if v := os.Getenv("QUASAR_PIDOF_BIN"); v != "" {
		cfg.PidofBin = v
	}
	if v := os.Getenv("QUASAR_BROKER_PROCESS"); v != "" {
		cfg.BrokerProcess = v
	}

	if v := os.Getenv("QUASAR_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}

	// Redis URL
	if v := os.Getenv("QUASAR_TRANSPORT_REDIS_URL"); v != "" {
		cfg.TransportRedisURL = v
	} else if v := os.Getenv("QUASAR_REDIS_URL"); v != "" {
		// Legacy shorthand
		cfg.TransportRedisURL = v
	}

	if v := os.Getenv("QUASAR_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	// Durations are given in seconds
	if v := os.Getenv("QUASAR_INTERVAL"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			cfg.Interval = time.Duration(seconds) * time.Second
		}
	}
	if v := os.Getenv("QUASAR_COMMAND_TIMEOUT"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = time.Duration(seconds) * time.Second
		}
	}

	// Plugin options (comma-separated: Key=Value,Key=Value)
	// Example: QUASAR_OPTIONS=RmqcBin=/opt/rabbitmq/sbin/rabbitmqctl,Verbose=true
	if v := os.Getenv("QUASAR_OPTIONS"); v != "" {
		cfg.Options = append(cfg.Options, ParseOptions(v)...)
	}

	return cfg
}

// ParseOptions parses "Key=Value,Key=Value". A bare "Key" gets an empty value.
func ParseOptions(s string) []Option {
	var opts []Option

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, _ := strings.Cut(part, "=")
		opts = append(opts, Option{
			Key:   strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
		})
	}

	return opts
}

// Apply consumes plugin options into the config and returns one warning per
// option it could not use. Unknown keys are never fatal.
func (c *Config) Apply(opts []Option) []string {
	var warnings []string

	for _, opt := range opts {
		switch opt.Key {
		case "RmqcBin":
			c.RmqctlBin = opt.Value
		case "PmapBin":
			c.PmapBin = opt.Value
		case "PidofBin":
			c.PidofBin = opt.Value
		case "Verbose":
			b, err := strconv.ParseBool(opt.Value)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid value for Verbose: %q", opt.Value))
				continue
			}
			c.Verbose = b
		default:
			warnings = append(warnings, fmt.Sprintf("Unknown config key: %s", opt.Key))
		}
	}

	return warnings
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service == "" {
		return &ConfigError{Field: "Service", Message: "service name is required (set QUASAR_SERVICE)"}
	}
	if c.RmqctlBin == "" {
		return &ConfigError{Field: "RmqctlBin", Message: "rabbitmqctl path is required"}
	}
	if c.PmapBin == "" {
		return &ConfigError{Field: "PmapBin", Message: "pmap path is required"}
	}
	if c.PidofBin == "" {
		return &ConfigError{Field: "PidofBin", Message: "pidof path is required"}
	}
	if c.BrokerProcess == "" {
		return &ConfigError{Field: "BrokerProcess", Message: "broker process name is required"}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "Timeout", Message: "command timeout must be positive"}
	}
	if c.Interval <= 0 {
		return &ConfigError{Field: "Interval", Message: "interval must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + ": " + e.Message
}
