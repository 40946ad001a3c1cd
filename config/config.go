package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/semstreams-fix/pkg/tlsutil"
)

// Duration is a time.Duration that decodes from "5s"-style strings or from
// nanosecond numbers.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete process configuration.
type Config struct {
	NATS       NATSConfig    `json:"nats"`
	Input      InputConfig   `json:"input"`
	Output     OutputConfig  `json:"output"`
	Events     EventsConfig  `json:"events"`
	Control    ControlConfig `json:"control"`
	Metrics    MetricsConfig `json:"metrics"`
	Dictionary string        `json:"dictionary"`
	TempDir    string        `json:"temp_dir,omitempty"`
	Settings   Settings      `json:"settings"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string `json:"urls,omitempty"`
	Name          string   `json:"name,omitempty"`
	MaxReconnects int      `json:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	Token         string   `json:"token,omitempty"`
	ConnectRetry  int      `json:"connect_retry,omitempty"`

	// Zero leaves the client default in place.
	ConnectTimeout   Duration `json:"connect_timeout,omitempty"`
	PingInterval     Duration `json:"ping_interval,omitempty"`
	DrainTimeout     Duration `json:"drain_timeout,omitempty"`
	HandlerTimeout   Duration `json:"handler_timeout,omitempty"`
	MaxBackoff       Duration `json:"max_backoff,omitempty"`
	CircuitThreshold int32    `json:"circuit_threshold,omitempty"`

	TLS tlsutil.ClientConfig `json:"tls,omitempty"`
}

// InputConfig selects where batches to send are consumed from. With Stream
// set, batches are consumed from JetStream with a durable consumer;
// otherwise a core subscription is used.
type InputConfig struct {
	Subject    string `json:"subject"`
	QueueGroup string `json:"queue_group,omitempty"`
	Stream     string `json:"stream,omitempty"`
	Durable    string `json:"durable,omitempty"`
}

// OutputConfig controls the echo of FIX traffic back to NATS.
type OutputConfig struct {
	Enabled     bool   `json:"enabled"`
	Subject     string `json:"subject"`
	ContentType string `json:"content_type,omitempty"`
	Workers     int    `json:"workers,omitempty"`
}

// EventsConfig names the subject reporting events are published on.
type EventsConfig struct {
	Subject string `json:"subject"`
}

// ControlConfig configures the start/stop control service.
type ControlConfig struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			Name:          "semstreams-fix",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			ConnectRetry:  5,
		},
		Input:    InputConfig{Subject: "fix.client.send"},
		Output:   OutputConfig{Enabled: true, Subject: "fix.client.raw", ContentType: "application/json", Workers: 1},
		Events:   EventsConfig{Subject: "fix.client.events"},
		Control:  ControlConfig{Name: "semstreams-fix-control", Subject: "fix.client.control"},
		Metrics:  MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Settings: DefaultSettings(),
	}
}

// Validate checks the transport layout and the bridge settings.
func (c *Config) Validate() error {
	if len(c.NATS.URLs) == 0 {
		return fmt.Errorf("nats.urls is required")
	}
	if c.Input.Subject == "" {
		return fmt.Errorf("input.subject is required")
	}
	if c.Input.Stream != "" && c.Input.Durable == "" {
		return fmt.Errorf("input.durable is required when input.stream is set")
	}
	if c.Output.Enabled && c.Output.Subject == "" {
		return fmt.Errorf("output.subject is required when output is enabled")
	}
	if c.Settings.StartControl && c.Control.Subject == "" {
		return fmt.Errorf("control.subject is required when startControl is set")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port)
	}
	return c.Settings.Validate()
}

// String returns a JSON representation of the config with secrets masked.
func (c *Config) String() string {
	masked := *c
	if masked.NATS.Password != "" {
		masked.NATS.Password = "***"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Loader reads a configuration file and applies environment overrides.
type Loader struct {
	envPrefix string
	getenv    func(string) string
}

// NewLoader creates a loader reading SEMSTREAMS_FIX_* overrides.
func NewLoader() *Loader {
	return &Loader{envPrefix: "SEMSTREAMS_FIX", getenv: os.Getenv}
}

// LoadFile loads a JSON or YAML file, chosen by extension, on top of the
// defaults, applies environment overrides and validates the result.
func (l *Loader) LoadFile(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(doc)
}

func (l *Loader) applyEnvOverrides(cfg *Config) error {
	lookup := func(name string) (string, bool, error) {
		key := l.envPrefix + "_" + name
		val := l.getenv(key)
		if val == "" {
			return "", false, nil
		}
		if err := validateEnvVar(key, val); err != nil {
			return "", false, err
		}
		return val, true, nil
	}

	if val, ok, err := lookup("NATS_URLS"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val, ok, err := lookup("NATS_TOKEN"); err != nil {
		return err
	} else if ok {
		cfg.NATS.Token = val
	}
	if val, ok, err := lookup("DICTIONARY"); err != nil {
		return err
	} else if ok {
		cfg.Dictionary = val
	}
	if val, ok, err := lookup("METRICS_PORT"); err != nil {
		return err
	} else if ok {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_METRICS_PORT: %w", l.envPrefix, err)
		}
		cfg.Metrics.Port = port
	}
	return nil
}
