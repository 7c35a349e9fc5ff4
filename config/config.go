// Package config loads the execstore service configuration and runtime config files.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/execstore/logging"
	"github.com/nomis52/execstore/store"
)

const (
	defaultListenAddr = ":8080"

	// Store backends
	BackendMemory = "memory"
	BackendDisk   = "disk"

	defaultMetricsPrefix = "execstore"
	defaultJobName       = "execstore"
	defaultPushTimeout   = 30 * time.Second

	// Runtime config defaults
	defaultShell       = "/bin/sh"
	defaultTimeout     = time.Hour
	defaultMaxParallel = 1
)

var (
	// ErrUnknownBackend is returned when store.backend names an unsupported backend.
	ErrUnknownBackend = errors.New("unknown store backend")
	// ErrMissingStateDir is returned when the disk backend has no state directory.
	ErrMissingStateDir = errors.New("store.state_dir is required for the disk backend")
	// ErrMissingPushURL is returned when a push schedule is set without an endpoint.
	ErrMissingPushURL = errors.New("monitoring.push_url is required when monitoring.push_schedule is set")
	// ErrNegativeTimeout is returned for a runtime config with a negative timeout.
	ErrNegativeTimeout = errors.New("runtime config timeout must not be negative")
	// ErrNegativeMaxParallel is returned for a runtime config with a negative max_parallel.
	ErrNegativeMaxParallel = errors.New("runtime config max_parallel must not be negative")
	// ErrIncompleteTLS is returned when only one of cert_file and key_file is set.
	ErrIncompleteTLS = errors.New("listener.cert_file and listener.key_file must be set together")
)

// Config represents the complete service configuration.
type Config struct {
	Listener ListenerConfig `yaml:"listener"`
	Store    StoreConfig    `yaml:"store"`
	// RuntimeConfig is the path to a YAML runtime config file. It is loaded into the
	// store at start and on every reload. Optional.
	RuntimeConfig string           `yaml:"runtime_config"`
	Logging       logging.Config   `yaml:"logging"`
	Monitoring    MonitoringConfig `yaml:"monitoring"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
	// CertFile and KeyFile enable TLS. Both or neither must be set.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TLSEnabled reports whether the listener serves HTTPS.
func (l ListenerConfig) TLSEnabled() bool {
	return l.CertFile != ""
}

// StoreConfig selects the store backend.
type StoreConfig struct {
	// Backend is either "memory" (default) or "disk".
	Backend string `yaml:"backend"`
	// StateDir is the directory the disk backend persists to.
	StateDir string `yaml:"state_dir"`
}

// MonitoringConfig holds metrics push settings.
type MonitoringConfig struct {
	// PushURL is the base URL of a Prometheus remote write endpoint.
	PushURL string `yaml:"push_url"`
	// PushSchedule is a 5 field cron spec. Pushing is disabled when empty.
	PushSchedule string        `yaml:"push_schedule"`
	PushTimeout  time.Duration `yaml:"push_timeout"`
	Prefix       string        `yaml:"prefix"`
	Job          string        `yaml:"job"`
}

// PushEnabled reports whether store stats should be pushed on a schedule.
func (m MonitoringConfig) PushEnabled() bool {
	return m.PushSchedule != ""
}

// SetDefaults sets reasonable default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Listener.Addr == "" {
		c.Listener.Addr = defaultListenAddr
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Monitoring.Prefix == "" {
		c.Monitoring.Prefix = defaultMetricsPrefix
	}
	if c.Monitoring.Job == "" {
		c.Monitoring.Job = defaultJobName
	}
	if c.Monitoring.PushTimeout == 0 {
		c.Monitoring.PushTimeout = defaultPushTimeout
	}
	c.Logging.SetDefaults()
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendDisk:
		if c.Store.StateDir == "" {
			return ErrMissingStateDir
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Store.Backend)
	}
	if (c.Listener.CertFile == "") != (c.Listener.KeyFile == "") {
		return ErrIncompleteTLS
	}
	if c.Monitoring.PushEnabled() && c.Monitoring.PushURL == "" {
		return ErrMissingPushURL
	}
	if c.Monitoring.PushTimeout < 0 {
		return fmt.Errorf("monitoring.push_timeout must not be negative")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	return nil
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := decodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRuntimeConfig reads a runtime config file and fills in defaults for unset fields.
func LoadRuntimeConfig(path string) (store.RuntimeConfig, error) {
	var rc store.RuntimeConfig
	if err := decodeFile(path, &rc); err != nil {
		return store.RuntimeConfig{}, fmt.Errorf("failed to load runtime config %s: %w", path, err)
	}

	SetRuntimeDefaults(&rc)
	if err := ValidateRuntime(rc); err != nil {
		return store.RuntimeConfig{}, fmt.Errorf("invalid runtime config %s: %w", path, err)
	}
	return rc, nil
}

// ValidateRuntime rejects negative limits.
func ValidateRuntime(rc store.RuntimeConfig) error {
	if rc.Timeout < 0 {
		return ErrNegativeTimeout
	}
	if rc.MaxParallel < 0 {
		return ErrNegativeMaxParallel
	}
	return nil
}

// SetRuntimeDefaults fills in unset runtime config fields.
func SetRuntimeDefaults(rc *store.RuntimeConfig) {
	if rc.Shell == "" {
		rc.Shell = defaultShell
	}
	if rc.Timeout == 0 {
		rc.Timeout = defaultTimeout
	}
	if rc.MaxParallel == 0 {
		rc.MaxParallel = defaultMaxParallel
	}
}

func decodeFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	// An empty file leaves out at its zero value.
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML: %w", err)
	}
	return nil
}
