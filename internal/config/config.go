// Package config handles configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/posebridge/internal/core"
)

// RootKey is the top-level YAML key and the environment variable prefix
// (POSEBRIDGE_...).
const RootKey = "posebridge"

// GlobalConfig represents the whole configuration file.
type GlobalConfig struct {
	Provider  ProviderConfig  `mapstructure:"provider" yaml:"provider"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Forwarder ForwarderConfig `mapstructure:"forwarder" yaml:"forwarder"`
	Consumer  ConsumerConfig  `mapstructure:"consumer" yaml:"consumer"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// BridgeConfig is the part of the configuration that composes a provider.
type BridgeConfig struct {
	Provider  ProviderConfig
	Transport TransportConfig
	Forwarder ForwarderConfig
}

// Bridge extracts the composition settings.
func (cfg *GlobalConfig) Bridge() BridgeConfig {
	return BridgeConfig{
		Provider:  cfg.Provider,
		Transport: cfg.Transport,
		Forwarder: cfg.Forwarder,
	}
}

// ─── Composition ───

// ProviderConfig selects where detection results come from.
type ProviderConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"` // queue | synthetic
}

// TransportConfig selects and configures the transport feeding a queue provider.
type TransportConfig struct {
	Kind    string         `mapstructure:"kind" yaml:"kind"` // tcp | ws | kafka
	Mode    string         `mapstructure:"mode" yaml:"mode"` // dial | listen
	Options map[string]any `mapstructure:"options" yaml:"options"`
}

// Transport modes.
const (
	ModeDial   = "dial"
	ModeListen = "listen"
)

// ForwarderConfig configures the forwarder and its queue.
type ForwarderConfig struct {
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity"`
}

// ConsumerConfig configures the polling consumer of the run command.
type ConsumerConfig struct {
	Tick time.Duration `mapstructure:"tick" yaml:"tick"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level" yaml:"level"`     // debug / info / warn / error
	Format     string           `mapstructure:"format" yaml:"format"`   // json / text / pattern
	Pattern    string           `mapstructure:"pattern" yaml:"pattern"` // pattern format only
	TimeFormat string           `mapstructure:"time_format" yaml:"time_format"`
	Outputs    LogOutputsConfig `mapstructure:"outputs" yaml:"outputs"`
}

// LogOutputsConfig contains additional log destinations; stdout is always on.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file" yaml:"file"`
	Loki LokiOutputConfig `mapstructure:"loki" yaml:"loki"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// LokiOutputConfig configures Loki log output.
type LokiOutputConfig struct {
	Enabled       bool              `mapstructure:"enabled" yaml:"enabled"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	Labels        map[string]string `mapstructure:"labels" yaml:"labels"`
	BatchSize     int               `mapstructure:"batch_size" yaml:"batch_size"`
	FlushInterval time.Duration     `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `posebridge: ...`.
type configRoot struct {
	Posebridge GlobalConfig `mapstructure:"posebridge"`
}

// Load loads configuration from file.
// Env vars override file values through the key replacer, e.g.
// POSEBRIDGE_LOG_LEVEL for posebridge.log.level.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(v)
}

// LoadDefaults builds the configuration from defaults and environment only.
func LoadDefaults() (*GlobalConfig, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*GlobalConfig, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Posebridge

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "posebridge." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("posebridge.provider.kind", "queue")

	v.SetDefault("posebridge.transport.kind", "tcp")
	v.SetDefault("posebridge.transport.mode", ModeDial)

	v.SetDefault("posebridge.forwarder.queue_capacity", 32)
	v.SetDefault("posebridge.consumer.tick", "33ms")

	// Log defaults
	v.SetDefault("posebridge.log.level", "info")
	v.SetDefault("posebridge.log.format", "text")
	v.SetDefault("posebridge.log.pattern", "%time [%level] %msg %field\n")
	v.SetDefault("posebridge.log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("posebridge.log.outputs.file.enabled", false)
	v.SetDefault("posebridge.log.outputs.file.path", "/var/log/posebridge/posebridge.log")
	v.SetDefault("posebridge.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("posebridge.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("posebridge.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("posebridge.log.outputs.file.rotation.compress", true)
	v.SetDefault("posebridge.log.outputs.loki.enabled", false)
	v.SetDefault("posebridge.log.outputs.loki.batch_size", 100)
	v.SetDefault("posebridge.log.outputs.loki.flush_interval", "5s")

	// Metrics defaults
	v.SetDefault("posebridge.metrics.enabled", false)
	v.SetDefault("posebridge.metrics.listen", "127.0.0.1:9091")
	v.SetDefault("posebridge.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and fills runtime defaults.
// Every error wraps core.ErrConfigInvalid, or core.ErrUnknownProvider for an
// unsupported provider kind.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{core.ErrConfigInvalid}, args...)...))
	}

	// ── Log ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		invalid("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text", "pattern":
		cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	default:
		invalid("invalid log format: %s (must be json/text/pattern)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		invalid("log.outputs.file.path is required when file output is enabled")
	}
	if cfg.Log.Outputs.Loki.Enabled && cfg.Log.Outputs.Loki.Endpoint == "" {
		invalid("log.outputs.loki.endpoint is required when loki output is enabled")
	}

	// ── Provider / transport ──
	cfg.Provider.Kind = strings.ToLower(cfg.Provider.Kind)
	switch cfg.Provider.Kind {
	case "synthetic":
	case "queue":
		if cfg.Transport.Kind == "" {
			invalid("transport.kind is required for the queue provider")
		}
		cfg.Transport.Kind = strings.ToLower(cfg.Transport.Kind)
		if cfg.Transport.Mode == "" {
			cfg.Transport.Mode = ModeDial
		}
		if cfg.Transport.Mode != ModeDial && cfg.Transport.Mode != ModeListen {
			invalid("invalid transport.mode: %s (must be dial/listen)", cfg.Transport.Mode)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: '%s' (must be queue/synthetic)", core.ErrUnknownProvider, cfg.Provider.Kind))
	}
	if cfg.Transport.Options == nil {
		cfg.Transport.Options = map[string]any{}
	}

	// ── Forwarder / consumer ──
	if cfg.Forwarder.QueueCapacity < 0 {
		invalid("forwarder.queue_capacity must not be negative, got %d", cfg.Forwarder.QueueCapacity)
	}
	if cfg.Forwarder.QueueCapacity == 0 {
		cfg.Forwarder.QueueCapacity = 32
	}
	if cfg.Consumer.Tick < 0 {
		invalid("consumer.tick must not be negative, got %s", cfg.Consumer.Tick)
	}
	if cfg.Consumer.Tick == 0 {
		cfg.Consumer.Tick = 33 * time.Millisecond
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			invalid("invalid metrics.listen %q: %v", cfg.Metrics.Listen, err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			invalid("metrics.path must start with '/', got %q", cfg.Metrics.Path)
		}
	}

	return errors.Join(errs...)
}
