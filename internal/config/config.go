// Package config loads and validates pace configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PACE_RENDER_INTERVAL=250ms.
const EnvPrefix = "PACE"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Render  RenderConfig  `mapstructure:"render"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Demo    DemoConfig    `mapstructure:"demo"`
}

// RenderConfig controls the throttled progress sink.
type RenderConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BufferSize int           `mapstructure:"buffer_size"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the status server exposing /metrics and /v1/frame.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DemoConfig shapes the simulated build run by `pace demo`.
type DemoConfig struct {
	Units          int           `mapstructure:"units"`
	Steps          int           `mapstructure:"steps"`
	Workers        int           `mapstructure:"workers"`
	StepDelay      time.Duration `mapstructure:"step_delay"`
	StepsPerSecond float64       `mapstructure:"steps_per_second"`
}

// New returns a Viper instance with defaults and environment bindings applied.
// Callers may bind flags to it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from disk/environment. A nil v starts from New.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = New()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("render.interval", 100*time.Millisecond)
	v.SetDefault("render.buffer_size", 100)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("demo.units", 8)
	v.SetDefault("demo.steps", 5)
	v.SetDefault("demo.workers", 4)
	v.SetDefault("demo.step_delay", 20*time.Millisecond)
	v.SetDefault("demo.steps_per_second", 0.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Render.Interval <= 0 {
		return fmt.Errorf("render.interval must be > 0")
	}
	if c.Render.BufferSize <= 0 {
		return fmt.Errorf("render.buffer_size must be > 0")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	if c.Demo.Workers <= 0 {
		return fmt.Errorf("demo.workers must be > 0")
	}
	if c.Demo.Units < 0 {
		return fmt.Errorf("demo.units must be >= 0")
	}
	if c.Demo.Steps < 0 {
		return fmt.Errorf("demo.steps must be >= 0")
	}
	if c.Demo.StepDelay < 0 {
		return fmt.Errorf("demo.step_delay must be >= 0")
	}
	if c.Demo.StepsPerSecond < 0 {
		return fmt.Errorf("demo.steps_per_second must be >= 0")
	}
	return nil
}
