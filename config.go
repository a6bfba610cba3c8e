package gantry

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like
// "100ms" or "2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// RetryConfig is the declarative form of RetryPolicy.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BaseBackoff Duration `toml:"base_backoff"`
	MaxBackoff  Duration `toml:"max_backoff"`
}

// Policy converts the config into a RetryPolicy.
func (c RetryConfig) Policy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		Base:        c.BaseBackoff.Duration,
		Max:         c.MaxBackoff.Duration,
	}
}

// EngineConfig is the TOML-backed engine configuration:
//
//	max_concurrent_steps = 32
//	max_history = 128
//
//	[default_retry]
//	max_attempts = 3
//	base_backoff = "100ms"
//	max_backoff = "2s"
//
// Zero values fall back to the engine defaults.
type EngineConfig struct {
	MaxConcurrentSteps int64       `toml:"max_concurrent_steps"`
	MaxHistory         int         `toml:"max_history"`
	DefaultRetry       RetryConfig `toml:"default_retry"`
}

// LoadEngineConfig reads an EngineConfig from a TOML file.
func LoadEngineConfig(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseEngineConfig(data)
}

// ParseEngineConfig decodes an EngineConfig from TOML bytes. Unknown keys
// are rejected so typos surface at load time.
func ParseEngineConfig(data []byte) (EngineConfig, error) {
	var cfg EngineConfig
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return EngineConfig{}, fmt.Errorf("parse config: unknown key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Options converts the config into engine construction options.
func (c EngineConfig) Options() []Option {
	var opts []Option
	if c.MaxConcurrentSteps > 0 {
		opts = append(opts, WithMaxConcurrentSteps(c.MaxConcurrentSteps))
	}
	if c.MaxHistory > 0 {
		opts = append(opts, WithMaxHistory(c.MaxHistory))
	}
	if c.DefaultRetry.MaxAttempts > 0 {
		opts = append(opts, WithDefaultRetry(c.DefaultRetry.Policy()))
	}
	return opts
}
