package autograph

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/ritu-thombre99/catalyst/core/logging"
)

// Environment variables consulted by FromEnvironment.
const (
	EnvStrictConversion = "CATALYST_STRICT_CONVERSION"
	EnvIgnoreFallbacks  = "CATALYST_IGNORE_FALLBACKS"
)

// Config is the caller-owned conversion configuration. The lowering engines
// treat it as immutable for the duration of a call.
type Config struct {
	// StrictConversion escalates every would-be fallback into a fatal
	// error.
	StrictConversion bool `yaml:"strict_conversion"`
	// IgnoreFallbacks suppresses the warning emitted when a traced loop
	// falls back to native execution.
	IgnoreFallbacks bool `yaml:"ignore_fallbacks"`
	// Logger receives fallback warnings. Defaults to the "autograph"
	// component logger.
	Logger *logging.Logger `yaml:"-"`
}

// DefaultConfig returns the permissive default configuration.
func DefaultConfig() *Config {
	return &Config{Logger: logging.GetLogger("autograph")}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnvironment overlays the CATALYST_* variables onto the config. Unset
// variables leave the current values alone, so file settings survive unless
// explicitly overridden. Returns the config for chaining.
func (c *Config) FromEnvironment() *Config {
	if env.Has(EnvStrictConversion) {
		c.StrictConversion = env.Bool(EnvStrictConversion)
	}
	if env.Has(EnvIgnoreFallbacks) {
		c.IgnoreFallbacks = env.Bool(EnvIgnoreFallbacks)
	}
	return c
}

func (c *Config) strict() bool {
	return c != nil && c.StrictConversion
}

func (c *Config) quiet() bool {
	return c != nil && c.IgnoreFallbacks
}

// logger returns the configured logger or the package default, so a nil
// config never panics at warn time.
func (c *Config) logger() *logging.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return logging.GetLogger("autograph")
}
