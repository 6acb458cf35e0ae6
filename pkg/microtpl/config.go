package microtpl

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the process-wide knobs: cache sizing, logging, the render
// step budget and the delimiter settings used by compilers built from it.
type Config struct {
	// CacheMaxSize bounds the compiled template cache. 0 disables caching.
	CacheMaxSize int `yaml:"cache_max_size"`
	// CacheTTL expires cached templates. 0 keeps them until evicted.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// LogLevel is one of debug, info, warn, error or off.
	LogLevel string `yaml:"log_level"`
	// MaxRenderSteps bounds loop iterations and calls per render. 0 means unlimited.
	MaxRenderSteps int `yaml:"max_render_steps"`
	// Settings are layered over DefaultSettings by compilers built from this config.
	Settings Settings `yaml:"settings"`
}

func DefaultConfig() *Config {
	return &Config{CacheMaxSize: 100, LogLevel: "info"}
}

// envBindings lists the MICROTPL_* variables read by ConfigFromEnvironment.
// A value that does not parse leaves the field untouched.
var envBindings = []struct {
	name  string
	apply func(c *Config, val string)
}{
	{"MICROTPL_CACHE_MAX_SIZE", func(c *Config, val string) { setInt(&c.CacheMaxSize, val) }},
	{"MICROTPL_CACHE_TTL", func(c *Config, val string) {
		if d, err := time.ParseDuration(val); err == nil {
			c.CacheTTL = d
		}
	}},
	{"MICROTPL_LOG_LEVEL", func(c *Config, val string) { c.LogLevel = val }},
	{"MICROTPL_MAX_RENDER_STEPS", func(c *Config, val string) { setInt(&c.MaxRenderSteps, val) }},
	{"MICROTPL_ESCAPE", func(c *Config, val string) { c.Settings.Escape = val }},
	{"MICROTPL_INTERPOLATE", func(c *Config, val string) { c.Settings.Interpolate = val }},
	{"MICROTPL_EVALUATE", func(c *Config, val string) { c.Settings.Evaluate = val }},
	{"MICROTPL_VARIABLE", func(c *Config, val string) { c.Settings.Variable = val }},
}

func setInt(dst *int, val string) {
	if n, err := strconv.Atoi(val); err == nil {
		*dst = n
	}
}

// ConfigFromEnvironment starts from DefaultConfig and applies every
// MICROTPL_* variable that is set. It does not validate the result.
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	for _, b := range envBindings {
		if val := os.Getenv(b.name); val != "" {
			b.apply(config, val)
		}
	}
	return config
}

// LoadConfigFile reads a YAML configuration file. Absent keys keep their
// default values and unknown keys are an error.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WithContext(err, "read config", map[string]interface{}{"path": path})
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if len(bytes.TrimSpace(data)) != 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewConfigWithDefaults copies overrides and fills in an empty LogLevel.
// A nil overrides yields DefaultConfig.
func NewConfigWithDefaults(overrides *Config) *Config {
	if overrides == nil {
		return DefaultConfig()
	}
	config := *overrides
	if config.LogLevel == "" {
		config.LogLevel = DefaultConfig().LogLevel
	}
	return &config
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	errs := NewMultiError()
	if c.CacheMaxSize < 0 {
		errs.Add(errors.New("cache max size cannot be negative"))
	}
	if c.CacheTTL < 0 {
		errs.Add(errors.New("cache TTL cannot be negative"))
	}
	if !knownLogLevel(c.LogLevel) {
		errs.Add(fmt.Errorf("invalid log level: %q", c.LogLevel))
	}
	if c.MaxRenderSteps < 0 {
		errs.Add(errors.New("max render steps cannot be negative"))
	}
	if _, err := MergeSettings(DefaultSettings(), c.Settings).Grammar(); err != nil {
		errs.Add(err)
	}
	return errs.Err()
}

func knownLogLevel(s string) bool {
	for _, name := range levelNames {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// GetGlobalConfig returns a copy of the process configuration. Until
// SetGlobalConfig is called it comes from the environment.
func GetGlobalConfig() *Config {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()

	if cfg == nil {
		globalMu.Lock()
		if globalConfig == nil {
			globalConfig = ConfigFromEnvironment()
		}
		cfg = globalConfig
		globalMu.Unlock()
	}

	c := *cfg
	return &c
}

// SetGlobalConfig replaces the process configuration and applies its log
// level. Compilers already built keep the configuration they were built with.
func SetGlobalConfig(config *Config) {
	globalMu.Lock()
	globalConfig = config
	globalMu.Unlock()

	UpdateLoggerFromConfig()
}
