// Package config holds the settings of the engine and its command line tool.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/brunokim/resolve/kb"
)

// Config is the root of a config file.
type Config struct {
	Engine  Engine  `yaml:"engine"`
	Logging Logging `yaml:"logging"`
}

// Engine configures solvers.
type Engine struct {
	// IterLimit is the maximum number of operations executed by a query. Zero means no limit.
	IterLimit int `yaml:"iter_limit"`
	// Inline enables the expansion of inlinable predicates into their callers.
	Inline bool `yaml:"inline"`
	// DefaultModule is the module of queries that don't name one.
	DefaultModule string `yaml:"default_module"`
}

// Logging configures the logger.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	// TraceFile receives log entries in addition to stderr, if set.
	TraceFile string `yaml:"trace_file"`
}

// Default returns the config used when no file is given.
func Default() *Config {
	return &Config{
		Engine: Engine{
			IterLimit:     1_000_000,
			Inline:        true,
			DefaultModule: kb.DefaultModule,
		},
		Logging: Logging{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load reads a config file over the defaults. A missing file returns the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a config over the defaults, and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("RESOLVE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv("RESOLVE_TRACE_FILE"); path != "" {
		c.Logging.TraceFile = path
	}
}

// Validate checks that every field has a valid value.
func (c *Config) Validate() error {
	if c.Engine.IterLimit < 0 {
		return fmt.Errorf("engine.iter_limit must not be negative, got %d", c.Engine.IterLimit)
	}
	if c.Engine.DefaultModule == "" {
		return fmt.Errorf("engine.default_module must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Save writes the config to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Build returns a logger writing to stderr, and to the trace file if set. The debug level
// traces every operation executed by the machine, and is best used with a trace file.
func (l Logging) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	var config zap.Config
	if l.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	if l.TraceFile != "" {
		config.OutputPaths = append(config.OutputPaths, l.TraceFile)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
