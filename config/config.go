// Package config loads engine, logging and render settings from a TOML or YAML file with
// environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	envconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/plus3/strata/ecs"
)

type Config struct {
	Engine  EngineConfig  `toml:"engine" yaml:"engine"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Render  RenderConfig  `toml:"render" yaml:"render"`
}

type EngineConfig struct {
	FixedRate        float64       `toml:"fixed_rate" yaml:"fixed_rate"` // fixed steps per second
	Workers          int           `toml:"workers" yaml:"workers"`       // 0 = unbounded
	MaxFixedSteps    int           `toml:"max_fixed_steps" yaml:"max_fixed_steps"`
	MaxArchetypeRows int           `toml:"max_archetype_rows" yaml:"max_archetype_rows"`
	SlowTick         time.Duration `toml:"slow_tick" yaml:"slow_tick"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
}

type RenderConfig struct {
	Backend string `toml:"backend" yaml:"backend"` // "terminal", "ebiten" or "none"
	Width   int    `toml:"width" yaml:"width"`
	Height  int    `toml:"height" yaml:"height"`
	Title   string `toml:"title" yaml:"title"`
}

// envOverrides are read from the process environment after the file.
type envOverrides struct {
	FixedRate     float64 `config:"STRATA_FIXED_RATE"`
	Workers       int     `config:"STRATA_WORKERS"`
	LogLevel      string  `config:"STRATA_LOG_LEVEL"`
	LogFormat     string  `config:"STRATA_LOG_FORMAT"`
	RenderBackend string  `config:"STRATA_RENDER_BACKEND"`
}

// Load reads path over the defaults. The format is chosen by extension: .toml, .yaml or
// .yml. An empty path yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read config %s", path)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return eris.Wrapf(err, "parse config %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return eris.Wrapf(err, "parse config %s", path)
		}
	default:
		return eris.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.FromEnv().To(&env); err != nil {
		return eris.Wrap(err, "read environment overrides")
	}
	if env.FixedRate > 0 {
		c.Engine.FixedRate = env.FixedRate
	}
	if env.Workers > 0 {
		c.Engine.Workers = env.Workers
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		c.Logging.Format = env.LogFormat
	}
	if env.RenderBackend != "" {
		c.Render.Backend = env.RenderBackend
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.FixedRate <= 0 {
		return eris.Errorf("engine.fixed_rate must be positive, got %v", c.Engine.FixedRate)
	}
	if c.Engine.Workers < 0 || c.Engine.MaxFixedSteps < 0 || c.Engine.MaxArchetypeRows < 0 {
		return eris.New("engine limits must not be negative")
	}
	switch c.Render.Backend {
	case "terminal", "ebiten", "none":
	default:
		return eris.Errorf("unknown render backend %q", c.Render.Backend)
	}
	return nil
}

// FixedInterval is the fixed step derived from FixedRate.
func (c *Config) FixedInterval() time.Duration {
	return ecs.FixedRate(c.Engine.FixedRate).Interval()
}

// SchedulerOptions maps the engine section to scheduler options.
func (c *Config) SchedulerOptions() []ecs.SchedulerOption {
	opts := []ecs.SchedulerOption{
		ecs.WithWorkers(c.Engine.Workers),
		ecs.WithMaxFixedSteps(c.Engine.MaxFixedSteps),
	}
	if c.Engine.SlowTick > 0 {
		opts = append(opts, ecs.WithSlowTickThreshold(c.Engine.SlowTick))
	}
	return opts
}

// StorageOptions maps the engine section to storage options.
func (c *Config) StorageOptions() []ecs.StorageOption {
	if c.Engine.MaxArchetypeRows > 0 {
		return []ecs.StorageOption{ecs.WithMaxRows(c.Engine.MaxArchetypeRows)}
	}
	return nil
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			FixedRate:     60,
			MaxFixedSteps: 8,
			SlowTick:      50 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Render: RenderConfig{
			Backend: "terminal",
			Width:   640,
			Height:  480,
			Title:   "strata",
		},
	}
}
