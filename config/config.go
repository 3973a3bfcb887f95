// Package config loads graphmind tuning parameters from a YAML file with
// environment variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/logging"
	"github.com/hupe1980/graphmind/orchestrator"
	"github.com/hupe1980/graphmind/reasoner"
	reasoneranthropic "github.com/hupe1980/graphmind/reasoner/anthropic"
	reasoneropenai "github.com/hupe1980/graphmind/reasoner/openai"
	"github.com/hupe1980/graphmind/validate"
)

// Config holds all graphmind configuration.
type Config struct {
	// Reasoner configures the generative backend handed to agents.
	Reasoner ReasonerConfig `yaml:"reasoner"`

	// Bus configures the in-process event bus.
	Bus BusConfig `yaml:"bus"`

	// Orchestrator configures supervision and evolutionary pressure.
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Validation configures the output validation pipeline.
	Validation ValidationConfig `yaml:"validation"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// ReasonerConfig configures the generative backend.
type ReasonerConfig struct {
	Provider string `yaml:"provider"` // anthropic, openai, mock
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// OrchestratorConfig configures agent supervision. Durations are strings in
// time.ParseDuration syntax.
type OrchestratorConfig struct {
	MaxConcurrentDispatches int64   `yaml:"max_concurrent_dispatches"`
	DispatchTimeout         string  `yaml:"dispatch_timeout"`
	GraceTimeout            string  `yaml:"grace_timeout"`
	QueueCapacity           int     `yaml:"queue_capacity"`
	PopulationMin           int     `yaml:"population_min"`
	PopulationMax           int     `yaml:"population_max"`
	TerminationFloor        float64 `yaml:"termination_floor"`
	CullFraction            float64 `yaml:"cull_fraction"`
	Variation               float64 `yaml:"variation"`
	EvolutionInterval       string  `yaml:"evolution_interval"`
}

// ValidationConfig configures the validation pipeline.
type ValidationConfig struct {
	PassThreshold    float64 `yaml:"pass_threshold"`
	NoveltyThreshold float64 `yaml:"novelty_threshold"`
	NoveltyWindow    int     `yaml:"novelty_window"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	oc := orchestrator.DefaultConfig
	return &Config{
		Reasoner: ReasonerConfig{
			Provider: "mock",
			Timeout:  "120s",
		},
		Bus: BusConfig{
			QueueSize: 256,
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrentDispatches: oc.MaxConcurrentDispatches,
			DispatchTimeout:         oc.DispatchTimeout.String(),
			GraceTimeout:            oc.GraceTimeout.String(),
			QueueCapacity:           oc.QueueCapacity,
			PopulationMin:           oc.PopulationMin,
			PopulationMax:           oc.PopulationMax,
			TerminationFloor:        oc.TerminationFloor,
			CullFraction:            oc.CullFraction,
			Variation:               oc.Variation,
			EvolutionInterval:       oc.EvolutionInterval.String(),
		},
		Validation: ValidationConfig{
			PassThreshold:    validate.DefaultPassThreshold,
			NoveltyThreshold: 0.9,
			NoveltyWindow:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML.
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

// applyEnvOverrides applies environment variable overrides. API keys are
// never expected in the file itself.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Reasoner.APIKey = key
		if c.Reasoner.Provider == "" || c.Reasoner.Provider == "mock" {
			c.Reasoner.Provider = "anthropic"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Reasoner.Provider == "openai" {
		c.Reasoner.APIKey = key
	}
}

// OrchestratorConfig converts the file representation into the runtime
// configuration, falling back to defaults for unparsable durations.
func (c *Config) OrchestratorConfig() orchestrator.Config {
	oc := orchestrator.DefaultConfig

	if c.Orchestrator.MaxConcurrentDispatches > 0 {
		oc.MaxConcurrentDispatches = c.Orchestrator.MaxConcurrentDispatches
	}
	if c.Orchestrator.QueueCapacity > 0 {
		oc.QueueCapacity = c.Orchestrator.QueueCapacity
	}
	if c.Orchestrator.PopulationMin >= 0 {
		oc.PopulationMin = c.Orchestrator.PopulationMin
	}
	if c.Orchestrator.PopulationMax > 0 {
		oc.PopulationMax = c.Orchestrator.PopulationMax
	}
	if c.Orchestrator.TerminationFloor > 0 {
		oc.TerminationFloor = c.Orchestrator.TerminationFloor
	}
	if c.Orchestrator.CullFraction > 0 {
		oc.CullFraction = c.Orchestrator.CullFraction
	}
	if c.Orchestrator.Variation > 0 {
		oc.Variation = c.Orchestrator.Variation
	}

	oc.DispatchTimeout = parseDuration(c.Orchestrator.DispatchTimeout, oc.DispatchTimeout)
	oc.GraceTimeout = parseDuration(c.Orchestrator.GraceTimeout, oc.GraceTimeout)
	oc.EvolutionInterval = parseDuration(c.Orchestrator.EvolutionInterval, oc.EvolutionInterval)

	return oc
}

// BuildLogger constructs a logger from the logging section.
func (c *Config) BuildLogger() logging.Logger {
	level := logging.LogLevelInfo
	switch c.Logging.Level {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.NewSlogLogger(level, c.Logging.Format, false)
}

// BuildReasoner constructs the generative backend named by the reasoner
// section. The mock needs no credentials; provider adapters receive the
// configured model and API key.
func (c *Config) BuildReasoner() (core.Reasoner, error) {
	switch c.Reasoner.Provider {
	case "mock", "":
		return reasoner.NewMockReasoner(), nil
	case "anthropic":
		return reasoneranthropic.NewReasoner(func(o *reasoneranthropic.Options) {
			if c.Reasoner.Model != "" {
				o.Model = anthropicsdk.Model(c.Reasoner.Model)
			}
			o.APIKey = c.Reasoner.APIKey
		}), nil
	case "openai":
		return reasoneropenai.NewReasoner(func(o *reasoneropenai.Options) {
			if c.Reasoner.Model != "" {
				o.Model = c.Reasoner.Model
			}
			o.APIKey = c.Reasoner.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown reasoner provider: %s", c.Reasoner.Provider)
	}
}

// ReasonerTimeout returns the reasoner call timeout as a duration.
func (c *Config) ReasonerTimeout() time.Duration {
	return parseDuration(c.Reasoner.Timeout, 120*time.Second)
}

// ValidProviders lists the supported reasoner providers.
var ValidProviders = []string{"anthropic", "openai", "mock"}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.Reasoner.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid reasoner provider: %s (valid: %v)", c.Reasoner.Provider, ValidProviders)
	}

	if c.Reasoner.Provider != "mock" && c.Reasoner.APIKey == "" {
		return fmt.Errorf("reasoner API key not configured (set ANTHROPIC_API_KEY or OPENAI_API_KEY)")
	}

	if c.Orchestrator.PopulationMin > c.Orchestrator.PopulationMax {
		return fmt.Errorf("population_min %d exceeds population_max %d",
			c.Orchestrator.PopulationMin, c.Orchestrator.PopulationMax)
	}

	if c.Validation.PassThreshold < 0 || c.Validation.PassThreshold > 1 {
		return fmt.Errorf("pass_threshold %v outside [0,1]", c.Validation.PassThreshold)
	}

	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
