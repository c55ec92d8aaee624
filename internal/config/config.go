// Package config loads synthcheck settings with priority env > file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dshills/synthcheck/internal/estimate"
	"github.com/dshills/synthcheck/internal/profile"
	"github.com/dshills/synthcheck/internal/schema"
)

// Config is the merged configuration for one run.
type Config struct {
	Title        string `yaml:"title"`
	Profile      string `yaml:"profile" env:"SYNTHCHECK_PROFILE" validate:"required"`
	SynthesisDir string `yaml:"synthesis_dir" env:"SYNTHCHECK_SYNTHESIS_DIR"`
	// ReportsSubdir is where <module>_stats.txt files live, relative to
	// SynthesisDir.
	ReportsSubdir string `yaml:"reports_subdir" validate:"required"`
	// NetlistsSubdir is searched for *.v netlists when Netlists is empty.
	NetlistsSubdir string   `yaml:"netlists_subdir" validate:"required"`
	Netlists       []string `yaml:"netlists" env:"SYNTHCHECK_NETLISTS" envSeparator:","`
	// Ignore lists directory names skipped during discovery.
	Ignore     []string `yaml:"ignore" env:"SYNTHCHECK_IGNORE" envSeparator:","`
	LogLevel   string   `yaml:"log_level" env:"SYNTHCHECK_LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	HistoryDir string   `yaml:"history_dir" env:"SYNTHCHECK_HISTORY_DIR"`
	// Strict escalates WARN verdicts to FAIL.
	Strict bool `yaml:"strict" env:"SYNTHCHECK_STRICT"`

	// Modules replaces the profile's catalog when non-empty.
	Modules []profile.Module `yaml:"modules" env:"-" validate:"dive"`
	// Expectations replaces the profile's expectations when non-nil.
	Expectations []schema.Expectation `yaml:"expectations" env:"-" validate:"dive"`

	Estimate estimate.Tables `yaml:"estimate" env:"-"`
	Advisor  AdvisorConfig   `yaml:"advisor"`
	Influx   InfluxConfig    `yaml:"influx"`
}

// AdvisorConfig selects the optional recommendation model.
type AdvisorConfig struct {
	Enabled bool `yaml:"enabled" env:"SYNTHCHECK_ADVISOR"`
	// Provider is inferred from Model when empty.
	Provider  string  `yaml:"provider" env:"SYNTHCHECK_ADVISOR_PROVIDER" validate:"omitempty,oneof=anthropic openai google"`
	Model     string  `yaml:"model" env:"SYNTHCHECK_ADVISOR_MODEL" validate:"required_if=Enabled true"`
	MaxTokens int     `yaml:"max_tokens" validate:"gte=1"`
	Temp      float64 `yaml:"temperature" validate:"gte=0,lte=2"`
}

// InfluxConfig addresses the optional InfluxDB sink. An empty URL disables it.
type InfluxConfig struct {
	URL    string `yaml:"url" env:"INFLUX_URL" validate:"omitempty,url"`
	Token  string `yaml:"-" env:"INFLUX_TOKEN"`
	Org    string `yaml:"org" env:"INFLUX_ORG" validate:"required_with=URL"`
	Bucket string `yaml:"bucket" env:"INFLUX_BUCKET" validate:"required_with=URL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Title:          "Synthesis Report",
		Profile:        "generic",
		SynthesisDir:   "flow/synthesis",
		ReportsSubdir:  "reports",
		NetlistsSubdir: "netlists",
		LogLevel:       "info",
		Estimate:       estimate.DefaultTables(),
		Advisor: AdvisorConfig{
			Model:     "claude-sonnet-4-6",
			MaxTokens: 1024,
			Temp:      0.2,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is non-empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("knownmetric", func(fl validator.FieldLevel) bool {
		return schema.Metric(fl.Field().String()).IsKnown()
	})
	return v
}

// Validate checks field constraints and that the profile exists.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	if _, err := profile.Load(c.Profile); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ResolveProfile returns the configured profile with the file's catalog and
// expectation overrides applied. When the resolved catalog is non-empty every
// expectation scope must be "total" or a catalog module.
func (c Config) ResolveProfile() (profile.Profile, error) {
	p, err := profile.Load(c.Profile)
	if err != nil {
		return p, fmt.Errorf("config: %w", err)
	}
	if len(c.Modules) > 0 {
		p.Modules = c.Modules
	}
	if c.Expectations != nil {
		p.Expectations = slices.Clone(c.Expectations)
	}
	for i := range p.Expectations {
		scope := p.Expectations[i].Scope
		if len(p.Modules) > 0 && scope != schema.ScopeTotal {
			if _, ok := p.Lookup(scope); !ok {
				return p, fmt.Errorf("config: expectation scope %q is not a module of profile %s", scope, p.Name)
			}
		}
		if p.Expectations[i].OnMiss == "" {
			p.Expectations[i].OnMiss = schema.StatusWarn
		}
	}
	if c.Strict {
		p.StrictWarnings = true
	}
	return p, nil
}
