package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all runtime configuration for the props engine.
type Config struct {
	Env      string `koanf:"env"`
	Port     string `koanf:"port"`
	LogLevel string `koanf:"log_level"`

	// Tabular exchange directories
	DataDir   string `koanf:"data_dir"`
	OutputDir string `koanf:"output_dir"`
	ModelDir  string `koanf:"model_dir"`

	// Feature builder windows (games)
	ShortWindow int `koanf:"short_window"`
	LongWindow  int `koanf:"long_window"`

	// Role clustering
	OffenseComponents int   `koanf:"offense_components"`
	DefenseComponents int   `koanf:"defense_components"`
	RandomSeed        int64 `koanf:"random_seed"`

	// Report smoothing (blend against previous run's offense probabilities)
	SmoothProbs    bool    `koanf:"smooth_probs"`
	SmoothingAlpha float64 `koanf:"smoothing_alpha"`

	// Suggestion engine pace thresholds
	PaceFastThresh float64 `koanf:"pace_fast_thresh"`
	PaceSlowThresh float64 `koanf:"pace_slow_thresh"`

	// Optional team filters applied to the lines batch
	TeamsInclude []string `koanf:"teams_include"`
	TeamsExclude []string `koanf:"teams_exclude"`

	// Optional redis cache
	RedisURL string        `koanf:"redis_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// Optional cron schedule for repeated runs in serve mode
	CronSpec string `koanf:"cron_spec"`
}

// Defaults returns a Config populated with league-typical defaults.
func Defaults() *Config {
	return &Config{
		Env:               "development",
		Port:              "8080",
		LogLevel:          "info",
		DataDir:           "./data",
		OutputDir:         "./out",
		ModelDir:          "./out/models/roles",
		ShortWindow:       10,
		LongWindow:        20,
		OffenseComponents: 5,
		DefenseComponents: 4,
		RandomSeed:        42,
		SmoothProbs:       false,
		SmoothingAlpha:    0.6,
		PaceFastThresh:    1.05,
		PaceSlowThresh:    0.95,
		CacheTTL:          6 * time.Hour,
	}
}

// LoadConfig builds a Config by layering defaults, an optional YAML file, and
// environment variables. Precedence (low -> high):
//  1. Defaults()
//  2. file (YAML) if PROPS_CONFIG is set
//  3. env (prefix PROPS_), e.g. PROPS_DATA_DIR, PROPS_OFFENSE_COMPONENTS
func LoadConfig() (*Config, error) {
	base := Defaults()

	k := koanf.New(".")

	if path := os.Getenv("PROPS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("PROPS_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "props_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first configuration value that cannot be used.
func (c *Config) Validate() error {
	if c.ShortWindow < 1 || c.LongWindow < 1 {
		return fmt.Errorf("window sizes must be positive (short=%d long=%d)", c.ShortWindow, c.LongWindow)
	}
	if c.OffenseComponents < 2 || c.DefenseComponents < 2 {
		return fmt.Errorf("component counts must be at least 2 (offense=%d defense=%d)", c.OffenseComponents, c.DefenseComponents)
	}
	if c.SmoothingAlpha < 0 || c.SmoothingAlpha > 1 {
		return fmt.Errorf("smoothing_alpha must be in [0,1], got %v", c.SmoothingAlpha)
	}
	if c.PaceSlowThresh > c.PaceFastThresh {
		return fmt.Errorf("pace_slow_thresh (%v) must not exceed pace_fast_thresh (%v)", c.PaceSlowThresh, c.PaceFastThresh)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Env) != "production"
}
