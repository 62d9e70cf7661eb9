// Package config loads taskdog's configuration from a YAML file, applying
// environment variable overrides and sensible defaults when no file is
// present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"taskdog/internal/logging"
)

// TimeConfig controls the default workday window used by the allocation
// primitives when a task doesn't pin its own schedule.
type TimeConfig struct {
	DefaultStartHour int `yaml:"default_start_hour"`
	DefaultEndHour   int `yaml:"default_end_hour"`
}

// RegionConfig selects the holiday set used by the weekday/holiday
// predicate.
type RegionConfig struct {
	Country string `yaml:"country"`
}

// TaskConfig holds defaults applied to newly created tasks.
type TaskConfig struct {
	DefaultPriority int `yaml:"default_priority"`
}

// OptimizationConfig holds defaults for the scheduling core.
type OptimizationConfig struct {
	DefaultAlgorithm string  `yaml:"default_algorithm"`
	MaxHoursPerDay   float64 `yaml:"max_hours_per_day"`
}

// DatabaseConfig points at the sqlite file backing the repository.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds the logging section of config.yaml. The category
// file logger in internal/logging does not read it; that logger takes
// its settings from .taskdog/config.json.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// Config holds all taskdog configuration.
type Config struct {
	Time         TimeConfig         `yaml:"time"`
	Region       RegionConfig       `yaml:"region"`
	Task         TaskConfig         `yaml:"task"`
	Optimization OptimizationConfig `yaml:"optimization"`
	Database     DatabaseConfig     `yaml:"database"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DefaultConfig returns taskdog's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Time: TimeConfig{
			DefaultStartHour: 9,
			DefaultEndHour:   18,
		},
		Region: RegionConfig{
			Country: "",
		},
		Task: TaskConfig{
			DefaultPriority: 50,
		},
		Optimization: OptimizationConfig{
			DefaultAlgorithm: "greedy",
			MaxHoursPerDay:   6.0,
		},
		Database: DatabaseConfig{
			Path: "data/taskdog.db",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file, returning defaults if the
// file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: algorithm=%s max_hours_per_day=%.2f", cfg.Optimization.DefaultAlgorithm, cfg.Optimization.MaxHoursPerDay)
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides on top of
// whatever was loaded from file or defaulted.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TASKDOG_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TASKDOG_REGION"); v != "" {
		c.Region.Country = v
	}
	if v := os.Getenv("TASKDOG_DEFAULT_ALGORITHM"); v != "" {
		c.Optimization.DefaultAlgorithm = v
	}
	if v := os.Getenv("TASKDOG_MAX_HOURS_PER_DAY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Optimization.MaxHoursPerDay = f
		}
	}
	if v := os.Getenv("TASKDOG_DEFAULT_PRIORITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Task.DefaultPriority = n
		}
	}
	if v := os.Getenv("TASKDOG_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("TASKDOG_START_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Time.DefaultStartHour = n
		}
	}
	if v := os.Getenv("TASKDOG_END_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Time.DefaultEndHour = n
		}
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Time.DefaultStartHour < 0 || c.Time.DefaultStartHour > 23 {
		return fmt.Errorf("time.default_start_hour out of range 0-23: %d", c.Time.DefaultStartHour)
	}
	if c.Time.DefaultEndHour < 0 || c.Time.DefaultEndHour > 23 {
		return fmt.Errorf("time.default_end_hour out of range 0-23: %d", c.Time.DefaultEndHour)
	}
	if c.Time.DefaultStartHour >= c.Time.DefaultEndHour {
		return fmt.Errorf("time.default_start_hour (%d) must be before default_end_hour (%d)", c.Time.DefaultStartHour, c.Time.DefaultEndHour)
	}
	if c.Task.DefaultPriority <= 0 {
		return fmt.Errorf("task.default_priority must be positive: %d", c.Task.DefaultPriority)
	}
	if c.Optimization.MaxHoursPerDay <= 0 {
		return fmt.Errorf("optimization.max_hours_per_day must be positive: %f", c.Optimization.MaxHoursPerDay)
	}
	return nil
}

// DefaultStartTime returns the configured start-of-day as a time.Duration
// offset from midnight, handy for combining with a calendar date.
func (c *Config) DefaultStartTime() time.Duration {
	return time.Duration(c.Time.DefaultStartHour) * time.Hour
}

// DefaultEndTime returns the configured end-of-day as a time.Duration
// offset from midnight.
func (c *Config) DefaultEndTime() time.Duration {
	return time.Duration(c.Time.DefaultEndHour) * time.Hour
}
