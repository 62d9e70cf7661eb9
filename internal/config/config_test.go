package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "taskdog_config_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cfg, err := Load(filepath.Join(tempDir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	def := DefaultConfig()
	if cfg.Optimization.DefaultAlgorithm != def.Optimization.DefaultAlgorithm {
		t.Errorf("expected default algorithm %q, got %q", def.Optimization.DefaultAlgorithm, cfg.Optimization.DefaultAlgorithm)
	}
	if cfg.Time.DefaultStartHour != def.Time.DefaultStartHour {
		t.Errorf("expected default start hour %d, got %d", def.Time.DefaultStartHour, cfg.Time.DefaultStartHour)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "taskdog_config_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := filepath.Join(tempDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Optimization.DefaultAlgorithm = "backward"
	cfg.Optimization.MaxHoursPerDay = 4.5
	cfg.Region.Country = "JP"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Optimization.DefaultAlgorithm != "backward" {
		t.Errorf("expected algorithm backward, got %s", loaded.Optimization.DefaultAlgorithm)
	}
	if loaded.Optimization.MaxHoursPerDay != 4.5 {
		t.Errorf("expected max hours 4.5, got %v", loaded.Optimization.MaxHoursPerDay)
	}
	if loaded.Region.Country != "JP" {
		t.Errorf("expected region JP, got %s", loaded.Region.Country)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "taskdog_config_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tempDir)

	path := filepath.Join(tempDir, "config.yaml")
	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	os.Setenv("TASKDOG_DEFAULT_ALGORITHM", "monte_carlo")
	os.Setenv("TASKDOG_MAX_HOURS_PER_DAY", "3.5")
	os.Setenv("TASKDOG_DEBUG", "true")
	defer func() {
		os.Unsetenv("TASKDOG_DEFAULT_ALGORITHM")
		os.Unsetenv("TASKDOG_MAX_HOURS_PER_DAY")
		os.Unsetenv("TASKDOG_DEBUG")
	}()

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Optimization.DefaultAlgorithm != "monte_carlo" {
		t.Errorf("expected env override monte_carlo, got %s", loaded.Optimization.DefaultAlgorithm)
	}
	if loaded.Optimization.MaxHoursPerDay != 3.5 {
		t.Errorf("expected env override 3.5, got %v", loaded.Optimization.MaxHoursPerDay)
	}
	if !loaded.Logging.DebugMode {
		t.Error("expected debug mode enabled via env override")
	}
}

func TestValidateRejectsBadHours(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Time.DefaultStartHour = 18
	cfg.Time.DefaultEndHour = 9

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for start hour after end hour")
	}
}

func TestValidateRejectsNonPositiveMaxHours(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Optimization.MaxHoursPerDay = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-positive max hours per day")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate cleanly, got %v", err)
	}
}
