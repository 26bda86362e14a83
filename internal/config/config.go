// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type SchedulingConfig struct {
	// Defaults applied when a generate request omits duration or rest.
	DefaultDurationMinutes int64 `yaml:"default_duration_minutes"`
	DefaultRestMinutes     int64 `yaml:"default_rest_minutes"`
	// Cron expression for the division status refresh job.
	StatusRefreshCron string `yaml:"status_refresh_cron"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Scheduling SchedulingConfig `yaml:"scheduling"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scheduling.DefaultDurationMinutes == 0 {
		c.Scheduling.DefaultDurationMinutes = 30
	}
	if c.Scheduling.DefaultRestMinutes == 0 {
		c.Scheduling.DefaultRestMinutes = 5
	}
	if c.Scheduling.StatusRefreshCron == "" {
		c.Scheduling.StatusRefreshCron = "*/1 * * * *"
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}
	if c.Scheduling.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("default match duration must be positive")
	}
	if c.Scheduling.DefaultRestMinutes <= 0 {
		return fmt.Errorf("default rest period must be positive")
	}
	if _, err := cron.ParseStandard(c.Scheduling.StatusRefreshCron); err != nil {
		return fmt.Errorf("invalid status refresh cron expression: %w", err)
	}
	return nil
}
