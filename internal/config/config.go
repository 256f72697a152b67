package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultCleanupGraceHours       = 5
	defaultSoftDeleteRetentionDays = 30
)

// Config represents the application configuration
type Config struct {
	DatabaseURL string `yaml:"databaseURL" validate:"required"`

	// SMS gateway for reservation confirmations. Optional: with no gateway
	// configured, reservations still commit and no messages are sent.
	SMSGatewayURL string `yaml:"smsGatewayURL,omitempty" validate:"omitempty,url"`
	SMSAPIKey     string `yaml:"smsAPIKey,omitempty"`
	SMSSender     string `yaml:"smsSender,omitempty"`

	// CleanupSchedule is the rrule the external scheduler is expected to
	// fire runCleanup on (e.g. "FREQ=HOURLY;INTERVAL=1"). Validated at load;
	// used to report the next scheduled run.
	CleanupSchedule string `yaml:"cleanupSchedule,omitempty"`

	CleanupGraceHours       int `yaml:"cleanupGraceHours,omitempty" validate:"omitempty,min=1"`
	SoftDeleteRetentionDays int `yaml:"softDeleteRetentionDays,omitempty" validate:"omitempty,min=1"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration for the given
// environment, looking for eventroster_<env>.yaml in the current directory
// and then the user's home directory. A .env file, if present, and the
// EVENTROSTER_DATABASE_URL variable override the database URL so
// credentials stay out of the config file.
func LoadWithEnv(env string) (*Config, error) {
	// Best effort; the .env file is optional
	godotenv.Load()

	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if dbURL := os.Getenv("EVENTROSTER_DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.CleanupGraceHours == 0 {
		cfg.CleanupGraceHours = defaultCleanupGraceHours
	}
	if cfg.SoftDeleteRetentionDays == 0 {
		cfg.SoftDeleteRetentionDays = defaultSoftDeleteRetentionDays
	}
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.CleanupSchedule != "" {
		if _, err := rrule.StrToRRule(cfg.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid rrule in cleanupSchedule: %w", err)
		}
	}

	return nil
}

// CleanupGrace returns how long after an event ends before its no-shows are
// processed.
func (c *Config) CleanupGrace() time.Duration {
	return time.Duration(c.CleanupGraceHours) * time.Hour
}

// SoftDeleteRetention returns how long soft-deleted events stay recoverable
func (c *Config) SoftDeleteRetention() time.Duration {
	return time.Duration(c.SoftDeleteRetentionDays) * 24 * time.Hour
}

// NextCleanupRun returns the next scheduled cleanup occurrence after the
// given time, or the zero time when no schedule is configured.
func (c *Config) NextCleanupRun(after time.Time) time.Time {
	if c.CleanupSchedule == "" {
		return time.Time{}
	}
	rule, err := rrule.StrToRRule(c.CleanupSchedule)
	if err != nil {
		// Unreachable after Validate; treat as unscheduled
		return time.Time{}
	}
	rule.DTStart(after)
	return rule.After(after, false)
}

// findConfigFile searches for eventroster_<env>.yaml in the current
// directory and then the home directory.
func findConfigFile(env string) (string, error) {
	configFileName := fmt.Sprintf("eventroster_%s.yaml", env)

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", configFileName)
}
