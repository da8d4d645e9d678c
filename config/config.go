// Package config holds the service configuration and its YAML persistence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen        = "127.0.0.1:8080"
	defaultDatabase      = "lessons.db"
	defaultLogLevel      = LevelInfo
	defaultCacheSize     = 256
	defaultColor         = "#F5A3C8"
	defaultReminderCron  = "0 * * * *"
	defaultReminderHours = 24
)

// RemindersConfig controls the periodic upcoming-lesson reminder job.
type RemindersConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Cron is a standard 5-field schedule, e.g. "0 * * * *" for hourly.
	Cron string `yaml:"cron" json:"cron"`

	// HorizonHours is how far ahead each run looks.
	HorizonHours int `yaml:"horizon_hours" json:"horizon_hours"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Database is the SQLite file path. ":memory:" keeps everything in RAM.
	Database string `yaml:"database" json:"database"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// RosterCacheSize bounds the person lookup cache.
	RosterCacheSize int `yaml:"roster_cache_size" json:"roster_cache_size"`

	// DefaultColor is given to sessions booked without a color.
	DefaultColor string `yaml:"default_color" json:"default_color"`

	Reminders RemindersConfig `yaml:"reminders" json:"reminders"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Database:        defaultDatabase,
		LogLevel:        defaultLogLevel,
		CORSOrigins:     []string{"*"},
		RosterCacheSize: defaultCacheSize,
		DefaultColor:    defaultColor,
		Reminders: RemindersConfig{
			Enabled:      false,
			Cron:         defaultReminderCron,
			HorizonHours: defaultReminderHours,
		},
	}
}

// Normalize fills in missing or zero values so partially-filled files still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	switch strings.ToUpper(c.LogLevel) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		c.LogLevel = strings.ToUpper(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
	if c.RosterCacheSize <= 0 {
		c.RosterCacheSize = defaultCacheSize
	}
	if c.DefaultColor == "" {
		c.DefaultColor = defaultColor
	}
	if c.Reminders.Cron == "" {
		c.Reminders.Cron = defaultReminderCron
	}
	if c.Reminders.HorizonHours <= 0 {
		c.Reminders.HorizonHours = defaultReminderHours
	}
}

// Validate rejects values Normalize cannot repair.
func (c *Config) Validate() error {
	if c.Reminders.Enabled {
		if _, err := cron.ParseStandard(c.Reminders.Cron); err != nil {
			return fmt.Errorf("reminders.cron %q: %w", c.Reminders.Cron, err)
		}
	}
	return nil
}

// Load reads the YAML file at path. A missing file is created with the
// defaults (0600) and the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically through a temp file in the same
// directory.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".lesson-engine-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
