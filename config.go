package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/borgmon/pester/pkg/models"
)

// Config is the daemon configuration, stored as YAML.
type Config struct {
	AutoStart bool `yaml:"auto_start"`

	// DBPath is the bbolt database holding events and stop flags.
	// Empty means <config dir>/pester.db.
	DBPath string `yaml:"db_path"`

	// NagIntervalSec is how often an active campaign re-fires.
	NagIntervalSec int `yaml:"nag_interval_sec"`

	// WatchIntervalSec is how often the due-event watcher scans today.
	WatchIntervalSec int `yaml:"watch_interval_sec"`

	// MaxAlarmMinutes caps campaigns for events without an end time.
	MaxAlarmMinutes int `yaml:"max_alarm_minutes"`

	// RepeatOccurrences is how many future instances of a repeating
	// event get scheduled notifications.
	RepeatOccurrences int `yaml:"repeat_occurrences"`

	// SyncIntervalMin is how often iCal sources are re-imported.
	SyncIntervalMin int `yaml:"sync_interval_min"`

	// HorizonDays bounds recurring-event expansion during import.
	HorizonDays int `yaml:"horizon_days"`

	// HoldTimeSeconds is how long the stop button must be held.
	HoldTimeSeconds int `yaml:"hold_time_seconds"`

	// ChimePath is an optional WAV file played on each nag fire.
	ChimePath string `yaml:"chime_path"`

	ICalSources []models.ICalSource `yaml:"ical_sources"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		NagIntervalSec:    5,
		WatchIntervalSec:  5,
		MaxAlarmMinutes:   5,
		RepeatOccurrences: 10,
		SyncIntervalMin:   30,
		HorizonDays:       60,
		HoldTimeSeconds:   3,
		ICalSources:       []models.ICalSource{},
	}
}

// Normalize fills in missing/zero values so partially-filled configs from
// older versions still behave.
func (c *Config) Normalize() {
	if c.NagIntervalSec <= 0 {
		c.NagIntervalSec = 5
	}
	if c.WatchIntervalSec <= 0 {
		c.WatchIntervalSec = 5
	}
	if c.MaxAlarmMinutes <= 0 {
		c.MaxAlarmMinutes = 5
	}
	if c.RepeatOccurrences <= 0 {
		c.RepeatOccurrences = 10
	}
	if c.SyncIntervalMin <= 0 {
		c.SyncIntervalMin = 30
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 60
	}
	if c.HoldTimeSeconds <= 0 {
		c.HoldTimeSeconds = 3
	}
	if c.ICalSources == nil {
		c.ICalSources = []models.ICalSource{}
	}
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pester", "config.yaml"), nil
}

// LoadConfig loads the YAML config, creating a default file on first run.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := SaveConfig(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// SaveConfig writes the config atomically (temp file + rename, 0600).
func SaveConfig(path string, cfg *Config) error {
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pester-config-*.tmp")
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
