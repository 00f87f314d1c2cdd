package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AllDayBoundary selects which end-of-day convention marks an event as
// all-day. Events must start at local midnight in every mode.
type AllDayBoundary string

const (
	// BoundaryEither accepts both conventions below.
	BoundaryEither AllDayBoundary = "either"
	// BoundaryEndOfDay: ends at 23:59 or later on the start day.
	BoundaryEndOfDay AllDayBoundary = "end_of_day"
	// BoundaryNextMidnight: ends at 00:00 of a later day.
	BoundaryNextMidnight AllDayBoundary = "next_midnight"
)

// ColumnScope selects how TotalColumns is counted by the layout engine.
type ColumnScope string

const (
	// ScopeCluster counts columns per group of transitively overlapping events.
	ScopeCluster ColumnScope = "cluster"
	// ScopeDay counts every column opened on the day.
	ScopeDay ColumnScope = "day"
)

// GridConfig describes the booking slot grid.
type GridConfig struct {
	// FirstHour / LastHour bound the hours whose slots are generated
	// (inclusive), e.g. 8 and 22 yields 08:00 .. 22:30 at a 30 minute stride.
	FirstHour     int `yaml:"first_hour" json:"first_hour"`
	LastHour      int `yaml:"last_hour" json:"last_hour"`
	StrideMinutes int `yaml:"stride_minutes" json:"stride_minutes"`
}

// VisibleConfig is the baseline of hour rows every day view renders.
type VisibleConfig struct {
	FirstHour int `yaml:"first_hour" json:"first_hour"`
	LastHour  int `yaml:"last_hour" json:"last_hour"`
}

// RecurrenceConfig bounds series expansion.
type RecurrenceConfig struct {
	// MaxOccurrences rejects rules that would produce more instances.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as the tenant wall clock (e.g. "America/Sao_Paulo").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday starts week and month views:
	//   - "monday"
	//   - "sunday" (default)
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SweepCron is a cron-style schedule string (e.g. "*/10 * * * *") for
	// evicting idle snapshots and stale memoized views.
	SweepCron string `yaml:"sweep" json:"sweep"`

	// SnapshotMaxIdleMinutes is how long a tenant snapshot survives without use.
	SnapshotMaxIdleMinutes int `yaml:"snapshot_max_idle_minutes" json:"snapshot_max_idle_minutes"`

	Grid       GridConfig       `yaml:"grid" json:"grid"`
	Visible    VisibleConfig    `yaml:"visible" json:"visible"`
	Recurrence RecurrenceConfig `yaml:"recurrence" json:"recurrence"`

	AllDayBoundary AllDayBoundary `yaml:"all_day_boundary" json:"all_day_boundary"`
	ColumnScope    ColumnScope    `yaml:"column_scope" json:"column_scope"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "America/Sao_Paulo"
	defaultSweepCron      = "*/10 * * * *"
	defaultMaxIdleMinutes = 60
	defaultMaxOccurrences = 400
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "sunday"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SweepCron == "" {
		c.SweepCron = defaultSweepCron
	}
	if c.SnapshotMaxIdleMinutes <= 0 {
		c.SnapshotMaxIdleMinutes = defaultMaxIdleMinutes
	}

	if c.Grid.StrideMinutes <= 0 || c.Grid.StrideMinutes > 60 {
		c.Grid.StrideMinutes = 30
	}
	if !validHourRange(c.Grid.FirstHour, c.Grid.LastHour) || (c.Grid.FirstHour == 0 && c.Grid.LastHour == 0) {
		c.Grid.FirstHour, c.Grid.LastHour = 8, 22
	}
	if !validHourRange(c.Visible.FirstHour, c.Visible.LastHour) || (c.Visible.FirstHour == 0 && c.Visible.LastHour == 0) {
		c.Visible.FirstHour, c.Visible.LastHour = 8, 22
	}
	if c.Recurrence.MaxOccurrences <= 0 {
		c.Recurrence.MaxOccurrences = defaultMaxOccurrences
	}

	switch c.AllDayBoundary {
	case BoundaryEither, BoundaryEndOfDay, BoundaryNextMidnight:
	default:
		c.AllDayBoundary = BoundaryEither
	}
	switch c.ColumnScope {
	case ScopeCluster, ScopeDay:
	default:
		c.ColumnScope = ScopeCluster
	}
}

func validHourRange(first, last int) bool {
	return first >= 0 && last <= 23 && first <= last
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// WeekStartDay maps WeekStart to a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// SnapshotMaxIdle is SnapshotMaxIdleMinutes as a duration.
func (c *Config) SnapshotMaxIdle() time.Duration {
	return time.Duration(c.SnapshotMaxIdleMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
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

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory (0700) when needed.
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

	tmp, err := os.CreateTemp(dir, ".agendacal-config-*.tmp")
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

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
