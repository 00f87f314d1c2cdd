package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvListen   = "AGENDACAL_LISTEN"
	EnvTimezone = "AGENDACAL_TIMEZONE"
	EnvLogLevel = "AGENDACAL_LOG_LEVEL"
)

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overwriting variables already set. Missing files are
// ignored; it reports how many files were loaded.
func LoadDotEnv(files ...string) int {
	if len(files) == 0 {
		files = []string{".env"}
	}
	loaded := 0
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err == nil {
			loaded++
		}
	}
	return loaded
}

// ApplyEnv overlays AGENDACAL_* variables on the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	c.Normalize()
}
