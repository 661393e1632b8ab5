// Package config holds the settings of the report toolkit.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config holds the configuration for report generation and serving.
type Config struct {
	// DataDir is where the verification database lives.
	DataDir string
	// TrackerHost is the issue tracker substituted into skip-reason links.
	TrackerHost string
	// JSONTimeFormat and HTMLTimeFormat override the timestamp layouts used
	// by the respective report variants; empty means the built-in defaults.
	JSONTimeFormat string
	HTMLTimeFormat string
	// ThemePath optionally names a directory of replacement report assets.
	ThemePath string
	// ReportsDir is served by the report server and is the default home of
	// written reports.
	ReportsDir string

	// Server settings.
	ServerHost string
	ServerPort int

	LogLevel string
}

// NewConfig creates a configuration with default values.
func NewConfig() *Config {
	return &Config{
		DataDir:     ".rally",
		TrackerHost: "launchpad.net",
		ReportsDir:  "reports",
		ServerHost:  "localhost",
		ServerPort:  8080,
		LogLevel:    "info",
	}
}

// LoadConfig loads configuration from the first config file found, then
// applies environment overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	cfg := NewConfig()

	configPaths := []string{
		"rally-report.yml",
		"rally-report.yaml",
		"rally-report.json",
		".rally/report.yml",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.LoadFromFile(path); err != nil {
				return nil, err
			}
			break
		}
	}

	cfg.LoadFromEnv()
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func (c *Config) LoadFromFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(c)
}

// LoadFromEnv applies environment variable overrides.
func (c *Config) LoadFromEnv() {
	if dir := os.Getenv("RALLY_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if host := os.Getenv("RALLY_TRACKER_HOST"); host != "" {
		c.TrackerHost = host
	}
	if theme := os.Getenv("RALLY_REPORT_THEME"); theme != "" {
		c.ThemePath = theme
	}
	if level := os.Getenv("RALLY_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
