package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll(%q) error = %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%q) error = %v", path, err)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "DataDir", got: cfg.DataDir, want: ".rally"},
		{name: "TrackerHost", got: cfg.TrackerHost, want: "launchpad.net"},
		{name: "ReportsDir", got: cfg.ReportsDir, want: "reports"},
		{name: "ServerHost", got: cfg.ServerHost, want: "localhost"},
		{name: "ServerPort", got: cfg.ServerPort, want: 8080},
		{name: "LogLevel", got: cfg.LogLevel, want: "info"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("NewConfig().%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yml")
	writeFile(t, path, "trackerhost: bugs.example.org\nserverport: 9090\nloglevel: debug\n")

	cfg := NewConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.TrackerHost != "bugs.example.org" {
		t.Errorf("TrackerHost = %q, want %q", cfg.TrackerHost, "bugs.example.org")
	}
	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want 9090", cfg.ServerPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	// Untouched keys keep their defaults.
	if cfg.DataDir != ".rally" {
		t.Errorf("DataDir = %q, want default .rally", cfg.DataDir)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yml")
	writeFile(t, path, "trackerhost: [unterminated\n")

	if err := NewConfig().LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() error = nil, want parse failure")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RALLY_DATA_DIR", "/var/lib/rally")
	t.Setenv("RALLY_TRACKER_HOST", "bugs.example.org")
	t.Setenv("RALLY_REPORT_THEME", "dark")
	t.Setenv("RALLY_LOG_LEVEL", "debug")

	cfg := NewConfig()
	cfg.LoadFromEnv()

	if cfg.DataDir != "/var/lib/rally" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "/var/lib/rally")
	}
	if cfg.TrackerHost != "bugs.example.org" {
		t.Errorf("TrackerHost = %q, want %q", cfg.TrackerHost, "bugs.example.org")
	}
	if cfg.ThemePath != "dark" {
		t.Errorf("ThemePath = %q, want %q", cfg.ThemePath, "dark")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadFromEnvUnsetKeepsDefaults(t *testing.T) {
	t.Setenv("RALLY_DATA_DIR", "")
	t.Setenv("RALLY_TRACKER_HOST", "")

	cfg := NewConfig()
	cfg.LoadFromEnv()

	if cfg.DataDir != ".rally" || cfg.TrackerHost != "launchpad.net" {
		t.Errorf("config = %+v, want defaults preserved", cfg)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RALLY_TRACKER_HOST", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.TrackerHost != "launchpad.net" {
		t.Errorf("TrackerHost = %q, want default launchpad.net", cfg.TrackerHost)
	}
}

func TestLoadConfigFileDiscoveryOrder(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RALLY_TRACKER_HOST", "")
	writeFile(t, "rally-report.yml", "trackerhost: first.example.org\n")
	writeFile(t, "rally-report.yaml", "trackerhost: second.example.org\n")
	writeFile(t, filepath.Join(".rally", "report.yml"), "trackerhost: last.example.org\n")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.TrackerHost != "first.example.org" {
		t.Errorf("TrackerHost = %q, want the first candidate file to win", cfg.TrackerHost)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	chdir(t, t.TempDir())
	writeFile(t, "rally-report.yml", "trackerhost: file.example.org\ndatadir: /from/file\n")
	t.Setenv("RALLY_TRACKER_HOST", "env.example.org")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.TrackerHost != "env.example.org" {
		t.Errorf("TrackerHost = %q, want the environment to override the file", cfg.TrackerHost)
	}
	if cfg.DataDir != "/from/file" {
		t.Errorf("DataDir = %q, want /from/file", cfg.DataDir)
	}
}

// chdir changes into dir for the duration of the test, like t.Chdir in
// newer Go releases.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}
