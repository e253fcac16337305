package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseYAML(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		expectError string
		check       func(t *testing.T, c *ConfigData)
	}{
		{
			name: "empty file uses defaults",
			yaml: "",
			check: func(t *testing.T, c *ConfigData) {
				if c.Server.ListenAddr != DefaultListenAddr || c.Server.Port != DefaultPort {
					t.Errorf("unexpected server defaults: %+v", c.Server)
				}
				if c.Archive.Enabled() {
					t.Error("archive should be disabled by default")
				}
				if lo, hi := c.Estimation.Range(); lo != 0 || hi != 80 {
					t.Errorf("plausible range = [%v, %v], expected [0, 80]", lo, hi)
				}
			},
		},
		{
			name: "full config",
			yaml: `
server:
  listen-addr: 127.0.0.1
  port: 9090
archive:
  driver: sqlite
  dsn: /var/lib/iopestimator/reports.db
estimation:
  plausible-min: 2
  plausible-max: 60
`,
			check: func(t *testing.T, c *ConfigData) {
				if c.Server.ListenAddr != "127.0.0.1" || c.Server.Port != 9090 {
					t.Errorf("unexpected server config: %+v", c.Server)
				}
				if c.Archive.Driver != "sqlite" || c.Archive.DSN != "/var/lib/iopestimator/reports.db" {
					t.Errorf("unexpected archive config: %+v", c.Archive)
				}
				if lo, hi := c.Estimation.Range(); lo != 2 || hi != 60 {
					t.Errorf("plausible range = [%v, %v], expected [2, 60]", lo, hi)
				}
			},
		},
		{
			name: "explicit zero minimum is kept",
			yaml: "estimation:\n  plausible-min: 0\n  plausible-max: 50\n",
			check: func(t *testing.T, c *ConfigData) {
				if c.Estimation.PlausibleMin == nil || *c.Estimation.PlausibleMin != 0 {
					t.Errorf("expected explicit plausible-min of 0, got %v", c.Estimation.PlausibleMin)
				}
			},
		},
		{
			name:        "unknown driver",
			yaml:        "archive:\n  driver: influxdb\n  dsn: x\n",
			expectError: "unsupported archive driver",
		},
		{
			name:        "driver without dsn",
			yaml:        "archive:\n  driver: postgres\n",
			expectError: "archive.dsn is required",
		},
		{
			name:        "inverted range",
			yaml:        "estimation:\n  plausible-min: 50\n  plausible-max: 10\n",
			expectError: "must be below",
		},
		{
			name:        "unknown key",
			yaml:        "servr:\n  port: 1\n",
			expectError: "error parsing YAML config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseYAML([]byte(tt.yaml))
			if tt.expectError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.expectError) {
					t.Fatalf("expected error containing %q, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, c)
		})
	}
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8181\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var provider ConfigProvider = NewYAMLProvider(path)
	defer provider.Close()

	c, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if c.Server.Port != 8181 {
		t.Errorf("port = %d, expected 8181", c.Server.Port)
	}
	if !provider.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}

	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig(); err == nil {
		t.Error("expected an error for a missing file")
	}
}
