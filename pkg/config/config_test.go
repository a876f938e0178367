package config

import (
	"errors"
	"testing"
	"time"

	gserrors "github.com/geosync/geosync/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Source.BaseURL != "https://download.geonames.org/export/dump" {
		t.Errorf("unexpected base URL %q", cfg.Source.BaseURL)
	}
	if cfg.Source.Chunks.AllCountries != 25000 {
		t.Errorf("allCountries chunk = %d, want 25000", cfg.Source.Chunks.AllCountries)
	}
	if cfg.Source.Chunks.AlternateNames != 50000 {
		t.Errorf("alternateNames chunk = %d, want 50000", cfg.Source.Chunks.AlternateNames)
	}
	if cfg.Source.Chunks.Hierarchy != 250000 {
		t.Errorf("hierarchy chunk = %d, want 250000", cfg.Source.Chunks.Hierarchy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.Source.DataDir = "" }},
		{"empty base url", func(c *Config) { c.Source.BaseURL = "" }},
		{"empty database", func(c *Config) { c.Storage.Database = "" }},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tt.name)
			continue
		}
		var e *gserrors.Error
		if !errors.As(err, &e) || e.Code != gserrors.CodeConfigInvalid {
			t.Errorf("%s: err = %v, want CodeConfigInvalid", tt.name, err)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEOSYNC_BASE_URL", "http://mirror.example.org/dump")
	t.Setenv("GEOSYNC_DATA_DIR", "/srv/geosync")
	t.Setenv("GEOSYNC_WATCH_INTERVAL", "30m")

	mgr := NewManager()
	if err := mgr.Load(); err != nil {
		t.Fatal(err)
	}

	cfg := mgr.Get()
	if cfg.Source.BaseURL != "http://mirror.example.org/dump" {
		t.Errorf("base URL not overridden: %q", cfg.Source.BaseURL)
	}
	if cfg.Source.DataDir != "/srv/geosync" {
		t.Errorf("data dir not overridden: %q", cfg.Source.DataDir)
	}
	if cfg.Watch.Interval != 30*time.Minute {
		t.Errorf("interval not overridden: %v", cfg.Watch.Interval)
	}
}
