package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/config"
)

const minimalYAML = `
version: "1"
boundaries:
  - id: pasture-main
    name: Main Pasture
    active: true
    coordinates:
      - [117.42, -8.48]
      - [117.43, -8.48]
      - [117.43, -8.47]
      - [117.42, -8.47]
entities:
  - id: SAPI-001
    name: Bima
    health: healthy
    lng: 117.425
    lat: -8.475
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoader_DefaultsApplied(t *testing.T) {
	l, err := config.NewLoader(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()

	if cfg.Engine.SampleQueueDepth != 4096 {
		t.Errorf("SampleQueueDepth = %d, want 4096", cfg.Engine.SampleQueueDepth)
	}
	if cfg.Alerts.MaxNotifications != 100 || cfg.Alerts.DefaultExpirySeconds != 30 {
		t.Errorf("alert defaults = %d/%d", cfg.Alerts.MaxNotifications, cfg.Alerts.DefaultExpirySeconds)
	}
	if cfg.Hub.SendQueueSize != 256 || cfg.Hub.PingPeriodSeconds != 20 || cfg.Hub.MissedPings != 3 {
		t.Errorf("hub defaults = %+v", cfg.Hub)
	}
	if cfg.Feed.MQTT.Topic != "ranch/+/position" {
		t.Errorf("mqtt topic default = %q", cfg.Feed.MQTT.Topic)
	}
	if len(cfg.Boundaries) != 1 || cfg.Boundaries[0].ID != "pasture-main" {
		t.Errorf("boundaries = %+v", cfg.Boundaries)
	}
}

func TestLoader_MissingOrMalformedFile(t *testing.T) {
	if _, err := config.NewLoader(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := config.NewLoader(writeConfig(t, ":\nnot yaml: [")); err == nil {
		t.Error("malformed yaml should fail")
	}
}

func TestLoader_Reload(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	l, err := config.NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	var gotVersion string
	l.OnChange(func(cfg *config.RanchConfig) { gotVersion = cfg.Version })

	updated := strings.Replace(minimalYAML, `version: "1"`, `version: "2"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := l.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cfg.Version != "2" || l.Config().Version != "2" {
		t.Errorf("reload did not pick up new version: %s", cfg.Version)
	}
	if gotVersion != "2" {
		t.Errorf("OnChange callback saw version %q, want 2", gotVersion)
	}
}

func TestValidate(t *testing.T) {
	l, err := config.NewLoader(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}
	if err := config.Validate(l.Config()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.RanchConfig)
		wantSub string
	}{
		{
			"missing version",
			func(c *config.RanchConfig) { c.Version = "" },
			"version is required",
		},
		{
			"duplicate id across kinds",
			func(c *config.RanchConfig) {
				c.Entities = append(c.Entities, config.EntitySeed{ID: "pasture-main", Name: "dup", Lng: 117, Lat: -8})
			},
			"duplicate id",
		},
		{
			"too few vertices",
			func(c *config.RanchConfig) {
				c.Boundaries[0].Coordinates = c.Boundaries[0].Coordinates[:2]
			},
			"at least 3 vertices",
		},
		{
			"vertex out of range",
			func(c *config.RanchConfig) {
				c.Boundaries[0].Coordinates[0] = [2]float64{200, 0}
			},
			"longitude",
		},
		{
			"entity latitude out of range",
			func(c *config.RanchConfig) { c.Entities[0].Lat = -120 },
			"latitude",
		},
		{
			"inverted simulator interval",
			func(c *config.RanchConfig) {
				c.Feed.Simulator.MinIntervalMs = 5000
				c.Feed.Simulator.MaxIntervalMs = 1000
			},
			"min_interval_ms",
		},
		{
			"escape chance out of range",
			func(c *config.RanchConfig) { c.Feed.Simulator.EscapeChance = 1.5 },
			"escape_chance",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := config.NewLoader(writeConfig(t, minimalYAML))
			if err != nil {
				t.Fatal(err)
			}
			cfg := l.Config()
			tc.mutate(cfg)
			err = config.Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}
