package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emmett/pingpong/internal/direction"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	d, err := cfg.MaxDelay()
	if err != nil || d != 17 {
		t.Errorf("MaxDelay() = %d, %v, want 17", d, err)
	}
	if got := cfg.SegmentConfig().MaxCaptureLen; got != 240000 {
		t.Errorf("MaxCaptureLen = %d, want 240000", got)
	}
	if tech, _ := cfg.Technique(); tech != direction.Beamforming {
		t.Errorf("Technique() = %v, want beamforming", tech)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
detect:
  technique: xcorr
  polarity: 1
game:
  event_timeout: 3s
  player1: alice
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Detect.Technique != "xcorr" || cfg.Detect.Polarity != 1 {
		t.Errorf("detect = %+v", cfg.Detect)
	}
	if cfg.Game.EventTimeout != 3*time.Second {
		t.Errorf("EventTimeout = %v, want 3s", cfg.Game.EventTimeout)
	}
	if cfg.Game.Player1 != "alice" || cfg.Game.Player2 != "Player 2" {
		t.Errorf("players = %q, %q", cfg.Game.Player1, cfg.Game.Player2)
	}
	// untouched sections keep their defaults
	if cfg.Game.ServeTimeout != 120*time.Second || cfg.Segment.WindowLen != 480 {
		t.Errorf("defaults lost: serve %v window %d", cfg.Game.ServeTimeout, cfg.Segment.WindowLen)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PINGPONG_GAME_POINTS_TO_WIN", "11")
	t.Setenv("PINGPONG_MQTT_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game.PointsToWin != 11 {
		t.Errorf("PointsToWin = %d, want 11", cfg.Game.PointsToWin)
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled not overridden")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Game.Player2 = "bob"
	cfg.Game.PostScoreTimeout = 1500 * time.Millisecond
	cfg.Filter.Type = "butter"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Game.Player2 != "bob" || loaded.Game.PostScoreTimeout != 1500*time.Millisecond || loaded.Filter.Type != "butter" {
		t.Errorf("loaded = %+v %+v", loaded.Game, loaded.Filter)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"mono", func(c *Config) { c.Audio.Channels = 1 }},
		{"block not a multiple of window", func(c *Config) { c.Audio.BlockLen = 500 }},
		{"padding larger than window", func(c *Config) { c.Segment.Padding = 481 }},
		{"buffer too small", func(c *Config) { c.Segment.BufferSeconds = 0.01 }},
		{"band above nyquist", func(c *Config) { c.Filter.High = 30000 }},
		{"bad polarity", func(c *Config) { c.Detect.Polarity = 0 }},
		{"unknown technique", func(c *Config) { c.Detect.Technique = "music" }},
		{"mics too close", func(c *Config) { c.Detect.MicSeparationM = 0.001 }},
		{"no points", func(c *Config) { c.Game.PointsToWin = 0 }},
		{"no event timeout", func(c *Config) { c.Game.EventTimeout = 0 }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestDegenerateGeometryIsDetectable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detect.MicSeparationM = 0.001
	if err := cfg.Validate(); !errors.Is(err, direction.ErrDegenerateGeometry) {
		t.Errorf("Validate() = %v, want ErrDegenerateGeometry", err)
	}
}
