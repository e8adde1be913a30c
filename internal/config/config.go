package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/emmett/pingpong/internal/audio"
	"github.com/emmett/pingpong/internal/direction"
	"github.com/emmett/pingpong/internal/dsp"
	"github.com/emmett/pingpong/internal/game"
	"github.com/emmett/pingpong/internal/segment"
)

// EnvPrefix prefixes environment overrides, e.g. PINGPONG_GAME_EVENT_TIMEOUT=3s
const EnvPrefix = "PINGPONG"

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	// Audio settings
	Audio struct {
		SampleRate  int           `yaml:"sample_rate" mapstructure:"sample_rate"`
		Channels    int           `yaml:"channels" mapstructure:"channels"`
		BlockLen    int           `yaml:"block_len" mapstructure:"block_len"`
		Device      string        `yaml:"device" mapstructure:"device"`
		Source      string        `yaml:"source" mapstructure:"source"`
		Realtime    bool          `yaml:"realtime" mapstructure:"realtime"`
		RecordFile  string        `yaml:"record_file" mapstructure:"record_file"`
		ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	} `yaml:"audio" mapstructure:"audio"`

	// Band-pass filter settings
	Filter struct {
		Type     string  `yaml:"type" mapstructure:"type"`
		Order    int     `yaml:"order" mapstructure:"order"`
		RippleDB float64 `yaml:"ripple_db" mapstructure:"ripple_db"`
		Low      float64 `yaml:"low_hz" mapstructure:"low_hz"`
		High     float64 `yaml:"high_hz" mapstructure:"high_hz"`
	} `yaml:"filter" mapstructure:"filter"`

	// Segmentation settings
	Segment struct {
		WindowLen     int     `yaml:"window_len" mapstructure:"window_len"`
		EnergyThresh  float64 `yaml:"energy_thresh" mapstructure:"energy_thresh"`
		BufferSeconds float64 `yaml:"buffer_seconds" mapstructure:"buffer_seconds"`
		Padding       int     `yaml:"padding" mapstructure:"padding"`
	} `yaml:"segment" mapstructure:"segment"`

	// Hit detection settings
	Detect struct {
		MeanEnergyMin  float64 `yaml:"mean_energy_min" mapstructure:"mean_energy_min"`
		Technique      string  `yaml:"technique" mapstructure:"technique"`
		MicSeparationM float64 `yaml:"mic_separation_m" mapstructure:"mic_separation_m"`
		SpeedOfSound   float64 `yaml:"speed_of_sound" mapstructure:"speed_of_sound"`
		Polarity       int     `yaml:"polarity" mapstructure:"polarity"`
	} `yaml:"detect" mapstructure:"detect"`

	// Game settings
	Game struct {
		ServeTimeout     time.Duration `yaml:"serve_timeout" mapstructure:"serve_timeout"`
		EventTimeout     time.Duration `yaml:"event_timeout" mapstructure:"event_timeout"`
		PostScoreTimeout time.Duration `yaml:"post_score_timeout" mapstructure:"post_score_timeout"`
		PointsToWin      int           `yaml:"points_to_win" mapstructure:"points_to_win"`
		WinBy            int           `yaml:"win_by" mapstructure:"win_by"`
		Player1          string        `yaml:"player1" mapstructure:"player1"`
		Player2          string        `yaml:"player2" mapstructure:"player2"`
		Player1Side      string        `yaml:"player1_side" mapstructure:"player1_side"`
		AskNames         bool          `yaml:"ask_names" mapstructure:"ask_names"`
		Calibrate        bool          `yaml:"calibrate" mapstructure:"calibrate"`
	} `yaml:"game" mapstructure:"game"`

	// Logging settings
	Log struct {
		Level string `yaml:"level" mapstructure:"level"`
		File  string `yaml:"file" mapstructure:"file"`
	} `yaml:"log" mapstructure:"log"`

	// Prometheus metrics endpoint
	Metrics struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Addr    string `yaml:"addr" mapstructure:"addr"`
	} `yaml:"metrics" mapstructure:"metrics"`

	// gRPC scoreboard server
	GRPC struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Host    string `yaml:"host" mapstructure:"host"`
		Port    int    `yaml:"port" mapstructure:"port"`
	} `yaml:"grpc" mapstructure:"grpc"`

	// MCP scoreboard server
	MCP struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Addr    string `yaml:"addr" mapstructure:"addr"`
	} `yaml:"mcp" mapstructure:"mcp"`

	// MQTT score publishing
	MQTT struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Broker   string `yaml:"broker" mapstructure:"broker"`
		ClientID string `yaml:"client_id" mapstructure:"client_id"`
		Username string `yaml:"username" mapstructure:"username"`
		Password string `yaml:"password" mapstructure:"password"`
		Topic    string `yaml:"topic" mapstructure:"topic"`
	} `yaml:"mqtt" mapstructure:"mqtt"`

	// Global hotkeys
	Hotkeys struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Pause   string `yaml:"pause" mapstructure:"pause"`
		Quit    string `yaml:"quit" mapstructure:"quit"`
		P1Up    string `yaml:"p1_up" mapstructure:"p1_up"`
		P1Down  string `yaml:"p1_down" mapstructure:"p1_down"`
		P2Up    string `yaml:"p2_up" mapstructure:"p2_up"`
		P2Down  string `yaml:"p2_down" mapstructure:"p2_down"`
	} `yaml:"hotkeys" mapstructure:"hotkeys"`

	// Output settings
	Output struct {
		EventsFile    string `yaml:"events_file" mapstructure:"events_file"`
		CapturesFile  string `yaml:"captures_file" mapstructure:"captures_file"`
		ShowTimestamp bool   `yaml:"show_timestamp" mapstructure:"show_timestamp"`
	} `yaml:"output" mapstructure:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Audio defaults
	cfg.Audio.SampleRate = 48000
	cfg.Audio.Channels = 2
	cfg.Audio.BlockLen = 480
	cfg.Audio.Realtime = true
	cfg.Audio.ReadTimeout = 2 * time.Second

	// Filter defaults
	spec := dsp.DefaultFilterSpec()
	cfg.Filter.Type = string(spec.Type)
	cfg.Filter.Order = spec.Order
	cfg.Filter.RippleDB = spec.RippleDB
	cfg.Filter.Low = spec.Low
	cfg.Filter.High = spec.High

	// Segmentation defaults
	cfg.Segment.WindowLen = 480
	cfg.Segment.EnergyThresh = 50
	cfg.Segment.BufferSeconds = 5
	cfg.Segment.Padding = 50

	// Detection defaults
	cfg.Detect.MeanEnergyMin = 80
	cfg.Detect.Technique = direction.Beamforming.String()
	cfg.Detect.MicSeparationM = 0.127
	cfg.Detect.SpeedOfSound = 340
	cfg.Detect.Polarity = -1

	// Game defaults
	cfg.Game.ServeTimeout = 120 * time.Second
	cfg.Game.EventTimeout = 2 * time.Second
	cfg.Game.PostScoreTimeout = 0
	cfg.Game.PointsToWin = 21
	cfg.Game.WinBy = 2
	cfg.Game.Player1 = "Player 1"
	cfg.Game.Player2 = "Player 2"
	cfg.Game.Player1Side = "left"
	cfg.Game.AskNames = false
	cfg.Game.Calibrate = true

	// Logging defaults
	cfg.Log.Level = "info"

	// Server defaults
	cfg.Metrics.Addr = ":9464"
	cfg.GRPC.Host = "localhost"
	cfg.GRPC.Port = 50051
	cfg.MCP.Addr = "localhost:8808"

	// MQTT defaults
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "pingpong"
	cfg.MQTT.Topic = "pingpong/score"

	// Hotkey defaults
	cfg.Hotkeys.Pause = "ctrl+shift+p"
	cfg.Hotkeys.Quit = "ctrl+shift+q"
	cfg.Hotkeys.P1Up = "ctrl+shift+1"
	cfg.Hotkeys.P1Down = "ctrl+alt+1"
	cfg.Hotkeys.P2Up = "ctrl+shift+2"
	cfg.Hotkeys.P2Down = "ctrl+alt+2"

	// Output defaults
	cfg.Output.ShowTimestamp = true

	return cfg
}

// Load loads configuration from file. Defaults are seeded first, the file is
// merged over them and PINGPONG_* environment variables override both. A .env
// file in the working directory is loaded into the environment beforehand.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to seed defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.pingpongrc > /etc/pingpong/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.pingpongrc)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".pingpongrc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// Try system config (/etc/pingpong/config.yaml)
	systemConfigPath := "/etc/pingpong/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, defaults plus environment
	return Load("")
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports the first configuration error found
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalid)
	}
	if c.Audio.Channels != 2 {
		return fmt.Errorf("%w: %w", ErrInvalid, audio.ErrUnsupportedChannels)
	}
	if c.Audio.BlockLen <= 0 || c.Segment.WindowLen <= 0 || c.Audio.BlockLen%c.Segment.WindowLen != 0 {
		return fmt.Errorf("%w: block length %d must be a positive multiple of the window length %d",
			ErrInvalid, c.Audio.BlockLen, c.Segment.WindowLen)
	}
	if err := c.SegmentConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.FilterSpec().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Detect.Polarity != 1 && c.Detect.Polarity != -1 {
		return fmt.Errorf("%w: polarity must be 1 or -1, got %d", ErrInvalid, c.Detect.Polarity)
	}
	if c.Detect.MeanEnergyMin < 0 {
		return fmt.Errorf("%w: mean energy minimum must not be negative", ErrInvalid)
	}
	if _, err := direction.ParseTechnique(c.Detect.Technique); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.MaxDelay(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Game.PointsToWin <= 0 || c.Game.WinBy <= 0 {
		return fmt.Errorf("%w: points to win and win-by must be positive", ErrInvalid)
	}
	if c.Game.ServeTimeout <= 0 || c.Game.EventTimeout <= 0 || c.Game.PostScoreTimeout < 0 {
		return fmt.Errorf("%w: serve and event timeouts must be positive", ErrInvalid)
	}
	if _, err := c.Player1Side(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		return fmt.Errorf("%w: mqtt needs a broker and a topic", ErrInvalid)
	}
	return nil
}

// FilterSpec returns the band-pass design for the configured stream
func (c *Config) FilterSpec() dsp.FilterSpec {
	return dsp.FilterSpec{
		Type:       dsp.FilterType(c.Filter.Type),
		Order:      c.Filter.Order,
		RippleDB:   c.Filter.RippleDB,
		Low:        c.Filter.Low,
		High:       c.Filter.High,
		SampleRate: float64(c.Audio.SampleRate),
	}
}

// SegmentConfig returns the segmentation parameters in samples
func (c *Config) SegmentConfig() segment.Config {
	return segment.Config{
		WindowLen:     c.Segment.WindowLen,
		EnergyThresh:  c.Segment.EnergyThresh,
		MaxCaptureLen: int(c.Segment.BufferSeconds * float64(c.Audio.SampleRate)),
		Padding:       c.Segment.Padding,
	}
}

// SourceConfig returns the capture device settings
func (c *Config) SourceConfig() audio.SourceConfig {
	sc := audio.DefaultSourceConfig()
	sc.SampleRate = uint32(c.Audio.SampleRate)
	sc.Channels = uint32(c.Audio.Channels)
	sc.BlockFrames = uint32(c.Audio.BlockLen)
	sc.Device = c.Audio.Device
	if c.Audio.ReadTimeout > 0 {
		sc.ReadTimeout = c.Audio.ReadTimeout
	}
	return sc
}

// Technique returns the parsed direction technique
func (c *Config) Technique() (direction.Technique, error) {
	return direction.ParseTechnique(c.Detect.Technique)
}

// MaxDelay returns the largest physical inter-microphone delay in samples
func (c *Config) MaxDelay() (int, error) {
	return direction.MaxDelay(c.Detect.MicSeparationM, c.Detect.SpeedOfSound, float64(c.Audio.SampleRate))
}

// Player1Side returns where player one stands when calibration is skipped
func (c *Config) Player1Side() (direction.Side, error) {
	switch strings.ToLower(c.Game.Player1Side) {
	case "left":
		return direction.SideLeft, nil
	case "right":
		return direction.SideRight, nil
	default:
		return direction.SideUnset, fmt.Errorf("player1_side must be left or right, got %q", c.Game.Player1Side)
	}
}

// Rules returns the win condition
func (c *Config) Rules() game.Rules {
	return game.Rules{PointsToWin: c.Game.PointsToWin, WinBy: c.Game.WinBy}
}
