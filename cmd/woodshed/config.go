package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the woodshed daemon.
//
// Design goals:
// - Make the config file the primary configuration surface.
// - Keep flags for small overrides and for environments where a file is awkward.
// - Centralize defaults and validation so the rest of the code can assume a
//   well-formed config.
type Config struct {
	// Audio output configuration
	Audio AudioConfig `yaml:"audio"`

	// Waveform peak computation
	Peaks PeaksConfig `yaml:"peaks"`

	// IPC configuration (woodshed-ctl and scripting)
	IPC IPCConfig `yaml:"ipc"`

	// State WebSocket server for UI clients
	StateWS StateWSConfig `yaml:"state_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type AudioConfig struct {
	// SampleRate is the speaker output rate; loaded tracks are resampled to it.
	SampleRate int `yaml:"sample_rate"`

	// BufferMS is the speaker buffer size in milliseconds.
	BufferMS int `yaml:"buffer_ms"`
}

type PeaksConfig struct {
	// Buckets is the number of min/max buckets computed per track.
	Buckets int `yaml:"buckets"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate: defaultEngineSampleRate,
			BufferMS:   defaultEngineBufferMS,
		},
		Peaks: PeaksConfig{
			Buckets: defaultPeakBuckets,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/woodshed.sock",
		},
		StateWS: StateWSConfig{
			ListenAddr: "127.0.0.1:8723",
			Path:       "/ws/state",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Notes:
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
//   - Trailing documents after the config are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
// Flags pass pointers; each override is only applied if the pointer is non-nil.
type FlagOverrides struct {
	AudioSampleRate *int
	AudioBufferMS   *int

	PeakBuckets *int

	IPCSocketPath *string

	StateWSListenAddr *string

	LogLevel *string
}

// Apply merges the overrides into cfg. Nil pointers are ignored; non-nil
// values are applied even when they are zero values.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.AudioSampleRate != nil {
		cfg.Audio.SampleRate = *o.AudioSampleRate
	}
	if o.AudioBufferMS != nil {
		cfg.Audio.BufferMS = *o.AudioBufferMS
	}
	if o.PeakBuckets != nil {
		cfg.Peaks.Buckets = *o.PeakBuckets
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.StateWSListenAddr != nil {
		cfg.StateWS.ListenAddr = *o.StateWSListenAddr
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return errors.New("audio.sample_rate must be between 8000 and 192000")
	}
	if c.Audio.BufferMS <= 0 || c.Audio.BufferMS > 2000 {
		return errors.New("audio.buffer_ms must be between 1 and 2000")
	}

	if c.Peaks.Buckets <= 0 || c.Peaks.Buckets > 100000 {
		return errors.New("peaks.buckets must be between 1 and 100000")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	if c.StateWS.ListenAddr == "" {
		return errors.New("state_ws.listen_addr must not be empty")
	}
	if c.StateWS.Path == "" || c.StateWS.Path[0] != '/' {
		return errors.New("state_ws.path must start with '/'")
	}

	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
