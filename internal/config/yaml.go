// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"`         // Logging level (e.g., "debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // A one-off command to execute instead of running the loop.
	Source    SourceConfig    `yaml:"source"`            // Sample acquisition settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`          // Spectral analysis settings.
	Control   ControlConfig   `yaml:"control"`           // Control loop and touch trigger settings.
	Recording RecordingConfig `yaml:"recording"`         // Snapshot recording of reported frames.
	Transport TransportConfig `yaml:"transport"`         // Report and spectrum transport settings.
}

// SourceConfig selects and tunes the sampler that feeds the acquisition engine.
type SourceConfig struct {
	Kind          string  `yaml:"kind"`           // One of "mic", "tone", "wav".
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index for "mic" (-1 for default).
	LowLatency    bool    `yaml:"low_latency"`    // Request low latency settings from the PortAudio device.
	ToneHz        float64 `yaml:"tone_hz"`        // Frequency of the synthetic tone for "tone".
	ToneAmplitude float64 `yaml:"tone_amplitude"` // Tone amplitude as a fraction of full scale (0-1).
	WAVFile       string  `yaml:"wav_file"`       // Mono 8192 Hz WAV file replayed by "wav".
	ChunkFrames   int     `yaml:"chunk_frames"`   // Samples delivered per sampler callback.
}

// AnalysisConfig holds settings for the spectral analyzer.
type AnalysisConfig struct {
	Engine        string  `yaml:"engine"`         // "fixed" (Q15) or "float" (gonum reference).
	FFTWindow     string  `yaml:"fft_window"`     // Window for the float engine (e.g., "Hann", "Hamming").
	GateThreshold float64 `yaml:"gate_threshold"` // Peak level (0-1) below which a frame counts as silence; 0 disables the gate.
}

// ControlConfig holds settings for the control loop.
type ControlConfig struct {
	TouchChannel   int           `yaml:"touch_channel"`   // Touch channel that acts as the record trigger.
	TouchThreshold int           `yaml:"touch_threshold"` // Touch magnitude that counts as a touch (strictly greater than).
	PollMode       string        `yaml:"poll_mode"`       // "notify" waits on the completion signal, "spin" busy-polls.
	Deadline       time.Duration `yaml:"deadline"`        // Analysis budget per frame; misses are counted.
	TouchEvery     time.Duration `yaml:"touch_every"`     // Scripted touch pulse interval when no UI is attached (0 = off).
}

// RecordingConfig holds settings for WAV snapshots of reported frames.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Save the frame behind every report.
	OutputDir string `yaml:"output_dir"` // Directory to save snapshot files.
}

// TransportConfig holds settings related to sending results over the network.
type TransportConfig struct {
	WSEnabled        bool          `yaml:"ws_enabled"`         // Broadcast reports to WebSocket clients.
	WSAddress        string        `yaml:"ws_address"`         // Listen address for the WebSocket/metrics server.
	MetricsEnabled   bool          `yaml:"metrics_enabled"`    // Serve Prometheus metrics at /metrics on WSAddress.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending spectrum packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Source: SourceConfig{
			Kind:          DefaultSourceKind,
			InputDevice:   DefaultInputDevice,
			ToneHz:        DefaultToneHz,
			ToneAmplitude: DefaultToneAmplitude,
			ChunkFrames:   DefaultChunkFrames,
		},
		Analysis: AnalysisConfig{
			Engine:    DefaultAnalysisEngine,
			FFTWindow: DefaultFFTWindow,
		},
		Control: ControlConfig{
			TouchChannel:   DefaultTouchChannel,
			TouchThreshold: DefaultTouchThreshold,
			PollMode:       DefaultPollMode,
			Deadline:       DefaultDeadline,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultOutputDir,
		},
		Transport: TransportConfig{
			WSAddress:        DefaultWSAddress,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPInterval,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"formant.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceMic, SourceTone:
	case SourceWAV:
		if c.Source.WAVFile == "" {
			return fmt.Errorf("source.wav_file must be set when source.kind is %q", SourceWAV)
		}
	default:
		return fmt.Errorf("unknown source.kind %q", c.Source.Kind)
	}
	if c.Source.InputDevice < MinDeviceID {
		return fmt.Errorf("source.input_device %d is invalid", c.Source.InputDevice)
	}
	if c.Source.ChunkFrames <= 0 || c.Source.ChunkFrames > FrameSize {
		return fmt.Errorf("source.chunk_frames must be in 1..%d, got %d", FrameSize, c.Source.ChunkFrames)
	}
	if c.Source.ToneAmplitude < 0 || c.Source.ToneAmplitude > 1 {
		return fmt.Errorf("source.tone_amplitude must be in 0..1, got %g", c.Source.ToneAmplitude)
	}
	if c.Source.ToneHz < 0 || c.Source.ToneHz >= SampleRate/2 {
		return fmt.Errorf("source.tone_hz must be below %d Hz, got %g", SampleRate/2, c.Source.ToneHz)
	}

	switch c.Analysis.Engine {
	case EngineFixed, EngineFloat:
	default:
		return fmt.Errorf("unknown analysis.engine %q", c.Analysis.Engine)
	}
	if c.Analysis.GateThreshold < 0 || c.Analysis.GateThreshold > 1 {
		return fmt.Errorf("analysis.gate_threshold must be in 0..1, got %g", c.Analysis.GateThreshold)
	}

	if c.Control.TouchChannel < 0 || c.Control.TouchChannel > 15 {
		return fmt.Errorf("control.touch_channel must be in 0..15, got %d", c.Control.TouchChannel)
	}
	switch c.Control.PollMode {
	case PollNotify, PollSpin:
	default:
		return fmt.Errorf("unknown control.poll_mode %q", c.Control.PollMode)
	}
	if c.Control.Deadline <= 0 {
		return fmt.Errorf("control.deadline must be positive")
	}
	if c.Control.TouchEvery < 0 {
		return fmt.Errorf("control.touch_every must not be negative")
	}

	if c.Recording.Enabled && c.Recording.OutputDir == "" {
		return fmt.Errorf("recording.output_dir must be set when recording is enabled")
	}

	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if (c.Transport.WSEnabled || c.Transport.MetricsEnabled) && c.Transport.WSAddress == "" {
		return fmt.Errorf("transport.ws_address must be set when the WebSocket or metrics server is enabled")
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file or default values.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}

	// ENV_SOURCE_{...}

	// ENV_SOURCE_KIND
	if val, ok := os.LookupEnv("ENV_SOURCE_KIND"); ok {
		cfg.Source.Kind = val
	}
	// ENV_SOURCE_WAV_FILE
	if val, ok := os.LookupEnv("ENV_SOURCE_WAV_FILE"); ok {
		cfg.Source.WAVFile = val
	}
	// ENV_SOURCE_TONE_HZ
	if val, ok := os.LookupEnv("ENV_SOURCE_TONE_HZ"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Source.ToneHz = fVal
		}
	}

	// ENV_UDP_{...}

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}
}
