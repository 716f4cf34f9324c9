// Package config provides the configuration schema, loader, environment
// overrides, and file watcher for the opusstream commands.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/opusstream/pkg/codec"
	"github.com/MrWong99/opusstream/pkg/stream"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to an [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	LogLevel  LogLevel      `yaml:"log_level"`
	LogFormat LogFormat     `yaml:"log_format"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Encoder   EncoderConfig `yaml:"encoder"`
	Decoder   DecoderConfig `yaml:"decoder"`
	Runner    RunnerConfig  `yaml:"runner"`
}

// MetricsConfig configures the admin HTTP surface of the serve command.
type MetricsConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz, and /readyz
	// (e.g., ":9464"). Empty selects [DefaultMetricsAddr].
	ListenAddr string `yaml:"listen_addr"`
}

// EncoderConfig configures the encode pipeline.
type EncoderConfig struct {
	// SampleRate of the input in Hz: 8000, 12000, 16000, 24000, or 48000.
	SampleRate int `yaml:"sample_rate"`

	// Channels: 1 or 2.
	Channels int `yaml:"channels"`

	// Bitrate in bits per second, 500 to 512000.
	Bitrate int `yaml:"bitrate"`

	// Application is one of "voip", "audio", or "lowdelay". Unknown values
	// fall back to "audio" with a warning.
	Application string `yaml:"application"`

	// FrameDuration is the codec frame length: 2.5ms to 60ms.
	FrameDuration time.Duration `yaml:"frame_duration"`

	// MaxBuffered bounds the input retained while output is blocked.
	MaxBuffered time.Duration `yaml:"max_buffered"`

	// ModelPath optionally names an acoustic-model blob.
	ModelPath string `yaml:"model_path"`
}

// DecoderConfig configures the decode pipeline.
type DecoderConfig struct {
	SampleRate    int           `yaml:"sample_rate"`
	Channels      int           `yaml:"channels"`
	PacketSize    int           `yaml:"packet_size"`
	FrameDuration time.Duration `yaml:"frame_duration"`
	Concealment   bool          `yaml:"concealment"`
	ModelPath     string        `yaml:"model_path"`
}

// RunnerConfig bounds the work done per scheduling cycle.
type RunnerConfig struct {
	// ChunkSize is the number of input units read per cycle.
	ChunkSize int `yaml:"chunk_size"`

	// OutputCapacity is the number of output units offered per cycle.
	OutputCapacity int `yaml:"output_capacity"`
}

// Supported stream parameters.
var (
	validSampleRates    = []int{8000, 12000, 16000, 24000, 48000}
	validFrameDurations = []time.Duration{
		2500 * time.Microsecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		60 * time.Millisecond,
	}
)

// Stream converts the encoder section into block construction parameters.
// An unknown application name selects [codec.ApplicationAudio] and logs a
// warning.
func (c EncoderConfig) Stream() stream.EncoderConfig {
	app, ok := codec.ParseApplication(c.Application)
	if !ok {
		slog.Warn("unknown encoder application, using audio", "application", c.Application)
	}
	return stream.EncoderConfig{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		Bitrate:       c.Bitrate,
		Application:   app,
		FrameDuration: c.FrameDuration,
		MaxBuffered:   c.MaxBuffered,
		ModelPath:     c.ModelPath,
	}
}

// Stream converts the decoder section into block construction parameters.
func (c DecoderConfig) Stream() stream.DecoderConfig {
	return stream.DecoderConfig{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		PacketSize:    c.PacketSize,
		FrameDuration: c.FrameDuration,
		Concealment:   c.Concealment,
		ModelPath:     c.ModelPath,
	}
}
