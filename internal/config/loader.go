package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/opusstream/pkg/codec"
	"github.com/MrWong99/opusstream/pkg/stream"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultSampleRate     = 48000
	DefaultChannels       = 1
	DefaultBitrate        = 64000
	DefaultApplication    = "audio"
	DefaultChunkSize      = 4096
	DefaultOutputCapacity = 4096
	DefaultMetricsAddr    = ":9464"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration holding only default values.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults. Fields
// for which zero is meaningful (packet_size, concealment, model paths) are
// left alone.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = LogFormatText
	}

	e := &cfg.Encoder
	if e.SampleRate == 0 {
		e.SampleRate = DefaultSampleRate
	}
	if e.Channels == 0 {
		e.Channels = DefaultChannels
	}
	if e.Bitrate == 0 {
		e.Bitrate = DefaultBitrate
	}
	if e.Application == "" {
		e.Application = DefaultApplication
	}
	if e.FrameDuration == 0 {
		e.FrameDuration = stream.DefaultFrameDuration
	}
	if e.MaxBuffered == 0 {
		e.MaxBuffered = stream.DefaultMaxBuffered
	}

	d := &cfg.Decoder
	if d.SampleRate == 0 {
		d.SampleRate = DefaultSampleRate
	}
	if d.Channels == 0 {
		d.Channels = DefaultChannels
	}
	if d.FrameDuration == 0 {
		d.FrameDuration = stream.DefaultFrameDuration
	}

	if cfg.Runner.ChunkSize == 0 {
		cfg.Runner.ChunkSize = DefaultChunkSize
	}
	if cfg.Runner.OutputCapacity == 0 {
		cfg.Runner.OutputCapacity = DefaultOutputCapacity
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.LogFormat != "" && !cfg.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("log_format %q is invalid; valid values: text, json", cfg.LogFormat))
	}

	// Encoder
	e := cfg.Encoder
	errs = append(errs, validateFormat("encoder", e.SampleRate, e.Channels, e.FrameDuration)...)
	if e.Bitrate < codec.MinBitrate || e.Bitrate > codec.MaxBitrate {
		errs = append(errs, fmt.Errorf("encoder.bitrate %d is out of range [%d, %d]", e.Bitrate, codec.MinBitrate, codec.MaxBitrate))
	}
	if _, ok := codec.ParseApplication(e.Application); !ok {
		slog.Warn("encoder.application is unknown; audio will be used", "application", e.Application)
	}
	if e.MaxBuffered < e.FrameDuration {
		errs = append(errs, fmt.Errorf("encoder.max_buffered %v is shorter than encoder.frame_duration %v", e.MaxBuffered, e.FrameDuration))
	}

	// Decoder
	d := cfg.Decoder
	errs = append(errs, validateFormat("decoder", d.SampleRate, d.Channels, d.FrameDuration)...)
	if d.PacketSize < 0 || d.PacketSize > stream.MaxBufferedBytes {
		errs = append(errs, fmt.Errorf("decoder.packet_size %d is out of range [0, %d]", d.PacketSize, stream.MaxBufferedBytes))
	}
	if d.Concealment && d.PacketSize == 0 {
		slog.Warn("decoder.concealment has no effect with blind search (packet_size 0)")
	}

	// Runner
	if cfg.Runner.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("runner.chunk_size %d must be positive", cfg.Runner.ChunkSize))
	}
	if cfg.Runner.OutputCapacity < 0 {
		errs = append(errs, fmt.Errorf("runner.output_capacity %d must be positive", cfg.Runner.OutputCapacity))
	}

	return errors.Join(errs...)
}

func validateFormat(section string, sampleRate, channels int, frame time.Duration) []error {
	var errs []error
	if !slices.Contains(validSampleRates, sampleRate) {
		errs = append(errs, fmt.Errorf("%s.sample_rate %d is invalid; valid values: %v", section, sampleRate, validSampleRates))
	}
	if channels != 1 && channels != 2 {
		errs = append(errs, fmt.Errorf("%s.channels %d is invalid; valid values: 1, 2", section, channels))
	}
	if !slices.Contains(validFrameDurations, frame) {
		errs = append(errs, fmt.Errorf("%s.frame_duration %v is invalid; valid values: %v", section, frame, validFrameDurations))
	}
	return errs
}
