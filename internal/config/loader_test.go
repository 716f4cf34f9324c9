package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/opusstream/internal/config"
	"github.com/MrWong99/opusstream/pkg/codec"
	"github.com/MrWong99/opusstream/pkg/stream"
)

const fullYAML = `
log_level: debug
log_format: json
metrics:
  listen_addr: ":9100"
encoder:
  sample_rate: 16000
  channels: 2
  bitrate: 24000
  application: voip
  frame_duration: 10ms
  max_buffered: 2s
decoder:
  sample_rate: 24000
  channels: 1
  packet_size: 120
  frame_duration: 40ms
  concealment: true
  model_path: /models/dred.bin
runner:
  chunk_size: 960
  output_capacity: 2048
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &config.Config{
		LogLevel:  config.LogDebug,
		LogFormat: config.LogFormatJSON,
		Metrics:   config.MetricsConfig{ListenAddr: ":9100"},
		Encoder: config.EncoderConfig{
			SampleRate:    16000,
			Channels:      2,
			Bitrate:       24000,
			Application:   "voip",
			FrameDuration: 10 * time.Millisecond,
			MaxBuffered:   2 * time.Second,
		},
		Decoder: config.DecoderConfig{
			SampleRate:    24000,
			Channels:      1,
			PacketSize:    120,
			FrameDuration: 40 * time.Millisecond,
			Concealment:   true,
			ModelPath:     "/models/dred.bin",
		},
		Runner: config.RunnerConfig{ChunkSize: 960, OutputCapacity: 2048},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromReader_EmptyYieldsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Encoder.Bitrate != config.DefaultBitrate || cfg.Decoder.PacketSize != 0 || cfg.Metrics.ListenAddr != "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Encoder.FrameDuration != stream.DefaultFrameDuration {
		t.Errorf("frame_duration = %v, want %v", cfg.Encoder.FrameDuration, stream.DefaultFrameDuration)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("encoder:\n  bitrat: 64000\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "bad log level",
			yaml:    "log_level: bananas\n",
			wantErr: []string{"log_level"},
		},
		{
			name:    "bad log format",
			yaml:    "log_format: xml\n",
			wantErr: []string{"log_format"},
		},
		{
			name:    "bad encoder format",
			yaml:    "encoder:\n  sample_rate: 44100\n  channels: 3\n  frame_duration: 15ms\n",
			wantErr: []string{"encoder.sample_rate", "encoder.channels", "encoder.frame_duration"},
		},
		{
			name:    "bitrate out of range",
			yaml:    "encoder:\n  bitrate: 100\n",
			wantErr: []string{"encoder.bitrate"},
		},
		{
			name:    "max buffered below one frame",
			yaml:    "encoder:\n  frame_duration: 60ms\n  max_buffered: 40ms\n",
			wantErr: []string{"encoder.max_buffered"},
		},
		{
			name:    "negative packet size",
			yaml:    "decoder:\n  packet_size: -4\n",
			wantErr: []string{"decoder.packet_size"},
		},
		{
			name:    "negative runner sizes",
			yaml:    "runner:\n  chunk_size: -1\n  output_capacity: -2\n",
			wantErr: []string{"runner.chunk_size", "runner.output_capacity"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "opusstream.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Decoder.PacketSize != 120 {
		t.Errorf("packet_size = %d, want 120", cfg.Decoder.PacketSize)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestStreamConversion(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatal(err)
	}

	enc := cfg.Encoder.Stream()
	if enc.Application != codec.ApplicationVoIP || enc.Bitrate != 24000 || enc.MaxBuffered != 2*time.Second {
		t.Errorf("encoder conversion = %+v", enc)
	}
	dec := cfg.Decoder.Stream()
	want := stream.DecoderConfig{
		SampleRate:    24000,
		Channels:      1,
		PacketSize:    120,
		FrameDuration: 40 * time.Millisecond,
		Concealment:   true,
		ModelPath:     "/models/dred.bin",
	}
	if diff := cmp.Diff(want, dec); diff != "" {
		t.Errorf("decoder conversion mismatch (-want +got):\n%s", diff)
	}

	unknown := cfg.Encoder
	unknown.Application = "music"
	if got := unknown.Stream().Application; got != codec.ApplicationAudio {
		t.Errorf("unknown application = %v, want audio", got)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		valid bool
		want  slog.Level
	}{
		{config.LogDebug, true, slog.LevelDebug},
		{config.LogInfo, true, slog.LevelInfo},
		{config.LogWarn, true, slog.LevelWarn},
		{config.LogError, true, slog.LevelError},
		{"verbose", false, slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := tc.level.IsValid(); got != tc.valid {
			t.Errorf("%q.IsValid() = %v, want %v", tc.level, got, tc.valid)
		}
		if got := tc.level.Level(); got != tc.want {
			t.Errorf("%q.Level() = %v, want %v", tc.level, got, tc.want)
		}
	}
}
