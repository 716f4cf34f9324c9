package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix is prepended to every environment override name.
const EnvPrefix = "OPUSSTREAM_"

// envOverrides lists the settings that may be overridden from the
// environment. Unset variables leave the pointer nil.
type envOverrides struct {
	LogLevel          *string `env:"LOG_LEVEL, noinit"`
	MetricsAddr       *string `env:"METRICS_ADDR, noinit"`
	EncoderBitrate    *int    `env:"ENCODER_BITRATE, noinit"`
	DecoderPacketSize *int    `env:"DECODER_PACKET_SIZE, noinit"`
	DecoderConceal    *bool   `env:"DECODER_CONCEALMENT, noinit"`
	ModelPath         *string `env:"MODEL_PATH, noinit"`
}

// LoadDotEnv loads variables from the .env file at path into the process
// environment without replacing variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields of cfg from OPUSSTREAM_* variables resolved
// through l. A nil l reads the process environment. MODEL_PATH applies to
// both the encoder and the decoder. The result is re-validated.
func ApplyEnv(ctx context.Context, cfg *Config, l envconfig.Lookuper) error {
	if l == nil {
		l = envconfig.OsLookuper()
	}
	var o envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &o,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, l),
	}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}

	if o.LogLevel != nil {
		cfg.LogLevel = LogLevel(*o.LogLevel)
	}
	if o.MetricsAddr != nil {
		cfg.Metrics.ListenAddr = *o.MetricsAddr
	}
	if o.EncoderBitrate != nil {
		cfg.Encoder.Bitrate = *o.EncoderBitrate
	}
	if o.DecoderPacketSize != nil {
		cfg.Decoder.PacketSize = *o.DecoderPacketSize
	}
	if o.DecoderConceal != nil {
		cfg.Decoder.Concealment = *o.DecoderConceal
	}
	if o.ModelPath != nil {
		cfg.Encoder.ModelPath = *o.ModelPath
		cfg.Decoder.ModelPath = *o.ModelPath
	}
	return Validate(cfg)
}
