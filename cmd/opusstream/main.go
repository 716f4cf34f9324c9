// Command opusstream encodes raw float32 PCM into Opus packet streams and
// decodes such streams back into PCM.
//
// Audio is read and written as interleaved little-endian float32 samples.
// Packet streams are raw concatenated packets, optionally accompanied by a
// length-prefixed packet file. The serve command streams stdin to stdout and
// exposes /metrics, /healthz, and /readyz while it runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/opusstream/internal/config"
	"github.com/MrWong99/opusstream/internal/observe"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newApp(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err := app.RunContext(ctx, os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted")
			return 130
		}
		slog.Error("opusstream failed", "err", err)
		return 1
	}
	return 0
}

// newApp builds the command tree. Metrics are registered with reg and served
// from gather.
func newApp(reg prometheus.Registerer, gather prometheus.Gatherer) *cli.App {
	return &cli.App{
		Name:    "opusstream",
		Usage:   "stream PCM through an Opus encoder or decoder",
		Version: version,
		Commands: []*cli.Command{
			encodeCommand(reg),
			decodeCommand(reg),
			serveCommand(reg, gather),
		},
	}
}

// commonFlags are accepted by every command.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML configuration file",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "dotenv file with OPUSSTREAM_* overrides; a missing file is ignored",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn, or error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "text or json",
		},
	}
}

// runtime holds the process-wide state shared by a command's Action.
type runtime struct {
	cfg      *config.Config
	level    *slog.LevelVar
	metrics  *observe.Metrics
	shutdown func(context.Context) error
}

// loadConfig resolves the configuration with increasing precedence: built-in
// defaults, the --config file, the dotenv file and OPUSSTREAM_* variables,
// then command-line flags applied by override.
func loadConfig(c *cli.Context, override func(*config.Config)) (*config.Config, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(c.Context, cfg, nil); err != nil {
		return nil, err
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = config.LogLevel(c.String("log-level"))
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = config.LogFormat(c.String("log-format"))
	}
	if override != nil {
		override(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration, installs the logger, and starts telemetry.
// The returned context carries a fresh run ID.
func setup(c *cli.Context, reg prometheus.Registerer, override func(*config.Config)) (context.Context, *runtime, error) {
	cfg, err := loadConfig(c, override)
	if err != nil {
		return nil, nil, err
	}

	rt := &runtime{cfg: cfg, level: new(slog.LevelVar)}
	rt.level.Set(cfg.LogLevel.Level())
	slog.SetDefault(newLogger(cfg.LogFormat, rt.level))

	runID := uuid.NewString()
	ctx := observe.WithRunID(c.Context, runID)

	rt.shutdown, err = observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		RunID:          runID,
		Registerer:     reg,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}
	rt.metrics, err = observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		_ = rt.close()
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}

	observe.Logger(ctx).Debug("opusstream starting",
		"command", c.Command.Name,
		"version", version,
		"config", c.String("config"),
	)
	return ctx, rt, nil
}

// close flushes telemetry.
func (rt *runtime) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
		return err
	}
	return nil
}

// newLogger returns a logger writing to stderr in the given format. level may
// be changed while the process runs.
func newLogger(format config.LogFormat, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
