package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/opusstream/internal/config"
	"github.com/MrWong99/opusstream/internal/health"
	"github.com/MrWong99/opusstream/internal/observe"
	"github.com/MrWong99/opusstream/internal/runner"
)

const (
	modeEncode = "encode"
	modeDecode = "decode"
)

func serveCommand(reg prometheus.Registerer, gather prometheus.Gatherer) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "stream stdin to stdout and expose metrics and health endpoints",
		Flags: append(commonFlags(),
			&cli.StringFlag{Name: "mode", Usage: "encode or decode", Required: true},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "listen address for /metrics, /healthz, and /readyz; empty disables them",
				Value: config.DefaultMetricsAddr,
			},
		),
		Action: func(c *cli.Context) error {
			mode := c.String("mode")
			if mode != modeEncode && mode != modeDecode {
				return fmt.Errorf("unknown mode %q: want encode or decode", mode)
			}
			ctx, rt, err := setup(c, reg, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			addr := rt.cfg.Metrics.ListenAddr
			if c.IsSet("metrics-addr") || addr == "" {
				addr = c.String("metrics-addr")
			}
			return serve(ctx, rt, serveOptions{
				mode:       mode,
				addr:       addr,
				configPath: c.String("config"),
				gather:     gather,
			})
		},
	}
}

type serveOptions struct {
	mode       string
	addr       string
	configPath string
	gather     prometheus.Gatherer
}

// serve runs the pipeline over stdin and stdout next to the admin HTTP server
// and the config watcher. It returns when the pipeline finishes, when ctx is
// cancelled, or when any component fails.
func serve(ctx context.Context, rt *runtime, opts serveOptions) error {
	log := observe.Logger(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var state health.State
	g, gctx := errgroup.WithContext(ctx)

	if opts.addr != "" {
		mux := http.NewServeMux()
		health.New(state.Checker(opts.mode)).Register(mux)
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.gather, promhttp.HandlerOpts{}))

		ln, err := net.Listen("tcp", opts.addr)
		if err != nil {
			return fmt.Errorf("admin listener: %w", err)
		}
		srv := &http.Server{
			Handler:           observe.Middleware(rt.metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info("admin server listening", "addr", ln.Addr().String())

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if opts.configPath != "" {
		w, err := config.NewWatcher(ctx, opts.configPath, func(_, next *config.Config, diff config.ConfigDiff) {
			if diff.LogLevelChanged {
				rt.level.Set(diff.NewLogLevel.Level())
				log.Info("log level changed", "level", next.LogLevel)
			}
			if len(diff.RestartRequired) > 0 {
				log.Warn("configuration changed; restart to apply", "sections", diff.RestartRequired)
			}
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	// Blocking reads on stdin ignore cancellation; closing it unblocks them.
	if closer, ok := stdin.(io.Closer); ok {
		stop := context.AfterFunc(gctx, func() { _ = closer.Close() })
		defer stop()
	}

	g.Go(func() error {
		// The pipeline ending stops the other components.
		defer cancel()

		out, closeOut, err := openOutput("-")
		if err != nil {
			return err
		}
		in, closeIn, err := openInput("-")
		if err != nil {
			return err
		}
		defer closeIn()

		var stats runner.Stats
		if opts.mode == modeEncode {
			stats, err = runEncode(gctx, rt, in, out, nil, runner.WithHealth(&state))
		} else {
			stats, err = runDecode(gctx, rt, in, out, runner.WithHealth(&state))
		}
		err = errors.Join(err, closeOut())
		if err != nil && gctx.Err() != nil {
			log.Info("pipeline stopped", "in", stats.In, "out", stats.Out)
			return nil
		}
		return err
	})

	return g.Wait()
}
