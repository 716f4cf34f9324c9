package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/MrWong99/opusstream/internal/config"
	"github.com/MrWong99/opusstream/internal/container"
	"github.com/MrWong99/opusstream/internal/observe"
	"github.com/MrWong99/opusstream/internal/runner"
	"github.com/MrWong99/opusstream/pkg/codec"
	"github.com/MrWong99/opusstream/pkg/codec/opus"
	"github.com/MrWong99/opusstream/pkg/stream"
)

// backend creates the codec handles for every pipeline.
var backend codec.Backend = opus.Backend{}

func encodeCommand(reg prometheus.Registerer) *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "encode float32 PCM into a raw Opus packet stream",
		Flags: append(commonFlags(),
			&cli.StringFlag{Name: "in", Usage: "float32 PCM input, - for stdin", Required: true},
			&cli.StringFlag{Name: "out", Usage: "packet stream output, - for stdout", Required: true},
			&cli.StringFlag{Name: "framed", Usage: "also write a length-prefixed packet file"},
			&cli.IntFlag{Name: "sample-rate", Usage: "input sample rate in Hz"},
			&cli.IntFlag{Name: "channels", Usage: "interleaved input channels"},
			&cli.IntFlag{Name: "bitrate", Usage: "target bitrate in bits per second"},
			&cli.StringFlag{Name: "application", Usage: "voip, audio, or lowdelay"},
			&cli.DurationFlag{Name: "frame-duration", Usage: "codec frame length"},
			&cli.StringFlag{Name: "model", Usage: "acoustic-model blob to install"},
		),
		Action: func(c *cli.Context) error {
			ctx, rt, err := setup(c, reg, func(cfg *config.Config) {
				e := &cfg.Encoder
				setInt(c, "sample-rate", &e.SampleRate)
				setInt(c, "channels", &e.Channels)
				setInt(c, "bitrate", &e.Bitrate)
				setString(c, "application", &e.Application)
				setString(c, "model", &e.ModelPath)
				if c.IsSet("frame-duration") {
					e.FrameDuration = c.Duration("frame-duration")
				}
			})
			if err != nil {
				return err
			}
			defer rt.close()

			in, closeIn, err := openInput(c.String("in"))
			if err != nil {
				return err
			}
			defer closeIn()
			out, closeOut, err := openOutput(c.String("out"))
			if err != nil {
				return err
			}

			var tap *packetTap
			closeFramed := func() error { return nil }
			if path := c.String("framed"); path != "" {
				var f io.Writer
				if f, closeFramed, err = openOutput(path); err != nil {
					_ = closeOut()
					return err
				}
				tap = &packetTap{w: container.NewFrameWriter(f)}
			}

			stats, err := runEncode(ctx, rt, in, out, tap)
			if err := errors.Join(err, closeOut(), closeFramed()); err != nil {
				return err
			}
			observe.Logger(ctx).Info("encode finished",
				"samples", stats.In, "bytes", stats.Out, "leftover_samples", stats.Leftover)
			return nil
		},
	}
}

func decodeCommand(reg prometheus.Registerer) *cli.Command {
	return &cli.Command{
		Name:  "decode",
		Usage: "decode a raw Opus packet stream into float32 PCM",
		Flags: append(commonFlags(),
			&cli.StringFlag{Name: "in", Usage: "packet stream input, - for stdin", Required: true},
			&cli.StringFlag{Name: "out", Usage: "float32 PCM output, - for stdout", Required: true},
			&cli.IntFlag{Name: "packet-size", Usage: "fixed packet length in bytes; 0 searches for boundaries"},
			&cli.BoolFlag{Name: "ogg", Usage: "input is an Ogg Opus file"},
			&cli.BoolFlag{Name: "framed", Usage: "input is a length-prefixed packet file"},
			&cli.BoolFlag{Name: "conceal", Usage: "recover lost frames from redundancy data"},
			&cli.IntFlag{Name: "sample-rate", Usage: "output sample rate in Hz"},
			&cli.IntFlag{Name: "channels", Usage: "interleaved output channels"},
			&cli.StringFlag{Name: "model", Usage: "acoustic-model blob to install"},
		),
		Action: func(c *cli.Context) error {
			if c.Bool("ogg") && c.Bool("framed") {
				return errors.New("--ogg and --framed are mutually exclusive")
			}
			ctx, rt, err := setup(c, reg, func(cfg *config.Config) {
				d := &cfg.Decoder
				setInt(c, "packet-size", &d.PacketSize)
				setInt(c, "sample-rate", &d.SampleRate)
				setInt(c, "channels", &d.Channels)
				setString(c, "model", &d.ModelPath)
				if c.IsSet("conceal") {
					d.Concealment = c.Bool("conceal")
				}
			})
			if err != nil {
				return err
			}
			defer rt.close()

			in, closeIn, err := openInput(c.String("in"))
			if err != nil {
				return err
			}
			defer closeIn()
			switch {
			case c.Bool("ogg"):
				in = container.Payloads(container.NewOggReader(in))
			case c.Bool("framed"):
				in = container.Payloads(container.NewFrameReader(in))
			}

			out, closeOut, err := openOutput(c.String("out"))
			if err != nil {
				return err
			}
			stats, err := runDecode(ctx, rt, in, out)
			if err := errors.Join(err, closeOut()); err != nil {
				return err
			}
			observe.Logger(ctx).Info("decode finished",
				"bytes", stats.In, "samples", stats.Out, "leftover_bytes", stats.Leftover)
			return nil
		},
	}
}

// runEncode streams float32 PCM from in through an encoder into out. When tap
// is non-nil every packet is also written to it.
func runEncode(ctx context.Context, rt *runtime, in io.Reader, out io.Writer, tap *packetTap, opts ...runner.Option) (runner.Stats, error) {
	sopts := []stream.Option{
		stream.WithLogger(observe.Logger(ctx)),
		stream.WithObserver(rt.metrics.Observer(ctx, "encoder")),
	}
	if tap != nil {
		sopts = append(sopts, stream.WithPacketTap(tap.write))
	}
	enc, err := stream.NewEncoder(rt.cfg.Encoder.Stream(), backend, sopts...)
	if err != nil {
		return runner.Stats{}, err
	}
	defer enc.Close()

	// A packet larger than the output capacity would be deferred forever.
	capacity := max(rt.cfg.Runner.OutputCapacity, codec.MaxPacketSize)
	r, err := runner.New("encoder", enc, runner.NewFloat32Source(in), runner.ByteSink(out),
		rt.cfg.Runner.ChunkSize, capacity, append(opts, runner.WithMetrics(rt.metrics))...)
	if err != nil {
		return runner.Stats{}, err
	}
	stats, err := r.Run(ctx)
	if err != nil {
		return stats, err
	}
	if tap != nil && tap.err != nil {
		return stats, fmt.Errorf("write packet file: %w", tap.err)
	}
	return stats, nil
}

// runDecode streams packet bytes from in through a decoder into out as
// float32 PCM.
func runDecode(ctx context.Context, rt *runtime, in io.Reader, out io.Writer, opts ...runner.Option) (runner.Stats, error) {
	dec, err := stream.NewDecoder(rt.cfg.Decoder.Stream(), backend,
		stream.WithLogger(observe.Logger(ctx)),
		stream.WithObserver(rt.metrics.Observer(ctx, "decoder")),
	)
	if err != nil {
		return runner.Stats{}, err
	}
	defer dec.Close()

	r, err := runner.New("decoder", dec, runner.ByteSource(in), runner.Float32Sink(out),
		rt.cfg.Runner.ChunkSize, rt.cfg.Runner.OutputCapacity, append(opts, runner.WithMetrics(rt.metrics))...)
	if err != nil {
		return runner.Stats{}, err
	}
	return r.Run(ctx)
}

// packetTap writes tapped packets to a packet file and keeps the first error.
type packetTap struct {
	w   container.PacketWriter
	err error
}

func (t *packetTap) write(packet []byte) {
	if t.err != nil {
		return
	}
	t.err = t.w.WritePacket(packet)
}

// Standard streams used for the "-" path. Tests replace them.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

// openInput opens path for reading. "-" selects stdin.
func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return bufio.NewReader(stdin), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return bufio.NewReader(f), func() { _ = f.Close() }, nil
}

// openOutput creates path for writing behind a buffer. "-" selects stdout,
// which is written unbuffered so that streamed output is not held back. The
// returned close function flushes the buffer and closes the file.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	w := bufio.NewWriter(f)
	return w, func() error {
		return errors.Join(w.Flush(), f.Close())
	}, nil
}

func setInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}
