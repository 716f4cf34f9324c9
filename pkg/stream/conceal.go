package stream

import (
	"log/slog"

	"github.com/MrWong99/opusstream/pkg/audio"
	"github.com/MrWong99/opusstream/pkg/codec"
)

// concealer is the decoder's loss-recovery stage. The default variant does
// nothing, so the decode path is written once for both configurations.
type concealer interface {
	// lost records one undecodable packet.
	lost()

	// pendingLoss returns the number of frames lost since the last good
	// packet.
	pendingLoss() int

	// recover is called with every good packet before its own samples are
	// emitted. It emits reconstructed samples for pending losses in
	// playback order and clears the pending count.
	recover(packet []byte, emit func([]float32))

	reset()
	close() error
}

type noConcealment struct{}

func (noConcealment) lost()                           {}
func (noConcealment) pendingLoss() int                { return 0 }
func (noConcealment) recover([]byte, func([]float32)) {}
func (noConcealment) reset()                          {}
func (noConcealment) close() error                    { return nil }

// redundancyConcealment defers recovery of lost frames to the next good
// packet, whose redundancy payload describes the frames before it.
type redundancyConcealment struct {
	red       codec.Redundancy
	pending   int
	frame     []float32
	frameSize int
	channels  int

	log *slog.Logger
	obs Observer
}

func newRedundancyConcealment(red codec.Redundancy, frameSize, channels int, o options) *redundancyConcealment {
	return &redundancyConcealment{
		red:       red,
		frame:     make([]float32, frameSize*channels),
		frameSize: frameSize,
		channels:  channels,
		log:       o.log,
		obs:       o.obs,
	}
}

func (c *redundancyConcealment) lost() { c.pending++ }

func (c *redundancyConcealment) pendingLoss() int { return c.pending }

func (c *redundancyConcealment) recover(packet []byte, emit func([]float32)) {
	if c.pending == 0 {
		return
	}
	lost := c.pending
	c.pending = 0

	available, err := c.red.Parse(packet, lost)
	if err != nil {
		c.log.Debug("stream: redundancy parse failed", "lost", lost, "err", err)
		c.obs.Concealed(lost, 0)
		return
	}
	available = min(available, lost)

	// Offsets count back from the current packet; the highest is the oldest
	// frame, so walking downwards emits audio in playback order.
	recovered := 0
	for offset := available; offset >= 1; offset-- {
		n, err := c.red.Recover(offset, c.frame, c.frameSize)
		if err != nil || n <= 0 {
			continue
		}
		samples := c.frame[:min(n*c.channels, len(c.frame))]
		for i, s := range samples {
			samples[i] = audio.Clamp(s)
		}
		emit(samples)
		recovered++
	}
	c.obs.Concealed(lost, recovered)
}

func (c *redundancyConcealment) reset() { c.pending = 0 }

func (c *redundancyConcealment) close() error {
	if c.red == nil {
		return nil
	}
	err := c.red.Close()
	c.red = nil
	return err
}
