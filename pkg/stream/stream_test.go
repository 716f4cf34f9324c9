package stream

import (
	"math"
	"sync"
)

// sine returns n interleaved samples of a 440 Hz tone at amplitude 0.5.
func sine(n, sampleRate, channels int) []float32 {
	out := make([]float32, n)
	for i := range out {
		frame := i / channels
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(frame)/float64(sampleRate)))
	}
	return out
}

// recordingObserver counts events for assertions.
type recordingObserver struct {
	mu              sync.Mutex
	trimmed         map[string]int
	encoded         int
	encodeFailed    int
	deferred        int
	decoded         int
	decodeFailed    int
	searches        []int
	searchesFailed  int
	silent          int
	concealedLost   int
	concealedFrames int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{trimmed: map[string]int{}}
}

func (r *recordingObserver) Trimmed(unit string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trimmed[unit] += n
}

func (r *recordingObserver) FrameEncoded(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoded++
}

func (r *recordingObserver) EncodeFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodeFailed++
}

func (r *recordingObserver) Deferred() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred++
}

func (r *recordingObserver) PacketDecoded(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoded++
}

func (r *recordingObserver) DecodeFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decodeFailed++
}

func (r *recordingObserver) SearchFinished(trials int, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if accepted {
		r.searches = append(r.searches, trials)
	} else {
		r.searchesFailed++
	}
}

func (r *recordingObserver) SilentCandidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.silent++
}

func (r *recordingObserver) Concealed(lost, recovered int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.concealedLost += lost
	r.concealedFrames += recovered
}
