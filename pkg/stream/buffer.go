package stream

// MaxBufferedBytes caps the decoder's raw byte buffer at one mebibyte.
const MaxBufferedBytes = 1 << 20

// Buffer is a FIFO of samples or bytes with a hard size cap. When a push
// would exceed the cap, the oldest elements are discarded so that only the
// most recent max elements are retained.
type Buffer[T any] struct {
	data []T
	max  int
}

// SampleBuffer holds interleaved normalised samples awaiting encoding.
type SampleBuffer = Buffer[float32]

// ByteBuffer holds raw packet bytes awaiting framing.
type ByteBuffer = Buffer[byte]

// NewBuffer returns an empty buffer that retains at most max elements.
func NewBuffer[T any](max int) *Buffer[T] {
	return &Buffer[T]{max: max}
}

// Push appends in and trims the front so that Len() <= Max(). It returns the
// number of elements dropped.
func (b *Buffer[T]) Push(in []T) int {
	if len(in) >= b.max {
		dropped := len(b.data) + len(in) - b.max
		b.data = append(b.data[:0], in[len(in)-b.max:]...)
		return dropped
	}
	b.data = append(b.data, in...)
	if excess := len(b.data) - b.max; excess > 0 {
		b.Discard(excess)
		return excess
	}
	return 0
}

// Peek returns a view of the first n elements without removing them. The
// view is only valid until the next Push or Discard. Peek panics if
// n > Len().
func (b *Buffer[T]) Peek(n int) []T {
	return b.data[:n:n]
}

// Discard removes the first n elements, or everything if n >= Len().
func (b *Buffer[T]) Discard(n int) {
	if n >= len(b.data) {
		b.data = b.data[:0]
		return
	}
	// Compact when the remainder is shorter than the discarded prefix.
	if rest := len(b.data) - n; n > rest {
		copy(b.data, b.data[n:])
		b.data = b.data[:rest]
		return
	}
	b.data = b.data[n:]
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int { return len(b.data) }

// Max returns the retention cap.
func (b *Buffer[T]) Max() int { return b.max }

// Reset empties the buffer.
func (b *Buffer[T]) Reset() { b.data = b.data[:0] }
