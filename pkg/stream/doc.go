// Package stream adapts a continuous stream of normalised audio samples to
// and from a stream of codec packets, for callers that deliver input and
// accept output in arbitrarily sized chunks.
//
// Two blocks are provided:
//
//   - [Encoder] accumulates samples into fixed-size frames, encodes each
//     frame, and writes whole packets into the caller's output region. A
//     packet that does not fit is never split; its frame stays buffered and
//     is encoded again on the next call.
//   - [Decoder] accumulates raw packet bytes and recovers packet boundaries,
//     either by slicing a configured fixed packet size or, when the size is
//     unknown, by trial-decoding candidate lengths (see [Candidates]). In
//     fixed-size mode an optional concealment stage reconstructs frames lost
//     to undecodable packets from redundancy carried by the next good one.
//
// Both blocks are driven by repeated calls to Work, one per delivery cycle.
// Work never blocks and never returns an error: codec failures on the
// steady-state path are absorbed, and a short return value simply means the
// output region filled up or more input is needed. Unconsumed input stays
// buffered between calls, bounded by a drop-oldest cap.
//
// A block is owned by a single goroutine; none of its methods are safe for
// concurrent use.
package stream
