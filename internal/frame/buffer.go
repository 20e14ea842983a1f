// Package frame accumulates raw PCM samples into the fixed-size,
// possibly overlapping windows the acoustic model consumes.
package frame

import "fmt"

// Buffer groups arbitrary-length sample appends into windows of Window
// samples advancing by Stride. The unconsumed remainder is retained
// across calls; Flush zero-pads it into one final window.
type Buffer struct {
	window  int
	stride  int
	pending []int16
}

// New returns a buffer for the given window size and stride. Stride may
// be smaller than the window for overlapping windows, but not larger.
func New(window, stride int) (*Buffer, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	if stride <= 0 || stride > window {
		return nil, fmt.Errorf("stride must be in [1,%d], got %d", window, stride)
	}
	return &Buffer{window: window, stride: stride}, nil
}

// Push appends samples and invokes emit once per complete window. The
// window slice is only valid for the duration of the call.
func (b *Buffer) Push(samples []int16, emit func([]int16) error) error {
	b.pending = append(b.pending, samples...)
	for len(b.pending) >= b.window {
		if err := emit(b.pending[:b.window]); err != nil {
			return err
		}
		b.pending = b.pending[b.stride:]
	}
	return nil
}

// Flush emits the retained remainder, zero-padded to a full window. A
// buffer with no pending samples flushes nothing.
func (b *Buffer) Flush(emit func([]int16) error) error {
	if len(b.pending) == 0 {
		return nil
	}
	padded := make([]int16, b.window)
	copy(padded, b.pending)
	b.pending = nil
	return emit(padded)
}

// Pending returns the number of retained, unconsumed samples.
func (b *Buffer) Pending() int { return len(b.pending) }
