package acoustic

import "math"

// silenceLevel is the mean absolute amplitude below which a window is
// treated as silence and the blank dominates.
const silenceLevel = 64

// Synthetic is a deterministic in-process model backing the manifest's
// "mock" backend. It maps window energy to a symbol: silent windows emit
// the blank, anything else emits a symbol derived from the window's
// sample sum. One window produces exactly one timestep. It carries no
// linguistic knowledge; it exists so the engine, tools, and tests can run
// without an external inference runtime.
type Synthetic struct {
	symbols int
}

// NewSynthetic returns a synthetic model with the given row width
// (alphabet size plus blank).
func NewSynthetic(symbols int) (*Synthetic, error) {
	if symbols <= 1 {
		return nil, ErrInit
	}
	return &Synthetic{symbols: symbols}, nil
}

// Symbols returns the row width.
func (s *Synthetic) Symbols() int { return s.symbols }

// Infer returns a single log-probability row for the window.
func (s *Synthetic) Infer(window []int16) ([][]float32, error) {
	var sum int64
	for _, v := range window {
		if v < 0 {
			sum -= int64(v)
		} else {
			sum += int64(v)
		}
	}
	mean := int64(0)
	if len(window) > 0 {
		mean = sum / int64(len(window))
	}

	blank := s.symbols - 1
	weights := make([]float64, s.symbols)
	for i := range weights {
		weights[i] = 1
	}
	if mean < silenceLevel {
		weights[blank] = 50 * float64(s.symbols)
	} else {
		weights[int(sum%int64(blank))] = 40 * float64(s.symbols)
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	row := make([]float32, s.symbols)
	for i, w := range weights {
		row[i] = float32(math.Log(w / total))
	}
	return [][]float32{row}, nil
}
