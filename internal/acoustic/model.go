// Package acoustic abstracts the trained acoustic model behind a small
// inference contract: a fixed-size window of 16-bit mono PCM in,
// per-timestep symbol log-probability rows out. The engine never looks
// inside the model; it only consumes the rows and propagates failures.
package acoustic

import "errors"

// Failure classes the engine maps to its boundary error codes. Adapter
// implementations wrap these so callers can use errors.Is.
var (
	ErrShape = errors.New("acoustic output shape mismatch")
	ErrInit  = errors.New("acoustic backend initialization failed")
	ErrRun   = errors.New("acoustic inference failed")
)

// Model runs inference on one audio window. Implementations must be
// deterministic for a given window and safe for concurrent calls from
// separate sessions.
type Model interface {
	// Infer returns one or more log-probability rows for the window.
	// Each row has Symbols() entries; the last entry is the CTC blank.
	Infer(window []int16) ([][]float32, error)
	// Symbols returns the row width (alphabet size plus blank).
	Symbols() int
}
