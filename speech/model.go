// Package speech is the boundary of the streaming speech-to-text engine:
// an immutable Model handle created from a model file, and Streams that
// accept 16-bit mono PCM and produce transcriptions on demand. A Model
// may serve many concurrent Streams; one Stream must only ever be driven
// by one goroutine at a time.
package speech

import (
	"errors"
	"fmt"
	"sync"

	"github.com/loqalabs/loqa-speech/internal/acoustic"
	"github.com/loqalabs/loqa-speech/internal/decoder"
	"github.com/loqalabs/loqa-speech/internal/frame"
	"github.com/loqalabs/loqa-speech/internal/lm"
)

// OOVPolicy selects how the decoder treats words outside the language
// model's vocabulary. See the decoder package for semantics.
type OOVPolicy = decoder.OOVPolicy

const (
	OOVPenalize = decoder.OOVPenalize
	OOVReject   = decoder.OOVReject
)

// Model is the immutable, shareable handle over the loaded acoustic model
// and optional language model. All configuration is fixed before streams
// are spawned; concurrent streams only ever read it. Close releases the
// handle: streams created before Close keep running, but creating new
// ones fails.
type Model struct {
	sampleRate int
	beamWidth  int
	window     int
	stride     int
	alphabet   *decoder.Alphabet
	am         acoustic.Model

	mu      sync.Mutex
	scorer  *lm.Model
	alpha   float64
	beta    float64
	oov     OOVPolicy
	spawned bool
	closed  bool
}

// New loads a model file and returns a handle decoding with the given
// beam width.
func New(path string, beamWidth int) (*Model, error) {
	if beamWidth <= 0 {
		return nil, newError(CodeFailCreateModel,
			fmt.Sprintf("beam width must be positive, got %d", beamWidth))
	}
	mf, err := loadManifest(path)
	if err != nil {
		return nil, err
	}
	alphabet, err := decoder.NewAlphabet(mf.Alphabet)
	if err != nil {
		return nil, wrapError(CodeInvalidAlphabet, "load alphabet", err)
	}

	var am acoustic.Model
	switch mf.Acoustic.Backend {
	case "exec":
		am, err = acoustic.NewExec(mf.Acoustic.Command, alphabet.Size()+1)
	case "mock":
		am, err = acoustic.NewSynthetic(alphabet.Size() + 1)
	default:
		return nil, newError(CodeModelIncompatible,
			fmt.Sprintf("unknown acoustic backend %q", mf.Acoustic.Backend))
	}
	if err != nil {
		return nil, wrapError(CodeFailInitSession, "initialize acoustic backend", err)
	}

	return &Model{
		sampleRate: mf.SampleRate,
		beamWidth:  beamWidth,
		window:     mf.WindowSamples,
		stride:     mf.WindowStride,
		alphabet:   alphabet,
		am:         am,
	}, nil
}

// SampleRate returns the sample rate the model expects for its input.
func (m *Model) SampleRate() int { return m.sampleRate }

// BeamWidth returns the decoder beam width.
func (m *Model) BeamWidth() int { return m.beamWidth }

// EnableDecoderWithLM attaches a language model and vocabulary trie for
// beam rescoring. alpha weighs the language-model contribution and beta
// is the word-insertion weight. It may be called at most once, and only
// before any stream is created from the handle: streams capture the
// scorer at creation, so enabling one later would split the handle's
// behavior between old and new sessions.
func (m *Model) EnableDecoderWithLM(lmPath, triePath string, alpha, beta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(CodeNoModel, "model released")
	}
	if m.spawned {
		return newError(CodeInvalidLM, "streams already created from this handle")
	}
	if m.scorer != nil {
		return newError(CodeInvalidLM, "language model already enabled")
	}
	if m.alphabet.Space() < 0 {
		return newError(CodeInvalidAlphabet, "alphabet has no word separator")
	}
	scorer, err := lm.Load(lmPath, triePath)
	if err != nil {
		return wrapError(CodeInvalidLM, "load language model", err)
	}
	for _, w := range scorer.Words() {
		if !m.alphabet.Has(w) {
			return newError(CodeInvalidAlphabet,
				fmt.Sprintf("vocabulary word %q uses characters outside the alphabet", w))
		}
	}
	m.scorer = scorer
	m.alpha = alpha
	m.beta = beta
	return nil
}

// SetOOVPolicy configures out-of-vocabulary handling. Like
// EnableDecoderWithLM it must be called before streams are created.
func (m *Model) SetOOVPolicy(p OOVPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oov = p
}

// Close releases the handle. Idempotent; it never fails.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// CreateStream starts a new streaming session against this handle.
func (m *Model) CreateStream() (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, newError(CodeFailCreateStream, "model released")
	}
	buf, err := frame.New(m.window, m.stride)
	if err != nil {
		return nil, wrapError(CodeFailCreateStream, "frame buffer", err)
	}
	var scorer decoder.Scorer
	if m.scorer != nil {
		scorer = m.scorer
	}
	dec, err := decoder.New(decoder.Config{
		Alphabet:  m.alphabet,
		BeamWidth: m.beamWidth,
		Scorer:    scorer,
		Alpha:     m.alpha,
		Beta:      m.beta,
		OOVPolicy: m.oov,
	})
	if err != nil {
		return nil, wrapError(CodeFailCreateStream, "decoder", err)
	}
	m.spawned = true
	return &Stream{
		model:          m,
		buf:            buf,
		dec:            dec,
		secondsPerStep: float64(m.stride) / float64(m.sampleRate),
	}, nil
}

// SpeechToText decodes a complete utterance in one call.
func (m *Model) SpeechToText(samples []int16) (string, error) {
	s, err := m.CreateStream()
	if err != nil {
		return "", err
	}
	s.FeedAudio(samples)
	if err := s.Err(); err != nil {
		s.Discard()
		return "", err
	}
	return s.Finish()
}

// SpeechToTextWithMetadata decodes a complete utterance and returns up to
// numResults alternative transcriptions with per-character timing.
func (m *Model) SpeechToTextWithMetadata(samples []int16, numResults int) (*Result, error) {
	s, err := m.CreateStream()
	if err != nil {
		return nil, err
	}
	s.FeedAudio(samples)
	if err := s.Err(); err != nil {
		s.Discard()
		return nil, err
	}
	return s.FinishWithMetadata(numResults)
}

// mapAcousticErr translates adapter failures into boundary codes.
func mapAcousticErr(err error) *Error {
	switch {
	case errors.Is(err, acoustic.ErrShape):
		return wrapError(CodeInvalidShape, "acoustic inference", err)
	case errors.Is(err, acoustic.ErrInit):
		return wrapError(CodeFailInitSession, "acoustic inference", err)
	default:
		return wrapError(CodeFailRunSession, "acoustic inference", err)
	}
}
