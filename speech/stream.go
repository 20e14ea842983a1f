package speech

import (
	"github.com/loqalabs/loqa-speech/internal/decoder"
	"github.com/loqalabs/loqa-speech/internal/frame"
)

type streamPhase int

const (
	phaseActive streamPhase = iota
	phaseDone
	phaseErrored
)

// Stream is one streaming inference session. It accumulates audio,
// advances the beam search window by window, and serves intermediate
// decodes at any point. Exactly one of Finish, FinishWithMetadata, or
// Discard consumes the stream; decode operations after that return
// ErrStreamDone. A Stream is not safe for concurrent use; the caller
// serializes access, matching the single-driver session contract.
type Stream struct {
	model          *Model
	buf            *frame.Buffer
	dec            *decoder.Decoder
	secondsPerStep float64
	phase          streamPhase
	err            error
}

// FeedAudio appends 16-bit mono PCM samples at the model's sample rate.
// An adapter failure moves the stream into a terminal errored state; the
// failure is observable through Err and through any subsequent decode
// call. Feeding a consumed or errored stream is a no-op.
func (s *Stream) FeedAudio(samples []int16) {
	if s.phase != phaseActive {
		return
	}
	if err := s.buf.Push(samples, s.process); err != nil {
		s.fail(err)
	}
}

// process runs inference on one window and folds its rows into the beam
// search. Inference completes before any beam update for the window.
func (s *Stream) process(window []int16) error {
	rows, err := s.model.am.Infer(window)
	if err != nil {
		return mapAcousticErr(err)
	}
	want := s.model.alphabet.Size() + 1
	for _, row := range rows {
		if len(row) != want {
			return newError(CodeInvalidShape, "acoustic row width mismatch")
		}
		logProbs := make([]float64, len(row))
		for i, p := range row {
			logProbs[i] = float64(p)
		}
		if err := s.dec.Step(logProbs); err != nil {
			return wrapError(CodeFailRunSession, "beam update", err)
		}
	}
	return nil
}

func (s *Stream) fail(err error) {
	s.phase = phaseErrored
	s.err = err
}

// Err returns the terminal error of an errored stream, or nil.
func (s *Stream) Err() error {
	if s.phase == phaseErrored {
		return s.err
	}
	return nil
}

// IntermediateDecode returns the current best transcription without
// consuming buffered-but-incomplete audio and without mutating decoder
// state. It may be called any number of times mid-stream.
func (s *Stream) IntermediateDecode() (string, error) {
	switch s.phase {
	case phaseErrored:
		return "", s.err
	case phaseDone:
		return "", ErrStreamDone
	}
	hyps := s.dec.Hypotheses(1)
	if len(hyps) == 0 {
		return "", nil
	}
	return hyps[0].Text, nil
}

// Finish flushes remaining audio, runs the final decode pass, and
// consumes the stream.
func (s *Stream) Finish() (string, error) {
	res, err := s.FinishWithMetadata(1)
	if err != nil {
		return "", err
	}
	if len(res.Transcripts) == 0 {
		return "", nil
	}
	return res.Transcripts[0].Transcript(), nil
}

// FinishWithMetadata flushes remaining audio and returns up to numResults
// ranked transcriptions with per-character timing, consuming the stream.
func (s *Stream) FinishWithMetadata(numResults int) (*Result, error) {
	switch s.phase {
	case phaseErrored:
		return nil, s.err
	case phaseDone:
		return nil, ErrStreamDone
	}
	if numResults <= 0 {
		numResults = 1
	}
	if err := s.buf.Flush(s.process); err != nil {
		s.fail(err)
		return nil, s.err
	}
	hyps := s.dec.Hypotheses(numResults)
	s.phase = phaseDone
	return s.result(hyps), nil
}

// Discard consumes the stream without the cost of a final decode pass.
// It always succeeds, including on an errored stream.
func (s *Stream) Discard() {
	s.phase = phaseDone
}

func (s *Stream) result(hyps []decoder.Hypothesis) *Result {
	res := &Result{Transcripts: make([]Metadata, len(hyps))}
	for i, h := range hyps {
		items := make([]MetadataItem, len(h.Labels))
		for j, label := range h.Labels {
			ts := h.Times[j]
			items[j] = MetadataItem{
				Character: s.model.alphabet.Symbol(label),
				Timestep:  ts,
				StartTime: float64(ts) * s.secondsPerStep,
			}
		}
		res.Transcripts[i] = Metadata{Items: items, Confidence: h.Score}
	}
	return res
}
