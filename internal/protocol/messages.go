package protocol

import "time"

// AudioFrame represents PCM audio data streamed from edge devices.
type AudioFrame struct {
	SessionID  string `json:"session_id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// TranscriptItem is one decoded character with its timing.
type TranscriptItem struct {
	Character string  `json:"character"`
	Timestep  int     `json:"timestep"`
	StartTime float64 `json:"start_time"`
}

// Transcript represents decoder output broadcast on the bus. Partial
// transcripts carry text only; final transcripts also carry per-character
// items and a confidence score.
type Transcript struct {
	SessionID  string           `json:"session_id"`
	Text       string           `json:"text"`
	Partial    bool             `json:"partial"`
	Timestamp  time.Time        `json:"timestamp"`
	Confidence float64          `json:"confidence,omitempty"`
	Items      []TranscriptItem `json:"items,omitempty"`
}

const (
	SubjectAudioFramePrefix  = "audio.frame"
	SubjectTranscriptPartial = "stt.text.partial"
	SubjectTranscriptFinal   = "stt.text.final"
)
