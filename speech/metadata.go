package speech

import "strings"

// MetadataItem is one transcribed character with its timing: the decoder
// timestep that emitted it and its position in seconds from the start of
// the audio.
type MetadataItem struct {
	Character string  `json:"character"`
	Timestep  int     `json:"timestep"`
	StartTime float64 `json:"start_time"`
}

// Metadata is one candidate transcription with per-character timing and
// a confidence value: the candidate's combined decoder score (acoustic
// plus weighted language-model contribution), meaningful for ranking
// only, not as an absolute probability.
type Metadata struct {
	Items      []MetadataItem `json:"items"`
	Confidence float64        `json:"confidence"`
}

// Transcript returns the candidate's text, the in-order concatenation of
// its item characters.
func (m *Metadata) Transcript() string {
	var b strings.Builder
	for _, it := range m.Items {
		b.WriteString(it.Character)
	}
	return b.String()
}

// Result holds up to the requested number of alternative transcriptions,
// ranked by descending confidence. Results are plain values owned by the
// caller; no release call is needed.
type Result struct {
	Transcripts []Metadata `json:"transcripts"`
}
