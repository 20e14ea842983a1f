// Package decoder implements CTC prefix beam search over per-timestep
// symbol log-probability rows. The decoder is incremental: each Step call
// folds one timestep into the beam set, and Hypotheses reads the current
// best prefixes without mutating any state, so it serves both
// intermediate and final decodes.
package decoder

import (
	"fmt"
	"sort"
)

// Scorer rescored completed words against a language model and validates
// partial words against its vocabulary trie. Implementations must be
// deterministic and safe for concurrent readers.
type Scorer interface {
	// ScoreWord returns the log-probability contribution of word given
	// the previous word ("" at the start of the utterance).
	ScoreWord(prev, word string) float64
	// IsWord reports whether word is in the vocabulary.
	IsWord(word string) bool
	// IsPrefix reports whether word is a prefix of any vocabulary word.
	IsPrefix(word string) bool
}

// OOVPolicy selects how candidates containing out-of-vocabulary words are
// treated during expansion.
type OOVPolicy int

const (
	// OOVPenalize keeps the candidate and charges a fixed log-space
	// penalty when the word completes.
	OOVPenalize OOVPolicy = iota
	// OOVReject drops candidates whose partial word leaves the trie.
	OOVReject
)

const (
	// Penalty charged to a completed word the vocabulary does not know.
	oovScore = -1000.0
	// Symbols below this log probability cannot affect the ranking and
	// are not expanded.
	cutoffLogProb = -40.0
)

// Config carries the immutable decoding parameters shared by every
// timestep of one utterance.
type Config struct {
	Alphabet  *Alphabet
	BeamWidth int
	Scorer    Scorer
	Alpha     float64
	Beta      float64
	OOVPolicy OOVPolicy
}

// Decoder maintains the pruned beam set for one utterance.
type Decoder struct {
	cfg   Config
	beams []*beam
	steps int
	seq   uint64
}

// New returns a decoder holding the single empty prefix.
func New(cfg Config) (*Decoder, error) {
	if cfg.Alphabet == nil {
		return nil, fmt.Errorf("decoder requires an alphabet")
	}
	if cfg.BeamWidth <= 0 {
		return nil, fmt.Errorf("beam width must be positive, got %d", cfg.BeamWidth)
	}
	d := &Decoder{cfg: cfg}
	root := &beam{pBlank: 0, pNonBlank: logZero, timesProb: logZero, seq: d.nextSeq()}
	d.beams = []*beam{root}
	return d, nil
}

func (d *Decoder) nextSeq() uint64 {
	d.seq++
	return d.seq
}

// Timesteps returns the number of rows folded in so far.
func (d *Decoder) Timesteps() int { return d.steps }

// Width returns the current beam set size.
func (d *Decoder) Width() int { return len(d.beams) }

// Step folds one timestep's log-probability row into the beam set. The
// row must have Alphabet.Size()+1 entries, the last being the blank.
func (d *Decoder) Step(logProbs []float64) error {
	want := d.cfg.Alphabet.Size() + 1
	if len(logProbs) != want {
		return fmt.Errorf("logit row has %d entries, alphabet needs %d", len(logProbs), want)
	}

	blank := d.cfg.Alphabet.Blank()
	t := d.steps
	next := make(map[string]*beam, len(d.beams)*2)
	var order []*beam

	continuation := func(b *beam) *beam {
		n, ok := next[b.key]
		if !ok {
			n = &beam{
				key:       b.key,
				labels:    b.labels,
				times:     b.times,
				pBlank:    logZero,
				pNonBlank: logZero,
				lmScore:   b.lmScore,
				words:     b.words,
				word:      b.word,
				prevWord:  b.prevWord,
				timesProb: logZero,
				seq:       b.seq,
			}
			next[b.key] = n
			order = append(order, n)
		} else if b.seq < n.seq {
			n.seq = b.seq
		}
		return n
	}

	for _, b := range d.beams {
		total := b.total()

		if lp := logProbs[blank]; lp > cutoffLogProb {
			n := continuation(b)
			n.pBlank = logAdd(n.pBlank, total+lp)
			n.noteTimes(b.times, total+lp)
		}

		for c := 0; c < blank; c++ {
			lp := logProbs[c]
			if lp <= cutoffLogProb {
				continue
			}
			if c == b.last() {
				// Repeated symbol collapses into the same prefix; a new
				// character only arises from the blank-terminated paths.
				if b.pNonBlank != logZero {
					n := continuation(b)
					n.pNonBlank = logAdd(n.pNonBlank, b.pNonBlank+lp)
					n.noteTimes(b.times, b.pNonBlank+lp)
				}
				if b.pBlank != logZero {
					d.extend(next, &order, b, c, t, b.pBlank+lp)
				}
			} else {
				d.extend(next, &order, b, c, t, total+lp)
			}
		}
	}

	if len(order) == 0 {
		d.steps++
		return nil
	}

	alpha, beta := d.cfg.Alpha, d.cfg.Beta
	sort.SliceStable(order, func(i, j int) bool {
		si, sj := order[i].score(alpha, beta), order[j].score(alpha, beta)
		if si != sj {
			return si > sj
		}
		if len(order[i].labels) != len(order[j].labels) {
			return len(order[i].labels) < len(order[j].labels)
		}
		return order[i].seq < order[j].seq
	})
	if len(order) > d.cfg.BeamWidth {
		order = order[:d.cfg.BeamWidth]
	}
	d.beams = order
	d.steps++
	return nil
}

// extend merges the candidate obtained by appending symbol c to b, with
// the given log-probability contribution.
func (d *Decoder) extend(next map[string]*beam, order *[]*beam, b *beam, c, t int, contrib float64) {
	key := b.key + string(rune(c))
	n, ok := next[key]
	if !ok {
		labels := make([]int, len(b.labels)+1)
		copy(labels, b.labels)
		labels[len(b.labels)] = c

		times := make([]int, len(b.times)+1)
		copy(times, b.times)
		times[len(b.times)] = t

		n = &beam{
			key:       key,
			labels:    labels,
			times:     times,
			pBlank:    logZero,
			pNonBlank: logZero,
			lmScore:   b.lmScore,
			words:     b.words,
			word:      b.word,
			prevWord:  b.prevWord,
			timesProb: logZero,
			seq:       d.nextSeq(),
		}
		if d.cfg.Scorer != nil {
			if !d.applyLM(n, c) {
				return
			}
		}
		next[key] = n
		*order = append(*order, n)
	}
	n.pNonBlank = logAdd(n.pNonBlank, contrib)
	n.noteTimes(appendTime(b.times, t), contrib)
}

// applyLM updates the candidate's language-model state for its newly
// appended symbol. Returns false when the OOV policy rejects it.
func (d *Decoder) applyLM(n *beam, c int) bool {
	sc := d.cfg.Scorer
	if c == d.cfg.Alphabet.Space() {
		w := d.cfg.Alphabet.Decode(n.word)
		if w != "" {
			if sc.IsWord(w) {
				n.lmScore += sc.ScoreWord(n.prevWord, w)
			} else if d.cfg.OOVPolicy == OOVReject {
				return false
			} else {
				n.lmScore += oovScore
			}
			n.words++
			n.prevWord = w
		}
		n.word = nil
		return true
	}
	word := make([]int, len(n.word)+1)
	copy(word, n.word)
	word[len(n.word)] = c
	n.word = word
	if d.cfg.OOVPolicy == OOVReject && !sc.IsPrefix(d.cfg.Alphabet.Decode(word)) {
		return false
	}
	return true
}

func appendTime(times []int, t int) []int {
	out := make([]int, len(times)+1)
	copy(out, times)
	out[len(times)] = t
	return out
}

// noteTimes keeps the character timing of the highest-probability path
// contributing to a merged prefix.
func (b *beam) noteTimes(times []int, contrib float64) {
	if contrib > b.timesProb {
		b.timesProb = contrib
		b.times = times
	}
}

// Hypothesis is one ranked transcription candidate.
type Hypothesis struct {
	Text     string
	Labels   []int
	Times    []int
	Acoustic float64
	LMScore  float64
	Words    int
	Score    float64
}

// Hypotheses returns up to n ranked candidates without mutating decoder
// state; calling it repeatedly between steps yields identical results.
// A trailing partial word is scored read-only, so intermediate and final
// decodes rank consistently.
func (d *Decoder) Hypotheses(n int) []Hypothesis {
	if n <= 0 {
		n = 1
	}
	type ranked struct {
		b     *beam
		lm    float64
		words int
		score float64
	}
	rs := make([]ranked, 0, len(d.beams))
	for _, b := range d.beams {
		lm, words := b.lmScore, b.words
		if d.cfg.Scorer != nil && len(b.word) > 0 {
			w := d.cfg.Alphabet.Decode(b.word)
			if d.cfg.Scorer.IsWord(w) {
				lm += d.cfg.Scorer.ScoreWord(b.prevWord, w)
			} else {
				lm += oovScore
			}
			words++
		}
		rs = append(rs, ranked{
			b:     b,
			lm:    lm,
			words: words,
			score: b.total() + d.cfg.Alpha*lm + d.cfg.Beta*float64(words),
		})
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].score != rs[j].score {
			return rs[i].score > rs[j].score
		}
		if len(rs[i].b.labels) != len(rs[j].b.labels) {
			return len(rs[i].b.labels) < len(rs[j].b.labels)
		}
		return rs[i].b.seq < rs[j].b.seq
	})
	if len(rs) > n {
		rs = rs[:n]
	}
	out := make([]Hypothesis, len(rs))
	for i, r := range rs {
		out[i] = Hypothesis{
			Text:     d.cfg.Alphabet.Decode(r.b.labels),
			Labels:   append([]int(nil), r.b.labels...),
			Times:    append([]int(nil), r.b.times...),
			Acoustic: r.b.total(),
			LMScore:  r.lm,
			Words:    r.words,
			Score:    r.score,
		}
	}
	return out
}
