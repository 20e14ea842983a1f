package decoder

import "math"

var logZero = math.Inf(-1)

// logAdd returns log(exp(a)+exp(b)) without leaving log space.
func logAdd(a, b float64) float64 {
	if a == logZero {
		return b
	}
	if b == logZero {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// beam is one candidate prefix together with the CTC path probabilities
// needed to extend it by a single timestep. pBlank and pNonBlank are the
// log probabilities of all paths producing this prefix that end in a
// blank and in the prefix's last symbol, respectively.
type beam struct {
	key    string
	labels []int
	times  []int

	pBlank    float64
	pNonBlank float64

	// Language-model state. Depends only on the emitted sequence, so
	// merged paths always agree on it.
	lmScore  float64
	words    int
	word     []int
	prevWord string

	// timesProb tracks the best single-path contribution seen for this
	// prefix; character timing follows that path on merges.
	timesProb float64

	seq uint64
}

func (b *beam) total() float64 {
	return logAdd(b.pBlank, b.pNonBlank)
}

func (b *beam) last() int {
	if len(b.labels) == 0 {
		return -1
	}
	return b.labels[len(b.labels)-1]
}

// score is the combined ranking score: acoustic + alpha*LM + beta*words.
func (b *beam) score(alpha, beta float64) float64 {
	return b.total() + alpha*b.lmScore + beta*float64(b.words)
}
