package decoder

import (
	"fmt"
	"strings"
)

// Alphabet maps between symbol indices and the characters the acoustic
// model emits. The CTC blank is not part of the alphabet; it occupies the
// extra trailing column of each logit row, at index Size().
type Alphabet struct {
	symbols []string
	index   map[string]int
	space   int
}

// NewAlphabet builds an alphabet from the model manifest's symbol list.
// Symbols must be non-empty and unique.
func NewAlphabet(symbols []string) (*Alphabet, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("alphabet is empty")
	}
	a := &Alphabet{
		symbols: append([]string(nil), symbols...),
		index:   make(map[string]int, len(symbols)),
		space:   -1,
	}
	for i, s := range symbols {
		if s == "" {
			return nil, fmt.Errorf("alphabet symbol %d is empty", i)
		}
		if _, dup := a.index[s]; dup {
			return nil, fmt.Errorf("duplicate alphabet symbol %q", s)
		}
		a.index[s] = i
		if s == " " {
			a.space = i
		}
	}
	return a, nil
}

// Size returns the number of real symbols, excluding the blank.
func (a *Alphabet) Size() int { return len(a.symbols) }

// Blank returns the logit column index of the CTC blank.
func (a *Alphabet) Blank() int { return len(a.symbols) }

// Space returns the index of the word separator, or -1 if the alphabet
// has none (character-only models).
func (a *Alphabet) Space() int { return a.space }

// Symbol returns the character for a symbol index.
func (a *Alphabet) Symbol(i int) string { return a.symbols[i] }

// Index returns the symbol index for a character and whether it exists.
func (a *Alphabet) Index(s string) (int, bool) {
	i, ok := a.index[s]
	return i, ok
}

// Has reports whether every rune of s is covered by the alphabet.
func (a *Alphabet) Has(s string) bool {
	for _, r := range s {
		if _, ok := a.index[string(r)]; !ok {
			return false
		}
	}
	return true
}

// Decode renders a label sequence as text.
func (a *Alphabet) Decode(labels []int) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(a.symbols[l])
	}
	return b.String()
}
