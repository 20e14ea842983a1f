// Package lm loads the statistical language model and vocabulary trie the
// beam search consults at word boundaries. The on-disk model is a plain
// text file of log-probability entries: two fields for a unigram
// ("word logprob") and three for a bigram ("prev word logprob"). The trie
// file lists the vocabulary, one word per line; it must be built from the
// same vocabulary as the model.
package lm

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const bigramCacheSize = 4096

// Model is a read-only scorer over words and word pairs. It is safe for
// concurrent use by multiple streaming sessions.
type Model struct {
	unigrams map[string]float64
	bigrams  map[string]float64
	trie     *Trie
	cache    *lru.Cache[string, float64]
}

// Load reads the language model and its paired trie file. Every trie word
// must carry a unigram entry; a mismatch means the files were built from
// different vocabularies.
func Load(lmPath, triePath string) (*Model, error) {
	m := &Model{
		unigrams: make(map[string]float64),
		bigrams:  make(map[string]float64),
		trie:     NewTrie(),
	}
	cache, err := lru.New[string, float64](bigramCacheSize)
	if err != nil {
		return nil, fmt.Errorf("bigram cache: %w", err)
	}
	m.cache = cache

	if err := m.loadScores(lmPath); err != nil {
		return nil, err
	}
	if err := m.loadTrie(triePath); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) loadScores(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open language model: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		switch len(fields) {
		case 2:
			p, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return fmt.Errorf("language model line %d: bad log probability %q", line, fields[1])
			}
			m.unigrams[fields[0]] = p
		case 3:
			p, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return fmt.Errorf("language model line %d: bad log probability %q", line, fields[2])
			}
			m.bigrams[fields[0]+"\x00"+fields[1]] = p
		default:
			return fmt.Errorf("language model line %d: expected 2 or 3 fields, got %d", line, len(fields))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read language model: %w", err)
	}
	if len(m.unigrams) == 0 {
		return fmt.Errorf("language model %s holds no unigrams", path)
	}
	return nil
}

func (m *Model) loadTrie(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open trie: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	words := 0
	for sc.Scan() {
		line++
		word := strings.TrimSpace(sc.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		if _, ok := m.unigrams[word]; !ok {
			return fmt.Errorf("trie line %d: word %q has no language model entry; trie and model vocabularies differ", line, word)
		}
		m.trie.Insert(word)
		words++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read trie: %w", err)
	}
	if words == 0 {
		return fmt.Errorf("trie %s holds no words", path)
	}
	return nil
}

// ScoreWord returns the log-probability contribution of word following
// prev ("" at utterance start). Bigram hits win over the unigram backoff;
// lookups are cached since beams revisit the same pairs every timestep.
func (m *Model) ScoreWord(prev, word string) float64 {
	if prev == "" {
		return m.unigrams[word]
	}
	key := prev + "\x00" + word
	if p, ok := m.cache.Get(key); ok {
		return p
	}
	p, ok := m.bigrams[key]
	if !ok {
		p = m.unigrams[word]
	}
	m.cache.Add(key, p)
	return p
}

// IsWord reports whether word is in the vocabulary.
func (m *Model) IsWord(word string) bool { return m.trie.HasWord(word) }

// IsPrefix reports whether word is a prefix of some vocabulary word.
func (m *Model) IsPrefix(word string) bool { return m.trie.HasPrefix(word) }

// Words returns the vocabulary in sorted order.
func (m *Model) Words() []string {
	out := make([]string, 0, len(m.unigrams))
	for w := range m.unigrams {
		if m.trie.HasWord(w) {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
