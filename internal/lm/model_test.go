package lm

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testModel(t *testing.T) *Model {
	t.Helper()
	lmPath := writeFile(t, "words.lm", `
# unigrams
hello -1.2
world -1.5
help -2.0
# bigrams
hello world -0.3
`)
	triePath := writeFile(t, "words.trie", "hello\nworld\nhelp\n")
	m, err := Load(lmPath, triePath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return m
}

func TestTrieMembership(t *testing.T) {
	m := testModel(t)
	for _, prefix := range []string{"h", "hel", "hello", "w"} {
		if !m.IsPrefix(prefix) {
			t.Fatalf("expected %q to be a vocabulary prefix", prefix)
		}
	}
	if m.IsPrefix("x") {
		t.Fatal("unexpected prefix hit for x")
	}
	if !m.IsWord("help") || m.IsWord("hel") {
		t.Fatal("word membership mismatch")
	}
}

func TestScoring(t *testing.T) {
	m := testModel(t)
	if got := m.ScoreWord("", "hello"); got != -1.2 {
		t.Fatalf("unigram score = %v, want -1.2", got)
	}
	if got := m.ScoreWord("hello", "world"); got != -0.3 {
		t.Fatalf("bigram score = %v, want -0.3", got)
	}
	// No bigram entry falls back to the unigram.
	if got := m.ScoreWord("world", "hello"); got != -1.2 {
		t.Fatalf("backoff score = %v, want -1.2", got)
	}
	// Cached path returns the same value.
	if got := m.ScoreWord("hello", "world"); got != -0.3 {
		t.Fatalf("cached bigram score = %v, want -0.3", got)
	}
}

func TestVocabularyMismatch(t *testing.T) {
	lmPath := writeFile(t, "words.lm", "hello -1.0\n")
	triePath := writeFile(t, "words.trie", "hello\ngoodbye\n")
	if _, err := Load(lmPath, triePath); err == nil {
		t.Fatal("expected mismatch error for trie word without model entry")
	}
}

func TestWordsSorted(t *testing.T) {
	m := testModel(t)
	want := []string{"hello", "help", "world"}
	if got := m.Words(); !reflect.DeepEqual(got, want) {
		t.Fatalf("words = %v, want %v", got, want)
	}
}

func TestMalformedModel(t *testing.T) {
	lmPath := writeFile(t, "bad.lm", "hello notanumber\n")
	triePath := writeFile(t, "words.trie", "hello\n")
	if _, err := Load(lmPath, triePath); err == nil {
		t.Fatal("expected parse error")
	}
}
