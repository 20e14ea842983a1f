package lm

// Trie is the word-boundary validation structure built from the language
// model's vocabulary. It is immutable after load and shared read-only by
// every beam, so lookups never allocate.
type Trie struct {
	root *trieNode
}

type trieNode struct {
	children map[rune]*trieNode
	terminal bool
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	return &Trie{root: &trieNode{}}
}

// Insert adds a vocabulary word.
func (t *Trie) Insert(word string) {
	n := t.root
	for _, r := range word {
		if n.children == nil {
			n.children = make(map[rune]*trieNode)
		}
		child, ok := n.children[r]
		if !ok {
			child = &trieNode{}
			n.children[r] = child
		}
		n = child
	}
	n.terminal = true
}

func (t *Trie) walk(s string) *trieNode {
	n := t.root
	for _, r := range s {
		child, ok := n.children[r]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// HasPrefix reports whether s is a prefix of some vocabulary word.
func (t *Trie) HasPrefix(s string) bool {
	return t.walk(s) != nil
}

// HasWord reports whether s is a complete vocabulary word.
func (t *Trie) HasWord(s string) bool {
	n := t.walk(s)
	return n != nil && n.terminal
}
