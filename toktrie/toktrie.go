package toktrie

import (
	"fmt"
	"strings"

	"github.com/dlclark/derivre/helpers"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/pkg/errors"
)

// node is one byte of the trie. Nodes are stored in depth-first order, so
// the children of node i start at i+1 and the next sibling of i is at
// i+subtree.
type node struct {
	b       byte
	tok     TokenID
	subtree uint32
}

// TokTrie holds a vocabulary as a byte trie.
type TokTrie struct {
	nodes   []node
	tokens  [][]byte
	dups    map[TokenID][]TokenID
	special map[string]TokenID
	maxLen  int
	eos     TokenID
}

// TokenInfo describes one vocabulary entry.
type TokenInfo struct {
	Bytes []byte
	// Special entries are stored under their helpers.SpecialTokenBytes form
	// and Name is looked up by SpecialTokenID.
	Special bool
	Name    string
}

type buildNode struct {
	b        byte
	tok      TokenID
	children []*buildNode
}

// New builds a trie over vocab; token i has bytes vocab[i].Bytes. Tokens
// with equal bytes share a node. eos names the end-of-sequence token or is
// NoToken.
func New(vocab []TokenInfo, eos TokenID) *TokTrie {
	t := &TokTrie{
		tokens:  make([][]byte, len(vocab)),
		dups:    make(map[TokenID][]TokenID),
		special: make(map[string]TokenID),
		eos:     eos,
	}

	sorted := redblacktree.Tree{
		Comparator: func(a, b interface{}) int {
			return strings.Compare(a.(string), b.(string))
		},
	}
	for i, info := range vocab {
		tok := TokenID(i)
		b := info.Bytes
		if info.Special {
			b = helpers.SpecialTokenBytes(uint32(tok))
			if info.Name != "" {
				t.special[info.Name] = tok
			}
		}
		t.tokens[i] = b
		t.maxLen = max(t.maxLen, len(b))
		if len(b) == 0 {
			continue
		}
		if prev, found := sorted.Get(string(b)); found {
			first := prev.(TokenID)
			t.dups[first] = append(t.dups[first], tok)
			continue
		}
		sorted.Put(string(b), tok)
	}

	// keys arrive in byte order, so children are appended in order too
	root := &buildNode{tok: NoToken}
	var path []*buildNode
	var prevKey string
	itr := sorted.Iterator()
	for itr.Next() {
		key := itr.Key().(string)
		common := 0
		for common < len(key) && common < len(prevKey) && key[common] == prevKey[common] {
			common++
		}
		path = path[:min(common, len(path))]
		parent := root
		if len(path) > 0 {
			parent = path[len(path)-1]
		}
		for i := len(path); i < len(key); i++ {
			n := &buildNode{b: key[i], tok: NoToken}
			parent.children = append(parent.children, n)
			path = append(path, n)
			parent = n
		}
		parent.tok = itr.Value().(TokenID)
		prevKey = key
	}
	t.flatten(root)
	return t
}

func (t *TokTrie) flatten(n *buildNode) {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{b: n.b, tok: n.tok})
	for _, c := range n.children {
		t.flatten(c)
	}
	t.nodes[idx].subtree = uint32(len(t.nodes) - idx)
}

// VocabSize is the number of tokens, including duplicates.
func (t *TokTrie) VocabSize() int {
	return len(t.tokens)
}

// NumNodes is the size of the trie, root included.
func (t *TokTrie) NumNodes() int {
	return len(t.nodes)
}

func (t *TokTrie) MaxTokenLen() int {
	return t.maxLen
}

func (t *TokTrie) EOSToken() TokenID {
	return t.eos
}

// TokenBytes returns the bytes of tok.
func (t *TokTrie) TokenBytes(tok TokenID) []byte {
	return t.tokens[tok]
}

// SpecialTokenID returns the id of a named special token.
func (t *TokTrie) SpecialTokenID(name string) (TokenID, bool) {
	tok, ok := t.special[name]
	return tok, ok
}

// TokenDbg renders tok for debugging.
func (t *TokTrie) TokenDbg(tok TokenID) string {
	if int(tok) >= len(t.tokens) {
		return fmt.Sprintf("OOB[%d]", tok)
	}
	b := t.tokens[tok]
	if len(b) > 0 && b[0] == helpers.SpecialTokenPrefix {
		for name, id := range t.special {
			if id == tok {
				return name
			}
		}
		return fmt.Sprintf("<[%d]>", tok)
	}
	return fmt.Sprintf("%q", b)
}

// TokensDbg renders a token sequence.
func (t *TokTrie) TokensDbg(toks []TokenID) string {
	parts := make([]string, len(toks))
	for i, tok := range toks {
		parts[i] = t.TokenDbg(tok)
	}
	return "⟦" + strings.Join(parts, " ") + "⟧"
}

// child returns the node under n reached by b.
func (t *TokTrie) child(n uint32, b byte) (uint32, bool) {
	end := n + t.nodes[n].subtree
	for c := n + 1; c < end; c += t.nodes[c].subtree {
		if t.nodes[c].b == b {
			return c, true
		}
	}
	return 0, false
}

// PrefixToken returns the longest token that is a prefix of b, and its
// length.
func (t *TokTrie) PrefixToken(b []byte) (TokenID, int) {
	best, bestLen := NoToken, 0
	n := uint32(0)
	for i, c := range b {
		next, ok := t.child(n, c)
		if !ok {
			break
		}
		n = next
		if tok := t.nodes[n].tok; tok != NoToken {
			best, bestLen = tok, i+1
		}
	}
	return best, bestLen
}

// Greedy tokenizes b by repeatedly taking the longest token prefix. It
// fails on a byte no token starts with.
func (t *TokTrie) Greedy(b []byte) ([]TokenID, error) {
	var r []TokenID
	for len(b) > 0 {
		tok, n := t.PrefixToken(b)
		if n == 0 {
			return r, errors.Errorf("no token for byte %s", helpers.ByteDescription(b[0]))
		}
		r = append(r, tok)
		b = b[n:]
	}
	return r, nil
}

// Decode concatenates the bytes of toks.
func (t *TokTrie) Decode(toks []TokenID) []byte {
	var r []byte
	for _, tok := range toks {
		r = append(r, t.tokens[tok]...)
	}
	return r
}

// Recognizer is driven byte by byte while the trie is walked. TryPushByte
// returns false and leaves the state unchanged when b is not allowed.
type Recognizer interface {
	TryPushByte(b byte) bool
	PopBytes(n int)
}

// ComputeBias marks in set every token whose bytes the recognizer accepts
// from its current state. The recognizer is left in the state it started in.
func (t *TokTrie) ComputeBias(r Recognizer, set *TokenSet) {
	t.walk(r, 0, set)
}

func (t *TokTrie) walk(r Recognizer, n uint32, set *TokenSet) {
	end := n + t.nodes[n].subtree
	for c := n + 1; c < end; c += t.nodes[c].subtree {
		if !r.TryPushByte(t.nodes[c].b) {
			continue
		}
		if tok := t.nodes[c].tok; tok != NoToken {
			set.Allow(tok)
			for _, d := range t.dups[tok] {
				set.Allow(d)
			}
		}
		t.walk(r, c, set)
		r.PopBytes(1)
	}
}

// AllowedTokens runs ComputeBias into a fresh set.
func (t *TokTrie) AllowedTokens(r Recognizer) *TokenSet {
	set := NewTokenSet(t.VocabSize())
	t.ComputeBias(r, set)
	return set
}
