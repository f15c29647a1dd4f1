package toktrie

import (
	"math/bits"
	"strconv"
	"strings"
)

// TokenID is an index into a vocabulary.
type TokenID uint32

// NoToken marks trie nodes that end no token.
const NoToken = TokenID(^uint32(0))

// TokenSet is a bitmask over a vocabulary.
type TokenSet struct {
	words []uint32
	size  int
}

func NewTokenSet(vocabSize int) *TokenSet {
	return &TokenSet{words: make([]uint32, (vocabSize+31)/32), size: vocabSize}
}

func (s *TokenSet) Allow(tok TokenID) {
	s.words[tok/32] |= 1 << (tok % 32)
}

func (s *TokenSet) Disallow(tok TokenID) {
	s.words[tok/32] &^= 1 << (tok % 32)
}

func (s *TokenSet) IsAllowed(tok TokenID) bool {
	return int(tok) < s.size && s.words[tok/32]&(1<<(tok%32)) != 0
}

// NumSet returns the number of allowed tokens.
func (s *TokenSet) NumSet() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount32(w)
	}
	return n
}

func (s *TokenSet) Len() int {
	return s.size
}

func (s *TokenSet) Clear() {
	clear(s.words)
}

// Union adds every token of o.
func (s *TokenSet) Union(o *TokenSet) {
	for i, w := range o.words {
		s.words[i] |= w
	}
}

// Words exposes the mask, 32 tokens per word.
func (s *TokenSet) Words() []uint32 {
	return s.words
}

// Tokens lists the allowed tokens in order.
func (s *TokenSet) Tokens() []TokenID {
	var r []TokenID
	for i, w := range s.words {
		for w != 0 {
			r = append(r, TokenID(i*32+bits.TrailingZeros32(w)))
			w &= w - 1
		}
	}
	return r
}

func (s *TokenSet) String() string {
	toks := s.Tokens()
	parts := make([]string, 0, min(len(toks), 20))
	for i, t := range toks {
		if i == 20 {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, strconv.Itoa(int(t)))
	}
	return strconv.Itoa(len(toks)) + "/" + strconv.Itoa(s.size) + " [" + strings.Join(parts, " ") + "]"
}
