package toktrie

import (
	"strings"
	"testing"

	"github.com/dlclark/derivre/helpers"
	"github.com/stretchr/testify/require"
)

// prefixRecognizer accepts any prefix of one of its strings.
type prefixRecognizer struct {
	allowed []string
	cur     []byte
	maxLen  int
}

func (r *prefixRecognizer) TryPushByte(b byte) bool {
	next := string(append(r.cur, b))
	for _, a := range r.allowed {
		if strings.HasPrefix(a, next) {
			r.cur = append(r.cur, b)
			r.maxLen = max(r.maxLen, len(r.cur))
			return true
		}
	}
	return false
}

func (r *prefixRecognizer) PopBytes(n int) {
	r.cur = r.cur[:len(r.cur)-n]
}

func names(t *TokTrie, set *TokenSet) []string {
	var r []string
	for _, tok := range set.Tokens() {
		r = append(r, string(t.TokenBytes(tok)))
	}
	return r
}

func TestComputeBias(t *testing.T) {
	trie := FromWords([]string{"a", "ab", "abc", "b", "ba", "x", "abx", "abxyz"})

	scenarios := []struct {
		allowed []string
		want    []string
	}{
		{[]string{"abx"}, []string{"a", "ab", "abx"}},
		{[]string{"b"}, []string{"b"}},
		{[]string{"ba", "xa"}, []string{"b", "ba", "x"}},
		{[]string{"q"}, nil},
		{[]string{"abxyzw"}, []string{"a", "ab", "abx", "abxyz"}},
	}
	for _, sc := range scenarios {
		t.Run(strings.Join(sc.allowed, ","), func(t *testing.T) {
			r := &prefixRecognizer{allowed: sc.allowed}
			set := trie.AllowedTokens(r)
			if want, got := sc.want, names(trie, set); strings.Join(want, " ") != strings.Join(got, " ") {
				t.Fatalf("Wanted %v\nGot %v", want, got)
			}
			require.Empty(t, r.cur)
		})
	}
}

func TestDuplicateTokens(t *testing.T) {
	trie := FromWords([]string{"hello", "he", "hello"})
	require.Equal(t, 3, trie.VocabSize())
	set := trie.AllowedTokens(&prefixRecognizer{allowed: []string{"hello world"}})
	require.Equal(t, []TokenID{0, 1, 2}, set.Tokens())
}

func TestSpecialTokens(t *testing.T) {
	trie := FromWords([]string{"a", "b"}, "<|user|>", "<|eos|>")
	eos, ok := trie.SpecialTokenID("<|eos|>")
	require.True(t, ok)
	require.Equal(t, TokenID(3), eos)
	require.Equal(t, eos, trie.EOSToken())
	require.Equal(t, "<|eos|>", trie.TokenDbg(eos))
	require.Equal(t, `"a"`, trie.TokenDbg(0))

	r := &prefixRecognizer{allowed: []string{"a", string(helpers.SpecialTokenBytes(uint32(eos)))}}
	set := trie.AllowedTokens(r)
	require.Equal(t, []TokenID{0, eos}, set.Tokens())
}

func TestGreedy(t *testing.T) {
	trie := FromWords([]string{"a", "ab", "abc", "b", "c"})
	env := NewGreedyTokEnv(trie)
	toks, err := env.Tokenize([]byte("abcabba"))
	require.NoError(t, err)
	require.Equal(t, "⟦\"abc\" \"ab\" \"b\" \"a\"⟧", trie.TokensDbg(toks))
	require.Equal(t, "abcabba", string(trie.Decode(toks)))

	_, err = env.Tokenize([]byte("abq"))
	require.Error(t, err)
	require.Equal(t, 3, trie.MaxTokenLen())
	// root, a, ab, abc, b, c
	require.Equal(t, 6, env.TokTrie().NumNodes())
}

func TestTokenSet(t *testing.T) {
	s := NewTokenSet(70)
	s.Allow(3)
	s.Allow(64)
	s.Allow(69)
	require.Equal(t, 3, s.NumSet())
	require.True(t, s.IsAllowed(64))
	require.False(t, s.IsAllowed(65))
	require.False(t, s.IsAllowed(1000))
	s.Disallow(64)
	require.Equal(t, "2/70 [3 69]", s.String())

	o := NewTokenSet(70)
	o.Allow(5)
	s.Union(o)
	require.Equal(t, []TokenID{3, 5, 69}, s.Tokens())
	s.Clear()
	require.Equal(t, 0, s.NumSet())
}
