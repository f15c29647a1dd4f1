package derivre

import (
	"strings"
	"testing"

	"github.com/dlclark/derivre/grammar"
	"github.com/dlclark/derivre/lark"
	"github.com/dlclark/derivre/syntax"
	"github.com/dlclark/derivre/toktrie"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCompileGrammar(t *testing.T) {
	g, err := CompileGrammar(`start: "a" "b"+ "c"?`, GrammarOptions{})
	require.NoError(t, err)

	scenarios := []struct {
		input string
		want  bool
	}{
		{"ab", true},
		{"abbbb", true},
		{"abc", true},
		{"ac", false},
		{"", false},
	}
	for _, sc := range scenarios {
		if want, got := sc.want, g.Accepts(sc.input); want != got {
			t.Fatalf("%q: wanted %v, got %v", sc.input, want, got)
		}
	}
	require.NotEmpty(t, g.String())
	require.NotNil(t, g.Compiled())
}

func TestCompileGrammar_Malformed(t *testing.T) {
	_, err := CompileGrammar(`start: ("a"`, GrammarOptions{})
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, MalformedSource, ce.Kind)
	var le *lark.Error
	require.True(t, errors.As(err, &le))
	require.Equal(t, lark.UnexpectedEOFError, le.Code)
}

func TestCompileGrammar_Budget(t *testing.T) {
	// an alternation of concatenations whose expansion blows the fuel budget
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("(ab|cd|ef)")
	}
	src := "start: /" + sb.String() + "/"

	_, err := CompileGrammar(src, GrammarOptions{})
	require.NoError(t, err)

	limits := grammar.DefaultLimits()
	limits.MaxFuel = 100
	_, err = CompileGrammar(src, GrammarOptions{Limits: limits})
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, BudgetExceeded, ce.Kind)
	require.ErrorIs(t, err, syntax.ErrFuelExhausted)
	require.Contains(t, err.Error(), "derivre: budget exceeded")
}

func TestGrammar_AllowedTokens(t *testing.T) {
	trie := toktrie.FromWords([]string{"a", "b", "c", "ab"}, "<eos>")
	g, err := CompileGrammar(`start: "a" "b"+`, GrammarOptions{Trie: trie})
	require.NoError(t, err)

	set, err := g.AllowedTokens("")
	require.NoError(t, err)
	require.Equal(t, "2/5 [0 3]", set.String())

	set, err = g.AllowedTokens("ab")
	require.NoError(t, err)
	require.Equal(t, "2/5 [1 4]", set.String())

	_, err = g.AllowedTokens("x")
	require.Error(t, err)

	g, err = CompileGrammar(`start: "a"`, GrammarOptions{})
	require.NoError(t, err)
	_, err = g.AllowedTokens("")
	require.Error(t, err)
}
