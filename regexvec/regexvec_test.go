package regexvec

import (
	"math/rand"
	"testing"

	"github.com/dlclark/derivre/helpers"
	"github.com/dlclark/derivre/syntax"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func rx(t *testing.T, spec *LexerSpec, pattern string) syntax.ExprRef {
	t.Helper()
	e, err := spec.Exprs.ParseRegex(pattern)
	require.NoError(t, err)
	return e
}

func TestLowestMatch(t *testing.T) {
	scenarios := []struct {
		name  string
		lazy  string
		greed string
		input string
		want  string
	}{
		{"lazy wins once nullable", `ab`, `a[a-z]*`, "ab", "L"},
		{"greedy forced to end", `ab`, `axy`, "axy", "G"},
		{"greedy can continue", `abc`, `a[a-z]*`, "ax", ""},
		{"lazy not done yet", `abc`, `ab`, "ab", ""},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			spec := NewLexerSpec(nil)
			spec.AddLazy("L", rx(t, spec, sc.lazy))
			spec.AddGreedy("G", rx(t, spec, sc.greed), false)
			rv := New(spec, DefaultOptions())
			st := rv.TransitionBytes(rv.InitialState(spec.AllLexemes()), []byte(sc.input))
			require.False(t, rv.IsDead(st))

			idx, _, ok := rv.LowestMatch(st)
			got := ""
			if ok {
				got = spec.Lexeme(idx).Name
			}
			if want := sc.want; want != got {
				t.Fatalf("Wanted %q\nGot %q (state %s)", want, got, rv.DescribeState(st))
			}
		})
	}
}

func TestLowestMatch_SpecialKeepsOthersAlive(t *testing.T) {
	spec := NewLexerSpec(nil)
	eos := spec.AddSpecialToken("eos", 5)
	all := spec.AddGreedy("ANY", syntax.AnyByteString, false)
	rv := New(spec, DefaultOptions())
	st := rv.TransitionBytes(rv.InitialState(spec.AllLexemes()), helpers.SpecialTokenBytes(5))

	desc := rv.StateDesc(st)
	if want, got := eos, desc.LowestMatch; want != got {
		t.Fatalf("Wanted %v\nGot %v (state %s)", want, got, rv.DescribeState(st))
	}
	require.True(t, desc.Possible.Has(eos))
	require.True(t, desc.Possible.Has(all))
	require.True(t, desc.GreedyAccepting.Has(all))
	require.Equal(t, syntax.NextSomeBytes, desc.NextByte.Kind)
}

func TestGreedyAccepting(t *testing.T) {
	spec := NewLexerSpec(nil)
	kw := spec.AddGreedy("IF", spec.Exprs.MkString("if"), false)
	id := spec.AddGreedy("ID", rx(t, spec, `[a-z]+`), false)
	num := spec.AddGreedy("NUM", rx(t, spec, `[0-9]+`), false)
	rv := New(spec, DefaultOptions())

	st := rv.TransitionBytes(rv.InitialState(spec.AllLexemes()), []byte("if"))
	desc := rv.StateDesc(st)
	require.True(t, desc.GreedyAccepting.Has(kw))
	require.True(t, desc.GreedyAccepting.Has(id))
	require.False(t, desc.Possible.Has(num))
	// the identifier may still grow
	require.False(t, desc.HasLowestMatch())
	require.Equal(t, syntax.NextSomeBytes, desc.NextByte.Kind)

	st = rv.Transition(st, 'x')
	require.Equal(t, 1, rv.PossibleLexemes(st).Len())
	require.True(t, rv.PossibleLexemes(st).Has(id))

	require.Equal(t, DeadState, rv.Transition(st, '!'))
	require.Equal(t, DeadState, rv.Transition(DeadState, 'a'))
}

func TestStateDedup(t *testing.T) {
	for _, compress := range []bool{false, true} {
		spec := NewLexerSpec(nil)
		spec.AddGreedy("A", rx(t, spec, `ax|bx`), false)
		opts := DefaultOptions()
		opts.CompressAlphabet = compress
		rv := New(spec, opts)

		start := rv.InitialState(spec.AllLexemes())
		fromA := rv.Transition(start, 'a')
		fromB := rv.Transition(start, 'b')
		if want, got := fromA, fromB; want != got {
			t.Fatalf("compress=%v: Wanted %v\nGot %v", compress, want, got)
		}
		// dead, start, after the first byte, after x
		end := rv.Transition(fromA, 'x')
		require.Equal(t, end, rv.TransitionBytes(start, []byte("bx")))
		require.Equal(t, 4, rv.NumStates())
		require.Equal(t, start, rv.InitialState(spec.AllLexemes()))
	}
}

func TestAlphabetCompression(t *testing.T) {
	spec := NewLexerSpec(nil)
	spec.AddGreedy("ID", rx(t, spec, `[a-z_][a-z_0-9]*`), false)
	spec.AddGreedy("WS", rx(t, spec, `[ \t]+`), false)
	rv := New(spec, DefaultOptions())
	require.Less(t, rv.AlphabetLen(), 16)

	plain := func() *RegexVec {
		opts := DefaultOptions()
		opts.CompressAlphabet = false
		return New(spec, opts)
	}()
	require.Equal(t, 256, plain.AlphabetLen())

	for _, in := range []string{"foo_1", "  \t", "a b", "_9x", "Q"} {
		a := rv.TransitionBytes(rv.InitialState(spec.AllLexemes()), []byte(in))
		b := plain.TransitionBytes(plain.InitialState(spec.AllLexemes()), []byte(in))
		require.Equal(t, rv.StateDesc(a).GreedyAccepting.String(), plain.StateDesc(b).GreedyAccepting.String(), in)
	}
}

func TestStateLimit(t *testing.T) {
	spec := NewLexerSpec(nil)
	spec.AddGreedy("X", rx(t, spec, `(a|b)*a(a|b){12}`), false)
	opts := DefaultOptions()
	opts.MaxStates = 100
	rv := New(spec, opts)

	rnd := rand.New(rand.NewSource(1))
	st := rv.InitialState(spec.AllLexemes())
	for i := 0; i < 500 && !rv.HasError(); i++ {
		st = rv.Transition(st, "ab"[rnd.Intn(2)])
	}
	require.True(t, rv.HasError())
	require.True(t, errors.Is(rv.Err(), ErrStateLimit))
	require.LessOrEqual(t, rv.NumStates(), 100)

	// the error is permanent
	require.Equal(t, DeadState, rv.Transition(st, 'a'))
	require.Equal(t, DeadState, rv.InitialState(spec.AllLexemes()))
}

func TestFuelLimit(t *testing.T) {
	spec := NewLexerSpec(nil)
	spec.AddGreedy("X", rx(t, spec, `[a-z]*q[a-z]{20}`), false)
	opts := DefaultOptions()
	opts.MaxFuel = 1
	rv := New(spec, opts)

	st := rv.TransitionBytes(rv.InitialState(spec.AllLexemes()), []byte("abcqabc"))
	require.Equal(t, DeadState, st)
	require.ErrorIs(t, rv.Err(), syntax.ErrFuelExhausted)
}

func TestSpecialTokens(t *testing.T) {
	spec := NewLexerSpec(nil)
	anyBytes, err := spec.Exprs.ParseRegexWith(`.*`, syntax.ParseOptions{AllowInvalidUTF8: true, DotAll: true})
	require.NoError(t, err)
	text := spec.AddGreedy("TEXT", anyBytes, false)
	eos := spec.AddSpecialToken("<eos>", 7)
	ranges := spec.AddTokenRanges("<[1-5,9]>", [][2]uint32{{1, 5}, {9, 9}})
	require.Equal(t, eos, spec.AddSpecialToken("<eos>", 7))
	rv := New(spec, DefaultOptions())
	start := rv.InitialState(spec.AllLexemes())

	st := rv.TransitionBytes(start, helpers.SpecialTokenBytes(7))
	idx, _, ok := rv.LowestMatch(st)
	require.True(t, ok)
	require.Equal(t, eos, idx)

	only := NewLexemeSet(spec.Len())
	only.Add(ranges)
	rstart := rv.InitialState(only)
	for tok, want := range map[uint32]bool{1: true, 3: true, 5: true, 6: false, 9: true, 10: false, 0: false} {
		st := rv.TransitionBytes(rstart, helpers.SpecialTokenBytes(tok))
		idx, _, ok := rv.LowestMatch(st)
		if got := ok && idx == ranges; want != got {
			t.Fatalf("token %d: Wanted %v\nGot %v", tok, want, got)
		}
	}

	// text alone never has to stop
	st = rv.TransitionBytes(start, []byte("hello"))
	require.True(t, rv.StateDesc(st).GreedyAccepting.Has(text))
	require.False(t, rv.StateDesc(st).HasLowestMatch())
}

func TestLimitStateTo(t *testing.T) {
	spec := NewLexerSpec(nil)
	a := spec.AddGreedy("A", rx(t, spec, `a+`), false)
	b := spec.AddGreedy("B", rx(t, spec, `a+b`), false)
	rv := New(spec, DefaultOptions())
	st := rv.TransitionBytes(rv.InitialState(spec.AllLexemes()), []byte("aa"))
	require.Equal(t, 2, rv.PossibleLexemes(st).Len())

	onlyB := NewLexemeSet(spec.Len())
	onlyB.Add(b)
	limited := rv.LimitStateTo(st, onlyB)
	require.NotEqual(t, st, limited)
	require.False(t, rv.PossibleLexemes(limited).Has(a))
	require.Equal(t, limited, rv.TransitionBytes(rv.InitialState(onlyB), []byte("aa")))
	require.Equal(t, st, rv.LimitStateTo(st, spec.AllLexemes()))
	require.Equal(t, DeadState, rv.LimitStateTo(st, NewLexemeSet(0)))
}

func TestCheckSubsume(t *testing.T) {
	spec := NewLexerSpec(nil)
	id := spec.AddGreedy("ID", rx(t, spec, `[a-z]+`), false)
	lit := spec.AddGreedy("KW", spec.Exprs.MkString("if"), false)
	lazy := spec.AddLazy("LAZY", rx(t, spec, `[a-z]+`))
	require.True(t, spec.Lexeme(id).Subsumable)
	require.False(t, spec.Lexeme(lit).Subsumable)
	require.False(t, spec.Lexeme(lazy).Subsumable)

	rv := New(spec, DefaultOptions())
	st := rv.TransitionBytes(rv.InitialState(spec.AllLexemes()), []byte("ab"))
	big := rx(t, spec, `[a-z0-9]*`)

	ok, err := rv.CheckSubsume(st, id, big)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = rv.CheckSubsume(st, id, rx(t, spec, `[a-y]*`))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = rv.CheckSubsume(st, lazy, big)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLexemeSet(t *testing.T) {
	s := NewLexemeSet(3)
	s.Add(2)
	s.Add(130)
	s.Add(64)
	require.Equal(t, 3, s.Len())
	require.Equal(t, "{2,64,130}", s.String())
	require.Equal(t, LexemeIdx(2), s.First())
	s.Remove(2)
	require.False(t, s.Has(2))

	o := NewLexemeSet(1)
	o.Add(0)
	u := o.Union(s)
	require.Equal(t, "{0,64,130}", u.String())
	require.Equal(t, NoLexeme, NewLexemeSet(10).First())

	// equal sets of different capacity share a key
	a, b := NewLexemeSet(1), NewLexemeSet(500)
	a.Add(5)
	b.Add(5)
	require.Equal(t, a.key(), b.key())
}
