package syntax

import (
	"testing"

	"github.com/dlclark/derivre/helpers"
	"github.com/stretchr/testify/require"
)

func TestReservedRefs(t *testing.T) {
	s := NewExprSet()
	require.Equal(t, AnyByteString, s.MkRepeat(AnyByte, 0, RepeatInf))
	require.Equal(t, NonEmptyByteString, s.MkRepeat(AnyByte, 1, RepeatInf))
	require.Equal(t, AnyByte, s.MkByteSet(helpers.FullByteSet))
	require.True(t, s.Nullable(EmptyString))
	require.False(t, s.Nullable(NoMatch))
	require.False(t, s.Positive(NoMatch))
	require.True(t, s.Positive(NonEmptyByteString))
}

func TestHashConsIdempotent(t *testing.T) {
	s := NewExprSet()
	a, b, c := s.MkByte('a'), s.MkByte('b'), s.MkString("cd")
	n := s.Len()

	if want, got := s.MkConcat(a, c), s.MkConcat(a, c); want != got {
		t.Fatalf("Wanted %v\nGot %v", want, got)
	}
	x := s.MkRepeat(s.MkOr(a, c), 2, 5)
	if want, got := x, s.MkRepeat(s.MkOr(c, a), 2, 5); want != got {
		t.Fatalf("Wanted %v\nGot %v", want, got)
	}
	m := s.Len()
	s.MkRepeat(s.MkOr(a, c), 2, 5)
	if want, got := m, s.Len(); want != got {
		t.Fatalf("arena grew on repeated construction: %v -> %v", want, got)
	}
	require.Greater(t, m, n)

	or1 := s.MkOr(s.MkOr(a, b), c)
	or2 := s.MkOr(a, b, c)
	or3 := s.MkOr(c, s.MkOr(b, a))
	require.Equal(t, or1, or2)
	require.Equal(t, or2, or3)

	and1 := s.MkAnd(s.MkAnd(x, s.MkNot(c)), or1)
	and2 := s.MkAnd(or1, x, s.MkNot(c))
	require.Equal(t, and1, and2)
}

func TestByteSetNormalization(t *testing.T) {
	s := NewExprSet()
	require.Equal(t, NoMatch, s.MkByteSet(helpers.ByteSet{}))
	require.Equal(t, s.MkByte('x'), s.MkByteSet(helpers.NewByteSet('x')))
	require.Equal(t, s.MkByte('x'), s.MkByteRange('x', 'x'))

	// single bytes fold into one set
	or := s.MkOr(s.MkByte('a'), s.MkByte('b'), s.MkByteRange('c', 'e'))
	require.Equal(t, s.MkByteRange('a', 'e'), or)
	require.Equal(t, TagByteSet, s.Get(or).Tag)

	and := s.MkAnd(s.MkByteRange('a', 'm'), s.MkByteRange('k', 'z'))
	require.Equal(t, s.MkByteRange('k', 'm'), and)
	require.Equal(t, NoMatch, s.MkAnd(s.MkByte('a'), s.MkByte('b')))
}

func TestConcatLaws(t *testing.T) {
	s := NewExprSet()
	x := s.MkRepeat(s.MkByte('x'), 1, RepeatInf)
	scenarios := []struct {
		name      string
		want, got ExprRef
	}{
		{"empty left", x, s.MkConcat(EmptyString, x)},
		{"empty right", x, s.MkConcat(x, EmptyString)},
		{"no match left", NoMatch, s.MkConcat(NoMatch, x)},
		{"no match right", NoMatch, s.MkConcat(x, NoMatch)},
		{"literal runs", s.MkString("abcd"), s.MkConcat(s.MkString("ab"), s.MkString("cd"))},
		{"literal bytes", s.MkString("abc"), s.MkConcatAll(s.MkByte('a'), s.MkByte('b'), s.MkByte('c'))},
		{"right assoc", s.MkConcat(x, s.MkConcat(x, x)), s.MkConcat(s.MkConcat(x, x), x)},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			if sc.want != sc.got {
				t.Fatalf("Wanted %v\nGot %v", s.String(sc.want), s.String(sc.got))
			}
		})
	}
	require.Equal(t, TagByteConcat, s.Get(s.MkString("abcd")).Tag)
	require.Equal(t, []byte("abcd"), s.Get(s.MkString("abcd")).Bytes)
}

func TestRepeatLaws(t *testing.T) {
	s := NewExprSet()
	a := s.MkString("ab")
	scenarios := []struct {
		name      string
		want, got ExprRef
	}{
		{"zero times", EmptyString, s.MkRepeat(a, 0, 0)},
		{"once", a, s.MkRepeat(a, 1, 1)},
		{"no match star", EmptyString, s.MkRepeat(NoMatch, 0, RepeatInf)},
		{"no match plus", NoMatch, s.MkRepeat(NoMatch, 1, RepeatInf)},
		{"empty", EmptyString, s.MkRepeat(EmptyString, 3, 7)},
		{"inverted", NoMatch, s.MkRepeat(a, 3, 2)},
		{"star of star", s.MkRepeat(a, 0, RepeatInf), s.MkRepeat(s.MkRepeat(a, 0, RepeatInf), 0, RepeatInf)},
		{"star of plus", s.MkRepeat(a, 0, RepeatInf), s.MkRepeat(s.MkRepeat(a, 1, RepeatInf), 0, RepeatInf)},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			if sc.want != sc.got {
				t.Fatalf("Wanted %v\nGot %v", s.String(sc.want), s.String(sc.got))
			}
		})
	}

	// a nullable body forces min to 0
	opt := s.MkRepeat(a, 0, 1)
	r := s.Get(s.MkRepeat(opt, 2, 4))
	require.Equal(t, TagRepeat, r.Tag)
	require.Equal(t, uint32(0), r.Min)
	require.Equal(t, uint32(4), r.Max)
}

func TestNotLaws(t *testing.T) {
	s := NewExprSet()
	a := s.MkString("abc")
	require.Equal(t, a, s.MkNot(s.MkNot(a)))
	require.Equal(t, NonEmptyByteString, s.MkNot(EmptyString))
	require.Equal(t, NoMatch, s.MkNot(AnyByteString))
	require.Equal(t, AnyByteString, s.MkNot(NoMatch))
	require.True(t, s.Nullable(s.MkNot(a)))
	require.False(t, s.Nullable(s.MkNot(s.MkRepeat(a, 0, 1))))
	require.Equal(t, NoMatch, s.MkAnd(a, s.MkNot(a)))
}

func TestOrPrefixTrie(t *testing.T) {
	s := NewExprSet()
	words := []string{"while", "when", "where", "with", "wide", "if", "import", "in"}
	alts := make([]ExprRef, len(words))
	for i, w := range words {
		alts[i] = s.MkString(w)
	}
	e := s.MkOr(alts...)

	// two top-level branches: w... and i...
	x := s.Get(e)
	require.Equal(t, TagOr, x.Tag)
	require.Len(t, x.Args, 2)

	for _, w := range words {
		require.True(t, s.Matches(e, []byte(w)), w)
	}
	for _, w := range []string{"wh", "w", "imp", "whence", "i", ""} {
		require.False(t, s.Matches(e, []byte(w)), w)
	}

	s.OptimizeOr = false
	require.Len(t, s.Get(s.MkOr(s.MkString("xa"), s.MkString("xb"))).Args, 2)
}

func TestCostIsMonotonic(t *testing.T) {
	s := NewExprSet()
	c0 := s.Cost()
	e := s.MkOr(s.MkString("abc"), s.MkString("xyz"))
	c1 := s.Cost()
	require.Greater(t, c1, c0)
	s.Derivative(e, 'a')
	require.Greater(t, s.Cost(), c1)

	s.SetCostLimit(s.Cost() + 1000)
	require.NoError(t, s.CheckCost())
	s.AddCost(2000)
	require.ErrorIs(t, s.CheckCost(), ErrFuelExhausted)
}

func TestInvalidRefPanics(t *testing.T) {
	s := NewExprSet()
	require.Panics(t, func() { s.Get(InvalidRef) })
	require.Panics(t, func() { s.Nullable(ExprRef(s.Len() + 10)) })
	require.False(t, s.IsValid(InvalidRef))
	require.True(t, s.IsValid(AnyByte))
}
