package syntax

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// witness finds a shortest string matched by e by breadth-first search over
// derivatives.
func witness(s *ExprSet, e ExprRef) ([]byte, bool) {
	type step struct {
		prev ExprRef
		b    byte
	}
	parent := map[ExprRef]step{e: {InvalidRef, 0}}
	queue := []ExprRef{e}
	for len(queue) > 0 && len(parent) < 100000 {
		x := queue[0]
		queue = queue[1:]
		if s.Nullable(x) {
			var r []byte
			for x != e {
				st := parent[x]
				r = append([]byte{st.b}, r...)
				x = st.prev
			}
			return r, true
		}
		for _, br := range s.SymbolicDerivative(x) {
			if _, ok := parent[br.Target]; !ok {
				parent[br.Target] = step{x, br.Set.First()}
				queue = append(queue, br.Target)
			}
		}
	}
	return nil, false
}

func TestIsNonEmptyBruteForce(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	inputs := allStrings("abc", 5)
	numEmpty := 0
	for i := 0; i < 300; i++ {
		s := NewExprSet()
		e := randomExpr(s, rnd, 2)

		got, err := s.IsNonEmpty(e, 100000)
		require.NoError(t, err)
		if got {
			w, ok := witness(s, e)
			require.True(t, ok, s.String(e))
			require.True(t, naiveMatch(s, e, w), "%s on %q", s.String(e), w)
			continue
		}
		numEmpty++
		for _, in := range inputs {
			if naiveMatch(s, e, in) {
				t.Fatalf("%s: reported empty but matches %q", s.String(e), in)
			}
		}
		// the answer is cached
		again, err := s.IsNonEmpty(e, 1)
		require.NoError(t, err)
		require.False(t, again)
	}
	require.Greater(t, numEmpty, 0)
}

func TestIsNonEmptyKnownCases(t *testing.T) {
	s := NewExprSet()
	a := s.MkRepeat(s.MkByte('a'), 0, RepeatInf)
	even := s.MkRepeat(s.MkString("aa"), 0, RepeatInf)
	odd := s.MkConcat(s.MkByte('a'), even)

	scenarios := []struct {
		name string
		e    ExprRef
		want bool
	}{
		{"no match", NoMatch, false},
		{"empty", EmptyString, true},
		{"a* and not a*", s.MkAnd(a, s.MkNot(a)), false},
		{"even and odd", s.MkAnd(even, odd), false},
		{"even and odd long", s.MkAnd(s.MkConcat(even, s.MkString("aaaa")), odd), false},
		{"even and not empty", s.MkAnd(even, s.MkNot(EmptyString)), true},
		{"letters minus keyword", s.MkAnd(s.MkString("if"), s.MkNot(s.MkString("if"))), false},
		{"not empty", s.MkNot(EmptyString), true},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			got, err := s.IsNonEmpty(sc.e, 10000)
			require.NoError(t, err)
			if want := sc.want; want != got {
				t.Fatalf("Wanted %v\nGot %v", want, got)
			}
		})
	}
}

func TestIsNonEmptyFuel(t *testing.T) {
	s := NewExprSet()
	// the product of both residue automata is far larger than the budget
	digits := s.MkRepeat(s.MkByteRange('0', '9'), 1, RepeatInf)
	e := s.MkAnd(digits, s.MkRemainderIs(97, 1, 0, false), s.MkRemainderIs(89, 2, 0, false))

	_, err := s.IsNonEmpty(e, 5)
	require.ErrorIs(t, err, ErrFuelExhausted)
	require.True(t, s.IsNonEmptyConservative(e, 5))
}
