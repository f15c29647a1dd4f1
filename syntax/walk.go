package syntax

import (
	"github.com/dlclark/derivre/helpers"
)

// LookaheadLen returns the hidden length of a match ending now: the offset
// of the first nullable Lookahead at the top of e.
func (s *ExprSet) LookaheadLen(e ExprRef) (int, bool) {
	x := s.Get(e)
	switch x.Tag {
	case TagLookahead:
		if s.Nullable(x.Args[0]) {
			return int(x.Min), true
		}
	case TagOr:
		for _, a := range x.Args {
			if n, ok := s.LookaheadLen(a); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// PossibleLookaheadLen is the largest lookahead offset reachable at the top
// of e, nullable or not.
func (s *ExprSet) PossibleLookaheadLen(e ExprRef) int {
	x := s.Get(e)
	switch x.Tag {
	case TagLookahead:
		return int(x.Min)
	case TagOr:
		r := 0
		for _, a := range x.Args {
			r = max(r, s.PossibleLookaheadLen(a))
		}
		return r
	}
	return 0
}

// Walk visits e and every sub-expression reachable from it once, in no
// particular order, using an explicit stack.
func (s *ExprSet) Walk(roots []ExprRef, visit func(e ExprRef, x *Expr)) {
	seen := map[ExprRef]bool{}
	stack := append([]ExprRef(nil), roots...)
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[e] {
			continue
		}
		seen[e] = true
		x := s.Get(e)
		visit(e, &x)
		for _, a := range x.Args {
			if !seen[a] {
				stack = append(stack, a)
			}
		}
	}
}

// CollectByteClasses marks, for all expressions reachable from roots, every
// byte boundary a derivative can depend on.
func (s *ExprSet) CollectByteClasses(roots []ExprRef, bcs *helpers.ByteClassSet) {
	s.Walk(roots, func(_ ExprRef, x *Expr) {
		switch x.Tag {
		case TagByte:
			bcs.SetByte(x.Byte)
		case TagByteSet:
			bcs.SetByteSet(x.Set)
		case TagByteConcat:
			for _, b := range x.Bytes {
				bcs.SetByte(b)
			}
		case TagRemainderIs:
			for c := byte('0'); c <= '9'; c++ {
				bcs.SetByte(c)
			}
			bcs.SetByte('.')
		}
	})
}

// MaxLen returns the length of the longest string matched by e, or -1 when
// it is unbounded or unknown.
func (s *ExprSet) MaxLen(e ExprRef) int {
	x := s.Get(e)
	switch x.Tag {
	case TagEmptyString, TagNoMatch:
		return 0
	case TagByte, TagByteSet:
		return 1
	case TagByteConcat:
		t := s.MaxLen(x.Args[0])
		if t < 0 {
			return -1
		}
		return len(x.Bytes) + t
	case TagConcat:
		a, b := s.MaxLen(x.Args[0]), s.MaxLen(x.Args[1])
		if a < 0 || b < 0 {
			return -1
		}
		return a + b
	case TagOr:
		r := 0
		for _, a := range x.Args {
			n := s.MaxLen(a)
			if n < 0 {
				return -1
			}
			r = max(r, n)
		}
		return r
	case TagAnd:
		r := -1
		for _, a := range x.Args {
			if n := s.MaxLen(a); n >= 0 && (r < 0 || n < r) {
				r = n
			}
		}
		return r
	case TagRepeat:
		if x.Max == RepeatInf {
			return -1
		}
		n := s.MaxLen(x.Args[0])
		if n < 0 {
			return -1
		}
		return n * int(x.Max)
	case TagLookahead:
		return s.MaxLen(x.Args[0])
	}
	return -1
}
