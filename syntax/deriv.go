package syntax

import (
	"slices"

	"github.com/dlclark/derivre/helpers"
)

// DerivBranch says that after any byte in Set the expression continues as Target.
type DerivBranch struct {
	Set    helpers.ByteSet
	Target ExprRef
}

// Derivative returns the expression matching the suffixes w such that b·w
// is matched by e.
func (s *ExprSet) Derivative(e ExprRef, b byte) ExprRef {
	for _, br := range s.SymbolicDerivative(e) {
		if br.Set.Has(b) {
			return br.Target
		}
	}
	return NoMatch
}

// SymbolicDerivative returns the derivative of e for every byte at once, as
// a list of branches with disjoint sets. Bytes not covered lead to NoMatch.
// The result is cached and must not be modified.
func (s *ExprSet) SymbolicDerivative(e ExprRef) []DerivBranch {
	if r, ok := s.derivs[e]; ok {
		return r
	}
	r := s.computeDerivative(e)
	s.cost += uint64(len(r)) + 1
	s.derivs[e] = r
	return r
}

// Matches runs e over input and reports whether the whole input matched.
func (s *ExprSet) Matches(e ExprRef, input []byte) bool {
	for _, b := range input {
		e = s.Derivative(e, b)
		if e == NoMatch {
			return false
		}
	}
	return s.Nullable(e)
}

func (s *ExprSet) computeDerivative(e ExprRef) []DerivBranch {
	x := s.Get(e)
	switch x.Tag {
	case TagEmptyString, TagNoMatch:
		return nil

	case TagByte:
		return []DerivBranch{{helpers.NewByteSet(x.Byte), EmptyString}}

	case TagByteSet:
		return []DerivBranch{{x.Set, EmptyString}}

	case TagByteConcat:
		return []DerivBranch{{helpers.NewByteSet(x.Bytes[0]), s.MkByteConcat(x.Bytes[1:], x.Args[0])}}

	case TagConcat:
		a, b := x.Args[0], x.Args[1]
		r := s.mapBranches(s.SymbolicDerivative(a), func(t ExprRef) ExprRef {
			return s.MkConcat(t, b)
		})
		if !s.Nullable(a) {
			return r
		}
		return s.makeDisjoint(append(r, s.SymbolicDerivative(b)...), s.MkOr)

	case TagOr:
		var all []DerivBranch
		for _, a := range x.Args {
			all = append(all, s.SymbolicDerivative(a)...)
		}
		return s.makeDisjoint(all, s.MkOr)

	case TagAnd:
		cur := s.SymbolicDerivative(x.Args[0])
		for _, a := range x.Args[1:] {
			cur = s.intersectBranches(cur, s.SymbolicDerivative(a))
			if len(cur) == 0 {
				return nil
			}
		}
		return s.mergeEqualTargets(cur)

	case TagNot:
		inner := s.SymbolicDerivative(x.Args[0])
		r := make([]DerivBranch, 0, len(inner)+1)
		var covered helpers.ByteSet
		for _, br := range inner {
			covered = covered.Union(br.Set)
			if t := s.MkNot(br.Target); t != NoMatch {
				r = append(r, DerivBranch{br.Set, t})
			}
		}
		if left := covered.Complement(); !left.IsEmpty() {
			r = append(r, DerivBranch{left, AnyByteString})
		}
		return s.mergeEqualTargets(r)

	case TagRepeat:
		min := x.Min
		if min > 0 {
			min--
		}
		max := x.Max
		if max != RepeatInf {
			max--
		}
		rest := s.MkRepeat(x.Args[0], min, max)
		return s.mapBranches(s.SymbolicDerivative(x.Args[0]), func(t ExprRef) ExprRef {
			return s.MkConcat(t, rest)
		})

	case TagLookahead:
		return s.mapBranches(s.SymbolicDerivative(x.Args[0]), func(t ExprRef) ExprRef {
			return s.MkLookahead(t, x.Min+1)
		})

	case TagRemainderIs:
		return s.remainderDerivative(&x)
	}
	panic("syntax: unhandled tag " + x.Tag.String())
}

func (s *ExprSet) mapBranches(in []DerivBranch, f func(ExprRef) ExprRef) []DerivBranch {
	r := make([]DerivBranch, 0, len(in))
	for _, br := range in {
		if t := f(br.Target); t != NoMatch {
			r = append(r, DerivBranch{br.Set, t})
		}
	}
	return s.mergeEqualTargets(r)
}

// makeDisjoint rebuilds a cover of possibly overlapping branches into
// disjoint ones; where several branches overlap their targets are
// combined with join.
func (s *ExprSet) makeDisjoint(in []DerivBranch, join func(...ExprRef) ExprRef) []DerivBranch {
	type part struct {
		set     helpers.ByteSet
		targets []ExprRef
	}
	var parts []part
	for _, br := range in {
		rest := br.Set
		n := len(parts)
		for i := 0; i < n && !rest.IsEmpty(); i++ {
			inter := parts[i].set.Intersect(rest)
			if inter.IsEmpty() {
				continue
			}
			if outside := parts[i].set.Minus(rest); !outside.IsEmpty() {
				parts = append(parts, part{outside, slices.Clone(parts[i].targets)})
			}
			parts[i].set = inter
			parts[i].targets = append(slices.Clip(parts[i].targets), br.Target)
			rest = rest.Minus(inter)
		}
		if !rest.IsEmpty() {
			parts = append(parts, part{rest, []ExprRef{br.Target}})
		}
	}
	s.cost += uint64(len(in) * len(parts))
	r := make([]DerivBranch, 0, len(parts))
	for _, p := range parts {
		if t := join(p.targets...); t != NoMatch {
			r = append(r, DerivBranch{p.set, t})
		}
	}
	return s.mergeEqualTargets(r)
}

// intersectBranches computes the derivative of And(a, b) from the
// (disjoint) derivatives of a and b.
func (s *ExprSet) intersectBranches(a, b []DerivBranch) []DerivBranch {
	var r []DerivBranch
	for _, x := range a {
		for _, y := range b {
			inter := x.Set.Intersect(y.Set)
			if inter.IsEmpty() {
				continue
			}
			if t := s.MkAnd(x.Target, y.Target); t != NoMatch {
				r = append(r, DerivBranch{inter, t})
			}
		}
	}
	s.cost += uint64(len(a) * len(b))
	return r
}

// mergeEqualTargets unions the sets of branches leading to the same
// expression and orders branches by their lowest byte.
func (s *ExprSet) mergeEqualTargets(in []DerivBranch) []DerivBranch {
	if len(in) < 2 {
		return in
	}
	r := in[:0:0]
	for _, br := range in {
		idx := slices.IndexFunc(r, func(o DerivBranch) bool { return o.Target == br.Target })
		if idx >= 0 {
			r[idx].Set = r[idx].Set.Union(br.Set)
		} else {
			r = append(r, br)
		}
	}
	slices.SortFunc(r, func(a, b DerivBranch) int {
		return int(a.Set.First()) - int(b.Set.First())
	})
	return r
}

func (s *ExprSet) remainderDerivative(x *Expr) []DerivBranch {
	d := uint64(x.Divisor)
	r := make([]DerivBranch, 0, 11)
	for c := uint64(0); c < 10; c++ {
		var next ExprRef
		if !x.Fractional {
			// integer digit: value*10 + c, scaled by 10^scale
			rem := (uint64(x.Remainder)*10 + c*powMod(10, uint64(x.Scale), d)) % d
			next = s.MkRemainderIs(x.Divisor, uint32(rem), x.Scale, false)
		} else if x.Scale == 0 {
			// digits past the significant scale must all be zero
			if c != 0 {
				continue
			}
			next = s.MkRemainderIs(x.Divisor, x.Remainder, 0, true)
		} else {
			rem := (uint64(x.Remainder) + c*powMod(10, uint64(x.Scale-1), d)) % d
			next = s.MkRemainderIs(x.Divisor, uint32(rem), x.Scale-1, true)
		}
		if next != NoMatch {
			r = append(r, DerivBranch{helpers.NewByteSet(byte('0' + c)), next})
		}
	}
	if !x.Fractional {
		if dot := s.MkRemainderIs(x.Divisor, x.Remainder, x.Scale, true); dot != NoMatch {
			r = append(r, DerivBranch{helpers.NewByteSet('.'), dot})
		}
	}
	return s.mergeEqualTargets(r)
}

func powMod(base, exp, mod uint64) uint64 {
	r := uint64(1) % mod
	base %= mod
	for exp > 0 {
		if exp&1 != 0 {
			r = r * base % mod
		}
		base = base * base % mod
		exp >>= 1
	}
	return r
}
