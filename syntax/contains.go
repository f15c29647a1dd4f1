package syntax

// containment recursion is shallow in practice; past this depth we give up
const maxContainDepth = 32

// IsContainedIn reports whether every string matched by small is also
// matched by big. The check is best-effort: false means "not known to be
// contained", never "known not contained". A true result is always correct.
// When the emptiness checks it relies on run out of maxFuel, the result is
// false along with ErrFuelExhausted.
func (s *ExprSet) IsContainedIn(small, big ExprRef, maxFuel uint64) (bool, error) {
	c := containCtx{s: s, maxFuel: maxFuel}
	r := c.contained(small, big, 0)
	return r, c.err
}

type containCtx struct {
	s       *ExprSet
	maxFuel uint64
	err     error
}

// peel drops the bytes both sides are forced to start with.
func (c *containCtx) peel(small, big ExprRef) (ExprRef, ExprRef) {
	s := c.s
	for small != big && small != NoMatch {
		ns := s.NextByte(small)
		if ns.Kind != NextForcedByte {
			break
		}
		nb := s.NextByte(big)
		if nb.Kind != NextForcedByte || nb.Byte != ns.Byte {
			break
		}
		small = s.Derivative(small, ns.Byte)
		big = s.Derivative(big, ns.Byte)
	}
	return small, big
}

func (c *containCtx) isEmpty(e ExprRef) bool {
	r, err := c.s.IsNonEmpty(e, c.maxFuel)
	if err != nil {
		c.err = err
		return false
	}
	return !r
}

func (c *containCtx) contained(small, big ExprRef, depth int) bool {
	s := c.s
	if depth > maxContainDepth || c.err != nil {
		return false
	}
	small, big = c.peel(small, big)

	if small == big || small == NoMatch || big == AnyByteString {
		return true
	}
	if small == EmptyString {
		return s.Nullable(big)
	}
	if big == NonEmptyByteString {
		return !s.Nullable(small)
	}
	if s.NextByte(small).Kind == NextForcedEOI {
		return !s.Nullable(small) || s.Nullable(big)
	}

	xs, xb := s.Get(small), s.Get(big)

	if xs.Tag == TagOr {
		for _, a := range xs.Args {
			if !c.contained(a, big, depth+1) {
				return false
			}
		}
		return true
	}

	if setS, ok := s.byteSetOf(small); ok {
		if setB, ok := s.byteSetOf(big); ok {
			return setS.IsSubsetOf(setB)
		}
	}

	switch xb.Tag {
	case TagOr:
		for _, a := range xb.Args {
			if c.contained(small, a, depth+1) {
				return true
			}
		}
		return false

	case TagAnd:
		// big is main AND NOT except...: small must fit every main part and
		// miss every excepted part
		for _, a := range xb.Args {
			if s.tag(a) == TagNot {
				except := s.Get(a).Args[0]
				if !c.isEmpty(s.MkAnd(small, except)) {
					return false
				}
			} else if !c.contained(small, a, depth+1) {
				return false
			}
		}
		return true

	case TagNot:
		return c.isEmpty(s.MkAnd(small, xb.Args[0]))

	case TagRepeat:
		return c.containedInRepeat(small, &xs, &xb, depth)

	case TagConcat:
		head, tail := xb.Args[0], xb.Args[1]
		if set, ok := s.byteSetOf(head); ok && !s.Nullable(small) {
			// one step of derivation on both sides
			for _, br := range s.SymbolicDerivative(small) {
				if !br.Set.IsSubsetOf(set) || !c.contained(br.Target, tail, depth+1) {
					return false
				}
			}
			return true
		}
		if s.Nullable(head) && c.contained(small, tail, depth+1) {
			return true
		}
		if xs.Tag == TagConcat {
			return c.contained(xs.Args[0], xb.Args[0], depth+1) &&
				c.contained(xs.Args[1], xb.Args[1], depth+1)
		}

	case TagLookahead:
		if xs.Tag == TagLookahead && xs.Min == xb.Min {
			return c.contained(xs.Args[0], xb.Args[0], depth+1)
		}
	}
	return false
}

// containedInRepeat handles big = x{bmin,bmax}, typically the unbounded
// tail of an identifier or number lexeme.
func (c *containCtx) containedInRepeat(small ExprRef, xs, xb *Expr, depth int) bool {
	s := c.s
	x, bmin, bmax := xb.Args[0], xb.Min, xb.Max

	if xs.Tag == TagRepeat && xs.Min >= bmin && (bmax == RepeatInf || (xs.Max != RepeatInf && xs.Max <= bmax)) {
		if c.contained(xs.Args[0], x, depth+1) {
			return true
		}
	}
	if bmin <= 1 && bmax >= 1 && c.contained(small, x, depth+1) {
		return true
	}
	if bmax != RepeatInf {
		// for a single-byte x, length is the only thing the upper bound adds
		if _, ok := s.byteSetOf(x); ok {
			if n := s.MaxLen(small); n >= 0 && n <= int(bmax) {
				return c.contained(small, s.MkRepeat(x, bmin, RepeatInf), depth+1)
			}
		}
		return false
	}
	// small = p·q with p in x and q in x{bmin-1,}
	restMin := bmin
	if restMin > 0 {
		restMin--
	}
	rest := s.MkRepeat(x, restMin, RepeatInf)
	switch xs.Tag {
	case TagConcat:
		return c.contained(xs.Args[0], x, depth+1) && c.contained(xs.Args[1], rest, depth+1)
	case TagByteConcat:
		set, ok := s.byteSetOf(x)
		if !ok {
			return false
		}
		// consume literal bytes one copy of x at a time
		for _, b := range xs.Bytes {
			if !set.Has(b) {
				return false
			}
			if bmin > 0 {
				bmin--
			}
		}
		return c.contained(xs.Args[0], s.MkRepeat(x, bmin, RepeatInf), depth+1)
	}
	return false
}
