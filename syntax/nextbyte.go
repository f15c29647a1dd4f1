package syntax

import "fmt"

type NextByteKind uint8

const (
	// NextDead: the expression matches nothing.
	NextDead NextByteKind = iota
	// NextForcedEOI: the expression matches at most the empty string.
	NextForcedEOI
	// NextForcedByte: every string of the expression starts with Byte.
	NextForcedByte
	// NextSomeBytes: no single next byte is forced.
	NextSomeBytes
)

// NextByte summarizes what can follow in an expression.
type NextByte struct {
	Kind NextByteKind
	Byte byte
}

func (n NextByte) String() string {
	switch n.Kind {
	case NextDead:
		return "Dead"
	case NextForcedEOI:
		return "ForcedEOI"
	case NextForcedByte:
		return fmt.Sprintf("ForcedByte(%q)", n.Byte)
	}
	return "SomeBytes"
}

// Merge combines the summaries of two alternatives.
func (n NextByte) Merge(o NextByte) NextByte {
	switch {
	case n == o:
		return n
	case n.Kind == NextDead:
		return o
	case o.Kind == NextDead:
		return n
	}
	return NextByte{Kind: NextSomeBytes}
}

// NextByte returns the cached next-byte summary of e.
func (s *ExprSet) NextByte(e ExprRef) NextByte {
	if r, ok := s.nextBytes[e]; ok {
		return r
	}
	r := s.computeNextByte(e)
	s.nextBytes[e] = r
	return r
}

func (s *ExprSet) computeNextByte(e ExprRef) NextByte {
	some := NextByte{Kind: NextSomeBytes}
	x := s.Get(e)
	switch x.Tag {
	case TagEmptyString:
		return NextByte{Kind: NextForcedEOI}
	case TagNoMatch:
		return NextByte{Kind: NextDead}
	case TagByte:
		return NextByte{Kind: NextForcedByte, Byte: x.Byte}
	case TagByteConcat:
		return NextByte{Kind: NextForcedByte, Byte: x.Bytes[0]}
	case TagConcat:
		na := s.NextByte(x.Args[0])
		if na.Kind == NextForcedEOI {
			return s.NextByte(x.Args[1])
		}
		if !s.Nullable(x.Args[0]) {
			return na
		}
		return na.Merge(s.NextByte(x.Args[1]))
	case TagOr:
		r := NextByte{Kind: NextDead}
		for _, a := range x.Args {
			r = r.Merge(s.NextByte(a))
			if r.Kind == NextSomeBytes {
				break
			}
		}
		return r
	case TagAnd:
		// the intersection is constrained by every operand
		for _, a := range x.Args {
			if n := s.NextByte(a); n.Kind != NextSomeBytes {
				return n
			}
		}
		return some
	case TagRepeat:
		n := s.NextByte(x.Args[0])
		if x.Min > 0 {
			return n
		}
		return NextByte{Kind: NextForcedEOI}.Merge(n)
	case TagLookahead:
		return s.NextByte(x.Args[0])
	}
	return some
}
