package syntax

import (
	"slices"

	"github.com/dlclark/derivre/helpers"
)

// MkByte returns the expression matching the single byte b.
func (s *ExprSet) MkByte(b byte) ExprRef {
	return s.mk(TagByte, mkFlags(false, true), uint32(b))
}

// MkByteSet returns the expression matching any one byte of set.
// Empty and singleton sets normalize to NoMatch and Byte.
func (s *ExprSet) MkByteSet(set helpers.ByteSet) ExprRef {
	if set.IsEmpty() {
		return NoMatch
	}
	if b, ok := set.Single(); ok {
		return s.MkByte(b)
	}
	w := set.Words()
	return s.mk(TagByteSet, mkFlags(false, true), w[:]...)
}

func (s *ExprSet) MkByteRange(first, last byte) ExprRef {
	if first > last {
		return NoMatch
	}
	return s.MkByteSet(helpers.ByteRangeSet(first, last))
}

// MkByteLiteral matches exactly the given bytes.
func (s *ExprSet) MkByteLiteral(b []byte) ExprRef {
	return s.MkByteConcat(b, EmptyString)
}

func (s *ExprSet) MkString(str string) ExprRef {
	return s.MkByteLiteral([]byte(str))
}

// MkByteConcat matches the literal bytes followed by tail.
func (s *ExprSet) MkByteConcat(b []byte, tail ExprRef) ExprRef {
	if tail == NoMatch {
		return NoMatch
	}
	if len(b) == 0 {
		return tail
	}
	switch s.tag(tail) {
	case TagByte:
		t := s.Get(tail)
		b = append(slices.Clip(b), t.Byte)
		tail = EmptyString
	case TagByteConcat:
		t := s.Get(tail)
		b = append(slices.Clip(b), t.Bytes...)
		tail = t.Args[0]
	}
	if len(b) == 1 && tail == EmptyString {
		return s.MkByte(b[0])
	}
	s.scratch = append(s.scratch[:0], 0, uint32(tail), uint32(len(b)))
	s.scratch = packBytes(s.scratch, b)
	f := mkFlags(false, s.Positive(tail))
	s.scratch[0] = encodeHeader(TagByteConcat, f)
	return s.insert(f)
}

// MkConcat matches a followed by b.
func (s *ExprSet) MkConcat(a, b ExprRef) ExprRef {
	if a == NoMatch || b == NoMatch {
		return NoMatch
	}
	if a == EmptyString {
		return b
	}
	if b == EmptyString {
		return a
	}
	switch s.tag(a) {
	case TagConcat:
		ea := s.Get(a)
		return s.MkConcat(ea.Args[0], s.MkConcat(ea.Args[1], b))
	case TagByte:
		return s.MkByteConcat([]byte{s.Get(a).Byte}, b)
	case TagByteConcat:
		ea := s.Get(a)
		return s.MkByteConcat(ea.Bytes, s.MkConcat(ea.Args[0], b))
	}
	f := mkFlags(s.Nullable(a) && s.Nullable(b), s.Positive(a) && s.Positive(b))
	return s.mk(TagConcat, f, uint32(a), uint32(b))
}

// MkConcatAll concatenates a list, folding from the right.
func (s *ExprSet) MkConcatAll(args ...ExprRef) ExprRef {
	acc := EmptyString
	for i := len(args) - 1; i >= 0; i-- {
		acc = s.MkConcat(args[i], acc)
	}
	return acc
}

// flatten appends args to dst, expanding nested nodes with the given tag
func (s *ExprSet) flatten(dst []ExprRef, tag ExprTag, args []ExprRef) []ExprRef {
	for _, a := range args {
		if s.tag(a) == tag {
			dst = append(dst, s.Get(a).Args...)
		} else {
			dst = append(dst, a)
		}
	}
	return dst
}

func sortDedup(args []ExprRef) []ExprRef {
	slices.Sort(args)
	return slices.Compact(args)
}

// byteSetOf returns the set matched by a one-byte expression.
func (s *ExprSet) byteSetOf(e ExprRef) (helpers.ByteSet, bool) {
	switch s.tag(e) {
	case TagByte:
		return helpers.NewByteSet(s.Get(e).Byte), true
	case TagByteSet:
		return s.Get(e).Set, true
	}
	return helpers.ByteSet{}, false
}

// MkOr matches anything matched by one of args.
func (s *ExprSet) MkOr(args ...ExprRef) ExprRef {
	s.cost += uint64(len(args))
	args = sortDedup(s.flatten(nil, TagOr, args))

	var set helpers.ByteSet
	numSets := 0
	anyNullable := false
	out := args[:0]
	for _, a := range args {
		if a == NoMatch {
			continue
		}
		if a == AnyByteString {
			return AnyByteString
		}
		if bs, ok := s.byteSetOf(a); ok {
			set = set.Union(bs)
			numSets++
			continue
		}
		if a != EmptyString && s.Nullable(a) {
			anyNullable = true
		}
		out = append(out, a)
	}
	args = out
	if numSets > 0 {
		args = append(args, s.MkByteSet(set))
	}
	if anyNullable {
		args = slices.DeleteFunc(args, func(a ExprRef) bool { return a == EmptyString })
	}
	if s.OptimizeOr {
		args = s.factorPrefixes(args)
	}
	args = sortDedup(args)

	switch len(args) {
	case 0:
		return NoMatch
	case 1:
		return args[0]
	}
	nullable, positive := false, false
	payload := make([]uint32, len(args))
	for i, a := range args {
		nullable = nullable || s.Nullable(a)
		positive = positive || s.Positive(a)
		payload[i] = uint32(a)
	}
	return s.mk(TagOr, mkFlags(nullable, positive), payload...)
}

// factorPrefixes rewrites alternatives starting with the same literal byte
// into one branch, so that a large set of literals becomes a prefix trie.
func (s *ExprSet) factorPrefixes(args []ExprRef) []ExprRef {
	groups := map[byte][]ExprRef{}
	var order []byte
	for _, a := range args {
		if s.tag(a) != TagByteConcat {
			continue
		}
		first := s.Get(a).Bytes[0]
		if _, ok := groups[first]; !ok {
			order = append(order, first)
		}
		groups[first] = append(groups[first], a)
	}
	shared := false
	for _, g := range groups {
		if len(g) > 1 {
			shared = true
			break
		}
	}
	if !shared {
		return args
	}
	var out []ExprRef
	for _, a := range args {
		if s.tag(a) == TagByteConcat && len(groups[s.Get(a).Bytes[0]]) > 1 {
			continue
		}
		out = append(out, a)
	}
	for _, first := range order {
		g := groups[first]
		if len(g) < 2 {
			continue
		}
		rests := make([]ExprRef, len(g))
		for i, a := range g {
			ea := s.Get(a)
			rests[i] = s.MkByteConcat(ea.Bytes[1:], ea.Args[0])
		}
		s.cost += uint64(len(g))
		out = append(out, s.MkByteConcat([]byte{first}, s.MkOr(rests...)))
	}
	return out
}

// MkAnd matches strings matched by every one of args.
func (s *ExprSet) MkAnd(args ...ExprRef) ExprRef {
	s.cost += uint64(len(args))
	args = sortDedup(s.flatten(nil, TagAnd, args))

	set := helpers.FullByteSet
	numSets := 0
	hasEmpty := false
	out := args[:0]
	for _, a := range args {
		if a == NoMatch {
			return NoMatch
		}
		if a == AnyByteString {
			continue
		}
		if a == EmptyString {
			hasEmpty = true
			continue
		}
		if bs, ok := s.byteSetOf(a); ok {
			set = set.Intersect(bs)
			numSets++
			continue
		}
		out = append(out, a)
	}
	args = out
	if hasEmpty {
		for _, a := range args {
			if !s.Nullable(a) {
				return NoMatch
			}
		}
		if numSets > 0 {
			return NoMatch
		}
		return EmptyString
	}
	if numSets > 0 {
		bs := s.MkByteSet(set)
		if bs == NoMatch {
			return NoMatch
		}
		args = append(args, bs)
	}
	// x & ~x
	for _, a := range args {
		if s.tag(a) == TagNot && slices.Contains(args, s.Get(a).Args[0]) {
			return NoMatch
		}
	}
	args = sortDedup(args)

	switch len(args) {
	case 0:
		return AnyByteString
	case 1:
		return args[0]
	}
	nullable := true
	payload := make([]uint32, len(args))
	for i, a := range args {
		nullable = nullable && s.Nullable(a)
		payload[i] = uint32(a)
	}
	return s.mk(TagAnd, mkFlags(nullable, false), payload...)
}

// MkNot matches every string not matched by e.
func (s *ExprSet) MkNot(e ExprRef) ExprRef {
	switch e {
	case EmptyString:
		return NonEmptyByteString
	case NonEmptyByteString:
		return EmptyString
	case AnyByteString:
		return NoMatch
	case NoMatch:
		return AnyByteString
	}
	if s.tag(e) == TagNot {
		return s.Get(e).Args[0]
	}
	nullable := !s.Nullable(e)
	return s.mk(TagNot, mkFlags(nullable, false), uint32(e))
}

// MkRepeat matches between min and max copies of e; max may be RepeatInf.
func (s *ExprSet) MkRepeat(e ExprRef, min, max uint32) ExprRef {
	if max < min {
		return NoMatch
	}
	if max == 0 {
		return EmptyString
	}
	if e == NoMatch {
		if min == 0 {
			return EmptyString
		}
		return NoMatch
	}
	if e == EmptyString {
		return EmptyString
	}
	if min == 1 && max == 1 {
		return e
	}
	if s.Nullable(e) {
		min = 0
	}
	if s.tag(e) == TagRepeat {
		inner := s.Get(e)
		// (x{a,})* and (x*){n,m} are both x*
		if inner.Max == RepeatInf && inner.Min <= 1 && min == 0 && max == RepeatInf {
			return s.MkRepeat(inner.Args[0], 0, RepeatInf)
		}
		if inner.Min == 0 && inner.Max == RepeatInf {
			return e
		}
	}
	f := mkFlags(min == 0 || s.Nullable(e), min == 0 || s.Positive(e))
	return s.mk(TagRepeat, f, uint32(e), min, max)
}

// MkLookahead matches like e; offset counts the bytes already consumed by
// e that are not part of the visible match.
func (s *ExprSet) MkLookahead(e ExprRef, offset uint32) ExprRef {
	if e == NoMatch {
		return NoMatch
	}
	s.check(e)
	return s.mk(TagLookahead, s.flags[e], uint32(e), offset)
}

// MkRemainderIs matches decimal numerals that, appended to a prefix with
// residue remainder, give a number whose value times 10^scale is a
// multiple of divisor. In fractional mode scale counts the remaining
// significant fractional digits.
func (s *ExprSet) MkRemainderIs(divisor, remainder, scale uint32, fractional bool) ExprRef {
	if divisor == 0 {
		panic("syntax: RemainderIs with zero divisor")
	}
	remainder %= divisor
	if fractional && scale == 0 && remainder != 0 {
		return NoMatch
	}
	frac := uint32(0)
	if fractional {
		frac = 1
	}
	return s.mk(TagRemainderIs, mkFlags(remainder == 0, false), divisor, remainder, scale, frac)
}

// MkMultipleOf matches unsigned decimal numerals (optionally with a fraction)
// that are multiples of divisor * 10^-scale.
func (s *ExprSet) MkMultipleOf(divisor, scale uint32) ExprRef {
	digit := s.MkByteRange('0', '9')
	integer := s.MkOr(s.MkByte('0'), s.MkConcat(s.MkByteRange('1', '9'), s.MkRepeat(digit, 0, RepeatInf)))
	numeral := integer
	if scale > 0 {
		fraction := s.MkConcat(s.MkByte('.'), s.MkRepeat(digit, 1, RepeatInf))
		numeral = s.MkConcat(integer, s.MkRepeat(fraction, 0, 1))
	}
	return s.MkAnd(numeral, s.MkRemainderIs(divisor, 0, scale, false))
}
