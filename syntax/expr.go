package syntax

import (
	"fmt"
	"math"

	"github.com/dlclark/derivre/helpers"
)

// ExprRef identifies an expression node in an ExprSet. Structurally equal
// nodes always share one ExprRef, so refs can be compared directly.
type ExprRef uint32

// Reserved refs present in every ExprSet.
const (
	InvalidRef ExprRef = iota
	EmptyString
	NoMatch
	AnyByte
	AnyByteString
	NonEmptyByteString
)

// RepeatInf is the max of an unbounded Repeat.
const RepeatInf = math.MaxUint32

// ExprTag is the kind of an expression node.
type ExprTag uint8

const (
	TagEmptyString ExprTag = iota + 1
	TagNoMatch
	TagByte
	TagByteSet
	TagByteConcat
	TagConcat
	TagOr
	TagAnd
	TagNot
	TagRepeat
	TagLookahead
	TagRemainderIs
)

var tagNames = [...]string{"", "EmptyString", "NoMatch", "Byte", "ByteSet", "ByteConcat",
	"Concat", "Or", "And", "Not", "Repeat", "Lookahead", "RemainderIs"}

func (t ExprTag) String() string {
	if int(t) < len(tagNames) && t > 0 {
		return tagNames[t]
	}
	return fmt.Sprintf("ExprTag(%d)", t)
}

type exprFlags uint8

const (
	flagNullable exprFlags = 1 << iota
	flagPositive
)

func mkFlags(nullable, positive bool) exprFlags {
	var f exprFlags
	if nullable {
		f |= flagNullable | flagPositive
	}
	if positive {
		f |= flagPositive
	}
	return f
}

// Expr is a decoded view of one node. Only the fields relevant to Tag are set.
type Expr struct {
	Tag   ExprTag
	flags exprFlags

	Byte  byte            // TagByte
	Set   helpers.ByteSet // TagByteSet
	Bytes []byte          // TagByteConcat

	// Concat: [a, b]; Or/And: operands; Not/Repeat/Lookahead: [inner];
	// ByteConcat: [tail]
	Args []ExprRef

	Min, Max uint32 // Repeat bounds; Lookahead offset is in Min

	Divisor, Remainder, Scale uint32 // RemainderIs
	Fractional                bool
}

func (e *Expr) Nullable() bool { return e.flags&flagNullable != 0 }
func (e *Expr) Positive() bool { return e.flags&flagPositive != 0 }

// encoding: word 0 is tag | flags<<8, followed by the payload
func encodeHeader(tag ExprTag, f exprFlags) uint32 {
	return uint32(tag) | uint32(f)<<8
}

func decode(w []uint32) Expr {
	e := Expr{Tag: ExprTag(w[0] & 0xff), flags: exprFlags(w[0] >> 8)}
	p := w[1:]
	switch e.Tag {
	case TagEmptyString, TagNoMatch:
	case TagByte:
		e.Byte = byte(p[0])
	case TagByteSet:
		e.Set = helpers.ByteSetFromWords(p)
	case TagByteConcat:
		e.Args = []ExprRef{ExprRef(p[0])}
		e.Bytes = unpackBytes(p[2:], int(p[1]))
	case TagConcat, TagOr, TagAnd, TagNot:
		e.Args = make([]ExprRef, len(p))
		for i, v := range p {
			e.Args[i] = ExprRef(v)
		}
	case TagRepeat:
		e.Args = []ExprRef{ExprRef(p[0])}
		e.Min, e.Max = p[1], p[2]
	case TagLookahead:
		e.Args = []ExprRef{ExprRef(p[0])}
		e.Min = p[1]
	case TagRemainderIs:
		e.Divisor, e.Remainder, e.Scale = p[0], p[1], p[2]
		e.Fractional = p[3] != 0
	default:
		panic(fmt.Sprintf("syntax: corrupt expression tag %d", w[0]&0xff))
	}
	return e
}

func packBytes(dst []uint32, b []byte) []uint32 {
	for i := 0; i < len(b); i += 4 {
		var w uint32
		for j := 0; j < 4 && i+j < len(b); j++ {
			w |= uint32(b[i+j]) << (8 * j)
		}
		dst = append(dst, w)
	}
	return dst
}

func unpackBytes(w []uint32, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(w[i/4] >> (8 * (i % 4)))
	}
	return b
}

// ExprSet is the arena owning all expression nodes of one compilation.
// It is append-only; an ExprSet must not be shared between goroutines.
type ExprSet struct {
	exprs *helpers.HashCons
	flags []exprFlags

	cost      uint64
	costLimit uint64

	// derived facts, each computed at most once per node
	derivs    map[ExprRef][]DerivBranch
	relevance map[ExprRef]bool
	nextBytes map[ExprRef]NextByte

	// OptimizeOr enables prefix-trie factoring in MkOr
	OptimizeOr bool

	scratch []uint32
}

func NewExprSet() *ExprSet {
	s := &ExprSet{
		exprs:      helpers.NewHashCons(),
		derivs:     make(map[ExprRef][]DerivBranch),
		relevance:  make(map[ExprRef]bool),
		nextBytes:  make(map[ExprRef]NextByte),
		OptimizeOr: true,
	}
	// slot 0 is never a valid expression
	s.exprs.Insert([]uint32{0})
	s.flags = append(s.flags, 0)

	s.expectRef(s.mk(TagEmptyString, mkFlags(true, true)), EmptyString)
	s.expectRef(s.mk(TagNoMatch, 0), NoMatch)
	w := helpers.FullByteSet.Words()
	s.expectRef(s.mk(TagByteSet, mkFlags(false, true), w[:]...), AnyByte)
	s.expectRef(s.MkRepeat(AnyByte, 0, RepeatInf), AnyByteString)
	s.expectRef(s.MkRepeat(AnyByte, 1, RepeatInf), NonEmptyByteString)
	return s
}

func (s *ExprSet) expectRef(got, want ExprRef) {
	if got != want {
		panic(fmt.Sprintf("syntax: reserved ref %d allocated as %d", want, got))
	}
}

func (s *ExprSet) mk(tag ExprTag, f exprFlags, payload ...uint32) ExprRef {
	s.scratch = append(s.scratch[:0], encodeHeader(tag, f))
	s.scratch = append(s.scratch, payload...)
	return s.insert(f)
}

func (s *ExprSet) insert(f exprFlags) ExprRef {
	s.cost += uint64(len(s.scratch))
	id, isNew := s.exprs.Insert(s.scratch)
	if isNew {
		s.flags = append(s.flags, f)
	}
	return ExprRef(id)
}

// Get decodes a node. An invalid ref is a programming error and panics.
func (s *ExprSet) Get(e ExprRef) Expr {
	s.check(e)
	return decode(s.exprs.Get(uint32(e)))
}

func (s *ExprSet) tag(e ExprRef) ExprTag {
	s.check(e)
	return ExprTag(s.exprs.Get(uint32(e))[0] & 0xff)
}

func (s *ExprSet) check(e ExprRef) {
	if e == InvalidRef || int(e) >= len(s.flags) {
		panic(fmt.Sprintf("syntax: invalid expression ref %d (arena has %d)", e, len(s.flags)))
	}
}

// IsValid reports whether e belongs to this arena.
func (s *ExprSet) IsValid(e ExprRef) bool {
	return e != InvalidRef && int(e) < len(s.flags)
}

// Nullable reports whether e matches the empty string.
func (s *ExprSet) Nullable(e ExprRef) bool {
	s.check(e)
	return s.flags[e]&flagNullable != 0
}

// Positive reports whether e is known to match at least one string.
// A false result means "unknown", not "empty".
func (s *ExprSet) Positive(e ExprRef) bool {
	s.check(e)
	return s.flags[e]&flagPositive != 0
}

// Len is the number of nodes in the arena, reserved slots included.
func (s *ExprSet) Len() int {
	return len(s.flags)
}

func (s *ExprSet) NumBytes() int {
	return s.exprs.NumBytes() + len(s.flags)
}

// Cost is the monotonic amount of work done so far.
func (s *ExprSet) Cost() uint64 {
	return s.cost
}

// AddCost charges extra work to the counter.
func (s *ExprSet) AddCost(n uint64) {
	s.cost += n
}

// SetCostLimit sets the ceiling checked by CheckCost; 0 disables it.
func (s *ExprSet) SetCostLimit(limit uint64) {
	s.costLimit = limit
}

// CheckCost returns ErrFuelExhausted once Cost has crossed the limit.
func (s *ExprSet) CheckCost() error {
	if s.costLimit > 0 && s.cost > s.costLimit {
		return fuelError(s.cost, s.costLimit)
	}
	return nil
}
