package grammar

import (
	"fmt"
	"math/bits"
)

// ParamValue is the value threaded through a parametric grammar.
type ParamValue uint64

func (v ParamValue) String() string {
	return fmt.Sprintf("0x%x", uint64(v))
}

// ParamRef selects the bits [Start, End) of a ParamValue.
type ParamRef struct {
	Start, End uint8
}

// FullParam selects all 64 bits.
var FullParam = ParamRef{0, 64}

// BitRange returns the reference to bits [start, end).
func BitRange(start, end uint8) ParamRef {
	if start >= 64 || end > 64 || start >= end {
		panic(fmt.Sprintf("grammar: bad param range [%d:%d]", start, end))
	}
	return ParamRef{start, end}
}

// SingleBit returns the reference to bit k.
func SingleBit(k uint8) ParamRef {
	return BitRange(k, k+1)
}

func (r ParamRef) Len() int {
	return int(r.End) - int(r.Start)
}

func (r ParamRef) Mask() uint64 {
	if r.Len() == 64 {
		return ^uint64(0)
	}
	return ((1 << uint(r.Len())) - 1) << r.Start
}

// Eval extracts the referenced bits, shifted down.
func (r ParamRef) Eval(v ParamValue) ParamValue {
	return ParamValue((uint64(v) & r.Mask()) >> r.Start)
}

func (r ParamRef) String() string {
	if r == FullParam {
		return "_"
	}
	return fmt.Sprintf("[%d:%d]", r.Start, r.End)
}

type ParamExprKind uint8

const (
	ParamNull ParamExprKind = iota
	ParamConst
	ParamIncr
	ParamDecr
	ParamBitOr
	ParamBitAnd
	ParamSelfRef
)

// ParamExpr computes the parameter passed to a symbol from the parameter of
// the rule using it. The zero value is the null expression used for
// non-parametric symbols.
type ParamExpr struct {
	Kind  ParamExprKind
	Value ParamValue
	Ref   ParamRef
}

func Const(v ParamValue) ParamExpr  { return ParamExpr{Kind: ParamConst, Value: v} }
func Incr(r ParamRef) ParamExpr     { return ParamExpr{Kind: ParamIncr, Ref: r} }
func Decr(r ParamRef) ParamExpr     { return ParamExpr{Kind: ParamDecr, Ref: r} }
func BitOr(v ParamValue) ParamExpr  { return ParamExpr{Kind: ParamBitOr, Value: v} }
func BitAnd(v ParamValue) ParamExpr { return ParamExpr{Kind: ParamBitAnd, Value: v} }

// SelfRef passes the current parameter through unchanged.
var SelfRef = ParamExpr{Kind: ParamSelfRef}

// Eval applies e to m. Incr and Decr saturate within their bit range.
func (e ParamExpr) Eval(m ParamValue) ParamValue {
	switch e.Kind {
	case ParamConst:
		return e.Value
	case ParamSelfRef:
		return m
	case ParamIncr:
		mask := e.Ref.Mask()
		if uint64(m)&mask == mask {
			return m
		}
		return m + 1<<e.Ref.Start
	case ParamDecr:
		if uint64(m)&e.Ref.Mask() == 0 {
			return m
		}
		return m - 1<<e.Ref.Start
	case ParamBitOr:
		return m | e.Value
	case ParamBitAnd:
		return m & e.Value
	}
	return 0
}

func (e ParamExpr) IsNull() bool {
	return e.Kind == ParamNull
}

// NeedsParam reports whether the result depends on the current parameter.
func (e ParamExpr) NeedsParam() bool {
	return e.Kind != ParamNull && e.Kind != ParamConst
}

func (e ParamExpr) String() string {
	switch e.Kind {
	case ParamNull:
		return "null"
	case ParamSelfRef:
		return "_"
	case ParamConst:
		return e.Value.String()
	case ParamIncr:
		return "incr(" + e.Ref.String() + ")"
	case ParamDecr:
		return "decr(" + e.Ref.String() + ")"
	case ParamBitOr:
		if bits.OnesCount64(uint64(e.Value)) == 1 {
			return fmt.Sprintf("set_bit(%d)", bits.TrailingZeros64(uint64(e.Value)))
		}
		return "bit_or(" + e.Value.String() + ")"
	case ParamBitAnd:
		if bits.OnesCount64(^uint64(e.Value)) == 1 {
			return fmt.Sprintf("clear_bit(%d)", bits.TrailingZeros64(^uint64(e.Value)))
		}
		return "bit_and(" + e.Value.String() + ")"
	}
	return "?"
}

type ParamCondKind uint8

const (
	CondTrue ParamCondKind = iota
	CondNE
	CondEQ
	CondLE
	CondLT
	CondGE
	CondGT
	CondBitCountNE
	CondBitCountEQ
	CondBitCountLE
	CondBitCountLT
	CondBitCountGE
	CondBitCountGT
	CondAnd
	CondOr
	CondNot
)

var condNames = [...]string{"true", "ne", "eq", "le", "lt", "ge", "gt",
	"bit_count_ne", "bit_count_eq", "bit_count_le", "bit_count_lt", "bit_count_ge", "bit_count_gt",
	"and", "or", "not"}

// ParamCond guards a rule of a parametric symbol. The zero value is true.
// Comparisons look at Ref.Eval(m) against Value; bit counts compare the
// number of set bits in Ref.Eval(m) against Value.
type ParamCond struct {
	Kind  ParamCondKind
	Ref   ParamRef
	Value ParamValue
	Args  []ParamCond
}

// Compare builds one of the comparison or bit-count conditions.
func Compare(kind ParamCondKind, r ParamRef, v ParamValue) ParamCond {
	if kind == CondTrue || kind >= CondAnd {
		panic("grammar: not a comparison: " + condNames[kind])
	}
	return ParamCond{Kind: kind, Ref: r, Value: v}
}

func CondAll(a, b ParamCond) ParamCond { return ParamCond{Kind: CondAnd, Args: []ParamCond{a, b}} }
func CondAny(a, b ParamCond) ParamCond { return ParamCond{Kind: CondOr, Args: []ParamCond{a, b}} }
func CondNegate(c ParamCond) ParamCond { return ParamCond{Kind: CondNot, Args: []ParamCond{c}} }

func (c *ParamCond) IsTrue() bool {
	return c.Kind == CondTrue
}

func (c *ParamCond) Eval(m ParamValue) bool {
	v := c.Ref.Eval(m)
	n := ParamValue(bits.OnesCount64(uint64(v)))
	switch c.Kind {
	case CondTrue:
		return true
	case CondNE:
		return v != c.Value
	case CondEQ:
		return v == c.Value
	case CondLE:
		return v <= c.Value
	case CondLT:
		return v < c.Value
	case CondGE:
		return v >= c.Value
	case CondGT:
		return v > c.Value
	case CondBitCountNE:
		return n != c.Value
	case CondBitCountEQ:
		return n == c.Value
	case CondBitCountLE:
		return n <= c.Value
	case CondBitCountLT:
		return n < c.Value
	case CondBitCountGE:
		return n >= c.Value
	case CondBitCountGT:
		return n > c.Value
	case CondAnd:
		return c.Args[0].Eval(m) && c.Args[1].Eval(m)
	case CondOr:
		return c.Args[0].Eval(m) || c.Args[1].Eval(m)
	case CondNot:
		return !c.Args[0].Eval(m)
	}
	panic("grammar: bad condition kind")
}

func (c *ParamCond) String() string {
	switch c.Kind {
	case CondTrue:
		return "true"
	case CondAnd, CondOr:
		return fmt.Sprintf("%s(%s, %s)", condNames[c.Kind], c.Args[0].String(), c.Args[1].String())
	case CondNot:
		return "not(" + c.Args[0].String() + ")"
	case CondEQ:
		switch {
		case c.Ref.Len() == 1 && c.Value == 0:
			return fmt.Sprintf("bit_clear(%d)", c.Ref.Start)
		case c.Ref.Len() == 1 && c.Value == 1:
			return fmt.Sprintf("bit_set(%d)", c.Ref.Start)
		}
	}
	if c.Kind >= CondBitCountNE {
		return fmt.Sprintf("%s(%s, %d)", condNames[c.Kind], c.Ref, uint64(c.Value))
	}
	return fmt.Sprintf("%s(%s, %s)", condNames[c.Kind], c.Ref, c.Value)
}
