package syntax

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/dlclark/derivre/helpers"
)

// Description renders one node without its children.
func (s *ExprSet) Description(e ExprRef) string {
	x := s.Get(e)
	buf := &bytes.Buffer{}
	buf.WriteString(x.Tag.String())
	buf.WriteString("#" + strconv.Itoa(int(e)))
	if x.Nullable() {
		buf.WriteString("-N")
	}
	if x.Positive() {
		buf.WriteString("-P")
	}

	switch x.Tag {
	case TagByte:
		buf.WriteString("(Ch = " + helpers.ByteDescription(x.Byte) + ")")
	case TagByteSet:
		buf.WriteString("(Set = " + x.Set.String() + ")")
	case TagByteConcat:
		buf.WriteString("(String = " + strconv.Quote(string(x.Bytes)) + ")")
	case TagRepeat:
		buf.WriteString("(Min = " + strconv.Itoa(int(x.Min)) + ", Max = ")
		if x.Max == RepeatInf {
			buf.WriteString("inf")
		} else {
			buf.WriteString(strconv.Itoa(int(x.Max)))
		}
		buf.WriteString(")")
	case TagLookahead:
		buf.WriteString("(Offset = " + strconv.Itoa(int(x.Min)) + ")")
	case TagRemainderIs:
		buf.WriteString("(Divisor = " + strconv.Itoa(int(x.Divisor)) +
			", Remainder = " + strconv.Itoa(int(x.Remainder)) +
			", Scale = " + strconv.Itoa(int(x.Scale)) +
			", Fractional = " + strconv.FormatBool(x.Fractional) + ")")
	}
	return buf.String()
}

var padSpace = []byte("                                ")

// Dump renders e as an indented tree, one node per line.
func (s *ExprSet) Dump(e ExprRef) string {
	type frame struct {
		args []ExprRef
		next int
	}
	buf := bytes.NewBufferString(s.Description(e))
	buf.WriteRune('\n')
	stack := []frame{{args: s.Get(e).Args}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.args) {
			stack = stack[:len(stack)-1]
			continue
		}
		child := top.args[top.next]
		top.next++

		depth := min(len(stack), len(padSpace))
		buf.Write(padSpace[:depth])
		buf.WriteString(s.Description(child))
		buf.WriteRune('\n')
		stack = append(stack, frame{args: s.Get(child).Args})
	}
	return buf.String()
}

// String renders e in regex-like syntax, for debugging.
func (s *ExprSet) String(e ExprRef) string {
	buf := &strings.Builder{}
	s.writeString(buf, e)
	return buf.String()
}

func (s *ExprSet) writeString(buf *strings.Builder, e ExprRef) {
	switch e {
	case EmptyString:
		buf.WriteString("ε")
		return
	case NoMatch:
		buf.WriteString("∅")
		return
	case AnyByteString:
		buf.WriteString("_*")
		return
	}
	x := s.Get(e)
	switch x.Tag {
	case TagByte:
		buf.WriteString(helpers.ByteDescription(x.Byte))
	case TagByteSet:
		buf.WriteString(x.Set.String())
	case TagByteConcat:
		for _, b := range x.Bytes {
			buf.WriteString(helpers.ByteDescription(b))
		}
		if x.Args[0] != EmptyString {
			s.writeString(buf, x.Args[0])
		}
	case TagConcat:
		s.writeString(buf, x.Args[0])
		s.writeString(buf, x.Args[1])
	case TagOr, TagAnd:
		sep := "|"
		if x.Tag == TagAnd {
			sep = "&"
		}
		buf.WriteByte('(')
		for i, a := range x.Args {
			if i > 0 {
				buf.WriteString(sep)
			}
			s.writeString(buf, a)
		}
		buf.WriteByte(')')
	case TagNot:
		buf.WriteString("~(")
		s.writeString(buf, x.Args[0])
		buf.WriteByte(')')
	case TagRepeat:
		buf.WriteByte('(')
		s.writeString(buf, x.Args[0])
		buf.WriteByte(')')
		switch {
		case x.Min == 0 && x.Max == RepeatInf:
			buf.WriteByte('*')
		case x.Min == 1 && x.Max == RepeatInf:
			buf.WriteByte('+')
		case x.Min == 0 && x.Max == 1:
			buf.WriteByte('?')
		case x.Max == RepeatInf:
			buf.WriteString("{" + strconv.Itoa(int(x.Min)) + ",}")
		default:
			buf.WriteString("{" + strconv.Itoa(int(x.Min)) + "," + strconv.Itoa(int(x.Max)) + "}")
		}
	case TagLookahead:
		buf.WriteString("(?=")
		s.writeString(buf, x.Args[0])
		buf.WriteString(")")
	case TagRemainderIs:
		buf.WriteString(s.Description(e))
	}
}
