package lark

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrNestingTooDeep is the cause of errors on sources nested deeper than
// the parser allows.
var ErrNestingTooDeep = errors.New("nesting too deep")

const (
	LexicalError = iota + 1
	UnexpectedTokenError
	UnexpectedEOFError
	NestingError
	DuplicateError
	UndefinedError
	AttributeError
	RegexpError
	TokenRangeError
	ImportError
	OptionsError
	BudgetError
)

// Error is a grammar source error. Context lists the enclosing
// definitions, innermost first.
type Error struct {
	Code      int
	Message   string
	Line, Col int
	Context   []string
	Err       error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&sb, "lark: line %d col %d: ", e.Line, e.Col)
	} else {
		sb.WriteString("lark: ")
	}
	sb.WriteString(e.Message)
	for _, c := range e.Context {
		sb.WriteString("; in ")
		sb.WriteString(c)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorAt(pos Pos, code int, msg string, params ...interface{}) *Error {
	if len(params) > 0 {
		msg = fmt.Sprintf(msg, params...)
	}
	return &Error{Code: code, Message: msg, Line: pos.Line, Col: pos.Col}
}

func wrapAt(pos Pos, code int, err error, msg string, params ...interface{}) *Error {
	e := errorAt(pos, code, msg, params...)
	e.Message += ": " + err.Error()
	e.Err = err
	return e
}

// withContext records that err happened inside what.
func withContext(err error, what string) error {
	var le *Error
	if errors.As(err, &le) {
		le.Context = append(le.Context, what)
		return le
	}
	return errors.Wrap(err, what)
}

func unexpectedError(t *token, expected string) *Error {
	if t.kind == tokEOF {
		return errorAt(t.Pos, UnexpectedEOFError, "unexpected end of grammar, expecting %s", expected)
	}
	return errorAt(t.Pos, UnexpectedTokenError, "unexpected %s %q, expecting %s", t.kind, t.text, expected)
}

func nestingError(pos Pos, limit int) *Error {
	e := errorAt(pos, NestingError, "more than %d nested expressions", limit)
	e.Err = ErrNestingTooDeep
	return e
}

func duplicateError(pos Pos, what, name string) *Error {
	return errorAt(pos, DuplicateError, "%s %s already defined", what, name)
}

func undefinedError(pos Pos, what, name string) *Error {
	return errorAt(pos, UndefinedError, "%s %s is not defined", what, name)
}
