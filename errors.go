package derivre

import (
	"github.com/dlclark/derivre/grammar"
	"github.com/dlclark/derivre/lark"
	"github.com/dlclark/derivre/regexvec"
	"github.com/dlclark/derivre/syntax"
	"github.com/pkg/errors"
)

// ErrNoMatch is returned by Lex when no lexeme matches at some offset.
var ErrNoMatch = errors.New("no lexeme matches")

type ErrorKind int

const (
	// MalformedSource is a syntax or semantic error in a pattern or
	// grammar.
	MalformedSource ErrorKind = iota
	// BudgetExceeded means compilation ran out of fuel, states or grammar
	// size.
	BudgetExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedSource:
		return "malformed source"
	case BudgetExceeded:
		return "budget exceeded"
	}
	return "unknown error"
}

// CompileError is returned by Compile, NewLexer and CompileGrammar.
type CompileError struct {
	Kind ErrorKind
	Err  error
}

func (e *CompileError) Error() string {
	return "derivre: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func isBudgetError(err error) bool {
	var le *lark.Error
	if errors.As(err, &le) && le.Code == lark.BudgetError {
		return true
	}
	return errors.Is(err, syntax.ErrFuelExhausted) ||
		errors.Is(err, regexvec.ErrStateLimit) ||
		errors.Is(err, grammar.ErrGrammarTooLarge)
}

func newCompileError(err error) *CompileError {
	kind := MalformedSource
	if isBudgetError(err) {
		kind = BudgetExceeded
	}
	return &CompileError{Kind: kind, Err: err}
}
