package grammar

import "github.com/dlclark/derivre/regexvec"

// Limits bound the resources of one grammar compilation.
type Limits struct {
	// MaxGrammarSize caps symbols plus rhs elements.
	MaxGrammarSize int
	// MaxFuel caps the expression-arena cost of building lexemes, and
	// separately of growing the lexer.
	MaxFuel uint64
	// MaxStates caps the lexer DFA.
	MaxStates int
	// RelevanceFuel is the budget of each emptiness check.
	RelevanceFuel uint64
	// MaxNestingDepth caps the nesting of grammar source constructs.
	MaxNestingDepth int
}

func DefaultLimits() Limits {
	return Limits{
		MaxGrammarSize:  500_000,
		MaxFuel:         1_000_000,
		MaxStates:       50_000,
		RelevanceFuel:   2_000,
		MaxNestingDepth: 100,
	}
}

// LexerOptions derives the lexer budget from l.
func (l Limits) LexerOptions() regexvec.Options {
	opts := regexvec.DefaultOptions()
	opts.MaxFuel = l.MaxFuel
	opts.MaxStates = l.MaxStates
	opts.RelevanceFuel = l.RelevanceFuel
	return opts
}
