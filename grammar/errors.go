package grammar

import "github.com/pkg/errors"

var (
	// ErrGrammarTooLarge is returned when a grammar grows past Limits.MaxGrammarSize.
	ErrGrammarTooLarge = errors.New("grammar too large")
	// ErrInvalidGrammar covers structural mistakes: rules on terminals,
	// undefined symbols, parameter mismatches.
	ErrInvalidGrammar = errors.New("invalid grammar")
)
