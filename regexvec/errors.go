package regexvec

import "github.com/pkg/errors"

// ErrStateLimit is returned once a RegexVec would grow past Options.MaxStates.
var ErrStateLimit = errors.New("too many lexer states")
