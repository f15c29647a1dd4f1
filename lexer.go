package derivre

import (
	"sync"

	"github.com/dlclark/derivre/regexvec"
	"github.com/dlclark/derivre/syntax"
	"github.com/pkg/errors"
)

// LexRule is one lexeme of a Lexer. A lazy lexeme ends at its first match;
// the others take the longest.
type LexRule struct {
	Name    string
	Pattern string
	Lazy    bool
}

// Token is a lexeme found by Lex.
type Token struct {
	Name   string
	Text   string
	Offset int
}

// Lexer splits input into lexemes with a single DFA over all of its rules.
// When several rules match the same text the earliest rule wins.
// A Lexer is safe for concurrent use by multiple goroutines.
type Lexer struct {
	spec *regexvec.LexerSpec

	mu      sync.Mutex
	rv      *regexvec.RegexVec
	initial regexvec.StateID
}

// NewLexer compiles rules, in priority order.
func NewLexer(rules []LexRule, opt RegexOptions) (*Lexer, error) {
	return NewLexerWithBudget(rules, opt, DefaultBudget)
}

// NewLexerWithBudget is NewLexer with a DFA budget other than DefaultBudget.
func NewLexerWithBudget(rules []LexRule, opt RegexOptions, budget regexvec.Options) (*Lexer, error) {
	exprs := syntax.NewExprSet()
	spec := regexvec.NewLexerSpec(exprs)
	for i, r := range rules {
		rx, err := exprs.ParseRegexWith(r.Pattern, opt.parseOptions())
		if err != nil {
			return nil, newCompileError(errors.Wrapf(err, "lexeme %s", r.Name))
		}
		var idx regexvec.LexemeIdx
		if r.Lazy {
			idx = spec.AddLazy(r.Name, rx)
		} else {
			idx = spec.AddGreedy(r.Name, rx, false)
		}
		if int(idx) != i {
			return nil, newCompileError(errors.Errorf("lexeme %s duplicates %s", r.Name, spec.Lexeme(idx).Name))
		}
	}
	rv := regexvec.New(spec, budget)
	initial := rv.InitialState(spec.AllLexemes())
	if err := rv.Err(); err != nil {
		return nil, newCompileError(err)
	}
	return &Lexer{spec: spec, rv: rv, initial: initial}, nil
}

// Lex splits all of input into tokens. Each token is the longest match of
// any rule, or the first match of a lazy rule; text a lexeme only looks
// ahead at is consumed but left out of Token.Text. Lex returns the tokens
// found so far along with ErrNoMatch when the rest of input does not start
// with a lexeme.
func (l *Lexer) Lex(input string) ([]Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var toks []Token
	for pos := 0; pos < len(input); {
		st := l.initial
		end, lex, hidden := -1, regexvec.NoLexeme, 0
		for i := pos; i < len(input); i++ {
			if st = l.rv.Transition(st, input[i]); st == regexvec.DeadState {
				break
			}
			desc := l.rv.StateDesc(st)
			if desc.HasLowestMatch() {
				end, lex, hidden = i+1, desc.LowestMatch, desc.LookaheadLen
				break
			}
			if !desc.GreedyAccepting.IsEmpty() {
				end, lex, hidden = i+1, desc.GreedyAccepting.First(), 0
			}
		}
		if err := l.rv.Err(); err != nil {
			return toks, err
		}
		if end < 0 {
			return toks, errors.Wrapf(ErrNoMatch, "at offset %d", pos)
		}
		toks = append(toks, Token{
			Name:   l.spec.Lexeme(lex).Name,
			Text:   input[pos : end-hidden],
			Offset: pos,
		})
		pos = end
	}
	return toks, nil
}

// Recognizer returns a recognizer of the prefixes of any one lexeme.
func (l *Lexer) Recognizer() *LexerRecognizer {
	r := &LexerRecognizer{l: l}
	r.Reset()
	return r
}

// LexerRecognizer feeds bytes to the DFA of a Lexer. It implements
// toktrie.Recognizer, so a token trie can compute which tokens may continue
// the current lexeme.
type LexerRecognizer struct {
	l      *Lexer
	states []regexvec.StateID
}

// Reset goes back to the start of a lexeme.
func (r *LexerRecognizer) Reset() {
	r.states = append(r.states[:0], r.l.initial)
}

func (r *LexerRecognizer) top() regexvec.StateID {
	return r.states[len(r.states)-1]
}

// TryPushByte advances by b unless that kills every lexeme.
func (r *LexerRecognizer) TryPushByte(b byte) bool {
	r.l.mu.Lock()
	st := r.l.rv.Transition(r.top(), b)
	r.l.mu.Unlock()
	if st == regexvec.DeadState {
		return false
	}
	r.states = append(r.states, st)
	return true
}

// PopBytes undoes the last n pushed bytes.
func (r *LexerRecognizer) PopBytes(n int) {
	r.states = r.states[:len(r.states)-n]
}

// Len is the number of bytes pushed since Reset.
func (r *LexerRecognizer) Len() int {
	return len(r.states) - 1
}

// Matching returns the names of the lexemes that match the pushed bytes.
func (r *LexerRecognizer) Matching() []string {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var names []string
	r.l.rv.StateDesc(r.top()).GreedyAccepting.ForEach(func(idx regexvec.LexemeIdx) {
		names = append(names, r.l.spec.Lexeme(idx).Name)
	})
	return names
}
