package derivre

import (
	"github.com/dlclark/derivre/grammar"
	"github.com/dlclark/derivre/lark"
	"github.com/dlclark/derivre/toktrie"
	"github.com/pkg/errors"
)

// GrammarOptions configure CompileGrammar. The zero value uses
// grammar.DefaultLimits and no tokenizer.
type GrammarOptions struct {
	Limits grammar.Limits
	// Trie is the tokenizer vocabulary; it resolves <special> tokens and is
	// needed by AllowedTokens.
	Trie *toktrie.TokTrie
}

// Grammar is a compiled context-free grammar whose terminals are regexes.
type Grammar struct {
	cg   *grammar.CGrammar
	trie *toktrie.TokTrie
}

// CompileGrammar compiles a Lark-like grammar source. Errors are
// *CompileError values wrapping a *lark.Error.
func CompileGrammar(src string, opts GrammarOptions) (*Grammar, error) {
	cg, err := lark.Compile(src, lark.Options{Limits: opts.Limits, Trie: opts.Trie})
	if err != nil {
		return nil, newCompileError(err)
	}
	return &Grammar{cg: cg, trie: opts.Trie}, nil
}

// Compiled returns the compiled form of the grammar.
func (g *Grammar) Compiled() *grammar.CGrammar {
	return g.cg
}

// NewRecognizer returns a fresh recognizer for the grammar. Recognizers are
// not safe for concurrent use, and neither is a Grammar with live
// recognizers, as they share the lexer.
func (g *Grammar) NewRecognizer() *grammar.Recognizer {
	return grammar.NewRecognizer(g.cg)
}

// Accepts reports whether all of input is in the language of the grammar.
func (g *Grammar) Accepts(input string) bool {
	return g.NewRecognizer().Accepts([]byte(input))
}

// AllowedTokens returns the tokens that may follow prefix.
func (g *Grammar) AllowedTokens(prefix string) (*toktrie.TokenSet, error) {
	if g.trie == nil {
		return nil, errors.New("grammar compiled without a tokenizer")
	}
	r := g.NewRecognizer()
	if n := r.PushBytes([]byte(prefix)); n != len(prefix) {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, errors.Errorf("prefix rejected at offset %d", n)
	}
	set := g.trie.AllowedTokens(r)
	if r.IsAccepting() {
		set.Allow(g.trie.EOSToken())
	}
	return set, r.Err()
}

func (g *Grammar) String() string {
	return g.cg.String()
}
