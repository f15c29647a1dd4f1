/*
Package derivre is a regular expression and grammar engine built on Brzozowski
derivatives. Patterns compile to an arena of hash-consed expressions and the
matcher is a DFA that grows one state at a time as input is read, so there is
no backtracking and every compilation and match runs within a budget of work.

The sub-packages hold the engine: syntax for the expression arena, regexvec
for the lexer DFA over several regexes at once, grammar and lark for
context-free grammars built on top of it, and toktrie for computing which
tokens of a vocabulary a grammar or lexer allows next.
*/
package derivre

import (
	"regexp"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/dlclark/derivre/helpers"
	"github.com/dlclark/derivre/regexvec"
	"github.com/dlclark/derivre/syntax"
	"github.com/plan-systems/klog"
)

// DefaultBudget bounds the DFA behind every Regexp and Lexer compiled
// without an explicit budget.
var DefaultBudget = regexvec.DefaultOptions()

// Regexp is the representation of a compiled regular expression. Matching is
// anchored the way lexemes are: MatchString tests the whole input, and the
// Find methods look for the leftmost-longest match.
// A Regexp is safe for concurrent use by multiple goroutines.
type Regexp struct {
	// read-only after Compile
	pattern string
	options RegexOptions
	exprs   *syntax.ExprSet
	rx      syntax.ExprRef
	lexeme  regexvec.LexemeIdx
	// first holds the bytes a non-empty match can start with
	first    helpers.ByteSet
	nullable bool

	// the DFA grows while matching
	mu      sync.Mutex
	rv      *regexvec.RegexVec
	initial regexvec.StateID
}

// Compile parses a regular expression and returns, if successful,
// a Regexp object that can be used to match against text.
func Compile(expr string, opt RegexOptions) (*Regexp, error) {
	return CompileWithBudget(expr, opt, DefaultBudget)
}

// CompileWithBudget is Compile with a DFA budget other than DefaultBudget.
func CompileWithBudget(expr string, opt RegexOptions, budget regexvec.Options) (*Regexp, error) {
	exprs := syntax.NewExprSet()
	rx, err := exprs.ParseRegexWith(expr, opt.parseOptions())
	if err != nil {
		return nil, newCompileError(err)
	}
	if opt&Debug != 0 {
		klog.Infof("derivre: %s compiles to\n%s", quote(expr), exprs.Dump(rx))
	}

	spec := regexvec.NewLexerSpec(exprs)
	lex := spec.AddGreedy("regexp", rx, false)
	rv := regexvec.New(spec, budget)
	initial := rv.InitialState(spec.AllLexemes())
	var first helpers.ByteSet
	for c := 0; c < 256; c++ {
		if rv.Transition(initial, byte(c)) != regexvec.DeadState {
			first.Add(byte(c))
		}
	}
	if err := rv.Err(); err != nil {
		return nil, newCompileError(err)
	}
	return &Regexp{
		pattern:  expr,
		options:  opt,
		exprs:    exprs,
		rx:       rx,
		lexeme:   lex,
		first:    first,
		nullable: exprs.Nullable(rx),
		rv:       rv,
		initial:  initial,
	}, nil
}

// MustCompile is like Compile but panics if the expression cannot be parsed.
// It simplifies safe initialization of global variables holding compiled regular
// expressions.
func MustCompile(str string, opt RegexOptions) *Regexp {
	re, err := Compile(str, opt)
	if err != nil {
		panic(`derivre: Compile(` + quote(str) + `): ` + err.Error())
	}
	return re
}

// Escape quotes every metacharacter of input.
func Escape(input string) string {
	return regexp.QuoteMeta(input)
}

// String returns the source text used to compile the regular expression.
func (re *Regexp) String() string {
	return re.pattern
}

// Expr describes the simplified expression the pattern compiled to.
func (re *Regexp) Expr() string {
	return re.exprs.String(re.rx)
}

func quote(s string) string {
	if strconv.CanBackquote(s) {
		return "`" + s + "`"
	}
	return strconv.Quote(s)
}

type RegexOptions int32

const (
	IgnoreCase       RegexOptions = 0x0001 // "i"
	Singleline                    = 0x0010 // "s"
	Debug                         = 0x0080 // "d"
	AllowInvalidUTF8              = 0x0200 // "b"
)

func (opt RegexOptions) parseOptions() syntax.ParseOptions {
	return syntax.ParseOptions{
		CaseInsensitive:  opt&IgnoreCase != 0,
		DotAll:           opt&Singleline != 0,
		AllowInvalidUTF8: opt&AllowInvalidUTF8 != 0,
	}
}

func (re *Regexp) Debug() bool {
	return re.options&Debug != 0
}

func (re *Regexp) accepting(st regexvec.StateID) bool {
	return re.rv.StateDesc(st).GreedyAccepting.Has(re.lexeme)
}

// MatchString reports whether all of s matches the pattern. The only
// expected error is the DFA running out of its budget.
func (re *Regexp) MatchString(s string) (bool, error) {
	re.mu.Lock()
	defer re.mu.Unlock()
	st := re.initial
	for i := 0; i < len(s) && st != regexvec.DeadState; i++ {
		st = re.rv.Transition(st, s[i])
	}
	if err := re.rv.Err(); err != nil {
		return false, err
	}
	return re.accepting(st), nil
}

// longestAt returns the end of the longest match starting at from, or -1.
func (re *Regexp) longestAt(s string, from int) (int, error) {
	end := -1
	st := re.initial
	if re.accepting(st) {
		end = from
	}
	for i := from; i < len(s); i++ {
		if st = re.rv.Transition(st, s[i]); st == regexvec.DeadState {
			break
		}
		if re.accepting(st) {
			end = i + 1
		}
	}
	return end, re.rv.Err()
}

func (re *Regexp) findAt(s string, from int) ([]int, error) {
	for start := from; start <= len(s); start++ {
		if !re.nullable {
			i := re.first.IndexOfAny(s[start:])
			if i < 0 {
				return nil, nil
			}
			start += i
		}
		end, err := re.longestAt(s, start)
		if err != nil {
			return nil, err
		}
		if end >= 0 {
			return []int{start, end}, nil
		}
	}
	return nil, nil
}

// FindStringIndex returns the bounds of the leftmost-longest match in s, or
// nil when there is none.
func (re *Regexp) FindStringIndex(s string) ([]int, error) {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.findAt(s, 0)
}

// FindAllStringIndex returns the bounds of successive non-overlapping
// matches, at most n of them when n >= 0. An empty match right after a
// previous match is skipped.
func (re *Regexp) FindAllStringIndex(s string, n int) ([][]int, error) {
	re.mu.Lock()
	defer re.mu.Unlock()
	var all [][]int
	pos, prevEnd := 0, -1
	for pos <= len(s) && (n < 0 || len(all) < n) {
		loc, err := re.findAt(s, pos)
		if err != nil {
			return nil, err
		}
		if loc == nil {
			break
		}
		if loc[0] == loc[1] {
			_, w := utf8.DecodeRuneInString(s[loc[1]:])
			pos = loc[1] + w
			if w == 0 {
				pos++
			}
			if loc[0] == prevEnd {
				continue
			}
		} else {
			pos = loc[1]
		}
		all = append(all, loc)
		prevEnd = loc[1]
	}
	return all, nil
}
