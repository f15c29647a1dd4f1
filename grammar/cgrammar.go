package grammar

import (
	"fmt"
	"strings"

	"github.com/dlclark/derivre/regexvec"
	"github.com/pkg/errors"
)

// NullSym terminates every rule in the flattened rhs table.
const NullSym = SymIdx(0)

// RhsPtr indexes the flattened rhs table of a CGrammar. An Earley item is
// a RhsPtr: the symbol at the pointer is the one after the dot.
type RhsPtr uint32

type SymFlags uint8

const (
	FlagCapture SymFlags = 1 << iota
	FlagStopCapture
	FlagGenGrammar
	FlagHasLexeme
	FlagParametric
)

func (f SymFlags) String() string {
	var parts []string
	for i, n := range []string{"capture", "stop_capture", "gen_grammar", "lexeme", "parametric"} {
		if f&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ",")
}

// CSymbol is a symbol of a compiled grammar.
type CSymbol struct {
	Idx    SymIdx
	Name   string
	Lexeme regexvec.LexemeIdx
	// Nullable is exact for non-parametric symbols. For parametric ones it
	// means the symbol matches the empty string under some parameter.
	Nullable   bool
	Props      SymbolProps
	GenGrammar *GenGrammarOptions
	Rules      []RhsPtr
	RuleConds  []ParamCond
	Flags      SymFlags
}

func (s *CSymbol) IsTerminal() bool {
	return s.Lexeme != regexvec.NoLexeme
}

// CGrammar is the immutable, flattened form of a Grammar. Symbol 0 is the
// null symbol; terminals come right after it.
type CGrammar struct {
	Name string

	symbols   []CSymbol
	rhs       []SymIdx
	rhsParams []ParamExpr
	rhsLhs    []SymIdx
	start     SymIdx

	spec   *regexvec.LexerSpec
	limits Limits
	ignore map[int]regexvec.LexemeSet

	lexer       *regexvec.RegexVec
	lexemeState map[regexvec.LexemeIdx]regexvec.StateID
	ignoreState map[int]regexvec.StateID
}

// Compile flattens g. ignore maps lexeme classes to the lexemes skipped
// before every terminal of that class.
func Compile(g *Grammar, spec *regexvec.LexerSpec, ignore map[int]regexvec.LexemeSet, limits Limits) (*CGrammar, error) {
	if g.start == NoSym {
		return nil, errors.Wrap(ErrInvalidGrammar, "no start symbol")
	}
	cg := &CGrammar{
		Name:        g.Name,
		spec:        spec,
		limits:      limits,
		ignore:      ignore,
		lexemeState: make(map[regexvec.LexemeIdx]regexvec.StateID),
		ignoreState: make(map[int]regexvec.StateID),
	}
	cg.symbols = append(cg.symbols, CSymbol{Name: "NULL", Lexeme: regexvec.NoLexeme})

	remap := make([]SymIdx, len(g.symbols))
	add := func(s *Symbol) {
		idx := SymIdx(len(cg.symbols))
		remap[s.Idx] = idx
		var flags SymFlags
		if s.Props.CaptureName != "" {
			flags |= FlagCapture
		}
		if s.Props.StopCaptureName != "" {
			flags |= FlagStopCapture
		}
		if s.GenGrammar != nil {
			flags |= FlagGenGrammar
		}
		if s.IsTerminal() {
			flags |= FlagHasLexeme
		}
		if s.Props.Parametric {
			flags |= FlagParametric
		}
		cg.symbols = append(cg.symbols, CSymbol{
			Idx:        idx,
			Name:       s.Name,
			Lexeme:     s.Lexeme,
			Props:      s.Props,
			GenGrammar: s.GenGrammar,
			Flags:      flags,
		})
	}
	for i := range g.symbols {
		if g.symbols[i].IsTerminal() {
			add(&g.symbols[i])
		}
	}
	for i := range g.symbols {
		if !g.symbols[i].IsTerminal() {
			add(&g.symbols[i])
		}
	}
	cg.start = remap[g.start]

	// rhs[0] is a terminator so that no rule starts at pointer 0
	cg.rhs = append(cg.rhs, NullSym)
	cg.rhsParams = append(cg.rhsParams, ParamExpr{})
	cg.rhsLhs = append(cg.rhsLhs, NullSym)
	for i := range g.symbols {
		s := &g.symbols[i]
		lhs := remap[s.Idx]
		cs := &cg.symbols[lhs]
		for _, r := range s.Rules {
			cs.Rules = append(cs.Rules, RhsPtr(len(cg.rhs)))
			cs.RuleConds = append(cs.RuleConds, r.Condition)
			for j, sym := range r.Rhs {
				cg.rhs = append(cg.rhs, remap[sym])
				cg.rhsParams = append(cg.rhsParams, r.RhsParams[j])
				cg.rhsLhs = append(cg.rhsLhs, lhs)
			}
			cg.rhs = append(cg.rhs, NullSym)
			cg.rhsParams = append(cg.rhsParams, ParamExpr{})
			cg.rhsLhs = append(cg.rhsLhs, lhs)
		}
	}
	cg.computeNullable()
	return cg, nil
}

func (cg *CGrammar) computeNullable() {
	for changed := true; changed; {
		changed = false
		for i := range cg.symbols {
			s := &cg.symbols[i]
			if s.Nullable || s.IsTerminal() {
				continue
			}
		rules:
			for _, r := range s.Rules {
				for p := r; cg.rhs[p] != NullSym; p++ {
					if !cg.symbols[cg.rhs[p]].Nullable {
						continue rules
					}
				}
				s.Nullable = true
				changed = true
				break
			}
		}
	}
}

func (cg *CGrammar) NumSymbols() int {
	return len(cg.symbols)
}

func (cg *CGrammar) Start() SymIdx {
	return cg.start
}

func (cg *CGrammar) Symbol(sym SymIdx) *CSymbol {
	return &cg.symbols[sym]
}

func (cg *CGrammar) SymName(sym SymIdx) string {
	return cg.symbols[sym].Name
}

// SymAt returns the symbol after the dot of ptr; NullSym at a rule end.
func (cg *CGrammar) SymAt(ptr RhsPtr) SymIdx {
	return cg.rhs[ptr]
}

// ParamAt returns the parameter expression of the symbol at ptr.
func (cg *CGrammar) ParamAt(ptr RhsPtr) ParamExpr {
	return cg.rhsParams[ptr]
}

// LhsOf returns the symbol whose rule contains ptr.
func (cg *CGrammar) LhsOf(ptr RhsPtr) SymIdx {
	return cg.rhsLhs[ptr]
}

// Spec returns the lexemes of the grammar.
func (cg *CGrammar) Spec() *regexvec.LexerSpec {
	return cg.spec
}

// IgnoreLexemes returns the lexemes skipped in lexeme class class.
func (cg *CGrammar) IgnoreLexemes(class int) regexvec.LexemeSet {
	return cg.ignore[class]
}

// Lexer returns the lexer over all lexemes of the grammar, building it on
// first use. It is shared by every recognizer of the grammar and so is
// the grammar itself not safe for concurrent use.
func (cg *CGrammar) Lexer() *regexvec.RegexVec {
	if cg.lexer == nil {
		cg.lexer = regexvec.New(cg.spec, cg.limits.LexerOptions())
	}
	return cg.lexer
}

func (cg *CGrammar) lexemeStart(lex regexvec.LexemeIdx) regexvec.StateID {
	if st, ok := cg.lexemeState[lex]; ok {
		return st
	}
	set := regexvec.NewLexemeSet(cg.spec.Len())
	set.Add(lex)
	st := cg.Lexer().InitialState(set)
	cg.lexemeState[lex] = st
	return st
}

func (cg *CGrammar) ignoreStart(class int) regexvec.StateID {
	if st, ok := cg.ignoreState[class]; ok {
		return st
	}
	st := regexvec.DeadState
	if set := cg.ignore[class]; !set.IsEmpty() {
		st = cg.Lexer().InitialState(set)
	}
	cg.ignoreState[class] = st
	return st
}

// RuleString renders the rule containing ptr with a dot before ptr.
func (cg *CGrammar) RuleString(ptr RhsPtr) string {
	lhs := cg.rhsLhs[ptr]
	begin := ptr
	for cg.rhs[begin-1] != NullSym {
		begin--
	}
	var sb strings.Builder
	sb.WriteString(cg.symbols[lhs].Name)
	sb.WriteString(" ::=")
	for p := begin; ; p++ {
		if p == ptr {
			sb.WriteString(" •")
		}
		sym := cg.rhs[p]
		if sym == NullSym {
			break
		}
		sb.WriteString(" ")
		sb.WriteString(cg.symbols[sym].Name)
		if e := cg.rhsParams[p]; !e.IsNull() {
			sb.WriteString("::" + e.String())
		}
	}
	return sb.String()
}

func (cg *CGrammar) Stats() string {
	numTerm, numRules := 0, 0
	for i := 1; i < len(cg.symbols); i++ {
		if cg.symbols[i].IsTerminal() {
			numTerm++
		}
		numRules += len(cg.symbols[i].Rules)
	}
	return fmt.Sprintf("%d terminals; %d non-terminals with %d rules; %d rhs entries",
		numTerm, len(cg.symbols)-1-numTerm, numRules, len(cg.rhs))
}

func (cg *CGrammar) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CGrammar %s (start %s):\n", cg.Name, cg.symbols[cg.start].Name)
	for i := 1; i < len(cg.symbols); i++ {
		s := &cg.symbols[i]
		if s.IsTerminal() {
			fmt.Fprintf(&sb, "%-15s ⇦ %s\n", s.Name, cg.spec.Lexeme(s.Lexeme))
			continue
		}
		for j, r := range s.Rules {
			sb.WriteString(cg.RuleString(r))
			if c := &s.RuleConds[j]; !c.IsTrue() {
				sb.WriteString(" %if " + c.String())
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
