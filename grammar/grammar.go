package grammar

import (
	"fmt"
	"strings"

	"github.com/dlclark/derivre/regexvec"
	"github.com/dlclark/derivre/syntax"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"
)

// SymIdx indexes Grammar symbols.
type SymIdx uint32

// NoSym marks a missing symbol.
const NoSym = SymIdx(^uint32(0))

// SymbolProps carry the annotations of a symbol.
type SymbolProps struct {
	// MaxTokens limits the tokens generated under the symbol; 0 is unlimited.
	MaxTokens       int
	CaptureName     string
	StopCaptureName string
	Temperature     float32
	// GrammarID is the lexeme class of the grammar the symbol belongs to.
	GrammarID  int
	IsStart    bool
	Parametric bool
}

// IsSpecial reports whether the optimizer has to keep the symbol.
func (p *SymbolProps) IsSpecial() bool {
	return p.MaxTokens > 0 || p.CaptureName != "" || p.StopCaptureName != "" || p.IsStart
}

// ForWrapper returns the props of a symbol standing in for one with p.
func (p *SymbolProps) ForWrapper() SymbolProps {
	return SymbolProps{
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		GrammarID:   p.GrammarID,
	}
}

// NeutralParam is the parameter passed when a symbol is used as is.
func (p *SymbolProps) NeutralParam() ParamExpr {
	if p.Parametric {
		return SelfRef
	}
	return ParamExpr{}
}

func (p SymbolProps) String() string {
	var sb strings.Builder
	if p.CaptureName != "" {
		sb.WriteString(" CAPTURE=" + p.CaptureName)
	}
	if p.StopCaptureName != "" {
		sb.WriteString(" STOP-CAPTURE=" + p.StopCaptureName)
	}
	if p.MaxTokens > 0 {
		fmt.Fprintf(&sb, " max_tokens=%d", p.MaxTokens)
	}
	if p.Temperature != 0 {
		fmt.Fprintf(&sb, " temp=%.2f", p.Temperature)
	}
	return sb.String()
}

// GenGrammarOptions reference a nested grammar by id.
type GenGrammarOptions struct {
	Grammar     string
	Temperature float32
}

// Rule is lhs: rhs[0] rhs[1] ... guarded by Condition. RhsParams[i] is the
// parameter passed to Rhs[i].
type Rule struct {
	Lhs       SymIdx
	Rhs       []SymIdx
	RhsParams []ParamExpr
	Condition ParamCond
}

type Symbol struct {
	Idx        SymIdx
	Name       string
	Lexeme     regexvec.LexemeIdx
	GenGrammar *GenGrammarOptions
	Rules      []Rule
	Props      SymbolProps
}

func (s *Symbol) IsTerminal() bool {
	return s.Lexeme != regexvec.NoLexeme
}

func (s *Symbol) shortName() string {
	if s.IsTerminal() {
		return fmt.Sprintf("[%d]", s.Lexeme)
	}
	return s.Name
}

func (s *Symbol) paramName(p ParamExpr) string {
	if p.IsNull() {
		return s.shortName()
	}
	return s.shortName() + "::" + p.String()
}

// Grammar is a mutable set of symbols and rules.
type Grammar struct {
	Name       string
	Parametric bool

	symbols    []Symbol
	start      SymIdx
	byName     map[string]SymIdx
	countCache map[string]int
}

func NewGrammar(name string) *Grammar {
	return &Grammar{
		Name:       name,
		start:      NoSym,
		byName:     make(map[string]SymIdx),
		countCache: make(map[string]int),
	}
}

func (g *Grammar) NumSymbols() int {
	return len(g.symbols)
}

func (g *Grammar) Start() SymIdx {
	return g.start
}

// SetStart marks sym as the start symbol.
func (g *Grammar) SetStart(sym SymIdx) {
	if g.start != NoSym {
		g.symbols[g.start].Props.IsStart = false
	}
	g.start = sym
	g.symbols[sym].Props.IsStart = true
}

// Symbol returns the data of sym. It panics on an unknown symbol.
func (g *Grammar) Symbol(sym SymIdx) *Symbol {
	return &g.symbols[sym]
}

// Lookup finds a symbol by name.
func (g *Grammar) Lookup(name string) (SymIdx, bool) {
	s, ok := g.byName[name]
	return s, ok
}

func (g *Grammar) SymName(sym SymIdx) string {
	return g.symbols[sym].Name
}

func (g *Grammar) freshName(name0 string) string {
	name := name0
	idx, ok := g.countCache[name0]
	if !ok {
		idx = 2
	}
	for name == "" || g.hasName(name) {
		name = fmt.Sprintf("%s#%d", name0, idx)
		idx++
	}
	g.countCache[name0] = idx
	return name
}

func (g *Grammar) hasName(name string) bool {
	_, ok := g.byName[name]
	return ok
}

// FreshSymbol adds a symbol without rules. The name is made unique by
// appending #N when needed.
func (g *Grammar) FreshSymbol(name0 string, props SymbolProps) SymIdx {
	name := g.freshName(name0)
	idx := SymIdx(len(g.symbols))
	if props.Parametric {
		g.Parametric = true
	}
	g.symbols = append(g.symbols, Symbol{
		Idx:    idx,
		Name:   name,
		Lexeme: regexvec.NoLexeme,
		Props:  props,
	})
	g.byName[name] = idx
	if props.IsStart {
		g.SetStart(idx)
	}
	return idx
}

// RenameSymbol gives sym a new (unique) name.
func (g *Grammar) RenameSymbol(sym SymIdx, name string) {
	cur := g.symbols[sym].Name
	if cur == name {
		return
	}
	delete(g.byName, cur)
	name = g.freshName(name)
	g.symbols[sym].Name = name
	g.byName[name] = sym
}

// AddRule adds lhs: rhs with null parameters.
func (g *Grammar) AddRule(lhs SymIdx, rhs ...SymIdx) error {
	params := make([]ParamExpr, len(rhs))
	for i, s := range rhs {
		params[i] = g.symbols[s].Props.NeutralParam()
	}
	return g.AddRuleExt(lhs, ParamCond{}, rhs, params)
}

// AddRuleExt adds a rule with explicit parameters and condition.
func (g *Grammar) AddRuleExt(lhs SymIdx, cond ParamCond, rhs []SymIdx, params []ParamExpr) error {
	sym := &g.symbols[lhs]
	if sym.IsTerminal() {
		return errors.Wrapf(ErrInvalidGrammar, "terminal symbol %s cannot have rules", sym.Name)
	}
	if !cond.IsTrue() && !sym.Props.Parametric {
		return errors.Wrapf(ErrInvalidGrammar, "non-parametric symbol %s with condition %s", sym.Name, cond.String())
	}
	if len(params) != len(rhs) {
		return errors.Wrapf(ErrInvalidGrammar, "rule for %s: %d symbols, %d params", sym.Name, len(rhs), len(params))
	}
	for i, s := range rhs {
		r := &g.symbols[s]
		p := params[i]
		if r.Props.Parametric == p.IsNull() {
			return errors.Wrapf(ErrInvalidGrammar, "symbol %s : %s with parametric=%v and param %s",
				sym.Name, r.Name, r.Props.Parametric, p)
		}
		if p.NeedsParam() && !sym.Props.Parametric {
			return errors.Wrapf(ErrInvalidGrammar, "symbol %s : %s with param %s needs a parametric lhs",
				sym.Name, r.Name, p)
		}
	}
	sym.Rules = append(sym.Rules, Rule{
		Lhs:       lhs,
		Rhs:       append([]SymIdx(nil), rhs...),
		RhsParams: append([]ParamExpr(nil), params...),
		Condition: cond,
	})
	return nil
}

func (g *Grammar) checkEmptySymbol(sym SymIdx) error {
	s := &g.symbols[sym]
	switch {
	case len(s.Rules) > 0:
		return errors.Wrapf(ErrInvalidGrammar, "symbol %s has rules", s.Name)
	case s.GenGrammar != nil:
		return errors.Wrapf(ErrInvalidGrammar, "symbol %s has grammar options", s.Name)
	case s.IsTerminal():
		return errors.Wrapf(ErrInvalidGrammar, "symbol %s has a lexeme", s.Name)
	}
	return nil
}

// MakeParametric marks an empty symbol as taking a parameter.
func (g *Grammar) MakeParametric(sym SymIdx) error {
	if err := g.checkEmptySymbol(sym); err != nil {
		return err
	}
	g.Parametric = true
	g.symbols[sym].Props.Parametric = true
	return nil
}

// MakeTerminal binds lexeme lex to an empty symbol. A lexeme matching the
// empty string is split: sym becomes the choice between nothing and a
// wrapper bound to the non-empty part of the lexeme.
func (g *Grammar) MakeTerminal(sym SymIdx, lex regexvec.LexemeIdx, spec *regexvec.LexerSpec) error {
	if err := g.checkEmptySymbol(sym); err != nil {
		return err
	}
	if g.symbols[sym].Props.Parametric {
		return errors.Wrapf(ErrInvalidGrammar, "symbol %s is parametric", g.symbols[sym].Name)
	}
	l := spec.Lexeme(lex)
	if !spec.Exprs.Nullable(l.Rx) {
		g.symbols[sym].Lexeme = lex
		return nil
	}
	nonEmpty := *l
	nonEmpty.Rx = spec.Exprs.MkAnd(l.Rx, syntax.NonEmptyByteString)
	nonEmpty.Name = l.Name + "#nonempty"
	wrapLex := spec.Add(nonEmpty)
	wrap := g.FreshSymbol("rx_null_"+g.symbols[sym].Name, g.symbols[sym].Props.ForWrapper())
	g.symbols[wrap].Lexeme = wrapLex
	if err := g.AddRule(sym, wrap); err != nil {
		return err
	}
	return g.AddRule(sym)
}

// MakeGenGrammar turns an empty symbol into a reference to another grammar.
func (g *Grammar) MakeGenGrammar(sym SymIdx, opts GenGrammarOptions) error {
	if err := g.checkEmptySymbol(sym); err != nil {
		return err
	}
	g.symbols[sym].GenGrammar = &opts
	return nil
}

// ResolveGrammarRefs links every nested-grammar reference to the start
// symbol of the grammar it names.
func (g *Grammar) ResolveGrammarRefs(starts map[string]SymIdx) error {
	for i := range g.symbols {
		s := &g.symbols[i]
		if s.GenGrammar == nil || len(s.Rules) > 0 {
			continue
		}
		target, ok := starts[s.GenGrammar.Grammar]
		if !ok {
			return errors.Wrapf(ErrInvalidGrammar, "unknown grammar %q", s.GenGrammar.Grammar)
		}
		if err := g.AddRule(s.Idx, target); err != nil {
			return err
		}
	}
	return nil
}

// Size counts symbols and rhs elements.
func (g *Grammar) Size() int {
	n := len(g.symbols)
	for i := range g.symbols {
		for _, r := range g.symbols[i].Rules {
			n += len(r.Rhs) + 1
		}
	}
	return n
}

// Stats is a one-line summary of the grammar size.
func (g *Grammar) Stats() string {
	numTerm, numNonTerm, numRules, size := 0, 0, 0, 0
	for i := range g.symbols {
		s := &g.symbols[i]
		size++
		if s.IsTerminal() {
			numTerm++
			continue
		}
		size++
		numNonTerm++
		numRules += len(s.Rules)
		for _, r := range s.Rules {
			size += len(r.Rhs)
		}
	}
	return fmt.Sprintf("%d terminals; %d non-terminals with %d rules with %d symbols",
		numTerm, numNonTerm, numRules, size)
}

// SymbolHistogram counts symbols by base name (the part before '#'),
// ordered by name.
func (g *Grammar) SymbolHistogram() string {
	counts := treemap.NewWithStringComparator()
	for i := range g.symbols {
		base, _, _ := strings.Cut(g.symbols[i].Name, "#")
		n := 0
		if v, found := counts.Get(base); found {
			n = v.(int)
		}
		counts.Put(base, n+1)
	}
	var sb strings.Builder
	it := counts.Iterator()
	for it.Next() {
		fmt.Fprintf(&sb, "%s: %d\n", it.Key(), it.Value())
	}
	return sb.String()
}

func (g *Grammar) ruleString(r *Rule, first bool) string {
	var sb strings.Builder
	lhs := &g.symbols[r.Lhs]
	if first {
		fmt.Fprintf(&sb, "%-15s ::=", lhs.Name)
	} else {
		fmt.Fprintf(&sb, "%-15s  |", "")
	}
	if len(r.Rhs) == 0 {
		sb.WriteString(" ϵ")
	}
	for i, s := range r.Rhs {
		sb.WriteString(" ")
		sb.WriteString(g.symbols[s].paramName(r.RhsParams[i]))
	}
	if !r.Condition.IsTrue() {
		sb.WriteString(" %if " + r.Condition.String())
	}
	if first {
		sb.WriteString(lhs.Props.String())
	}
	return sb.String()
}

func (g *Grammar) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Grammar %s:\n", g.Name)
	for i := range g.symbols {
		s := &g.symbols[i]
		if s.GenGrammar != nil {
			fmt.Fprintf(&sb, "%-15s ==> %q\n", s.Name, s.GenGrammar.Grammar)
		}
	}
	for i := range g.symbols {
		s := &g.symbols[i]
		if len(s.Rules) == 0 {
			if s.Props.IsSpecial() {
				fmt.Fprintf(&sb, "%-15s ⇦ %s %s\n", s.Name, s.shortName(), s.Props)
			}
			continue
		}
		for j := range s.Rules {
			sb.WriteString(g.ruleString(&s.Rules[j], j == 0))
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(&sb, "stats: %s\n", g.Stats())
	return sb.String()
}
