package grammar

import (
	"strconv"

	"github.com/dlclark/derivre/regexvec"
	"github.com/dlclark/derivre/syntax"
	"github.com/dlclark/derivre/toktrie"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

// repeatBlock is the block size of bounded repetition: x{n} is built from
// x{K}, (x{K}){n/K} and a remainder, keeping the symbol count logarithmic.
const repeatBlock = 4

// NodeRef is a symbol together with the parameter passed to it.
type NodeRef struct {
	Sym   SymIdx
	Param ParamExpr
}

func (n NodeRef) needsParam() bool {
	return n.Param.NeedsParam()
}

type repeatKey struct {
	elt NodeRef
	n   int
}

// Builder assembles a Grammar and the lexemes its terminals use. Errors
// are sticky: after the first one every primitive returns a dummy node and
// Finalize reports the error.
type Builder struct {
	Grammar *Grammar
	Spec    *regexvec.LexerSpec
	Limits  Limits
	// Trie resolves special token names; it may be nil.
	Trie *toktrie.TokTrie

	err error

	empty        NodeRef
	strings      map[string]NodeRef
	lexemes      map[regexvec.LexemeIdx]NodeRef
	repeatExacts map[repeatKey]NodeRef
	atMosts      map[repeatKey]NodeRef
	placeholders map[SymIdx]bool
	ignore       map[int]regexvec.LexemeSet
	startCost    uint64
}

func NewBuilder(name string, limits Limits) *Builder {
	exprs := syntax.NewExprSet()
	b := &Builder{
		Grammar: NewGrammar(name),
		Spec:    regexvec.NewLexerSpec(exprs),
		Limits:  limits,
		ignore:  make(map[int]regexvec.LexemeSet),
	}
	b.startCost = exprs.Cost()
	if limits.MaxFuel > 0 {
		exprs.SetCostLimit(b.startCost + limits.MaxFuel)
	}
	b.Reset()
	return b
}

// Exprs is the arena lexemes are built in.
func (b *Builder) Exprs() *syntax.ExprSet {
	return b.Spec.Exprs
}

// Reset drops the memo tables. Call it before building a grammar of a new
// lexeme class, since identical elements mean different things there.
func (b *Builder) Reset() {
	b.empty = NodeRef{Sym: NoSym}
	b.strings = make(map[string]NodeRef)
	b.lexemes = make(map[regexvec.LexemeIdx]NodeRef)
	b.repeatExacts = make(map[repeatKey]NodeRef)
	b.atMosts = make(map[repeatKey]NodeRef)
	if b.placeholders == nil {
		b.placeholders = make(map[SymIdx]bool)
	}
}

// Err returns the first error any primitive ran into.
func (b *Builder) Err() error {
	return b.err
}

// Fail records err unless an earlier error exists.
func (b *Builder) Fail(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

func (b *Builder) dummy() NodeRef {
	return b.Empty()
}

func (b *Builder) props() SymbolProps {
	return SymbolProps{GrammarID: b.Spec.CurrentClass}
}

func (b *Builder) newSymbol(name string, parametric bool) SymIdx {
	p := b.props()
	p.Parametric = parametric
	sym := b.Grammar.FreshSymbol(name, p)
	if limit := b.Limits.MaxGrammarSize; limit > 0 && b.Grammar.NumSymbols() > limit && b.err == nil {
		b.Fail(errors.Wrapf(ErrGrammarTooLarge, "more than %d symbols", limit))
	}
	return sym
}

func (b *Builder) ref(sym SymIdx) NodeRef {
	return NodeRef{Sym: sym, Param: b.Grammar.symbols[sym].Props.NeutralParam()}
}

func (b *Builder) addRule(lhs SymIdx, cond ParamCond, elts []NodeRef) {
	rhs := make([]SymIdx, len(elts))
	params := make([]ParamExpr, len(elts))
	for i, e := range elts {
		rhs[i], params[i] = e.Sym, e.Param
	}
	b.Fail(b.Grammar.AddRuleExt(lhs, cond, rhs, params))
}

func anyNeedsParam(elts []NodeRef) bool {
	for _, e := range elts {
		if e.needsParam() {
			return true
		}
	}
	return false
}

// Empty matches the empty string.
func (b *Builder) Empty() NodeRef {
	if b.empty.Sym == NoSym {
		sym := b.newSymbol("empty", false)
		b.addRule(sym, ParamCond{}, nil)
		b.empty = b.ref(sym)
	}
	return b.empty
}

// Lexeme wraps lexeme lex as a terminal.
func (b *Builder) Lexeme(lex regexvec.LexemeIdx) NodeRef {
	if r, ok := b.lexemes[lex]; ok {
		return r
	}
	sym := b.newSymbol(b.Spec.Lexeme(lex).Name, false)
	b.Fail(b.Grammar.MakeTerminal(sym, lex, b.Spec))
	r := b.ref(sym)
	b.lexemes[lex] = r
	return r
}

// Regex adds a greedy lexeme and returns its terminal.
func (b *Builder) Regex(name string, rx syntax.ExprRef) NodeRef {
	if err := b.Exprs().CheckCost(); err != nil {
		b.Fail(err)
		return b.dummy()
	}
	return b.Lexeme(b.Spec.AddGreedy(name, rx, false))
}

// String matches s literally.
func (b *Builder) String(s string) NodeRef {
	if s == "" {
		return b.Empty()
	}
	if r, ok := b.strings[s]; ok {
		return r
	}
	r := b.Regex(strconv.Quote(s), b.Exprs().MkString(s))
	b.strings[s] = r
	return r
}

// SpecialToken matches the special token with the given name.
func (b *Builder) SpecialToken(name string) NodeRef {
	if b.Trie == nil {
		b.Fail(errors.Wrapf(ErrInvalidGrammar, "special token %s used without a tokenizer", name))
		return b.dummy()
	}
	tok, ok := b.Trie.SpecialTokenID(name)
	if !ok {
		b.Fail(errors.Wrapf(ErrInvalidGrammar, "unknown special token %s", name))
		return b.dummy()
	}
	return b.Lexeme(b.Spec.AddSpecialToken(name, uint32(tok)))
}

// TokenRanges matches one token with an id in any of the inclusive ranges.
func (b *Builder) TokenRanges(ranges [][2]uint32) NodeRef {
	name := "<["
	for i, r := range ranges {
		if r[0] > r[1] {
			b.Fail(errors.Wrapf(ErrInvalidGrammar, "invalid token range %d-%d", r[0], r[1]))
			return b.dummy()
		}
		if b.Trie != nil && int(r[1]) >= b.Trie.VocabSize() {
			b.Fail(errors.Wrapf(ErrInvalidGrammar, "token id %d past vocabulary size %d", r[1], b.Trie.VocabSize()))
			return b.dummy()
		}
		if i > 0 {
			name += ","
		}
		name += strconv.FormatUint(uint64(r[0]), 10)
		if r[1] != r[0] {
			name += "-" + strconv.FormatUint(uint64(r[1]), 10)
		}
	}
	return b.Lexeme(b.Spec.AddTokenRanges(name+"]>", ranges))
}

// GenOptions describe a lexeme generated until a stop condition.
type GenOptions struct {
	Name string
	// Body is what may be generated; InvalidRef means any bytes.
	Body syntax.ExprRef
	// Stop ends the lexeme and is hidden from its text.
	Stop syntax.ExprRef
	// Suffix ends the lexeme and stays part of it.
	Suffix syntax.ExprRef
	// Lazy ends the lexeme at the first possible point.
	Lazy bool
	// StopCaptureName captures the stop text.
	StopCaptureName string
}

// Gen builds a lexeme from opts.
func (b *Builder) Gen(opts GenOptions) NodeRef {
	s := b.Exprs()
	body := opts.Body
	if body == syntax.InvalidRef {
		body = syntax.AnyByteString
	}
	rx := body
	lazy := opts.Lazy
	if opts.Stop != syntax.InvalidRef && opts.Stop != syntax.EmptyString {
		rx = s.MkConcat(body, s.MkLookahead(opts.Stop, 0))
		lazy = true
	}
	if opts.Suffix != syntax.InvalidRef && opts.Suffix != syntax.EmptyString {
		rx = s.MkConcat(rx, opts.Suffix)
		lazy = true
	}
	if err := s.CheckCost(); err != nil {
		b.Fail(err)
		return b.dummy()
	}
	name := opts.Name
	if name == "" {
		name = "gen"
	}
	var lex regexvec.LexemeIdx
	if lazy {
		lex = b.Spec.AddLazy(name, rx)
	} else {
		lex = b.Spec.AddGreedy(name, rx, false)
	}
	r := b.Lexeme(lex)
	if opts.StopCaptureName != "" {
		b.Grammar.symbols[r.Sym].Props.StopCaptureName = opts.StopCaptureName
	}
	return r
}

// Select matches any one of options.
func (b *Builder) Select(options ...NodeRef) NodeRef {
	if len(options) == 1 {
		return options[0]
	}
	sym := b.newSymbol("select", anyNeedsParam(options))
	for _, o := range options {
		b.addRule(sym, ParamCond{}, []NodeRef{o})
	}
	return b.ref(sym)
}

// Join matches elts in sequence.
func (b *Builder) Join(elts ...NodeRef) NodeRef {
	return b.JoinProps(SymbolProps{}, elts...)
}

// JoinProps is Join with capture, temperature and max-token annotations on
// the new symbol.
func (b *Builder) JoinProps(props SymbolProps, elts ...NodeRef) NodeRef {
	if len(elts) == 0 && !props.IsSpecial() {
		return b.Empty()
	}
	if len(elts) == 1 && !props.IsSpecial() && props.Temperature == 0 {
		return elts[0]
	}
	sym := b.newSymbol("join", anyNeedsParam(elts))
	p := &b.Grammar.symbols[sym].Props
	p.CaptureName = props.CaptureName
	p.StopCaptureName = props.StopCaptureName
	p.MaxTokens = props.MaxTokens
	p.Temperature = props.Temperature
	b.addRule(sym, ParamCond{}, elts)
	return b.ref(sym)
}

// Optional matches elt or nothing.
func (b *Builder) Optional(elt NodeRef) NodeRef {
	sym := b.newSymbol("optional", elt.needsParam())
	b.addRule(sym, ParamCond{}, nil)
	b.addRule(sym, ParamCond{}, []NodeRef{elt})
	return b.ref(sym)
}

// OneOrMore matches elt at least once.
func (b *Builder) OneOrMore(elt NodeRef) NodeRef {
	sym := b.newSymbol("one_or_more", elt.needsParam())
	self := b.ref(sym)
	b.addRule(sym, ParamCond{}, []NodeRef{elt})
	b.addRule(sym, ParamCond{}, []NodeRef{self, elt})
	return self
}

// ZeroOrMore matches elt any number of times.
func (b *Builder) ZeroOrMore(elt NodeRef) NodeRef {
	sym := b.newSymbol("zero_or_more", elt.needsParam())
	self := b.ref(sym)
	b.addRule(sym, ParamCond{}, nil)
	b.addRule(sym, ParamCond{}, []NodeRef{self, elt})
	return self
}

// Repeat matches between min and max copies of elt; max < 0 is unbounded.
func (b *Builder) Repeat(elt NodeRef, min, max int) NodeRef {
	if min < 0 || (max >= 0 && max < min) {
		b.Fail(errors.Wrapf(ErrInvalidGrammar, "invalid repeat {%d,%d}", min, max))
		return b.dummy()
	}
	if max < 0 {
		switch min {
		case 0:
			return b.ZeroOrMore(elt)
		case 1:
			return b.OneOrMore(elt)
		}
		return b.Join(b.repeatExact(elt, min-1), b.OneOrMore(elt))
	}
	if min == max {
		return b.repeatExact(elt, min)
	}
	return b.Join(b.repeatExact(elt, min), b.atMost(elt, max-min))
}

// simpleRepeat joins n copies of elt.
func (b *Builder) simpleRepeat(elt NodeRef, n int) NodeRef {
	elts := make([]NodeRef, n)
	for i := range elts {
		elts[i] = elt
	}
	return b.Join(elts...)
}

// repeatExact matches exactly n copies of elt.
func (b *Builder) repeatExact(elt NodeRef, n int) NodeRef {
	key := repeatKey{elt, n}
	if r, ok := b.repeatExacts[key]; ok {
		return r
	}
	var r NodeRef
	if n < 2*repeatBlock {
		r = b.simpleRepeat(elt, n)
	} else {
		block := b.repeatExact(elt, repeatBlock)
		r = b.repeatExact(block, n/repeatBlock)
		if rem := n % repeatBlock; rem > 0 {
			r = b.Join(r, b.simpleRepeat(elt, rem))
		}
	}
	b.repeatExacts[key] = r
	return r
}

// atMost matches between 0 and n copies of elt. A count m is split as
// K*q + r with r < K; the branches for q below and at n/K do not overlap.
func (b *Builder) atMost(elt NodeRef, n int) NodeRef {
	key := repeatKey{elt, n}
	if r, ok := b.atMosts[key]; ok {
		return r
	}
	var r NodeRef
	switch {
	case n == 0:
		r = b.Empty()
	case n == 1:
		r = b.Optional(elt)
	case n < 3*repeatBlock:
		options := make([]NodeRef, 0, n+1)
		for k := 0; k <= n; k++ {
			options = append(options, b.simpleRepeat(elt, k))
		}
		r = b.Select(options...)
	default:
		block := b.repeatExact(elt, repeatBlock)
		q, rem := n/repeatBlock, n%repeatBlock
		below := b.Join(b.atMost(block, q-1), b.atMost(elt, repeatBlock-1))
		at := b.Join(b.repeatExact(block, q), b.atMost(elt, rem))
		r = b.Select(below, at)
	}
	b.atMosts[key] = r
	return r
}

// Placeholder returns a symbol to be defined later with SetPlaceholder.
func (b *Builder) Placeholder(name string) NodeRef {
	sym := b.newSymbol(name, false)
	b.placeholders[sym] = true
	return b.ref(sym)
}

// SetPlaceholder defines placeholder p as node.
func (b *Builder) SetPlaceholder(p NodeRef, node NodeRef) {
	if !b.placeholders[p.Sym] {
		b.Fail(errors.Wrapf(ErrInvalidGrammar, "symbol %s is not a placeholder", b.Grammar.SymName(p.Sym)))
		return
	}
	delete(b.placeholders, p.Sym)
	b.addRule(p.Sym, ParamCond{}, []NodeRef{node})
}

// Param passes expr to the parametric symbol of elt.
func (b *Builder) Param(elt NodeRef, expr ParamExpr) NodeRef {
	if !b.Grammar.symbols[elt.Sym].Props.Parametric {
		b.Fail(errors.Wrapf(ErrInvalidGrammar, "symbol %s is not parametric", b.Grammar.SymName(elt.Sym)))
		return elt
	}
	return NodeRef{Sym: elt.Sym, Param: expr}
}

// Guard returns a parametric symbol matching elt only where cond holds.
func (b *Builder) Guard(cond ParamCond, elt NodeRef) NodeRef {
	sym := b.newSymbol("guard", true)
	b.addRule(sym, cond, []NodeRef{elt})
	return b.ref(sym)
}

// GenGrammar references the grammar named id; it is linked by
// Grammar.ResolveGrammarRefs.
func (b *Builder) GenGrammar(id string, temperature float32) NodeRef {
	sym := b.newSymbol("gen_grammar:"+id, false)
	b.Fail(b.Grammar.MakeGenGrammar(sym, GenGrammarOptions{Grammar: id, Temperature: temperature}))
	return b.ref(sym)
}

// Ignore makes lex skippable before every terminal of the current class.
func (b *Builder) Ignore(lex regexvec.LexemeIdx) {
	set := b.ignore[b.Spec.CurrentClass]
	set.Add(lex)
	b.ignore[b.Spec.CurrentClass] = set
}

// SetStart wraps node in the start symbol of the current grammar class.
func (b *Builder) SetStart(node NodeRef) SymIdx {
	if node.needsParam() {
		b.Fail(errors.Wrapf(ErrInvalidGrammar, "start symbol %s needs a parameter", b.Grammar.SymName(node.Sym)))
	}
	p := b.props()
	p.IsStart = b.Grammar.Start() == NoSym
	sym := b.Grammar.FreshSymbol("start", p)
	b.addRule(sym, ParamCond{}, []NodeRef{node})
	return sym
}

// Finalize checks the grammar, optimizes and compiles it.
func (b *Builder) Finalize(starts map[string]SymIdx) (*CGrammar, error) {
	if b.err != nil {
		return nil, b.err
	}
	for sym := range b.placeholders {
		return nil, errors.Wrapf(ErrInvalidGrammar, "symbol %s is never defined", b.Grammar.SymName(sym))
	}
	if b.Grammar.Start() == NoSym {
		return nil, errors.Wrap(ErrInvalidGrammar, "no start symbol")
	}
	if err := b.Grammar.ResolveGrammarRefs(starts); err != nil {
		return nil, err
	}
	if err := b.Exprs().CheckCost(); err != nil {
		return nil, err
	}
	if limit := b.Limits.MaxGrammarSize; limit > 0 && b.Grammar.Size() > limit {
		return nil, errors.Wrapf(ErrGrammarTooLarge, "size %d, limit %d", b.Grammar.Size(), limit)
	}
	klog.V(2).Infof("grammar %s: %s", b.Grammar.Name, b.Grammar.Stats())
	g := Optimize(b.Grammar)
	klog.V(2).Infof("grammar %s optimized: %s", g.Name, g.Stats())

	// lexing may legitimately cost more than building the lexemes did
	b.Exprs().SetCostLimit(0)
	return Compile(g, b.Spec, b.ignore, b.Limits)
}
