package lark

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dlclark/derivre/grammar"
	"github.com/dlclark/derivre/regexvec"
	"github.com/dlclark/derivre/syntax"
	"github.com/dlclark/derivre/toktrie"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"gopkg.in/yaml.v3"
)

// Options configure Compile.
type Options struct {
	Limits grammar.Limits
	// Trie resolves <special> tokens; without it they are an error.
	Trie *toktrie.TokTrie
}

// llguidanceOptions is the body of a %llguidance {...} statement.
type llguidanceOptions struct {
	AllowInvalidUTF8 bool `yaml:"allow_invalid_utf8"`
}

// nested is a %json or %lark block waiting to be compiled.
type nested struct {
	id   string
	kind ValueKind
	text string
	pos  Pos
}

// scope holds the definitions of one grammar source.
type scope struct {
	rules     map[string]*Rule
	tokens    map[string]*TokenDef
	ruleNodes map[string]grammar.NodeRef
	tokenRx   map[string]syntax.ExprRef
	tokenLex  map[string]grammar.NodeRef
	expanding map[string]bool
	options   llguidanceOptions
}

func newScope() *scope {
	return &scope{
		rules:     make(map[string]*Rule),
		tokens:    make(map[string]*TokenDef),
		ruleNodes: make(map[string]grammar.NodeRef),
		tokenRx:   make(map[string]syntax.ExprRef),
		tokenLex:  make(map[string]grammar.NodeRef),
		expanding: make(map[string]bool),
	}
}

type compiler struct {
	b         *grammar.Builder
	exprs     *syntax.ExprSet
	maxDepth  int
	pending   []nested
	numNested int
	nextClass int
}

// Compile compiles a grammar source. Nested %json and %lark blocks are
// compiled after the enclosing grammar, each with its own lexeme class.
func Compile(text string, opts Options) (*grammar.CGrammar, error) {
	if opts.Limits == (grammar.Limits{}) {
		opts.Limits = grammar.DefaultLimits()
	}
	b := grammar.NewBuilder("lark", opts.Limits)
	b.Trie = opts.Trie
	c := &compiler{b: b, exprs: b.Exprs(), maxDepth: opts.Limits.MaxNestingDepth, nextClass: 1}

	node, err := c.compileSource(text)
	if err != nil {
		return nil, err
	}
	b.SetStart(node)

	starts := make(map[string]grammar.SymIdx)
	for len(c.pending) > 0 {
		n := c.pending[0]
		c.pending = c.pending[1:]
		b.Reset()
		b.Spec.CurrentClass = c.nextClass
		c.nextClass++
		var node grammar.NodeRef
		if n.kind == ValueJSON {
			node, err = c.compileJSON(n.text, n.pos)
		} else {
			node, err = c.compileSource(n.text)
		}
		if err != nil {
			return nil, withContext(err, n.id)
		}
		starts[n.id] = b.SetStart(node)
	}

	cg, err := b.Finalize(starts)
	if err != nil {
		return nil, &Error{Code: classify(err, UndefinedError), Message: err.Error(), Err: err}
	}
	klog.V(2).Infof("lark: compiled %s; %d lexemes", cg.Stats(), b.Spec.Len())
	return cg, nil
}

// classify picks the error code of a builder error.
func classify(err error, fallback int) int {
	if errors.Is(err, syntax.ErrFuelExhausted) || errors.Is(err, grammar.ErrGrammarTooLarge) ||
		errors.Is(err, regexvec.ErrStateLimit) {
		return BudgetError
	}
	return fallback
}

func (c *compiler) builderError(pos Pos, code int) error {
	if err := c.b.Err(); err != nil {
		return wrapAt(pos, classify(err, code), err, "cannot build grammar")
	}
	return nil
}

// compileSource compiles a complete grammar and returns its start rule.
func (c *compiler) compileSource(text string) (grammar.NodeRef, error) {
	f, err := Parse(text, c.maxDepth)
	if err != nil {
		return grammar.NodeRef{}, err
	}
	sc := newScope()
	var ignores []*Statement
	for _, item := range f.Items {
		switch it := item.(type) {
		case *Rule:
			if _, dup := sc.rules[it.Name]; dup {
				return grammar.NodeRef{}, duplicateError(it.Pos, "rule", it.Name)
			}
			sc.rules[it.Name] = it
		case *TokenDef:
			if _, dup := sc.tokens[it.Name]; dup {
				return grammar.NodeRef{}, duplicateError(it.Pos, "token", it.Name)
			}
			sc.tokens[it.Name] = it
		case *Statement:
			switch it.Kind {
			case StmtIgnore:
				ignores = append(ignores, it)
			case StmtImport:
				if err := c.importNames(sc, it); err != nil {
					return grammar.NodeRef{}, err
				}
			case StmtLLGuidance:
				if err := decodeOptions(it, &sc.options); err != nil {
					return grammar.NodeRef{}, err
				}
			}
		}
	}

	for _, st := range ignores {
		rx, err := c.regularExpansions(sc, st.Ignore)
		if err != nil {
			return grammar.NodeRef{}, withContext(err, "%ignore")
		}
		c.b.Ignore(c.b.Spec.AddGreedy("%ignore", rx, false))
	}

	for _, item := range f.Items {
		if r, ok := item.(*Rule); ok {
			if _, err := c.ruleNode(sc, r.Name, r.Pos); err != nil {
				return grammar.NodeRef{}, err
			}
		}
	}
	if _, ok := sc.rules["start"]; !ok {
		return grammar.NodeRef{}, &Error{Code: UndefinedError, Message: "no start rule"}
	}
	return sc.ruleNodes["start"], nil
}

func (c *compiler) importNames(sc *scope, st *Statement) error {
	if st.Module != "common" {
		return errorAt(st.Pos, ImportError, "unknown module %s", st.Module)
	}
	for i, name := range st.Names {
		pattern, ok := commonTerminals[name]
		if !ok {
			return errorAt(st.Pos, ImportError, "%s.%s does not exist", st.Module, name)
		}
		as := name
		if st.Aliases[i] != "" {
			as = st.Aliases[i]
		}
		if _, dup := sc.tokens[as]; dup {
			return duplicateError(st.Pos, "token", as)
		}
		v := &Value{Pos: st.Pos, Kind: ValueRegexp, Text: pattern}
		sc.tokens[as] = &TokenDef{
			Pos:  st.Pos,
			Name: as,
			Expansions: &Expansions{Pos: st.Pos, Alts: []*Alias{{
				Pos: st.Pos,
				Seq: []*Expr{{Pos: st.Pos, Atom: &Atom{Pos: st.Pos, Value: v}}},
			}}},
		}
	}
	return nil
}

func decodeOptions(st *Statement, opts *llguidanceOptions) error {
	dec := yaml.NewDecoder(strings.NewReader("{" + st.Block + "}"))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil {
		return wrapAt(st.Pos, OptionsError, err, "invalid %llguidance options")
	}
	return nil
}

// ruleNode returns the node of a rule, compiling it on first use. The rule
// is bound to a placeholder before its body is compiled, so recursive
// references resolve to the placeholder.
func (c *compiler) ruleNode(sc *scope, name string, pos Pos) (grammar.NodeRef, error) {
	if n, ok := sc.ruleNodes[name]; ok {
		return n, nil
	}
	r, ok := sc.rules[name]
	if !ok {
		return grammar.NodeRef{}, undefinedError(pos, "rule", name)
	}
	ph := c.b.Placeholder(name)
	sc.ruleNodes[name] = ph
	node, err := c.compileRule(sc, r)
	if err != nil {
		return grammar.NodeRef{}, withContext(err, "rule "+name)
	}
	c.b.SetPlaceholder(ph, node)
	return ph, c.builderError(r.Pos, UndefinedError)
}

type ruleAttrs struct {
	stop, suffix    syntax.ExprRef
	lazy            bool
	maxTokens       int
	temperature     float32
	capture         string
	stopCapture     string
	hasGenAttribute bool
}

func (c *compiler) parseAttrs(sc *scope, r *Rule) (ruleAttrs, error) {
	a := ruleAttrs{stop: syntax.InvalidRef, suffix: syntax.InvalidRef}
	for _, attr := range r.Attrs {
		v := attr.Value
		var err error
		switch attr.Key {
		case "stop", "suffix":
			if v == nil {
				return a, errorAt(attr.Pos, AttributeError, "%s needs a value", attr.Key)
			}
			var rx syntax.ExprRef
			if rx, err = c.regularValue(sc, v); err != nil {
				return a, err
			}
			if attr.Key == "stop" {
				a.stop = rx
			} else {
				a.suffix = rx
			}
			a.hasGenAttribute = true
		case "lazy":
			a.lazy = true
			a.hasGenAttribute = true
		case "max_tokens":
			if v == nil || v.Kind != ValueNumber {
				return a, errorAt(attr.Pos, AttributeError, "max_tokens needs a number")
			}
			if a.maxTokens, err = strconv.Atoi(v.Text); err != nil || a.maxTokens <= 0 {
				return a, errorAt(attr.Pos, AttributeError, "invalid max_tokens %s", v.Text)
			}
		case "temperature":
			if v == nil || v.Kind != ValueNumber {
				return a, errorAt(attr.Pos, AttributeError, "temperature needs a number")
			}
			t, err := strconv.ParseFloat(v.Text, 32)
			if err != nil {
				return a, errorAt(attr.Pos, AttributeError, "invalid temperature %s", v.Text)
			}
			a.temperature = float32(t)
		case "capture":
			a.capture = r.Name
			if v != nil {
				a.capture = v.Text
			}
		case "stop_capture":
			if v == nil || v.Kind != ValueString {
				return a, errorAt(attr.Pos, AttributeError, "stop_capture needs a string")
			}
			a.stopCapture = v.Text
		default:
			return a, errorAt(attr.Pos, AttributeError, "unknown attribute %s", attr.Key)
		}
	}
	return a, nil
}

func (c *compiler) compileRule(sc *scope, r *Rule) (grammar.NodeRef, error) {
	a, err := c.parseAttrs(sc, r)
	if err != nil {
		return grammar.NodeRef{}, err
	}
	var node grammar.NodeRef
	if a.hasGenAttribute {
		body, err := c.regularExpansions(sc, r.Expansions)
		if err != nil {
			return grammar.NodeRef{}, err
		}
		node = c.b.Gen(grammar.GenOptions{
			Name:            r.Name,
			Body:            body,
			Stop:            a.stop,
			Suffix:          a.suffix,
			Lazy:            a.lazy,
			StopCaptureName: a.stopCapture,
		})
	} else {
		if a.stopCapture != "" {
			return grammar.NodeRef{}, errorAt(r.Pos, AttributeError, "stop_capture needs stop=")
		}
		if node, err = c.expansions(sc, r.Expansions); err != nil {
			return grammar.NodeRef{}, err
		}
	}
	if (a.maxTokens > 0 || a.temperature != 0) && !a.hasGenAttribute && !terminalShaped(sc, r.Expansions) {
		return grammar.NodeRef{}, errorAt(r.Pos, AttributeError,
			"max_tokens and temperature only apply to terminals and nested grammars")
	}
	props := grammar.SymbolProps{MaxTokens: a.maxTokens, Temperature: a.temperature, CaptureName: a.capture}
	if props.IsSpecial() || props.Temperature != 0 {
		node = c.b.JoinProps(props, node)
	}
	return node, c.builderError(r.Pos, AttributeError)
}

// terminalShaped reports whether exps is a single terminal or nested
// grammar.
func terminalShaped(sc *scope, exps *Expansions) bool {
	v := exps.singleValue()
	if v == nil {
		return false
	}
	switch v.Kind {
	case ValueString, ValueRegexp, ValueRange, ValueJSON, ValueLark:
		return true
	case ValueName:
		_, isToken := sc.tokens[v.Text]
		return isToken
	}
	return false
}

func (c *compiler) expansions(sc *scope, exps *Expansions) (grammar.NodeRef, error) {
	alts := make([]grammar.NodeRef, 0, len(exps.Alts))
	for _, alt := range exps.Alts {
		seq := make([]grammar.NodeRef, 0, len(alt.Seq))
		for _, x := range alt.Seq {
			n, err := c.expr(sc, x)
			if err != nil {
				return grammar.NodeRef{}, err
			}
			seq = append(seq, n)
		}
		alts = append(alts, c.b.Join(seq...))
	}
	return c.b.Select(alts...), nil
}

func (c *compiler) expr(sc *scope, x *Expr) (grammar.NodeRef, error) {
	var n grammar.NodeRef
	var err error
	switch a := x.Atom; {
	case a.Group != nil:
		n, err = c.expansions(sc, a.Group)
	case a.Maybe != nil:
		if n, err = c.expansions(sc, a.Maybe); err == nil {
			n = c.b.Optional(n)
		}
	default:
		n, err = c.value(sc, a.Value)
	}
	if err != nil {
		return grammar.NodeRef{}, err
	}
	switch x.Op {
	case "?":
		n = c.b.Optional(n)
	case "*":
		n = c.b.ZeroOrMore(n)
	case "+":
		n = c.b.OneOrMore(n)
	case "~":
		n = c.b.Repeat(n, x.Min, x.Max)
	}
	return n, c.builderError(x.Pos, UndefinedError)
}

func (c *compiler) value(sc *scope, v *Value) (grammar.NodeRef, error) {
	b := c.b
	var n grammar.NodeRef
	switch v.Kind {
	case ValueName:
		if isTokenName(v.Text) {
			return c.tokenNode(sc, v.Text, v.Pos)
		}
		return c.ruleNode(sc, v.Text, v.Pos)
	case ValueString:
		if v.Flags == "" {
			n = b.String(v.Text)
			break
		}
		fallthrough
	case ValueRegexp, ValueRange:
		rx, err := c.regularValue(sc, v)
		if err != nil {
			return grammar.NodeRef{}, err
		}
		n = b.Regex(valueName(v), rx)
	case ValueTokenRange:
		n = b.TokenRanges(v.Ranges)
	case ValueSpecial:
		n = b.SpecialToken(v.Text)
	case ValueJSON, ValueLark:
		kind := "json"
		if v.Kind == ValueLark {
			kind = "lark"
		}
		c.numNested++
		id := kind + "#" + strconv.Itoa(c.numNested)
		c.pending = append(c.pending, nested{id: id, kind: v.Kind, text: v.Text, pos: v.Pos})
		n = b.GenGrammar(id, 0)
	default:
		return grammar.NodeRef{}, errorAt(v.Pos, UnexpectedTokenError, "%s cannot be used here", v.Text)
	}
	if err := c.builderError(v.Pos, UndefinedError); err != nil {
		return grammar.NodeRef{}, err
	}
	return n, nil
}

func valueName(v *Value) string {
	switch v.Kind {
	case ValueRegexp:
		return "/" + v.Text + "/" + v.Flags
	case ValueRange:
		return strconv.Quote(v.Text) + ".." + strconv.Quote(v.End)
	}
	return strconv.Quote(v.Text) + v.Flags
}

// tokenNode returns the terminal of a named token.
func (c *compiler) tokenNode(sc *scope, name string, pos Pos) (grammar.NodeRef, error) {
	if n, ok := sc.tokenLex[name]; ok {
		return n, nil
	}
	rx, err := c.tokenExpr(sc, name, pos)
	if err != nil {
		return grammar.NodeRef{}, err
	}
	lazy := false
	for _, a := range sc.tokens[name].Attrs {
		if a.Key != "lazy" {
			return grammar.NodeRef{}, errorAt(a.Pos, AttributeError, "token %s cannot have attribute %s", name, a.Key)
		}
		lazy = true
	}
	var lex regexvec.LexemeIdx
	if lazy {
		lex = c.b.Spec.AddLazy(name, rx)
	} else {
		lex = c.b.Spec.AddGreedy(name, rx, false)
	}
	n := c.b.Lexeme(lex)
	sc.tokenLex[name] = n
	return n, c.builderError(pos, UndefinedError)
}

// tokenExpr returns the expression of a named token.
func (c *compiler) tokenExpr(sc *scope, name string, pos Pos) (syntax.ExprRef, error) {
	if rx, ok := sc.tokenRx[name]; ok {
		return rx, nil
	}
	def, ok := sc.tokens[name]
	if !ok {
		return syntax.InvalidRef, undefinedError(pos, "token", name)
	}
	if sc.expanding[name] {
		return syntax.InvalidRef, errorAt(pos, UndefinedError, "token %s refers to itself", name)
	}
	sc.expanding[name] = true
	rx, err := c.regularExpansions(sc, def.Expansions)
	delete(sc.expanding, name)
	if err != nil {
		return syntax.InvalidRef, withContext(err, "token "+name)
	}
	sc.tokenRx[name] = rx
	return rx, nil
}

// regularExpansions compiles exps to a single expression; exps may only
// use tokens, strings and regexps.
func (c *compiler) regularExpansions(sc *scope, exps *Expansions) (syntax.ExprRef, error) {
	s := c.exprs
	alts := make([]syntax.ExprRef, 0, len(exps.Alts))
	for _, alt := range exps.Alts {
		seq := make([]syntax.ExprRef, 0, len(alt.Seq))
		for _, x := range alt.Seq {
			var rx syntax.ExprRef
			var err error
			switch a := x.Atom; {
			case a.Group != nil:
				rx, err = c.regularExpansions(sc, a.Group)
			case a.Maybe != nil:
				if rx, err = c.regularExpansions(sc, a.Maybe); err == nil {
					rx = s.MkRepeat(rx, 0, 1)
				}
			default:
				rx, err = c.regularValue(sc, a.Value)
			}
			if err != nil {
				return syntax.InvalidRef, err
			}
			switch x.Op {
			case "?":
				rx = s.MkRepeat(rx, 0, 1)
			case "*":
				rx = s.MkRepeat(rx, 0, syntax.RepeatInf)
			case "+":
				rx = s.MkRepeat(rx, 1, syntax.RepeatInf)
			case "~":
				if uint64(x.Max) >= syntax.RepeatInf {
					return syntax.InvalidRef, errorAt(x.Pos, RegexpError, "repetition bound %d too large in a terminal", x.Max)
				}
				rx = s.MkRepeat(rx, uint32(x.Min), uint32(x.Max))
			}
			seq = append(seq, rx)
		}
		alts = append(alts, s.MkConcatAll(seq...))
	}
	rx := s.MkOr(alts...)
	if err := s.CheckCost(); err != nil {
		return syntax.InvalidRef, wrapAt(exps.Pos, BudgetError, err, "terminal too complex")
	}
	return rx, nil
}

func (c *compiler) regularValue(sc *scope, v *Value) (syntax.ExprRef, error) {
	s := c.exprs
	opts := syntax.ParseOptions{AllowInvalidUTF8: sc.options.AllowInvalidUTF8}
	switch v.Kind {
	case ValueName:
		if !isTokenName(v.Text) {
			return syntax.InvalidRef, errorAt(v.Pos, UndefinedError, "rule %s cannot be used in a terminal", v.Text)
		}
		return c.tokenExpr(sc, v.Text, v.Pos)
	case ValueString:
		if v.Flags == "" {
			return s.MkString(v.Text), nil
		}
		opts.CaseInsensitive = true
		return c.parseRegex(regexp.QuoteMeta(v.Text), opts, v.Pos)
	case ValueRegexp:
		for _, f := range v.Flags {
			switch f {
			case 'i':
				opts.CaseInsensitive = true
			case 's':
				opts.DotAll = true
			case 'u':
			default:
				return syntax.InvalidRef, errorAt(v.Pos, RegexpError, "unsupported regexp flag %c", f)
			}
		}
		return c.parseRegex(v.Text, opts, v.Pos)
	case ValueRange:
		lo, hi := []rune(v.Text), []rune(v.End)
		if len(lo) != 1 || len(hi) != 1 || lo[0] > hi[0] {
			return syntax.InvalidRef, errorAt(v.Pos, RegexpError, "invalid range %q..%q", v.Text, v.End)
		}
		return s.MkRuneRanges([][2]rune{{lo[0], hi[0]}}), nil
	}
	return syntax.InvalidRef, errorAt(v.Pos, UndefinedError, "%s cannot be used in a terminal", v.Text)
}

func (c *compiler) parseRegex(pattern string, opts syntax.ParseOptions, pos Pos) (syntax.ExprRef, error) {
	rx, err := c.exprs.ParseRegexWith(pattern, opts)
	if err != nil {
		return syntax.InvalidRef, wrapAt(pos, classify(err, RegexpError), err, "invalid regexp /%s/", pattern)
	}
	return rx, nil
}
