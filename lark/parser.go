package lark

import (
	"strconv"
	"strings"
)

// DefaultMaxDepth bounds the nesting of groups in a grammar source.
const DefaultMaxDepth = 100

type parser struct {
	toks []token
	pos  int
	// group counts the open parentheses and brackets; newlines are
	// insignificant inside them
	group    int
	depth    int
	maxDepth int
}

// Parse parses a grammar source. maxDepth limits the nesting of groups; 0
// means DefaultMaxDepth.
func Parse(text string, maxDepth int) (*File, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	p := &parser{toks: toks, maxDepth: maxDepth}
	return p.parseFile()
}

func (p *parser) peek() *token {
	for p.group > 0 && p.toks[p.pos].kind == tokNewline {
		p.pos++
	}
	return &p.toks[p.pos]
}

func (p *parser) next() *token {
	t := p.peek()
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) skipNewlines() {
	for p.toks[p.pos].kind == tokNewline {
		p.pos++
	}
}

func (p *parser) isPunct(text string) bool {
	return p.peek().is(tokPunct, text)
}

func (p *parser) acceptPunct(text string) bool {
	if p.isPunct(text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectPunct(text string) error {
	if !p.acceptPunct(text) {
		return unexpectedError(p.peek(), "'"+text+"'")
	}
	return nil
}

func (p *parser) expect(kind tokKind) (*token, error) {
	t := p.peek()
	if t.kind != kind {
		return nil, unexpectedError(t, kind.String())
	}
	p.pos++
	return t, nil
}

// endOfItem consumes the newline ending a definition or statement.
func (p *parser) endOfItem() error {
	t := p.peek()
	switch t.kind {
	case tokNewline:
		p.skipNewlines()
		return nil
	case tokEOF:
		return nil
	}
	return unexpectedError(t, "end of line")
}

func (p *parser) parseFile() (*File, error) {
	f := &File{}
	for {
		p.skipNewlines()
		t := p.peek()
		if t.kind == tokEOF {
			return f, nil
		}
		var item Item
		var err error
		if t.kind == tokDirective {
			item, err = p.parseStatement()
		} else {
			item, err = p.parseDefinition()
		}
		if err != nil {
			return nil, err
		}
		f.Items = append(f.Items, item)
		if err := p.endOfItem(); err != nil {
			return nil, err
		}
	}
}

func isTokenName(name string) bool {
	name = strings.TrimLeft(name, "_")
	return name != "" && strings.ToUpper(name) == name && name[0] >= 'A' && name[0] <= 'Z'
}

func (p *parser) parseDefinition() (Item, error) {
	first := p.peek()
	inline := p.acceptPunct("?")
	keep := !inline && p.acceptPunct("!")
	nameTok, err := p.expect(tokName)
	if err != nil {
		return nil, err
	}
	name := nameTok.text
	priority := 0
	if p.acceptPunct(".") {
		n, err := p.expect(tokNumber)
		if err != nil {
			return nil, err
		}
		if priority, err = strconv.Atoi(n.text); err != nil {
			return nil, errorAt(n.Pos, UnexpectedTokenError, "bad priority %s", n.text)
		}
	}
	var attrs []Attr
	if p.acceptPunct("[") {
		if attrs, err = p.parseAttrs(); err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	exps, err := p.parseExpansions()
	if err != nil {
		return nil, withContext(err, "definition of "+name)
	}
	if isTokenName(name) {
		if inline || keep {
			return nil, errorAt(first.Pos, UnexpectedTokenError, "token %s cannot be marked %s", name, first.text)
		}
		return &TokenDef{Pos: nameTok.Pos, Name: name, Priority: priority, Attrs: attrs, Expansions: exps}, nil
	}
	return &Rule{Pos: nameTok.Pos, Name: name, Inline: inline, Keep: keep, Priority: priority,
		Attrs: attrs, Expansions: exps}, nil
}

func (p *parser) parseAttrs() ([]Attr, error) {
	p.group++
	defer func() { p.group-- }()
	var attrs []Attr
	for {
		key, err := p.expect(tokName)
		if err != nil {
			return nil, err
		}
		a := Attr{Pos: key.Pos, Key: key.text}
		if p.acceptPunct("=") {
			if a.Value, err = p.parseValue(); err != nil {
				return nil, err
			}
		}
		attrs = append(attrs, a)
		if p.acceptPunct("]") {
			return attrs, nil
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseStatement() (Item, error) {
	d := p.next()
	st := &Statement{Pos: d.Pos}
	switch d.text {
	case "%ignore":
		st.Kind = StmtIgnore
		exps, err := p.parseExpansions()
		if err != nil {
			return nil, withContext(err, "%ignore")
		}
		st.Ignore = exps
	case "%import":
		st.Kind = StmtImport
		if err := p.parseImport(st); err != nil {
			return nil, withContext(err, "%import")
		}
	case "%llguidance":
		st.Kind = StmtLLGuidance
		b, err := p.expect(tokBlock)
		if err != nil {
			return nil, err
		}
		st.Block = b.text
	default:
		return nil, errorAt(d.Pos, UnexpectedTokenError, "unknown directive %s", d.text)
	}
	return st, nil
}

// parseImport handles %import a.b.NAME [-> ALIAS] and %import a.b (X, Y).
func (p *parser) parseImport(st *Statement) error {
	var path []string
	for {
		n, err := p.expect(tokName)
		if err != nil {
			return err
		}
		path = append(path, n.text)
		if !p.acceptPunct(".") {
			break
		}
	}
	if p.acceptPunct("(") {
		st.Module = strings.Join(path, ".")
		p.group++
		defer func() { p.group-- }()
		for {
			n, err := p.expect(tokName)
			if err != nil {
				return err
			}
			st.Names = append(st.Names, n.text)
			st.Aliases = append(st.Aliases, "")
			if p.acceptPunct(")") {
				return nil
			}
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
	}
	if len(path) < 2 {
		return unexpectedError(p.peek(), "'.'")
	}
	st.Module = strings.Join(path[:len(path)-1], ".")
	st.Names = []string{path[len(path)-1]}
	st.Aliases = []string{""}
	if p.peek().kind == tokArrow {
		p.pos++
		n, err := p.expect(tokName)
		if err != nil {
			return err
		}
		st.Aliases[0] = n.text
	}
	return nil
}

func (p *parser) parseExpansions() (*Expansions, error) {
	start := p.peek()
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		return nil, nestingError(start.Pos, p.maxDepth)
	}
	exps := &Expansions{Pos: start.Pos}
	for {
		alias, err := p.parseAlias()
		if err != nil {
			return nil, err
		}
		exps.Alts = append(exps.Alts, alias)
		if p.acceptPunct("|") {
			continue
		}
		// an alternative may continue on the next line
		if p.group == 0 && p.toks[p.pos].kind == tokNewline {
			save := p.pos
			p.skipNewlines()
			if p.acceptPunct("|") {
				continue
			}
			p.pos = save
		}
		return exps, nil
	}
}

func (p *parser) parseAlias() (*Alias, error) {
	a := &Alias{Pos: p.peek().Pos}
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF || t.kind == tokNewline:
			return a, nil
		case t.kind == tokPunct && (t.text == "|" || t.text == ")" || t.text == "]"):
			return a, nil
		case t.kind == tokArrow:
			p.pos++
			n, err := p.expect(tokName)
			if err != nil {
				return nil, err
			}
			a.Name = n.text
			return a, nil
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		a.Seq = append(a.Seq, x)
	}
}

func (p *parser) parseExpr() (*Expr, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	x := &Expr{Pos: atom.Pos, Atom: atom}
	t := p.peek()
	if t.kind != tokPunct {
		return x, nil
	}
	switch t.text {
	case "?", "*", "+":
		p.pos++
		x.Op = t.text
	case "~":
		p.pos++
		x.Op = "~"
		if x.Min, err = p.parseInt(); err != nil {
			return nil, err
		}
		x.Max = x.Min
		if p.peek().kind == tokDotDot {
			p.pos++
			if x.Max, err = p.parseInt(); err != nil {
				return nil, err
			}
		}
		if x.Max < x.Min {
			return nil, errorAt(t.Pos, UnexpectedTokenError, "empty repetition range %d..%d", x.Min, x.Max)
		}
	}
	return x, nil
}

func (p *parser) parseInt() (int, error) {
	t, err := p.expect(tokNumber)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, errorAt(t.Pos, UnexpectedTokenError, "expecting an integer, got %s", t.text)
	}
	return n, nil
}

func (p *parser) parseAtom() (*Atom, error) {
	t := p.peek()
	if t.kind == tokPunct && (t.text == "(" || t.text == "[") {
		p.pos++
		closing := ")"
		if t.text == "[" {
			closing = "]"
		}
		p.group++
		exps, err := p.parseExpansions()
		if err == nil {
			err = p.expectPunct(closing)
		}
		p.group--
		if err != nil {
			return nil, err
		}
		if closing == "]" {
			return &Atom{Pos: t.Pos, Maybe: exps}, nil
		}
		return &Atom{Pos: t.Pos, Group: exps}, nil
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Atom{Pos: v.Pos, Value: v}, nil
}

func (p *parser) parseValue() (*Value, error) {
	t := p.next()
	v := &Value{Pos: t.Pos, Text: t.text}
	var err error
	switch t.kind {
	case tokName:
		v.Kind = ValueName
	case tokNumber:
		v.Kind = ValueNumber
	case tokString:
		v.Kind = ValueString
		if v.Text, v.Flags, err = unquote(t); err != nil {
			return nil, err
		}
		if p.peek().kind == tokDotDot {
			p.pos++
			end, err := p.expect(tokString)
			if err != nil {
				return nil, err
			}
			v.Kind = ValueRange
			if v.End, _, err = unquote(end); err != nil {
				return nil, err
			}
		}
	case tokRegexp:
		v.Kind = ValueRegexp
		i := strings.LastIndexByte(t.text, '/')
		v.Text, v.Flags = t.text[1:i], t.text[i+1:]
	case tokTokenRange:
		v.Kind = ValueTokenRange
		if v.Ranges, err = parseTokenRanges(t); err != nil {
			return nil, err
		}
	case tokSpecial:
		v.Kind = ValueSpecial
	case tokDirective:
		switch t.text {
		case "%json":
			v.Kind = ValueJSON
		case "%lark":
			v.Kind = ValueLark
		default:
			return nil, errorAt(t.Pos, UnexpectedTokenError, "directive %s cannot be used in an expression", t.text)
		}
		b, err := p.expect(tokBlock)
		if err != nil {
			return nil, err
		}
		v.Text = b.text
	default:
		return nil, unexpectedError(t, "an expression")
	}
	return v, nil
}

// unquote decodes a string literal and its "i" flag.
func unquote(t *token) (string, string, error) {
	text, flags := t.text, ""
	if strings.HasSuffix(text, "i") {
		text, flags = text[:len(text)-1], "i"
	}
	s, err := strconv.Unquote(text)
	if err != nil {
		return "", "", errorAt(t.Pos, LexicalError, "invalid string literal %s", t.text)
	}
	return s, flags, nil
}

// parseTokenRanges decodes <[1-5,9]>.
func parseTokenRanges(t *token) ([][2]uint32, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(t.text, "<["), "]>")
	var ranges [][2]uint32
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 32)
		if err != nil {
			return nil, errorAt(t.Pos, TokenRangeError, "invalid token id %q in %s", lo, t.text)
		}
		b := a
		if isRange {
			if b, err = strconv.ParseUint(strings.TrimSpace(hi), 10, 32); err != nil {
				return nil, errorAt(t.Pos, TokenRangeError, "invalid token id %q in %s", hi, t.text)
			}
		}
		if b < a {
			return nil, errorAt(t.Pos, TokenRangeError, "empty token range %s", part)
		}
		ranges = append(ranges, [2]uint32{uint32(a), uint32(b)})
	}
	return ranges, nil
}
