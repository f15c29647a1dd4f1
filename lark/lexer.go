package lark

import (
	"sort"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

var larkLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Newline", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Directive", Pattern: `%[a-z_]+`},
	{Name: "Arrow", Pattern: `->`},
	{Name: "DotDot", Pattern: `\.\.`},
	{Name: "String", Pattern: `"(\\.|[^"\\\n])*"i?`},
	{Name: "Regexp", Pattern: `/(\\.|[^/\\\n])+/[imsux]*`},
	{Name: "TokenRange", Pattern: `<\[[^\]\n]*\]>`},
	{Name: "Special", Pattern: `<[^<>\[\]\s]+>`},
	{Name: "Number", Pattern: `[0-9]+(\.[0-9]+)?`},
	{Name: "Name", Pattern: `[A-Za-z_][A-Za-z_0-9]*`},
	{Name: "Punct", Pattern: `[:|()\[\]{}?*+~,=.!]`},
})

type tokKind int

const (
	tokEOF tokKind = iota
	tokNewline
	tokDirective
	tokArrow
	tokDotDot
	tokString
	tokRegexp
	tokTokenRange
	tokSpecial
	tokNumber
	tokName
	tokPunct
	// tokBlock is the raw text between the braces after %json, %lark and
	// %llguidance
	tokBlock
)

var kindNames = [...]string{"end of grammar", "newline", "directive", "arrow", "'..'", "string",
	"regexp", "token range", "special token", "number", "name", "punctuation", "block"}

func (k tokKind) String() string {
	return kindNames[k]
}

var tokenKinds = func() map[lexer.TokenType]tokKind {
	sym := larkLexer.Symbols()
	return map[lexer.TokenType]tokKind{
		sym["Newline"]:    tokNewline,
		sym["Directive"]:  tokDirective,
		sym["Arrow"]:      tokArrow,
		sym["DotDot"]:     tokDotDot,
		sym["String"]:     tokString,
		sym["Regexp"]:     tokRegexp,
		sym["TokenRange"]: tokTokenRange,
		sym["Special"]:    tokSpecial,
		sym["Number"]:     tokNumber,
		sym["Name"]:       tokName,
		sym["Punct"]:      tokPunct,
	}
}()

// blockDirectives are followed by a brace-delimited block in another
// language.
var blockDirectives = map[string]bool{
	"%json":       true,
	"%lark":       true,
	"%llguidance": true,
}

// Pos is a 1-based source position.
type Pos struct {
	Line, Col int
}

type token struct {
	kind   tokKind
	text   string
	offset int
	Pos
}

func (t *token) is(kind tokKind, text string) bool {
	return t.kind == kind && t.text == text
}

type source struct {
	text       string
	lineStarts []int
}

func newSource(text string) *source {
	s := &source{text: text, lineStarts: []int{0}}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			s.lineStarts = append(s.lineStarts, i+1)
		}
	}
	return s
}

func (s *source) pos(offset int) Pos {
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > offset }) - 1
	start := s.lineStarts[line]
	return Pos{Line: line + 1, Col: utf8.RuneCountInString(s.text[start:offset]) + 1}
}

type positioned interface {
	Position() lexer.Position
}

// tokenize splits text into tokens. The participle lexer cannot know where
// a block in a foreign language ends, so after a block directive the block
// is cut out by brace matching and lexing resumes after it.
func tokenize(text string) ([]token, error) {
	src := newSource(text)
	var toks []token
	base := 0
	for {
		lex, err := larkLexer.LexString("", text[base:])
		if err != nil {
			return nil, errorAt(src.pos(base), LexicalError, "%v", err)
		}
		resume := -1
		for resume < 0 {
			t, err := lex.Next()
			if err != nil {
				off := base
				if p, ok := err.(positioned); ok {
					off += p.Position().Offset
				}
				return nil, errorAt(src.pos(off), LexicalError, "invalid character %q", nextRune(text, off))
			}
			if t.EOF() {
				break
			}
			kind, ok := tokenKinds[t.Type]
			if !ok {
				continue
			}
			tok := token{kind: kind, text: t.Value, offset: base + t.Pos.Offset}
			tok.Pos = src.pos(tok.offset)
			toks = append(toks, tok)
			if kind == tokDirective && blockDirectives[t.Value] {
				block, end, err := extractBlock(src, tok.offset+len(t.Value), t.Value)
				if err != nil {
					return nil, err
				}
				toks = append(toks, block)
				resume = end
			}
		}
		if resume < 0 {
			break
		}
		base = resume
	}
	toks = append(toks, token{kind: tokEOF, offset: len(text), Pos: src.pos(len(text))})
	return toks, nil
}

func nextRune(text string, off int) string {
	if off >= len(text) {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(text[off:])
	return string(r)
}

// extractBlock finds the balanced {...} block starting at or after from.
// Braces inside strings, regexps and comments do not count.
func extractBlock(src *source, from int, directive string) (token, int, error) {
	text := src.text
	i := from
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\r' || text[i] == '\n') {
		i++
	}
	if i >= len(text) || text[i] != '{' {
		return token{}, 0, errorAt(src.pos(i), UnexpectedTokenError, "expecting '{' after %s", directive)
	}
	open := i
	depth := 0
	for ; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				tok := token{kind: tokBlock, text: text[open+1 : i], offset: open, Pos: src.pos(open)}
				return tok, i + 1, nil
			}
		case '"':
			i = skipQuoted(text, i, '"')
		case '/':
			if i+1 < len(text) && text[i+1] == '/' {
				for i < len(text) && text[i] != '\n' {
					i++
				}
			} else {
				i = skipQuoted(text, i, '/')
			}
		}
	}
	return token{}, 0, errorAt(src.pos(open), UnexpectedEOFError, "unterminated block")
}

// skipQuoted returns the index of the quote closing the one at i, or the
// end of the line.
func skipQuoted(text string, i int, quote byte) int {
	for i++; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote, '\n':
			return i
		}
	}
	return i
}
