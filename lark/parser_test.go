package lark

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	toks, err := tokenize("start: \"a\"i | /b+/s // note\nx: %json { \"type\": \"a}\" } <[1-3]> <eos>")
	require.NoError(t, err)

	var kinds []tokKind
	var texts []string
	for _, tok := range toks {
		kinds = append(kinds, tok.kind)
		texts = append(texts, tok.text)
	}
	require.Equal(t, []tokKind{
		tokName, tokPunct, tokString, tokPunct, tokRegexp, tokNewline,
		tokName, tokPunct, tokDirective, tokBlock, tokTokenRange, tokSpecial, tokEOF,
	}, kinds)
	require.Equal(t, ` "type": "a}" `, texts[9])
	require.Equal(t, Pos{Line: 2, Col: 4}, toks[8].Pos)
	require.Equal(t, Pos{Line: 2, Col: 27}, toks[10].Pos)
}

func TestTokenizeErrors(t *testing.T) {
	scenarios := []struct {
		src  string
		code int
		pos  Pos
	}{
		{"start: \"a\"\n  $", LexicalError, Pos{2, 3}},
		{"start: %json \"a\"", UnexpectedTokenError, Pos{1, 14}},
		{"start: %lark { start: \"}\"", UnexpectedEOFError, Pos{1, 14}},
	}
	for _, sc := range scenarios {
		_, err := tokenize(sc.src)
		var le *Error
		require.True(t, errors.As(err, &le), sc.src)
		if want, got := sc.code, le.Code; want != got {
			t.Fatalf("%q: want code %d, got %d (%v)", sc.src, want, got, err)
		}
		require.Equal(t, sc.pos, Pos{le.Line, le.Col}, sc.src)
	}
}

func TestParse(t *testing.T) {
	src := `
// a comment
?expr.2[capture, max_tokens=5]: atom ("+" atom)* -> add
    | "x"~2..3
    | ["a".."z"]
NUM: /[0-9]+/
%import common.WS -> SPACE
%import common (INT, WORD)
%ignore SPACE
`
	f, err := Parse(src, 0)
	require.NoError(t, err)
	require.Len(t, f.Items, 5)

	r := f.Items[0].(*Rule)
	require.Equal(t, "expr", r.Name)
	require.True(t, r.Inline)
	require.Equal(t, 2, r.Priority)
	require.Equal(t, Pos{3, 2}, r.Pos)
	require.Len(t, r.Attrs, 2)
	require.Equal(t, "capture", r.Attrs[0].Key)
	require.Nil(t, r.Attrs[0].Value)
	require.Equal(t, "5", r.Attrs[1].Value.Text)

	alts := r.Expansions.Alts
	require.Len(t, alts, 3)
	require.Equal(t, "add", alts[0].Name)
	require.Len(t, alts[0].Seq, 2)
	require.Equal(t, "*", alts[0].Seq[1].Op)
	require.NotNil(t, alts[0].Seq[1].Atom.Group)

	rep := alts[1].Seq[0]
	require.Equal(t, "~", rep.Op)
	require.Equal(t, 2, rep.Min)
	require.Equal(t, 3, rep.Max)
	require.Equal(t, "x", rep.Atom.Value.Text)

	maybe := alts[2].Seq[0].Atom.Maybe
	require.NotNil(t, maybe)
	rng := maybe.singleValue()
	require.Equal(t, ValueRange, rng.Kind)
	require.Equal(t, "a", rng.Text)
	require.Equal(t, "z", rng.End)

	tok := f.Items[1].(*TokenDef)
	require.Equal(t, "NUM", tok.Name)
	require.Equal(t, "[0-9]+", tok.Expansions.singleValue().Text)

	imp := f.Items[2].(*Statement)
	require.Equal(t, StmtImport, imp.Kind)
	require.Equal(t, "common", imp.Module)
	require.Equal(t, []string{"WS"}, imp.Names)
	require.Equal(t, []string{"SPACE"}, imp.Aliases)

	imp = f.Items[3].(*Statement)
	require.Equal(t, []string{"INT", "WORD"}, imp.Names)

	ign := f.Items[4].(*Statement)
	require.Equal(t, StmtIgnore, ign.Kind)
	require.Equal(t, "SPACE", ign.Ignore.singleValue().Text)
}

func TestParseValues(t *testing.T) {
	f, err := Parse(`start: "a\n"i /x\/y/is <[1-3, 7]> <|end|> %lark { start: "}" }`, 0)
	require.NoError(t, err)
	seq := f.Items[0].(*Rule).Expansions.Alts[0].Seq
	require.Len(t, seq, 5)

	v := seq[0].Atom.Value
	require.Equal(t, ValueString, v.Kind)
	require.Equal(t, "a\n", v.Text)
	require.Equal(t, "i", v.Flags)

	v = seq[1].Atom.Value
	require.Equal(t, ValueRegexp, v.Kind)
	require.Equal(t, `x\/y`, v.Text)
	require.Equal(t, "is", v.Flags)

	v = seq[2].Atom.Value
	require.Equal(t, ValueTokenRange, v.Kind)
	require.Equal(t, [][2]uint32{{1, 3}, {7, 7}}, v.Ranges)

	v = seq[3].Atom.Value
	require.Equal(t, ValueSpecial, v.Kind)
	require.Equal(t, "<|end|>", v.Text)

	v = seq[4].Atom.Value
	require.Equal(t, ValueLark, v.Kind)
	require.Equal(t, ` start: "}" `, v.Text)
}

func TestParseErrors(t *testing.T) {
	scenarios := []struct {
		src  string
		code int
		pos  Pos
	}{
		{"start: (\"a\"", UnexpectedEOFError, Pos{1, 12}},
		{"start: \"a\"\nfoo \"b\"", UnexpectedTokenError, Pos{2, 5}},
		{"start: \"a\" ~ x", UnexpectedTokenError, Pos{1, 14}},
		{"start: \"a\"~3..2", UnexpectedTokenError, Pos{1, 11}},
		{"start: <[5-2]>", TokenRangeError, Pos{1, 8}},
		{"%frobnicate x", UnexpectedTokenError, Pos{1, 1}},
		{"%import common", UnexpectedEOFError, Pos{1, 15}},
		{"?FOO: \"a\"", UnexpectedTokenError, Pos{1, 1}},
	}
	for _, sc := range scenarios {
		_, err := Parse(sc.src, 0)
		var le *Error
		require.True(t, errors.As(err, &le), sc.src)
		if want, got := sc.code, le.Code; want != got {
			t.Fatalf("%q: want code %d, got %d (%v)", sc.src, want, got, err)
		}
		require.Equal(t, sc.pos, Pos{le.Line, le.Col}, sc.src)
	}
}

func TestNestingTooDeep(t *testing.T) {
	src := "start: " + strings.Repeat("(", 50) + `"a"` + strings.Repeat(")", 50)
	_, err := Parse(src, 100)
	require.NoError(t, err)

	_, err = Parse(src, 20)
	require.ErrorIs(t, err, ErrNestingTooDeep)
	var le *Error
	require.True(t, errors.As(err, &le))
	require.Equal(t, NestingError, le.Code)
	require.Contains(t, err.Error(), "in definition of start")
}
