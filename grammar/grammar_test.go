package grammar

import (
	"strings"
	"testing"

	"github.com/dlclark/derivre/helpers"
	"github.com/dlclark/derivre/syntax"
	"github.com/dlclark/derivre/toktrie"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, b *Builder) *CGrammar {
	t.Helper()
	cg, err := b.Finalize(nil)
	require.NoError(t, err)
	return cg
}

func TestRepeat(t *testing.T) {
	scenarios := []struct {
		min, max int
	}{
		{3, 3},
		{0, 5},
		{0, 37},
		{2, 37},
		{37, 37},
		{4, -1},
		{0, -1},
	}
	for _, sc := range scenarios {
		b := NewBuilder("repeat", DefaultLimits())
		b.SetStart(b.Repeat(b.String("x"), sc.min, sc.max))
		r := NewRecognizer(compile(t, b))
		for k := 0; k <= 45; k++ {
			want := k >= sc.min && (sc.max < 0 || k <= sc.max)
			if got := r.Accepts([]byte(strings.Repeat("x", k))); want != got {
				t.Fatalf("{%d,%d} on %d copies: want %v, got %v", sc.min, sc.max, k, want, got)
			}
		}
	}
}

func TestRepeatIsCompact(t *testing.T) {
	b := NewBuilder("repeat", DefaultLimits())
	b.SetStart(b.Repeat(b.String("x"), 0, 1000))
	require.NoError(t, b.Err())
	require.Less(t, b.Grammar.NumSymbols(), 200, b.Grammar.String())

	r := NewRecognizer(compile(t, b))
	require.True(t, r.Accepts([]byte(strings.Repeat("x", 1000))))
	require.False(t, r.Accepts([]byte(strings.Repeat("x", 1001))))
}

func TestRepeatInvalid(t *testing.T) {
	b := NewBuilder("bad", DefaultLimits())
	b.Repeat(b.String("x"), 5, 2)
	require.ErrorIs(t, b.Err(), ErrInvalidGrammar)
	_, err := b.Finalize(nil)
	require.ErrorIs(t, err, ErrInvalidGrammar)
}

func TestSequence(t *testing.T) {
	b := NewBuilder("seq", DefaultLimits())
	b.SetStart(b.Join(
		b.String("a"),
		b.OneOrMore(b.String("b")),
		b.Optional(b.String("c")),
	))
	r := NewRecognizer(compile(t, b))

	scenarios := []struct {
		input string
		want  bool
	}{
		{"ab", true},
		{"abbbc", true},
		{"abc", true},
		{"a", false},
		{"ac", false},
		{"abcc", false},
		{"", false},
	}
	for _, sc := range scenarios {
		if want, got := sc.want, r.Accepts([]byte(sc.input)); want != got {
			t.Fatalf("%q: want %v, got %v", sc.input, want, got)
		}
	}
}

func TestIgnore(t *testing.T) {
	b := NewBuilder("ws", DefaultLimits())
	s := b.Exprs()
	ws, err := s.ParseRegex(` +`)
	require.NoError(t, err)
	b.Ignore(b.Spec.AddGreedy("WS", ws, false))
	b.SetStart(b.Join(b.String("a"), b.String("b")))
	r := NewRecognizer(compile(t, b))

	for _, in := range []string{"ab", "a b", "  a   b  ", " ab"} {
		require.True(t, r.Accepts([]byte(in)), in)
	}
	for _, in := range []string{"a_b", "a\tb", "ba"} {
		require.False(t, r.Accepts([]byte(in)), in)
	}
}

func TestNullableLexeme(t *testing.T) {
	b := NewBuilder("nullable", DefaultLimits())
	rx, err := b.Exprs().ParseRegex(`[a-z]*`)
	require.NoError(t, err)
	word := b.Regex("word", rx)
	b.SetStart(b.Join(b.String("<"), word, b.String(">")))

	sym := b.Grammar.Symbol(word.Sym)
	require.False(t, sym.IsTerminal())
	require.Len(t, sym.Rules, 2)
	wrap, ok := b.Grammar.Lookup("rx_null_word")
	require.True(t, ok)
	lex := b.Spec.Lexeme(b.Grammar.Symbol(wrap).Lexeme)
	require.Equal(t, "word#nonempty", lex.Name)
	require.False(t, b.Exprs().Nullable(lex.Rx))

	r := NewRecognizer(compile(t, b))
	require.True(t, r.Accepts([]byte("<>")))
	require.True(t, r.Accepts([]byte("<abc>")))
	require.False(t, r.Accepts([]byte("<a1>")))
}

func TestGenStop(t *testing.T) {
	b := NewBuilder("gen", DefaultLimits())
	s := b.Exprs()
	gen := b.Gen(GenOptions{Name: "text", Stop: s.MkString(";")})
	b.SetStart(b.Join(gen, b.String("!")))
	r := NewRecognizer(compile(t, b))

	require.True(t, r.Accepts([]byte("abc;!")))
	require.True(t, r.Accepts([]byte(";!")))
	// the lexeme ends at the first stop
	require.False(t, r.Accepts([]byte("abc;d;!")))
	require.False(t, r.Accepts([]byte("abc!")))
}

func TestParametric(t *testing.T) {
	b := NewBuilder("nest", DefaultLimits())
	g := b.Grammar
	lp, rp := b.String("("), b.String(")")
	p := g.FreshSymbol("parens", SymbolProps{Parametric: true})
	require.NoError(t, g.AddRuleExt(p, ParamCond{}, nil, nil))
	require.NoError(t, g.AddRuleExt(p, Compare(CondLT, FullParam, 2),
		[]SymIdx{lp.Sym, p, rp.Sym},
		[]ParamExpr{{}, Incr(FullParam), {}}))
	b.SetStart(NodeRef{Sym: p, Param: Const(0)})
	require.True(t, g.Parametric)

	r := NewRecognizer(compile(t, b))
	scenarios := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"()", true},
		{"(())", true},
		{"((()))", false},
		{"(()", false},
	}
	for _, sc := range scenarios {
		if want, got := sc.want, r.Accepts([]byte(sc.input)); want != got {
			t.Fatalf("%q: want %v, got %v", sc.input, want, got)
		}
	}
}

func TestRuleChecks(t *testing.T) {
	g := NewGrammar("checks")
	a := g.FreshSymbol("a", SymbolProps{})
	p := g.FreshSymbol("p", SymbolProps{Parametric: true})

	err := g.AddRuleExt(a, Compare(CondEQ, FullParam, 1), nil, nil)
	require.ErrorIs(t, err, ErrInvalidGrammar)

	// a parametric symbol needs a parameter
	err = g.AddRuleExt(a, ParamCond{}, []SymIdx{p}, []ParamExpr{{}})
	require.ErrorIs(t, err, ErrInvalidGrammar)

	// the parameter of a cannot be passed on
	err = g.AddRuleExt(a, ParamCond{}, []SymIdx{p}, []ParamExpr{SelfRef})
	require.ErrorIs(t, err, ErrInvalidGrammar)

	require.NoError(t, g.AddRuleExt(a, ParamCond{}, []SymIdx{p}, []ParamExpr{Const(3)}))
	require.NoError(t, g.AddRule(p, a))
	require.ErrorIs(t, g.MakeParametric(a), ErrInvalidGrammar)
}

func TestFreshNames(t *testing.T) {
	g := NewGrammar("names")
	require.Equal(t, "x", g.SymName(g.FreshSymbol("x", SymbolProps{})))
	require.Equal(t, "x#2", g.SymName(g.FreshSymbol("x", SymbolProps{})))
	require.Equal(t, "x#3", g.SymName(g.FreshSymbol("x", SymbolProps{})))
	y := g.FreshSymbol("y", SymbolProps{})
	g.RenameSymbol(y, "x")
	require.Equal(t, "x#4", g.SymName(y))
	_, ok := g.Lookup("y")
	require.False(t, ok)
}

func TestOptimize(t *testing.T) {
	g := NewGrammar("alias")
	start := g.FreshSymbol("start", SymbolProps{IsStart: true})
	a1 := g.FreshSymbol("a1", SymbolProps{})
	a2 := g.FreshSymbol("a2", SymbolProps{})
	unused := g.FreshSymbol("unused", SymbolProps{})
	x := g.FreshSymbol("x", SymbolProps{})
	g.symbols[x].Lexeme = 0
	require.NoError(t, g.AddRule(start, a1, a1))
	require.NoError(t, g.AddRule(a1, a2))
	require.NoError(t, g.AddRule(a2, x))
	require.NoError(t, g.AddRule(unused, x))

	o := Optimize(g)
	require.Equal(t, 2, o.NumSymbols(), o.String())
	_, ok := o.Lookup("a1")
	require.False(t, ok)
	s := o.Symbol(o.Start())
	require.Equal(t, "start", s.Name)
	require.Len(t, s.Rules, 1)
	require.Equal(t, "x", o.SymName(s.Rules[0].Rhs[0]))
	require.Equal(t, "x", o.SymName(s.Rules[0].Rhs[1]))
}

func TestStats(t *testing.T) {
	b := NewBuilder("stats", DefaultLimits())
	b.SetStart(b.Join(b.String("a"), b.String("b")))
	require.Equal(t, "2 terminals; 2 non-terminals with 2 rules with 9 symbols", b.Grammar.Stats())
	require.Contains(t, b.Grammar.SymbolHistogram(), "start: 1\n")
}

func TestGrammarTooLarge(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxGrammarSize = 50
	b := NewBuilder("big", limits)
	var elts []NodeRef
	for i := 0; i < 60; i++ {
		elts = append(elts, b.String(strings.Repeat("z", i+1)))
	}
	b.SetStart(b.Select(elts...))
	_, err := b.Finalize(nil)
	require.ErrorIs(t, err, ErrGrammarTooLarge)
}

func TestFuelExhausted(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxFuel = 10
	b := NewBuilder("fuel", limits)
	b.SetStart(b.String("a fairly long literal that costs more than ten units"))
	_, err := b.Finalize(nil)
	require.ErrorIs(t, err, syntax.ErrFuelExhausted)
}

func TestPlaceholder(t *testing.T) {
	b := NewBuilder("rec", DefaultLimits())
	list := b.Placeholder("list")
	b.SetPlaceholder(list, b.Select(b.String("x"), b.Join(b.String("x"), b.String(","), list)))
	b.SetStart(b.Join(b.String("["), list, b.String("]")))
	r := NewRecognizer(compile(t, b))
	require.True(t, r.Accepts([]byte("[x,x,x]")))
	require.False(t, r.Accepts([]byte("[x,]")))

	b = NewBuilder("undefined", DefaultLimits())
	b.SetStart(b.Placeholder("never"))
	_, err := b.Finalize(nil)
	require.ErrorIs(t, err, ErrInvalidGrammar)
}

func TestComputeBias(t *testing.T) {
	trie := toktrie.FromWords([]string{"a", "b", "ab", "ba", "c", "abc"}, "<eos>")
	b := NewBuilder("bias", DefaultLimits())
	b.Trie = trie
	b.SetStart(b.Join(b.String("ab"), b.Optional(b.String("c"))))
	r := NewRecognizer(compile(t, b))

	require.Equal(t, "3/7 [0 2 5]", trie.AllowedTokens(r).String())
	require.Equal(t, 0, r.Len())

	require.Equal(t, 2, r.PushBytes([]byte("ab")))
	require.True(t, r.IsAccepting())
	require.Equal(t, "1/7 [4]", trie.AllowedTokens(r).String())
}

func TestSpecialToken(t *testing.T) {
	trie := toktrie.FromWords([]string{"a", "b"}, "<eos>")
	b := NewBuilder("special", DefaultLimits())
	b.Trie = trie
	b.SetStart(b.Join(b.String("a"), b.SpecialToken("<eos>")))
	r := NewRecognizer(compile(t, b))

	require.Equal(t, 1, r.PushBytes([]byte("a")))
	require.Equal(t, "1/3 [2]", trie.AllowedTokens(r).String())

	b.SpecialToken("<nope>")
	require.ErrorIs(t, b.Err(), ErrInvalidGrammar)
}

func TestTokenRanges(t *testing.T) {
	trie := toktrie.FromWords([]string{"a", "b", "c", "d"}, "<eos>")
	b := NewBuilder("ranges", DefaultLimits())
	b.Trie = trie
	b.SetStart(b.TokenRanges([][2]uint32{{1, 2}, {4, 4}}))
	r := NewRecognizer(compile(t, b))
	// only tokens pushed in their special form match by id
	require.Equal(t, "1/5 [4]", trie.AllowedTokens(r).String())
	require.True(t, r.Accepts(helpers.SpecialTokenBytes(2)))
	require.False(t, r.Accepts(helpers.SpecialTokenBytes(3)))
	require.False(t, r.Accepts([]byte("b")))
}
