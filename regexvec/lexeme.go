package regexvec

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/dlclark/derivre/helpers"
	"github.com/dlclark/derivre/syntax"
)

// LexemeIdx indexes LexerSpec.Lexemes. Lower indices have priority.
type LexemeIdx uint32

// NoLexeme marks the absence of a lexeme.
const NoLexeme = LexemeIdx(^uint32(0))

// LexemeSpec describes one lexeme of a lexer.
type LexemeSpec struct {
	Idx  LexemeIdx
	Name string
	Rx   syntax.ExprRef

	// Lazy lexemes end at the first position where they match.
	Lazy bool
	// Subsumable lexemes may be proven to contain a literal of the grammar.
	Subsumable bool
	// SpecialToken is set for lexemes matching a single special token.
	SpecialToken bool
	// Class groups lexemes that may be active together.
	Class int
	// Contextual lexemes are only allowed where the parser expects them.
	Contextual bool
}

func (l *LexemeSpec) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s", l.Idx, l.Name)
	if l.Lazy {
		sb.WriteString(" lazy")
	}
	if l.SpecialToken {
		sb.WriteString(" special")
	}
	if l.Subsumable {
		sb.WriteString(" subsumable")
	}
	if l.Class != 0 {
		fmt.Fprintf(&sb, " class=%d", l.Class)
	}
	return sb.String()
}

type lexemeKey struct {
	rx           syntax.ExprRef
	lazy         bool
	specialToken bool
	class        int
	contextual   bool
}

// LexerSpec is the table of lexemes one RegexVec is built from. All lexeme
// expressions live in Exprs.
type LexerSpec struct {
	Exprs   *syntax.ExprSet
	Lexemes []LexemeSpec

	// CurrentClass is assigned to lexemes added from now on.
	CurrentClass int

	byKey map[lexemeKey]LexemeIdx
}

func NewLexerSpec(exprs *syntax.ExprSet) *LexerSpec {
	if exprs == nil {
		exprs = syntax.NewExprSet()
	}
	return &LexerSpec{
		Exprs: exprs,
		byKey: make(map[lexemeKey]LexemeIdx),
	}
}

// Add registers spec and returns its index. Identical definitions share an
// index; the first name given wins.
func (ls *LexerSpec) Add(spec LexemeSpec) LexemeIdx {
	key := lexemeKey{spec.Rx, spec.Lazy, spec.SpecialToken, spec.Class, spec.Contextual}
	if idx, ok := ls.byKey[key]; ok {
		return idx
	}
	spec.Idx = LexemeIdx(len(ls.Lexemes))
	if spec.Lazy || spec.SpecialToken {
		spec.Subsumable = false
	}
	ls.Lexemes = append(ls.Lexemes, spec)
	ls.byKey[key] = spec.Idx
	return spec.Idx
}

// AddGreedy adds a lexeme matching the longest possible run.
func (ls *LexerSpec) AddGreedy(name string, rx syntax.ExprRef, contextual bool) LexemeIdx {
	return ls.Add(LexemeSpec{
		Name:       name,
		Rx:         rx,
		Subsumable: ls.hasUnboundedRepeat(rx),
		Class:      ls.CurrentClass,
		Contextual: contextual,
	})
}

// AddLazy adds a lexeme that ends at its first match.
func (ls *LexerSpec) AddLazy(name string, rx syntax.ExprRef) LexemeIdx {
	return ls.Add(LexemeSpec{
		Name:  name,
		Rx:    rx,
		Lazy:  true,
		Class: ls.CurrentClass,
	})
}

// AddSpecialToken adds a lexeme matching exactly the special token tok.
func (ls *LexerSpec) AddSpecialToken(name string, tok uint32) LexemeIdx {
	return ls.Add(LexemeSpec{
		Name:         name,
		Rx:           ls.Exprs.MkByteLiteral(helpers.SpecialTokenBytes(tok)),
		SpecialToken: true,
		Class:        ls.CurrentClass,
	})
}

// AddTokenRanges adds a lexeme matching any special token whose id falls in
// one of the inclusive ranges.
func (ls *LexerSpec) AddTokenRanges(name string, ranges [][2]uint32) LexemeIdx {
	s := ls.Exprs
	alts := make([]syntax.ExprRef, 0, len(ranges))
	for _, r := range ranges {
		alts = append(alts, s.MkIntRange(int64(r[0]), int64(r[1])))
	}
	rx := s.MkConcatAll(
		s.MkByteLiteral([]byte{helpers.SpecialTokenPrefix, '['}),
		s.MkOr(alts...),
		s.MkByte(']'),
	)
	return ls.Add(LexemeSpec{
		Name:         name,
		Rx:           rx,
		SpecialToken: true,
		Class:        ls.CurrentClass,
	})
}

func (ls *LexerSpec) hasUnboundedRepeat(rx syntax.ExprRef) bool {
	found := false
	ls.Exprs.Walk([]syntax.ExprRef{rx}, func(_ syntax.ExprRef, x *syntax.Expr) {
		if x.Tag == syntax.TagRepeat && x.Max == syntax.RepeatInf {
			found = true
		}
	})
	return found
}

// Len returns the number of lexemes.
func (ls *LexerSpec) Len() int {
	return len(ls.Lexemes)
}

// Lexeme returns the spec of lexeme idx.
func (ls *LexerSpec) Lexeme(idx LexemeIdx) *LexemeSpec {
	return &ls.Lexemes[idx]
}

// AllLexemes returns the set of every lexeme.
func (ls *LexerSpec) AllLexemes() LexemeSet {
	r := NewLexemeSet(ls.Len())
	for i := range ls.Lexemes {
		r.Add(LexemeIdx(i))
	}
	return r
}

// LexemesOfClass returns the set of lexemes in the given class.
func (ls *LexerSpec) LexemesOfClass(class int) LexemeSet {
	r := NewLexemeSet(ls.Len())
	for i := range ls.Lexemes {
		if ls.Lexemes[i].Class == class {
			r.Add(LexemeIdx(i))
		}
	}
	return r
}

func (ls *LexerSpec) String() string {
	var sb strings.Builder
	for i := range ls.Lexemes {
		l := &ls.Lexemes[i]
		sb.WriteString(l.String())
		sb.WriteString(" ")
		sb.WriteString(ls.Exprs.String(l.Rx))
		sb.WriteString("\n")
	}
	return sb.String()
}

// LexemeSet is a set of lexeme indices.
type LexemeSet struct {
	words []uint64
}

// NewLexemeSet returns an empty set sized for n lexemes. The set grows on
// demand.
func NewLexemeSet(n int) LexemeSet {
	return LexemeSet{words: make([]uint64, (n+63)/64)}
}

func (ls *LexemeSet) Add(idx LexemeIdx) {
	w := int(idx / 64)
	for len(ls.words) <= w {
		ls.words = append(ls.words, 0)
	}
	ls.words[w] |= 1 << (idx % 64)
}

func (ls *LexemeSet) Remove(idx LexemeIdx) {
	if w := int(idx / 64); w < len(ls.words) {
		ls.words[w] &^= 1 << (idx % 64)
	}
}

func (ls LexemeSet) Has(idx LexemeIdx) bool {
	w := int(idx / 64)
	return w < len(ls.words) && ls.words[w]&(1<<(idx%64)) != 0
}

func (ls LexemeSet) Len() int {
	n := 0
	for _, w := range ls.words {
		n += bits.OnesCount64(w)
	}
	return n
}

func (ls LexemeSet) IsEmpty() bool {
	for _, w := range ls.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// ForEach calls f for every member in increasing order.
func (ls LexemeSet) ForEach(f func(LexemeIdx)) {
	for i, w := range ls.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			f(LexemeIdx(i*64 + b))
			w &= w - 1
		}
	}
}

// First returns the lowest member, or NoLexeme.
func (ls LexemeSet) First() LexemeIdx {
	for i, w := range ls.words {
		if w != 0 {
			return LexemeIdx(i*64 + bits.TrailingZeros64(w))
		}
	}
	return NoLexeme
}

func (ls LexemeSet) Union(o LexemeSet) LexemeSet {
	n := max(len(ls.words), len(o.words))
	r := LexemeSet{words: make([]uint64, n)}
	copy(r.words, ls.words)
	for i, w := range o.words {
		r.words[i] |= w
	}
	return r
}

func (ls LexemeSet) Clone() LexemeSet {
	return LexemeSet{words: append([]uint64(nil), ls.words...)}
}

// key is a compact string form used to cache per-set results.
func (ls LexemeSet) key() string {
	var sb strings.Builder
	last := len(ls.words)
	for last > 0 && ls.words[last-1] == 0 {
		last--
	}
	for _, w := range ls.words[:last] {
		sb.WriteString(strconv.FormatUint(w, 36))
		sb.WriteByte(',')
	}
	return sb.String()
}

func (ls LexemeSet) String() string {
	var parts []string
	ls.ForEach(func(idx LexemeIdx) {
		parts = append(parts, strconv.Itoa(int(idx)))
	})
	return "{" + strings.Join(parts, ",") + "}"
}
