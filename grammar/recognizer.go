package grammar

import (
	"fmt"
	"strings"

	"github.com/dlclark/derivre/regexvec"
)

// item is an Earley item: a dotted rule, where it started and the
// parameter of its lhs.
type item struct {
	ptr    RhsPtr
	origin uint32
	param  ParamValue
}

type threadKind uint8

const (
	threadLexeme threadKind = iota
	threadIgnore
	// threadTrailing skips ignored text after a complete parse
	threadTrailing
)

// thread is a terminal (or ignored text) being lexed for item.
type thread struct {
	it    item
	state regexvec.StateID
	kind  threadKind
}

type symParam struct {
	sym   SymIdx
	param ParamValue
}

type earleySet struct {
	items      []item
	seen       map[item]struct{}
	threads    []thread
	threadSeen map[thread]struct{}
	// nullDone holds symbols completed without consuming input here
	nullDone  map[symParam]struct{}
	accepting bool
}

func newEarleySet() *earleySet {
	return &earleySet{
		seen:       make(map[item]struct{}),
		threadSeen: make(map[thread]struct{}),
		nullDone:   make(map[symParam]struct{}),
	}
}

func (s *earleySet) addItem(it item) bool {
	if _, ok := s.seen[it]; ok {
		return false
	}
	s.seen[it] = struct{}{}
	s.items = append(s.items, it)
	return true
}

func (s *earleySet) addThread(t thread) {
	if t.state == regexvec.DeadState {
		return
	}
	if _, ok := s.threadSeen[t]; ok {
		return
	}
	s.threadSeen[t] = struct{}{}
	s.threads = append(s.threads, t)
}

func (s *earleySet) isEmpty() bool {
	return len(s.threads) == 0 && !s.accepting
}

// Recognizer is a byte-level Earley recognizer for a CGrammar. Terminals
// are lexed by the grammar's RegexVec; every segmentation of the input into
// terminals is explored, with ignored lexemes allowed before each terminal
// and after the end. A lazy terminal ends at its first match.
//
// Recognizer implements toktrie.Recognizer.
type Recognizer struct {
	g    *CGrammar
	rv   *regexvec.RegexVec
	sets []*earleySet
	err  error
}

// NewRecognizer returns a recognizer positioned at the start of input.
func NewRecognizer(g *CGrammar) *Recognizer {
	r := &Recognizer{g: g, rv: g.Lexer()}
	r.Reset()
	return r
}

// Reset drops all input.
func (r *Recognizer) Reset() {
	r.sets = r.sets[:0]
	r.err = nil
	s := newEarleySet()
	start := r.g.Symbol(r.g.start)
	for i, ptr := range start.Rules {
		if start.RuleConds[i].Eval(0) {
			s.addItem(item{ptr: ptr})
		}
	}
	r.sets = append(r.sets, s)
	r.closure(0)
}

// Err returns the lexer error that stopped the recognizer, if any.
func (r *Recognizer) Err() error {
	return r.err
}

// Len is the number of bytes consumed.
func (r *Recognizer) Len() int {
	return len(r.sets) - 1
}

// IsAccepting reports whether the input so far is in the language.
func (r *Recognizer) IsAccepting() bool {
	return r.sets[len(r.sets)-1].accepting
}

// closure runs prediction and completion on set pos until nothing new is
// added, and starts lexing threads for the terminals it expects.
func (r *Recognizer) closure(pos int) {
	g := r.g
	set := r.sets[pos]
	for i := 0; i < len(set.items); i++ {
		it := set.items[i]
		sym := g.rhs[it.ptr]
		if sym == NullSym {
			r.complete(pos, it)
			continue
		}
		s := &g.symbols[sym]
		if s.IsTerminal() {
			class := g.spec.Lexeme(s.Lexeme).Class
			set.addThread(thread{it: it, state: g.lexemeStart(s.Lexeme)})
			set.addThread(thread{it: it, state: g.ignoreStart(class), kind: threadIgnore})
			continue
		}
		p := g.rhsParams[it.ptr].Eval(it.param)
		for j, ptr := range s.Rules {
			if s.RuleConds[j].Eval(p) {
				set.addItem(item{ptr: ptr, origin: uint32(pos), param: p})
			}
		}
		if _, ok := set.nullDone[symParam{sym, p}]; ok {
			set.addItem(item{ptr: it.ptr + 1, origin: it.origin, param: it.param})
		}
	}
}

func (r *Recognizer) complete(pos int, done item) {
	g := r.g
	lhs := g.rhsLhs[done.ptr]
	set := r.sets[pos]
	if lhs == g.start && done.origin == 0 {
		if !set.accepting {
			set.accepting = true
			class := g.symbols[g.start].Props.GrammarID
			set.addThread(thread{state: g.ignoreStart(class), kind: threadTrailing})
		}
	}
	origin := r.sets[done.origin]
	if int(done.origin) == pos {
		set.nullDone[symParam{lhs, done.param}] = struct{}{}
	}
	for i := 0; i < len(origin.items); i++ {
		it := origin.items[i]
		if g.rhs[it.ptr] != lhs {
			continue
		}
		if g.rhsParams[it.ptr].Eval(it.param) != done.param {
			continue
		}
		set.addItem(item{ptr: it.ptr + 1, origin: it.origin, param: it.param})
	}
}

// TryPushByte advances by b. It returns false, leaving the recognizer
// unchanged, when no parse continues with b.
func (r *Recognizer) TryPushByte(b byte) bool {
	if r.err != nil {
		return false
	}
	cur := r.sets[len(r.sets)-1]
	next := newEarleySet()
	r.sets = append(r.sets, next)
	pos := len(r.sets) - 1
	for _, t := range cur.threads {
		st := r.rv.Transition(t.state, b)
		if st == regexvec.DeadState {
			continue
		}
		desc := r.rv.StateDesc(st)
		switch t.kind {
		case threadLexeme:
			lex := r.g.symbols[r.g.rhs[t.it.ptr]].Lexeme
			if desc.GreedyAccepting.Has(lex) {
				next.addItem(item{ptr: t.it.ptr + 1, origin: t.it.origin, param: t.it.param})
				if r.g.spec.Lexeme(lex).Lazy {
					continue
				}
			}
		case threadIgnore:
			if !desc.GreedyAccepting.IsEmpty() {
				next.addItem(t.it)
			}
		case threadTrailing:
			if !desc.GreedyAccepting.IsEmpty() {
				next.accepting = true
			}
		}
		next.addThread(thread{it: t.it, state: st, kind: t.kind})
	}
	if err := r.rv.Err(); err != nil {
		r.err = err
		r.sets = r.sets[:pos]
		return false
	}
	r.closure(pos)
	if next.isEmpty() {
		r.sets = r.sets[:pos]
		return false
	}
	return true
}

// PopBytes undoes the last n successful TryPushByte calls.
func (r *Recognizer) PopBytes(n int) {
	r.sets = r.sets[:len(r.sets)-n]
}

// PushBytes pushes all of b, stopping at the first rejected byte. It
// returns the number of bytes consumed.
func (r *Recognizer) PushBytes(b []byte) int {
	for i, c := range b {
		if !r.TryPushByte(c) {
			return i
		}
	}
	return len(b)
}

// Accepts reports whether input is in the language of the grammar.
func (r *Recognizer) Accepts(input []byte) bool {
	r.Reset()
	return r.PushBytes(input) == len(input) && r.IsAccepting()
}

// String dumps the items of the current position.
func (r *Recognizer) String() string {
	var sb strings.Builder
	set := r.sets[len(r.sets)-1]
	fmt.Fprintf(&sb, "pos %d, %d items, %d threads", len(r.sets)-1, len(set.items), len(set.threads))
	if set.accepting {
		sb.WriteString(", accepting")
	}
	sb.WriteString("\n")
	for _, it := range set.items {
		fmt.Fprintf(&sb, "  %s @%d", r.g.RuleString(it.ptr), it.origin)
		if r.g.symbols[r.g.rhsLhs[it.ptr]].Props.Parametric {
			fmt.Fprintf(&sb, " ::%s", it.param)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
