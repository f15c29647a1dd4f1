package regexvec

import (
	"fmt"
	"strings"

	"github.com/dlclark/derivre/helpers"
	"github.com/dlclark/derivre/syntax"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

// StateID names a state of a RegexVec.
type StateID uint32

const (
	// DeadState has no live lexemes; every transition from it is dead.
	DeadState StateID = 0

	missingState = StateID(^uint32(0))
)

// Options bound the work a RegexVec may do.
type Options struct {
	// MaxStates caps the number of states.
	MaxStates int
	// MaxFuel caps the expression-arena cost spent after construction.
	MaxFuel uint64
	// RelevanceFuel is the budget of each emptiness check on a new derivative.
	RelevanceFuel uint64
	// CompressAlphabet maps bytes to equivalence classes before lookup.
	CompressAlphabet bool
}

func DefaultOptions() Options {
	return Options{
		MaxStates:        50_000,
		MaxFuel:          2_000_000,
		RelevanceFuel:    2_000,
		CompressAlphabet: true,
	}
}

// StateDesc is computed once per state.
type StateDesc struct {
	State StateID
	// Possible holds the lexemes still alive.
	Possible LexemeSet
	// GreedyAccepting holds the lexemes that match the input so far.
	GreedyAccepting LexemeSet
	// LowestMatch is the lexeme that must be emitted now, or NoLexeme.
	LowestMatch LexemeIdx
	// LookaheadLen is the hidden suffix length of LowestMatch.
	LookaheadLen int
	// NextByte summarizes the bytes any live lexeme accepts next.
	NextByte syntax.NextByte
}

// HasLowestMatch reports whether the lexer has to emit a lexeme in this state.
func (d *StateDesc) HasLowestMatch() bool {
	return d.LowestMatch != NoLexeme
}

// RegexVec is a lazily built DFA over a vector of lexemes. A state is the
// list of (lexeme, derivative) pairs still alive; states are hash-consed so
// different paths to the same pairs share one state.
type RegexVec struct {
	spec  *LexerSpec
	exprs *syntax.ExprSet
	opts  Options

	classes  helpers.ByteClasses
	alphaLen int

	states   *helpers.HashCons
	descs    []StateDesc
	trans    []StateID
	initial  map[string]StateID
	numTrans int

	startCost uint64
	err       error
}

// New builds the vector for every lexeme of spec. No states besides the
// dead state exist until asked for.
func New(spec *LexerSpec, opts Options) *RegexVec {
	rv := &RegexVec{
		spec:      spec,
		exprs:     spec.Exprs,
		opts:      opts,
		states:    helpers.NewHashCons(),
		initial:   make(map[string]StateID),
		startCost: spec.Exprs.Cost(),
	}
	if opts.CompressAlphabet {
		var bcs helpers.ByteClassSet
		roots := make([]syntax.ExprRef, 0, spec.Len())
		for i := range spec.Lexemes {
			roots = append(roots, spec.Lexemes[i].Rx)
		}
		rv.exprs.CollectByteClasses(roots, &bcs)
		rv.classes = bcs.ByteClasses()
	} else {
		rv.classes = helpers.SingletonByteClasses()
	}
	rv.alphaLen = rv.classes.AlphabetLen()

	dead, _ := rv.states.Insert(nil)
	if StateID(dead) != DeadState {
		panic("regexvec: dead state allocated at " + fmt.Sprint(dead))
	}
	rv.addState(nil)
	return rv
}

// Spec returns the lexer spec the vector was built from.
func (rv *RegexVec) Spec() *LexerSpec {
	return rv.spec
}

// InitialState returns the state in which every allowed lexeme is at its
// start.
func (rv *RegexVec) InitialState(allowed LexemeSet) StateID {
	if rv.err != nil {
		return DeadState
	}
	key := allowed.key()
	if st, ok := rv.initial[key]; ok {
		return st
	}
	var pairs []uint32
	allowed.ForEach(func(idx LexemeIdx) {
		if int(idx) >= rv.spec.Len() {
			return
		}
		rx := rv.spec.Lexemes[idx].Rx
		if rx == syntax.NoMatch || !rv.relevant(rx) {
			return
		}
		pairs = append(pairs, uint32(idx), uint32(rx))
	})
	st := rv.insertState(pairs)
	rv.initial[key] = st
	return st
}

// LimitStateTo drops from state every lexeme not in allowed.
func (rv *RegexVec) LimitStateTo(state StateID, allowed LexemeSet) StateID {
	if rv.err != nil || state == DeadState {
		return DeadState
	}
	pairs := rv.states.Get(uint32(state))
	var r []uint32
	for i := 0; i < len(pairs); i += 2 {
		if allowed.Has(LexemeIdx(pairs[i])) {
			r = append(r, pairs[i], pairs[i+1])
		}
	}
	if len(r) == len(pairs) {
		return state
	}
	return rv.insertState(r)
}

// Transition returns the state after reading b.
func (rv *RegexVec) Transition(state StateID, b byte) StateID {
	if rv.err != nil {
		return DeadState
	}
	idx := int(state)*rv.alphaLen + int(rv.classes.Get(b))
	if next := rv.trans[idx]; next != missingState {
		return next
	}
	next := rv.computeTransition(state, b)
	if rv.err != nil {
		return DeadState
	}
	rv.trans[idx] = next
	return next
}

// TransitionBytes feeds all of input, stopping early at the dead state.
func (rv *RegexVec) TransitionBytes(state StateID, input []byte) StateID {
	for _, b := range input {
		if state == DeadState {
			break
		}
		state = rv.Transition(state, b)
	}
	return state
}

func (rv *RegexVec) computeTransition(state StateID, b byte) StateID {
	rv.numTrans++
	pairs := rv.states.Get(uint32(state))
	var next []uint32
	for i := 0; i < len(pairs); i += 2 {
		d := rv.exprs.Derivative(syntax.ExprRef(pairs[i+1]), b)
		if d == syntax.NoMatch || !rv.relevant(d) {
			continue
		}
		next = append(next, pairs[i], uint32(d))
	}
	if used := rv.exprs.Cost() - rv.startCost; rv.opts.MaxFuel > 0 && used > rv.opts.MaxFuel {
		rv.setError(errors.Wrapf(syntax.ErrFuelExhausted, "lexer used %d of %d", used, rv.opts.MaxFuel))
		return DeadState
	}
	return rv.insertState(next)
}

func (rv *RegexVec) relevant(e syntax.ExprRef) bool {
	if rv.exprs.Positive(e) {
		return true
	}
	ok, err := rv.exprs.IsNonEmpty(e, rv.opts.RelevanceFuel)
	if err != nil {
		klog.Warningf("regexvec: relevance check gave up, keeping %s: %v", rv.exprs.Description(e), err)
		return true
	}
	return ok
}

func (rv *RegexVec) insertState(pairs []uint32) StateID {
	if len(pairs) == 0 {
		return DeadState
	}
	if id, ok := rv.states.Lookup(pairs); ok {
		return StateID(id)
	}
	if rv.opts.MaxStates > 0 && rv.states.Len() >= rv.opts.MaxStates {
		rv.setError(errors.Wrapf(ErrStateLimit, "limit %d", rv.opts.MaxStates))
		return DeadState
	}
	id, _ := rv.states.Insert(pairs)
	if StateID(id) != StateID(len(rv.descs)) {
		panic("regexvec: state table out of sync")
	}
	rv.addState(pairs)
	if n := len(rv.descs); n%1000 == 0 {
		klog.V(2).Infof("regexvec: %d states, %d transitions", n, rv.numTrans)
	}
	return StateID(id)
}

func (rv *RegexVec) addState(pairs []uint32) {
	rv.descs = append(rv.descs, rv.computeDesc(StateID(len(rv.descs)), pairs))
	fill := missingState
	if len(pairs) == 0 {
		// the dead state loops on itself
		fill = DeadState
	}
	for i := 0; i < rv.alphaLen; i++ {
		rv.trans = append(rv.trans, fill)
	}
}

func (rv *RegexVec) computeDesc(state StateID, pairs []uint32) StateDesc {
	s := rv.exprs
	n := rv.spec.Len()
	desc := StateDesc{
		State:           state,
		Possible:        NewLexemeSet(n),
		GreedyAccepting: NewLexemeSet(n),
		LowestMatch:     NoLexeme,
		NextByte:        syntax.NextByte{Kind: syntax.NextDead},
	}

	specialMatch := NoLexeme
	lazyMatch := NoLexeme
	lazyLookahead := 0
	allEOI := true
	eoiMatch := NoLexeme
	eoiLookahead := 0

	for i := 0; i < len(pairs); i += 2 {
		idx := LexemeIdx(pairs[i])
		e := syntax.ExprRef(pairs[i+1])
		lex := &rv.spec.Lexemes[idx]

		desc.Possible.Add(idx)
		nb := s.NextByte(e)
		desc.NextByte = desc.NextByte.Merge(nb)
		if !s.Nullable(e) {
			allEOI = false
			continue
		}
		desc.GreedyAccepting.Add(idx)
		look, _ := s.LookaheadLen(e)

		if lex.SpecialToken {
			// special tokens cannot overlap anything else
			if specialMatch == NoLexeme {
				specialMatch = idx
			}
			continue
		}
		if lex.Lazy {
			if lazyMatch == NoLexeme {
				lazyMatch, lazyLookahead = idx, look
			}
			continue
		}
		if nb.Kind != syntax.NextForcedEOI {
			allEOI = false
		} else if eoiMatch == NoLexeme {
			eoiMatch, eoiLookahead = idx, look
		}
	}

	switch {
	case specialMatch != NoLexeme:
		desc.LowestMatch, desc.LookaheadLen = specialMatch, 0
	case lazyMatch != NoLexeme:
		desc.LowestMatch, desc.LookaheadLen = lazyMatch, lazyLookahead
	case allEOI && eoiMatch != NoLexeme:
		desc.LowestMatch, desc.LookaheadLen = eoiMatch, eoiLookahead
	}
	return desc
}

func (rv *RegexVec) setError(err error) {
	if rv.err == nil {
		klog.Warningf("regexvec: %v; all further transitions are dead", err)
		rv.err = err
	}
}

// StateDesc returns the description of state.
func (rv *RegexVec) StateDesc(state StateID) *StateDesc {
	return &rv.descs[state]
}

// LowestMatch returns the lexeme to emit in state and its lookahead length.
func (rv *RegexVec) LowestMatch(state StateID) (LexemeIdx, int, bool) {
	d := &rv.descs[state]
	return d.LowestMatch, d.LookaheadLen, d.HasLowestMatch()
}

// PossibleLexemes returns the lexemes alive in state.
func (rv *RegexVec) PossibleLexemes(state StateID) LexemeSet {
	return rv.descs[state].Possible
}

// NextByte returns the combined next-byte summary of state.
func (rv *RegexVec) NextByte(state StateID) syntax.NextByte {
	return rv.descs[state].NextByte
}

// LexemeExpr returns the remaining expression of lexeme idx in state.
func (rv *RegexVec) LexemeExpr(state StateID, idx LexemeIdx) (syntax.ExprRef, bool) {
	pairs := rv.states.Get(uint32(state))
	for i := 0; i < len(pairs); i += 2 {
		if LexemeIdx(pairs[i]) == idx {
			return syntax.ExprRef(pairs[i+1]), true
		}
	}
	return syntax.InvalidRef, false
}

func (rv *RegexVec) IsDead(state StateID) bool {
	return state == DeadState
}

func (rv *RegexVec) HasError() bool {
	return rv.err != nil
}

// Err returns the error that stopped the vector, if any.
func (rv *RegexVec) Err() error {
	return rv.err
}

func (rv *RegexVec) NumStates() int {
	return len(rv.descs)
}

// AlphabetLen is the number of byte classes the transition table uses.
func (rv *RegexVec) AlphabetLen() int {
	return rv.alphaLen
}

// FuelUsed is the arena cost spent since construction.
func (rv *RegexVec) FuelUsed() uint64 {
	return rv.exprs.Cost() - rv.startCost
}

// CheckSubsume reports whether every string lexeme idx can still match
// from state is matched by big. Lazy and non-subsumable lexemes are never
// reported as subsumed.
func (rv *RegexVec) CheckSubsume(state StateID, idx LexemeIdx, big syntax.ExprRef) (bool, error) {
	if int(idx) >= rv.spec.Len() {
		return false, nil
	}
	lex := &rv.spec.Lexemes[idx]
	if !lex.Subsumable || lex.Lazy {
		return false, nil
	}
	e, ok := rv.LexemeExpr(state, idx)
	if !ok {
		return false, nil
	}
	return rv.exprs.IsContainedIn(e, big, rv.opts.RelevanceFuel)
}

// Stats summarizes the size of the vector.
func (rv *RegexVec) Stats() string {
	return fmt.Sprintf("states: %d, transitions: %d, alphabet: %d, exprs: %d (%d bytes), fuel: %d",
		len(rv.descs), rv.numTrans, rv.alphaLen, rv.exprs.Len(), rv.exprs.NumBytes(), rv.FuelUsed())
}

// DescribeState lists the live lexemes of state and their derivatives.
func (rv *RegexVec) DescribeState(state StateID) string {
	if state == DeadState {
		return "dead"
	}
	var sb strings.Builder
	pairs := rv.states.Get(uint32(state))
	for i := 0; i < len(pairs); i += 2 {
		if i > 0 {
			sb.WriteString(", ")
		}
		lex := &rv.spec.Lexemes[pairs[i]]
		fmt.Fprintf(&sb, "%s: %s", lex.Name, rv.exprs.String(syntax.ExprRef(pairs[i+1])))
	}
	return sb.String()
}
