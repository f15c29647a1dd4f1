package lark

// File is a parsed grammar source.
type File struct {
	Items []Item
}

// Item is one of *Rule, *TokenDef or *Statement.
type Item interface {
	itemPos() Pos
}

// Attr is a rule attribute, such as stop="" or lazy. A flag attribute has
// a nil Value.
type Attr struct {
	Pos
	Key   string
	Value *Value
}

type Rule struct {
	Pos
	Name       string
	Inline     bool
	Keep       bool
	Priority   int
	Attrs      []Attr
	Expansions *Expansions
}

type TokenDef struct {
	Pos
	Name       string
	Priority   int
	Attrs      []Attr
	Expansions *Expansions
}

type StatementKind int

const (
	StmtIgnore StatementKind = iota
	StmtImport
	StmtLLGuidance
)

type Statement struct {
	Pos
	Kind StatementKind
	// Ignore holds the expansions of %ignore.
	Ignore *Expansions
	// Module and Names hold %import module.NAME or %import module (A, B);
	// Aliases[i] renames Names[i] when set.
	Module  string
	Names   []string
	Aliases []string
	// Block is the body of %llguidance.
	Block string
}

func (r *Rule) itemPos() Pos      { return r.Pos }
func (t *TokenDef) itemPos() Pos  { return t.Pos }
func (s *Statement) itemPos() Pos { return s.Pos }

// Expansions are alternatives.
type Expansions struct {
	Pos
	Alts []*Alias
}

// Alias is a sequence, optionally named with -> name.
type Alias struct {
	Pos
	Seq  []*Expr
	Name string
}

// Expr is an atom with an optional quantifier: ?, *, + or ~ Min..Max.
type Expr struct {
	Pos
	Atom     *Atom
	Op       string
	Min, Max int
}

// Atom is a parenthesized group, a [maybe] group or a value; exactly one
// field is set.
type Atom struct {
	Pos
	Group *Expansions
	Maybe *Expansions
	Value *Value
}

type ValueKind int

const (
	ValueName ValueKind = iota
	ValueString
	ValueRegexp
	ValueRange
	ValueTokenRange
	ValueSpecial
	ValueJSON
	ValueLark
	ValueNumber
)

// Value is a terminal item of an expansion, or an attribute value.
type Value struct {
	Pos
	Kind ValueKind
	// Text is the name, the unquoted string, the regexp pattern, the range
	// start, the special token name, the number or the block body.
	Text string
	// End is the end of a "a".."z" range.
	End string
	// Flags holds the flags of a regexp or "i" for a case-insensitive string.
	Flags string
	// Ranges holds the token ids of <[...]>.
	Ranges [][2]uint32
}

// singleValue returns the value e consists of, or nil when e is anything
// more than one unquantified value.
func (e *Expansions) singleValue() *Value {
	if len(e.Alts) != 1 || len(e.Alts[0].Seq) != 1 {
		return nil
	}
	x := e.Alts[0].Seq[0]
	if x.Op != "" || x.Atom.Value == nil {
		return nil
	}
	return x.Atom.Value
}
