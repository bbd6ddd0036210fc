// Package syn implements the concrete syntax layer of spec.md §3.5 and
// §4.3: an immutable, sum-typed Syntax tree produced by a hand-written
// lexer and recursive-descent/operator-precedence parser.
//
// Grounded on original_source/src/htsql/core/syn/syntax.py's variant-per-
// production shape and on the teacher's sql/expression tree (one Go type
// per expression kind, combined via a shared interface) for how to express
// a closed ADT idiomatically in Go.
package syn

// Location is a source span, used for diagnostics (core/errors.Span) and
// for the round-trip property of spec.md §8 ("str(parse(S)) re-parses to
// an equal syntax tree").
type Location struct {
	Start, End int
}

// Syntax is the common interface every concrete node implements. Nodes are
// immutable once constructed.
type Syntax interface {
	Loc() Location
	isSyntax()
}

type base struct{ Location }

func (b base) Loc() Location { return b.Location }
func (base) isSyntax()       {}

// Void is the syntax of an empty query segment.
type Void struct{ base }

// Skip is the `/` root segment marker.
type Skip struct {
	base
	Arm Syntax
}

// Assign is `lhs := rhs`, a calculated-attribute definition.
type Assign struct {
	base
	LHS, RHS Syntax
}

// Specify is `larms := rarms` inside a selector/define context; Rarms may
// be nil for a bare reference.
type Specify struct {
	base
	Larms []Syntax
	Rarms []Syntax
}

// Function is `id(args...)`.
type Function struct {
	base
	Identifier string
	Args       []Syntax
}

// Pipe is `id(larm, ...)` flow-style application, e.g. `x :if_null(0)`.
type Pipe struct {
	base
	Identifier    string
	Larm          Syntax
	Rarms         []Syntax
	IsFlow        bool
	IsOpen        bool
}

// Operator is a binary infix operator application.
type Operator struct {
	base
	Symbol string
	Left   Syntax
	Right  Syntax
}

// Prefix is a unary prefix operator application (`!`, unary `-`).
type Prefix struct {
	base
	Symbol string
	Arm    Syntax
}

// Filter is `base?predicate`.
type Filter struct {
	base
	Base      Syntax
	Predicate Syntax
}

// Project is `base^kernel`.
type Project struct {
	base
	Base   Syntax
	Kernel Syntax
}

// Attach is `base@target`, explicit join attachment.
type Attach struct {
	base
	Base, Target Syntax
}

// Detach is `base@*`, detaching a correlated context.
type Detach struct {
	base
	Base Syntax
}

// Collect wraps an expression that will become an output segment.
type Collect struct {
	base
	Arm Syntax
}

// Compose is `left.right`, the fundamental chaining operator.
type Compose struct {
	base
	Left, Right Syntax
}

// Unpack is `base*idx` (idx nil means unpack all).
type Unpack struct {
	base
	Base Syntax
	Idx  *int
}

// Lift is `^` applied with no explicit kernel, lifting the current
// quotient's kernel into scope.
type Lift struct{ base }

// Group is a parenthesized sub-expression, kept distinct from its Arm so
// re-serialization can restore the parentheses.
type Group struct {
	base
	Arm Syntax
}

// Select is `base{record}`, HTSQL's output-shaping selector.
type Select struct {
	base
	Base   Syntax
	Record Syntax
}

// Locate is `base[identity]`.
type Locate struct {
	base
	Base     Syntax
	Identity Syntax
}

// Record is a `{...}` tuple of named/unnamed element syntaxes.
type Record struct {
	base
	Elements []Syntax
}

// List is a `[...]` literal list.
type List struct {
	base
	Elements []Syntax
}

// Identity is a `(a^b^c)` or bare identity chain used in Locate.
type Identity struct {
	base
	Elements []Syntax
	IsHard   bool
}

// Reference is `$name`.
type Reference struct {
	base
	Identifier string
}

// Identifier is a bare name.
type Identifier struct {
	base
	Text string
}

// String is a single-quoted string literal (already un-escaped: '' -> ').
type String struct {
	base
	Value string
}

// Label is a quoted or bare identifier used as a record-field name in
// `{label := arm}`.
type Label struct {
	base
	Text string
}

// Integer is an integer literal.
type Integer struct {
	base
	Text  string
	Value int64
}

// Decimal is a fixed-point literal (has a `.` but no exponent).
type Decimal struct {
	base
	Text string
}

// Float is a literal with an exponent.
type Float struct {
	base
	Text  string
	Value float64
}
