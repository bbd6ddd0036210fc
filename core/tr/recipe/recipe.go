// Package recipe implements the Recipe sum type of spec.md §4.4: a small
// DSL describing how to turn a name resolution result into a Binding,
// produced by core/tr/lookup and consumed by the binder's `use` entry
// point (core/tr/bind).
//
// Grounded on original_source/src/htsql/core/tr/lookup.py's Recipe classes
// (LiteralRecipe, ColumnRecipe, ChainRecipe, SubstitutionRecipe, etc.),
// translated to a closed Go interface + concrete-struct sum type.
package recipe

import (
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/syn"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
)

// Recipe is the common interface every concrete recipe implements.
type Recipe interface {
	isRecipe()
}

type noop struct{}

func (noop) isRecipe() {}

// Literal recipes yield a constant value binding.
type Literal struct {
	Value interface{}
}

func (Literal) isRecipe() {}

// Selection recipes yield an explicit output record (`{...}`).
type Selection struct {
	Elements []Recipe
}

func (Selection) isRecipe() {}

// FreeTable recipes yield a fresh, uncorrelated table scope.
type FreeTable struct {
	Table *entity.Table
}

func (FreeTable) isRecipe() {}

// AttachedTable recipes yield a table scope reached via a join chain from
// the current scope.
type AttachedTable struct {
	Joins []entity.Join
}

func (AttachedTable) isRecipe() {}

// Column recipes yield a column's value, optionally doubling as a Link to
// another table scope when the column also participates in a foreign key.
type Column struct {
	Column *entity.Column
	Link   Recipe
}

func (Column) isRecipe() {}

// Kernel recipes yield one element of an enclosing quotient's kernel.
type Kernel struct {
	Quotient binding.QuotientBinding
	Index    int
}

func (Kernel) isRecipe() {}

// Complement recipes yield the seed rows sharing a quotient's kernel
// value.
type Complement struct {
	Quotient binding.QuotientBinding
}

func (Complement) isRecipe() {}

// Identity recipes yield a table's natural-key chain.
type Identity struct {
	Elements []Recipe
}

func (Identity) isRecipe() {}

// Chain composes a sequence of recipes applied left to right (a dotted
// navigation path resolved ahead of time by lookup).
type Chain struct {
	Elements []Recipe
}

func (Chain) isRecipe() {}

// Substitution recipes bind calculated attributes / parameterized
// definitions: Body is bound against Base with Parameters installed as
// local definitions, and Terms records the already-bound argument values
// supplied at the call site.
type Substitution struct {
	Base       Recipe
	Terms      []Recipe
	Parameters []string
	Body       syn.Syntax
}

func (Substitution) isRecipe() {}

// Binding recipes wrap an already fully-resolved binding opaquely.
type Binding struct {
	Binding binding.Binding
}

func (Binding) isRecipe() {}

// Closed recipes hide the originating syntax from later diagnostics
// (used when a recipe is a library-internal implementation detail).
type Closed struct {
	Inner Recipe
}

func (Closed) isRecipe() {}

// Pinned recipes evaluate Inner in a fixed Scope regardless of where the
// recipe is later applied.
type Pinned struct {
	Scope Recipe
	Inner Recipe
}

func (Pinned) isRecipe() {}

// Ambiguous recipes record every competing alternative so the binder can
// raise a "which one did you mean" diagnostic.
type Ambiguous struct {
	Alternatives []Recipe
}

func (Ambiguous) isRecipe() {}

// Invalid recipes mark a name that resolved to nothing usable.
type Invalid struct {
	Reason string
}

func (Invalid) isRecipe() {}
