// Package binding implements the typed, scope-aware binding graph of
// spec.md §3.6: the output of the binder (core/tr/bind), consumed by the
// encoder (core/tr/encode).
//
// Grounded on original_source/src/htsql/core/tr/binding.py's Binding class
// hierarchy, translated from an open Python class hierarchy into a closed
// Go interface + concrete-struct sum type, the same pattern core/syn and
// core/model use.
package binding

import (
	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/syn"
)

// Binding is a node in the binding graph. Every binding carries the syntax
// it was produced from (for diagnostics) and its resolved Domain.
type Binding interface {
	Base() Binding
	Domain() domain.Domain
	Syntax() syn.Syntax
	isBinding()
}

type base struct {
	base_  Binding
	domain domain.Domain
	syntax syn.Syntax
}

func (b base) Base() Binding        { return b.base_ }
func (b base) Domain() domain.Domain { return b.domain }
func (b base) Syntax() syn.Syntax    { return b.syntax }
func (base) isBinding()              {}

// newBase constructs the common base fields any concrete binding embeds.
func newBase(parent Binding, d domain.Domain, s syn.Syntax) base {
	return base{base_: parent, domain: d, syntax: s}
}

// --- scope-introducing bindings ---

// RootBinding is the root of every binding graph, with no base scope.
type RootBinding struct{ base }

func NewRootBinding(s syn.Syntax) RootBinding {
	return RootBinding{newBase(nil, domain.VoidDomain{}, s)}
}

// HomeBinding is the application home scope.
type HomeBinding struct {
	base
	Catalog *entity.Catalog
}

func NewHomeBinding(parent Binding, catalog *entity.Catalog, s syn.Syntax) HomeBinding {
	return HomeBinding{base: newBase(parent, domain.VoidDomain{}, s), Catalog: catalog}
}

// TableBinding introduces a table scope with its underlying entity.Table.
type TableBinding struct {
	base
	Table *entity.Table
}

func NewTableBinding(parent Binding, table *entity.Table, s syn.Syntax) TableBinding {
	return TableBinding{base: newBase(parent, domain.VoidDomain{}, s), Table: table}
}

// ChainBinding introduces a scope reached by following a chain of joins.
type ChainBinding struct {
	base
	Joins []entity.Join
}

func NewChainBinding(parent Binding, joins []entity.Join, s syn.Syntax) ChainBinding {
	return ChainBinding{base: newBase(parent, domain.VoidDomain{}, s), Joins: joins}
}

// ColumnBinding introduces a scope for an individual column's value.
type ColumnBinding struct {
	base
	Column *entity.Column
	Link   Binding
}

func NewColumnBinding(parent Binding, column *entity.Column, d domain.Domain, link Binding, s syn.Syntax) ColumnBinding {
	return ColumnBinding{base: newBase(parent, d, s), Column: column, Link: link}
}

// QuotientBinding introduces the scope produced by projecting a seed space
// through a kernel (`^`).
type QuotientBinding struct {
	base
	Seed   Binding
	Kernel []Binding
}

func NewQuotientBinding(parent Binding, seed Binding, kernel []Binding, s syn.Syntax) QuotientBinding {
	return QuotientBinding{base: newBase(parent, domain.VoidDomain{}, s), Seed: seed, Kernel: kernel}
}

// KernelBinding refers to one element of an enclosing QuotientBinding's
// kernel by index.
type KernelBinding struct {
	base
	Quotient QuotientBinding
	Index    int
}

func NewKernelBinding(parent Binding, quotient QuotientBinding, idx int, d domain.Domain, s syn.Syntax) KernelBinding {
	return KernelBinding{base: newBase(parent, d, s), Quotient: quotient, Index: idx}
}

// ComplementBinding refers to the seed rows sharing an enclosing quotient's
// kernel value.
type ComplementBinding struct {
	base
	Quotient QuotientBinding
}

func NewComplementBinding(parent Binding, quotient QuotientBinding, s syn.Syntax) ComplementBinding {
	return ComplementBinding{base: newBase(parent, domain.VoidDomain{}, s), Quotient: quotient}
}

// ForkBinding introduces a self-join scope correlated on the parent's
// current row (used by sibling-comparison expressions).
type ForkBinding struct {
	base
	Ground Binding
}

func NewForkBinding(parent Binding, ground Binding, s syn.Syntax) ForkBinding {
	return ForkBinding{base: newBase(parent, domain.VoidDomain{}, s), Ground: ground}
}

// AttachBinding introduces a scope explicitly joined to a target.
type AttachBinding struct {
	base
	Target Binding
}

func NewAttachBinding(parent Binding, target Binding, s syn.Syntax) AttachBinding {
	return AttachBinding{base: newBase(parent, domain.VoidDomain{}, s), Target: target}
}

// LocateBinding introduces a scope narrowed to rows matching an identity.
type LocateBinding struct {
	base
	Identity Binding
}

func NewLocateBinding(parent Binding, identity Binding, s syn.Syntax) LocateBinding {
	return LocateBinding{base: newBase(parent, domain.VoidDomain{}, s), Identity: identity}
}

// ClipBinding introduces a scope limited to the first N rows per group.
type ClipBinding struct {
	base
	Order  []Binding
	Limit  *int
	Offset *int
}

func NewClipBinding(parent Binding, order []Binding, limit, offset *int, s syn.Syntax) ClipBinding {
	return ClipBinding{base: newBase(parent, domain.VoidDomain{}, s), Order: order, Limit: limit, Offset: offset}
}

// CoverBinding introduces a scope that conceals its internal structure from
// outer lookups (used to box a fully-resolved sub-expression).
type CoverBinding struct {
	base
	Seed Binding
}

func NewCoverBinding(parent Binding, seed Binding, s syn.Syntax) CoverBinding {
	return CoverBinding{base: newBase(parent, seed.Domain(), s), Seed: seed}
}

// --- chaining/decorating bindings (same scope, extra annotation) ---

// SieveBinding attaches a boolean filter to its base scope.
type SieveBinding struct {
	base
	Filter Binding
}

func NewSieveBinding(parent Binding, filter Binding, s syn.Syntax) SieveBinding {
	return SieveBinding{base: newBase(parent, domain.VoidDomain{}, s), Filter: filter}
}

// SortBinding attaches an order/limit/offset to its base scope.
type SortBinding struct {
	base
	Order  []Binding
	Limit  *int
	Offset *int
}

func NewSortBinding(parent Binding, order []Binding, limit, offset *int, s syn.Syntax) SortBinding {
	return SortBinding{base: newBase(parent, domain.VoidDomain{}, s), Order: order, Limit: limit, Offset: offset}
}

// RescopingBinding re-anchors lookup to an explicitly given scope while
// preserving the syntax/domain of its parent.
type RescopingBinding struct {
	base
	Scope Binding
}

func NewRescopingBinding(parent Binding, scope Binding, s syn.Syntax) RescopingBinding {
	return RescopingBinding{base: newBase(parent, parent.Domain(), s), Scope: scope}
}

// SelectionBinding decorates its base scope with an explicit output record
// shape (`{...}`).
type SelectionBinding struct {
	base
	Elements []Binding
}

func NewSelectionBinding(parent Binding, elements []Binding, d domain.Domain, s syn.Syntax) SelectionBinding {
	return SelectionBinding{base: newBase(parent, d, s), Elements: elements}
}

// WildSelectionBinding decorates its base scope with a `*` wildcard output.
type WildSelectionBinding struct{ base }

func NewWildSelectionBinding(parent Binding, d domain.Domain, s syn.Syntax) WildSelectionBinding {
	return WildSelectionBinding{newBase(parent, d, s)}
}

// Direction is ascending (+1) or descending (-1).
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// DirectionBinding marks its base scope with a sort direction.
type DirectionBinding struct {
	base
	Dir Direction
}

func NewDirectionBinding(parent Binding, dir Direction, s syn.Syntax) DirectionBinding {
	return DirectionBinding{base: newBase(parent, parent.Domain(), s), Dir: dir}
}

// RerouteBinding forwards most probes to Target while keeping its own
// syntax/decoration.
type RerouteBinding struct {
	base
	Target Binding
}

func NewRerouteBinding(parent Binding, target Binding, s syn.Syntax) RerouteBinding {
	return RerouteBinding{base: newBase(parent, target.Domain(), s), Target: target}
}

// ReferenceRerouteBinding is like RerouteBinding but only affects `$name`
// reference lookup, leaving attribute lookup on the base chain.
type ReferenceRerouteBinding struct {
	base
	Target Binding
}

func NewReferenceRerouteBinding(parent Binding, target Binding, s syn.Syntax) ReferenceRerouteBinding {
	return ReferenceRerouteBinding{base: newBase(parent, parent.Domain(), s), Target: target}
}

// TitleBinding attaches a display title without altering lookup behavior.
type TitleBinding struct {
	base
	Title string
}

func NewTitleBinding(parent Binding, title string, s syn.Syntax) TitleBinding {
	return TitleBinding{base: newBase(parent, parent.Domain(), s), Title: title}
}

// AliasBinding attaches an explicit output name.
type AliasBinding struct {
	base
	Alias string
}

func NewAliasBinding(parent Binding, alias string, s syn.Syntax) AliasBinding {
	return AliasBinding{base: newBase(parent, parent.Domain(), s), Alias: alias}
}

// DefineBinding installs a named calculated attribute visible to
// AttributeProbe lookups against its base scope.
type DefineBinding struct {
	base
	Name string
	Body Binding
}

func NewDefineBinding(parent Binding, name string, body Binding, s syn.Syntax) DefineBinding {
	return DefineBinding{base: newBase(parent, parent.Domain(), s), Name: name, Body: body}
}

// DefineReferenceBinding installs a named `$reference` visible to
// ReferenceProbe lookups.
type DefineReferenceBinding struct {
	base
	Name string
	Body Binding
}

func NewDefineReferenceBinding(parent Binding, name string, body Binding, s syn.Syntax) DefineReferenceBinding {
	return DefineReferenceBinding{base: newBase(parent, parent.Domain(), s), Name: name, Body: body}
}

// DefineCollectionBinding installs a named attribute producing a nested
// collection (a table-valued calculated attribute).
type DefineCollectionBinding struct {
	base
	Name string
	Body Binding
}

func NewDefineCollectionBinding(parent Binding, name string, body Binding, s syn.Syntax) DefineCollectionBinding {
	return DefineCollectionBinding{base: newBase(parent, parent.Domain(), s), Name: name, Body: body}
}

// DefineLiftBinding installs the `^` lift target (the enclosing quotient's
// kernel) as an attribute of its base scope.
type DefineLiftBinding struct {
	base
	Body Binding
}

func NewDefineLiftBinding(parent Binding, body Binding, s syn.Syntax) DefineLiftBinding {
	return DefineLiftBinding{base: newBase(parent, parent.Domain(), s), Body: body}
}

// CollectBinding wraps a seed expression as an output segment; its Domain
// is always ListDomain{element}.
type CollectBinding struct {
	base
	Seed Binding
}

func NewCollectBinding(parent Binding, seed Binding, s syn.Syntax) CollectBinding {
	return CollectBinding{base: newBase(parent, domain.ListDomain{Item: seed.Domain()}, s), Seed: seed}
}

// CastBinding is an explicit user-requested domain cast.
type CastBinding struct {
	base
	Base Binding
}

func NewCastBinding(parent Binding, baseBinding Binding, target domain.Domain, s syn.Syntax) CastBinding {
	return CastBinding{base: newBase(parent, target, s), Base: baseBinding}
}

// ImplicitCastBinding is a binder-inserted coercion.
type ImplicitCastBinding struct {
	base
	Base Binding
}

func NewImplicitCastBinding(parent Binding, baseBinding Binding, target domain.Domain, s syn.Syntax) ImplicitCastBinding {
	return ImplicitCastBinding{base: newBase(parent, target, s), Base: baseBinding}
}

// LiteralBinding is a constant value.
type LiteralBinding struct {
	base
	Value interface{}
}

func NewLiteralBinding(parent Binding, value interface{}, d domain.Domain, s syn.Syntax) LiteralBinding {
	return LiteralBinding{base: newBase(parent, d, s), Value: value}
}

// Signature names a formula's dispatch key: its Protocol name and the
// declared arity category of each argument slot.
type Signature struct {
	Name  string
	Arity int
}

// FormulaBinding invokes a named function/operator over its arguments.
type FormulaBinding struct {
	base
	Signature Signature
	Args      []Binding
}

func NewFormulaBinding(parent Binding, sig Signature, args []Binding, d domain.Domain, s syn.Syntax) FormulaBinding {
	return FormulaBinding{base: newBase(parent, d, s), Signature: sig, Args: args}
}

// IdentityBinding is a table's natural-key chain, used both for `[...]`
// locate expressions and for surfacing an entity's identity to the client.
type IdentityBinding struct {
	base
	Elements []Binding
}

func NewIdentityBinding(parent Binding, elements []Binding, d domain.Domain, s syn.Syntax) IdentityBinding {
	return IdentityBinding{base: newBase(parent, d, s), Elements: elements}
}
