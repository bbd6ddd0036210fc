// Package encode implements the encoder of spec.md §4.6: translation of a
// core/tr/binding graph into a Space (relational carrier) + Code (scalar
// expression) structure, the first of the lower IRs listed in spec.md
// §3.7. Encoding is not cached: a binding that occurs more than once is
// encoded again each time (see Encoder).
//
// Grounded on original_source/src/htsql/tr/encoder.py's Encode/Relate
// adapters (the pre-`core` rewrite's single-file encode stage; the later
// `core` tree split this further into encode/compile/assemble/reduce,
// mirrored here by the separate core/tr/compile and core/tr/assemble
// packages).
package encode

import (
	"fmt"

	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
	"github.com/prometheusresearch/htsql-go/core/tr/fn"
)

// Space is a node of the relational carrier tree: every space has a base
// (nil for ScalarSpace, the root). Spaces define no spans/dominates
// relations.
type Space interface {
	Base() Space
	isSpace()
}

type spaceBase struct{ base Space }

func (s spaceBase) Base() Space { return s.base }
func (spaceBase) isSpace()      {}

// ScalarSpace is the one-row root space every other space is ultimately
// based on.
type ScalarSpace struct{ spaceBase }

// CrossProductSpace extends Base with every row of Table, unconstrained
// (a free table reference, e.g. the top-level `/school`).
type CrossProductSpace struct {
	spaceBase
	Table *entity.Table
}

// JoinProductSpace extends Base by following Join.
type JoinProductSpace struct {
	spaceBase
	Join entity.Join
}

// FilteredSpace narrows Base to rows where Filter is true.
type FilteredSpace struct {
	spaceBase
	Filter Code
}

// OrderElement pairs a sort code with its direction.
type OrderElement struct {
	Code Code
	Dir  binding.Direction
}

// OrderedSpace decorates Base with an explicit row order and an optional
// limit/offset window.
type OrderedSpace struct {
	spaceBase
	Order  []OrderElement
	Limit  *int
	Offset *int
}

// QuotientSpace groups Seed rows by Kernel, producing one row per distinct
// kernel value.
type QuotientSpace struct {
	spaceBase
	Seed   Space
	Kernel []Code
}

// ComplementSpace refers back to the Seed rows sharing the current
// QuotientSpace row's kernel value.
type ComplementSpace struct {
	spaceBase
	Quotient *QuotientSpace
}

// ClippedSpace narrows Base to the first N rows per group, ordered by
// Order (spec.md §3.6 ClipBinding).
type ClippedSpace struct {
	spaceBase
	Order  []OrderElement
	Limit  *int
	Offset *int
}

// Code is a scalar expression carried by some Space.
type Code interface {
	Domain() domain.Domain
	isCode()
}

type codeBase struct{ domain domain.Domain }

func (c codeBase) Domain() domain.Domain { return c.domain }
func (codeBase) isCode()                 {}

// LiteralCode is a constant.
type LiteralCode struct {
	codeBase
	Value interface{}
}

// ColumnUnit reads Column off the current row of Space.
type ColumnUnit struct {
	codeBase
	Column *entity.Column
	Space  Space
}

// FormulaCode invokes a named formula over Args (resolved at compile time
// via core/tr/fn).
type FormulaCode struct {
	codeBase
	Signature binding.Signature
	Args      []Code
}

// AggregateUnit summarizes Expression evaluated once per row of
// PluralSpace, grouped back to ScopeSpace (spec.md §3.7).
type AggregateUnit struct {
	codeBase
	Expression  Code
	PluralSpace Space
	ScopeSpace  Space
}

// Segment is the encoder's final product for one query: the space whose
// rows become output rows, and the code evaluated against each.
type Segment struct {
	Space   Space
	Element Code
}

// NestedCode wraps a fully encoded nested segment — a `/`-prefixed fragment
// appearing as a selection element, e.g. the inner `/department{code}` of
// `/school{code, /department{code}}` — for the assembler (core/tr/assemble)
// to lower into a correlated sub-select (spec.md §8 scenario 5). Its Domain
// is always the ListDomain the originating CollectBinding carries.
type NestedCode struct {
	codeBase
	Segment *Segment
}

// Encoder translates bindings to Space/Code. Unlike classify's per-table
// label cache (core/cache.Cache, safe because *entity.Table is a pointer
// key), Space/Code sharing is not memoized here: Binding is a Go value
// type (not a reference type, unlike the original's Python objects), so
// there is no stable identity to key a cache on without threading a
// separate id through the binder — encode simply recomputes, which is
// cheap relative to the SQL round-trip this IR ultimately serves.
type Encoder struct {
	fns *fn.Registry
}

// New creates an Encoder bound to a formula registry.
func New(fns *fn.Registry) *Encoder {
	return &Encoder{fns: fns}
}

// EncodeSegment is the entry point: it relates the CollectBinding's seed
// into a Space, wraps it in an OrderedSpace collecting any embedded
// direction bindings, and encodes the element (spec.md §4.6).
func (e *Encoder) EncodeSegment(cb binding.CollectBinding) (*Segment, error) {
	space, err := e.Relate(cb.Seed)
	if err != nil {
		return nil, err
	}
	order := e.collectOrder(cb.Seed)
	if len(order) > 0 {
		space = OrderedSpace{spaceBase: spaceBase{base: space}, Order: order}
	}
	elementBinding := e.unwrapToElement(cb.Seed)
	code, err := e.Encode(elementBinding)
	if err != nil {
		return nil, err
	}
	return &Segment{Space: space, Element: code}, nil
}

// unwrapToElement strips decorating bindings (Sieve, Sort) that
// `Relate` has already folded into the Space, leaving the binding whose
// per-row value becomes the output element.
func (e *Encoder) unwrapToElement(b binding.Binding) binding.Binding {
	switch n := b.(type) {
	case binding.SieveBinding:
		return e.unwrapToElement(n.Base())
	case binding.SortBinding:
		return e.unwrapToElement(n.Base())
	default:
		return b
	}
}

// encodeOrder encodes a SortBinding/ClipBinding's Order bindings into
// OrderElements: a DirectionBinding (from a postfix `+`/`-` sort argument)
// carries its own direction, anything else defaults to Ascending (a bare
// attribute named in `.sort()`/`.top()`).
func (e *Encoder) encodeOrder(order []binding.Binding) ([]OrderElement, error) {
	out := make([]OrderElement, 0, len(order))
	for _, ob := range order {
		dir := binding.Ascending
		target := ob
		if db, ok := ob.(binding.DirectionBinding); ok {
			dir = db.Dir
			target = db.Base()
		}
		code, err := e.Encode(target)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderElement{Code: code, Dir: dir})
	}
	return out, nil
}

func (e *Encoder) collectOrder(b binding.Binding) []OrderElement {
	sort, ok := e.findSort(b)
	if !ok {
		return nil
	}
	var out []OrderElement
	for _, ob := range sort.Order {
		if db, ok := ob.(binding.DirectionBinding); ok {
			code, err := e.Encode(db.Base())
			if err != nil {
				continue
			}
			out = append(out, OrderElement{Code: code, Dir: db.Dir})
		}
	}
	return out
}

func (e *Encoder) findSort(b binding.Binding) (binding.SortBinding, bool) {
	for cur := b; cur != nil; cur = cur.Base() {
		if sb, ok := cur.(binding.SortBinding); ok {
			return sb, true
		}
		if _, ok := cur.(binding.TableBinding); ok {
			break
		}
	}
	return binding.SortBinding{}, false
}

// Relate translates b into the Space it denotes (spec.md §4.6).
func (e *Encoder) Relate(b binding.Binding) (Space, error) {
	switch n := b.(type) {
	case binding.RootBinding:
		return ScalarSpace{}, nil
	case binding.HomeBinding:
		return ScalarSpace{}, nil
	case binding.TableBinding:
		base, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		return CrossProductSpace{spaceBase: spaceBase{base: base}, Table: n.Table}, nil
	case binding.ChainBinding:
		base, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		space := base
		for _, j := range n.Joins {
			space = JoinProductSpace{spaceBase: spaceBase{base: space}, Join: j}
		}
		return space, nil
	case binding.SieveBinding:
		base, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		filter, err := e.Encode(n.Filter)
		if err != nil {
			return nil, err
		}
		return FilteredSpace{spaceBase: spaceBase{base: base}, Filter: filter}, nil
	case binding.SortBinding:
		base, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		order, err := e.encodeOrder(n.Order)
		if err != nil {
			return nil, err
		}
		return OrderedSpace{spaceBase: spaceBase{base: base}, Order: order, Limit: n.Limit, Offset: n.Offset}, nil
	case binding.QuotientBinding:
		seed, err := e.Relate(n.Seed)
		if err != nil {
			return nil, err
		}
		base, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		kernel := make([]Code, len(n.Kernel))
		for i, k := range n.Kernel {
			c, err := e.Encode(k)
			if err != nil {
				return nil, err
			}
			kernel[i] = c
		}
		return QuotientSpace{spaceBase: spaceBase{base: base}, Seed: seed, Kernel: kernel}, nil
	case binding.ComplementBinding:
		base, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		q, err := e.Relate(n.Quotient)
		if err != nil {
			return nil, err
		}
		qs, ok := q.(QuotientSpace)
		if !ok {
			return nil, htsqlerrors.Encode.New("complement used outside a quotient")
		}
		return ComplementSpace{spaceBase: spaceBase{base: base}, Quotient: &qs}, nil
	case binding.ClipBinding:
		base, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		order, err := e.encodeOrder(n.Order)
		if err != nil {
			return nil, err
		}
		return ClippedSpace{spaceBase: spaceBase{base: base}, Order: order, Limit: n.Limit, Offset: n.Offset}, nil
	case binding.RescopingBinding:
		return e.Relate(n.Scope)
	case binding.RerouteBinding:
		return e.Relate(n.Target)
	case binding.SelectionBinding:
		return e.Relate(n.Base())
	case binding.DefineBinding:
		return e.Relate(n.Base())
	case binding.LocateBinding:
		base, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		identity, err := e.Encode(n.Identity)
		if err != nil {
			return nil, err
		}
		return FilteredSpace{spaceBase: spaceBase{base: base}, Filter: identity}, nil
	default:
		// Scalar-valued bindings (ColumnBinding, LiteralBinding,
		// FormulaBinding, CastBinding, ...) do not introduce a space of
		// their own; the space they are read against is their base scope.
		base := b.Base()
		if base == nil {
			return nil, htsqlerrors.Encode.New(fmt.Sprintf("cannot relate binding %T", b))
		}
		return e.Relate(base)
	}
}

// Encode translates b into the Code it denotes (spec.md §4.6).
func (e *Encoder) Encode(b binding.Binding) (Code, error) {
	switch n := b.(type) {
	case binding.LiteralBinding:
		return LiteralCode{codeBase: codeBase{n.Domain()}, Value: n.Value}, nil
	case binding.ColumnBinding:
		space, err := e.Relate(n.Base())
		if err != nil {
			return nil, err
		}
		return ColumnUnit{codeBase: codeBase{n.Domain()}, Column: n.Column, Space: space}, nil
	case binding.FormulaBinding:
		args := make([]Code, len(n.Args))
		for i, a := range n.Args {
			c, err := e.Encode(a)
			if err != nil {
				return nil, err
			}
			args[i] = c
		}
		return FormulaCode{codeBase: codeBase{n.Domain()}, Signature: n.Signature, Args: args}, nil
	case binding.CastBinding:
		return e.Encode(n.Base)
	case binding.ImplicitCastBinding:
		inner, err := e.Encode(n.Base)
		if err != nil {
			return nil, err
		}
		return e.convert(inner, n.Domain())
	case binding.KernelBinding:
		space, err := e.Relate(n.Quotient)
		if err != nil {
			return nil, err
		}
		qs := space.(QuotientSpace)
		return qs.Kernel[n.Index], nil
	case binding.IdentityBinding:
		return e.encodeIdentity(n)
	case binding.TableBinding:
		return e.encodeRow(n)
	case binding.ChainBinding:
		return e.encodeRow(n)
	case binding.SelectionBinding:
		if len(n.Elements) == 1 {
			return e.Encode(n.Elements[0])
		}
		return e.encodeIdentity(binding.NewIdentityBinding(n.Base(), n.Elements, n.Domain(), n.Syntax()))
	case binding.DefineBinding:
		return e.Encode(n.Body)
	case binding.RerouteBinding:
		return e.Encode(n.Target)
	case binding.CollectBinding:
		seg, err := e.EncodeSegment(n)
		if err != nil {
			return nil, err
		}
		return NestedCode{codeBase: codeBase{n.Domain()}, Segment: seg}, nil
	default:
		return nil, htsqlerrors.Encode.New(fmt.Sprintf("cannot encode binding %T", b))
	}
}

// encodeRow encodes a whole-table-row binding (a TableBinding or a
// ChainBinding navigated to a table) as a FormulaCode enumerating every
// column of the target table, typed as a RecordDomain — the row-as-tuple
// reading spec.md §4.6 gives a table-scoped binding used as a final
// segment element (e.g. `/school?code='X'` selects whole school rows).
func (e *Encoder) encodeRow(b binding.Binding) (Code, error) {
	table, err := e.rowTable(b)
	if err != nil {
		return nil, err
	}
	space, err := e.Relate(b)
	if err != nil {
		return nil, err
	}
	columns := table.Columns()
	fields := make([]domain.RecordField, len(columns))
	args := make([]Code, len(columns))
	for i, col := range columns {
		d := columnDomain(col)
		fields[i] = domain.RecordField{Name: col.Name(), Domain: d}
		args[i] = ColumnUnit{codeBase: codeBase{d}, Column: col, Space: space}
	}
	rd := domain.RecordDomain{Fields: fields}
	return FormulaCode{codeBase: codeBase{rd}, Signature: binding.Signature{Name: "row", Arity: len(args)}, Args: args}, nil
}

// rowTable finds the table a whole-row binding denotes: a TableBinding
// names it directly, a ChainBinding names it as the target of its last
// join.
func (e *Encoder) rowTable(b binding.Binding) (*entity.Table, error) {
	switch n := b.(type) {
	case binding.TableBinding:
		return n.Table, nil
	case binding.ChainBinding:
		if len(n.Joins) == 0 {
			return nil, htsqlerrors.Encode.New("chain binding with no joins")
		}
		return n.Joins[len(n.Joins)-1].Target(), nil
	default:
		return nil, htsqlerrors.Encode.New(fmt.Sprintf("cannot determine row table for %T", b))
	}
}

// columnDomain maps an entity.Column's stored domain name to a core/domain
// value, mirroring core/tr/bind.Binder.columnDomain (kept independent
// since core/tr/encode and core/tr/bind do not import each other).
func columnDomain(col *entity.Column) domain.Domain {
	switch col.DomainName() {
	case "integer":
		return domain.IntegerDomain{}
	case "float":
		return domain.FloatDomain{}
	case "decimal":
		return domain.DecimalDomain{}
	case "boolean":
		return domain.BooleanDomain{}
	case "date":
		return domain.DateDomain{}
	case "time":
		return domain.TimeDomain{}
	case "datetime":
		return domain.DateTimeDomain{}
	default:
		return domain.TextDomain{}
	}
}

func (e *Encoder) encodeIdentity(n binding.IdentityBinding) (Code, error) {
	args := make([]Code, len(n.Elements))
	for i, el := range n.Elements {
		c, err := e.Encode(el)
		if err != nil {
			return nil, err
		}
		args[i] = c
	}
	return FormulaCode{codeBase: codeBase{n.Domain()}, Signature: binding.Signature{Name: "identity", Arity: len(args)}, Args: args}, nil
}

// convert applies the ConvertBinding casting rule of spec.md §4.6: a cast
// from record-like to boolean becomes "at least one non-null required
// column is non-null"; all other casts go through the registered
// `cast_to_<domain>` formula.
func (e *Encoder) convert(inner Code, target domain.Domain) (Code, error) {
	if _, ok := target.(domain.BooleanDomain); ok {
		if _, ok := inner.Domain().(domain.RecordDomain); ok {
			isNull := FormulaCode{codeBase: codeBase{target}, Signature: binding.Signature{Name: "is_null", Arity: 1}, Args: []Code{inner}}
			return FormulaCode{codeBase: codeBase{target}, Signature: binding.Signature{Name: "!", Arity: 1}, Args: []Code{isNull}}, nil
		}
	}
	name := "cast_to_" + target.String()
	f, err := e.fns.Lookup(name, 1)
	if err != nil {
		e.fns.RegisterCast(name, target)
		f, err = e.fns.Lookup(name, 1)
		if err != nil {
			return nil, htsqlerrors.Encode.New("no cast available to " + target.String())
		}
	}
	return FormulaCode{codeBase: codeBase{target}, Signature: binding.Signature{Name: f.Name(), Arity: 1}, Args: []Code{inner}}, nil
}
