// Package domain implements the HTSQL type system (spec.md §3.1, §6) and the
// coerce lattice the binder (§4.4) and encoder (§4.6) use to unify operand
// types. Semantics follow original_source/src/htsql/core/domain.py's class
// hierarchy; scalar best-effort conversion (distinct from the typed lattice
// coercion below) is delegated to github.com/spf13/cast, a direct teacher
// dependency, instead of hand-rolled per-type parsing.
package domain

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"
)

// Domain is the HTSQL type of a value. Every concrete domain implements
// this small interface; equality between domains is structural (e.g. two
// EnumDomains with the same labels in the same order are equal).
type Domain interface {
	// String renders the domain for diagnostics ("Integer", "Enum('a','b')").
	String() string
	// Equal reports whether d and other denote the same domain.
	Equal(other Domain) bool
}

// Scalar domains, exported as the emitted-to-consumer set in spec.md §6.
type (
	VoidDomain     struct{}
	UntypedDomain  struct{}
	BooleanDomain  struct{}
	IntegerDomain  struct{}
	FloatDomain    struct{}
	DecimalDomain  struct{}
	TextDomain     struct{}
	DateDomain     struct{}
	TimeDomain     struct{}
	DateTimeDomain struct{}
)

func (VoidDomain) String() string     { return "Void" }
func (UntypedDomain) String() string  { return "Untyped" }
func (BooleanDomain) String() string  { return "Boolean" }
func (IntegerDomain) String() string  { return "Integer" }
func (FloatDomain) String() string    { return "Float" }
func (DecimalDomain) String() string  { return "Decimal" }
func (TextDomain) String() string     { return "Text" }
func (DateDomain) String() string     { return "Date" }
func (TimeDomain) String() string     { return "Time" }
func (DateTimeDomain) String() string { return "DateTime" }

func (VoidDomain) Equal(o Domain) bool     { _, ok := o.(VoidDomain); return ok }
func (UntypedDomain) Equal(o Domain) bool  { _, ok := o.(UntypedDomain); return ok }
func (BooleanDomain) Equal(o Domain) bool  { _, ok := o.(BooleanDomain); return ok }
func (IntegerDomain) Equal(o Domain) bool  { _, ok := o.(IntegerDomain); return ok }
func (FloatDomain) Equal(o Domain) bool    { _, ok := o.(FloatDomain); return ok }
func (DecimalDomain) Equal(o Domain) bool  { _, ok := o.(DecimalDomain); return ok }
func (TextDomain) Equal(o Domain) bool     { _, ok := o.(TextDomain); return ok }
func (DateDomain) Equal(o Domain) bool     { _, ok := o.(DateDomain); return ok }
func (TimeDomain) Equal(o Domain) bool     { _, ok := o.(TimeDomain); return ok }
func (DateTimeDomain) Equal(o Domain) bool { _, ok := o.(DateTimeDomain); return ok }

// EnumDomain is a closed set of textual labels.
type EnumDomain struct {
	Labels []string
}

func (d EnumDomain) String() string {
	return fmt.Sprintf("Enum%v", d.Labels)
}

func (d EnumDomain) Equal(o Domain) bool {
	other, ok := o.(EnumDomain)
	if !ok || len(other.Labels) != len(d.Labels) {
		return false
	}
	for i, l := range d.Labels {
		if other.Labels[i] != l {
			return false
		}
	}
	return true
}

// IdentityDomain carries the natural-key signature of a table scope: the
// ordered domains of the columns/links that make up its identity.
type IdentityDomain struct {
	Fields []Domain
}

func (d IdentityDomain) String() string { return "Identity" }

func (d IdentityDomain) Equal(o Domain) bool {
	other, ok := o.(IdentityDomain)
	if !ok || len(other.Fields) != len(d.Fields) {
		return false
	}
	for i, f := range d.Fields {
		if !f.Equal(other.Fields[i]) {
			return false
		}
	}
	return true
}

// ListDomain is a homogeneous collection of Item.
type ListDomain struct {
	Item Domain
}

func (d ListDomain) String() string { return fmt.Sprintf("List(%s)", d.Item) }

func (d ListDomain) Equal(o Domain) bool {
	other, ok := o.(ListDomain)
	return ok && d.Item.Equal(other.Item)
}

// RecordField is one named, typed slot of a RecordDomain.
type RecordField struct {
	Name   string
	Domain Domain
}

// RecordDomain is a fixed, ordered tuple of named fields — the shape every
// CollectBinding (§3.6) ultimately produces at the segment boundary.
type RecordDomain struct {
	Fields []RecordField
}

func (d RecordDomain) String() string {
	return fmt.Sprintf("Record%v", d.Fields)
}

func (d RecordDomain) Equal(o Domain) bool {
	other, ok := o.(RecordDomain)
	if !ok || len(other.Fields) != len(d.Fields) {
		return false
	}
	for i, f := range d.Fields {
		if f.Name != other.Fields[i].Name || !f.Domain.Equal(other.Fields[i].Domain) {
			return false
		}
	}
	return true
}

// rank places every domain on the coercion lattice described in spec.md §8
// ("coerce is associative and commutative over the comparable-domain
// lattice"). Higher rank dominates in a Coerce call between two scalars.
func rank(d Domain) int {
	switch d.(type) {
	case UntypedDomain:
		return 0
	case BooleanDomain:
		return 1
	case IntegerDomain:
		return 2
	case FloatDomain:
		return 3
	case DecimalDomain:
		return 4
	case DateDomain:
		return 5
	case TimeDomain:
		return 6
	case DateTimeDomain:
		return 7
	case TextDomain:
		return 8
	default:
		return -1
	}
}

// Coerce returns the least domain that is >= both a and b on the comparable
// scalar lattice, or ok=false if no such domain exists (an incompatible
// pair). Coerce(d, d) == d always holds, and Coerce is commutative.
func Coerce(a, b Domain) (Domain, bool) {
	if a.Equal(b) {
		return a, true
	}
	if _, ok := a.(UntypedDomain); ok {
		return b, true
	}
	if _, ok := b.(UntypedDomain); ok {
		return a, true
	}
	ra, rb := rank(a), rank(b)
	if ra < 0 || rb < 0 {
		return nil, false
	}
	// Text absorbs everything; otherwise take the higher-ranked numeric
	// domain when both operands are on the numeric sub-lattice.
	if _, ok := a.(TextDomain); ok {
		return a, true
	}
	if _, ok := b.(TextDomain); ok {
		return b, true
	}
	if ra >= rb {
		return a, true
	}
	return b, true
}

// Convert best-effort converts a raw, driver-decoded value into the Go
// representation for domain d, delegating scalar parsing to spf13/cast.
func Convert(d Domain, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch d.(type) {
	case BooleanDomain:
		return cast.ToBoolE(v)
	case IntegerDomain:
		return cast.ToInt64E(v)
	case FloatDomain:
		return cast.ToFloat64E(v)
	case DecimalDomain:
		return cast.ToStringE(v) // decimal text form preserved verbatim
	case TextDomain, EnumDomain:
		return cast.ToStringE(v)
	case DateDomain:
		return cast.ToTimeE(v)
	case TimeDomain:
		return cast.ToTimeE(v)
	case DateTimeDomain:
		return cast.ToTimeE(v)
	default:
		return v, nil
	}
}

// IsZero reports the HTSQL "empty"/zero-ish value for a domain, used by the
// boolean cast rule ("at least one non-null required column is non-null").
func IsZero(d Domain, v interface{}) bool {
	if v == nil {
		return true
	}
	switch d.(type) {
	case BooleanDomain:
		b, _ := cast.ToBoolE(v)
		return !b
	default:
		return false
	}
}

// SortFields returns field names sorted for deterministic diagnostics
// ("did you mean" candidate lists, §4.5).
func SortFields(fields []RecordField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	sort.Strings(names)
	return names
}
