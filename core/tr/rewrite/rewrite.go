// Package rewrite implements the rewrite pass of spec.md §4.7: a pure,
// structure-preserving simplification of a core/tr/encode.Segment's Space/
// Code tree, run after encoding and before core/tr/compile.
//
// No dedicated original_source module survives this pack's retained subset
// for this stage (the "core" tree's rewrite.py was not kept); the folds
// below work directly against core/tr/encode's Space/Code types: they merge
// an OrderedSpace sitting directly atop another OrderedSpace (merging
// sorts) and merge two adjacent FilteredSpaces. Redundant scopes are not
// eliminated. Adjacent-filter merging is the IR analogue of how
// core/tr/bind folds a `?`-filter onto its base scope one SieveBinding at
// a time (bind.go's bindFilter) — rewrite extends that
// folding to cases the binder cannot see, such as two FilteredSpace nodes
// left adjacent after a RescopingBinding/RerouteBinding unwraps to nothing.
package rewrite

import (
	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
	"github.com/prometheusresearch/htsql-go/core/tr/encode"
)

// RewriteSegment simplifies seg's Space tree and returns a new Segment.
func RewriteSegment(seg *encode.Segment) *encode.Segment {
	return &encode.Segment{Space: rewriteSpace(seg.Space), Element: seg.Element}
}

func rewriteSpace(space encode.Space) encode.Space {
	switch s := space.(type) {
	case encode.ScalarSpace:
		return s
	case encode.CrossProductSpace:
		return encode.NewCrossProductSpace(rewriteSpace(s.Base()), s.Table)
	case encode.JoinProductSpace:
		return encode.NewJoinProductSpace(rewriteSpace(s.Base()), s.Join)
	case encode.FilteredSpace:
		base := rewriteSpace(s.Base())
		// Merge two adjacent filters into one conjunction, eliminating a
		// redundant extra frame the assembler would otherwise have to
		// collapse later.
		if inner, ok := base.(encode.FilteredSpace); ok {
			return encode.NewFilteredSpace(inner.Base(), conjoin(inner.Filter, s.Filter))
		}
		return encode.NewFilteredSpace(base, s.Filter)
	case encode.OrderedSpace:
		base := rewriteSpace(s.Base())
		order, limit, offset := s.Order, s.Limit, s.Offset
		// An OrderedSpace directly atop another OrderedSpace has its outer
		// order take precedence; the inner one contributes nothing once an
		// outer explicit order is present (and outer's own Limit/Offset, if
		// unset, inherits the inner's).
		if inner, ok := base.(encode.OrderedSpace); ok {
			base = inner.Base()
			if len(order) == 0 {
				order = inner.Order
			}
			if limit == nil {
				limit = inner.Limit
			}
			if offset == nil {
				offset = inner.Offset
			}
		}
		return encode.NewOrderedSpace(base, order, limit, offset)
	case encode.QuotientSpace:
		return encode.NewQuotientSpace(rewriteSpace(s.Base()), rewriteSpace(s.Seed), s.Kernel)
	case encode.ComplementSpace:
		return encode.NewComplementSpace(rewriteSpace(s.Base()), s.Quotient)
	case encode.ClippedSpace:
		return encode.NewClippedSpace(rewriteSpace(s.Base()), s.Order, s.Limit, s.Offset)
	default:
		return space
	}
}

// conjoin ANDs two filter codes together via the built-in `&` formula, the
// same signature core/tr/fn registers for the `&` operator.
func conjoin(a, b encode.Code) encode.Code {
	return encode.NewFormulaCode(domain.BooleanDomain{}, binding.Signature{Name: "&", Arity: 2}, []encode.Code{a, b})
}
