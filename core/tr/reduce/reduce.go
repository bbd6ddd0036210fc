// Package reduce implements the frame-level simplification pass of
// spec.md §4.7: algebraic folds over core/tr/assemble's Frame/Phrase IR
// (constant folding, trivial-conjunct elision)
// plus structural deduplication of repeated sub-frames, run just before
// core/tr/serialize.
//
// Grounded on original_source/src/htsql/tr/serializer.py's Format helper
// methods (binary_op/is_null/join/select): their conditionals for omitting
// a clause entirely when it is absent (no WHERE, no GROUP BY, ...) are the
// same "nothing to simplify away" shape this package applies one level
// earlier, to the Phrase tree the serializer walks.
package reduce

import (
	"github.com/mitchellh/hashstructure"

	"github.com/prometheusresearch/htsql-go/core/tr/assemble"
)

// Reducer simplifies Frame/Phrase trees, deduplicating structurally equal
// sub-frames by a hashstructure signature — safe here because, unlike
// core/tr/compile.Term and core/tr/encode.Space, assemble.Frame/Phrase
// carry no entity.* pointers (see that package's doc comment).
type Reducer struct {
	seen map[uint64]assemble.Frame
}

// New creates a Reducer.
func New() *Reducer {
	return &Reducer{seen: make(map[uint64]assemble.Frame)}
}

// ReduceSegment simplifies seg's Body in place and returns it.
func (r *Reducer) ReduceSegment(seg *assemble.SegmentFrame) *assemble.SegmentFrame {
	seg.Body = r.reduceFrame(seg.Body)
	return seg
}

func (r *Reducer) reduceFrame(f assemble.Frame) assemble.Frame {
	switch n := f.(type) {
	case assemble.ScalarFrame, assemble.LeafFrame:
		return r.dedup(f)
	case assemble.BranchFrame:
		n.From = r.reduceFrame(n.From)
		for i := range n.Joins {
			n.Joins[i].Frame = r.reduceFrame(n.Joins[i].Frame)
			if n.Joins[i].On != nil {
				on := r.reducePhrase(*n.Joins[i].On)
				n.Joins[i].On = &on
			}
		}
		n.Filter = r.reduceConjuncts(n.Filter)
		for i := range n.Group {
			n.Group[i] = r.reducePhrase(n.Group[i])
		}
		n.GroupFilter = r.reduceConjuncts(n.GroupFilter)
		for i := range n.Order {
			n.Order[i].Phrase = r.reducePhrase(n.Order[i].Phrase)
		}
		for i := range n.Select {
			n.Select[i].Expr = r.reducePhrase(n.Select[i].Expr)
		}
		return r.dedup(n)
	default:
		return f
	}
}

// reduceConjuncts drops any literal-true conjunct (it contributes nothing
// to the AND) after reducing each, mirroring the original's "no where
// clause when there's nothing left to filter on" omission.
func (r *Reducer) reduceConjuncts(ps []assemble.Phrase) []assemble.Phrase {
	var out []assemble.Phrase
	for _, p := range ps {
		p = r.reducePhrase(p)
		if isLiteralTrue(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func isLiteralTrue(p assemble.Phrase) bool {
	if p.Op != "lit" {
		return false
	}
	b, ok := p.Value.(bool)
	return ok && b
}

func isLiteralFalse(p assemble.Phrase) bool {
	if p.Op != "lit" {
		return false
	}
	b, ok := p.Value.(bool)
	return ok && !b
}

// reducePhrase applies the algebraic identities a scalar expression can
// always satisfy regardless of which dialect eventually renders it:
// double negation, `NOT NULL` constant-folding for IS NULL over a
// literal, and AND/OR short-circuiting on a literal operand.
func (r *Reducer) reducePhrase(p assemble.Phrase) assemble.Phrase {
	for i := range p.Args {
		p.Args[i] = r.reducePhrase(p.Args[i])
	}
	switch p.Op {
	case "call":
		switch p.Name {
		case "!":
			if len(p.Args) == 1 && p.Args[0].Op == "call" && p.Args[0].Name == "!" {
				return p.Args[0].Args[0]
			}
		case "&":
			var kept []assemble.Phrase
			for _, a := range p.Args {
				if isLiteralFalse(a) {
					return a
				}
				if isLiteralTrue(a) {
					continue
				}
				kept = append(kept, a)
			}
			if len(kept) == 0 {
				return assemble.Phrase{Op: "lit", Value: true, Domain: p.Domain}
			}
			if len(kept) == 1 {
				return kept[0]
			}
			p.Args = kept
		case "|":
			var kept []assemble.Phrase
			for _, a := range p.Args {
				if isLiteralTrue(a) {
					return a
				}
				if isLiteralFalse(a) {
					continue
				}
				kept = append(kept, a)
			}
			if len(kept) == 0 {
				return assemble.Phrase{Op: "lit", Value: false, Domain: p.Domain}
			}
			if len(kept) == 1 {
				return kept[0]
			}
			p.Args = kept
		case "is_null":
			if len(p.Args) == 1 && p.Args[0].Op == "lit" {
				return assemble.Phrase{Op: "lit", Value: p.Args[0].Value == nil, Domain: p.Domain}
			}
		}
	case "subquery":
		if p.Nested != nil {
			p.Nested = r.ReduceSegment(p.Nested)
		}
	}
	return p
}

// dedup returns a previously reduced frame structurally identical to f, or
// f itself the first time its shape is seen.
func (r *Reducer) dedup(f assemble.Frame) assemble.Frame {
	h, err := hashstructure.Hash(f, nil)
	if err != nil {
		return f
	}
	if prior, ok := r.seen[h]; ok {
		return prior
	}
	r.seen[h] = f
	return f
}
