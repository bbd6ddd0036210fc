// Package model implements the Node/Arc/Label graph of spec.md §3.3-§3.4:
// the layer classify (core/classify) walks to assign user-visible names to
// database objects and synthetic relationships.
//
// Grounded on original_source/src/htsql/core/model.py.
package model

import (
	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
)

// Node is a point in the model graph: the application home, a table, a
// scalar domain, or an error placeholder.
type Node interface {
	isNode()
}

// HomeNode is the single root node every top-level table arc originates
// from.
type HomeNode struct{}

// TableNode wraps a catalog table.
type TableNode struct {
	Table *entity.Table
}

// DomainNode wraps a scalar domain — the target of a ColumnArc.
type DomainNode struct {
	Domain domain.Domain
}

// UnknownNode stands for a node whose identity could not be determined.
type UnknownNode struct{}

// InvalidNode marks a node produced by a failed classification.
type InvalidNode struct{ Reason string }

func (HomeNode) isNode()    {}
func (TableNode) isNode()   {}
func (DomainNode) isNode()  {}
func (UnknownNode) isNode() {}
func (InvalidNode) isNode() {}

// Arc is a directed, possibly-parameterized edge out of a Node.
type Arc interface {
	Origin() Node
	Target() Node
	// Arity is the number of parameters the arc accepts (0 for a plain
	// attribute, non-zero for a calculated attribute with parameters).
	Arity() int
	IsExpanding() bool
	IsContracting() bool
}

// TableArc: home -> table.
type TableArc struct {
	Table *entity.Table
}

func (a TableArc) Origin() Node        { return HomeNode{} }
func (a TableArc) Target() Node        { return TableNode{Table: a.Table} }
func (a TableArc) Arity() int          { return 0 }
func (a TableArc) IsExpanding() bool   { return false }
func (a TableArc) IsContracting() bool { return false }

// ColumnArc: table -> domain. Link, if non-nil, is the arc that lets this
// column double as a reference to another table (spec.md §3.3).
type ColumnArc struct {
	Table  *entity.Table
	Column *entity.Column
	Link   Arc
}

func (a ColumnArc) Origin() Node        { return TableNode{Table: a.Table} }
func (a ColumnArc) Target() Node        { return DomainNode{} }
func (a ColumnArc) Arity() int          { return 0 }
func (a ColumnArc) IsExpanding() bool   { return true }
func (a ColumnArc) IsContracting() bool { return true }

// ChainArc: table -> table, composed of one or more entity.Joins.
type ChainArc struct {
	Table *entity.Table
	Joins []entity.Join
}

func (a ChainArc) Origin() Node { return TableNode{Table: a.Table} }
func (a ChainArc) Target() Node {
	if len(a.Joins) == 0 {
		return TableNode{Table: a.Table}
	}
	return TableNode{Table: a.Joins[len(a.Joins)-1].Target()}
}
func (a ChainArc) Arity() int { return 0 }

func (a ChainArc) IsExpanding() bool {
	for _, j := range a.Joins {
		if !j.IsExpanding() {
			return false
		}
	}
	return true
}

func (a ChainArc) IsContracting() bool {
	for _, j := range a.Joins {
		if !j.IsContracting() {
			return false
		}
	}
	return true
}

// IsDirect reports whether every join in the chain is a DirectJoin.
func (a ChainArc) IsDirect() bool {
	for _, j := range a.Joins {
		if _, ok := j.(entity.DirectJoin); !ok {
			return false
		}
	}
	return true
}

// IsReverse reports whether every join in the chain is a ReverseJoin.
func (a ChainArc) IsReverse() bool {
	for _, j := range a.Joins {
		if _, ok := j.(entity.ReverseJoin); !ok {
			return false
		}
	}
	return true
}

// SyntaxArc is a calculated attribute whose value is an HTSQL fragment
// (parsed lazily by the binder when the arc is used). Parameters, when
// present, define the arc's arity.
type SyntaxArc struct {
	Origination Node
	Parameters  []string // nil => not parameterized
	Source      string   // HTSQL source text of the calculated expression
}

func (a SyntaxArc) Origin() Node        { return a.Origination }
func (a SyntaxArc) Target() Node        { return UnknownNode{} }
func (a SyntaxArc) Arity() int          { return len(a.Parameters) }
func (a SyntaxArc) IsExpanding() bool   { return false }
func (a SyntaxArc) IsContracting() bool { return false }

// AmbiguousArc carries every candidate arc a name collided on; classify
// materializes one of these instead of picking arbitrarily, so the binder
// can report every alternative (spec.md §8 scenario 6).
type AmbiguousArc struct {
	ArityHint    *int
	Alternatives []Arc
}

func (a AmbiguousArc) Origin() Node {
	if len(a.Alternatives) == 0 {
		return UnknownNode{}
	}
	return a.Alternatives[0].Origin()
}
func (a AmbiguousArc) Target() Node { return UnknownNode{} }
func (a AmbiguousArc) Arity() int {
	if a.ArityHint != nil {
		return *a.ArityHint
	}
	return 0
}
func (a AmbiguousArc) IsExpanding() bool   { return false }
func (a AmbiguousArc) IsContracting() bool { return false }

// InvalidArc marks a failed classification outcome.
type InvalidArc struct {
	Reason string
	Origination Node
}

func (a InvalidArc) Origin() Node        { return a.Origination }
func (a InvalidArc) Target() Node        { return InvalidNode{Reason: a.Reason} }
func (a InvalidArc) Arity() int          { return 0 }
func (a InvalidArc) IsExpanding() bool   { return false }
func (a InvalidArc) IsContracting() bool { return false }

// Label names an arc for lookup purposes (spec.md §3.4).
type Label struct {
	Name     string
	Arc      Arc
	IsPublic bool
}
