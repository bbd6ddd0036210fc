// Package compile implements the compiler of spec.md §4.7: it lowers the
// Space tree of core/tr/encode into a Term tree, the relational-algebra IR
// that sits between Space/Code and the near-SQL Frame/Phrase IR produced by
// core/tr/assemble.
//
// The later `core` rewrite of HTSQL split the single Encode/Serialize pass
// the retained original_source/src/htsql/tr/encoder.py and
// .../tr/serializer.py show into encode -> compile -> assemble -> reduce
// -> serialize stages; this package is that compile stage, walking a Space
// bottom-up and assigning each node a `Term` the way encoder.py's `Encode`
// adapter walks a Binding bottom-up assigning each node a Space/Code, but
// tracking sharing with a plain structural signature cache instead of
// Python object identity, since core/tr/encode's Space values have no
// stable pointer identity to key on (see that package's own doc comment on
// the same constraint).
package compile

import (
	"fmt"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"

	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/tr/encode"
)

// Term is a node of the relational-algebra IR. Every non-root term has a
// Base, the term it refines; Tag uniquely identifies a term within one
// Compiler run, letting core/tr/assemble recognize when two compiled
// subtrees denote the same relational source (e.g. a nested segment whose
// chain bottoms out at a table the enclosing query already has in scope,
// spec.md §8 scenario 5).
type Term interface {
	Tag() int
	Base() Term
	isTerm()
}

type termBase struct {
	tag  int
	base Term
}

func (t termBase) Tag() int  { return t.tag }
func (t termBase) Base() Term { return t.base }
func (termBase) isTerm()     {}

// ScalarTerm is the one-row root every other term ultimately refines.
type ScalarTerm struct{ termBase }

// TableTerm reads every row of Table.
type TableTerm struct {
	termBase
	Table *entity.Table
}

// JoinTerm extends Base by following Join to a new table.
type JoinTerm struct {
	termBase
	Join entity.Join
}

// FilterTerm narrows Base to rows where Filter holds.
type FilterTerm struct {
	termBase
	Filter encode.Code
}

// OrderTerm attaches an explicit order and optional limit/offset to Base.
type OrderTerm struct {
	termBase
	Order  []encode.OrderElement
	Limit  *int
	Offset *int
}

// ProjectionTerm groups Seed by Kernel, one output row per distinct kernel
// value (the Term-level image of encode.QuotientSpace).
type ProjectionTerm struct {
	termBase
	Seed   Term
	Kernel []encode.Code
}

// ComplementTerm refers back to Quotient's seed rows sharing the current
// row's kernel value.
type ComplementTerm struct {
	termBase
	Quotient *ProjectionTerm
}

// ClipTerm narrows Base to the first N rows per group, ordered by Order.
type ClipTerm struct {
	termBase
	Order  []encode.OrderElement
	Limit  *int
	Offset *int
}

// SegmentTerm is the compiler's final product for one query: the term whose
// rows become output rows, and the element code evaluated against each.
type SegmentTerm struct {
	termBase
	Element encode.Code
}

// Compiler lowers Space (and Segment) values into Term trees. It memoizes
// compiled terms by a structural signature of the Space so that two
// occurrences of an equal Space — e.g. a nested segment's chain and the
// table it correlates back to in the enclosing query — compile to the
// identical Term (same Tag), letting core/tr/assemble detect the sharing.
type Compiler struct {
	nextTag int
	cache   map[string]Term
}

// New creates an empty Compiler.
func New() *Compiler {
	return &Compiler{cache: make(map[string]Term)}
}

func (c *Compiler) newTag() int {
	c.nextTag++
	return c.nextTag
}

// signature renders a Space to a string that is equal for structurally
// equal spaces. fmt's %v is safe here (unlike a reflection-based structural
// hash) because it never panics on a struct's unexported fields, only a
// plain reflect.Value.Interface() call would.
func signature(space encode.Space) string {
	return fmt.Sprintf("%T:%v", space, space)
}

// Compile lowers space to its Term, reusing a prior result for a
// structurally identical space.
func (c *Compiler) Compile(space encode.Space) (Term, error) {
	key := signature(space)
	if t, ok := c.cache[key]; ok {
		return t, nil
	}
	t, err := c.compile(space)
	if err != nil {
		return nil, err
	}
	c.cache[key] = t
	return t, nil
}

func (c *Compiler) compile(space encode.Space) (Term, error) {
	switch s := space.(type) {
	case encode.ScalarSpace:
		return ScalarTerm{termBase{tag: c.newTag()}}, nil
	case encode.CrossProductSpace:
		base, err := c.Compile(s.Base())
		if err != nil {
			return nil, err
		}
		return TableTerm{termBase{tag: c.newTag(), base: base}, s.Table}, nil
	case encode.JoinProductSpace:
		base, err := c.Compile(s.Base())
		if err != nil {
			return nil, err
		}
		return JoinTerm{termBase{tag: c.newTag(), base: base}, s.Join}, nil
	case encode.FilteredSpace:
		base, err := c.Compile(s.Base())
		if err != nil {
			return nil, err
		}
		return FilterTerm{termBase{tag: c.newTag(), base: base}, s.Filter}, nil
	case encode.OrderedSpace:
		base, err := c.Compile(s.Base())
		if err != nil {
			return nil, err
		}
		return OrderTerm{termBase{tag: c.newTag(), base: base}, s.Order, s.Limit, s.Offset}, nil
	case encode.QuotientSpace:
		base, err := c.Compile(s.Base())
		if err != nil {
			return nil, err
		}
		seed, err := c.Compile(s.Seed)
		if err != nil {
			return nil, err
		}
		return ProjectionTerm{termBase{tag: c.newTag(), base: base}, seed, s.Kernel}, nil
	case encode.ComplementSpace:
		base, err := c.Compile(s.Base())
		if err != nil {
			return nil, err
		}
		q, err := c.Compile(s.Quotient)
		if err != nil {
			return nil, err
		}
		qt, ok := q.(ProjectionTerm)
		if !ok {
			return nil, htsqlerrors.Compile.New("complement term used outside a projection")
		}
		return ComplementTerm{termBase{tag: c.newTag(), base: base}, &qt}, nil
	case encode.ClippedSpace:
		base, err := c.Compile(s.Base())
		if err != nil {
			return nil, err
		}
		return ClipTerm{termBase{tag: c.newTag(), base: base}, s.Order, s.Limit, s.Offset}, nil
	default:
		return nil, htsqlerrors.Compile.New(fmt.Sprintf("cannot compile space %T", space))
	}
}

// CompileSegment lowers an encoded Segment into its SegmentTerm.
func (c *Compiler) CompileSegment(seg *encode.Segment) (*SegmentTerm, error) {
	base, err := c.Compile(seg.Space)
	if err != nil {
		return nil, err
	}
	return &SegmentTerm{termBase{tag: c.newTag(), base: base}, seg.Element}, nil
}
