package encode

import (
	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
)

// These constructors exist alongside the internal composite-literal
// construction Relate/Encode use for themselves, so that core/tr/rewrite —
// a separate package, rebuilding Space/Code nodes with a new Base after
// simplification — can produce every variant without reaching into
// spaceBase/codeBase's unexported fields.

func NewCrossProductSpace(base Space, table *entity.Table) CrossProductSpace {
	return CrossProductSpace{spaceBase: spaceBase{base: base}, Table: table}
}

func NewJoinProductSpace(base Space, join entity.Join) JoinProductSpace {
	return JoinProductSpace{spaceBase: spaceBase{base: base}, Join: join}
}

func NewFilteredSpace(base Space, filter Code) FilteredSpace {
	return FilteredSpace{spaceBase: spaceBase{base: base}, Filter: filter}
}

func NewOrderedSpace(base Space, order []OrderElement, limit, offset *int) OrderedSpace {
	return OrderedSpace{spaceBase: spaceBase{base: base}, Order: order, Limit: limit, Offset: offset}
}

func NewQuotientSpace(base Space, seed Space, kernel []Code) QuotientSpace {
	return QuotientSpace{spaceBase: spaceBase{base: base}, Seed: seed, Kernel: kernel}
}

func NewComplementSpace(base Space, quotient *QuotientSpace) ComplementSpace {
	return ComplementSpace{spaceBase: spaceBase{base: base}, Quotient: quotient}
}

func NewClippedSpace(base Space, order []OrderElement, limit, offset *int) ClippedSpace {
	return ClippedSpace{spaceBase: spaceBase{base: base}, Order: order, Limit: limit, Offset: offset}
}

// NewFormulaCode builds a FormulaCode, letting callers outside this package
// (core/tr/rewrite's filter-merging, in particular) construct a derived
// formula invocation such as the conjunction of two adjacent filters.
func NewFormulaCode(d domain.Domain, sig binding.Signature, args []Code) FormulaCode {
	return FormulaCode{codeBase: codeBase{d}, Signature: sig, Args: args}
}
