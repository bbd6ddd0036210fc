// Package assemble implements the assembler of spec.md §4.7: it turns the
// core/tr/compile Term tree into a Frame tree (near-SQL IR, spec.md §3.7),
// choosing which frame owns each scalar expression, assigning table
// aliases, and building select lists. The produce-time row cap
// (safe_patch) is not applied here: engine.go's safePatch applies it to the
// encoded segment before assembly.
//
// Frame/Phrase and the Scalar/Leaf/Branch/Segment frame kinds are named
// after original_source/src/htsql/tr/frame.py as imported by
// .../tr/serializer.py (ScalarFrame, LeafFrame, BranchFrame, SegmentFrame,
// Phrase, LiteralPhrase, ...); unlike core/tr/compile.Term and
// core/tr/encode.Space, Frame/Phrase here carry no entity.* pointers —
// every field is a plain string, int, or nested Frame/Phrase — so they are
// safe inputs to github.com/mitchellh/hashstructure (a direct teacher
// dependency), used by core/tr/reduce to detect structurally identical
// sub-frames.
package assemble

import (
	"fmt"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"

	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
	"github.com/prometheusresearch/htsql-go/core/tr/compile"
	"github.com/prometheusresearch/htsql-go/core/tr/encode"
)

// Phrase is a scalar SQL-expression node: a literal, a column reference
// into some frame alias, a formula call, or a correlated sub-select
// (spec.md §8 scenario 5).
type Phrase struct {
	Op     string // "lit" | "col" | "call" | "subquery"
	Value  interface{}
	Domain domain.Domain
	Alias  string // Op=="col": owning frame alias
	Column string // Op=="col": column name
	Name   string // Op=="call": formula name
	Args   []Phrase
	Nested *SegmentFrame // Op=="subquery"
}

// OrderPhrase pairs a sort expression with its direction.
type OrderPhrase struct {
	Phrase Phrase
	Desc   bool
}

// SelectItem is one named output column of a BranchFrame.
type SelectItem struct {
	Name string
	Expr Phrase
}

// Frame is a node of the near-SQL IR.
type Frame interface{ isFrame() }

// ScalarFrame denotes the one-row `SELECT 1` source (spec.md §4.8).
type ScalarFrame struct{}

func (ScalarFrame) isFrame() {}

// LeafFrame denotes a single physical table read under Alias.
type LeafFrame struct {
	Alias string
	Table string
}

func (LeafFrame) isFrame() {}

// JoinClause attaches Frame to a BranchFrame's FROM, either as an INNER
// join (On required), a LEFT join (optional target, On required), or a
// CROSS join (On empty, unrelated cross product).
type JoinClause struct {
	Frame Frame
	On    *Phrase
	Kind  string // "inner" | "left" | "cross"
}

// BranchFrame is a single SELECT: a FROM chain, WHERE/GROUP BY/HAVING/
// ORDER BY/LIMIT/OFFSET, and a select list (spec.md §4.8).
type BranchFrame struct {
	Alias       string
	From        Frame
	Joins       []JoinClause
	Filter      []Phrase
	Group       []Phrase
	GroupFilter []Phrase
	Order       []OrderPhrase
	Limit       *int
	Offset      *int
	Select      []SelectItem
}

func (BranchFrame) isFrame() {}

// OutputColumn names one top-level column of a SegmentFrame's result
// profile (spec.md §6 Product.profile).
type OutputColumn struct {
	Name   string
	Domain domain.Domain
}

// SegmentFrame is the assembler's final product for one query: its Body is
// a BranchFrame or ScalarFrame, and Columns names the output row shape.
type SegmentFrame struct {
	Body    Frame
	Columns []OutputColumn
}

func (SegmentFrame) isFrame() {}

// Assembler turns compiled Term trees into Frame trees.
type Assembler struct {
	compiler *compile.Compiler
}

// New creates an Assembler sharing compiler's Term signature cache, so a
// nested segment's chain that bottoms out at a table the enclosing query
// already compiled resolves to the identical Term (spec.md §8 scenario 5).
func New(compiler *compile.Compiler) *Assembler {
	return &Assembler{compiler: compiler}
}

// frameBuilder accumulates one BranchFrame's pieces while walking a Term
// chain; outer, when non-nil, maps an ancestor query's Term.Tag to its
// already-assigned alias, letting a nested segment correlate against it
// instead of re-reading the same table (spec.md §8 scenario 5).
type frameBuilder struct {
	outer      map[int]string
	tableAlias map[int]string
	aliasTable map[string]*entity.Table
	localAlias map[string]bool
	nextAliasN map[string]int
	from       Frame
	joins      []JoinClause
	filter     []Phrase
	group      []Phrase
	order      []OrderPhrase
	limit      *int
	offset     *int
	isAggregate bool
}

func newFrameBuilder(outer map[int]string) *frameBuilder {
	return &frameBuilder{
		outer:      outer,
		tableAlias: make(map[int]string),
		aliasTable: make(map[string]*entity.Table),
		localAlias: make(map[string]bool),
		nextAliasN: make(map[string]int),
	}
}

func (fb *frameBuilder) newAlias(table string) string {
	n := fb.nextAliasN[table]
	fb.nextAliasN[table]++
	alias := table
	if n > 0 {
		alias = fmt.Sprintf("%s_%d", table, n+1)
	}
	fb.localAlias[alias] = true
	return alias
}

// AssembleSegment compiles and assembles seg into a SegmentFrame. outer, if
// non-nil, is the enclosing query's Term.Tag -> alias map, used when seg
// is itself a nested correlated segment.
func (a *Assembler) AssembleSegment(seg *encode.Segment, outer map[int]string) (*SegmentFrame, error) {
	segTerm, err := a.compiler.CompileSegment(seg)
	if err != nil {
		return nil, err
	}
	fb := newFrameBuilder(outer)
	baseAlias, err := a.walk(fb, segTerm.Base())
	if err != nil {
		return nil, err
	}
	selects, columns, err := a.buildSelect(fb, segTerm.Element)
	if err != nil {
		return nil, err
	}
	if fb.isAggregate {
		// spec.md §8 scenario 2: grouping must key on the enclosing
		// table's full identity, not merely whichever columns the query
		// happened to select; selecting a non-unique column alone would
		// silently collapse distinct rows sharing that value. If a
		// quotient (ProjectionTerm) already populated fb.group with its
		// kernel, that kernel is itself the complete grouping key and
		// takes precedence over the table's identity.
		group := fb.group
		if len(group) == 0 {
			group = identityExprs(fb, baseAlias)
		}
		fb.group = dedupPhrases(append(group, nonAggregateExprs(selects)...))
	}
	body := a.buildFrame(fb, selects)
	return &SegmentFrame{Body: body, Columns: columns}, nil
}

func (a *Assembler) buildFrame(fb *frameBuilder, selects []SelectItem) Frame {
	if fb.from == nil {
		return ScalarFrame{}
	}
	alias := "q"
	if lf, ok := fb.from.(LeafFrame); ok {
		alias = lf.Alias
	}
	return BranchFrame{
		Alias:  alias,
		From:   fb.from,
		Joins:  fb.joins,
		Filter: fb.filter,
		Group:  fb.group,
		Order:  fb.order,
		Limit:  fb.limit,
		Offset: fb.offset,
		Select: selects,
	}
}

// nonAggregateExprs returns every select expression that is not itself an
// aggregate formula call: the scalar columns an aggregate query's GROUP BY
// must cover in addition to the enclosing table's identity (identityExprs,
// spec.md §8 scenario 2).
func nonAggregateExprs(selects []SelectItem) []Phrase {
	var group []Phrase
	for _, s := range selects {
		if s.Expr.Op == "call" && isAggregateName(s.Expr.Name) {
			continue
		}
		group = append(group, s.Expr)
	}
	return group
}

// identityExprs returns one Phrase per primary-key column of the table
// bound to alias, or nil if alias does not name a table (a scalar segment)
// or that table declares no primary key. This is the enclosing scope's
// full identity spec.md §8 scenario 2 requires grouping on, independent of
// which columns the query happens to select.
func identityExprs(fb *frameBuilder, alias string) []Phrase {
	table, ok := fb.aliasTable[alias]
	if !ok {
		return nil
	}
	pk := table.PrimaryKey()
	if pk == nil {
		return nil
	}
	exprs := make([]Phrase, len(pk.Columns))
	for i, col := range pk.Columns {
		exprs[i] = Phrase{Op: "col", Alias: alias, Column: col.Name(), Domain: columnDomain(col)}
	}
	return exprs
}

// dedupPhrases drops repeated "col" phrases (same alias and column),
// keeping the first occurrence; non-"col" phrases are never deduplicated
// since two syntactically distinct expressions are never guaranteed
// equivalent. Used to keep a GROUP BY list from repeating a column that is
// both part of the table's identity and explicitly selected.
func dedupPhrases(phrases []Phrase) []Phrase {
	seen := map[string]bool{}
	out := make([]Phrase, 0, len(phrases))
	for _, p := range phrases {
		if p.Op == "col" {
			key := p.Alias + "." + p.Column
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, p)
	}
	return out
}

func isAggregateName(name string) bool {
	switch name {
	case "count", "sum", "min", "max", "avg":
		return true
	default:
		return false
	}
}

// walk descends a Term's Base chain, registering table aliases and
// accumulating joins/filters/order/limit into fb, and returns the alias
// denoting the "current" table at this term (the most recently attached
// table in the chain).
func (a *Assembler) walk(fb *frameBuilder, t compile.Term) (string, error) {
	switch n := t.(type) {
	case compile.ScalarTerm:
		return "", nil
	case compile.TableTerm:
		if fb.outer != nil {
			if alias, ok := fb.outer[n.Tag()]; ok {
				fb.tableAlias[n.Tag()] = alias
				return alias, nil
			}
		}
		alias := fb.newAlias(n.Table.Name())
		fb.tableAlias[n.Tag()] = alias
		fb.aliasTable[alias] = n.Table
		if fb.from == nil {
			fb.from = LeafFrame{Alias: alias, Table: n.Table.Name()}
		} else {
			fb.joins = append(fb.joins, JoinClause{Frame: LeafFrame{Alias: alias, Table: n.Table.Name()}, Kind: "cross"})
		}
		return alias, nil
	case compile.JoinTerm:
		baseAlias, err := a.walk(fb, n.Base())
		if err != nil {
			return "", err
		}
		targetTable := n.Join.Target().Name()
		targetAlias := fb.newAlias(targetTable)
		fb.aliasTable[targetAlias] = n.Join.Target()
		on := joinOn(n.Join, baseAlias, targetAlias)
		if fb.localAlias[baseAlias] || fb.from == nil {
			kind := "inner"
			if !n.Join.IsExpanding() {
				kind = "left"
			}
			if fb.from == nil {
				fb.from = LeafFrame{Alias: targetAlias, Table: targetTable}
			} else {
				fb.joins = append(fb.joins, JoinClause{Frame: LeafFrame{Alias: targetAlias, Table: targetTable}, On: &on, Kind: kind})
			}
		} else {
			// baseAlias is an outer, correlated alias: there is no local
			// join partner for it, so the join condition becomes a WHERE
			// predicate correlating the nested query's own table to the
			// enclosing query's row (spec.md §8 scenario 5).
			if fb.from == nil {
				fb.from = LeafFrame{Alias: targetAlias, Table: targetTable}
			} else {
				fb.joins = append(fb.joins, JoinClause{Frame: LeafFrame{Alias: targetAlias, Table: targetTable}, Kind: "cross"})
			}
			fb.filter = append(fb.filter, on)
		}
		fb.tableAlias[n.Tag()] = targetAlias
		return targetAlias, nil
	case compile.FilterTerm:
		alias, err := a.walk(fb, n.Base())
		if err != nil {
			return "", err
		}
		ph, err := a.renderCode(fb, n.Filter)
		if err != nil {
			return "", err
		}
		fb.filter = append(fb.filter, ph)
		return alias, nil
	case compile.OrderTerm:
		alias, err := a.walk(fb, n.Base())
		if err != nil {
			return "", err
		}
		for _, oe := range n.Order {
			ph, err := a.renderCode(fb, oe.Code)
			if err != nil {
				return "", err
			}
			fb.order = append(fb.order, OrderPhrase{Phrase: ph, Desc: oe.Dir == binding.Descending})
		}
		if n.Limit != nil {
			fb.limit = n.Limit
		}
		if n.Offset != nil {
			fb.offset = n.Offset
		}
		return alias, nil
	case compile.ClipTerm:
		alias, err := a.walk(fb, n.Base())
		if err != nil {
			return "", err
		}
		for _, oe := range n.Order {
			ph, err := a.renderCode(fb, oe.Code)
			if err != nil {
				return "", err
			}
			fb.order = append(fb.order, OrderPhrase{Phrase: ph, Desc: oe.Dir == binding.Descending})
		}
		if n.Limit != nil {
			fb.limit = n.Limit
		}
		if n.Offset != nil {
			fb.offset = n.Offset
		}
		return alias, nil
	case compile.ProjectionTerm:
		alias, err := a.walk(fb, n.Base())
		if err != nil {
			return "", err
		}
		if _, err := a.walk(fb, n.Seed); err != nil {
			return "", err
		}
		for _, k := range n.Kernel {
			ph, err := a.renderCode(fb, k)
			if err != nil {
				return "", err
			}
			fb.group = append(fb.group, ph)
		}
		return alias, nil
	case compile.ComplementTerm:
		return a.walk(fb, n.Base())
	default:
		return "", htsqlerrors.Compile.New(fmt.Sprintf("cannot assemble term %T", t))
	}
}

// joinOn builds the equi-join predicate for join, comparing baseAlias's
// origin columns to targetAlias's target columns pairwise, ANDed together.
func joinOn(join entity.Join, baseAlias, targetAlias string) Phrase {
	pairs := join.Columns()
	var conds []Phrase
	for _, p := range pairs {
		left := Phrase{Op: "col", Alias: baseAlias, Column: p[0].Name(), Domain: columnDomain(p[0])}
		right := Phrase{Op: "col", Alias: targetAlias, Column: p[1].Name(), Domain: columnDomain(p[1])}
		conds = append(conds, Phrase{Op: "call", Name: "=", Args: []Phrase{left, right}, Domain: domain.BooleanDomain{}})
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return Phrase{Op: "call", Name: "&", Args: conds, Domain: domain.BooleanDomain{}}
}

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

// renderCode lowers an encode.Code into a Phrase, resolving ColumnUnit
// references against fb's already-walked table aliases (or, failing that,
// an enclosing query's aliases via fb.outer, for correlated references).
func (a *Assembler) renderCode(fb *frameBuilder, c encode.Code) (Phrase, error) {
	switch n := c.(type) {
	case encode.LiteralCode:
		return Phrase{Op: "lit", Value: n.Value, Domain: n.Domain()}, nil
	case encode.ColumnUnit:
		alias, err := a.aliasFor(fb, n.Space)
		if err != nil {
			return Phrase{}, err
		}
		return Phrase{Op: "col", Alias: alias, Column: n.Column.Name(), Domain: n.Domain()}, nil
	case encode.FormulaCode:
		args := make([]Phrase, len(n.Args))
		for i, arg := range n.Args {
			p, err := a.renderCode(fb, arg)
			if err != nil {
				return Phrase{}, err
			}
			args[i] = p
		}
		return Phrase{Op: "call", Name: n.Signature.Name, Args: args, Domain: n.Domain()}, nil
	case encode.AggregateUnit:
		pluralTerm, err := a.compiler.Compile(n.PluralSpace)
		if err != nil {
			return Phrase{}, err
		}
		if _, err := a.walk(fb, pluralTerm); err != nil {
			return Phrase{}, err
		}
		fb.isAggregate = true
		return a.renderCode(fb, n.Expression)
	case encode.NestedCode:
		nested, err := a.AssembleSegment(n.Segment, fb.tableAlias)
		if err != nil {
			return Phrase{}, err
		}
		return Phrase{Op: "subquery", Domain: n.Domain(), Nested: nested}, nil
	default:
		return Phrase{}, htsqlerrors.Compile.New(fmt.Sprintf("cannot assemble code %T", c))
	}
}

func (a *Assembler) aliasFor(fb *frameBuilder, space encode.Space) (string, error) {
	t, err := a.compiler.Compile(space)
	if err != nil {
		return "", err
	}
	if alias, ok := fb.tableAlias[t.Tag()]; ok {
		return alias, nil
	}
	if fb.outer != nil {
		if alias, ok := fb.outer[t.Tag()]; ok {
			return alias, nil
		}
	}
	return "", htsqlerrors.Compile.New("unresolved column reference: space not in scope")
}

// buildSelect renders element into the top-level select list. A
// RecordDomain element (a `{...}` selection or a whole-table row) expands
// to one SelectItem per field; any other element becomes a single column
// named "value".
func (a *Assembler) buildSelect(fb *frameBuilder, element encode.Code) ([]SelectItem, []OutputColumn, error) {
	if rd, ok := element.Domain().(domain.RecordDomain); ok {
		if fc, ok := element.(encode.FormulaCode); ok && len(fc.Args) == len(rd.Fields) {
			selects := make([]SelectItem, len(rd.Fields))
			columns := make([]OutputColumn, len(rd.Fields))
			for i, f := range rd.Fields {
				p, err := a.renderCode(fb, fc.Args[i])
				if err != nil {
					return nil, nil, err
				}
				selects[i] = SelectItem{Name: f.Name, Expr: p}
				columns[i] = OutputColumn{Name: f.Name, Domain: f.Domain}
			}
			return selects, columns, nil
		}
	}
	p, err := a.renderCode(fb, element)
	if err != nil {
		return nil, nil, err
	}
	return []SelectItem{{Name: "value", Expr: p}}, []OutputColumn{{Name: "value", Domain: element.Domain()}}, nil
}
