// Package bind implements the Binder of spec.md §4.4: a stateful
// traversal over core/syn's Syntax tree, backed by a lookup-scope stack,
// that produces the typed core/tr/binding graph the encoder consumes.
//
// Grounded on original_source/src/htsql/core/tr/bind.py's Bind adapter
// (dispatch by syntax variant) and its use()/call() entry points.
// Dispatch is a direct Go type switch rather than routed through
// core/adapter: the syntax ADT is closed and fixed (one production per
// grammar rule, spec.md §3.5), so — as with core/tr/lookup's probe
// dispatch — there is no open extension point to model through the
// registry; core/tr/fn is where the actually-extensible formula surface
// lives, and the binder delegates to it for every Function/Operator/Prefix
// syntax node.
package bind

import (
	"fmt"
	"strconv"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"

	"github.com/prometheusresearch/htsql-go/core/classify"
	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/syn"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
	"github.com/prometheusresearch/htsql-go/core/tr/fn"
	"github.com/prometheusresearch/htsql-go/core/tr/lookup"
	"github.com/prometheusresearch/htsql-go/core/tr/recipe"
	"github.com/prometheusresearch/htsql-go/internal/similartext"
)

// Binder holds the state a single compilation threads through binding:
// the catalog being queried and the formula registry used to resolve
// function/operator calls.
type Binder struct {
	Catalog *entity.Catalog
	Fn      *fn.Registry
}

// New creates a Binder over cat using the built-in formula registry.
func New(cat *entity.Catalog) *Binder {
	return &Binder{Catalog: cat, Fn: fn.NewRegistry()}
}

// Bind dispatches by syntax variant, optionally pushing scope first.
func (b *Binder) Bind(s syn.Syntax, scope binding.Binding) (binding.Binding, error) {
	switch n := s.(type) {
	case syn.Void:
		return binding.NewRootBinding(n), nil
	case syn.Skip:
		return b.bindSegment(n, scope)
	case syn.Identifier:
		return b.bindIdentifier(n, scope)
	case syn.Reference:
		return b.bindReference(n, scope)
	case syn.Integer:
		return binding.NewLiteralBinding(scope, n.Value, domain.IntegerDomain{}, n), nil
	case syn.Decimal:
		return binding.NewLiteralBinding(scope, n.Text, domain.DecimalDomain{}, n), nil
	case syn.Float:
		return binding.NewLiteralBinding(scope, n.Value, domain.FloatDomain{}, n), nil
	case syn.String:
		return binding.NewLiteralBinding(scope, n.Value, domain.UntypedDomain{}, n), nil
	case syn.Group:
		return b.Bind(n.Arm, scope)
	case syn.Compose:
		return b.bindCompose(n, scope)
	case syn.Function:
		return b.bindFunction(n, scope)
	case syn.Operator:
		return b.bindOperator(n, scope)
	case syn.Prefix:
		return b.bindPrefix(n, scope)
	case syn.Filter:
		return b.bindFilter(n, scope)
	case syn.Project:
		return b.bindProject(n, scope)
	case syn.Select:
		return b.bindSelect(n, scope)
	case syn.Record:
		return b.bindSelectionElements(n, scope)
	case syn.Locate:
		return b.bindLocate(n, scope)
	case syn.Assign:
		return b.bindAssign(n, scope)
	case syn.Unpack:
		return b.Bind(n.Base, scope)
	case syn.Lift:
		return b.bindLift(n, scope)
	default:
		return nil, htsqlerrors.Bind.New(fmt.Sprintf("cannot bind syntax node %T", s))
	}
}

// bindSegment handles a `/`-prefixed fragment and wraps the result in a
// CollectBinding (spec.md §4.4 "segment construction"). At the top level
// (scope == nil) the fragment is bound against a fresh application home; a
// `/`-prefixed fragment nested inside another expression (e.g. a selection
// element like `/school{code, /department{code}}`) instead binds against
// the enclosing scope, so the nested segment's chain navigates outward from
// the current row and the resulting space is correlated to it rather than
// re-querying from scratch (spec.md §8 scenario 5).
func (b *Binder) bindSegment(n syn.Skip, scope binding.Binding) (binding.Binding, error) {
	home := scope
	root := scope
	if home == nil {
		r := binding.NewRootBinding(n)
		root = r
		home = binding.NewHomeBinding(r, b.Catalog, n)
	}
	seed, err := b.Bind(n.Arm, home)
	if err != nil {
		return nil, err
	}
	return binding.NewCollectBinding(root, seed, n), nil
}

func (b *Binder) bindIdentifier(n syn.Identifier, scope binding.Binding) (binding.Binding, error) {
	if scope == nil {
		return nil, htsqlerrors.Bind.New("identifier outside any scope: " + n.Text)
	}
	r := lookup.Lookup(scope, lookup.AttributeProbe{Name: classify.Normalize(n.Text)})
	rec, ok := r.(recipe.Recipe)
	if !ok {
		return nil, b.unresolvedAttribute(n.Text, scope, n)
	}
	return b.Use(rec, n, scope)
}

// unresolvedAttribute reports an unknown attribute name together with a
// targeted "did you mean" list (spec.md §4.5, §8 scenario 6): every name
// AttributeSetProbe returns is a candidate, but only the closest ones
// (those tied at the smallest edit distance, within similartext's
// threshold) are reported as alternatives, so a catalog with hundreds of columns does
// not dump its entire attribute set into the error.
func (b *Binder) unresolvedAttribute(name string, scope binding.Binding, s syn.Syntax) error {
	set, _ := lookup.Lookup(scope, lookup.AttributeSetProbe{}).([]lookup.NameArity)
	var names []string
	for _, na := range set {
		names = append(names, na.Name)
	}
	normalized := lookup.NormalizeDidYouMean(names)
	target := lookup.NormalizeDidYouMean([]string{name})[0]
	alternatives := similartext.Rank(normalized, target)
	return htsqlerrors.WithAlternatives(
		htsqlerrors.Bind.New("unknown attribute: "+name), alternatives)
}

func (b *Binder) bindReference(n syn.Reference, scope binding.Binding) (binding.Binding, error) {
	r := lookup.Lookup(scope, lookup.ReferenceProbe{Name: n.Identifier})
	rec, ok := r.(recipe.Recipe)
	if !ok {
		return nil, htsqlerrors.Bind.New("unknown reference: $" + n.Identifier)
	}
	return b.Use(rec, n, scope)
}

// bindCompose binds Left in the outer scope, then binds Right using Left's
// result as the new scope — the fundamental chaining operator.
func (b *Binder) bindCompose(n syn.Compose, scope binding.Binding) (binding.Binding, error) {
	left, err := b.Bind(n.Left, scope)
	if err != nil {
		return nil, err
	}
	return b.Bind(n.Right, left)
}

func (b *Binder) bindFunction(n syn.Function, scope binding.Binding) (binding.Binding, error) {
	switch n.Identifier {
	case "sort":
		return b.bindSort(n, scope)
	case "limit":
		return b.bindLimit(n, scope)
	case "top":
		return b.bindTop(n, scope)
	}
	args := make([]binding.Binding, len(n.Args))
	argDomains := make([]domain.Domain, len(n.Args))
	for i, a := range n.Args {
		ab, err := b.Bind(a, scope)
		if err != nil {
			return nil, err
		}
		args[i] = ab
		argDomains[i] = ab.Domain()
	}
	f, err := b.Fn.Lookup(n.Identifier, len(n.Args))
	if err != nil {
		return nil, htsqlerrors.Bind.New("unknown function: " + n.Identifier)
	}
	resultDomain, err := f.InferDomain(argDomains)
	if err != nil {
		return nil, htsqlerrors.Wrap(err, "while binding "+n.Identifier+"()", nil)
	}
	sig := binding.Signature{Name: n.Identifier, Arity: len(args)}
	return binding.NewFormulaBinding(scope, sig, args, resultDomain, n), nil
}

// bindSort handles `.sort(arg, ...)`: each argument binds against scope (a
// bare attribute defaults to ascending order; a postfix `+`/`-` attribute
// binds to an explicit DirectionBinding via bindOperator's "dir+"/"dir-"
// cases), and the whole call decorates scope with a SortBinding.
func (b *Binder) bindSort(n syn.Function, scope binding.Binding) (binding.Binding, error) {
	if scope == nil {
		return nil, htsqlerrors.Bind.New("sort() used outside any scope")
	}
	order, err := b.bindEach(n.Args, scope)
	if err != nil {
		return nil, err
	}
	return binding.NewSortBinding(scope, order, nil, nil, n), nil
}

// bindLimit handles `.limit(N)`/`.limit(N, offset)`: both arguments must be
// non-negative integer literals (spec.md §8 scenario 3's `.limit(1)`), and
// the call decorates scope with a SortBinding carrying no explicit order
// (core/tr/encode.Relate merges it with any enclosing sort, and
// core/tr/rewrite folds adjacent SortBinding-derived OrderedSpaces into
// one).
func (b *Binder) bindLimit(n syn.Function, scope binding.Binding) (binding.Binding, error) {
	if scope == nil {
		return nil, htsqlerrors.Bind.New("limit() used outside any scope")
	}
	if len(n.Args) < 1 || len(n.Args) > 2 {
		return nil, htsqlerrors.Bind.New("limit() expects 1 or 2 arguments")
	}
	limit, err := b.intLiteralArg(n.Args[0])
	if err != nil {
		return nil, err
	}
	var offset *int
	if len(n.Args) == 2 {
		o, err := b.intLiteralArg(n.Args[1])
		if err != nil {
			return nil, err
		}
		offset = &o
	}
	return binding.NewSortBinding(scope, nil, &limit, offset, n), nil
}

// bindTop handles `.top(N)`/`.top(N, order...)`: like limit, but clips to
// the first N rows per enclosing group rather than the whole segment
// (spec.md §3.6's ClipBinding, used inside a plural selection element —
// e.g. `/school{code, department.top(2, name-)}` keeps only the two
// highest-named departments per school).
func (b *Binder) bindTop(n syn.Function, scope binding.Binding) (binding.Binding, error) {
	if scope == nil {
		return nil, htsqlerrors.Bind.New("top() used outside any scope")
	}
	if len(n.Args) < 1 {
		return nil, htsqlerrors.Bind.New("top() expects at least 1 argument")
	}
	limit, err := b.intLiteralArg(n.Args[0])
	if err != nil {
		return nil, err
	}
	order, err := b.bindEach(n.Args[1:], scope)
	if err != nil {
		return nil, err
	}
	return binding.NewClipBinding(scope, order, &limit, nil, n), nil
}

// intLiteralArg extracts a compile-time integer constant from a limit/
// offset/top argument; HTSQL requires these to be literal, not computed
// (spec.md §3.6).
func (b *Binder) intLiteralArg(s syn.Syntax) (int, error) {
	lit, ok := s.(syn.Integer)
	if !ok {
		return 0, htsqlerrors.Bind.New("expected an integer literal")
	}
	return int(lit.Value), nil
}

func (b *Binder) bindOperator(n syn.Operator, scope binding.Binding) (binding.Binding, error) {
	left, err := b.Bind(n.Left, scope)
	if err != nil {
		return nil, err
	}
	switch n.Symbol {
	case "dir+":
		return binding.NewDirectionBinding(left, binding.Ascending, n), nil
	case "dir-":
		return binding.NewDirectionBinding(left, binding.Descending, n), nil
	}
	var args []binding.Binding
	var argDomains []domain.Domain
	args = append(args, left)
	argDomains = append(argDomains, left.Domain())
	if n.Right != nil {
		right, err := b.Bind(n.Right, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, right)
		argDomains = append(argDomains, right.Domain())
	}
	f, err := b.Fn.Lookup(n.Symbol, len(args))
	if err != nil {
		return nil, htsqlerrors.Bind.New("unknown operator: " + n.Symbol)
	}
	resultDomain, err := f.InferDomain(argDomains)
	if err != nil {
		return nil, htsqlerrors.Wrap(err, "while binding operator "+n.Symbol, nil)
	}
	sig := binding.Signature{Name: n.Symbol, Arity: len(args)}
	return binding.NewFormulaBinding(scope, sig, args, resultDomain, n), nil
}

func (b *Binder) bindPrefix(n syn.Prefix, scope binding.Binding) (binding.Binding, error) {
	arm, err := b.Bind(n.Arm, scope)
	if err != nil {
		return nil, err
	}
	f, err := b.Fn.Lookup(n.Symbol, 1)
	if err != nil {
		return nil, htsqlerrors.Bind.New("unknown prefix operator: " + n.Symbol)
	}
	resultDomain, err := f.InferDomain([]domain.Domain{arm.Domain()})
	if err != nil {
		return nil, htsqlerrors.Wrap(err, "while binding prefix "+n.Symbol, nil)
	}
	sig := binding.Signature{Name: n.Symbol, Arity: 1}
	return binding.NewFormulaBinding(scope, sig, []binding.Binding{arm}, resultDomain, n), nil
}

// bindFilter binds Base, then Predicate with an implicit cast to Boolean,
// and wraps Base in a SieveBinding (spec.md §3.6).
func (b *Binder) bindFilter(n syn.Filter, scope binding.Binding) (binding.Binding, error) {
	base, err := b.Bind(n.Base, scope)
	if err != nil {
		return nil, err
	}
	pred, err := b.Bind(n.Predicate, base)
	if err != nil {
		return nil, err
	}
	pred, err = b.coerce(pred, domain.BooleanDomain{}, n.Predicate)
	if err != nil {
		return nil, err
	}
	return binding.NewSieveBinding(base, pred, n), nil
}

// bindProject binds Base as the quotient seed and Kernel in Base's scope,
// producing a QuotientBinding.
func (b *Binder) bindProject(n syn.Project, scope binding.Binding) (binding.Binding, error) {
	seed, err := b.Bind(n.Base, scope)
	if err != nil {
		return nil, err
	}
	kernelElements, err := b.bindKernelElements(n.Kernel, seed)
	if err != nil {
		return nil, err
	}
	return binding.NewQuotientBinding(scope, seed, kernelElements, n), nil
}

func (b *Binder) bindKernelElements(s syn.Syntax, seed binding.Binding) ([]binding.Binding, error) {
	if rec, ok := s.(syn.Record); ok {
		return b.bindEach(rec.Elements, seed)
	}
	one, err := b.Bind(s, seed)
	if err != nil {
		return nil, err
	}
	return []binding.Binding{one}, nil
}

func (b *Binder) bindEach(elements []syn.Syntax, scope binding.Binding) ([]binding.Binding, error) {
	out := make([]binding.Binding, len(elements))
	for i, e := range elements {
		bb, err := b.Bind(e, scope)
		if err != nil {
			return nil, err
		}
		out[i] = bb
	}
	return out, nil
}

// bindSelect binds Base then decorates it with an explicit output record
// shape built from Record. A column element's field is named after the
// column, a function or operator element after its name, and any other
// element by its position.
func (b *Binder) bindSelect(n syn.Select, scope binding.Binding) (binding.Binding, error) {
	base, err := b.Bind(n.Base, scope)
	if err != nil {
		return nil, err
	}
	rec, ok := n.Record.(syn.Record)
	if !ok {
		return nil, htsqlerrors.Bind.New("malformed selector")
	}
	elements, err := b.bindEach(rec.Elements, base)
	if err != nil {
		return nil, err
	}
	fields := make([]domain.RecordField, len(elements))
	for i, e := range elements {
		name := strconv.Itoa(i)
		switch el := e.(type) {
		case binding.ColumnBinding:
			name = el.Column.Name()
		case binding.FormulaBinding:
			name = el.Signature.Name
		}
		fields[i] = domain.RecordField{Name: name, Domain: e.Domain()}
	}
	return binding.NewSelectionBinding(base, elements, domain.RecordDomain{Fields: fields}, n), nil
}

func (b *Binder) bindSelectionElements(n syn.Record, scope binding.Binding) (binding.Binding, error) {
	elements, err := b.bindEach(n.Elements, scope)
	if err != nil {
		return nil, err
	}
	fields := make([]domain.RecordField, len(elements))
	for i, e := range elements {
		fields[i] = domain.RecordField{Name: strconv.Itoa(i), Domain: e.Domain()}
	}
	return binding.NewSelectionBinding(scope, elements, domain.RecordDomain{Fields: fields}, n), nil
}

// bindLocate binds Base then narrows it by identity using the scope's
// IdentityProbe recipe joined against the bound identity expression.
func (b *Binder) bindLocate(n syn.Locate, scope binding.Binding) (binding.Binding, error) {
	base, err := b.Bind(n.Base, scope)
	if err != nil {
		return nil, err
	}
	identity, err := b.Bind(n.Identity, base)
	if err != nil {
		return nil, err
	}
	return binding.NewLocateBinding(base, identity, n), nil
}

func (b *Binder) bindAssign(n syn.Assign, scope binding.Binding) (binding.Binding, error) {
	id, ok := n.LHS.(syn.Identifier)
	if !ok {
		return nil, htsqlerrors.Bind.New("calculated attribute name must be a plain identifier")
	}
	body, err := b.Bind(n.RHS, scope)
	if err != nil {
		return nil, err
	}
	return binding.NewDefineBinding(scope, classify.Normalize(id.Text), body, n), nil
}

// bindLift resolves the `^` lift syntax by requesting the DefineLift
// attribute installed by an enclosing quotient's kernel decoration.
func (b *Binder) bindLift(n syn.Lift, scope binding.Binding) (binding.Binding, error) {
	r := lookup.Lookup(scope, lookup.AttributeProbe{Name: "^"})
	rec, ok := r.(recipe.Recipe)
	if !ok {
		return nil, htsqlerrors.Bind.New("^ used outside a projection")
	}
	return b.Use(rec, n, scope)
}

// Use applies a recipe (spec.md §4.4's second dispatch stage, converting a
// recipe.Recipe into a concrete Binding).
func (b *Binder) Use(r recipe.Recipe, s syn.Syntax, scope binding.Binding) (binding.Binding, error) {
	switch rec := r.(type) {
	case recipe.Literal:
		return binding.NewLiteralBinding(scope, rec.Value, domain.UntypedDomain{}, s), nil
	case recipe.Binding:
		return rec.Binding, nil
	case recipe.FreeTable:
		return binding.NewTableBinding(scope, rec.Table, s), nil
	case recipe.AttachedTable:
		return binding.NewChainBinding(scope, rec.Joins, s), nil
	case recipe.Column:
		return binding.NewColumnBinding(scope, rec.Column, b.columnDomain(rec.Column), nil, s), nil
	case recipe.Identity:
		elements := make([]binding.Binding, len(rec.Elements))
		fields := make([]domain.Domain, len(rec.Elements))
		for i, e := range rec.Elements {
			eb, err := b.Use(e, s, scope)
			if err != nil {
				return nil, err
			}
			elements[i] = eb
			fields[i] = eb.Domain()
		}
		return binding.NewIdentityBinding(scope, elements, domain.IdentityDomain{Fields: fields}, s), nil
	case recipe.Closed:
		return b.Use(rec.Inner, s, scope)
	case recipe.Pinned:
		pinnedScope, err := b.Use(rec.Scope, s, scope)
		if err != nil {
			return nil, err
		}
		return b.Use(rec.Inner, s, pinnedScope)
	case recipe.Ambiguous:
		var names []string
		for range rec.Alternatives {
			names = append(names, "alternative")
		}
		return nil, htsqlerrors.WithAlternatives(htsqlerrors.Bind.New("ambiguous name"), names)
	case recipe.Invalid:
		return nil, htsqlerrors.Bind.New(rec.Reason)
	default:
		return nil, htsqlerrors.Bind.New(fmt.Sprintf("cannot use recipe %T", r))
	}
}

func (b *Binder) columnDomain(col *entity.Column) domain.Domain {
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

// coerce inserts an ImplicitCastBinding when bb's domain isn't already
// target, failing if the two domains don't coerce (spec.md §4.4).
func (b *Binder) coerce(bb binding.Binding, target domain.Domain, s syn.Syntax) (binding.Binding, error) {
	if bb.Domain().Equal(target) {
		return bb, nil
	}
	if _, ok := domain.Coerce(bb.Domain(), target); !ok {
		return nil, htsqlerrors.Bind.New(fmt.Sprintf("cannot coerce %s to %s", bb.Domain(), target))
	}
	return binding.NewImplicitCastBinding(bb.Base(), bb, target, s), nil
}
