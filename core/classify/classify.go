// Package classify implements spec.md §4.2: for each model.Node, compute
// the unique set of labels (user-visible names) for its outgoing arcs,
// using a weighted bidding algorithm over candidate arcs.
//
// Grounded verbatim on original_source/src/htsql/core/classify.py's
// Classify/Trace/Call/Order adapters (see SPEC_FULL.md §C.1, §C.2): weights
// are processed high-to-low, names within a weight bucket are ordered by
// (length, lexicographic), and a (name, arity) signature becomes an
// AmbiguousArc rather than being resolved arbitrarily when more than one
// arc bids for it, or when its only bidder already holds a name from an
// earlier bid.
// NFC normalization of bid names uses golang.org/x/text/unicode/norm
// instead of a hand-rolled Unicode normalizer.
package classify

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/prometheusresearch/htsql-go/core/cache"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/model"
	"github.com/prometheusresearch/htsql-go/internal/text_distance"
)

// Hooks is the set of tweak.override-style extension points a catalog can
// register (SPEC_FULL.md §C.6): synthetic bid contributors for the home and
// table nodes, and table/column exclusion predicates consulted before
// tracing. Registered once per catalog by the owning Engine, not threaded
// through every Bind/Lookup call, matching how the original's
// OverrideClassify installs itself as the active Classify realization for
// the whole application rather than as a per-call argument.
type Hooks struct {
	ClassBids     func(model.Arc) []Bid
	FieldBids     func(model.Arc) []Bid
	ExcludeTable  func(*entity.Table) bool
	ExcludeColumn func(*entity.Column) bool
}

var hookRegistry sync.Map // *entity.Catalog -> Hooks

// Register installs hooks as the active tweak.override extension for cat.
// A nil Hooks value (or never registering) leaves classification unmodified.
func Register(cat *entity.Catalog, hooks Hooks) {
	hookRegistry.Store(cat, hooks)
}

// Unregister removes any hooks registered for cat.
func Unregister(cat *entity.Catalog) {
	hookRegistry.Delete(cat)
}

func hooksFor(cat *entity.Catalog) Hooks {
	if cat == nil {
		return Hooks{}
	}
	if v, ok := hookRegistry.Load(cat); ok {
		return v.(Hooks)
	}
	return Hooks{}
}

// labelCache memoizes ClassifyHome/ClassifyTable results per catalog/table
// pointer (spec.md §4.2 "the result is memoized per node under the app's
// cache"). Keying on the *entity.Catalog/*entity.Table pointer itself is
// safe for Go's map/sync.Map comparability rules regardless of what the
// pointee contains, unlike keying on a Binding value (core/tr/encode).
// Overridden classification (overrides != nil) bypasses the cache, since
// tweak.override results are not safe to share across distinct override
// functions.
var labelCache = &cache.Cache{}

var nonAlnum = regexp.MustCompile(`(^[0-9])|[^\p{L}\p{N}]`)

// Normalize converts an arbitrary bid name into a valid HTSQL identifier:
// NFC form, lowercase, non-alphanumerics replaced with underscores, and a
// leading underscore inserted before an initial digit (spec.md §3.4).
func Normalize(name string) string {
	name = norm.NFC.String(name)
	name = strings.ToLower(name)
	return nonAlnum.ReplaceAllStringFunc(name, func(m string) string {
		if m != "" && m[0] >= '0' && m[0] <= '9' {
			return "_" + m
		}
		return "_"
	})
}

type bid struct {
	name   string
	weight int
}

// ClassifyHome computes the label set for the application home node: one
// TableArc per table in every schema of cat. If overrides is nil, any
// Hooks.ClassBids registered for cat via Register are consulted instead.
func ClassifyHome(cat *entity.Catalog, overrides func(model.Arc) []Bid) []model.Label {
	if overrides == nil {
		overrides = hooksFor(cat).ClassBids
	}
	if overrides != nil {
		return classifyArcs(model.HomeNode{}, traceHome(cat), overrides)
	}
	v, _ := labelCache.Once(cat, func() (interface{}, error) {
		return classifyArcs(model.HomeNode{}, traceHome(cat), nil), nil
	})
	return v.([]model.Label)
}

// ClassifyTable computes the label set for a table node: one ColumnArc per
// column, one ChainArc per outgoing and incoming single-join foreign key.
// If overrides is nil, any Hooks.FieldBids registered for table's owning
// catalog are consulted instead.
func ClassifyTable(table *entity.Table, overrides func(model.Arc) []Bid) []model.Label {
	if overrides == nil {
		overrides = hooksFor(table.Schema().Catalog()).FieldBids
	}
	if overrides != nil {
		return classifyArcs(model.TableNode{Table: table}, traceTable(table), overrides)
	}
	v, _ := labelCache.Once(table, func() (interface{}, error) {
		return classifyArcs(model.TableNode{Table: table}, traceTable(table), nil), nil
	})
	return v.([]model.Label)
}

// classifyArcs runs the bid/resolve algorithm of spec.md §4.2 over an
// already-traced arc list. Overrides, if non-nil, contribute additional
// synthetic high-weight bids (tweak.override, SPEC_FULL.md §C.6) before the
// standard resolution runs.
func classifyArcs(node model.Node, arcs []model.Arc, overrides func(model.Arc) []Bid) []model.Label {
	bidsByArc := make(map[int][]bid, len(arcs)) // indexed by arc position
	for i, arc := range arcs {
		var bids []bid
		seen := map[bid]bool{}
		for _, b := range call(arc) {
			b.name = Normalize(b.name)
			if seen[b] {
				continue
			}
			seen[b] = true
			bids = append(bids, b)
		}
		if overrides != nil {
			for _, ob := range overrides(arc) {
				b := bid{name: Normalize(ob.Name), weight: ob.Weight}
				if !seen[b] {
					bids = append(bids, b)
					seen[b] = true
				}
			}
		}
		bidsByArc[i] = bids
	}

	namesByWeight := map[int]map[string]bool{}
	arcsByBid := map[bid][]int{}
	for i, arc := range arcs {
		for _, b := range bidsByArc[i] {
			if namesByWeight[b.weight] == nil {
				namesByWeight[b.weight] = map[string]bool{}
			}
			namesByWeight[b.weight][b.name] = true
			arcsByBid[b] = append(arcsByBid[b], i)
		}
		_ = arc
	}

	type signature struct {
		name  string
		arity int
	}
	arcBySignature := map[signature]int{}
	nameByArc := map[int]string{}
	rejectionsBySignature := map[signature][]int{}

	var weights []int
	for w := range namesByWeight {
		weights = append(weights, w)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(weights)))

	for _, weight := range weights {
		var names []string
		for n := range namesByWeight[weight] {
			names = append(names, n)
		}
		sort.Slice(names, func(i, j int) bool {
			if len(names[i]) != len(names[j]) {
				return len(names[i]) < len(names[j])
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			contendersByArity := map[int][]int{}
			for _, arcIdx := range arcsByBid[bid{name: name, weight: weight}] {
				arity := arcs[arcIdx].Arity()
				contendersByArity[arity] = append(contendersByArity[arity], arcIdx)
			}
			var arities []int
			for a := range contendersByArity {
				arities = append(arities, a)
			}
			sort.Ints(arities)
			for _, arity := range arities {
				sig := signature{name, arity}
				contenders := contendersByArity[arity]
				if _, ok := arcBySignature[sig]; ok {
					continue
				}
				if len(contenders) > 1 {
					rejectionsBySignature[sig] = append(rejectionsBySignature[sig], contenders...)
					continue
				}
				if _, rejected := rejectionsBySignature[sig]; rejected {
					rejectionsBySignature[sig] = append(rejectionsBySignature[sig], contenders...)
					continue
				}
				arcIdx := contenders[0]
				if _, already := nameByArc[arcIdx]; already {
					rejectionsBySignature[sig] = append(rejectionsBySignature[sig], arcIdx)
					continue
				}
				arcBySignature[sig] = arcIdx
				nameByArc[arcIdx] = name
			}
		}
	}

	var labels []model.Label
	for i, arc := range arcs {
		name, ok := nameByArc[i]
		if !ok {
			continue
		}
		labels = append(labels, model.Label{Name: name, Arc: arc, IsPublic: false})
	}

	var sigs []signature
	for sig := range rejectionsBySignature {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].name != sigs[j].name {
			return sigs[i].name < sigs[j].name
		}
		return sigs[i].arity < sigs[j].arity
	})
	for _, sig := range sigs {
		var alternatives []model.Arc
		seen := map[int]bool{}
		for _, arcIdx := range rejectionsBySignature[sig] {
			if seen[arcIdx] {
				continue
			}
			seen[arcIdx] = true
			alternatives = append(alternatives, arcs[arcIdx])
		}
		rankAlternatives(alternatives, sig.name)
		arity := sig.arity
		labels = append(labels, model.Label{
			Name:     sig.name,
			Arc:      model.AmbiguousArc{ArityHint: &arity, Alternatives: alternatives},
			IsPublic: false,
		})
	}

	return order(node, labels)
}

// Bid is one (name, weight) candidacy an override contributes for an arc.
type Bid struct {
	Name   string
	Weight int
}

// traceHome enumerates every table in every schema of cat as a TableArc
// (spec.md §4.2 step 1, HomeNode case).
func traceHome(cat *entity.Catalog) []model.Arc {
	exclude := hooksFor(cat).ExcludeTable
	var arcs []model.Arc
	for _, schema := range cat.Schemas() {
		for _, table := range schema.Tables() {
			if exclude != nil && exclude(table) {
				continue
			}
			arcs = append(arcs, model.TableArc{Table: table})
		}
	}
	return arcs
}

func traceTable(table *entity.Table) []model.Arc {
	excludeColumn := hooksFor(table.Schema().Catalog()).ExcludeColumn
	var arcs []model.Arc
	for _, column := range table.Columns() {
		if excludeColumn != nil && excludeColumn(column) {
			continue
		}
		link := findLink(column)
		arcs = append(arcs, model.ColumnArc{Table: table, Column: column, Link: link})
	}
	for _, fk := range table.ForeignKeys() {
		arcs = append(arcs, model.ChainArc{Table: table, Joins: []entity.Join{entity.NewDirectJoin(fk)}})
	}
	for _, fk := range table.ReferringForeignKeys() {
		arcs = append(arcs, model.ChainArc{Table: table, Joins: []entity.Join{entity.NewReverseJoin(fk)}})
	}
	return arcs
}

// findLink determines whether column doubles as a link to another table
// (SPEC_FULL.md §C.2): true only when it participates in exactly one
// single-column foreign key; more than one candidate key yields an
// AmbiguousArc rather than an arbitrary pick.
func findLink(column *entity.Column) model.Arc {
	var candidates []*entity.ForeignKey
	for _, fk := range column.ForeignKeys() {
		if len(fk.OriginColumns) == 1 {
			candidates = append(candidates, fk)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		fk := candidates[0]
		return model.ChainArc{Table: column.Table(), Joins: []entity.Join{entity.NewDirectJoin(fk)}}
	}
	var alternatives []model.Arc
	for _, fk := range candidates {
		alternatives = append(alternatives, model.ChainArc{Table: column.Table(), Joins: []entity.Join{entity.NewDirectJoin(fk)}})
	}
	rankAlternatives(alternatives, column.Name())
	return model.AmbiguousArc{Alternatives: alternatives}
}

// describeArc names the table/column an arc actually resolves to, as
// opposed to whatever name it bid under (a chain arc's bid name is often a
// stripped prefix, not its target table's real name).
func describeArc(arc model.Arc) string {
	switch a := arc.(type) {
	case model.TableArc:
		return a.Table.Name()
	case model.ColumnArc:
		return a.Column.Name()
	case model.ChainArc:
		if len(a.Joins) == 0 {
			return a.Table.Name()
		}
		return a.Joins[len(a.Joins)-1].Target().Name()
	default:
		return ""
	}
}

// rankAlternatives orders a label's competing arcs by how closely each
// arc's real underlying name matches the signature name they tied on,
// closest first, so the first entry
// in an AmbiguousArc's Alternatives is the most likely intended target
// rather than whichever arc happened to trace first. Ties keep their
// original trace order (sort.SliceStable).
func rankAlternatives(alternatives []model.Arc, against string) {
	sort.SliceStable(alternatives, func(i, j int) bool {
		di := text_distance.Distance(describeArc(alternatives[i]), against)
		dj := text_distance.Distance(describeArc(alternatives[j]), against)
		return di < dj
	})
}

// call returns the weighted name bids for a single arc (spec.md §4.2 step
// 2). Weights follow the teacher-independent, original_source-grounded
// scheme: table arcs bid their name at the owning schema's priority and a
// schema-qualified fallback at -1; column arcs bid at weight 10; chain
// arcs bid a spread of weights depending on join shape.
func call(arc model.Arc) []bid {
	switch a := arc.(type) {
	case model.TableArc:
		bids := []bid{{name: a.Table.Name(), weight: a.Table.Schema().Priority()}}
		bids = append(bids, bid{name: a.Table.Schema().Name() + " " + a.Table.Name(), weight: -1})
		return bids
	case model.ColumnArc:
		return []bid{{name: a.Column.Name(), weight: 10}}
	case model.ChainArc:
		return callChain(a)
	default:
		return nil
	}
}

func callChain(a model.ChainArc) []bid {
	if len(a.Joins) != 1 {
		return nil
	}
	j := a.Joins[0]
	switch j.(type) {
	case entity.DirectJoin:
		pairs := j.Columns()
		if len(pairs) == 1 && strings.HasSuffix(pairs[0][0].Name(), "_"+pairs[0][1].Table().Name()) {
			prefix := strings.TrimSuffix(pairs[0][0].Name(), "_"+pairs[0][1].Table().Name())
			return []bid{{name: prefix, weight: 5}, {name: j.Target().Name(), weight: 4}}
		}
		return []bid{{name: j.Target().Name(), weight: 3}}
	case entity.ReverseJoin:
		pairs := j.Columns()
		bids := []bid{{name: j.Target().Name(), weight: 3}}
		if len(pairs) == 1 {
			bids = append(bids, bid{name: j.Target().Name() + "_via_" + pairs[0][1].Name(), weight: 2})
		}
		return bids
	default:
		return nil
	}
}

// order assigns IsPublic (spec.md §4.2 step 4): column, chain, table and
// syntax arcs are all public, so navigational links are reachable; only
// AmbiguousArc labels stay non-public.
func order(node model.Node, labels []model.Label) []model.Label {
	out := make([]model.Label, len(labels))
	for i, l := range labels {
		switch l.Arc.(type) {
		case model.ColumnArc, model.ChainArc, model.TableArc, model.SyntaxArc:
			l.IsPublic = true
		}
		out[i] = l
	}
	return out
}
