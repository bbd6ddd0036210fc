// Package lookup implements the probe family of spec.md §4.5: a set of
// typed queries dispatched against binding.Binding nodes to resolve names,
// references, identities, and display metadata while walking the scope
// chain through each binding's Base().
//
// Grounded on original_source/src/htsql/core/tr/lookup.py's Probe/lookup
// adapter family, translated to a Go interface-per-probe-kind dispatch:
// Lookup type-switches on the probe kind, and each lookup helper
// type-switches on the binding kind (core/adapter is not involved).
package lookup

import (
	"strings"

	"github.com/prometheusresearch/htsql-go/core/classify"
	"github.com/prometheusresearch/htsql-go/core/model"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
	"github.com/prometheusresearch/htsql-go/core/tr/recipe"
)

// Probe is the common interface for every probe kind. Lookup is given the
// binding to query and returns whatever that probe kind produces, or nil
// when the binding (and its scope chain) has no answer.
type Probe interface {
	isProbe()
}

// AttributeProbe looks up a plain attribute name, optionally pinned to a
// specific arity (nil means "any arity", used for zero-argument names).
type AttributeProbe struct {
	Name  string
	Arity *int
}

func (AttributeProbe) isProbe() {}

// NameArity is one advertised (name, arity) signature, used to build
// "did you mean?" hints via AttributeSetProbe/ReferenceSetProbe.
type NameArity struct {
	Name  string
	Arity int
}

// AttributeSetProbe returns every (name, arity) signature visible from a
// binding's scope.
type AttributeSetProbe struct{}

func (AttributeSetProbe) isProbe() {}

// ReferenceProbe looks up a `$name` reference.
type ReferenceProbe struct{ Name string }

func (ReferenceProbe) isProbe() {}

// ReferenceSetProbe returns every reference name visible from a binding.
type ReferenceSetProbe struct{}

func (ReferenceSetProbe) isProbe() {}

// ComplementProbe requests the quotient complement link of a scope.
type ComplementProbe struct{}

func (ComplementProbe) isProbe() {}

// ExpansionMember is one public member surfaced by ExpansionProbe.
type ExpansionMember struct {
	Name   string
	Recipe recipe.Recipe
}

// ExpansionProbe enumerates public members for wild-selection (`*`)
// expansion. Only WithClass is consulted: when set, the public labels of
// the underlying table contribute; WithSyntax, WithWild and WithLink have
// no effect.
type ExpansionProbe struct {
	WithSyntax bool
	WithWild   bool
	WithClass  bool
	WithLink   bool
}

func (ExpansionProbe) isProbe() {}

// IdentityProbe requests the natural-key recipe chain for a table scope.
type IdentityProbe struct{}

func (IdentityProbe) isProbe() {}

// GuessTagProbe requests a short display tag for a binding.
type GuessTagProbe struct{}

func (GuessTagProbe) isProbe() {}

// GuessHeaderProbe requests a column header path for a binding.
type GuessHeaderProbe struct{}

func (GuessHeaderProbe) isProbe() {}

// GuessPathProbe requests the navigational path (chain of names) leading
// to a binding.
type GuessPathProbe struct{}

func (GuessPathProbe) isProbe() {}

// DirectionProbe extracts ±1 from a direction decorator, if any.
type DirectionProbe struct{}

func (DirectionProbe) isProbe() {}

// UnwrapProbe walks past wrapping (non-scope-introducing) bindings down to
// the first binding assignable to Class, optionally recursing through
// nested seeds when Deep is set.
type UnwrapProbe struct {
	Class func(binding.Binding) bool
	Deep  bool
}

func (UnwrapProbe) isProbe() {}

// Lookup dispatches probe against b, delegating to b's Base() when b does
// not answer directly (spec.md §4.5's scope-chain resolution).
func Lookup(b binding.Binding, probe Probe) interface{} {
	switch p := probe.(type) {
	case AttributeProbe:
		return lookupAttribute(b, p)
	case AttributeSetProbe:
		return lookupAttributeSet(b)
	case ReferenceProbe:
		return lookupReference(b, p)
	case ReferenceSetProbe:
		return lookupReferenceSet(b)
	case ComplementProbe:
		return lookupComplement(b)
	case ExpansionProbe:
		return lookupExpansion(b, p)
	case IdentityProbe:
		return lookupIdentity(b)
	case DirectionProbe:
		return lookupDirection(b)
	case GuessTagProbe, GuessHeaderProbe, GuessPathProbe:
		return lookupGuess(b, p)
	case UnwrapProbe:
		return unwrap(b, p)
	default:
		return nil
	}
}

func chainUp(b binding.Binding, probe Probe) interface{} {
	base := b.Base()
	if base == nil {
		return nil
	}
	return Lookup(base, probe)
}

func lookupAttribute(b binding.Binding, p AttributeProbe) recipe.Recipe {
	switch n := b.(type) {
	case binding.DefineBinding:
		if n.Name == p.Name && (p.Arity == nil || *p.Arity == 0) {
			return recipe.Binding{Binding: n.Body}
		}
	case binding.DefineCollectionBinding:
		if n.Name == p.Name && (p.Arity == nil || *p.Arity == 0) {
			return recipe.Binding{Binding: n.Body}
		}
	case binding.TableBinding:
		return lookupTableAttribute(n, p)
	case binding.HomeBinding:
		return lookupHomeAttribute(n, p)
	case binding.RerouteBinding:
		if r, ok := chainUp(n.Target, p).(recipe.Recipe); ok {
			return r
		}
		return nil
	}
	if r, ok := chainUp(b, p).(recipe.Recipe); ok {
		return r
	}
	return nil
}

func lookupHomeAttribute(n binding.HomeBinding, p AttributeProbe) recipe.Recipe {
	if n.Catalog == nil {
		return nil
	}
	if p.Arity != nil && *p.Arity != 0 {
		return nil
	}
	for _, l := range classify.ClassifyHome(n.Catalog, nil) {
		if l.Name == p.Name && l.IsPublic {
			return recipeForArc(l.Arc)
		}
	}
	return nil
}

func lookupTableAttribute(n binding.TableBinding, p AttributeProbe) recipe.Recipe {
	labels := classify.ClassifyTable(n.Table, nil)
	for _, l := range labels {
		if l.Name != p.Name || !l.IsPublic {
			continue
		}
		if p.Arity != nil && *p.Arity != 0 {
			continue
		}
		return recipeForArc(l.Arc)
	}
	return nil
}

// recipeForArc converts a classify label's Arc into the Recipe the binder
// should apply, per spec.md §4.5 ("column attributes return ColumnRecipe,
// link attributes return AttachedTableRecipe, ambiguous labels return
// AmbiguousRecipe").
func recipeForArc(arc model.Arc) recipe.Recipe {
	switch a := arc.(type) {
	case model.ColumnArc:
		var link recipe.Recipe
		if a.Link != nil {
			link = recipeForArc(a.Link)
		}
		return recipe.Column{Column: a.Column, Link: link}
	case model.ChainArc:
		return recipe.AttachedTable{Joins: a.Joins}
	case model.TableArc:
		return recipe.FreeTable{Table: a.Table}
	case model.AmbiguousArc:
		var alts []recipe.Recipe
		for _, alt := range a.Alternatives {
			alts = append(alts, recipeForArc(alt))
		}
		return recipe.Ambiguous{Alternatives: alts}
	case model.InvalidArc:
		return recipe.Invalid{Reason: a.Reason}
	default:
		return recipe.Invalid{Reason: "unresolved arc"}
	}
}

func lookupAttributeSet(b binding.Binding) []NameArity {
	var out []NameArity
	switch n := b.(type) {
	case binding.TableBinding:
		for _, l := range classify.ClassifyTable(n.Table, nil) {
			if l.IsPublic {
				out = append(out, NameArity{Name: l.Name, Arity: 0})
			}
		}
	case binding.HomeBinding:
		if n.Catalog != nil {
			for _, l := range classify.ClassifyHome(n.Catalog, nil) {
				if l.IsPublic {
					out = append(out, NameArity{Name: l.Name, Arity: 0})
				}
			}
		}
	}
	if set, ok := chainUp(b, AttributeSetProbe{}).([]NameArity); ok {
		out = append(out, set...)
	}
	return out
}

func lookupReference(b binding.Binding, p ReferenceProbe) recipe.Recipe {
	switch n := b.(type) {
	case binding.DefineReferenceBinding:
		if n.Name == p.Name {
			return recipe.Binding{Binding: n.Body}
		}
	case binding.ReferenceRerouteBinding:
		if r, ok := Lookup(n.Target, p).(recipe.Recipe); ok {
			return r
		}
		return nil
	}
	if r, ok := chainUp(b, p).(recipe.Recipe); ok {
		return r
	}
	return nil
}

func lookupReferenceSet(b binding.Binding) []string {
	var out []string
	if def, ok := b.(binding.DefineReferenceBinding); ok {
		out = append(out, def.Name)
	}
	if set, ok := chainUp(b, ReferenceSetProbe{}).([]string); ok {
		out = append(out, set...)
	}
	return out
}

func lookupComplement(b binding.Binding) *binding.ComplementBinding {
	if q, ok := b.(binding.QuotientBinding); ok {
		cb := binding.NewComplementBinding(q, q, q.Syntax())
		return &cb
	}
	return nil
}

func lookupExpansion(b binding.Binding, p ExpansionProbe) []ExpansionMember {
	tb, ok := unwrapToTable(b)
	if !ok {
		return nil
	}
	var out []ExpansionMember
	if p.WithClass {
		for _, l := range classify.ClassifyTable(tb.Table, nil) {
			if l.IsPublic {
				out = append(out, ExpansionMember{Name: l.Name, Recipe: recipeForArc(l.Arc)})
			}
		}
	}
	return out
}

func unwrapToTable(b binding.Binding) (binding.TableBinding, bool) {
	for cur := b; cur != nil; cur = cur.Base() {
		if tb, ok := cur.(binding.TableBinding); ok {
			return tb, true
		}
		if _, ok := cur.(binding.CoverBinding); ok {
			return binding.TableBinding{}, false
		}
	}
	return binding.TableBinding{}, false
}

func lookupIdentity(b binding.Binding) recipe.Recipe {
	tb, ok := unwrapToTable(b)
	if !ok {
		return nil
	}
	pk := tb.Table.PrimaryKey()
	if pk == nil {
		return nil
	}
	var recipes []recipe.Recipe
	for _, col := range pk.Columns {
		recipes = append(recipes, recipe.Column{Column: col})
	}
	return recipe.Identity{Elements: recipes}
}

func lookupDirection(b binding.Binding) *binding.Direction {
	if db, ok := b.(binding.DirectionBinding); ok {
		d := db.Dir
		return &d
	}
	return nil
}

func lookupGuess(b binding.Binding, probe Probe) string {
	switch n := b.(type) {
	case binding.TableBinding:
		return n.Table.Name()
	case binding.ColumnBinding:
		return n.Column.Name()
	case binding.TitleBinding:
		return n.Title
	case binding.AliasBinding:
		return n.Alias
	}
	if s, ok := chainUp(b, probe).(string); ok {
		return s
	}
	return ""
}

func unwrap(b binding.Binding, p UnwrapProbe) binding.Binding {
	cur := b
	for cur != nil {
		if p.Class(cur) {
			return cur
		}
		if cb, ok := cur.(binding.CoverBinding); ok && p.Deep {
			cur = cb.Seed
			continue
		}
		cur = cur.Base()
	}
	return nil
}

// NormalizeDidYouMean lowercases and trims candidate names for a stable
// "did you mean?" comparison against classify's already-normalized label
// names; core/tr/bind's unresolvedAttribute applies it to both the
// candidate set and the attempted name before ranking them through
// internal/similartext.
func NormalizeDidYouMean(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(strings.TrimSpace(n))
	}
	return out
}
