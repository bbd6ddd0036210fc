// Package adapter implements the three polymorphism patterns spec.md §4.1
// describes: Utility (one implementation per application), Adapter
// (N-ary type-tuple dispatch), and Protocol (name+arity dispatch). It is the
// mechanism every later pass (classify, bind, encode, compile, assemble,
// reduce, serialize) uses to let new domains, syntax variants, and formula
// names plug in without the core switching on a closed set of types.
//
// Translated from original_source/src/htsql/adapter.py's realize/dominance
// algorithm into Go's reflect-based type system; the registry shape (a
// component list per Interface) mirrors the teacher's sql/analyzer
// rule-batch registration. Realizations are not cached: each Realize call
// recomputes the match and dominance order.
package adapter

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"
)

// Interface identifies a dispatch surface: a named polymorphic operation
// (e.g. "Classify.Trace", "Convert", "Bind"). Components register against
// an Interface; realization picks the most specific one for a given key.
type Interface string

// Component is one registered implementation. Utility components declare no
// Types and no Name. Adapter components declare Types (the leading-argument
// type tuple they match). Protocol components declare Name and may declare
// Arity (nil means variadic/"any arity").
type Component struct {
	Interface Interface
	Types     []reflect.Type // Adapter dispatch key
	Name      string         // Protocol dispatch key (case-insensitive)
	Arity     *int           // Protocol arity, nil = matches any arity
	Impl      interface{}    // the underlying function/value
}

// Registry is a table of components. Lookups are not scoped by an
// application handle: every caller of a Registry sees every component
// registered on it.
type Registry struct {
	mu         sync.RWMutex
	components map[Interface][]Component
	cache      sync.Map // reset by Register; realize neither reads nor fills it
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{components: make(map[Interface][]Component)}
}

// Register adds a component. Registration is open: addons call this during
// application setup; it must not be called concurrently with Realize.
func (r *Registry) Register(c Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[c.Interface] = append(r.components[c.Interface], c)
	r.cache = sync.Map{}
}

// Realization is the resolved outcome of dispatching an Interface against a
// key: the most specific Component plus the full most-to-least-specific
// chain (MRO) so implementations can delegate to "the next one".
type Realization struct {
	Component Component
	Chain     []Component
}

// Next returns the realization obtained by dropping the current winner,
// implementing the teacher's super-like delegation chain.
func (rz *Realization) Next() (*Realization, bool) {
	if len(rz.Chain) <= 1 {
		return nil, false
	}
	return &Realization{Component: rz.Chain[1], Chain: rz.Chain[1:]}, true
}

// RealizeUtility resolves the unique component registered against iface
// with no dispatch key.
func (r *Registry) RealizeUtility(iface Interface) (*Realization, error) {
	return r.realize(iface, func(c Component) bool {
		return len(c.Types) == 0 && c.Name == ""
	}, func(a, b Component) int { return 0 })
}

// RealizeAdapter resolves the component registered against iface whose
// declared type tuple is a supertype of key and most specific among
// matches, per the dominance rule of spec.md §4.1.
func (r *Registry) RealizeAdapter(iface Interface, key []reflect.Type) (*Realization, error) {
	match := func(c Component) bool {
		if len(c.Types) != len(key) {
			return false
		}
		for i, t := range c.Types {
			if key[i] == nil {
				continue
			}
			if !key[i].AssignableTo(t) && key[i] != t {
				return false
			}
		}
		return true
	}
	dominates := func(a, b Component) int {
		return compareSpecificity(a.Types, b.Types)
	}
	return r.realize(iface, match, dominates)
}

// RealizeProtocol resolves the component registered against iface whose
// (name, arity) signature matches; a fixed-arity entry dominates a
// variadic entry of the same name, per spec.md §4.1.
func (r *Registry) RealizeProtocol(iface Interface, name string, arity int) (*Realization, error) {
	lower := normalizeProtocolName(name)
	match := func(c Component) bool {
		if normalizeProtocolName(c.Name) != lower {
			return false
		}
		return c.Arity == nil || *c.Arity == arity
	}
	dominates := func(a, b Component) int {
		if a.Arity != nil && b.Arity == nil {
			return 1
		}
		if a.Arity == nil && b.Arity != nil {
			return -1
		}
		return 0
	}
	return r.realize(iface, match, dominates)
}

func normalizeProtocolName(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// compareSpecificity returns >0 if a is strictly more specific than b in
// every position, <0 for the reverse, 0 if incomparable or equal.
func compareSpecificity(a, b []reflect.Type) int {
	if len(a) != len(b) {
		return 0
	}
	aWins, bWins := false, false
	for i := range a {
		switch {
		case a[i] == b[i]:
			// equal in this position
		case a[i] != nil && b[i] != nil && a[i].AssignableTo(b[i]):
			aWins = true
		case a[i] != nil && b[i] != nil && b[i].AssignableTo(a[i]):
			bWins = true
		}
	}
	switch {
	case aWins && !bWins:
		return 1
	case bWins && !aWins:
		return -1
	default:
		return 0
	}
}

type cacheKey struct {
	iface Interface
	key   string
}

func (r *Registry) realize(iface Interface, match func(Component) bool, dominates func(a, b Component) int) (*Realization, error) {
	r.mu.RLock()
	all := r.components[iface]
	r.mu.RUnlock()

	var matched []Component
	for _, c := range all {
		if match(c) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return nil, htsqlerrors.Dispatch.New(fmt.Sprintf("no implementation for %s", iface))
	}

	chain, err := topoSortByDominance(matched, dominates)
	if err != nil {
		return nil, htsqlerrors.Dispatch.New(fmt.Sprintf("ambiguous dispatch for %s: %v", iface, err))
	}
	return &Realization{Component: chain[0], Chain: chain}, nil
}

// topoSortByDominance orders components most-specific first. A positive
// dominates(a,b) means a comes before b. Incomparable pairs at the top of
// the order (no other component dominates them both) are an error unless
// there is exactly one such "most dominant" component.
func topoSortByDominance(components []Component, dominates func(a, b Component) int) ([]Component, error) {
	n := len(components)
	indegree := make([]int, n)
	edges := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if dominates(components[i], components[j]) > 0 {
				edges[i] = append(edges[i], j)
				indegree[j]++
			}
		}
	}
	var order []Component
	used := make([]bool, n)
	for len(order) < n {
		var ready []int
		for i := 0; i < n; i++ {
			if !used[i] && indegree[i] == 0 {
				ready = append(ready, i)
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("cycle among %d components", n-len(order))
		}
		if len(ready) > 1 && len(order) == 0 {
			// Multiple incomparable top candidates: ambiguous, unless
			// there is only one component total (n==1 handled above).
			return nil, fmt.Errorf("%d incomparable components", len(ready))
		}
		sort.Ints(ready)
		pick := ready[0]
		order = append(order, components[pick])
		used[pick] = true
		for _, j := range edges[pick] {
			indegree[j]--
		}
	}
	return order, nil
}
