package adapter

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

// node/table mimic the Node/TableNode interface-and-implementation shape
// that core/model actually dispatches on: a broad interface type and a
// concrete type satisfying it, so AssignableTo reflects real specificity.
type node interface{ isNode() }
type anyNode struct{}
type tableNode struct{ anyNode }

func (anyNode) isNode()   {}
func (tableNode) isNode() {}

var nodeType = reflect.TypeOf((*node)(nil)).Elem()
var tableNodeType = reflect.TypeOf(tableNode{})

func TestRealizeAdapterPicksMostSpecific(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	r.Register(Component{Interface: "Classify", Types: []reflect.Type{nodeType}, Impl: "generic"})
	r.Register(Component{Interface: "Classify", Types: []reflect.Type{tableNodeType}, Impl: "table"})

	rz, err := r.RealizeAdapter("Classify", []reflect.Type{tableNodeType})
	require.NoError(err)
	require.Equal("table", rz.Component.Impl)

	next, ok := rz.Next()
	require.True(ok)
	require.Equal("generic", next.Component.Impl)
}

func TestRealizeAdapterFallsBackToGeneric(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	r.Register(Component{Interface: "Classify", Types: []reflect.Type{nodeType}, Impl: "generic"})

	rz, err := r.RealizeAdapter("Classify", []reflect.Type{tableNodeType})
	require.NoError(err)
	require.Equal("generic", rz.Component.Impl)
}

func TestRealizeProtocolFixedArityDominates(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	two := 2
	r.Register(Component{Interface: "Fn", Name: "concat", Impl: "variadic"})
	r.Register(Component{Interface: "Fn", Name: "concat", Arity: &two, Impl: "binary"})

	rz, err := r.RealizeProtocol("Fn", "Concat", 2)
	require.NoError(err)
	require.Equal("binary", rz.Component.Impl)

	rz, err = r.RealizeProtocol("Fn", "concat", 3)
	require.NoError(err)
	require.Equal("variadic", rz.Component.Impl)
}

func TestRealizeUtilityMissingIsDispatchError(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	_, err := r.RealizeUtility("Coerce")
	require.Error(err)
}

func TestRealizeAdapterAmbiguousSameSpecificity(t *testing.T) {
	require := require.New(t)
	r := NewRegistry()
	r.Register(Component{Interface: "Y", Types: []reflect.Type{tableNodeType}, Impl: "a"})
	r.Register(Component{Interface: "Y", Types: []reflect.Type{tableNodeType}, Impl: "b"})
	_, err := r.RealizeAdapter("Y", []reflect.Type{tableNodeType})
	require.Error(err)
}
