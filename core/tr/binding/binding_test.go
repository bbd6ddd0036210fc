package binding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/syn"
)

func TestRootBindingHasNoBase(t *testing.T) {
	require := require.New(t)
	root := NewRootBinding(syn.Void{})
	require.Nil(root.Base())
}

func TestCollectBindingWrapsAsList(t *testing.T) {
	require := require.New(t)
	root := NewRootBinding(syn.Void{})
	lit := NewLiteralBinding(root, int64(1), domain.IntegerDomain{}, syn.Void{})
	collect := NewCollectBinding(root, lit, syn.Void{})
	list, ok := collect.Domain().(domain.ListDomain)
	require.True(ok)
	require.Equal(domain.IntegerDomain{}, list.Item)
}

func TestRerouteBindingAdoptsTargetDomain(t *testing.T) {
	require := require.New(t)
	root := NewRootBinding(syn.Void{})
	lit := NewLiteralBinding(root, "x", domain.TextDomain{}, syn.Void{})
	reroute := NewRerouteBinding(root, lit, syn.Void{})
	require.Equal(domain.TextDomain{}, reroute.Domain())
}

func TestDefineBindingChainsToBase(t *testing.T) {
	require := require.New(t)
	root := NewRootBinding(syn.Void{})
	home := NewHomeBinding(root, nil, syn.Void{})
	lit := NewLiteralBinding(home, int64(1), domain.IntegerDomain{}, syn.Void{})
	def := NewDefineBinding(home, "one", lit, syn.Void{})
	require.Equal(Binding(home), def.Base())
	require.Equal("one", def.Name)
}
