package encode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/syn"
	"github.com/prometheusresearch/htsql-go/core/tr/bind"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
	"github.com/prometheusresearch/htsql-go/core/tr/fn"
)

func buildCatalog() *entity.Catalog {
	cat := entity.NewCatalog()
	sch := cat.AddSchema("public", 0)
	school := sch.AddTable("school")
	id := school.AddColumn("id", "integer", false, false)
	school.AddColumn("code", "text", false, false)
	school.SetPrimaryKey(id)
	cat.Freeze()
	return cat
}

func TestEncodeSegmentOverColumn(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	binder := bind.New(cat)
	s, err := syn.Parse("/school.code")
	require.NoError(err)
	b, err := binder.Bind(s, nil)
	require.NoError(err)
	collect := b.(binding.CollectBinding)

	enc := New(fn.NewRegistry())
	seg, err := enc.EncodeSegment(collect)
	require.NoError(err)
	require.Equal(domain.TextDomain{}, seg.Element.Domain())
	cp, ok := seg.Space.(CrossProductSpace)
	require.True(ok)
	require.Equal("school", cp.Table.Name())
}

func TestEncodeFilteredSpace(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	binder := bind.New(cat)
	s, err := syn.Parse("/school?code='X'")
	require.NoError(err)
	b, err := binder.Bind(s, nil)
	require.NoError(err)
	collect := b.(binding.CollectBinding)

	enc := New(fn.NewRegistry())
	seg, err := enc.EncodeSegment(collect)
	require.NoError(err)
	_, ok := seg.Space.(FilteredSpace)
	require.True(ok)
}
