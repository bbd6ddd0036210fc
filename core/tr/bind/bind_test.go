package bind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/syn"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
)

func buildCatalog() *entity.Catalog {
	cat := entity.NewCatalog()
	sch := cat.AddSchema("public", 0)
	school := sch.AddTable("school")
	id := school.AddColumn("id", "integer", false, false)
	school.AddColumn("code", "text", false, false)
	school.SetPrimaryKey(id)
	department := sch.AddTable("department")
	deptID := department.AddColumn("id", "integer", false, false)
	schoolFK := department.AddColumn("school_id", "integer", false, false)
	department.SetPrimaryKey(deptID)
	entity.AddForeignKey(department, []*entity.Column{schoolFK}, school, []*entity.Column{id}, false)
	cat.Freeze()
	return cat
}

func TestBindTopLevelSegment(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	b := New(cat)
	s, err := syn.Parse("/school")
	require.NoError(err)
	result, err := b.Bind(s, nil)
	require.NoError(err)
	collect, ok := result.(binding.CollectBinding)
	require.True(ok)
	list, ok := collect.Domain().(domain.ListDomain)
	require.True(ok)
	_ = list
}

func TestBindComposeToColumn(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	b := New(cat)
	s, err := syn.Parse("/school.code")
	require.NoError(err)
	result, err := b.Bind(s, nil)
	require.NoError(err)
	collect := result.(binding.CollectBinding)
	list := collect.Seed.Domain()
	require.Equal(domain.TextDomain{}, list)
}

func TestBindFilterCoercesToBoolean(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	b := New(cat)
	s, err := syn.Parse("/school?code='X'")
	require.NoError(err)
	result, err := b.Bind(s, nil)
	require.NoError(err)
	collect := result.(binding.CollectBinding)
	sieve, ok := collect.Seed.(binding.SieveBinding)
	require.True(ok)
	require.Equal(domain.BooleanDomain{}, sieve.Filter.Domain())
}

func TestBindUnknownAttributeListsAlternatives(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	b := New(cat)
	s, err := syn.Parse("/nonexistent_table")
	require.NoError(err)
	_, err = b.Bind(s, nil)
	require.Error(err)
}

func TestBindChainToRelatedTable(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	b := New(cat)
	s, err := syn.Parse("/department.school")
	require.NoError(err)
	result, err := b.Bind(s, nil)
	require.NoError(err)
	collect := result.(binding.CollectBinding)
	_, ok := collect.Seed.(binding.ChainBinding)
	require.True(ok)
}
