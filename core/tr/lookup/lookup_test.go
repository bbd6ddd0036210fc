package lookup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/syn"
	"github.com/prometheusresearch/htsql-go/core/tr/binding"
	"github.com/prometheusresearch/htsql-go/core/tr/recipe"
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

func TestAttributeProbeResolvesColumn(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	sch, _ := cat.Schema("public")
	school, _ := sch.Table("school")

	root := binding.NewRootBinding(syn.Void{})
	tb := binding.NewTableBinding(root, school, syn.Void{})

	r := Lookup(tb, AttributeProbe{Name: "code"})
	col, ok := r.(recipe.Column)
	require.True(ok)
	require.Equal("code", col.Column.Name())
}

func TestAttributeProbeDelegatesThroughDefine(t *testing.T) {
	require := require.New(t)
	root := binding.NewRootBinding(syn.Void{})
	lit := binding.NewLiteralBinding(root, int64(1), domain.IntegerDomain{}, syn.Void{})
	def := binding.NewDefineBinding(root, "one", lit, syn.Void{})

	r := Lookup(def, AttributeProbe{Name: "one"})
	b, ok := r.(recipe.Binding)
	require.True(ok)
	require.Equal(domain.IntegerDomain{}, b.Binding.Domain())
}

func TestIdentityProbeReturnsPrimaryKeyChain(t *testing.T) {
	require := require.New(t)
	cat := buildCatalog()
	sch, _ := cat.Schema("public")
	school, _ := sch.Table("school")
	root := binding.NewRootBinding(syn.Void{})
	tb := binding.NewTableBinding(root, school, syn.Void{})

	r := Lookup(tb, IdentityProbe{})
	id, ok := r.(recipe.Identity)
	require.True(ok)
	require.Len(id.Elements, 1)
}

func TestDirectionProbe(t *testing.T) {
	require := require.New(t)
	root := binding.NewRootBinding(syn.Void{})
	db := binding.NewDirectionBinding(root, binding.Descending, syn.Void{})
	r := Lookup(db, DirectionProbe{})
	dir, ok := r.(*binding.Direction)
	require.True(ok)
	require.Equal(binding.Descending, *dir)
}
