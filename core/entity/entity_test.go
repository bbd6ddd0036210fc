package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSchoolCatalog() (*Catalog, *Table, *Table, *ForeignKey) {
	cat := NewCatalog()
	sch := cat.AddSchema("public", 0)
	school := sch.AddTable("school")
	schoolID := school.AddColumn("id", "integer", false, false)
	school.AddColumn("code", "text", false, false)
	school.AddColumn("name", "text", true, false)
	school.SetPrimaryKey(schoolID)

	department := sch.AddTable("department")
	deptID := department.AddColumn("id", "integer", false, false)
	department.AddColumn("code", "text", false, false)
	schoolFK := department.AddColumn("school_id", "integer", false, false)
	department.AddColumn("name", "text", true, false)
	department.SetPrimaryKey(deptID)

	fk := AddForeignKey(department, []*Column{schoolFK}, school, []*Column{schoolID}, false)
	return cat, school, department, fk
}

func TestFreezeRejectsMutation(t *testing.T) {
	require := require.New(t)
	cat, _, _, _ := buildSchoolCatalog()
	cat.Freeze()
	require.True(cat.Frozen())
	require.Panics(func() { cat.AddSchema("other", 0) })
}

func TestForeignKeyCrossLinked(t *testing.T) {
	require := require.New(t)
	_, school, department, fk := buildSchoolCatalog()
	require.Contains(department.ForeignKeys(), fk)
	require.Contains(school.ReferringForeignKeys(), fk)
}

func TestDirectReverseJoinInverse(t *testing.T) {
	require := require.New(t)
	_, school, department, fk := buildSchoolCatalog()

	direct := NewDirectJoin(fk)
	require.Equal(department, direct.Origin())
	require.Equal(school, direct.Target())
	require.True(direct.IsExpanding())
	require.True(direct.IsContracting())

	reverse := direct.Reverse()
	require.Equal(ReverseJoin{FK: fk}, reverse)
	require.Equal(direct, reverse.Reverse())
}

func TestRemoveTableCascades(t *testing.T) {
	require := require.New(t)
	cat, school, department, fk := buildSchoolCatalog()
	sch, _ := cat.Schema("public")
	sch.RemoveTable("school")

	require.Empty(department.ForeignKeys())
	_, ok := sch.Table("school")
	require.False(ok)
	_ = school
	_ = fk
}

func TestRemoveColumnCascadesKeys(t *testing.T) {
	require := require.New(t)
	_, school, _, _ := buildSchoolCatalog()
	codeCol, _ := school.Column("code")
	uk := school.AddUniqueKey(false, codeCol)
	require.Contains(school.UniqueKeys(), uk)

	school.RemoveColumn("code")
	require.NotContains(school.UniqueKeys(), uk)
}
