package classify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/model"
)

func buildSchoolCatalog() *entity.Catalog {
	cat := entity.NewCatalog()
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

	entity.AddForeignKey(department, []*entity.Column{schoolFK}, school, []*entity.Column{schoolID}, false)
	cat.Freeze()
	return cat
}

func TestFindLinkRanksMultipleCandidatesByNameSimilarity(t *testing.T) {
	require := require.New(t)
	cat := entity.NewCatalog()
	sch := cat.AddSchema("public", 0)

	course := sch.AddTable("course")
	courseID := course.AddColumn("id", "integer", false, false)
	course.SetPrimaryKey(courseID)

	school := sch.AddTable("school")
	schoolID := school.AddColumn("id", "integer", false, false)
	school.SetPrimaryKey(schoolID)

	department := sch.AddTable("department")
	deptID := department.AddColumn("id", "integer", false, false)
	department.SetPrimaryKey(deptID)
	schoolID2 := department.AddColumn("school_id", "integer", false, false)

	// Insert the far candidate (course) first so a naive "first wins"
	// ordering would pick the wrong target.
	entity.AddForeignKey(department, []*entity.Column{schoolID2}, course, []*entity.Column{courseID}, false)
	entity.AddForeignKey(department, []*entity.Column{schoolID2}, school, []*entity.Column{schoolID}, false)

	arc := findLink(schoolID2)
	ambiguous, ok := arc.(model.AmbiguousArc)
	require.True(ok, "expected AmbiguousArc, got %T", arc)
	require.Len(ambiguous.Alternatives, 2)
	require.Equal("school", describeArc(ambiguous.Alternatives[0]))
	require.Equal("course", describeArc(ambiguous.Alternatives[1]))
}

func TestNormalize(t *testing.T) {
	require := require.New(t)
	require.Equal("school", Normalize("School"))
	require.Equal("_123abc", Normalize("123abc"))
	require.Equal("a_b", Normalize("a b"))
}

func TestClassifyHomeDistinctNames(t *testing.T) {
	require := require.New(t)
	cat := buildSchoolCatalog()
	labels := ClassifyHome(cat, nil)
	seen := map[string]bool{}
	for _, l := range labels {
		require.False(seen[l.Name], "duplicate label %s", l.Name)
		seen[l.Name] = true
		require.Equal(model.HomeNode{}, l.Arc.Origin())
	}
	require.True(seen["school"])
	require.True(seen["department"])
}

func TestClassifyTableColumnsArePublic(t *testing.T) {
	require := require.New(t)
	cat := buildSchoolCatalog()
	sch, _ := cat.Schema("public")
	school, _ := sch.Table("school")
	labels := ClassifyTable(school, nil)

	var codeLabel *model.Label
	for i, l := range labels {
		if l.Name == "code" {
			codeLabel = &labels[i]
		}
	}
	require.NotNil(codeLabel)
	require.True(codeLabel.IsPublic)
	if _, ok := codeLabel.Arc.(model.ColumnArc); !ok {
		t.Fatalf("expected ColumnArc, got %T", codeLabel.Arc)
	}
}

func TestClassifyTableDepartmentLinksToSchool(t *testing.T) {
	require := require.New(t)
	cat := buildSchoolCatalog()
	sch, _ := cat.Schema("public")
	department, _ := sch.Table("department")
	labels := ClassifyTable(department, nil)

	var names []string
	for _, l := range labels {
		names = append(names, l.Name)
	}
	require.Contains(names, "school")
}

func TestClassifyTableSchoolHasReverseDepartment(t *testing.T) {
	require := require.New(t)
	cat := buildSchoolCatalog()
	sch, _ := cat.Schema("public")
	school, _ := sch.Table("school")
	labels := ClassifyTable(school, nil)

	var names []string
	for _, l := range labels {
		names = append(names, l.Name)
	}
	require.Contains(names, "department")
}
