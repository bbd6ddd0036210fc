package htsql

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prometheusresearch/htsql-go/auth"
	"github.com/prometheusresearch/htsql-go/config"
	"github.com/prometheusresearch/htsql-go/connect"
	"github.com/prometheusresearch/htsql-go/core/entity"
	"github.com/prometheusresearch/htsql-go/core/tr/fn"
	"github.com/prometheusresearch/htsql-go/execute"
)

// newTestEngine opens a file-backed sqlite database seeded with a school/
// department pair of tables, builds the matching catalog by hand (the same
// buildCatalog shape core/tr/bind and core/tr/encode's tests use), and wires
// an Engine around it without going through Engine.Catalog's introspection
// path, since the introspector has its own dedicated grounding and this
// test's purpose is the compile-to-execute pipeline.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	f, err := os.CreateTemp("", "htsql-engine-test-*.db")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())
	t.Cleanup(func() { os.Remove(path) })

	setup, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = setup.Exec(`
		CREATE TABLE school (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE department (
			code TEXT PRIMARY KEY,
			school_code TEXT NOT NULL REFERENCES school(code),
			name TEXT NOT NULL
		);
		INSERT INTO school (code, name) VALUES
			('art', 'School of Art'),
			('bus', 'School of Business'),
			('eng', 'School of Engineering');
		INSERT INTO department (code, school_code, name) VALUES
			('comp', 'eng', 'Computer Science'),
			('mech', 'eng', 'Mechanical Engineering'),
			('acc', 'bus', 'Accounting');
	`)
	require.NoError(t, err)
	require.NoError(t, setup.Close())

	cat := entity.NewCatalog()
	sch := cat.AddSchema("main", 0)

	school := sch.AddTable("school")
	schoolCode := school.AddColumn("code", "text", false, false)
	school.AddColumn("name", "text", false, false)
	school.SetPrimaryKey(schoolCode)

	department := sch.AddTable("department")
	deptCode := department.AddColumn("code", "text", false, false)
	deptSchoolCode := department.AddColumn("school_code", "text", false, false)
	department.AddColumn("name", "text", false, false)
	department.SetPrimaryKey(deptCode)
	entity.AddForeignKey(department, []*entity.Column{deptSchoolCode}, school, []*entity.Column{schoolCode}, false)

	cat.Freeze()

	cfg := &config.Config{Htsql: config.Htsql{DB: "sqlite://" + path, QueryCacheSize: 4}}
	eng := &Engine{
		cfg:      cfg,
		uri:      &connect.URI{Engine: "sqlite", Database: path},
		pool:     connect.NewPool(4),
		executor: execute.New(connect.NewPool(4)),
		fns:      fn.NewRegistry(),
		env:      auth.NewEnvironment(),
	}
	eng.executor = execute.New(eng.pool)
	eng.cache.catalog = cat
	return eng
}

func TestEngineProduceSelectsColumns(t *testing.T) {
	eng := newTestEngine(t)
	product, err := eng.Produce(context.Background(), "/school{code, name}", nil)
	require.NoError(t, err)
	require.Len(t, product.Records, 3)
	require.Len(t, product.Profile.Columns, 2)
	require.Equal(t, "code", product.Profile.Columns[0].Name)
}

func TestEngineProduceFiltersAndLimits(t *testing.T) {
	eng := newTestEngine(t)
	product, err := eng.Produce(context.Background(), "/school?code='eng'", nil)
	require.NoError(t, err)
	require.Len(t, product.Records, 1)
	require.Equal(t, "eng", product.Records[0][0])

	limit := 1
	product, err = eng.Produce(context.Background(), "/school", &limit)
	require.NoError(t, err)
	require.Len(t, product.Records, 1)
}

func TestEngineProduceAggregatesNestedPlural(t *testing.T) {
	eng := newTestEngine(t)
	product, err := eng.Produce(context.Background(), "/school{code, count(department)}", nil)
	require.NoError(t, err)
	require.Len(t, product.Records, 3)
	counts := map[string]interface{}{}
	for _, rec := range product.Records {
		counts[rec[0].(string)] = rec[1]
	}
	require.EqualValues(t, 2, counts["eng"])
	require.EqualValues(t, 1, counts["bus"])
	require.EqualValues(t, 0, counts["art"])
}

func TestEngineCompileUnknownNameFails(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.Compile(context.Background(), "/school.bogus_field", nil)
	require.Error(t, err)
}

func TestEngineTransactRequiresWritePermission(t *testing.T) {
	eng := newTestEngine(t)
	err := eng.Transact(context.Background(), []string{"UPDATE school SET name = name"})
	require.Error(t, err)

	eng = eng.WithEnvironment(auth.NewEnvironment().Grant(auth.CanWrite))
	err = eng.Transact(context.Background(), []string{"UPDATE school SET name = name"})
	require.NoError(t, err)
}

func TestSafePatchSkipsAlreadyOrderedSpace(t *testing.T) {
	eng := newTestEngine(t)
	limit := 2
	product, err := eng.Produce(context.Background(), "/school.sort(code).limit(1)", &limit)
	require.NoError(t, err)
	require.Len(t, product.Records, 1)
	require.Equal(t, "art", product.Records[0][0])
}

func TestEngineProduceSortsAndTops(t *testing.T) {
	eng := newTestEngine(t)
	product, err := eng.Produce(context.Background(), "/school{code}.sort(code-)", nil)
	require.NoError(t, err)
	require.Len(t, product.Records, 3)
	require.Equal(t, "eng", product.Records[0][0])

	product, err = eng.Produce(context.Background(), "/school{code, department.top(1, code-){code}}", nil)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, rec := range product.Records {
		counts[rec[0].(string)]++
	}
	require.Equal(t, 3, len(counts))
}

// TestEngineProduceAggregatesGroupByIncludesIdentity covers spec.md §8
// scenario 2's full requirement: an aggregate query must GROUP BY the
// enclosing table's identity, not merely the selected non-aggregate
// column. Two schools here share the same (non-unique) name; grouping on
// "name" alone would collapse them into a single aggregate row.
func TestEngineProduceAggregatesGroupByIncludesIdentity(t *testing.T) {
	f, err := os.CreateTemp("", "htsql-engine-test-*.db")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())
	t.Cleanup(func() { os.Remove(path) })

	setup, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = setup.Exec(`
		CREATE TABLE school (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE department (
			id INTEGER PRIMARY KEY,
			school_id INTEGER NOT NULL REFERENCES school(id),
			name TEXT NOT NULL
		);
		INSERT INTO school (id, name) VALUES (1, 'Satellite Campus'), (2, 'Satellite Campus');
		INSERT INTO department (id, school_id, name) VALUES (1, 1, 'Comp Sci'), (2, 2, 'Accounting'), (3, 2, 'Marketing');
	`)
	require.NoError(t, err)
	require.NoError(t, setup.Close())

	cat := entity.NewCatalog()
	sch := cat.AddSchema("main", 0)
	school := sch.AddTable("school")
	schoolID := school.AddColumn("id", "integer", false, false)
	school.AddColumn("name", "text", false, false)
	school.SetPrimaryKey(schoolID)
	department := sch.AddTable("department")
	deptID := department.AddColumn("id", "integer", false, false)
	deptSchoolID := department.AddColumn("school_id", "integer", false, false)
	department.AddColumn("name", "text", false, false)
	department.SetPrimaryKey(deptID)
	entity.AddForeignKey(department, []*entity.Column{deptSchoolID}, school, []*entity.Column{schoolID}, false)
	cat.Freeze()

	cfg := &config.Config{Htsql: config.Htsql{DB: "sqlite://" + path, QueryCacheSize: 4}}
	eng := &Engine{
		cfg:  cfg,
		uri:  &connect.URI{Engine: "sqlite", Database: path},
		pool: connect.NewPool(4),
		fns:  fn.NewRegistry(),
		env:  auth.NewEnvironment(),
	}
	eng.executor = execute.New(eng.pool)
	eng.cache.catalog = cat

	plan, err := eng.Compile(context.Background(), "/school{name, count(department)}", nil)
	require.NoError(t, err)
	require.Contains(t, plan.SQL, `"id"`)

	product, err := plan.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, product.Records, 2)
	for _, rec := range product.Records {
		require.Equal(t, "Satellite Campus", rec[0])
	}
}
