// Introspection of spec.md §1/§4.9: analyzing a live database connection's
// metadata into an entity.Catalog. Grounded on
// original_source/src/htsql/introspect.py's Introspect Utility and its
// IntrospectCleanup pass (dropping empty tables/schemas once columns are
// filtered out, and de-duplicating keys discovered by more than one
// metadata query) — ported here as the unconditional final step of
// Introspect rather than a separately weighted Utility override, since this
// module, unlike the original, has no adapter registry point for a second
// Introspect implementation to layer onto.
//
// Each engine reads its own catalog metadata: PRAGMA table_info/
// foreign_key_list/index_list for sqlite (original_source's
// tweak/sqlite/introspect.py), and the ANSI information_schema views for
// pgsql/mysql/mssql (tweak/pgsql, tweak/mysql, tweak/mssql's introspect.py
// modules, which all query information_schema with engine-specific schema
// filters). Oracle reads the ALL_TAB_COLUMNS/ALL_CONSTRAINTS data
// dictionary views (tweak/oracle/introspect.py).
package connect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"

	"github.com/prometheusresearch/htsql-go/core/entity"
)

// Introspect analyzes db's metadata (for engine) into a fresh, frozen
// entity.Catalog. database names the schema/database to restrict
// introspection to, where the engine's metadata model requires one
// (pgsql/mysql/mssql); sqlite and oracle ignore it (sqlite has no
// multi-database metadata to filter; oracle introspects the connected
// user's own schema).
func Introspect(ctx context.Context, db *sql.DB, engine Engine, database string) (*entity.Catalog, error) {
	var cat *entity.Catalog
	var err error
	switch engine {
	case SQLite:
		cat, err = introspectSQLite(ctx, db)
	case PgSQL:
		cat, err = introspectInformationSchema(ctx, db, database, "$", true)
	case MySQL:
		cat, err = introspectInformationSchema(ctx, db, database, "?", false)
	case MSSQL:
		cat, err = introspectInformationSchema(ctx, db, database, "?", false)
	case Oracle:
		cat, err = introspectOracle(ctx, db)
	default:
		return nil, htsqlerrors.Engine.New(fmt.Sprintf("unknown engine %q", engine))
	}
	if err != nil {
		return nil, err
	}
	cleanup(cat)
	cat.Freeze()
	return cat, nil
}

// placeholder renders the i'th (1-based) bind parameter for a driver's
// placeholder style: "$" yields "$1", "$2", ...; anything else yields the
// driver-agnostic "?" every other wired driver accepts.
func placeholder(style string, i int) string {
	if style == "$" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// cleanup mirrors original_source's IntrospectCleanup: drop any table left
// with no columns (a permission-restricted or filtered-out table) and drop
// any schema left with no tables. It does not de-duplicate keys.
func cleanup(cat *entity.Catalog) {
	for _, schema := range append([]*entity.Schema(nil), cat.Schemas()...) {
		for _, table := range append([]*entity.Table(nil), schema.Tables()...) {
			if len(table.Columns()) == 0 {
				schema.RemoveTable(table.Name())
			}
		}
		if len(schema.Tables()) == 0 {
			cat.RemoveSchema(schema.Name())
		}
	}
}

// normalizeDomainName maps an engine-native type spelling to one of the
// canonical domain names core/tr/bind.columnDomain and its encode/assemble
// counterparts switch on ("integer", "float", "decimal", "boolean", "date",
// "time", "datetime"; anything unrecognized falls through to "text").
func normalizeDomainName(nativeType string) string {
	t := strings.ToLower(strings.TrimSpace(nativeType))
	if i := strings.IndexAny(t, "( "); i >= 0 {
		t = t[:i]
	}
	switch {
	case strings.Contains(t, "bool"):
		return "boolean"
	case t == "int" || t == "int2" || t == "int4" || t == "int8" || t == "integer" ||
		t == "smallint" || t == "bigint" || t == "mediumint" || t == "tinyint" ||
		t == "serial" || t == "bigserial":
		return "integer"
	case t == "numeric" || t == "decimal" || t == "number" || t == "money":
		return "decimal"
	case t == "float" || t == "float4" || t == "float8" || t == "real" ||
		t == "double" || t == "double precision" || t == "binary_float" || t == "binary_double":
		return "float"
	case t == "date":
		return "date"
	case t == "time" || t == "time without time zone" || t == "time with time zone":
		return "time"
	case strings.Contains(t, "timestamp") || strings.Contains(t, "datetime"):
		return "datetime"
	default:
		return "text"
	}
}

// introspectSQLite builds a Catalog from sqlite's PRAGMA metadata calls.
// sqlite has exactly one schema, named "main", at priority 0.
func introspectSQLite(ctx context.Context, db *sql.DB) (*entity.Catalog, error) {
	cat := entity.NewCatalog()
	schema := cat.AddSchema("main", 0)

	tableNames, err := queryStrings(ctx, db,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, wrapIntrospect(err)
	}

	tables := make(map[string]*entity.Table, len(tableNames))
	pkColumns := make(map[string][]*entity.Column)
	for _, name := range tableNames {
		table := schema.AddTable(name)
		tables[name] = table

		rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteSQLiteIdent(name)))
		if err != nil {
			return nil, wrapIntrospect(err)
		}
		type colInfo struct {
			name       string
			nativeType string
			notNull    bool
			pkOrdinal  int
			hasDefault bool
		}
		var cols []colInfo
		for rows.Next() {
			var cid, notNull, pk int
			var colName, colType string
			var dflt interface{}
			if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				return nil, wrapIntrospect(err)
			}
			cols = append(cols, colInfo{
				name: colName, nativeType: colType, notNull: notNull != 0,
				pkOrdinal: pk, hasDefault: dflt != nil,
			})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, wrapIntrospect(err)
		}

		for _, ci := range cols {
			col := table.AddColumn(ci.name, normalizeDomainName(ci.nativeType), !ci.notNull, ci.hasDefault)
			if ci.pkOrdinal > 0 {
				pkColumns[name] = append(pkColumns[name], col)
			}
		}
	}

	for name, cols := range pkColumns {
		table := tables[name]
		allNonNull := true
		for _, c := range cols {
			if c.Nullable() {
				allNonNull = false
			}
		}
		if allNonNull {
			table.SetPrimaryKey(cols...)
		} else {
			table.AddUniqueKey(true, cols...)
		}
	}

	for name, table := range tables {
		rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, quoteSQLiteIdent(name)))
		if err != nil {
			return nil, wrapIntrospect(err)
		}
		type fkRow struct {
			id                     int
			seq                    int
			targetTable, from, to string
		}
		var fkRows []fkRow
		for rows.Next() {
			var id, seq int
			var targetTable, from, to, onUpdate, onDelete, match string
			if err := rows.Scan(&id, &seq, &targetTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
				rows.Close()
				return nil, wrapIntrospect(err)
			}
			fkRows = append(fkRows, fkRow{id, seq, targetTable, from, to})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, wrapIntrospect(err)
		}

		byID := map[int][]fkRow{}
		var order []int
		for _, r := range fkRows {
			if _, seen := byID[r.id]; !seen {
				order = append(order, r.id)
			}
			byID[r.id] = append(byID[r.id], r)
		}
		for _, id := range order {
			parts := byID[id]
			target, ok := tables[parts[0].targetTable]
			if !ok {
				continue
			}
			var originCols, targetCols []*entity.Column
			partial := false
			for _, p := range parts {
				oc, ok1 := table.Column(p.from)
				tc, ok2 := target.Column(p.to)
				if !ok1 || !ok2 {
					partial = true
					continue
				}
				originCols = append(originCols, oc)
				targetCols = append(targetCols, tc)
				if oc.Nullable() {
					partial = true
				}
			}
			if len(originCols) == 0 {
				continue
			}
			entity.AddForeignKey(table, originCols, target, targetCols, partial)
		}
	}

	return cat, nil
}

func quoteSQLiteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// introspectInformationSchema builds a Catalog from the ANSI
// information_schema views shared (with small variations database/sql's
// drivers paper over) by pgsql, mysql, and mssql. schemaName restricts
// table_schema/table_catalog; ph renders the i'th bind parameter in the
// active driver's placeholder style; byCatalog selects whether the
// database is identified by table_catalog (pgsql) or table_schema
// (mysql/mssql).
func introspectInformationSchema(ctx context.Context, db *sql.DB, schemaName, style string, byCatalog bool) (*entity.Catalog, error) {
	cat := entity.NewCatalog()
	schemaFilterColumn := "table_schema"
	if byCatalog {
		schemaFilterColumn = "table_catalog"
	}

	tableQuery := fmt.Sprintf(
		`SELECT table_schema, table_name FROM information_schema.tables WHERE %s = %s ORDER BY table_schema, table_name`,
		schemaFilterColumn, placeholder(style, 1))
	rows, err := db.QueryContext(ctx, tableQuery, schemaName)
	if err != nil {
		return nil, wrapIntrospect(err)
	}
	schemas := map[string]*entity.Schema{}
	tables := map[string]*entity.Table{} // keyed "schema.table"
	for rows.Next() {
		var schemaOf, tableName string
		if err := rows.Scan(&schemaOf, &tableName); err != nil {
			rows.Close()
			return nil, wrapIntrospect(err)
		}
		sch, ok := schemas[schemaOf]
		if !ok {
			sch = cat.AddSchema(schemaOf, 0)
			schemas[schemaOf] = sch
		}
		tables[schemaOf+"."+tableName] = sch.AddTable(tableName)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapIntrospect(err)
	}

	colQuery := fmt.Sprintf(
		`SELECT table_schema, table_name, column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns WHERE %s = %s ORDER BY table_schema, table_name, ordinal_position`,
		schemaFilterColumn, placeholder(style, 1))
	rows, err = db.QueryContext(ctx, colQuery, schemaName)
	if err != nil {
		return nil, wrapIntrospect(err)
	}
	for rows.Next() {
		var schemaOf, tableName, colName, dataType, isNullable string
		var colDefault sql.NullString
		if err := rows.Scan(&schemaOf, &tableName, &colName, &dataType, &isNullable, &colDefault); err != nil {
			rows.Close()
			return nil, wrapIntrospect(err)
		}
		table, ok := tables[schemaOf+"."+tableName]
		if !ok {
			continue
		}
		nullable := strings.EqualFold(isNullable, "YES")
		table.AddColumn(colName, normalizeDomainName(dataType), nullable, colDefault.Valid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapIntrospect(err)
	}

	if err := loadKeys(ctx, db, schemaFilterColumn, schemaName, style, tables); err != nil {
		return nil, err
	}
	return cat, nil
}

// loadKeys populates primary/unique/foreign keys by joining
// table_constraints against key_column_usage (and, for foreign keys,
// constraint_column_usage for the referenced side) — the standard
// information_schema shape. If the foreign-key query fails (some engines,
// notably mysql, do not expose constraint_column_usage), loadKeys returns
// with no foreign keys loaded.
func loadKeys(ctx context.Context, db *sql.DB, schemaFilterColumn, schemaName, style string, tables map[string]*entity.Table) error {
	keyQuery := fmt.Sprintf(`
		SELECT tc.table_schema, tc.table_name, tc.constraint_name, tc.constraint_type,
		       kcu.column_name, kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.%s = %s AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position`,
		schemaFilterColumn, placeholder(style, 1))
	rows, err := db.QueryContext(ctx, keyQuery, schemaName)
	if err != nil {
		return wrapIntrospect(err)
	}
	type keyAccum struct {
		table     *entity.Table
		isPrimary bool
		columns   []*entity.Column
	}
	keys := map[string]*keyAccum{}
	var order []string
	for rows.Next() {
		var schemaOf, tableName, constraintName, constraintType, columnName string
		var ordinal int
		if err := rows.Scan(&schemaOf, &tableName, &constraintName, &constraintType, &columnName, &ordinal); err != nil {
			rows.Close()
			return wrapIntrospect(err)
		}
		table, ok := tables[schemaOf+"."+tableName]
		if !ok {
			continue
		}
		col, ok := table.Column(columnName)
		if !ok {
			continue
		}
		key := schemaOf + "." + tableName + "." + constraintName
		acc, seen := keys[key]
		if !seen {
			acc = &keyAccum{table: table, isPrimary: constraintType == "PRIMARY KEY"}
			keys[key] = acc
			order = append(order, key)
		}
		acc.columns = append(acc.columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return wrapIntrospect(err)
	}
	for _, key := range order {
		acc := keys[key]
		if acc.isPrimary {
			allNonNull := true
			for _, c := range acc.columns {
				if c.Nullable() {
					allNonNull = false
				}
			}
			if allNonNull {
				acc.table.SetPrimaryKey(acc.columns...)
				continue
			}
		}
		partial := false
		for _, c := range acc.columns {
			if c.Nullable() {
				partial = true
			}
		}
		acc.table.AddUniqueKey(partial, acc.columns...)
	}

	fkQuery := fmt.Sprintf(`
		SELECT tc.table_schema, tc.table_name, tc.constraint_name, kcu.column_name, kcu.ordinal_position,
		       ccu.table_schema, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		WHERE tc.%s = %s AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position`,
		schemaFilterColumn, placeholder(style, 1))
	rows, err = db.QueryContext(ctx, fkQuery, schemaName)
	if err != nil {
		// Some engines (notably mysql) do not expose
		// constraint_column_usage; a foreign-key-free introspection still
		// succeeds, just without derived Joins.
		return nil
	}
	type fkAccum struct {
		origin, target               *entity.Table
		originColumns, targetColumns []*entity.Column
	}
	fks := map[string]*fkAccum{}
	var fkOrder []string
	for rows.Next() {
		var schemaOf, tableName, constraintName, columnName string
		var ordinal int
		var targetSchema, targetTable, targetColumn string
		if err := rows.Scan(&schemaOf, &tableName, &constraintName, &columnName, &ordinal,
			&targetSchema, &targetTable, &targetColumn); err != nil {
			rows.Close()
			return wrapIntrospect(err)
		}
		origin, ok := tables[schemaOf+"."+tableName]
		if !ok {
			continue
		}
		target, ok := tables[targetSchema+"."+targetTable]
		if !ok {
			continue
		}
		originCol, ok := origin.Column(columnName)
		if !ok {
			continue
		}
		targetCol, ok := target.Column(targetColumn)
		if !ok {
			continue
		}
		key := schemaOf + "." + tableName + "." + constraintName
		acc, seen := fks[key]
		if !seen {
			acc = &fkAccum{origin: origin, target: target}
			fks[key] = acc
			fkOrder = append(fkOrder, key)
		}
		acc.originColumns = append(acc.originColumns, originCol)
		acc.targetColumns = append(acc.targetColumns, targetCol)
	}
	rows.Close()
	for _, key := range fkOrder {
		acc := fks[key]
		partial := false
		for _, c := range acc.originColumns {
			if c.Nullable() {
				partial = true
			}
		}
		entity.AddForeignKey(acc.origin, acc.originColumns, acc.target, acc.targetColumns, partial)
	}
	return nil
}

// introspectOracle builds a Catalog from the data dictionary views visible
// to the connected user (ALL_TAB_COLUMNS, ALL_CONSTRAINTS,
// ALL_CONS_COLUMNS), placing every table under a single synthetic schema
// named "default".
func introspectOracle(ctx context.Context, db *sql.DB) (*entity.Catalog, error) {
	cat := entity.NewCatalog()
	schema := cat.AddSchema("default", 0)

	tables := map[string]*entity.Table{}
	colRows, err := db.QueryContext(ctx,
		`SELECT table_name, column_name, data_type, nullable, data_default
		 FROM all_tab_columns ORDER BY table_name, column_id`)
	if err != nil {
		return nil, wrapIntrospect(err)
	}
	for colRows.Next() {
		var tableName, colName, dataType, nullable string
		var dataDefault sql.NullString
		if err := colRows.Scan(&tableName, &colName, &dataType, &nullable, &dataDefault); err != nil {
			colRows.Close()
			return nil, wrapIntrospect(err)
		}
		table, ok := tables[tableName]
		if !ok {
			table = schema.AddTable(tableName)
			tables[tableName] = table
		}
		table.AddColumn(colName, normalizeDomainName(dataType), strings.EqualFold(nullable, "Y"), dataDefault.Valid)
	}
	colRows.Close()
	if err := colRows.Err(); err != nil {
		return nil, wrapIntrospect(err)
	}

	keyRows, err := db.QueryContext(ctx, `
		SELECT c.table_name, c.constraint_name, c.constraint_type, c.r_constraint_name,
		       cc.column_name, cc.position
		FROM all_constraints c
		JOIN all_cons_columns cc ON c.constraint_name = cc.constraint_name AND c.owner = cc.owner
		WHERE c.constraint_type IN ('P', 'U', 'R')
		ORDER BY c.table_name, c.constraint_name, cc.position`)
	if err != nil {
		// Insufficient privilege to read all_constraints still leaves a
		// usable, key-free catalog.
		return cat, nil
	}
	type acc struct {
		kind    string
		table   *entity.Table
		columns []*entity.Column
		rConstraint string
	}
	accs := map[string]*acc{}
	var order []string
	for keyRows.Next() {
		var tableName, constraintName, constraintType, columnName string
		var rConstraint sql.NullString
		var position int
		if err := keyRows.Scan(&tableName, &constraintName, &constraintType, &rConstraint, &columnName, &position); err != nil {
			keyRows.Close()
			return nil, wrapIntrospect(err)
		}
		table, ok := tables[tableName]
		if !ok {
			continue
		}
		col, ok := table.Column(columnName)
		if !ok {
			continue
		}
		a, seen := accs[constraintName]
		if !seen {
			a = &acc{kind: constraintType, table: table, rConstraint: rConstraint.String}
			accs[constraintName] = a
			order = append(order, constraintName)
		}
		a.columns = append(a.columns, col)
	}
	keyRows.Close()

	// Primary/unique keys resolve in one pass; foreign keys need the
	// referenced constraint's column list, so collect the target keys
	// first, then link.
	targets := map[string]*acc{}
	for _, name := range order {
		a := accs[name]
		if a.kind == "P" || a.kind == "U" {
			targets[name] = a
			if a.kind == "P" {
				a.table.SetPrimaryKey(a.columns...)
			} else {
				partial := false
				for _, c := range a.columns {
					if c.Nullable() {
						partial = true
					}
				}
				a.table.AddUniqueKey(partial, a.columns...)
			}
		}
	}
	for _, name := range order {
		a := accs[name]
		if a.kind != "R" {
			continue
		}
		target := targets[a.rConstraint]
		if target == nil || len(target.columns) != len(a.columns) {
			continue
		}
		partial := false
		for _, c := range a.columns {
			if c.Nullable() {
				partial = true
			}
		}
		entity.AddForeignKey(a.table, a.columns, target.table, target.columns, partial)
	}

	return cat, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func wrapIntrospect(err error) error {
	return htsqlerrors.Engine.New(fmt.Sprintf("introspecting catalog: %s", err))
}
