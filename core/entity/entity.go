// Package entity implements the introspected database catalog of spec.md
// §3.1: an immutable DAG of Schema -> Table -> Column plus UniqueKey and
// ForeignKey cross-links, built through a mutable builder phase and frozen
// once with Catalog.Freeze.
//
// Grounded on original_source/src/htsql/core/entity.py's class hierarchy
// (Catalog/Schema/Table/Column/UniqueKey/ForeignKey) and on the teacher's
// freeze-then-read-only discipline for its own sql.Schema (introspected
// once, cached, read-only thereafter).
package entity

import "fmt"

// Catalog is the top-level, ordered set of schemas. It starts mutable and
// becomes permanently read-only after Freeze.
type Catalog struct {
	schemas []*Schema
	byName  map[string]*Schema
	frozen  bool
}

// NewCatalog creates an empty, mutable catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]*Schema)}
}

// AddSchema appends a new schema. Panics if the catalog is frozen.
func (c *Catalog) AddSchema(name string, priority int) *Schema {
	c.mustBeMutable()
	s := &Schema{catalog: c, name: name, priority: priority, byName: make(map[string]*Table)}
	c.schemas = append(c.schemas, s)
	c.byName[name] = s
	return s
}

// Schemas returns the ordered schema list. Safe to range over after Freeze;
// mutation methods on the returned schemas panic once frozen.
func (c *Catalog) Schemas() []*Schema { return c.schemas }

// Schema looks up a schema by name.
func (c *Catalog) Schema(name string) (*Schema, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// RemoveSchema removes a schema and cascades to its tables' keys.
func (c *Catalog) RemoveSchema(name string) {
	c.mustBeMutable()
	s, ok := c.byName[name]
	if !ok {
		return
	}
	for _, t := range append([]*Table(nil), s.tables...) {
		s.RemoveTable(t.name)
	}
	delete(c.byName, name)
	for i, sc := range c.schemas {
		if sc == s {
			c.schemas = append(c.schemas[:i], c.schemas[i+1:]...)
			break
		}
	}
}

// Freeze makes the catalog and every collection it owns permanently
// read-only. Idempotent.
func (c *Catalog) Freeze() {
	c.frozen = true
}

// Frozen reports whether Freeze has been called.
func (c *Catalog) Frozen() bool { return c.frozen }

func (c *Catalog) mustBeMutable() {
	if c.frozen {
		panic("entity: catalog is frozen")
	}
}

// Schema is a named, prioritized container of tables. Priority breaks name
// collisions during classify (spec.md §4.2): higher priority wins.
type Schema struct {
	catalog  *Catalog
	name     string
	priority int
	tables   []*Table
	byName   map[string]*Table
}

func (s *Schema) Name() string       { return s.name }
func (s *Schema) Priority() int      { return s.priority }
func (s *Schema) Tables() []*Table   { return s.tables }
func (s *Schema) Catalog() *Catalog  { return s.catalog }

func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// AddTable appends a new table to the schema.
func (s *Schema) AddTable(name string) *Table {
	s.catalog.mustBeMutable()
	t := &Table{schema: s, name: name, byName: make(map[string]*Column)}
	s.tables = append(s.tables, t)
	s.byName[name] = t
	return t
}

// RemoveTable removes a table, cascading to its columns and every key that
// mentions it (spec.md §3.1 invariant).
func (s *Schema) RemoveTable(name string) {
	s.catalog.mustBeMutable()
	t, ok := s.byName[name]
	if !ok {
		return
	}
	for _, fk := range append([]*ForeignKey(nil), t.foreignKeys...) {
		fk.detach()
	}
	for _, fk := range append([]*ForeignKey(nil), t.referringForeignKeys...) {
		fk.detach()
	}
	t.primaryKey = nil
	t.uniqueKeys = nil
	delete(s.byName, name)
	for i, tb := range s.tables {
		if tb == t {
			s.tables = append(s.tables[:i], s.tables[i+1:]...)
			break
		}
	}
}

// Table is a named, ordered set of columns plus the keys that reference or
// originate from it.
type Table struct {
	schema                *Schema
	name                  string
	columns               []*Column
	byName                map[string]*Column
	primaryKey            *UniqueKey
	uniqueKeys            []*UniqueKey
	foreignKeys           []*ForeignKey
	referringForeignKeys  []*ForeignKey
}

func (t *Table) Schema() *Schema          { return t.schema }
func (t *Table) Name() string             { return t.name }
func (t *Table) Columns() []*Column       { return t.columns }
func (t *Table) PrimaryKey() *UniqueKey   { return t.primaryKey }
func (t *Table) UniqueKeys() []*UniqueKey { return t.uniqueKeys }
func (t *Table) ForeignKeys() []*ForeignKey          { return t.foreignKeys }
func (t *Table) ReferringForeignKeys() []*ForeignKey { return t.referringForeignKeys }

func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// AddColumn appends a new column with the given domain name, nullability
// and has-default flag.
func (t *Table) AddColumn(name string, domainName string, nullable bool, hasDefault bool) *Column {
	t.schema.catalog.mustBeMutable()
	c := &Column{table: t, name: name, domainName: domainName, nullable: nullable, hasDefault: hasDefault}
	t.columns = append(t.columns, c)
	t.byName[name] = c
	return c
}

// RemoveColumn removes a column, cascading to every key that mentions it
// (spec.md §3.1 invariant).
func (t *Table) RemoveColumn(name string) {
	t.schema.catalog.mustBeMutable()
	c, ok := t.byName[name]
	if !ok {
		return
	}
	if t.primaryKey != nil && containsColumn(t.primaryKey.Columns, c) {
		t.primaryKey = nil
	}
	remaining := t.uniqueKeys[:0]
	for _, uk := range t.uniqueKeys {
		if !containsColumn(uk.Columns, c) {
			remaining = append(remaining, uk)
		}
	}
	t.uniqueKeys = remaining
	for _, fk := range append([]*ForeignKey(nil), t.foreignKeys...) {
		if containsColumn(fk.OriginColumns, c) {
			fk.detach()
		}
	}
	for _, fk := range append([]*ForeignKey(nil), t.referringForeignKeys...) {
		if containsColumn(fk.TargetColumns, c) {
			fk.detach()
		}
	}
	delete(t.byName, name)
	for i, col := range t.columns {
		if col == c {
			t.columns = append(t.columns[:i], t.columns[i+1:]...)
			break
		}
	}
}

func containsColumn(cols []*Column, c *Column) bool {
	for _, x := range cols {
		if x == c {
			return true
		}
	}
	return false
}

// SetPrimaryKey declares the table's primary key. Per spec.md §3.1 a
// primary key is never partial and all its columns are non-nullable;
// callers (the introspector) are responsible for that invariant, but this
// constructor enforces it defensively.
func (t *Table) SetPrimaryKey(columns ...*Column) *UniqueKey {
	t.schema.catalog.mustBeMutable()
	for _, c := range columns {
		if c.nullable {
			panic(fmt.Sprintf("entity: primary key column %q must be non-nullable", c.name))
		}
	}
	uk := &UniqueKey{Origin: t, Columns: columns, IsPrimary: true}
	t.primaryKey = uk
	t.uniqueKeys = append(t.uniqueKeys, uk)
	return uk
}

// AddUniqueKey declares a (possibly partial, i.e. over nullable columns)
// unique key.
func (t *Table) AddUniqueKey(partial bool, columns ...*Column) *UniqueKey {
	t.schema.catalog.mustBeMutable()
	uk :=&UniqueKey{Origin: t, Columns: columns, IsPartial: partial}
	t.uniqueKeys = append(t.uniqueKeys, uk)
	return uk
}

// UniqueKey is an ordered list of columns, origin table, with primary/
// partial flags (spec.md §3.1).
type UniqueKey struct {
	Origin    *Table
	Columns   []*Column
	IsPrimary bool
	IsPartial bool
}

// CoversColumns reports whether this key's column set, as a set, equals
// cols — used by Join to determine contracting-ness.
func (uk *UniqueKey) CoversColumns(cols []*Column) bool {
	if len(uk.Columns) != len(cols) {
		return false
	}
	seen := make(map[*Column]bool, len(uk.Columns))
	for _, c := range uk.Columns {
		seen[c] = true
	}
	for _, c := range cols {
		if !seen[c] {
			return false
		}
	}
	return true
}

// ForeignKey links an ordered list of origin columns to a same-length list
// of target columns. Per spec.md §3.1 invariants it appears exactly once in
// both Origin.ForeignKeys and Target.ReferringForeignKeys.
type ForeignKey struct {
	Origin        *Table
	OriginColumns []*Column
	Target        *Table
	TargetColumns []*Column
	IsPartial     bool
}

// AddForeignKey creates and cross-links a new foreign key. Panics if the
// column counts on the two sides differ (spec.md §3.1 invariant).
func AddForeignKey(origin *Table, originColumns []*Column, target *Table, targetColumns []*Column, partial bool) *ForeignKey {
	if len(originColumns) != len(targetColumns) || len(originColumns) == 0 {
		panic("entity: foreign key column counts must match and be non-empty")
	}
	origin.schema.catalog.mustBeMutable()
	fk :=&ForeignKey{Origin: origin, OriginColumns: originColumns, Target: target, TargetColumns: targetColumns, IsPartial: partial}
	origin.foreignKeys = append(origin.foreignKeys, fk)
	target.referringForeignKeys = append(target.referringForeignKeys, fk)
	return fk
}

func (fk *ForeignKey) detach() {
	fk.Origin.foreignKeys = removeFK(fk.Origin.foreignKeys, fk)
	fk.Target.referringForeignKeys = removeFK(fk.Target.referringForeignKeys, fk)
}

func removeFK(list []*ForeignKey, fk *ForeignKey) []*ForeignKey {
	out := list[:0]
	for _, x := range list {
		if x != fk {
			out = append(out, x)
		}
	}
	return out
}

// IsTotal reports whether every origin row is guaranteed to have a match:
// true when none of the origin columns are nullable and the key is not
// partial. Used by Join.IsExpanding for DirectJoin.
func (fk *ForeignKey) IsTotal() bool {
	if fk.IsPartial {
		return false
	}
	for _, c := range fk.OriginColumns {
		if c.Nullable() {
			return false
		}
	}
	return true
}

// Column is a named, typed, nullable-or-not field of a Table.
type Column struct {
	table      *Table
	name       string
	domainName string
	nullable   bool
	hasDefault bool
}

func (c *Column) Table() *Table      { return c.table }
func (c *Column) Name() string       { return c.name }
func (c *Column) DomainName() string { return c.domainName }
func (c *Column) Nullable() bool     { return c.nullable }
func (c *Column) HasDefault() bool   { return c.hasDefault }

// ForeignKeys returns every foreign key this column participates in as an
// origin column (used by classify's find_link, spec.md §4.2 / SPEC_FULL §C.2).
func (c *Column) ForeignKeys() []*ForeignKey {
	var out []*ForeignKey
	for _, fk := range c.table.foreignKeys {
		if containsColumn(fk.OriginColumns, c) {
			out = append(out, fk)
		}
	}
	return out
}
