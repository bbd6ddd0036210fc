// Package execute implements the execution wrapper of spec.md §4.9: given
// a compiled connect.Pool + serialize.Plan, it acquires a connection,
// executes the SQL, decodes each row through the column's domain, and
// returns a Product. Transact additionally implements SPEC_FULL.md §C
// supplement 5: every step of an ETL-style command set runs inside one
// transaction, rolling back as a unit on any failure.
//
// Grounded on the teacher's retrieved-but-deleted driver/rows.go and
// driver/result.go (see DESIGN.md) for the row-decoding shape (scanning
// database/sql values into domain-typed Go values column by column) and
// on driver/conn.go's connection-then-statement sequencing, adapted from
// wrapping an in-process engine to wrapping a pooled database/sql.DB.
package execute

import (
	"context"
	"database/sql"
	"fmt"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"

	"github.com/prometheusresearch/htsql-go/connect"
	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/tr/assemble"
	"github.com/prometheusresearch/htsql-go/core/tr/serialize"
)

// Profile describes one query's compiled shape, carried alongside its
// Product (spec.md §4.9 step 4): the output columns, each with its name
// and domain. It carries no header, tag or path decorations.
type Profile struct {
	Columns []assemble.OutputColumn
}

// Record is one output row, positional per Profile.Columns.
type Record []interface{}

// Product is the result of executing a Plan: the profile describing its
// shape, and the decoded records.
type Product struct {
	Profile Profile
	Records []Record
}

// Executor runs serialize.Plan values against connections drawn from a
// Pool.
type Executor struct {
	pool *connect.Pool
}

// New creates an Executor over pool.
func New(pool *connect.Pool) *Executor {
	return &Executor{pool: pool}
}

// Execute runs plan against uri's connection and decodes its rows.
func (e *Executor) Execute(ctx context.Context, uri *connect.URI, plan *serialize.Plan) (*Product, error) {
	db, _, err := e.pool.Acquire(ctx, uri)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, plan.SQL)
	if err != nil {
		e.pool.Invalidate(uri)
		return nil, htsqlerrors.Engine.New(fmt.Sprintf("executing query: %s", err))
	}
	defer rows.Close()

	product, err := decode(rows, plan.Columns)
	if err != nil {
		e.pool.Invalidate(uri)
		return nil, err
	}
	if err := rows.Err(); err != nil {
		e.pool.Invalidate(uri)
		return nil, htsqlerrors.Engine.New(fmt.Sprintf("reading rows: %s", err))
	}
	return product, nil
}

func decode(rows *sql.Rows, columns []assemble.OutputColumn) (*Product, error) {
	product := &Product{Profile: Profile{Columns: columns}}
	scanTargets := make([]interface{}, len(columns))
	raw := make([]interface{}, len(columns))
	for i := range raw {
		scanTargets[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, htsqlerrors.Engine.New(fmt.Sprintf("scanning row: %s", err))
		}
		record := make(Record, len(columns))
		for i, col := range columns {
			record[i] = normalize(raw[i], col.Domain)
		}
		product.Records = append(product.Records, record)
	}
	return product, nil
}

// normalize converts a driver-decoded value (often []byte or string for a
// textual driver encoding) to the Go value its domain denotes (spec.md
// §4.9 step 2).
func normalize(v interface{}, d domain.Domain) interface{} {
	if v == nil {
		return nil
	}
	if raw, ok := v.([]byte); ok {
		v = string(raw)
	}
	converted, err := domain.Convert(d, v)
	if err != nil {
		return v
	}
	return converted
}

// Transact runs steps against uri's connection inside a single
// transaction, rolling back on the first error (SPEC_FULL.md §C
// supplement 5: every ETL command's constituent steps commit or fail as a
// unit).
func (e *Executor) Transact(ctx context.Context, uri *connect.URI, steps []string) error {
	db, _, err := e.pool.Acquire(ctx, uri)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return htsqlerrors.Engine.New(fmt.Sprintf("starting transaction: %s", err))
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step); err != nil {
			tx.Rollback()
			e.pool.Invalidate(uri)
			return htsqlerrors.Engine.New(fmt.Sprintf("executing statement: %s", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return htsqlerrors.Engine.New(fmt.Sprintf("committing transaction: %s", err))
	}
	return nil
}
