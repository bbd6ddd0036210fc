package connect

import (
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/prometheusresearch/htsql-go/core/domain"
)

// sqliteDialect wires modernc.org/sqlite (SPEC_FULL.md §B).
type sqliteDialect struct{}

func (sqliteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (sqliteDialect) CastType(target domain.Domain) string {
	switch target.(type) {
	case domain.IntegerDomain:
		return "INTEGER"
	case domain.FloatDomain, domain.DecimalDomain:
		return "REAL"
	case domain.BooleanDomain:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) LimitOffset(limit, offset *int) string {
	if limit == nil && offset == nil {
		return ""
	}
	n := -1
	if limit != nil {
		n = *limit
	}
	clause := "LIMIT " + strconv.Itoa(n)
	if offset != nil {
		clause += fmt.Sprintf(" OFFSET %d", *offset)
	}
	return clause
}
