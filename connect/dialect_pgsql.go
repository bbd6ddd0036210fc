package connect

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/prometheusresearch/htsql-go/core/domain"
)

// pgsqlDialect wires github.com/lib/pq (SPEC_FULL.md §B).
type pgsqlDialect struct{}

func (pgsqlDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (pgsqlDialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (pgsqlDialect) CastType(target domain.Domain) string {
	switch target.(type) {
	case domain.IntegerDomain:
		return "INTEGER"
	case domain.FloatDomain:
		return "DOUBLE PRECISION"
	case domain.DecimalDomain:
		return "NUMERIC"
	case domain.BooleanDomain:
		return "BOOLEAN"
	case domain.DateDomain:
		return "DATE"
	case domain.TimeDomain:
		return "TIME"
	case domain.DateTimeDomain:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (pgsqlDialect) LimitOffset(limit, offset *int) string {
	if limit == nil && offset == nil {
		return ""
	}
	var parts []string
	if limit != nil {
		parts = append(parts, "LIMIT "+strconv.Itoa(*limit))
	}
	if offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *offset))
	}
	return strings.Join(parts, " ")
}
