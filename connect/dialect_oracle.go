package connect

import (
	"fmt"
	"strings"

	_ "github.com/sijms/go-ora/v2"

	"github.com/prometheusresearch/htsql-go/core/domain"
)

// oracleDialect wires github.com/sijms/go-ora/v2 (SPEC_FULL.md §B).
type oracleDialect struct{}

func (oracleDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(strings.ToUpper(name), `"`, `""`) + `"`
}

func (oracleDialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (oracleDialect) CastType(target domain.Domain) string {
	switch target.(type) {
	case domain.IntegerDomain:
		return "NUMBER(38,0)"
	case domain.FloatDomain:
		return "BINARY_DOUBLE"
	case domain.DecimalDomain:
		return "NUMBER"
	case domain.BooleanDomain:
		return "NUMBER(1,0)"
	case domain.DateDomain:
		return "DATE"
	case domain.TimeDomain, domain.DateTimeDomain:
		return "TIMESTAMP"
	default:
		return "VARCHAR2(4000)"
	}
}

// LimitOffset uses Oracle 12c+'s OFFSET/FETCH row limiting clause.
func (oracleDialect) LimitOffset(limit, offset *int) string {
	if limit == nil && offset == nil {
		return ""
	}
	n := 0
	if offset != nil {
		n = *offset
	}
	clause := fmt.Sprintf("OFFSET %d ROWS", n)
	if limit != nil {
		clause += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", *limit)
	}
	return clause
}
