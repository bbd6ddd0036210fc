package connect

import (
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/prometheusresearch/htsql-go/core/domain"
)

// mssqlDialect wires github.com/denisenkom/go-mssqldb (SPEC_FULL.md §B).
type mssqlDialect struct{}

func (mssqlDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (mssqlDialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (mssqlDialect) CastType(target domain.Domain) string {
	switch target.(type) {
	case domain.IntegerDomain:
		return "INT"
	case domain.FloatDomain:
		return "FLOAT"
	case domain.DecimalDomain:
		return "DECIMAL(32,10)"
	case domain.BooleanDomain:
		return "BIT"
	case domain.DateDomain:
		return "DATE"
	case domain.TimeDomain:
		return "TIME"
	case domain.DateTimeDomain:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// LimitOffset uses the SQL Server 2012+ OFFSET/FETCH form, which requires
// an explicit OFFSET even when only a limit was requested.
func (mssqlDialect) LimitOffset(limit, offset *int) string {
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
