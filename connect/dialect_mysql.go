package connect

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/prometheusresearch/htsql-go/core/domain"
)

// mysqlDialect wires github.com/go-sql-driver/mysql (SPEC_FULL.md §B).
type mysqlDialect struct{}

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (mysqlDialect) CastType(target domain.Domain) string {
	switch target.(type) {
	case domain.IntegerDomain:
		return "SIGNED"
	case domain.FloatDomain, domain.DecimalDomain:
		return "DECIMAL(65,10)"
	case domain.BooleanDomain:
		return "UNSIGNED"
	case domain.DateDomain:
		return "DATE"
	case domain.TimeDomain:
		return "TIME"
	case domain.DateTimeDomain:
		return "DATETIME"
	default:
		return "CHAR"
	}
}

func (mysqlDialect) LimitOffset(limit, offset *int) string {
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
