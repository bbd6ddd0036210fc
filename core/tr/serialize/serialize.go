// Package serialize implements the serializer of spec.md §4.8: it walks a
// reduced core/tr/assemble.Frame tree and renders SQL text, assigning table
// aliases as it goes and delegating every dialect-specific spelling
// (identifier quoting, string escaping, CAST target names, LIMIT/OFFSET
// syntax) to a Dialect so one Frame tree serializes identically across
// engines modulo that one seam.
//
// Grounded on original_source/src/htsql/tr/serializer.py's Format/Serialize
// split: Format's dialect-specific spellings correspond to this package's
// Dialect (QuoteIdent, QuoteString, CastType, LimitOffset below), while its
// join/select/scalar_select clause assembly is done by serializer.walk
// itself rather than by Dialect, and Serialize's
// per-Frame-kind recursion (SerializeLeaf/SerializeScalar/SerializeBranch/
// SerializeSegment) is this package's serializer.walk.
package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheusresearch/htsql-go/core/domain"
	"github.com/prometheusresearch/htsql-go/core/tr/assemble"
)

// Dialect supplies every engine-specific spelling the serializer needs.
// Implementations live in connect/dialect_*.go, next to the driver that
// speaks the same engine's wire protocol.
type Dialect interface {
	// QuoteIdent quotes a table/column/alias name for safe embedding in SQL
	// text.
	QuoteIdent(name string) string
	// QuoteString escapes and quotes a text literal.
	QuoteString(s string) string
	// CastType names target for use in a CAST(... AS target) expression.
	CastType(target domain.Domain) string
	// LimitOffset renders the trailing LIMIT/OFFSET (or engine equivalent)
	// clause text, or "" if both are nil.
	LimitOffset(limit, offset *int) string
}

// Plan is the serializer's final product: the rendered SQL text plus the
// named, typed output row shape a Product's rows will be decoded against
// (spec.md §6).
type Plan struct {
	SQL     string
	Columns []assemble.OutputColumn
}

// Serializer renders a Frame tree to SQL text under one Dialect.
type Serializer struct {
	dialect Dialect
}

// New creates a Serializer for dialect.
func New(dialect Dialect) *Serializer {
	return &Serializer{dialect: dialect}
}

// aliasSet tracks which aliases this query has already assigned, so a
// self-join (two LeafFrames over the same table) gets distinct aliases.
type aliasSet struct {
	taken map[string]bool
}

func newAliasSet() *aliasSet { return &aliasSet{taken: make(map[string]bool)} }

func (as *aliasSet) reserve(want string) string {
	alias := want
	n := 1
	for as.taken[alias] {
		n++
		alias = fmt.Sprintf("%s_%d", want, n)
	}
	as.taken[alias] = true
	return alias
}

// SerializeSegment renders seg to its final Plan.
func (s *Serializer) SerializeSegment(seg *assemble.SegmentFrame) (*Plan, error) {
	sql, err := s.walk(seg.Body, newAliasSet())
	if err != nil {
		return nil, err
	}
	return &Plan{SQL: sql, Columns: seg.Columns}, nil
}

func (s *Serializer) walk(f assemble.Frame, aliases *aliasSet) (string, error) {
	switch n := f.(type) {
	case assemble.ScalarFrame:
		return "(SELECT 1)", nil
	case assemble.LeafFrame:
		return s.dialect.QuoteIdent(n.Table), nil
	case assemble.BranchFrame:
		return s.serializeBranch(n, aliases)
	default:
		return "", fmt.Errorf("cannot serialize frame %T", f)
	}
}

func (s *Serializer) serializeBranch(n assemble.BranchFrame, aliases *aliasSet) (string, error) {
	from, err := s.walk(n.From, aliases)
	if err != nil {
		return "", err
	}
	fromAlias := aliases.reserve(n.Alias)
	clause := from + " AS " + s.dialect.QuoteIdent(fromAlias)
	for _, j := range n.Joins {
		target, err := s.walk(j.Frame, aliases)
		if err != nil {
			return "", err
		}
		targetAlias := fromAlias
		if lf, ok := j.Frame.(assemble.LeafFrame); ok {
			targetAlias = aliases.reserve(lf.Alias)
		}
		target = target + " AS " + s.dialect.QuoteIdent(targetAlias)
		switch j.Kind {
		case "cross":
			clause = clause + " CROSS JOIN " + target
		case "left":
			on, err := s.serializePhrase(*j.On)
			if err != nil {
				return "", err
			}
			clause = clause + " LEFT OUTER JOIN " + target + " ON (" + on + ")"
		default:
			on, err := s.serializePhrase(*j.On)
			if err != nil {
				return "", err
			}
			clause = clause + " INNER JOIN " + target + " ON (" + on + ")"
		}
	}

	selectItems := make([]string, len(n.Select))
	for i, item := range n.Select {
		v, err := s.serializePhrase(item.Expr)
		if err != nil {
			return "", err
		}
		selectItems[i] = v + " AS " + s.dialect.QuoteIdent(item.Name)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectItems, ", "))
	b.WriteString(" FROM ")
	b.WriteString(clause)
	if len(n.Filter) > 0 {
		where, err := s.serializeConjunction(n.Filter)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if len(n.Group) > 0 {
		group := make([]string, len(n.Group))
		for i, g := range n.Group {
			v, err := s.serializePhrase(g)
			if err != nil {
				return "", err
			}
			group[i] = v
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(group, ", "))
	}
	if len(n.GroupFilter) > 0 {
		having, err := s.serializeConjunction(n.GroupFilter)
		if err != nil {
			return "", err
		}
		b.WriteString(" HAVING ")
		b.WriteString(having)
	}
	if len(n.Order) > 0 {
		order := make([]string, len(n.Order))
		for i, o := range n.Order {
			v, err := s.serializePhrase(o.Phrase)
			if err != nil {
				return "", err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			order[i] = v + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}
	if clause := s.dialect.LimitOffset(n.Limit, n.Offset); clause != "" {
		b.WriteString(" ")
		b.WriteString(clause)
	}
	return "(" + b.String() + ")", nil
}

func (s *Serializer) serializeConjunction(ps []assemble.Phrase) (string, error) {
	parts := make([]string, len(ps))
	for i, p := range ps {
		v, err := s.serializePhrase(p)
		if err != nil {
			return "", err
		}
		parts[i] = v
	}
	return strings.Join(parts, " AND "), nil
}

func (s *Serializer) serializePhrase(p assemble.Phrase) (string, error) {
	switch p.Op {
	case "lit":
		return s.serializeConstant(p.Value, p.Domain)
	case "col":
		return s.dialect.QuoteIdent(p.Alias) + "." + s.dialect.QuoteIdent(p.Column), nil
	case "subquery":
		sub := New(s.dialect)
		plan, err := sub.SerializeSegment(p.Nested)
		if err != nil {
			return "", err
		}
		return plan.SQL, nil
	case "call":
		return s.serializeCall(p)
	default:
		return "", fmt.Errorf("cannot serialize phrase op %q", p.Op)
	}
}

func (s *Serializer) serializeCall(p assemble.Phrase) (string, error) {
	args := make([]string, len(p.Args))
	for i, a := range p.Args {
		v, err := s.serializePhrase(a)
		if err != nil {
			return "", err
		}
		args[i] = v
	}
	switch p.Name {
	case "=":
		return fmt.Sprintf("(%s = %s)", args[0], args[1]), nil
	case "!=":
		return fmt.Sprintf("(%s != %s)", args[0], args[1]), nil
	case "==":
		return fmt.Sprintf("(%s IS NOT DISTINCT FROM %s)", args[0], args[1]), nil
	case "!==":
		return fmt.Sprintf("(%s IS DISTINCT FROM %s)", args[0], args[1]), nil
	case "<":
		return fmt.Sprintf("(%s < %s)", args[0], args[1]), nil
	case "<=":
		return fmt.Sprintf("(%s <= %s)", args[0], args[1]), nil
	case ">":
		return fmt.Sprintf("(%s > %s)", args[0], args[1]), nil
	case ">=":
		return fmt.Sprintf("(%s >= %s)", args[0], args[1]), nil
	case "&":
		return "(" + strings.Join(args, " AND ") + ")", nil
	case "|":
		return "(" + strings.Join(args, " OR ") + ")", nil
	case "!":
		return fmt.Sprintf("(NOT %s)", args[0]), nil
	case "+":
		return fmt.Sprintf("(%s + %s)", args[0], args[1]), nil
	case "-":
		return fmt.Sprintf("(%s - %s)", args[0], args[1]), nil
	case "*":
		return fmt.Sprintf("(%s * %s)", args[0], args[1]), nil
	case "/":
		return fmt.Sprintf("(%s / %s)", args[0], args[1]), nil
	case "if_null":
		return fmt.Sprintf("COALESCE(%s, %s)", args[0], args[1]), nil
	case "is_null":
		return fmt.Sprintf("(%s IS NULL)", args[0]), nil
	case "exists":
		return fmt.Sprintf("EXISTS %s", args[0]), nil
	case "count":
		return fmt.Sprintf("COUNT(%s)", args[0]), nil
	case "sum":
		return fmt.Sprintf("SUM(%s)", args[0]), nil
	case "min":
		return fmt.Sprintf("MIN(%s)", args[0]), nil
	case "max":
		return fmt.Sprintf("MAX(%s)", args[0]), nil
	case "avg":
		return fmt.Sprintf("AVG(%s)", args[0]), nil
	case "concat":
		return "(" + strings.Join(args, " || ") + ")", nil
	case "row", "identity":
		return "(" + strings.Join(args, ", ") + ")", nil
	default:
		if strings.HasPrefix(p.Name, "cast_to_") {
			return fmt.Sprintf("CAST(%s AS %s)", args[0], s.dialect.CastType(p.Domain)), nil
		}
		return "", fmt.Errorf("cannot serialize call %q", p.Name)
	}
}

func (s *Serializer) serializeConstant(value interface{}, d domain.Domain) (string, error) {
	if value == nil {
		return "NULL", nil
	}
	switch d.(type) {
	case domain.BooleanDomain:
		b, _ := value.(bool)
		if b {
			return "TRUE", nil
		}
		return "FALSE", nil
	case domain.TextDomain, domain.DateDomain, domain.TimeDomain, domain.DateTimeDomain:
		return s.dialect.QuoteString(fmt.Sprint(value)), nil
	case domain.EnumDomain:
		return s.dialect.QuoteString(fmt.Sprint(value)), nil
	case domain.IntegerDomain:
		switch v := value.(type) {
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		default:
			return fmt.Sprint(value), nil
		}
	case domain.FloatDomain, domain.DecimalDomain:
		return fmt.Sprint(value), nil
	default:
		return fmt.Sprint(value), nil
	}
}
