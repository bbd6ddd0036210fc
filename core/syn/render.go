package syn

import "strings"

// Render serializes a Syntax tree back into HTSQL source text. It is the
// `str` half of spec.md §8's round-trip property: for well-formed source S,
// Render(Parse(S)) must re-parse to a Syntax tree equal to Parse(S).
//
// This is a syntax-level pretty-printer, distinct from core/tr/serialize's
// SQL text emission further down the pipeline.
func Render(s Syntax) string {
	var b strings.Builder
	render(&b, s)
	return b.String()
}

func render(b *strings.Builder, s Syntax) {
	switch n := s.(type) {
	case Void:
		return
	case Skip:
		b.WriteByte('/')
		render(b, n.Arm)
	case Assign:
		render(b, n.LHS)
		b.WriteString(":=")
		render(b, n.RHS)
	case Function:
		b.WriteString(n.Identifier)
		b.WriteByte('(')
		renderList(b, n.Args)
		b.WriteByte(')')
	case Pipe:
		render(b, n.Larm)
		b.WriteString(":")
		b.WriteString(n.Identifier)
		if len(n.Rarms) > 0 {
			b.WriteByte('(')
			renderList(b, n.Rarms)
			b.WriteByte(')')
		}
	case Operator:
		if strings.HasPrefix(n.Symbol, "dir") {
			render(b, n.Left)
			b.WriteString(strings.TrimPrefix(n.Symbol, "dir"))
			return
		}
		render(b, n.Left)
		b.WriteString(n.Symbol)
		render(b, n.Right)
	case Prefix:
		b.WriteString(n.Symbol)
		render(b, n.Arm)
	case Filter:
		render(b, n.Base)
		b.WriteByte('?')
		render(b, n.Predicate)
	case Project:
		render(b, n.Base)
		b.WriteByte('^')
		render(b, n.Kernel)
	case Attach:
		render(b, n.Base)
		b.WriteByte('@')
		render(b, n.Target)
	case Detach:
		render(b, n.Base)
		b.WriteString("@*")
	case Collect:
		render(b, n.Arm)
	case Compose:
		render(b, n.Left)
		b.WriteByte('.')
		render(b, n.Right)
	case Unpack:
		render(b, n.Base)
		b.WriteByte('*')
		if n.Idx != nil {
			b.WriteString(itoa(*n.Idx))
		}
	case Lift:
		b.WriteByte('^')
	case Group:
		b.WriteByte('(')
		render(b, n.Arm)
		b.WriteByte(')')
	case Select:
		render(b, n.Base)
		render(b, n.Record)
	case Locate:
		render(b, n.Base)
		b.WriteByte('[')
		render(b, n.Identity)
		b.WriteByte(']')
	case Record:
		b.WriteByte('{')
		renderList(b, n.Elements)
		b.WriteByte('}')
	case List:
		b.WriteByte('[')
		renderList(b, n.Elements)
		b.WriteByte(']')
	case Identity:
		for i, el := range n.Elements {
			if i > 0 {
				b.WriteByte('^')
			}
			render(b, el)
		}
	case Reference:
		b.WriteByte('$')
		b.WriteString(n.Identifier)
	case Identifier:
		b.WriteString(n.Text)
	case String:
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(n.Value, "'", "''"))
		b.WriteByte('\'')
	case Label:
		b.WriteString(n.Text)
	case Integer:
		b.WriteString(n.Text)
	case Decimal:
		b.WriteString(n.Text)
	case Float:
		b.WriteString(n.Text)
	}
}

func renderList(b *strings.Builder, elements []Syntax) {
	for i, el := range elements {
		if i > 0 {
			b.WriteByte(',')
		}
		render(b, el)
	}
}
