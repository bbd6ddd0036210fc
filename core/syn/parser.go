package syn

import (
	"strconv"

	htsqlerrors "github.com/prometheusresearch/htsql-go/core/errors"
)

// Parser is a recursive-descent, operator-precedence parser over the
// token stream a Lexer produces. Grounded on spec.md §4.3's precedence
// table, low to high: `|`, `&`, `!` prefix, comparisons, additive,
// multiplicative, unary sign, `?` (filter), `^` (project), compose `.`,
// postfix `+`/`-` (direction), selection `{}`, location `[]`, unpack `*`.
// The table governs the operand to the left of `?`; the predicate to its
// right is a whole `|`-level expression, so `school?code='eng'` filters
// school by the comparison.
type Parser struct {
	lex *Lexer
	tok Token
}

// Parse parses src as a single top-level HTSQL expression (an entry point
// equivalent to `parse(source) -> Syntax` in spec.md §6).
func Parse(src string) (Syntax, error) {
	p := &Parser{lex: NewLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Kind == TokEOF {
		return Void{base: base{Location{0, 0}}}, nil
	}
	node, err := p.parseSegment()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != TokEOF {
		return nil, p.errorf("unexpected input after expression")
	}
	return node, nil
}

func (p *Parser) advance() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) errorf(expected string) error {
	return htsqlerrors.Syntax.New(expected + ", found " + tokenDescription(p.tok))
}

func tokenDescription(t Token) string {
	if t.Kind == TokEOF {
		return "end of input"
	}
	return "'" + t.Text + "'"
}

func (p *Parser) at(symbol string) bool {
	return p.tok.Kind == TokSymbol && p.tok.Text == symbol
}

func (p *Parser) expect(symbol string) (Token, error) {
	if !p.at(symbol) {
		return Token{}, p.errorf("expected " + symbol)
	}
	t := p.tok
	return t, p.advance()
}

// parseSegment handles a leading `/` root marker and a top-level `:=`
// assignment, then descends into the operator-precedence chain.
func (p *Parser) parseSegment() (Syntax, error) {
	start := p.tok.Start
	if p.at("/") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		arm, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return Skip{base: base{Location{start, arm.Loc().End}}, Arm: arm}, nil
	}
	return p.parseAssign()
}

func (p *Parser) parseAssign() (Syntax, error) {
	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.at(":=") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return Assign{base: base{Location{lhs.Loc().Start, rhs.Loc().End}}, LHS: lhs, RHS: rhs}, nil
	}
	return lhs, nil
}

func (p *Parser) parseOr() (Syntax, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at("|") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Operator{base: base{Location{left.Loc().Start, right.Loc().End}}, Symbol: "|", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Syntax, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.at("&") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = Operator{base: base{Location{left.Loc().Start, right.Loc().End}}, Symbol: "&", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Syntax, error) {
	if p.at("!") {
		start := p.tok.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		arm, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Prefix{base: base{Location{start, arm.Loc().End}}, Symbol: "!", Arm: arm}, nil
	}
	return p.parseComparison()
}

var comparisonSymbols = map[string]bool{
	"=": true, "!=": true, "==": true, "!==": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"~": true, "!~": true,
}

func (p *Parser) parseComparison() (Syntax, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == TokSymbol && comparisonSymbols[p.tok.Text] {
		sym := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = Operator{base: base{Location{left.Loc().Start, right.Loc().End}}, Symbol: sym, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Syntax, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at("+") || p.at("-") {
		sym := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = Operator{base: base{Location{left.Loc().Start, right.Loc().End}}, Symbol: sym, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Syntax, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at("*") || p.at("/") {
		sym := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Operator{base: base{Location{left.Loc().Start, right.Loc().End}}, Symbol: sym, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Syntax, error) {
	if p.at("-") || p.at("+") {
		sym := p.tok.Text
		start := p.tok.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		arm, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Prefix{base: base{Location{start, arm.Loc().End}}, Symbol: sym, Arm: arm}, nil
	}
	return p.parseFilter()
}

func (p *Parser) parseFilter() (Syntax, error) {
	left, err := p.parseProject()
	if err != nil {
		return nil, err
	}
	for p.at("?") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		pred, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = Filter{base: base{Location{left.Loc().Start, pred.Loc().End}}, Base: left, Predicate: pred}
	}
	return left, nil
}

func (p *Parser) parseProject() (Syntax, error) {
	left, err := p.parseCompose()
	if err != nil {
		return nil, err
	}
	for p.at("^") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		kernel, err := p.parseCompose()
		if err != nil {
			return nil, err
		}
		left = Project{base: base{Location{left.Loc().Start, kernel.Loc().End}}, Base: left, Kernel: kernel}
	}
	return left, nil
}

func (p *Parser) parseCompose() (Syntax, error) {
	left, err := p.parseDirection()
	if err != nil {
		return nil, err
	}
	for p.at(".") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseDirection()
		if err != nil {
			return nil, err
		}
		left = Compose{base: base{Location{left.Loc().Start, right.Loc().End}}, Left: left, Right: right}
	}
	return left, nil
}

// parseDirection is postfix: an expression followed by `+` or `-` denotes
// ascending/descending sort direction, distinct from the infix additive
// use of the same symbols. The token after the sign decides: when it can
// begin an operand (an identifier, a literal, `(`, `$`, `[`, `^`, `*`, or
// another sign) the sign is left to parseAdditive; otherwise it is a
// direction.
func (p *Parser) parseDirection() (Syntax, error) {
	left, err := p.parseSelectionAndLocation()
	if err != nil {
		return nil, err
	}
	for p.at("+") || p.at("-") {
		save := p.lex.pos
		next, err := p.lex.Next()
		p.lex.pos = save
		if err == nil && next.Kind != TokEOF &&
			(next.Kind != TokSymbol || map[string]bool{"(": true, "$": true, "[": true, "^": true, "*": true, "+": true, "-": true}[next.Text]) {
			break
		}
		sym := p.tok.Text
		end := p.tok.End
		if err := p.advance(); err != nil {
			return nil, err
		}
		left = Operator{base: base{Location{left.Loc().Start, end}}, Symbol: "dir" + sym, Left: left, Right: nil}
	}
	return left, nil
}

func (p *Parser) parseSelectionAndLocation() (Syntax, error) {
	left, err := p.parseUnpack()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at("{"):
			rec, err := p.parseRecord()
			if err != nil {
				return nil, err
			}
			left = Select{base: base{Location{left.Loc().Start, rec.Loc().End}}, Base: left, Record: rec}
		case p.at("["):
			start := p.tok.Start
			if err := p.advance(); err != nil {
				return nil, err
			}
			id, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			end, err := p.expect("]")
			if err != nil {
				return nil, err
			}
			left = Locate{base: base{Location{start, end.End}}, Base: left, Identity: id}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseUnpack() (Syntax, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.at("*") {
		start := p.tok.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		var idx *int
		end := start + 1
		if p.tok.Kind == TokInteger {
			n, _ := strconv.ParseInt(p.tok.Text, 10, 64)
			i := int(n)
			idx = &i
			end = p.tok.End
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		left = Unpack{base: base{Location{left.Loc().Start, end}}, Base: left, Idx: idx}
	}
	return left, nil
}

func (p *Parser) parseRecord() (Syntax, error) {
	start := p.tok.Start
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	var elements []Syntax
	if !p.at("}") {
		for {
			el, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
			if p.at(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	end, err := p.expect("}")
	if err != nil {
		return nil, err
	}
	return Record{base: base{Location{start, end.End}}, Elements: elements}, nil
}

func (p *Parser) parseList() (Syntax, error) {
	start := p.tok.Start
	if _, err := p.expect("["); err != nil {
		return nil, err
	}
	var elements []Syntax
	if !p.at("]") {
		for {
			el, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
			if p.at(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	end, err := p.expect("]")
	if err != nil {
		return nil, err
	}
	return List{base: base{Location{start, end.End}}, Elements: elements}, nil
}

func (p *Parser) parsePrimary() (Syntax, error) {
	switch {
	case p.tok.Kind == TokIdentifier:
		return p.parseIdentifierLike()
	case p.tok.Kind == TokString:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return String{base: base{Location{t.Start, t.End}}, Value: t.Text}, nil
	case p.tok.Kind == TokInteger:
		t := p.tok
		n, _ := strconv.ParseInt(t.Text, 10, 64)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Integer{base: base{Location{t.Start, t.End}}, Text: t.Text, Value: n}, nil
	case p.tok.Kind == TokDecimal:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Decimal{base: base{Location{t.Start, t.End}}, Text: t.Text}, nil
	case p.tok.Kind == TokFloat:
		t := p.tok
		f, _ := strconv.ParseFloat(t.Text, 64)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Float{base: base{Location{t.Start, t.End}}, Text: t.Text, Value: f}, nil
	case p.at("$"):
		start := p.tok.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != TokIdentifier {
			return nil, p.errorf("expected identifier after $")
		}
		id := p.tok.Text
		end := p.tok.End
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Reference{base: base{Location{start, end}}, Identifier: id}, nil
	case p.at("("):
		start := p.tok.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		arm, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(")")
		if err != nil {
			return nil, err
		}
		return Group{base: base{Location{start, end.End}}, Arm: arm}, nil
	case p.at("["):
		return p.parseList()
	case p.at("^"):
		start := p.tok.Start
		end := p.tok.End
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Lift{base: base{Location{start, end}}}, nil
	case p.at("*"):
		start := p.tok.Start
		end := p.tok.End
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Identifier{base: base{Location{start, end}}, Text: "*"}, nil
	default:
		return nil, p.errorf("expected an expression")
	}
}

// parseIdentifierLike handles a bare identifier and a `name(args)` function
// call. A `name := ...` assignment is handled by parseAssign; the pipe form
// (`larm :name(rarms)`) is not parsed anywhere.
func (p *Parser) parseIdentifierLike() (Syntax, error) {
	t := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.at("(") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		var args []Syntax
		if !p.at(")") {
			for {
				arg, err := p.parseAssign()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.at(",") {
					if err := p.advance(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
		}
		end, err := p.expect(")")
		if err != nil {
			return nil, err
		}
		return Function{base: base{Location{t.Start, end.End}}, Identifier: t.Text, Args: args}, nil
	}
	return Identifier{base: base{Location{t.Start, t.End}}, Text: t.Text}, nil
}
