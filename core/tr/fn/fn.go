// Package fn implements the formula signature registry SPEC_FULL.md §C.3
// layers on top of spec.md §4.1's Protocol dispatch: every HTSQL built-in
// function/operator (`count`, `sum`, `if_null`, comparisons, boolean
// connectives, `cast`, ...) is a Protocol component keyed by (name, arity),
// with fixed-arity implementations dominating variadic ones of the same
// name, exactly as core/adapter.RealizeProtocol already models.
//
// Grounded on original_source/src/htsql/core/tr/fn/signature.py (the
// Signature/Formula vocabulary) and original_source/src/htsql/core/tr/fn/
// bind.py (the name -> formula table), wired onto core/adapter instead of
// a second bespoke dispatch mechanism.
package fn

import (
	"fmt"
	"strings"

	"github.com/prometheusresearch/htsql-go/core/adapter"
	"github.com/prometheusresearch/htsql-go/core/domain"
)

// Formula describes one built-in function or operator: how to infer its
// result domain from argument domains, and how to render it back to SQL
// text during serialization (core/tr/serialize).
type Formula interface {
	// Name is the Protocol name this formula answers to, compared
	// case-insensitively.
	Name() string
	// IsVariadic reports whether this formula accepts any arity at or
	// above the number of Formula-specific fixed leading arguments.
	IsVariadic() bool
	// Arity is the fixed arity this formula declares (ignored when
	// IsVariadic is true and the registry is queried with a higher count).
	Arity() int
	// InferDomain computes the result domain given bound argument domains,
	// or an error if the arguments don't type-check.
	InferDomain(args []domain.Domain) (domain.Domain, error)
	// Render emits SQL-dialect-neutral infix/prefix/call text for args
	// already rendered to SQL fragments; per-dialect overrides happen in
	// core/tr/serialize.
	Render(args []string) string
}

const formulaInterface adapter.Interface = "fn.Formula"

// Registry holds every registered Formula, dispatched through
// core/adapter's Protocol realization.
type Registry struct {
	adapter *adapter.Registry
}

// NewRegistry builds a registry pre-populated with HTSQL's built-in
// formulas.
func NewRegistry() *Registry {
	r := &Registry{adapter: adapter.NewRegistry()}
	for _, f := range builtins() {
		r.Register(f)
	}
	return r
}

// Register adds f as a Protocol component under its declared name/arity.
func (r *Registry) Register(f Formula) {
	arity := f.Arity()
	var arityPtr *int
	if !f.IsVariadic() {
		arityPtr = &arity
	}
	r.adapter.Register(adapter.Component{
		Interface: formulaInterface,
		Name:      f.Name(),
		Arity:     arityPtr,
		Impl:      f,
	})
}

// Lookup resolves the formula bound to name at the given call arity,
// fixed-arity entries dominating variadic ones of the same name.
func (r *Registry) Lookup(name string, arity int) (Formula, error) {
	real, err := r.adapter.RealizeProtocol(formulaInterface, name, arity)
	if err != nil {
		return nil, err
	}
	return real.Component.Impl.(Formula), nil
}

// --- built-in formula implementations ---

type baseFormula struct {
	name     string
	arity    int
	variadic bool
}

func (b baseFormula) Name() string     { return b.name }
func (b baseFormula) Arity() int       { return b.arity }
func (b baseFormula) IsVariadic() bool { return b.variadic }

type comparisonFormula struct {
	baseFormula
	op string
}

func (f comparisonFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s: expected 2 arguments, got %d", f.name, len(args))
	}
	if _, ok := domain.Coerce(args[0], args[1]); !ok {
		return nil, fmt.Errorf("%s: incompatible operand domains %s and %s", f.name, args[0], args[1])
	}
	return domain.BooleanDomain{}, nil
}

func (f comparisonFormula) Render(args []string) string {
	return fmt.Sprintf("(%s %s %s)", args[0], f.op, args[1])
}

type booleanFormula struct {
	baseFormula
	sqlOp string
}

func (f booleanFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	for _, a := range args {
		if _, ok := a.(domain.BooleanDomain); !ok {
			if _, ok := a.(domain.UntypedDomain); !ok {
				return nil, fmt.Errorf("%s: expected boolean arguments", f.name)
			}
		}
	}
	return domain.BooleanDomain{}, nil
}

func (f booleanFormula) Render(args []string) string {
	if f.name == "!" {
		return fmt.Sprintf("(NOT %s)", args[0])
	}
	return fmt.Sprintf("(%s)", strings.Join(args, fmt.Sprintf(" %s ", f.sqlOp)))
}

type arithmeticFormula struct {
	baseFormula
	op string
}

func (f arithmeticFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	result := domain.Domain(domain.IntegerDomain{})
	for _, a := range args {
		c, ok := domain.Coerce(result, a)
		if !ok {
			return nil, fmt.Errorf("%s: incompatible operand domain %s", f.name, a)
		}
		result = c
	}
	return result, nil
}

func (f arithmeticFormula) Render(args []string) string {
	if len(args) == 1 {
		return fmt.Sprintf("(%s%s)", f.op, args[0])
	}
	return fmt.Sprintf("(%s %s %s)", args[0], f.op, args[1])
}

type ifNullFormula struct{ baseFormula }

func (f ifNullFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	result := args[0]
	for _, a := range args[1:] {
		c, ok := domain.Coerce(result, a)
		if !ok {
			return nil, fmt.Errorf("if_null: incompatible domains")
		}
		result = c
	}
	return result, nil
}

func (f ifNullFormula) Render(args []string) string {
	return fmt.Sprintf("COALESCE(%s)", strings.Join(args, ", "))
}

type isNullFormula struct{ baseFormula }

func (f isNullFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	return domain.BooleanDomain{}, nil
}

func (f isNullFormula) Render(args []string) string {
	return fmt.Sprintf("(%s IS NULL)", args[0])
}

type existsFormula struct{ baseFormula }

func (f existsFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	return domain.BooleanDomain{}, nil
}

func (f existsFormula) Render(args []string) string {
	return fmt.Sprintf("EXISTS (%s)", args[0])
}

type countFormula struct{ baseFormula }

func (f countFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	return domain.IntegerDomain{}, nil
}

func (f countFormula) Render(args []string) string {
	if len(args) == 0 {
		return "COUNT(*)"
	}
	return fmt.Sprintf("COUNT(%s)", args[0])
}

type aggregateFormula struct {
	baseFormula
	sqlName string
}

func (f aggregateFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: expected 1 argument", f.name)
	}
	return args[0], nil
}

func (f aggregateFormula) Render(args []string) string {
	return fmt.Sprintf("%s(%s)", f.sqlName, args[0])
}

type concatFormula struct{ baseFormula }

func (f concatFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	return domain.TextDomain{}, nil
}

func (f concatFormula) Render(args []string) string {
	return fmt.Sprintf("(%s)", strings.Join(args, " || "))
}

type castFormula struct {
	baseFormula
	target domain.Domain
}

func (f castFormula) InferDomain(args []domain.Domain) (domain.Domain, error) {
	return f.target, nil
}

func (f castFormula) Render(args []string) string {
	return fmt.Sprintf("CAST(%s AS %s)", args[0], f.target)
}

func builtins() []Formula {
	var fs []Formula
	for sym, op := range map[string]string{"=": "=", "!=": "<>", "==": "=", "!==": "<>", "<": "<", "<=": "<=", ">": ">", ">=": ">="} {
		fs = append(fs, comparisonFormula{baseFormula{sym, 2, false}, op})
	}
	fs = append(fs,
		booleanFormula{baseFormula{"&", 2, false}, "AND"},
		booleanFormula{baseFormula{"|", 2, false}, "OR"},
		booleanFormula{baseFormula{"!", 1, false}, ""},
		arithmeticFormula{baseFormula{"+", 2, false}, "+"},
		arithmeticFormula{baseFormula{"-", 2, false}, "-"},
		arithmeticFormula{baseFormula{"*", 2, false}, "*"},
		arithmeticFormula{baseFormula{"/", 2, false}, "/"},
		ifNullFormula{baseFormula{"if_null", 1, true}},
		isNullFormula{baseFormula{"is_null", 1, false}},
		existsFormula{baseFormula{"exists", 1, false}},
		countFormula{baseFormula{"count", 0, true}},
		aggregateFormula{baseFormula{"sum", 1, false}, "SUM"},
		aggregateFormula{baseFormula{"min", 1, false}, "MIN"},
		aggregateFormula{baseFormula{"max", 1, false}, "MAX"},
		aggregateFormula{baseFormula{"avg", 1, false}, "AVG"},
		concatFormula{baseFormula{"concat", 1, true}},
	)
	return fs
}

// RegisterCast adds a named `cast_to_<domain>` formula; called once per
// domain the binder's ConvertBinding adapter (core/tr/encode) supports.
func (r *Registry) RegisterCast(name string, target domain.Domain) {
	r.Register(castFormula{baseFormula{name, 1, false}, target})
}
