package quantity

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ExpressionLexer tokenizes dimensioned expressions. Signs are separate
// tokens so the grammar can bind them to literals and groups itself.
var ExpressionLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Number", Pattern: `([0-9]+\.?[0-9]*|\.[0-9]+)([eE][-+]?[0-9]+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z0-9]*`},
	{Name: "Plus", Pattern: `\+`},
	{Name: "Minus", Pattern: `-`},
	{Name: "Star", Pattern: `\*`},
	{Name: "Slash", Pattern: `/`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
})

// expression is the root rule: terms joined by additive operators.
type expression struct {
	Left *term    `@@`
	Rest []*addOp `@@*`
}

type addOp struct {
	Op    string `@(Plus | Minus)`
	Right *term  `@@`
}

type term struct {
	Left *factorNode `@@`
	Rest []*mulOp    `@@*`
}

type mulOp struct {
	Op    string      `@(Star | Slash)`
	Right *factorNode `@@`
}

// factorNode is a signed literal or parenthesized group, optionally
// followed by a unit name. The sign applies to the numeric value before
// unit conversion, so "-30dBm" means thirty decibels below a milliwatt
// rather than a negated linear power.
type factorNode struct {
	Sign  string      `@(Plus | Minus)?`
	Value *float64    `( @Number`
	Group *expression `| LParen @@ RParen )`
	Unit  string      `@Ident?`
}

var exprParser = participle.MustBuild[expression](
	participle.Lexer(ExpressionLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// evalValue carries an intermediate result in its dimension's base unit.
// unit remembers the first display unit written so the final result can
// be rendered the way the caller spelled it.
type evalValue struct {
	base float64
	dim  Dimension
	unit string
}

func (f *factorNode) eval() (evalValue, error) {
	var v evalValue
	if f.Value != nil {
		v = evalValue{base: *f.Value, dim: DimensionNone}
	} else {
		g, err := f.Group.eval()
		if err != nil {
			return evalValue{}, err
		}
		v = g
	}
	if f.Sign == "-" {
		v.base = -v.base
	}
	if f.Unit != "" {
		def, ok := units[f.Unit]
		if !ok {
			return evalValue{}, unknownUnitError(f.Unit)
		}
		if v.dim != DimensionNone {
			return evalValue{}, fmt.Errorf("quantity: unit %q applied to a %s value", f.Unit, v.dim)
		}
		v = evalValue{base: def.toBase(v.base), dim: def.dim, unit: f.Unit}
	}
	return v, nil
}

func (t *term) eval() (evalValue, error) {
	v, err := t.Left.eval()
	if err != nil {
		return evalValue{}, err
	}
	for _, op := range t.Rest {
		r, err := op.Right.eval()
		if err != nil {
			return evalValue{}, err
		}
		switch op.Op {
		case "*":
			if v.dim != DimensionNone && r.dim != DimensionNone {
				return evalValue{}, fmt.Errorf("quantity: cannot multiply %s by %s", v.dim, r.dim)
			}
			if v.dim == DimensionNone {
				v = evalValue{base: v.base * r.base, dim: r.dim, unit: r.unit}
			} else {
				v.base *= r.base
			}
		case "/":
			if r.base == 0 {
				return evalValue{}, errors.New("quantity: division by zero")
			}
			switch {
			case r.dim == DimensionNone:
				v.base /= r.base
			case v.dim == r.dim:
				v = evalValue{base: v.base / r.base, dim: DimensionNone}
			default:
				return evalValue{}, fmt.Errorf("quantity: cannot divide %s by %s", v.dim, r.dim)
			}
		}
	}
	return v, nil
}

func (e *expression) eval() (evalValue, error) {
	v, err := e.Left.eval()
	if err != nil {
		return evalValue{}, err
	}
	for _, op := range e.Rest {
		r, err := op.Right.eval()
		if err != nil {
			return evalValue{}, err
		}
		if v.dim != r.dim {
			return evalValue{}, fmt.Errorf("quantity: mismatched dimensions %s and %s", v.dim, r.dim)
		}
		if op.Op == "-" {
			v.base -= r.base
		} else {
			v.base += r.base
		}
		if v.unit == "" {
			v.unit = r.unit
		}
	}
	return v, nil
}

// Parse evaluates a dimensioned expression like "10mm", "2*(3mm+0.5in)"
// or "-30dBm". Arithmetic across units of one dimension converts through
// the base unit and the result keeps the first unit written. Plain
// numbers come back dimensionless.
func Parse(s string) (Quantity, error) {
	expr, err := exprParser.ParseString("", s)
	if err != nil {
		return Quantity{}, fmt.Errorf("quantity: parse %q: %w", s, err)
	}
	v, err := expr.eval()
	if err != nil {
		return Quantity{}, err
	}
	if v.dim == DimensionNone {
		return Quantity{Value: v.base}, nil
	}
	return Quantity{Value: units[v.unit].fromBase(v.base), Unit: v.unit}, nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(s string) Quantity {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}
