package solver

import "fmt"

// Variable is an unknown resolved by a Solver.
type Variable struct {
	name string
}

func NewVariable(name string) *Variable {
	return &Variable{name: name}
}

func (v *Variable) Name() string {
	return v.name
}

func (v *Variable) String() string {
	return v.name
}

type Term struct {
	Variable    *Variable
	Coefficient float64
}

// Expression is a linear combination of variables plus a constant.
type Expression struct {
	Terms    []Term
	Constant float64
}

func Var(v *Variable) Expression {
	return Expression{Terms: []Term{{Variable: v, Coefficient: 1}}}
}

func Const(c float64) Expression {
	return Expression{Constant: c}
}

// Sum adds all given expressions.
func Sum(parts ...Expression) Expression {
	var out Expression
	for _, p := range parts {
		out = out.Plus(p)
	}
	return out
}

func (e Expression) Plus(o Expression) Expression {
	terms := make([]Term, 0, len(e.Terms)+len(o.Terms))
	terms = append(terms, e.Terms...)
	terms = append(terms, o.Terms...)
	return Expression{Terms: terms, Constant: e.Constant + o.Constant}
}

func (e Expression) Minus(o Expression) Expression {
	return e.Plus(o.Scale(-1))
}

func (e Expression) Scale(k float64) Expression {
	terms := make([]Term, len(e.Terms))
	for i, t := range e.Terms {
		terms[i] = Term{Variable: t.Variable, Coefficient: t.Coefficient * k}
	}
	return Expression{Terms: terms, Constant: e.Constant * k}
}

func (e Expression) Add(c float64) Expression {
	return e.Plus(Const(c))
}

// reduced merges terms that reference the same variable, keeping first-seen order.
func (e Expression) reduced() Expression {
	index := make(map[*Variable]int, len(e.Terms))
	terms := make([]Term, 0, len(e.Terms))
	for _, t := range e.Terms {
		if i, ok := index[t.Variable]; ok {
			terms[i].Coefficient += t.Coefficient
			continue
		}
		index[t.Variable] = len(terms)
		terms = append(terms, t)
	}
	return Expression{Terms: terms, Constant: e.Constant}
}

type Operator int

const (
	LessOrEqual Operator = iota
	GreaterOrEqual
	Equal
)

func (o Operator) String() string {
	switch o {
	case LessOrEqual:
		return "<="
	case GreaterOrEqual:
		return ">="
	case Equal:
		return "=="
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// Strength orders soft constraints; Required constraints must hold exactly.
type Strength float64

const (
	Weak     Strength = 1
	Medium   Strength = 1e3
	Strong   Strength = 1e6
	Required Strength = 1e9 + 1e6 + 1e3
)

func (s Strength) clip() Strength {
	if s < 0 {
		return 0
	}
	if s > Required {
		return Required
	}
	return s
}

func (s Strength) String() string {
	switch s {
	case Required:
		return "required"
	case Strong:
		return "strong"
	case Medium:
		return "medium"
	case Weak:
		return "weak"
	default:
		return fmt.Sprintf("%g", float64(s))
	}
}

// Constraint is the relation `expression op 0` with a strength.
type Constraint struct {
	expr     Expression
	op       Operator
	strength Strength
}

// NewConstraint builds `lhs op rhs`.
func NewConstraint(lhs Expression, op Operator, rhs Expression, strength Strength) *Constraint {
	return &Constraint{
		expr:     lhs.Minus(rhs).reduced(),
		op:       op,
		strength: strength.clip(),
	}
}

func Eq(lhs, rhs Expression, strength Strength) *Constraint {
	return NewConstraint(lhs, Equal, rhs, strength)
}

func Le(lhs, rhs Expression, strength Strength) *Constraint {
	return NewConstraint(lhs, LessOrEqual, rhs, strength)
}

func Ge(lhs, rhs Expression, strength Strength) *Constraint {
	return NewConstraint(lhs, GreaterOrEqual, rhs, strength)
}

func (c *Constraint) Expression() Expression { return c.expr }
func (c *Constraint) Operator() Operator     { return c.op }
func (c *Constraint) Strength() Strength     { return c.strength }

func (c *Constraint) Required() bool {
	return c.strength >= Required
}

func (c *Constraint) String() string {
	s := ""
	for i, t := range c.expr.Terms {
		if i > 0 {
			s += " + "
		}
		s += fmt.Sprintf("%g*%s", t.Coefficient, t.Variable.name)
	}
	return fmt.Sprintf("%s + %g %s 0 (%s)", s, c.expr.Constant, c.op, c.strength)
}
