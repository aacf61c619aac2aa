package expr

import (
	"fmt"

	"github.com/dreamware/gridcalc/internal/calcerr"
)

// Binding supplies variable values during evaluation.
type Binding interface {
	Lookup(name string) (float64, bool)
}

// Vars is a map-backed Binding, handy for one-off evaluation and tests.
type Vars map[string]float64

// Lookup implements Binding.
func (v Vars) Lookup(name string) (float64, bool) {
	x, ok := v[name]
	return x, ok
}

// Eval evaluates n against b. A nil b binds nothing.
func Eval(n Node, b Binding) (float64, error) {
	switch n := n.(type) {
	case Constant:
		return n.Value, nil
	case Variable:
		if b != nil {
			if v, ok := b.Lookup(n.Name); ok {
				return v, nil
			}
		}
		return 0, calcerr.Newf(calcerr.UnboundVariable, "unvalued variable: %s", n.Name)
	case Operator:
		l, err := Eval(n.Left, b)
		if err != nil {
			return 0, err
		}
		r, err := Eval(n.Right, b)
		if err != nil {
			return 0, err
		}
		if n.Op == Div && r == 0 {
			if l == 0 {
				return 0, calcerr.Newf(calcerr.ZeroOverZero, "undefined result at node '%s'", n)
			}
			return 0, calcerr.Newf(calcerr.DivisionByZero, "division by zero at node '%s'", n)
		}
		return n.Op.apply(l, r), nil
	}
	panic(fmt.Sprintf("expr: unexpected node type %T", n))
}
