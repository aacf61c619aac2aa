package expr

import (
	"fmt"
	"math"
	"strconv"
)

// Node is a node of a parsed expression. The set of implementations is
// closed: Constant, Variable and Operator.
type Node interface {
	fmt.Stringer
	node()
}

// Constant is a numeric literal.
type Constant struct {
	Value float64
}

// Variable is a reference to a variable bound at evaluation time.
type Variable struct {
	Name string
}

// Operator is a bracketed binary operation.
type Operator struct {
	Op    Op
	Left  Node
	Right Node
}

func (Constant) node() {}
func (Variable) node() {}
func (Operator) node() {}

func (c Constant) String() string {
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

func (v Variable) String() string {
	return v.Name
}

// String renders the operation in the same bracketed form the parser accepts.
func (o Operator) String() string {
	return "(" + o.Left.String() + o.Op.String() + o.Right.String() + ")"
}

// Op is a binary operator.
type Op uint8

// Operators, in the order they are listed by the grammar.
const (
	Add Op = iota
	Sub
	Mul
	Div
	Pow
)

var opSymbols = [...]byte{Add: '+', Sub: '-', Mul: '*', Div: '/', Pow: '^'}

func (op Op) String() string {
	if int(op) < len(opSymbols) {
		return string(opSymbols[op])
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// opFromByte maps an operator symbol to its Op.
func opFromByte(b byte) (Op, bool) {
	for i, s := range opSymbols {
		if s == b {
			return Op(i), true
		}
	}
	return 0, false
}

// apply computes l op r. Division by zero is checked by the caller.
func (op Op) apply(l, r float64) float64 {
	switch op {
	case Add:
		return l + r
	case Sub:
		return l - r
	case Mul:
		return l * r
	case Div:
		return l / r
	case Pow:
		return math.Pow(l, r)
	}
	panic(fmt.Sprintf("expr: unknown operator %d", uint8(op)))
}
