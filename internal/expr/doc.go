// Package expr parses and evaluates the fully bracketed arithmetic
// expressions accepted by gridcalc.
//
// # Grammar
//
//	expr     := CONSTANT | VARIABLE | '(' expr OPERATOR expr ')'
//	CONSTANT := [0-9]+ ('.' [0-9]+)?
//	VARIABLE := [a-z][a-z0-9]*
//	OPERATOR := '+' | '-' | '*' | '/' | '^'
//
// Every binary operation must be wrapped in its own pair of brackets, so
// there is no precedence to resolve: "(x+(2*y))" is valid, "x+2*y" is not.
// Whitespace anywhere in the input is ignored.
//
// # AST
//
// Parse produces a tree of three node types, Constant, Variable and
// Operator. Node is a closed set: the interface carries an unexported
// method, so Eval can dispatch with an exhaustive type switch.
//
// Trees are immutable after parsing and are owned by the request that
// parsed them; they are never cached or shared between connections.
//
// # Evaluation
//
// Eval walks the tree post-order against a Binding. It fails with
// UnboundVariable when a variable has no value, and with DivisionByZero or
// ZeroOverZero when the right operand of '/' is zero. '^' is math.Pow; the
// other operators are plain float64 arithmetic and never fail, so results
// may be ±Inf or NaN.
//
// # Usage
//
//	nodes, err := expr.ParseAll("(x+1);(x*x)")
//	if err != nil {
//	    return err
//	}
//	v, err := expr.Eval(nodes[0], expr.Vars{"x": 5})
//	// v == 6
package expr
