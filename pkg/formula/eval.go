package formula

import (
	"fmt"
	"math"
)

type node interface {
	eval(vars map[string]float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(map[string]float64) (float64, error) {
	return float64(n), nil
}

type identNode string

func (n identNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariable, string(n))
	}
	return v, nil
}

type negateNode struct {
	operand node
}

func (n negateNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unsupported operator %q", n.op)
}

func collectIdentifiers(n node, visit func(string)) {
	switch v := n.(type) {
	case identNode:
		visit(string(v))
	case negateNode:
		collectIdentifiers(v.operand, visit)
	case binaryNode:
		collectIdentifiers(v.left, visit)
		collectIdentifiers(v.right, visit)
	}
}

// Eval evaluates the expression against vars. A NaN or infinite result is
// reported as ErrNonFinite.
func (e *Expression) Eval(vars map[string]float64) (float64, error) {
	v, err := e.root.eval(vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNonFinite
	}
	return v, nil
}
