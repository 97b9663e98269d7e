// Package formula parses and analyzes key figure formulas. Formulas are
// arithmetic expressions over numeric literals and key figure codes, for
// example "DEMAND * 1.1 + ADJUSTMENT".
package formula

import (
	"sort"
)

// Node is a parsed formula expression node.
type Node interface {
	// collectRefs appends the key figure codes the node references.
	collectRefs(refs map[string]struct{})
}

// Literal is a numeric constant.
type Literal struct {
	Value float64
}

// Reference reads another key figure's value for the current period.
type Reference struct {
	Code string
}

// BinaryOp applies an arithmetic operator to two sub-expressions.
type BinaryOp struct {
	Op    byte // one of + - * /
	Left  Node
	Right Node
}

func (l *Literal) collectRefs(map[string]struct{}) {}

func (r *Reference) collectRefs(refs map[string]struct{}) {
	refs[r.Code] = struct{}{}
}

func (b *BinaryOp) collectRefs(refs map[string]struct{}) {
	b.Left.collectRefs(refs)
	b.Right.collectRefs(refs)
}

// Dependencies returns the distinct key figure codes the expression
// references, sorted for stable output.
func Dependencies(n Node) []string {
	refs := map[string]struct{}{}
	n.collectRefs(refs)
	codes := make([]string, 0, len(refs))
	for code := range refs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Eval computes the expression value using lookup to resolve references.
// Division by zero yields zero rather than an error so a single empty cell
// does not poison a whole grid.
func Eval(n Node, lookup func(code string) (float64, error)) (float64, error) {
	switch node := n.(type) {
	case *Literal:
		return node.Value, nil
	case *Reference:
		return lookup(node.Code)
	case *BinaryOp:
		left, err := Eval(node.Left, lookup)
		if err != nil {
			return 0, err
		}
		right, err := Eval(node.Right, lookup)
		if err != nil {
			return 0, err
		}
		switch node.Op {
		case '+':
			return left + right, nil
		case '-':
			return left - right, nil
		case '*':
			return left * right, nil
		case '/':
			if right == 0 {
				return 0, nil
			}
			return left / right, nil
		}
	}
	return 0, nil
}
