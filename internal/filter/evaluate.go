package filter

import (
	"fmt"

	"questFilter/internal/value"
)

// Evaluate runs the tree against decoded parameters. It never mutates the tree.
// A nil tree places no constraint. On failure the returned Reason explains which
// node failed; an Or lists the reason of every branch.
func Evaluate(n Node, params *value.Params) (bool, *Reason) {
	switch node := n.(type) {
	case nil:
		return true, nil
	case And:
		for _, child := range node.Children {
			if ok, reason := Evaluate(child, params); !ok {
				return false, reason
			}
		}
		return true, nil
	case Or:
		reasons := make([]*Reason, 0, len(node.Children))
		for _, child := range node.Children {
			ok, reason := Evaluate(child, params)
			if ok {
				return true, nil
			}
			reasons = append(reasons, reason)
		}
		return false, &Reason{Code: ReasonNoBranchMatched, Children: reasons}
	case Equals:
		if node.Value.IsUndefined() {
			return true, nil
		}
		v, reason := resolve(node.Field, params)
		if reason != nil {
			return false, reason
		}
		if reason := equals(node.Field.String(), node.Value, v); reason != nil {
			return false, reason
		}
		return true, nil
	case Compare:
		if node.Operand.IsUndefined() {
			return true, nil
		}
		v, reason := resolve(node.Field, params)
		if reason != nil {
			return false, reason
		}
		if reason := apply(node.Field.String(), node.Op, node.Operand, v); reason != nil {
			return false, reason
		}
		return true, nil
	default:
		return false, &Reason{Code: ReasonInvalidNode, Detail: fmt.Sprintf("unsupported node %T", n)}
	}
}

func resolve(field Path, params *value.Params) (value.Value, *Reason) {
	v, ok := params.Lookup(field)
	if !ok {
		return value.Value{}, &Reason{
			Code:   ReasonUnknownField,
			Field:  field.String(),
			Detail: fmt.Sprintf("not a parameter of %s", params.Signature()),
		}
	}
	return v, nil
}
