package filter

import (
	"fmt"

	"questFilter/internal/value"
)

// Operator is a comparison or positional operator of a Compare node.
type Operator string

const (
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThanOrEqual    Operator = "lte"
	OpFirst              Operator = "first"
	OpLast               Operator = "last"
)

// opEqual is the compact name of an Equals node.
const opEqual = "eq"

// ParseOperator maps a compact operator name to an Operator.
func ParseOperator(name string) (Operator, error) {
	switch op := Operator(name); op {
	case OpGreaterThanOrEqual, OpLessThanOrEqual, OpFirst, OpLast:
		return op, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, name)
}

// IsPositional reports whether the operator selects an array element.
func (op Operator) IsPositional() bool {
	return op == OpFirst || op == OpLast
}

// IsOrdering reports whether the operator compares integers.
func (op Operator) IsOrdering() bool {
	return op == OpGreaterThanOrEqual || op == OpLessThanOrEqual
}

// equals applies structural equality after coercing the operand to the value's kind.
func equals(field string, operand Literal, v value.Value) *Reason {
	eq, ok := operand.matchValue(v)
	if !ok {
		return &Reason{
			Code:     ReasonTypeMismatch,
			Field:    field,
			Operator: opEqual,
			Expected: operand.String(),
			Actual:   v.String(),
			Detail:   fmt.Sprintf("operand cannot be compared with %s", v.Kind()),
		}
	}
	if !eq {
		return &Reason{
			Code:     ReasonValueMismatch,
			Field:    field,
			Operator: opEqual,
			Expected: operand.String(),
			Actual:   v.String(),
		}
	}
	return nil
}

// apply evaluates op against v. A nil reason means the operator holds.
func apply(field string, op Operator, operand Literal, v value.Value) *Reason {
	switch op {
	case OpGreaterThanOrEqual, OpLessThanOrEqual:
		want, ok := operand.asInt()
		if !ok || v.Kind() != value.KindInt {
			return &Reason{
				Code:     ReasonTypeMismatch,
				Field:    field,
				Operator: string(op),
				Expected: operand.String(),
				Actual:   v.String(),
				Detail:   "ordering requires integers",
			}
		}
		cmp, err := value.Compare(v, value.Int(want))
		if err != nil {
			return &Reason{Code: ReasonTypeMismatch, Field: field, Operator: string(op), Detail: err.Error()}
		}
		if (op == OpGreaterThanOrEqual && cmp >= 0) || (op == OpLessThanOrEqual && cmp <= 0) {
			return nil
		}
		return &Reason{
			Code:     ReasonOperatorFailed,
			Field:    field,
			Operator: string(op),
			Expected: operand.String(),
			Actual:   v.String(),
		}
	case OpFirst, OpLast:
		if v.Kind() != value.KindList {
			return &Reason{
				Code:     ReasonTypeMismatch,
				Field:    field,
				Operator: string(op),
				Actual:   v.String(),
				Detail:   fmt.Sprintf("%s requires an array, got %s", op, v.Kind()),
			}
		}
		if v.Len() == 0 {
			return &Reason{Code: ReasonEmptyArray, Field: field, Operator: string(op), Expected: operand.String()}
		}
		idx := 0
		if op == OpLast {
			idx = v.Len() - 1
		}
		elem, _ := v.Index(idx)
		if r := equals(field, operand, elem); r != nil {
			r.Operator = string(op)
			if r.Code == ReasonValueMismatch {
				r.Code = ReasonOperatorFailed
			}
			return r
		}
		return nil
	}
	return &Reason{Code: ReasonInvalidNode, Field: field, Operator: string(op), Detail: "unknown operator"}
}
