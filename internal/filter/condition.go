package filter

import "fmt"

// Condition is an optional constraint on a single numeric or scalar action parameter.
// The zero Condition places no constraint.
type Condition struct {
	op      Operator
	operand Literal
}

// Exactly requires equality.
func Exactly(v interface{}) Condition { return Condition{operand: mustLiteral(v)} }

// AtLeast requires field >= v.
func AtLeast(v interface{}) Condition {
	return Condition{op: OpGreaterThanOrEqual, operand: mustLiteral(v)}
}

// AtMost requires field <= v.
func AtMost(v interface{}) Condition {
	return Condition{op: OpLessThanOrEqual, operand: mustLiteral(v)}
}

// IsAny reports whether the condition is the wildcard.
func (c Condition) IsAny() bool { return c.operand.IsUndefined() }

func (c Condition) Operand() Literal { return c.operand }

// On binds the condition to a field.
func (c Condition) On(field string) Node {
	if c.op == "" {
		return Equals{Field: ParsePath(field), Value: c.operand}
	}
	return Compare{Field: ParsePath(field), Op: c.op, Operand: c.operand}
}

func (c Condition) String() string {
	switch {
	case c.IsAny():
		return "any"
	case c.op == "":
		return fmt.Sprintf("eq %s", c.operand)
	default:
		return fmt.Sprintf("%s %s", c.op, c.operand)
	}
}
