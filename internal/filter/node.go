package filter

import (
	"strings"
)

// Node is a filter tree node. The set of implementations is closed: And, Or, Equals, Compare.
type Node interface {
	isNode()
}

// And holds when every child holds. An empty And always holds.
type And struct {
	Children []Node
}

// Or holds when at least one child holds. An empty Or never holds.
type Or struct {
	Children []Node
}

// Equals requires the field to equal Value. An undefined Value matches anything.
type Equals struct {
	Field Path
	Value Literal
}

// Compare applies Op between the field and Operand. An undefined Operand matches anything.
type Compare struct {
	Field   Path
	Op      Operator
	Operand Literal
}

func (And) isNode()     {}
func (Or) isNode()      {}
func (Equals) isNode()  {}
func (Compare) isNode() {}

// Path addresses a decoded parameter: a top-level name followed by tuple component
// names or array indexes.
type Path []string

// ParsePath splits a dotted reference such as "_registerArgs.owner" or "path.0".
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, "."))
}

func (p Path) String() string { return strings.Join(p, ".") }

func (p Path) equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// AllOf builds an And node.
func AllOf(children ...Node) Node { return And{Children: children} }

// AnyOf builds an Or node.
func AnyOf(children ...Node) Node { return Or{Children: children} }

// Eq builds an Equals node. v goes through LiteralOf; nil is the wildcard.
// It panics on a Go type LiteralOf cannot represent.
func Eq(field string, v interface{}) Node {
	return Equals{Field: ParsePath(field), Value: mustLiteral(v)}
}

func Gte(field string, v interface{}) Node   { return compare(field, OpGreaterThanOrEqual, v) }
func Lte(field string, v interface{}) Node   { return compare(field, OpLessThanOrEqual, v) }
func First(field string, v interface{}) Node { return compare(field, OpFirst, v) }
func Last(field string, v interface{}) Node  { return compare(field, OpLast, v) }

func compare(field string, op Operator, v interface{}) Node {
	return Compare{Field: ParsePath(field), Op: op, Operand: mustLiteral(v)}
}

func mustLiteral(v interface{}) Literal {
	lit, err := LiteralOf(v)
	if err != nil {
		panic(err)
	}
	return lit
}

// NodesEqual compares two trees structurally. nil equals nil only.
func NodesEqual(a, b Node) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case And:
		y, ok := b.(And)
		return ok && childrenEqual(x.Children, y.Children)
	case Or:
		y, ok := b.(Or)
		return ok && childrenEqual(x.Children, y.Children)
	case Equals:
		y, ok := b.(Equals)
		return ok && x.Field.equal(y.Field) && x.Value.Equal(y.Value)
	case Compare:
		y, ok := b.(Compare)
		return ok && x.Field.equal(y.Field) && x.Op == y.Op && x.Operand.Equal(y.Operand)
	}
	return false
}

func childrenEqual(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !NodesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
