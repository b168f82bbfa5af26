package filter

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"questFilter/internal/calldata"
	"questFilter/internal/value"
)

var (
	// ErrInvalidFilter marks a structurally broken tree or descriptor.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrUnknownField marks a field reference that no ABI fragment declares.
	ErrUnknownField = errors.New("unknown field")
	// ErrTypeMismatch marks an operator or literal that does not fit the field type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// MaxDepth bounds the nesting of a filter tree.
const MaxDepth = 64

// Validate checks the tree against the fragments it will be evaluated with.
// Each field must resolve in at least one fragment, and in every fragment where it
// resolves the operator and literal must fit the field type.
func Validate(n Node, fragments []calldata.Fragment) error {
	fns, err := calldata.Compile(fragments)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if n == nil {
		return nil
	}
	return validateNode(n, fns, 1)
}

func validateNode(n Node, fns calldata.Functions, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: tree deeper than %d", ErrInvalidFilter, MaxDepth)
	}
	switch node := n.(type) {
	case nil:
		return fmt.Errorf("%w: nil node", ErrInvalidFilter)
	case And:
		return validateChildren(node.Children, fns, depth)
	case Or:
		return validateChildren(node.Children, fns, depth)
	case Equals:
		return checkField(node.Field, fns, func(t abi.Type) error {
			if node.Value.IsUndefined() {
				return nil
			}
			return literalFits(node.Value, t)
		})
	case Compare:
		if _, err := ParseOperator(string(node.Op)); err != nil {
			return err
		}
		return checkField(node.Field, fns, func(t abi.Type) error {
			return operatorFits(node.Op, node.Operand, t)
		})
	default:
		return fmt.Errorf("%w: unsupported node %T", ErrInvalidFilter, n)
	}
}

func validateChildren(children []Node, fns calldata.Functions, depth int) error {
	for i, child := range children {
		if err := validateNode(child, fns, depth+1); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
	}
	return nil
}

func checkField(field Path, fns calldata.Functions, check func(abi.Type) error) error {
	if len(field) == 0 {
		return fmt.Errorf("%w: empty field reference", ErrInvalidFilter)
	}
	resolved := 0
	for _, fn := range fns {
		t, ok := resolveType(fn.Types(), field)
		if !ok {
			continue
		}
		resolved++
		if err := check(t); err != nil {
			return fmt.Errorf("%w: %s in %s: %v", ErrTypeMismatch, field, fn.Signature(), err)
		}
	}
	if resolved == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

func resolveType(types map[string]abi.Type, field Path) (abi.Type, bool) {
	t, ok := types[field[0]]
	if !ok {
		return abi.Type{}, false
	}
	for _, segment := range field[1:] {
		switch t.T {
		case abi.TupleTy:
			next := -1
			for i, name := range t.TupleRawNames {
				if name == segment {
					next = i
					break
				}
			}
			if next < 0 {
				idx, err := strconv.Atoi(segment)
				if err != nil || idx < 0 || idx >= len(t.TupleElems) {
					return abi.Type{}, false
				}
				next = idx
			}
			t = *t.TupleElems[next]
		case abi.SliceTy, abi.ArrayTy:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || (t.T == abi.ArrayTy && idx >= t.Size) {
				return abi.Type{}, false
			}
			t = *t.Elem
		default:
			return abi.Type{}, false
		}
	}
	return t, true
}

func operatorFits(op Operator, operand Literal, t abi.Type) error {
	switch {
	case op.IsOrdering():
		if t.T != abi.IntTy && t.T != abi.UintTy {
			return fmt.Errorf("%s needs an integer field, got %s", op, t.String())
		}
		if operand.IsUndefined() {
			return nil
		}
		if _, ok := operand.asInt(); !ok {
			return fmt.Errorf("%s operand %s is not an integer", op, operand)
		}
		return nil
	case op.IsPositional():
		if t.T != abi.SliceTy && t.T != abi.ArrayTy {
			return fmt.Errorf("%s needs an array field, got %s", op, t.String())
		}
		if operand.IsUndefined() {
			return nil
		}
		return literalFits(operand, *t.Elem)
	}
	return fmt.Errorf("unknown operator %q", op)
}

// literalFits reports whether lit can ever equal a decoded value of type t.
func literalFits(lit Literal, t abi.Type) error {
	switch t.T {
	case abi.AddressTy:
		if lit.kind != LiteralString || !value.IsAddress(lit.str) {
			return fmt.Errorf("%s is not a well-formed address", lit)
		}
	case abi.IntTy, abi.UintTy:
		n, ok := lit.asInt()
		if !ok {
			return fmt.Errorf("%s is not an integer", lit)
		}
		if !intFits(n, t) {
			return fmt.Errorf("%s overflows %s", lit, t.String())
		}
	case abi.BoolTy:
		if lit.kind != LiteralBool {
			return fmt.Errorf("%s is not a bool", lit)
		}
	case abi.StringTy:
		if lit.kind != LiteralString {
			return fmt.Errorf("%s is not a string", lit)
		}
	case abi.BytesTy, abi.FixedBytesTy, abi.HashTy, abi.FunctionTy:
		b, ok := lit.asHexBytes()
		if !ok {
			return fmt.Errorf("%s is not 0x hex", lit)
		}
		if t.T == abi.FixedBytesTy && len(b) != t.Size {
			return fmt.Errorf("%s is not %d bytes", lit, t.Size)
		}
	case abi.SliceTy, abi.ArrayTy:
		if lit.kind != LiteralList {
			return fmt.Errorf("%s is not a list", lit)
		}
		if t.T == abi.ArrayTy && len(lit.items) != t.Size {
			return fmt.Errorf("%s does not have %d items", lit, t.Size)
		}
		for i, item := range lit.items {
			if err := literalFits(item, *t.Elem); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	case abi.TupleTy:
		if lit.kind != LiteralList || len(lit.items) != len(t.TupleElems) {
			return fmt.Errorf("%s does not fit %s", lit, t.String())
		}
		for i, item := range lit.items {
			if err := literalFits(item, *t.TupleElems[i]); err != nil {
				return fmt.Errorf("%s: %w", t.TupleRawNames[i], err)
			}
		}
	default:
		return fmt.Errorf("unsupported field type %s", t.String())
	}
	return nil
}

func intFits(n *big.Int, t abi.Type) bool {
	if t.T == abi.UintTy {
		return n.Sign() >= 0 && n.BitLen() <= t.Size
	}
	if n.Sign() >= 0 {
		return n.BitLen() < t.Size
	}
	return new(big.Int).Add(n, big.NewInt(1)).BitLen() < t.Size
}
