package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"questFilter/internal/value"
)

// LiteralKind enumerates operand shapes.
type LiteralKind uint8

const (
	// LiteralUndefined is the zero value: the operand imposes no constraint.
	LiteralUndefined LiteralKind = iota
	LiteralString
	LiteralInt
	LiteralBool
	LiteralList
)

// Literal is a filter operand as written by an adapter. Integers keep arbitrary precision.
type Literal struct {
	kind  LiteralKind
	str   string
	num   *big.Int
	flag  bool
	items []Literal
}

func Str(s string) Literal { return Literal{kind: LiteralString, str: s} }

func Int(n *big.Int) Literal {
	if n == nil {
		return Literal{}
	}
	return Literal{kind: LiteralInt, num: new(big.Int).Set(n)}
}

func Bool(b bool) Literal { return Literal{kind: LiteralBool, flag: b} }

func List(items ...Literal) Literal {
	return Literal{kind: LiteralList, items: append([]Literal{}, items...)}
}

func (l Literal) Kind() LiteralKind { return l.kind }

// IsUndefined reports whether the literal is the wildcard.
func (l Literal) IsUndefined() bool { return l.kind == LiteralUndefined }

// LiteralOf converts a Go value into a Literal. nil yields the wildcard.
func LiteralOf(v interface{}) (Literal, error) {
	switch x := v.(type) {
	case nil:
		return Literal{}, nil
	case Literal:
		return x, nil
	case string:
		return Str(x), nil
	case common.Address:
		return Str(strings.ToLower(x.Hex())), nil
	case common.Hash:
		return Str(hexutil.Encode(x[:])), nil
	case *common.Address:
		if x == nil {
			return Literal{}, nil
		}
		return Str(strings.ToLower(x.Hex())), nil
	case *big.Int:
		return Int(x), nil
	case big.Int:
		return Int(&x), nil
	case bool:
		return Bool(x), nil
	case []byte:
		return Str(hexutil.Encode(x)), nil
	case json.Number:
		n, ok := new(big.Int).SetString(x.String(), 10)
		if !ok {
			return Literal{}, fmt.Errorf("literal %s is not an integer", x)
		}
		return Int(n), nil
	case decimal.Decimal:
		if !x.IsInteger() {
			return Literal{}, fmt.Errorf("literal %s is not an integer", x)
		}
		return Int(x.BigInt()), nil
	case value.Value:
		return literalFromValue(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(big.NewInt(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(new(big.Int).SetUint64(rv.Uint())), nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return Str(hexutil.Encode(b)), nil
		}
		items := make([]Literal, rv.Len())
		for i := range items {
			item, err := LiteralOf(rv.Index(i).Interface())
			if err != nil {
				return Literal{}, err
			}
			if item.IsUndefined() {
				return Literal{}, fmt.Errorf("list literal item %d is undefined", i)
			}
			items[i] = item
		}
		return Literal{kind: LiteralList, items: items}, nil
	}
	return Literal{}, fmt.Errorf("unsupported literal type %T", v)
}

func literalFromValue(v value.Value) Literal {
	switch v.Kind() {
	case value.KindInt:
		return Int(v.BigInt())
	case value.KindBool:
		return Bool(v.BoolValue())
	case value.KindList, value.KindTuple:
		items := make([]Literal, v.Len())
		for i := range items {
			item, _ := v.Index(i)
			items[i] = literalFromValue(item)
		}
		return Literal{kind: LiteralList, items: items}
	case value.KindInvalid:
		return Literal{}
	default:
		return Str(v.Text())
	}
}

// Equal compares literals exactly, including their kind.
func (l Literal) Equal(other Literal) bool {
	if l.kind != other.kind {
		return false
	}
	switch l.kind {
	case LiteralString:
		return l.str == other.str
	case LiteralInt:
		return l.num.Cmp(other.num) == 0
	case LiteralBool:
		return l.flag == other.flag
	case LiteralList:
		if len(l.items) != len(other.items) {
			return false
		}
		for i := range l.items {
			if !l.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	}
	return true
}

func (l Literal) String() string {
	switch l.kind {
	case LiteralString:
		return l.str
	case LiteralInt:
		return l.num.String()
	case LiteralBool:
		return strconv.FormatBool(l.flag)
	case LiteralList:
		parts := make([]string, len(l.items))
		for i, item := range l.items {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "<any>"
}

// MarshalJSON writes integers as bare JSON numbers of any length.
func (l Literal) MarshalJSON() ([]byte, error) {
	switch l.kind {
	case LiteralString:
		return json.Marshal(l.str)
	case LiteralInt:
		return []byte(l.num.String()), nil
	case LiteralBool:
		return json.Marshal(l.flag)
	case LiteralList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range l.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			raw, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("undefined literal has no json form")
}

func (l *Literal) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := literalFromJSON(raw)
	if err != nil {
		return err
	}
	*l = out
	return nil
}

func literalFromJSON(raw interface{}) (Literal, error) {
	switch x := raw.(type) {
	case nil:
		return Literal{}, fmt.Errorf("null literal")
	case string:
		return Str(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return LiteralOf(x)
	case []interface{}:
		items := make([]Literal, len(x))
		for i, item := range x {
			lit, err := literalFromJSON(item)
			if err != nil {
				return Literal{}, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = lit
		}
		return Literal{kind: LiteralList, items: items}, nil
	}
	return Literal{}, fmt.Errorf("unsupported json literal %T", raw)
}

// asInt reads an integer from an int literal or a decimal / 0x-hex string.
func (l Literal) asInt() (*big.Int, bool) {
	switch l.kind {
	case LiteralInt:
		return l.num, true
	case LiteralString:
		s := strings.TrimSpace(l.str)
		if s == "" {
			return nil, false
		}
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			return parseHexInt(s[2:])
		}
		return new(big.Int).SetString(s, 10)
	}
	return nil, false
}

// parseHexInt reads unsigned hex digits of any length, leading zeros included.
func parseHexInt(digits string) (*big.Int, bool) {
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return nil, false
	}
	return new(big.Int).SetString(digits, 16)
}

// asHexBytes reads a 0x-prefixed byte string.
func (l Literal) asHexBytes() ([]byte, bool) {
	if l.kind != LiteralString {
		return nil, false
	}
	b, err := hexutil.Decode(l.str)
	return b, err == nil
}

// matchValue coerces the literal to the decoded value's kind and compares them.
// A false ok means the literal cannot be read as that kind at all.
func (l Literal) matchValue(v value.Value) (equal bool, ok bool) {
	switch v.Kind() {
	case value.KindAddress:
		if l.kind != LiteralString || !value.IsAddress(l.str) {
			return false, false
		}
		return strings.EqualFold(l.str, v.Text()), true
	case value.KindInt:
		n, ok := l.asInt()
		if !ok {
			return false, false
		}
		return n.Cmp(v.BigInt()) == 0, true
	case value.KindBool:
		if l.kind != LiteralBool {
			return false, false
		}
		return l.flag == v.BoolValue(), true
	case value.KindBytes:
		b, ok := l.asHexBytes()
		if !ok {
			return false, false
		}
		return value.Bytes(b).Text() == v.Text(), true
	case value.KindString:
		if l.kind != LiteralString {
			return false, false
		}
		return l.str == v.Text(), true
	case value.KindList, value.KindTuple:
		if l.kind != LiteralList {
			return false, false
		}
		if len(l.items) != v.Len() {
			return false, true
		}
		for i, item := range l.items {
			elem, _ := v.Index(i)
			eq, ok := item.matchValue(elem)
			if !ok {
				return false, false
			}
			if !eq {
				return false, true
			}
		}
		return true, true
	}
	return false, false
}
