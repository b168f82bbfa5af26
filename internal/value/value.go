package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrTypeMismatch is returned when two values cannot be ordered against each other.
var ErrTypeMismatch = errors.New("type mismatch")

// Kind enumerates normalized value shapes.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindAddress
	KindInt
	KindBool
	KindBytes
	KindString
	KindList
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	default:
		return "invalid"
	}
}

// Value is a decoded parameter in canonical form. The zero Value is invalid.
type Value struct {
	kind  Kind
	text  string
	num   *big.Int
	flag  bool
	items []Value
	names []string
}

// Address returns the canonical lower-case form of an address.
func Address(addr common.Address) Value {
	return Value{kind: KindAddress, text: strings.ToLower(addr.Hex())}
}

// AddressFromHex validates and normalizes a hex address.
func AddressFromHex(input string) (Value, error) {
	if !IsAddress(input) {
		return Value{}, fmt.Errorf("invalid address: %s", input)
	}
	return Address(common.HexToAddress(input)), nil
}

// IsAddress reports whether input is a 0x-prefixed 20-byte hex string.
func IsAddress(input string) bool {
	return len(input) == 2+2*common.AddressLength && hasHexPrefix(input) && common.IsHexAddress(input)
}

func Int(v *big.Int) Value {
	if v == nil {
		v = new(big.Int)
	}
	return Value{kind: KindInt, num: new(big.Int).Set(v)}
}

func Bool(v bool) Value {
	return Value{kind: KindBool, flag: v}
}

// Bytes stores raw bytes as lower-case 0x hex.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, text: strings.ToLower(hexutil.Encode(b))}
}

func String(s string) Value {
	return Value{kind: KindString, text: s}
}

func List(items ...Value) Value {
	return Value{kind: KindList, items: append([]Value(nil), items...)}
}

// Tuple builds a tuple; names and items must have the same length.
func Tuple(names []string, items []Value) Value {
	return Value{
		kind:  KindTuple,
		names: append([]string(nil), names...),
		items: append([]Value(nil), items...),
	}
}

func (v Value) Kind() Kind { return v.kind }

// Text returns the string form of address, bytes and string values.
func (v Value) Text() string { return v.text }

// BigInt returns a copy of an Int value, nil for other kinds.
func (v Value) BigInt() *big.Int {
	if v.kind != KindInt || v.num == nil {
		return nil
	}
	return new(big.Int).Set(v.num)
}

func (v Value) BoolValue() bool { return v.flag }

// IsSequence reports whether the value is a list or a tuple.
func (v Value) IsSequence() bool {
	return v.kind == KindList || v.kind == KindTuple
}

// Len returns the number of items of a sequence.
func (v Value) Len() int { return len(v.items) }

// Index returns the i-th item of a sequence.
func (v Value) Index(i int) (Value, bool) {
	if !v.IsSequence() || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Field returns a named tuple component.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindTuple {
		return Value{}, false
	}
	for i, n := range v.names {
		if n == name {
			return v.items[i], true
		}
	}
	return Value{}, false
}

// Names returns tuple component names.
func (v Value) Names() []string {
	return append([]string(nil), v.names...)
}

// Child resolves one path segment: a tuple component name or a sequence index.
func (v Value) Child(segment string) (Value, bool) {
	if child, ok := v.Field(segment); ok {
		return child, true
	}
	if !v.IsSequence() {
		return Value{}, false
	}
	idx, err := strconv.Atoi(segment)
	if err != nil {
		return Value{}, false
	}
	return v.Index(idx)
}

// Equal compares two values structurally. Lists and tuples compare as plain sequences.
func Equal(a, b Value) bool {
	if a.IsSequence() && b.IsSequence() {
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindAddress, KindBytes, KindString:
		return a.text == b.text
	case KindInt:
		return a.num.Cmp(b.num) == 0
	case KindBool:
		return a.flag == b.flag
	default:
		return false
	}
}

// Compare orders two integers.
func Compare(a, b Value) (int, error) {
	if a.kind != KindInt || b.kind != KindInt {
		return 0, fmt.Errorf("%w: cannot order %s and %s", ErrTypeMismatch, a.kind, b.kind)
	}
	return a.num.Cmp(b.num), nil
}

func (v Value) String() string {
	switch v.kind {
	case KindAddress, KindBytes:
		return v.text
	case KindString:
		return strconv.Quote(v.text)
	case KindInt:
		return v.num.String()
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindList, KindTuple:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		if v.kind == KindTuple {
			return "(" + strings.Join(parts, ",") + ")"
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return "<invalid>"
	}
}

// MarshalJSON renders integers as decimal strings so no precision is lost downstream.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindAddress, KindBytes, KindString:
		return json.Marshal(v.text)
	case KindInt:
		return json.Marshal(v.num.String())
	case KindBool:
		return json.Marshal(v.flag)
	case KindList:
		if len(v.items) == 0 {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	case KindTuple:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(v.names[i])
			if err != nil {
				return nil, err
			}
			val, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("marshal invalid value")
	}
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
