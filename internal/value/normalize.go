package value

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	bigIntPtrType = reflect.TypeOf((*big.Int)(nil))
	addressType   = reflect.TypeOf(common.Address{})
)

// Normalize converts a value unpacked by go-ethereum into its canonical form,
// guided by the ABI type it was decoded with.
func Normalize(t abi.Type, decoded interface{}) (Value, error) {
	return normalize(t, reflect.ValueOf(decoded))
}

func normalize(t abi.Type, rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Value{}, fmt.Errorf("nil value for %s", t.String())
	}
	for rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}

	switch t.T {
	case abi.AddressTy:
		if rv.Type() == addressType {
			return Address(rv.Interface().(common.Address)), nil
		}
		if rv.Kind() == reflect.Ptr && rv.Elem().Type() == addressType {
			return Address(rv.Elem().Interface().(common.Address)), nil
		}
		return Value{}, fmt.Errorf("unsupported address type %s", rv.Type())
	case abi.IntTy, abi.UintTy:
		n, err := asBigInt(rv)
		if err != nil {
			return Value{}, err
		}
		return Int(n), nil
	case abi.BoolTy:
		if rv.Kind() != reflect.Bool {
			return Value{}, fmt.Errorf("unsupported bool type %s", rv.Type())
		}
		return Bool(rv.Bool()), nil
	case abi.StringTy:
		if rv.Kind() != reflect.String {
			return Value{}, fmt.Errorf("unsupported string type %s", rv.Type())
		}
		return String(rv.String()), nil
	case abi.BytesTy, abi.FixedBytesTy, abi.HashTy, abi.FunctionTy:
		b, err := asBytes(rv)
		if err != nil {
			return Value{}, err
		}
		return Bytes(b), nil
	case abi.SliceTy, abi.ArrayTy:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return Value{}, fmt.Errorf("unsupported sequence type %s", rv.Type())
		}
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := normalize(*t.Elem, rv.Index(i))
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = item
		}
		return Value{kind: KindList, items: items}, nil
	case abi.TupleTy:
		if rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct || rv.NumField() != len(t.TupleElems) {
			return Value{}, fmt.Errorf("unsupported tuple type %s", rv.Type())
		}
		items := make([]Value, len(t.TupleElems))
		for i, elem := range t.TupleElems {
			item, err := normalize(*elem, rv.Field(i))
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", t.TupleRawNames[i], err)
			}
			items[i] = item
		}
		return Tuple(t.TupleRawNames, items), nil
	default:
		return Value{}, fmt.Errorf("unsupported abi type %s", t.String())
	}
}

func asBigInt(rv reflect.Value) (*big.Int, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	if rv.Type() == bigIntPtrType {
		if rv.IsNil() {
			return new(big.Int), nil
		}
		return new(big.Int).Set(rv.Interface().(*big.Int)), nil
	}
	if rv.Type() == bigIntPtrType.Elem() {
		n := rv.Interface().(big.Int)
		return new(big.Int).Set(&n), nil
	}
	return nil, fmt.Errorf("unsupported int type %s", rv.Type())
}

func asBytes(rv reflect.Value) ([]byte, error) {
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			break
		}
		return append([]byte(nil), rv.Bytes()...), nil
	case reflect.Array:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			break
		}
		out := make([]byte, rv.Len())
		for i := range out {
			out[i] = byte(rv.Index(i).Uint())
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported bytes type %s", rv.Type())
}
