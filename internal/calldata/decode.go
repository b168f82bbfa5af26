package calldata

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"questFilter/internal/value"
)

var (
	// ErrSelectorMismatch means the call data does not start with any known selector.
	ErrSelectorMismatch = errors.New("selector mismatch")
	// ErrMalformedCallData means the selector matched but the arguments could not be decoded.
	ErrMalformedCallData = errors.New("malformed call data")
)

// Function is a fragment prepared for decoding.
type Function struct {
	fragment  Fragment
	signature string
	selector  [4]byte
	keys      []string
	args      abi.Arguments
}

// NewFunction resolves the go-ethereum types of every input.
func NewFunction(f Fragment) (*Function, error) {
	fn := &Function{
		fragment:  f,
		signature: f.Signature(),
		selector:  f.Selector(),
		keys:      make([]string, len(f.Inputs)),
		args:      make(abi.Arguments, len(f.Inputs)),
	}
	seen := make(map[string]struct{}, len(f.Inputs))
	for i, in := range f.Inputs {
		typ, err := in.ABIType()
		if err != nil {
			return nil, fmt.Errorf("function %s input %d: %w", f.Name, i, err)
		}
		key := ParamKey(in, i)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("function %s: duplicate input %q", f.Name, key)
		}
		seen[key] = struct{}{}
		fn.keys[i] = key
		fn.args[i] = abi.Argument{Name: in.Name, Type: typ}
	}
	return fn, nil
}

func (fn *Function) Fragment() Fragment { return fn.fragment }
func (fn *Function) Signature() string  { return fn.signature }
func (fn *Function) Selector() [4]byte  { return fn.selector }

// Types returns the resolved type of each top-level input keyed by parameter key.
func (fn *Function) Types() map[string]abi.Type {
	out := make(map[string]abi.Type, len(fn.args))
	for i, arg := range fn.args {
		out[fn.keys[i]] = arg.Type
	}
	return out
}

// Unpack checks the selector and decodes the raw go-ethereum values.
func (fn *Function) Unpack(callData []byte) (out []interface{}, err error) {
	if len(callData) < 4 || !bytes.Equal(callData[:4], fn.selector[:]) {
		return nil, ErrSelectorMismatch
	}
	// call data is untrusted; a decoder panic is a malformed payload, not a crash.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %s: %v", ErrMalformedCallData, fn.signature, r)
		}
	}()
	out, err = fn.args.Unpack(callData[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCallData, fn.signature, err)
	}
	if len(out) != len(fn.args) {
		return nil, fmt.Errorf("%w: %s: decoded %d of %d inputs", ErrMalformedCallData, fn.signature, len(out), len(fn.args))
	}
	return out, nil
}

// Decode unpacks and normalizes the arguments of one call.
func (fn *Function) Decode(callData []byte) (*Decoded, error) {
	raw, err := fn.Unpack(callData)
	if err != nil {
		return nil, err
	}
	values := make([]value.Value, len(raw))
	for i, r := range raw {
		v, err := value.Normalize(fn.args[i].Type, r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s input %s: %v", ErrMalformedCallData, fn.signature, fn.keys[i], err)
		}
		values[i] = v
	}
	params, err := value.NewParams(fn.signature, fn.keys, values)
	if err != nil {
		return nil, err
	}
	return &Decoded{Function: fn, params: params}, nil
}

// Decoded is a successful decode of call data against one function.
type Decoded struct {
	Function *Function
	params   *value.Params
}

func (d *Decoded) Params() *value.Params { return d.params }

// Functions is an ABI compiled for decoding, in declaration order.
type Functions []*Function

// Compile prepares every fragment.
func Compile(fragments []Fragment) (Functions, error) {
	out := make(Functions, 0, len(fragments))
	for _, f := range fragments {
		fn, err := NewFunction(f)
		if err != nil {
			return nil, err
		}
		out = append(out, fn)
	}
	return out, nil
}

// Candidates returns the functions whose selector prefixes callData.
func (fs Functions) Candidates(callData []byte) Functions {
	if len(callData) < 4 {
		return nil
	}
	var out Functions
	for _, fn := range fs {
		if bytes.Equal(callData[:4], fn.selector[:]) {
			out = append(out, fn)
		}
	}
	return out
}

// Decode decodes callData against every function sharing its selector and returns the
// successful decodes in declaration order. Colliding selectors are told apart by which
// signatures actually decode.
func (fs Functions) Decode(callData []byte) ([]*Decoded, error) {
	candidates := fs.Candidates(callData)
	if len(candidates) == 0 {
		return nil, ErrSelectorMismatch
	}
	var (
		out     []*Decoded
		lastErr error
	)
	for _, fn := range candidates {
		d, err := fn.Decode(callData)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}
