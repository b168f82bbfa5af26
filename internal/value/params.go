package value

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params is the decoded argument list of one call, keyed by parameter name in ABI order.
// It is never mutated after construction.
type Params struct {
	signature string
	values    *orderedmap.OrderedMap[string, Value]
}

// NewParams builds a mapping for the function identified by signature.
func NewParams(signature string, names []string, values []Value) (*Params, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("params: %d names for %d values", len(names), len(values))
	}
	om := orderedmap.New[string, Value](len(names))
	for i, name := range names {
		if _, present := om.Set(name, values[i]); present {
			return nil, fmt.Errorf("params: duplicate name %q", name)
		}
	}
	return &Params{signature: signature, values: om}, nil
}

// Signature returns the canonical signature of the decoded function.
func (p *Params) Signature() string {
	if p == nil {
		return ""
	}
	return p.signature
}

func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return p.values.Len()
}

func (p *Params) Get(name string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	return p.values.Get(name)
}

// Names returns parameter names in ABI order.
func (p *Params) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, p.values.Len())
	for pair := p.values.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Lookup resolves a field path. The first segment names a parameter, later segments
// select tuple components by name or sequence items by index.
func (p *Params) Lookup(path []string) (Value, bool) {
	if len(path) == 0 {
		return Value{}, false
	}
	v, ok := p.Get(path[0])
	if !ok {
		return Value{}, false
	}
	for _, segment := range path[1:] {
		if v, ok = v.Child(segment); !ok {
			return Value{}, false
		}
	}
	return v, true
}

// Equal reports whether both mappings hold the same signature and values in the same order.
func (p *Params) Equal(other *Params) bool {
	if p.Len() != other.Len() || p.Signature() != other.Signature() {
		return false
	}
	if p == nil || other == nil {
		return p == other || p.Len() == 0
	}
	a, b := p.values.Oldest(), other.values.Oldest()
	for ; a != nil && b != nil; a, b = a.Next(), b.Next() {
		if a.Key != b.Key || !Equal(a.Value, b.Value) {
			return false
		}
	}
	return a == nil && b == nil
}

func (p *Params) MarshalJSON() ([]byte, error) {
	if p == nil || p.values.Len() == 0 {
		return []byte("{}"), nil
	}
	return p.values.MarshalJSON()
}
