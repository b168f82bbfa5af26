package calldata

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Param is one typed function input. Components are set for tuple types.
type Param struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Components []Param `json:"components,omitempty"`
}

// Fragment is a single function entry of a contract ABI.
type Fragment struct {
	Name   string  `json:"name"`
	Inputs []Param `json:"inputs"`
}

type fragmentJSON struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	Inputs          []Param `json:"inputs"`
	StateMutability string  `json:"stateMutability,omitempty"`
}

func (f Fragment) MarshalJSON() ([]byte, error) {
	inputs := f.Inputs
	if inputs == nil {
		inputs = []Param{}
	}
	return json.Marshal(fragmentJSON{Type: "function", Name: f.Name, Inputs: inputs})
}

func (f *Fragment) UnmarshalJSON(data []byte) error {
	var raw fragmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "" && raw.Type != "function" {
		return fmt.Errorf("abi entry %q is a %s, not a function", raw.Name, raw.Type)
	}
	if raw.Name == "" {
		return fmt.Errorf("abi function entry without name")
	}
	f.Name = raw.Name
	f.Inputs = raw.Inputs
	return nil
}

// Signature returns the canonical form, e.g. transfer(address,uint256).
func (f Fragment) Signature() string {
	types := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		types[i] = in.CanonicalType()
	}
	return f.Name + "(" + strings.Join(types, ",") + ")"
}

// Selector is the first four bytes of keccak256 of the canonical signature.
func (f Fragment) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(f.Signature())))
	return sel
}

// Equal compares fragments by name, types, and parameter names.
func (f Fragment) Equal(other Fragment) bool {
	if f.Name != other.Name || len(f.Inputs) != len(other.Inputs) {
		return false
	}
	for i := range f.Inputs {
		if !f.Inputs[i].equal(other.Inputs[i]) {
			return false
		}
	}
	return true
}

// FindParam returns the top-level input with the given key. Unnamed inputs are keyed by position.
func (f Fragment) FindParam(key string) (Param, bool) {
	for i, in := range f.Inputs {
		if ParamKey(in, i) == key {
			return in, true
		}
	}
	return Param{}, false
}

// ParamKey is the name under which a decoded top-level argument is exposed.
func ParamKey(p Param, index int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprint(index)
}

func componentName(p Param, index int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("field%d", index)
}

func (p Param) equal(other Param) bool {
	if p.Name != other.Name || p.CanonicalType() != other.CanonicalType() {
		return false
	}
	if len(p.Components) != len(other.Components) {
		return false
	}
	for i := range p.Components {
		if !p.Components[i].equal(other.Components[i]) {
			return false
		}
	}
	return true
}

// IsTuple reports whether the base type, ignoring array suffixes, is a tuple.
func (p Param) IsTuple() bool {
	return strings.HasPrefix(p.Type, "tuple")
}

// arraySuffix returns the trailing [..] dimensions of the type.
func (p Param) arraySuffix() (base, suffix string) {
	idx := strings.IndexByte(p.Type, '[')
	if idx < 0 {
		return p.Type, ""
	}
	return p.Type[:idx], p.Type[idx:]
}

// CanonicalType expands tuples and int/uint aliases the way selectors are computed.
func (p Param) CanonicalType() string {
	base, suffix := p.arraySuffix()
	switch base {
	case "tuple":
		parts := make([]string, len(p.Components))
		for i, c := range p.Components {
			parts[i] = c.CanonicalType()
		}
		return "(" + strings.Join(parts, ",") + ")" + suffix
	case "uint", "int":
		return base + "256" + suffix
	case "byte":
		return "bytes1" + suffix
	default:
		return base + suffix
	}
}

func (p Param) marshaling(name string) abi.ArgumentMarshaling {
	base, suffix := p.arraySuffix()
	typ := p.Type
	switch base {
	case "uint", "int":
		typ = base + "256" + suffix
	case "byte":
		typ = "bytes1" + suffix
	}
	out := abi.ArgumentMarshaling{Name: name, Type: typ}
	for i, c := range p.Components {
		out.Components = append(out.Components, c.marshaling(componentName(c, i)))
	}
	return out
}

// ABIType builds the go-ethereum type descriptor for the parameter.
func (p Param) ABIType() (abi.Type, error) {
	m := p.marshaling(p.Name)
	return abi.NewType(m.Type, "", m.Components)
}
