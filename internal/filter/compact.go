package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"questFilter/internal/calldata"
	"questFilter/internal/value"
)

// Compact node types.
const (
	NodeTypeAnd       = "and"
	NodeTypeOr        = "or"
	NodeTypeCondition = "condition"
)

// CompactDescriptor is the transportable JSON form of a Descriptor.
type CompactDescriptor struct {
	ChainID uint64       `json:"chainId"`
	To      string       `json:"to"`
	Input   CompactInput `json:"input"`
}

// CompactInput binds the ABI to the filter over its decoded arguments.
type CompactInput struct {
	ABI    []calldata.Fragment `json:"abi"`
	Filter *CompactNode        `json:"filter,omitempty"`
}

// CompactNode is one tree node with an explicit type discriminant. Condition nodes carry
// field, operator ("eq", "gte", "lte", "first", "last") and an optional value; a missing
// value is the wildcard.
type CompactNode struct {
	Type     string
	Filters  []*CompactNode
	Field    string
	Operator string
	Value    *Literal
}

type compactGroupJSON struct {
	Type    string         `json:"type"`
	Filters []*CompactNode `json:"filters"`
}

type compactConditionJSON struct {
	Type     string   `json:"type"`
	Field    string   `json:"field"`
	Operator string   `json:"operator"`
	Value    *Literal `json:"value,omitempty"`
}

type compactNodeJSON struct {
	Type     string           `json:"type"`
	Filters  []*CompactNode   `json:"filters"`
	Field    string           `json:"field"`
	Operator string           `json:"operator"`
	Value    *json.RawMessage `json:"value"`
}

func (n CompactNode) MarshalJSON() ([]byte, error) {
	switch n.Type {
	case NodeTypeAnd, NodeTypeOr:
		filters := n.Filters
		if filters == nil {
			filters = []*CompactNode{}
		}
		return json.Marshal(compactGroupJSON{Type: n.Type, Filters: filters})
	case NodeTypeCondition:
		return json.Marshal(compactConditionJSON{Type: n.Type, Field: n.Field, Operator: n.Operator, Value: n.Value})
	}
	return nil, fmt.Errorf("%w: unknown node type %q", ErrInvalidFilter, n.Type)
}

func (n *CompactNode) UnmarshalJSON(data []byte) error {
	var raw compactNodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := CompactNode{Type: raw.Type, Filters: raw.Filters, Field: raw.Field, Operator: raw.Operator}
	if raw.Value != nil {
		var lit Literal
		if err := lit.UnmarshalJSON(*raw.Value); err != nil {
			return fmt.Errorf("condition %s value: %w", raw.Field, err)
		}
		out.Value = &lit
	}
	*n = out
	return nil
}

// Compress validates d and converts it to its compact form.
func Compress(d Descriptor) (CompactDescriptor, error) {
	if err := d.Validate(); err != nil {
		return CompactDescriptor{}, err
	}
	return toCompact(d), nil
}

// Decompress rebuilds and validates a descriptor.
func Decompress(c CompactDescriptor) (Descriptor, error) {
	if !value.IsAddress(c.To) {
		return Descriptor{}, fmt.Errorf("%w: malformed contract address %q", ErrInvalidFilter, c.To)
	}
	d := Descriptor{
		ChainID:  c.ChainID,
		Contract: common.HexToAddress(c.To),
		ABI:      c.Input.ABI,
	}
	if c.Input.Filter != nil {
		node, err := fromCompact(c.Input.Filter, 1)
		if err != nil {
			return Descriptor{}, err
		}
		d.Filter = node
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// MarshalDescriptor returns the compact JSON document of d.
func MarshalDescriptor(d Descriptor) ([]byte, error) {
	c, err := Compress(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// UnmarshalDescriptor parses and validates a compact JSON document.
func UnmarshalDescriptor(data []byte) (Descriptor, error) {
	var c CompactDescriptor
	if err := json.Unmarshal(data, &c); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return Decompress(c)
}

func toCompact(d Descriptor) CompactDescriptor {
	abi := d.ABI
	if abi == nil {
		abi = []calldata.Fragment{}
	}
	return CompactDescriptor{
		ChainID: d.ChainID,
		To:      strings.ToLower(d.Contract.Hex()),
		Input: CompactInput{
			ABI:    abi,
			Filter: compactNode(d.Filter),
		},
	}
}

func compactNode(n Node) *CompactNode {
	switch node := n.(type) {
	case And:
		return &CompactNode{Type: NodeTypeAnd, Filters: compactChildren(node.Children)}
	case Or:
		return &CompactNode{Type: NodeTypeOr, Filters: compactChildren(node.Children)}
	case Equals:
		return &CompactNode{Type: NodeTypeCondition, Field: node.Field.String(), Operator: opEqual, Value: literalRef(node.Value)}
	case Compare:
		return &CompactNode{Type: NodeTypeCondition, Field: node.Field.String(), Operator: string(node.Op), Value: literalRef(node.Operand)}
	}
	return nil
}

func compactChildren(children []Node) []*CompactNode {
	out := make([]*CompactNode, len(children))
	for i, c := range children {
		out[i] = compactNode(c)
	}
	return out
}

func literalRef(l Literal) *Literal {
	if l.IsUndefined() {
		return nil
	}
	return &l
}

func fromCompact(c *CompactNode, depth int) (Node, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: null node", ErrInvalidFilter)
	}
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: tree deeper than %d", ErrInvalidFilter, MaxDepth)
	}
	switch c.Type {
	case NodeTypeAnd, NodeTypeOr:
		children := make([]Node, len(c.Filters))
		for i, f := range c.Filters {
			child, err := fromCompact(f, depth+1)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		if c.Type == NodeTypeAnd {
			return And{Children: children}, nil
		}
		return Or{Children: children}, nil
	case NodeTypeCondition:
		if c.Field == "" {
			return nil, fmt.Errorf("%w: condition without field", ErrInvalidFilter)
		}
		var operand Literal
		if c.Value != nil {
			operand = *c.Value
		}
		if c.Operator == opEqual {
			return Equals{Field: ParsePath(c.Field), Value: operand}, nil
		}
		op, err := ParseOperator(c.Operator)
		if err != nil {
			return nil, err
		}
		return Compare{Field: ParsePath(c.Field), Op: op, Operand: operand}, nil
	}
	return nil, fmt.Errorf("%w: unknown node type %q", ErrInvalidFilter, c.Type)
}
