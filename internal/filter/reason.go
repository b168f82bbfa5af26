package filter

import (
	"strings"
)

// ReasonCode classifies why a transaction did not match.
type ReasonCode string

const (
	ReasonChainIDMismatch    ReasonCode = "chain_id_mismatch"
	ReasonAddressMismatch    ReasonCode = "address_mismatch"
	ReasonSelectorMismatch   ReasonCode = "selector_mismatch"
	ReasonMalformedCallData  ReasonCode = "malformed_call_data"
	ReasonUnknownField       ReasonCode = "unknown_field"
	ReasonValueMismatch      ReasonCode = "value_mismatch"
	ReasonOperatorFailed     ReasonCode = "operator_failed"
	ReasonEmptyArray         ReasonCode = "empty_array"
	ReasonTypeMismatch       ReasonCode = "type_mismatch"
	ReasonNoBranchMatched    ReasonCode = "no_branch_matched"
	ReasonNoCandidateMatched ReasonCode = "no_candidate_matched"
	ReasonInvalidNode        ReasonCode = "invalid_node"
)

// Reason is a structured non-match cause. Aggregate codes carry their causes in Children.
type Reason struct {
	Code     ReasonCode `json:"code"`
	Field    string     `json:"field,omitempty"`
	Operator string     `json:"operator,omitempty"`
	Expected string     `json:"expected,omitempty"`
	Actual   string     `json:"actual,omitempty"`
	Detail   string     `json:"detail,omitempty"`
	Children []*Reason  `json:"children,omitempty"`
}

// Fields lists every field referenced anywhere in the reason tree, in first-seen order.
func (r *Reason) Fields() []string {
	var out []string
	seen := map[string]bool{}
	var walk func(*Reason)
	walk = func(n *Reason) {
		if n == nil {
			return
		}
		if n.Field != "" && !seen[n.Field] {
			seen[n.Field] = true
			out = append(out, n.Field)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(r)
	return out
}

// Codes lists every code in the tree, depth first.
func (r *Reason) Codes() []ReasonCode {
	if r == nil {
		return nil
	}
	out := []ReasonCode{r.Code}
	for _, c := range r.Children {
		out = append(out, c.Codes()...)
	}
	return out
}

func (r *Reason) String() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(r.Code))
	if r.Field != "" {
		b.WriteString(" at ")
		b.WriteString(r.Field)
	}
	if r.Operator != "" {
		b.WriteString(" (")
		b.WriteString(r.Operator)
		b.WriteString(")")
	}
	if r.Expected != "" || r.Actual != "" {
		b.WriteString(": expected ")
		b.WriteString(r.Expected)
		b.WriteString(", got ")
		b.WriteString(r.Actual)
	}
	if r.Detail != "" {
		b.WriteString(": ")
		b.WriteString(r.Detail)
	}
	if len(r.Children) > 0 {
		parts := make([]string, len(r.Children))
		for i, c := range r.Children {
			parts[i] = c.String()
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	return b.String()
}
