package matcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"questFilter/internal/calldata"
	"questFilter/internal/filter"
	"questFilter/internal/model"
	"questFilter/internal/value"
)

// Result is the outcome of matching one transaction against one descriptor.
// Params and Signature are set only on a match, Reason only on a non-match.
type Result struct {
	Matched   bool
	Signature string
	Params    *value.Params
	Reason    *filter.Reason
}

// Program is a validated descriptor ready to be evaluated many times.
type Program struct {
	name       string
	id         string
	descriptor filter.Descriptor
	contract   string
	functions  calldata.Functions
}

// Compile validates the descriptor once. Errors here are adapter bugs.
func Compile(name string, d filter.Descriptor) (*Program, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	fns, err := calldata.Compile(d.ABI)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	id, err := d.ID()
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Program{
		name:       name,
		id:         id,
		descriptor: d,
		contract:   strings.ToLower(d.Contract.Hex()),
		functions:  fns,
	}, nil
}

func (p *Program) Name() string                  { return p.name }
func (p *Program) ID() string                    { return p.id }
func (p *Program) Descriptor() filter.Descriptor { return p.descriptor }

// Match runs the chain, address, decode and filter checks in that order and stops at
// the first failing one. A non-matching transaction is never an error.
func (p *Program) Match(tx model.Transaction) Result {
	d := p.descriptor
	if d.ChainID != filter.AnyChain && tx.ChainID != d.ChainID {
		return miss(&filter.Reason{
			Code:     filter.ReasonChainIDMismatch,
			Expected: strconv.FormatUint(d.ChainID, 10),
			Actual:   strconv.FormatUint(tx.ChainID, 10),
		})
	}
	if !value.IsAddress(tx.To) || !strings.EqualFold(tx.To, p.contract) {
		return miss(&filter.Reason{
			Code:     filter.ReasonAddressMismatch,
			Expected: p.contract,
			Actual:   tx.To,
		})
	}

	data, err := tx.CallData()
	if err != nil {
		return miss(&filter.Reason{Code: filter.ReasonMalformedCallData, Detail: err.Error()})
	}
	decoded, err := p.functions.Decode(data)
	if err != nil {
		code := filter.ReasonMalformedCallData
		if errors.Is(err, calldata.ErrSelectorMismatch) {
			code = filter.ReasonSelectorMismatch
		}
		return miss(&filter.Reason{Code: code, Detail: err.Error()})
	}

	reasons := make([]*filter.Reason, 0, len(decoded))
	for _, candidate := range decoded {
		params := candidate.Params()
		ok, reason := filter.Evaluate(d.Filter, params)
		if ok {
			return Result{Matched: true, Signature: params.Signature(), Params: params}
		}
		reasons = append(reasons, reason)
	}
	if len(reasons) == 1 {
		return miss(reasons[0])
	}
	return miss(&filter.Reason{Code: filter.ReasonNoCandidateMatched, Children: reasons})
}

func miss(reason *filter.Reason) Result {
	return Result{Reason: reason}
}

// Record converts a result into its stored form.
func (p *Program) Record(tx model.Transaction, res Result) (model.MatchRecord, error) {
	rec := model.MatchRecord{
		ChainID:      tx.ChainID,
		TxHash:       strings.ToLower(tx.Hash),
		BlockNumber:  tx.BlockNumber,
		DescriptorID: p.id,
		Action:       p.name,
		Matched:      res.Matched,
		Signature:    res.Signature,
	}
	// a malformed value is left out; it plays no part in matching
	if wei, err := tx.WeiValue(); err == nil {
		rec.Value = wei.String()
	}
	if res.Params != nil {
		raw, err := json.Marshal(res.Params)
		if err != nil {
			return model.MatchRecord{}, fmt.Errorf("marshal params: %w", err)
		}
		rec.Params = raw
	}
	if res.Reason != nil {
		raw, err := json.Marshal(res.Reason)
		if err != nil {
			return model.MatchRecord{}, fmt.Errorf("marshal reason: %w", err)
		}
		rec.Reason = raw
	}
	return rec, nil
}

// Match compiles d and matches tx against it.
func Match(tx model.Transaction, d filter.Descriptor) (Result, error) {
	p, err := Compile("", d)
	if err != nil {
		return Result{}, err
	}
	return p.Match(tx), nil
}
