package model

import (
	"encoding/json"
)

// MatchRecord is the stored outcome of one (transaction, descriptor) evaluation.
type MatchRecord struct {
	ChainID      uint64          `json:"chain_id"`
	TxHash       string          `json:"tx_hash"`
	BlockNumber  uint64          `json:"block_number,omitempty"`
	Value        string          `json:"value,omitempty"`
	DescriptorID string          `json:"descriptor_id"`
	Action       string          `json:"action"`
	Matched      bool            `json:"matched"`
	Signature    string          `json:"signature,omitempty"`
	Params       json.RawMessage `json:"params,omitempty"`
	Reason       json.RawMessage `json:"reason,omitempty"`
	RunID        string          `json:"run_id,omitempty"`
}
