package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Transaction is an observed (or authored) call as fed to the matcher.
// Input is 0x-prefixed hex call data; Value is a decimal or 0x-hex wei amount.
type Transaction struct {
	ChainID     uint64 `json:"chainId"`
	From        string `json:"from"`
	To          string `json:"to"`
	Input       string `json:"input"`
	Value       string `json:"value"`
	Hash        string `json:"hash,omitempty"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

// CallData decodes Input. An empty input is a plain transfer with no call data.
func (tx Transaction) CallData() ([]byte, error) {
	if tx.Input == "" || tx.Input == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(tx.Input)
	if err != nil {
		return nil, fmt.Errorf("tx %s input: %w", tx.Hash, err)
	}
	return b, nil
}

// WeiValue parses Value; an empty value is zero.
func (tx Transaction) WeiValue() (*big.Int, error) {
	s := strings.TrimSpace(tx.Value)
	if s == "" {
		return new(big.Int), nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
		if s == "" {
			return nil, fmt.Errorf("tx %s value: invalid amount %q", tx.Hash, tx.Value)
		}
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("tx %s value: invalid amount %q", tx.Hash, tx.Value)
	}
	return n, nil
}
