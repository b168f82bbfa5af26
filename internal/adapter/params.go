package adapter

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"questFilter/internal/filter"
)

// ConditionSpec is the file form of an amount condition. At most one of Eq, Gte and Lte
// may be set. With Decimals the amount is human readable ("174.56"), otherwise it is an
// integer in base units (decimal or 0x hex).
type ConditionSpec struct {
	Eq       string `yaml:"eq"`
	Gte      string `yaml:"gte"`
	Lte      string `yaml:"lte"`
	Decimals *int32 `yaml:"decimals"`
}

// ActionFile is the YAML document accepted by the compile command.
type ActionFile struct {
	ChainID         uint64         `yaml:"chainId"`
	ContractAddress string         `yaml:"contractAddress"`
	TokenIn         string         `yaml:"tokenIn"`
	TokenOut        string         `yaml:"tokenOut"`
	AmountIn        *ConditionSpec `yaml:"amountIn"`
	AmountOut       *ConditionSpec `yaml:"amountOut"`
	Amount          *ConditionSpec `yaml:"amount"`
	Recipient       string         `yaml:"recipient"`
}

// ParseActionFile decodes an action document. Unknown keys are rejected.
func ParseActionFile(data []byte) (ActionFile, error) {
	var f ActionFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return ActionFile{}, fmt.Errorf("parse action params: %w", err)
	}
	return f, nil
}

// SwapParams rejects a file that also sets mint-only keys.
func (f ActionFile) SwapParams() (SwapParams, error) {
	if f.Amount != nil {
		return SwapParams{}, fmt.Errorf("amount does not apply to %s, use amountIn or amountOut", ActionSwap)
	}
	amountIn, err := f.AmountIn.Condition()
	if err != nil {
		return SwapParams{}, fmt.Errorf("amountIn: %w", err)
	}
	amountOut, err := f.AmountOut.Condition()
	if err != nil {
		return SwapParams{}, fmt.Errorf("amountOut: %w", err)
	}
	return SwapParams{
		ChainID:         f.ChainID,
		ContractAddress: f.ContractAddress,
		TokenIn:         f.TokenIn,
		TokenOut:        f.TokenOut,
		AmountIn:        amountIn,
		AmountOut:       amountOut,
		Recipient:       f.Recipient,
	}, nil
}

// MintParams rejects a file that also sets swap-only keys.
func (f ActionFile) MintParams() (MintParams, error) {
	var foreign []string
	for key, set := range map[string]bool{
		"tokenIn":   f.TokenIn != "",
		"tokenOut":  f.TokenOut != "",
		"amountIn":  f.AmountIn != nil,
		"amountOut": f.AmountOut != nil,
	} {
		if set {
			foreign = append(foreign, key)
		}
	}
	if len(foreign) > 0 {
		sort.Strings(foreign)
		return MintParams{}, fmt.Errorf("%s does not apply to %s", strings.Join(foreign, ", "), ActionMint)
	}
	amount, err := f.Amount.Condition()
	if err != nil {
		return MintParams{}, fmt.Errorf("amount: %w", err)
	}
	return MintParams{
		ChainID:         f.ChainID,
		ContractAddress: f.ContractAddress,
		Recipient:       f.Recipient,
		Amount:          amount,
	}, nil
}

// Condition builds the filter condition. A nil ConditionSpec is the wildcard.
func (c *ConditionSpec) Condition() (filter.Condition, error) {
	if c == nil {
		return filter.Condition{}, nil
	}
	set := 0
	for _, s := range []string{c.Eq, c.Gte, c.Lte} {
		if s != "" {
			set++
		}
	}
	if set > 1 {
		return filter.Condition{}, fmt.Errorf("only one of eq, gte, lte may be set")
	}

	switch {
	case c.Eq != "":
		n, err := c.amount(c.Eq)
		if err != nil {
			return filter.Condition{}, err
		}
		return filter.Exactly(n), nil
	case c.Gte != "":
		n, err := c.amount(c.Gte)
		if err != nil {
			return filter.Condition{}, err
		}
		return filter.AtLeast(n), nil
	case c.Lte != "":
		n, err := c.amount(c.Lte)
		if err != nil {
			return filter.Condition{}, err
		}
		return filter.AtMost(n), nil
	}
	return filter.Condition{}, nil
}

func (c *ConditionSpec) amount(s string) (*big.Int, error) {
	if c.Decimals != nil {
		return ParseUnits(s, *c.Decimals)
	}
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	return n, nil
}
