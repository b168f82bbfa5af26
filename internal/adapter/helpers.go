package adapter

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"questFilter/internal/filter"
	"questFilter/internal/value"
)

// Chain ids used by adapters.
const (
	ChainEthereum    uint64 = 1
	ChainOptimism    uint64 = 10
	ChainPolygon     uint64 = 137
	ChainBase        uint64 = 8453
	ChainArbitrumOne uint64 = 42161
)

// ChainNames maps the known chain ids to display names.
var ChainNames = map[uint64]string{
	ChainEthereum:    "ethereum",
	ChainOptimism:    "optimism",
	ChainPolygon:     "polygon",
	ChainBase:        "base",
	ChainArbitrumOne: "arbitrum-one",
}

// NativeToken stands for the chain's gas token in token parameters.
var NativeToken = common.Address{}

// OptionalAddress validates s and returns it as a filter operand. An empty s is the wildcard.
func OptionalAddress(field, s string) (filter.Literal, error) {
	if s == "" {
		return filter.Literal{}, nil
	}
	v, err := value.AddressFromHex(s)
	if err != nil {
		return filter.Literal{}, fmt.Errorf("%s: %w", field, err)
	}
	return filter.Str(v.Text()), nil
}

// RequireAddress parses a mandatory address parameter.
func RequireAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !value.IsAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// PathQuery constrains a V2-style token path: tokenIn must be its first hop and tokenOut
// its last. Missing tokens add no condition, so an empty And is returned when both are.
func PathQuery(field, tokenIn, tokenOut string) (filter.Node, error) {
	var conditions []filter.Node
	if tokenIn != "" {
		lit, err := OptionalAddress("tokenIn", tokenIn)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, filter.First(field, lit))
	}
	if tokenOut != "" {
		lit, err := OptionalAddress("tokenOut", tokenOut)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, filter.Last(field, lit))
	}
	return filter.AllOf(conditions...), nil
}

// ParseUnits converts a human amount such as "174.56" into base units.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units with the given decimals.
func FormatUnits(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount, -decimals).String()
}
