package filter

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questFilter/internal/calldata"
)

var routerABI = []calldata.Fragment{
	calldata.MustParseFragment("swapExactTokensForTokens(uint256 amountIn, uint256 amountOutMin, address[] path, address to, uint256 deadline)"),
	calldata.MustParseFragment("swapTokensForExactTokens(uint256 amountOut, uint256 amountInMax, address[] path, address to, uint256 deadline)"),
}

var registerABI = []calldata.Fragment{
	calldata.MustParseFragment("register((string name, string discriminant, address owner, address referrer, uint96 nonce) _registerArgs, bytes _signature)"),
}

func TestValidateAccepts(t *testing.T) {
	tests := []struct {
		name string
		abi  []calldata.Fragment
		node Node
	}{
		{"nil tree", routerABI, nil},
		{"empty and", routerABI, AllOf()},
		{"empty or", routerABI, AnyOf()},
		{"field in one fragment only", routerABI, AnyOf(Gte("amountIn", 1), Gte("amountOut", 1))},
		{"positional", routerABI, AllOf(First("path", magic), Last("path", anima))},
		{"path index", routerABI, Eq("path.0", magic)},
		{"tuple component", registerABI, Eq("_registerArgs.owner", recipientB)},
		{"tuple index", registerABI, Lte("_registerArgs.4", 10)},
		{"bytes literal", registerABI, Eq("_signature", "0xdeadbeef")},
		{"wildcard operand on int", routerABI, Gte("deadline", nil)},
		{"int as string", routerABI, Gte("deadline", "1702694157")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.node, tt.abi))
		})
	}
}

func TestValidateRejects(t *testing.T) {
	deep := Eq("to", recipientB)
	for i := 0; i < MaxDepth; i++ {
		deep = AllOf(deep)
	}
	tests := []struct {
		name string
		abi  []calldata.Fragment
		node Node
		err  error
	}{
		{"unknown field", routerABI, Eq("recipient", recipientB), ErrUnknownField},
		{"unknown wildcard field", routerABI, Eq("recipient", nil), ErrUnknownField},
		{"unknown tuple component", registerABI, Eq("_registerArgs.missing", "x"), ErrUnknownField},
		{"index past fixed array", []calldata.Fragment{calldata.MustParseFragment("f(uint256[2] xs)")}, Eq("xs.2", 1), ErrUnknownField},
		{"gte on address", routerABI, Gte("to", 1), ErrTypeMismatch},
		{"first on scalar", routerABI, First("to", magic), ErrTypeMismatch},
		{"first on scalar wildcard", routerABI, First("amountIn", nil), ErrTypeMismatch},
		{"bad address literal", routerABI, Eq("to", "0xnotanaddress"), ErrTypeMismatch},
		{"bad element literal", routerABI, First("path", 5), ErrTypeMismatch},
		{"uint overflow", registerABI, Gte("_registerArgs.nonce", new(big.Int).Lsh(big.NewInt(1), 96)), ErrTypeMismatch},
		{"negative uint", routerABI, Eq("deadline", -1), ErrTypeMismatch},
		{"string on bool", []calldata.Fragment{calldata.MustParseFragment("f(bool flag)")}, Eq("flag", "true"), ErrTypeMismatch},
		{"fixed bytes length", []calldata.Fragment{calldata.MustParseFragment("f(bytes32 h)")}, Eq("h", "0x01"), ErrTypeMismatch},
		{"nil child", routerABI, AllOf(Eq("to", recipientB), nil), ErrInvalidFilter},
		{"unknown operator", routerABI, Compare{Field: ParsePath("deadline"), Op: "gt", Operand: Int(nil)}, ErrInvalidFilter},
		{"empty field", routerABI, Equals{Value: Str("x")}, ErrInvalidFilter},
		{"too deep", routerABI, deep, ErrInvalidFilter},
		{"pointer node", routerABI, &Or{}, ErrInvalidFilter},
		{"bad abi", []calldata.Fragment{{Name: "f", Inputs: []calldata.Param{{Name: "x", Type: "nope"}}}}, nil, ErrInvalidFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.node, tt.abi)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDescriptorValidate(t *testing.T) {
	d := Descriptor{ChainID: 42161, ABI: routerABI}
	assert.ErrorIs(t, d.Validate(), ErrInvalidFilter)

	d = Descriptor{ChainID: 42161, Contract: mustAddress(t, "0x23805449f91bb2d2054d9ba288fdc8f09b5eac79")}
	assert.ErrorIs(t, d.Validate(), ErrInvalidFilter)
}
