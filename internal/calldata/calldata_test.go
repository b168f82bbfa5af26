package calldata

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exactTokensForTokensInput = "0x38ed173900000000000000000000000000000000000000000000000976a31864451380000000000000000000000000000000000000000000000000015ace3b39820c018a00000000000000000000000000000000000000000000000000000000000000a00000000000000000000000004c0ccf331fb23ca8bd5139b886cc821ede7b420400000000000000000000000000000000000000000000000000000000657e5ed60000000000000000000000000000000000000000000000000000000000000002000000000000000000000000ccd05a0fcfc1380e9da27862adb2198e58e0d66f000000000000000000000000539bde0d7dbd336b79148aa742883198bbf60342"

func selectorHex(f Fragment) string {
	sel := f.Selector()
	return hex.EncodeToString(sel[:])
}

func TestParseFragment(t *testing.T) {
	tests := []struct {
		in       string
		sig      string
		selector string
		names    []string
	}{
		{
			in:       "function transfer(address recipient, uint256 amount)",
			sig:      "transfer(address,uint256)",
			selector: "a9059cbb",
			names:    []string{"recipient", "amount"},
		},
		{
			in:       "transfer(address,uint)",
			sig:      "transfer(address,uint256)",
			selector: "a9059cbb",
			names:    []string{"", ""},
		},
		{
			in:       "function swapExactTokensForTokens(uint256 amountIn, uint256 amountOutMin, address[] calldata path, address to, uint256 deadline) external returns (uint256[] memory amounts)",
			sig:      "swapExactTokensForTokens(uint256,uint256,address[],address,uint256)",
			selector: "38ed1739",
			names:    []string{"amountIn", "amountOutMin", "path", "to", "deadline"},
		},
		{
			in:       "register((string name, string discriminant, address owner, address referrer, uint96 nonce) _registerArgs, bytes _signature)",
			sig:      "register((string,string,address,address,uint96),bytes)",
			selector: "95f38e77",
			names:    []string{"_registerArgs", "_signature"},
		},
		{
			in:       "function batch(tuple(address to, uint256[2] amounts)[] calls)",
			sig:      "batch((address,uint256[2])[])",
			selector: "",
			names:    []string{"calls"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			f, err := ParseFragment(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.sig, f.Signature())
			if tt.selector != "" {
				assert.Equal(t, tt.selector, selectorHex(f))
			}
			names := make([]string, len(f.Inputs))
			for i, in := range f.Inputs {
				names[i] = in.Name
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestParseFragmentErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"function (address)",
		"transfer(address",
		"transfer(address to from)",
		"transfer(uint256[x])",
		"transfer(,)",
	} {
		_, err := ParseFragment(in)
		assert.Error(t, err, in)
	}
}

func TestParseABISkipsNonFunctions(t *testing.T) {
	data := []byte(`[
		{"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true}]},
		{"type":"function","name":"transfer","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"stateMutability":"nonpayable"},
		{"type":"constructor","inputs":[]},
		{"type":"function","name":"register","inputs":[
			{"name":"_registerArgs","type":"tuple","components":[{"name":"owner","type":"address"},{"name":"nonce","type":"uint96"}]},
			{"name":"_signature","type":"bytes"}
		]}
	]`)
	frags, err := ParseABI(data)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "transfer(address,uint256)", frags[0].Signature())
	assert.Equal(t, "register((address,uint96),bytes)", frags[1].Signature())
}

func TestFragmentJSONIsStandardABI(t *testing.T) {
	f := MustParseFragment("transfer(address recipient, uint256 amount)")
	raw, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"function","name":"transfer","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}]}`, string(raw))

	var back Fragment
	require.NoError(t, back.UnmarshalJSON(raw))
	assert.True(t, f.Equal(back))
}

func TestDecodeRealSwap(t *testing.T) {
	fn, err := NewFunction(MustParseFragment("swapExactTokensForTokens(uint256 amountIn, uint256 amountOutMin, address[] path, address to, uint256 deadline)"))
	require.NoError(t, err)

	decoded, err := fn.Decode(hexutil.MustDecode(exactTokensForTokensInput))
	require.NoError(t, err)
	params := decoded.Params()
	assert.Equal(t, "swapExactTokensForTokens(uint256,uint256,address[],address,uint256)", params.Signature())
	assert.Equal(t, []string{"amountIn", "amountOutMin", "path", "to", "deadline"}, params.Names())

	amountIn, ok := params.Get("amountIn")
	require.True(t, ok)
	assert.Equal(t, "174569400000000000000", amountIn.String())

	to, _ := params.Get("to")
	assert.Equal(t, "0x4c0ccf331fb23ca8bd5139b886cc821ede7b4204", to.Text())

	last, ok := params.Lookup([]string{"path", "1"})
	require.True(t, ok)
	assert.Equal(t, "0x539bde0d7dbd336b79148aa742883198bbf60342", last.Text())
}

func TestDecodeUnnamedInputs(t *testing.T) {
	fn, err := NewFunction(MustParseFragment("transfer(address,uint256)"))
	require.NoError(t, err)

	method := abi.NewMethod("transfer", "transfer", abi.Function, "nonpayable", false, false, fn.args, nil)
	packed, err := method.Inputs.Pack(common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"), big.NewInt(150))
	require.NoError(t, err)

	decoded, err := fn.Decode(append(method.ID, packed...))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, decoded.Params().Names())
}

func TestDecodeErrors(t *testing.T) {
	fn, err := NewFunction(MustParseFragment("transfer(address recipient, uint256 amount)"))
	require.NoError(t, err)

	_, err = fn.Decode([]byte{0xa9, 0x05})
	assert.ErrorIs(t, err, ErrSelectorMismatch)

	_, err = fn.Decode(hexutil.MustDecode("0x12345678"))
	assert.ErrorIs(t, err, ErrSelectorMismatch)

	_, err = fn.Decode(hexutil.MustDecode("0xa9059cbb" + strings.Repeat("00", 20)))
	assert.ErrorIs(t, err, ErrMalformedCallData)

	dyn, err := NewFunction(MustParseFragment("f(bytes data)"))
	require.NoError(t, err)
	sel := dyn.Selector()
	// offset word pointing far beyond the buffer
	bad := append(sel[:], common.LeftPadBytes([]byte{0xff, 0xff}, 32)...)
	_, err = dyn.Decode(bad)
	assert.ErrorIs(t, err, ErrMalformedCallData)
}

func TestFunctionsDecodeCandidates(t *testing.T) {
	fns, err := Compile([]Fragment{
		MustParseFragment("swapTokensForExactTokens(uint256 amountOut, uint256 amountInMax, address[] path, address to, uint256 deadline)"),
		MustParseFragment("swapExactTokensForTokens(uint256 amountIn, uint256 amountOutMin, address[] path, address to, uint256 deadline)"),
	})
	require.NoError(t, err)

	decoded, err := fns.Decode(hexutil.MustDecode(exactTokensForTokensInput))
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "swapExactTokensForTokens(uint256,uint256,address[],address,uint256)", decoded[0].Function.Signature())

	_, err = fns.Decode(hexutil.MustDecode("0xa9059cbb"))
	assert.ErrorIs(t, err, ErrSelectorMismatch)

	_, err = fns.Decode(hexutil.MustDecode("0x38ed1739"))
	assert.ErrorIs(t, err, ErrMalformedCallData)
}

func TestNewFunctionRejectsBadTypes(t *testing.T) {
	_, err := NewFunction(Fragment{Name: "f", Inputs: []Param{{Name: "x", Type: "notatype"}}})
	assert.Error(t, err)

	_, err = NewFunction(Fragment{Name: "f", Inputs: []Param{{Name: "x", Type: "uint256"}, {Name: "x", Type: "address"}}})
	assert.Error(t, err)
}

func TestUnnamedTupleComponents(t *testing.T) {
	fn, err := NewFunction(MustParseFragment("f((address,uint256) pair)"))
	require.NoError(t, err)
	typ := fn.Types()["pair"]
	assert.Equal(t, []string{"field0", "field1"}, typ.TupleRawNames)
}
