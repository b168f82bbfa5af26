package treasure

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"questFilter/internal/adapter"
	"questFilter/internal/calldata"
	"questFilter/internal/filter"
)

// Arbitrum One deployments.
var (
	V2Router = common.HexToAddress("0x23805449f91bb2d2054d9ba288fdc8f09b5eac79")

	MAGIC = common.HexToAddress("0x539bdE0d7Dbd336b79148aA742883198BBF60342")
	ANIMA = common.HexToAddress("0xccd05a0fcfc1380e9da27862adb2198e58e0d66f")
	WETH  = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	ARB   = common.HexToAddress("0x912CE59144191C1204E64559FE8253a0e49E6548")
)

var magicswapTokens = []common.Address{MAGIC, ANIMA, WETH, ARB}

// RouterABI is the subset of the Magicswap V2 router used for swaps.
var RouterABI = []calldata.Fragment{
	calldata.MustParseFragment("function swapExactTokensForTokens(uint256 amountIn, uint256 amountOutMin, address[] path, address to, uint256 deadline)"),
	calldata.MustParseFragment("function swapTokensForExactTokens(uint256 amountOut, uint256 amountInMax, address[] path, address to, uint256 deadline)"),
	calldata.MustParseFragment("function swapExactETHForTokens(uint256 amountOutMin, address[] path, address to, uint256 deadline)"),
	calldata.MustParseFragment("function swapTokensForExactETH(uint256 amountOut, uint256 amountInMax, address[] path, address to, uint256 deadline)"),
	calldata.MustParseFragment("function swapExactTokensForETH(uint256 amountIn, uint256 amountOutMin, address[] path, address to, uint256 deadline)"),
	calldata.MustParseFragment("function swapETHForExactTokens(uint256 amountOut, address[] path, address to, uint256 deadline)"),
}

// RegisterABI is the TreasureTag registration entry point.
var RegisterABI = []calldata.Fragment{
	calldata.MustParseFragment("function register((string name, string discriminant, address owner, address referrer, uint96 nonce) _registerArgs, bytes _signature)"),
}

// Adapter covers Magicswap swaps and TreasureTag mints.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "treasure" }

// Swap matches both exact-input and exact-output router calls. AmountIn constrains
// amountIn or amountInMax and AmountOut constrains amountOutMin or amountOut, whichever
// the called variant carries.
func (a *Adapter) Swap(p adapter.SwapParams) (filter.Descriptor, error) {
	to := V2Router
	if p.ContractAddress != "" {
		addr, err := adapter.RequireAddress("contractAddress", p.ContractAddress)
		if err != nil {
			return filter.Descriptor{}, err
		}
		to = addr
	}
	recipient, err := adapter.OptionalAddress("recipient", p.Recipient)
	if err != nil {
		return filter.Descriptor{}, err
	}
	path, err := adapter.PathQuery("path", wrapNative(p.TokenIn), wrapNative(p.TokenOut))
	if err != nil {
		return filter.Descriptor{}, err
	}

	return filter.Descriptor{
		ChainID:  p.ChainID,
		Contract: to,
		ABI:      RouterABI,
		Filter: filter.AllOf(
			filter.Eq("to", recipient),
			path,
			filter.AnyOf(
				filter.AllOf(p.AmountIn.On("amountIn"), p.AmountOut.On("amountOutMin")),
				filter.AllOf(p.AmountIn.On("amountInMax"), p.AmountOut.On("amountOut")),
			),
		),
	}, nil
}

// Mint matches a TreasureTag registration owned by Recipient.
func (a *Adapter) Mint(p adapter.MintParams) (filter.Descriptor, error) {
	contract, err := adapter.RequireAddress("contractAddress", p.ContractAddress)
	if err != nil {
		return filter.Descriptor{}, err
	}
	if !p.Amount.IsAny() {
		return filter.Descriptor{}, fmt.Errorf("%w: tags are registered one at a time", adapter.ErrUnsupportedAction)
	}
	owner, err := adapter.OptionalAddress("recipient", p.Recipient)
	if err != nil {
		return filter.Descriptor{}, err
	}
	return filter.Descriptor{
		ChainID:  p.ChainID,
		Contract: contract,
		ABI:      RegisterABI,
		Filter:   filter.Eq("_registerArgs.owner", owner),
	}, nil
}

func (a *Adapter) SupportedChainIDs() []uint64 {
	return []uint64{adapter.ChainArbitrumOne}
}

func (a *Adapter) SupportedTokens(chainID uint64) []common.Address {
	if chainID != adapter.ChainArbitrumOne {
		return nil
	}
	return append([]common.Address(nil), magicswapTokens...)
}

// wrapNative maps the native token placeholder to WETH, which is what router paths hold.
func wrapNative(token string) string {
	if token != "" && strings.EqualFold(token, adapter.NativeToken.Hex()) {
		return WETH.Hex()
	}
	return token
}
