package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questFilter/internal/calldata"
	"questFilter/internal/filter"
	"questFilter/internal/model"
)

const (
	contractA  = "0xAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaa"
	recipientB = "0xBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbbBBbb"
	contractC  = "0xCCccCCccCCccCCccCCccCCccCCccCCccCCccCCcc"
	router     = "0x23805449f91bb2d2054d9ba288fdc8f09b5eac79"
	magic      = "0x539bdE0d7Dbd336b79148aA742883198BBF60342"
	anima      = "0xccd05a0fcfc1380e9da27862adb2198e58e0d66f"

	tokensForExactTokensInput = "0x8803dbee0000000000000000000000000000000000000000000000063bf212b431ec000000000000000000000000000000000000000000000000000105f69c25a0ea581800000000000000000000000000000000000000000000000000000000000000a000000000000000000000000076753c6b5c21dfa659a50fbd1cf385746b28515b00000000000000000000000000000000000000000000000000000000657d0d0d0000000000000000000000000000000000000000000000000000000000000002000000000000000000000000539bde0d7dbd336b79148aa742883198bbf60342000000000000000000000000ccd05a0fcfc1380e9da27862adb2198e58e0d66f"
)

var transferFragment = calldata.MustParseFragment("function transfer(address recipient, uint256 amount)")

var routerABI = []calldata.Fragment{
	calldata.MustParseFragment("swapExactTokensForTokens(uint256 amountIn, uint256 amountOutMin, address[] path, address to, uint256 deadline)"),
	calldata.MustParseFragment("swapTokensForExactTokens(uint256 amountOut, uint256 amountInMax, address[] path, address to, uint256 deadline)"),
}

func encodeCall(t *testing.T, f calldata.Fragment, args ...interface{}) string {
	t.Helper()
	inputs := make(abi.Arguments, len(f.Inputs))
	for i, in := range f.Inputs {
		typ, err := in.ABIType()
		require.NoError(t, err)
		inputs[i] = abi.Argument{Name: in.Name, Type: typ}
	}
	packed, err := inputs.Pack(args...)
	require.NoError(t, err)
	sel := f.Selector()
	return hexutil.Encode(append(sel[:], packed...))
}

func transferDescriptor() filter.Descriptor {
	return filter.Descriptor{
		ChainID:  42161,
		Contract: common.HexToAddress(contractA),
		ABI:      []calldata.Fragment{transferFragment},
		Filter:   filter.AllOf(filter.Eq("recipient", recipientB), filter.Gte("amount", 100)),
	}
}

func transferTx(t *testing.T, to string, amount int64) model.Transaction {
	return model.Transaction{
		ChainID: 42161,
		From:    "0x0000000000000000000000000000000000000001",
		To:      to,
		Input:   encodeCall(t, transferFragment, common.HexToAddress(recipientB), big.NewInt(amount)),
		Value:   "0",
		Hash:    fmt.Sprintf("0x%064x", amount),
	}
}

func swapDescriptor(amountIn, amountOut filter.Condition) filter.Descriptor {
	return filter.Descriptor{
		ChainID:  42161,
		Contract: common.HexToAddress(router),
		ABI:      routerABI,
		Filter: filter.AllOf(
			filter.Eq("to", "0x76753c6b5c21dfa659a50fbd1cf385746b28515b"),
			filter.AllOf(filter.First("path", magic), filter.Last("path", anima)),
			filter.AnyOf(
				filter.AllOf(amountIn.On("amountIn"), amountOut.On("amountOutMin")),
				filter.AllOf(amountIn.On("amountInMax"), amountOut.On("amountOut")),
			),
		),
	}
}

func units(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

func TestTransferScenarioMatches(t *testing.T) {
	res, err := Match(transferTx(t, strings.ToLower(contractA), 150), transferDescriptor())
	require.NoError(t, err)
	require.True(t, res.Matched, "reason: %s", res.Reason)
	assert.Nil(t, res.Reason)
	assert.Equal(t, "transfer(address,uint256)", res.Signature)

	raw, err := json.Marshal(res.Params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"recipient":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","amount":"150"}`, string(raw))
}

func TestTransferScenarioAmountTooLow(t *testing.T) {
	res, err := Match(transferTx(t, contractA, 50), transferDescriptor())
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Nil(t, res.Params)
	require.NotNil(t, res.Reason)
	assert.Equal(t, filter.ReasonOperatorFailed, res.Reason.Code)
	assert.Equal(t, "amount", res.Reason.Field)
	assert.Equal(t, "gte", res.Reason.Operator)
}

func TestTransferScenarioWrongAddress(t *testing.T) {
	tx := transferTx(t, contractC, 150)
	tx.Input = "0xnot-even-hex"
	res, err := Match(tx, transferDescriptor())
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, filter.ReasonAddressMismatch, res.Reason.Code)
}

func TestChainIDGate(t *testing.T) {
	d := transferDescriptor()
	for _, tx := range []model.Transaction{
		transferTx(t, contractA, 150),
		{To: contractC, Input: "0x"},
		{To: "garbage"},
	} {
		tx.ChainID = 10
		res, err := Match(tx, d)
		require.NoError(t, err)
		assert.False(t, res.Matched)
		assert.Equal(t, filter.ReasonChainIDMismatch, res.Reason.Code)
	}

	d.ChainID = filter.AnyChain
	tx := transferTx(t, contractA, 150)
	tx.ChainID = 10
	res, err := Match(tx, d)
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestAddressCaseInsensitive(t *testing.T) {
	d := transferDescriptor()
	lower := transferTx(t, strings.ToLower(contractA), 150)
	upper := transferTx(t, "0x"+strings.ToUpper(contractA[2:]), 150)

	a, err := Match(lower, d)
	require.NoError(t, err)
	b, err := Match(upper, d)
	require.NoError(t, err)
	assert.True(t, a.Matched)
	assert.Equal(t, a.Matched, b.Matched)
	assert.True(t, a.Params.Equal(b.Params))
}

func TestMalformedDestination(t *testing.T) {
	tx := transferTx(t, "0xaaaa", 150)
	res, err := Match(tx, transferDescriptor())
	require.NoError(t, err)
	assert.Equal(t, filter.ReasonAddressMismatch, res.Reason.Code)
}

func TestDecodeFailuresAreNonMatches(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  filter.ReasonCode
	}{
		{"no call data", "0x", filter.ReasonSelectorMismatch},
		{"other selector", "0x095ea7b3" + strings.Repeat("00", 64), filter.ReasonSelectorMismatch},
		{"truncated", "0xa9059cbb" + strings.Repeat("00", 40), filter.ReasonMalformedCallData},
		{"bad hex", "0xa9059cbz", filter.ReasonMalformedCallData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := transferTx(t, contractA, 150)
			tx.Input = tt.input
			res, err := Match(tx, transferDescriptor())
			require.NoError(t, err)
			assert.False(t, res.Matched)
			assert.Equal(t, tt.code, res.Reason.Code)
		})
	}
}

func TestSwapMatchesOnlyViaSecondBranch(t *testing.T) {
	tx := model.Transaction{ChainID: 42161, To: router, Input: tokensForExactTokensInput, Value: "0"}

	res, err := Match(tx, swapDescriptor(filter.AtLeast(units("18500000000000000000")), filter.AtLeast(units("115000000000000000000"))))
	require.NoError(t, err)
	require.True(t, res.Matched, "reason: %s", res.Reason)
	assert.Equal(t, "swapTokensForExactTokens(uint256,uint256,address[],address,uint256)", res.Signature)
	deadline, ok := res.Params.Get("deadline")
	require.True(t, ok)
	assert.Equal(t, "1702694157", deadline.String())

	res, err = Match(tx, swapDescriptor(filter.AtLeast(units("18500000000000000000")), filter.AtLeast(units("54000000000000000000000000"))))
	require.NoError(t, err)
	assert.False(t, res.Matched)
	require.Equal(t, filter.ReasonNoBranchMatched, res.Reason.Code)
	require.Len(t, res.Reason.Children, 2)
	assert.Equal(t, filter.ReasonUnknownField, res.Reason.Children[0].Code)
	assert.Equal(t, "amountIn", res.Reason.Children[0].Field)
	assert.Equal(t, filter.ReasonOperatorFailed, res.Reason.Children[1].Code)
	assert.Equal(t, "amountOut", res.Reason.Children[1].Field)
}

func TestWildcardNeverCausesNonMatch(t *testing.T) {
	tx := model.Transaction{ChainID: 42161, To: router, Input: tokensForExactTokensInput}
	res, err := Match(tx, swapDescriptor(filter.Condition{}, filter.Condition{}))
	require.NoError(t, err)
	assert.True(t, res.Matched)

	d := transferDescriptor()
	d.Filter = filter.AllOf(filter.Eq("recipient", nil), filter.Eq("amount", nil))
	for _, amount := range []int64{0, 1, 99, 100, 1 << 40} {
		res, err := Match(transferTx(t, contractA, amount), d)
		require.NoError(t, err)
		assert.True(t, res.Matched)
	}
}

func TestSharedSelectorCandidates(t *testing.T) {
	d := filter.Descriptor{
		ChainID:  42161,
		Contract: common.HexToAddress(contractA),
		ABI: []calldata.Fragment{
			transferFragment,
			calldata.MustParseFragment("transfer(address to, uint256 value)"),
		},
		Filter: filter.Gte("value", 100),
	}
	res, err := Match(transferTx(t, contractA, 150), d)
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, []string{"to", "value"}, res.Params.Names())

	res, err = Match(transferTx(t, contractA, 50), d)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	require.Equal(t, filter.ReasonNoCandidateMatched, res.Reason.Code)
	require.Len(t, res.Reason.Children, 2)
	assert.Equal(t, filter.ReasonUnknownField, res.Reason.Children[0].Code)
	assert.Equal(t, filter.ReasonOperatorFailed, res.Reason.Children[1].Code)
}

func TestMatchAfterCompactRoundTripIsIdentical(t *testing.T) {
	d := swapDescriptor(filter.AtLeast(units("18500000000000000000")), filter.AtLeast(units("115000000000000000000")))
	raw, err := filter.MarshalDescriptor(d)
	require.NoError(t, err)
	back, err := filter.UnmarshalDescriptor(raw)
	require.NoError(t, err)

	tx := model.Transaction{ChainID: 42161, To: router, Input: tokensForExactTokensInput}
	a, err := Match(tx, d)
	require.NoError(t, err)
	b, err := Match(tx, back)
	require.NoError(t, err)
	assert.Equal(t, a.Matched, b.Matched)
	assert.True(t, a.Params.Equal(b.Params))
}

func TestMatchIsDeterministic(t *testing.T) {
	p, err := Compile("transfer", transferDescriptor())
	require.NoError(t, err)
	for _, amount := range []int64{50, 150} {
		tx := transferTx(t, contractA, amount)
		first := p.Match(tx)
		for i := 0; i < 10; i++ {
			again := p.Match(tx)
			assert.Equal(t, first.Matched, again.Matched)
			assert.Equal(t, first.Reason, again.Reason)
			assert.True(t, first.Params.Equal(again.Params))
		}
	}
}

func TestCompileRejectsInvalidDescriptor(t *testing.T) {
	d := transferDescriptor()
	d.Filter = filter.Eq("to", recipientB)
	_, err := Compile("bad", d)
	assert.ErrorIs(t, err, filter.ErrUnknownField)

	d = transferDescriptor()
	d.Filter = filter.First("amount", 1)
	_, err = Match(model.Transaction{}, d)
	assert.ErrorIs(t, err, filter.ErrTypeMismatch)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

type countingObserver struct {
	mu      sync.Mutex
	matched int
	missed  map[string]int
	hits    int
}

func (o *countingObserver) ObserveMatch(_ string, matched bool, reason string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if matched {
		o.matched++
		return
	}
	o.missed[reason]++
}

func (o *countingObserver) ObserveCache(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	}
}

func TestMatcherOrderAndCache(t *testing.T) {
	transfer, err := Compile("transfer", transferDescriptor())
	require.NoError(t, err)
	swap, err := Compile("swap", swapDescriptor(filter.Condition{}, filter.Condition{}))
	require.NoError(t, err)

	var txs []model.Transaction
	for i := 0; i < 40; i++ {
		txs = append(txs, transferTx(t, contractA, int64(i*10)))
	}

	cache := &memCache{data: map[string][]byte{}}
	obs := &countingObserver{missed: map[string]int{}}
	m := New([]*Program{transfer, swap}, Options{Workers: 8, Cache: cache, Observer: obs, RunID: "run-1"})

	records, err := m.MatchAll(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, records, 80)
	for i, tx := range txs {
		assert.Equal(t, tx.Hash, records[2*i].TxHash)
		assert.Equal(t, "transfer", records[2*i].Action)
		assert.Equal(t, "swap", records[2*i+1].Action)
		assert.Equal(t, i*10 >= 100, records[2*i].Matched)
		assert.False(t, records[2*i+1].Matched)
		assert.Equal(t, "run-1", records[2*i].RunID)
		assert.Equal(t, "0", records[2*i].Value)
	}
	assert.Equal(t, 30, obs.matched)
	assert.Equal(t, 40, obs.missed[string(filter.ReasonAddressMismatch)])
	assert.Equal(t, 10, obs.missed[string(filter.ReasonOperatorFailed)])
	assert.Equal(t, 0, cache.hits)

	only := New([]*Program{transfer, swap}, Options{Workers: 3, Cache: cache, OnlyMatched: true})
	matched, err := only.MatchAll(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, matched, 30)
	assert.Equal(t, 80, cache.hits)
	for _, rec := range matched {
		assert.True(t, rec.Matched)
		assert.Equal(t, transfer.ID(), rec.DescriptorID)
		assert.Empty(t, rec.RunID)
	}
}

func TestMatcherHonoursCancellation(t *testing.T) {
	transfer, err := Compile("transfer", transferDescriptor())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New([]*Program{transfer}, Options{Workers: 1}).MatchAll(ctx, []model.Transaction{transferTx(t, contractA, 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatcherCacheHitKeepsProgramName(t *testing.T) {
	first, err := Compile("first-quest", transferDescriptor())
	require.NoError(t, err)
	second, err := Compile("second-quest", transferDescriptor())
	require.NoError(t, err)
	require.Equal(t, first.ID(), second.ID())

	txs := []model.Transaction{transferTx(t, contractA, 150), transferTx(t, contractA, 50)}
	cache := &memCache{data: map[string][]byte{}}

	_, err = New([]*Program{first}, Options{Cache: cache}).MatchAll(context.Background(), txs)
	require.NoError(t, err)

	obs := &countingObserver{missed: map[string]int{}}
	records, err := New([]*Program{second}, Options{Cache: cache, Observer: obs}).MatchAll(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, cache.hits)
	for _, rec := range records {
		assert.Equal(t, "second-quest", rec.Action)
	}

	assert.Equal(t, 2, obs.hits)
	assert.Equal(t, 1, obs.matched)
	assert.Equal(t, 1, obs.missed[string(filter.ReasonOperatorFailed)])
}

func TestRecordCarriesWeiValue(t *testing.T) {
	p, err := Compile("transfer", transferDescriptor())
	require.NoError(t, err)

	tx := transferTx(t, contractA, 150)
	tx.Value = "0x0de0b6b3a7640000"
	rec, err := p.Record(tx, p.Match(tx))
	require.NoError(t, err)
	assert.True(t, rec.Matched)
	assert.Equal(t, "1000000000000000000", rec.Value)

	tx.Value = "lots"
	rec, err = p.Record(tx, p.Match(tx))
	require.NoError(t, err)
	assert.True(t, rec.Matched)
	assert.Empty(t, rec.Value)
}
