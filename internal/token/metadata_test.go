package token

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	responses map[string][]byte
	calls     int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	resp, ok := f.responses[string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func pack(t *testing.T, bytes32 bool, method string, v interface{}) (string, []byte) {
	t.Helper()
	parsed, err := stringABI()
	if bytes32 {
		parsed, err = bytes32ABI()
	}
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	m := parsed.Methods[method]
	out, err := m.Outputs.Pack(v)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return string(m.ID), out
}

func newCaller(t *testing.T, decimals uint8, symbol, name interface{}) *fakeCaller {
	f := &fakeCaller{responses: map[string][]byte{}}
	add := func(bytes32 bool, method string, v interface{}) {
		id, out := pack(t, bytes32, method, v)
		f.responses[id] = out
	}
	add(false, "decimals", decimals)
	for method, v := range map[string]interface{}{"symbol": symbol, "name": name} {
		if b, ok := v.([32]byte); ok {
			add(true, method, b)
		} else if v != nil {
			add(false, method, v)
		}
	}
	return f
}

func TestFetchTokenMeta(t *testing.T) {
	magic := common.HexToAddress("0x539bdE0d7Dbd336b79148aA742883198BBF60342")
	caller := newCaller(t, 18, "MAGIC", "MAGIC")

	meta, err := FetchTokenMeta(context.Background(), caller, magic, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "MAGIC" || meta.Name != "MAGIC" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if meta.Address != "0x539bde0d7dbd336b79148aa742883198bbf60342" {
		t.Fatalf("address not normalized: %s", meta.Address)
	}
}

func TestFetchTokenMetaBytes32(t *testing.T) {
	var symbol [32]byte
	copy(symbol[:], "MKR")
	caller := newCaller(t, 18, symbol, nil)

	meta, err := FetchTokenMeta(context.Background(), caller, common.HexToAddress("0x01"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Symbol != "MKR" {
		t.Fatalf("symbol mismatch: %q", meta.Symbol)
	}
	if meta.Name != "" {
		t.Fatalf("expected empty name, got %q", meta.Name)
	}
}

func TestFetchTokenMetaRequiresDecimals(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{}}
	if _, err := FetchTokenMeta(context.Background(), caller, common.HexToAddress("0x01"), nil); err == nil {
		t.Fatalf("expected error when decimals reverts")
	}
}

func TestResolverCaches(t *testing.T) {
	caller := newCaller(t, 6, "USDC", "USD Coin")
	r := NewResolver(caller, nil)
	usdc := common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")

	for i := 0; i < 3; i++ {
		meta, err := r.Resolve(context.Background(), usdc, "ETH")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if meta.Decimals != 6 {
			t.Fatalf("decimals mismatch: %d", meta.Decimals)
		}
	}
	if caller.calls != 3 {
		t.Fatalf("expected one round of 3 calls, got %d", caller.calls)
	}

	native, err := r.Resolve(context.Background(), common.Address{}, "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if native.Symbol != "ETH" || native.Decimals != NativeDecimals || !native.Native {
		t.Fatalf("unexpected native meta: %+v", native)
	}
	if caller.calls != 3 {
		t.Fatalf("native token should not hit the chain")
	}
}
