package token

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"questFilter/internal/model"
)

// Caller performs read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// NativeDecimals is used for the native token placeholder, which has no contract to ask.
const NativeDecimals = 18

// Resolver fetches ERC20 metadata and caches it by address.
type Resolver struct {
	caller Caller
	logger *zap.Logger

	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewResolver(caller Caller, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{caller: caller, logger: logger, data: make(map[common.Address]model.TokenMeta)}
}

func (r *Resolver) cached(address common.Address) (model.TokenMeta, bool) {
	r.mu.RLock()
	meta, ok := r.data[address]
	r.mu.RUnlock()
	return meta, ok
}

func (r *Resolver) store(address common.Address, meta model.TokenMeta) {
	r.mu.Lock()
	r.data[address] = meta
	r.mu.Unlock()
}

// Resolve returns metadata for token. The zero address resolves to the native token
// of nativeSymbol without an RPC call.
func (r *Resolver) Resolve(ctx context.Context, token common.Address, nativeSymbol string) (model.TokenMeta, error) {
	if token == (common.Address{}) {
		return model.TokenMeta{Address: strings.ToLower(token.Hex()), Decimals: NativeDecimals, Symbol: nativeSymbol, Name: nativeSymbol, Native: true}, nil
	}
	if meta, ok := r.cached(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, r.caller, token, r.logger)
	if err != nil {
		return meta, err
	}
	r.store(token, meta)
	return meta, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls. Only decimals is mandatory.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: strings.ToLower(token.Hex())}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	strABI, err := stringABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	b32ABI, err := bytes32ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := caller.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	values, err := call("decimals", strABI)
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("decimals: unsupported type %T", values[0])
	}
	meta.Decimals = decimals

	text := func(method string) string {
		if values, err := call(method, strABI); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := call(method, b32ABI)
		if err != nil {
			logger.Debug("metadata call failed", zap.String("token", meta.Address), zap.String("method", method), zap.Error(err))
			return ""
		}
		if b, ok := values[0].([32]byte); ok {
			return string(bytes.TrimRight(b[:], "\x00"))
		}
		return ""
	}
	meta.Symbol = text("symbol")
	meta.Name = text("name")

	return meta, nil
}
