package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"questFilter/internal/model"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu      sync.Mutex
	chainID *big.Int
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID. The first answer is kept for the client's lifetime.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	c.chainID = id
	return new(big.Int).Set(id), nil
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// BlockTransactions returns the contract calls of a block in block order.
// Contract creations are skipped since they have no destination to match.
func (c *Client) BlockTransactions(ctx context.Context, number uint64) ([]model.Transaction, error) {
	chainID, err := c.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	block, err := c.ethClient.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", number, err)
	}

	out := make([]model.Transaction, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		if tx.To() == nil {
			continue
		}
		record, err := ToTransaction(chainID, tx, number)
		if err != nil {
			return nil, fmt.Errorf("block %d tx %s: %w", number, tx.Hash().Hex(), err)
		}
		out = append(out, record)
	}
	return out, nil
}

// TransactionByHash fetches a single transaction. Pending transactions carry no block number.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (model.Transaction, error) {
	chainID, err := c.GetChainID(ctx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("get chain id: %w", err)
	}
	tx, pending, err := c.ethClient.TransactionByHash(ctx, hash)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", hash.Hex(), err)
	}

	var blockNumber uint64
	if !pending {
		receipt, err := c.ethClient.TransactionReceipt(ctx, hash)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		blockNumber = receipt.BlockNumber.Uint64()
	}
	return ToTransaction(chainID, tx, blockNumber)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
