package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"questFilter/internal/model"
)

// ToTransaction converts a signed transaction into the matcher's input record.
func ToTransaction(chainID *big.Int, tx *types.Transaction, blockNumber uint64) (model.Transaction, error) {
	if tx.To() == nil {
		return model.Transaction{}, fmt.Errorf("contract creation has no destination")
	}
	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("recover sender: %w", err)
	}
	if !chainID.IsUint64() {
		return model.Transaction{}, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	return model.Transaction{
		ChainID:     chainID.Uint64(),
		From:        strings.ToLower(from.Hex()),
		To:          strings.ToLower(tx.To().Hex()),
		Input:       hexutil.Encode(tx.Data()),
		Value:       tx.Value().String(),
		Hash:        tx.Hash().Hex(),
		BlockNumber: blockNumber,
	}, nil
}
