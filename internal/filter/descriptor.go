package filter

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"questFilter/internal/calldata"
)

// AnyChain as a descriptor chain id matches transactions from every chain.
const AnyChain uint64 = 0

// Descriptor identifies one on-chain action: where it is sent, how its call data is
// shaped and what the decoded arguments must satisfy.
type Descriptor struct {
	ChainID  uint64
	Contract common.Address
	ABI      []calldata.Fragment
	Filter   Node
}

// Validate reports construction errors. A descriptor that fails here is an adapter bug.
func (d Descriptor) Validate() error {
	if d.Contract == (common.Address{}) {
		return fmt.Errorf("%w: missing contract address", ErrInvalidFilter)
	}
	if len(d.ABI) == 0 {
		return fmt.Errorf("%w: empty abi", ErrInvalidFilter)
	}
	return Validate(d.Filter, d.ABI)
}

// Equal is the round-trip equality of descriptors.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.ChainID != other.ChainID || d.Contract != other.Contract || len(d.ABI) != len(other.ABI) {
		return false
	}
	for i := range d.ABI {
		if !d.ABI[i].Equal(other.ABI[i]) {
			return false
		}
	}
	return NodesEqual(d.Filter, other.Filter)
}

// ID is a content hash of the compact form, stable across processes.
func (d Descriptor) ID() (string, error) {
	raw, err := json.Marshal(toCompact(d))
	if err != nil {
		return "", fmt.Errorf("descriptor id: %w", err)
	}
	return hexutil.Encode(crypto.Keccak256(raw)), nil
}
