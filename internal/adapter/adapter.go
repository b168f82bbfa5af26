package adapter

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"questFilter/internal/filter"
)

// ErrUnsupportedAction is returned by adapters for actions their protocol does not offer.
var ErrUnsupportedAction = errors.New("unsupported action")

// Action names.
const (
	ActionSwap = "swap"
	ActionMint = "mint"
)

// SwapParams describes a swap a quest asks for. Empty strings and zero Conditions
// place no constraint.
type SwapParams struct {
	ChainID         uint64
	ContractAddress string
	TokenIn         string
	TokenOut        string
	AmountIn        filter.Condition
	AmountOut       filter.Condition
	Recipient       string
}

// MintParams describes a mint a quest asks for.
type MintParams struct {
	ChainID         uint64
	ContractAddress string
	Recipient       string
	Amount          filter.Condition
}

// Adapter builds descriptors for one protocol.
type Adapter interface {
	Name() string
	Swap(SwapParams) (filter.Descriptor, error)
	Mint(MintParams) (filter.Descriptor, error)
	SupportedChainIDs() []uint64
	SupportedTokens(chainID uint64) []common.Address
}

// Registry indexes adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[a.Name()]; ok {
		return fmt.Errorf("adapter %s already registered", a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns registered adapter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build dispatches an action by name.
func Build(a Adapter, action string, swap SwapParams, mint MintParams) (filter.Descriptor, error) {
	switch action {
	case ActionSwap:
		return a.Swap(swap)
	case ActionMint:
		return a.Mint(mint)
	}
	return filter.Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedAction, action)
}
