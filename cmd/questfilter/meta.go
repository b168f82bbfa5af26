package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"questFilter/internal/adapter"
	"questFilter/internal/chain"
	"questFilter/internal/config"
	"questFilter/internal/model"
	"questFilter/internal/storage"
	"questFilter/internal/token"
)

type chainInfo struct {
	ChainID  uint64   `json:"chainId"`
	Name     string   `json:"name"`
	Adapters []string `json:"adapters"`
}

func newChainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List chains supported by the registered adapters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := newRegistry()
			if err != nil {
				return err
			}
			return storage.WriteJSONL(os.Stdout, supportedChains(registry))
		},
	}
}

func supportedChains(registry *adapter.Registry) []chainInfo {
	byID := map[uint64]*chainInfo{}
	for _, name := range registry.Names() {
		a, _ := registry.Get(name)
		for _, id := range a.SupportedChainIDs() {
			info, ok := byID[id]
			if !ok {
				info = &chainInfo{ChainID: id, Name: adapter.ChainNames[id]}
				byID[id] = info
			}
			info.Adapters = append(info.Adapters, name)
		}
	}
	out := make([]chainInfo, 0, len(byID))
	for _, info := range byID {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List tokens an adapter supports on a chain",
		RunE:  runTokens,
	}

	cmd.Flags().String("adapter", "", "adapter name")
	cmd.Flags().Uint64("chain-id", 0, "chain id")
	cmd.Flags().String("rpc", "", "optional RPC URL to resolve ERC20 metadata")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runTokens(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadTokens(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := newRegistry()
	if err != nil {
		return err
	}
	a, ok := registry.Get(cfg.Adapter)
	if !ok {
		return fmt.Errorf("unknown adapter %q (known: %v)", cfg.Adapter, registry.Names())
	}

	tokens := a.SupportedTokens(cfg.ChainID)
	metas := make([]model.TokenMeta, 0, len(tokens))
	if cfg.RPCURL == "" {
		for _, t := range tokens {
			metas = append(metas, model.TokenMeta{Address: strings.ToLower(t.Hex())})
		}
		return storage.WriteJSONL(os.Stdout, metas)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	resolver := token.NewResolver(chainClient, logger)
	for _, t := range tokens {
		meta, err := resolver.Resolve(ctx, t, "ETH")
		if err != nil {
			return fmt.Errorf("token %s: %w", t.Hex(), err)
		}
		metas = append(metas, meta)
	}
	return storage.WriteJSONL(os.Stdout, metas)
}
