package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"questFilter/internal/adapter"
	"questFilter/internal/chain"
	"questFilter/internal/config"
	"questFilter/internal/indexer"
	"questFilter/internal/model"
	"questFilter/internal/storage"
	"questFilter/internal/token"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch transactions by hash into the match input format",
		RunE:  runFetch,
	}

	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().StringSlice("hash", nil, "transaction hashes (comma-separated)")
	cmd.Flags().String("out", "-", "output transactions JSONL, - for stdout")
	cmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 0, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFetch(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	hashes, err := indexer.ParseHashes(cfg.Hashes)
	if err != nil {
		return err
	}
	if len(hashes) == 0 {
		return fmt.Errorf("at least one hash is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	txs := make([]model.Transaction, 0, len(hashes))
	for _, hash := range hashes {
		var tx model.Transaction
		err := indexer.Retry(ctx, cfg.MaxRetries, cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			tx, err = chainClient.TransactionByHash(ctx, hash)
			if err != nil {
				logger.Warn("fetch failed", zap.String("tx_hash", hash.Hex()), zap.Error(err))
			}
			return err
		})
		if err != nil {
			return err
		}
		if wei, err := tx.WeiValue(); err == nil {
			logger.Debug("fetched transaction",
				zap.String("tx_hash", tx.Hash),
				zap.String("to", tx.To),
				zap.Uint64("block_number", tx.BlockNumber),
				zap.String("value", adapter.FormatUnits(wei, token.NativeDecimals)),
			)
		}
		txs = append(txs, tx)
	}

	w, err := openOutput(cfg.Out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := storage.WriteJSONL(w, txs); err != nil {
		return err
	}

	logger.Info("fetch complete", zap.Int("transactions", len(txs)))
	return nil
}
