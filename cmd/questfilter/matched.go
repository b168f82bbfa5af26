package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"questFilter/internal/config"
	"questFilter/internal/matcher"
	"questFilter/internal/storage"
	"questFilter/internal/storage/postgres"
)

func newMatchedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matched",
		Short: "List transactions stored as matched for each descriptor",
		RunE:  runMatched,
	}

	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().StringSlice("descriptor", nil, "compact descriptor JSON files (comma-separated or repeated)")
	cmd.Flags().Int("limit", 1000, "maximum transactions per descriptor")
	cmd.Flags().String("out", "-", "output JSONL, - for stdout")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

// matchedLister is the read side of the postgres store used by the matched command.
type matchedLister interface {
	MatchedTxHashes(ctx context.Context, descriptorID string, limit int) ([]string, error)
}

type matchedTx struct {
	Action       string `json:"action"`
	DescriptorID string `json:"descriptor_id"`
	TxHash       string `json:"tx_hash"`
}

// listMatched collects matched hashes per program, in program order.
func listMatched(ctx context.Context, lister matchedLister, programs []*matcher.Program, limit int) ([]matchedTx, error) {
	var out []matchedTx
	for _, p := range programs {
		hashes, err := lister.MatchedTxHashes(ctx, p.ID(), limit)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", p.Name(), err)
		}
		for _, h := range hashes {
			out = append(out, matchedTx{Action: p.Name(), DescriptorID: p.ID(), TxHash: h})
		}
	}
	return out, nil
}

func runMatched(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadMatched(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	programs, err := loadPrograms(cfg.Descriptors)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	rows, err := listMatched(ctx, store, programs, cfg.Limit)
	if err != nil {
		return err
	}

	w, err := openOutput(cfg.Out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := storage.WriteJSONL(w, rows); err != nil {
		return err
	}

	logger.Info("matched listed", zap.Int("descriptors", len(programs)), zap.Int("transactions", len(rows)))
	return nil
}
