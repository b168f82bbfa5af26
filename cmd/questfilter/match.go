package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"questFilter/internal/config"
	"questFilter/internal/matcher"
	"questFilter/internal/storage"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a JSONL file of transactions against descriptors",
		RunE:  runMatch,
	}

	cmd.Flags().StringSlice("descriptor", nil, "compact descriptor JSON files (comma-separated or repeated)")
	cmd.Flags().String("in", "", "input transactions JSONL, - for stdin")
	cmd.Flags().String("out", "-", "output match records JSONL, - for stdout")
	cmd.Flags().Bool("only-matched", false, "write matched records only")
	cmd.Flags().Int("workers", 0, "matching workers, 0 means GOMAXPROCS")
	cmd.Flags().String("redis-url", "", "redis URL for the result cache")
	cmd.Flags().Duration("cache-ttl", 0, "result cache TTL")
	cmd.Flags().Int("cache-size", 0, "in-memory result cache entries when no redis URL is set, 0 disables it")
	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runMatch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadMatch(configFile(cmd), cmd.Flags())
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

	input, err := openInput(cfg.In)
	if err != nil {
		return err
	}
	txs, err := storage.ReadTransactions(input)
	input.Close()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, _, cleanup, err := matcherOptions(ctx, matcher.Options{
		Workers:     cfg.Workers,
		OnlyMatched: cfg.OnlyMatched,
	}, cacheSettings{RedisURL: cfg.RedisURL, TTL: cfg.CacheTTL, Size: cfg.CacheSize}, cfg.MetricsAddr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := matcher.New(programs, opts).MatchAll(ctx, txs)
	if err != nil {
		return err
	}

	if err := storage.NewJsonlStorage(cfg.Out).PutMatchBatch(ctx, records); err != nil {
		return err
	}

	matched := 0
	for _, rec := range records {
		if rec.Matched {
			matched++
		}
	}
	logger.Info("match complete",
		zap.Int("transactions", len(txs)),
		zap.Int("descriptors", len(programs)),
		zap.Int("records", len(records)),
		zap.Int("matched", matched),
	)
	return nil
}
