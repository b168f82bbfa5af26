package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"questFilter/internal/chain"
	"questFilter/internal/config"
	"questFilter/internal/indexer"
	"questFilter/internal/matcher"
	"questFilter/internal/storage"
	"questFilter/internal/storage/postgres"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a block range and store match records",
		RunE:  runScan,
	}

	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().StringSlice("descriptor", nil, "compact descriptor JSON files (comma-separated or repeated)")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("batch-size", 100, "blocks per batch")
	cmd.Flags().Int("fetch-workers", 4, "concurrent block fetches")
	cmd.Flags().Int("workers", 0, "matching workers, 0 means GOMAXPROCS")
	cmd.Flags().Bool("only-matched", true, "store matched records only")
	cmd.Flags().String("out", "./data/matches.jsonl", "output JSONL path when no Postgres DSN is set")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; stores records and the checkpoint in Postgres")
	cmd.Flags().String("state-name", "default", "checkpoint row name in Postgres")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 0, "initial retry backoff")
	cmd.Flags().String("redis-url", "", "redis URL for the result cache")
	cmd.Flags().Duration("cache-ttl", 0, "result cache TTL")
	cmd.Flags().Int("cache-size", 0, "in-memory result cache entries when no redis URL is set, 0 disables it")
	cmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadScan(configFile(cmd), cmd.Flags())
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
	programs, err := loadPrograms(cfg.Descriptors)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var sink storage.Storage
	var checkpoint indexer.Checkpointer
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = store
		if cfg.CheckpointEnabled {
			checkpoint = indexer.NewStateCheckpoint(store, cfg.StateName)
		}
	} else {
		sink = storage.NewJsonlStorage(cfg.Out)
		checkpoint = indexer.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)
	}

	runID := uuid.NewString()
	opts, recorder, cleanup, err := matcherOptions(ctx, matcher.Options{
		Workers:     cfg.Workers,
		OnlyMatched: cfg.OnlyMatched,
		RunID:       runID,
	}, cacheSettings{RedisURL: cfg.RedisURL, TTL: cfg.CacheTTL, Size: cfg.CacheSize}, cfg.MetricsAddr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		BatchSize:    cfg.BatchSize,
		FetchWorkers: cfg.FetchWorkers,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, matcher.New(programs, opts), sink, checkpoint, logger)

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		ranges, err := runner.Plan(ctx)
		if err != nil {
			return err
		}
		bar = progressbar.NewOptions64(int64(indexer.TotalBlocks(ranges)),
			progressbar.OptionSetDescription("scanning blocks"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		defer bar.Finish()
	}

	runner.OnBatch = func(s indexer.BatchStats) {
		if recorder != nil {
			recorder.ObserveBatch(s.From, s.To)
		}
		if bar != nil {
			_ = bar.Add64(int64(indexer.BlockRange{From: s.From, To: s.To}.Len()))
		}
	}

	logger.Info("scan start",
		zap.String("run_id", runID),
		zap.Int("descriptors", len(programs)),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	return runner.Run(ctx)
}
