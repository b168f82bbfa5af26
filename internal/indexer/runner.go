package indexer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"questFilter/internal/matcher"
	"questFilter/internal/model"
	"questFilter/internal/storage"
)

// BlockSource yields the transactions of a chain block by block. *chain.Client satisfies it.
type BlockSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTransactions(ctx context.Context, number uint64) ([]model.Transaction, error)
}

// RunConfig holds runtime settings for the scanner.
type RunConfig struct {
	FromBlock    uint64
	ToBlock      uint64
	BatchSize    uint64
	FetchWorkers int
	MaxRetries   int
	RetryBackoff time.Duration
}

// BatchStats describes one stored block range.
type BatchStats struct {
	From         uint64
	To           uint64
	Transactions int
	Records      int
	Matched      int
}

// Runner walks block ranges, matches every transaction and writes the records to storage.
type Runner struct {
	cfg        RunConfig
	source     BlockSource
	matcher    *matcher.Matcher
	storage    storage.Storage
	checkpoint Checkpointer
	logger     *zap.Logger
	seen       map[string]struct{}

	// OnBatch is called after each range is stored and checkpointed.
	OnBatch func(BatchStats)
}

// NewRunner builds a Runner with its dependencies. checkpoint may be nil.
func NewRunner(cfg RunConfig, source BlockSource, m *matcher.Matcher, sink storage.Storage, checkpoint Checkpointer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = 4
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		matcher:    m,
		storage:    sink,
		checkpoint: checkpoint,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Plan resolves the ranges the next Run will scan, honoring the checkpoint.
func (r *Runner) Plan(ctx context.Context) ([]BlockRange, error) {
	if r.cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if to < from {
		return nil, fmt.Errorf("to block %d is below from block %d", to, from)
	}
	scan := BlockRange{From: from, To: to}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			rest, left := scan.After(last)
			if !left {
				r.logger.Info("nothing to scan", zap.Uint64("last_processed", last), zap.Uint64("to", to))
				return nil, nil
			}
			if rest.From != scan.From {
				r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", rest.From))
			}
			scan = rest
		}
	}
	return SplitRange(scan.From, scan.To, r.cfg.BatchSize)
}

// Run executes the scanning loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("block source is nil")
	}
	if r.matcher == nil {
		return fmt.Errorf("matcher is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}

	chainID, err := r.source.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	r.logger.Info("scan chain", zap.String("chain_id", chainID.String()), zap.Int("descriptors", len(r.matcher.Programs())))

	ranges, err := r.Plan(ctx)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch blocks", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		txs, err := r.fetchRange(ctx, blockRange)
		if err != nil {
			return err
		}

		records, err := r.matcher.MatchAll(ctx, txs)
		if err != nil {
			return fmt.Errorf("match blocks %d-%d: %w", blockRange.From, blockRange.To, err)
		}

		if err := r.storage.PutMatchBatch(ctx, records); err != nil {
			return fmt.Errorf("store records: %w", err)
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}

		stats := BatchStats{From: blockRange.From, To: blockRange.To, Transactions: len(txs), Records: len(records)}
		for _, rec := range records {
			if rec.Matched {
				stats.Matched++
			}
		}
		r.logger.Info("batch complete",
			zap.Int("transactions", stats.Transactions),
			zap.Int("records", stats.Records),
			zap.Int("matched", stats.Matched),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
		if r.OnBatch != nil {
			r.OnBatch(stats)
		}
	}

	return nil
}

// fetchRange loads every block of the range concurrently and returns the transactions
// in block order.
func (r *Runner) fetchRange(ctx context.Context, blockRange BlockRange) ([]model.Transaction, error) {
	blocks := make([][]model.Transaction, blockRange.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.FetchWorkers)
	for i := range blocks {
		i := i
		number := blockRange.From + uint64(i)
		g.Go(func() error {
			txs, err := r.blockTransactionsWithRetry(gctx, number)
			if err != nil {
				return fmt.Errorf("block %d: %w", number, err)
			}
			blocks[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.Transaction
	for _, txs := range blocks {
		for _, tx := range txs {
			if r.isDuplicate(tx) {
				continue
			}
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *Runner) blockTransactionsWithRetry(ctx context.Context, number uint64) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := Retry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		txs, err = r.source.BlockTransactions(ctx, number)
		if err != nil {
			r.logger.Warn("block fetch failed", zap.Error(err), zap.Uint64("block_number", number))
		}
		return err
	})
	return txs, err
}

func (r *Runner) isDuplicate(tx model.Transaction) bool {
	if tx.Hash == "" {
		return false
	}
	id := strings.ToLower(tx.Hash)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
