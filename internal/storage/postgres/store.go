package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"questFilter/internal/model"
)

// Store provides Postgres persistence for match records and scanner state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const upsertMatch = `
	INSERT INTO match_records (
		chain_id, tx_hash, descriptor_id, block_number, action, matched, signature, params, reason, run_id, value, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	ON CONFLICT (tx_hash, descriptor_id)
	DO UPDATE SET
		block_number = EXCLUDED.block_number,
		action = EXCLUDED.action,
		matched = EXCLUDED.matched,
		signature = EXCLUDED.signature,
		params = EXCLUDED.params,
		reason = EXCLUDED.reason,
		run_id = EXCLUDED.run_id,
		value = EXCLUDED.value,
		updated_at = now()
`

// PutMatchBatch upserts match records keyed by (tx_hash, descriptor_id).
func (s *Store) PutMatchBatch(ctx context.Context, records []model.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertMatch,
			int64(r.ChainID),
			r.TxHash,
			r.DescriptorID,
			int64(r.BlockNumber),
			r.Action,
			r.Matched,
			r.Signature,
			jsonArg(r.Params),
			jsonArg(r.Reason),
			r.RunID,
			numericArg(r.Value),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert match record: %w", err)
		}
	}
	return nil
}

// MatchedTxHashes lists matched transactions for a descriptor in block order.
func (s *Store) MatchedTxHashes(ctx context.Context, descriptorID string, limit int) ([]string, error) {
	if descriptorID == "" {
		return nil, fmt.Errorf("descriptor id required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT tx_hash FROM match_records
		WHERE descriptor_id = $1 AND matched
		ORDER BY block_number, tx_hash
		LIMIT $2
	`, descriptorID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// LoadState returns the last processed block for a scanner name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM scanner_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a scanner name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scanner_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

// jsonArg keeps empty payloads as SQL NULL rather than invalid JSON.
func jsonArg(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// numericArg stores an absent amount as SQL NULL.
func numericArg(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
