package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"questFilter/internal/model"
)

// Cache stores serialized match records keyed by "<tx hash>:<descriptor id>".
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Observer receives per-evaluation measurements.
type Observer interface {
	ObserveMatch(action string, matched bool, reason string, elapsed time.Duration)
	ObserveCache(hit bool)
}

// Options configures a Matcher.
type Options struct {
	Workers     int
	OnlyMatched bool
	RunID       string
	Cache       Cache
	Observer    Observer
	Logger      *zap.Logger
}

// Matcher evaluates batches of transactions against a fixed set of programs.
type Matcher struct {
	programs []*Program
	opts     Options
	logger   *zap.Logger
}

// New builds a Matcher. Workers defaults to GOMAXPROCS.
func New(programs []*Program, opts Options) *Matcher {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{programs: programs, opts: opts, logger: logger}
}

func (m *Matcher) Programs() []*Program { return m.programs }

// MatchAll evaluates every transaction against every program. Records come back
// transaction-major, program-minor, whatever the worker count.
func (m *Matcher) MatchAll(ctx context.Context, txs []model.Transaction) ([]model.MatchRecord, error) {
	slots := make([][]model.MatchRecord, len(txs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i := range txs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := m.matchTx(gctx, txs[i])
			if err != nil {
				return err
			}
			slots[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.MatchRecord, 0, len(txs))
	for _, records := range slots {
		out = append(out, records...)
	}
	return out, nil
}

func (m *Matcher) matchTx(ctx context.Context, tx model.Transaction) ([]model.MatchRecord, error) {
	out := make([]model.MatchRecord, 0, len(m.programs))
	for _, p := range m.programs {
		rec, err := m.matchOne(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		if m.opts.OnlyMatched && !rec.Matched {
			continue
		}
		rec.RunID = m.opts.RunID
		out = append(out, rec)
	}
	return out, nil
}

func (m *Matcher) matchOne(ctx context.Context, tx model.Transaction, p *Program) (model.MatchRecord, error) {
	start := time.Now()
	key := ""
	if tx.Hash != "" && m.opts.Cache != nil {
		key = strings.ToLower(tx.Hash) + ":" + p.ID()
		if rec, code, ok := m.cached(ctx, key); ok {
			// the key is content addressed; programs sharing a descriptor differ by name only
			rec.Action = p.Name()
			m.observe(p, rec.Matched, code, time.Since(start))
			return rec, nil
		}
	}

	res := p.Match(tx)
	code := ""
	if res.Reason != nil {
		code = string(res.Reason.Code)
	}
	m.observe(p, res.Matched, code, time.Since(start))
	if res.Matched {
		m.logger.Debug("tx matched", zap.String("tx_hash", tx.Hash), zap.String("action", p.Name()), zap.String("signature", res.Signature))
	}

	rec, err := p.Record(tx, res)
	if err != nil {
		return model.MatchRecord{}, fmt.Errorf("tx %s action %s: %w", tx.Hash, p.Name(), err)
	}

	if key != "" {
		if data, err := json.Marshal(rec); err == nil {
			if err := m.opts.Cache.Set(ctx, key, data); err != nil {
				m.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return rec, nil
}

func (m *Matcher) observe(p *Program, matched bool, reason string, elapsed time.Duration) {
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveMatch(p.Name(), matched, reason, elapsed)
	}
}

// cached returns the stored record and the code of its reason, if any.
func (m *Matcher) cached(ctx context.Context, key string) (model.MatchRecord, string, bool) {
	data, ok, err := m.opts.Cache.Get(ctx, key)
	if err != nil {
		m.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return model.MatchRecord{}, "", false
	}
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveCache(ok)
	}
	if !ok {
		return model.MatchRecord{}, "", false
	}
	var rec model.MatchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return model.MatchRecord{}, "", false
	}
	var reason struct {
		Code string `json:"code"`
	}
	if len(rec.Reason) > 0 {
		if err := json.Unmarshal(rec.Reason, &reason); err != nil {
			m.logger.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
			return model.MatchRecord{}, "", false
		}
	}
	return rec, reason.Code, true
}
