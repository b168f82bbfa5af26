package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"questFilter/internal/calldata"
	"questFilter/internal/filter"
	"questFilter/internal/matcher"
	"questFilter/internal/model"
)

const token = "0x539bde0d7dbd336b79148aa742883198bbf60342"

var transfer = calldata.MustParseFragment("function transfer(address to, uint256 amount)")

func transferInput(t *testing.T, amount int64) string {
	t.Helper()
	args := make(abi.Arguments, len(transfer.Inputs))
	for i, in := range transfer.Inputs {
		typ, err := in.ABIType()
		if err != nil {
			t.Fatalf("abi type: %v", err)
		}
		args[i] = abi.Argument{Name: in.Name, Type: typ}
	}
	packed, err := args.Pack(common.HexToAddress("0x01"), big.NewInt(amount))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	sel := transfer.Selector()
	return hexutil.Encode(append(sel[:], packed...))
}

type fakeSource struct {
	mu       sync.Mutex
	latest   uint64
	blocks   map[uint64][]model.Transaction
	failures map[uint64]int
	fetched  []uint64
}

func (f *fakeSource) GetChainID(context.Context) (*big.Int, error) { return big.NewInt(42161), nil }

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeSource) BlockTransactions(_ context.Context, number uint64) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[number] > 0 {
		f.failures[number]--
		return nil, errors.New("rpc timeout")
	}
	f.fetched = append(f.fetched, number)
	return f.blocks[number], nil
}

type memSink struct {
	records []model.MatchRecord
}

func (s *memSink) PutMatchBatch(_ context.Context, records []model.MatchRecord) error {
	s.records = append(s.records, records...)
	return nil
}

type memCheckpoint struct {
	last  uint64
	ok    bool
	saves []uint64
}

func (c *memCheckpoint) Load(context.Context) (uint64, bool, error) { return c.last, c.ok, nil }

func (c *memCheckpoint) Save(_ context.Context, last uint64) error {
	c.last, c.ok = last, true
	c.saves = append(c.saves, last)
	return nil
}

// newSource puts one transfer per block; even blocks move enough to match.
func newSource(t *testing.T, from, to uint64) *fakeSource {
	src := &fakeSource{latest: to, blocks: map[uint64][]model.Transaction{}, failures: map[uint64]int{}}
	for n := from; n <= to; n++ {
		amount := int64(50)
		if n%2 == 0 {
			amount = 500
		}
		src.blocks[n] = []model.Transaction{{
			ChainID:     42161,
			From:        "0x0000000000000000000000000000000000000002",
			To:          token,
			Input:       transferInput(t, amount),
			Value:       "0",
			Hash:        fmt.Sprintf("0x%064x", n),
			BlockNumber: n,
		}}
	}
	return src
}

func newMatcher(t *testing.T) *matcher.Matcher {
	t.Helper()
	p, err := matcher.Compile("transfer", filter.Descriptor{
		ChainID:  42161,
		Contract: common.HexToAddress(token),
		ABI:      []calldata.Fragment{transfer},
		Filter:   filter.Gte("amount", 100),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return matcher.New([]*matcher.Program{p}, matcher.Options{Workers: 2, RunID: "run"})
}

func TestRunnerScansInBlockOrder(t *testing.T) {
	src := newSource(t, 100, 105)
	sink := &memSink{}
	cp := &memCheckpoint{}
	r := NewRunner(RunConfig{FromBlock: 100, ToBlock: 105, BatchSize: 2, FetchWorkers: 3}, src, newMatcher(t), sink, cp, nil)

	var batches []BatchStats
	r.OnBatch = func(s BatchStats) { batches = append(batches, s) }

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(sink.records))
	}
	for i, rec := range sink.records {
		block := uint64(100 + i)
		if rec.BlockNumber != block {
			t.Fatalf("record %d: block %d != %d", i, rec.BlockNumber, block)
		}
		if rec.Matched != (block%2 == 0) {
			t.Fatalf("record %d: matched=%v", i, rec.Matched)
		}
		if rec.RunID != "run" {
			t.Fatalf("record %d: run id %q", i, rec.RunID)
		}
	}

	if want := []uint64{101, 103, 105}; fmt.Sprint(cp.saves) != fmt.Sprint(want) {
		t.Fatalf("checkpoint saves mismatch: %v != %v", cp.saves, want)
	}
	if len(batches) != 3 || batches[0].Matched != 1 || batches[0].Transactions != 2 {
		t.Fatalf("unexpected batch stats: %+v", batches)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	src := newSource(t, 100, 105)
	sink := &memSink{}
	cp := &memCheckpoint{last: 103, ok: true}
	r := NewRunner(RunConfig{FromBlock: 100, BatchSize: 10}, src, newMatcher(t), sink, cp, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.records) != 2 || sink.records[0].BlockNumber != 104 {
		t.Fatalf("expected blocks 104-105, got %+v", sink.records)
	}
	if cp.last != 105 {
		t.Fatalf("checkpoint not advanced: %d", cp.last)
	}

	ranges, err := r.Plan(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 0 {
		t.Fatalf("expected nothing left to scan, got %+v", ranges)
	}
}

func TestRunnerRetriesBlockFetch(t *testing.T) {
	src := newSource(t, 1, 3)
	src.failures[2] = 2
	sink := &memSink{}
	r := NewRunner(RunConfig{FromBlock: 1, ToBlock: 3, BatchSize: 3, MaxRetries: 2, RetryBackoff: time.Millisecond}, src, newMatcher(t), sink, nil, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(sink.records))
	}

	src = newSource(t, 1, 3)
	src.failures[2] = 5
	r = NewRunner(RunConfig{FromBlock: 1, ToBlock: 3, BatchSize: 3, MaxRetries: 1, RetryBackoff: time.Millisecond}, src, newMatcher(t), &memSink{}, nil, nil)
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
}

func TestRunnerSkipsDuplicateTransactions(t *testing.T) {
	src := newSource(t, 1, 2)
	src.blocks[2] = append(src.blocks[2], src.blocks[1][0])
	sink := &memSink{}
	r := NewRunner(RunConfig{FromBlock: 1, ToBlock: 2, BatchSize: 1}, src, newMatcher(t), sink, nil, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(sink.records))
	}
}

func TestRunnerUsesLatestBlock(t *testing.T) {
	src := newSource(t, 10, 14)
	r := NewRunner(RunConfig{FromBlock: 10, BatchSize: 2}, src, newMatcher(t), &memSink{}, nil, nil)
	ranges, err := r.Plan(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 3 || ranges[2].To != 14 {
		t.Fatalf("unexpected ranges: %+v", ranges)
	}
}

func TestRunnerRequiresDependencies(t *testing.T) {
	r := NewRunner(RunConfig{BatchSize: 1}, nil, nil, nil, nil, nil)
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}

func TestFileCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	store := NewCheckpointStore(path, true)

	if _, ok, err := store.Load(context.Background()); err != nil || ok {
		t.Fatalf("expected empty checkpoint, got ok=%v err=%v", ok, err)
	}
	if err := store.Save(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last, ok, err := store.Load(context.Background())
	if err != nil || !ok || last != 42 {
		t.Fatalf("unexpected checkpoint: %d %v %v", last, ok, err)
	}

	disabled := NewCheckpointStore(path, false)
	if _, ok, _ := disabled.Load(context.Background()); ok {
		t.Fatalf("disabled store should not load")
	}
}

type memState map[string]uint64

func (m memState) LoadState(_ context.Context, name string) (uint64, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

func (m memState) SaveState(_ context.Context, name string, block uint64) error {
	m[name] = block
	return nil
}

func TestStateCheckpoint(t *testing.T) {
	state := memState{}
	cp := NewStateCheckpoint(state, "arbitrum:quests")
	if err := cp.Save(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state["arbitrum:quests"] != 7 {
		t.Fatalf("state not written: %+v", state)
	}
	last, ok, _ := cp.Load(context.Background())
	if !ok || last != 7 {
		t.Fatalf("unexpected load: %d %v", last, ok)
	}
}

func TestParseHashes(t *testing.T) {
	hashes, err := ParseHashes([]string{" 0x8bf8405112a727937c67236c4972ca40e0c0f69d6eeadd60ce0e36649689096f", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hashes) != 1 {
		t.Fatalf("expected 1 hash, got %d", len(hashes))
	}
	if _, err := ParseHashes([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short hash")
	}
}
