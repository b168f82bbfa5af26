package indexer

import "fmt"

// BlockRange is an inclusive range of block numbers.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len is the number of blocks in the range.
func (r BlockRange) Len() uint64 { return r.To - r.From + 1 }

// After trims the blocks up to and including last. ok is false when nothing is left.
func (r BlockRange) After(last uint64) (BlockRange, bool) {
	if last >= r.To {
		return BlockRange{}, false
	}
	if last >= r.From {
		r.From = last + 1
	}
	return r, true
}

// SplitRange cuts [from, to] into consecutive batches of at most batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is below from block %d", to, from)
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}

// TotalBlocks sums the lengths of ranges.
func TotalBlocks(ranges []BlockRange) uint64 {
	var total uint64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}
