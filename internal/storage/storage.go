package storage

import (
	"context"

	"questFilter/internal/model"
)

// Storage defines a sink for match records.
type Storage interface {
	PutMatchBatch(ctx context.Context, records []model.MatchRecord) error
}
