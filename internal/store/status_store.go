package store

import (
	"context"
	"errors"
	"time"

	"linkchecker/internal/models"
)

// ErrBatchClosed is returned when a batch is used after Commit or Discard.
var ErrBatchClosed = errors.New("status batch already closed")

// ErrPartialCommit is returned when a commit failed after some of its updates were applied.
var ErrPartialCommit = errors.New("status batch partially applied")

//go:generate mockgen -destination=../../mocks/mock_store.go -package=mocks linkchecker/internal/store CandidateSource,StatusReader

// CandidateSource lists URLs due for a check.
type CandidateSource interface {
	// GetLinksForCheck returns up to limit keys greater than after (limit <= 0 means no limit),
	// restricted to keys starting with prefix when prefix is non-empty, whose last check is
	// older than recheckAge or missing. Keys come back in ascending order.
	GetLinksForCheck(ctx context.Context, after string, limit int, recheckAge time.Duration, prefix string) ([]string, error)
}

// StatusBatch buffers status updates until Commit makes all of them visible at once.
type StatusBatch interface {
	UpdateLinkStatus(ctx context.Context, result models.LinkCheckResult) error
	Commit(ctx context.Context) error
	Discard() error
}

// BatchOpener starts a new StatusBatch on a read-write connection.
type BatchOpener interface {
	OpenBatch(ctx context.Context) (StatusBatch, error)
}

// StatusReader reads committed link statuses.
type StatusReader interface {
	GetLinkStatus(ctx context.Context, url string) (models.LinkStatus, bool, error)
}
