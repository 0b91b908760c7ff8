package crawler

import (
	"context"
	"time"

	"github.com/ggstore/ggcrawl/internal/fetcher"
)

// ImageDownloader runs a download batch and reports per-item outcomes.
type ImageDownloader interface {
	DownloadAll(ctx context.Context, items []fetcher.Item) []fetcher.Result
}

// Clock returns the current time (swappable for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs.
type IDGenerator interface {
	NewID() (string, error)
}
