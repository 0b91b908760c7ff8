// Package fetcher downloads image assets with bounded concurrency and
// incremental skip-if-exists semantics.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Item is one (canonical URL, destination path) download request.
type Item struct {
	URL  string
	Dest string
}

// Status is the per-item download outcome.
type Status string

// Download outcomes.
const (
	// StatusDownloaded means bytes were fetched and written.
	StatusDownloaded Status = "downloaded"
	// StatusSkipped means the destination already existed; no network call.
	StatusSkipped Status = "skipped"
	// StatusFailed means all attempts failed; the batch continued.
	StatusFailed Status = "failed"
)

// Result is the outcome for one batch item.
type Result struct {
	Item     Item
	Status   Status
	Attempts int
	Err      error
}

// Downloader runs download batches against a Getter. One item's failure
// never aborts the batch; failures are collected per item.
type Downloader struct {
	getter      Getter
	policy      *ExponentialRetryPolicy
	concurrency int
	logger      *zap.Logger
	// sleep is swappable in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

// NewDownloader builds a Downloader. concurrency bounds in-flight fetches;
// the origin rate-limits aggressive parallelism, so the default is 5.
func NewDownloader(getter Getter, policy *ExponentialRetryPolicy, concurrency int, logger *zap.Logger) *Downloader {
	if concurrency <= 0 {
		concurrency = 5
	}
	if policy == nil {
		policy = NewExponentialRetryPolicy(3)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		getter:      getter,
		policy:      policy,
		concurrency: concurrency,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// DownloadAll processes every item and returns one Result per item, in
// input order. Completion order between items is unspecified.
func (d *Downloader) DownloadAll(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = Result{Item: item, Status: StatusFailed, Err: ctx.Err()}
				return
			}
			results[i] = d.downloadOne(ctx, item)
		}(i, item)
	}
	wg.Wait()
	return results
}

func (d *Downloader) downloadOne(ctx context.Context, item Item) Result {
	if _, err := os.Stat(item.Dest); err == nil {
		d.logger.Debug("already on disk", zap.String("dest", item.Dest))
		return Result{Item: item, Status: StatusSkipped}
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		body, err := d.getter.Get(ctx, item.URL)
		if err == nil {
			if writeErr := writeFile(item.Dest, body); writeErr != nil {
				return Result{Item: item, Status: StatusFailed, Attempts: attempt, Err: writeErr}
			}
			d.logger.Debug("downloaded",
				zap.String("url", item.URL),
				zap.String("dest", item.Dest),
				zap.Int("attempts", attempt),
			)
			return Result{Item: item, Status: StatusDownloaded, Attempts: attempt}
		}

		lastErr = err
		if !d.policy.ShouldRetry(err, attempt) {
			return Result{Item: item, Status: StatusFailed, Attempts: attempt, Err: lastErr}
		}
		d.logger.Warn("transient download failure, retrying",
			zap.String("url", item.URL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		d.sleep(ctx, d.policy.Backoff(attempt))
		if ctx.Err() != nil {
			return Result{Item: item, Status: StatusFailed, Attempts: attempt, Err: ctx.Err()}
		}
	}
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o600)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
