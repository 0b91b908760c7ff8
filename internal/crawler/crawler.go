// Package crawler sequences browser rendering, page parsing, image download,
// and persistence into one incremental crawl run.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ggstore/ggcrawl/internal/browser"
	"github.com/ggstore/ggcrawl/internal/catalog"
	"github.com/ggstore/ggcrawl/internal/fetcher"
	"github.com/ggstore/ggcrawl/internal/parser"
	"github.com/ggstore/ggcrawl/internal/urlutil"
)

// State is the orchestrator's position in the run lifecycle.
type State string

// Run states. Failed is absorbing and reachable from any stage.
const (
	StateIdle                State = "idle"
	StateDiscoveringListings State = "discovering_listings"
	StateCrawlingProducts    State = "crawling_products"
	StateDownloadingImages   State = "downloading_images"
	StatePersisting          State = "persisting"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

// Config controls a crawl run.
type Config struct {
	ListingURLs []string
	OutputDir   string
	// SkipExisting leaves already-known products untouched: no navigation,
	// no re-parse, no image fetch.
	SkipExisting bool
	// CheckpointEvery persists the metadata file every N processed products
	// so an interrupted run loses at most one batch.
	CheckpointEvery int
}

// Summary reports what a run did.
type Summary struct {
	State State
	// FailedStage names the stage a fatal error occurred in, if any.
	FailedStage State
	Progress    catalog.SessionProgress
	Result      *catalog.CrawlResult
}

// Orchestrator owns the CrawlResult for the duration of a run and is the
// only mutator of it. Navigation is sequential; only image downloads fan
// out, and their results are merged back on the control goroutine.
type Orchestrator struct {
	renderer   browser.Renderer
	parser     *parser.Parser
	downloader ImageDownloader
	store      *catalog.Store
	statusLog  *catalog.StatusLog
	clock      Clock
	idGen      IDGenerator
	cfg        Config
	logger     *zap.Logger

	state State
}

// New constructs an Orchestrator.
func New(
	renderer browser.Renderer,
	p *parser.Parser,
	downloader ImageDownloader,
	store *catalog.Store,
	statusLog *catalog.StatusLog,
	clock Clock,
	idGen IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}
	return &Orchestrator{
		renderer:   renderer,
		parser:     p,
		downloader: downloader,
		store:      store,
		statusLog:  statusLog,
		clock:      clock,
		idGen:      idGen,
		cfg:        cfg,
		logger:     logger,
		state:      StateIdle,
	}
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes one crawl. An interrupt mid-crawl still reaches the persist
// stage with whatever completed so far; partial progress beats data loss.
// Only store failures are fatal. The returned error is ctx.Err() when the
// run was interrupted.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	sessionID, err := o.idGen.NewID()
	if err != nil {
		return o.fail(StateIdle, fmt.Errorf("new session id: %w", err))
	}
	result, err := o.store.Load()
	if err != nil {
		return o.fail(StateIdle, fmt.Errorf("load metadata: %w", err))
	}

	progress := catalog.SessionProgress{SessionID: sessionID, StartedAt: o.clock.Now()}
	o.logger.Info("crawl started",
		zap.String("session_id", sessionID),
		zap.Int("known_products", len(result.Products)),
		zap.Bool("skip_existing", o.cfg.SkipExisting),
	)

	o.setState(StateDiscoveringListings)
	productURLs := o.discoverListings(ctx, sessionID)
	progress.ProductsDiscovered = len(productURLs)

	o.setState(StateCrawlingProducts)
	processed := o.crawlProducts(ctx, sessionID, result, productURLs, &progress)

	o.setState(StateDownloadingImages)
	o.downloadImages(ctx, sessionID, result, processed, &progress)

	o.setState(StatePersisting)
	if len(processed) > 0 {
		result.CrawledAt = o.clock.Now()
	}
	if err := o.store.Save(result); err != nil {
		return o.fail(StatePersisting, fmt.Errorf("persist metadata: %w", err))
	}

	progress.FinishedAt = o.clock.Now()
	if err := o.statusLog.AppendProgress(progress); err != nil {
		o.logger.Warn("session progress append failed", zap.Error(err))
	}
	o.setState(StateDone)
	o.logger.Info("crawl finished",
		zap.String("session_id", sessionID),
		zap.Int("discovered", progress.ProductsDiscovered),
		zap.Int("crawled", progress.ProductsCrawled),
		zap.Int("skipped", progress.ProductsSkipped),
		zap.Int("failed", progress.ProductsFailed),
		zap.Int("images_downloaded", progress.ImagesDownloaded),
		zap.Int("images_failed", progress.ImagesFailed),
	)

	summary := &Summary{State: StateDone, Progress: progress, Result: result}
	if ctx.Err() != nil {
		o.logger.Warn("run interrupted, partial progress persisted", zap.Error(ctx.Err()))
		return summary, ctx.Err()
	}
	return summary, nil
}

// discoverListings renders each configured listing URL and accumulates the
// union of product URLs, deduplicated globally in discovery order.
func (o *Orchestrator) discoverListings(ctx context.Context, sessionID string) []string {
	seen := make(map[string]struct{})
	var productURLs []string

	for _, listingURL := range o.cfg.ListingURLs {
		if ctx.Err() != nil {
			return productURLs
		}
		html, err := o.renderer.RenderListing(ctx, listingURL)
		if err != nil {
			o.logger.Error("listing render failed", zap.String("url", listingURL), zap.Error(err))
			o.recordJob(sessionID, catalog.JobListingFetch, listingURL, catalog.OutcomeFailed, err)
			continue
		}
		urls, err := o.parser.ListingURLs(html)
		if err != nil {
			o.logger.Error("listing parse failed", zap.String("url", listingURL), zap.Error(err))
			o.recordJob(sessionID, catalog.JobListingFetch, listingURL, catalog.OutcomeFailed, err)
			continue
		}
		listingsRendered.Inc()
		o.recordJob(sessionID, catalog.JobListingFetch, listingURL, catalog.OutcomeSuccess, nil)

		added := 0
		for _, u := range urls {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			productURLs = append(productURLs, u)
			added++
		}
		o.logger.Info("listing scanned",
			zap.String("url", listingURL),
			zap.Int("links", len(urls)),
			zap.Int("new", added),
		)
	}
	return productURLs
}

// crawlProducts renders and parses each product URL, merging fresh records
// into result. A failed product keeps its previous record; failures are
// recorded and the run continues.
func (o *Orchestrator) crawlProducts(
	ctx context.Context,
	sessionID string,
	result *catalog.CrawlResult,
	productURLs []string,
	progress *catalog.SessionProgress,
) []catalog.Product {
	var processed []catalog.Product

	for i, productURL := range productURLs {
		if ctx.Err() != nil {
			break
		}

		id, err := urlutil.ProductID(productURL)
		if err != nil {
			progress.ProductsFailed++
			productFailures.Inc()
			o.recordJob(sessionID, catalog.JobDetailFetch, productURL, catalog.OutcomeFailed, err)
			continue
		}

		if o.cfg.SkipExisting && result.Has(id) {
			progress.ProductsSkipped++
			productsSkipped.Inc()
			o.recordJob(sessionID, catalog.JobDetailFetch, productURL, catalog.OutcomeSkipped, nil)
			continue
		}

		o.logger.Info("processing product",
			zap.String("id", id),
			zap.Int("index", i+1),
			zap.Int("total", len(productURLs)),
		)

		html, err := o.renderer.Render(ctx, productURL)
		if err != nil {
			progress.ProductsFailed++
			productFailures.Inc()
			o.logger.Error("detail render failed", zap.String("url", productURL), zap.Error(err))
			o.recordJob(sessionID, catalog.JobDetailFetch, productURL, catalog.OutcomeFailed, err)
			continue
		}

		product, err := o.parser.Product(html, productURL)
		if err != nil {
			progress.ProductsFailed++
			productFailures.Inc()
			o.logger.Error("detail parse failed", zap.String("url", productURL), zap.Error(err))
			o.recordJob(sessionID, catalog.JobDetailFetch, productURL, catalog.OutcomeFailed, err)
			continue
		}

		product.CrawledAt = o.clock.Now()
		inheritDownloads(result, &product)
		result.Upsert(product)
		processed = append(processed, product)
		progress.ProductsCrawled++
		productsParsed.Inc()
		o.recordJob(sessionID, catalog.JobDetailFetch, productURL, catalog.OutcomeSuccess, nil)

		if len(processed)%o.cfg.CheckpointEvery == 0 {
			if err := o.store.Save(result); err != nil {
				o.logger.Warn("checkpoint save failed", zap.Error(err))
			}
		}
	}
	return processed
}

// downloadImages fetches the images of every product processed this run and
// merges the outcomes back into result on the control goroutine.
func (o *Orchestrator) downloadImages(
	ctx context.Context,
	sessionID string,
	result *catalog.CrawlResult,
	processed []catalog.Product,
	progress *catalog.SessionProgress,
) {
	for _, product := range processed {
		if ctx.Err() != nil {
			return
		}

		var items []fetcher.Item
		var indices []int
		for i, img := range product.Images {
			if img.Downloaded() {
				continue
			}
			items = append(items, fetcher.Item{
				URL:  img.OriginalURL,
				Dest: filepath.Join(o.cfg.OutputDir, img.Filename),
			})
			indices = append(indices, i)
		}
		if len(items) == 0 {
			continue
		}

		results := o.downloader.DownloadAll(ctx, items)
		for n, res := range results {
			img := &product.Images[indices[n]]
			switch res.Status {
			case fetcher.StatusDownloaded:
				now := o.clock.Now()
				img.LocalPath = res.Item.Dest
				img.DownloadedAt = &now
				progress.ImagesDownloaded++
				imagesDownloaded.Inc()
				o.recordJob(sessionID, catalog.JobImageDownload, res.Item.URL, catalog.OutcomeSuccess, nil)
			case fetcher.StatusSkipped:
				imagesSkipped.Inc()
				o.recordJob(sessionID, catalog.JobImageDownload, res.Item.URL, catalog.OutcomeSkipped, nil)
			case fetcher.StatusFailed:
				progress.ImagesFailed++
				imagesFailed.Inc()
				o.recordJob(sessionID, catalog.JobImageDownload, res.Item.URL, catalog.OutcomeFailed, res.Err)
			}
		}
		result.Upsert(product)
	}
}

// inheritDownloads carries LocalPath/DownloadedAt from the prior record onto
// a freshly parsed product, matched by canonical URL, so a re-crawl never
// loses download history. DownloadedAt is set exactly once per image.
func inheritDownloads(result *catalog.CrawlResult, product *catalog.Product) {
	prior, ok := result.Get(product.ID)
	if !ok {
		return
	}
	byURL := make(map[string]catalog.ProductImage, len(prior.Images))
	for _, img := range prior.Images {
		byURL[img.OriginalURL] = img
	}
	for i, img := range product.Images {
		if old, found := byURL[img.OriginalURL]; found && old.Downloaded() {
			product.Images[i].LocalPath = old.LocalPath
			product.Images[i].DownloadedAt = old.DownloadedAt
		}
	}
}

func (o *Orchestrator) recordJob(
	sessionID string,
	jobType catalog.JobType,
	targetURL string,
	outcome catalog.Outcome,
	jobErr error,
) {
	rec := catalog.JobRecord{
		SessionID: sessionID,
		JobType:   jobType,
		TargetURL: targetURL,
		Outcome:   outcome,
		Timestamp: o.clock.Now(),
	}
	if jobErr != nil {
		rec.ErrorKind = errorKind(jobType, jobErr)
		rec.ErrorMessage = jobErr.Error()
	}
	if err := o.statusLog.Append(rec); err != nil {
		o.logger.Warn("status log append failed", zap.Error(err))
	}
}

func errorKind(jobType catalog.JobType, err error) string {
	switch {
	case errors.Is(err, urlutil.ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, parser.ErrParse):
		return "parse_error"
	case errors.Is(err, browser.ErrNavigation):
		return "navigation_error"
	case jobType == catalog.JobImageDownload:
		return "download_error"
	default:
		return "unknown"
	}
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	o.logger.Debug("state transition", zap.String("state", string(s)))
}

func (o *Orchestrator) fail(stage State, err error) (*Summary, error) {
	o.state = StateFailed
	o.logger.Error("run failed", zap.String("stage", string(stage)), zap.Error(err))
	return &Summary{State: StateFailed, FailedStage: stage}, err
}
