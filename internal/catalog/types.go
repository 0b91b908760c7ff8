// Package catalog defines the persisted crawl data model and its stores.
package catalog

import "time"

// ProductImage is one downloaded or pending image asset.
type ProductImage struct {
	// Filename is {product_id}_{two-digit index}{ext}, unique per product.
	Filename string `json:"filename"`
	// OriginalURL is the canonical highest-resolution source URL.
	OriginalURL string `json:"original_url"`
	// LocalPath is set once the image exists on disk.
	LocalPath string `json:"local_path,omitempty"`
	// DownloadedAt is set exactly once, at successful download completion.
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`
}

// Downloaded reports whether the image has been fetched to disk.
func (i ProductImage) Downloaded() bool {
	return i.DownloadedAt != nil
}

// Product is one catalog item keyed by its URL handle.
type Product struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	URL      string         `json:"url"`
	Price    *string        `json:"price"`
	Category *string        `json:"category"`
	Images   []ProductImage `json:"images"`
	// CrawledAt is the most recent successful parse of this product.
	CrawledAt time.Time `json:"crawled_at"`
}

// CrawlResult is the persisted aggregate of all crawled products.
// Product order is preserved for reporting; ID is the merge key.
type CrawlResult struct {
	Products      []Product `json:"products"`
	CrawledAt     time.Time `json:"crawled_at"`
	TotalProducts int       `json:"total_products"`
	TotalImages   int       `json:"total_images"`

	byID map[string]int
}

// NewCrawlResult returns an empty result set.
func NewCrawlResult() *CrawlResult {
	return &CrawlResult{byID: make(map[string]int)}
}

// Has reports whether a product with the given ID is present.
func (r *CrawlResult) Has(id string) bool {
	r.ensureIndex()
	_, ok := r.byID[id]
	return ok
}

// Get returns the product with the given ID, if present.
func (r *CrawlResult) Get(id string) (Product, bool) {
	r.ensureIndex()
	idx, ok := r.byID[id]
	if !ok {
		return Product{}, false
	}
	return r.Products[idx], true
}

// Upsert inserts the product or replaces the existing record with the same
// ID, preserving its original position in the slice.
func (r *CrawlResult) Upsert(p Product) {
	r.ensureIndex()
	if idx, ok := r.byID[p.ID]; ok {
		r.Products[idx] = p
		return
	}
	r.byID[p.ID] = len(r.Products)
	r.Products = append(r.Products, p)
}

// Recount recomputes the derived totals from the live product set. Called on
// every save so the persisted counts can never drift.
func (r *CrawlResult) Recount() {
	r.TotalProducts = len(r.Products)
	r.TotalImages = 0
	for _, p := range r.Products {
		r.TotalImages += len(p.Images)
	}
}

func (r *CrawlResult) ensureIndex() {
	if r.byID != nil && len(r.byID) == len(r.Products) {
		return
	}
	r.byID = make(map[string]int, len(r.Products))
	for i, p := range r.Products {
		r.byID[p.ID] = i
	}
}

// JobType identifies the kind of crawl job a status record describes.
type JobType string

// Job types recorded in the status log.
const (
	JobListingFetch  JobType = "listing_fetch"
	JobDetailFetch   JobType = "detail_fetch"
	JobImageDownload JobType = "image_download"
)

// Outcome is the terminal result of a single job attempt.
type Outcome string

// Job outcomes recorded in the status log.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// JobRecord is one append-only status log entry.
type JobRecord struct {
	SessionID    string    `json:"session_id"`
	JobType      JobType   `json:"job_type"`
	TargetURL    string    `json:"target_url"`
	Outcome      Outcome   `json:"outcome"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// SessionProgress summarizes one crawl session for the status surface.
type SessionProgress struct {
	SessionID          string    `json:"session_id"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	ProductsDiscovered int       `json:"products_discovered"`
	ProductsCrawled    int       `json:"products_crawled"`
	ProductsSkipped    int       `json:"products_skipped"`
	ProductsFailed     int       `json:"products_failed"`
	ImagesDownloaded   int       `json:"images_downloaded"`
	ImagesFailed       int       `json:"images_failed"`
}
