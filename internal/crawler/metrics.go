package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// listingsRendered tracks listing pages successfully rendered.
	listingsRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggcrawl_listings_rendered_total",
		Help: "The total number of listing pages rendered and scanned.",
	})
	// productsParsed tracks detail pages parsed into product records.
	productsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggcrawl_products_parsed_total",
		Help: "The total number of product detail pages parsed.",
	})
	// productsSkipped tracks products skipped via skip-existing.
	productsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggcrawl_products_skipped_total",
		Help: "The total number of products skipped because they were already crawled.",
	})
	// productFailures tracks per-product navigation or parse failures.
	productFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggcrawl_product_failures_total",
		Help: "The total number of products that failed to render or parse.",
	})
	// imagesDownloaded tracks images fetched and written to disk.
	imagesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggcrawl_images_downloaded_total",
		Help: "The total number of images downloaded.",
	})
	// imagesSkipped tracks image downloads skipped via existing files.
	imagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggcrawl_images_skipped_total",
		Help: "The total number of image downloads skipped because the file existed.",
	})
	// imagesFailed tracks images whose download attempts were exhausted.
	imagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ggcrawl_images_failed_total",
		Help: "The total number of images that failed to download.",
	})
)
