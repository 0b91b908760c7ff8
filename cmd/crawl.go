package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ggstore/ggcrawl/internal/browser"
	"github.com/ggstore/ggcrawl/internal/catalog"
	"github.com/ggstore/ggcrawl/internal/clock/system"
	"github.com/ggstore/ggcrawl/internal/config"
	"github.com/ggstore/ggcrawl/internal/crawler"
	"github.com/ggstore/ggcrawl/internal/fetcher"
	"github.com/ggstore/ggcrawl/internal/id/uuid"
	"github.com/ggstore/ggcrawl/internal/parser"
)

func newCrawlCmd() *cobra.Command {
	var (
		outputDir    string
		metadataFile string
		noSkip       bool
		noHeadless   bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run an incremental crawl of the storefront",
		Long: `Discovers product URLs from the configured listing pages, parses each
product detail page, and downloads any images not yet on disk. A SIGINT
mid-run persists whatever completed so far before exiting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if outputDir != "" {
				cfg.Store.OutputDir = outputDir
			}
			if metadataFile != "" {
				cfg.Store.MetadataFile = metadataFile
			}
			if noSkip {
				cfg.Crawler.SkipExisting = false
			}
			if noHeadless {
				cfg.Browser.Headless = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := runCrawl(ctx, cfg, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			fmt.Println("==================================================")
			fmt.Println("Crawl Complete!")
			fmt.Println("==================================================")
			fmt.Printf("Total Products: %d\n", summary.Result.TotalProducts)
			fmt.Printf("Total Images:   %d\n", summary.Result.TotalImages)
			fmt.Printf("New This Run:   %d products, %d images\n",
				summary.Progress.ProductsCrawled, summary.Progress.ImagesDownloaded)
			fmt.Printf("Skipped:        %d products\n", summary.Progress.ProductsSkipped)
			fmt.Printf("Failed:         %d products, %d images\n",
				summary.Progress.ProductsFailed, summary.Progress.ImagesFailed)
			fmt.Printf("Output Dir:     %s\n", cfg.Store.OutputDir)
			fmt.Printf("Metadata:       %s\n", cfg.Store.MetadataFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for images")
	cmd.Flags().StringVarP(&metadataFile, "metadata", "m", "", "metadata file path")
	cmd.Flags().BoolVar(&noSkip, "no-skip", false, "re-crawl already-known products")
	cmd.Flags().BoolVar(&noHeadless, "no-headless", false, "show the browser window")
	return cmd
}

func runCrawl(ctx context.Context, cfg config.Config, logger *zap.Logger) (*crawler.Summary, error) {
	store, err := catalog.NewStore(cfg.Store.MetadataFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	statusLog, err := catalog.OpenStatusLog(cfg.Store.StatusLog)
	if err != nil {
		return nil, fmt.Errorf("open status log: %w", err)
	}
	defer func() {
		if cerr := statusLog.Close(); cerr != nil {
			logger.Warn("close status log", zap.Error(cerr))
		}
	}()

	p, err := parser.New(cfg.Crawler.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("build parser: %w", err)
	}

	// Failing to launch the browser is the one fatal startup error: there
	// is no crawl without a renderer.
	session, err := browser.NewChromedpSession(browser.Config{
		Headless:        cfg.Browser.Headless,
		UserAgent:       cfg.Browser.UserAgent,
		NavTimeout:      cfg.Browser.NavTimeout(),
		NavDelay:        cfg.Browser.NavDelay(),
		MaxScrollRounds: cfg.Browser.MaxScrollRounds,
		ScrollSettle:    cfg.Browser.ScrollSettle(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := session.Close(context.Background()); cerr != nil {
			logger.Warn("close browser", zap.Error(cerr))
		}
	}()

	getter := fetcher.NewCollyGetter(fetcher.CollyConfig{
		UserAgent: cfg.Browser.UserAgent,
		Timeout:   cfg.Download.Timeout(),
	})
	downloader := fetcher.NewDownloader(
		getter,
		fetcher.NewExponentialRetryPolicy(cfg.Download.MaxRetries),
		cfg.Download.Concurrency,
		logger,
	)

	orchestrator := crawler.New(
		session,
		p,
		downloader,
		store,
		statusLog,
		system.New(),
		uuid.NewGenerator(),
		crawler.Config{
			ListingURLs:     cfg.Crawler.ListingURLs,
			OutputDir:       cfg.Store.OutputDir,
			SkipExisting:    cfg.Crawler.SkipExisting,
			CheckpointEvery: cfg.Crawler.CheckpointEvery,
		},
		logger,
	)
	return orchestrator.Run(ctx)
}
