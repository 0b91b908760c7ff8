package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ggstore/ggcrawl/internal/catalog"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the stored crawl state",
		RunE: func(*cobra.Command, []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			store, err := catalog.NewStore(cfg.Store.MetadataFile, logger)
			if err != nil {
				return fmt.Errorf("open metadata store: %w", err)
			}
			result, err := store.Load()
			if err != nil {
				return fmt.Errorf("load metadata: %w", err)
			}

			fmt.Printf("Metadata:       %s\n", cfg.Store.MetadataFile)
			fmt.Printf("Total Products: %d\n", result.TotalProducts)
			fmt.Printf("Total Images:   %d\n", result.TotalImages)
			if !result.CrawledAt.IsZero() {
				fmt.Printf("Last Crawled:   %s\n", result.CrawledAt.Format("2006-01-02 15:04:05 MST"))
			}

			records, err := catalog.ReadStatusLog(cfg.Store.StatusLog)
			if err != nil {
				return fmt.Errorf("read status log: %w", err)
			}
			if len(records) > 0 {
				counts := make(map[catalog.Outcome]int)
				for _, r := range records {
					counts[r.Outcome]++
				}
				outcomes := make([]catalog.Outcome, 0, len(counts))
				for o := range counts {
					outcomes = append(outcomes, o)
				}
				sort.Slice(outcomes, func(i, j int) bool { return outcomes[i] < outcomes[j] })

				fmt.Printf("\nJob Log (%d entries):\n", len(records))
				for _, o := range outcomes {
					fmt.Printf("  %-10s %d\n", o, counts[o])
				}
			}

			sessions, err := catalog.ReadSessions(cfg.Store.StatusLog)
			if err != nil {
				return fmt.Errorf("read status log: %w", err)
			}
			if len(sessions) > 0 {
				last := sessions[len(sessions)-1]
				fmt.Printf("\nLast Session (%s):\n", last.SessionID)
				fmt.Printf("  Finished:   %s\n", last.FinishedAt.Format("2006-01-02 15:04:05 MST"))
				fmt.Printf("  Discovered: %d\n", last.ProductsDiscovered)
				fmt.Printf("  Crawled:    %d\n", last.ProductsCrawled)
				fmt.Printf("  Skipped:    %d\n", last.ProductsSkipped)
				fmt.Printf("  Failed:     %d products, %d images\n", last.ProductsFailed, last.ImagesFailed)
				fmt.Printf("  Downloaded: %d images\n", last.ImagesDownloaded)
			}
			return nil
		},
	}
}

func newErrorsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the most recent crawl failures",
		RunE: func(*cobra.Command, []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			records, err := catalog.ReadStatusLog(cfg.Store.StatusLog)
			if err != nil {
				return fmt.Errorf("read status log: %w", err)
			}
			failures := catalog.FilterErrors(records)
			if len(failures) == 0 {
				fmt.Println("No errors recorded.")
				return nil
			}
			if limit > 0 && len(failures) > limit {
				failures = failures[len(failures)-limit:]
			}

			fmt.Fprintf(os.Stdout, "Last %d errors:\n", len(failures))
			for _, r := range failures {
				fmt.Printf("  [%s] %-16s %-18s %s\n",
					r.Timestamp.Format("2006-01-02 15:04:05"), r.JobType, r.ErrorKind, r.TargetURL)
				if r.ErrorMessage != "" {
					fmt.Printf("      %s\n", r.ErrorMessage)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of recent errors to show")
	return cmd
}
