package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/knit-tagger/internal/application"
	"github.com/bryanwahyu/knit-tagger/internal/infra/scraper"
)

var (
	scrapePages int
	scrapeOut   string
)

func init() {
	scrapeCmd.Flags().IntVar(&scrapePages, "pages", 0, "Number of listing pages to scrape (overrides config).")
	scrapeCmd.Flags().StringVar(&scrapeOut, "out", "", "Directory to save images to (overrides config).")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--pages <n>] [--out <dir>]",
	Short: "Downloads product photos from the configured listing pages.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd.Context())
		sc := a.Config.Scraper
		if scrapePages > 0 {
			sc.Pages = scrapePages
		}
		if scrapeOut != "" {
			sc.OutputDir = scrapeOut
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := scraper.New(scraper.Options{
			StartURL:  sc.StartURL,
			Pages:     sc.Pages,
			PageParam: sc.PageParam,
			OutputDir: sc.OutputDir,
			MinDelay:  sc.MinDelay,
			MaxDelay:  sc.MaxDelay,
			PageDelay: sc.PageDelay,
			UserAgent: sc.UserAgent,
			Referer:   sc.Referer,
			Timeout:   sc.Timeout,
		}, application.SystemClock{}, a.Logger)

		sum, err := s.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d images in total (%d failed, %d pages)\n", sum.Downloaded, sum.Failed, sum.Pages)
		return nil
	},
}
