package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"katsuo-market/internal/data"
	"katsuo-market/internal/model"
	"katsuo-market/internal/pipeline"
)

var mergeCSV bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the market-info page",
	Long: `Scrapes the configured market-info page and prints the records found.
With --merge-csv the scraped records are merged into the curated CSV instead
(a scraped row replaces a CSV row with the same date, port and size). The
CSV is created if missing; the merge is refused if any existing CSV row
cannot be read back, so curated rows are never dropped.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().BoolVar(&mergeCSV, "merge-csv", false, "Merge scraped rows into the curated CSV")
	scrapeCmd.Flags().Float64Var(&filterOverride.LowBound, "low", 0, "Override filter.low_bound")
	scrapeCmd.Flags().Float64Var(&filterOverride.HighBound, "high", 0, "Override filter.high_bound")
}

func runScrape(cmd *cobra.Command, args []string) error {
	if !mergeCSV {
		ctx, cancel := commandContext()
		defer cancel()

		seq, err := scrapeSource().Fetch(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s %-6s %-12s %-8s %-8s\n", "date", "port", "size", "price", "volume")
		n := 0
		for r := range seq {
			fmt.Printf("%-12s %-6s %-12s %-8s %-8s\n", r.Date, r.Port, r.Size, r.Price, r.Volume)
			n++
		}
		fmt.Printf("%d records\n", n)
		return nil
	}

	csv := csvSource()
	csv.AllowMissing = true
	return run(pipeline.Options{
		Sources:    []data.Source{scrapeSource()},
		OutputPath: csv.Path,
		Baseline: func(ctx context.Context) (model.Dataset, error) {
			return pipeline.LoadTrusted(ctx, csv, normalizer())
		},
		Write: data.WriteCSV,
	})
}
