package main

import (
	"errors"

	"github.com/spf13/cobra"

	"katsuo-market/internal/data"
	"katsuo-market/internal/pipeline"
)

var (
	dryRun   bool
	noCSV    bool
	noScrape bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch all enabled sources and merge them into the dataset",
	Long: `Fetches the curated CSV and the market-info page, normalizes and filters
the records, and merges them into the persisted dataset (last write wins).
A failing source is reported and skipped; a failed write is fatal.`,
	RunE: runUpdate,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the dataset from the CSV alone",
	Long: `Discards the persisted dataset and rebuilds it from the curated CSV.
Nothing is written if the CSV cannot be read.`,
	RunE: runRebuild,
}

func init() {
	for _, cmd := range []*cobra.Command{updateCmd, rebuildCmd} {
		cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run every stage but do not write")
		cmd.Flags().Float64Var(&filterOverride.LowBound, "low", 0, "Override filter.low_bound")
		cmd.Flags().Float64Var(&filterOverride.HighBound, "high", 0, "Override filter.high_bound")
	}
	updateCmd.Flags().BoolVar(&noCSV, "no-csv", false, "Skip the CSV source")
	updateCmd.Flags().BoolVar(&noScrape, "no-scrape", false, "Skip the scrape source")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	var sources []data.Source
	if cfg.Sources.CSV.Enabled && !noCSV {
		sources = append(sources, csvSource())
	}
	if cfg.Sources.Scrape.Enabled && !noScrape {
		sources = append(sources, scrapeSource())
	}
	if len(sources) == 0 {
		return errors.New("no source enabled")
	}
	return run(pipeline.Options{
		Sources:    sources,
		OutputPath: cfg.Output.DataFile,
		DryRun:     dryRun,
	})
}

func runRebuild(cmd *cobra.Command, args []string) error {
	return run(pipeline.Options{
		Sources:    []data.Source{csvSource()},
		OutputPath: cfg.Output.DataFile,
		Fresh:      true,
		DryRun:     dryRun,
	})
}

func run(opts pipeline.Options) error {
	p, closeArchive, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closeArchive()

	ctx, cancel := commandContext()
	defer cancel()

	res, err := p.Run(ctx, opts)
	if res != nil {
		printResult(res)
	}
	return err
}
