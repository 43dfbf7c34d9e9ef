package main

import (
	"fmt"

	"go.uber.org/zap"

	"katsuo-market/internal/archive"
	"katsuo-market/internal/config"
	"katsuo-market/internal/data"
	"katsuo-market/internal/model"
	"katsuo-market/internal/normalize"
	"katsuo-market/internal/pipeline"
)

// filterOverride holds --low/--high; zero means "use the config".
var filterOverride config.FilterConfig

func normalizer() *normalize.Normalizer {
	return normalize.NewNormalizer().WithAliases(cfg.Sizes.Aliases)
}

// buildPipeline wires the pipeline from config. The returned close func
// releases the archive, if one is open.
func buildPipeline() (*pipeline.Pipeline, func(), error) {
	filter := config.MergeFilter(cfg.Filter, filterOverride)
	if err := filter.Validate(); err != nil {
		return nil, nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithNormalizer(normalizer()),
		pipeline.WithBounds(pipeline.Bounds{Low: filter.LowBound, High: filter.HighBound}),
	}

	closeFn := func() {}
	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open archive: %w", err)
		}
		opts = append(opts, pipeline.WithArchiver(store))
		closeFn = func() {
			if err := store.Close(); err != nil {
				logger.Warn("archive close failed", zap.Error(err))
			}
		}
	}
	return pipeline.New(opts...), closeFn, nil
}

func csvSource() *data.CSVSource {
	c := cfg.Sources.CSV
	return data.NewCSVSource(c.Path, c.Encoding, c.FallbackEncoding, logger)
}

func scrapeSource() *data.ScrapeSource {
	s := cfg.Sources.Scrape
	opts := []data.ScrapeOption{
		data.WithTimeout(s.Timeout),
		data.WithLogger(logger),
	}
	if len(s.Include) > 0 || len(s.Exclude) > 0 {
		include, exclude := s.Include, s.Exclude
		if len(include) == 0 {
			include = data.DefaultIncludeKeywords
		}
		if len(exclude) == 0 {
			exclude = data.DefaultExcludeKeywords
		}
		opts = append(opts, data.WithKeywords(include, exclude))
	}
	return data.NewScrapeSource(s.URL, model.Port(s.Port), opts...)
}

func printResult(res *pipeline.Result) {
	fmt.Printf("run %s: fetched=%d skipped=%d accepted=%d discarded=%d aggregated=%d\n",
		res.RunID, res.Fetched(), res.Skipped(), res.Accepted, res.Discarded(), res.Aggregated)
	for _, s := range res.Sources {
		status := "ok"
		if s.Err != nil {
			status = s.Err.Error()
		}
		fmt.Printf("  %-10s %-6d skipped=%-4d %s\n", s.Name, s.Fetched, s.Skipped, status)
	}
	for reason, n := range res.Discards {
		fmt.Printf("  discarded %-18s %d\n", reason, n)
	}
	fmt.Printf("merge: inserted=%d replaced=%d total=%d\n", res.Merge.Inserted, res.Merge.Replaced, res.Merge.Total)
	if res.DryRun {
		fmt.Println("dry run: nothing written")
	} else {
		fmt.Printf("wrote %d observations\n", res.Written)
	}
}
