package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"katsuo-market/internal/analysis"
	"katsuo-market/internal/data"
	"katsuo-market/internal/model"
)

var (
	rankOnly  bool
	exportOut string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the latest prices per port and size",
	RunE:  runSummary,
}

var exportCmd = &cobra.Command{
	Use:   "export-csv",
	Short: "Write the dataset as CSV",
	RunE:  runExport,
}

func init() {
	summaryCmd.Flags().BoolVar(&rankOnly, "rank", false, "Only list sizes ranked by absolute day-over-day change")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "results/katsuo_market_data.csv", "Output CSV path")
}

func runSummary(cmd *cobra.Command, args []string) error {
	ds, err := data.LoadDataset(cfg.Output.DataFile)
	if err != nil {
		return err
	}
	summaries := analysis.Summarize(ds)

	if rankOnly {
		fmt.Printf("%-4s %-6s %-10s %-10s %-10s\n", "rank", "port", "size", "price", "change")
		for i, s := range analysis.RankByChange(summaries) {
			fmt.Printf("%-4d %-6s %-10s %-10.1f %+-10.1f\n", i+1, s.Port, s.Size, s.Latest.Price, s.Change)
		}
		return nil
	}

	for _, ps := range summaries {
		fmt.Printf("%s  latest %s\n", ps.Port, ps.LatestDate.Format(model.DateLayout))
		for _, s := range ps.Sizes {
			price, change := "-", ""
			if s.Latest != nil {
				price = fmt.Sprintf("%.1f", model.RoundPrice(s.Latest.Price))
			}
			if s.HasChange {
				change = fmt.Sprintf("%+.1f", s.Change)
			} else if s.Previous != nil && s.Latest == nil {
				change = fmt.Sprintf("(last %s %.1f)", s.Previous.Date.Format(model.DateLayout), model.RoundPrice(s.Previous.Price))
			}
			fmt.Printf("  %-10s %8s %s\n", s.Size, price, change)
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ds, err := data.LoadDataset(cfg.Output.DataFile)
	if err != nil {
		return err
	}
	if err := data.WriteCSV(exportOut, ds); err != nil {
		return err
	}
	fmt.Printf("Wrote %d rows to %s\n", ds.Len(), exportOut)
	return nil
}
