package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"katsuo-market/internal/news"
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Fetch fishery news and add AI summaries to the news store",
	Long: `Reads the configured RSS feeds, asks the text model to pick and summarize
the items relevant to the skipjack market, and merges them into the news
store (newest first, capped at news.max_items). Requires GEMINI_API_KEY.`,
	RunE: runNews,
}

func runNews(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	gen, err := news.NewGenAIGenerator(ctx, cfg.News.APIKey, cfg.News.Model)
	if err != nil {
		return err
	}

	u := &news.Updater{
		Feeds:      cfg.News.Feeds,
		Keywords:   cfg.News.Keywords,
		MaxItems:   cfg.News.MaxItems,
		Path:       cfg.Output.NewsFile,
		Client:     &http.Client{Timeout: cfg.News.Timeout},
		Summarizer: news.NewSummarizer(gen),
		Logger:     logger,
	}
	added, err := u.Update(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("added %d news items to %s\n", added, cfg.Output.NewsFile)
	return nil
}
