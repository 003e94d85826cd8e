// Package newsfeed ingests news events that seed debate topics.
package newsfeed

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/paddockai/apex/config"
	"github.com/paddockai/apex/internal/store"
)

// Feed manages the news event queue.
type Feed struct {
	store   *store.Store
	fetcher Fetcher
	logger  *log.Logger
}

// NewFeed builds a feed over the store.
func NewFeed(st *store.Store, cfg config.NewsConfig, logger *log.Logger) *Feed {
	if logger == nil {
		logger = log.Default()
	}
	return &Feed{
		store:   st,
		fetcher: Fetcher{Timeout: cfg.FetchTimeout, MaxChars: cfg.MaxChars},
		logger:  logger,
	}
}

// Ingest stores a headline as an unprocessed news event. When url is set the
// full article is fetched for body context; fetch failures keep the headline.
func (f *Feed) Ingest(ctx context.Context, headline, source, url, category string) (store.NewsEvent, error) {
	if strings.TrimSpace(headline) == "" {
		return store.NewsEvent{}, fmt.Errorf("headline is required")
	}
	body := ""
	if url != "" {
		article, err := f.fetcher.Fetch(ctx, url)
		if err != nil {
			f.logger.Printf("[NEWS] fetch of %s failed, keeping headline only: %v", url, err)
		} else {
			body = article.Text
		}
	}
	return f.store.CreateNewsEvent(ctx, store.NewsEvent{
		Headline: strings.TrimSpace(headline),
		Body:     body,
		Source:   source,
		URL:      url,
		Category: category,
	})
}

// BuildContext renders the freshest unprocessed events as prompt context for
// agents. Returns "" when the queue is empty.
func (f *Feed) BuildContext(ctx context.Context, limit int) string {
	events, err := f.store.ListUnprocessedNews(ctx, limit)
	if err != nil {
		f.logger.Printf("[NEWS] context build failed: %v", err)
		return ""
	}
	if len(events) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("RECENT NEWS:\n")
	for _, ev := range events {
		fmt.Fprintf(&sb, "- %s", ev.Headline)
		if ev.Source != "" {
			fmt.Fprintf(&sb, " (%s)", ev.Source)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Recent lists the latest events for the observer API.
func (f *Feed) Recent(ctx context.Context, limit int) ([]store.NewsEvent, error) {
	return f.store.ListRecentNews(ctx, limit)
}
