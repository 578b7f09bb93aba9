package collector

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/mmcdole/gofeed"
)

const defaultTrendsRSSURL = "https://trends.google.com/trending/rss?geo=BR"

// GoogleTrendsRSS 通过 Google Trends 的 RSS 获取热门话题
type GoogleTrendsRSS struct {
	URL string
}

func NewGoogleTrendsRSS(url string) *GoogleTrendsRSS {
	if url == "" {
		url = defaultTrendsRSSURL
	}
	return &GoogleTrendsRSS{URL: url}
}

func (g *GoogleTrendsRSS) Name() string {
	return "google_trends_rss"
}

func (g *GoogleTrendsRSS) ListTrends(ctx context.Context, max int) ([]string, error) {
	log.Printf("fetch Google Trends RSS %s ...", g.URL)

	fp := gofeed.NewParser()
	fp.UserAgent = browserUserAgent
	feed, err := fp.ParseURLWithContext(g.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("google trends: parse feed: %w", err)
	}

	trends := make([]string, 0, max)
	for _, item := range feed.Items {
		title := strings.TrimSpace(html.UnescapeString(item.Title))
		if title == "" {
			continue
		}
		trends = append(trends, title)
		if max > 0 && len(trends) >= max {
			break
		}
	}

	if len(trends) == 0 {
		log.Printf("google trends: feed has no entries")
	}
	return trends, nil
}
