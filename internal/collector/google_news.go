package collector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	defaultGoogleNewsURL = "https://news.google.com"
	googleNewsTimeout    = 15 * time.Second
	unknownSource        = "Unknown source"
)

// GoogleNews 抓取 Google News 搜索结果页，作为 NewsAPI 的备用来源
type GoogleNews struct {
	BaseURL string
	// hl / gl / ceid 决定搜索的语言与地区
	HL   string
	GL   string
	CEID string
}

func NewGoogleNews(baseURL string) *GoogleNews {
	if baseURL == "" {
		baseURL = defaultGoogleNewsURL
	}
	return &GoogleNews{BaseURL: strings.TrimRight(baseURL, "/"), HL: "pt-BR", GL: "BR", CEID: "BR:pt-419"}
}

func (g *GoogleNews) Name() string {
	return "google_news"
}

func (g *GoogleNews) searchURL(topic string) string {
	params := url.Values{}
	params.Set("q", topic)
	params.Set("hl", g.HL)
	params.Set("gl", g.GL)
	params.Set("ceid", g.CEID)
	return g.BaseURL + "/search?" + params.Encode()
}

func (g *GoogleNews) FindArticles(ctx context.Context, topic string, max int) ([]Article, error) {
	log.Printf("google news: search %q", topic)

	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
	)
	c.SetRequestTimeout(googleNewsTimeout)
	abortOnDone(ctx, c)

	results := make([]Article, 0, max)

	// 页面结构可能调整，此处基于当前 DOM 做"尽力而为"的解析
	c.OnHTML("article", func(e *colly.HTMLElement) {
		if max > 0 && len(results) >= max {
			return
		}
		link := e.DOM.Find("h3 a, h4 a").First()
		if link.Length() == 0 {
			return
		}
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "./") {
			href = g.BaseURL + href[1:]
		}

		art := Article{Title: title, URL: href, Source: unknownSource}
		if tm := e.DOM.Find("time").First(); tm.Length() > 0 {
			if src := strings.TrimSpace(strings.Split(tm.Parent().Text(), "·")[0]); src != "" {
				art.Source = src
			}
			if dt, ok := tm.Attr("datetime"); ok {
				if t, err := time.Parse(time.RFC3339, dt); err == nil {
					art.PublishedAt = &t
				}
			}
		}
		results = append(results, art)
	})

	err := c.Visit(g.searchURL(topic))
	if cerr := ctx.Err(); cerr != nil {
		return nil, fmt.Errorf("google news: search %q: %w", topic, cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("google news: search %q: %w", topic, err)
	}

	log.Printf("google news: %d articles for %q", len(results), topic)
	return results, nil
}
