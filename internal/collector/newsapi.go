package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	newsAPIBaseURL          = "https://newsapi.org/v2"
	newsAPIMaxResponseBytes = 1 << 20 // 1MB
)

// NewsAPI 通过 newsapi.org 的 /everything 接口按话题搜索新闻
type NewsAPI struct {
	APIKey   string
	Language string
	BaseURL  string
	Client   *http.Client

	// now 便于测试固定 from 参数
	now func() time.Time
}

func NewNewsAPI(apiKey, language string) *NewsAPI {
	return &NewsAPI{
		APIKey:   apiKey,
		Language: language,
		BaseURL:  newsAPIBaseURL,
		Client:   http.DefaultClient,
		now:      time.Now,
	}
}

func (n *NewsAPI) Name() string {
	return "newsapi"
}

type newsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) FindArticles(ctx context.Context, topic string, max int) ([]Article, error) {
	if n.APIKey == "" {
		return nil, fmt.Errorf("newsapi: api key not configured")
	}
	now := time.Now
	if n.now != nil {
		now = n.now
	}
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}

	params := url.Values{}
	params.Set("q", topic)
	params.Set("language", n.Language)
	params.Set("sortBy", "relevancy")
	params.Set("pageSize", strconv.Itoa(max))
	params.Set("page", "1")
	params.Set("from", now().Format("2006-01-02"))
	params.Set("apiKey", n.APIKey)

	endpoint := strings.TrimRight(n.BaseURL, "/") + "/everything?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: build request: %w", err)
	}

	log.Printf("newsapi: search %q", topic)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: search %q: %w", topic, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, newsAPIMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("newsapi: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out newsAPIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("newsapi: unmarshal: %w", err)
	}
	if out.Status != "ok" {
		return nil, fmt.Errorf("newsapi: status %q: %s", out.Status, out.Message)
	}

	log.Printf("newsapi: %d results for %q", out.TotalResults, topic)
	if out.TotalResults == 0 {
		return nil, nil
	}

	articles := make([]Article, 0, len(out.Articles))
	for _, a := range out.Articles {
		art := Article{
			Title:  strings.TrimSpace(a.Title),
			URL:    strings.TrimSpace(a.URL),
			Source: strings.TrimSpace(a.Source.Name),
		}
		if art.Source == "" {
			art.Source = unknownSource
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			art.PublishedAt = &t
		}
		articles = append(articles, art)
	}
	return limit(articles, max), nil
}

// NewsFinder 配置了 NewsAPI 且有结果时使用 NewsAPI，否则退回 Google News 抓取
type NewsFinder struct {
	API     NewsSource
	Scraper NewsSource
}

func (f *NewsFinder) Name() string {
	return "news_finder"
}

func (f *NewsFinder) FindArticles(ctx context.Context, topic string, max int) ([]Article, error) {
	if f.API != nil {
		articles, err := f.API.FindArticles(ctx, topic, max)
		if err != nil {
			log.Printf("news: %s failed for %q: %v", f.API.Name(), topic, err)
		} else if len(articles) > 0 {
			return articles, nil
		}
	}
	if f.Scraper == nil {
		return nil, nil
	}
	return f.Scraper.FindArticles(ctx, topic, max)
}
