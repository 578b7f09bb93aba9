package collector

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	defaultFetchTimeout = 10 * time.Second
	contentMaxBodyBytes = 4 << 20 // 4MB
)

// ArticleFetcher 单次请求文章页面，超时固定
type ArticleFetcher struct {
	Timeout time.Duration
}

func NewArticleFetcher(timeout time.Duration) *ArticleFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &ArticleFetcher{Timeout: timeout}
}

func (f *ArticleFetcher) Fetch(ctx context.Context, url string) (string, error) {
	log.Printf("fetch article %s", url)

	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
		colly.MaxBodySize(contentMaxBodyBytes),
	)
	c.SetRequestTimeout(f.Timeout)
	abortOnDone(ctx, c)

	var body string
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})

	// colly 对非 2xx 响应返回错误，不会触发 OnResponse
	err := c.Visit(url)
	if cerr := ctx.Err(); cerr != nil {
		return "", fmt.Errorf("fetch %s: %w", url, cerr)
	}
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("fetch %s: %w", url, ErrEmptyContent)
	}
	return body, nil
}
