package collector

import (
	"context"
	"errors"
	"time"

	"github.com/gocolly/colly/v2"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrEmptyContent 表示页面请求成功但没有内容
var ErrEmptyContent = errors.New("collector: empty content")

// Article 是新闻搜索返回的候选文章，尚未抓取正文
type Article struct {
	Title       string
	URL         string
	Source      string
	PublishedAt *time.Time
}

// TrendSource 抽象热门话题来源，返回顺序即处理顺序
type TrendSource interface {
	Name() string
	ListTrends(ctx context.Context, max int) ([]string, error)
}

// NewsSource 按话题搜索候选文章
type NewsSource interface {
	Name() string
	FindArticles(ctx context.Context, topic string, max int) ([]Article, error)
}

// ContentFetcher 抓取文章原始 HTML
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

func limit[T any](items []T, max int) []T {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

// abortOnDone 在 ctx 结束后不再发出请求；已发出的请求由 SetRequestTimeout 限制
func abortOnDone(ctx context.Context, c *colly.Collector) {
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
}
