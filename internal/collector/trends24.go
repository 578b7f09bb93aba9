package collector

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	defaultTrends24URL   = "https://trends24.in/brazil/"
	trends24MaxBodyBytes = 2 << 20 // 2MB，防止超大 HTML
	trends24Timeout      = 15 * time.Second
)

var (
	trendLinkRe  = regexp.MustCompile(`<a\s+[^>]*href="(https://(?:twitter|x)\.com/search\?q=[^"]+)"[^>]*>([^<]+)</a>`)
	trendQueryRe = regexp.MustCompile(`href="https://(?:twitter|x)\.com/search\?q=([^"&]+)[^"]*"`)
)

// Trends24 抓取 trends24.in 的 X 热搜，作为 Google Trends 不可用时的备用话题来源
type Trends24 struct {
	URL string
}

func NewTrends24(url string) *Trends24 {
	if url == "" {
		url = defaultTrends24URL
	}
	return &Trends24{URL: url}
}

func (t *Trends24) Name() string {
	return "trends24"
}

func (t *Trends24) ListTrends(ctx context.Context, max int) ([]string, error) {
	log.Printf("fetch trends24 %s ...", t.URL)

	list, err := t.fetchWithColly(ctx)
	if err != nil || len(list) == 0 {
		// 备用：直接 GET 后用正则提取
		body, herr := t.httpGet(ctx)
		if herr != nil {
			if err == nil {
				err = herr
			}
			return nil, fmt.Errorf("trends24: %w", err)
		}
		list = parseTrendLinks(body)
	}

	if len(list) == 0 {
		log.Printf("trends24: got 0 trends")
	}
	return limit(list, max), nil
}

func (t *Trends24) fetchWithColly(ctx context.Context) ([]string, error) {
	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
	)
	c.SetRequestTimeout(trends24Timeout)
	abortOnDone(ctx, c)

	var list []string
	seen := make(map[string]bool)

	c.OnHTML("a.trend-link, a[href*='twitter.com/search'], a[href*='x.com/search']", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.Text)
		if title == "" || seen[title] {
			return
		}
		seen[title] = true
		list = append(list, title)
	})

	if err := c.Visit(t.URL); err != nil {
		log.Printf("trends24 (colly): %v", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (t *Trends24) httpGet(ctx context.Context) (string, error) {
	client := &http.Client{Timeout: trends24Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, trends24MaxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// parseTrendLinks 从 HTML 中解析搜索链接的文本；文本缺失时用 q= 参数解码兜底
func parseTrendLinks(body string) []string {
	seen := make(map[string]bool)
	var list []string

	for _, m := range trendLinkRe.FindAllStringSubmatch(body, -1) {
		title := strings.TrimSpace(m[2])
		if title == "" || len(title) > 200 || seen[title] {
			continue
		}
		seen[title] = true
		list = append(list, title)
	}

	if len(list) == 0 {
		for _, m := range trendQueryRe.FindAllStringSubmatch(body, -1) {
			title := m[1]
			if dec, err := url.QueryUnescape(title); err == nil && dec != "" {
				title = dec
			}
			title = strings.TrimSpace(title)
			if title == "" || seen[title] {
				continue
			}
			seen[title] = true
			list = append(list, title)
		}
	}
	return list
}

// FallbackTrends 依次尝试各来源，第一个返回非空列表的来源生效
type FallbackTrends struct {
	Sources []TrendSource
}

func (f *FallbackTrends) Name() string {
	names := make([]string, 0, len(f.Sources))
	for _, s := range f.Sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

func (f *FallbackTrends) ListTrends(ctx context.Context, max int) ([]string, error) {
	var lastErr error
	for _, s := range f.Sources {
		trends, err := s.ListTrends(ctx, max)
		if err != nil {
			log.Printf("trends: %s failed: %v", s.Name(), err)
			lastErr = err
			continue
		}
		if len(trends) > 0 {
			return limit(trends, max), nil
		}
		log.Printf("trends: %s returned nothing", s.Name())
	}
	return nil, lastErr
}
