package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/LJTian/TrendPress/internal/collector"
	"github.com/PuerkitoBio/goquery"
)

// 原文页面中按优先级尝试的标题选择器
var titleSelectors = []string{
	"h1",
	"h1.article-title",
	"h1.entry-title",
	"h1.post-title",
	"article h1",
	".article-header h1",
	".post-header h1",
}

const safeNameMaxLen = 50

// Dedupe 以 URL 作为批次内的唯一键，保留首次出现的候选文章，顺序不变
func Dedupe(items []collector.Article) []collector.Article {
	out := make([]collector.Article, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		it.Title = strings.TrimSpace(it.Title)
		it.URL = strings.TrimSpace(it.URL)
		// 没有 URL 的条目交给编排器记录并跳过，这里不去重
		if it.URL == "" {
			out = append(out, it)
			continue
		}
		id := HashURL(it.URL)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}

	return out
}

// HashURL 返回 URL 的 sha1 十六进制摘要
func HashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// ExtractTitle 从原文 HTML 中提取标题：依次尝试 titleSelectors，最后退回 <title>
func ExtractTitle(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	for _, sel := range titleSelectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// FirstHeading 返回改写后 HTML 中第一个 h1 的文本，没有则返回空串
func FirstHeading(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// FinalTitle 优先使用改写结果中的 h1，否则拼出 "Trend: {trend} - {title}"
func FinalTitle(rewritten, trend, workingTitle string) string {
	if h := FirstHeading(rewritten); h != "" {
		return h
	}
	return fmt.Sprintf("Trend: %s - %s", trend, workingTitle)
}

// PlainText 返回 HTML 片段的纯文本，用于生成图片提示词等
func PlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// SafeName 将标题转为文件名片段：非字母数字替换为 '_'，最多 50 个字符
func SafeName(s string, limit int) string {
	if limit <= 0 {
		limit = safeNameMaxLen
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n >= limit {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		n++
	}
	return b.String()
}

// TruncateRunes 按 rune 截断，不追加省略号
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
