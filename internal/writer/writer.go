package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/LJTian/TrendPress/internal/processor"
	"github.com/PuerkitoBio/goquery"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/yuin/goldmark"
)

const (
	defaultModel    = "gpt-3.5-turbo"
	maxSourceRunes  = 4000
	maxOutputTokens = 2000
	temperature     = 0.7
)

// ErrEmptyRewrite 表示模型返回了空内容
var ErrEmptyRewrite = errors.New("writer: empty rewrite")

// 抓取页面中与正文无关的元素
const noiseSelector = "aside, nav, footer, header, .ads, .advertisement, .sidebar, script, style, iframe"

// 正文容器，按出现顺序取第一个
const mainSelector = "article, main, .content, .article-content, .post-content"

const systemPrompt = "You are an assistant specialised in rewriting news content as HTML, keeping the essence of the information while changing how it is presented."

var languageNames = map[string]string{
	"pt": "Brazilian Portuguese",
	"en": "English",
	"es": "Spanish",
}

// Rewriter 调用 Chat Completions 改写文章
type Rewriter struct {
	client   openai.Client
	model    string
	language string
	conv     *md.Converter
}

func New(apiKey, baseURL, model, language string) *Rewriter {
	if model == "" {
		model = defaultModel
	}
	// 每次外部调用只尝试一次
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Rewriter{
		client:   openai.NewClient(opts...),
		model:    model,
		language: language,
		conv:     md.NewConverter("", true, nil),
	}
}

// Rewrite 返回改写后的 HTML 片段，总是以 <article> 开头
func (w *Rewriter) Rewrite(ctx context.Context, markup, title, sourceName string) (string, error) {
	text := w.extractText(markup)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("writer: no text extracted for %q", title)
	}

	log.Printf("writer: rewriting %q", title)
	resp, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: w.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(text, title, sourceName, w.languageName())),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxOutputTokens),
	})
	if err != nil {
		return "", fmt.Errorf("writer: rewrite %q: %w", title, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyRewrite
	}

	out, err := normalize(resp.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}
	log.Printf("writer: rewrote %q (%d bytes)", title, len(out))
	return out, nil
}

func (w *Rewriter) languageName() string {
	if name, ok := languageNames[w.language]; ok {
		return name
	}
	if w.language == "" {
		return languageNames["pt"]
	}
	return w.language
}

// extractText 去掉噪声元素后取正文，转成 markdown 作为提示词输入
func (w *Rewriter) extractText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	doc.Find(noiseSelector).Remove()

	content := doc.Find(mainSelector).First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	text := ""
	if inner, err := content.Html(); err == nil {
		if converted, err := w.conv.ConvertString(inner); err == nil {
			text = converted
		}
	}
	if strings.TrimSpace(text) == "" {
		text = content.Text()
	}
	return processor.TruncateRunes(strings.TrimSpace(text), maxSourceRunes)
}

func buildPrompt(text, title, sourceName, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the following news content as HTML, keeping the essential information but changing the wording and structure, and removing any specific mention of the original source (%s).\n", sourceName)
	b.WriteString("The main goal is to structure this HTML so the post reaches its full SEO potential.\n\n")
	fmt.Fprintf(&b, "Original title: %s\n\nOriginal content:\n%s\n\n", title, text)
	b.WriteString("Specific instructions:\n")
	b.WriteString("1. Keep the essence of the story and the main facts\n")
	b.WriteString("2. Change the paragraph structure and the presentation\n")
	b.WriteString("3. Remove any mention of the original source, reporters or portal-specific elements\n")
	b.WriteString("4. Slightly modify the title while keeping the main subject, and put it in a single <h1>\n")
	b.WriteString("5. Use a single <h2> for the subtitle and do not repeat the title anywhere else\n")
	b.WriteString("6. Use appropriate HTML tags (h1, h2, p, etc.) and avoid consecutive empty line breaks\n")
	b.WriteString("7. Include at least 3 paragraphs in the body\n")
	fmt.Fprintf(&b, "8. Write in %s\n", language)
	b.WriteString("9. Return ONLY the HTML code, without additional explanations\n")
	return b.String()
}

// normalize 去掉代码块标记；非 HTML 输出按 markdown 渲染；最后确保包在 <article> 内
func normalize(out string) (string, error) {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "```html")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyRewrite
	}

	if !strings.HasPrefix(out, "<") {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(out), &buf); err != nil {
			return "", fmt.Errorf("writer: render markdown: %w", err)
		}
		out = strings.TrimSpace(buf.String())
	}

	if !strings.HasPrefix(out, "<article") {
		out = "<article>\n" + out + "\n</article>"
	}
	return out, nil
}
