package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LJTian/TrendPress/internal/processor"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultFallbackURL = "https://source.unsplash.com/1600x900/"
	maxImageBytes      = 20 << 20 // 20MB
	contextRunes       = 200
)

// Saver 负责把图片写入输出目录
type Saver interface {
	SaveImage(title, ext string, data []byte, at time.Time) (string, error)
}

// Generator 先用 DALL-E 生成配图，失败时改用替代图片源
type Generator struct {
	client      openai.Client
	saver       Saver
	httpClient  *http.Client
	fallbackURL string
}

func New(apiKey, baseURL, fallbackURL string, saver Saver) *Generator {
	if fallbackURL == "" {
		fallbackURL = defaultFallbackURL
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Generator{
		client:      openai.NewClient(opts...),
		saver:       saver,
		httpClient:  http.DefaultClient,
		fallbackURL: fallbackURL,
	}
}

// ObtainImage 返回本地图片路径；两种方式都失败时返回空路径和错误，调用方按"无配图"处理
func (g *Generator) ObtainImage(ctx context.Context, title, markup string) (string, error) {
	path, genErr := g.generate(ctx, title, buildPrompt(title, markup))
	if genErr == nil {
		return path, nil
	}
	log.Printf("imagegen: dall-e failed for %q: %v", title, genErr)

	path, fbErr := g.substitute(ctx, title)
	if fbErr == nil {
		return path, nil
	}
	log.Printf("imagegen: substitute image failed for %q: %v", title, fbErr)
	return "", errors.Join(genErr, fbErr)
}

func (g *Generator) generate(ctx context.Context, title, prompt string) (string, error) {
	log.Printf("imagegen: generating image for %q", title)
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModelDallE3,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		Quality:        openai.ImageGenerateParamsQualityStandard,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("generate: no image url in response")
	}

	data, err := g.download(ctx, resp.Data[0].URL)
	if err != nil {
		return "", err
	}
	return g.saver.SaveImage(title, ".png", data, time.Now())
}

func (g *Generator) substitute(ctx context.Context, title string) (string, error) {
	u := g.fallbackURL + "?" + url.QueryEscape(title)
	log.Printf("imagegen: fetching substitute image %s", u)
	data, err := g.download(ctx, u)
	if err != nil {
		return "", err
	}
	return g.saver.SaveImage(title, ".jpg", data, time.Now())
}

func (g *Generator) download(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download: empty body")
	}
	return data, nil
}

func buildPrompt(title, markup string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a photorealistic, professional image to illustrate a news story titled: '%s'. ", title)
	b.WriteString("The image must suit a news website, with a journalistic style, ")
	b.WriteString("high visual quality, and no text or watermarks. ")
	if text := processor.PlainText(markup); text != "" {
		fmt.Fprintf(&b, "Additional context from the article: %s", processor.TruncateRunes(text, contextRunes))
	}
	return b.String()
}
