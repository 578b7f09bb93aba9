package pipeline

import (
	"log"

	"github.com/LJTian/TrendPress/internal/collector"
	"github.com/LJTian/TrendPress/internal/config"
	"github.com/LJTian/TrendPress/internal/imagegen"
	"github.com/LJTian/TrendPress/internal/publisher"
	"github.com/LJTian/TrendPress/internal/storage"
	"github.com/LJTian/TrendPress/internal/writer"
)

// FromConfig 按配置组装各个外部协作方
func FromConfig(cfg *config.Config, store *storage.Store) *Orchestrator {
	trends := &collector.FallbackTrends{
		Sources: []collector.TrendSource{
			collector.NewGoogleTrendsRSS(cfg.TrendsRSSURL),
			collector.NewTrends24(cfg.TrendsFallbackURL),
		},
	}

	news := &collector.NewsFinder{Scraper: collector.NewGoogleNews(cfg.GoogleNewsURL)}
	if cfg.NewsAPIKey != "" {
		news.API = collector.NewNewsAPI(cfg.NewsAPIKey, cfg.NewsLanguage)
	} else {
		log.Printf("pipeline: NEWSAPI_API_KEY not set, using google news only")
	}

	deps := Deps{
		Trends:  trends,
		News:    news,
		Content: collector.NewArticleFetcher(cfg.FetchTimeout),
		Writer:  writer.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.NewsLanguage),
		Images:  imagegen.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ImageFallbackURL, store),
		Store:   store,
	}
	// 保持接口值为 nil，编排器据此判断是否配置了发布凭据
	if cfg.HasWordPressCredentials() {
		deps.Publisher = publisher.NewWordPress(cfg.WordPressURL, cfg.WordPressUsername, cfg.WordPressPassword)
	} else {
		log.Printf("pipeline: wordpress credentials not set, articles will only be saved locally")
	}

	return New(deps, Options{
		MaxTrends:           cfg.MaxTrends,
		MaxNewsPerTrend:     cfg.MaxNewsPerTrend,
		ArticleDelay:        cfg.ArticleDelay,
		TrendDelay:          cfg.TrendDelay,
		CleanupAllPublished: cfg.CleanupAllPublished,
		PublishedTTL:        cfg.PublishedTTL,
	})
}
