package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort string

	OutputDir string

	MaxTrends       int
	MaxNewsPerTrend int

	TrendsRSSURL      string
	TrendsFallbackURL string

	NewsAPIKey    string
	NewsLanguage  string
	GoogleNewsURL string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	ImageFallbackURL string

	WordPressURL      string
	WordPressUsername string
	WordPressPassword string

	ArticleDelay time.Duration
	TrendDelay   time.Duration
	FetchTimeout time.Duration

	// 为 true 时每篇已发布文章都会清理本地文件；默认只清理每个话题的最后一篇
	CleanupAllPublished bool

	// 为空表示不启用跨批次去重
	RedisAddr    string
	PublishedTTL time.Duration

	// 为空表示不启用定时触发
	CronSpec string

	BasicAuthUser string
	BasicAuthPass string
}

var defaults = map[string]any{
	"app_port":              "8000",
	"output_dir":            "output",
	"max_trends":            5,
	"max_news_per_trend":    3,
	"trends_rss_url":        "https://trends.google.com/trending/rss?geo=BR",
	"trends_fallback_url":   "https://trends24.in/brazil/",
	"news_language":         "pt",
	"google_news_url":       "https://news.google.com",
	"openai_model":          "gpt-3.5-turbo",
	"image_fallback_url":    "https://source.unsplash.com/1600x900/",
	"article_delay":         2 * time.Second,
	"trend_delay":           5 * time.Second,
	"fetch_timeout":         10 * time.Second,
	"cleanup_all_published": false,
	"published_ttl":         72 * time.Hour,
}

// Load 读取 .env（可选）与环境变量，环境变量优先
func Load() *Config {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			log.Printf("warn: read %s failed: %v", envFile, err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:             v.GetString("app_port"),
		OutputDir:           v.GetString("output_dir"),
		MaxTrends:           v.GetInt("max_trends"),
		MaxNewsPerTrend:     v.GetInt("max_news_per_trend"),
		TrendsRSSURL:        v.GetString("trends_rss_url"),
		TrendsFallbackURL:   v.GetString("trends_fallback_url"),
		NewsAPIKey:          v.GetString("newsapi_api_key"),
		NewsLanguage:        v.GetString("news_language"),
		GoogleNewsURL:       v.GetString("google_news_url"),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIBaseURL:       v.GetString("openai_base_url"),
		OpenAIModel:         v.GetString("openai_model"),
		ImageFallbackURL:    v.GetString("image_fallback_url"),
		WordPressURL:        v.GetString("wordpress_url"),
		WordPressUsername:   v.GetString("wordpress_username"),
		WordPressPassword:   v.GetString("wordpress_password"),
		ArticleDelay:        v.GetDuration("article_delay"),
		TrendDelay:          v.GetDuration("trend_delay"),
		FetchTimeout:        v.GetDuration("fetch_timeout"),
		CleanupAllPublished: v.GetBool("cleanup_all_published"),
		RedisAddr:           v.GetString("redis_addr"),
		PublishedTTL:        v.GetDuration("published_ttl"),
		CronSpec:            v.GetString("cron_spec"),
		BasicAuthUser:       v.GetString("app_basic_user"),
		BasicAuthPass:       v.GetString("app_basic_pass"),
	}

	if cfg.MaxTrends <= 0 {
		cfg.MaxTrends = 5
	}
	if cfg.MaxNewsPerTrend <= 0 {
		cfg.MaxNewsPerTrend = 3
	}

	log.Printf("config loaded: port=%s output=%s max_trends=%d max_news=%d wordpress=%t cron=%q",
		cfg.AppPort, cfg.OutputDir, cfg.MaxTrends, cfg.MaxNewsPerTrend, cfg.HasWordPressCredentials(), cfg.CronSpec)
	return cfg
}

// HasWordPressCredentials 三项齐全才会尝试发布
func (c *Config) HasWordPressCredentials() bool {
	return strings.TrimSpace(c.WordPressURL) != "" &&
		strings.TrimSpace(c.WordPressUsername) != "" &&
		strings.TrimSpace(c.WordPressPassword) != ""
}
