package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/TrendPress/internal/collector"
	"github.com/LJTian/TrendPress/internal/processor"
	"github.com/LJTian/TrendPress/internal/storage"
	"github.com/google/uuid"
)

// ErrNoTrends 表示话题来源没有返回任何话题，整次运行失败
var ErrNoTrends = errors.New("pipeline: no trends available")

var defaultCategories = []string{"Trends", "News"}

// Rewriter 改写抓取到的文章
type Rewriter interface {
	Rewrite(ctx context.Context, markup, title, sourceName string) (string, error)
}

// ImageProvider 返回配图的本地路径
type ImageProvider interface {
	ObtainImage(ctx context.Context, title, markup string) (string, error)
}

// Publisher 发布文章并返回文章 ID
type Publisher interface {
	Publish(ctx context.Context, title, markup, imagePath string, categories, tags []string) (string, error)
}

type Deps struct {
	Trends  collector.TrendSource
	News    collector.NewsSource
	Content collector.ContentFetcher
	Writer  Rewriter
	// 为 nil 时不生成配图
	Images ImageProvider
	// 为 nil 表示未配置发布凭据
	Publisher Publisher
	Store     *storage.Store
}

type Options struct {
	MaxTrends       int
	MaxNewsPerTrend int

	// 两篇文章之间、两个话题之间的固定停顿，用于控制外部 API 调用频率
	ArticleDelay time.Duration
	TrendDelay   time.Duration

	CleanupAllPublished bool
	PublishedTTL        time.Duration
}

// Orchestrator 串行执行 话题 -> 新闻 -> 抓取 -> 改写 -> 配图 -> 发布 -> 清理
type Orchestrator struct {
	Deps
	opts Options

	sleep func(time.Duration)
	now   func() time.Time
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.MaxTrends <= 0 {
		opts.MaxTrends = 5
	}
	if opts.MaxNewsPerTrend <= 0 {
		opts.MaxNewsPerTrend = 3
	}
	return &Orchestrator{
		Deps:  deps,
		opts:  opts,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Run 执行一次完整流水线，成功写出 results.json 时返回 true
func (o *Orchestrator) Run(ctx context.Context) bool {
	summary, err := o.Execute(ctx)
	if err != nil {
		log.Printf("pipeline: run failed: %v", err)
		return false
	}
	log.Printf("pipeline: run %s done, processed=%d", summary.RunID, summary.TotalProcessed)
	return true
}

// Execute 与 Run 相同，但返回运行汇总与失败原因
func (o *Orchestrator) Execute(ctx context.Context) (summary *storage.RunSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			summary = nil
			err = fmt.Errorf("pipeline: panic: %v", r)
		}
	}()

	runID := uuid.NewString()
	log.Printf("pipeline: run %s started", runID)

	trends, terr := o.Trends.ListTrends(ctx, o.opts.MaxTrends)
	if terr != nil {
		log.Printf("pipeline: list trends from %s: %v", o.Trends.Name(), terr)
	}
	if len(trends) > o.opts.MaxTrends {
		trends = trends[:o.opts.MaxTrends]
	}
	if len(trends) == 0 {
		return nil, ErrNoTrends
	}
	log.Printf("pipeline: trends %q", trends)

	if err := o.Store.SaveTrends(trends, o.now()); err != nil {
		return nil, err
	}

	results := make([]storage.Result, 0, len(trends)*o.opts.MaxNewsPerTrend)
	for i, trend := range trends {
		log.Printf("pipeline: trend %d/%d %q", i+1, len(trends), trend)
		results = append(results, o.processTrend(ctx, trend)...)
	}

	summary = &storage.RunSummary{
		RunID:          runID,
		Timestamp:      o.now(),
		TotalProcessed: len(results),
		Results:        results,
	}
	if err := o.Store.SaveResults(summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (o *Orchestrator) processTrend(ctx context.Context, trend string) []storage.Result {
	articles, err := o.News.FindArticles(ctx, trend, o.opts.MaxNewsPerTrend)
	if err != nil {
		log.Printf("pipeline: find news for %q: %v", trend, err)
	}
	if len(articles) > o.opts.MaxNewsPerTrend {
		articles = articles[:o.opts.MaxNewsPerTrend]
	}
	articles = processor.Dedupe(articles)
	if len(articles) == 0 {
		log.Printf("pipeline: no news for %q, skip trend", trend)
		return nil
	}
	log.Printf("pipeline: %d articles for %q", len(articles), trend)

	results := make([]storage.Result, 0, len(articles))
	for j, art := range articles {
		log.Printf("pipeline: article %d/%d %q", j+1, len(articles), art.Title)
		if res, ok := o.processArticle(ctx, trend, art); ok {
			results = append(results, res)
		}
		o.sleep(o.opts.ArticleDelay)
	}
	o.sleep(o.opts.TrendDelay)

	o.cleanup(results)
	return results
}

// cleanup 默认只清理本话题最后一篇文章（且已发布）的本地文件；
// CleanupAllPublished 打开时清理本话题所有已发布文章
func (o *Orchestrator) cleanup(results []storage.Result) {
	if len(results) == 0 {
		return
	}
	targets := results[len(results)-1:]
	if o.opts.CleanupAllPublished {
		targets = results
	}
	for _, res := range targets {
		if res.PublishID == "" {
			continue
		}
		if err := o.Store.Remove(res.FilePath); err != nil {
			log.Printf("pipeline: remove %s: %v", res.FilePath, err)
		} else {
			log.Printf("pipeline: removed %s", res.FilePath)
		}
		if res.ImagePath == "" {
			continue
		}
		if err := o.Store.Remove(res.ImagePath); err != nil {
			log.Printf("pipeline: remove %s: %v", res.ImagePath, err)
		} else {
			log.Printf("pipeline: removed %s", res.ImagePath)
		}
	}
}

// processArticle 处理单篇候选文章；返回 false 表示在改写完成前被跳过
func (o *Orchestrator) processArticle(ctx context.Context, trend string, art collector.Article) (res storage.Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: article %q aborted: %v", art.Title, r)
			res, ok = storage.Result{}, false
		}
	}()

	if art.URL == "" {
		log.Printf("pipeline: article %q has no url, skip", art.Title)
		return res, false
	}
	if o.Store.AlreadyPublished(ctx, art.URL) {
		log.Printf("pipeline: %s already published recently, skip", art.URL)
		return res, false
	}

	markup, err := o.Content.Fetch(ctx, art.URL)
	if err != nil || strings.TrimSpace(markup) == "" {
		log.Printf("pipeline: fetch %s failed, skip: %v", art.URL, err)
		return res, false
	}

	workingTitle := processor.ExtractTitle(markup)
	if workingTitle == "" {
		workingTitle = art.Title
	}

	rewritten, err := o.Writer.Rewrite(ctx, markup, workingTitle, art.Source)
	if err != nil || strings.TrimSpace(rewritten) == "" {
		log.Printf("pipeline: rewrite %q failed, skip: %v", workingTitle, err)
		return res, false
	}

	title := processor.FinalTitle(rewritten, trend, workingTitle)
	filePath, err := o.Store.SaveArticle(title, rewritten, o.now())
	if err != nil {
		log.Printf("pipeline: save %q failed, skip: %v", title, err)
		return res, false
	}

	imagePath := ""
	if o.Images != nil {
		p, err := o.Images.ObtainImage(ctx, title, rewritten)
		if err != nil {
			log.Printf("pipeline: no image for %q: %v", title, err)
		} else {
			imagePath = p
		}
	}

	res = storage.Result{
		Trend:     trend,
		Title:     title,
		SourceURL: art.URL,
		FilePath:  filePath,
		ImagePath: imagePath,
	}

	if o.Publisher == nil {
		log.Printf("pipeline: publishing not configured, %q not published", title)
		res.Status = storage.StatusNotPublishedNoCredentials
		return res, true
	}

	postID, err := o.Publisher.Publish(ctx, title, rewritten, imagePath, defaultCategories, tagsFor(trend))
	if err != nil || postID == "" {
		log.Printf("pipeline: publish %q failed: %v", title, err)
		res.Status = storage.StatusNotPublished
		return res, true
	}
	log.Printf("pipeline: published %q id=%s", title, postID)
	res.Status = storage.StatusPublished
	res.PublishID = postID
	o.Store.MarkPublished(ctx, art.URL, postID, o.opts.PublishedTTL)
	return res, true
}

// tagsFor 返回话题本身以及按空白切分后的各个词
func tagsFor(trend string) []string {
	return append([]string{trend}, strings.Fields(trend)...)
}
