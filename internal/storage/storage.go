package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/LJTian/TrendPress/internal/processor"
	"github.com/redis/go-redis/v9"
)

const (
	TrendsFile  = "trends.json"
	ResultsFile = "results.json"

	publishedKeyPrefix = "trendpress:published:"
)

// ErrNoResults 表示还没有任何一次运行写出 results.json
var ErrNoResults = errors.New("storage: no results available")

type Status string

const (
	StatusPublished                 Status = "published"
	StatusNotPublished              Status = "not_published"
	StatusNotPublishedNoCredentials Status = "not_published_no_credentials"
)

// Result 是单篇文章的处理结果，追加到结果列表后不再修改
type Result struct {
	Trend     string `json:"trend"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url,omitempty"`
	FilePath  string `json:"file_path"`
	ImagePath string `json:"image_path"`
	// 字段名沿用 wordpress_id，便于已有消费方读取
	PublishID string `json:"wordpress_id,omitempty"`
	Status    Status `json:"status"`
}

// MarshalJSON 始终输出 image_path，没有图片时为 null
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		ImagePath *string `json:"image_path"`
	}{plain: plain(r)}
	if r.ImagePath != "" {
		out.ImagePath = &r.ImagePath
	}
	return json.Marshal(out)
}

// RunSummary 对应 results.json，每次运行结束时整体覆盖
type RunSummary struct {
	RunID          string    `json:"run_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	TotalProcessed int       `json:"total_processed"`
	Results        []Result  `json:"results"`
}

// TrendsSnapshot 对应 trends.json
type TrendsSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Trends    []string  `json:"trends"`
}

type Store struct {
	Dir   string
	Redis *redis.Client
}

// NewStore 确保输出目录存在；redisAddr 为空时不启用跨批次去重
func NewStore(dir, redisAddr string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create output dir: %w", err)
	}
	s := &Store{Dir: dir}
	if redisAddr == "" {
		return s, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}
	s.Redis = rdb
	return s, nil
}

func (s *Store) Close() error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}

func (s *Store) writeJSON(name string, v any) error {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.Dir, name)
	// 先写临时文件再 rename，避免读取方看到写了一半的 JSON
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// SaveTrends 写出本次运行的话题列表
func (s *Store) SaveTrends(trends []string, at time.Time) error {
	if err := s.writeJSON(TrendsFile, TrendsSnapshot{Timestamp: at, Trends: trends}); err != nil {
		return fmt.Errorf("storage: save trends: %w", err)
	}
	return nil
}

// SaveResults 覆盖写出 results.json
func (s *Store) SaveResults(summary *RunSummary) error {
	if err := s.writeJSON(ResultsFile, summary); err != nil {
		return fmt.Errorf("storage: save results: %w", err)
	}
	return nil
}

// LoadResults 读取最近一次的 results.json，文件不存在时返回 ErrNoResults
func (s *Store) LoadResults() (*RunSummary, error) {
	bs, err := os.ReadFile(filepath.Join(s.Dir, ResultsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoResults
		}
		return nil, fmt.Errorf("storage: read results: %w", err)
	}
	var summary RunSummary
	if err := json.Unmarshal(bs, &summary); err != nil {
		return nil, fmt.Errorf("storage: decode results: %w", err)
	}
	return &summary, nil
}

// SaveArticle 将改写后的 HTML 写入以标题和时间戳命名的文件
func (s *Store) SaveArticle(title, content string, at time.Time) (string, error) {
	base := fmt.Sprintf("article_%s_%s", at.Format("20060102_150405"), processor.SafeName(title, 50))
	path, err := s.createUnique(base, ".html", []byte(content))
	if err != nil {
		return "", fmt.Errorf("storage: save article: %w", err)
	}
	log.Printf("storage: article saved to %s", path)
	return path, nil
}

// SaveImage 写入图片文件，ext 含前导点，例如 ".png"
func (s *Store) SaveImage(title, ext string, data []byte, at time.Time) (string, error) {
	base := fmt.Sprintf("image_%d_%s", at.Unix(), processor.SafeName(title, 30))
	path, err := s.createUnique(base, ext, data)
	if err != nil {
		return "", fmt.Errorf("storage: save image: %w", err)
	}
	log.Printf("storage: image saved to %s", path)
	return path, nil
}

// createUnique 以 O_EXCL 创建文件，重名时追加序号
func (s *Store) createUnique(base, ext string, data []byte) (string, error) {
	for i := 0; ; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(s.Dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return path, nil
	}
}

// Remove 删除本地文件；文件不存在视为已删除
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// AlreadyPublished 查询最近运行是否已发布过该 URL；未启用 Redis 时总是 false
func (s *Store) AlreadyPublished(ctx context.Context, url string) bool {
	if s.Redis == nil || url == "" {
		return false
	}
	n, err := s.Redis.Exists(ctx, publishedKeyPrefix+processor.HashURL(url)).Result()
	if err != nil {
		log.Printf("warn: redis exists failed: %v", err)
		return false
	}
	return n > 0
}

// MarkPublished 记录已发布的 URL，依赖 TTL 自然过期
func (s *Store) MarkPublished(ctx context.Context, url, postID string, ttl time.Duration) {
	if s.Redis == nil || url == "" {
		return
	}
	if err := s.Redis.Set(ctx, publishedKeyPrefix+processor.HashURL(url), postID, ttl).Err(); err != nil {
		log.Printf("warn: redis set failed: %v", err)
	}
}
