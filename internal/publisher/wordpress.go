package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const maxResponseBytes = 1 << 20 // 1MB

// WordPress 通过 REST API（应用密码 + Basic Auth）发布文章
type WordPress struct {
	BaseURL  string
	Username string
	Password string
	Client   *http.Client
}

// NewWordPress siteURL 可以是站点地址，也可以是旧的 xmlrpc.php 地址
func NewWordPress(siteURL, username, password string) *WordPress {
	base := strings.TrimSpace(siteURL)
	base = strings.TrimSuffix(base, "/xmlrpc.php")
	base = strings.TrimRight(base, "/")
	return &WordPress{
		BaseURL:  base,
		Username: username,
		Password: password,
		Client:   http.DefaultClient,
	}
}

// APIError 是 WordPress 返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	TermID     int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordpress: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

type wpObject struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Publish 创建一篇已发布的文章并返回文章 ID；配图与分类失败只记录日志
func (w *WordPress) Publish(ctx context.Context, title, markup, imagePath string, categories, tags []string) (string, error) {
	payload := map[string]any{
		"title":   title,
		"content": cleanContent(markup),
		"status":  "publish",
	}
	if ids := w.resolveTerms(ctx, "categories", categories); len(ids) > 0 {
		payload["categories"] = ids
	}
	if ids := w.resolveTerms(ctx, "tags", tags); len(ids) > 0 {
		payload["tags"] = ids
	}
	if imagePath != "" {
		mediaID, err := w.uploadMedia(ctx, imagePath)
		if err != nil {
			log.Printf("wordpress: upload featured image %s: %v", imagePath, err)
		} else {
			payload["featured_media"] = mediaID
		}
	}

	log.Printf("wordpress: publishing %q", title)
	var post wpObject
	if err := w.doJSON(ctx, http.MethodPost, "/wp-json/wp/v2/posts", payload, &post); err != nil {
		return "", fmt.Errorf("wordpress: create post %q: %w", title, err)
	}
	if post.ID == 0 {
		return "", fmt.Errorf("wordpress: create post %q: response without id", title)
	}
	id := strconv.Itoa(post.ID)
	log.Printf("wordpress: published %q id=%s", title, id)
	return id, nil
}

// resolveTerms 将分类/标签名转换为 ID，不存在时创建
func (w *WordPress) resolveTerms(ctx context.Context, taxonomy string, names []string) []int {
	ids := make([]int, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		id, err := w.resolveTerm(ctx, taxonomy, name)
		if err != nil {
			log.Printf("wordpress: resolve %s %q: %v", taxonomy, name, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (w *WordPress) resolveTerm(ctx context.Context, taxonomy, name string) (int, error) {
	var found []wpObject
	path := "/wp-json/wp/v2/" + taxonomy + "?per_page=100&search=" + url.QueryEscape(name)
	if err := w.doJSON(ctx, http.MethodGet, path, nil, &found); err != nil {
		return 0, err
	}
	for _, t := range found {
		if strings.EqualFold(html.UnescapeString(t.Name), name) {
			return t.ID, nil
		}
	}

	var created wpObject
	err := w.doJSON(ctx, http.MethodPost, "/wp-json/wp/v2/"+taxonomy, map[string]string{"name": name}, &created)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "term_exists" && apiErr.TermID > 0 {
		return apiErr.TermID, nil
	}
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (w *WordPress) uploadMedia(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	filename := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "image/jpeg"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.BaseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	var media wpObject
	if err := w.do(req, &media); err != nil {
		return 0, err
	}
	log.Printf("wordpress: uploaded media %s id=%d", filename, media.ID)
	return media.ID, nil
}

func (w *WordPress) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, w.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return w.do(req, out)
}

func (w *WordPress) do(req *http.Request, out any) error {
	req.SetBasicAuth(w.Username, w.Password)
	req.Header.Set("Accept", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bs))}
		var wpErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Data    struct {
				TermID int `json:"term_id"`
			} `json:"data"`
		}
		if json.Unmarshal(bs, &wpErr) == nil && wpErr.Code != "" {
			apiErr.Code = wpErr.Code
			apiErr.Message = wpErr.Message
			apiErr.TermID = wpErr.Data.TermID
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(bs, out)
}

// cleanContent 去掉换行与 markdown 代码块标记，避免 WordPress 自动插入 <br>
func cleanContent(markup string) string {
	markup = strings.ReplaceAll(markup, "\r\n", "\n")
	markup = strings.ReplaceAll(markup, "\r", "\n")
	markup = strings.ReplaceAll(markup, "\n", "")
	markup = strings.ReplaceAll(markup, "```html", "")
	return strings.ReplaceAll(markup, "```", "")
}
