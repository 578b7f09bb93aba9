package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewsAPIFindArticles(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/everything" {
			http.NotFound(w, r)
			return
		}
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"title":" Final da Copa ","url":"https://news.example/a","source":{"name":"Globo"},"publishedAt":"2026-10-18T08:00:00Z"},
			{"title":"Sem fonte","url":"https://news.example/b","source":{"name":""},"publishedAt":"bad"}
		]}`))
	}))
	defer srv.Close()

	n := NewNewsAPI("key-1", "pt")
	n.BaseURL = srv.URL + "/v2/"
	n.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

	got, err := n.FindArticles(context.Background(), "Copa do Brasil", 3)
	if err != nil {
		t.Fatalf("FindArticles error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("articles = %+v", got)
	}
	if got[0].Title != "Final da Copa" || got[0].Source != "Globo" || got[0].PublishedAt == nil {
		t.Fatalf("first article = %+v", got[0])
	}
	if got[1].Source != unknownSource || got[1].PublishedAt != nil {
		t.Fatalf("second article = %+v", got[1])
	}

	want := map[string]string{
		"q":        "Copa do Brasil",
		"language": "pt",
		"sortBy":   "relevancy",
		"pageSize": "3",
		"page":     "1",
		"from":     "2026-10-18",
		"apiKey":   "key-1",
	}
	for k, v := range want {
		if query[k] != v {
			t.Fatalf("query %s = %q, want %q", k, query[k], v)
		}
	}
}

func TestNewsAPIZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":0,"articles":[]}`))
	}))
	defer srv.Close()

	n := NewNewsAPI("key", "pt")
	n.BaseURL = srv.URL
	got, err := n.FindArticles(context.Background(), "x", 3)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %+v err %v", got, err)
	}
}

func TestNewsAPIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
	}))
	defer srv.Close()

	n := NewNewsAPI("key", "pt")
	n.BaseURL = srv.URL
	if _, err := n.FindArticles(context.Background(), "x", 3); err == nil {
		t.Fatalf("expected error for 401")
	}
}

func TestNewsAPIRequiresKey(t *testing.T) {
	if _, err := NewNewsAPI("", "pt").FindArticles(context.Background(), "x", 3); err == nil {
		t.Fatalf("expected error without api key")
	}
}

const googleNewsPage = `<html><body><main>
<article>
  <h3><a href="./articles/abc?hl=pt-BR">Flamengo vence a final</a></h3>
  <div><a>Globo Esporte</a> · <time datetime="2026-10-18T08:00:00Z">2 horas</time></div>
</article>
<article>
  <h4><a href="https://outra.example/b">Sem fonte</a></h4>
</article>
<article><p>sem link</p></article>
<article>
  <h3><a href="./articles/def">Excedente</a></h3>
</article>
</main></body></html>`

func TestGoogleNewsFindArticles(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(googleNewsPage))
	}))
	defer srv.Close()

	g := NewGoogleNews(srv.URL)
	got, err := g.FindArticles(context.Background(), "Flamengo", 2)
	if err != nil {
		t.Fatalf("FindArticles error: %v", err)
	}
	if gotQuery != "Flamengo" {
		t.Fatalf("q = %q", gotQuery)
	}
	if len(got) != 2 {
		t.Fatalf("articles = %+v", got)
	}
	first := got[0]
	if first.Title != "Flamengo vence a final" || first.URL != srv.URL+"/articles/abc?hl=pt-BR" {
		t.Fatalf("first article = %+v", first)
	}
	if first.Source != "Globo Esporte" || first.PublishedAt == nil {
		t.Fatalf("first article source/time = %+v", first)
	}
	if got[1].Source != unknownSource || got[1].URL != "https://outra.example/b" {
		t.Fatalf("second article = %+v", got[1])
	}
}

func TestGoogleNewsSearchURL(t *testing.T) {
	u := NewGoogleNews("https://news.google.com/").searchURL("Copa do Brasil")
	if !strings.HasPrefix(u, "https://news.google.com/search?") || !strings.Contains(u, "q=Copa+do+Brasil") {
		t.Fatalf("searchURL = %q", u)
	}
	if !strings.Contains(u, "hl=pt-BR") || !strings.Contains(u, "gl=BR") {
		t.Fatalf("searchURL missing locale: %q", u)
	}
}

type stubNews struct {
	name     string
	articles []Article
	err      error
	calls    int
}

func (s *stubNews) Name() string { return s.name }

func (s *stubNews) FindArticles(ctx context.Context, topic string, max int) ([]Article, error) {
	s.calls++
	return s.articles, s.err
}

func TestNewsFinderPrefersAPI(t *testing.T) {
	api := &stubNews{name: "api", articles: []Article{{Title: "a", URL: "u"}}}
	scraper := &stubNews{name: "scraper"}
	got, err := (&NewsFinder{API: api, Scraper: scraper}).FindArticles(context.Background(), "x", 3)
	if err != nil || len(got) != 1 || scraper.calls != 0 {
		t.Fatalf("got %+v err %v scraper calls %d", got, err, scraper.calls)
	}
}

func TestNewsFinderFallsBackToScraper(t *testing.T) {
	for _, api := range []*stubNews{
		{name: "failing", err: errors.New("429")},
		{name: "empty"},
	} {
		scraper := &stubNews{name: "scraper", articles: []Article{{Title: "b", URL: "v"}}}
		got, err := (&NewsFinder{API: api, Scraper: scraper}).FindArticles(context.Background(), "x", 3)
		if err != nil || len(got) != 1 || got[0].Title != "b" {
			t.Fatalf("%s: got %+v err %v", api.name, got, err)
		}
	}

	scraper := &stubNews{name: "scraper"}
	if _, err := (&NewsFinder{Scraper: scraper}).FindArticles(context.Background(), "x", 3); err != nil || scraper.calls != 1 {
		t.Fatalf("without api the scraper should be used directly")
	}
}

func TestArticleFetcherFetch(t *testing.T) {
	var ua string
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Oi</h1></body></html>"))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewArticleFetcher(0)
	if f.Timeout != defaultFetchTimeout {
		t.Fatalf("default timeout = %v", f.Timeout)
	}

	body, err := f.Fetch(context.Background(), srv.URL+"/ok")
	if err != nil || !strings.Contains(body, "<h1>Oi</h1>") {
		t.Fatalf("body = %q err = %v", body, err)
	}
	if ua != browserUserAgent {
		t.Fatalf("user agent = %q", ua)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/empty"); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("empty body err = %v", err)
	}
}

func TestCollectorsStopOnCanceledContext(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(googleNewsPage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewArticleFetcher(0).Fetch(ctx, srv.URL+"/a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch err = %v, want context.Canceled", err)
	}
	if _, err := NewGoogleNews(srv.URL).FindArticles(ctx, "x", 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("FindArticles err = %v, want context.Canceled", err)
	}
	if _, err := NewTrends24(srv.URL).ListTrends(ctx, 3); err == nil {
		t.Fatalf("ListTrends should fail on a canceled context")
	}
	if hits != 0 {
		t.Fatalf("no request should reach the server, got %d", hits)
	}
}
