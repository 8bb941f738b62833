package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitesearch/internal/fetch"
	"github.com/nao1215/sitesearch/internal/model"
	"github.com/nao1215/sitesearch/internal/search"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryStore is an in-memory ReportStore.
type memoryStore struct {
	mu      sync.Mutex
	reports map[string]*model.SearchReport
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[string]*model.SearchReport)}
}

func (m *memoryStore) SaveReport(_ context.Context, r *model.SearchReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.reports[r.ID] = r
	return nil
}

func (m *memoryStore) FindReport(_ context.Context, id string) (*model.SearchReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[id], nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

// newSite serves a two-page site and counts requests.
func newSite(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><p>Hello world. This is fine.</p><a href="/about">About</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<p>We say hello to everyone. Thanks.</p>`)
	})

	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site, &hits
}

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()

	factory := func(model.SearchRequest) *search.Service {
		return search.NewService(fetch.NewHTTPFetcher(nil, fetch.WithLogger(quietLogger())),
			search.WithLogger(quietLogger()))
	}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	api := httptest.NewServer(New(factory, opts...).Handler())
	t.Cleanup(api.Close)
	return api
}

func get(t *testing.T, rawURL string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, body
}

func searchURL(api, start, query, depth string) string {
	v := url.Values{}
	if start != "" {
		v.Set("url", start)
	}
	if query != "" {
		v.Set("query", query)
	}
	if depth != "" {
		v.Set("depth", depth)
	}
	return api + "/search?" + v.Encode()
}

func TestHandleSearch(t *testing.T) {
	t.Parallel()

	t.Run("returns matches as JSON", func(t *testing.T) {
		t.Parallel()

		site, _ := newSite(t)
		store := newMemoryStore()
		api := newTestServer(t, WithStore(store))

		resp, body := get(t, searchURL(api.URL, site.URL+"/", "hello", "1"))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}

		var got model.SearchReport
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("invalid JSON %s: %v", body, err)
		}
		if len(got.Results) != 2 {
			t.Fatalf("expected 2 pages, got %+v", got.Results)
		}
		if got.Results[0].URL != site.URL+"/" || got.Results[0].Contexts[0] != "✅Hello world. This is fine." {
			t.Errorf("unexpected first result %+v", got.Results[0])
		}
		if got.Request.MaxDepth != 1 {
			t.Errorf("expected depth 1, got %d", got.Request.MaxDepth)
		}
		if store.count() != 1 {
			t.Errorf("expected report to be saved, got %d", store.count())
		}
	})

	t.Run("default depth is 2", func(t *testing.T) {
		t.Parallel()

		site, _ := newSite(t)
		api := newTestServer(t)

		_, body := get(t, searchURL(api.URL, site.URL+"/", "hello", ""))
		var got model.SearchReport
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Request.MaxDepth != model.DefaultMaxDepth {
			t.Errorf("expected default depth, got %d", got.Request.MaxDepth)
		}
	})

	t.Run("aliases are accepted", func(t *testing.T) {
		t.Parallel()

		site, _ := newSite(t)
		api := newTestServer(t)

		v := url.Values{"start_url": {site.URL + "/"}, "query": {"hello"}, "max_depth": {"0"}}
		resp, body := get(t, api.URL+"/search?"+v.Encode())
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var got model.SearchReport
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got.Results) != 1 {
			t.Errorf("expected only the start page, got %+v", got.Results)
		}
	})

	tests := []struct {
		name    string
		start   string
		query   string
		depth   string
		wantMsg string
	}{
		{name: "missing query", start: "http://example.test/", wantMsg: "query parameter is required"},
		{name: "blank query", start: "http://example.test/", query: "   ", wantMsg: "query parameter is required"},
		{name: "missing url", query: "go"},
		{name: "relative url", start: "/docs", query: "go"},
		{name: "non numeric depth", start: "http://example.test/", query: "go", depth: "two"},
		{name: "negative depth", start: "http://example.test/", query: "go", depth: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			site, hits := newSite(t)
			api := newTestServer(t)

			start := tt.start
			if start == "http://example.test/" {
				start = site.URL + "/"
			}

			resp, body := get(t, searchURL(api.URL, start, tt.query, tt.depth))
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.StatusCode, body)
			}

			var got errorResponse
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("invalid JSON %s: %v", body, err)
			}
			if got.Error == "" {
				t.Error("expected error message")
			}
			if tt.wantMsg != "" && got.Error != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, got.Error)
			}
			if hits.Load() != 0 {
				t.Errorf("expected no fetch, got %d", hits.Load())
			}
		})
	}

	t.Run("timeout returns partial report", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `<p>Hello there.</p><a href="/slow">slow</a>`)
		})
		mux.HandleFunc("/slow", func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		site := httptest.NewServer(mux)
		t.Cleanup(site.Close)
		t.Cleanup(func() { close(release) })

		api := newTestServer(t, WithRequestTimeout(200*time.Millisecond))

		resp, body := get(t, searchURL(api.URL, site.URL+"/", "hello", "1"))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var got model.SearchReport
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !got.TimedOut || len(got.Results) != 1 {
			t.Errorf("expected partial timed out report, got %+v", got)
		}
	})

	t.Run("save failure still replies", func(t *testing.T) {
		t.Parallel()

		site, _ := newSite(t)
		store := newMemoryStore()
		store.saveErr = errors.New("disk full")
		api := newTestServer(t, WithStore(store))

		resp, body := get(t, searchURL(api.URL, site.URL+"/", "hello", "0"))
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()

		api := newTestServer(t)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, api.URL+"/search", nil)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})
}

func TestHandleGetReport(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		saved := model.NewSearchReport(model.SearchRequest{StartURL: "https://example.com/", Query: "go"})
		saved.Finish()
		_ = store.SaveReport(context.Background(), saved)

		api := newTestServer(t, WithStore(store))
		resp, body := get(t, api.URL+"/reports/"+saved.ID)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		var got model.SearchReport
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.ID != saved.ID {
			t.Errorf("expected %s, got %s", saved.ID, got.ID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		api := newTestServer(t, WithStore(newMemoryStore()))
		resp, _ := get(t, api.URL+"/reports/unknown")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("history disabled", func(t *testing.T) {
		t.Parallel()

		api := newTestServer(t)
		resp, _ := get(t, api.URL+"/reports/abc")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	api := newTestServer(t)
	resp, body := get(t, api.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("unexpected health response %d %q", resp.StatusCode, body)
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	srv := New(func(model.SearchRequest) *search.Service {
		return search.NewService(nil)
	}, WithLogger(quietLogger()), WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, "127.0.0.1:0", func(a net.Addr) { addrCh <- a })
	}()

	var addr net.Addr
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, body := get(t, "http://"+addr.String()+"/healthz")
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("unexpected health response %d %q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_ListenError(t *testing.T) {
	t.Parallel()

	srv := New(nil, WithLogger(quietLogger()))
	if err := srv.Run(context.Background(), "invalid-address", nil); err == nil {
		t.Error("expected listen error")
	}
}
