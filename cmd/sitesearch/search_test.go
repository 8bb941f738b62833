package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/sitesearch/internal/config"
	"github.com/nao1215/sitesearch/internal/database"
	"github.com/nao1215/sitesearch/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".sitesearch")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// newTestSite serves a start page linking to /about. Pages are only
// served when the request carries wantCookie, if set.
func newTestSite(t *testing.T, wantCookie string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if wantCookie != "" && r.Header.Get("Cookie") != wantCookie {
			http.Error(w, "login required", http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, `<html><body><p>Hello world. This is fine.</p><a href="/about">About</a></body></html>`)
		case "/about":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, `<p>We say hello to everyone. Thanks.</p>`)
		default:
			http.NotFound(w, r)
		}
	})

	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site, &hits
}

func newTestConfig(t *testing.T, query string, targets ...string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Query = query
	cfg.Targets = targets
	cfg.DBDir = t.TempDir()
	cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	return cfg
}

func TestNewSearchCmd(t *testing.T) {
	t.Parallel()

	cmd := NewSearchCmd()

	t.Run("requires at least one argument", func(t *testing.T) {
		t.Parallel()
		if err := cmd.Args(cmd, nil); err == nil {
			t.Error("expected error without arguments")
		}
	})

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "query", shorthand: "q", defValue: ""},
		{name: "depth", shorthand: "d", defValue: "2"},
		{name: "concurrency", shorthand: "n", defValue: "10"},
		{name: "max-pages", shorthand: "p", defValue: "0"},
		{name: "batch", shorthand: "b", defValue: "3"},
		{name: "timeout", shorthand: "t", defValue: "30s"},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "proxy", defValue: ""},
		{name: "marker", defValue: "✅"},
		{name: "no-save", defValue: "false"},
	}

	for _, tt := range flags {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}

	t.Run("does not have db-dir flag (uses XDG)", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("db-dir") != nil {
			t.Error("db-dir flag should not exist")
		}
	})
}

func TestBuildRequests(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Query = "go"
	cfg.MaxDepth = 1
	cfg.Targets = []string{"https://docs.example.com/", "https://other.example.com/"}
	cfg.SiteConfigs = &config.File{
		Sites: map[string]config.SiteConfig{
			"docs.example.com": {Depth: 4},
		},
	}

	t.Run("site depth applies without flag", func(t *testing.T) {
		t.Parallel()

		reqs := buildRequests(cfg, false)
		want := []model.SearchRequest{
			{StartURL: "https://docs.example.com/", Query: "go", MaxDepth: 4},
			{StartURL: "https://other.example.com/", Query: "go", MaxDepth: 1},
		}
		if len(reqs) != len(want) {
			t.Fatalf("expected %d requests, got %d", len(want), len(reqs))
		}
		for i := range want {
			if reqs[i] != want[i] {
				t.Errorf("request %d: expected %+v, got %+v", i, want[i], reqs[i])
			}
		}
	})

	t.Run("depth flag wins", func(t *testing.T) {
		t.Parallel()

		for _, req := range buildRequests(cfg, true) {
			if req.MaxDepth != 1 {
				t.Errorf("expected depth 1 for %s, got %d", req.StartURL, req.MaxDepth)
			}
		}
	})
}

func TestRunSearch(t *testing.T) {
	t.Parallel()

	t.Run("prints text report and records history", func(t *testing.T) {
		t.Parallel()

		site, _ := newTestSite(t, "")
		cfg := newTestConfig(t, "hello", site.URL+"/")
		reqs := buildRequests(cfg, true)

		var out, errOut bytes.Buffer
		if err := runSearch(context.Background(), cfg, reqs, &out, &errOut, quietLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := out.String()
		for _, want := range []string{
			"SITESEARCH REPORT",
			"✅Hello world. This is fine.",
			"We say ✅hello to everyone. Thanks.",
			site.URL + "/about",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, got)
			}
		}

		// The same search again finds the same contexts.
		out.Reset()
		errOut.Reset()
		if err := runSearch(context.Background(), cfg, reqs, &out, &errOut, quietLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(errOut.String(), "unchanged since") {
			t.Errorf("expected unchanged note, got %q", errOut.String())
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		reports, err := db.ListReports(context.Background(), database.ListFilter{})
		if err != nil {
			t.Fatalf("failed to list reports: %v", err)
		}
		if len(reports) != 2 {
			t.Errorf("expected 2 saved reports, got %d", len(reports))
		}
	})

	t.Run("writes JSON to file", func(t *testing.T) {
		t.Parallel()

		site, _ := newTestSite(t, "")
		cfg := newTestConfig(t, "hello", site.URL+"/")
		cfg.SaveToDB = false
		cfg.JSONReport = true
		cfg.MaxDepth = 0
		cfg.ReportFile = filepath.Join(t.TempDir(), "out", "report.json")

		var out, errOut bytes.Buffer
		if err := runSearch(context.Background(), cfg, buildRequests(cfg, true), &out, &errOut, quietLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", out.String())
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		var got model.SearchReport
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got.Results) != 1 || got.Results[0].Contexts[0] != "✅Hello world. This is fine." {
			t.Errorf("unexpected results %+v", got.Results)
		}

		if runtime.GOOS != "windows" {
			info, err := os.Stat(cfg.ReportFile)
			if err != nil {
				t.Fatalf("failed to stat report: %v", err)
			}
			if perm := info.Mode().Perm(); perm != 0600 {
				t.Errorf("expected permissions 0600, got %o", perm)
			}
		}
	})

	t.Run("searches several sites as markdown", func(t *testing.T) {
		t.Parallel()

		siteA, _ := newTestSite(t, "")
		siteB, _ := newTestSite(t, "")
		cfg := newTestConfig(t, "hello", siteA.URL+"/", siteB.URL+"/")
		cfg.SaveToDB = false
		cfg.MarkdownReport = true

		var out, errOut bytes.Buffer
		if err := runSearch(context.Background(), cfg, buildRequests(cfg, true), &out, &errOut, quietLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := out.String()
		if !strings.Contains(got, "# Site Search Report") {
			t.Errorf("expected markdown heading, got:\n%s", got)
		}
		if !strings.Contains(got, siteA.URL) || !strings.Contains(got, siteB.URL) {
			t.Errorf("expected both sites in report, got:\n%s", got)
		}
		if !strings.Contains(errOut.String(), "[2/2]") {
			t.Errorf("expected progress output, got %q", errOut.String())
		}
	})

	t.Run("applies site cookie and marker", func(t *testing.T) {
		t.Parallel()

		site, _ := newTestSite(t, "session=abc")
		cfg := newTestConfig(t, "hello", site.URL+"/")
		cfg.SaveToDB = false
		cfg.MaxDepth = 0
		cfg.Marker = "**"
		cfg.SiteConfigs.Sites[strings.TrimPrefix(site.URL, "http://")] = config.SiteConfig{Cookie: "session=abc"}

		var out, errOut bytes.Buffer
		if err := runSearch(context.Background(), cfg, buildRequests(cfg, true), &out, &errOut, quietLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "**Hello world. This is fine.") {
			t.Errorf("expected match with custom marker, got:\n%s", out.String())
		}
	})

	t.Run("invalid target fetches nothing", func(t *testing.T) {
		t.Parallel()

		site, hits := newTestSite(t, "")
		cfg := newTestConfig(t, "hello", site.URL+"/", "ftp://example.com/")

		var out, errOut bytes.Buffer
		err := runSearch(context.Background(), cfg, buildRequests(cfg, true), &out, &errOut, quietLogger())
		if err == nil {
			t.Fatal("expected error for invalid target")
		}
		if hits.Load() != 0 {
			t.Errorf("expected no fetch, got %d", hits.Load())
		}
	})

	t.Run("invalid proxy", func(t *testing.T) {
		t.Parallel()

		cfg := newTestConfig(t, "hello", "https://example.com/")
		cfg.ProxyAddress = "no-port"

		var out, errOut bytes.Buffer
		if err := runSearch(context.Background(), cfg, buildRequests(cfg, true), &out, &errOut, quietLogger()); err == nil {
			t.Error("expected error for invalid proxy")
		}
	})
}

func TestRunSearchCmd(t *testing.T) {
	t.Parallel()

	t.Run("missing query flag", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"search", "https://example.com/"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error without --query")
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"search", "https://example.com/", "-q", "go", "--json", "--markdown",
			"--config", writeTestConfig(t, "defaults: {}\n")})
		if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "conflicting report formats") {
			t.Errorf("expected conflicting formats error, got %v", err)
		}
	})

	t.Run("runs a search", func(t *testing.T) {
		t.Parallel()

		site, _ := newTestSite(t, "")
		configPath := writeTestConfig(t, "sites:\n  "+strings.TrimPrefix(site.URL, "http://")+":\n    depth: 1\n")

		var out bytes.Buffer
		cmd := NewRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"search", site.URL + "/", "-q", "hello", "--json", "--no-save", "--config", configPath})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.SearchReport
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON %q: %v", out.String(), err)
		}
		if got.Request.MaxDepth != 1 || len(got.Results) != 2 {
			t.Errorf("expected site depth 1 with two results, got %+v", got)
		}
	})
}

func TestChangeNote(t *testing.T) {
	t.Parallel()

	current := &model.SearchReport{
		ID:      "new",
		Request: model.SearchRequest{StartURL: "https://example.com/", Query: "go"},
		Results: []model.PageResult{{URL: "https://example.com/", Contexts: []string{"✅Go."}}},
		Digest:  "abc",
	}

	tests := []struct {
		name string
		prev *database.ReportMetadata
		want string
	}{
		{name: "no previous search", prev: nil, want: ""},
		{name: "same digest", prev: &database.ReportMetadata{ID: "old", Digest: "abc"}, want: "unchanged"},
		{name: "different digest", prev: &database.ReportMetadata{ID: "old", Digest: "def", PagesMatched: 3}, want: "3 -> 1"},
		{name: "previous was partial", prev: &database.ReportMetadata{ID: "old", Digest: "abc", TimedOut: true}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := changeNote(tt.prev, current)
			if tt.want == "" {
				if got != "" {
					t.Errorf("expected no note, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected note to contain %q, got %q", tt.want, got)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	t.Parallel()

	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("expected 01234567, got %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}
