package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitesearch/internal/model"
)

func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()

	t.Run("has addr flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("addr")
		if flag == nil {
			t.Fatal("expected addr flag")
		}
		if flag.Shorthand != "a" || flag.DefValue != ":8080" {
			t.Errorf("unexpected addr flag %+v", flag)
		}
	})

	t.Run("has request-timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("request-timeout")
		if flag == nil {
			t.Fatal("expected request-timeout flag")
		}
		if flag.DefValue != "2m0s" {
			t.Errorf("expected default 2m0s, got %q", flag.DefValue)
		}
	})

	t.Run("takes no arguments", func(t *testing.T) {
		t.Parallel()
		if err := cmd.Args(cmd, []string{"extra"}); err == nil {
			t.Error("expected error for positional argument")
		}
	})
}

// addrWriter captures the address printed by runServe.
type addrWriter struct {
	once sync.Once
	ch   chan string
}

var listenRe = regexp.MustCompile(`Listening on (http://\S+)`)

func (w *addrWriter) Write(p []byte) (int, error) {
	if m := listenRe.FindSubmatch(p); m != nil {
		w.once.Do(func() { w.ch <- string(m[1]) })
	}
	return len(p), nil
}

func TestRunServe(t *testing.T) {
	t.Parallel()

	site, _ := newTestSite(t, "")
	cfg := newTestConfig(t, "")
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.RequestTimeout = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &addrWriter{ch: make(chan string, 1)}
	errCh := make(chan error, 1)
	go func() {
		errCh <- runServe(ctx, cfg, out, quietLogger())
	}()

	var base string
	select {
	case base = <-out.ch:
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	v := url.Values{"url": {site.URL + "/"}, "query": {"hello"}, "depth": {"0"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/search?"+v.Encode(), nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var got model.SearchReport
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Results) != 1 {
		t.Errorf("expected one result, got %+v", got.Results)
	}

	// The search was recorded and can be fetched again.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, base+"/reports/"+got.ID, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected saved report, got %d", resp.StatusCode)
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

func TestRunServe_InvalidProxy(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, "")
	cfg.ProxyAddress = "no-port"
	if err := runServe(context.Background(), cfg, io.Discard, quietLogger()); err == nil {
		t.Error("expected error for invalid proxy")
	}
}
