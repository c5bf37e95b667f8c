package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/cache"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
)

func newTestDownloader(t *testing.T) (*Downloader, *cache.Cache) {
	t.Helper()
	store, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(store, fetch.New("")), store
}

func TestDownloadHitsCacheOnRepeat(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)
	ctx := context.Background()

	p1, err := d.Download(ctx, Request{URL: srv.URL + "/v", Kind: KindVideo})
	if err != nil {
		t.Fatal(err)
	}
	p2, err := d.Download(ctx, Request{URL: srv.URL + "/v", Kind: KindVideo})
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Errorf("repeat download returned a different path: %q vs %q", p1, p2)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
	body, err := os.ReadFile(p1)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "video-bytes" {
		t.Errorf("file content = %q", body)
	}
	if filepath.Ext(p1) != ".mp4" {
		t.Errorf("video fallback extension not applied: %q", p1)
	}
}

func TestDownloadFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d, store := newTestDownloader(t)
	_, err := d.Download(context.Background(), Request{URL: srv.URL + "/gone", Kind: KindVideo})
	if err == nil {
		t.Fatal("expected an error for a 404 resource")
	}
	var de *DownloadError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DownloadError", err)
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("leftover file after failed download: %s", e.Name())
	}
}

func TestDownloadAbortLeavesNoPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Drop the connection before the promised body arrives.
		conn, _, _ := w.(http.Hijacker).Hijack()
		conn.Close()
	}))
	defer srv.Close()

	d, store := newTestDownloader(t)
	path, err := d.Download(context.Background(), Request{URL: srv.URL + "/trunc", Kind: KindVideo})
	if err == nil {
		t.Fatalf("truncated transfer succeeded: %q", path)
	}

	canonical := store.ResolvePath(srv.URL+"/trunc", "", ".mp4")
	if _, err := os.Stat(canonical); !os.IsNotExist(err) {
		t.Error("partial body visible at the canonical path")
	}
	entries, _ := os.ReadDir(store.Dir())
	for _, e := range entries {
		if strings.Contains(e.Name(), ".part-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDownloadExplicitName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	d, store := newTestDownloader(t)
	p, err := d.DownloadAudio(context.Background(), srv.URL+"/a", "晴天.mp3", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(store.Dir(), "晴天.mp3") {
		t.Errorf("explicit name ignored: %q", p)
	}
}

func TestDownloadImagesBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("img:" + r.URL.Path))
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)
	var mu sync.Mutex
	var skipped []string
	d.OnSkip = func(u string, err error) {
		mu.Lock()
		skipped = append(skipped, u)
		mu.Unlock()
	}
	urls := []string{srv.URL + "/p1.jpg", srv.URL + "/bad.jpg", srv.URL + "/p3.jpg"}
	paths := d.DownloadImages(context.Background(), urls, nil)

	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2: %v", len(paths), paths)
	}
	// Surviving entries keep input order. Files carry cache names, so order
	// has to be checked through the bodies.
	for i, want := range []string{"img:/p1.jpg", "img:/p3.jpg"} {
		body, err := os.ReadFile(paths[i])
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != want {
			t.Errorf("paths[%d] = %q, want body %q", i, body, want)
		}
	}
	if len(skipped) != 1 || skipped[0] != urls[1] {
		t.Errorf("skipped = %v, want [%s]", skipped, urls[1])
	}
}

func TestDownloadReportsProgress(t *testing.T) {
	body := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)
	var last Progress
	d.OnProgress = func(p Progress) { last = p }

	if _, err := d.Download(context.Background(), Request{URL: srv.URL + "/v", Kind: KindVideo}); err != nil {
		t.Fatal(err)
	}
	if last.Written != int64(len(body)) {
		t.Errorf("final progress written = %d, want %d", last.Written, len(body))
	}
	if last.Total != int64(len(body)) {
		t.Errorf("final progress total = %d, want %d", last.Total, len(body))
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KB"},
		{104857600, "100.0 MB"},
	}
	for _, c := range cases {
		if got := FormatBytes(c.in); got != c.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{95 * time.Second, "1:35"},
		{2 * time.Hour, "2:00:00"},
		{-time.Second, "??:??"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
