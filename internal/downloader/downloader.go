package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/cache"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
)

const chunkSize = 1 << 20 // 1 MiB copy buffer

// Kind is the payload category of a request, used to pick a fallback
// extension when the URL carries none.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindImage
)

func (k Kind) suffix() string {
	switch k {
	case KindVideo:
		return ".mp4"
	case KindAudio:
		return ".mp3"
	default:
		return ".jpg"
	}
}

// Request describes one resource to fetch.
type Request struct {
	URL  string
	Kind Kind
	// Name forces the cache file name (used verbatim when set).
	Name string
	// Headers are merged over the shared baseline.
	Headers map[string]string
	// Proxy overrides the client proxy for this resource.
	Proxy string
}

// DownloadError reports a failed transfer.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Progress is reported while a transfer runs.
type Progress struct {
	Name    string
	Total   int64 // -1 when unknown
	Written int64
}

// Downloader streams remote resources into the cache.
type Downloader struct {
	cache  *cache.Cache
	client *fetch.Client

	// OnProgress, when set, receives transfer updates. It must not block.
	OnProgress func(Progress)

	// OnSkip, when set, receives every gallery image dropped by
	// DownloadImages. It must not block.
	OnSkip func(url string, err error)

	mu       sync.Mutex
	inflight map[string]*call
}

type call struct {
	done chan struct{}
	path string
	err  error
}

// New creates a Downloader writing into c via client.
func New(c *cache.Cache, client *fetch.Client) *Downloader {
	return &Downloader{
		cache:    c,
		client:   client,
		inflight: make(map[string]*call),
	}
}

// Cache returns the backing cache.
func (d *Downloader) Cache() *cache.Cache { return d.cache }

// Download fetches one resource and returns its cache path. Concurrent calls
// for the same cache path share one transfer; repeated calls after completion
// hit the cache without network I/O.
func (d *Downloader) Download(ctx context.Context, req Request) (string, error) {
	path := d.cache.ResolvePath(req.URL, req.Name, req.Kind.suffix())
	if d.cache.Has(path) {
		return path, nil
	}

	d.mu.Lock()
	if c, ok := d.inflight[path]; ok {
		d.mu.Unlock()
		select {
		case <-c.done:
			return c.path, c.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	d.inflight[path] = c
	d.mu.Unlock()

	c.path, c.err = d.fetchToFile(ctx, req, path)
	close(c.done)

	d.mu.Lock()
	delete(d.inflight, path)
	d.mu.Unlock()

	return c.path, c.err
}

func (d *Downloader) fetchToFile(ctx context.Context, req Request, path string) (string, error) {
	resp, err := d.client.Get(ctx, req.URL, &fetch.Options{
		Headers: req.Headers,
		Proxy:   req.Proxy,
	})
	if err != nil {
		return "", &DownloadError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return "", &DownloadError{URL: req.URL, Err: err}
	}
	tmpName := tmp.Name()

	if err := d.copyChunks(ctx, tmp, resp.Body, filepath.Base(path), resp.ContentLength); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", &DownloadError{URL: req.URL, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", &DownloadError{URL: req.URL, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", &DownloadError{URL: req.URL, Err: err}
	}
	return path, nil
}

func (d *Downloader) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, name string, total int64) error {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			written += int64(n)
			if d.OnProgress != nil {
				d.OnProgress(Progress{Name: name, Total: total, Written: written})
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// DownloadVideo fetches url as a video resource.
func (d *Downloader) DownloadVideo(ctx context.Context, url string, headers map[string]string) (string, error) {
	return d.Download(ctx, Request{URL: url, Kind: KindVideo, Headers: headers})
}

// DownloadAudio fetches url as an audio resource under the given name.
func (d *Downloader) DownloadAudio(ctx context.Context, url, name string, headers map[string]string) (string, error) {
	return d.Download(ctx, Request{URL: url, Kind: KindAudio, Name: name, Headers: headers})
}

// DownloadImage fetches url as an image resource.
func (d *Downloader) DownloadImage(ctx context.Context, url string, headers map[string]string) (string, error) {
	return d.Download(ctx, Request{URL: url, Kind: KindImage, Headers: headers})
}

// DownloadImages fetches every URL concurrently and returns the paths of the
// ones that succeeded, in input order. Failures are dropped, never fatal: a
// gallery that renders partially beats one that fails entirely.
func (d *Downloader) DownloadImages(ctx context.Context, urls []string, headers map[string]string) []string {
	results := make([]string, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			path, err := d.DownloadImage(ctx, u, headers)
			if err != nil {
				if d.OnSkip != nil {
					d.OnSkip(u, err)
				}
				return
			}
			results[i] = path
		}(i, u)
	}
	wg.Wait()

	paths := make([]string, 0, len(urls))
	for _, p := range results {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// FileSize returns the size of a downloaded file, 0 when unreadable.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// FormatBytes renders a byte count in binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// FormatDuration renders a duration as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "??:??"
	}
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	if m > 60 {
		h := m / 60
		m = m % 60
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
