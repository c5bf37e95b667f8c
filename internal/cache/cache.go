package cache

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// Cache maps URLs to deterministic paths inside one directory. Presence of a
// file at the resolved path counts as a hit; writers must go through a temp
// name and rename so a hit never observes a partial file.
type Cache struct {
	dir string
}

// New creates the cache directory if needed and returns the Cache.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// FileName derives the canonical file name for a URL: the first 16 hex chars
// of the URL's md5 plus an extension. The extension comes from the URL path
// when present, otherwise from suffix, otherwise it is empty.
func FileName(rawURL, suffix string) string {
	if ext := path.Ext(urlPath(rawURL)); ext != "" {
		suffix = ext
	}
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:16] + suffix
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

// ResolvePath maps a URL to its cache path. A non-empty name is used verbatim
// (namespaced into the cache dir); otherwise the content-derived name with
// the given fallback suffix applies.
func (c *Cache) ResolvePath(rawURL, name, suffix string) string {
	if name == "" {
		name = FileName(rawURL, suffix)
	}
	return filepath.Join(c.dir, name)
}

// Has reports whether a file already exists at path.
func (c *Cache) Has(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
