package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileName(t *testing.T) {
	// Same URL, same name.
	a := FileName("https://example.com/v/160?sign=abc", ".mp4")
	b := FileName("https://example.com/v/160?sign=abc", ".mp4")
	if a != b {
		t.Fatalf("FileName not deterministic: %q vs %q", a, b)
	}
	if len(a) != 16+len(".mp4") {
		t.Errorf("FileName length = %d (%q)", len(a), a)
	}

	// An extension in the URL path wins over the fallback suffix.
	if got := FileName("https://cdn.example.com/a/b/cover.jpg?x=1", ".mp4"); filepath.Ext(got) != ".jpg" {
		t.Errorf("URL extension did not win: %q", got)
	}
	// No extension in the path, fallback applies.
	if got := FileName("https://cdn.example.com/a/b/stream?x=1", ".mp3"); filepath.Ext(got) != ".mp3" {
		t.Errorf("fallback suffix not applied: %q", got)
	}

	// Different query strings address different content.
	if FileName("https://e.com/v?sign=a", ".mp4") == FileName("https://e.com/v?sign=b", ".mp4") {
		t.Error("distinct URLs mapped to the same name")
	}
}

func TestResolvePath(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// An explicit name is used verbatim.
	p := c.ResolvePath("https://example.com/x", "BV1VvfchyEoP-0.mp4", ".mp4")
	if filepath.Base(p) != "BV1VvfchyEoP-0.mp4" {
		t.Errorf("explicit name not kept: %q", p)
	}
	if filepath.Dir(p) != c.Dir() {
		t.Errorf("path escaped the cache dir: %q", p)
	}

	// Without a name the content-derived one applies.
	p = c.ResolvePath("https://example.com/x", "", ".mp4")
	if filepath.Base(p) != FileName("https://example.com/x", ".mp4") {
		t.Errorf("derived name mismatch: %q", p)
	}
}

func TestHas(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(c.Dir(), "a.mp4")
	if c.Has(p) {
		t.Error("Has reported a missing file")
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !c.Has(p) {
		t.Error("Has missed an existing file")
	}
	if c.Has(c.Dir()) {
		t.Error("Has treated a directory as a hit")
	}
}
