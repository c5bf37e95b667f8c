package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDoAppliesCommonHeaders(t *testing.T) {
	var gotUA, gotRef string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRef = r.Header.Get("Referer")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New("")
	body, err := c.GetBytes(context.Background(), srv.URL, &Options{
		Headers: map[string]string{"Referer": "https://www.bilibili.com/"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if gotUA != CommonHeaders["User-Agent"] {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotRef != "https://www.bilibili.com/" {
		t.Errorf("Referer = %q", gotRef)
	}
}

func TestDoCallerHeaderWins(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := New("")
	_, err := c.GetBytes(context.Background(), srv.URL, &Options{
		Headers: map[string]string{"User-Agent": "custom-agent/1.0"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotUA != "custom-agent/1.0" {
		t.Errorf("caller header lost: User-Agent = %q", gotUA)
	}
}

func TestDoStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("")
	_, err := c.Get(context.Background(), srv.URL, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("code = %d", se.Code)
	}
}

func TestPostForm(t *testing.T) {
	var gotCT, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := New("")
	if _, err := c.PostForm(context.Background(), srv.URL, "data={\"Component_Play_Playinfo\":{}}", nil); err != nil {
		t.Fatal(err)
	}
	if gotCT != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if !strings.Contains(gotBody, "Component_Play_Playinfo") {
		t.Errorf("body = %q", gotBody)
	}
}

func TestResolveShortLink(t *testing.T) {
	target := "https://www.bilibili.com/video/BV1VvfchyEoP?p=2"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	}))
	defer srv.Close()

	c := New("")
	loc, err := c.ResolveShortLink(context.Background(), srv.URL+"/abc", nil)
	if err != nil {
		t.Fatal(err)
	}
	if loc != target {
		t.Errorf("location = %q, want %q", loc, target)
	}
}

func TestResolveShortLinkNoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain page"))
	}))
	defer srv.Close()

	c := New("")
	if _, err := c.ResolveShortLink(context.Background(), srv.URL, nil); err == nil {
		t.Error("expected an error for a non-redirecting link")
	}
}
