package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("stream"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMergeAVRemovesInputs(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "v.m4s")
	audio := writeInput(t, dir, "a.m4s")

	// /bin/true stands in for a successful encoder run.
	tr := New("true")
	if err := tr.MergeAV(context.Background(), video, audio, filepath.Join(dir, "out.mp4")); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{video, audio} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("input %s not removed after merge", p)
		}
	}
}

func TestMergeAVFailureStillRemovesInputs(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "v.m4s")
	audio := writeInput(t, dir, "a.m4s")

	tr := New("false")
	err := tr.MergeAV(context.Background(), video, audio, filepath.Join(dir, "out.mp4"))
	if err == nil {
		t.Fatal("expected an error from the failing encoder")
	}
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T, want *EncodeError", err)
	}
	// A failed mux must not strand the elementary streams either.
	for _, p := range []string{video, audio} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("input %s not removed after failed merge", p)
		}
	}
}

func TestReEncodeH264(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "clip.mp4")

	tr := New("true")
	out, err := tr.ReEncodeH264(context.Background(), video)
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join(dir, "clip_h264.mp4") {
		t.Errorf("output path = %q", out)
	}
	if _, err := os.Stat(video); !os.IsNotExist(err) {
		t.Error("input not removed after successful re-encode")
	}
}

func TestReEncodeH264KeepsInputOnFailure(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "clip.mp4")

	tr := New("false")
	if _, err := tr.ReEncodeH264(context.Background(), video); err == nil {
		t.Fatal("expected an error from the failing encoder")
	}
	if _, err := os.Stat(video); err != nil {
		t.Error("input removed despite failed re-encode")
	}
}

func TestReEncodeH264SkipsExistingSibling(t *testing.T) {
	dir := t.TempDir()
	video := writeInput(t, dir, "clip.mp4")
	sibling := writeInput(t, dir, "clip_h264.mp4")

	// A failing binary proves the encoder is never invoked on a hit.
	tr := New("false")
	out, err := tr.ReEncodeH264(context.Background(), video)
	if err != nil {
		t.Fatal(err)
	}
	if out != sibling {
		t.Errorf("output path = %q, want existing sibling %q", out, sibling)
	}
}

func TestH264Sibling(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/tmp/a/clip.mp4", "/tmp/a/clip_h264.mp4"},
		{"/tmp/a.b/clip", "/tmp/a.b/clip_h264"},
		{"clip.mp4", "clip_h264.mp4"},
	}
	for _, c := range cases {
		if got := h264Sibling(c.in); got != c.want {
			t.Errorf("h264Sibling(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
