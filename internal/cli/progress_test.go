package cli

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestResolveModelViewShowsElapsed(t *testing.T) {
	state := &resolveState{}
	m := newResolveModel("BV1xx411c7mD", state)
	m.start = time.Now().Add(-95 * time.Second)

	v := m.View()
	if !strings.Contains(v, "[1:35]") {
		t.Errorf("view = %q, want elapsed 1:35", v)
	}
}

func TestResolveStateCollectsSkips(t *testing.T) {
	state := &resolveState{}
	state.addSkip("https://wx1.sinaimg.cn/large/1.jpg", errors.New("status 404"))
	state.addSkip("https://wx1.sinaimg.cn/large/2.jpg", errors.New("status 403"))

	got := state.getSkipped()
	if len(got) != 2 {
		t.Fatalf("got %d skips, want 2: %v", len(got), got)
	}
	if !strings.Contains(got[0], "1.jpg") || !strings.Contains(got[0], "404") {
		t.Errorf("skip entry missing url or cause: %q", got[0])
	}
}
