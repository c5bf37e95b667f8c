package parser

import (
	"encoding/json"
	"testing"
)

func TestFirstJSONValueKeepsWireOrder(t *testing.T) {
	// The playinfo rendition ladder is ordered best-first in the payload;
	// picking any other entry silently downgrades the stream.
	raw := json.RawMessage(`{"mp4_720p_mp4":"//f.video/720.mp4","mp4_hd_mp4":"//f.video/hd.mp4","mp4_ld_mp4":"//f.video/ld.mp4"}`)
	for i := 0; i < 50; i++ {
		if got := firstJSONValue(raw); got != "//f.video/720.mp4" {
			t.Fatalf("iteration %d picked %q, want the first rendition", i, got)
		}
	}

	if got := firstJSONValue(json.RawMessage(`{}`)); got != "" {
		t.Errorf("empty object yielded %q", got)
	}
	if got := firstJSONValue(nil); got != "" {
		t.Errorf("missing urls yielded %q", got)
	}
	if got := firstJSONValue(json.RawMessage(`"oops"`)); got != "" {
		t.Errorf("non-object yielded %q", got)
	}
}

func TestMidToID(t *testing.T) {
	cases := []struct {
		mid  string
		want string
	}{
		{"5007452630158934", "O37Sn0Fls"},
		{"4976424138313924", "Nw48JySPy"},
		{"4800108963419161", "M02PKeltL"},
		{"5145615399845897", "Pj8FdFjmN"},
		{"1234567890123", "w7ex6A3"},
		{"123", "1Z"},
	}
	for _, c := range cases {
		if got := MidToID(c.mid); got != c.want {
			t.Errorf("MidToID(%q) = %q, want %q", c.mid, got, c.want)
		}
	}
}

func TestMidToIDNonNumeric(t *testing.T) {
	// A mid that fails to parse comes back unchanged so the caller can still
	// build a URL from it.
	if got := MidToID("not-a-mid"); got != "not-a-mid" {
		t.Errorf("MidToID on garbage = %q, want input unchanged", got)
	}
}

func TestWeiboIDStrategyOrder(t *testing.T) {
	// The fid form must win over the plain status id form when both could
	// match, since show.weibo.com links embed both shapes.
	cases := []struct {
		text     string
		wantFid  string
		wantShow string
	}{
		{"https://video.weibo.com/show?fid=1034:5145615399845888", "1034:5145615399845888", ""},
		{"https://m.weibo.cn/status/5155768539808352", "", "5155768539808352"},
		{"https://weibo.com/7207262816/P5kWdcfDe", "", ""},
	}
	for _, c := range cases {
		if m := weiboFidRe.FindStringSubmatch(c.text); c.wantFid != "" {
			if m == nil || m[1] != c.wantFid {
				t.Errorf("fid match on %q = %v, want %q", c.text, m, c.wantFid)
			}
			continue
		} else if m != nil {
			t.Errorf("unexpected fid match on %q: %v", c.text, m)
		}
		if m := weiboDetailRe.FindStringSubmatch(c.text); c.wantShow != "" {
			if m == nil || m[1] != c.wantShow {
				t.Errorf("status match on %q = %v, want %q", c.text, m, c.wantShow)
			}
		}
	}
}
