package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/message"
)

type stubResolver struct {
	reply *message.Reply
	texts []string
}

func (s *stubResolver) ResolveMessage(ctx context.Context, text string) *message.Reply {
	s.texts = append(s.texts, text)
	return s.reply
}

func openTestHistory(t *testing.T) *HistoryDB {
	t.Helper()
	h, err := OpenHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestOpenHistoryDBCreatesParentDir(t *testing.T) {
	// A fresh machine has no config dir yet; opening must not require one.
	path := filepath.Join(t.TempDir(), "resolver", "history.db")
	h, err := OpenHistoryDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if err := h.Record(HistoryRecord{ID: "a", Platform: "bilibili", Text: "BV1x", Status: "completed"}); err != nil {
		t.Fatal(err)
	}
}

func TestHandleResolve(t *testing.T) {
	reply := &message.Reply{Platform: "bilibili"}
	reply.AppendText("测试机解析 | 哔哩哔哩 - 标题")
	stub := &stubResolver{reply: reply}
	srv := New(stub, openTestHistory(t))

	req := httptest.NewRequest(http.MethodPost, "/api/resolve",
		strings.NewReader(`{"text":"https://b23.tv/abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Matched bool           `json:"matched"`
		Reply   *message.Reply `json:"reply"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Matched || body.Reply == nil || body.Reply.Platform != "bilibili" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if len(stub.texts) != 1 || stub.texts[0] != "https://b23.tv/abc" {
		t.Errorf("resolver received %v", stub.texts)
	}
}

func TestHandleResolveUnmatched(t *testing.T) {
	srv := New(&stubResolver{reply: nil}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/resolve",
		strings.NewReader(`{"text":"普通聊天"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"matched":false`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandleResolveMissingText(t *testing.T) {
	srv := New(&stubResolver{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/resolve", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	h := openTestHistory(t)

	for i, rec := range []HistoryRecord{
		{ID: "a", Platform: "bilibili", Text: "BV1x", Status: "completed", Segments: 3, ResolvedAt: 100},
		{ID: "b", Platform: "weibo", Text: "weibo.com/1/2", Status: "failed", ResolvedAt: 200, Error: "无法获取到微博的 id"},
	} {
		if err := h.Record(rec); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	records, total, err := h.List(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(records) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(records))
	}
	// Newest first.
	if records[0].ID != "b" || records[1].ID != "a" {
		t.Errorf("order = %s, %s", records[0].ID, records[1].ID)
	}
	if records[0].Error != "无法获取到微博的 id" {
		t.Errorf("error message lost: %+v", records[0])
	}

	records, total, err = h.List(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(records) != 1 || records[0].ID != "a" {
		t.Errorf("pagination broke: total=%d records=%+v", total, records)
	}
}

func TestHandleHistory(t *testing.T) {
	h := openTestHistory(t)
	if err := h.Record(HistoryRecord{ID: "a", Platform: "bilibili", Text: "BV1x", Status: "completed"}); err != nil {
		t.Fatal(err)
	}
	srv := New(&stubResolver{}, h)

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=10", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Records []HistoryRecord `json:"records"`
		Total   int             `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 || len(body.Records) != 1 || body.Records[0].Platform != "bilibili" {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestResolveRecordsFailure(t *testing.T) {
	// A bare text reply with no platform is the failure shape produced by the
	// message boundary; it must land in history as failed.
	reply := &message.Reply{}
	reply.AppendText("解析失败: boom")
	h := openTestHistory(t)
	srv := New(&stubResolver{reply: reply}, h)

	req := httptest.NewRequest(http.MethodPost, "/api/resolve",
		strings.NewReader(`{"text":"https://b23.tv/broken"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	records, _, err := h.List(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Status != "failed" || records[0].Error != "解析失败: boom" {
		t.Errorf("failure not recorded: %+v", records)
	}
}
