package parser

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
)

var (
	xhsURLRe  = regexp.MustCompile(`https?://(?:xhslink\.com|(?:www\.)?xiaohongshu\.com)/[A-Za-z\d._?%&+\-=/#@]*`)
	xhsNoteRe = regexp.MustCompile(`/(?:explore|discovery/item|item)/([0-9a-fA-F]+)`)
	// The page state object ends right before the closing script tag.
	xhsStateRe = regexp.MustCompile(`window\.__INITIAL_STATE__\s*=\s*(\{.*?)</script>`)
)

// Xiaohongshu parses xiaohongshu.com note links (image galleries and video
// notes). A cookie improves reliability but is not required.
type Xiaohongshu struct {
	client *fetch.Client
	cookie string
}

// NewXiaohongshu creates a Xiaohongshu parser.
func NewXiaohongshu(client *fetch.Client, cookie string) *Xiaohongshu {
	return &Xiaohongshu{client: client, cookie: cookie}
}

// MatchURL extracts the first xiaohongshu/xhslink URL from text.
func (x *Xiaohongshu) MatchURL(text string) (string, bool) {
	m := xhsURLRe.FindString(text)
	return m, m != ""
}

// ParseShareText resolves a note link into a gallery or a video result.
// xhslink short links are expanded by one redirect hop first.
func (x *Xiaohongshu) ParseShareText(ctx context.Context, text string) (*VideoInfo, error) {
	noteURL, ok := x.MatchURL(text)
	if !ok {
		return nil, Errorf("无法获取到小红书链接")
	}
	if strings.Contains(noteURL, "xhslink.com") {
		target, err := x.client.ResolveShortLink(ctx, noteURL, x.headers())
		if err != nil {
			return nil, WrapErr("小红书短链接解析失败", err)
		}
		noteURL = target
	}

	m := xhsNoteRe.FindStringSubmatch(noteURL)
	if m == nil {
		return nil, Errorf("无法获取到小红书笔记 id")
	}
	noteID := m[1]

	body, err := x.client.GetBytes(ctx, noteURL, &fetch.Options{Headers: x.headers()})
	if err != nil {
		return nil, WrapErr("小红书页面获取失败", err)
	}
	state := xhsStateRe.FindSubmatch(body)
	if state == nil {
		return nil, Errorf("小红书页面解析失败，可能需要配置 cookie")
	}
	// The inlined state uses JS undefined where JSON wants null.
	raw := strings.ReplaceAll(string(state[1]), "undefined", "null")

	var payload struct {
		Note struct {
			NoteDetailMap map[string]struct {
				Note struct {
					Title     string `json:"title"`
					Desc      string `json:"desc"`
					Type      string `json:"type"`
					ImageList []struct {
						URLDefault string `json:"urlDefault"`
					} `json:"imageList"`
					Video struct {
						Media struct {
							Stream struct {
								H264 []struct {
									MasterURL string `json:"masterUrl"`
								} `json:"h264"`
							} `json:"stream"`
						} `json:"media"`
					} `json:"video"`
					User struct {
						UserID   string `json:"userId"`
						Nickname string `json:"nickname"`
						Avatar   string `json:"avatar"`
					} `json:"user"`
				} `json:"note"`
			} `json:"noteDetailMap"`
		} `json:"note"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, WrapErr("小红书笔记数据解析失败", err)
	}

	detail, ok := payload.Note.NoteDetailMap[noteID]
	if !ok {
		// Some pages key the map by a single entry; take it.
		for _, d := range payload.Note.NoteDetailMap {
			detail, ok = d, true
			break
		}
	}
	if !ok {
		return nil, Errorf("小红书笔记不存在或已被删除")
	}
	note := detail.Note

	title := strings.TrimSpace(note.Title)
	if note.Desc != "" {
		if title != "" {
			title += "\n"
		}
		title += strings.TrimSpace(note.Desc)
	}

	info := &VideoInfo{
		Title: title,
		Author: VideoAuthor{
			UID:    note.User.UserID,
			Name:   note.User.Nickname,
			Avatar: note.User.Avatar,
		},
		ExtraHeaders: map[string]string{"Referer": "https://www.xiaohongshu.com"},
	}
	if note.Type == "video" {
		streams := note.Video.Media.Stream.H264
		if len(streams) == 0 || streams[0].MasterURL == "" {
			return nil, Errorf("小红书视频流获取失败")
		}
		info.VideoURL = streams[0].MasterURL
		return info, nil
	}
	for _, img := range note.ImageList {
		if img.URLDefault != "" {
			info.Images = append(info.Images, img.URLDefault)
		}
	}
	if len(info.Images) == 0 {
		return nil, Errorf("小红书笔记内容为空")
	}
	return info, nil
}

func (x *Xiaohongshu) headers() map[string]string {
	h := map[string]string{
		"Referer": "https://www.xiaohongshu.com",
	}
	if x.cookie != "" {
		h["Cookie"] = x.cookie
	}
	return h
}
