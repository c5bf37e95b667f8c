package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
)

const tiktokFeedAPI = "https://api16-normal-c-useast1a.tiktokv.com/aweme/v1/feed/?aweme_id=%s"

var (
	tiktokURLRe = regexp.MustCompile(`https?://(www|vt|vm)\.tiktok\.com/[A-Za-z\d._?%&+\-=/#@]*`)
	tiktokIDRe  = regexp.MustCompile(`/video/(\d+)`)
)

// TikTok parses tiktok.com share links. All requests honor the configured
// proxy since the platform is unreachable from domestic networks.
type TikTok struct {
	client *fetch.Client
	proxy  string
}

// NewTikTok creates a TikTok parser.
func NewTikTok(client *fetch.Client, proxy string) *TikTok {
	return &TikTok{client: client, proxy: proxy}
}

// MatchURL extracts the first tiktok URL from text and reports whether it is
// a vt/vm short link.
func (t *TikTok) MatchURL(text string) (rawURL string, short bool, ok bool) {
	m := tiktokURLRe.FindStringSubmatch(text)
	if m == nil {
		return "", false, false
	}
	return m[0], m[1] == "vt" || m[1] == "vm", true
}

// ParseShareText resolves a share link into a video result. Short links get
// one redirect hop before the id is extracted.
func (t *TikTok) ParseShareText(ctx context.Context, text string) (*VideoInfo, error) {
	rawURL, short, ok := t.MatchURL(text)
	if !ok {
		return nil, Errorf("无法获取到 TikTok 链接")
	}
	if short {
		target, err := t.client.ResolveShortLink(ctx, rawURL, nil)
		if err != nil {
			return nil, WrapErr("TikTok 短链接解析失败", err)
		}
		rawURL = target
	}

	m := tiktokIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, Errorf("无法获取到 TikTok 视频 id")
	}
	return t.parseAwemeID(ctx, m[1])
}

func (t *TikTok) parseAwemeID(ctx context.Context, awemeID string) (*VideoInfo, error) {
	body, err := t.client.GetBytes(ctx, fmt.Sprintf(tiktokFeedAPI, awemeID), &fetch.Options{Proxy: t.proxy})
	if err != nil {
		return nil, WrapErr("TikTok 视频信息获取失败", err)
	}
	var payload struct {
		AwemeList []struct {
			Desc   string `json:"desc"`
			Author struct {
				UID      string `json:"uid"`
				Nickname string `json:"nickname"`
				Avatar   struct {
					URLList []string `json:"url_list"`
				} `json:"avatar_thumb"`
			} `json:"author"`
			Video struct {
				PlayAddr struct {
					URLList []string `json:"url_list"`
				} `json:"play_addr"`
				Cover struct {
					URLList []string `json:"url_list"`
				} `json:"cover"`
				Duration int `json:"duration"`
			} `json:"video"`
		} `json:"aweme_list"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, WrapErr("TikTok 视频信息解析失败", err)
	}
	if len(payload.AwemeList) == 0 {
		return nil, Errorf("TikTok 视频不存在或已被删除")
	}
	item := payload.AwemeList[0]
	if len(item.Video.PlayAddr.URLList) == 0 {
		return nil, Errorf("TikTok 视频地址获取失败")
	}

	info := &VideoInfo{
		Title:    strings.TrimSpace(item.Desc),
		VideoURL: item.Video.PlayAddr.URLList[0],
		Duration: item.Video.Duration / 1000,
		Author: VideoAuthor{
			UID:  item.Author.UID,
			Name: item.Author.Nickname,
		},
	}
	if len(item.Video.Cover.URLList) > 0 {
		info.CoverURL = item.Video.Cover.URLList[0]
	}
	if len(item.Author.Avatar.URLList) > 0 {
		info.Author.Avatar = item.Author.Avatar.URLList[0]
	}
	return info, nil
}
