package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
)

// Song resolution goes through a community endpoint that also serves VIP
// tracks; the official API only returns trial clips without login.
const ncmSongAPI = "https://www.hhlqilongzhu.cn/api/dg_wyymusic.php?id=%s&br=7&type=json"

var (
	ncmShortRe = regexp.MustCompile(`https?://163cn\.tv/([a-zA-Z0-9]+)`)
	ncmIDRe    = regexp.MustCompile(`id=(\d+)`)
)

// NetEase parses music.163.com / 163cn.tv song links.
type NetEase struct {
	client *fetch.Client
}

// NewNetEase creates a NetEase music parser.
func NewNetEase(client *fetch.Client) *NetEase {
	return &NetEase{client: client}
}

// ParseShareText resolves a song share link into an audio result.
func (n *NetEase) ParseShareText(ctx context.Context, text string) (*VideoInfo, error) {
	target := text
	if m := ncmShortRe.FindString(text); m != "" {
		resolved, err := n.client.ResolveShortLink(ctx, m, nil)
		if err != nil {
			return nil, WrapErr("网易云短链接解析失败", err)
		}
		target = resolved
	}

	m := ncmIDRe.FindStringSubmatch(target)
	if m == nil {
		return nil, Errorf("无法获取到网易云歌曲 id")
	}
	return n.parseSongID(ctx, m[1])
}

func (n *NetEase) parseSongID(ctx context.Context, songID string) (*VideoInfo, error) {
	body, err := n.client.GetBytes(ctx, fmt.Sprintf(ncmSongAPI, songID), nil)
	if err != nil {
		return nil, WrapErr("网易云歌曲信息获取失败", err)
	}
	var payload struct {
		Title    string `json:"title"`
		Singer   string `json:"singer"`
		Cover    string `json:"cover"`
		MusicURL string `json:"music_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, WrapErr("网易云歌曲信息解析失败", err)
	}
	if payload.MusicURL == "" {
		return nil, Errorf("网易云歌曲地址获取失败")
	}

	return &VideoInfo{
		Title:    strings.TrimSpace(payload.Title),
		AudioURL: payload.MusicURL,
		CoverURL: payload.Cover,
		Author:   VideoAuthor{Name: strings.TrimSpace(payload.Singer)},
	}, nil
}
