package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
)

const kugouPlayAPI = "https://wwwapi.kugou.com/yy/index.php?r=play/getdata&hash=%s&album_id=%s&mid=1"

var (
	kugouURLRe   = regexp.MustCompile(`https?://[^\s]*kugou\.com[^\s]*id=[a-zA-Z0-9]+`)
	kugouHashRe  = regexp.MustCompile(`"hash"\s*:\s*"([0-9a-fA-F]{32})"`)
	kugouAlbumRe = regexp.MustCompile(`"album_id"\s*:\s*"?(\d+)"?`)
)

// KuGou parses kugou.com song share links.
type KuGou struct {
	client *fetch.Client
}

// NewKuGou creates a KuGou parser.
func NewKuGou(client *fetch.Client) *KuGou {
	return &KuGou{client: client}
}

// MatchURL extracts the first kugou share URL from text.
func (k *KuGou) MatchURL(text string) (string, bool) {
	m := kugouURLRe.FindString(text)
	return m, m != ""
}

// ParseShareText resolves a song share link into an audio result. The share
// page embeds the song hash and album id; the play API turns them into a
// stream URL.
func (k *KuGou) ParseShareText(ctx context.Context, text string) (*VideoInfo, error) {
	shareURL, ok := k.MatchURL(text)
	if !ok {
		return nil, Errorf("无法获取到酷狗链接")
	}

	page, err := k.client.GetBytes(ctx, shareURL, nil)
	if err != nil {
		return nil, WrapErr("酷狗分享页获取失败", err)
	}
	hash := kugouHashRe.FindSubmatch(page)
	if hash == nil {
		return nil, Errorf("酷狗歌曲 hash 获取失败")
	}
	albumID := ""
	if m := kugouAlbumRe.FindSubmatch(page); m != nil {
		albumID = string(m[1])
	}

	body, err := k.client.GetBytes(ctx,
		fmt.Sprintf(kugouPlayAPI, string(hash[1]), albumID),
		&fetch.Options{Headers: map[string]string{
			"Referer": "https://www.kugou.com",
			"Cookie":  "kg_mid=1",
		}})
	if err != nil {
		return nil, WrapErr("酷狗歌曲信息获取失败", err)
	}
	var payload struct {
		Status int `json:"status"`
		Data   struct {
			SongName   string `json:"song_name"`
			AudioName  string `json:"audio_name"`
			AuthorName string `json:"author_name"`
			Img        string `json:"img"`
			PlayURL    string `json:"play_url"`
			Timelength int    `json:"timelength"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, WrapErr("酷狗歌曲信息解析失败", err)
	}
	if payload.Status != 1 || payload.Data.PlayURL == "" {
		return nil, Errorf("酷狗歌曲地址获取失败，可能是版权限制")
	}

	title := payload.Data.SongName
	if title == "" {
		title = payload.Data.AudioName
	}
	return &VideoInfo{
		Title:    title,
		AudioURL: payload.Data.PlayURL,
		CoverURL: payload.Data.Img,
		Author:   VideoAuthor{Name: payload.Data.AuthorName},
		Duration: payload.Data.Timelength / 1000,
	}, nil
}
