package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
)

const weiboStatusAPI = "https://m.weibo.cn/statuses/show?id=%s"

// Session cookie accepted by the mobile endpoint without login.
const weiboGuestCookie = "_T_WM=40835919903; WEIBOCN_FROM=1110006030; MLOGIN=0; XSRF-TOKEN=4399c8"

var (
	weiboFidRe      = regexp.MustCompile(`https://video\.weibo\.com/show\?fid=(\d+:\d+)`)
	weiboDetailRe   = regexp.MustCompile(`m\.weibo\.cn(?:/detail|/status)?/([A-Za-z\d]+)`)
	weiboMidRe      = regexp.MustCompile(`mid=([A-Za-z\d]+)`)
	weiboUserPostRe = regexp.MustCompile(`weibo\.com/[A-Za-z\d]+/([A-Za-z\d]+)`)
)

// Weibo parses weibo.com / m.weibo.cn share links.
type Weibo struct {
	client *fetch.Client
}

// NewWeibo creates a Weibo parser.
func NewWeibo(client *fetch.Client) *Weibo {
	return &Weibo{client: client}
}

// ParseShareText resolves a weibo share link. The post id is recovered by
// three strategies tried in order: numeric id in the path, a mid= query
// parameter decoded through the base62 transform, and a user/post path pair.
func (w *Weibo) ParseShareText(ctx context.Context, text string) (*VideoInfo, error) {
	if m := weiboFidRe.FindStringSubmatch(text); m != nil {
		return w.parseFid(ctx, m[1])
	}

	var weiboID string
	switch {
	case weiboDetailRe.MatchString(text):
		weiboID = weiboDetailRe.FindStringSubmatch(text)[1]
	case weiboMidRe.MatchString(text):
		weiboID = MidToID(weiboMidRe.FindStringSubmatch(text)[1])
	case weiboUserPostRe.MatchString(text):
		weiboID = weiboUserPostRe.FindStringSubmatch(text)[1]
	default:
		return nil, Errorf("无法获取到微博的 id")
	}
	return w.parseWeiboID(ctx, weiboID)
}

// parseFid resolves a video.weibo.com show link via the play component API.
func (w *Weibo) parseFid(ctx context.Context, fid string) (*VideoInfo, error) {
	reqURL := fmt.Sprintf("https://h5.video.weibo.com/api/component?page=/show/%s", fid)
	form := `data={"Component_Play_Playinfo":{"oid":"` + fid + `"}}`
	body, err := w.client.PostForm(ctx, reqURL, form, map[string]string{
		"Referer": fmt.Sprintf("https://h5.video.weibo.com/show/%s", fid),
	})
	if err != nil {
		return nil, WrapErr("微博视频信息获取失败", err)
	}

	var payload struct {
		Data struct {
			PlayInfo struct {
				Title      string            `json:"title"`
				Author     string            `json:"author"`
				Avatar     string            `json:"avatar"`
				CoverImage string          `json:"cover_image"`
				StreamURL  string          `json:"stream_url"`
				URLs       json.RawMessage `json:"urls"`
				User       struct {
					ID int64 `json:"id"`
				} `json:"user"`
			} `json:"Component_Play_Playinfo"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, WrapErr("微博视频信息解析失败", err)
	}

	info := payload.Data.PlayInfo
	// stream_url is the lowest bitrate; urls carries the ladder with the
	// best rendition first. The ladder order lives in the JSON key order, so
	// it must be read without going through a map.
	videoURL := info.StreamURL
	if u := firstJSONValue(info.URLs); u != "" {
		videoURL = "https:" + u
	}
	if videoURL == "" {
		return nil, Errorf("微博视频地址获取失败")
	}

	return &VideoInfo{
		Title:    info.Title,
		VideoURL: videoURL,
		CoverURL: "https:" + info.CoverImage,
		Author: VideoAuthor{
			UID:    strconv.FormatInt(info.User.ID, 10),
			Name:   info.Author,
			Avatar: "https:" + info.Avatar,
		},
	}, nil
}

// parseWeiboID fetches one post by id and normalizes text, gallery and video.
func (w *Weibo) parseWeiboID(ctx context.Context, weiboID string) (*VideoInfo, error) {
	headers := map[string]string{
		"accept":  "application/json",
		"cookie":  weiboGuestCookie,
		"Referer": fmt.Sprintf("https://m.weibo.cn/detail/%s", weiboID),
	}
	resp, err := w.client.Get(ctx, fmt.Sprintf(weiboStatusAPI, weiboID), &fetch.Options{Headers: headers})
	if err != nil {
		return nil, WrapErr("获取微博数据失败", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return nil, Errorf("获取微博数据失败 content-type 不是 application/json")
	}

	var payload struct {
		Data struct {
			Text        string `json:"text"`
			StatusTitle string `json:"status_title"`
			Source      string `json:"source"`
			RegionName  string `json:"region_name"`
			Pics        []struct {
				Large struct {
					URL string `json:"url"`
				} `json:"large"`
			} `json:"pics"`
			PageInfo struct {
				URLs map[string]string `json:"urls"`
			} `json:"page_info"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, WrapErr("微博数据解析失败", err)
	}
	data := payload.Data

	images := make([]string, 0, len(data.Pics))
	for _, p := range data.Pics {
		images = append(images, p.Large.URL)
	}

	// 720p first, HD as fallback
	videoURL := data.PageInfo.URLs["mp4_720p_mp4"]
	if videoURL == "" {
		videoURL = data.PageInfo.URLs["mp4_hd_mp4"]
	}

	title := StripTags(data.Text)
	if data.StatusTitle != "" || data.RegionName != "" {
		title = fmt.Sprintf("%s\n%s\n%s\t%s", title, data.StatusTitle, data.Source, data.RegionName)
	}

	return &VideoInfo{
		Title:    title,
		VideoURL: videoURL,
		Images:   images,
		Author:   VideoAuthor{Name: data.Source},
		ExtraHeaders: map[string]string{
			"accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8," +
				"application/signed-exchange;v=b3;q=0.9",
			"referer": "https://weibo.com/",
		},
	}, nil
}

// firstJSONValue returns the string value of the first key of a JSON object,
// preserving the wire order that a map decode would randomize.
func firstJSONValue(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	t, err := dec.Token()
	if err != nil || t != json.Delim('{') {
		return ""
	}
	if !dec.More() {
		return ""
	}
	if _, err := dec.Token(); err != nil {
		return ""
	}
	var v string
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	return v
}

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func base62Encode(n uint64) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{base62Alphabet[n%62]}, b...)
		n /= 62
	}
	return string(b)
}

// MidToID converts a weibo mid to the canonical post id. The digit string is
// split into 7-digit chunks from the least-significant end; each chunk is
// base62-encoded and, except for the most significant one, left-padded with
// zeros to 4 characters; the chunks are reassembled most-significant first.
// This bijection is the only way to address posts shared via mid=.
func MidToID(mid string) string {
	reversed := reverse(mid)
	size := (len(reversed) + 6) / 7

	chunks := make([]string, 0, size)
	for i := 0; i < size; i++ {
		end := (i + 1) * 7
		if end > len(reversed) {
			end = len(reversed)
		}
		chunk := reverse(reversed[i*7 : end])
		n, err := strconv.ParseUint(chunk, 10, 64)
		if err != nil {
			return mid
		}
		enc := base62Encode(n)
		if i < size-1 && len(enc) < 4 {
			enc = strings.Repeat("0", 4-len(enc)) + enc
		}
		chunks = append(chunks, enc)
	}

	var sb strings.Builder
	for i := len(chunks) - 1; i >= 0; i-- {
		sb.WriteString(chunks[i])
	}
	return sb.String()
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
