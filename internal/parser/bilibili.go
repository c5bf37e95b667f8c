package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
)

// URL shapes recognized for bilibili, tried in declaration order. The first
// capture group is the video id, the second (when the shape defines one) is
// a part number for multi-part videos.
type biliPattern struct {
	Keyword string
	Re      *regexp.Regexp
}

var biliPatterns = []biliPattern{
	{"BV", regexp.MustCompile(`(BV[1-9a-zA-Z]{10})(?:\s)?(\d{1,3})?`)},
	{"av", regexp.MustCompile(`av(\d{6,})(?:\s)?(\d{1,3})?`)},
	{"b23", regexp.MustCompile(`https?://b23\.tv/[A-Za-z\d._?%&+\-=/#]+`)},
	{"bili2233", regexp.MustCompile(`https?://bili2233\.cn/[A-Za-z\d._?%&+\-=/#]+`)},
	{"bilibili", regexp.MustCompile(`https?://(?:space|www|live|m|t)?\.?bilibili\.com/[A-Za-z\d._?%&+\-=/#]+`)},
}

var (
	biliPathBVRe   = regexp.MustCompile(`/(BV[1-9a-zA-Z]{10})`)
	biliPathAvRe   = regexp.MustCompile(`/av(\d{6,})`)
	biliPageRe     = regexp.MustCompile(`[&?]p=(\d{1,3})`)
	biliNumericRe  = regexp.MustCompile(`/(\d+)`)
	biliReadRe     = regexp.MustCompile(`read/cv(\d+)`)
	biliFavRe      = regexp.MustCompile(`favlist\?fid=(\d+)`)
	biliInitialRe  = regexp.MustCompile(`window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`)
	biliArticleImg = regexp.MustCompile(`<img[^>]+(?:data-src|src)="([^"]+)"[^>]*>`)
)

// BiliMatch is the outcome of matching share text against the bilibili URL
// shapes.
type BiliMatch struct {
	Keyword string
	RawURL  string
	// VideoID is a bvid (BV...) or a bare av number.
	VideoID string
	// Page is the 1-based part number embedded next to a bare id, "" if none.
	Page string
}

// MatchBilibili tries the bilibili URL shapes in order against text.
func MatchBilibili(text string) (*BiliMatch, bool) {
	for _, p := range biliPatterns {
		m := p.Re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		match := &BiliMatch{Keyword: p.Keyword, RawURL: m[0]}
		if len(m) > 2 {
			match.VideoID, match.Page = m[1], m[2]
		}
		return match, true
	}
	return nil, false
}

// ExtractVideoID pulls a bvid or av id out of a full bilibili URL.
func ExtractVideoID(rawURL string) (id string, isAv bool, ok bool) {
	if m := biliPathBVRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], false, true
	}
	if m := biliPathAvRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], true, true
	}
	return "", false, false
}

// ExtractPage reads an explicit ?p= part number from a URL, 0 when absent.
func ExtractPage(rawURL string) int {
	if m := biliPageRe.FindStringSubmatch(rawURL); m != nil {
		var p int
		fmt.Sscanf(m[1], "%d", &p)
		return p
	}
	return 0
}

// ClampPage wraps a 0-based part index into range modulo the page count
// instead of rejecting out-of-range requests.
func ClampPage(requested, pages int) int {
	if pages <= 0 {
		return 0
	}
	idx := requested % pages
	if idx < 0 {
		idx += pages
	}
	return idx
}

// BiliPage is one part of a multi-part video.
type BiliPage struct {
	Cid        int64  `json:"cid"`
	Part       string `json:"part"`
	Duration   int    `json:"duration"`
	FirstFrame string `json:"first_frame"`
}

// BiliStat carries the engagement counters shown in replies.
type BiliStat struct {
	Like     int64 `json:"like"`
	Coin     int64 `json:"coin"`
	Favorite int64 `json:"favorite"`
	Share    int64 `json:"share"`
	Reply    int64 `json:"reply"`
	View     int64 `json:"view"`
	Danmaku  int64 `json:"danmaku"`
}

// BiliVideo is the metadata of one video.
type BiliVideo struct {
	Bvid     string     `json:"bvid"`
	Aid      int64      `json:"aid"`
	Title    string     `json:"title"`
	Cover    string     `json:"pic"`
	Desc     string     `json:"desc"`
	Duration int        `json:"duration"`
	Pages    []BiliPage `json:"pages"`
	Owner    struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
		Face string `json:"face"`
	} `json:"owner"`
	Stat BiliStat `json:"stat"`
}

// Bilibili parses bilibili video, live, opus, article and favlist links.
type Bilibili struct {
	client *fetch.Client
	cookie string
}

// NewBilibili creates a Bilibili parser. cookie may be empty; some features
// (AI summary) need it.
func NewBilibili(client *fetch.Client, cookie string) *Bilibili {
	return &Bilibili{client: client, cookie: cookie}
}

// HasCredential reports whether a cookie is configured.
func (b *Bilibili) HasCredential() bool { return b.cookie != "" }

// Headers returns the header set required by bilibili CDNs and APIs.
func (b *Bilibili) Headers() map[string]string {
	h := map[string]string{
		"Referer": "https://www.bilibili.com",
	}
	if b.cookie != "" {
		h["Cookie"] = b.cookie
	}
	return h
}

// ResolveShortLink expands a b23.tv / bili2233.cn link by one redirect hop.
func (b *Bilibili) ResolveShortLink(ctx context.Context, shortURL string) (string, error) {
	target, err := b.client.ResolveShortLink(ctx, shortURL, b.Headers())
	if err != nil {
		return "", WrapErr("短链接解析失败", err)
	}
	return target, nil
}

func (b *Bilibili) getJSON(ctx context.Context, api string, out any) error {
	body, err := b.client.GetBytes(ctx, api, &fetch.Options{Headers: b.Headers()})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// VideoInfo fetches the view metadata for a bvid or av id.
func (b *Bilibili) VideoInfo(ctx context.Context, id string, isAv bool) (*BiliVideo, error) {
	api := "https://api.bilibili.com/x/web-interface/view?bvid=" + url.QueryEscape(id)
	if isAv {
		api = "https://api.bilibili.com/x/web-interface/view?aid=" + url.QueryEscape(id)
	}
	var payload struct {
		Code    int       `json:"code"`
		Message string    `json:"message"`
		Data    BiliVideo `json:"data"`
	}
	if err := b.getJSON(ctx, api, &payload); err != nil {
		return nil, WrapErr("哔哩哔哩视频信息获取失败", err)
	}
	if payload.Code != 0 {
		return nil, Errorf("哔哩哔哩视频信息获取失败: %s (code=%d)", payload.Message, payload.Code)
	}
	return &payload.Data, nil
}

// PlayStreams returns the best dash video and audio stream URLs for one part.
func (b *Bilibili) PlayStreams(ctx context.Context, bvid string, cid int64) (videoURL, audioURL string, err error) {
	api := fmt.Sprintf(
		"https://api.bilibili.com/x/player/playurl?bvid=%s&cid=%d&fnval=16&fnver=0&fourk=1",
		url.QueryEscape(bvid), cid)
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Dash struct {
				Video []struct {
					BaseURL   string `json:"baseUrl"`
					Bandwidth int64  `json:"bandwidth"`
				} `json:"video"`
				Audio []struct {
					BaseURL   string `json:"baseUrl"`
					Bandwidth int64  `json:"bandwidth"`
				} `json:"audio"`
			} `json:"dash"`
		} `json:"data"`
	}
	if err := b.getJSON(ctx, api, &payload); err != nil {
		return "", "", WrapErr("哔哩哔哩视频流获取失败", err)
	}
	if payload.Code != 0 {
		return "", "", Errorf("哔哩哔哩视频流获取失败: %s (code=%d)", payload.Message, payload.Code)
	}

	// Pick the highest-bandwidth representation of each list.
	var bestV, bestA string
	var vBw, aBw int64 = -1, -1
	for _, v := range payload.Data.Dash.Video {
		if v.Bandwidth > vBw {
			bestV, vBw = v.BaseURL, v.Bandwidth
		}
	}
	for _, a := range payload.Data.Dash.Audio {
		if a.Bandwidth > aBw {
			bestA, aBw = a.BaseURL, a.Bandwidth
		}
	}
	if bestV == "" || bestA == "" {
		return "", "", Errorf("未找到视频或音频流")
	}
	return bestV, bestA, nil
}

// Online returns the watching-now counters for one part.
func (b *Bilibili) Online(ctx context.Context, bvid string, cid int64) (total, webCount string, err error) {
	api := fmt.Sprintf("https://api.bilibili.com/x/player/online/total?bvid=%s&cid=%d",
		url.QueryEscape(bvid), cid)
	var payload struct {
		Code int `json:"code"`
		Data struct {
			Total string `json:"total"`
			Count string `json:"count"`
		} `json:"data"`
	}
	if err := b.getJSON(ctx, api, &payload); err != nil || payload.Code != 0 {
		return "", "", Errorf("在线人数获取失败")
	}
	return payload.Data.Total, payload.Data.Count, nil
}

// AISummary fetches the AI-generated summary for one part. It needs a
// configured cookie; callers must check HasCredential first.
func (b *Bilibili) AISummary(ctx context.Context, bvid string, cid, upMid int64) (string, error) {
	api := fmt.Sprintf(
		"https://api.bilibili.com/x/web-interface/view/conclusion/get?bvid=%s&cid=%d&up_mid=%d",
		url.QueryEscape(bvid), cid, upMid)
	var payload struct {
		Code int `json:"code"`
		Data struct {
			ModelResult struct {
				Summary string `json:"summary"`
			} `json:"model_result"`
		} `json:"data"`
	}
	if err := b.getJSON(ctx, api, &payload); err != nil || payload.Code != 0 {
		return "", Errorf("AI 总结获取失败")
	}
	return strings.TrimSpace(payload.Data.ModelResult.Summary), nil
}

// ParseLive returns title, cover and keyframe snapshot of a live room.
func (b *Bilibili) ParseLive(ctx context.Context, roomID int64) (title, cover, keyframe string, err error) {
	api := fmt.Sprintf("https://api.live.bilibili.com/room/v1/Room/get_info?room_id=%d", roomID)
	var payload struct {
		Code int `json:"code"`
		Data struct {
			Title     string `json:"title"`
			UserCover string `json:"user_cover"`
			Keyframe  string `json:"keyframe"`
		} `json:"data"`
	}
	if err := b.getJSON(ctx, api, &payload); err != nil {
		return "", "", "", WrapErr("直播间信息获取失败", err)
	}
	if payload.Code != 0 {
		return "", "", "", Errorf("未找到直播间信息")
	}
	return payload.Data.Title, payload.Data.UserCover, payload.Data.Keyframe, nil
}

// ParseOpus returns the image URLs and text of a moment/opus post.
func (b *Bilibili) ParseOpus(ctx context.Context, opusID int64) (imgURLs []string, text string, err error) {
	api := fmt.Sprintf(
		"https://api.bilibili.com/x/polymer/web-dynamic/v1/detail?timezone_offset=-480&id=%d&features=itemOpusStyle",
		opusID)
	var payload struct {
		Code int `json:"code"`
		Data struct {
			Item struct {
				Modules struct {
					ModuleDynamic struct {
						Major struct {
							Opus struct {
								Summary struct {
									Text string `json:"text"`
								} `json:"summary"`
								Pics []struct {
									URL string `json:"url"`
								} `json:"pics"`
							} `json:"opus"`
						} `json:"major"`
					} `json:"module_dynamic"`
				} `json:"modules"`
			} `json:"item"`
		} `json:"data"`
	}
	if err := b.getJSON(ctx, api, &payload); err != nil {
		return nil, "", WrapErr("动态获取失败", err)
	}
	if payload.Code != 0 {
		return nil, "", Errorf("动态获取失败 (code=%d)", payload.Code)
	}
	opus := payload.Data.Item.Modules.ModuleDynamic.Major.Opus
	for _, p := range opus.Pics {
		imgURLs = append(imgURLs, p.URL)
	}
	if opus.Summary.Text == "" && len(imgURLs) == 0 {
		return nil, "", Errorf("动态内容为空")
	}
	return imgURLs, opus.Summary.Text, nil
}

// ParseRead returns the interleaved text blocks and image URLs of an article.
// texts holds the blocks in display order, with "" marking the position of
// the next image in imgURLs; the caller zips downloaded images back into the
// empty slots.
func (b *Bilibili) ParseRead(ctx context.Context, readID int64) (texts []string, imgURLs []string, err error) {
	pageURL := fmt.Sprintf("https://www.bilibili.com/read/cv%d", readID)
	body, err := b.client.GetBytes(ctx, pageURL, &fetch.Options{Headers: b.Headers()})
	if err != nil {
		return nil, nil, WrapErr("专栏获取失败", err)
	}

	m := biliInitialRe.FindSubmatch(body)
	if m == nil {
		return nil, nil, Errorf("专栏内容解析失败")
	}
	var state struct {
		ReadInfo struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"readInfo"`
	}
	if err := json.Unmarshal(m[1], &state); err != nil {
		return nil, nil, WrapErr("专栏内容解析失败", err)
	}
	content := state.ReadInfo.Content
	if content == "" {
		return nil, nil, Errorf("专栏内容为空")
	}

	if state.ReadInfo.Title != "" {
		texts = append(texts, state.ReadInfo.Title)
	}
	// Walk the article body, keeping text blocks and image placeholders in
	// their original interleaved order.
	last := 0
	for _, loc := range biliArticleImg.FindAllSubmatchIndex([]byte(content), -1) {
		if txt := strings.TrimSpace(StripTags(content[last:loc[0]])); txt != "" {
			texts = append(texts, txt)
		}
		src := content[loc[2]:loc[3]]
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		imgURLs = append(imgURLs, src)
		texts = append(texts, "")
		last = loc[1]
	}
	if txt := strings.TrimSpace(StripTags(content[last:])); txt != "" {
		texts = append(texts, txt)
	}
	if len(texts) == 0 && len(imgURLs) == 0 {
		return nil, nil, Errorf("专栏内容为空")
	}
	return texts, imgURLs, nil
}

// FavItem is one entry of a favorites folder.
type FavItem struct {
	Title string
	Cover string
	Intro string
	Upper string
	Bvid  string
}

// ParseFavlist walks a favorites folder page by page and returns its items.
func (b *Bilibili) ParseFavlist(ctx context.Context, favID int64) ([]FavItem, error) {
	var items []FavItem
	for pn := 1; ; pn++ {
		api := fmt.Sprintf(
			"https://api.bilibili.com/x/v3/fav/resource/list?media_id=%d&pn=%d&ps=20&platform=web",
			favID, pn)
		var payload struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    struct {
				HasMore bool `json:"has_more"`
				Medias  []struct {
					Title string `json:"title"`
					Cover string `json:"cover"`
					Intro string `json:"intro"`
					Bvid  string `json:"bvid"`
					Upper struct {
						Name string `json:"name"`
					} `json:"upper"`
				} `json:"medias"`
			} `json:"data"`
		}
		if err := b.getJSON(ctx, api, &payload); err != nil {
			return nil, WrapErr("收藏夹获取失败", err)
		}
		if payload.Code != 0 {
			return nil, Errorf("收藏夹获取失败: %s (code=%d)", payload.Message, payload.Code)
		}
		for _, m := range payload.Data.Medias {
			items = append(items, FavItem{
				Title: m.Title,
				Cover: m.Cover,
				Intro: m.Intro,
				Upper: m.Upper.Name,
				Bvid:  m.Bvid,
			})
		}
		if !payload.Data.HasMore || len(payload.Data.Medias) == 0 || pn >= 5 {
			break
		}
	}
	if len(items) == 0 {
		return nil, Errorf("收藏夹为空")
	}
	return items, nil
}

// ExtractNumericID pulls the first numeric path id (live room, opus) out of
// a URL.
func ExtractNumericID(rawURL string) (int64, bool) {
	m := biliNumericRe.FindStringSubmatch(rawURL)
	if m == nil {
		return 0, false
	}
	var id int64
	fmt.Sscanf(m[1], "%d", &id)
	return id, true
}

// ExtractReadID pulls the cv id of an article URL.
func ExtractReadID(rawURL string) (int64, bool) {
	m := biliReadRe.FindStringSubmatch(rawURL)
	if m == nil {
		return 0, false
	}
	var id int64
	fmt.Sscanf(m[1], "%d", &id)
	return id, true
}

// ExtractFavID pulls the fid of a favlist URL.
func ExtractFavID(rawURL string) (int64, bool) {
	m := biliFavRe.FindStringSubmatch(rawURL)
	if m == nil {
		return 0, false
	}
	var id int64
	fmt.Sscanf(m[1], "%d", &id)
	return id, true
}

// FormatStat renders the engagement counters, converting values over 10000
// into 万 units.
func FormatStat(stat BiliStat) string {
	entries := []struct {
		label string
		value int64
	}{
		{"点赞", stat.Like},
		{"硬币", stat.Coin},
		{"收藏", stat.Favorite},
		{"分享", stat.Share},
		{"评论", stat.Reply},
		{"总播放量", stat.View},
		{"弹幕数量", stat.Danmaku},
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		v := fmt.Sprintf("%d", e.value)
		if e.value > 10000 {
			v = fmt.Sprintf("%.1f万", float64(e.value)/10000)
		}
		parts = append(parts, e.label+": "+v)
	}
	return strings.Join(parts, " | ")
}
