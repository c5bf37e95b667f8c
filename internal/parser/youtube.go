package parser

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/kkdai/youtube/v2"
)

var youtubeURLRe = regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:youtube\.com|youtu\.be)/[A-Za-z\d._?%&+\-=/#]*`)

// YouTube parses youtube.com / youtu.be links through the innertube client.
// It returns separate best video-only and audio streams; the caller downloads
// both and muxes them.
type YouTube struct {
	client *youtube.Client
}

// NewYouTube creates a YouTube parser. proxy and cookie may be empty.
func NewYouTube(proxy, cookie string) (*YouTube, error) {
	transport := &http.Transport{}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	var rt http.RoundTripper = transport
	if cookie != "" {
		rt = &cookieTransport{cookie: cookie, next: transport}
	}
	return &YouTube{
		client: &youtube.Client{
			HTTPClient: &http.Client{Transport: rt, Timeout: 2 * time.Minute},
		},
	}, nil
}

type cookieTransport struct {
	cookie string
	next   http.RoundTripper
}

func (t *cookieTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Cookie", t.cookie)
	return t.next.RoundTrip(req)
}

// MatchURL extracts the first youtube URL from text.
func (y *YouTube) MatchURL(text string) (string, bool) {
	m := youtubeURLRe.FindString(text)
	return m, m != ""
}

// ParseShareText resolves a video link into a dual-stream result.
func (y *YouTube) ParseShareText(ctx context.Context, text string) (*VideoInfo, error) {
	rawURL, ok := y.MatchURL(text)
	if !ok {
		return nil, Errorf("无法获取到油管链接")
	}

	video, err := y.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, WrapErr("油管视频信息获取失败", err)
	}

	videoFormat, audioFormat := bestFormats(video.Formats)
	if videoFormat == nil || audioFormat == nil {
		return nil, Errorf("油管视频流获取失败")
	}
	videoURL, err := y.client.GetStreamURLContext(ctx, video, videoFormat)
	if err != nil {
		return nil, WrapErr("油管视频流地址获取失败", err)
	}
	audioURL, err := y.client.GetStreamURLContext(ctx, video, audioFormat)
	if err != nil {
		return nil, WrapErr("油管音频流地址获取失败", err)
	}

	info := &VideoInfo{
		Title:    video.Title,
		VideoURL: videoURL,
		AudioURL: audioURL,
		Author:   VideoAuthor{Name: video.Author},
		Duration: int(video.Duration / time.Second),
	}
	if len(video.Thumbnails) > 0 {
		info.CoverURL = video.Thumbnails[len(video.Thumbnails)-1].URL
	}
	return info, nil
}

// bestFormats picks the highest-bitrate video-only and audio-only formats.
func bestFormats(formats youtube.FormatList) (videoFormat, audioFormat *youtube.Format) {
	var vBitrate, aBitrate int
	for i := range formats {
		f := &formats[i]
		switch {
		case f.QualityLabel != "" && f.AudioChannels == 0:
			if f.Bitrate > vBitrate {
				videoFormat, vBitrate = f, f.Bitrate
			}
		case f.QualityLabel == "" && f.AudioChannels > 0:
			if f.Bitrate > aBitrate {
				audioFormat, aBitrate = f, f.Bitrate
			}
		}
	}
	return videoFormat, audioFormat
}
