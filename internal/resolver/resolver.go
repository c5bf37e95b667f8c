// Package resolver drives the pipeline from inbound chat text to an outgoing
// reply: platform dispatch, parsing, concurrent downloads, merge/transcode
// and the size/duration policies.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/cache"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/config"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/downloader"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/ffmpeg"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/fetch"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/message"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/parser"
)

// MediaDownloader is the downloader surface the resolver depends on.
type MediaDownloader interface {
	Download(ctx context.Context, req downloader.Request) (string, error)
	DownloadImages(ctx context.Context, urls []string, headers map[string]string) []string
}

// Merger is the transcoder surface the resolver depends on.
type Merger interface {
	MergeAV(ctx context.Context, videoPath, audioPath, outputPath string) error
	MergeAVH264(ctx context.Context, videoPath, audioPath, outputPath string) error
	ReEncodeH264(ctx context.Context, videoPath string) (string, error)
}

type handler struct {
	platform string
	keywords []string
	resolve  func(ctx context.Context, text string) (*message.Reply, error)
}

// Resolver owns the platform parsers and the per-message pipeline.
type Resolver struct {
	cfg   *config.Config
	dl    MediaDownloader
	ff    Merger
	store *cache.Cache

	bilibili    *parser.Bilibili
	weibo       *parser.Weibo
	xiaohongshu *parser.Xiaohongshu
	netease     *parser.NetEase
	kugou       *parser.KuGou
	tiktok      *parser.TikTok
	youtube     *parser.YouTube

	handlers []handler
}

// New wires the full pipeline from configuration.
func New(cfg *config.Config) (*Resolver, error) {
	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	client := fetch.New("")
	dl := downloader.New(store, client)
	return NewWith(cfg, store, dl, ffmpeg.New(""), client)
}

// NewWith wires a Resolver from explicit components, used by tests.
func NewWith(cfg *config.Config, store *cache.Cache, dl MediaDownloader, ff Merger, client *fetch.Client) (*Resolver, error) {
	yt, err := parser.NewYouTube(cfg.EffectiveProxy(), cfg.YtbCookie)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		cfg:         cfg,
		dl:          dl,
		ff:          ff,
		store:       store,
		bilibili:    parser.NewBilibili(client, cfg.BiliCookie),
		weibo:       parser.NewWeibo(client),
		xiaohongshu: parser.NewXiaohongshu(client, cfg.XhsCookie),
		netease:     parser.NewNetEase(client),
		kugou:       parser.NewKuGou(client),
		tiktok:      parser.NewTikTok(client, cfg.EffectiveProxy()),
		youtube:     yt,
	}
	r.handlers = []handler{
		{"bilibili", []string{"bilibili.com", "b23.tv", "bili2233", "BV", "av"}, r.resolveBilibili},
		{"weibo", []string{"weibo.com", "m.weibo.cn"}, r.resolveWeibo},
		{"xiaohongshu", []string{"xiaohongshu.com", "xhslink.com"}, r.resolveXiaohongshu},
		{"ncm", []string{"music.163.com", "163cn.tv"}, r.resolveNetEase},
		{"kugou", []string{"kugou.com"}, r.resolveKuGou},
		{"tiktok", []string{"tiktok.com"}, r.resolveTikTok},
		{"youtube", []string{"youtube.com", "youtu.be"}, r.resolveYouTube},
	}
	return r, nil
}

// SetProgressFunc installs a transfer-progress callback when the underlying
// downloader supports one. Injected test doubles ignore it.
func (r *Resolver) SetProgressFunc(fn func(downloader.Progress)) {
	if d, ok := r.dl.(*downloader.Downloader); ok {
		d.OnProgress = fn
	}
}

// SetSkipFunc installs a callback for gallery images dropped during
// resolution. Injected test doubles ignore it.
func (r *Resolver) SetSkipFunc(fn func(url string, err error)) {
	if d, ok := r.dl.(*downloader.Downloader); ok {
		d.OnSkip = fn
	}
}

func (r *Resolver) prefix(platform string) string {
	name := map[string]string{
		"bilibili":    "哔哩哔哩",
		"weibo":       "微博",
		"xiaohongshu": "小红书",
		"ncm":         "网易云",
		"kugou":       "酷狗音乐",
		"tiktok":      "TikTok",
		"youtube":     "油管",
	}[platform]
	return fmt.Sprintf("%s解析 | %s - ", r.cfg.Nickname, name)
}

// Resolve matches text against every enabled platform's keyword set and runs
// the first matching handler. (nil, nil) means no platform claimed the text;
// not every message is a candidate.
func (r *Resolver) Resolve(ctx context.Context, text string) (*message.Reply, error) {
	for _, h := range r.handlers {
		if !r.cfg.PlatformEnabled(h.platform) {
			continue
		}
		for _, kw := range h.keywords {
			if strings.Contains(text, kw) {
				return h.resolve(ctx, text)
			}
		}
	}
	return nil, nil
}

// ResolveMessage is the transport-boundary adapter: every parse or download
// failure becomes one user-visible text reply instead of an error.
func (r *Resolver) ResolveMessage(ctx context.Context, text string) *message.Reply {
	reply, err := r.Resolve(ctx, text)
	if err == nil {
		return reply
	}
	var pe *parser.ParseError
	var de *downloader.DownloadError
	switch {
	case errors.As(err, &pe):
		return &message.Reply{Segments: []message.Segment{message.Text(pe.Message)}}
	case errors.As(err, &de):
		return &message.Reply{Segments: []message.Segment{message.Text("资源下载失败，请稍后重试")}}
	default:
		return &message.Reply{Segments: []message.Segment{message.Text("解析失败: " + err.Error())}}
	}
}

// durationExceeded reports whether a video is over the configured ceiling.
func (r *Resolver) durationExceeded(seconds int) bool {
	return seconds > r.cfg.DurationLimit
}

func (r *Resolver) durationWarning(seconds int) string {
	return fmt.Sprintf("⚠️ 当前视频时长 %d 分钟，超过管理员设置的最长时间 %d 分钟!",
		seconds/60, r.cfg.DurationLimit/60)
}

// videoSegment applies the size policy to a downloaded video file: zero
// bytes is a failure, oversized files are delivered as plain files.
func (r *Resolver) videoSegment(path string) message.Segment {
	size := downloader.FileSize(path)
	if size == 0 {
		return message.Text("获取视频失败")
	}
	if size > int64(r.cfg.VideoMaxMB)<<20 {
		return message.File(path, filepath.Base(path))
	}
	return message.Video(path)
}

// SendFunc delivers one segment to the chat transport.
type SendFunc func(seg message.Segment) error

// IsMissingThumbnail recognizes the upload-rejection signature emitted when
// the chat platform fails to produce a video thumbnail. Only this signature
// triggers the re-encode fallback.
func IsMissingThumbnail(err error) bool {
	return err != nil && strings.HasSuffix(err.Error(), ".png'")
}

// DeliverVideo sends a video segment through send, falling back to one H.264
// re-encode and a single retry when the upload fails with the
// missing-thumbnail signature. Any other upload error propagates.
func (r *Resolver) DeliverVideo(ctx context.Context, path string, send SendFunc) error {
	seg := r.videoSegment(path)
	if seg.Kind != message.KindVideo {
		return send(seg)
	}
	err := send(seg)
	if err == nil || !IsMissingThumbnail(err) {
		return err
	}
	h264Path, encErr := r.ff.ReEncodeH264(ctx, path)
	if encErr != nil {
		return encErr
	}
	return send(r.videoSegment(h264Path))
}

// downloadVideoResult drives the common single-video flow: duration policy,
// body download, size policy.
func (r *Resolver) downloadVideoResult(ctx context.Context, reply *message.Reply, info *parser.VideoInfo) error {
	if info.Duration > 0 && r.durationExceeded(info.Duration) {
		reply.AppendText(r.durationWarning(info.Duration))
		return nil
	}
	path, err := r.dl.Download(ctx, downloader.Request{
		URL:     info.VideoURL,
		Kind:    downloader.KindVideo,
		Headers: info.ExtraHeaders,
	})
	if err != nil {
		return err
	}
	reply.Append(r.videoSegment(path))
	return nil
}
