package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/downloader"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/message"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/parser"
)

// resolveBilibili handles every bilibili URL shape: plain video ids, short
// links, live rooms, moments, articles and favorites folders.
func (r *Resolver) resolveBilibili(ctx context.Context, text string) (*message.Reply, error) {
	match, ok := parser.MatchBilibili(text)
	if !ok {
		return nil, nil
	}

	rawURL := match.RawURL
	videoID, page := match.VideoID, match.Page
	isAv := match.Keyword == "av"

	// Short links redirect to the real resource before any id extraction.
	if match.Keyword == "b23" || match.Keyword == "bili2233" {
		target, err := r.bilibili.ResolveShortLink(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		rawURL = target
	}
	// A full URL may still carry the id in its path.
	if videoID == "" {
		if id, av, ok := parser.ExtractVideoID(rawURL); ok {
			videoID, isAv = id, av
		}
	}

	if videoID == "" {
		return r.resolveBilibiliNonVideo(ctx, rawURL)
	}
	return r.resolveBilibiliVideo(ctx, rawURL, videoID, isAv, page)
}

// resolveBilibiliNonVideo dispatches live / opus / article / favlist URLs.
func (r *Resolver) resolveBilibiliNonVideo(ctx context.Context, rawURL string) (*message.Reply, error) {
	prefix := r.prefix("bilibili")
	switch {
	case strings.Contains(rawURL, "t.bilibili.com") || strings.Contains(rawURL, "/opus"):
		opusID, ok := parser.ExtractNumericID(rawURL)
		if !ok {
			return nil, nil
		}
		imgURLs, text, err := r.bilibili.ParseOpus(ctx, opusID)
		if err != nil {
			return nil, err
		}
		reply := &message.Reply{Platform: "bilibili", Forward: true}
		reply.AppendText(prefix + "动态")
		reply.AppendText(text)
		for _, path := range r.dl.DownloadImages(ctx, imgURLs, r.bilibili.Headers()) {
			reply.Append(message.Image(path))
		}
		return reply, nil

	case strings.Contains(rawURL, "/live"):
		roomID, ok := parser.ExtractNumericID(rawURL)
		if !ok {
			return nil, nil
		}
		title, cover, keyframe, err := r.bilibili.ParseLive(ctx, roomID)
		if err != nil {
			return nil, err
		}
		reply := &message.Reply{Platform: "bilibili"}
		reply.AppendText(prefix + "直播 " + title)
		for _, u := range []string{cover, keyframe} {
			if u == "" {
				continue
			}
			if path, err := r.dl.Download(ctx, downloader.Request{URL: u, Kind: downloader.KindImage}); err == nil {
				reply.Append(message.Image(path))
			}
		}
		return reply, nil

	case strings.Contains(rawURL, "/read"):
		readID, ok := parser.ExtractReadID(rawURL)
		if !ok {
			return nil, nil
		}
		texts, imgURLs, err := r.bilibili.ParseRead(ctx, readID)
		if err != nil {
			return nil, err
		}
		reply := &message.Reply{Platform: "bilibili", Forward: true}
		reply.AppendText(prefix + "专栏")
		// Zip the downloaded images back into the empty text slots so blocks
		// and pictures keep their original interleaved order.
		paths := r.dl.DownloadImages(ctx, imgURLs, r.bilibili.Headers())
		next := 0
		for _, t := range texts {
			if t != "" {
				reply.AppendText(t)
				continue
			}
			if next < len(paths) {
				reply.Append(message.Image(paths[next]))
				next++
			}
		}
		return reply, nil

	case strings.Contains(rawURL, "/favlist"):
		favID, ok := parser.ExtractFavID(rawURL)
		if !ok {
			return nil, nil
		}
		items, err := r.bilibili.ParseFavlist(ctx, favID)
		if err != nil {
			return nil, err
		}
		reply := &message.Reply{Platform: "bilibili", Forward: true}
		reply.AppendText(prefix + "收藏夹\n正在为你找出相关链接请稍等...")
		coverURLs := make([]string, 0, len(items))
		for _, item := range items {
			coverURLs = append(coverURLs, item.Cover)
		}
		paths := r.dl.DownloadImages(ctx, coverURLs, r.bilibili.Headers())
		for i, item := range items {
			if i < len(paths) {
				reply.Append(message.Image(paths[i]))
			}
			reply.AppendText(fmt.Sprintf("%s\nUP主: %s\n%s\nhttps://www.bilibili.com/video/%s",
				item.Title, item.Upper, item.Intro, item.Bvid))
		}
		return reply, nil
	}
	return nil, nil
}

// resolveBilibiliVideo handles the video flow: metadata reply, duration
// policy, concurrent dual-stream download and mux.
func (r *Resolver) resolveBilibiliVideo(ctx context.Context, rawURL, videoID string, isAv bool, pageStr string) (*message.Reply, error) {
	info, err := r.bilibili.VideoInfo(ctx, videoID, isAv)
	if err != nil {
		return nil, err
	}

	// Calibrate the requested part: an id-adjacent number, then an explicit
	// ?p= in the URL, clamped into range by modulo.
	requested := 0
	if pageStr != "" {
		n, _ := strconv.Atoi(pageStr)
		requested = n - 1
	}
	if p := parser.ExtractPage(rawURL); p > 0 {
		requested = p - 1
	}
	pageIdx := 0
	duration := info.Duration
	var cid int64
	var partTitle, firstFrame string
	if len(info.Pages) > 0 {
		pageIdx = parser.ClampPage(requested, len(info.Pages))
		page := info.Pages[pageIdx]
		cid = page.Cid
		if len(info.Pages) > 1 {
			if page.Duration > 0 {
				duration = page.Duration
			}
			partTitle = strings.TrimSpace(page.Part)
			firstFrame = page.FirstFrame
		}
	}

	reply := &message.Reply{Platform: "bilibili"}
	reply.AppendText(r.prefix("bilibili") + "视频")
	if partTitle != "" {
		reply.AppendText("分集标题: " + partTitle)
	}
	if firstFrame != "" {
		if path, err := r.dl.Download(ctx, downloader.Request{URL: firstFrame, Kind: downloader.KindImage, Headers: r.bilibili.Headers()}); err == nil {
			reply.Append(message.Image(path))
		}
	}
	if path, err := r.dl.Download(ctx, downloader.Request{URL: info.Cover, Kind: downloader.KindImage, Headers: r.bilibili.Headers()}); err == nil {
		reply.Append(message.Image(path))
	}

	body := info.Title + "\n" + parser.FormatStat(info.Stat)
	if info.Desc != "" {
		body += "\n📝 简介：" + info.Desc
	}
	if total, count, err := r.bilibili.Online(ctx, info.Bvid, cid); err == nil {
		body += fmt.Sprintf("\n🏄‍♂️ 总共 %s 人在观看，%s 人在网页端观看", total, count)
	}
	reply.AppendText(body)

	// AI summary only works with configured credentials; degrade politely.
	if r.bilibili.HasCredential() {
		summary, err := r.bilibili.AISummary(ctx, info.Bvid, cid, info.Owner.Mid)
		if err == nil && summary != "" {
			reply.AppendText("AI总结: " + summary)
		} else {
			reply.AppendText("该视频暂不支持AI总结")
		}
	}

	if r.durationExceeded(duration) {
		reply.AppendText(r.durationWarning(duration))
		return reply, nil
	}

	path, err := r.downloadBilibiliVideo(ctx, info.Bvid, cid, pageIdx)
	if err != nil {
		return nil, err
	}
	reply.Append(r.videoSegment(path))
	return reply, nil
}

// downloadBilibiliVideo fetches the separate dash streams concurrently and
// muxes them into one mp4 in the cache.
func (r *Resolver) downloadBilibiliVideo(ctx context.Context, bvid string, cid int64, pageIdx int) (string, error) {
	outName := fmt.Sprintf("%s-%d.mp4", bvid, pageIdx)
	outPath := r.store.ResolvePath("", outName, "")
	if r.store.Has(outPath) {
		return outPath, nil
	}

	videoURL, audioURL, err := r.bilibili.PlayStreams(ctx, bvid, cid)
	if err != nil {
		return "", err
	}

	prefix := fmt.Sprintf("%s-%d", bvid, pageIdx)
	headers := r.bilibili.Headers()
	var vPath, aPath string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vPath, err = r.dl.Download(gctx, downloader.Request{
			URL: videoURL, Kind: downloader.KindVideo, Name: prefix + "-video.m4s", Headers: headers,
		})
		return err
	})
	g.Go(func() error {
		var err error
		aPath, err = r.dl.Download(gctx, downloader.Request{
			URL: audioURL, Kind: downloader.KindAudio, Name: prefix + "-audio.m4s", Headers: headers,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	if err := r.ff.MergeAV(ctx, vPath, aPath, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// ResolveBiliMusic extracts the audio track of a video part, for the music
// command. Returns a record segment plus an optional uploadable file.
func (r *Resolver) ResolveBiliMusic(ctx context.Context, bvid string, partNum int) (*message.Reply, error) {
	info, err := r.bilibili.VideoInfo(ctx, bvid, false)
	if err != nil {
		return nil, err
	}
	pageIdx := 0
	title := info.Title
	var cid int64
	if len(info.Pages) > 0 {
		pageIdx = parser.ClampPage(partNum-1, len(info.Pages))
		page := info.Pages[pageIdx]
		cid = page.Cid
		if p := strings.TrimSpace(page.Part); p != "" && len(info.Pages) > 1 {
			title = p
		}
	}

	_, audioURL, err := r.bilibili.PlayStreams(ctx, info.Bvid, cid)
	if err != nil {
		return nil, err
	}
	name := parser.SafeFileName(title) + ".mp3"
	path, err := r.dl.Download(ctx, downloader.Request{
		URL: audioURL, Kind: downloader.KindAudio, Name: name, Headers: r.bilibili.Headers(),
	})
	if err != nil {
		return nil, err
	}

	reply := &message.Reply{Platform: "bilibili"}
	reply.Append(message.Record(path))
	if r.cfg.NeedUpload {
		reply.Append(message.File(path, name))
	}
	return reply, nil
}
