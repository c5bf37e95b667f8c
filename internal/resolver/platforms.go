package resolver

import (
	"context"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/downloader"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/message"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/parser"
)

func (r *Resolver) resolveWeibo(ctx context.Context, text string) (*message.Reply, error) {
	info, err := r.weibo.ParseShareText(ctx, text)
	if err != nil {
		return nil, err
	}

	reply := &message.Reply{Platform: "weibo"}
	header := r.prefix("weibo") + info.Title
	if info.Author.Name != "" {
		header += " - " + info.Author.Name
	}
	reply.AppendText(header)

	// Galleries forward as one bundle; failed images are simply dropped.
	if len(info.Images) > 0 {
		reply.Forward = true
		for _, path := range r.dl.DownloadImages(ctx, info.Images, info.ExtraHeaders) {
			reply.Append(message.Image(path))
		}
		return reply, nil
	}
	if info.VideoURL == "" {
		return reply, nil
	}
	if err := r.downloadVideoResult(ctx, reply, info); err != nil {
		return nil, err
	}
	return reply, nil
}

func (r *Resolver) resolveXiaohongshu(ctx context.Context, text string) (*message.Reply, error) {
	info, err := r.xiaohongshu.ParseShareText(ctx, text)
	if err != nil {
		return nil, err
	}

	reply := &message.Reply{Platform: "xiaohongshu"}
	if len(info.Images) > 0 {
		reply.Forward = true
		reply.AppendText(r.prefix("xiaohongshu") + "图文")
		reply.AppendText(info.Title)
		for _, path := range r.dl.DownloadImages(ctx, info.Images, info.ExtraHeaders) {
			reply.Append(message.Image(path))
		}
		return reply, nil
	}

	reply.AppendText(r.prefix("xiaohongshu") + "视频 - " + info.Title)
	if err := r.downloadVideoResult(ctx, reply, info); err != nil {
		return nil, err
	}
	return reply, nil
}

func (r *Resolver) resolveNetEase(ctx context.Context, text string) (*message.Reply, error) {
	info, err := r.netease.ParseShareText(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.audioReply(ctx, "ncm", info, ".flac")
}

func (r *Resolver) resolveKuGou(ctx context.Context, text string) (*message.Reply, error) {
	info, err := r.kugou.ParseShareText(ctx, text)
	if err != nil {
		return nil, err
	}
	return r.audioReply(ctx, "kugou", info, ".flac")
}

// audioReply drives the shared music flow: cover + title header, audio
// download, voice segment and the optional uploadable file.
func (r *Resolver) audioReply(ctx context.Context, platform string, info *parser.VideoInfo, suffix string) (*message.Reply, error) {
	reply := &message.Reply{Platform: platform}
	header := r.prefix(platform) + info.Title
	if info.Author.Name != "" {
		header += " - " + info.Author.Name
	}
	reply.AppendText(header)
	if info.CoverURL != "" {
		if path, err := r.dl.Download(ctx, downloader.Request{URL: info.CoverURL, Kind: downloader.KindImage}); err == nil {
			reply.Append(message.Image(path))
		}
	}

	name := parser.SafeFileName(info.Title+info.Author.Name) + suffix
	path, err := r.dl.Download(ctx, downloader.Request{
		URL: info.AudioURL, Kind: downloader.KindAudio, Name: name, Headers: info.ExtraHeaders,
	})
	if err != nil {
		return nil, err
	}
	reply.Append(message.Record(path))
	if r.cfg.NeedUpload {
		reply.Append(message.File(path, name))
	}
	return reply, nil
}

func (r *Resolver) resolveTikTok(ctx context.Context, text string) (*message.Reply, error) {
	info, err := r.tiktok.ParseShareText(ctx, text)
	if err != nil {
		return nil, err
	}

	reply := &message.Reply{Platform: "tiktok"}
	reply.AppendText(r.prefix("tiktok") + info.Title)
	if info.Duration > 0 && r.durationExceeded(info.Duration) {
		reply.AppendText(r.durationWarning(info.Duration))
		return reply, nil
	}
	path, err := r.dl.Download(ctx, downloader.Request{
		URL:     info.VideoURL,
		Kind:    downloader.KindVideo,
		Headers: info.ExtraHeaders,
		Proxy:   r.cfg.EffectiveProxy(),
	})
	if err != nil {
		return nil, err
	}
	reply.Append(r.videoSegment(path))
	return reply, nil
}
