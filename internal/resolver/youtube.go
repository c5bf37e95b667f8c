package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/cache"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/downloader"
	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/message"
)

// resolveYouTube handles youtube links: the platform serves video and audio
// as separate adaptive streams, so both legs download concurrently through
// the proxy and get muxed afterwards.
func (r *Resolver) resolveYouTube(ctx context.Context, text string) (*message.Reply, error) {
	info, err := r.youtube.ParseShareText(ctx, text)
	if err != nil {
		return nil, err
	}

	reply := &message.Reply{Platform: "youtube"}
	header := r.prefix("youtube") + info.Title
	if info.Author.Name != "" {
		header += " - " + info.Author.Name
	}
	reply.AppendText(header)
	if info.CoverURL != "" {
		if path, err := r.dl.Download(ctx, downloader.Request{
			URL: info.CoverURL, Kind: downloader.KindImage, Proxy: r.cfg.EffectiveProxy(),
		}); err == nil {
			reply.Append(message.Image(path))
		}
	}

	if r.durationExceeded(info.Duration) {
		reply.AppendText(r.durationWarning(info.Duration))
		return reply, nil
	}

	proxy := r.cfg.EffectiveProxy()
	outName := cache.FileName(info.VideoURL+"#merged", ".mp4")
	outPath := r.store.ResolvePath("", outName, "")
	if !r.store.Has(outPath) {
		var vPath, aPath string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			vPath, err = r.dl.Download(gctx, downloader.Request{
				URL: info.VideoURL, Kind: downloader.KindVideo, Proxy: proxy,
			})
			return err
		})
		g.Go(func() error {
			var err error
			aPath, err = r.dl.Download(gctx, downloader.Request{
				URL: info.AudioURL, Kind: downloader.KindAudio, Proxy: proxy,
			})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		// Copy-mux first; some uploads still reject the container, which the
		// delivery fallback handles with a re-encode.
		if err := r.ff.MergeAV(ctx, vPath, aPath, outPath); err != nil {
			return nil, err
		}
	}
	reply.Append(r.videoSegment(outPath))
	return reply, nil
}
