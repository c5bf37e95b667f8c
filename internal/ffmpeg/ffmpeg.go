package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EncodeError reports a non-zero encoder exit, keeping the tail of its output
// for diagnosis.
type EncodeError struct {
	Args   []string
	Output string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("ffmpeg %s: %v\n%s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Transcoder invokes the external ffmpeg binary.
type Transcoder struct {
	bin string
}

// New returns a Transcoder using the given binary, or "ffmpeg" when empty.
func New(bin string) *Transcoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Transcoder{bin: bin}
}

func (t *Transcoder) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &EncodeError{Args: args, Output: tail(string(out), 2000), Err: err}
	}
	return nil
}

// MergeAV muxes a video-only and an audio-only input into one container with
// stream copy, mapping video stream 0 and audio stream 0. Both inputs are
// removed afterwards whether or not the mux succeeded, so repeated failures
// never strand large elementary streams; the error still reaches the caller.
func (t *Transcoder) MergeAV(ctx context.Context, videoPath, audioPath, outputPath string) error {
	err := t.run(ctx, "-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		outputPath,
	)
	os.Remove(videoPath)
	os.Remove(audioPath)
	return err
}

// MergeAVH264 muxes like MergeAV but forces H.264 video and AAC audio, for
// players that reject the copy-muxed container.
func (t *Transcoder) MergeAVH264(ctx context.Context, videoPath, audioPath, outputPath string) error {
	err := t.run(ctx, "-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-map", "0:v:0",
		"-map", "1:a:0",
		outputPath,
	)
	os.Remove(videoPath)
	os.Remove(audioPath)
	return err
}

// ReEncodeH264 re-encodes one file to H.264, producing a sibling with an
// _h264 suffix. An existing sibling is returned as-is. The input is removed
// only after a successful encode.
func (t *Transcoder) ReEncodeH264(ctx context.Context, videoPath string) (string, error) {
	outputPath := h264Sibling(videoPath)
	if _, err := os.Stat(outputPath); err == nil {
		return outputPath, nil
	}
	err := t.run(ctx, "-y",
		"-i", videoPath,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		outputPath,
	)
	if err != nil {
		return "", err
	}
	os.Remove(videoPath)
	return outputPath, nil
}

func h264Sibling(videoPath string) string {
	ext := ""
	stem := videoPath
	if i := strings.LastIndex(videoPath, "."); i > strings.LastIndex(videoPath, "/") {
		stem, ext = videoPath[:i], videoPath[i:]
	}
	return stem + "_h264" + ext
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
