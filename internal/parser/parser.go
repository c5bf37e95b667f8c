// Package parser turns platform share links into structured media results.
// Each platform is a hand-written parser over the platform's web API; the
// set is closed and dispatched by the orchestration layer.
package parser

import (
	"fmt"
	"regexp"
)

// VideoAuthor identifies the content author.
type VideoAuthor struct {
	UID    string
	Name   string
	Avatar string
}

// VideoInfo is the normalized result of parsing one share link. Exactly one
// of VideoURL / AudioURL / Images is expected to be populated for media
// results; Title is always set. Parsers never download anything beyond the
// platform API payloads.
type VideoInfo struct {
	Title    string
	VideoURL string
	AudioURL string
	CoverURL string
	Images   []string
	Author   VideoAuthor
	// Duration in seconds, 0 when unknown.
	Duration int
	// ExtraHeaders must accompany resource downloads (referer-guarded CDNs).
	ExtraHeaders map[string]string
}

// ParseError means the share link could not be resolved into a media result:
// bad or expired link, unrecognized id shape, or an upstream API change. The
// message is short and user-facing.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error { return e.Err }

// Errorf builds a ParseError from a format string.
func Errorf(format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// WrapErr builds a ParseError keeping the cause.
func WrapErr(msg string, err error) *ParseError {
	return &ParseError{Message: msg, Err: err}
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// StripTags removes HTML tags from a platform text payload.
func StripTags(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}

var unsafeNameRe = regexp.MustCompile(`[^\p{Han}a-zA-Z0-9]`)

// SafeFileName keeps only Chinese characters, letters and digits, for use in
// user-visible file names.
func SafeFileName(s string) string {
	return unsafeNameRe.ReplaceAllString(s, "")
}
