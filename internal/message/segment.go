// Package message defines the transport-agnostic reply shapes handed to the
// chat adapter: plain text, media attachments and forwarded node bundles.
package message

// SegmentKind enumerates the supported reply content types.
type SegmentKind string

const (
	KindText   SegmentKind = "text"
	KindImage  SegmentKind = "image"
	KindVideo  SegmentKind = "video"
	KindRecord SegmentKind = "record"
	KindFile   SegmentKind = "file"
)

// Segment is one piece of reply content. Media segments reference local
// files produced by the downloader.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	// Text payload for KindText.
	Text string `json:"text,omitempty"`
	// Path of the local media file for the other kinds.
	Path string `json:"path,omitempty"`
	// Name is the display file name for KindFile.
	Name string `json:"name,omitempty"`
}

func Text(s string) Segment          { return Segment{Kind: KindText, Text: s} }
func Image(path string) Segment      { return Segment{Kind: KindImage, Path: path} }
func Video(path string) Segment      { return Segment{Kind: KindVideo, Path: path} }
func Record(path string) Segment     { return Segment{Kind: KindRecord, Path: path} }
func File(path, name string) Segment { return Segment{Kind: KindFile, Path: path, Name: name} }

// Reply is what one resolved share produces. Segments are delivered in order;
// when Forward is set they should be wrapped into a forwarded multi-node
// bundle attributed to the bot, which chat platforms render as one collapsed
// message for long galleries and threads.
type Reply struct {
	Platform string    `json:"platform"`
	Segments []Segment `json:"segments"`
	Forward  bool      `json:"forward,omitempty"`
}

// Append adds segments to the reply.
func (r *Reply) Append(segs ...Segment) {
	r.Segments = append(r.Segments, segs...)
}

// AppendText adds a text segment.
func (r *Reply) AppendText(s string) {
	r.Segments = append(r.Segments, Text(s))
}
