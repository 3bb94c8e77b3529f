package model

// Content is the closed set of message payload variants. Every variant
// carries only the fields relevant to its kind; rendering and preview code
// switch over the concrete types.
type Content interface {
	isContent()
}

// TextContent is a plain text message body.
type TextContent struct {
	Body string
}

// ImageContent is an image with an optional caption. Data holds the locally
// available payload (base64) when the message was sent from this client;
// otherwise media is resolved lazily through the cache.
type ImageContent struct {
	Caption  string
	MimeType string
	Data     string
}

// VideoContent is a video with an optional caption.
type VideoContent struct {
	Caption  string
	MimeType string
	Data     string
}

// AudioContent is an audio clip or voice note.
type AudioContent struct {
	MimeType  string
	Seconds   int
	VoiceNote bool
	Data      string
}

// DocumentContent is an arbitrary file attachment.
type DocumentContent struct {
	FileName string
	Caption  string
	MimeType string
	Data     string
}

// StickerContent is a sticker.
type StickerContent struct {
	MimeType string
	Animated bool
}

// ReactionContent is an emoji reaction to another message.
type ReactionContent struct {
	TargetID string
	Emoji    string
}

// UnsupportedContent stands in for payloads this client cannot decode.
// A single bad record renders as a placeholder instead of failing the page.
type UnsupportedContent struct {
	Reason string
}

func (TextContent) isContent()        {}
func (ImageContent) isContent()       {}
func (VideoContent) isContent()       {}
func (AudioContent) isContent()       {}
func (DocumentContent) isContent()    {}
func (StickerContent) isContent()     {}
func (ReactionContent) isContent()    {}
func (UnsupportedContent) isContent() {}

// Preview returns the one-line chat list preview for a content payload.
func Preview(c Content) string {
	switch v := c.(type) {
	case TextContent:
		return v.Body
	case ImageContent:
		if v.Caption != "" {
			return "📷 " + v.Caption
		}
		return "📷 Photo"
	case VideoContent:
		if v.Caption != "" {
			return "🎥 " + v.Caption
		}
		return "🎥 Video"
	case AudioContent:
		if v.VoiceNote {
			return "🎤 Voice message"
		}
		return "🎵 Audio"
	case DocumentContent:
		if v.FileName != "" {
			return "📄 " + v.FileName
		}
		return "📄 Document"
	case StickerContent:
		return "Sticker"
	case ReactionContent:
		return "Reacted " + v.Emoji
	case UnsupportedContent:
		return "Unsupported message"
	default:
		return "Unsupported message"
	}
}
