package ingestion

import (
	"github.com/jonathan/evidentia/internal/fetch"
	"github.com/jonathan/evidentia/internal/textutil"
)

const (
	// MaxTextLength caps pasted text evidence, in characters.
	MaxTextLength = 100000
	// MaxLinkTextLength caps text extracted from a linked page, in characters.
	MaxLinkTextLength = 50000
)

// Placeholder texts substituted when content cannot be extracted.
const (
	NoContentText        = "[No content]"
	NoMainContentText    = "[Could not extract main content]"
	FetchFailedText      = "[Failed to fetch URL]"
	ImageProvidedText    = "[Image provided]"
	PDFFailedText        = "[PDF extraction failed - file may be scanned/image-based]"
	PDFEmptyText         = "[No text extracted from PDF]"
	AudioProvidedText    = "[Audio provided. A transcript will be extracted for analysis when possible.]"
	AudioUnavailableText = "[Audio file not available. Audio content could not be extracted.]"
	VideoNoKeyframesText = "[Video file provided. Keyframe extraction not available (install ffmpeg for full analysis). Analysis will use metadata.]"
)

// NormalizeText bounds pasted text. It does no other processing so that
// normalizing the same input twice yields the same text.
func NormalizeText(raw string) string {
	return textutil.Truncate(raw, MaxTextLength)
}

// ExtractHTMLText turns an HTML document into readable text: script and style
// blocks are dropped, the body is isolated when present, entities are decoded,
// and whitespace is collapsed. Plain text passes through with its whitespace
// collapsed. The result is capped at MaxLinkTextLength.
func ExtractHTMLText(html string) string {
	return textutil.Truncate(fetch.HTMLToText(html), MaxLinkTextLength)
}
