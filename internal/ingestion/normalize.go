// Package ingestion turns caller-supplied evidence into its model-ready form.
//
// Normalization never fails because content cannot be extracted: PDF
// extraction errors, missing codec tooling, and unreachable links all degrade
// to placeholder text so the run can continue with what is available.
package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/evidentia/internal/logging"
	"github.com/jonathan/evidentia/internal/textutil"
	"github.com/jonathan/evidentia/internal/types"
)

// LinkFetcher returns the readable text of the page at url.
type LinkFetcher func(ctx context.Context, url string) (string, error)

// Options configures a Normalizer.
type Options struct {
	// Codec extracts video keyframes and audio. Nil disables extraction.
	Codec Codec
	// FetchLink is used for link evidence supplied without rawText.
	FetchLink LinkFetcher
	// KeyframeInterval is the spacing between extracted frames.
	KeyframeInterval time.Duration
	// ScratchRoot is where per-video scratch directories are created.
	// Empty means the system temp dir.
	ScratchRoot string
}

// Normalizer maps EvidenceInput values to NormalizedEvidence.
type Normalizer struct {
	codec       Codec
	fetchLink   LinkFetcher
	interval    time.Duration
	scratchRoot string
}

// New returns a Normalizer for opts.
func New(opts Options) *Normalizer {
	interval := opts.KeyframeInterval
	if interval <= 0 {
		interval = DefaultKeyframeInterval
	}
	return &Normalizer{
		codec:       opts.Codec,
		fetchLink:   opts.FetchLink,
		interval:    interval,
		scratchRoot: opts.ScratchRoot,
	}
}

// NormalizeAll normalizes inputs in order. The only error is a done context,
// in which case scratch files already created are removed. Otherwise the
// caller owns the scratch directories and releases them with RemoveScratch.
func (n *Normalizer) NormalizeAll(ctx context.Context, inputs []types.EvidenceInput) ([]types.NormalizedEvidence, error) {
	out := make([]types.NormalizedEvidence, 0, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			RemoveScratch(out)
			return nil, err
		}
		entry := logging.WithStage("normalize").WithField("evidence_id", types.EvidenceID(i))
		out = append(out, n.normalize(ctx, entry, in))
	}
	return out, nil
}

// Normalize produces exactly one NormalizedEvidence for in.
func (n *Normalizer) Normalize(ctx context.Context, in types.EvidenceInput) types.NormalizedEvidence {
	return n.normalize(ctx, logging.WithStage("normalize"), in)
}

func (n *Normalizer) normalize(ctx context.Context, log *logrus.Entry, in types.EvidenceInput) types.NormalizedEvidence {
	switch in.Type {
	case types.EvidenceText:
		if in.RawText != "" {
			return types.NormalizedEvidence{
				Type:     types.EvidenceText,
				Filename: in.Filename,
				Text:     NormalizeText(in.RawText),
				Metadata: NewMetadata([]byte(in.RawText)),
			}
		}
	case types.EvidenceLink:
		if in.URL != "" || in.RawText != "" {
			return n.normalizeLink(ctx, log, in)
		}
	case types.EvidencePDF:
		if fileExists(in.LocationRef) {
			return n.normalizePDF(log, in)
		}
	case types.EvidenceImage:
		if fileExists(in.LocationRef) {
			if ev, ok := n.normalizeImage(log, in); ok {
				return ev
			}
		}
	case types.EvidenceAudio:
		if in.LocationRef != "" {
			return n.normalizeAudio(log, in)
		}
	case types.EvidenceVideo:
		if in.LocationRef != "" {
			return n.normalizeVideo(ctx, log, in)
		}
	}

	log.WithField("type", in.Type).Debug("evidence has no usable content source")
	text := in.RawText
	if text == "" {
		text = NoContentText
	}
	return types.NormalizedEvidence{Type: types.EvidenceUnknown, Text: NormalizeText(text)}
}

func (n *Normalizer) normalizeLink(ctx context.Context, log *logrus.Entry, in types.EvidenceInput) types.NormalizedEvidence {
	ev := types.NormalizedEvidence{Type: types.EvidenceLink, URL: in.URL, Filename: in.Filename}

	if in.RawText != "" {
		ev.Metadata = NewMetadata([]byte(in.RawText))
		ev.Text = ExtractHTMLText(in.RawText)
		if ev.Text == "" {
			ev.Text = NoMainContentText
		}
		return ev
	}

	if n.fetchLink == nil {
		ev.Text = NoContentText
		return ev
	}
	text, err := n.fetchLink(ctx, in.URL)
	if err != nil {
		log.WithError(err).WithField("url", in.URL).Warn("link fetch failed")
		ev.Text = FetchFailedText
		return ev
	}
	ev.Metadata = NewMetadata([]byte(text))
	ev.Text = textutil.Truncate(strings.TrimSpace(text), MaxLinkTextLength)
	if ev.Text == "" {
		ev.Text = NoMainContentText
	}
	return ev
}

func (n *Normalizer) normalizePDF(log *logrus.Entry, in types.EvidenceInput) types.NormalizedEvidence {
	ev := types.NormalizedEvidence{Type: types.EvidencePDF, Filename: displayFilename(in)}

	data, err := os.ReadFile(in.LocationRef)
	if err != nil {
		log.WithError(err).Warn("pdf read failed")
		ev.Text = PDFFailedText
		return ev
	}
	ev.Metadata = NewMetadata(data)

	text, err := ExtractPDFText(data)
	if err != nil {
		log.WithError(err).Warn("pdf extraction failed")
	}
	ev.Text = pdfEvidenceText(text, err)
	return ev
}

func (n *Normalizer) normalizeImage(log *logrus.Entry, in types.EvidenceInput) (types.NormalizedEvidence, bool) {
	data, err := os.ReadFile(in.LocationRef)
	if err != nil {
		log.WithError(err).Warn("image read failed")
		return types.NormalizedEvidence{}, false
	}
	return types.NormalizedEvidence{
		Type:        types.EvidenceImage,
		Filename:    displayFilename(in),
		Text:        ImageProvidedText,
		InlineImage: &types.InlineData{MIMEType: ImageMIMEType(in.LocationRef), Data: data},
		Metadata:    NewMetadata(data),
	}, true
}

func (n *Normalizer) normalizeAudio(log *logrus.Entry, in types.EvidenceInput) types.NormalizedEvidence {
	ev := types.NormalizedEvidence{Type: types.EvidenceAudio, Filename: displayFilename(in)}
	if !fileExists(in.LocationRef) {
		ev.Text = AudioUnavailableText
		return ev
	}
	ev.Text = AudioProvidedText
	ev.AudioPath = in.LocationRef
	if md, err := NewFileMetadata(in.LocationRef); err == nil {
		ev.Metadata = md
	} else {
		log.WithError(err).Warn("audio metadata failed")
	}
	return ev
}

func (n *Normalizer) normalizeVideo(ctx context.Context, log *logrus.Entry, in types.EvidenceInput) types.NormalizedEvidence {
	ev := types.NormalizedEvidence{Type: types.EvidenceVideo, Filename: displayFilename(in)}

	if fileExists(in.LocationRef) {
		if md, err := NewFileMetadata(in.LocationRef); err == nil {
			ev.Metadata = md
		}
		if n.codec != nil && n.codec.Available(ctx) {
			n.extractVideo(ctx, log, in.LocationRef, &ev)
		} else {
			log.Warn("video codec unavailable; continuing without keyframes")
		}
	}

	ev.Text = VideoPlaceholderText(len(ev.KeyframePaths))
	return ev
}

// extractVideo writes keyframes and audio for src into a fresh scratch
// directory so that no two items, in this run or another, share output files.
func (n *Normalizer) extractVideo(ctx context.Context, log *logrus.Entry, src string, ev *types.NormalizedEvidence) {
	outDir, err := os.MkdirTemp(n.scratchRoot, scratchPattern)
	if err != nil {
		log.WithError(err).Warn("failed to create video scratch directory")
		return
	}
	ev.ScratchDir = outDir

	frames, err := n.codec.Keyframes(ctx, src, outDir, n.interval)
	if err != nil {
		log.WithError(err).Warn("keyframe extraction failed")
	}
	ev.KeyframePaths = frames

	audio, err := n.codec.Audio(ctx, src, outDir)
	if err != nil {
		log.WithError(err).Warn("video audio extraction failed")
	}
	ev.AudioPath = audio
}

// RemoveScratch deletes the scratch directories of evidence.
func RemoveScratch(evidence []types.NormalizedEvidence) {
	for _, ev := range evidence {
		if ev.ScratchDir == "" {
			continue
		}
		if err := os.RemoveAll(ev.ScratchDir); err != nil {
			logging.Log.WithError(err).WithField("dir", ev.ScratchDir).Warn("failed to remove scratch directory")
		}
	}
}

// displayFilename prefers the caller-provided original name over the stored
// file's base name.
func displayFilename(in types.EvidenceInput) string {
	if in.Filename != "" {
		return in.Filename
	}
	return filepath.Base(in.LocationRef)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
