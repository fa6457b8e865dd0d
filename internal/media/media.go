// Package media enriches normalized evidence with model-derived descriptions:
// image summaries and OCR, video keyframe summaries, and audio transcripts.
//
// Every analyzer is best effort. A failed call is logged and the item keeps
// its pre-enrichment text.
package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/evidentia/internal/llm"
	"github.com/jonathan/evidentia/internal/logging"
	"github.com/jonathan/evidentia/internal/metrics"
	"github.com/jonathan/evidentia/internal/prompts"
	"github.com/jonathan/evidentia/internal/textutil"
	"github.com/jonathan/evidentia/internal/types"
)

// Caps applied to model output before it is merged into evidence text.
const (
	DefaultMaxFrames     = 8
	MaxImageSummary      = 500
	MaxImageText         = 2000
	MaxKeyframeSummary   = 700
	MaxSignals           = 10
	MaxTranscriptLength  = 20000
	defaultParallelCalls = 4
)

// Section labels used when appending enrichment to evidence text.
const (
	LabelAudioTranscript      = "[Audio transcript]\n"
	LabelVideoTranscript      = "[Audio transcript extracted from video]\n"
	LabelImageSummary         = "[Image summary]"
	LabelImageText            = "[Image text]"
	LabelImageSignals         = "[Image manipulation signals]\n- "
	LabelKeyframesSummary     = "[Video keyframes summary]"
	LabelVideoSignals         = "[Video manipulation signals]"
	signalSeparator           = "\n- "
	sectionSeparator          = "\n\n"
	keyframeMIMEType          = "image/jpeg"
	mp3MIMEType               = "audio/mpeg"
	defaultAudioMIMEType      = "audio/wav"
)

// ImageAnalysis is the image analyzer's output after caps are applied.
type ImageAnalysis struct {
	Summary             string   `json:"summary"`
	ExtractedText       string   `json:"extractedText,omitempty"`
	ManipulationSignals []string `json:"manipulationSignals,omitempty"`
}

// KeyframeAnalysis is the keyframe analyzer's output after caps are applied.
type KeyframeAnalysis struct {
	Summary             string   `json:"summary"`
	ManipulationSignals []string `json:"manipulationSignals,omitempty"`
}

// Enriched is one evidence item after pre-analysis. Evidence.Text carries the
// merged sections; the analyses are kept for the evidence ledger.
type Enriched struct {
	Evidence   types.NormalizedEvidence
	Image      *ImageAnalysis
	Keyframes  *KeyframeAnalysis
	Transcript string
}

// Options configures an Analyzer.
type Options struct {
	// MaxFrames bounds the keyframes sent per video.
	MaxFrames int
	// Parallel bounds concurrent model calls across items.
	Parallel int
}

// Analyzer runs the media pre-analyzers against a model client.
type Analyzer struct {
	client    llm.Client
	maxFrames int
	parallel  int
	readFile  func(string) ([]byte, error)
}

// New returns an Analyzer that calls client.
func New(client llm.Client, opts Options) *Analyzer {
	a := &Analyzer{
		client:    client,
		maxFrames: opts.MaxFrames,
		parallel:  opts.Parallel,
		readFile:  os.ReadFile,
	}
	if a.maxFrames <= 0 {
		a.maxFrames = DefaultMaxFrames
	}
	if a.parallel <= 0 {
		a.parallel = defaultParallelCalls
	}
	return a
}

// Enrich runs every applicable analyzer for every item concurrently and merges
// the results into copies of the items. Items are returned in input order.
// The only error is a done context.
func (a *Analyzer) Enrich(ctx context.Context, items []types.NormalizedEvidence) ([]Enriched, error) {
	out := make([]Enriched, len(items))
	for i := range items {
		out[i].Evidence = items[i]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)

	for i := range items {
		ev := &items[i]
		log := logging.Log.WithFields(logrus.Fields{
			"stage":       "media",
			"evidence_id": types.EvidenceID(i),
		})

		if ev.Type == types.EvidenceImage && ev.InlineImage != nil {
			g.Go(func() error {
				res, err := a.AnalyzeImage(gctx, ev)
				if err != nil {
					warn(log, "image analysis failed", err)
					return nil
				}
				out[i].Image = res
				return nil
			})
		}
		if ev.Type == types.EvidenceVideo && len(ev.KeyframePaths) > 0 {
			g.Go(func() error {
				res, err := a.AnalyzeKeyframes(gctx, ev)
				if err != nil {
					warn(log, "keyframe analysis failed", err)
					return nil
				}
				out[i].Keyframes = res
				return nil
			})
		}
		if (ev.Type == types.EvidenceAudio || ev.Type == types.EvidenceVideo) && ev.AudioPath != "" {
			g.Go(func() error {
				transcript, err := a.Transcribe(gctx, ev)
				if err != nil {
					warn(log, "audio transcription failed", err)
					return nil
				}
				out[i].Transcript = transcript
				return nil
			})
		}
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Evidence.Text = mergeText(&out[i])
	}
	return out, nil
}

func warn(log *logrus.Entry, msg string, err error) {
	metrics.StageFailures.WithLabelValues("media").Inc()
	log.WithError(err).Warn(msg)
}

// AnalyzeImage describes an inline image, reads its visible text, and lists
// manipulation signals.
func (a *Analyzer) AnalyzeImage(ctx context.Context, ev *types.NormalizedEvidence) (*ImageAnalysis, error) {
	if ev.InlineImage == nil {
		return nil, fmt.Errorf("no inline image")
	}
	prompt, err := prompts.Render(prompts.MediaFile, "analyze-image", nil)
	if err != nil {
		return nil, err
	}
	raw, err := a.client.GenerateTextWithParts(ctx, prompt, []types.InlineData{*ev.InlineImage}, llm.Options{JSONMode: true})
	if err != nil {
		return nil, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, err
	}
	return &ImageAnalysis{
		Summary:             textutil.Truncate(strings.TrimSpace(doc.Get("summary").String()), MaxImageSummary),
		ExtractedText:       textutil.Truncate(strings.TrimSpace(doc.Get("extractedText").String()), MaxImageText),
		ManipulationSignals: stringList(doc.Get("manipulationSignals"), MaxSignals),
	}, nil
}

// AnalyzeKeyframes sends an evenly spaced subset of a video's keyframes in one
// request. Frames that cannot be read are skipped.
func (a *Analyzer) AnalyzeKeyframes(ctx context.Context, ev *types.NormalizedEvidence) (*KeyframeAnalysis, error) {
	var parts []types.InlineData
	for _, path := range SelectFrames(ev.KeyframePaths, a.maxFrames) {
		data, err := a.readFile(path)
		if err != nil {
			continue
		}
		parts = append(parts, types.InlineData{MIMEType: keyframeMIMEType, Data: data})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no readable keyframes")
	}

	prompt, err := prompts.Render(prompts.MediaFile, "analyze-keyframes", nil)
	if err != nil {
		return nil, err
	}
	raw, err := a.client.GenerateTextWithParts(ctx, prompt, parts, llm.Options{JSONMode: true})
	if err != nil {
		return nil, err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return nil, err
	}
	return &KeyframeAnalysis{
		Summary:             textutil.Truncate(strings.TrimSpace(doc.Get("summary").String()), MaxKeyframeSummary),
		ManipulationSignals: stringList(doc.Get("manipulationSignals"), MaxSignals),
	}, nil
}

// Transcribe returns the transcript of the item's audio, capped at
// MaxTranscriptLength. An empty transcript is an error.
func (a *Analyzer) Transcribe(ctx context.Context, ev *types.NormalizedEvidence) (string, error) {
	data, err := a.readFile(ev.AudioPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	prompt, err := prompts.Render(prompts.MediaFile, "transcribe-audio", nil)
	if err != nil {
		return "", err
	}
	part := types.InlineData{MIMEType: AudioMIMEType(ev.AudioPath), Data: data}
	raw, err := a.client.GenerateTextWithParts(ctx, prompt, []types.InlineData{part}, llm.Options{JSONMode: true})
	if err != nil {
		return "", err
	}
	doc, err := parseObject(raw)
	if err != nil {
		return "", err
	}
	transcript := strings.TrimSpace(doc.Get("transcript").String())
	if transcript == "" {
		return "", fmt.Errorf("empty transcript")
	}
	return textutil.Truncate(transcript, MaxTranscriptLength), nil
}

// AudioMIMEType is audio/mpeg for .mp3 files and audio/wav otherwise.
func AudioMIMEType(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".mp3") {
		return mp3MIMEType
	}
	return defaultAudioMIMEType
}

// SelectFrames picks at most max frames at a fixed stride of len/max so the
// selection spans the whole video rather than its opening seconds.
func SelectFrames(paths []string, max int) []string {
	if len(paths) == 0 || max <= 0 {
		return nil
	}
	if len(paths) <= max {
		return paths
	}
	step := len(paths) / max
	if step < 1 {
		step = 1
	}
	picked := make([]string, 0, max)
	for i := 0; i < len(paths) && len(picked) < max; i += step {
		picked = append(picked, paths[i])
	}
	return picked
}

// mergeText appends the enrichment sections to the item's original text.
func mergeText(e *Enriched) string {
	var b strings.Builder
	b.WriteString(e.Evidence.Text)

	if e.Transcript != "" {
		label := LabelAudioTranscript
		if e.Evidence.Type == types.EvidenceVideo {
			label = LabelVideoTranscript
		}
		b.WriteString(sectionSeparator + label + e.Transcript)
	}

	if img := e.Image; img != nil {
		b.WriteString(sectionSeparator + LabelImageSummary + "\n" + img.Summary)
		if img.ExtractedText != "" {
			b.WriteString(sectionSeparator + LabelImageText + "\n" + img.ExtractedText)
		}
		if len(img.ManipulationSignals) > 0 {
			b.WriteString(sectionSeparator + LabelImageSignals + strings.Join(img.ManipulationSignals, signalSeparator))
		}
	}

	if kf := e.Keyframes; kf != nil && kf.Summary != "" {
		b.WriteString(sectionSeparator + LabelKeyframesSummary + "\n" + kf.Summary)
		if len(kf.ManipulationSignals) > 0 {
			b.WriteString(sectionSeparator + LabelVideoSignals + signalSeparator + strings.Join(kf.ManipulationSignals, signalSeparator))
		}
	}
	return b.String()
}

func parseObject(raw string) (gjson.Result, error) {
	if !gjson.Valid(raw) {
		return gjson.Result{}, fmt.Errorf("model returned invalid JSON")
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return gjson.Result{}, fmt.Errorf("model returned %s, want object", doc.Type)
	}
	return doc, nil
}

// stringList collects up to max non-blank strings from a JSON array.
func stringList(arr gjson.Result, max int) []string {
	var out []string
	arr.ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
		return len(out) < max
	})
	return out
}
