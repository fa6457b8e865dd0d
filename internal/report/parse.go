package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/jonathan/evidentia/internal/llm"
	"github.com/jonathan/evidentia/internal/research"
	"github.com/jonathan/evidentia/internal/schemas"
	"github.com/jonathan/evidentia/internal/types"
)

// DefaultConsistencyScore is used when no consistency data reached synthesis.
const DefaultConsistencyScore = 85

// DefaultSegmentConfidence applies to flagged parts without a confidence.
const DefaultSegmentConfidence = 70

// SynthesisInput carries the stage outputs a synthesized report is completed from.
type SynthesisInput struct {
	ConsistencyScore int
	// Parts are the manipulation stage's flagged parts, used when the
	// synthesized report carries none.
	Parts []types.ManipulationPart
}

// ParseSynthesis turns the report model's reply into a canonical, validated
// TruthReport. A *schemas.ValidationError is returned when the canonical
// document does not satisfy the report schema.
func ParseSynthesis(text string, in SynthesisInput) (*types.TruthReport, error) {
	raw := []byte(llm.CleanJSONBlock(text))
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("report model returned invalid JSON")
	}
	if gjson.ParseBytes(raw).IsObject() &&
		!gjson.GetBytes(raw, "scores").Exists() &&
		!gjson.GetBytes(raw, "consistencyScore").Exists() &&
		!gjson.GetBytes(raw, "crossModalConsistency.consistencyScore").Exists() {
		score := in.ConsistencyScore
		if score == 0 {
			score = DefaultConsistencyScore
		}
		var err error
		if raw, err = sjson.SetBytes(raw, "consistencyScore", score); err != nil {
			return nil, err
		}
	}

	doc, err := Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	if err := schemas.ValidateReport(doc); err != nil {
		return nil, err
	}

	var r types.TruthReport
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("decode canonical report: %w", err)
	}
	applyDefaults(&r, gjson.GetBytes(doc, "aiAnalysis").Exists(), in.Parts)
	return &r, nil
}

// ValidationMessage renders a synthesis failure for the error report.
func ValidationMessage(err error) string {
	var verr *schemas.ValidationError
	if errors.As(err, &verr) {
		return "Report validation failed: " + verr.Summary(3)
	}
	return err.Error()
}

func applyDefaults(r *types.TruthReport, hasAI bool, stageParts []types.ManipulationPart) {
	r.Source = types.SourceLive
	r.SetVerdict(r.ExecutiveSummary.Verdict)
	r.SetConfidence(r.ExecutiveSummary.Confidence)

	parts := r.ManipulationAnalysis.WhichParts
	if len(parts) == 0 {
		parts = stageParts
	}
	if !hasAI {
		r.AIAnalysis = types.AIAnalysis{
			OverallLikelihood: r.ManipulationAnalysis.AIGeneratedScore,
			Signals:           r.ManipulationAnalysis.Signals,
		}
	}
	if len(r.AIAnalysis.FlaggedSegments) == 0 && len(parts) > 0 {
		r.AIAnalysis.FlaggedSegments = FlaggedSegmentsFromParts(parts)
	}
	ensureSlices(r)
}

// ensureSlices replaces nil slices so the report always serializes arrays.
func ensureSlices(r *types.TruthReport) {
	if r.ExecutiveSummary.Why == nil {
		r.ExecutiveSummary.Why = []string{}
	}
	if r.ExecutiveSummary.WhatToDoNext == nil {
		r.ExecutiveSummary.WhatToDoNext = []string{}
	}
	if r.Claims == nil {
		r.Claims = []types.Claim{}
	}
	if r.EvidenceLedger == nil {
		r.EvidenceLedger = []types.LedgerEntry{}
	}
	for i := range r.EvidenceLedger {
		if r.EvidenceLedger[i].KeyFacts == nil {
			r.EvidenceLedger[i].KeyFacts = []string{}
		}
	}
	if r.Contradictions == nil {
		r.Contradictions = []types.Contradiction{}
	}
	if r.MissingContextFlags == nil {
		r.MissingContextFlags = []string{}
	}
	m := &r.ManipulationAnalysis
	if m.DeepfakeSignals == nil {
		m.DeepfakeSignals = []string{}
	}
	if m.WhichParts == nil {
		m.WhichParts = []types.ManipulationPart{}
	}
	if m.Signals == nil {
		m.Signals = []string{}
	}
	if r.AIAnalysis.FlaggedSegments == nil {
		r.AIAnalysis.FlaggedSegments = types.FlaggedSegments{}
	}
	if r.AIAnalysis.Signals == nil {
		r.AIAnalysis.Signals = []string{}
	}
	if r.BiasAnalysis.PersuasionTactics == nil {
		r.BiasAnalysis.PersuasionTactics = []string{}
	}
	if r.BiasAnalysis.EmotionalManipulation == nil {
		r.BiasAnalysis.EmotionalManipulation = []string{}
	}
	if r.Timeline.Events == nil {
		r.Timeline.Events = []types.TimelineEvent{}
	}
	if r.ExternalVerification.PerClaim == nil {
		r.ExternalVerification.PerClaim = []types.ClaimVerification{}
	}
	if r.Transparency.Analyzed == nil {
		r.Transparency.Analyzed = []string{}
	}
	if r.Transparency.NotAnalyzed == nil {
		r.Transparency.NotAnalyzed = []string{}
	}
	if r.Transparency.Limitations == nil {
		r.Transparency.Limitations = []string{}
	}
}

// FlaggedSegmentsFromParts converts manipulation-stage parts into display
// segments. Parts of an unknown type are skipped.
func FlaggedSegmentsFromParts(parts []types.ManipulationPart) types.FlaggedSegments {
	out := make(types.FlaggedSegments, 0, len(parts))
	for _, p := range parts {
		conf := DefaultSegmentConfidence
		if p.Confidence != nil {
			conf = types.ClampScore(*p.Confidence)
		}
		switch strings.ToLower(p.Type) {
		case types.ModalityVideo, types.ModalityAudio:
			seg := types.TimeRangeSegment{Media: strings.ToLower(p.Type), EndSec: 1, Reason: p.Reason, Confidence: conf}
			if p.Start != nil {
				seg.StartSec = *p.Start
			}
			if p.End != nil {
				seg.EndSec = *p.End
			}
			out = append(out, seg)
		case types.ModalityText:
			out = append(out, types.TextSegment{Snippet: p.Quote, Reason: p.Reason, Confidence: conf})
		case types.ModalityImage:
			hint := p.RegionHint
			if hint == "" {
				hint = "see reason"
			}
			out = append(out, types.ImageSegment{RegionHint: hint, Reason: p.Reason, Confidence: conf})
		}
	}
	return out
}

// ParseClaims decodes the claims stage reply. Both {"claims": [...]} and a
// bare array are accepted; missing ids are filled sequentially.
func ParseClaims(text string) ([]types.Claim, error) {
	raw := llm.CleanJSONBlock(text)
	if !gjson.Valid(raw) {
		return nil, errors.New("claims reply is not valid JSON")
	}
	list := gjson.Parse(raw)
	if list.IsObject() {
		list = list.Get("claims")
		if !list.Exists() {
			list = gjson.Get(raw, "claimsDetected")
		}
	}
	if !list.IsArray() {
		return nil, errors.New("claims reply has no claims array")
	}

	var claims []types.Claim
	if err := json.Unmarshal([]byte(list.Raw), &claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	existing := make([]string, len(claims))
	for i, c := range claims {
		existing[i] = c.ID
	}
	ids := newClaimIDs(existing)
	for i := range claims {
		if strings.TrimSpace(claims[i].ID) == "" {
			claims[i].ID = ids.next(i)
		}
		claims[i].Checkability = strings.ToLower(strings.TrimSpace(claims[i].Checkability))
	}
	if claims == nil {
		claims = []types.Claim{}
	}
	return claims, nil
}

// ParseManipulation decodes the manipulation stage reply.
func ParseManipulation(text string) (types.ManipulationAnalysis, error) {
	var out types.ManipulationAnalysis
	raw := []byte(llm.CleanJSONBlock(text))
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return out, errors.New("manipulation reply is not a JSON object")
	}
	raw, err := roundScore(raw, "aiGeneratedScore")
	if err != nil {
		return out, err
	}
	if raw, err = normalizeParts(raw, "whichParts"); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode manipulation: %w", err)
	}
	if out.DeepfakeSignals == nil {
		out.DeepfakeSignals = []string{}
	}
	if out.WhichParts == nil {
		out.WhichParts = []types.ManipulationPart{}
	}
	if out.Signals == nil {
		out.Signals = []string{}
	}
	return out, nil
}

// ParseVerifications decodes the verification summary reply and returns the
// per-claim results with the reliability note.
func ParseVerifications(text string) ([]types.ClaimVerification, string, error) {
	raw := []byte(llm.CleanJSONBlock(text))
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, "", errors.New("verification reply is not a JSON object")
	}
	doc, err := sjson.SetRawBytes([]byte(`{}`), "externalVerification", raw)
	if err != nil {
		return nil, "", err
	}
	for _, a := range reportAliases {
		if !strings.HasPrefix(a.canonical, "externalVerification.") {
			continue
		}
		if doc, err = resolveAlias(doc, a); err != nil {
			return nil, "", err
		}
	}
	if doc, err = canonicalPerClaim(doc); err != nil {
		return nil, "", err
	}

	var ev types.ExternalVerification
	if err := json.Unmarshal([]byte(gjson.GetBytes(doc, "externalVerification").Raw), &ev); err != nil {
		return nil, "", fmt.Errorf("decode verifications: %w", err)
	}
	for i := range ev.PerClaim {
		for j := range ev.PerClaim[i].Citations {
			c := &ev.PerClaim[i].Citations[j]
			if c.Domain == "" {
				c.Domain = research.DomainOf(c.Link)
			}
		}
	}
	if ev.PerClaim == nil {
		ev.PerClaim = []types.ClaimVerification{}
	}
	return ev.PerClaim, ev.ReliabilityNote, nil
}

// ApplyVerification replaces the report's external verification with the
// one computed by the verification stage.
func ApplyVerification(r *types.TruthReport, ev types.ExternalVerification) {
	if ev.PerClaim == nil {
		ev.PerClaim = []types.ClaimVerification{}
	}
	r.ExternalVerification = ev
}

func normalizeParts(doc []byte, path string) ([]byte, error) {
	return eachItem(doc, path, func(doc []byte, item string, _ int) ([]byte, error) {
		var err error
		if t := gjson.GetBytes(doc, item+".type"); t.Type == gjson.String {
			if doc, err = sjson.SetBytes(doc, item+".type", strings.ToLower(t.String())); err != nil {
				return nil, err
			}
		}
		for _, key := range []string{"start", "end"} {
			v := gjson.GetBytes(doc, item+"."+key)
			if v.Type != gjson.String {
				continue
			}
			if sec, ok := parseSeconds(v.String()); ok {
				doc, err = sjson.SetBytes(doc, item+"."+key, sec)
			} else {
				doc, err = sjson.DeleteBytes(doc, item+"."+key)
			}
			if err != nil {
				return nil, err
			}
		}
		return roundScore(doc, item+".confidence")
	})
}

// parseSeconds reads "12", "12.5s", "1:05" or "01:02:03" as seconds.
func parseSeconds(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "s")
	if s == "" {
		return 0, false
	}
	var total float64
	for _, field := range strings.Split(s, ":") {
		f, err := strconv.ParseFloat(field, 64)
		if err != nil || f < 0 || math.IsInf(f, 0) {
			return 0, false
		}
		total = total*60 + f
	}
	return total, true
}
