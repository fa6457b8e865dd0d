package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/jonathan/evidentia/internal/schemas"
	"github.com/jonathan/evidentia/internal/types"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func gjsonSet(t *testing.T, doc, path, raw string) string {
	t.Helper()
	out, err := sjson.SetRaw(doc, path, raw)
	require.NoError(t, err)
	return out
}

func TestCanonicalize_ResolvesLegacyAliases(t *testing.T) {
	doc, err := Canonicalize([]byte(readFixture(t, "legacy_report.json")))
	require.NoError(t, err)

	get := func(path string) gjson.Result { return gjson.GetBytes(doc, path) }

	assert.Equal(t, "Mixed/Unclear", get("executiveSummary.verdict").String())
	assert.Equal(t, int64(62), get("executiveSummary.confidence").Int())
	assert.Equal(t, gjson.Number, get("confidence").Type)
	assert.Equal(t, "Wait for an official statement.", get("executiveSummary.whatToDoNext.0").String())

	assert.False(t, get("claimsDetected").Exists())
	assert.Equal(t, "c1", get("claims.0.id").String())

	assert.False(t, get("crossModalConsistency").Exists())
	assert.Equal(t, "Headline", get("contradictions.0.sourceA.source").String())
	assert.Equal(t, "Spokesperson", get("contradictions.0.sourceB.source").String())
	assert.Equal(t, "medium", get("contradictions.0.severity").String())
	assert.Equal(t, "Headline overstates the sourcing.", get("contradictions.0.explanation").String())
	assert.False(t, get("contradictions.0.a").Exists())
	assert.Equal(t, "No named source", get("missingContextFlags.0").String())

	assert.Equal(t, int64(20), get("manipulationAnalysis.aiGeneratedScore").Int())
	assert.Equal(t, 5.0, get("manipulationAnalysis.whichParts.0.start").Float())
	assert.Equal(t, 12.0, get("manipulationAnalysis.whichParts.0.end").Float())
	assert.Equal(t, int64(66), get("biasAnalysis.biasScore").Int())

	assert.Equal(t, "2024-05-01", get("timeline.events.0.t").String())
	assert.Equal(t, "Article published", get("timeline.events.0.label").String())
	assert.Equal(t, int64(47), get("timeline.confidence").Int())

	assert.Equal(t, "c1", get("externalVerification.perClaim.0.claimId").String())
	assert.Equal(t, "NotFound", get("externalVerification.perClaim.0.status").String())
	assert.Equal(t, "Mostly tabloids.", get("externalVerification.reliabilityNote").String())
	assert.Equal(t, "link: https://news.example.com/a", get("transparency.analyzed.0").String())

	assert.Equal(t, "e1", get("evidenceLedger.0.id").String())
	assert.Equal(t, "https://news.example.com/a", get("evidenceLedger.0.name").String())
	assert.Equal(t, "Unnamed insiders quoted", get("evidenceLedger.0.keyFacts.0").String())

	assert.Equal(t, int64(48), get("scores.consistency").Int())
	assert.Equal(t, int64(20), get("scores.manipulationRisk").Int())
	assert.Equal(t, int64(5), get("scores.scamRisk").Int())
	assert.Equal(t, int64(47), get("scores.timelineConfidence").Int())
	assert.False(t, get("consistencyScore").Exists())
}

func TestCanonicalize_RoundsAndClampsScores(t *testing.T) {
	doc, err := Canonicalize([]byte(`{
		"confidence": 104.7,
		"executiveSummary": {"confidence": -3},
		"aiAnalysis": {"overallLikelihood": 33.5, "breakdownByModality": {"text": 12.4, "audio": "71"}, "flaggedSegments": [{"modality": "text", "snippet": "x", "reason": "y", "confidence": 88.8}], "signals": []},
		"scores": {"consistency": 10, "manipulationRisk": 20, "bias": 30, "scamRisk": "45%", "timelineConfidence": 50, "aiLikelihood": 60}
	}`))
	require.NoError(t, err)

	assert.Equal(t, `100`, gjson.GetBytes(doc, "confidence").Raw)
	assert.Equal(t, `0`, gjson.GetBytes(doc, "executiveSummary.confidence").Raw)
	assert.Equal(t, `34`, gjson.GetBytes(doc, "aiAnalysis.overallLikelihood").Raw)
	assert.Equal(t, `12`, gjson.GetBytes(doc, "aiAnalysis.breakdownByModality.text").Raw)
	assert.Equal(t, `71`, gjson.GetBytes(doc, "aiAnalysis.breakdownByModality.audio").Raw)
	assert.Equal(t, `89`, gjson.GetBytes(doc, "aiAnalysis.flaggedSegments.0.confidence").Raw)
	assert.Equal(t, `45`, gjson.GetBytes(doc, "scores.scamRisk").Raw)
}

func TestCanonicalize_Claims(t *testing.T) {
	doc, err := Canonicalize([]byte(`{"claims": [
		{"id": "c2", "text": "a", "checkability": "Checkable"},
		{"text": "b", "checkability": " NOT_CHECKABLE "},
		{"id": " ", "text": "c"}
	]}`))
	require.NoError(t, err)

	ids := gjson.GetBytes(doc, "claims.#.id").Array()
	require.Len(t, ids, 3)
	assert.Equal(t, "c2", ids[0].String())
	assert.Equal(t, "c3", ids[1].String())
	assert.Equal(t, "c4", ids[2].String())

	assert.Equal(t, types.Checkable, gjson.GetBytes(doc, "claims.0.checkability").String())
	assert.Equal(t, "not_checkable", gjson.GetBytes(doc, "claims.1.checkability").String())
	assert.False(t, gjson.GetBytes(doc, "claims.2.checkability").Exists())
}

func TestCanonicalize_RejectsNonObjects(t *testing.T) {
	_, err := Canonicalize([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = Canonicalize([]byte(`{"broken":`))
	assert.Error(t, err)
}

func TestParseSynthesis_Canonical(t *testing.T) {
	reply := "```json\n" + readFixture(t, "canonical_report.json") + "\n```"

	r, err := ParseSynthesis(reply, SynthesisInput{})
	require.NoError(t, err)

	assert.Equal(t, types.SourceLive, r.Source)
	assert.Equal(t, types.VerdictLikelyFalse, r.Verdict)
	assert.Equal(t, types.VerdictLikelyFalse, r.ExecutiveSummary.Verdict)
	assert.Equal(t, 82, r.Confidence)
	assert.Equal(t, 82, r.ExecutiveSummary.Confidence)

	require.Len(t, r.Claims, 2)
	assert.Equal(t, "c1", r.Claims[0].ID)
	assert.Equal(t, "c9", r.Claims[1].ID)
	assert.Equal(t, "Evidence 1", r.EvidenceLedger[0].Name)

	assert.Equal(t, types.Scores{
		Consistency:        DefaultConsistencyScore,
		ManipulationRisk:   42,
		Bias:               55,
		ScamRisk:           91,
		TimelineConfidence: 30,
		AILikelihood:       42,
	}, r.Scores)

	assert.Equal(t, 42, r.AIAnalysis.OverallLikelihood)
	assert.Equal(t, []string{"urgency"}, r.AIAnalysis.Signals)
	require.Len(t, r.AIAnalysis.FlaggedSegments, 1)
	seg, ok := r.AIAnalysis.FlaggedSegments[0].(types.TextSegment)
	require.True(t, ok)
	assert.Equal(t, "act now", seg.Snippet)
	assert.Equal(t, 64, seg.Confidence)

	assert.NotNil(t, r.ExternalVerification.PerClaim)
	assert.NotNil(t, r.Contradictions)
}

func TestParseSynthesis_UsesStageConsistencyScore(t *testing.T) {
	r, err := ParseSynthesis(readFixture(t, "canonical_report.json"), SynthesisInput{ConsistencyScore: 61})
	require.NoError(t, err)
	assert.Equal(t, 61, r.Scores.Consistency)
}

func TestParseSynthesis_Legacy(t *testing.T) {
	r, err := ParseSynthesis(readFixture(t, "legacy_report.json"), SynthesisInput{})
	require.NoError(t, err)

	assert.Equal(t, types.VerdictMixed, r.Verdict)
	assert.Equal(t, 62, r.Confidence)
	require.Len(t, r.Contradictions, 1)
	assert.Equal(t, types.SeverityMedium, r.Contradictions[0].Severity)
	require.Len(t, r.Timeline.Events, 1)
	assert.Equal(t, "Article published", r.Timeline.Events[0].Label)
	require.Len(t, r.ExternalVerification.PerClaim, 1)
	assert.Equal(t, types.StatusNotFound, r.ExternalVerification.PerClaim[0].Status)

	require.Len(t, r.AIAnalysis.FlaggedSegments, 1)
	seg, ok := r.AIAnalysis.FlaggedSegments[0].(types.TimeRangeSegment)
	require.True(t, ok)
	assert.Equal(t, types.ModalityVideo, seg.Media)
	assert.Equal(t, 5.0, seg.StartSec)
	assert.Equal(t, 12.0, seg.EndSec)
	assert.Equal(t, DefaultSegmentConfidence, seg.Confidence)
}

func TestParseSynthesis_StagePartsFillSegments(t *testing.T) {
	doc := gjsonSet(t, readFixture(t, "canonical_report.json"), "manipulationAnalysis.whichParts", `[]`)
	start, end := 2.0, 4.5
	parts := []types.ManipulationPart{{Type: "audio", Start: &start, End: &end, Reason: "voice clone"}}

	r, err := ParseSynthesis(doc, SynthesisInput{Parts: parts})
	require.NoError(t, err)

	require.Len(t, r.AIAnalysis.FlaggedSegments, 1)
	assert.Equal(t, types.ModalityAudio, r.AIAnalysis.FlaggedSegments[0].Modality())
}

func TestParseSynthesis_SchemaFailure(t *testing.T) {
	doc := gjsonSet(t, readFixture(t, "canonical_report.json"), "executiveSummary.verdict", `"Probably fine"`)

	_, err := ParseSynthesis(doc, SynthesisInput{})
	require.Error(t, err)

	var verr *schemas.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, ValidationMessage(err), "Report validation failed: ")
}

func TestParseSynthesis_MissingSections(t *testing.T) {
	_, err := ParseSynthesis(`{"executiveSummary": {"verdict": "Likely True", "confidence": 90, "why": [], "whatToDoNext": []}}`, SynthesisInput{})
	require.Error(t, err)
	assert.Contains(t, ValidationMessage(err), "Report validation failed")
}

func TestParseSynthesis_InvalidJSON(t *testing.T) {
	_, err := ParseSynthesis("I could not produce a report.", SynthesisInput{})
	require.Error(t, err)
	assert.Equal(t, err.Error(), ValidationMessage(err))
}

func TestFlaggedSegmentsFromParts(t *testing.T) {
	conf := 91
	parts := []types.ManipulationPart{
		{Type: "video", Reason: "lip sync"},
		{Type: "text", Reason: "template", Quote: "Dear customer", Confidence: &conf},
		{Type: "image", Reason: "cloned region"},
		{Type: "image", Reason: "warped", RegionHint: "upper left"},
		{Type: "hologram", Reason: "skipped"},
	}

	segs := FlaggedSegmentsFromParts(parts)
	require.Len(t, segs, 4)

	video := segs[0].(types.TimeRangeSegment)
	assert.Equal(t, 0.0, video.StartSec)
	assert.Equal(t, 1.0, video.EndSec)
	assert.Equal(t, DefaultSegmentConfidence, video.Confidence)

	text := segs[1].(types.TextSegment)
	assert.Equal(t, "Dear customer", text.Snippet)
	assert.Equal(t, 91, text.Confidence)

	assert.Equal(t, "see reason", segs[2].(types.ImageSegment).RegionHint)
	assert.Equal(t, "upper left", segs[3].(types.ImageSegment).RegionHint)
}

func TestParseClaims(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		ids   []string
	}{
		{"object", `{"claims": [{"text": "a", "checkability": "Checkable"}, {"id": "x", "text": "b"}]}`, []string{"c1", "x"}},
		{"bare array", "```json\n[{\"text\": \"a\"}]\n```", []string{"c1"}},
		{"legacy key", `{"claimsDetected": [{"text": "a"}]}`, []string{"c1"}},
		{"empty", `{"claims": []}`, []string{}},
		{"backfill skips later id", `{"claims": [{"id": "c2", "text": "a"}, {"text": "b"}]}`, []string{"c2", "c3"}},
		{"backfill skips earlier id", `{"claims": [{"text": "a"}, {"id": "c1", "text": "b"}]}`, []string{"c2", "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseClaims(tt.reply)
			require.NoError(t, err)
			ids := make([]string, 0, len(claims))
			for _, c := range claims {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}

	claims, err := ParseClaims(`{"claims": [{"text": "a", "checkability": " Checkable "}]}`)
	require.NoError(t, err)
	assert.Equal(t, types.Checkable, claims[0].Checkability)

	_, err = ParseClaims(`{"items": []}`)
	assert.Error(t, err)
	_, err = ParseClaims("no json here")
	assert.Error(t, err)
}

func TestParseManipulation(t *testing.T) {
	m, err := ParseManipulation(`Here you go: {"aiGeneratedScore": 77.4, "whichParts": [{"type": "Audio", "start": "1:30", "end": 95, "reason": "drift"}]}`)
	require.NoError(t, err)

	assert.Equal(t, 77, m.AIGeneratedScore)
	assert.Empty(t, m.Signals)
	assert.NotNil(t, m.DeepfakeSignals)
	require.Len(t, m.WhichParts, 1)
	assert.Equal(t, "audio", m.WhichParts[0].Type)
	require.NotNil(t, m.WhichParts[0].Start)
	assert.Equal(t, 90.0, *m.WhichParts[0].Start)
	assert.Equal(t, 95.0, *m.WhichParts[0].End)

	_, err = ParseManipulation(`["not", "an", "object"]`)
	assert.Error(t, err)
}

func TestParseVerifications(t *testing.T) {
	reply := `{
		"claimVerifications": [
			{"claimIndex": 2, "status": "Not found", "citations": []},
			{"claimId": "c1", "status": "supported", "citations": [{"title": "Bank notice", "link": "https://www.example.co.uk/notice"}]}
		],
		"sourceReliabilityNote": "Official bank pages."
	}`

	perClaim, note, err := ParseVerifications(reply)
	require.NoError(t, err)

	assert.Equal(t, "Official bank pages.", note)
	require.Len(t, perClaim, 2)
	assert.Equal(t, "c3", perClaim[0].ClaimID)
	assert.Equal(t, types.StatusNotFound, perClaim[0].Status)
	assert.Equal(t, types.StatusSupported, perClaim[1].Status)
	assert.Equal(t, "example.co.uk", perClaim[1].Citations[0].Domain)
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]types.VerificationStatus{
		"Supported": types.StatusSupported,
		"disputed":  types.StatusDisputed,
		"Not found": types.StatusNotFound,
		"not_found": types.StatusNotFound,
		"unclear":   types.StatusNotFound,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeStatus(in), in)
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{"12.5s", 12.5, true},
		{"1:05", 65, true},
		{"01:02:03", 3723, true},
		{"soon", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseSeconds(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
