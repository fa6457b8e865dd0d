package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerdict_Valid(t *testing.T) {
	assert.True(t, VerdictMixed.Valid())
	assert.True(t, VerdictManipulated.Valid())
	assert.False(t, Verdict("Probably").Valid())
}

func TestTruthReport_SetVerdictAndConfidence(t *testing.T) {
	var r TruthReport
	r.SetVerdict(VerdictLikelyFalse)
	r.SetConfidence(140)

	assert.Equal(t, VerdictLikelyFalse, r.ExecutiveSummary.Verdict)
	assert.Equal(t, 100, r.Confidence)
	assert.Equal(t, 100, r.ExecutiveSummary.Confidence)

	r.SetConfidence(-3)
	assert.Equal(t, 0, r.Confidence)
}

func TestTruthReport_JSONShape(t *testing.T) {
	start, end := 1.5, 4.0
	r := TruthReport{
		Verdict:    VerdictMixed,
		Confidence: 40,
		Source:     SourceLive,
		Error:      &ReportError{Code: ErrorModel, Message: "boom", StatusCode: 503},
		ManipulationAnalysis: ManipulationAnalysis{
			WhichParts: []ManipulationPart{{Type: "audio", Start: &start, End: &end, Reason: "splice"}},
		},
		AIAnalysis: AIAnalysis{
			FlaggedSegments: FlaggedSegments{TextSegment{Snippet: "s", Reason: "r", Confidence: 70}},
		},
		Timeline: Timeline{Events: []TimelineEvent{{T: "T0", Label: "start", Inferred: true}}},
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"executiveSummary"`)
	assert.Contains(t, s, `"evidenceLedger"`)
	assert.Contains(t, s, `"code":"gemini_error"`)
	assert.Contains(t, s, `"statusCode":503`)
	assert.Contains(t, s, `"start":1.5`)
	assert.Contains(t, s, `"modality":"text"`)

	var back TruthReport
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back.AIAnalysis.FlaggedSegments, 1)
	assert.Equal(t, "s", back.AIAnalysis.FlaggedSegments[0].(TextSegment).Snippet)
	assert.Equal(t, 1.5, *back.ManipulationAnalysis.WhichParts[0].Start)
}

func TestTruthReport_ErrorOmittedWhenNil(t *testing.T) {
	b, err := json.Marshal(TruthReport{Verdict: VerdictLikelyTrue})
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"error"`)
}
