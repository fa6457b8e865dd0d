package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/evidentia/internal/types"
)

func sampleEvidence() []types.NormalizedEvidence {
	return []types.NormalizedEvidence{
		{Type: types.EvidenceText, Text: "URGENT: wire transfer required"},
		{Type: types.EvidenceImage, Filename: "receipt.png", Text: "[Image provided]"},
		{Type: types.EvidenceLink, URL: "https://example.com/post", Text: "post body"},
	}
}

func reportWith(verdict types.Verdict, confidence int, claims ...types.Claim) *types.TruthReport {
	r := &types.TruthReport{Claims: claims}
	r.SetVerdict(verdict)
	r.SetConfidence(confidence)
	return r
}

func checkable(n int) []types.Claim {
	out := make([]types.Claim, n)
	for i := range out {
		out[i] = types.Claim{ID: types.ClaimID(i), Checkability: types.Checkable}
	}
	return out
}

func verifications(statuses ...types.VerificationStatus) []types.ClaimVerification {
	out := make([]types.ClaimVerification, 0, len(statuses))
	for i, s := range statuses {
		out = append(out, types.ClaimVerification{
			ClaimID:   types.ClaimID(i),
			Status:    s,
			Citations: []types.Citation{{Title: "t", Link: "https://example.com"}},
		})
	}
	return out
}

func TestCalibrate_CapsWithoutSearch(t *testing.T) {
	r := reportWith(types.VerdictLikelyFalse, 92, checkable(2)...)

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence()}, DefaultThresholds())

	assert.Equal(t, 65, r.Confidence)
	assert.Equal(t, 65, r.ExecutiveSummary.Confidence)
	assert.Equal(t, types.VerdictLikelyFalse, r.Verdict)
}

func TestCalibrate_SearchEnabledKeepsConfidence(t *testing.T) {
	r := reportWith(types.VerdictLikelyFalse, 92, checkable(2)...)

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence(), SearchEnabled: true}, DefaultThresholds())

	assert.Equal(t, 92, r.Confidence)
}

func TestCalibrate_LowCheckableRatio(t *testing.T) {
	claims := []types.Claim{
		{ID: "c1", Checkability: types.Checkable},
		{ID: "c2", Checkability: types.Opinion},
		{ID: "c3", Checkability: types.PartiallyCheckable},
		{ID: "c4", Checkability: types.Opinion},
	}
	r := reportWith(types.VerdictLikelyTrue, 80, claims...)

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence(), SearchEnabled: true}, DefaultThresholds())

	assert.Equal(t, 55, r.Confidence)
	assert.Equal(t, types.VerdictMixed, r.Verdict)
	assert.Equal(t, types.VerdictMixed, r.ExecutiveSummary.Verdict)
}

func TestCalibrate_NoClaimsSkipsCheckableRule(t *testing.T) {
	r := reportWith(types.VerdictLikelyTrue, 60)

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence(), SearchEnabled: true}, DefaultThresholds())

	assert.Equal(t, 60, r.Confidence)
	assert.Equal(t, types.VerdictLikelyTrue, r.Verdict)
}

func TestCalibrate_DisputedFloor(t *testing.T) {
	tests := []struct {
		name    string
		verdict types.Verdict
		want    int
	}{
		{"manipulated verdict", types.VerdictManipulated, 65},
		{"other verdict", types.VerdictLikelyFalse, 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reportWith(tt.verdict, 30, checkable(3)...)
			r.Scores.ManipulationRisk = 80
			r.ExternalVerification.PerClaim = verifications(types.StatusDisputed, types.StatusDisputed, types.StatusSupported)

			Calibrate(r, CalibrationInput{Evidence: sampleEvidence(), SearchEnabled: true}, DefaultThresholds())

			assert.Equal(t, tt.want, r.Confidence)
		})
	}
}

func TestCalibrate_DisputedFloorNeedsEnoughCitedClaims(t *testing.T) {
	r := reportWith(types.VerdictLikelyFalse, 30, checkable(2)...)
	r.Scores.AILikelihood = 90
	r.ExternalVerification.PerClaim = verifications(types.StatusDisputed, types.StatusDisputed)

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence(), SearchEnabled: true}, DefaultThresholds())

	assert.Equal(t, 30, r.Confidence)
}

func TestCalibrate_ManipulatedMinimum(t *testing.T) {
	r := reportWith(types.VerdictManipulated, 20, checkable(1)...)
	r.ManipulationAnalysis.AIGeneratedScore = 75

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence()}, DefaultThresholds())

	assert.Equal(t, 55, r.Confidence)
}

func TestCalibrate_ManipulatedWithoutSignalUnchanged(t *testing.T) {
	r := reportWith(types.VerdictManipulated, 20, checkable(1)...)
	r.Scores.ManipulationRisk = 40

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence()}, DefaultThresholds())

	assert.Equal(t, 20, r.Confidence)
}

func TestCalibrate_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.NoSearchCap = 40
	r := reportWith(types.VerdictLikelyFalse, 60, checkable(1)...)

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence()}, th)

	assert.Equal(t, 40, r.Confidence)
}

func TestCalibrate_FillsTimeline(t *testing.T) {
	r := reportWith(types.VerdictMixed, 50)

	Calibrate(r, CalibrationInput{Evidence: sampleEvidence()}, DefaultThresholds())

	require.Len(t, r.Timeline.Events, 3)
	assert.Equal(t, "T0", r.Timeline.Events[0].T)
	assert.Equal(t, "T0+2", r.Timeline.Events[2].T)
	assert.Equal(t, "Evidence submitted: Evidence 1 (text)", r.Timeline.Events[0].Label)
	assert.Equal(t, "Evidence submitted: receipt.png (image)", r.Timeline.Events[1].Label)
	assert.Equal(t, "Evidence submitted: https://example.com/post (link)", r.Timeline.Events[2].Label)
	assert.Equal(t, []string{"e2"}, r.Timeline.Events[1].SourceIDs)
	assert.True(t, r.Timeline.Events[0].Inferred)
}

func TestFillTimeline_KeepsExistingEvents(t *testing.T) {
	r := &types.TruthReport{Timeline: types.Timeline{
		Events:     []types.TimelineEvent{{T: "2024-01-01", Label: "posted"}},
		Confidence: 70,
	}}

	FillTimeline(r, sampleEvidence())

	require.Len(t, r.Timeline.Events, 1)
	assert.Equal(t, "posted", r.Timeline.Events[0].Label)
}

func TestTimelineSkeleton(t *testing.T) {
	assert.Equal(t, 55, TimelineSkeleton(sampleEvidence()).Confidence)
	single := TimelineSkeleton(sampleEvidence()[:1])
	assert.Equal(t, 35, single.Confidence)
	require.Len(t, single.Events, 1)
	assert.Equal(t, "low", single.Events[0].Confidence)
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.NoSearchCap = 120
	assert.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.DisputedRatio = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.MinCitedClaims = -1
	assert.Error(t, bad.Validate())
}
