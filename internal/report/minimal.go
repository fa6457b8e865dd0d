package report

import (
	"github.com/jonathan/evidentia/internal/types"
)

// SafetyNote is attached to every report's transparency section.
const SafetyNote = "This report is for decision support only. Not legal or professional advice."

// Minimal builds the error report returned when synthesis fails. Only the
// ledger and an inferred timeline are kept from the run.
func Minimal(rerr types.ReportError, evidence []types.NormalizedEvidence) *types.TruthReport {
	if rerr.Code == "" {
		rerr.Code = types.ErrorModel
	}
	r := &types.TruthReport{
		Source: types.SourceLive,
		Error:  &rerr,
		ExecutiveSummary: types.ExecutiveSummary{
			Why: []string{"Analysis could not be completed. See the error callout above."},
			WhatToDoNext: []string{
				"Check your GEMINI_API_KEY and try again.",
				"Ensure the API is not rate-limited.",
				"Retry with shorter or different evidence.",
			},
			NextSteps: []string{"Retry analysis.", "Check API key and quotas."},
		},
		EvidenceLedger: Ledger(evidence, 0),
		Timeline:       TimelineSkeleton(evidence),
		ExternalVerification: types.ExternalVerification{
			Enabled: false,
		},
		Transparency: types.Transparency{
			Analyzed:    AnalyzedList(evidence),
			Limitations: []string{"Analysis failed before completion."},
			SafetyNote:  SafetyNote,
		},
	}
	r.SetVerdict(types.VerdictMixed)
	r.SetConfidence(0)
	ensureSlices(r)
	return r
}
