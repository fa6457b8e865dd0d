package report

import (
	"fmt"

	"github.com/jonathan/evidentia/internal/types"
)

const maxKeyFindings = 5

// KeyFindings summarizes r in at most five lines for terminal and list views.
func KeyFindings(r *types.TruthReport) []string {
	var findings []string

	if len(r.Contradictions) > 0 {
		c := r.Contradictions[0]
		for _, cand := range r.Contradictions {
			if cand.Severity == types.SeverityHigh {
				c = cand
				break
			}
		}
		if c.Explanation != "" {
			findings = append(findings, c.Explanation)
		} else {
			findings = append(findings, fmt.Sprintf("Contradiction: %s vs %s", c.SourceA.Source, c.SourceB.Source))
		}
	}

	switch {
	case r.Scores.ScamRisk >= 70:
		findings = append(findings, fmt.Sprintf("High scam risk (%d%%), treat with caution.", r.Scores.ScamRisk))
	case r.Scores.ManipulationRisk >= 70:
		findings = append(findings, fmt.Sprintf("High AI/manipulation likelihood (%d%%).", r.Scores.ManipulationRisk))
	}

	if perClaim := r.ExternalVerification.PerClaim; len(perClaim) > 0 {
		supported := 0
		doubtful := false
		for _, v := range perClaim {
			switch v.Status {
			case types.StatusSupported:
				supported++
			case types.StatusDisputed, types.StatusNotFound:
				doubtful = true
			}
		}
		if doubtful {
			findings = append(findings, "At least one claim disputed or not found in external sources.")
		}
		if supported > 0 {
			findings = append(findings, fmt.Sprintf("%d claim(s) supported by external sources.", supported))
		}
	}

	signals := r.AIAnalysis.Signals
	if len(signals) == 0 {
		signals = r.ManipulationAnalysis.Signals
	}
	if len(signals) > 0 {
		findings = append(findings, "Top signal: "+signals[0])
	}

	if len(findings) > maxKeyFindings {
		findings = findings[:maxKeyFindings]
	}
	return findings
}
