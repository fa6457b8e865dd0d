package report

import (
	"regexp"

	"github.com/jonathan/evidentia/internal/textutil"
	"github.com/jonathan/evidentia/internal/types"
)

// MissingKeyMessage is the configuration warning attached to demo reports
// produced because no model backend is configured.
const MissingKeyMessage = "GEMINI_API_KEY not configured. Add it in .env for full analysis."

// Scenario ids the demo builder recognizes in addition to its text heuristics.
const (
	ScenarioViralNews     = "viral-news"
	ScenarioRelationship  = "relationship-screenshots"
	ScenarioAIMediaClip   = "ai-media-clip"
	ScenarioMetaDemo      = "meta-demo"
	demoHeuristicWindow   = 500
	demoClaimLength       = 120
	demoCitationsPerClaim = 2
)

var (
	scamPattern         = regexp.MustCompile(`(?i)urgent|wire transfer|inheritance|lottery|click here|verify your account`)
	viralPattern        = regexp.MustCompile(`(?i)breaking|unnamed source|insiders|share to spread`)
	relationshipPattern = regexp.MustCompile(`(?i)screenshot|Person A|Person B|Dec \d`)
	syntheticPattern    = regexp.MustCompile(`(?i)synthetic|AI-generated|confession script|unnatural cadence`)
	metaDemoPattern     = regexp.MustCompile(`(?i)demo video|AI vs real|segments`)
)

// SeededCitations are the fixed illustrative sources attached in demo mode.
var SeededCitations = []types.Citation{
	{
		Title:   "FTC Consumer Information – Scams",
		Domain:  "consumer.ftc.gov",
		Snippet: "How to avoid inheritance and advance-fee scams.",
		Link:    "https://consumer.ftc.gov/articles/how-avoid-inheritance-scams",
	},
	{
		Title:   "FBI Internet Crime Report",
		Domain:  "ic3.gov",
		Snippet: "Reporting and statistics on phishing and wire fraud.",
		Link:    "https://www.ic3.gov/",
	},
	{
		Title:   "Reuters – Fact Check",
		Domain:  "reuters.com",
		Snippet: "No official confirmation of celebrity split at this time.",
		Link:    "https://www.reuters.com/",
	},
	{
		Title:   "AP News Verification",
		Domain:  "apnews.com",
		Snippet: "Unverified claims should be treated as rumor until confirmed.",
		Link:    "https://apnews.com/",
	},
}

// demoSignals are the heuristic matches over the first evidence item.
type demoSignals struct {
	scam, viral, relationship, synthetic, metaDemo bool
}

func detectDemoSignals(text, scenarioID string) demoSignals {
	return demoSignals{
		scam:         scamPattern.MatchString(text),
		viral:        viralPattern.MatchString(text),
		relationship: relationshipPattern.MatchString(text),
		synthetic:    syntheticPattern.MatchString(text),
		metaDemo:     scenarioID == ScenarioMetaDemo || metaDemoPattern.MatchString(text),
	}
}

type choice[T any] struct {
	ok bool
	v  T
}

func when[T any](ok bool, v T) choice[T] { return choice[T]{ok, v} }

// pick returns the value of the first true choice, else fallback.
func pick[T any](fallback T, cases ...choice[T]) T {
	for _, c := range cases {
		if c.ok {
			return c.v
		}
	}
	return fallback
}

// Demo builds the deterministic heuristic report used when no model backend
// is configured. It is tagged source=demo and carries no error; callers add
// the missing_key error outside of an explicit demo request.
func Demo(evidence []types.NormalizedEvidence, scenarioID string) *types.TruthReport {
	var first string
	if len(evidence) > 0 {
		first = textutil.Truncate(evidence[0].Text, demoHeuristicWindow)
	}
	s := detectDemoSignals(first, scenarioID)
	manipulated := s.scam || s.synthetic

	verdict := types.VerdictMixed
	if manipulated {
		verdict = types.VerdictManipulated
	}
	confidence := pick(58, when(s.scam, 88), when(s.synthetic, 72), when(s.viral, 45))

	claims := []types.Claim{}
	if first != "" {
		claims = append(claims, types.Claim{
			ID:           types.ClaimID(0),
			Text:         textutil.Truncate(first, demoClaimLength) + "...",
			Category:     "general",
			Checkability: types.PartiallyCheckable,
			Importance:   "medium",
		})
	}

	contradictions := []types.Contradiction{}
	if scenarioID == ScenarioViralNews || s.viral {
		contradictions = append(contradictions, types.Contradiction{
			ClaimID:     "c1",
			SourceA:     types.SourceDetail{Source: "Article headline", Detail: "Claims marriage over, breaking news."},
			SourceB:     types.SourceDetail{Source: "Official sources", Detail: "No official statement released."},
			Severity:    types.SeverityMedium,
			Explanation: "Headline and unnamed sources contradict lack of official confirmation.",
		})
	}
	if scenarioID == ScenarioRelationship || s.relationship {
		contradictions = append(contradictions, types.Contradiction{
			ClaimID:     "c1",
			SourceA:     types.SourceDetail{Source: "Screenshot 1", Detail: "Person B apologizes, admits mistake."},
			SourceB:     types.SourceDetail{Source: "Screenshot 3", Detail: "Person B says they have moved on."},
			Severity:    types.SeverityLow,
			Explanation: "Timeline suggests shifting narrative; screenshots could be edited or out of order.",
		})
	}

	parts, segments := demoParts(scenarioID == ScenarioAIMediaClip || s.synthetic, s.metaDemo)

	status := types.StatusSupported
	if s.scam {
		status = types.StatusDisputed
	}
	perClaim := make([]types.ClaimVerification, 0, len(claims))
	for _, c := range claims {
		cites := make([]types.Citation, demoCitationsPerClaim)
		copy(cites, SeededCitations[:demoCitationsPerClaim])
		perClaim = append(perClaim, types.ClaimVerification{ClaimID: c.ID, Status: status, Citations: cites})
	}

	signals := pick([]string{}, when(s.scam, []string{"Urgency", "Persuasion tactics"}), when(s.synthetic, []string{"Repetitive structure", "Declared synthetic"}))
	risk := pick(35, when(manipulated, 75))
	aiLikelihood := pick(35, when(s.synthetic, 75), when(s.scam, 65))
	bias := pick(30, when(s.scam, 80), when(s.viral, 60))
	scamRisk := pick(25, when(s.scam, 95))

	why2 := "Insufficient external verification in demo mode."
	if len(contradictions) > 0 {
		why2 = "Contradictions or missing context identified."
	}

	ledger := make([]types.LedgerEntry, 0, len(evidence))
	for i, ev := range evidence {
		entry := NewLedgerEntry(i, ev, []string{"Processed in demo mode"}, DemoPreviewLength)
		entry.ExtractedFacts = []string{"Processed in demo mode"}
		ledger = append(ledger, entry)
	}

	r := &types.TruthReport{
		Source: types.SourceDemo,
		Scores: types.Scores{
			Consistency:        70,
			ManipulationRisk:   risk,
			Bias:               bias,
			ScamRisk:           scamRisk,
			TimelineConfidence: 40,
			AILikelihood:       aiLikelihood,
		},
		AIAnalysis: types.AIAnalysis{
			OverallLikelihood: aiLikelihood,
			BreakdownByModality: map[string]int{
				"text":  pick(40, when(s.synthetic, 80)),
				"image": 0,
				"audio": pick(0, when(s.synthetic, 70)),
				"video": pick(0, when(s.metaDemo, 60)),
				"link":  0,
				"pdf":   0,
			},
			FlaggedSegments: segments,
			Signals:         signals,
		},
		ExecutiveSummary: types.ExecutiveSummary{
			Why: []string{
				pick("Evidence analyzed with limited heuristics (demo mode).",
					when(s.scam, "Scam-like language and urgency detected."),
					when(s.synthetic, "Scripted/synthetic tone and markers detected.")),
				why2,
				"Add GEMINI_API_KEY for full analysis.",
			},
			WhatToDoNext: []string{
				"Do not send money or credentials based on this content.",
				"Verify claims with official sources.",
				"Use full Truth Engine with API keys for production.",
			},
			NextSteps: []string{"Verify with official sources.", "Do not act on unverified claims."},
		},
		Claims:              claims,
		EvidenceLedger:      ledger,
		Contradictions:      contradictions,
		MissingContextFlags: []string{"Demo mode: limited analysis"},
		ManipulationAnalysis: types.ManipulationAnalysis{
			AIGeneratedScore: risk,
			DeepfakeSignals:  pick([]string{}, when(s.scam, []string{"Urgency language"}), when(s.synthetic, []string{"Scripted cadence"})),
			WhichParts:       parts,
			Signals:          signals,
		},
		BiasAnalysis: types.BiasAnalysis{
			BiasScore:             bias,
			PersuasionTactics:     pick([]string{}, when(s.scam, []string{"Urgency", "Authority"})),
			EmotionalManipulation: []string{},
			ScamRiskScore:         scamRisk,
			Explanation: pick("Limited bias signals in demo mode.",
				when(s.scam, "Classic advance-fee scam patterns."),
				when(s.viral, "Clickbait and unverified claims.")),
		},
		Timeline: types.Timeline{Events: []types.TimelineEvent{}, Confidence: 40},
		ExternalVerification: types.ExternalVerification{
			Enabled:         false,
			PerClaim:        perClaim,
			ReliabilityNote: "Demo mode: sample citations for illustration. Configure SEARCH_API_KEY for real verification.",
		},
		Transparency: types.Transparency{
			Analyzed:    AnalyzedList(evidence),
			NotAnalyzed: []string{"External search", "Full media parsing"},
			Limitations: []string{"Demo mode", "No external search", "Heuristic-only when no API key"},
			SafetyNote:  "This report is for decision support only. It is not legal, medical, or professional advice. Verify critical claims independently.",
		},
	}
	r.SetVerdict(verdict)
	r.SetConfidence(confidence)
	FillTimeline(r, evidence)
	return r
}

func demoParts(synthetic, metaDemo bool) ([]types.ManipulationPart, types.FlaggedSegments) {
	parts := []types.ManipulationPart{}
	segments := types.FlaggedSegments{}
	span := func(start, end float64) (*float64, *float64) { return &start, &end }

	if synthetic {
		s1, e1 := span(0, 10)
		s2, e2 := span(10, 20)
		parts = append(parts,
			types.ManipulationPart{Type: types.ModalityText, Reason: "Declared synthetic script", Quote: "Synthetic voice / AI-generated", Start: s1, End: e1},
			types.ManipulationPart{Type: types.ModalityText, Reason: "Repetitive phrasing and generic apology", Quote: "I want to apologize to everyone affected", Start: s2, End: e2},
		)
		segments = append(segments,
			types.TextSegment{Snippet: "Synthetic voice / AI-generated", Reason: "Declared synthetic script", Confidence: 85},
			types.TextSegment{Snippet: "I want to apologize to everyone affected", Reason: "Repetitive phrasing", Confidence: 72},
		)
	}
	if metaDemo {
		clips := []struct {
			start, end float64
			part, seg  string
			confidence int
		}{
			{0, 45, "Likely AI-generated narration", "Likely AI-generated narration", 78},
			{45, 90, "Real UI capture", "Real UI capture", 85},
			{90, 120, "Possible synthetic voice segment", "Possible synthetic voice", 65},
		}
		for _, c := range clips {
			start, end := span(c.start, c.end)
			parts = append(parts, types.ManipulationPart{Type: types.ModalityVideo, Reason: c.part, Start: start, End: end})
			segments = append(segments, types.TimeRangeSegment{
				Media: types.ModalityVideo, StartSec: c.start, EndSec: c.end, Reason: c.seg, Confidence: c.confidence,
			})
		}
	}
	return parts, segments
}
