package types

// Verdict is the overall judgement of a report.
type Verdict string

// Verdicts a report may carry.
const (
	VerdictLikelyTrue  Verdict = "Likely True"
	VerdictMixed       Verdict = "Mixed/Unclear"
	VerdictLikelyFalse Verdict = "Likely False"
	VerdictManipulated Verdict = "Manipulated/Deceptive"
)

// Valid reports whether v is one of the four known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictLikelyTrue, VerdictMixed, VerdictLikelyFalse, VerdictManipulated:
		return true
	}
	return false
}

// ReportSource marks whether a report came from live inference or the demo builder.
type ReportSource string

const (
	SourceLive ReportSource = "live"
	SourceDemo ReportSource = "demo"
)

// ErrorCode classifies a report-level error.
type ErrorCode string

const (
	ErrorMissingKey   ErrorCode = "missing_key"
	ErrorModel        ErrorCode = "gemini_error"
	ErrorFallbackDemo ErrorCode = "fallback_demo_mode"
)

// ReportError is attached to a report when analysis degraded. It never carries secrets.
type ReportError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode,omitempty"`
}

// Checkability values used in claims.
const (
	Checkable          = "checkable"
	PartiallyCheckable = "partially_checkable"
	Opinion            = "opinion"
)

// Severity of a contradiction.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// VerificationStatus is the outcome of checking one claim against search results.
type VerificationStatus string

const (
	StatusSupported VerificationStatus = "Supported"
	StatusDisputed  VerificationStatus = "Disputed"
	StatusNotFound  VerificationStatus = "NotFound"
)

// ExecutiveSummary is the headline section of a report.
type ExecutiveSummary struct {
	Verdict      Verdict  `json:"verdict"`
	Confidence   int      `json:"confidence"`
	Why          []string `json:"why"`
	WhatToDoNext []string `json:"whatToDoNext"`
	NextSteps    []string `json:"nextSteps,omitempty"`
}

// Claim is an atomic assertion extracted from the evidence.
type Claim struct {
	ID                string   `json:"id"`
	Text              string   `json:"text"`
	Category          string   `json:"category"`
	Checkability      string   `json:"checkability"`
	Importance        string   `json:"importance"`
	SourceEvidenceIDs []string `json:"sourceEvidenceIds,omitempty"`
}

// LedgerEntry describes one input item inside a report.
type LedgerEntry struct {
	ID                   string         `json:"id"`
	Type                 string         `json:"type"`
	Name                 string         `json:"name"`
	Filename             string         `json:"filename,omitempty"`
	URL                  string         `json:"url,omitempty"`
	KeyFacts             []string       `json:"keyFacts"`
	ExtractedFacts       []string       `json:"extractedFacts,omitempty"`
	ExtractedTextPreview string         `json:"extractedTextPreview,omitempty"`
	CrossRefs            []string       `json:"crossRefs,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
}

// SourceDetail is one side of a contradiction.
type SourceDetail struct {
	Source string `json:"source"`
	Detail string `json:"detail"`
}

// Contradiction pairs two sources that disagree.
type Contradiction struct {
	ClaimID     string       `json:"claimId,omitempty"`
	SourceA     SourceDetail `json:"sourceA"`
	SourceB     SourceDetail `json:"sourceB"`
	Severity    Severity     `json:"severity"`
	Explanation string       `json:"explanation"`
}

// ManipulationPart is a located span as reported by the manipulation stage.
// Start and End are seconds for audio/video parts.
type ManipulationPart struct {
	Type       string   `json:"type"`
	Start      *float64 `json:"start,omitempty"`
	End        *float64 `json:"end,omitempty"`
	Reason     string   `json:"reason"`
	Quote      string   `json:"quote,omitempty"`
	RegionHint string   `json:"regionHint,omitempty"`
	Confidence *int     `json:"confidence,omitempty"`
}

// ManipulationAnalysis is the output of manipulation-signal detection.
type ManipulationAnalysis struct {
	AIGeneratedScore int                `json:"aiGeneratedScore"`
	DeepfakeSignals  []string           `json:"deepfakeSignals"`
	WhichParts       []ManipulationPart `json:"whichParts"`
	Signals          []string           `json:"signals"`
}

// AIAnalysis is the display-oriented view of AI-generation findings.
type AIAnalysis struct {
	OverallLikelihood   int             `json:"overallLikelihood"`
	BreakdownByModality map[string]int  `json:"breakdownByModality,omitempty"`
	FlaggedSegments     FlaggedSegments `json:"flaggedSegments"`
	Signals             []string        `json:"signals"`
}

// BiasAnalysis covers persuasion and scam-risk findings.
type BiasAnalysis struct {
	BiasScore             int      `json:"biasScore"`
	PersuasionTactics     []string `json:"persuasionTactics"`
	EmotionalManipulation []string `json:"emotionalManipulation"`
	ScamRiskScore         int      `json:"scamRiskScore"`
	Explanation           string   `json:"explanation"`
}

// TimelineEvent is one point on the reconstructed timeline. T is a free-form
// label such as "T0" or a date.
type TimelineEvent struct {
	T          string   `json:"t"`
	Label      string   `json:"label"`
	SourceIDs  []string `json:"sourceIds,omitempty"`
	Inferred   bool     `json:"inferred"`
	Confidence string   `json:"confidence,omitempty"`
}

// Timeline holds ordered events. Events is never empty in a returned report.
type Timeline struct {
	Events     []TimelineEvent `json:"events"`
	Confidence int             `json:"confidence"`
}

// Citation is one search result backing a verification.
type Citation struct {
	Title   string `json:"title"`
	Domain  string `json:"domain"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// ClaimVerification is the external check of a single claim.
type ClaimVerification struct {
	ClaimID   string             `json:"claimId"`
	Status    VerificationStatus `json:"status"`
	Notes     string             `json:"notes"`
	Citations []Citation         `json:"citations"`
}

// ExternalVerification summarizes search-backed checking for the run.
type ExternalVerification struct {
	Enabled         bool                `json:"enabled"`
	PerClaim        []ClaimVerification `json:"perClaim"`
	ReliabilityNote string              `json:"reliabilityNote"`
	Summary         string              `json:"summary,omitempty"`
}

// Transparency explains what was and was not analyzed.
type Transparency struct {
	Analyzed    []string `json:"analyzed"`
	NotAnalyzed []string `json:"notAnalyzed"`
	Limitations []string `json:"limitations"`
	SafetyNote  string   `json:"safetyNote"`
}

// Scores are the 0-100 headline gauges.
type Scores struct {
	Consistency        int `json:"consistency"`
	ManipulationRisk   int `json:"manipulationRisk"`
	Bias               int `json:"bias"`
	ScamRisk           int `json:"scamRisk"`
	TimelineConfidence int `json:"timelineConfidence"`
	AILikelihood       int `json:"aiLikelihood"`
}

// TruthReport is the aggregate produced once per analysis run.
type TruthReport struct {
	Verdict    Verdict      `json:"verdict"`
	Confidence int          `json:"confidence"`
	Source     ReportSource `json:"source"`
	Error      *ReportError `json:"error,omitempty"`

	ExecutiveSummary     ExecutiveSummary     `json:"executiveSummary"`
	Claims               []Claim              `json:"claims"`
	EvidenceLedger       []LedgerEntry        `json:"evidenceLedger"`
	Contradictions       []Contradiction      `json:"contradictions"`
	MissingContextFlags  []string             `json:"missingContextFlags"`
	ManipulationAnalysis ManipulationAnalysis `json:"manipulationAnalysis"`
	AIAnalysis           AIAnalysis           `json:"aiAnalysis"`
	BiasAnalysis         BiasAnalysis         `json:"biasAnalysis"`
	Timeline             Timeline             `json:"timeline"`
	ExternalVerification ExternalVerification `json:"externalVerification"`
	Transparency         Transparency         `json:"transparency"`
	Scores               Scores               `json:"scores"`
}

// SetConfidence updates the headline and executive-summary confidence together.
func (r *TruthReport) SetConfidence(c int) {
	c = ClampScore(c)
	r.Confidence = c
	r.ExecutiveSummary.Confidence = c
}

// SetVerdict updates the headline and executive-summary verdict together.
func (r *TruthReport) SetVerdict(v Verdict) {
	r.Verdict = v
	r.ExecutiveSummary.Verdict = v
}

// ClampScore bounds a score to [0, 100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
