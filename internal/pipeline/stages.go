package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/evidentia/internal/llm"
	"github.com/jonathan/evidentia/internal/pipeline/steps"
	"github.com/jonathan/evidentia/internal/prompts"
	"github.com/jonathan/evidentia/internal/report"
	"github.com/jonathan/evidentia/internal/research"
	"github.com/jonathan/evidentia/internal/types"
	"github.com/jonathan/evidentia/internal/validation"
)

// Reliability notes used when the verification stage does not produce one.
const (
	NoSearchNote       = "External verification unavailable (no API key). Confidence reduced."
	NoClaimsNote       = "No claims were extracted, so nothing was searched."
	SearchFailedNote   = "External verification could not be completed."
	defaultSearchNote  = "External verification not configured."
	evidenceQuoteLabel = "evidence"
)

// runState is everything one run accumulates. It is owned by a single
// RunAnalysis call.
type runState struct {
	id     string
	opts   Options
	inputs []types.EvidenceInput
	log    *logrus.Entry
	done   map[string]steps.Status

	evidence     []types.NormalizedEvidence
	imageFacts   map[int][]string
	blob         string
	claims       []types.Claim
	manipulation types.ManipulationAnalysis
	verification types.ExternalVerification

	report    *types.TruthReport
	source    types.ReportSource
	reportErr *types.ReportError
}

func (st *runState) result() *Result {
	return &Result{RunID: st.id, Report: st.report, Source: st.source, Error: st.reportErr}
}

func (st *runState) warn(stage string, err error, msg string) {
	st.log.WithFields(logrus.Fields{"stage": stage}).WithError(err).Warn(msg)
}

type stageFunc func(ctx context.Context, st *runState, def steps.StageDefinition) (steps.Status, error)

func (r *Runner) stages() map[string]stageFunc {
	return map[string]stageFunc{
		steps.StageNormalize:    r.normalizeStage,
		steps.StageMedia:        r.mediaStage,
		steps.StageClaims:       r.claimsStage,
		steps.StageManipulation: r.manipulationStage,
		steps.StageExternal:     r.externalStage,
		steps.StageReport:       r.reportStage,
	}
}

func (r *Runner) normalizeStage(ctx context.Context, st *runState, _ steps.StageDefinition) (steps.Status, error) {
	evidence, err := r.normalizer.NormalizeAll(ctx, st.inputs)
	if err != nil {
		return "", err
	}
	st.evidence = evidence
	return steps.StatusCompleted, nil
}

func (r *Runner) mediaStage(ctx context.Context, st *runState, _ steps.StageDefinition) (steps.Status, error) {
	status := steps.StatusSkipped
	if r.media != nil {
		enriched, err := r.media.Enrich(ctx, st.evidence)
		if err != nil {
			return "", err
		}
		st.imageFacts = make(map[int][]string)
		for i, e := range enriched {
			st.evidence[i] = e.Evidence
			if e.Image != nil && e.Image.Summary != "" {
				st.imageFacts[i] = []string{e.Image.Summary}
			}
		}
		status = steps.StatusCompleted
	}

	blob := EvidenceBlob(st.evidence)
	validation.LogInjectionWarning(validation.CheckBasicHeuristics(blob), evidenceQuoteLabel)
	st.blob = validation.QuoteEvidence(blob, evidenceQuoteLabel)
	return status, nil
}

func (r *Runner) claimsStage(ctx context.Context, st *runState, def steps.StageDefinition) (steps.Status, error) {
	st.emit(def)
	st.claims = []types.Claim{}

	text, err := r.generate(ctx, prompts.ClaimsFile, "extract-claims", map[string]string{"Evidence": st.blob})
	if err == nil {
		var claims []types.Claim
		if claims, err = report.ParseClaims(text); err == nil {
			st.claims = claims
			return steps.StatusCompleted, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	st.warn(def.Name, err, "claims extraction failed; continuing without claims")
	return steps.StatusDegraded, nil
}

func (r *Runner) manipulationStage(ctx context.Context, st *runState, def steps.StageDefinition) (steps.Status, error) {
	st.emit(def)
	st.manipulation = types.ManipulationAnalysis{
		DeepfakeSignals: []string{},
		WhichParts:      []types.ManipulationPart{},
		Signals:         []string{},
	}

	text, err := r.generate(ctx, prompts.ManipulationFile, "detect-manipulation", map[string]string{"Evidence": st.blob})
	if err == nil {
		var m types.ManipulationAnalysis
		if m, err = report.ParseManipulation(text); err == nil {
			st.manipulation = m
			return steps.StatusCompleted, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	st.warn(def.Name, err, "manipulation detection failed; continuing with neutral signals")
	return steps.StatusDegraded, nil
}

// searchedClaim is one claim with its search results, as sent to the
// verification prompt.
type searchedClaim struct {
	ClaimIndex        int               `json:"claimIndex"`
	ClaimID           string            `json:"claimId"`
	Text              string            `json:"text"`
	SourceEvidenceIDs []string          `json:"sourceEvidenceIds"`
	Results           []research.Result `json:"-"`
}

func (r *Runner) externalStage(ctx context.Context, st *runState, def steps.StageDefinition) (steps.Status, error) {
	if !r.HasSearch() {
		st.verification = types.ExternalVerification{
			Enabled:         false,
			PerClaim:        []types.ClaimVerification{},
			ReliabilityNote: NoSearchNote,
		}
		return steps.StatusSkipped, nil
	}
	st.verification = types.ExternalVerification{
		Enabled:         true,
		PerClaim:        []types.ClaimVerification{},
		ReliabilityNote: NoClaimsNote,
	}
	if len(st.claims) == 0 {
		return steps.StatusSkipped, nil
	}
	st.emit(def)

	top := st.claims
	if len(top) > r.cfg.MaxSearchClaims {
		top = top[:r.cfg.MaxSearchClaims]
	}
	searched := make([]searchedClaim, len(top))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range top {
		searched[i] = searchedClaim{
			ClaimIndex:        i,
			ClaimID:           c.ID,
			Text:              c.Text,
			SourceEvidenceIDs: c.SourceEvidenceIDs,
		}
		g.Go(func() error {
			results, err := r.search.Search(gctx, c.Text, r.cfg.ResultsPerClaim)
			if err != nil {
				st.log.WithFields(logrus.Fields{"stage": def.Name, "claim_id": c.ID}).WithError(err).Warn("claim search failed")
				return nil
			}
			if len(results) > r.cfg.ResultsPerClaim {
				results = results[:r.cfg.ResultsPerClaim]
			}
			searched[i].Results = results
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	claimsJSON, err := json.Marshal(searched)
	if err != nil {
		return "", err
	}
	text, err := r.generate(ctx, prompts.CitationsFile, "summarize-verifications", map[string]string{
		"Claims":        string(claimsJSON),
		"SearchResults": searchBlob(searched),
	})
	if err == nil {
		var perClaim []types.ClaimVerification
		var note string
		if perClaim, note, err = report.ParseVerifications(text); err == nil {
			st.verification.PerClaim = perClaim
			st.verification.ReliabilityNote = textOr(note, defaultSearchNote)
			return steps.StatusCompleted, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	st.warn(def.Name, err, "verification summary failed; continuing without citations")
	st.verification.ReliabilityNote = SearchFailedNote
	return steps.StatusDegraded, nil
}

func (r *Runner) reportStage(ctx context.Context, st *runState, def steps.StageDefinition) (steps.Status, error) {
	st.emit(def)
	st.source = types.SourceLive

	ledger := make([]types.LedgerEntry, 0, len(st.evidence))
	for i, ev := range st.evidence {
		ledger = append(ledger, report.NewLedgerEntry(i, ev, st.imageFacts[i], report.LedgerPreviewLength))
	}
	data, err := synthesisData(st, ledger)
	if err != nil {
		return "", err
	}

	text, err := r.generate(ctx, prompts.ReportFile, "synthesize-report", data)
	var synthesized *types.TruthReport
	if err == nil {
		synthesized, err = report.ParseSynthesis(text, report.SynthesisInput{
			ConsistencyScore: report.DefaultConsistencyScore,
			Parts:            st.manipulation.WhichParts,
		})
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		rerr := types.ReportError{
			Code:       types.ErrorModel,
			Message:    report.ValidationMessage(err),
			StatusCode: llm.StatusCode(err),
		}
		st.log.WithFields(logrus.Fields{
			"stage":       def.Name,
			"code":        rerr.Code,
			"status_code": rerr.StatusCode,
		}).WithError(err).Error("report synthesis failed")
		st.report = report.Minimal(rerr, st.evidence)
		st.reportErr = st.report.Error
		return steps.StatusDegraded, nil
	}

	report.ApplyVerification(synthesized, st.verification)
	report.Calibrate(synthesized, report.CalibrationInput{
		Evidence:      st.evidence,
		SearchEnabled: r.HasSearch(),
	}, r.cfg.Thresholds)
	st.report = synthesized
	return steps.StatusCompleted, nil
}

// generate renders a prompt and sends it in JSON mode.
func (r *Runner) generate(ctx context.Context, file, key string, data map[string]string) (string, error) {
	prompt, err := prompts.Render(file, key, data)
	if err != nil {
		return "", err
	}
	return r.client.GenerateText(ctx, prompt, llm.Options{JSONMode: true})
}

func synthesisData(st *runState, ledger []types.LedgerEntry) (map[string]string, error) {
	consistency := map[string]any{
		"contradictions":      []any{},
		"missingContextFlags": []string{},
		"consistencyScore":    report.DefaultConsistencyScore,
	}
	sections := map[string]any{
		"Claims":         st.claims,
		"EvidenceLedger": ledger,
		"Consistency":    consistency,
		"Manipulation":   st.manipulation,
		"Bias": types.BiasAnalysis{
			PersuasionTactics:     []string{},
			EmotionalManipulation: []string{},
		},
		"Timeline":     report.TimelineSkeleton(st.evidence),
		"Verification": st.verification,
	}

	data := make(map[string]string, len(sections)+1)
	for key, v := range sections {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		data[key] = string(b)
	}
	rubrics, err := Rubrics()
	if err != nil {
		return nil, err
	}
	data["Rubrics"] = rubrics
	return data, nil
}

// rubricKeys are the report prompt's calibration rubrics, in prompt order.
var rubricKeys = []string{
	"confidence-rubric",
	"verdict-rubric",
	"ai-generation-rubric",
	"scam-risk-rubric",
	"bias-rubric",
}

// Rubrics joins the calibration rubrics embedded in the report prompt.
func Rubrics() (string, error) {
	parts := make([]string, 0, len(rubricKeys))
	for _, key := range rubricKeys {
		text, err := prompts.Get(prompts.ReportFile, key)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

func textOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
