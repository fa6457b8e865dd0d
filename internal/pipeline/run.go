// Package pipeline orchestrates an analysis run: evidence normalization, media
// pre-analysis, the four model stages, and report calibration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/evidentia/internal/ingestion"
	"github.com/jonathan/evidentia/internal/llm"
	"github.com/jonathan/evidentia/internal/logging"
	"github.com/jonathan/evidentia/internal/media"
	"github.com/jonathan/evidentia/internal/metrics"
	"github.com/jonathan/evidentia/internal/pipeline/steps"
	"github.com/jonathan/evidentia/internal/report"
	"github.com/jonathan/evidentia/internal/research"
	"github.com/jonathan/evidentia/internal/types"
)

// Defaults for Config fields left at zero.
const (
	DefaultTimeout         = 60 * time.Second
	DefaultMaxSearchClaims = 6
)

// ErrNoEvidence is returned when a run is requested with no inputs.
var ErrNoEvidence = errors.New("at least one evidence input required")

// ErrUnknownMode is returned for a mode other than normal, demo or adversarial.
var ErrUnknownMode = errors.New("unknown analysis mode")

// Mode selects how a run is presented. Only ModeDemo changes behavior: it
// suppresses the missing_key error on demo reports.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeDemo        Mode = "demo"
	ModeAdversarial Mode = "adversarial"
)

// ParseMode maps an empty string to ModeNormal and rejects unknown modes.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeNormal:
		return ModeNormal, nil
	case ModeDemo, ModeAdversarial:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// ProgressEvent represents a progress update during a run.
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
}

// ProgressCallback is called when a reported stage starts.
type ProgressCallback func(event ProgressEvent)

// Options are per-run settings.
type Options struct {
	Mode       Mode
	ScenarioID string
	OnProgress ProgressCallback
}

// Result is the outcome of a run. Report is always set when the error is nil.
type Result struct {
	RunID  string             `json:"runId"`
	Report *types.TruthReport `json:"report"`
	Source types.ReportSource `json:"source"`
	Error  *types.ReportError `json:"reportError,omitempty"`
}

// Config holds the run budget and stage limits.
type Config struct {
	// Timeout is the wall-clock budget for a whole run.
	Timeout time.Duration
	// MaxSearchClaims bounds how many claims are searched.
	MaxSearchClaims int
	// ResultsPerClaim bounds search results per claim.
	ResultsPerClaim int
	Thresholds      report.Thresholds
}

// Deps are the collaborators of a Runner. Client and Search may be nil.
type Deps struct {
	Client     llm.Client
	Search     research.Provider
	Normalizer *ingestion.Normalizer
	Media      *media.Analyzer
}

// Runner executes analysis runs. It holds no per-run state and is safe for
// concurrent use.
type Runner struct {
	client     llm.Client
	search     research.Provider
	normalizer *ingestion.Normalizer
	media      *media.Analyzer
	cfg        Config
}

// New returns a Runner. Zero Config fields take their defaults.
func New(deps Deps, cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxSearchClaims <= 0 {
		cfg.MaxSearchClaims = DefaultMaxSearchClaims
	}
	if cfg.ResultsPerClaim <= 0 {
		cfg.ResultsPerClaim = research.DefaultResultCount
	}
	if cfg.Thresholds == (report.Thresholds{}) {
		cfg.Thresholds = report.DefaultThresholds()
	}

	r := &Runner{
		client:     deps.Client,
		search:     deps.Search,
		normalizer: deps.Normalizer,
		media:      deps.Media,
		cfg:        cfg,
	}
	if r.normalizer == nil {
		r.normalizer = ingestion.New(ingestion.Options{})
	}
	if r.media == nil && r.HasModel() {
		r.media = media.New(r.client, media.Options{})
	}
	return r
}

// HasModel reports whether a model backend is configured.
func (r *Runner) HasModel() bool {
	return r.client != nil && r.client.Configured()
}

// HasSearch reports whether a search backend is configured.
func (r *Runner) HasSearch() bool {
	return r.search != nil
}

// RunAnalysis analyzes inputs and returns a report. Input validation errors,
// ErrNoEvidence, and context errors are the only errors returned; every other
// failure is recorded inside the result. A canceled or expired run never
// returns a partial report.
func (r *Runner) RunAnalysis(ctx context.Context, inputs []types.EvidenceInput, opts Options) (*Result, error) {
	if len(inputs) == 0 {
		return nil, ErrNoEvidence
	}
	for i := range inputs {
		if err := inputs[i].Validate(i); err != nil {
			return nil, err
		}
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	st := &runState{
		id:     uuid.NewString(),
		opts:   opts,
		inputs: inputs,
		done:   make(map[string]steps.Status),
	}
	st.log = logging.Log.WithField("run_id", st.id)
	defer func() { ingestion.RemoveScratch(st.evidence) }()

	for _, def := range steps.Ordered() {
		if def.NeedsModel && !r.HasModel() {
			r.demo(st)
			break
		}
		if err := steps.ValidateDependencies(st.done, def.Name); err != nil {
			return nil, err
		}
		if err := r.runStage(ctx, st, def); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := st.result()
	code := ""
	if res.Error != nil {
		code = string(res.Error.Code)
	}
	metrics.Reports.WithLabelValues(string(res.Source), code).Inc()
	st.log.WithFields(logrus.Fields{
		"has_model":   r.HasModel(),
		"mode":        opts.Mode,
		"scenario_id": opts.ScenarioID,
		"source":      res.Source,
		"error_code":  code,
	}).Info("analysis complete")
	return res, nil
}

// runStage times one stage, announces it when reported, and records its
// terminal status. Only context errors escape.
func (r *Runner) runStage(ctx context.Context, st *runState, def steps.StageDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stage, ok := r.stages()[def.Name]
	if !ok {
		return fmt.Errorf("no implementation for stage %s", def.Name)
	}

	start := time.Now()
	status, err := stage(ctx, st, def)
	metrics.StageDuration.WithLabelValues(def.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	if status == steps.StatusDegraded {
		metrics.StageFailures.WithLabelValues(def.Name).Inc()
	}
	st.done[def.Name] = status
	return nil
}

func (st *runState) emit(def steps.StageDefinition) {
	if !def.Reported || st.opts.OnProgress == nil {
		return
	}
	st.opts.OnProgress(ProgressEvent{
		Step:     def.Name,
		Category: def.Category,
		Message:  def.Message,
		RunID:    st.id,
	})
}

// demo completes st with the heuristic report used when no model backend is
// configured.
func (r *Runner) demo(st *runState) {
	st.report = report.Demo(st.evidence, st.opts.ScenarioID)
	st.source = types.SourceDemo
	if st.opts.Mode != ModeDemo {
		st.reportErr = &types.ReportError{Code: types.ErrorMissingKey, Message: report.MissingKeyMessage}
		st.report.Error = st.reportErr
	}
}
