package report

import (
	"fmt"

	"github.com/jonathan/evidentia/internal/types"
)

// Thresholds are the constants of the deterministic calibration rules.
type Thresholds struct {
	// NoSearchCap bounds confidence when external verification was not configured.
	NoSearchCap int `mapstructure:"no_search_cap" yaml:"no_search_cap"`
	// LowCheckableRatio and LowCheckableCap: below the ratio of checkable
	// claims, confidence is capped and "Likely True" is demoted.
	LowCheckableRatio float64 `mapstructure:"low_checkable_ratio" yaml:"low_checkable_ratio"`
	LowCheckableCap   int     `mapstructure:"low_checkable_cap" yaml:"low_checkable_cap"`
	// MinCitedClaims, DisputedRatio and HighSignal gate the disputed-evidence floor.
	MinCitedClaims int     `mapstructure:"min_cited_claims" yaml:"min_cited_claims"`
	DisputedRatio  float64 `mapstructure:"disputed_ratio" yaml:"disputed_ratio"`
	HighSignal     int     `mapstructure:"high_signal" yaml:"high_signal"`
	// ManipulatedFloor and DisputedFloor are the floors applied by that rule.
	ManipulatedFloor int `mapstructure:"manipulated_floor" yaml:"manipulated_floor"`
	DisputedFloor    int `mapstructure:"disputed_floor" yaml:"disputed_floor"`
	// ManipulatedMinimum holds for a Manipulated/Deceptive verdict with a high signal.
	ManipulatedMinimum int `mapstructure:"manipulated_minimum" yaml:"manipulated_minimum"`
}

// DefaultThresholds returns the stock calibration constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NoSearchCap:        65,
		LowCheckableRatio:  0.3,
		LowCheckableCap:    55,
		MinCitedClaims:     3,
		DisputedRatio:      0.6,
		HighSignal:         70,
		ManipulatedFloor:   65,
		DisputedFloor:      55,
		ManipulatedMinimum: 55,
	}
}

// Validate rejects scores outside [0,100] and ratios outside [0,1].
func (t Thresholds) Validate() error {
	scores := map[string]int{
		"no_search_cap":       t.NoSearchCap,
		"low_checkable_cap":   t.LowCheckableCap,
		"high_signal":         t.HighSignal,
		"manipulated_floor":   t.ManipulatedFloor,
		"disputed_floor":      t.DisputedFloor,
		"manipulated_minimum": t.ManipulatedMinimum,
	}
	for name, v := range scores {
		if v < 0 || v > 100 {
			return fmt.Errorf("threshold %s must be within [0,100], got %d", name, v)
		}
	}
	for name, v := range map[string]float64{"low_checkable_ratio": t.LowCheckableRatio, "disputed_ratio": t.DisputedRatio} {
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold %s must be within [0,1], got %g", name, v)
		}
	}
	if t.MinCitedClaims < 0 {
		return fmt.Errorf("threshold min_cited_claims must not be negative, got %d", t.MinCitedClaims)
	}
	return nil
}

// CalibrationInput is the run context calibration depends on.
type CalibrationInput struct {
	Evidence      []types.NormalizedEvidence
	SearchEnabled bool
}

// Calibrate applies the post-synthesis rules to r in a fixed order; each rule
// sees the adjustments of the ones before it.
func Calibrate(r *types.TruthReport, in CalibrationInput, th Thresholds) {
	FillTimeline(r, in.Evidence)
	conf := r.ExecutiveSummary.Confidence

	if !in.SearchEnabled && conf > th.NoSearchCap {
		conf = th.NoSearchCap
	}

	if n := len(r.Claims); n > 0 {
		checkable := 0
		for _, c := range r.Claims {
			if c.Checkability == types.Checkable {
				checkable++
			}
		}
		if float64(checkable)/float64(n) < th.LowCheckableRatio {
			conf = min(conf, th.LowCheckableCap)
			if r.ExecutiveSummary.Verdict == types.VerdictLikelyTrue {
				r.SetVerdict(types.VerdictMixed)
			}
		}
	}

	high := highSignal(r, th.HighSignal)
	cited, disputed := 0, 0
	for _, v := range r.ExternalVerification.PerClaim {
		if len(v.Citations) > 0 {
			cited++
		}
		if v.Status == types.StatusDisputed {
			disputed++
		}
	}
	if cited >= th.MinCitedClaims && cited > 0 && float64(disputed)/float64(cited) >= th.DisputedRatio && high {
		floor := th.DisputedFloor
		if r.ExecutiveSummary.Verdict == types.VerdictManipulated {
			floor = th.ManipulatedFloor
		}
		conf = max(conf, floor)
	}

	if r.ExecutiveSummary.Verdict == types.VerdictManipulated && high {
		conf = max(conf, th.ManipulatedMinimum)
	}

	r.SetVerdict(r.ExecutiveSummary.Verdict)
	r.SetConfidence(conf)
}

func highSignal(r *types.TruthReport, threshold int) bool {
	manipulation := r.Scores.ManipulationRisk
	if manipulation == 0 {
		manipulation = r.ManipulationAnalysis.AIGeneratedScore
	}
	ai := r.Scores.AILikelihood
	if ai == 0 {
		ai = r.AIAnalysis.OverallLikelihood
	}
	return manipulation >= threshold || ai >= threshold
}

// TimelineConfidence is the confidence of an inferred timeline over n items.
func TimelineConfidence(n int) int {
	if n > 1 {
		return 55
	}
	return 35
}

// InferredEvents returns one relative-time event per evidence item.
func InferredEvents(evidence []types.NormalizedEvidence) []types.TimelineEvent {
	events := make([]types.TimelineEvent, 0, len(evidence))
	for i, ev := range evidence {
		t := "T0"
		if i > 0 {
			t = fmt.Sprintf("T0+%d", i)
		}
		events = append(events, types.TimelineEvent{
			T:          t,
			Label:      fmt.Sprintf("Evidence submitted: %s (%s)", ev.DisplayName(i), ev.Type),
			SourceIDs:  []string{types.EvidenceID(i)},
			Inferred:   true,
			Confidence: "low",
		})
	}
	return events
}

// TimelineSkeleton is the inferred timeline handed to synthesis and used by
// reports that never reached it.
func TimelineSkeleton(evidence []types.NormalizedEvidence) types.Timeline {
	return types.Timeline{Events: InferredEvents(evidence), Confidence: TimelineConfidence(len(evidence))}
}

// FillTimeline substitutes inferred events when r has none.
func FillTimeline(r *types.TruthReport, evidence []types.NormalizedEvidence) {
	if len(r.Timeline.Events) > 0 {
		return
	}
	r.Timeline.Events = InferredEvents(evidence)
	if r.Timeline.Confidence == 0 {
		r.Timeline.Confidence = 35
	}
}
