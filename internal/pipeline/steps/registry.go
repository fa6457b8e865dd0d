// Package steps provides stage definitions and dependency validation for the
// analysis pipeline.
package steps

import (
	"fmt"
	"sort"
)

// Stage names in execution order.
const (
	StageNormalize    = "normalize"
	StageMedia        = "media"
	StageClaims       = "claims"
	StageManipulation = "manipulation"
	StageExternal     = "external"
	StageReport       = "report"
)

// Stage categories.
const (
	CategoryIngestion    = "ingestion"
	CategoryAnalysis     = "analysis"
	CategoryVerification = "verification"
	CategorySynthesis    = "synthesis"
)

// Status is the terminal state of a stage within one run.
type Status string

const (
	StatusCompleted Status = "completed"
	// StatusDegraded marks a stage that failed softly and produced defaults.
	StatusDegraded Status = "degraded"
	StatusSkipped  Status = "skipped"
)

// StageDefinition defines metadata for a pipeline stage.
type StageDefinition struct {
	Name         string
	Category     string
	Dependencies []string
	Optional     []string
	// Order fixes the position among stages whose dependencies are met.
	Order int
	// NeedsModel stages only run when a model backend is configured.
	NeedsModel bool
	// Reported stages are announced through the progress callback.
	Reported bool
	// Fatal stages end the run's synthesis when they fail.
	Fatal   bool
	Message string
}

// StageRegistry holds all stage definitions.
var StageRegistry = map[string]StageDefinition{
	StageNormalize: {
		Name:     StageNormalize,
		Category: CategoryIngestion,
		Order:    0,
		Message:  "Normalizing evidence",
	},
	StageMedia: {
		Name:         StageMedia,
		Category:     CategoryIngestion,
		Dependencies: []string{StageNormalize},
		Order:        1,
		NeedsModel:   true,
		Message:      "Analyzing images, keyframes and audio",
	},
	StageClaims: {
		Name:         StageClaims,
		Category:     CategoryAnalysis,
		Dependencies: []string{StageMedia},
		Order:        2,
		NeedsModel:   true,
		Reported:     true,
		Message:      "Extracting claims",
	},
	StageManipulation: {
		Name:         StageManipulation,
		Category:     CategoryAnalysis,
		Dependencies: []string{StageClaims},
		Order:        3,
		NeedsModel:   true,
		Reported:     true,
		Message:      "Detecting manipulation signals",
	},
	StageExternal: {
		Name:         StageExternal,
		Category:     CategoryVerification,
		Dependencies: []string{StageClaims, StageManipulation},
		Order:        4,
		NeedsModel:   true,
		Reported:     true,
		Message:      "Verifying claims against external sources",
	},
	StageReport: {
		Name:         StageReport,
		Category:     CategorySynthesis,
		Dependencies: []string{StageClaims, StageManipulation},
		Optional:     []string{StageExternal},
		Order:        5,
		NeedsModel:   true,
		Reported:     true,
		Fatal:        true,
		Message:      "Synthesizing report",
	},
}

// DependencyError represents a dependency validation error.
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks that every required dependency of stageName has
// reached a terminal status in done. Optional dependencies that are ordered
// earlier must have finished too, whether or not they ran.
func ValidateDependencies(done map[string]Status, stageName string) error {
	def, ok := StageRegistry[stageName]
	if !ok {
		return fmt.Errorf("unknown stage: %s", stageName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if _, ok := done[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	for _, dep := range def.Optional {
		if _, ok := done[dep]; !ok && StageRegistry[dep].Order < def.Order {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{Step: stageName, MissingDependencies: missing}
	}
	return nil
}

// Ordered returns the registry in execution order.
func Ordered() []StageDefinition {
	out := make([]StageDefinition, 0, len(StageRegistry))
	for _, def := range StageRegistry {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Reported returns the names of stages announced to progress callbacks, in order.
func Reported() []string {
	var out []string
	for _, def := range Ordered() {
		if def.Reported {
			out = append(out, def.Name)
		}
	}
	return out
}
