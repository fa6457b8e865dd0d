// Package report owns the Truth Report after the model hands it back: it
// resolves field aliases into the canonical shape once at the trust boundary,
// validates it, fills derived sections, and applies deterministic calibration.
// It also builds the demo and minimal error reports.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/jonathan/evidentia/internal/types"
)

// alias maps legacy or alternate field paths onto a canonical path. The first
// alias that exists wins when the canonical path is absent. Aliases are removed
// from the document unless keep is set.
type alias struct {
	canonical string
	aliases   []string
	keep      bool
}

var reportAliases = []alias{
	{canonical: "claims", aliases: []string{"claimsDetected"}},
	{canonical: "consistencyScore", aliases: []string{"crossModalConsistency.consistencyScore"}},
	{canonical: "contradictions", aliases: []string{"crossModalConsistency.contradictions"}},
	{canonical: "missingContextFlags", aliases: []string{"crossModalConsistency.missingContextFlags"}},
	{canonical: "manipulationAnalysis", aliases: []string{"manipulationLikelihood"}},
	{canonical: "biasAnalysis", aliases: []string{"biasPersuasion"}},
	{canonical: "timeline.confidence", aliases: []string{"timeline.timelineConfidence"}},
	{canonical: "transparency.analyzed", aliases: []string{"transparency.whatWasAnalyzed"}},
	{canonical: "externalVerification.perClaim", aliases: []string{"externalVerification.claimVerifications"}},
	{canonical: "externalVerification.reliabilityNote", aliases: []string{"externalVerification.sourceReliabilityNote"}},
	{canonical: "executiveSummary.whatToDoNext", aliases: []string{"executiveSummary.nextSteps"}, keep: true},
	{canonical: "executiveSummary.verdict", aliases: []string{"verdict"}, keep: true},
	{canonical: "executiveSummary.confidence", aliases: []string{"confidence"}, keep: true},
}

// Leftover containers of the legacy shape, dropped once their contents moved.
var legacyContainers = []string{"crossModalConsistency"}

// scorePaths are integer 0-100 fields rounded and clamped before validation.
var scorePaths = []string{
	"confidence",
	"executiveSummary.confidence",
	"manipulationAnalysis.aiGeneratedScore",
	"aiAnalysis.overallLikelihood",
	"biasAnalysis.biasScore",
	"biasAnalysis.scamRiskScore",
	"timeline.confidence",
	"scores.consistency",
	"scores.manipulationRisk",
	"scores.bias",
	"scores.scamRisk",
	"scores.timelineConfidence",
	"scores.aiLikelihood",
}

// Canonicalize rewrites a synthesized report into the canonical field layout:
// aliases are resolved, list items get their canonical keys and ids, scores
// become integers in [0,100], and a missing scores section is derived from
// the section scores. The input must be a JSON object.
func Canonicalize(raw []byte) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("report is not valid JSON")
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("report is not a JSON object")
	}

	doc := raw
	var err error
	for _, a := range reportAliases {
		if doc, err = resolveAlias(doc, a); err != nil {
			return nil, err
		}
	}
	for _, path := range legacyContainers {
		if doc, err = sjson.DeleteBytes(doc, path); err != nil {
			return nil, err
		}
	}

	steps := []func([]byte) ([]byte, error){
		canonicalClaims,
		canonicalLedger,
		canonicalContradictions,
		canonicalTimelineEvents,
		canonicalPerClaim,
		canonicalParts,
		canonicalSegments,
		canonicalScores,
		deriveScores,
	}
	for _, step := range steps {
		if doc, err = step(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func resolveAlias(doc []byte, a alias) ([]byte, error) {
	var err error
	if !gjson.GetBytes(doc, a.canonical).Exists() {
		for _, from := range a.aliases {
			if v := gjson.GetBytes(doc, from); v.Exists() {
				if doc, err = sjson.SetRawBytes(doc, a.canonical, []byte(v.Raw)); err != nil {
					return nil, err
				}
				break
			}
		}
	}
	if a.keep {
		return doc, nil
	}
	for _, from := range a.aliases {
		if gjson.GetBytes(doc, from).Exists() {
			if doc, err = sjson.DeleteBytes(doc, from); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

// renameKey moves the value at path+"."+from to path+"."+to when to is absent.
func renameKey(doc []byte, path, from, to string) ([]byte, error) {
	src := gjson.GetBytes(doc, path+"."+from)
	if !src.Exists() {
		return doc, nil
	}
	var err error
	if !gjson.GetBytes(doc, path+"."+to).Exists() {
		if doc, err = sjson.SetRawBytes(doc, path+"."+to, []byte(src.Raw)); err != nil {
			return nil, err
		}
	}
	return sjson.DeleteBytes(doc, path+"."+from)
}

// eachItem calls fn with the path of every element of the array at path.
func eachItem(doc []byte, path string, fn func(doc []byte, item string, index int) ([]byte, error)) ([]byte, error) {
	n := int(gjson.GetBytes(doc, path+".#").Int())
	var err error
	for i := 0; i < n; i++ {
		if doc, err = fn(doc, fmt.Sprintf("%s.%d", path, i), i); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func setDefaultString(doc []byte, path, value string) ([]byte, error) {
	if v := gjson.GetBytes(doc, path); v.Exists() && v.String() != "" {
		return doc, nil
	}
	return sjson.SetBytes(doc, path, value)
}

// claimIDs hands out positional ids for claims the model left unnamed,
// skipping any id already taken by another claim.
type claimIDs map[string]bool

func newClaimIDs(ids []string) claimIDs {
	used := make(claimIDs, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			used[id] = true
		}
	}
	return used
}

func (used claimIDs) next(index int) string {
	for n := index; ; n++ {
		if id := types.ClaimID(n); !used[id] {
			used[id] = true
			return id
		}
	}
}

func canonicalClaims(doc []byte) ([]byte, error) {
	var existing []string
	gjson.GetBytes(doc, "claims.#.id").ForEach(func(_, v gjson.Result) bool {
		existing = append(existing, v.String())
		return true
	})
	ids := newClaimIDs(existing)

	return eachItem(doc, "claims", func(doc []byte, item string, i int) ([]byte, error) {
		var err error
		if !nonEmpty(doc, item+".id") {
			if doc, err = sjson.SetBytes(doc, item+".id", ids.next(i)); err != nil {
				return nil, err
			}
		}
		if c := gjson.GetBytes(doc, item+".checkability"); c.Type == gjson.String {
			return sjson.SetBytes(doc, item+".checkability", strings.ToLower(strings.TrimSpace(c.String())))
		}
		return doc, nil
	})
}

func canonicalLedger(doc []byte) ([]byte, error) {
	return eachItem(doc, "evidenceLedger", func(doc []byte, item string, i int) ([]byte, error) {
		doc, err := setDefaultString(doc, item+".id", types.EvidenceID(i))
		if err != nil {
			return nil, err
		}
		name := firstString(doc, item+".name", item+".filename", item+".url")
		if name == "" {
			name = fmt.Sprintf("Evidence %d", i+1)
		}
		if doc, err = setDefaultString(doc, item+".name", name); err != nil {
			return nil, err
		}
		if !gjson.GetBytes(doc, item+".keyFacts").Exists() {
			facts := gjson.GetBytes(doc, item+".extractedFacts")
			raw := "[]"
			if facts.IsArray() {
				raw = facts.Raw
			}
			return sjson.SetRawBytes(doc, item+".keyFacts", []byte(raw))
		}
		return doc, nil
	})
}

func canonicalContradictions(doc []byte) ([]byte, error) {
	return eachItem(doc, "contradictions", func(doc []byte, item string, _ int) ([]byte, error) {
		var err error
		for _, r := range [][2]string{{"a", "sourceA"}, {"b", "sourceB"}, {"evidenceA", "sourceA"}, {"evidenceB", "sourceB"}, {"description", "explanation"}} {
			if doc, err = renameKey(doc, item, r[0], r[1]); err != nil {
				return nil, err
			}
		}
		// evidenceA/evidenceB from the consistency stage are bare strings.
		for _, side := range []string{"sourceA", "sourceB"} {
			if v := gjson.GetBytes(doc, item+"."+side); v.Type == gjson.String {
				if doc, err = sjson.SetBytes(doc, item+"."+side, types.SourceDetail{Source: v.String(), Detail: ""}); err != nil {
					return nil, err
				}
			}
		}
		if sev := gjson.GetBytes(doc, item+".severity"); sev.Type == gjson.String {
			if doc, err = sjson.SetBytes(doc, item+".severity", strings.ToLower(strings.TrimSpace(sev.String()))); err != nil {
				return nil, err
			}
		}
		return doc, nil
	})
}

func canonicalTimelineEvents(doc []byte) ([]byte, error) {
	return eachItem(doc, "timeline.events", func(doc []byte, item string, _ int) ([]byte, error) {
		var err error
		if doc, err = renameKey(doc, item, "time", "t"); err != nil {
			return nil, err
		}
		if doc, err = renameKey(doc, item, "description", "label"); err != nil {
			return nil, err
		}
		if !gjson.GetBytes(doc, item+".label").Exists() {
			if doc, err = sjson.SetBytes(doc, item+".label", gjson.GetBytes(doc, item+".t").String()); err != nil {
				return nil, err
			}
		}
		if c := gjson.GetBytes(doc, item+".confidence"); c.Type == gjson.Number {
			if doc, err = sjson.SetBytes(doc, item+".confidence", confidenceLevel(int(c.Int()))); err != nil {
				return nil, err
			}
		}
		return doc, nil
	})
}

func canonicalPerClaim(doc []byte) ([]byte, error) {
	return eachItem(doc, "externalVerification.perClaim", func(doc []byte, item string, i int) ([]byte, error) {
		var err error
		if !nonEmpty(doc, item+".claimId") {
			idx := i
			if ci := gjson.GetBytes(doc, item+".claimIndex"); ci.Type == gjson.Number {
				idx = int(ci.Int())
			}
			if doc, err = sjson.SetBytes(doc, item+".claimId", types.ClaimID(idx)); err != nil {
				return nil, err
			}
		}
		if st := gjson.GetBytes(doc, item+".status"); st.Exists() {
			if doc, err = sjson.SetBytes(doc, item+".status", string(NormalizeStatus(st.String()))); err != nil {
				return nil, err
			}
		}
		if !gjson.GetBytes(doc, item+".citations").Exists() {
			if doc, err = sjson.SetRawBytes(doc, item+".citations", []byte("[]")); err != nil {
				return nil, err
			}
		}
		return doc, nil
	})
}

func canonicalParts(doc []byte) ([]byte, error) {
	return normalizeParts(doc, "manipulationAnalysis.whichParts")
}

func canonicalSegments(doc []byte) ([]byte, error) {
	var err error
	breakdown := gjson.GetBytes(doc, "aiAnalysis.breakdownByModality")
	if breakdown.IsObject() {
		var keys []string
		breakdown.ForEach(func(k, _ gjson.Result) bool {
			keys = append(keys, k.String())
			return true
		})
		for _, k := range keys {
			if doc, err = roundScore(doc, "aiAnalysis.breakdownByModality."+escapeKey(k)); err != nil {
				return nil, err
			}
		}
	}
	return eachItem(doc, "aiAnalysis.flaggedSegments", func(doc []byte, item string, _ int) ([]byte, error) {
		return roundScore(doc, item+".confidence")
	})
}

func canonicalScores(doc []byte) ([]byte, error) {
	var err error
	for _, path := range scorePaths {
		if doc, err = roundScore(doc, path); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// deriveScores builds the scores section from the section scores when the
// model omitted it. Missing section values count as zero.
func deriveScores(doc []byte) ([]byte, error) {
	if gjson.GetBytes(doc, "scores").Exists() {
		return sjson.DeleteBytes(doc, "consistencyScore")
	}
	ai := gjson.GetBytes(doc, "aiAnalysis.overallLikelihood")
	if !ai.Exists() {
		ai = gjson.GetBytes(doc, "manipulationAnalysis.aiGeneratedScore")
	}
	scores := types.Scores{
		Consistency:        intAt(doc, "consistencyScore"),
		ManipulationRisk:   intAt(doc, "manipulationAnalysis.aiGeneratedScore"),
		Bias:               intAt(doc, "biasAnalysis.biasScore"),
		ScamRisk:           intAt(doc, "biasAnalysis.scamRiskScore"),
		TimelineConfidence: intAt(doc, "timeline.confidence"),
		AILikelihood:       types.ClampScore(int(math.Round(ai.Float()))),
	}
	doc, err := sjson.SetBytes(doc, "scores", scores)
	if err != nil {
		return nil, err
	}
	return sjson.DeleteBytes(doc, "consistencyScore")
}

// roundScore rewrites a numeric (or numeric string) value as an integer in
// [0,100]. Non-numeric values are left for validation to reject.
func roundScore(doc []byte, path string) ([]byte, error) {
	v := gjson.GetBytes(doc, path)
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v.String()), "%"), 64)
		if err != nil {
			return doc, nil
		}
		f = parsed
	default:
		return doc, nil
	}
	return sjson.SetBytes(doc, path, types.ClampScore(int(math.Round(f))))
}

func intAt(doc []byte, paths ...string) int {
	for _, p := range paths {
		if v := gjson.GetBytes(doc, p); v.Exists() {
			return types.ClampScore(int(math.Round(v.Float())))
		}
	}
	return 0
}

func firstString(doc []byte, paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(gjson.GetBytes(doc, p).String()); s != "" {
			return s
		}
	}
	return ""
}

func nonEmpty(doc []byte, path string) bool {
	return strings.TrimSpace(gjson.GetBytes(doc, path).String()) != ""
}

// confidenceLevel buckets a numeric event confidence into low/medium/high.
func confidenceLevel(c int) string {
	switch {
	case c >= 70:
		return "high"
	case c >= 40:
		return "medium"
	}
	return "low"
}

// escapeKey escapes characters that gjson and sjson treat as path syntax.
func escapeKey(k string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(k)
}

// NormalizeStatus maps the status spellings models produce onto the three
// canonical verification statuses. Unknown values become NotFound.
func NormalizeStatus(s string) types.VerificationStatus {
	switch strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)) {
	case "supported":
		return types.StatusSupported
	case "disputed":
		return types.StatusDisputed
	}
	return types.StatusNotFound
}
