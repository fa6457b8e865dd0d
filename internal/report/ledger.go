package report

import (
	"fmt"

	"github.com/jonathan/evidentia/internal/textutil"
	"github.com/jonathan/evidentia/internal/types"
)

// Preview lengths for ledger entries.
const (
	LedgerPreviewLength = 300
	DemoPreviewLength   = 200
)

// NewLedgerEntry describes evidence item i. keyFacts may be nil.
func NewLedgerEntry(i int, ev types.NormalizedEvidence, keyFacts []string, previewLen int) types.LedgerEntry {
	if keyFacts == nil {
		keyFacts = []string{}
	}
	entry := types.LedgerEntry{
		ID:        types.EvidenceID(i),
		Type:      string(ev.Type),
		Name:      ev.DisplayName(i),
		Filename:  ev.Filename,
		URL:       ev.URL,
		KeyFacts:  keyFacts,
		CrossRefs: []string{fmt.Sprintf("Evidence %d", i+1)},
	}
	if previewLen > 0 {
		entry.ExtractedTextPreview = textutil.Truncate(ev.Text, previewLen)
	}
	if md := ev.Metadata; md != nil {
		entry.Metadata = map[string]any{
			"hash":      md.Hash,
			"sizeBytes": md.SizeBytes,
			"timestamp": md.Timestamp,
		}
	}
	return entry
}

// Ledger builds entries for every item with no key facts.
func Ledger(evidence []types.NormalizedEvidence, previewLen int) []types.LedgerEntry {
	out := make([]types.LedgerEntry, 0, len(evidence))
	for i, ev := range evidence {
		out = append(out, NewLedgerEntry(i, ev, nil, previewLen))
	}
	return out
}

// AnalyzedList renders the transparency "analyzed" lines, one per item.
func AnalyzedList(evidence []types.NormalizedEvidence) []string {
	out := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		out = append(out, fmt.Sprintf("%s: %s", ev.Type, textutil.FirstNonEmpty(ev.Filename, ev.URL, "pasted")))
	}
	return out
}
