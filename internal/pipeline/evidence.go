package pipeline

import (
	"fmt"
	"strings"

	"github.com/jonathan/evidentia/internal/types"
	"github.com/jonathan/evidentia/internal/validation"
)

// EvidenceBlob concatenates normalized items under per-item headers of the
// form "--- Evidence e1 (image: photo.png) ---".
func EvidenceBlob(evidence []types.NormalizedEvidence) string {
	blocks := make([]string, 0, len(evidence))
	for i, ev := range evidence {
		kind := string(ev.Type)
		if ev.Filename != "" {
			kind += ": " + ev.Filename
		}
		blocks = append(blocks, fmt.Sprintf("--- Evidence %s (%s) ---\n%s", types.EvidenceID(i), kind, ev.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// searchBlob renders per-claim search results for the verification prompt.
// Result text comes from third-party pages and has injection phrasing redacted.
func searchBlob(claims []searchedClaim) string {
	blocks := make([]string, 0, len(claims))
	for _, c := range claims {
		lines := make([]string, 0, len(c.Results))
		for _, res := range c.Results {
			lines = append(lines, fmt.Sprintf("Title: %s\nLink: %s\nSnippet: %s",
				validation.StripInjectionAttempts(res.Title),
				res.Link,
				validation.StripInjectionAttempts(res.Snippet)))
		}
		results := strings.Join(lines, "\n---\n")
		if results == "" {
			results = "[none]"
		}
		blocks = append(blocks, fmt.Sprintf("ClaimIndex: %d\nClaimId: %s\nClaim: %s\nSEARCH RESULTS:\n%s",
			c.ClaimIndex, c.ClaimID, c.Text, results))
	}
	return strings.Join(blocks, "\n\n====\n\n")
}
