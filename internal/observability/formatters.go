// Package observability provides formatted report output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/evidentia/internal/pipeline"
	"github.com/jonathan/evidentia/internal/report"
	"github.com/jonathan/evidentia/internal/textutil"
	"github.com/jonathan/evidentia/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the analyze command.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, textutil.Ellipsize(line, boxWidth-7))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress prints one stage announcement.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event pipeline.ProgressEvent) {
	fmt.Fprintf(p.out, "→ [%s] %s\n", event.Category, event.Message)
}

// PrintReport prints the headline, key findings, claims, verification and
// contradictions of r.
func (p *Printer) PrintReport(r *types.TruthReport) {
	if r == nil {
		return
	}
	p.PrintSummary(r)
	p.PrintClaims(r.Claims)
	p.PrintVerification(r.ExternalVerification)
	p.PrintContradictions(r.Contradictions)
}

// PrintSummary outputs the verdict box with the key findings.
func (p *Printer) PrintSummary(r *types.TruthReport) {
	if r == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Verdict:     %s\n", r.Verdict))
	sb.WriteString(fmt.Sprintf("Confidence:  %d%%\n", r.Confidence))
	sb.WriteString(fmt.Sprintf("Source:      %s\n", r.Source))
	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error:       %s (%s)\n", r.Error.Code, r.Error.Message))
	}
	sb.WriteString(fmt.Sprintf("Scores:      manipulation %d, scam %d, bias %d, consistency %d\n",
		r.Scores.ManipulationRisk, r.Scores.ScamRisk, r.Scores.Bias, r.Scores.Consistency))

	if findings := report.KeyFindings(r); len(findings) > 0 {
		sb.WriteString("\nKey Findings:\n")
		for _, f := range findings {
			sb.WriteString(fmt.Sprintf("  • %s\n", f))
		}
	}

	if why := r.ExecutiveSummary.Why; len(why) > 0 {
		sb.WriteString("\nWhy:\n")
		writeList(&sb, why, 3)
	}
	if next := r.ExecutiveSummary.WhatToDoNext; len(next) > 0 {
		sb.WriteString("\nWhat to do next:\n")
		writeList(&sb, next, 3)
	}

	p.printBox("TRUTH REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintClaims outputs the extracted claims.
func (p *Printer) PrintClaims(claims []types.Claim) {
	if len(claims) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Extracted %d claims:\n\n", len(claims)))

	count := min(len(claims), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := claims[i]
		sb.WriteString(fmt.Sprintf("%s  %s\n", c.ID, c.Text))
		sb.WriteString(fmt.Sprintf("    [%s · %s · %s]\n", c.Category, c.Checkability, c.Importance))
	}
	if len(claims) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more claims", len(claims)-maxItemsToShow))
	}

	p.printBox("CLAIMS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintVerification outputs external verification per claim, or the
// reliability note when search was unavailable.
func (p *Printer) PrintVerification(ev types.ExternalVerification) {
	var sb strings.Builder
	if !ev.Enabled || len(ev.PerClaim) == 0 {
		sb.WriteString(textutil.FirstNonEmpty(ev.ReliabilityNote, "External verification not run."))
		p.printBox("EXTERNAL VERIFICATION", sb.String())
		return
	}

	count := min(len(ev.PerClaim), maxItemsToShow)
	for i := 0; i < count; i++ {
		v := ev.PerClaim[i]
		sb.WriteString(fmt.Sprintf("%s %s  %s\n", statusMark(v.Status), v.ClaimID, v.Status))
		if v.Notes != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", v.Notes))
		}
		for j, c := range v.Citations {
			if j == 2 {
				sb.WriteString(fmt.Sprintf("  ... and %d more sources\n", len(v.Citations)-2))
				break
			}
			sb.WriteString(fmt.Sprintf("  ↳ %s (%s)\n", c.Title, c.Domain))
		}
	}
	if len(ev.PerClaim) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more claims\n", len(ev.PerClaim)-maxItemsToShow))
	}
	if ev.ReliabilityNote != "" {
		sb.WriteString("\n" + ev.ReliabilityNote)
	}

	p.printBox("EXTERNAL VERIFICATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintContradictions outputs cross-source contradictions.
func (p *Printer) PrintContradictions(contradictions []types.Contradiction) {
	if len(contradictions) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d contradictions:\n\n", len(contradictions)))
	for i, c := range contradictions {
		if i == maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(contradictions)-maxItemsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("⚠ [%s] %s vs %s\n", c.Severity, c.SourceA.Source, c.SourceB.Source))
		if c.Explanation != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", c.Explanation))
		}
	}

	p.printBox("CONTRADICTIONS", strings.TrimSuffix(sb.String(), "\n"))
}

func writeList(sb *strings.Builder, items []string, limit int) {
	count := min(len(items), limit)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
}

func statusMark(s types.VerificationStatus) string {
	switch s {
	case types.StatusSupported:
		return "✓"
	case types.StatusDisputed:
		return "✗"
	}
	return "?"
}
