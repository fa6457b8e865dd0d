package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/evidentia/internal/observability"
	"github.com/jonathan/evidentia/internal/pipeline"
	"github.com/jonathan/evidentia/internal/scenarios"
	"github.com/jonathan/evidentia/internal/types"
)

type analyzeOptions struct {
	texts      []string
	urls       []string
	files      []string
	inputsFile string
	scenarioID string
	mode       string
	jsonOut    bool
	quiet      bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze evidence and print a Truth Report",
		Long: `Analyze runs the full pipeline over the given evidence: normalization, media
pre-analysis, claim extraction, manipulation signals, external verification and
report synthesis.

File types are inferred from the extension. An inputs file (YAML or JSON) holds
a list of evidence items with type, locationRef, url, rawText and filename.`,
		Example: `  evidentia analyze --text "URGENT: verify your account" --url https://example.com/story
  evidentia analyze --file screenshot.png --file call.mp3 --json
  evidentia analyze --scenario scam-email`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.texts, "text", "t", nil, "pasted text evidence (repeatable)")
	f.StringArrayVarP(&opts.urls, "url", "u", nil, "link evidence (repeatable)")
	f.StringArrayVarP(&opts.files, "file", "f", nil, "pdf, image, audio or video file (repeatable)")
	f.StringVarP(&opts.inputsFile, "inputs", "i", "", "YAML or JSON file with a list of evidence items")
	f.StringVarP(&opts.scenarioID, "scenario", "s", "", "run a built-in demo scenario (see 'evidentia scenarios')")
	f.StringVarP(&opts.mode, "mode", "m", "", "analysis mode: normal, demo or adversarial")
	f.BoolVar(&opts.jsonOut, "json", false, "print the full result as JSON")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not print stage progress")
	f.Duration("timeout", 0, "wall-clock budget for the run (e.g. 90s)")
	_ = a.v.BindPFlag("analysis.timeout", f.Lookup("timeout"))

	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, opts analyzeOptions) error {
	mode, err := pipeline.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	inputs, err := collectInputs(opts)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no evidence: use --text, --url, --file, --inputs or --scenario")
	}

	ctx := cmd.Context()
	svc, err := newServices(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	printer := observability.NewPrinter(cmd.OutOrStdout())
	runOpts := pipeline.Options{Mode: mode, ScenarioID: opts.scenarioID}
	if !opts.quiet && !opts.jsonOut {
		progress := observability.NewPrinter(cmd.ErrOrStderr())
		runOpts.OnProgress = progress.PrintProgress
	}

	res, err := svc.runner.RunAnalysis(ctx, inputs, runOpts)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printer.PrintReport(res.Report)
	return nil
}

// collectInputs assembles evidence in the order scenario, inputs file,
// texts, urls, files.
func collectInputs(opts analyzeOptions) ([]types.EvidenceInput, error) {
	var inputs []types.EvidenceInput

	if opts.scenarioID != "" {
		s, err := scenarios.Get(opts.scenarioID)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, s.Payload...)
	}
	if opts.inputsFile != "" {
		items, err := readInputsFile(opts.inputsFile)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, items...)
	}
	for _, t := range opts.texts {
		inputs = append(inputs, types.EvidenceInput{Type: types.EvidenceText, RawText: t})
	}
	for _, u := range opts.urls {
		inputs = append(inputs, types.EvidenceInput{Type: types.EvidenceLink, URL: u})
	}
	for _, path := range opts.files {
		kind, err := evidenceTypeFor(path)
		if err != nil {
			return nil, err
		}
		in := types.EvidenceInput{Type: kind, LocationRef: path, Filename: filepath.Base(path)}
		if kind == types.EvidenceText {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			in.RawText = string(data)
		}
		inputs = append(inputs, in)
	}

	for i := range inputs {
		if err := inputs[i].Validate(i); err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

// readInputsFile decodes a list of evidence items. YAML is a superset of JSON
// so one decoder serves both.
func readInputsFile(path string) ([]types.EvidenceInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inputs file: %w", err)
	}
	var items []types.EvidenceInput
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse inputs file %s: %w", path, err)
	}
	return items, nil
}

var extensionTypes = map[string]types.EvidenceType{
	".pdf":  types.EvidencePDF,
	".png":  types.EvidenceImage,
	".jpg":  types.EvidenceImage,
	".jpeg": types.EvidenceImage,
	".gif":  types.EvidenceImage,
	".webp": types.EvidenceImage,
	".mp3":  types.EvidenceAudio,
	".wav":  types.EvidenceAudio,
	".m4a":  types.EvidenceAudio,
	".ogg":  types.EvidenceAudio,
	".flac": types.EvidenceAudio,
	".mp4":  types.EvidenceVideo,
	".mov":  types.EvidenceVideo,
	".webm": types.EvidenceVideo,
	".mkv":  types.EvidenceVideo,
	".avi":  types.EvidenceVideo,
	".txt":  types.EvidenceText,
	".md":   types.EvidenceText,
}

// evidenceTypeFor infers the evidence type from a file extension.
func evidenceTypeFor(path string) (types.EvidenceType, error) {
	kind, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("cannot infer evidence type of %s; use --inputs to declare it", path)
	}
	return kind, nil
}
