// Package types defines the data model shared by the analysis pipeline: evidence
// inputs, their normalized form, and the Truth Report produced for a run.
package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EvidenceType is the declared kind of an evidence item.
type EvidenceType string

// Evidence types accepted from callers. EvidenceUnknown is produced only by
// normalization when an item matches none of the supported shapes.
const (
	EvidenceText    EvidenceType = "text"
	EvidenceLink    EvidenceType = "link"
	EvidencePDF     EvidenceType = "pdf"
	EvidenceImage   EvidenceType = "image"
	EvidenceAudio   EvidenceType = "audio"
	EvidenceVideo   EvidenceType = "video"
	EvidenceUnknown EvidenceType = "unknown"
)

// IsFileBacked reports whether the type is read from a file on disk.
func (t EvidenceType) IsFileBacked() bool {
	switch t {
	case EvidencePDF, EvidenceImage, EvidenceAudio, EvidenceVideo:
		return true
	}
	return false
}

// EvidenceInput is one caller-supplied evidence descriptor.
type EvidenceInput struct {
	Type        EvidenceType `json:"type" yaml:"type" validate:"required,oneof=text link pdf image audio video"`
	LocationRef string       `json:"locationRef,omitempty" yaml:"locationRef,omitempty"`
	URL         string       `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	RawText     string       `json:"rawText,omitempty" yaml:"rawText,omitempty"`
	Filename    string       `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// InputError describes an evidence item that cannot be analyzed.
type InputError struct {
	Index   int
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("evidence %d: %s: %s", e.Index+1, e.Field, e.Message)
}

var validate = validator.New()

// Validate checks the declared type and that a content source resolves for it.
// index is the item's position and is only used for error reporting.
func (in *EvidenceInput) Validate(index int) error {
	if err := validate.Struct(in); err != nil {
		var field, msg string
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			field = strings.ToLower(verrs[0].Field())
			msg = fmt.Sprintf("failed %q check", verrs[0].Tag())
		} else {
			field, msg = "input", err.Error()
		}
		return &InputError{Index: index, Field: field, Message: msg}
	}

	switch in.Type {
	case EvidenceText:
		if in.RawText == "" {
			return &InputError{Index: index, Field: "rawText", Message: "text evidence requires rawText"}
		}
	case EvidenceLink:
		if in.URL == "" && in.RawText == "" {
			return &InputError{Index: index, Field: "url", Message: "link evidence requires url or rawText"}
		}
	default:
		if in.LocationRef == "" {
			return &InputError{Index: index, Field: "locationRef", Message: fmt.Sprintf("%s evidence requires a file reference", in.Type)}
		}
	}
	return nil
}

// InlineData is a binary payload sent alongside a prompt. Data marshals as base64.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"base64Data"`
}

// ContentMetadata records where normalized content came from.
type ContentMetadata struct {
	Hash      string `json:"hash"`
	SizeBytes int    `json:"sizeBytes"`
	Timestamp string `json:"timestamp"`
}

// NormalizedEvidence is the model-ready form of one input. It is created by the
// normalizer, enriched by the media pre-analyzers, and read by the orchestrator.
type NormalizedEvidence struct {
	Type          EvidenceType     `json:"type"`
	Filename      string           `json:"filename,omitempty"`
	URL           string           `json:"url,omitempty"`
	Text          string           `json:"text"`
	InlineImage   *InlineData      `json:"inlineImage,omitempty"`
	KeyframePaths []string         `json:"keyframePaths,omitempty"`
	AudioPath     string           `json:"audioPath,omitempty"`
	Metadata      *ContentMetadata `json:"metadata,omitempty"`
	// ScratchDir holds files derived during normalization (video keyframes
	// and audio). It belongs to one run and is removed when the run ends.
	ScratchDir string `json:"-"`
}

// DisplayName is the filename, else the URL, else "Evidence n" for position index.
func (n *NormalizedEvidence) DisplayName(index int) string {
	if n.Filename != "" {
		return n.Filename
	}
	if n.URL != "" {
		return n.URL
	}
	return fmt.Sprintf("Evidence %d", index+1)
}

// EvidenceID returns the positional ledger id for index (e1, e2, ...).
func EvidenceID(index int) string {
	return fmt.Sprintf("e%d", index+1)
}

// ClaimID returns the sequential claim id for index (c1, c2, ...).
func ClaimID(index int) string {
	return fmt.Sprintf("c%d", index+1)
}
