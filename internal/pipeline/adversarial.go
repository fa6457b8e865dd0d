package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/evidentia/internal/llm"
	"github.com/jonathan/evidentia/internal/prompts"
	"github.com/jonathan/evidentia/internal/scenarios"
)

// AdversarialPlaceholder is the content returned when no model is configured.
const AdversarialPlaceholder = "[Configure GEMINI_API_KEY to generate adversarial content.]"

// ErrTemplateRequired is returned when GenerateAdversarial gets a blank template.
var ErrTemplateRequired = errors.New("template required")

// AdversarialContent is generated test material for the analyzer.
type AdversarialContent struct {
	Content  string   `json:"content"`
	Script   string   `json:"script,omitempty"`
	Warnings []string `json:"warnings"`
}

// GenerateAdversarial asks the model for content matching template. The
// template may be a catalog template id or free text.
func (r *Runner) GenerateAdversarial(ctx context.Context, template string) (*AdversarialContent, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return nil, ErrTemplateRequired
	}
	if !r.HasModel() {
		return &AdversarialContent{
			Content:  AdversarialPlaceholder,
			Warnings: []string{"No API key configured."},
		}, nil
	}

	text, err := r.generate(ctx, prompts.AdversarialFile, "generate-adversarial", map[string]string{
		"Template": scenarios.TemplateText(template),
	})
	if err != nil {
		return nil, err
	}

	var out AdversarialContent
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(text)), &out); err != nil {
		return nil, fmt.Errorf("failed to parse adversarial content: %w", err)
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return &out, nil
}
