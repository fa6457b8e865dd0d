// Package scenarios provides the embedded catalog of demo scenarios and
// adversarial generation templates.
package scenarios

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/evidentia/internal/types"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Scenario is a canned evidence set that can be analyzed by id.
type Scenario struct {
	ID          string                `json:"id" yaml:"id"`
	Name        string                `json:"name" yaml:"name"`
	Description string                `json:"description" yaml:"description"`
	Tags        []string              `json:"tags" yaml:"tags"`
	Payload     []types.EvidenceInput `json:"payload" yaml:"payload"`
}

// Template describes content the adversarial generator can produce.
type Template struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Template string `json:"template" yaml:"template"`
}

// Catalog holds every scenario and template in file order.
type Catalog struct {
	Scenarios []Scenario `yaml:"scenarios"`
	Templates []Template `yaml:"templates"`
}

var (
	loadOnce sync.Once
	catalog  *Catalog
	loadErr  error
)

// Parse decodes a catalog document and checks that ids are unique and that
// every payload item is valid evidence.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse scenario catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Scenarios))
	for _, s := range c.Scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario %q has no id", s.Name)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		seen[s.ID] = true
		if len(s.Payload) == 0 {
			return nil, fmt.Errorf("scenario %s has no payload", s.ID)
		}
		for i := range s.Payload {
			if err := s.Payload[i].Validate(i); err != nil {
				return nil, fmt.Errorf("scenario %s: %w", s.ID, err)
			}
		}
	}
	return &c, nil
}

// Load returns the embedded catalog, parsed once.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		catalog, loadErr = Parse(catalogYAML)
	})
	return catalog, loadErr
}

// List returns the embedded scenarios.
func List() ([]Scenario, error) {
	c, err := Load()
	if err != nil {
		return nil, err
	}
	return c.Scenarios, nil
}

// Get returns the scenario with id.
func Get(id string) (Scenario, error) {
	c, err := Load()
	if err != nil {
		return Scenario{}, err
	}
	for _, s := range c.Scenarios {
		if s.ID == id {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("scenario %q not found", id)
}

// Templates returns the embedded adversarial templates.
func Templates() ([]Template, error) {
	c, err := Load()
	if err != nil {
		return nil, err
	}
	return c.Templates, nil
}

// TemplateText resolves a template id to its text. Unknown ids are returned
// unchanged so free-form templates pass through.
func TemplateText(idOrText string) string {
	templates, err := Templates()
	if err != nil {
		return idOrText
	}
	for _, t := range templates {
		if t.ID == idOrText {
			return t.Template
		}
	}
	return idOrText
}
