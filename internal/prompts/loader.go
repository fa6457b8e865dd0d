// Package prompts holds the model prompt templates, one embedded JSON file of
// key -> template per pipeline concern.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// Prompt files, one per pipeline concern.
const (
	ClaimsFile       = "claims.json"
	ManipulationFile = "manipulation.json"
	CitationsFile    = "citations.json"
	ReportFile       = "report.json"
	MediaFile        = "media.json"
	AdversarialFile  = "adversarial.json"
)

var (
	loadOnce sync.Once
	catalog  map[string]map[string]string
	loadErr  error
)

// load parses every embedded file once.
func load() (map[string]map[string]string, error) {
	loadOnce.Do(func() {
		catalog, loadErr = parseFS(promptFiles)
	})
	return catalog, loadErr
}

func parseFS(fsys fs.FS) (map[string]map[string]string, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var templates map[string]string
		if err := json.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		out[name] = templates
	}
	return out, nil
}

// Get returns the template stored under key in file (e.g. "claims.json").
func Get(file, key string) (string, error) {
	all, err := load()
	if err != nil {
		return "", err
	}
	templates, ok := all[file]
	if !ok {
		return "", fmt.Errorf("prompt file %s not found", file)
	}
	prompt, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return prompt, nil
}

// Format replaces {{.Key}} placeholders with values from data in a single
// pass, so placeholder text inside a value (user evidence, for example) is
// left alone.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Render loads a prompt and formats it with data.
func Render(file, key string, data map[string]string) (string, error) {
	template, err := Get(file, key)
	if err != nil {
		return "", err
	}
	return Format(template, data), nil
}

// Keys returns the sorted prompt keys of file.
func Keys(file string) ([]string, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	templates, ok := all[file]
	if !ok {
		return nil, fmt.Errorf("prompt file %s not found", file)
	}
	keys := make([]string, 0, len(templates))
	for key := range templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
