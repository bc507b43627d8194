package pipeline

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// PromptTemplate is an externally supplied extraction prompt. Templates are
// never hardcoded per-call; they come from a YAML file with a `prompt` key
// and use {{source_text}} / {{source_id}} placeholders.
type PromptTemplate struct {
	Text string
}

type promptFile struct {
	Prompt string `yaml:"prompt"`
	System string `yaml:"system"`
}

// LoadPromptTemplate reads a prompt template and optional system prompt
// from a YAML file.
func LoadPromptTemplate(path string) (*PromptTemplate, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "prompt: read %s", path)
	}

	var pf promptFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, "", eris.Wrapf(err, "prompt: parse %s", path)
	}
	if strings.TrimSpace(pf.Prompt) == "" {
		return nil, "", eris.Errorf("prompt: %s has empty prompt", path)
	}

	return &PromptTemplate{Text: pf.Prompt}, pf.System, nil
}

// Render substitutes the evidence text and id into the template.
func (t *PromptTemplate) Render(sourceText, sourceID string) string {
	out := strings.ReplaceAll(t.Text, "{{source_text}}", sourceText)
	return strings.ReplaceAll(out, "{{source_id}}", sourceID)
}
