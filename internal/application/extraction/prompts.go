package extraction

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptSet holds the prompts used for both extraction passes.
// Pass prompts are text/template strings rendered with PromptData.
type PromptSet struct {
	System string `yaml:"system"`
	Pass1  string `yaml:"pass1"`
	Pass2  string `yaml:"pass2"`
}

// PromptData is the template input for pass prompts
type PromptData struct {
	Schema   string
	Units    string
	FileName string
}

const defaultSystemPrompt = "You read scanned and photographed vendor invoices for renovation projects. You respond with a single JSON object and nothing else."

const defaultPass1Prompt = `Extract this vendor invoice as structured JSON.

Rules:
- Copy values exactly as printed. Do not invent values.
- invoiceDate must be the date printed on the document in YYYY-MM-DD format. Use "" if none is printed.
- Amounts are plain numbers without currency symbols or thousands separators.
- unitType must be one of: {{.Units}}.
- sourceText is the raw text of the printed line the item was read from.
- confidence is your certainty for the line between 0 and 1; set needsReview to true when unsure.

Respond with JSON only, matching this schema:
{{.Schema}}`

const defaultPass2Prompt = `Extract this vendor invoice as structured JSON, line by line.

A previous reading summarized this invoice instead of itemizing it. Do NOT summarize.
Return EVERY purchasable line printed on the document as its own entry in "lines",
including materials, fixtures, hardware, delivery and fees. Never merge lines and
never replace them with a single total line.

Rules:
- Copy values exactly as printed. Do not invent values.
- invoiceDate must be the date printed on the document in YYYY-MM-DD format. Use "" if none is printed.
- Amounts are plain numbers without currency symbols or thousands separators.
- unitType must be one of: {{.Units}}.
- sourceText is the raw text of the printed line the item was read from.
- confidence is your certainty for the line between 0 and 1; set needsReview to true when unsure.

Respond with JSON only, matching this schema:
{{.Schema}}`

// DefaultPrompts returns the built-in prompt set
func DefaultPrompts() *PromptSet {
	return &PromptSet{
		System: defaultSystemPrompt,
		Pass1:  defaultPass1Prompt,
		Pass2:  defaultPass2Prompt,
	}
}

// LoadPrompts loads prompt overrides from a YAML file.
// Keys missing from the file keep their built-in value; an empty path
// returns the defaults.
func LoadPrompts(promptsPath string) (*PromptSet, error) {
	prompts := DefaultPrompts()
	if promptsPath == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override PromptSet
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	if override.System != "" {
		prompts.System = override.System
	}
	if override.Pass1 != "" {
		prompts.Pass1 = override.Pass1
	}
	if override.Pass2 != "" {
		prompts.Pass2 = override.Pass2
	}

	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
