package notes

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template controls how the generated notes are rendered: which record
// columns to hide, which empty columns to append for manual fill-in during
// the meeting, and how the document is titled.
type Template struct {
	Heading      string   `yaml:"heading"`
	SkipFields   []string `yaml:"skipFields"`
	ExtraColumns []string `yaml:"extraColumns"`
	GroupBy      bool     `yaml:"groupByAssignee"`
}

// DefaultTemplate renders every column, grouped per assignee.
func DefaultTemplate() Template {
	return Template{
		Heading: "Sprint Notes",
		GroupBy: true,
	}
}

// LoadTemplate reads a render template from a YAML file. Fields left unset in
// the file keep their defaults.
func LoadTemplate(path string) (Template, error) {
	tpl := DefaultTemplate()
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read template: %w", err)
	}
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return Template{}, fmt.Errorf("parse template %s: %w", path, err)
	}
	return tpl, nil
}
