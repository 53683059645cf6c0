package outputs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"caseport/internal/models"
)

// YAML writes the full collected report, including the assembled field
// records, as a YAML document. Multi-line strings are rendered as literal
// block scalars.
type YAML struct {
	Path string
}

type yamlDoc struct {
	Mode  models.Mode `yaml:"mode"`
	Items []yamlItem  `yaml:"items"`
}

type yamlItem struct {
	ID        string                       `yaml:"id"`
	Name      string                       `yaml:"name"`
	Package   string                       `yaml:"package,omitempty"`
	Class     string                       `yaml:"class,omitempty"`
	Location  models.Location              `yaml:"location"`
	Docstring scalar                       `yaml:"docstring,omitempty"`
	Markers   []string                     `yaml:"markers,omitempty"`
	Result    *yamlResult                  `yaml:"result,omitempty"`
	Extra     map[string]map[string]string `yaml:"extra,omitempty"`
	Fields    *yaml.Node                   `yaml:"fields,omitempty"`
	Steps     []yamlStep                   `yaml:"steps,omitempty"`
}

type yamlResult struct {
	Outcome  models.Outcome `yaml:"outcome"`
	Duration float64        `yaml:"duration"`
	Stdout   scalar         `yaml:"stdout,omitempty"`
	Stderr   scalar         `yaml:"stderr,omitempty"`
	Logs     scalar         `yaml:"logs,omitempty"`
	Summary  scalar         `yaml:"summary,omitempty"`
	Message  scalar         `yaml:"message,omitempty"`
}

type yamlStep struct {
	Index  int    `yaml:"index"`
	Step   scalar `yaml:"step"`
	Result scalar `yaml:"result"`
}

// scalar is a string that marshals multi-line content in literal style.
type scalar string

// MarshalYAML implements yaml.Marshaler.
func (s scalar) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(s)}
	if strings.Contains(string(s), "\n") {
		n.Style = yaml.LiteralStyle
	}
	return n, nil
}

// Generate implements Generator.
func (g *YAML) Generate(rep *models.Report, items []Item) error {
	doc := yamlDoc{Mode: rep.Mode}
	for _, it := range items {
		doc.Items = append(doc.Items, newYAMLItem(it))
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("yaml output: %w", err)
	}
	if err := os.WriteFile(g.Path, data, 0o644); err != nil {
		return fmt.Errorf("yaml output: write %s: %w", g.Path, err)
	}
	return nil
}

func newYAMLItem(it Item) yamlItem {
	out := yamlItem{
		ID:        it.Test.ID,
		Name:      it.Test.Name,
		Package:   it.Test.Package,
		Class:     it.Test.Class,
		Location:  it.Test.Location,
		Docstring: scalar(it.Test.Docstring),
		Markers:   it.Test.Markers,
		Extra:     it.Test.Extra,
	}
	if r := it.Test.Result; r != nil {
		out.Result = &yamlResult{
			Outcome:  r.Outcome,
			Duration: r.Duration,
			Stdout:   scalar(r.Stdout),
			Stderr:   scalar(r.Stderr),
			Logs:     scalar(r.Logs),
			Summary:  scalar(r.Summary),
			Message:  scalar(r.Message),
		}
	}
	if rec := it.Record; rec != nil {
		out.Fields = fieldsNode(rec)
		for _, p := range rec.Steps {
			out.Steps = append(out.Steps, yamlStep{Index: p.Index, Step: scalar(p.Step), Result: scalar(p.Result)})
		}
	}
	return out
}

// fieldsNode builds a mapping node by hand to keep resolution order.
func fieldsNode(rec fieldSource) *yaml.Node {
	names := rec.Names()
	if len(names) == 0 {
		return nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range names {
		value, _ := rec.Value(name)
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
		if strings.Contains(value, "\n") {
			val.Style = yaml.LiteralStyle
		}
		node.Content = append(node.Content, key, val)
	}
	return node
}

type fieldSource interface {
	Names() []string
	Value(name string) (string, bool)
}
