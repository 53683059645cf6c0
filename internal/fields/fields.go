// Package fields implements the declarative field rule set: per-field
// validation, transformation, formatting, and templated defaults, configured
// as data and interpreted uniformly.
package fields

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flosch/pongo2/v6"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"caseport/internal/apperr"
	"caseport/internal/meta"
)

// Format hints.
const (
	FormatPre = "pre"
)

// Transform rewrites a raw value before validation. Unless is an exemption
// pattern: a value it matches is left untouched.
type Transform struct {
	Unless  string `yaml:"unless"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

// Context is the read-only value bag available to default-value templates.
type Context map[string]any

// Definition is one configured field rule. The zero value plus a name is a
// valid pass-through definition.
type Definition struct {
	Name      string     `yaml:"-"`
	Meta      string     `yaml:"meta"`
	Multiline *bool      `yaml:"multiline"`
	Validate  string     `yaml:"validate"`
	Transform *Transform `yaml:"transform"`
	Default   *string    `yaml:"default"`
	Format    string     `yaml:"format"`

	required   bool
	validateRe *regexp.Regexp
	unlessRe   *regexp.Regexp
	patternRe  *regexp.Regexp
	defaultTpl *pongo2.Template
}

// IsMultiline reports whether the field keeps its line structure. When the
// flag is not configured, every field is multiline except "title".
func (d *Definition) IsMultiline() bool {
	if d.Multiline != nil {
		return *d.Multiline
	}
	return meta.DefaultMultiline(d.Name)
}

// Required reports whether the field must be present (or defaulted) in
// every record.
func (d *Definition) Required() bool {
	return d.required
}

// compile resolves defaults and compiles the configured patterns and
// template. Called once at rule-set load; definitions are read-only
// afterwards.
func (d *Definition) compile() error {
	if err := validation.ValidateStruct(d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Format, validation.In(FormatPre)),
	); err != nil {
		return fmt.Errorf("field %q: %w", d.Name, err)
	}

	if d.Meta == "" {
		d.Meta = d.Name
	}

	var err error
	if d.Validate != "" {
		// Validation requires a full match.
		if d.validateRe, err = regexp.Compile(`\A(?:` + d.Validate + `)\z`); err != nil {
			return fmt.Errorf("field %q: validate pattern: %w", d.Name, err)
		}
	}
	if d.Transform != nil {
		if d.Transform.Pattern == "" {
			return fmt.Errorf("field %q: transform requires a pattern", d.Name)
		}
		if d.patternRe, err = regexp.Compile(d.Transform.Pattern); err != nil {
			return fmt.Errorf("field %q: transform pattern: %w", d.Name, err)
		}
		if d.Transform.Unless != "" {
			// The exemption matches at the start of the value.
			if d.unlessRe, err = regexp.Compile(`\A(?:` + d.Transform.Unless + `)`); err != nil {
				return fmt.Errorf("field %q: transform unless pattern: %w", d.Name, err)
			}
		}
	}
	if d.Default != nil {
		if d.defaultTpl, err = pongo2.FromString(*d.Default); err != nil {
			return fmt.Errorf("field %q: default template: %w", d.Name, err)
		}
	}
	return nil
}

// Resolve produces the final value for this field from a raw extracted
// value (or its absence) and a rendering context. ok is false when the
// field is legitimately omitted from the record.
//
// Order is fixed: default-if-absent, transform (skipped when the exemption
// matches), full-match validation, then formatting. Validation runs after
// transformation so that rules can normalize loose input into the required
// shape.
func (d *Definition) Resolve(raw string, present bool, ctx Context) (value string, ok bool, err error) {
	value = raw

	if !present {
		if d.defaultTpl == nil {
			if d.required {
				return "", false, &apperr.MissingFieldError{Field: d.Name}
			}
			return "", false, nil
		}
		value, err = d.defaultTpl.Execute(pongo2.Context(ctx))
		if err != nil {
			return "", false, fmt.Errorf("field %q: render default: %w", d.Name, err)
		}
	}

	if d.patternRe != nil {
		exempt := d.unlessRe != nil && d.unlessRe.MatchString(value)
		if !exempt {
			value = replaceFirst(d.patternRe, value, d.Transform.Replace)
		}
	}

	if d.validateRe != nil && !d.validateRe.MatchString(value) {
		return "", false, &apperr.ValidationError{Field: d.Name, Pattern: d.Validate, Value: value}
	}

	if strings.EqualFold(value, "true") || strings.EqualFold(value, "false") {
		value = strings.ToLower(value)
	}

	if d.Format == FormatPre {
		value = "<pre>" + value + "</pre>"
	}

	return value, true, nil
}

// replaceFirst substitutes the first match of re in value with the
// expansion of replace ($1, $name group references).
func replaceFirst(re *regexp.Regexp, value, replace string) string {
	loc := re.FindStringSubmatchIndex(value)
	if loc == nil {
		return value
	}
	expanded := re.ExpandString(nil, replace, value, loc)
	return value[:loc[0]] + string(expanded) + value[loc[1]:]
}

// Definitions is an ordered list of field definitions. It unmarshals from a
// YAML mapping, preserving the configured order.
type Definitions []*Definition

// UnmarshalYAML decodes a mapping of name → definition, keeping key order.
func (ds *Definitions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("field definitions: expected a mapping at line %d", node.Line)
	}
	out := make(Definitions, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		d := &Definition{Name: key.Value}
		// A bare "name:" entry is a pass-through definition.
		if val.Kind != yaml.ScalarNode || val.Value != "" {
			if err := val.Decode(d); err != nil {
				return fmt.Errorf("field %q: %w", key.Value, err)
			}
		}
		d.Name = key.Value
		out = append(out, d)
	}
	*ds = out
	return nil
}

// RuleSet holds the required and optional field definitions. It is loaded
// once at configuration time and read-only afterwards.
type RuleSet struct {
	Required Definitions `yaml:"required"`
	Optional Definitions `yaml:"optional"`
}

// Compile compiles every definition and rejects configurations where two
// definitions share a name or a metadata-name.
func (rs *RuleSet) Compile() error {
	names := make(map[string]struct{})
	metas := make(map[string]string)

	for _, d := range rs.Required {
		d.required = true
	}
	for _, d := range rs.All() {
		if err := d.compile(); err != nil {
			return err
		}
		if _, dup := names[d.Name]; dup {
			return fmt.Errorf("field %q is defined twice", d.Name)
		}
		names[d.Name] = struct{}{}
		if other, dup := metas[d.Meta]; dup {
			return fmt.Errorf("fields %q and %q share metadata-name %q", other, d.Name, d.Meta)
		}
		metas[d.Meta] = d.Name
	}
	return nil
}

// All returns the definitions in resolution order: required fields first,
// then optional, each in configured order.
func (rs *RuleSet) All() []*Definition {
	out := make([]*Definition, 0, len(rs.Required)+len(rs.Optional))
	out = append(out, rs.Required...)
	out = append(out, rs.Optional...)
	return out
}

// Multiline is the extractor lookup: configured flag when the field is
// known, the default rule otherwise.
func (rs *RuleSet) Multiline(name string) bool {
	for _, d := range rs.All() {
		if d.Name == name {
			return d.IsMultiline()
		}
	}
	return meta.DefaultMultiline(name)
}
