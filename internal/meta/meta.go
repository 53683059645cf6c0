// Package meta extracts ":name: value" metadata fields from test
// documentation strings.
//
// Extraction is a two-state line machine: outside of a field, only a marker
// line (":name: ...") is recognized; inside a field, every line up to the
// next marker or the end of the text belongs to the current field. Fields
// named "steps" and "expectedresults" are parsed as numbered "N. text"
// lists whose indices must be contiguous starting at 1.
package meta

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"caseport/internal/apperr"
)

// Numbered field names.
const (
	FieldSteps           = "steps"
	FieldExpectedResults = "expectedresults"
)

var markerRe = regexp.MustCompile(`^:([A-Za-z][A-Za-z0-9_-]*):(.*)$`)

// IsNumbered reports whether a field holds a numbered "N. text" list.
func IsNumbered(name string) bool {
	return name == FieldSteps || name == FieldExpectedResults
}

// MultilineFunc reports whether a field keeps its line structure. Values of
// fields for which it returns false are collapsed to a single line.
type MultilineFunc func(name string) bool

// DefaultMultiline is the fallback rule: every field is multiline except
// "title".
func DefaultMultiline(name string) bool {
	return name != "title"
}

// NumberedEntry is one "N. text" item of a numbered field.
type NumberedEntry struct {
	Index int
	Text  string
}

// Map is the ordered field-name → raw-value mapping extracted from one
// docstring. Numbered fields are stored as entry sequences instead of
// plain strings.
type Map struct {
	order  []string
	values map[string]string
	lists  map[string][]NumberedEntry
}

// Names returns the field names in extraction order.
func (m *Map) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Has reports whether the field was present in the docstring.
func (m *Map) Has(name string) bool {
	if _, ok := m.values[name]; ok {
		return true
	}
	_, ok := m.lists[name]
	return ok
}

// Value returns the raw text of a plain field.
func (m *Map) Value(name string) (string, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Entries returns the parsed sequence of a numbered field.
func (m *Map) Entries(name string) ([]NumberedEntry, bool) {
	e, ok := m.lists[name]
	return e, ok
}

// Len returns the number of extracted fields.
func (m *Map) Len() int {
	return len(m.order)
}

func (m *Map) record(name string) {
	if !m.Has(name) {
		m.order = append(m.order, name)
	}
}

// Extract parses a documentation string into a Map. A docstring with no
// field markers yields an empty Map; required-field enforcement happens
// later, in field resolution. multiline may be nil, in which case
// DefaultMultiline applies.
func Extract(doc string, multiline MultilineFunc) (*Map, error) {
	if multiline == nil {
		multiline = DefaultMultiline
	}

	m := &Map{
		values: make(map[string]string),
		lists:  make(map[string][]NumberedEntry),
	}

	var name string
	var lines []string

	flush := func() error {
		if name == "" {
			return nil
		}
		value := assemble(lines)
		switch {
		case IsNumbered(name):
			entries, err := parseNumbered(name, value)
			if err != nil {
				return err
			}
			m.record(name)
			m.lists[name] = entries
		case !multiline(name):
			m.record(name)
			m.values[name] = collapse(value)
		default:
			m.record(name)
			m.values[name] = value
		}
		name = ""
		lines = nil
		return nil
	}

	for _, line := range strings.Split(doc, "\n") {
		if mm := markerRe.FindStringSubmatch(line); mm != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			name = mm[1]
			lines = []string{strings.TrimSpace(mm[2])}
			continue
		}
		if name != "" {
			lines = append(lines, line)
		}
		// Lines before the first marker are free-form description text
		// and not metadata.
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return m, nil
}

// assemble joins the marker-line remainder with the dedented continuation
// lines and trims surrounding blank space.
func assemble(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	out := []string{lines[0]}
	out = append(out, dedent(lines[1:])...)
	return strings.Trim(strings.Join(out, "\n"), " \t\n")
}

// dedent strips the common indentation baseline from a block of lines so
// that relative indentation is preserved.
func dedent(lines []string) []string {
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		if len(line) >= indent {
			out[i] = line[indent:]
		} else {
			out[i] = strings.TrimLeft(line, " \t")
		}
	}
	return out
}

// collapse turns a multi-line value into a single line.
func collapse(value string) string {
	var parts []string
	for _, line := range strings.Split(value, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

var entryRe = regexp.MustCompile(`^(\d+)\.\s*(.*)$`)

// parseNumbered parses "N. text" entries and enforces unique, contiguous
// indices starting at 1. Continuation lines are appended to the entry they
// follow.
func parseNumbered(field, value string) ([]NumberedEntry, error) {
	var entries []NumberedEntry
	for _, line := range strings.Split(value, "\n") {
		if mm := entryRe.FindStringSubmatch(line); mm != nil {
			index, err := strconv.Atoi(mm[1])
			if err != nil {
				return nil, &apperr.ParseError{Field: field, Index: len(entries) + 1, Reason: "entry index overflows"}
			}
			if want := len(entries) + 1; index != want {
				return nil, &apperr.ParseError{
					Field:  field,
					Index:  index,
					Reason: fmt.Sprintf("expected index %d", want),
				}
			}
			entries = append(entries, NumberedEntry{Index: index, Text: strings.TrimSpace(mm[2])})
			continue
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if len(entries) == 0 {
			return nil, &apperr.ParseError{Field: field, Index: 1, Reason: `entry does not start with "1."`}
		}
		last := &entries[len(entries)-1]
		if last.Text == "" {
			last.Text = text
		} else {
			last.Text += " " + text
		}
	}
	return entries, nil
}
