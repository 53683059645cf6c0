// Package record assembles the final per-test field record: docstring
// extraction, field resolution, and step reconciliation, fail-fast per test.
package record

import (
	"caseport/internal/apperr"
	"caseport/internal/fields"
	"caseport/internal/meta"
	"caseport/internal/models"
)

// Record is the final mapping of metadata-name to rendered value for one
// test, plus the reconciled steps. Immutable once returned by Assemble.
type Record struct {
	names  []string
	values map[string]string

	// Steps holds the reconciled steps/expectedresults pairs in index order.
	Steps []fields.StepPair
}

// Names returns the metadata-names in resolution order.
func (r *Record) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Value returns the rendered value stored under a metadata-name.
func (r *Record) Value(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

func (r *Record) set(name, value string) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = value
}

// Assembler turns collected test items into records using a shared,
// read-only rule set. Safe for concurrent use across tests.
type Assembler struct {
	rules    *fields.RuleSet
	testsURL string
}

// NewAssembler returns an Assembler. rules must already be compiled.
func NewAssembler(rules *fields.RuleSet, testsURL string) *Assembler {
	return &Assembler{rules: rules, testsURL: testsURL}
}

// Context builds the rendering context for one test. It contains the test
// identity and location under "item" and the externally supplied base URL
// under "tests_url".
func (a *Assembler) Context(item *models.TestItem) fields.Context {
	return fields.Context{
		"item": map[string]any{
			"id":      item.ID,
			"name":    item.Name,
			"package": item.Package,
			"class":   item.Class,
			"location": map[string]any{
				"file": item.Location.File,
				"line": item.Location.Line,
				"name": item.Location.Name,
			},
		},
		"tests_url": a.testsURL,
	}
}

// Assemble produces the record for one test, or the first failure
// encountered. Errors carry the test identity; a failed test never yields a
// partial record and never affects other tests.
func (a *Assembler) Assemble(item *models.TestItem) (*Record, error) {
	raw, err := meta.Extract(item.Docstring, a.rules.Multiline)
	if err != nil {
		return nil, &apperr.TestError{TestID: item.ID, Err: err}
	}

	ctx := a.Context(item)
	rec := &Record{values: make(map[string]string)}

	for _, d := range a.rules.All() {
		if meta.IsNumbered(d.Name) {
			// Numbered fields skip value resolution; presence of a
			// required one is still enforced here.
			if d.Required() && !raw.Has(d.Name) {
				return nil, &apperr.TestError{TestID: item.ID, Err: &apperr.MissingFieldError{Field: d.Name}}
			}
			continue
		}

		value, present := raw.Value(d.Name)
		final, ok, err := d.Resolve(value, present, ctx)
		if err != nil {
			return nil, &apperr.TestError{TestID: item.ID, Err: err}
		}
		if ok {
			rec.set(d.Meta, final)
		}
	}

	steps, _ := raw.Entries(meta.FieldSteps)
	results, _ := raw.Entries(meta.FieldExpectedResults)
	pairs, err := fields.Reconcile(steps, results)
	if err != nil {
		return nil, &apperr.TestError{TestID: item.ID, Err: err}
	}
	rec.Steps = pairs

	return rec, nil
}
