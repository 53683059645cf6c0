package outputs

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"caseport/internal/models"
)

// PolarionOptions carries the importer-facing configuration shared by the
// testcase and testrun documents.
type PolarionOptions struct {
	Project             string
	User                string
	LookupMethod        string
	LookupMethodFieldID string
	DryRun              bool
	CreateDefects       bool
	IncludeSkipped      bool

	TestrunID         string // already sanitized
	TestrunTitle      string
	TestrunTemplateID string
	TestrunTypeID     string
	TestrunGroupID    string
	ProjectSpanIDs    string

	TestcaseProperties map[string]any
	TestrunProperties  map[string]any
}

type xProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xProperties struct {
	Property []xProperty `xml:"property"`
}

// sortedProperties renders a property map as attribute pairs in key order,
// skipping nil values.
func sortedProperties(props map[string]any) xProperties {
	keys := make([]string, 0, len(props))
	for k, v := range props {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := xProperties{}
	for _, k := range keys {
		out.Property = append(out.Property, xProperty{Name: k, Value: stringify(props[k])})
	}
	return out
}

// stringify renders a property value; booleans are lowercased the way the
// importer expects.
func stringify(v any) string {
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return fmt.Sprintf("%v", v)
}

func formatDuration(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

func writeXML(path string, doc any) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	out := xml.Header + string(data) + "\n"
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Field records stored under these metadata-names feed dedicated testcase
// elements and are not repeated as custom fields.
var wellKnownFields = map[string]struct{}{
	"id":              {},
	"title":           {},
	"status":          {},
	"requirement":     {},
	"steps":           {},
	"expectedresults": {},
}

// Testcases writes the testcase import document.
type Testcases struct {
	Path    string
	Options PolarionOptions
}

type xTestcases struct {
	XMLName    xml.Name    `xml:"testcases"`
	ProjectID  string      `xml:"project-id,attr"`
	Properties xProperties `xml:"properties"`
	Testcases  []xTestcase `xml:"testcase"`
}

type xTestcase struct {
	ID           string        `xml:"id,attr"`
	Status       string        `xml:"status-id,attr"`
	Title        string        `xml:"title"`
	Description  string        `xml:"description"`
	Steps        xTestSteps    `xml:"test-steps"`
	CustomFields xCustomFields `xml:"custom-fields"`
	WorkItems    xWorkItems    `xml:"linked-work-items"`
}

type xTestSteps struct {
	Steps []xTestStep `xml:"test-step"`
}

type xTestStep struct {
	Columns []xStepColumn `xml:"test-step-column"`
}

type xStepColumn struct {
	ID   string `xml:"id,attr"`
	Text string `xml:",chardata"`
}

type xCustomFields struct {
	Fields []xCustomField `xml:"custom-field"`
}

type xCustomField struct {
	ID      string `xml:"id,attr"`
	Content string `xml:"content,attr"`
}

type xWorkItems struct {
	Items []xWorkItem `xml:"linked-work-item"`
}

type xWorkItem struct {
	WorkItemID   string `xml:"workitem-id,attr"`
	RoleID       string `xml:"role-id,attr"`
	LookupMethod string `xml:"lookup-method,attr"`
}

// Generate implements Generator.
func (g *Testcases) Generate(rep *models.Report, items []Item) error {
	props := map[string]any{
		"dry-run":       g.Options.DryRun,
		"lookup-method": g.Options.LookupMethod,
	}
	if g.Options.LookupMethod == "custom" {
		props["polarion-custom-lookup-method-field-id"] = g.Options.LookupMethodFieldID
	}
	for k, v := range g.Options.TestcaseProperties {
		props[k] = v
	}

	doc := xTestcases{
		ProjectID:  g.Options.Project,
		Properties: sortedProperties(props),
	}
	for _, it := range items {
		doc.Testcases = append(doc.Testcases, newXTestcase(it))
	}

	if err := writeXML(g.Path, &doc); err != nil {
		return fmt.Errorf("testcase output: %w", err)
	}
	return nil
}

func newXTestcase(it Item) xTestcase {
	tc := xTestcase{
		ID:          testcaseID(it),
		Status:      "approved",
		Title:       it.Test.ID,
		Description: testcaseDescription(it),
	}
	if v, ok := it.Record.Value("status"); ok {
		tc.Status = v
	}
	if v, ok := it.Record.Value("title"); ok {
		tc.Title = v
	}

	for _, p := range it.Record.Steps {
		tc.Steps.Steps = append(tc.Steps.Steps, xTestStep{Columns: []xStepColumn{
			{ID: "step", Text: p.Step},
			{ID: "expectedResult", Text: p.Result},
		}})
	}

	for _, name := range it.Record.Names() {
		if _, skip := wellKnownFields[name]; skip {
			continue
		}
		value, _ := it.Record.Value(name)
		tc.CustomFields.Fields = append(tc.CustomFields.Fields, xCustomField{ID: name, Content: value})
	}

	if req, ok := it.Record.Value("requirement"); ok {
		tc.WorkItems.Items = append(tc.WorkItems.Items, xWorkItem{
			WorkItemID:   req,
			RoleID:       "verifies",
			LookupMethod: "name",
		})
	}

	return tc
}

func testcaseID(it Item) string {
	if v, ok := it.Record.Value("id"); ok {
		return v
	}
	return it.Test.ID
}

// testcaseDescription wraps the docstring (plus any extra data contributed
// by other collaborators) in a preformatted block.
func testcaseDescription(it Item) string {
	var b strings.Builder

	extras := make([]string, 0, len(it.Test.Extra))
	for name := range it.Test.Extra {
		extras = append(extras, name)
	}
	sort.Strings(extras)
	for _, name := range extras {
		data := it.Test.Extra[name]
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, data[k])
		}
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(it.Test.Docstring)

	return "<pre>" + b.String() + "</pre>"
}

// Testrun writes the xunit-style testrun import document. It is a no-op in
// collect mode because there are no results to report.
type Testrun struct {
	Path    string
	Options PolarionOptions
}

type xTestsuites struct {
	XMLName    xml.Name    `xml:"testsuites"`
	Properties xProperties `xml:"properties"`
	Suite      xTestsuite  `xml:"testsuite"`
}

type xTestsuite struct {
	Errors    int            `xml:"errors,attr"`
	Failures  int            `xml:"failures,attr"`
	Skipped   int            `xml:"skipped,attr"`
	Tests     int            `xml:"tests,attr"`
	Time      string         `xml:"time,attr"`
	Testcases []xRunTestcase `xml:"testcase"`
}

type xRunTestcase struct {
	File       string      `xml:"file,attr"`
	Line       int         `xml:"line,attr"`
	Name       string      `xml:"name,attr"`
	Classname  string      `xml:"classname,attr,omitempty"`
	Time       string      `xml:"time,attr"`
	SystemOut  *xText      `xml:"system-out,omitempty"`
	SystemErr  *xText      `xml:"system-err,omitempty"`
	SkippedEl  *xOutcome   `xml:"skipped,omitempty"`
	FailureEl  *xOutcome   `xml:"failure,omitempty"`
	ErrorEl    *xOutcome   `xml:"error,omitempty"`
	Properties xProperties `xml:"properties"`
}

type xText struct {
	Text string `xml:",chardata"`
}

type xOutcome struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// Generate implements Generator.
func (g *Testrun) Generate(rep *models.Report, items []Item) error {
	if rep.Mode != models.ModeRun {
		return nil
	}

	props := map[string]any{
		"polarion-create-defects":    g.Options.CreateDefects,
		"polarion-dry-run":           g.Options.DryRun,
		"polarion-include-skipped":   g.Options.IncludeSkipped,
		"polarion-project-id":        g.Options.Project,
		"polarion-testrun-id":        g.Options.TestrunID,
		"polarion-testrun-status-id": "finished",
		"polarion-user-id":           g.Options.User,
		"polarion-lookup-method":     g.Options.LookupMethod,
	}
	if g.Options.LookupMethod == "custom" {
		props["polarion-custom-lookup-method-field-id"] = g.Options.LookupMethodFieldID
	}
	for name, v := range map[string]string{
		"polarion-group-id":            g.Options.TestrunGroupID,
		"polarion-project-span-ids":    g.Options.ProjectSpanIDs,
		"polarion-testrun-template-id": g.Options.TestrunTemplateID,
		"polarion-testrun-title":       g.Options.TestrunTitle,
		"polarion-testrun-type-id":     g.Options.TestrunTypeID,
	} {
		if v != "" {
			props[name] = v
		}
	}
	for k, v := range g.Options.TestrunProperties {
		props[k] = v
	}

	doc := xTestsuites{Properties: sortedProperties(props)}

	var duration float64
	for _, it := range items {
		res := it.Test.Result
		if res == nil {
			return fmt.Errorf("testrun output: result is not available for %s", it.Test.ID)
		}
		duration += res.Duration

		tc := xRunTestcase{
			File:      it.Test.Location.File,
			Line:      it.Test.Location.Line,
			Name:      it.Test.Name,
			Classname: it.Test.Class,
			Time:      formatDuration(res.Duration),
			Properties: xProperties{Property: []xProperty{
				{Name: "polarion-testcase-id", Value: testcaseID(it)},
			}},
		}
		if res.Stdout != "" {
			tc.SystemOut = &xText{Text: res.Stdout}
		}
		if res.Stderr != "" {
			tc.SystemErr = &xText{Text: res.Stderr}
		}
		switch res.Outcome {
		case models.OutcomeSkipped:
			tc.SkippedEl = &xOutcome{Message: res.Summary, Text: res.Message}
			doc.Suite.Skipped++
		case models.OutcomeFailed:
			tc.FailureEl = &xOutcome{Message: res.Summary, Text: res.Message}
			doc.Suite.Failures++
		case models.OutcomeError:
			tc.ErrorEl = &xOutcome{Message: res.Summary, Text: res.Message}
			doc.Suite.Errors++
		}

		doc.Suite.Testcases = append(doc.Suite.Testcases, tc)
	}
	doc.Suite.Tests = len(items)
	doc.Suite.Time = formatDuration(duration)

	if err := writeXML(g.Path, &doc); err != nil {
		return fmt.Errorf("testrun output: %w", err)
	}
	return nil
}
