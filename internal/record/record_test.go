package record

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"caseport/internal/apperr"
	"caseport/internal/fields"
	"caseport/internal/models"
)

const rulesYAML = `
required:
  title:
    transform:
      unless: "Testcase: .*"
      pattern: "^(.*)$"
      replace: "Testcase: $1"
    validate: "Testcase: (.+)"
  id:
    default: "tc::{{ item.id }}"
optional:
  steps:
  expectedresults:
  requirement:
  automation_script:
    default: "{{ tests_url }}/{{ item.location.file }}#L{{ item.location.line }}"
`

func testAssembler(t *testing.T) *Assembler {
	t.Helper()
	var rs fields.RuleSet
	if err := yaml.Unmarshal([]byte(rulesYAML), &rs); err != nil {
		t.Fatalf("unmarshal rules: %v", err)
	}
	if err := rs.Compile(); err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	return NewAssembler(&rs, "http://tests.test")
}

func testItem(doc string) *models.TestItem {
	return &models.TestItem{
		ID:        "tests/test_login.py::test_login",
		Name:      "test_login",
		Docstring: doc,
		Location:  models.Location{File: "tests/test_login.py", Line: 12, Name: "test_login"},
	}
}

func TestAssemble_FullRecord(t *testing.T) {
	a := testAssembler(t)
	doc := `
:title: Login test
:requirement: REQ-7
:steps:
    1. Open the login page
    2. Submit valid credentials
:expectedresults:
    1. Form is shown
    2. User lands on the dashboard
`
	rec, err := a.Assemble(testItem(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := rec.Value("title"); got != "Testcase: Login test" {
		t.Errorf("title = %q", got)
	}
	if got, _ := rec.Value("id"); got != "tc::tests/test_login.py::test_login" {
		t.Errorf("id = %q", got)
	}
	if got, _ := rec.Value("requirement"); got != "REQ-7" {
		t.Errorf("requirement = %q", got)
	}
	if got, _ := rec.Value("automation_script"); got != "http://tests.test/tests/test_login.py#L12" {
		t.Errorf("automation_script = %q", got)
	}
	if len(rec.Steps) != 2 || rec.Steps[1].Step != "Submit valid credentials" ||
		rec.Steps[1].Result != "User lands on the dashboard" {
		t.Errorf("steps = %+v", rec.Steps)
	}

	names := rec.Names()
	want := []string{"title", "id", "requirement", "automation_script"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestAssemble_MissingRequiredField(t *testing.T) {
	a := testAssembler(t)
	_, err := a.Assemble(testItem(":requirement: REQ-7\n"))

	var merr *apperr.MissingFieldError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if merr.Field != "title" {
		t.Errorf("field = %q, want title", merr.Field)
	}
	var terr *apperr.TestError
	if !errors.As(err, &terr) || terr.TestID != "tests/test_login.py::test_login" {
		t.Errorf("error not attributed to the test: %v", err)
	}
}

func TestAssemble_StepMismatch(t *testing.T) {
	a := testAssembler(t)
	doc := `
:title: T
:steps:
    1. Do A
    2. Do B
:expectedresults:
    1. Expect A
`
	_, err := a.Assemble(testItem(doc))
	var serr *apperr.StepMismatchError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StepMismatchError, got %v", err)
	}
	if serr.Index != 2 || serr.MissingFrom != "expectedresults" {
		t.Errorf("StepMismatchError = %+v", serr)
	}
}

func TestAssemble_ParseErrorPropagates(t *testing.T) {
	a := testAssembler(t)
	_, err := a.Assemble(testItem(":title: T\n:steps:\n    1. A\n    3. C\n"))
	var perr *apperr.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestAssemble_NoMetadataUsesDefaults(t *testing.T) {
	a := testAssembler(t)
	// No markers at all: only required title (no default) should fail.
	_, err := a.Assemble(testItem("plain description"))
	var merr *apperr.MissingFieldError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
}

func TestAssemble_ValidationFailureNamesTest(t *testing.T) {
	a := testAssembler(t)
	// An empty title transforms to "Testcase: " which fails the (.+) rule.
	_, err := a.Assemble(testItem(":title:\n"))
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "title" {
		t.Errorf("field = %q, want title", verr.Field)
	}
}
