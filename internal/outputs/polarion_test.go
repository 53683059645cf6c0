package outputs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"caseport/internal/fields"
	"caseport/internal/models"
	"caseport/internal/record"
)

const testRules = `
required:
  title:
    transform:
      unless: "Testcase: .*"
      pattern: "^(.*)$"
      replace: "Testcase: $1"
    validate: "Testcase: (.+)"
  id:
    default: "tc::{{ item.name }}"
optional:
  steps:
  expectedresults:
  requirement:
  customerscenario:
`

func testItems(t *testing.T) (*models.Report, []Item) {
	t.Helper()

	var rs fields.RuleSet
	if err := yaml.Unmarshal([]byte(testRules), &rs); err != nil {
		t.Fatalf("unmarshal rules: %v", err)
	}
	if err := rs.Compile(); err != nil {
		t.Fatalf("compile rules: %v", err)
	}
	asm := record.NewAssembler(&rs, "http://tests.test")

	doc := `
:title: Login works
:requirement: REQ-1
:customerscenario: True
:steps:
    1. Log in
:expectedresults:
    1. Dashboard is shown
`
	rep := &models.Report{
		Mode: models.ModeRun,
		Items: []models.TestItem{
			{
				ID:        "tests/test_login.py::test_login",
				Name:      "test_login",
				Class:     "TestLogin",
				Location:  models.Location{File: "tests/test_login.py", Line: 10, Name: "test_login"},
				Docstring: doc,
				Result:    &models.Result{Outcome: models.OutcomePassed, Duration: 1.5, Stdout: "out"},
			},
			{
				ID:        "tests/test_login.py::test_logout",
				Name:      "test_logout",
				Location:  models.Location{File: "tests/test_login.py", Line: 30, Name: "test_logout"},
				Docstring: ":title: Logout works\n",
				Result:    &models.Result{Outcome: models.OutcomeFailed, Duration: 0.5, Summary: "assertion failed", Message: "boom"},
			},
		},
	}

	var items []Item
	for i := range rep.Items {
		rec, err := asm.Assemble(&rep.Items[i])
		if err != nil {
			t.Fatalf("assemble %s: %v", rep.Items[i].ID, err)
		}
		items = append(items, Item{Test: &rep.Items[i], Record: rec})
	}
	return rep, items
}

func testOptions() PolarionOptions {
	return PolarionOptions{
		Project:             "MYPROJ",
		User:                "importer",
		LookupMethod:        "custom",
		LookupMethodFieldID: "testCaseID",
		IncludeSkipped:      true,
		TestrunID:           "test-run-1",
	}
}

func TestTestcases_Generate(t *testing.T) {
	rep, items := testItems(t)
	path := filepath.Join(t.TempDir(), "testcase.xml")

	g := &Testcases{Path: path, Options: testOptions()}
	if err := g.Generate(rep, items); err != nil {
		t.Fatalf("generate: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		`<testcases project-id="MYPROJ">`,
		`<property name="dry-run" value="false">`,
		`<property name="lookup-method" value="custom">`,
		`<property name="polarion-custom-lookup-method-field-id" value="testCaseID">`,
		`id="tc::test_login"`,
		`status-id="approved"`,
		`<title>Testcase: Login works</title>`,
		`<test-step-column id="step">Log in</test-step-column>`,
		`<test-step-column id="expectedResult">Dashboard is shown</test-step-column>`,
		`<custom-field id="customerscenario" content="true">`,
		`workitem-id="REQ-1"`,
		`role-id="verifies"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("testcase xml missing %q\n%s", want, out)
		}
	}

	// Well-known fields never show up as custom fields.
	for _, miss := range []string{`custom-field id="id"`, `custom-field id="title"`, `custom-field id="requirement"`} {
		if strings.Contains(out, miss) {
			t.Errorf("testcase xml should not contain %q", miss)
		}
	}
}

func TestTestrun_Generate(t *testing.T) {
	rep, items := testItems(t)
	path := filepath.Join(t.TempDir(), "testrun.xml")

	g := &Testrun{Path: path, Options: testOptions()}
	if err := g.Generate(rep, items); err != nil {
		t.Fatalf("generate: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		`<property name="polarion-project-id" value="MYPROJ">`,
		`<property name="polarion-testrun-id" value="test-run-1">`,
		`<property name="polarion-testrun-status-id" value="finished">`,
		`<property name="polarion-user-id" value="importer">`,
		`errors="0" failures="1" skipped="0" tests="2" time="2"`,
		`classname="TestLogin"`,
		`<system-out>out</system-out>`,
		`<failure message="assertion failed">boom</failure>`,
		`<property name="polarion-testcase-id" value="tc::test_login">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("testrun xml missing %q\n%s", want, out)
		}
	}
}

func TestTestrun_CollectModeIsNoop(t *testing.T) {
	rep, items := testItems(t)
	rep.Mode = models.ModeCollect
	path := filepath.Join(t.TempDir(), "testrun.xml")

	g := &Testrun{Path: path, Options: testOptions()}
	if err := g.Generate(rep, items); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("collect mode should not write a testrun document")
	}
}
