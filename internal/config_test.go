package internal

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Project != "not-set" || cfg.User != "not-set" {
		t.Errorf("project/user defaults = %q/%q", cfg.Project, cfg.User)
	}
	if !cfg.Testrun.SkippedIncluded() {
		t.Error("include_skipped should default to true")
	}
	if cfg.Testrun.LookupMethod != LookupMethodCustom {
		t.Errorf("lookup_method default = %q", cfg.Testrun.LookupMethod)
	}
}

func TestConfig_UnmarshalAndValidate(t *testing.T) {
	src := `
project: MYPROJ
user: importer
tests_url: https://git.example.test/tests
testcase:
  properties:
    approver-ids: approver:approved
  required:
    title:
      transform:
        unless: "Testcase: .*"
        pattern: "^(.*)$"
        replace: "Testcase: $1"
      validate: "Testcase: (.+)"
  optional:
    requirement:
testrun:
  id: nightly-{now}
  dry_run: true
  properties:
    custom: value
`
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal([]byte(src), cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Project != "MYPROJ" {
		t.Errorf("project = %q", cfg.Project)
	}
	if len(cfg.Testcase.Rules.Required) != 1 || cfg.Testcase.Rules.Required[0].Name != "title" {
		t.Errorf("required rules = %+v", cfg.Testcase.Rules.Required)
	}
	if !cfg.Testrun.DryRun {
		t.Error("dry_run not decoded")
	}
}

func TestConfig_RejectsBadLookupMethod(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Testrun.LookupMethod = "name"
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid lookup_method to be rejected")
	}
}

func TestConfig_RejectsInvalidFieldPattern(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal([]byte("testcase:\n  required:\n    id:\n      validate: '('\n"), cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid pattern to fail validation")
	}
}

func TestTestrunConfig_SanitizedID(t *testing.T) {
	c := TestrunConfig{ID: "ci: build/{now}"}
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	got := c.SanitizedID(now)
	if strings.ContainsAny(got, `\/.:"<>|`) {
		t.Errorf("sanitized id still contains forbidden characters: %q", got)
	}
	if !strings.Contains(got, strconv.FormatInt(now.Unix(), 10)) {
		t.Errorf("sanitized id = %q, want {now} substituted", got)
	}
	if strings.Contains(got, "{now}") {
		t.Errorf("sanitized id = %q, {now} not substituted", got)
	}
}
