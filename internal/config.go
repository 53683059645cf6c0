// Package internal provides the caseport pipeline initialization and
// runtime logic.
package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"caseport/internal/fields"
)

// Lookup methods understood by the Polarion importer.
const (
	LookupMethodID     = "id"
	LookupMethodCustom = "custom"
)

// Config represents the caseport configuration document.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Project  string         `yaml:"project"`
	User     string         `yaml:"user"`
	TestsURL string         `yaml:"tests_url"`
	Testcase TestcaseConfig `yaml:"testcase"`
	Testrun  TestrunConfig  `yaml:"testrun"`
}

// Validate validates the configuration and compiles the field rule set.
// After a successful Validate the rule set is read-only.
func (c *Config) Validate() error {
	if err := c.Testrun.Validate(); err != nil {
		return err
	}
	if err := c.Testcase.Rules.Compile(); err != nil {
		return fmt.Errorf("testcase fields: %w", err)
	}
	return nil
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// TestcaseConfig holds the testcase import document configuration: custom
// importer properties and the field rule set.
type TestcaseConfig struct {
	Properties map[string]any `yaml:"properties"`
	Rules      fields.RuleSet `yaml:",inline"`
}

// TestrunConfig holds the testrun import document configuration.
type TestrunConfig struct {
	Properties     map[string]any `yaml:"properties"`
	ID             string         `yaml:"id"`
	Title          string         `yaml:"title"`
	TemplateID     string         `yaml:"template_id"`
	TypeID         string         `yaml:"type_id"`
	GroupID        string         `yaml:"group_id"`
	ProjectSpanIDs string         `yaml:"project_span_ids"`
	CreateDefects  bool           `yaml:"create_defects"`
	DryRun         bool           `yaml:"dry_run"`
	IncludeSkipped *bool          `yaml:"include_skipped"`

	LookupMethod        string `yaml:"lookup_method"`
	LookupMethodFieldID string `yaml:"lookup_method_field_id"`
}

// Validate validates the testrun configuration.
func (c *TestrunConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.LookupMethod, validation.Required, validation.In(LookupMethodID, LookupMethodCustom)),
		validation.Field(&c.LookupMethodFieldID, validation.Required),
	)
}

// SkippedIncluded reports whether the importer should include skipped tests.
func (c *TestrunConfig) SkippedIncluded() bool {
	if c.IncludeSkipped == nil {
		return true
	}
	return *c.IncludeSkipped
}

// The importer rejects testrun ids containing these characters.
var testrunIDForbidden = regexp.MustCompile("[\\\\/.:\"<>|~!@#$?%^&'*()+`,=]")

// SanitizedID substitutes "{now}" with the given time and strips characters
// the importer does not accept.
func (c *TestrunConfig) SanitizedID(now time.Time) string {
	id := strings.ReplaceAll(c.ID, "{now}", strconv.FormatInt(now.Unix(), 10))
	return testrunIDForbidden.ReplaceAllString(id, "")
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: slog.LevelInfo,
		},
		Project: "not-set",
		User:    "not-set",
		Testrun: TestrunConfig{
			ID:                  "test-run-{now}",
			LookupMethod:        LookupMethodCustom,
			LookupMethodFieldID: "testCaseID",
		},
	}
}
