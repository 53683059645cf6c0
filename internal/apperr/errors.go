// Package apperr defines the error kinds produced by the record pipeline.
// All of them name the field (and, through TestError, the test) they belong
// to, so failures can be reported per test without halting the run.
package apperr

import "fmt"

// ParseError reports a malformed numbered-list field in a docstring.
type ParseError struct {
	Field  string
	Index  int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("field %q: entry %d: %s", e.Field, e.Index, e.Reason)
}

// MissingFieldError reports a required field that is absent and has no
// configured default.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field %q is missing", e.Field)
}

// ValidationError reports a value that failed its configured validation
// pattern after transformation.
type ValidationError struct {
	Field   string
	Pattern string
	Value   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: value %q did not validate with %q", e.Field, e.Value, e.Pattern)
}

// StepMismatchError reports a step index present in one of the
// steps/expectedresults sequences but not the other.
type StepMismatchError struct {
	Index       int
	MissingFrom string
}

func (e *StepMismatchError) Error() string {
	return fmt.Sprintf("step index %d has no %s entry", e.Index, e.MissingFrom)
}

// TestError attributes a pipeline error to a single test.
type TestError struct {
	TestID string
	Err    error
}

func (e *TestError) Error() string {
	return fmt.Sprintf("%s: %v", e.TestID, e.Err)
}

func (e *TestError) Unwrap() error {
	return e.Err
}
