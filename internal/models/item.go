// Package models defines the domain types for caseport.
package models

// Mode says whether the report comes from an executed run or a
// collection-only pass. Testrun documents are only produced in run mode.
type Mode string

// Report modes.
const (
	ModeRun     Mode = "run"
	ModeCollect Mode = "collect"
)

// Outcome is the result of one executed test.
type Outcome string

// Test outcomes.
const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Location points at the source of a test.
type Location struct {
	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`
	Name string `json:"name" yaml:"name"`
}

// Result holds the execution outcome of one test.
type Result struct {
	Outcome  Outcome `json:"outcome" yaml:"outcome"`
	Duration float64 `json:"duration" yaml:"duration"`
	Stdout   string  `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr   string  `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Logs     string  `json:"logs,omitempty" yaml:"logs,omitempty"`
	Summary  string  `json:"summary,omitempty" yaml:"summary,omitempty"`
	Message  string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// TestItem is one collected test as handed over by the collection
// collaborator: identity, source location, documentation string, and
// (in run mode) its result.
type TestItem struct {
	ID        string                       `json:"id" yaml:"id"`
	Name      string                       `json:"name" yaml:"name"`
	Package   string                       `json:"package,omitempty" yaml:"package,omitempty"`
	Class     string                       `json:"class,omitempty" yaml:"class,omitempty"`
	Location  Location                     `json:"location" yaml:"location"`
	Docstring string                       `json:"docstring,omitempty" yaml:"docstring,omitempty"`
	Markers   []string                     `json:"markers,omitempty" yaml:"markers,omitempty"`
	Result    *Result                      `json:"result,omitempty" yaml:"result,omitempty"`
	Extra     map[string]map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Report is the full collected input: a mode and the tests in collection
// order.
type Report struct {
	Mode  Mode       `json:"mode" yaml:"mode"`
	Items []TestItem `json:"items" yaml:"items"`
}
