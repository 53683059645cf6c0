// Package report loads the collected test report handed over by the
// test-collection collaborator.
package report

import (
	"encoding/json"
	"fmt"
	"os"

	"caseport/internal/models"
)

// Load reads and validates a JSON report file.
func Load(path string) (*models.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a JSON report.
func Parse(data []byte) (*models.Report, error) {
	var rep models.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("report: parse: %w", err)
	}
	if rep.Mode == "" {
		rep.Mode = models.ModeRun
	}
	if rep.Mode != models.ModeRun && rep.Mode != models.ModeCollect {
		return nil, fmt.Errorf("report: unknown mode %q", rep.Mode)
	}
	for i, item := range rep.Items {
		if item.ID == "" {
			return nil, fmt.Errorf("report: item %d has no id", i)
		}
		if rep.Mode == models.ModeRun && item.Result == nil {
			return nil, fmt.Errorf("report: result is not available for %s", item.ID)
		}
	}
	return &rep, nil
}
