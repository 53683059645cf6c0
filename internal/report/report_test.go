package report

import (
	"os"
	"path/filepath"
	"testing"

	"caseport/internal/models"
)

const sample = `{
  "mode": "run",
  "items": [
    {
      "id": "tests/test_a.py::test_a",
      "name": "test_a",
      "location": {"file": "tests/test_a.py", "line": 3, "name": "test_a"},
      "docstring": ":title: A\n",
      "result": {"outcome": "passed", "duration": 0.25}
    }
  ]
}`

func TestParse(t *testing.T) {
	rep, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Mode != models.ModeRun {
		t.Errorf("mode = %q", rep.Mode)
	}
	if len(rep.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(rep.Items))
	}
	item := rep.Items[0]
	if item.Location.Line != 3 || item.Result.Outcome != models.OutcomePassed {
		t.Errorf("item = %+v", item)
	}
}

func TestParse_DefaultsToRunMode(t *testing.T) {
	_, err := Parse([]byte(`{"items": [{"id": "t", "name": "t"}]}`))
	if err == nil {
		t.Error("run-mode items without results should be rejected")
	}
}

func TestParse_CollectModeNeedsNoResults(t *testing.T) {
	rep, err := Parse([]byte(`{"mode": "collect", "items": [{"id": "t", "name": "t"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Mode != models.ModeCollect {
		t.Errorf("mode = %q", rep.Mode)
	}
}

func TestParse_UnknownMode(t *testing.T) {
	if _, err := Parse([]byte(`{"mode": "replay", "items": []}`)); err == nil {
		t.Error("expected unknown mode to be rejected")
	}
}

func TestParse_MissingID(t *testing.T) {
	if _, err := Parse([]byte(`{"mode": "collect", "items": [{"name": "t"}]}`)); err == nil {
		t.Error("expected missing id to be rejected")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	rep, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rep.Items) != 1 {
		t.Errorf("len(items) = %d", len(rep.Items))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
