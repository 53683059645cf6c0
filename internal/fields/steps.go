package fields

import (
	"caseport/internal/apperr"
	"caseport/internal/meta"
)

// StepPair is one reconciled step with its expected result.
type StepPair struct {
	Index  int
	Step   string
	Result string
}

// Reconcile pairs the steps sequence with the expectedresults sequence.
// Both sequences are already internally contiguous from 1, so the index
// sets are identical exactly when the lengths match; otherwise the first
// missing index and the side lacking it are reported.
func Reconcile(steps, results []meta.NumberedEntry) ([]StepPair, error) {
	switch {
	case len(steps) > len(results):
		return nil, &apperr.StepMismatchError{
			Index:       len(results) + 1,
			MissingFrom: meta.FieldExpectedResults,
		}
	case len(results) > len(steps):
		return nil, &apperr.StepMismatchError{
			Index:       len(steps) + 1,
			MissingFrom: meta.FieldSteps,
		}
	}

	if len(steps) == 0 {
		return nil, nil
	}

	pairs := make([]StepPair, len(steps))
	for i, s := range steps {
		pairs[i] = StepPair{Index: s.Index, Step: s.Text, Result: results[i].Text}
	}
	return pairs, nil
}
