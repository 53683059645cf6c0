// Package outputs renders assembled records into external documents: a YAML
// data file and Polarion-importer testcase/testrun XML.
package outputs

import (
	"caseport/internal/models"
	"caseport/internal/record"
)

// Item pairs a collected test with its assembled record.
type Item struct {
	Test   *models.TestItem
	Record *record.Record
}

// Generator renders one output document from the report and the assembled
// records.
type Generator interface {
	Generate(rep *models.Report, items []Item) error
}
