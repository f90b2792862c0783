package feed

import (
	"sort"
)

const (
	inspectSampleRecords = 3
	inspectSampleLen     = 100
)

// FieldSample holds the truncated field values of one sampled record.
type FieldSample map[string]string

// InspectReport describes the fields a feed actually publishes, with a few
// sample records. Operators use it to author mapping rules.
type InspectReport struct {
	FieldNames []string      `json:"field_names"`
	Samples    []FieldSample `json:"samples"`
}

// Inspector reads just enough of a feed to report its field structure.
type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

// Run extracts the first few records from body and collects the union of
// their field names plus truncated sample values.
func (i *Inspector) Run(body *FeedBody, recordTag string) (*InspectReport, error) {
	report := &InspectReport{
		FieldNames: []string{},
		Samples:    []FieldSample{},
	}
	seen := map[string]bool{}

	extractor := NewExtractor(recordTag)
	err := extractor.Run(body.Reader, body.IsGzip, func(record RawRecord) bool {
		sample := FieldSample{}
		for field, value := range record {
			if !seen[field] {
				seen[field] = true
				report.FieldNames = append(report.FieldNames, field)
			}
			sample[field] = truncate(value, inspectSampleLen)
		}
		report.Samples = append(report.Samples, sample)
		return len(report.Samples) < inspectSampleRecords
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(report.FieldNames)
	return report, nil
}
