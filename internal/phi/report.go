package phi

import (
	"sort"

	"redmig/internal/domain"
)

// CoverageReport summarizes where PHI appears in a mapped data set: which
// fields are flagged, how many records carry a value in each, and what share
// of records bear any PHI at all. Only field names and counts appear here,
// never values.
type CoverageReport struct {
	Fields         []string       `json:"phi_fields"`
	FieldCounts    map[string]int `json:"phi_counts"`
	RecordsWithPHI int            `json:"records_with_phi"`
	TotalRecords   int            `json:"total_records"`
	PHIPercentage  float64        `json:"phi_percentage"`
}

// Coverage builds a CoverageReport over the candidates of a run.
func Coverage(records []*domain.CandidateRecord) CoverageReport {
	report := CoverageReport{FieldCounts: make(map[string]int)}
	fieldSet := make(map[string]struct{})

	for _, rec := range records {
		hasPHI := false
		for _, field := range rec.PHIFields() {
			fieldSet[field] = struct{}{}
			if v, ok := rec.Get(field); ok && v != "" {
				report.FieldCounts[field]++
				hasPHI = true
			}
		}
		if hasPHI {
			report.RecordsWithPHI++
		}
	}

	report.TotalRecords = len(records)
	for field := range fieldSet {
		report.Fields = append(report.Fields, field)
	}
	sort.Strings(report.Fields)
	if report.TotalRecords > 0 {
		report.PHIPercentage = float64(report.RecordsWithPHI) / float64(report.TotalRecords) * 100
	}
	return report
}
