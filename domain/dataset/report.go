package dataset

import (
	"phonostat/domain/core"
)

// Exclusion reason codes reported by the builder. Rows are never silently
// dropped; every exclusion is counted under one of these.
const (
	ExclusionDegenerateName = "degenerate_name"
	ExclusionDuplicateID    = "duplicate_id"
)

// BuildReport is the builder's audit record for one table construction. It
// reports prospective sample sizes per column but enforces nothing; minimum-n
// gating belongs to the test battery.
type BuildReport struct {
	Domain        core.DomainKey          `json:"domain"`
	TotalEntities int                     `json:"total_entities"`
	IncludedRows  int                     `json:"included_rows"`
	Exclusions    map[string]int          `json:"exclusions"`
	ExcludedIDs   []core.EntityID         `json:"excluded_ids,omitempty"`
	CandidateN    map[core.ColumnKey]int  `json:"candidate_n"`
	OutlierFlags  map[core.ColumnKey]int  `json:"outlier_flags"`
	CreatedAt     core.Timestamp          `json:"created_at"`
}

// NewBuildReport creates an empty build report for a domain
func NewBuildReport(domain core.DomainKey) *BuildReport {
	return &BuildReport{
		Domain:       domain,
		Exclusions:   make(map[string]int),
		CandidateN:   make(map[core.ColumnKey]int),
		OutlierFlags: make(map[core.ColumnKey]int),
		CreatedAt:    core.Now(),
	}
}

// Exclude records one excluded entity under a reason code
func (r *BuildReport) Exclude(id core.EntityID, reason string) {
	r.Exclusions[reason]++
	r.ExcludedIDs = append(r.ExcludedIDs, id)
}

// ExcludedCount returns the total number of excluded entities
func (r *BuildReport) ExcludedCount() int {
	total := 0
	for _, n := range r.Exclusions {
		total += n
	}
	return total
}
