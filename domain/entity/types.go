package entity

import (
	"strings"

	"phonostat/domain/core"
)

// NamedEntity is an immutable ingestion record: one named thing in one domain
// plus its outcome metrics and covariates. Updates replace the record; nothing
// mutates it after construction.
type NamedEntity struct {
	ID         core.EntityID          `json:"id"`
	RawName    string                 `json:"raw_name"`
	Domain     core.DomainKey         `json:"domain"`
	Outcomes   map[string]*float64    `json:"outcomes"`
	Covariates map[string]interface{} `json:"covariates,omitempty"`
}

// New validates and constructs a NamedEntity. Malformed records are rejected
// here, at the ingestion boundary, so the pure extractor never sees them.
func New(id core.EntityID, rawName string, domain core.DomainKey, outcomes map[string]*float64, covariates map[string]interface{}) (NamedEntity, error) {
	if strings.TrimSpace(rawName) == "" {
		return NamedEntity{}, core.ErrEmptyName
	}
	if strings.TrimSpace(string(domain)) == "" {
		return NamedEntity{}, core.ErrEmptyDomain
	}
	if id.String() == "" {
		id = core.EntityID(core.NewID())
	}
	if outcomes == nil {
		outcomes = map[string]*float64{}
	}

	return NamedEntity{
		ID:         id,
		RawName:    rawName,
		Domain:     domain,
		Outcomes:   outcomes,
		Covariates: covariates,
	}, nil
}

// Outcome returns the named outcome value, or false when missing/null.
func (e NamedEntity) Outcome(name string) (float64, bool) {
	v, ok := e.Outcomes[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// OutcomeNames returns the outcome metric names present on this entity.
func (e NamedEntity) OutcomeNames() []string {
	names := make([]string, 0, len(e.Outcomes))
	for name := range e.Outcomes {
		names = append(names, name)
	}
	return names
}
