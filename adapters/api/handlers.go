package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"phonostat/adapters/report"
	"phonostat/app"
	"phonostat/domain/core"
	"phonostat/domain/entity"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// analyzeRequest is the wire form of one batch run. Entities ride inline;
// callers with file-based data use the CLI instead.
type analyzeRequest struct {
	Domain     string          `json:"domain"`
	Seed       int64           `json:"seed"`
	Correction string          `json:"correction_method,omitempty"`
	Alpha      float64         `json:"alpha,omitempty"`
	Entities   []entityRecord  `json:"entities"`
	Specs      []spec.TestSpec `json:"specs"`
}

type entityRecord struct {
	ID         string                 `json:"id,omitempty"`
	Name       string                 `json:"name"`
	Outcomes   map[string]*float64    `json:"outcomes,omitempty"`
	Covariates map[string]interface{} `json:"covariates,omitempty"`
}

type extractRequest struct {
	Names []string `json:"names"`
}

type metaRequest struct {
	FeatureName string                        `json:"feature_name"`
	CILevel     float64                       `json:"ci_level,omitempty"`
	Effects     []result.DomainEffect         `json:"effects"`
	Moderators  []string                      `json:"moderators,omitempty"`
	Covariates  map[string]map[string]float64 `json:"domain_covariates,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	domain, err := core.ParseDomainKey(req.Domain)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entities := make([]entity.NamedEntity, 0, len(req.Entities))
	for i, rec := range req.Entities {
		e, err := entity.New(core.EntityID(rec.ID), rec.Name, domain, rec.Outcomes, rec.Covariates)
		if err != nil {
			s.logger.Warn("entity %d rejected: %v", i, err)
			continue
		}
		entities = append(entities, e)
	}
	if len(entities) == 0 {
		writeError(w, http.StatusBadRequest, "no valid entities in request")
		return
	}

	res, err := s.service.Run(r.Context(), app.AnalysisRequest{
		Domain:     domain,
		Entities:   entities,
		Specs:      req.Specs,
		Correction: spec.CorrectionMethod(req.Correction),
		Alpha:      req.Alpha,
		Seed:       req.Seed,
	})
	if err != nil {
		if badRequest(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("analysis failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	doc := report.Document{
		RunID:   res.RunID.String(),
		Build:   report.FromBuildReport(*res.Build),
		Batches: []report.BatchReport{report.FromBatch(res.Batch)},
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Names) == 0 {
		writeError(w, http.StatusBadRequest, "names must be non-empty")
		return
	}

	vectors := make([]interface{}, len(req.Names))
	for i, name := range req.Names {
		vectors[i] = s.service.Extract(name)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"extractor_version": s.service.ExtractorVersion(),
		"vectors":           vectors,
	})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	var req metaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	covariates := make(map[core.DomainKey]map[string]float64, len(req.Covariates))
	for k, v := range req.Covariates {
		covariates[core.DomainKey(k)] = v
	}

	rec, err := s.service.MetaAnalyze(r.Context(), app.MetaRequest{
		FeatureName: req.FeatureName,
		Effects:     req.Effects,
		CILevel:     req.CILevel,
		Moderators:  req.Moderators,
		Covariates:  covariates,
	})
	if err != nil {
		if badRequest(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("meta-analysis failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report.FromMeta(*rec))
}

// badRequest classifies caller mistakes: malformed specs, unknown test kinds
// or correction methods, and references to columns the dataset does not have
func badRequest(err error) bool {
	return core.IsConfigError(err) || errors.Is(err, core.ErrColumnNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
