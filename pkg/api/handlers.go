package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/archive"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/engine"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/project"
	"github.com/stvn101/carbonconstruct-scope-lca/pkg/store"
)

// Response headers set by the evaluation endpoint.
const (
	HeaderInputDigest    = "X-Input-Digest"
	HeaderArchiveAddress = "X-Archive-Address"
	HeaderCache          = "X-Cache"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type healthResponse struct {
	Status       string `json:"status"`
	RulesVersion string `json:"rules_version"`
	RulesDigest  string `json:"rules_digest"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	cat := s.Engine().Catalogue()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", RulesVersion: cat.Version, RulesDigest: cat.Digest()})
}

type ruleView struct {
	ID          string   `json:"rule_id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Standards   []string `json:"standards,omitempty"`
	Enabled     bool     `json:"enabled"`
	Implemented bool     `json:"implemented"`
	AppliesWhen string   `json:"applies_when,omitempty"`
}

type rulesResponse struct {
	Version      string     `json:"version"`
	Digest       string     `json:"digest"`
	Timezone     string     `json:"timezone,omitempty"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	Rules        []ruleView `json:"rules"`
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	e := s.Engine()
	cat := e.Catalogue()
	missing := make(map[string]bool)
	for _, id := range e.Unimplemented() {
		missing[id] = true
	}

	resp := rulesResponse{
		Version:      cat.Version,
		Digest:       cat.Digest(),
		Timezone:     cat.Settings.Timezone,
		Jurisdiction: cat.Settings.Jurisdiction,
		Rules:        make([]ruleView, 0, len(cat.Rules)),
	}
	for _, r := range cat.Rules {
		resp.Rules = append(resp.Rules, ruleView{
			ID:          r.ID,
			Name:        r.Name,
			Category:    r.Category,
			Standards:   r.Standards,
			Enabled:     r.IsEnabled(),
			Implemented: r.IsEnabled() && !missing[r.ID],
			AppliesWhen: r.AppliesWhen,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvaluate evaluates the project record in the body. The optional
// "date" query parameter (YYYY-MM-DD) overrides the catalogue's today.
//
// A cache hit returns the cached report with 200. A fresh evaluation is
// stored, archived and published when those backends are configured, and
// returned with 201.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	e := s.Engine()
	ctx := r.Context()

	date := e.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := project.ParseDate(raw)
		if err != nil {
			WriteBadRequest(w, r, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	p, err := project.Decode(http.MaxBytesReader(w, r.Body, maxProjectBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			WriteError(w, r, http.StatusRequestEntityTooLarge, "Payload Too Large", "project record exceeds "+strconv.Itoa(maxProjectBytes)+" bytes")
		case errors.Is(err, project.ErrInvalid):
			WriteUnprocessable(w, r, err.Error())
		default:
			WriteBadRequest(w, r, err.Error())
		}
		return
	}

	digest, err := e.InputDigest(p, date)
	if err != nil {
		WriteInternal(w, r, s.logger, err)
		return
	}
	w.Header().Set(HeaderInputDigest, digest)

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, digest)
		if err != nil {
			s.logger.Warn("report cache lookup failed", "error", err)
		}
		s.metrics.observeCache(hit)
		if hit {
			w.Header().Set(HeaderCache, "HIT")
			w.Header().Set("Location", "/v1/reports/"+cached.ID.String())
			writeJSON(w, http.StatusOK, cached)
			return
		}
		w.Header().Set(HeaderCache, "MISS")
	}

	start := time.Now()
	report, err := e.Evaluate(ctx, p, engine.OnDate(date))
	if err != nil {
		WriteInternal(w, r, s.logger, err)
		return
	}
	s.metrics.observeEvaluation(report, time.Since(start))

	if s.store != nil {
		if err := s.store.Save(ctx, report); err != nil {
			WriteInternal(w, r, s.logger, err)
			return
		}
	}

	var address string
	if s.archive != nil {
		if address, err = archive.Report(ctx, s.archive, report); err != nil {
			s.logger.Warn("report archive failed", "report_id", report.ID, "error", err)
		} else {
			w.Header().Set(HeaderArchiveAddress, address)
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, digest, report); err != nil {
			s.logger.Warn("report cache store failed", "report_id", report.ID, "error", err)
		}
	}
	if err := s.publisher.ReportCompleted(ctx, report, address); err != nil {
		s.logger.Warn("report publish failed", "report_id", report.ID, "error", err)
	}

	w.Header().Set("Location", "/v1/reports/"+report.ID.String())
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		WriteUnavailable(w, r, "report store is not configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reportID"))
	if err != nil {
		WriteBadRequest(w, r, "report id must be a UUID")
		return
	}
	report, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteNotFound(w, r, "report "+id.String()+" not found")
		return
	}
	if err != nil {
		WriteInternal(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type listResponse struct {
	ProjectID uuid.UUID     `json:"project_id"`
	Reports   []store.Entry `json:"reports"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		WriteUnavailable(w, r, "report store is not configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		WriteBadRequest(w, r, "project id must be a UUID")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 || limit > 500 {
			WriteBadRequest(w, r, "limit must be between 1 and 500")
			return
		}
	}
	entries, err := s.store.ListByProject(r.Context(), id, limit)
	if err != nil {
		WriteInternal(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{ProjectID: id, Reports: entries})
}

