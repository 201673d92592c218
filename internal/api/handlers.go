package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nerisbridge/internal/report"
	"nerisbridge/internal/submit"
)

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req submit.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	outcome, err := s.orch.Validate(r.Context(), req)
	if err != nil {
		s.writeSubmissionError(w, err)
		return
	}
	writeJSON(w, outcome.Status, outcome)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req submit.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	outcome, err := s.orch.Export(r.Context(), req)
	if err != nil {
		s.writeSubmissionError(w, err)
		return
	}
	writeJSON(w, outcome.Status, outcome)
}

// writeSubmissionError maps local validation failures to 400 and everything
// else (token/config/transport) to 502.
func (s *Server) writeSubmissionError(w http.ResponseWriter, err error) {
	var buildErr *report.BuildError
	if errors.As(err, &buildErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": buildErr.Error()})
		return
	}
	s.log.Printf("submission failed: %v", err)
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
}

func (s *Server) handleGetDepartment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dept, err := s.store.GetDepartment(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown department"})
			return
		}
		s.log.Printf("department read error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "department read failed"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(dept.Details))
}

// handlePutDepartment stores the body verbatim as the department's details
// document. The proxy does not interpret it.
func (s *Server) handlePutDepartment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var details json.RawMessage
	if err := decodeJSON(w, r, &details); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.store.UpsertDepartment(r.Context(), id, string(details)); err != nil {
		s.log.Printf("department write error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "department write failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	result, err := s.orch.ListEntities(r.Context())
	if err != nil {
		s.writeSubmissionError(w, err)
		return
	}
	writeJSON(w, result.StatusCode, result.Body)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entity")
	incidentID := r.URL.Query().Get("id")
	if !report.ValidEntityID(entityID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entity query parameter must be a valid entity id"})
		return
	}
	if incidentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id query parameter is required"})
		return
	}
	result, err := s.orch.GetIncident(r.Context(), entityID, incidentID)
	if err != nil {
		s.writeSubmissionError(w, err)
		return
	}
	writeJSON(w, result.StatusCode, result.Body)
}
