package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/riskfeed/pkg/query"
	"github.com/cuemby/riskfeed/pkg/scheduler"
	"github.com/cuemby/riskfeed/pkg/types"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 4 * 1024

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
}

// UpdateCaseRequest is the body of PATCH /api/cases/{id}
type UpdateCaseRequest struct {
	Status types.CaseStatus `json:"status"`
}

// RunResponse reports the records produced by POST /api/feed/run
type RunResponse struct {
	Transaction *types.Transaction `json:"transaction"`
	Alert       *types.Alert       `json:"alert"`
	Case        *types.Case        `json:"case"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.query.Metrics()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.query.ListAlerts(r.URL.Query().Get("limit"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.query.ListCases()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	detail, err := s.query.GetCase(chi.URLParam(r, "id"))
	if errors.Is(err, query.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Case not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	var req UpdateCaseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := s.query.UpdateCaseStatus(chi.URLParam(r, "id"), req.Status)
	switch {
	case errors.Is(err, query.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid case status")
		return
	case errors.Is(err, query.ErrNotFound):
		writeError(w, http.StatusNotFound, "Case not found")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	s.logger.Info().Str("case_id", c.ID).Str("status", string(c.Status)).Msg("Case status updated")
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.query.ListTransactions(r.URL.Query().Get("limit"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleFeedStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Status())
}

func (s *Server) handleFeedPause(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Pause())
}

func (s *Server) handleFeedResume(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Resume())
}

func (s *Server) handleFeedRun(w http.ResponseWriter, r *http.Request) {
	result, err := s.feed.RunOnce()
	if errors.Is(err, scheduler.ErrPaused) {
		writeError(w, http.StatusConflict, "Feed is paused")
		return
	}
	// A failed broadcast still returns the persisted records
	if result == nil {
		if err == nil {
			err = errors.New("cycle produced no result")
		}
		s.internalError(w, r, err)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Manual cycle completed with errors")
	}
	writeJSON(w, http.StatusOK, RunResponse{
		Transaction: result.Transaction,
		Alert:       result.Alert,
		Case:        result.Case,
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
