package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/quillview/litsynth/internal/domain"
	litemporal "github.com/quillview/litsynth/internal/temporal"
)

// startRunResponse is returned from POST /api/v1/runs.
type startRunResponse struct {
	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// runSummaryResponse is one row in the list endpoint.
type runSummaryResponse struct {
	RunID     string    `json:"run_id"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// listRunsResponse is returned from GET /api/v1/runs.
type listRunsResponse struct {
	Runs  []runSummaryResponse `json:"runs"`
	Count int                  `json:"count"`
}

// cancelRunResponse is returned from DELETE /api/v1/runs/{runID}.
type cancelRunResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// progressResponse is returned from GET /api/v1/runs/{runID}/progress.
type progressResponse struct {
	Status        string `json:"status"`
	Stage         string `json:"stage"`
	PapersFound   int    `json:"papers_found"`
	RevisionCount int    `json:"revision_count"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers already sent; nothing left to do.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError maps domain and temporal errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrRunNotFound), litemporal.IsWorkflowNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case litemporal.IsWorkflowAlreadyStarted(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
