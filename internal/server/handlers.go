package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	litemporal "github.com/quillview/litsynth/internal/temporal"
)

// Request body limits.
const maxRequestBodySize = 1 << 20

// startRunRequest is the JSON body for starting a synthesis run.
type startRunRequest struct {
	// Query is the research topic to synthesize a review for.
	Query string `json:"query" validate:"required,min=3,max=10000"`
	// ProjectDescription optionally narrows the research context.
	ProjectDescription string `json:"project_description,omitempty" validate:"max=10000"`
	// MaxRevisions optionally overrides the quality-gate revision budget.
	MaxRevisions int `json:"max_revisions,omitempty" validate:"min=0,max=5"`
}

// startRun handles POST /api/v1/runs.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startRunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	input := litemporal.SynthesisWorkflowInput{
		RunID:              uuid.New(),
		Query:              req.Query,
		ProjectDescription: req.ProjectDescription,
		MaxRevisions:       req.MaxRevisions,
	}

	workflowID, _, err := s.workflowClient.StartSynthesisWorkflow(r.Context(), s.workflowFunc, input)
	if err != nil {
		s.logger.Error().Err(err).Str("query", req.Query).Msg("failed to start synthesis workflow")
		writeDomainError(w, err)
		return
	}

	s.logger.Info().
		Str("run_id", input.RunID.String()).
		Str("workflow_id", workflowID).
		Msg("synthesis run started")

	writeJSON(w, http.StatusAccepted, startRunResponse{
		RunID:      input.RunID.String(),
		WorkflowID: workflowID,
		Status:     "pending",
		Message:    "synthesis run started",
	})
}

// listRuns handles GET /api/v1/runs.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	summaries, err := s.runRepo.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := listRunsResponse{
		Runs:  make([]runSummaryResponse, 0, len(summaries)),
		Count: len(summaries),
	}
	for _, sum := range summaries {
		resp.Runs = append(resp.Runs, runSummaryResponse{
			RunID:     sum.RunID.String(),
			Query:     sum.Query,
			Status:    string(sum.Status),
			CreatedAt: sum.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// getRun handles GET /api/v1/runs/{runID}: returns the persisted snapshot.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"))
	if !ok {
		return
	}

	doc, err := s.runRepo.GetSnapshot(r.Context(), runID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// cancelRun handles DELETE /api/v1/runs/{runID}: cancels the running workflow.
func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"))
	if !ok {
		return
	}

	workflowID := fmt.Sprintf("synthesis-%s", runID)
	if err := s.workflowClient.CancelWorkflow(r.Context(), workflowID, ""); err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info().Str("run_id", runID.String()).Msg("synthesis run cancelled")
	writeJSON(w, http.StatusOK, cancelRunResponse{
		Success: true,
		Message: "cancellation requested",
	})
}

// getRunProgress handles GET /api/v1/runs/{runID}/progress: queries the live
// workflow, falling back to the persisted snapshot for finished runs.
func (s *Server) getRunProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseUUID(w, chi.URLParam(r, "runID"))
	if !ok {
		return
	}

	workflowID := fmt.Sprintf("synthesis-%s", runID)
	var progress progressResponse
	err := s.workflowClient.QueryWorkflow(r.Context(), workflowID, "", litemporal.QueryProgress, &progress)
	if err == nil {
		writeJSON(w, http.StatusOK, progress)
		return
	}
	if !litemporal.IsWorkflowNotFound(err) {
		writeDomainError(w, err)
		return
	}

	// Workflow history may have been purged; the snapshot is authoritative
	// for terminal runs.
	doc, repoErr := s.runRepo.GetSnapshot(r.Context(), runID)
	if repoErr != nil {
		writeDomainError(w, repoErr)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		Status:        string(doc.Run.Status),
		Stage:         "done",
		PapersFound:   len(doc.Run.Papers),
		RevisionCount: doc.Run.RevisionCount,
	})
}

// parseUUID parses a path parameter as a UUID, writing a 400 on failure.
func parseUUID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid run_id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam reads an integer query parameter with a default.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
