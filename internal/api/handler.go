package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/stebratori/jobBolt-backend/internal/analysis"
	"github.com/stebratori/jobBolt-backend/internal/models"
	"github.com/stebratori/jobBolt-backend/internal/observability/logging"
	"github.com/stebratori/jobBolt-backend/internal/storage"
	"github.com/stebratori/jobBolt-backend/internal/task"
)

// Handler serves the interview HTTP API.
type Handler struct {
	store    storage.InterviewStore
	pipeline *analysis.Pipeline
	runner   *task.Runner
	log      zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(store storage.InterviewStore, pipeline *analysis.Pipeline, runner *task.Runner) *Handler {
	return &Handler{
		store:    store,
		pipeline: pipeline,
		runner:   runner,
		log:      logging.WithComponent("api"),
	}
}

type analyzeRequest struct {
	CompanyID      string                    `json:"companyId"`
	JobID          string                    `json:"jobId"`
	InterviewID    string                    `json:"interviewId"`
	JobDescription string                    `json:"jobDescription"`
	CandidateName  string                    `json:"candidateName"`
	DurationSec    int                       `json:"durationSec"`
	Conversation   []models.ConversationTurn `json:"conversation"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// AnalyzeAndStore accepts an interview transcript, acknowledges
// immediately, and runs the analysis pipeline in the background. The
// ack means "accepted", not "analyzed": the result lands on the stored
// record when the run completes.
func (h *Handler) AnalyzeAndStore(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.CompanyID == "" || req.JobID == "" || req.InterviewID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "companyId, jobId and interviewId are required"})
		return
	}
	if len(req.Conversation) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "conversation is required"})
		return
	}

	rec := &models.InterviewRecord{
		CompanyID:      req.CompanyID,
		JobID:          req.JobID,
		InterviewID:    req.InterviewID,
		JobDescription: req.JobDescription,
		CandidateName:  req.CandidateName,
		DurationSec:    req.DurationSec,
	}
	if err := h.store.PutInterview(rec); err != nil {
		h.log.Error().Err(err).Str("interviewId", req.InterviewID).Msg("Failed to store interview")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to store interview"})
		return
	}

	job := analysis.Job{
		CompanyID:      req.CompanyID,
		JobID:          req.JobID,
		InterviewID:    req.InterviewID,
		JobDescription: req.JobDescription,
		Conversation:   req.Conversation,
		DurationSec:    req.DurationSec,
	}

	// Detached from the request context: the run outlives this handler.
	h.runner.Spawn(context.Background(), "interview-analysis", func(ctx context.Context) error {
		return h.pipeline.Run(ctx, job)
	})

	writeJSON(w, http.StatusOK, ackResponse{Success: true, Message: "Analysis request received"})
}

// CreateInterview stores an interview record without triggering
// analysis.
func (h *Handler) CreateInterview(w http.ResponseWriter, r *http.Request) {
	var rec models.InterviewRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if rec.CompanyID == "" || rec.JobID == "" || rec.InterviewID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "companyId, jobId and interviewId are required"})
		return
	}

	if err := h.store.PutInterview(&rec); err != nil {
		h.log.Error().Err(err).Str("interviewId", rec.InterviewID).Msg("Failed to store interview")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to store interview"})
		return
	}

	writeJSON(w, http.StatusCreated, ackResponse{Success: true, Message: "Interview stored"})
}

// GetInterview returns one interview record, including its analysis if
// one has been persisted.
func (h *Handler) GetInterview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rec, err := h.store.GetInterview(vars["companyID"], vars["jobID"], vars["interviewID"])
	if errors.Is(err, storage.ErrInterviewNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "interview not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("interviewId", vars["interviewID"]).Msg("Failed to load interview")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load interview"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
