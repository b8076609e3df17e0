package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stebratori/jobBolt-backend/internal/events"
	"github.com/stebratori/jobBolt-backend/internal/models"
	"github.com/stebratori/jobBolt-backend/internal/observability/logging"
	"github.com/stebratori/jobBolt-backend/internal/observability/metrics"
	"github.com/stebratori/jobBolt-backend/internal/storage"
)

// Pipeline stages, used for failure metric labels and error wrapping.
const (
	StageExtract  = "extract"
	StageInvoke   = "invoke"
	StageValidate = "validate"
	StagePersist  = "persist"
)

// Job carries everything one analysis run needs.
type Job struct {
	CompanyID      string
	JobID          string
	InterviewID    string
	JobDescription string
	Conversation   []models.ConversationTurn
	DurationSec    int
}

// Pipeline runs interview analysis end to end. A run either completes
// fully (validated result persisted) or fails at a stage without
// touching the stored record.
type Pipeline struct {
	planner   *Planner
	invoker   Invoker
	store     storage.InterviewStore
	publisher *events.Publisher
	metrics   *metrics.Metrics
}

// NewPipeline wires the pipeline collaborators. publisher may be a
// disabled (log-only) publisher but must not be nil.
func NewPipeline(planner *Planner, invoker Invoker, store storage.InterviewStore, publisher *events.Publisher) *Pipeline {
	return &Pipeline{
		planner:   planner,
		invoker:   invoker,
		store:     store,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
	}
}

// completionEvent is the payload mirrored to Kafka when a run
// completes.
type completionEvent struct {
	RunID           string    `json:"runId"`
	CompanyID       string    `json:"companyId"`
	JobID           string    `json:"jobId"`
	InterviewID     string    `json:"interviewId"`
	OverallRating   int       `json:"overallRating"`
	PassToNextStage bool      `json:"passToNextStage"`
	CompletedAt     time.Time `json:"completedAt"`
}

// Run executes one analysis run. Errors name the stage that failed.
func (p *Pipeline) Run(ctx context.Context, job Job) error {
	runID := uuid.NewString()
	log := logging.WithRun(runID, job.CompanyID, job.JobID, job.InterviewID)

	p.metrics.AnalysisRuns.Inc()
	start := time.Now()
	log.Info().Int("turns", len(job.Conversation)).Msg("Analysis run started")

	pairs, err := ExtractQAPairs(job.Conversation)
	if err != nil {
		p.metrics.RecordAnalysisFailure(StageExtract)
		log.Error().Err(err).Msg("Question/answer extraction failed")
		return fmt.Errorf("%s: %w", StageExtract, err)
	}

	messages := BuildMessages(models.AnalysisRequest{
		JobDescription: job.JobDescription,
		Pairs:          pairs,
	})
	p.planner.Plan(messages)

	reply, err := p.invoker.Invoke(ctx, messages)
	if err != nil {
		p.metrics.RecordAnalysisFailure(StageInvoke)
		log.Error().Err(err).Msg("Reasoning model invocation failed")
		return fmt.Errorf("%s: %w", StageInvoke, err)
	}

	result, err := ParseResult(reply)
	if err != nil {
		p.metrics.RecordAnalysisFailure(StageValidate)
		log.Error().Err(err).Msg("Model reply failed schema validation")
		return fmt.Errorf("%s: %w", StageValidate, err)
	}

	if err := p.store.UpsertAnalysis(job.CompanyID, job.JobID, job.InterviewID, result, job.DurationSec); err != nil {
		p.metrics.RecordAnalysisFailure(StagePersist)
		log.Error().Err(err).Msg("Failed to persist analysis result")
		return fmt.Errorf("%s: %w", StagePersist, err)
	}

	p.metrics.AnalysisCompleted.Inc()
	log.Info().
		Int("pairs", len(pairs)).
		Int("overallRating", result.OverallRating).
		Bool("passToNextStage", result.PassToNextStage).
		Dur("duration", time.Since(start)).
		Msg("Analysis run completed")

	// Best effort: a mirror failure never fails a completed run.
	if err := p.publisher.PublishAnalysis(ctx, job.InterviewID, completionEvent{
		RunID:           runID,
		CompanyID:       job.CompanyID,
		JobID:           job.JobID,
		InterviewID:     job.InterviewID,
		OverallRating:   result.OverallRating,
		PassToNextStage: result.PassToNextStage,
		CompletedAt:     time.Now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to publish analysis completion event")
	}

	return nil
}
