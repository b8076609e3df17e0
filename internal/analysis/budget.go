package analysis

import (
	"github.com/rs/zerolog"

	"github.com/stebratori/jobBolt-backend/internal/models"
	"github.com/stebratori/jobBolt-backend/internal/observability/logging"
	"github.com/stebratori/jobBolt-backend/internal/observability/metrics"
)

// Band classifies how much of the model's context window a request is
// estimated to consume.
type Band int

const (
	BandComfortable Band = iota
	BandCaution
	BandWarning
	BandCritical
)

// Band thresholds as fractions of the context window.
const (
	cautionThreshold  = 0.50
	warningThreshold  = 0.75
	criticalThreshold = 0.90
)

// String returns the band name used in logs and metric labels.
func (b Band) String() string {
	switch b {
	case BandComfortable:
		return "comfortable"
	case BandCaution:
		return "caution"
	case BandWarning:
		return "warning"
	case BandCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Planner estimates the token cost of a model request against a
// context window. The estimate is a documented approximation (content
// length over a chars-per-token ratio), not a real tokenizer: its job
// is observability and future chunking decisions. The model call
// itself remains the enforcement point for hard limits, so the planner
// never blocks a request.
type Planner struct {
	charsPerToken float64
	contextWindow int
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

// Report is the planner's diagnostic output for one request.
type Report struct {
	EstimatedTokens int
	ContextWindow   int
	Band            Band
}

// NewPlanner creates a planner. Non-positive arguments fall back to
// the defaults (4 chars per token, 8192-token window).
func NewPlanner(charsPerToken float64, contextWindow int) *Planner {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	if contextWindow <= 0 {
		contextWindow = 8192
	}
	return &Planner{
		charsPerToken: charsPerToken,
		contextWindow: contextWindow,
		metrics:       metrics.DefaultMetrics,
		log:           logging.WithComponent("budget-planner"),
	}
}

// EstimateTokens estimates the token cost of a message list.
func (p *Planner) EstimateTokens(messages []models.ChatMessage) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content) + len(m.Role)
	}
	return int(float64(chars) / p.charsPerToken)
}

// Plan classifies a request into a budget band and emits the
// diagnostic signal for it.
func (p *Planner) Plan(messages []models.ChatMessage) Report {
	tokens := p.EstimateTokens(messages)
	band := p.classify(tokens)

	p.metrics.RecordBudgetBand(band.String())

	evt := p.log.Debug()
	switch band {
	case BandCaution:
		evt = p.log.Info()
	case BandWarning:
		evt = p.log.Warn()
	case BandCritical:
		evt = p.log.Error()
	}
	evt.Int("estimatedTokens", tokens).
		Int("contextWindow", p.contextWindow).
		Str("band", band.String()).
		Msg("Context budget estimate")

	return Report{
		EstimatedTokens: tokens,
		ContextWindow:   p.contextWindow,
		Band:            band,
	}
}

func (p *Planner) classify(tokens int) Band {
	ratio := float64(tokens) / float64(p.contextWindow)
	switch {
	case ratio >= criticalThreshold:
		return BandCritical
	case ratio >= warningThreshold:
		return BandWarning
	case ratio >= cautionThreshold:
		return BandCaution
	default:
		return BandComfortable
	}
}
