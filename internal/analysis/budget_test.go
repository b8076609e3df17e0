package analysis

import (
	"strings"
	"testing"

	"github.com/stebratori/jobBolt-backend/internal/models"
)

func messagesOfSize(chars int) []models.ChatMessage {
	// Single user message; role length counts toward the estimate.
	return []models.ChatMessage{
		{Role: "user", Content: strings.Repeat("x", chars-len("user"))},
	}
}

func TestPlanner_EstimateTokens(t *testing.T) {
	p := NewPlanner(4.0, 8192)

	got := p.EstimateTokens(messagesOfSize(400))
	if got != 100 {
		t.Errorf("EstimateTokens() = %d, want 100", got)
	}
}

func TestPlanner_Bands(t *testing.T) {
	// Window of 100 tokens, 1 char per token: content size maps
	// directly to the estimate.
	p := NewPlanner(1.0, 100)

	tests := []struct {
		chars int
		want  Band
	}{
		{10, BandComfortable},
		{49, BandComfortable},
		{50, BandCaution},
		{74, BandCaution},
		{75, BandWarning},
		{89, BandWarning},
		{90, BandCritical},
		{150, BandCritical},
	}

	for _, tt := range tests {
		report := p.Plan(messagesOfSize(tt.chars))
		if report.Band != tt.want {
			t.Errorf("Plan(%d chars).Band = %v, want %v", tt.chars, report.Band, tt.want)
		}
		if report.EstimatedTokens != tt.chars {
			t.Errorf("Plan(%d chars).EstimatedTokens = %d", tt.chars, report.EstimatedTokens)
		}
		if report.ContextWindow != 100 {
			t.Errorf("Plan().ContextWindow = %d, want 100", report.ContextWindow)
		}
	}
}

func TestNewPlanner_Defaults(t *testing.T) {
	p := NewPlanner(0, -1)
	if p.charsPerToken != 4.0 {
		t.Errorf("charsPerToken = %v, want 4.0", p.charsPerToken)
	}
	if p.contextWindow != 8192 {
		t.Errorf("contextWindow = %d, want 8192", p.contextWindow)
	}
}

func TestBand_String(t *testing.T) {
	tests := []struct {
		band Band
		want string
	}{
		{BandComfortable, "comfortable"},
		{BandCaution, "caution"},
		{BandWarning, "warning"},
		{BandCritical, "critical"},
		{Band(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.band.String(); got != tt.want {
			t.Errorf("Band(%d).String() = %q, want %q", tt.band, got, tt.want)
		}
	}
}
