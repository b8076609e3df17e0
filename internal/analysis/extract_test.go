package analysis

import (
	"errors"
	"testing"

	"github.com/stebratori/jobBolt-backend/internal/models"
)

func turn(role, content string) models.ConversationTurn {
	return models.ConversationTurn{Role: role, Content: content}
}

func TestExtractQAPairs(t *testing.T) {
	tests := []struct {
		name  string
		turns []models.ConversationTurn
		want  []models.QAPair
	}{
		{
			name: "alternating conversation",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "What is a goroutine?"),
				turn(models.RoleUser, "A lightweight thread managed by the runtime."),
				turn(models.RoleAssistant, "How do channels work?"),
				turn(models.RoleUser, "They pass values between goroutines."),
			},
			want: []models.QAPair{
				{Question: "What is a goroutine?", Answer: "A lightweight thread managed by the runtime."},
				{Question: "How do channels work?", Answer: "They pass values between goroutines."},
			},
		},
		{
			name: "trailing unanswered question dropped",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "Q1"),
				turn(models.RoleUser, "A1"),
				turn(models.RoleAssistant, "Q2"),
			},
			want: []models.QAPair{{Question: "Q1", Answer: "A1"}},
		},
		{
			name: "whitespace-only answer dropped",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "Q1"),
				turn(models.RoleUser, "   "),
				turn(models.RoleAssistant, "Q2"),
				turn(models.RoleUser, "A2"),
			},
			want: []models.QAPair{{Question: "Q2", Answer: "A2"}},
		},
		{
			name: "content trimmed",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "  Q1  "),
				turn(models.RoleUser, "\tA1\n"),
			},
			want: []models.QAPair{{Question: "Q1", Answer: "A1"}},
		},
		{
			name: "matched turns consumed before scan continues",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "Q1"),
				turn(models.RoleUser, "A1"),
				turn(models.RoleUser, "stray follow-up"),
				turn(models.RoleAssistant, "Q2"),
				turn(models.RoleUser, "A2"),
			},
			want: []models.QAPair{
				{Question: "Q1", Answer: "A1"},
				{Question: "Q2", Answer: "A2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractQAPairs(tt.turns)
			if err != nil {
				t.Fatalf("ExtractQAPairs() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d pairs, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("pair %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractQAPairs_NoPairs(t *testing.T) {
	tests := []struct {
		name  string
		turns []models.ConversationTurn
	}{
		{"empty conversation", nil},
		{
			"consecutive same-role turns only",
			[]models.ConversationTurn{
				turn(models.RoleAssistant, "Q1"),
				turn(models.RoleAssistant, "Q2"),
			},
		},
		{
			// The first question consumes the second as its would-be
			// answer; the leftover user turn has no question.
			"question answered by another question",
			[]models.ConversationTurn{
				turn(models.RoleAssistant, "Q1"),
				turn(models.RoleAssistant, "Q2"),
				turn(models.RoleUser, "A1"),
			},
		},
		{
			"user turn before any question",
			[]models.ConversationTurn{
				turn(models.RoleUser, "hello?"),
			},
		},
		{
			"empty contents",
			[]models.ConversationTurn{
				turn(models.RoleAssistant, ""),
				turn(models.RoleUser, "A1"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractQAPairs(tt.turns)
			if !errors.Is(err, ErrNoPairs) {
				t.Fatalf("ExtractQAPairs() error = %v, want ErrNoPairs", err)
			}
			if got != nil {
				t.Errorf("ExtractQAPairs() = %+v, want nil", got)
			}
		})
	}
}
