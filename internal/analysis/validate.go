package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stebratori/jobBolt-backend/internal/models"
)

// SchemaError reports a model reply that did not match the expected
// structure. It is terminal for the run: retrying an identical
// malformed-prone call rarely helps. The raw reply is kept for
// diagnosis.
type SchemaError struct {
	Field    string
	Reason   string
	RawReply string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid analysis reply: field %q %s", e.Field, e.Reason)
}

// feedbackEnvelope mirrors the reply structure. Pointer fields
// distinguish missing from zero-valued.
type feedbackEnvelope struct {
	InterviewFeedback *struct {
		OverallRating   *float64          `json:"overall_rating"`
		PassToNextStage *bool             `json:"pass_to_next_stage"`
		FinalFeedback   *string           `json:"final_feedback"`
		Questions       []json.RawMessage `json:"questions"`
	} `json:"interview_feedback"`
}

// ParseResult parses and schema-validates the model's structured
// reply. Incidental code-fence markup around the payload is stripped
// first. Any missing or mistyped field is a hard failure: a malformed
// result must never be persisted as if valid.
func ParseResult(reply string) (*models.AnalysisResult, error) {
	cleaned := stripCodeFences(reply)

	var envelope feedbackEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, &SchemaError{Field: "interview_feedback", Reason: "is not valid JSON: " + err.Error(), RawReply: reply}
	}

	fb := envelope.InterviewFeedback
	if fb == nil {
		return nil, &SchemaError{Field: "interview_feedback", Reason: "is missing", RawReply: reply}
	}
	if fb.OverallRating == nil {
		return nil, &SchemaError{Field: "overall_rating", Reason: "is missing or not a number", RawReply: reply}
	}
	rating := int(*fb.OverallRating)
	if float64(rating) != *fb.OverallRating || rating < 0 || rating > 100 {
		return nil, &SchemaError{Field: "overall_rating", Reason: "must be an integer between 0 and 100", RawReply: reply}
	}
	if fb.PassToNextStage == nil {
		return nil, &SchemaError{Field: "pass_to_next_stage", Reason: "is missing or not a boolean", RawReply: reply}
	}
	if fb.FinalFeedback == nil || strings.TrimSpace(*fb.FinalFeedback) == "" {
		return nil, &SchemaError{Field: "final_feedback", Reason: "is missing or empty", RawReply: reply}
	}
	if fb.Questions == nil {
		return nil, &SchemaError{Field: "questions", Reason: "is missing or not an array", RawReply: reply}
	}

	questions := make([]models.QuestionFeedback, 0, len(fb.Questions))
	for i, raw := range fb.Questions {
		var q models.QuestionFeedback
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, &SchemaError{
				Field:    fmt.Sprintf("questions[%d]", i),
				Reason:   "is not a question entry: " + err.Error(),
				RawReply: reply,
			}
		}
		questions = append(questions, q)
	}

	return &models.AnalysisResult{
		OverallRating:   rating,
		PassToNextStage: *fb.PassToNextStage,
		FinalFeedback:   *fb.FinalFeedback,
		Questions:       questions,
	}, nil
}

// stripCodeFences removes markdown fence markers the model sometimes
// wraps around the JSON payload.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
