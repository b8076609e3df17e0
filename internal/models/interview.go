package models

import "time"

// Conversation roles as produced by the interview client.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// ConversationTurn is one ordered message of the interview transcript.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QAPair is one interview question paired with the candidate's
// immediately following answer. Pairs are derived per analysis run and
// never persisted on their own.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ChatMessage is a role-tagged message sent to the reasoning model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnalysisRequest is the transient payload built once per analysis run.
type AnalysisRequest struct {
	JobDescription string
	Pairs          []QAPair
	SystemPrompt   string
}

// QuestionFeedback is the per-question entry of an analysis result.
type QuestionFeedback struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// AnalysisResult is the validated structured reply of the reasoning
// model. It is the only artifact the pipeline persists.
type AnalysisResult struct {
	OverallRating   int                `json:"overall_rating"`
	PassToNextStage bool               `json:"pass_to_next_stage"`
	FinalFeedback   string             `json:"final_feedback"`
	Questions       []QuestionFeedback `json:"questions"`
}

// InterviewRecord is the stored interview document. Analysis fields are
// upserted onto an existing record once the background pipeline
// completes; they stay nil for interviews that were never analyzed or
// whose analysis failed.
type InterviewRecord struct {
	CompanyID      string          `json:"companyId"`
	JobID          string          `json:"jobId"`
	InterviewID    string          `json:"interviewId"`
	JobDescription string          `json:"jobDescription,omitempty"`
	CandidateName  string          `json:"candidateName,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	DurationSec    int             `json:"durationSec,omitempty"`
	Analysis       *AnalysisResult `json:"analysis,omitempty"`
	AnalyzedAt     *time.Time      `json:"analyzedAt,omitempty"`
}
