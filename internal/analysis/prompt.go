package analysis

import (
	"fmt"
	"strings"

	"github.com/stebratori/jobBolt-backend/internal/models"
)

// DefaultAnalysisPrompt instructs the model to grade the interview and
// reply in the exact JSON structure the validator expects.
const DefaultAnalysisPrompt = `You are an experienced and professional recruiter that conducted a first-round interview for a candidate applying for the role described in the job description below.
Your goal is to evaluate the candidate's knowledge, skills, and suitability for the position.
The question/answer transcript is linked at the end of this prompt.
Have in mind that the candidate's replies were gathered via speech-to-text, so there could be grammatical errors or misspelled abbreviations; do not penalize for such mistakes.
Return your response in pure JSON format only, using the exact structure below (no additional formatting, code block delimiters, or markdown elements):
{
    "interview_feedback": {
        "overall_rating": <integer - overall rating for the interview between 0 and 100>,
        "pass_to_next_stage": <boolean - true if the candidate should proceed to the next interview stage (above 60 overall rating), false otherwise>,
        "final_feedback": "<string - overall summary of the candidate's performance>",
        "questions": [
            {
                "question": "<string - the question asked>",
                "answer": "<string - the candidate's answer>",
                "rating": <integer - rating for this answer between 0 and 100>,
                "feedback": "<string - feedback for this answer>"
            }
        ]
    }
}

Grading guidelines:
- 0: the response lacks relevant knowledge, is dismissive, or the candidate admits they do not know the answer.
- 10-30: the response is vague, incomplete, or only partially relevant.
- 40-60: the answer demonstrates some knowledge but has gaps.
- Above 60: the response fully answers the question with depth and clarity.

Below are the job description and the interview transcript:`

// BuildMessages frames one analysis request as the role-tagged message
// list sent to the reasoning model.
func BuildMessages(req models.AnalysisRequest) []models.ChatMessage {
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = DefaultAnalysisPrompt
	}

	var b strings.Builder
	b.WriteString("Job Description:\n")
	b.WriteString(req.JobDescription)
	b.WriteString("\n\nInterview Transcript:\n")
	for i, pair := range req.Pairs {
		fmt.Fprintf(&b, "Question %d: %q\nAnswer %d: %q\n", i+1, pair.Question, i+1, pair.Answer)
	}

	return []models.ChatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: b.String()},
	}
}
