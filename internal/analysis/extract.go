// Package analysis implements the post-interview pipeline: question/
// answer extraction, context budgeting, the reasoning model invoker,
// result validation, and the run orchestration.
package analysis

import (
	"errors"
	"strings"

	"github.com/stebratori/jobBolt-backend/internal/models"
)

// ErrNoPairs reports that a conversation yielded no valid question/
// answer pairs. Callers must treat this as an extraction failure, not
// an empty success.
var ErrNoPairs = errors.New("no valid question/answer pairs in conversation")

// ExtractQAPairs derives ordered question/answer pairs from an
// alternating conversation log. Each assistant turn consumes the turn
// that follows it; the pair is emitted only when that follower is a
// user turn and both sides have non-empty trimmed content. A window
// that breaks the alternation (a question answered by another
// question, a blank answer) is dropped whole, never paired
// speculatively; stray user turns and a trailing unanswered question
// are dropped too.
func ExtractQAPairs(turns []models.ConversationTurn) ([]models.QAPair, error) {
	var pairs []models.QAPair

	for i := 0; i < len(turns); {
		if turns[i].Role != models.RoleAssistant {
			i++
			continue
		}
		if i+1 >= len(turns) {
			break
		}

		question := strings.TrimSpace(turns[i].Content)
		answer := strings.TrimSpace(turns[i+1].Content)
		if turns[i+1].Role == models.RoleUser && question != "" && answer != "" {
			pairs = append(pairs, models.QAPair{Question: question, Answer: answer})
		}
		i += 2
	}

	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	return pairs, nil
}
