package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stebratori/jobBolt-backend/internal/models"
	"github.com/stebratori/jobBolt-backend/internal/observability/logging"
	"github.com/stebratori/jobBolt-backend/internal/observability/metrics"
)

// Invoker calls the remote reasoning model and returns the raw reply
// text.
type Invoker interface {
	Invoke(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// AnalysisError reports an exhausted retry budget against the
// reasoning model.
type AnalysisError struct {
	Attempts int
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("reasoning model call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// InvokerConfig configures the OpenAI-backed invoker.
type InvokerConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

// OpenAIInvoker implements Invoker against the chat completions API
// with bounded retries: each attempt gets its own timeout, transport
// failures and empty replies wait a fixed backoff and retry, and the
// last cause is propagated once the budget is spent.
type OpenAIInvoker struct {
	cfg     InvokerConfig
	client  *http.Client
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewOpenAIInvoker creates an invoker. Zero-valued retry knobs fall
// back to 3 attempts, 30s per attempt, 2s backoff.
func NewOpenAIInvoker(cfg InvokerConfig) *OpenAIInvoker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	return &OpenAIInvoker{
		cfg:     cfg,
		client:  &http.Client{},
		metrics: metrics.DefaultMetrics,
		log:     logging.WithComponent("analysis-invoker"),
	}
}

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Invoke calls the model, retrying on transport failures and empty
// replies up to the configured attempt budget.
func (o *OpenAIInvoker) Invoke(ctx context.Context, messages []models.ChatMessage) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		reply, err := o.callOnce(ctx, messages)
		duration := time.Since(start)

		o.metrics.RecordModelAttempt(duration.Seconds())

		if err == nil {
			o.log.Info().
				Int("attempt", attempt).
				Dur("duration", duration).
				Msg("Reasoning model call succeeded")
			return reply, nil
		}

		lastErr = err
		o.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", o.cfg.MaxAttempts).
			Dur("duration", duration).
			Msg("Reasoning model call failed")

		if attempt < o.cfg.MaxAttempts {
			select {
			case <-time.After(o.cfg.RetryBackoff):
			case <-ctx.Done():
				return "", &AnalysisError{Attempts: attempt, Err: ctx.Err()}
			}
		}
	}

	return "", &AnalysisError{Attempts: o.cfg.MaxAttempts, Err: lastErr}
}

func (o *OpenAIInvoker) callOnce(ctx context.Context, messages []models.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{Model: o.cfg.Model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completions request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completions status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	// Only the first choice's message content counts as the reply. A
	// reply with no extractable text retries like a transport failure.
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", errors.New("model reply contained no message content")
	}

	o.log.Debug().
		Int("promptTokens", parsed.Usage.PromptTokens).
		Int("completionTokens", parsed.Usage.CompletionTokens).
		Int("totalTokens", parsed.Usage.TotalTokens).
		Msg("Model usage")

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
