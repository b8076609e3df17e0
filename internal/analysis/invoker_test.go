package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stebratori/jobBolt-backend/internal/models"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func testInvoker(baseURL string, maxAttempts int) *OpenAIInvoker {
	return NewOpenAIInvoker(InvokerConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "gpt-4",
		MaxAttempts:    maxAttempts,
		AttemptTimeout: 2 * time.Second,
		RetryBackoff:   time.Millisecond,
	})
}

var testMessages = []models.ChatMessage{
	{Role: "system", Content: "grade this interview"},
	{Role: "user", Content: "Question 1: ..."},
}

func TestInvoke_SucceedsFirstAttempt(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		chatReply(t, w, `{"ok":true}`)
	}))
	defer srv.Close()

	reply, err := testInvoker(srv.URL, 3).Invoke(context.Background(), testMessages)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if reply != `{"ok":true}` {
		t.Errorf("reply = %q", reply)
	}
	if n := atomic.LoadInt64(&requests); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestInvoke_RetriesThenSucceeds(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n <= 2 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		chatReply(t, w, "third time lucky")
	}))
	defer srv.Close()

	reply, err := testInvoker(srv.URL, 3).Invoke(context.Background(), testMessages)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if reply != "third time lucky" {
		t.Errorf("reply = %q", reply)
	}
	if n := atomic.LoadInt64(&requests); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestInvoke_ExhaustsAttempts(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&requests, 1)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testInvoker(srv.URL, 3).Invoke(context.Background(), testMessages)
	if err == nil {
		t.Fatal("Invoke() error = nil, want AnalysisError")
	}

	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("Invoke() error = %T, want *AnalysisError", err)
	}
	if analysisErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", analysisErr.Attempts)
	}
	if n := atomic.LoadInt64(&requests); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestInvoke_EmptyReplyRetriesLikeTransportFailure(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n == 1 {
			chatReply(t, w, "   ")
			return
		}
		chatReply(t, w, "real content")
	}))
	defer srv.Close()

	reply, err := testInvoker(srv.URL, 3).Invoke(context.Background(), testMessages)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if reply != "real content" {
		t.Errorf("reply = %q", reply)
	}
	if n := atomic.LoadInt64(&requests); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestInvoke_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no luck", http.StatusInternalServerError)
	}))
	defer srv.Close()

	inv := NewOpenAIInvoker(InvokerConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		MaxAttempts:    3,
		AttemptTimeout: 2 * time.Second,
		RetryBackoff:   10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := inv.Invoke(ctx, testMessages)
	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("Invoke() error = %T, want *AnalysisError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Invoke() error = %v, want wrapped context.Canceled", err)
	}
}

func TestNewOpenAIInvoker_Defaults(t *testing.T) {
	inv := NewOpenAIInvoker(InvokerConfig{APIKey: "k"})
	if inv.cfg.Model != "gpt-4" {
		t.Errorf("Model = %q, want gpt-4", inv.cfg.Model)
	}
	if inv.cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", inv.cfg.MaxAttempts)
	}
	if inv.cfg.AttemptTimeout != 30*time.Second {
		t.Errorf("AttemptTimeout = %v, want 30s", inv.cfg.AttemptTimeout)
	}
	if inv.cfg.RetryBackoff != 2*time.Second {
		t.Errorf("RetryBackoff = %v, want 2s", inv.cfg.RetryBackoff)
	}
}
