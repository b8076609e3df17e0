// Package mock provides a scripted STT engine for running the relay
// without provider credentials. It simulates realistic recognition
// behavior: progressive partial transcripts per audio frame and exactly
// one final per utterance.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/stebratori/jobBolt-backend/internal/stt"
)

// SimulatedUtterance represents a scripted utterance with progressive
// transcripts.
type SimulatedUtterance struct {
	Partials []string
	Final    string
}

// DefaultUtterances provides sample candidate answers for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials: []string{"I have", "I have five years", "I have five years of"},
		Final:    "I have five years of backend experience",
	},
	{
		Partials: []string{"My last", "My last project was"},
		Final:    "My last project was a payments platform",
	},
	{
		Partials: []string{"I would", "I would start by", "I would start by profiling"},
		Final:    "I would start by profiling the slow queries",
	},
	{
		Partials: []string{"Yes I", "Yes I have worked with"},
		Final:    "Yes I have worked with distributed systems",
	},
}

// Engine implements stt.Engine with scripted responses.
type Engine struct {
	mu            sync.Mutex
	cb            stt.Callback
	utterance     SimulatedUtterance
	partialIndex  int
	finalSent     bool
	closed        bool
	audioReceived int
}

var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a new mock engine, cycling through the default
// utterances.
func New() *Engine {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return &Engine{utterance: DefaultUtterances[idx]}
}

// Start begins a mock session; the handshake succeeds immediately.
func (e *Engine) Start(ctx context.Context, cb stt.Callback) error {
	e.mu.Lock()
	e.cb = cb
	e.mu.Unlock()
	cb.OnOpen("mock-session")
	return nil
}

// SendAudio simulates recognition: one partial per frame, then a final
// once the scripted partials are exhausted.
func (e *Engine) SendAudio(ctx context.Context, audio []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.cb == nil {
		return nil
	}

	e.audioReceived++

	if e.partialIndex < len(e.utterance.Partials) {
		partial := e.utterance.Partials[e.partialIndex]
		e.partialIndex++

		go func(text string) {
			time.Sleep(50 * time.Millisecond)
			e.mu.Lock()
			cb, closed := e.cb, e.closed
			e.mu.Unlock()
			if !closed && cb != nil {
				cb.OnTranscript(text, false)
			}
		}(partial)
	} else if !e.finalSent {
		e.finalSent = true

		go func() {
			time.Sleep(100 * time.Millisecond)
			e.mu.Lock()
			cb, closed := e.cb, e.closed
			utt := e.utterance
			e.mu.Unlock()
			if !closed && cb != nil {
				cb.OnTranscript(utt.Final, true)
			}
		}()
	}

	return nil
}

// Close ends the mock session. If the final wasn't reached naturally,
// it is flushed now, mirroring provider terminate behavior.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if !e.finalSent && e.cb != nil && e.partialIndex > 0 {
		e.finalSent = true
		cb := e.cb
		utt := e.utterance
		go func() {
			time.Sleep(100 * time.Millisecond)
			cb.OnTranscript(utt.Final, true)
		}()
	}

	return nil
}
