// Package stt defines the interface for streaming speech-to-text
// engines.
package stt

import "context"

// Callback receives events from the recognition engine. Implementations
// must be safe for calls from the engine's receive goroutine.
type Callback interface {
	// OnOpen is called once the upstream session is confirmed ready.
	OnOpen(sessionID string)

	// OnTranscript is called for each transcript fragment. isFinal
	// marks a committed utterance; partials may be superseded by a
	// later final.
	OnTranscript(text string, isFinal bool)

	// OnError is called when the upstream reports an error mid-session.
	OnError(err error)

	// OnClose is called when the upstream closes the session.
	OnClose(code int, reason string)
}

// Engine is one duplex connection to a streaming recognition provider
// (AssemblyAI, Google, mock). An Engine instance serves a single
// session and is not reusable after Close.
type Engine interface {
	// Start performs the upstream handshake and returns once the
	// session is ready to accept audio. The context bounds the
	// handshake wait.
	Start(ctx context.Context, cb Callback) error

	// SendAudio forwards one audio frame to the provider. Frames must
	// be delivered in arrival order.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}

// Config carries provider-independent session parameters.
type Config struct {
	APIKey       string
	SampleRateHz int
	LanguageCode string
}

// Factory creates a fresh Engine for a new session.
type Factory func() (Engine, error)
