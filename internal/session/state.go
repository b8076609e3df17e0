// Package session manages upstream transcription sessions: one
// registry mapping session keys to live engine connections, with a
// lifecycle state machine per session.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a session's upstream
// connection.
type State int

const (
	// StateIdle - Session exists but no handshake has begun.
	StateIdle State = iota
	// StateStarting - Upstream handshake is in flight; audio is queued.
	StateStarting
	// StateOpen - Upstream connection is live; audio flows directly.
	StateOpen
	// StateClosing - Explicit stop or client disconnect in progress.
	StateClosing
	// StateError - Upstream failed; connection is being torn down.
	StateError
	// StateClosed - Terminal for this connection instance. The session
	// key may be reopened later with a fresh connection.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateError:
		return "ERROR"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true once the connection instance can never carry
// audio again.
func (s State) IsTerminal() bool {
	return s == StateClosing || s == StateError || s == StateClosed
}

// Errors for invalid state transitions.
var (
	ErrAlreadyStarting = errors.New("handshake already in progress")
	ErrNotStarting     = errors.New("session is not starting")
	ErrSessionClosed   = errors.New("session is closed")
)

// Lifecycle manages the state machine for a single session connection.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE → STARTING → OPEN → CLOSING → CLOSED
//	            │        │
//	            │        └──→ ERROR → CLOSED
//	            └──→ ERROR → CLOSED
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a new lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsTerminal returns true if the connection instance is done.
func (l *Lifecycle) IsTerminal() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// ToStarting begins the handshake. Only valid from IDLE.
func (l *Lifecycle) ToStarting() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateIdle:
		l.state = StateStarting
		return nil
	case StateStarting:
		return ErrAlreadyStarting
	default:
		return ErrSessionClosed
	}
}

// ToOpen marks the handshake as confirmed. Only valid from STARTING.
func (l *Lifecycle) ToOpen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateStarting {
		return ErrNotStarting
	}
	l.state = StateOpen
	return nil
}

// ToClosing records an explicit stop or client disconnect. Idempotent
// once terminal.
func (l *Lifecycle) ToClosing() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.IsTerminal() {
		return
	}
	l.state = StateClosing
}

// ToError records an upstream failure. Returns false if the connection
// was already terminal.
func (l *Lifecycle) ToError() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.IsTerminal() {
		return false
	}
	l.state = StateError
	return true
}

// ToClosed finalizes the connection instance. Can be called from any
// state. Idempotent.
func (l *Lifecycle) ToClosed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateClosed
}
