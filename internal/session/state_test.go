package session

import (
	"errors"
	"testing"
)

func TestLifecycle_HappyPath(t *testing.T) {
	l := NewLifecycle()

	if got := l.State(); got != StateIdle {
		t.Fatalf("initial state = %v, want IDLE", got)
	}
	if err := l.ToStarting(); err != nil {
		t.Fatalf("ToStarting() error = %v", err)
	}
	if err := l.ToOpen(); err != nil {
		t.Fatalf("ToOpen() error = %v", err)
	}
	if got := l.State(); got != StateOpen {
		t.Fatalf("state = %v, want OPEN", got)
	}

	l.ToClosing()
	l.ToClosed()
	if got := l.State(); got != StateClosed {
		t.Fatalf("state = %v, want CLOSED", got)
	}
}

func TestLifecycle_ToStarting_OnlyFromIdle(t *testing.T) {
	l := NewLifecycle()

	if err := l.ToStarting(); err != nil {
		t.Fatalf("ToStarting() error = %v", err)
	}
	if err := l.ToStarting(); !errors.Is(err, ErrAlreadyStarting) {
		t.Errorf("second ToStarting() error = %v, want ErrAlreadyStarting", err)
	}

	l.ToClosed()
	if err := l.ToStarting(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ToStarting() after close error = %v, want ErrSessionClosed", err)
	}
}

func TestLifecycle_ToOpen_RequiresStarting(t *testing.T) {
	l := NewLifecycle()

	if err := l.ToOpen(); !errors.Is(err, ErrNotStarting) {
		t.Errorf("ToOpen() from IDLE error = %v, want ErrNotStarting", err)
	}
}

func TestLifecycle_ErrorPath(t *testing.T) {
	l := NewLifecycle()
	l.ToStarting()

	if !l.ToError() {
		t.Fatal("ToError() = false, want true")
	}
	if got := l.State(); got != StateError {
		t.Fatalf("state = %v, want ERROR", got)
	}
	if !l.IsTerminal() {
		t.Error("IsTerminal() = false after ToError")
	}

	// Already terminal: a second failure is a no-op.
	if l.ToError() {
		t.Error("ToError() on terminal lifecycle = true, want false")
	}

	l.ToClosed()
	if got := l.State(); got != StateClosed {
		t.Fatalf("state = %v, want CLOSED", got)
	}
}

func TestLifecycle_ToClosing_IdempotentOnceTerminal(t *testing.T) {
	l := NewLifecycle()
	l.ToStarting()
	l.ToError()

	l.ToClosing()
	if got := l.State(); got != StateError {
		t.Errorf("ToClosing() overwrote terminal state, got %v", got)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateStarting, "STARTING"},
		{StateOpen, "OPEN"},
		{StateClosing, "CLOSING"},
		{StateError, "ERROR"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	for _, s := range []State{StateClosing, StateError, StateClosed} {
		if !s.IsTerminal() {
			t.Errorf("%v.IsTerminal() = false, want true", s)
		}
	}
	for _, s := range []State{StateIdle, StateStarting, StateOpen} {
		if s.IsTerminal() {
			t.Errorf("%v.IsTerminal() = true, want false", s)
		}
	}
}
