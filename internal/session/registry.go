package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stebratori/jobBolt-backend/internal/events"
	"github.com/stebratori/jobBolt-backend/internal/models"
	"github.com/stebratori/jobBolt-backend/internal/observability/logging"
	"github.com/stebratori/jobBolt-backend/internal/observability/metrics"
	"github.com/stebratori/jobBolt-backend/internal/stt"
)

// ErrSessionUnavailable reports that the upstream handshake failed or
// timed out. Recoverable: the next SendAudio for the key starts a
// fresh connection.
var ErrSessionUnavailable = errors.New("session unavailable")

// TranscriptSink receives transcript events for one session, in the
// order the upstream emits them.
type TranscriptSink func(ev models.TranscriptEvent)

// Config holds registry tuning knobs.
type Config struct {
	StartupTimeout time.Duration // bounded wait for the upstream handshake
	FrameQueueSize int           // frames buffered while STARTING
	IdleTimeout    time.Duration // sessions without audio past this are reaped
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StartupTimeout: 10 * time.Second,
		FrameQueueSize: 256,
		IdleTimeout:    2 * time.Minute,
	}
}

// Registry owns the key→connection map. It guarantees at most one live
// upstream connection per session key: concurrent callers racing to
// create a session converge on the single in-flight entry instead of
// opening a second connection.
type Registry struct {
	cfg       Config
	factory   stt.Factory
	publisher *events.Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	sinks    map[string]TranscriptSink
}

// Session is one logical audio-relay lifecycle tied to a session key.
// It owns its upstream connection exclusively.
type Session struct {
	key       string
	registry  *Registry
	engine    stt.Engine
	lifecycle *Lifecycle
	createdAt time.Time

	mu        sync.Mutex
	queue     [][]byte
	lastAudio time.Time
	opened    bool
	startErr  error

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRegistry creates a registry backed by the given engine factory.
// publisher may be nil to skip event mirroring.
func NewRegistry(cfg Config, factory stt.Factory, publisher *events.Publisher) *Registry {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultConfig().StartupTimeout
	}
	if cfg.FrameQueueSize <= 0 {
		cfg.FrameQueueSize = DefaultConfig().FrameQueueSize
	}
	return &Registry{
		cfg:       cfg,
		factory:   factory,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("session-registry"),
		sessions:  make(map[string]*Session),
		sinks:     make(map[string]TranscriptSink),
	}
}

// Bind registers the transcript sink for a session key. Events for the
// key are dropped while no sink is bound.
func (r *Registry) Bind(key string, sink TranscriptSink) {
	r.mu.Lock()
	r.sinks[key] = sink
	r.mu.Unlock()
}

// Unbind removes the transcript sink for a session key.
func (r *Registry) Unbind(key string) {
	r.mu.Lock()
	delete(r.sinks, key)
	r.mu.Unlock()
}

// EnsureSession returns the live (or starting) session for key,
// creating one if none exists. The check-and-insert is atomic: two
// callers racing for the same key get the same session.
func (r *Registry) EnsureSession(key string) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[key]; ok && !s.lifecycle.IsTerminal() {
		r.mu.Unlock()
		return s, nil
	}

	engine, err := r.factory()
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	s := &Session{
		key:       key,
		registry:  r,
		engine:    engine,
		lifecycle: NewLifecycle(),
		createdAt: time.Now(),
		lastAudio: time.Now(),
		ready:     make(chan struct{}),
	}
	s.lifecycle.ToStarting()
	r.sessions[key] = s
	r.mu.Unlock()

	r.log.Info().Str("sessionKey", key).Msg("Starting upstream session")
	go r.startSession(s)

	return s, nil
}

// SendAudio forwards one audio frame for key, creating the session on
// first use. Frames arriving while the session is STARTING are queued
// and flushed in arrival order once the handshake confirms.
func (r *Registry) SendAudio(ctx context.Context, key string, frame []byte) error {
	s, err := r.EnsureSession(key)
	if err != nil {
		return err
	}

	r.metrics.RecordAudioReceived(len(frame))

	s.mu.Lock()
	s.lastAudio = time.Now()

	switch s.lifecycle.State() {
	case StateStarting:
		if len(s.queue) >= r.cfg.FrameQueueSize {
			s.mu.Unlock()
			return fmt.Errorf("frame queue full for %s: %w", key, ErrSessionUnavailable)
		}
		s.queue = append(s.queue, frame)
		r.metrics.FramesQueued.Inc()
		s.mu.Unlock()
		return nil

	case StateOpen:
		err := s.engine.SendAudio(ctx, frame)
		s.mu.Unlock()
		if err != nil {
			r.teardown(s, fmt.Errorf("upstream send: %w", err))
			return fmt.Errorf("send audio for %s: %w", key, err)
		}
		return nil

	default:
		err := s.startErr
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("session %s: %w: %s", key, ErrSessionUnavailable, err)
		}
		return fmt.Errorf("session %s: %w", key, ErrSessionUnavailable)
	}
}

// CloseSession tears down the session for key, if any. Called on
// client disconnect or explicit stop so no upstream connection
// outlives its client.
func (r *Registry) CloseSession(key string) {
	r.mu.Lock()
	s := r.sessions[key]
	r.mu.Unlock()

	if s != nil {
		r.teardown(s, nil)
	}
}

// ActiveSessions returns the number of non-terminal sessions.
func (r *Registry) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		if !s.lifecycle.IsTerminal() {
			n++
		}
	}
	return n
}

// StartReaper runs the idle-session reaper until ctx is cancelled.
func (r *Registry) StartReaper(ctx context.Context) {
	if r.cfg.IdleTimeout <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(r.cfg.IdleTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.reapIdle()
			}
		}
	}()
}

// Shutdown tears down every live session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		r.teardown(s, nil)
	}
}

func (r *Registry) reapIdle() {
	r.mu.Lock()
	var idle []*Session
	for _, s := range r.sessions {
		s.mu.Lock()
		last := s.lastAudio
		s.mu.Unlock()
		if s.lifecycle.State() == StateOpen && time.Since(last) > r.cfg.IdleTimeout {
			idle = append(idle, s)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		r.log.Info().Str("sessionKey", s.key).Msg("Reaping idle session")
		r.teardown(s, nil)
	}
}

// startSession runs the upstream handshake with a bounded wait, then
// flushes queued frames in arrival order before the session goes OPEN.
func (r *Registry) startSession(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StartupTimeout)
	defer cancel()

	start := time.Now()
	err := s.engine.Start(ctx, s)

	s.mu.Lock()
	if err != nil {
		s.startErr = err
		dropped := len(s.queue)
		s.queue = nil
		r.metrics.FramesQueued.Sub(float64(dropped))
		s.lifecycle.ToError()
		s.lifecycle.ToClosed()
		s.signalReady()
		s.mu.Unlock()

		r.metrics.SessionStartupFailures.Inc()
		r.log.Error().Err(err).
			Str("sessionKey", s.key).
			Int("droppedFrames", dropped).
			Msg("Upstream handshake failed, pending frames unavailable")
		r.remove(s)
		return
	}

	// Flush under the session lock so new SendAudio calls cannot
	// overtake queued frames.
	for len(s.queue) > 0 {
		frame := s.queue[0]
		s.queue = s.queue[1:]
		r.metrics.FramesQueued.Dec()
		if err := s.engine.SendAudio(context.Background(), frame); err != nil {
			s.startErr = err
			dropped := len(s.queue)
			s.queue = nil
			r.metrics.FramesQueued.Sub(float64(dropped))
			s.lifecycle.ToError()
			s.lifecycle.ToClosed()
			s.signalReady()
			s.mu.Unlock()

			r.log.Error().Err(err).
				Str("sessionKey", s.key).
				Msg("Flush of queued frames failed")
			s.engine.Close()
			r.remove(s)
			return
		}
	}

	// Teardown may have won the race while the handshake was still in
	// flight; the session is terminal and must not be marked open.
	if err := s.lifecycle.ToOpen(); err != nil {
		s.signalReady()
		s.mu.Unlock()

		s.engine.Close()
		r.log.Info().
			Str("sessionKey", s.key).
			Msg("Session closed before handshake completed")
		r.remove(s)
		return
	}
	s.opened = true
	s.signalReady()
	s.mu.Unlock()

	r.metrics.RecordSessionStarted(time.Since(start).Seconds())
	r.log.Info().
		Str("sessionKey", s.key).
		Dur("handshake", time.Since(start)).
		Msg("Upstream session open")
}

// teardown closes a session's upstream connection and clears its
// registry entry so the next SendAudio can recover with a fresh one.
// Safe to call multiple times.
func (r *Registry) teardown(s *Session, cause error) {
	s.mu.Lock()
	if s.lifecycle.IsTerminal() {
		s.mu.Unlock()
		return
	}
	if cause != nil {
		s.startErr = cause
		s.lifecycle.ToError()
	} else {
		s.lifecycle.ToClosing()
	}
	dropped := len(s.queue)
	s.queue = nil
	r.metrics.FramesQueued.Sub(float64(dropped))
	s.lifecycle.ToClosed()
	s.signalReady()
	wasOpen := s.opened
	s.mu.Unlock()

	if err := s.engine.Close(); err != nil {
		r.log.Warn().Err(err).Str("sessionKey", s.key).Msg("Error closing upstream engine")
	}
	if wasOpen {
		r.metrics.RecordSessionClosed()
	}

	evt := r.log.Info()
	if cause != nil {
		evt = r.log.Warn().Err(cause)
	}
	evt.Str("sessionKey", s.key).
		Dur("lifetime", time.Since(s.createdAt)).
		Msg("Session closed")

	r.remove(s)
}

// remove deletes the entry only if it still maps to this instance, so
// a replacement session is never clobbered.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.key]; ok && cur == s {
		delete(r.sessions, s.key)
	}
	r.mu.Unlock()
}

func (r *Registry) deliver(key string, ev models.TranscriptEvent) {
	r.metrics.RecordTranscript(ev.IsFinal)

	r.mu.Lock()
	sink := r.sinks[key]
	r.mu.Unlock()

	if sink != nil {
		sink(ev)
	}

	if ev.IsFinal && r.publisher != nil {
		if err := r.publisher.PublishTranscript(context.Background(), key, ev); err != nil {
			r.log.Warn().Err(err).Str("sessionKey", key).Msg("Failed to mirror final transcript")
		}
	}
}

// --- stt.Callback implementation ---

// OnOpen records the upstream-confirmed session ID.
func (s *Session) OnOpen(sessionID string) {
	s.registry.log.Info().
		Str("sessionKey", s.key).
		Str("upstreamSessionId", sessionID).
		Msg("Upstream session confirmed")
}

// OnTranscript forwards a transcript event toward the bound sink.
// Events are delivered in upstream emission order; finals mark
// committed utterances.
func (s *Session) OnTranscript(text string, isFinal bool) {
	ev := models.NewTranscriptEvent(s.key, text, isFinal, time.Now().UnixMilli())
	s.registry.deliver(s.key, ev)
}

// OnError tears the session down. The failure is recoverable: the next
// SendAudio for this key starts a fresh connection.
func (s *Session) OnError(err error) {
	s.registry.metrics.SessionUpstreamErrors.Inc()
	s.registry.teardown(s, fmt.Errorf("upstream stream error: %w", err))
}

// OnClose finalizes the session after an upstream-initiated close.
func (s *Session) OnClose(code int, reason string) {
	s.registry.log.Info().
		Str("sessionKey", s.key).
		Int("code", code).
		Str("reason", reason).
		Msg("Upstream closed session")
	s.registry.teardown(s, nil)
}

// State exposes the lifecycle state, mainly for tests and diagnostics.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// Ready returns a channel closed once the handshake resolves, either
// into OPEN or into a terminal state.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) signalReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}
