// Package assemblyai provides a streaming speech-to-text engine backed
// by the AssemblyAI realtime websocket API.
package assemblyai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stebratori/jobBolt-backend/internal/stt"
)

const defaultEndpoint = "wss://api.assemblyai.com/v2/realtime/ws"

// Message types emitted by the realtime API.
const (
	msgSessionBegins     = "SessionBegins"
	msgPartialTranscript = "PartialTranscript"
	msgFinalTranscript   = "FinalTranscript"
	msgSessionTerminated = "SessionTerminated"
)

type realtimeMessage struct {
	MessageType string `json:"message_type"`
	SessionID   string `json:"session_id,omitempty"`
	Text        string `json:"text,omitempty"`
	Error       string `json:"error,omitempty"`
}

type audioMessage struct {
	AudioData string `json:"audio_data"`
}

type terminateMessage struct {
	TerminateSession bool `json:"terminate_session"`
}

// Engine implements stt.Engine against the AssemblyAI realtime API.
type Engine struct {
	cfg      stt.Config
	endpoint string

	mu     sync.Mutex
	conn   *websocket.Conn
	cb     stt.Callback
	closed bool
}

// New creates an engine for one realtime session.
func New(cfg stt.Config) *Engine {
	return &Engine{cfg: cfg, endpoint: defaultEndpoint}
}

// NewWithEndpoint creates an engine against a custom endpoint. Used by
// tests to point at a local websocket server.
func NewWithEndpoint(cfg stt.Config, endpoint string) *Engine {
	return &Engine{cfg: cfg, endpoint: endpoint}
}

// Start dials the realtime endpoint and waits for the SessionBegins
// handshake. The context bounds the full handshake, dial included.
func (e *Engine) Start(ctx context.Context, cb stt.Callback) error {
	endpoint, err := url.Parse(e.endpoint)
	if err != nil {
		return err
	}
	q := endpoint.Query()
	q.Set("sample_rate", fmt.Sprintf("%d", e.cfg.SampleRateHz))
	endpoint.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", e.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("realtime dial rejected (%d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("realtime dial: %w", err)
	}

	e.mu.Lock()
	e.conn = conn
	e.cb = cb
	e.mu.Unlock()

	// The first message on the socket must be SessionBegins. Anything
	// else means the session was refused.
	opened := make(chan error, 1)
	go func() {
		var msg realtimeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			opened <- fmt.Errorf("realtime handshake read: %w", err)
			return
		}
		if msg.MessageType != msgSessionBegins {
			opened <- fmt.Errorf("unexpected handshake message %q: %s", msg.MessageType, msg.Error)
			return
		}
		cb.OnOpen(msg.SessionID)
		opened <- nil
	}()

	select {
	case err := <-opened:
		if err != nil {
			conn.Close()
			return err
		}
	case <-ctx.Done():
		conn.Close()
		return fmt.Errorf("realtime handshake: %w", ctx.Err())
	}

	go e.readLoop(conn, cb)
	return nil
}

// SendAudio forwards one PCM frame, base64-wrapped per the realtime
// protocol.
func (e *Engine) SendAudio(ctx context.Context, audio []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.conn == nil {
		return errors.New("session not open")
	}
	if deadline, ok := ctx.Deadline(); ok {
		e.conn.SetWriteDeadline(deadline)
	}
	return e.conn.WriteJSON(audioMessage{
		AudioData: base64.StdEncoding.EncodeToString(audio),
	})
}

// Close sends the terminate message and closes the socket.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.conn == nil {
		return nil
	}

	// Best effort: the provider flushes pending finals on terminate.
	e.conn.WriteJSON(terminateMessage{TerminateSession: true})
	return e.conn.Close()
}

func (e *Engine) readLoop(conn *websocket.Conn, cb stt.Callback) {
	for {
		var msg realtimeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			e.mu.Lock()
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				cb.OnClose(closeErr.Code, closeErr.Text)
			} else {
				cb.OnError(err)
			}
			return
		}

		switch msg.MessageType {
		case msgPartialTranscript:
			if msg.Text != "" {
				cb.OnTranscript(msg.Text, false)
			}
		case msgFinalTranscript:
			if msg.Text != "" {
				cb.OnTranscript(msg.Text, true)
			}
		case msgSessionTerminated:
			cb.OnClose(websocket.CloseNormalClosure, "session terminated")
			return
		default:
			if msg.Error != "" {
				cb.OnError(errors.New(msg.Error))
				return
			}
		}
	}
}
