package assemblyai

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stebratori/jobBolt-backend/internal/stt"
)

// recordingCallback captures callback invocations.
type recordingCallback struct {
	mu          sync.Mutex
	sessionID   string
	transcripts []struct {
		text    string
		isFinal bool
	}
	errs   []error
	closed bool
}

func (c *recordingCallback) OnOpen(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

func (c *recordingCallback) OnTranscript(text string, isFinal bool) {
	c.mu.Lock()
	c.transcripts = append(c.transcripts, struct {
		text    string
		isFinal bool
	}{text, isFinal})
	c.mu.Unlock()
}

func (c *recordingCallback) OnError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *recordingCallback) OnClose(int, string) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{}

// fakeRealtimeServer mimics the provider's realtime handshake and
// scripted transcript flow.
func fakeRealtimeServer(t *testing.T, script func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(conn, r)
	}))
}

func wsEndpoint(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testEngineConfig() stt.Config {
	return stt.Config{APIKey: "test-key", SampleRateHz: 16000, LanguageCode: "en-US"}
}

func TestStart_HandshakeAndTranscripts(t *testing.T) {
	frames := make(chan string, 1)
	srv := fakeRealtimeServer(t, func(conn *websocket.Conn, r *http.Request) {
		if got := r.URL.Query().Get("sample_rate"); got != "16000" {
			t.Errorf("sample_rate = %q, want 16000", got)
		}
		if got := r.Header.Get("Authorization"); got != "test-key" {
			t.Errorf("Authorization = %q, want test-key", got)
		}

		conn.WriteJSON(realtimeMessage{MessageType: msgSessionBegins, SessionID: "sess-42"})

		var msg audioMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("read audio: %v", err)
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(msg.AudioData)
		if err != nil {
			t.Errorf("decode audio: %v", err)
			return
		}
		frames <- string(decoded)

		conn.WriteJSON(realtimeMessage{MessageType: msgPartialTranscript, Text: "hel"})
		conn.WriteJSON(realtimeMessage{MessageType: msgFinalTranscript, Text: "hello"})
		conn.WriteJSON(realtimeMessage{MessageType: msgSessionTerminated})
	})
	defer srv.Close()

	engine := NewWithEndpoint(testEngineConfig(), wsEndpoint(srv))
	cb := &recordingCallback{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := engine.Start(ctx, cb); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Close()

	cb.mu.Lock()
	sessionID := cb.sessionID
	cb.mu.Unlock()
	if sessionID != "sess-42" {
		t.Errorf("sessionID = %q, want sess-42", sessionID)
	}

	if err := engine.SendAudio(context.Background(), []byte("pcm-bytes")); err != nil {
		t.Fatalf("SendAudio() error = %v", err)
	}
	select {
	case got := <-frames:
		if got != "pcm-bytes" {
			t.Errorf("server received %q, want pcm-bytes", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the audio frame")
	}

	// Wait for the scripted transcript flow to land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		cb.mu.Lock()
		n, closed := len(cb.transcripts), cb.closed
		cb.mu.Unlock()
		if n >= 2 && closed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transcripts=%d closed=%v after timeout", n, closed)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.transcripts[0].text != "hel" || cb.transcripts[0].isFinal {
		t.Errorf("transcript 0 = %+v, want partial 'hel'", cb.transcripts[0])
	}
	if cb.transcripts[1].text != "hello" || !cb.transcripts[1].isFinal {
		t.Errorf("transcript 1 = %+v, want final 'hello'", cb.transcripts[1])
	}
}

func TestStart_RefusedHandshake(t *testing.T) {
	srv := fakeRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.WriteJSON(realtimeMessage{MessageType: "SessionRefused", Error: "bad api key"})
	})
	defer srv.Close()

	engine := NewWithEndpoint(testEngineConfig(), wsEndpoint(srv))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := engine.Start(ctx, &recordingCallback{})
	if err == nil {
		t.Fatal("Start() succeeded against a refused handshake")
	}
	if !strings.Contains(err.Error(), "SessionRefused") {
		t.Errorf("error = %v, want refused-handshake message", err)
	}
}

func TestStart_HandshakeTimeout(t *testing.T) {
	srv := fakeRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		// Never send SessionBegins.
		time.Sleep(2 * time.Second)
	})
	defer srv.Close()

	engine := NewWithEndpoint(testEngineConfig(), wsEndpoint(srv))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := engine.Start(ctx, &recordingCallback{})
	if err == nil {
		t.Fatal("Start() succeeded without a handshake")
	}
}

func TestSendAudio_BeforeStart(t *testing.T) {
	engine := New(testEngineConfig())

	if err := engine.SendAudio(context.Background(), []byte("pcm")); err == nil {
		t.Fatal("SendAudio() before Start succeeded")
	}
}

func TestClose_SendsTerminate(t *testing.T) {
	terminated := make(chan bool, 1)
	srv := fakeRealtimeServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.WriteJSON(realtimeMessage{MessageType: msgSessionBegins, SessionID: "s"})

		var msg terminateMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		terminated <- msg.TerminateSession
	})
	defer srv.Close()

	engine := NewWithEndpoint(testEngineConfig(), wsEndpoint(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := engine.Start(ctx, &recordingCallback{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case got := <-terminated:
		if !got {
			t.Error("terminate_session = false, want true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the terminate message")
	}

	// Idempotent.
	if err := engine.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
