// Package relay bridges client-facing websocket connections to the
// session registry: inbound audio frames flow upstream, transcript
// events flow back, keyed by the companyId handshake parameter.
package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stebratori/jobBolt-backend/internal/models"
	"github.com/stebratori/jobBolt-backend/internal/observability/logging"
	"github.com/stebratori/jobBolt-backend/internal/observability/metrics"
	"github.com/stebratori/jobBolt-backend/internal/session"
)

// pingMessage is the keepalive sent to clients so intermediate
// infrastructure does not drop idle connections.
var pingMessage = []byte(`{"type":"ping"}`)

// Config holds relay tuning knobs.
type Config struct {
	KeepaliveInterval time.Duration
	WriteTimeout      time.Duration
	MaxFrameBytes     int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeepaliveInterval: 50 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxFrameBytes:     1 << 20,
	}
}

// Relay owns the client connection map and drives the per-connection
// lifecycle against the session registry.
type Relay struct {
	cfg      Config
	registry *session.Registry
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	key  string
	conn *websocket.Conn

	// writeMu serializes writes; gorilla connections allow only one
	// concurrent writer.
	writeMu sync.Mutex
	closed  bool
}

// New creates a relay bound to the given registry.
func New(cfg Config, registry *session.Registry) *Relay {
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultConfig().KeepaliveInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Relay{
		cfg:      cfg,
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: metrics.DefaultMetrics,
		log:     logging.WithComponent("relay"),
		clients: make(map[string]*client),
	}
}

// HandleWS upgrades the connection and runs the relay loop until the
// client disconnects. The session key comes from the companyId query
// parameter; a missing key refuses the handshake.
func (r *Relay) HandleWS(w http.ResponseWriter, req *http.Request) {
	key := req.URL.Query().Get("companyId")
	if key == "" {
		r.log.Error().Str("remote", req.RemoteAddr).Msg("Websocket handshake missing companyId")
		http.Error(w, "companyId query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Error().Err(err).Str("sessionKey", key).Msg("Websocket upgrade failed")
		return
	}

	c := &client{key: key, conn: conn}
	r.register(c)
	r.metrics.RecordClientConnected()

	log := logging.WithSession("relay", key)
	log.Info().Msg("Client connected")

	// Transcript events for this key flow back onto this connection.
	// Sends after the client has gone are no-ops.
	r.registry.Bind(key, func(ev models.TranscriptEvent) {
		r.send(c, ev)
	})

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	go r.keepalive(ctx, c)

	if r.cfg.MaxFrameBytes > 0 {
		conn.SetReadLimit(r.cfg.MaxFrameBytes)
	}

	// Read loop: binary messages are audio frames, forwarded in
	// arrival order. Anything else is ignored.
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("Client connection error")
			} else {
				log.Info().Msg("Client disconnected")
			}
			break
		}

		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		if err := r.registry.SendAudio(ctx, key, data); err != nil {
			// Degraded transcription is surfaced, not fatal: the next
			// frame retries with a fresh upstream session.
			log.Warn().Err(err).Msg("Audio forward failed")
		}
	}

	// Teardown: no upstream connection outlives its client. A handler
	// displaced by a same-key reconnect must leave the live client's
	// sink and session alone.
	cancel()
	if r.unregister(c) {
		r.registry.Unbind(key)
		r.registry.CloseSession(key)
	}
	r.metrics.RecordClientDisconnected()
}

// send serializes a transcript event to the client connection. If the
// connection has since closed this is a no-op.
func (r *Relay) send(c *client, ev models.TranscriptEvent) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(ev); err != nil {
		r.metrics.RelaySendFailures.Inc()
		r.log.Debug().Err(err).Str("sessionKey", c.key).Msg("Transcript send failed, client gone")
		c.closed = true
	}
}

// keepalive pings the client on a fixed interval, independent of
// transcription activity.
func (r *Relay) keepalive(ctx context.Context, c *client) {
	ticker := time.NewTicker(r.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			if c.closed {
				c.writeMu.Unlock()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
			err := c.conn.WriteMessage(websocket.TextMessage, pingMessage)
			if err != nil {
				c.closed = true
			}
			c.writeMu.Unlock()
			if err != nil {
				return
			}
			r.metrics.KeepalivesSent.Inc()
		}
	}
}

// ConnectedClients returns the number of registered client
// connections.
func (r *Relay) ConnectedClients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Relay) register(c *client) {
	r.mu.Lock()
	// A reconnect for the same key replaces the stale entry. Closing
	// the displaced socket ends its read loop promptly instead of
	// waiting for the peer to time out.
	if old, ok := r.clients[c.key]; ok {
		old.writeMu.Lock()
		old.closed = true
		old.writeMu.Unlock()
		old.conn.Close()
	}
	r.clients[c.key] = c
	r.mu.Unlock()
}

// unregister marks the client closed and removes its entry. Returns
// false when a reconnect has already replaced this client, meaning the
// key's sink and session now belong to the replacement.
func (r *Relay) unregister(c *client) bool {
	c.writeMu.Lock()
	c.closed = true
	c.writeMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.clients[c.key]; ok && cur == c {
		delete(r.clients, c.key)
		return true
	}
	return false
}
