package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/govee-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-bridge/internal/infrastructure/logging"
)

const (
	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	// snapshotTimeout bounds the Source reads made for a subscribe.
	snapshotTimeout = 2 * time.Second
)

// Hub fans platform events out to stream clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	seq     atomic.Uint64
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// snapshot reads the current state for a set of channels.
	snapshot func(ctx context.Context, channels []string) (*StreamSnapshot, error)

	mu     sync.Mutex
	closed bool
	subs   map[string]struct{}
}

// NewHub creates a new stream hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Broadcast delivers a platform event to the clients subscribed to channel.
// Payloads the stream has no envelope for are dropped.
func (h *Hub) Broadcast(channel string, payload any) {
	msg, err := eventFor(channel, payload)
	if err != nil {
		h.logger.Warn("dropping stream event", "channel", channel, "error", err)
		return
	}
	msg.Seq = h.seq.Add(1)
	msg.Time = time.Now().UTC()

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal stream event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.subscribed(channel) {
			c.enqueue(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("stream client disconnected", "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		c.conn.Close()
	}
}

// checkOrigin admits same-host browsers, non-browser clients and any
// origin listed in the stream config.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := s.wsCfg.AllowedOrigins
	if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// handleWebSocket upgrades the request to a stream connection.
// Clients receive nothing until they subscribe.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		snapshot: s.streamSnapshot,
		subs:     make(map[string]struct{}),
	}
	s.hub.register(c)

	go c.writePump(s.wsCfg)
	go c.readPump(s.wsCfg)
}

// streamSnapshot reads the state a new subscription to channels starts from.
func (s *Server) streamSnapshot(ctx context.Context, channels []string) (*StreamSnapshot, error) {
	snap := &StreamSnapshot{}
	if wantsDevices(channels) {
		devices, err := s.source.Devices(ctx)
		if err != nil {
			return nil, err
		}
		snap.Devices = devices
	}
	if wantsScanner(channels) {
		sc, err := s.source.Scanner(ctx)
		if err != nil {
			return nil, err
		}
		snap.Scanner = &sc
	}
	return snap, nil
}

func (c *wsClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	wait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(wait))
		c.handle(data)
	}
}

func (c *wsClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(Message{Type: MessageError, Error: "invalid JSON message"})
		return
	}

	switch req.Type {
	case RequestSubscribe:
		c.subscribe(req)
	case RequestUnsubscribe:
		c.mu.Lock()
		for _, ch := range req.Channels {
			delete(c.subs, ch)
		}
		c.mu.Unlock()
		c.reply(Message{Type: MessageUnsubscribed, ID: req.ID, Channels: req.Channels})
	case RequestPing:
		c.reply(Message{Type: MessagePong, ID: req.ID})
	default:
		c.reply(Message{Type: MessageError, ID: req.ID, Error: "unknown message type: " + req.Type})
	}
}

// subscribe acknowledges the new channels and follows up with a snapshot
// of the current state for them.
func (c *wsClient) subscribe(req Request) {
	if len(req.Channels) == 0 {
		c.reply(Message{Type: MessageError, ID: req.ID, Error: "no channels given"})
		return
	}
	if ch, ok := validChannels(req.Channels); !ok {
		c.reply(Message{Type: MessageError, ID: req.ID, Error: "unknown channel: " + ch})
		return
	}

	c.mu.Lock()
	for _, ch := range req.Channels {
		c.subs[ch] = struct{}{}
	}
	c.mu.Unlock()
	c.reply(Message{Type: MessageSubscribed, ID: req.ID, Channels: req.Channels})

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	snap, err := c.snapshot(ctx, req.Channels)
	if err != nil {
		c.hub.logger.Warn("stream snapshot failed", "error", err)
		c.reply(Message{Type: MessageError, ID: req.ID, Error: "snapshot unavailable: " + err.Error()})
		return
	}
	c.reply(Message{Type: MessageSnapshot, ID: req.ID, Seq: c.hub.seq.Load(), Snapshot: snap})
}

func (c *wsClient) reply(msg Message) {
	msg.Time = time.Now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("failed to marshal stream reply", "type", msg.Type, "error", err)
		return
	}
	c.enqueue(data)
}

// enqueue drops data when the client is gone or its buffer is full.
func (c *wsClient) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Debug("stream client buffer full, dropping message")
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[ChannelAll]; ok {
		return true
	}
	_, ok := c.subs[channel]
	return ok
}
