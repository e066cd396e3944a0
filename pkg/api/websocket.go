package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edgewatch/vigil/pkg/models"
	"github.com/edgewatch/vigil/pkg/store"
)

// wsMessage is the server-to-client envelope.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// wsClientMessage is the client-to-server envelope.
type wsClientMessage struct {
	Type string `json:"type"`
}

// WSManager manages WebSocket connections and streams published records
// to them. Each process has one WSManager; its Run loop is the single
// consumer of the store subscription and fans records out to every
// connection.
type WSManager struct {
	store        store.SharedStore
	initialBatch int
	writeTimeout time.Duration

	mu      sync.RWMutex
	conns   map[string]*wsConn
	running atomic.Bool
}

// seenLimit caps the per-connection dedupe state. Broker redelivery of a
// record is only plausible within a short window, so evicting the oldest
// ids keeps long-lived dashboard connections from growing without bound.
const seenLimit = 2048

// wsConn is a single WebSocket client.
type wsConn struct {
	id   string
	conn *websocket.Conn

	// writeMu serializes writes; seen holds record ids already delivered
	// on this connection so broker-level at-least-once delivery stays
	// exactly-once per client.
	writeMu   sync.Mutex
	seen      map[string]bool
	seenOrder []string
}

// markSeenLocked records delivery of id, evicting the oldest entries past
// seenLimit. Callers hold writeMu.
func (c *wsConn) markSeenLocked(id string) {
	if c.seen[id] {
		return
	}
	c.seen[id] = true
	c.seenOrder = append(c.seenOrder, id)
	for len(c.seenOrder) > seenLimit {
		delete(c.seen, c.seenOrder[0])
		c.seenOrder = c.seenOrder[1:]
	}
}

// NewWSManager creates the manager. initialBatch is how many recent
// records a new connection receives on connect.
func NewWSManager(sharedStore store.SharedStore, initialBatch int, writeTimeout time.Duration) *WSManager {
	return &WSManager{
		store:        sharedStore,
		initialBatch: initialBatch,
		writeTimeout: writeTimeout,
		conns:        make(map[string]*wsConn),
	}
}

// Run consumes the store subscription and broadcasts each published
// record. Blocks until ctx is cancelled or the store closes.
func (m *WSManager) Run(ctx context.Context) error {
	sub, err := m.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	m.running.Store(true)
	defer m.running.Store(false)
	defer m.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case record, ok := <-sub.Records():
			if !ok {
				return nil
			}
			m.broadcast(record)
		}
	}
}

// Running reports whether the broadcast loop is consuming publications.
func (m *WSManager) Running() bool {
	return m.running.Load()
}

// ActiveConnections returns the number of connected clients.
func (m *WSManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// handleWS upgrades the HTTP connection and hands it to the manager.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// Origin validation is delegated to the fronting proxy.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	// Blocks until the client disconnects.
	s.ws.HandleConnection(c.Request.Context(), conn)
}

// HandleConnection manages one client: the initial batch, then the read
// loop for client messages. Blocks until the connection closes.
func (m *WSManager) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	c := &wsConn{
		id:   uuid.New().String(),
		conn: conn,
		seen: make(map[string]bool),
	}

	m.register(c)
	defer m.unregister(c)
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := m.sendInitialBatch(ctx, c); err != nil {
		slog.Warn("WebSocket initial batch failed", "connection_id", c.id, "error", err)
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message", "connection_id", c.id, "error", err)
			continue
		}
		if msg.Type == "ping" {
			if err := m.send(c, wsMessage{Type: "pong"}); err != nil {
				return
			}
		}
	}
}

// sendInitialBatch delivers the last K records so a fresh dashboard has
// state before the live stream starts. Delivered ids are marked seen so
// a concurrent publication is not duplicated.
func (m *WSManager) sendInitialBatch(ctx context.Context, c *wsConn) error {
	records, err := m.store.Recent(ctx, m.initialBatch)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	for _, record := range records {
		c.markSeenLocked(record.ID())
	}
	c.writeMu.Unlock()

	return m.send(c, wsMessage{Type: "initial_batch", Data: records})
}

// broadcast delivers a published record to every connection that has not
// already received it.
func (m *WSManager) broadcast(record *models.EnhancedAnalysisRecord) {
	m.mu.RLock()
	conns := make([]*wsConn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := m.sendRecord(c, record); err != nil {
			slog.Warn("WebSocket send failed", "connection_id", c.id, "error", err)
		}
	}
}

// sendRecord sends a new_threat message unless this connection already
// received the record.
func (m *WSManager) sendRecord(c *wsConn, record *models.EnhancedAnalysisRecord) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.seen[record.ID()] {
		return nil
	}
	c.markSeenLocked(record.ID())
	return m.writeLocked(c, wsMessage{Type: "new_threat", Data: record})
}

func (m *WSManager) send(c *wsConn, msg wsMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return m.writeLocked(c, msg)
}

// writeLocked marshals and writes under the connection's write mutex,
// bounded by the write timeout so one stalled client cannot back up the
// broadcast loop.
func (m *WSManager) writeLocked(c *wsConn, msg wsMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (m *WSManager) register(c *wsConn) {
	m.mu.Lock()
	m.conns[c.id] = c
	m.mu.Unlock()
	slog.Debug("WebSocket client connected", "connection_id", c.id)
}

func (m *WSManager) unregister(c *wsConn) {
	m.mu.Lock()
	delete(m.conns, c.id)
	m.mu.Unlock()
	slog.Debug("WebSocket client disconnected", "connection_id", c.id)
}

// closeAll force-closes every connection; used when the broadcast loop
// exits.
func (m *WSManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.conns {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(m.conns, id)
	}
}
