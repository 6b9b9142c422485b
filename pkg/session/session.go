// Package session owns the realtime chat surface. Each WebSocket client
// gets one Session: a goroutine pair pumping a typed event protocol, a
// sticky backend selector, and a context that dies with the connection
// so in-flight generations stop when the user leaves.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/docent-ai/docent/pkg/config"
	"github.com/docent-ai/docent/pkg/llms"
	"github.com/docent-ai/docent/pkg/observability"
	"github.com/docent-ai/docent/pkg/orchestrator"
)

const (
	maxMessageBytes = 64 << 10
	pingInterval    = 15 * time.Second
	pongWait        = 45 * time.Second
	writeWait       = 10 * time.Second
)

// Responder is the slice of the orchestrator the chat surface needs.
type Responder interface {
	Answer(ctx context.Context, q orchestrator.Query) (<-chan llms.StreamChunk, error)
	DefaultBackend() string
}

// Hub upgrades chat connections and tracks live sessions.
type Hub struct {
	responder Responder
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub builds the WebSocket endpoint handler.
func NewHub(responder Responder) *Hub {
	return &Hub{
		responder: responder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		sessions: make(map[string]*Session),
	}
}

// ServeHTTP upgrades the request and runs the session until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade rejected", "remote", r.RemoteAddr, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	s := &Session{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 64),
		ctx:     ctx,
		cancel:  cancel,
		id:      uuid.NewString(),
		backend: h.responder.DefaultBackend(),
	}

	h.add(s)
	defer h.remove(s)
	s.run()
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown force-closes every live connection. In-flight turns observe
// their session context cancel.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	live := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		live = append(live, s)
	}
	h.mu.Unlock()

	for _, s := range live {
		s.cancel()
		_ = s.conn.Close()
	}
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.id)
}

// Session is one connected chat client.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	id string

	mu      sync.Mutex
	backend string
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

// Backend returns the session's current backend selector.
func (s *Session) Backend() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend
}

func (s *Session) run() {
	slog.Info("Chat session opened", "session_id", s.id, "backend", s.Backend())
	if m := observability.GetGlobalMetrics(); m != nil {
		m.SessionOpened(s.ctx)
		defer m.SessionClosed(context.Background())
	}
	defer s.close()

	go s.writeLoop()
	s.sendEvent(EventSystem, welcomeMessage)
	s.readLoop()
}

// close tears the session down. Only run calls it, after readLoop has
// returned, so nothing can still be writing to send.
func (s *Session) close() {
	s.cancel()
	close(s.send)
	_ = s.conn.Close()
	slog.Info("Chat session closed", "session_id", s.id)
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(maxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WebSocket read ended", "session_id", s.id, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleMessage(data)
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage runs one chat turn. Turns execute sequentially in the
// read loop, so a session's events never interleave.
func (s *Session) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendEvent(EventError, "Invalid message format")
		return
	}

	backend := s.selectBackend(msg.UseLangchain)
	slog.Info("Chat message received",
		"session_id", s.id,
		"backend", backend,
		"sources", msg.Sources,
		"preview", preview(msg.Message, 80))

	if strings.TrimSpace(msg.Message) == "" {
		return
	}

	s.sendEvent(EventUser, msg.Message)
	s.sendEvent(EventTyping, fmt.Sprintf("AI is typing... (%s system)", backend))

	answer, err := s.collectAnswer(orchestrator.Query{
		Message: msg.Message,
		Backend: backend,
		Sources: msg.Sources,
	})
	if err != nil {
		slog.Warn("Chat turn failed", "session_id", s.id, "error", err)
		s.sendEvent(EventError, "Error processing message: "+err.Error())
		return
	}
	s.sendEvent(EventAI, answer)
}

// collectAnswer drains the orchestrator's delta stream into the single
// answer the event protocol delivers.
func (s *Session) collectAnswer(q orchestrator.Query) (string, error) {
	ch, err := s.hub.responder.Answer(s.ctx, q)
	if err != nil {
		return "", err
	}

	var answer strings.Builder
	for chunk := range ch {
		switch chunk.Type {
		case "text":
			answer.WriteString(chunk.Text)
		case "error":
			return "", chunk.Err
		}
	}
	return answer.String(), nil
}

// selectBackend resolves the backend for this turn. An explicit
// useLangchain flag also repoints the session for subsequent turns.
func (s *Session) selectBackend(useLangchain *bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if useLangchain != nil {
		if *useLangchain {
			s.backend = config.BackendFramework
		} else {
			s.backend = config.BackendManual
		}
	}
	return s.backend
}

func (s *Session) sendEvent(eventType, message string) {
	data, err := json.Marshal(Event{Type: eventType, Message: message})
	if err != nil {
		return
	}

	select {
	case s.send <- data:
		if m := observability.GetGlobalMetrics(); m != nil {
			m.RecordWSMessage(s.ctx, eventType)
		}
	case <-s.ctx.Done():
	}
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
