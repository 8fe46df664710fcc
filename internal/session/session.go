package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tictactoe-rooms/internal/room"
	"tictactoe-rooms/internal/validator"
	"tictactoe-rooms/pkg/proto"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	heartbeatInterval = 10 * time.Second
	sendBufferSize    = 32
)

// Conn abstracts the websocket connection.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is one live connection. It holds the connection's binding to at
// most one room, routes its intents there, and relays room broadcasts back
// through a buffered, best-effort send queue.
type Session struct {
	id       string
	conn     Conn
	registry *room.Registry

	send      chan []byte
	closeOnce sync.Once

	mu      sync.Mutex
	current *room.Room
}

func newSession(conn Conn, registry *room.Registry) *Session {
	return &Session{
		id:       uuid.New().String(),
		conn:     conn,
		registry: registry,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Send implements room.Subscriber. It never blocks: a session that cannot
// keep up loses broadcasts rather than stalling the room.
func (s *Session) Send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("error marshalling message", "session.id", s.id, "error", err)
		return
	}
	select {
	case s.send <- data:
	default:
		slog.Warn("dropping message for slow session", "session.id", s.id)
	}
}

// readPump pumps inbound intents until the transport drops, then tears the
// session down.
func (s *Session) readPump() {
	defer s.close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			slog.Info("session connection closed", "session.id", s.id, "error", err)
			return
		}
		s.handle(data)
	}
}

// writePump drains the send queue and keeps the peer alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		}
	}
}

// handle validates one inbound payload and routes it. Malformed or
// out-of-range payloads are protocol violations: dropped without touching
// room state.
func (s *Session) handle(raw []byte) {
	_, span := tracer.Start(context.Background(), "session.handle", trace.WithAttributes(
		attribute.String("session.id", s.id),
	))
	defer span.End()

	var msg proto.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("malformed payload", "session.id", s.id, "error", err)
		return
	}
	if err := validator.GetValidator().Struct(&msg); err != nil {
		slog.Warn("invalid message", "session.id", s.id, "error", err)
		return
	}
	span.SetAttributes(attribute.String("message.type", msg.Type))

	switch msg.Type {
	case proto.IntentJoinRoom:
		s.joinRoom(&msg)
	case proto.IntentLeaveRoom:
		s.leaveRoom(msg.RoomID)
	case proto.IntentMove:
		if msg.Cell == nil {
			slog.Warn("move without cell", "session.id", s.id)
			return
		}
		if r := s.boundRoom(msg.RoomID); r != nil {
			r.Move(s.id, *msg.Cell)
		}
	case proto.IntentSurrender:
		if r := s.boundRoom(msg.RoomID); r != nil {
			r.Surrender(s.id)
		}
	case proto.IntentPromote:
		if r := s.boundRoom(msg.RoomID); r != nil {
			r.Promote(s.id)
		}
	case proto.IntentReset:
		if r := s.boundRoom(msg.RoomID); r != nil {
			r.Reset(s.id)
		}
	}
}

func (s *Session) joinRoom(msg *proto.ClientMessage) {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		// Joining a second room while still bound is rejected.
		s.Send(proto.NewErrorNotice("already in a room"))
		return
	}
	r := s.registry.FindOrCreate(msg.RoomID)
	s.current = r
	s.mu.Unlock()

	r.Join(s.id, msg.Name, s)
}

func (s *Session) leaveRoom(roomID string) {
	s.mu.Lock()
	r := s.current
	if r == nil || r.ID != roomID {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()

	r.Leave(s.id)
}

// boundRoom returns the bound room iff it matches roomID.
func (s *Session) boundRoom(roomID string) *room.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == roomID {
		return s.current
	}
	return nil
}

// close tears the session down exactly once, synthesizing a leave for
// whatever room the connection was still bound to. Leave removes the
// subscription under the room lock, so no broadcast can race the closing of
// the send queue below.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		r := s.current
		s.current = nil
		s.mu.Unlock()

		if r != nil {
			r.Leave(s.id)
		}
		s.conn.Close()
		close(s.send)
		slog.Info("session closed", "session.id", s.id)
	})
}
