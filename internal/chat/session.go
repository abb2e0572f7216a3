package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/dispatch"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 5 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = 10 * time.Second
	maxEventSize    = 8192
	dispatchTimeout = 10 * time.Second
)

// Session is one live websocket connection with an identity bound at
// upgrade time. It enters its room only after the client announces
// itself with a join event.
type Session struct {
	registry   *Registry
	dispatcher *dispatch.Dispatcher
	conn       *websocket.Conn
	userID     uuid.UUID

	send        chan []byte
	limiter     *middleware.RateLimiter
	lastWarning time.Time

	mu     sync.Mutex
	joined bool
	closed bool
	once   sync.Once
}

func NewSession(registry *Registry, dispatcher *dispatch.Dispatcher, conn *websocket.Conn, userID uuid.UUID) *Session {
	return &Session{
		registry:   registry,
		dispatcher: dispatcher,
		conn:       conn,
		userID:     userID,
		send:       make(chan []byte, 256),
		limiter:    middleware.NewRatelimiter(5, 500*time.Millisecond),
	}
}

// Room returns the room this session belongs to: its own user id.
func (s *Session) Room() string {
	return s.userID.String()
}

// closeSend marks the session closed before closing the channel, so a
// ReadPump still producing error feedback cannot send on a closed
// channel.
func (s *Session) closeSend() {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		close(s.send)
	})
}

func (s *Session) hasJoined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

func (s *Session) markJoined() {
	s.mu.Lock()
	s.joined = true
	s.mu.Unlock()
}

func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.registry.Leave(s)
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := s.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(s.send)
			for i := 0; i < n; i++ {
				msg, ok := <-s.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(msg)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) ReadPump() {
	defer func() {
		s.registry.Leave(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxEventSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SESSION] Unexpected close for %s: %v", s.userID, err)
			}
			break
		}

		if !s.limiter.Allow() {
			if time.Since(s.lastWarning) > 3*time.Second {
				s.pushError("rate limit exceeded", "")
				s.lastWarning = time.Now()
			}
			continue
		}

		event := &InboundEvent{}
		if err := json.Unmarshal(raw, event); err != nil {
			continue
		}

		switch event.Type {
		case EventJoin:
			s.handleJoin(event)
		case EventSend:
			s.handleSend(event)
		default:
			log.Printf("[SESSION] Unknown event type %q from %s", event.Type, s.userID)
		}
	}
}

// handleJoin registers the session in its own room. The announced user
// id must match the identity bound at upgrade; a session cannot join
// someone else's room.
func (s *Session) handleJoin(event *InboundEvent) {
	if event.UserID != "" && event.UserID != s.userID.String() {
		log.Printf("[SESSION] Join spoof attempt: session %s announced %s", s.userID, event.UserID)
		s.pushError("cannot join another user's room", "")
		return
	}

	s.registry.Join(s)
	s.markJoined()
}

// handleSend funnels a push-transport send into the shared dispatcher.
// The sender is always the bound identity; a payload senderId that
// disagrees with the joined room is rejected.
func (s *Session) handleSend(event *InboundEvent) {
	if !s.hasJoined() {
		s.pushError("join before sending", "")
		return
	}
	if event.SenderID != "" && event.SenderID != s.userID.String() {
		log.Printf("[SESSION] Sender spoof attempt: session %s claimed %s", s.userID, event.SenderID)
		s.pushError("senderId does not match session identity", "")
		return
	}

	// Detached context: once validated, the write runs to completion
	// even if the socket drops mid-flight.
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	_, err := s.dispatcher.Send(ctx, s.userID, dispatch.SendRequest{
		Receiver:      event.ReceiverID,
		Content:       event.Content,
		Kind:          event.Kind,
		AttachmentURL: event.AttachmentURL,
	})
	if err != nil {
		var ve *dispatch.ValidationError
		if errors.As(err, &ve) {
			s.pushError("validation failed", ve.Error())
			return
		}
		log.Printf("[SESSION] Send failed for %s: %v", s.userID, err)
		s.pushError("message could not be delivered", "")
	}
}

func (s *Session) pushError(msg, details string) {
	envelope, _ := json.Marshal(OutboundEvent{Type: string(EventError), Error: msg, Details: details})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- envelope:
	default:
	}
}
