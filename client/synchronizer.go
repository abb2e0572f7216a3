// Package client is the consumer side of the messaging core: a
// websocket transport and the conversation synchronizer that merges
// durable history with optimistic local sends and live push events.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/dispatch"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var ErrNoConversation = errors.New("no conversation selected")

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

// Service is whatever can fetch history and perform durable sends for
// this client: the REST transport in production, a fake in tests.
type Service interface {
	History(ctx context.Context, peer uuid.UUID) ([]*models.Message, error)
	Send(ctx context.Context, req dispatch.SendRequest) (*models.Message, error)
}

// Entry is a tagged variant: either a pending optimistic send,
// addressed by its local id, or a server-confirmed message. Rollback
// and confirmation both key on LocalID, never on value equality.
type Entry struct {
	LocalID   uuid.UUID
	Draft     *models.Message
	Confirmed *models.Message
}

func (e Entry) IsPending() bool {
	return e.Confirmed == nil
}

// Visible is what the UI renders: the confirmed message when it
// exists, otherwise the locally-stamped draft.
func (e Entry) Visible() *models.Message {
	if e.Confirmed != nil {
		return e.Confirmed
	}
	return e.Draft
}

// Synchronizer is the per-view conversation state machine. At most one
// peer is selected at a time; selecting a new peer discards all state
// of the previous one, including in-flight history responses.
type Synchronizer struct {
	svc  Service
	self uuid.UUID

	mu      sync.Mutex
	state   State
	peer    uuid.UUID
	epoch   uint64
	entries []Entry
	lastErr error
}

func NewSynchronizer(svc Service, self uuid.UUID) *Synchronizer {
	return &Synchronizer{
		svc:   svc,
		self:  self,
		state: StateIdle,
	}
}

// SelectPeer loads the conversation with peer, replacing the local
// list wholesale on success. A failed load keeps the previous list
// visible but leaves the view unready, so sends stay blocked until a
// reload succeeds. If another peer is selected while the fetch is in
// flight, the stale response is discarded.
func (s *Synchronizer) SelectPeer(ctx context.Context, peer uuid.UUID) error {
	s.mu.Lock()
	s.peer = peer
	s.epoch++
	epoch := s.epoch
	s.state = StateLoading
	s.lastErr = nil
	s.mu.Unlock()

	msgs, err := s.svc.History(ctx, peer)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// The view moved on; this response is no longer relevant.
		return nil
	}

	if err != nil {
		// The entries may still belong to a previously selected peer,
		// so the view must not become ready and mix conversations.
		s.state = StateIdle
		s.lastErr = err
		return err
	}

	s.state = StateReady
	s.entries = lo.Map(msgs, func(m *models.Message, _ int) Entry {
		return Entry{Confirmed: m}
	})
	return nil
}

// Send appends an optimistic entry immediately, then performs the
// durable send. On success the pending entry becomes confirmed; on
// failure it is rolled back and no retry is attempted.
func (s *Synchronizer) Send(ctx context.Context, content string, kind models.MessageKind) (*models.Message, error) {
	if !kind.Valid() {
		kind = models.KindText
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	peer := s.peer
	epoch := s.epoch
	localID := uuid.New()
	s.entries = append(s.entries, Entry{
		LocalID: localID,
		Draft: &models.Message{
			SenderID:   s.self,
			ReceiverID: peer,
			Content:    content,
			Kind:       kind,
			CreatedAt:  time.Now(),
		},
	})
	s.mu.Unlock()

	msg, err := s.svc.Send(ctx, dispatch.SendRequest{
		Receiver: peer.String(),
		Content:  content,
		Kind:     kind,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		// Peer switched mid-send; the optimistic entry is already gone.
		return msg, err
	}

	if err != nil {
		s.entries = lo.Reject(s.entries, func(e Entry, _ int) bool {
			return e.IsPending() && e.LocalID == localID
		})
		s.lastErr = err
		return nil, err
	}

	for i := range s.entries {
		if s.entries[i].IsPending() && s.entries[i].LocalID == localID {
			s.entries[i] = Entry{Confirmed: msg}
			break
		}
	}
	return msg, nil
}

// HandlePush folds an inbound receive event into the list. Events for
// pairs other than the selected conversation are ignored, as are
// echoes of messages already present.
func (s *Synchronizer) HandlePush(msg *models.Message) {
	if msg == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || !msg.Between(s.self, s.peer) {
		return
	}
	for _, e := range s.entries {
		if e.Confirmed != nil && e.Confirmed.ID == msg.ID {
			return
		}
	}

	s.entries = append(s.entries, Entry{Confirmed: msg})
}

// ApplyEvent routes a decoded push-transport event into the state
// machine. Only receive events carry conversation state.
func (s *Synchronizer) ApplyEvent(ev PushEvent) {
	if ev.Type != dispatch.EventReceive || len(ev.Payload) == 0 {
		return
	}
	msg := &models.Message{}
	if err := json.Unmarshal(ev.Payload, msg); err != nil {
		return
	}
	s.HandlePush(msg)
}

// Messages snapshots the visible conversation in order.
func (s *Synchronizer) Messages() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.entries, func(e Entry, _ int) *models.Message {
		return e.Visible()
	})
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
