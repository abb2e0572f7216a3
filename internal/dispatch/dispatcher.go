// Package dispatch implements the message send/replay core. Both
// transports (websocket events and the REST routes) are thin adapters
// into the one Dispatcher, so validation, persistence ordering and
// room emission cannot diverge between them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/models"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Push event names shared by both transports.
const (
	EventReceive = "receive"
	EventRead    = "read"
)

// Emitter is the Presence Room Registry as the dispatcher sees it:
// best-effort, non-blocking fan-out to the listed rooms.
type Emitter interface {
	Emit(event string, payload any, rooms ...string)
}

// SendRequest is the transport-independent send payload. The sender is
// never part of it; it always comes from the caller's bound identity.
type SendRequest struct {
	Receiver      string             `json:"receiver" validate:"required"`
	Content       string             `json:"content" validate:"required,max=4096"`
	Kind          models.MessageKind `json:"kind" validate:"omitempty,oneof=text image file"`
	AttachmentURL string             `json:"attachmentUrl,omitempty" validate:"omitempty,url,max=2048"`
}

type Dispatcher struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	emitter  Emitter
	validate *validator.Validate
}

func New(messages repository.MessageRepository, users repository.UserRepository, emitter Emitter) *Dispatcher {
	return &Dispatcher{
		messages: messages,
		users:    users,
		emitter:  emitter,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Send validates, persists, populates sender metadata and emits to the
// sender's and receiver's rooms, in that order. Once it returns nil
// error the message is durable; emission is best-effort.
func (d *Dispatcher) Send(ctx context.Context, sender uuid.UUID, req SendRequest) (*models.Message, error) {
	if err := d.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, invalid(verrs[0].Field(), "failed "+verrs[0].Tag()+" check")
		}
		return nil, invalid("request", "malformed payload")
	}

	receiver, err := ParseUserID("receiver", req.Receiver)
	if err != nil {
		return nil, err
	}
	if receiver == sender {
		return nil, invalid("receiver", "cannot message yourself")
	}

	// Both directory lookups happen before the write: an unresolvable
	// receiver must reject without persisting, and the sender's name
	// rides on the emitted event.
	senderUser, err := d.lookup(ctx, "sender", sender)
	if err != nil {
		return nil, err
	}
	if _, err := d.lookup(ctx, "receiver", receiver); err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:      sender,
		ReceiverID:    receiver,
		Content:       req.Content,
		Kind:          req.Kind,
		AttachmentURL: req.AttachmentURL,
	}

	if err := d.messages.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	msg.SenderName = senderUser.Name

	// Persist-then-emit: a receiver never sees a message that a crash
	// could make vanish from history.
	d.emitter.Emit(EventReceive, msg, sender.String(), receiver.String())

	return msg, nil
}

// History returns the conversation between the caller and peer,
// ascending by created_at. since is an optional exclusive lower bound.
func (d *Dispatcher) History(ctx context.Context, owner uuid.UUID, peer string, since time.Time) ([]*models.Message, error) {
	peerID, err := ParseUserID("peer", peer)
	if err != nil {
		return nil, err
	}

	msgs, err := d.messages.Conversation(ctx, owner, peerID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}

	return msgs, nil
}

// MarkRead acknowledges the messages peer sent to owner and notifies
// the peer's room.
func (d *Dispatcher) MarkRead(ctx context.Context, owner uuid.UUID, peer string) error {
	peerID, err := ParseUserID("peer", peer)
	if err != nil {
		return err
	}

	touched, err := d.messages.MarkConversationRead(ctx, owner, peerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if touched > 0 {
		d.emitter.Emit(EventRead, map[string]string{"peerId": owner.String()}, peerID.String())
	}

	return nil
}

func (d *Dispatcher) lookup(ctx context.Context, field string, id uuid.UUID) (*models.User, error) {
	user, err := d.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalid(field, "unknown user")
		}
		log.Printf("[DISPATCH] Directory lookup failed for %s: %v", id, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return user, nil
}
