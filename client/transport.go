package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/dispatch"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// PushEvent is the decoded server→client envelope.
type PushEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details string          `json:"details,omitempty"`
}

// Transport is the push side of the client: one websocket connection,
// joined to the caller's own room, decoding events onto a channel.
type Transport struct {
	conn   *websocket.Conn
	events chan PushEvent
}

// Dial connects to the messaging server's /ws endpoint, authenticating
// with the bearer credential, and announces the caller into its room.
func Dial(ctx context.Context, baseURL, token string, self uuid.UUID) (*Transport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	t := &Transport{
		conn:   conn,
		events: make(chan PushEvent, 64),
	}

	if err := t.writeEvent(map[string]string{
		"type":   "join",
		"userId": self.String(),
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join failed: %w", err)
	}

	go t.readLoop()

	return t, nil
}

// Send pushes a send event over the live channel. The durable REST
// send is a separate call; this is the immediate-delivery path.
func (t *Transport) Send(req dispatch.SendRequest) error {
	return t.writeEvent(map[string]any{
		"type":          "send",
		"receiverId":    req.Receiver,
		"content":       req.Content,
		"kind":          req.Kind,
		"attachmentUrl": req.AttachmentURL,
	})
}

// Events yields decoded server events until the connection drops; the
// channel closes on disconnect.
func (t *Transport) Events() <-chan PushEvent {
	return t.events
}

func (t *Transport) Close() error {
	return t.conn.Close()
}

func (t *Transport) writeEvent(v any) error {
	return t.conn.WriteJSON(v)
}

// readLoop drains every frame completely. The server's write pump
// batches queued events into one frame separated by newlines, so each
// frame may carry several envelopes.
func (t *Transport) readLoop() {
	defer close(t.events)

	for {
		_, r, err := t.conn.NextReader()
		if err != nil {
			return
		}

		dec := json.NewDecoder(r)
		for {
			ev := PushEvent{}
			if err := dec.Decode(&ev); err != nil {
				break
			}
			select {
			case t.events <- ev:
			default:
				// Receiver not draining; drop rather than block the socket.
			}
		}
	}
}
