package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// startPushServer upgrades, consumes the join announcement and then
// writes the given raw text frames, holding the connection open until
// the client hangs up.
func startPushServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collectEvents(t *testing.T, tr *Transport, n int) []PushEvent {
	t.Helper()

	var events []PushEvent
	for len(events) < n {
		select {
		case ev, ok := <-tr.Events():
			if !ok {
				t.Fatalf("events channel closed after %d of %d events", len(events), n)
			}
			events = append(events, ev)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestTransport_Decodes_All_Events_Of_A_Batched_Frame(t *testing.T) {
	req := require.New(t)
	self := uuid.New()

	// Given one frame carrying two newline-separated envelopes, the way
	// the server's write pump batches a busy queue
	frame := `{"type":"receive","payload":{"content":"one"}}` + "\n" +
		`{"type":"receive","payload":{"content":"two"}}`
	srv := startPushServer(t, frame)

	tr, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "credential", self)
	req.NoError(err)
	t.Cleanup(func() { tr.Close() })

	// Then both events come out, in order
	events := collectEvents(t, tr, 2)
	var got []string
	for _, ev := range events {
		req.Equal("receive", ev.Type)
		var payload struct {
			Content string `json:"content"`
		}
		req.NoError(json.Unmarshal(ev.Payload, &payload))
		got = append(got, payload.Content)
	}
	req.Equal([]string{"one", "two"}, got)
}

func TestTransport_Decodes_Single_Event_Frames(t *testing.T) {
	req := require.New(t)
	self := uuid.New()

	srv := startPushServer(t,
		`{"type":"receive","payload":{"content":"solo"}}`,
		`{"type":"error","error":"validation failed","details":"receiver"}`,
	)

	tr, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), "credential", self)
	req.NoError(err)
	t.Cleanup(func() { tr.Close() })

	events := collectEvents(t, tr, 2)
	req.Equal("receive", events[0].Type)
	req.Equal("error", events[1].Type)
	req.Equal("validation failed", events[1].Error)
}
