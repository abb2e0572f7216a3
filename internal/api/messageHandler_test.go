package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/auth"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/dispatch"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/middleware"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type apiStore struct {
	mu       sync.Mutex
	messages []*models.Message
	seq      int
	failSave bool
}

func (s *apiStore) Save(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return fmt.Errorf("store unavailable")
	}
	m.ID = uuid.New()
	if m.Kind == "" {
		m.Kind = models.KindText
	}
	s.seq++
	m.CreatedAt = time.Unix(int64(s.seq), 0).UTC()
	m.UpdatedAt = m.CreatedAt
	stored := *m
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *apiStore) Conversation(ctx context.Context, a, b uuid.UUID, since time.Time) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.messages {
		if m.Between(a, b) && m.CreatedAt.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *apiStore) MarkConversationRead(ctx context.Context, owner, peer uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var touched int64
	for _, m := range s.messages {
		if m.ReceiverID == owner && m.SenderID == peer && !m.IsRead {
			m.IsRead = true
			touched++
		}
	}
	return touched, nil
}

type apiDirectory struct {
	known map[uuid.UUID]string
}

func (d *apiDirectory) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if name, ok := d.known[id]; ok {
		return &models.User{ID: id, Name: name}, nil
	}
	return nil, fmt.Errorf("failed to find user by ID: %w", pgx.ErrNoRows)
}

func (d *apiDirectory) SetOnlineUsers(ctx context.Context, online []uuid.UUID) error {
	return nil
}

type nopEmitter struct{}

func (nopEmitter) Emit(event string, payload any, rooms ...string) {}

type fixture struct {
	mux      *http.ServeMux
	resolver *auth.Resolver
	store    *apiStore
	u1, u2   uuid.UUID
}

func newAPIFixture(t *testing.T) *fixture {
	t.Helper()

	u1 := uuid.New()
	u2 := uuid.New()
	store := &apiStore{}
	directory := &apiDirectory{known: map[uuid.UUID]string{u1: "Alice", u2: "Bob"}}
	dispatcher := dispatch.New(store, directory, nopEmitter{})
	resolver := auth.NewResolver("test-secret")

	authenticate := middleware.Authenticate(resolver)
	mux := http.NewServeMux()
	mux.Handle("POST /messages", authenticate(SendMessageHandler(dispatcher)))
	mux.Handle("GET /messages/conversation/{peerId}", authenticate(ConversationHandler(dispatcher)))
	mux.Handle("POST /messages/conversation/{peerId}/read", authenticate(MarkReadHandler(dispatcher)))
	mux.HandleFunc("POST /dev/token", DevTokenHandler(resolver))

	return &fixture{mux: mux, resolver: resolver, store: store, u1: u1, u2: u2}
}

func (f *fixture) do(t *testing.T, method, path, body string, as uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	if as != uuid.Nil {
		token, err := f.resolver.GenerateToken(as)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)
	return w
}

func TestSendMessage_Created(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	body := fmt.Sprintf(`{"receiver": %q, "content": "hello"}`, f.u2)
	w := f.do(t, http.MethodPost, "/messages", body, f.u1)

	req.Equal(http.StatusCreated, w.Code)

	msg := models.Message{}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &msg))
	req.Equal(f.u1, msg.SenderID)
	req.Equal(f.u2, msg.ReceiverID)
	req.Equal("hello", msg.Content)
	req.Equal(models.KindText, msg.Kind)
	req.Equal("Alice", msg.SenderName)
	req.False(msg.IsRead)
	req.NotEqual(uuid.Nil, msg.ID)
}

func TestSendMessage_Requires_Auth(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/messages", `{"receiver": "x", "content": "hello"}`, uuid.Nil)

	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestSendMessage_Placeholder_Receiver_Is_400(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/messages", `{"receiver": "temp-id-42", "content": "hello"}`, f.u1)

	req.Equal(http.StatusBadRequest, w.Code)

	resp := errorResponse{}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal("validation failed", resp.Error)
	req.Contains(resp.Details, "receiver")
}

func TestSendMessage_Store_Failure_Is_500(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	f.store.failSave = true

	body := fmt.Sprintf(`{"receiver": %q, "content": "hello"}`, f.u2)
	w := f.do(t, http.MethodPost, "/messages", body, f.u1)

	req.Equal(http.StatusInternalServerError, w.Code)
}

func TestConversation_Returns_Ordered_History(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	for _, content := range []string{"one", "two"} {
		body := fmt.Sprintf(`{"receiver": %q, "content": %q}`, f.u2, content)
		req.Equal(http.StatusCreated, f.do(t, http.MethodPost, "/messages", body, f.u1).Code)
	}

	w := f.do(t, http.MethodGet, "/messages/conversation/"+f.u2.String(), "", f.u1)

	req.Equal(http.StatusOK, w.Code)
	var msgs []models.Message
	req.NoError(json.Unmarshal(w.Body.Bytes(), &msgs))
	req.Len(msgs, 2)
	req.Equal("one", msgs[0].Content)
	req.Equal("two", msgs[1].Content)
}

func TestConversation_Empty_Is_Empty_Array(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/messages/conversation/"+f.u2.String(), "", f.u1)

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq("[]", w.Body.String())
}

func TestConversation_Placeholder_Peer_Is_400(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/messages/conversation/temp-id-42", "", f.u1)

	req.Equal(http.StatusBadRequest, w.Code)
}

func TestConversation_Rejects_Bad_Since(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/messages/conversation/"+f.u2.String()+"?since=yesterday", "", f.u1)

	req.Equal(http.StatusBadRequest, w.Code)
}

func TestMarkRead_NoContent(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	body := fmt.Sprintf(`{"receiver": %q, "content": "hello"}`, f.u2)
	req.Equal(http.StatusCreated, f.do(t, http.MethodPost, "/messages", body, f.u1).Code)

	w := f.do(t, http.MethodPost, "/messages/conversation/"+f.u1.String()+"/read", "", f.u2)
	req.Equal(http.StatusNoContent, w.Code)

	history := f.do(t, http.MethodGet, "/messages/conversation/"+f.u1.String(), "", f.u2)
	var msgs []models.Message
	req.NoError(json.Unmarshal(history.Body.Bytes(), &msgs))
	req.Len(msgs, 1)
	req.True(msgs[0].IsRead)
}

func TestDevToken_Roundtrips_Through_Resolver(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/dev/token", fmt.Sprintf(`{"userId": %q}`, f.u1), uuid.Nil)

	req.Equal(http.StatusOK, w.Code)
	var resp map[string]string
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))

	resolved, err := f.resolver.Resolve(resp["token"])
	req.NoError(err)
	req.Equal(f.u1, resolved)
}
