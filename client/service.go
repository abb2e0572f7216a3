package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/auth"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/dispatch"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/models"

	"github.com/google/uuid"
)

// RESTService is the durable side of the client: history loads and
// sends over the server's REST routes, authenticating every request
// with the bearer credential.
type RESTService struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Service = (*RESTService)(nil)

func NewRESTService(baseURL, token string) *RESTService {
	return &RESTService{
		baseURL: baseURL,
		token:   token,
		client:  http.DefaultClient,
	}
}

func (s *RESTService) History(ctx context.Context, peer uuid.UUID) ([]*models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/messages/conversation/"+peer.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, decodeError(res)
	}

	var msgs []*models.Message
	if err := json.NewDecoder(res.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("history decode failed: %w", err)
	}
	return msgs, nil
}

func (s *RESTService) Send(ctx context.Context, sendReq dispatch.SendRequest) (*models.Message, error) {
	body, err := json.Marshal(sendReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		return nil, decodeError(res)
	}

	msg := &models.Message{}
	if err := json.NewDecoder(res.Body).Decode(msg); err != nil {
		return nil, fmt.Errorf("send decode failed: %w", err)
	}
	return msg, nil
}

// decodeError maps the wire error envelope back onto the taxonomy the
// synchronizer understands.
func decodeError(res *http.Response) error {
	var envelope struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	// Best effort; the status code drives the mapping either way.
	json.NewDecoder(res.Body).Decode(&envelope)

	switch res.StatusCode {
	case http.StatusBadRequest:
		reason := envelope.Details
		if reason == "" {
			reason = envelope.Error
		}
		return &dispatch.ValidationError{Field: "request", Reason: reason}
	case http.StatusUnauthorized:
		return auth.ErrUnauthenticated
	default:
		return fmt.Errorf("%w: %s", dispatch.ErrPersistence, envelope.Error)
	}
}
