package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/dispatch"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/middleware"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the dispatch taxonomy onto the wire contract:
// validation → 400 with detail, everything else → opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *dispatch.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: ve.Error()})
		return
	}
	if errors.Is(err, dispatch.ErrPersistence) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "message store unavailable"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

// SendMessageHandler is the request/response adapter into the shared
// dispatcher. The sender always comes from the authenticated session,
// never from the body.
func SendMessageHandler(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender, ok := middleware.UserID(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		var req dispatch.SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("[MESSAGES] Decode error: %v", err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		// Detached from the request context: a validated send runs to
		// completion even if the caller hangs up.
		dbctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg, err := d.Send(dbctx, sender, req)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, msg)
	}
}

// ConversationHandler returns the full ordered history with the peer,
// optionally bounded below by ?since=RFC3339.
func ConversationHandler(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := middleware.UserID(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		var since time.Time
		if raw := r.URL.Query().Get("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: "since must be RFC3339"})
				return
			}
			since = parsed
		}

		dbctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		msgs, err := d.History(dbctx, owner, r.PathValue("peerId"), since)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, msgs)
	}
}

// MarkReadHandler acknowledges everything the peer has sent the caller.
func MarkReadHandler(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := middleware.UserID(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}

		dbctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := d.MarkRead(dbctx, owner, r.PathValue("peerId")); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
