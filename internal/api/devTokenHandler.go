package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/auth"
	"github.com/ErfanBagheri404/panello-lib-sub000/internal/dispatch"
)

// DevTokenHandler mints a credential for local runs where the real
// session issuer is not available. main.go only mounts it outside
// production.
func DevTokenHandler(resolver *auth.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			UserID string `json:"userId"`
		}

		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		userID, err := dispatch.ParseUserID("userId", payload.UserID)
		if err != nil {
			writeError(w, err)
			return
		}

		token, err := resolver.GenerateToken(userID)
		if err != nil {
			log.Printf("[DEV] Token mint failed for %s: %v", userID, err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}
