package dispatch

import (
	"strings"

	"github.com/google/uuid"
)

// The directory hands out "temp-" prefixed ids for members that are
// not fully provisioned yet. They must never reach the store.
const provisionalPrefix = "temp-"

// ParseUserID checks the syntactic and placeholder rules shared by
// send and history: a user id is a UUID and never a provisional id.
func ParseUserID(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, invalid(field, "user id is required")
	}
	if strings.HasPrefix(raw, provisionalPrefix) {
		return uuid.Nil, invalid(field, "provisional user id is not addressable")
	}

	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, invalid(field, "malformed user id")
	}

	return id, nil
}
