package middleware

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/auth"

	"github.com/google/uuid"
)

type contextKey string

const UserIDKey contextKey = "user_id"

func getIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.Split(forwarded, ",")[0]
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
		return host
	}
	return host
}

// Credential extracts the bearer credential from the Authorization
// header, falling back to the access_token cookie for browser clients.
func Credential(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate resolves the caller's identity before any handler runs
// and stows the user id in the request context.
func Authenticate(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := Credential(r)
			if credential == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			userID, err := resolver.Resolve(credential)
			if err != nil {
				log.Printf("[AUTH] Invalid credential from %s: %v", getIP(r), err)
				http.Error(w, "Session expired or invalid", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID pulls the authenticated user id out of the request context.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}
