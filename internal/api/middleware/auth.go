package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/outfitly/outfitly/internal/api/response"
	"github.com/outfitly/outfitly/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefixLen = 8

// UserLookup is the slice of the data store the auth middleware needs.
type UserLookup interface {
	GetUsersByKeyPrefix(ctx context.Context, prefix string) ([]*models.User, error)
}

// Auth authenticates requests by API key.
type Auth struct {
	store UserLookup
}

// NewAuth creates a new Auth middleware.
func NewAuth(s UserLookup) *Auth {
	return &Auth{store: s}
}

// Authenticate validates the Bearer token against stored key hashes and sets
// the resolved user ID and key prefix in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawKey) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key format", nil)
			return
		}

		prefix := rawKey[:keyPrefixLen]

		users, err := a.store.GetUsersByKeyPrefix(r.Context(), prefix)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		// Find matching user by bcrypt comparison
		var matchedID uuid.UUID
		var matched bool
		for _, u := range users {
			if bcrypt.CompareHashAndPassword([]byte(u.KeyHash), []byte(rawKey)) == nil {
				matchedID = u.ID
				matched = true
				break
			}
		}

		if !matched {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		ctx := SetUserID(r.Context(), matchedID)
		ctx = SetKeyPrefix(ctx, prefix)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
