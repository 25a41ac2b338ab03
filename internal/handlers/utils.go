package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskdeck/apiserver/types"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// Identity is the authenticated subject attached to a request context by
// the auth middleware.
type Identity struct {
	UserID int
	Role   types.Role
}

func identityFromContext(ctx context.Context) (Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(Identity)
	if !ok || identity.UserID < 1 {
		return Identity{}, errors.New("missing identity")
	}
	return identity, nil
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
