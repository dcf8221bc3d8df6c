package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// handleCreateSession hands out a player identity. Clients keep the id and
// present it as a bearer token on every later call.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	playerID := uuid.NewString()
	writeJSON(w, http.StatusCreated, map[string]string{
		"playerId": playerID,
	})
}

// playerID extracts the bearer token. An empty return means the request is
// unauthenticated.
func playerID(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		// Websocket clients cannot set headers from browsers, so the token
		// may ride in the query string instead.
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func (s *Server) authedPlayer(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := playerID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return id, true
}
