package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"timeline-arena/internal/game"
	"timeline-arena/internal/store"
)

type createGameRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authedPlayer(w, r)
	if !ok {
		return
	}
	var req createGameRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = game.ModePrivate
	}

	gameID, err := s.coordinator(player).CreateGame(r.Context(), req.Mode)
	if err != nil {
		writeGameError(w, err)
		return
	}
	s.ensureRelay(gameID)
	writeJSON(w, http.StatusCreated, s.gameSnapshot(r, gameID))
}

type joinGameRequest struct {
	GameID string `json:"gameId,omitempty"`
	Code   string `json:"code,omitempty"`
	Link   string `json:"link,omitempty"`
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authedPlayer(w, r)
	if !ok {
		return
	}
	var req joinGameRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	co := s.coordinator(player)
	var err error
	switch {
	case req.GameID != "":
		err = co.JoinGame(r.Context(), req.GameID)
	case req.Code != "":
		err = co.JoinByCode(r.Context(), req.Code)
	case req.Link != "":
		var gameID string
		gameID, err = game.ParseJoinLink(req.Link)
		if err == nil {
			err = co.JoinGame(r.Context(), gameID)
		}
	default:
		writeError(w, http.StatusBadRequest, "gameId, code, or link is required")
		return
	}
	if err != nil {
		writeGameError(w, err)
		return
	}

	joined, hasGame := co.CurrentGame()
	if !hasGame {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.ensureRelay(joined.ID)
	writeJSON(w, http.StatusOK, s.gameSnapshot(r, joined.ID))
}

func (s *Server) handleJoinBattleRoyale(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authedPlayer(w, r)
	if !ok {
		return
	}
	gameID, err := s.coordinator(player).JoinBattleRoyale(r.Context())
	if err != nil {
		writeGameError(w, err)
		return
	}
	s.ensureRelay(gameID)
	writeJSON(w, http.StatusOK, s.gameSnapshot(r, gameID))
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authedPlayer(w, r)
	if !ok {
		return
	}
	co := s.coordinator(player)
	if !s.sessionMatchesGame(co, r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err := co.StartGame(r.Context()); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.gameSnapshot(r, r.PathValue("id")))
}

type submitRequest struct {
	PositionIndex int `json:"positionIndex"`
}

func (s *Server) handleSubmitPlacement(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authedPlayer(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	co := s.coordinator(player)
	if !s.sessionMatchesGame(co, r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err := co.SubmitPlacement(r.Context(), req.PositionIndex); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *Server) handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authedPlayer(w, r)
	if !ok {
		return
	}
	co := s.coordinator(player)
	if !s.sessionMatchesGame(co, r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	co.Leave()
	log.Printf("player left game_id=%s player_id=%s", r.PathValue("id"), player)
	writeJSON(w, http.StatusOK, map[string]any{"left": true})
}

func (s *Server) handleGameSnapshot(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	if _, err := s.st.Get(r.Context(), "games/"+gameID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s.gameSnapshot(r, gameID))
}

// handleJoinLink resolves a deep link of the form /join?gameId=<id>. Clients
// that cannot open the app directly get the target game back as JSON.
func (s *Server) handleJoinLink(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		writeError(w, http.StatusBadRequest, "gameId is required")
		return
	}
	if _, err := s.st.Get(r.Context(), "games/"+gameID); err != nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"gameId": gameID})
}

func (s *Server) sessionMatchesGame(co *game.Coordinator, gameID string) bool {
	current, ok := co.CurrentGame()
	return ok && current.ID == gameID
}

// gameSnapshot assembles the public view of a game straight from the store:
// the game document, its players, and the current round if any.
func (s *Server) gameSnapshot(r *http.Request, gameID string) map[string]any {
	ctx := r.Context()
	snapshot := map[string]any{"id": gameID}

	if doc, err := s.st.Get(ctx, "games/"+gameID); err == nil {
		snapshot["game"] = doc.Data
		if currentRound, ok := doc.Data["currentRound"]; ok {
			roundPath := fmt.Sprintf("games/%s/rounds/%v", gameID, currentRound)
			if roundDoc, err := s.st.Get(ctx, roundPath); err == nil {
				snapshot["round"] = roundDoc.Data
			}
		}
	}
	if docs, err := s.st.Query(ctx, "games/"+gameID+"/players", nil, 0); err == nil {
		players := make([]map[string]any, 0, len(docs))
		for _, doc := range docs {
			data := doc.Data
			data["id"] = doc.ID()
			players = append(players, data)
		}
		snapshot["players"] = players
	}
	return snapshot
}
