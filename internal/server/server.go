package server

import (
	"net/http"
	"sync"

	"timeline-arena/internal/config"
	"timeline-arena/internal/deck"
	"timeline-arena/internal/game"
	"timeline-arena/internal/store"

	"gorm.io/gorm"
)

// Server exposes the HTTP and websocket surface over the shared document
// store. Each authenticated player gets one game.Coordinator; the server
// additionally runs one relay per active game that broadcasts store changes
// to websocket watchers and mirrors them into Postgres.
type Server struct {
	st      *store.Memory
	db      *gorm.DB
	catalog *deck.Catalog
	cfg     config.Config
	ws      *wsHub

	sessionsMu sync.Mutex
	sessions   map[string]*game.Coordinator

	relaysMu sync.Mutex
	relays   map[string]*relay
}

func New(conn *gorm.DB, st *store.Memory, catalog *deck.Catalog, cfg config.Config) *Server {
	return &Server{
		st:       st,
		db:       conn,
		catalog:  catalog,
		cfg:      cfg,
		ws:       newWSHub(),
		sessions: make(map[string]*game.Coordinator),
		relays:   make(map[string]*relay),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/session", s.handleCreateSession)
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("POST /api/games/join", s.handleJoinGame)
	mux.HandleFunc("POST /api/games/battle-royale", s.handleJoinBattleRoyale)
	mux.HandleFunc("GET /api/games/{id}", s.handleGameSnapshot)
	mux.HandleFunc("POST /api/games/{id}/start", s.handleStartGame)
	mux.HandleFunc("POST /api/games/{id}/submit", s.handleSubmitPlacement)
	mux.HandleFunc("POST /api/games/{id}/leave", s.handleLeaveGame)
	mux.HandleFunc("GET /join", s.handleJoinLink)
	mux.HandleFunc("GET /ws/games/{id}", s.handleWebsocket)
	return mux
}

// coordinator returns the player's session coordinator, creating it on first
// use.
func (s *Server) coordinator(playerID string) *game.Coordinator {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if co, ok := s.sessions[playerID]; ok {
		return co
	}
	co := game.New(s.st, s.catalog, s.cfg, playerID)
	s.sessions[playerID] = co
	return co
}
