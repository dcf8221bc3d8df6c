package server

import (
	"context"
	"log"

	"timeline-arena/internal/store"
)

// relay fans one game's store changes out to websocket watchers and mirrors
// them into Postgres. Exactly one relay runs per active game; it shuts down
// once the game document reports a finished status.
type relay struct {
	srv    *Server
	gameID string
	cancel context.CancelFunc
	events chan store.Event
}

func (s *Server) ensureRelay(gameID string) {
	s.relaysMu.Lock()
	defer s.relaysMu.Unlock()
	if _, ok := s.relays[gameID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rl := &relay{
		srv:    s,
		gameID: gameID,
		cancel: cancel,
		events: make(chan store.Event, 256),
	}
	s.relays[gameID] = rl
	go rl.run(ctx)
	rl.watch(ctx, "games/"+gameID)
	rl.watch(ctx, "games/"+gameID+"/players")
	rl.watch(ctx, "games/"+gameID+"/rounds")
	rl.watch(ctx, "games/"+gameID+"/submissions")
	log.Printf("relay started game_id=%s", gameID)
}

func (s *Server) stopRelay(gameID string) {
	s.relaysMu.Lock()
	rl := s.relays[gameID]
	delete(s.relays, gameID)
	s.relaysMu.Unlock()
	if rl != nil {
		rl.cancel()
		log.Printf("relay stopped game_id=%s", gameID)
	}
}

func (r *relay) watch(ctx context.Context, path string) {
	go func() {
		for {
			ch, err := r.srv.st.Watch(ctx, path)
			if err != nil {
				return
			}
			for event := range ch {
				select {
				case r.events <- event:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			default:
				// Lagged subscriber; resubscribe from a fresh snapshot.
				log.Printf("relay resubscribing game_id=%s path=%s", r.gameID, path)
			}
		}
	}()
}

func (r *relay) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.events:
			r.handle(event)
		}
	}
}

func (r *relay) handle(event store.Event) {
	kind := docKind(r.gameID, event.Doc.Path)
	if kind == "" {
		return
	}
	r.srv.ws.Broadcast(r.gameID, map[string]any{
		"type":  kind,
		"event": string(event.Type),
		"path":  event.Doc.Path,
		"data":  event.Doc.Data,
	})

	if err := r.srv.mirror(r.gameID, kind, event); err != nil {
		log.Printf("persistence mirror failed game_id=%s path=%s error=%v", r.gameID, event.Doc.Path, err)
	}

	if kind == "game" {
		if status, _ := event.Doc.Data["status"].(string); status == "finished" {
			go r.srv.stopRelay(r.gameID)
		}
	}
}

// docKind classifies a document path relative to the relay's game.
func docKind(gameID, path string) string {
	base := "games/" + gameID
	switch {
	case path == base:
		return "game"
	case store.CollectionOf(path) == base+"/players":
		return "player"
	case store.CollectionOf(path) == base+"/rounds":
		return "round"
	case store.CollectionOf(path) == base+"/submissions":
		return "submission"
	default:
		return ""
	}
}
