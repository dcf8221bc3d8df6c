package game

import (
	"fmt"
	"time"

	"timeline-arena/internal/store"
)

const (
	StatusLobby    = "lobby"
	StatusRunning  = "running"
	StatusFinished = "finished"
)

const (
	ModePrivate      = "private"
	ModeBattleRoyale = "battle_royale"
)

// Game mirrors the games/{id} document.
type Game struct {
	ID           string
	ShortCode    string
	Status       string
	Mode         string
	CreatedAt    time.Time
	StartsAt     time.Time
	CurrentRound int
	MaxPlayers   int
	DeckSeed     int
	TotalCards   int
	PlayersCount int
	AliveCount   int
	HostID       string
}

func (g Game) IsStarted() bool {
	return g.Status == StatusRunning || g.Status == StatusFinished
}

// Player mirrors games/{id}/players/{playerId}. Lives is absent (-1) until
// the game starts.
type Player struct {
	ID            string
	DisplayName   string
	IsHost        bool
	IsEliminated  bool
	JoinedAt      time.Time
	LastSeenAt    time.Time
	Score         int
	AvgResponseMs float64
	Avatar        string
	Lives         int
}

// Round mirrors games/{id}/rounds/{index}. TimelineBefore is the ordered,
// duplicate-free id snapshot of the shared timeline when the round opened.
type Round struct {
	RoundIndex      int
	CardID          string
	CardIndex       int
	RoundStartsAt   time.Time
	RoundEndsAt     time.Time
	Resolved        bool
	TimelineBefore  []string
	CorrectPosition int
}

// Active reports whether the round accepts submissions at the given time.
func (r Round) Active(now time.Time) bool {
	return !r.Resolved && !now.Before(r.RoundStartsAt) && !now.After(r.RoundEndsAt)
}

// Submission mirrors games/{id}/submissions/{roundIndex_playerId}. The key
// makes one submission per player per round; retried writes land on the same
// document and correctness is never recomputed for them.
type Submission struct {
	PlayerID      string
	RoundIndex    int
	PositionIndex int
	SubmittedAt   time.Time
	IsCorrect     bool
	LatencyMs     float64
}

func (s Submission) Key() string {
	return fmt.Sprintf("%d_%s", s.RoundIndex, s.PlayerID)
}

func gamePath(gameID string) string {
	return "games/" + gameID
}

func playersPath(gameID string) string {
	return gamePath(gameID) + "/players"
}

func playerPath(gameID, playerID string) string {
	return playersPath(gameID) + "/" + playerID
}

func roundsPath(gameID string) string {
	return gamePath(gameID) + "/rounds"
}

func roundPath(gameID string, index int) string {
	return fmt.Sprintf("%s/%d", roundsPath(gameID), index)
}

func submissionsPath(gameID string) string {
	return gamePath(gameID) + "/submissions"
}

func submissionPath(gameID string, key string) string {
	return submissionsPath(gameID) + "/" + key
}

func (g Game) doc() map[string]any {
	data := map[string]any{
		"status":       g.Status,
		"mode":         g.Mode,
		"createdAt":    store.ServerTimestamp{},
		"currentRound": g.CurrentRound,
		"maxPlayers":   g.MaxPlayers,
		"deckSeed":     g.DeckSeed,
		"playersCount": g.PlayersCount,
		"aliveCount":   g.AliveCount,
		"hostId":       g.HostID,
	}
	if g.ShortCode != "" {
		data["shortCode"] = g.ShortCode
	}
	if !g.StartsAt.IsZero() {
		data["startsAt"] = g.StartsAt
	}
	return data
}

func (p Player) doc() map[string]any {
	data := map[string]any{
		"displayName":   p.DisplayName,
		"isHost":        p.IsHost,
		"isEliminated":  p.IsEliminated,
		"joinedAt":      store.ServerTimestamp{},
		"lastSeenAt":    store.ServerTimestamp{},
		"score":         p.Score,
		"avgResponseMs": p.AvgResponseMs,
	}
	if p.Avatar != "" {
		data["avatar"] = p.Avatar
	}
	return data
}

func (r Round) doc() map[string]any {
	return map[string]any{
		"roundIndex":     r.RoundIndex,
		"cardId":         r.CardID,
		"cardIndex":      r.CardIndex,
		"roundStartsAt":  store.ServerTimestamp{},
		"roundEndsAt":    r.RoundEndsAt,
		"resolved":       r.Resolved,
		"timelineBefore": append([]string(nil), r.TimelineBefore...),
	}
}

func (s Submission) doc() map[string]any {
	return map[string]any{
		"playerId":      s.PlayerID,
		"roundIndex":    s.RoundIndex,
		"positionIndex": s.PositionIndex,
		"submittedAt":   s.SubmittedAt,
		"isCorrect":     s.IsCorrect,
		"latencyMs":     s.LatencyMs,
	}
}

func decodeGame(doc store.Doc) (Game, bool) {
	status, ok := asString(doc.Data["status"])
	if !ok {
		return Game{}, false
	}
	hostID, ok := asString(doc.Data["hostId"])
	if !ok {
		return Game{}, false
	}
	mode, ok := asString(doc.Data["mode"])
	if !ok {
		mode = ModePrivate
	}
	g := Game{
		ID:           doc.ID(),
		Status:       status,
		Mode:         mode,
		HostID:       hostID,
		CurrentRound: asInt(doc.Data["currentRound"]),
		MaxPlayers:   asInt(doc.Data["maxPlayers"]),
		DeckSeed:     asInt(doc.Data["deckSeed"]),
		TotalCards:   asInt(doc.Data["totalCards"]),
		PlayersCount: asInt(doc.Data["playersCount"]),
		AliveCount:   asInt(doc.Data["aliveCount"]),
	}
	g.ShortCode, _ = asString(doc.Data["shortCode"])
	g.CreatedAt = asTime(doc.Data["createdAt"])
	g.StartsAt = asTime(doc.Data["startsAt"])
	return g, true
}

func decodePlayer(doc store.Doc) (Player, bool) {
	displayName, ok := asString(doc.Data["displayName"])
	if !ok {
		return Player{}, false
	}
	p := Player{
		ID:            doc.ID(),
		DisplayName:   displayName,
		IsHost:        asBool(doc.Data["isHost"]),
		IsEliminated:  asBool(doc.Data["isEliminated"]),
		JoinedAt:      asTime(doc.Data["joinedAt"]),
		LastSeenAt:    asTime(doc.Data["lastSeenAt"]),
		Score:         asInt(doc.Data["score"]),
		AvgResponseMs: asFloat(doc.Data["avgResponseMs"]),
		Lives:         -1,
	}
	p.Avatar, _ = asString(doc.Data["avatar"])
	if lives, ok := doc.Data["lives"]; ok {
		p.Lives = asInt(lives)
	}
	return p, true
}

func decodeRound(doc store.Doc) (Round, bool) {
	cardID, ok := asString(doc.Data["cardId"])
	if !ok {
		return Round{}, false
	}
	r := Round{
		RoundIndex:      asInt(doc.Data["roundIndex"]),
		CardID:          cardID,
		CardIndex:       asInt(doc.Data["cardIndex"]),
		RoundStartsAt:   asTime(doc.Data["roundStartsAt"]),
		RoundEndsAt:     asTime(doc.Data["roundEndsAt"]),
		Resolved:        asBool(doc.Data["resolved"]),
		CorrectPosition: -1,
	}
	if r.RoundIndex == 0 {
		// Round documents are keyed by index; tolerate a missing field.
		fmt.Sscanf(doc.ID(), "%d", &r.RoundIndex)
	}
	r.TimelineBefore = asStrings(doc.Data["timelineBefore"])
	if pos, ok := doc.Data["correctPosition"]; ok {
		r.CorrectPosition = asInt(pos)
	}
	return r, true
}

func decodeSubmission(doc store.Doc) (Submission, bool) {
	playerID, ok := asString(doc.Data["playerId"])
	if !ok {
		return Submission{}, false
	}
	return Submission{
		PlayerID:      playerID,
		RoundIndex:    asInt(doc.Data["roundIndex"]),
		PositionIndex: asInt(doc.Data["positionIndex"]),
		SubmittedAt:   asTime(doc.Data["submittedAt"]),
		IsCorrect:     asBool(doc.Data["isCorrect"]),
		LatencyMs:     asFloat(doc.Data["latencyMs"]),
	}, true
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
