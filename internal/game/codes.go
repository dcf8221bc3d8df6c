package game

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"

	"timeline-arena/internal/store"
)

const shortCodeAttempts = 10

// newShortCode samples 4-digit codes until one is free of currently joinable
// games, falling back to the 6-digit space after ten collisions. Codes are
// only unique among lobby/running games, not across all time.
func newShortCode(ctx context.Context, st store.Store, rng *rand.Rand) (string, error) {
	for attempt := 0; attempt < shortCodeAttempts; attempt++ {
		code := fmt.Sprintf("%04d", 1000+rng.Intn(9000))
		taken, err := shortCodeTaken(ctx, st, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return fmt.Sprintf("%06d", 100000+rng.Intn(900000)), nil
}

func shortCodeTaken(ctx context.Context, st store.Store, code string) (bool, error) {
	docs, err := st.Query(ctx, "games", []store.Filter{{Field: "shortCode", Equals: code}}, 0)
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if status, ok := doc.Data["status"].(string); ok {
			if status == StatusLobby || status == StatusRunning {
				return true, nil
			}
		}
	}
	return false, nil
}

func isNumericCode(code string) bool {
	if len(code) < 4 || len(code) > 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseJoinLink extracts the game id from a scheme://join?gameId=<id> deep
// link.
func ParseJoinLink(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrGameNotFound
	}
	if u.Host != "join" && strings.Trim(u.Path, "/") != "join" {
		return "", ErrGameNotFound
	}
	gameID := u.Query().Get("gameId")
	if gameID == "" {
		return "", ErrGameNotFound
	}
	return gameID, nil
}
