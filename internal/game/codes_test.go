package game

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"timeline-arena/internal/store"
)

func TestNewShortCodeRange(t *testing.T) {
	st := store.NewMemory()
	rng := rand.New(rand.NewSource(1))

	code, err := newShortCode(context.Background(), st, rng)
	if err != nil {
		t.Fatalf("newShortCode: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("code %q should be 4 digits", code)
	}
	if code[0] == '0' {
		t.Fatalf("code %q should not have a leading zero", code)
	}
}

func TestNewShortCodeSkipsActiveCollisions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	// Occupy the entire 4-digit space with running games so the generator
	// must fall back to 6 digits.
	for i := 1000; i < 10000; i++ {
		path := fmt.Sprintf("games/g%d", i)
		err := st.Set(ctx, path, map[string]any{
			"shortCode": fmt.Sprintf("%04d", i),
			"status":    StatusRunning,
			"hostId":    "h",
		})
		if err != nil {
			t.Fatalf("seed game: %v", err)
		}
	}

	code, err := newShortCode(ctx, st, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("newShortCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit fallback, got %q", code)
	}
}

func TestNewShortCodeIgnoresFinishedGames(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	rng := rand.New(rand.NewSource(7))
	want := fmt.Sprintf("%04d", 1000+rand.New(rand.NewSource(7)).Intn(9000))
	err := st.Set(ctx, "games/old", map[string]any{
		"shortCode": want,
		"status":    StatusFinished,
		"hostId":    "h",
	})
	if err != nil {
		t.Fatalf("seed game: %v", err)
	}

	code, err := newShortCode(ctx, st, rng)
	if err != nil {
		t.Fatalf("newShortCode: %v", err)
	}
	if code != want {
		t.Fatalf("finished games should not reserve codes: got %q, want %q", code, want)
	}
}

func TestIsNumericCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"1234", true},
		{"123456", true},
		{"123", false},
		{"1234567", false},
		{"12a4", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isNumericCode(tt.code); got != tt.want {
			t.Fatalf("isNumericCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestParseJoinLink(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"timelinearena://join?gameId=abc-123", "abc-123", false},
		{"https://example.com/join?gameId=abc-123", "abc-123", false},
		{"timelinearena://join", "", true},
		{"timelinearena://other?gameId=abc", "", true},
		{"   timelinearena://join?gameId=abc  ", "abc", false},
		{"not a url ://", "", true},
	}
	for _, tt := range tests {
		got, err := ParseJoinLink(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseJoinLink(%q) expected error, got %q", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseJoinLink(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseJoinLink(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
