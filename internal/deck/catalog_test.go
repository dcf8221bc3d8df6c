package deck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewCatalogFallsBackToDefaults(t *testing.T) {
	catalog := NewCatalog(filepath.Join(t.TempDir(), "missing.json"))
	cards := catalog.Cards()
	if len(cards) == 0 {
		t.Fatal("expected built-in cards when the bundled file is missing")
	}
	seen := make(map[Category]bool)
	for _, card := range cards {
		seen[card.Category] = true
	}
	for _, category := range Categories {
		if !seen[category] {
			t.Fatalf("built-in set is missing category %s", category)
		}
	}
}

func TestNewCatalogLoadsBundledFile(t *testing.T) {
	cards := []Card{
		{ID: "c1", Title: "One", Year: 1900, Category: CategoryScience},
		{ID: "c2", Title: "Two", Year: 1950, Category: CategoryHistory},
	}
	data, err := json.Marshal(cards)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "cards.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	catalog := NewCatalog(path)
	if got := len(catalog.Cards()); got != 2 {
		t.Fatalf("expected 2 bundled cards, got %d", got)
	}
	card, ok := catalog.CardByID("c2")
	if !ok || card.Title != "Two" {
		t.Fatalf("CardByID returned %v %v", card, ok)
	}
}

func TestCatalogRemoteRefresh(t *testing.T) {
	remote := []Card{
		{ID: "r1", Title: "Remote", Year: 2000, Category: CategoryTechnology},
	}
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(remote)
	}))
	defer ts.Close()

	catalog := NewCatalogWithCards([]Card{{ID: "local", Year: 1900, Category: CategoryHistory}})
	catalog.SetRemote(ts.URL, time.Hour)

	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if _, ok := catalog.CardByID("r1"); !ok {
		t.Fatal("remote cards should replace the pool")
	}

	// Second refresh inside the minimum interval must not hit the server.
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("throttled refresh failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 remote call, got %d", calls)
	}
}

func TestCatalogRemoteRefreshIgnoresEmptyPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()

	catalog := NewCatalogWithCards([]Card{{ID: "local", Year: 1900, Category: CategoryHistory}})
	catalog.SetRemote(ts.URL, 0)

	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if _, ok := catalog.CardByID("local"); !ok {
		t.Fatal("empty remote payload must keep the existing pool")
	}
}
