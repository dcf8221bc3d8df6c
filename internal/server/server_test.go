package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"timeline-arena/internal/config"
	"timeline-arena/internal/deck"
	"timeline-arena/internal/store"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	catalog := deck.NewCatalogWithCards([]deck.Card{
		{ID: "wheel", Title: "Wheel", Year: -3500, Category: deck.CategoryTechnology},
		{ID: "print", Title: "Printing Press", Year: 1440, Category: deck.CategoryScience},
		{ID: "phone", Title: "Telephone", Year: 1876, Category: deck.CategoryHistory},
		{ID: "moon", Title: "Moon Landing", Year: 1969, Category: deck.CategoryCulture},
	})
	cfg := config.Default()
	cfg.DeckSize = 4

	srv := New(nil, store.NewMemory(), catalog, cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func newPlayer(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/session", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	id, _ := body["playerId"].(string)
	if id == "" {
		t.Fatal("session response missing playerId")
	}
	return id
}

func createGame(t *testing.T, ts *httptest.Server, token string) (string, string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/games", token, map[string]string{"mode": "private"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create game: status %d body %v", resp.StatusCode, body)
	}
	gameID, _ := body["id"].(string)
	gameData, _ := body["game"].(map[string]any)
	code, _ := gameData["shortCode"].(string)
	if gameID == "" || code == "" {
		t.Fatalf("create game response incomplete: %v", body)
	}
	return gameID, code
}

func TestCreateGameRequiresAuth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/games", "", map[string]string{"mode": "private"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateGameAndSnapshot(t *testing.T) {
	_, ts := newTestServer(t)
	host := newPlayer(t, ts)
	gameID, code := createGame(t, ts, host)

	if len(code) != 4 {
		t.Fatalf("short code %q, want 4 digits", code)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/games/"+gameID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot: status %d", resp.StatusCode)
	}
	players, _ := body["players"].([]any)
	if len(players) != 1 {
		t.Fatalf("players = %d, want 1", len(players))
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/games/none", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing game: status %d, want 404", resp.StatusCode)
	}
}

func TestJoinByCode(t *testing.T) {
	_, ts := newTestServer(t)
	host := newPlayer(t, ts)
	gameID, code := createGame(t, ts, host)

	guest := newPlayer(t, ts)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/games/join", guest, map[string]string{"code": code})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status %d body %v", resp.StatusCode, body)
	}
	if joined, _ := body["id"].(string); joined != gameID {
		t.Fatalf("joined %q, want %q", joined, gameID)
	}
	gameData, _ := body["game"].(map[string]any)
	if count, _ := gameData["playersCount"].(float64); count != 2 {
		t.Fatalf("playersCount = %v, want 2", gameData["playersCount"])
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/games/join", guest, map[string]string{"code": "0000"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bogus code: status %d, want 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/games/join", guest, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty join: status %d, want 400", resp.StatusCode)
	}
}

func TestStartAndSubmitFlow(t *testing.T) {
	_, ts := newTestServer(t)
	host := newPlayer(t, ts)
	gameID, code := createGame(t, ts, host)

	guest := newPlayer(t, ts)
	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/games/join", guest, map[string]string{"code": code}); resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status %d", resp.StatusCode)
	}

	// Guests cannot start a private game.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/games/"+gameID+"/start", guest, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("guest start: status %d, want 409", resp.StatusCode)
	}

	waitForStatus(t, ts, gameID, "lobby")
	var started bool
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/games/"+gameID+"/start", host, nil)
		if resp.StatusCode == http.StatusOK {
			started = true
			break
		}
		// The host's session may not have observed the guest yet.
		time.Sleep(10 * time.Millisecond)
	}
	if !started {
		t.Fatal("host could not start the game")
	}
	waitForStatus(t, ts, gameID, "running")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/games/"+gameID+"/submit", host, map[string]int{"positionIndex": 0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d body %v", resp.StatusCode, body)
	}
	if accepted, _ := body["accepted"].(bool); !accepted {
		t.Fatalf("submit body = %v", body)
	}

	// Submitting against a game this session is not in is a 404.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/games/other/submit", host, map[string]int{"positionIndex": 0})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign submit: status %d, want 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/games/"+gameID+"/leave", host, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leave: status %d", resp.StatusCode)
	}
}

func waitForStatus(t *testing.T, ts *httptest.Server, gameID, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, body := doJSON(t, http.MethodGet, ts.URL+"/api/games/"+gameID, "", nil)
		if gameData, ok := body["game"].(map[string]any); ok {
			if status, _ := gameData["status"].(string); status == want {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("game %s never reached status %q", gameID, want)
}

func TestJoinLink(t *testing.T) {
	_, ts := newTestServer(t)
	host := newPlayer(t, ts)
	gameID, _ := createGame(t, ts, host)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/join?gameId="+gameID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join link: status %d", resp.StatusCode)
	}
	if body["gameId"] != gameID {
		t.Fatalf("join link body = %v", body)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/join", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing gameId: status %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/join?gameId=none", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown gameId: status %d, want 404", resp.StatusCode)
	}
}

func TestBattleRoyaleEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	first := newPlayer(t, ts)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/games/battle-royale", first, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("battle royale: status %d body %v", resp.StatusCode, body)
	}
	gameID, _ := body["id"].(string)
	if gameID == "" {
		t.Fatal("battle royale response missing game id")
	}

	second := newPlayer(t, ts)
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/games/battle-royale", second, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second battle royale: status %d", resp.StatusCode)
	}
	if joined, _ := body["id"].(string); joined != gameID {
		t.Fatalf("second player landed in %q, want %q", joined, gameID)
	}
}

func TestWebsocketDeliversSnapshotAndUpdates(t *testing.T) {
	_, ts := newTestServer(t)
	host := newPlayer(t, ts)
	gameID, code := createGame(t, ts, host)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/games/" + gameID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first["type"] != "snapshot" {
		t.Fatalf("first message type = %v, want snapshot", first["type"])
	}

	// A join should surface as a broadcast on the open socket.
	guest := newPlayer(t, ts)
	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/games/join", guest, map[string]string{"code": code}); resp.StatusCode != http.StatusOK {
		t.Fatalf("join: status %d", resp.StatusCode)
	}
	sawPlayer := false
	for !sawPlayer {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read update: %v", err)
		}
		if msg["type"] == "player" {
			sawPlayer = true
		}
	}

	if _, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/games/none", nil); err == nil {
		t.Fatal("dial to unknown game should fail")
	}
}
