package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"timeline-arena/internal/config"
	"timeline-arena/internal/deck"
	"timeline-arena/internal/store"

	"github.com/google/uuid"
)

// EventKind tags the typed session events a coordinator publishes.
type EventKind string

const (
	SessionGameUpdated        EventKind = "game_updated"
	SessionPlayersUpdated     EventKind = "players_updated"
	SessionSubmissionsUpdated EventKind = "submissions_updated"
	SessionRoundStarted       EventKind = "round_started"
	SessionRoundResolved      EventKind = "round_resolved"
	SessionGameFinished       EventKind = "game_finished"
	SessionError              EventKind = "error"
)

// SessionEvent is delivered on the coordinator's event channel so consumers
// (transport layers, bots, tests) can react without touching internals.
type SessionEvent struct {
	Kind       EventKind
	GameID     string
	RoundIndex int
	Err        error
}

// Coordinator is one participant's view of a game session. It owns the
// subscriptions to the replicated store, mirrors game/player/round/submission
// documents into local state, and, when this participant is the host, runs
// the round state machine: collect submissions, resolve, advance.
//
// All cross-client coordination goes through the store; the only authoritative
// writer for round transitions is the host's coordinator.
type Coordinator struct {
	st      store.Store
	catalog *deck.Catalog
	cfg     config.Config
	userID  string

	mu           sync.Mutex
	rng          *rand.Rand
	gameID       string
	game         Game
	hasGame      bool
	players      []Player
	submissions  map[string]Submission
	round        Round
	hasRound     bool
	deckCards    []deck.Card
	timeline     []deck.Card
	currentCard  deck.Card
	hasCard      bool
	submitted    map[int]bool
	lastStarted  int
	lastResolved int
	finishSent   bool

	sessionCancel context.CancelFunc
	roundCancel   context.CancelFunc
	watchedRound  int
	storeCh       chan store.Event

	timerMu        sync.Mutex
	roundTimer     *time.Timer
	timerRound     int
	countdownTimer *time.Timer

	events chan SessionEvent
}

// New builds a coordinator for one authenticated participant. userID is the
// participant's stable identity; an empty id fails every operation with
// ErrNotAuthenticated.
func New(st store.Store, catalog *deck.Catalog, cfg config.Config, userID string) *Coordinator {
	return &Coordinator{
		st:      st,
		catalog: catalog,
		cfg:     cfg,
		userID:  userID,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		events:  make(chan SessionEvent, 64),
	}
}

// Events exposes the typed session event stream. Events are dropped rather
// than blocking the control loop when the consumer lags.
func (c *Coordinator) Events() <-chan SessionEvent {
	return c.events
}

func (c *Coordinator) emit(event SessionEvent) {
	select {
	case c.events <- event:
	default:
	}
}

// CreateGame allocates a new lobby with this participant as host and begins
// the session subscriptions. Private games get a short join code; battle
// royale lobbies get a fixed start countdown instead.
func (c *Coordinator) CreateGame(ctx context.Context, mode string) (string, error) {
	if c.userID == "" {
		return "", ErrNotAuthenticated
	}
	if mode != ModePrivate && mode != ModeBattleRoyale {
		return "", ErrInvalidState
	}

	gameID := uuid.NewString()
	c.mu.Lock()
	seed := c.rng.Intn(10000)
	c.mu.Unlock()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	game := Game{
		ID:           gameID,
		Status:       StatusLobby,
		Mode:         mode,
		CurrentRound: 0,
		MaxPlayers:   c.maxPlayersFor(mode),
		DeckSeed:     seed,
		PlayersCount: 1,
		AliveCount:   1,
		HostID:       c.userID,
	}
	if mode == ModePrivate {
		code, err := newShortCode(ctx, c.st, rng)
		if err != nil {
			return "", err
		}
		game.ShortCode = code
	} else {
		game.StartsAt = c.st.Now().Add(time.Duration(c.cfg.CountdownSeconds) * time.Second)
	}

	c.mu.Lock()
	host := Player{
		ID:          c.userID,
		DisplayName: randomDisplayName(c.rng),
		IsHost:      true,
		Avatar:      randomAvatar(c.rng),
	}
	c.mu.Unlock()

	batch := store.NewBatch().
		Set(gamePath(gameID), game.doc()).
		Set(playerPath(gameID, c.userID), host.doc())
	if err := c.st.Commit(ctx, batch); err != nil {
		return "", err
	}
	log.Printf("game created game_id=%s mode=%s short_code=%s seed=%d", gameID, mode, game.ShortCode, seed)

	c.startSession(gameID)
	c.primeGame(game)
	return gameID, nil
}

// JoinGame adds this participant to an existing game by id.
func (c *Coordinator) JoinGame(ctx context.Context, gameID string) error {
	if c.userID == "" {
		return ErrNotAuthenticated
	}
	if gameID == "" {
		return ErrGameNotFound
	}

	doc, err := c.st.Get(ctx, gamePath(gameID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGameNotFound
		}
		return err
	}
	game, ok := decodeGame(doc)
	if !ok {
		return ErrGameNotFound
	}
	if game.Status != StatusLobby && game.Status != StatusRunning {
		return ErrGameAlreadyStarted
	}
	if game.PlayersCount >= game.MaxPlayers {
		return ErrGameFull
	}

	c.mu.Lock()
	player := Player{
		ID:          c.userID,
		DisplayName: randomDisplayName(c.rng),
		Avatar:      randomAvatar(c.rng),
	}
	c.mu.Unlock()

	batch := store.NewBatch().
		Set(playerPath(gameID, c.userID), player.doc()).
		Merge(gamePath(gameID), map[string]any{
			"playersCount": store.Increment{By: 1},
			"aliveCount":   store.Increment{By: 1},
		})
	if err := c.st.Commit(ctx, batch); err != nil {
		return err
	}
	log.Printf("player joined game_id=%s player_id=%s", gameID, c.userID)

	c.startSession(gameID)
	c.primeGame(game)
	return nil
}

// JoinByCode joins via a short numeric code or, for long inputs, a raw game
// id.
func (c *Coordinator) JoinByCode(ctx context.Context, code string) error {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ErrGameNotFound
	}
	if isNumericCode(trimmed) {
		docs, err := c.st.Query(ctx, "games", []store.Filter{{Field: "shortCode", Equals: trimmed}}, 10)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			game, ok := decodeGame(doc)
			if !ok {
				continue
			}
			if game.Status == StatusLobby || game.Status == StatusRunning {
				return c.JoinGame(ctx, game.ID)
			}
		}
		return ErrGameNotFound
	}
	if len(trimmed) > 10 {
		return c.JoinGame(ctx, trimmed)
	}
	return ErrGameNotFound
}

// JoinBattleRoyale joins an open battle royale lobby with room, creating a
// fresh one when none exists. Two racing callers may each create a lobby;
// that is accepted.
func (c *Coordinator) JoinBattleRoyale(ctx context.Context) (string, error) {
	if c.userID == "" {
		return "", ErrNotAuthenticated
	}
	docs, err := c.st.Query(ctx, "games", []store.Filter{
		{Field: "mode", Equals: ModeBattleRoyale},
		{Field: "status", Equals: StatusLobby},
	}, 0)
	if err != nil {
		return "", err
	}
	for _, doc := range docs {
		game, ok := decodeGame(doc)
		if !ok {
			continue
		}
		if game.PlayersCount < game.MaxPlayers {
			if err := c.JoinGame(ctx, game.ID); err != nil {
				return "", err
			}
			return game.ID, nil
		}
	}
	return c.CreateGame(ctx, ModeBattleRoyale)
}

// StartGame moves a lobby into its first round. Only the host of a private
// game may start it, and at least two players must be present. The first
// deck card seeds the timeline; round 1 presents the second card.
func (c *Coordinator) StartGame(ctx context.Context) error {
	if c.userID == "" {
		return ErrNotAuthenticated
	}
	c.mu.Lock()
	if !c.hasGame {
		c.mu.Unlock()
		return ErrInvalidState
	}
	game := c.game
	players := append([]Player(nil), c.players...)
	c.mu.Unlock()

	if game.Mode == ModePrivate && game.HostID != c.userID {
		return ErrInvalidState
	}
	if game.Status != StatusLobby {
		return ErrGameAlreadyStarted
	}
	if len(players) < 2 {
		return ErrInvalidState
	}

	cards := c.catalog.Generate(game.DeckSeed, c.cfg.DeckSize)
	if len(cards) < 2 {
		return ErrInvalidState
	}
	first, second := cards[0], cards[1]

	now := c.st.Now()
	round := Round{
		RoundIndex:     1,
		CardID:         second.ID,
		CardIndex:      1,
		RoundEndsAt:    now.Add(c.roundDuration()),
		TimelineBefore: []string{first.ID},
	}
	batch := store.NewBatch().
		Merge(gamePath(game.ID), map[string]any{
			"status":       StatusRunning,
			"currentRound": 1,
			"totalCards":   len(cards),
		}).
		Set(roundPath(game.ID, 1), round.doc())
	for _, player := range players {
		batch.Merge(playerPath(game.ID, player.ID), map[string]any{
			"lives":  c.cfg.StartingLives,
			"errors": 0,
		})
	}
	if err := c.st.Commit(ctx, batch); err != nil {
		return err
	}
	log.Printf("game started game_id=%s players=%d cards=%d", game.ID, len(players), len(cards))

	c.mu.Lock()
	c.deckCards = cards
	c.timeline = []deck.Card{first}
	c.currentCard = second
	c.hasCard = true
	if !c.hasRound {
		round.RoundStartsAt = now
		c.round = round
		c.hasRound = true
	}
	c.mu.Unlock()
	return nil
}

// SubmitPlacement records this participant's placement for the active round.
// Correctness is computed once, locally, against the round's timeline; an
// incorrect placement costs a life in the same atomic write.
func (c *Coordinator) SubmitPlacement(ctx context.Context, positionIndex int) error {
	return c.submit(ctx, positionIndex, false)
}

func (c *Coordinator) submit(ctx context.Context, positionIndex int, auto bool) error {
	if c.userID == "" {
		return ErrNotAuthenticated
	}
	c.mu.Lock()
	if !c.hasGame || !c.hasRound || !c.hasCard {
		c.mu.Unlock()
		return ErrInvalidState
	}
	round := c.round
	gameID := c.gameID
	timeline := append([]deck.Card(nil), c.timeline...)
	card := c.currentCard
	now := c.st.Now()

	if round.Resolved || (!auto && !round.Active(now)) {
		c.mu.Unlock()
		return ErrRoundExpired
	}

	submission := Submission{
		PlayerID:      c.userID,
		RoundIndex:    round.RoundIndex,
		PositionIndex: positionIndex,
		SubmittedAt:   now,
		IsCorrect:     ValidPlacement(timeline, card, positionIndex),
		LatencyMs:     float64(now.Sub(round.RoundStartsAt).Milliseconds()),
	}
	if c.submitted == nil {
		c.submitted = make(map[int]bool)
	}
	if c.submitted[round.RoundIndex] {
		c.mu.Unlock()
		return nil
	}
	if _, exists := c.submissions[submission.Key()]; exists {
		// A duplicate (retried) write must never re-validate.
		c.submitted[round.RoundIndex] = true
		c.mu.Unlock()
		return nil
	}
	c.submitted[round.RoundIndex] = true
	c.mu.Unlock()

	playerFields := map[string]any{"lastSeenAt": store.ServerTimestamp{}}
	if !submission.IsCorrect {
		playerFields["lives"] = store.Increment{By: -1}
		playerFields["errors"] = store.Increment{By: 1}
	}
	batch := store.NewBatch().
		Set(submissionPath(gameID, submission.Key()), submission.doc()).
		Merge(playerPath(gameID, c.userID), playerFields)
	if err := c.st.Commit(ctx, batch); err != nil {
		c.mu.Lock()
		delete(c.submitted, round.RoundIndex)
		c.mu.Unlock()
		return err
	}
	log.Printf("placement submitted game_id=%s player_id=%s round=%d position=%d correct=%v auto=%v",
		gameID, c.userID, round.RoundIndex, positionIndex, submission.IsCorrect, auto)
	return nil
}

// Leave tears the session down: subscriptions are cancelled, timers stopped,
// local state cleared. The player document stays so a rejoin can resume.
func (c *Coordinator) Leave() {
	c.stopSession()
	c.mu.Lock()
	c.gameID = ""
	c.hasGame = false
	c.players = nil
	c.submissions = nil
	c.hasRound = false
	c.deckCards = nil
	c.timeline = nil
	c.hasCard = false
	c.submitted = nil
	c.lastStarted = 0
	c.lastResolved = 0
	c.finishSent = false
	c.mu.Unlock()
}

// CurrentGame returns the latest game snapshot.
func (c *Coordinator) CurrentGame() (Game, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game, c.hasGame
}

// CurrentRound returns the latest round snapshot.
func (c *Coordinator) CurrentRound() (Round, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round, c.hasRound
}

// Players returns the latest player list.
func (c *Coordinator) Players() []Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Player(nil), c.players...)
}

// Timeline returns the shared timeline as this client sees it.
func (c *Coordinator) Timeline() []deck.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]deck.Card(nil), c.timeline...)
}

// CurrentCard returns the card being placed this round.
func (c *Coordinator) CurrentCard() (deck.Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentCard, c.hasCard
}

// Submissions returns the submissions seen so far.
func (c *Coordinator) Submissions() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Submission, 0, len(c.submissions))
	for _, submission := range c.submissions {
		out = append(out, submission)
	}
	return out
}

func (c *Coordinator) maxPlayersFor(mode string) int {
	if mode == ModeBattleRoyale {
		return c.cfg.MaxPlayersBattleRoyale
	}
	return c.cfg.MaxPlayersPrivate
}

func (c *Coordinator) roundDuration() time.Duration {
	return time.Duration(c.cfg.RoundDurationSeconds) * time.Second
}

// --- session control loop ---

func (c *Coordinator) startSession(gameID string) {
	c.stopSession()

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.sessionCancel = cancel
	c.gameID = gameID
	c.submissions = make(map[string]Submission)
	c.submitted = make(map[int]bool)
	c.storeCh = make(chan store.Event, 256)
	c.watchedRound = 0
	c.lastStarted = 0
	c.lastResolved = 0
	c.finishSent = false
	storeCh := c.storeCh
	c.mu.Unlock()

	go c.run(ctx, storeCh)
	c.watch(ctx, gameID, gamePath(gameID), storeCh)
	c.watch(ctx, gameID, playersPath(gameID), storeCh)
	c.watch(ctx, gameID, submissionsPath(gameID), storeCh)
}

// primeGame seeds the local game snapshot so callers can rely on
// CurrentGame immediately after create/join, before the first watch event
// lands. Watch events overwrite it with fresher data.
func (c *Coordinator) primeGame(game Game) {
	c.mu.Lock()
	if !c.hasGame {
		c.game = game
		c.hasGame = true
	}
	c.mu.Unlock()
}

func (c *Coordinator) stopSession() {
	c.mu.Lock()
	cancel := c.sessionCancel
	c.sessionCancel = nil
	c.roundCancel = nil
	c.watchedRound = 0
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.stopRoundTimer()
	c.timerMu.Lock()
	if c.countdownTimer != nil {
		c.countdownTimer.Stop()
		c.countdownTimer = nil
	}
	c.timerMu.Unlock()
}

// watch keeps one store subscription alive, forwarding its events into the
// control loop. A closed channel means the subscriber lagged; it is surfaced
// as a recoverable session error and the subscription is re-established.
func (c *Coordinator) watch(ctx context.Context, gameID, path string, storeCh chan store.Event) {
	go func() {
		for {
			ch, err := c.st.Watch(ctx, path)
			if err != nil {
				c.emit(SessionEvent{Kind: SessionError, GameID: gameID, Err: err})
				return
			}
			for event := range ch {
				select {
				case storeCh <- event:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			default:
				c.emit(SessionEvent{
					Kind: SessionError, GameID: gameID,
					Err: fmt.Errorf("subscription to %s lagged, resubscribing", path),
				})
			}
		}
	}()
}

func (c *Coordinator) run(ctx context.Context, storeCh chan store.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-storeCh:
			c.handle(ctx, event)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, event store.Event) {
	c.mu.Lock()
	gameID := c.gameID
	c.mu.Unlock()
	if gameID == "" {
		return
	}

	collection := store.CollectionOf(event.Doc.Path)
	switch {
	case event.Doc.Path == gamePath(gameID):
		c.handleGame(ctx, event)
	case collection == playersPath(gameID):
		c.handlePlayer(event)
	case collection == submissionsPath(gameID):
		c.handleSubmission(ctx, event)
	case collection == roundsPath(gameID):
		c.handleRound(ctx, event)
	}
}

func (c *Coordinator) handleGame(ctx context.Context, event store.Event) {
	game, ok := decodeGame(event.Doc)
	if !ok {
		return
	}

	c.mu.Lock()
	c.game = game
	c.hasGame = true
	needRoundWatch := game.Status == StatusRunning && game.CurrentRound > 0 && c.watchedRound != game.CurrentRound
	needCountdown := game.Mode == ModeBattleRoyale && game.Status == StatusLobby &&
		game.HostID == c.userID && !game.StartsAt.IsZero()
	finished := game.Status == StatusFinished && !c.finishSent
	if finished {
		c.finishSent = true
	}
	c.mu.Unlock()

	c.emit(SessionEvent{Kind: SessionGameUpdated, GameID: game.ID})
	if needRoundWatch {
		c.watchRound(ctx, game.ID, game.CurrentRound)
	}
	if needCountdown {
		c.scheduleCountdown(game.StartsAt)
	}
	if finished {
		c.stopRoundTimer()
		c.emit(SessionEvent{Kind: SessionGameFinished, GameID: game.ID})
		log.Printf("game finished game_id=%s", game.ID)
	}
}

func (c *Coordinator) watchRound(ctx context.Context, gameID string, index int) {
	c.mu.Lock()
	if c.roundCancel != nil {
		c.roundCancel()
	}
	roundCtx, cancel := context.WithCancel(ctx)
	c.roundCancel = cancel
	c.watchedRound = index
	storeCh := c.storeCh
	c.mu.Unlock()

	c.watch(roundCtx, gameID, roundPath(gameID, index), storeCh)
}

func (c *Coordinator) handlePlayer(event store.Event) {
	player, ok := decodePlayer(event.Doc)
	if !ok {
		return
	}

	c.mu.Lock()
	replaced := false
	for i := range c.players {
		if c.players[i].ID == player.ID {
			c.players[i] = player
			replaced = true
			break
		}
	}
	if !replaced {
		c.players = append(c.players, player)
	}
	gameID := c.gameID
	c.mu.Unlock()

	c.emit(SessionEvent{Kind: SessionPlayersUpdated, GameID: gameID})
}

func (c *Coordinator) handleSubmission(ctx context.Context, event store.Event) {
	submission, ok := decodeSubmission(event.Doc)
	if !ok {
		return
	}

	c.mu.Lock()
	key := submission.Key()
	if _, exists := c.submissions[key]; exists {
		// Duplicate delivery of the same keyed write; correctness was already
		// recorded and must not change.
		c.mu.Unlock()
		return
	}
	c.submissions[key] = submission
	gameID := c.gameID
	host := c.hasGame && c.game.HostID == c.userID
	c.mu.Unlock()

	c.emit(SessionEvent{Kind: SessionSubmissionsUpdated, GameID: gameID, RoundIndex: submission.RoundIndex})
	if host {
		c.maybeResolve(ctx)
	}
}

func (c *Coordinator) handleRound(ctx context.Context, event store.Event) {
	round, ok := decodeRound(event.Doc)
	if !ok {
		return
	}

	c.mu.Lock()
	if c.hasGame && c.game.CurrentRound > round.RoundIndex {
		// The game document can outrun a superseded round watch; the terminal
		// resolved write for the previous round still has to be surfaced even
		// though its state snapshot is stale.
		surface := round.Resolved && round.RoundIndex == c.game.CurrentRound-1 &&
			c.lastResolved < round.RoundIndex
		if surface {
			c.lastResolved = round.RoundIndex
		}
		gameID := c.gameID
		c.mu.Unlock()
		if surface {
			c.emit(SessionEvent{Kind: SessionRoundResolved, GameID: gameID, RoundIndex: round.RoundIndex})
		}
		return
	}
	c.round = round
	c.hasRound = true
	cards := c.deckLocked()
	card, hasCard := cardByID(cards, round.CardID, round.CardIndex)
	c.currentCard = card
	c.hasCard = hasCard
	c.timeline = buildTimeline(round.TimelineBefore, cards, round.CardIndex)
	if round.Resolved && round.CorrectPosition >= 0 && hasCard {
		c.timeline = insertCard(c.timeline, card, round.CorrectPosition)
	}
	started := !round.Resolved && c.lastStarted != round.RoundIndex
	if started {
		c.lastStarted = round.RoundIndex
	}
	resolved := round.Resolved && c.lastResolved < round.RoundIndex
	if resolved {
		c.lastResolved = round.RoundIndex
	}
	gameID := c.gameID
	host := c.hasGame && c.game.HostID == c.userID
	c.mu.Unlock()

	if started {
		c.emit(SessionEvent{Kind: SessionRoundStarted, GameID: gameID, RoundIndex: round.RoundIndex})
		c.scheduleRoundTimer(round)
	}
	if resolved {
		c.emit(SessionEvent{Kind: SessionRoundResolved, GameID: gameID, RoundIndex: round.RoundIndex})
	} else if !round.Resolved && host {
		c.maybeResolve(ctx)
	}
}

// deckLocked returns the deterministic deck for the current game, generating
// it on first use. Caller holds c.mu.
func (c *Coordinator) deckLocked() []deck.Card {
	if c.deckCards == nil && c.hasGame {
		c.deckCards = c.catalog.Generate(c.game.DeckSeed, c.cfg.DeckSize)
	}
	return c.deckCards
}

func cardByID(cards []deck.Card, id string, fallbackIndex int) (deck.Card, bool) {
	for _, card := range cards {
		if card.ID == id {
			return card, true
		}
	}
	if fallbackIndex >= 0 && fallbackIndex < len(cards) {
		return cards[fallbackIndex], true
	}
	return deck.Card{}, false
}

// --- deadline timers ---

func (c *Coordinator) scheduleRoundTimer(round Round) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timerRound == round.RoundIndex && c.roundTimer != nil {
		return
	}
	if c.roundTimer != nil {
		c.roundTimer.Stop()
	}
	delay := round.RoundEndsAt.Sub(c.st.Now())
	if delay < 0 {
		delay = 0
	}
	index := round.RoundIndex
	c.timerRound = index
	c.roundTimer = time.AfterFunc(delay, func() {
		c.onDeadline(index)
	})
}

func (c *Coordinator) stopRoundTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.roundTimer != nil {
		c.roundTimer.Stop()
		c.roundTimer = nil
	}
	c.timerRound = 0
}

// scheduleCountdown arms the battle royale auto-start on the creating host.
// If the countdown expires with the lobby still short of two players the
// start attempt fails and is retried a little later.
func (c *Coordinator) scheduleCountdown(startsAt time.Time) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.countdownTimer != nil {
		return
	}
	delay := startsAt.Sub(c.st.Now())
	if delay < 0 {
		delay = 0
	}
	c.countdownTimer = time.AfterFunc(delay, c.onCountdown)
}

func (c *Coordinator) onCountdown() {
	c.mu.Lock()
	lobby := c.hasGame && c.game.Status == StatusLobby && c.game.HostID == c.userID
	gameID := c.gameID
	c.mu.Unlock()
	if !lobby {
		return
	}
	if err := c.StartGame(context.Background()); err != nil {
		if errors.Is(err, ErrInvalidState) {
			c.timerMu.Lock()
			c.countdownTimer = time.AfterFunc(10*time.Second, c.onCountdown)
			c.timerMu.Unlock()
			return
		}
		if !errors.Is(err, ErrGameAlreadyStarted) {
			c.emit(SessionEvent{Kind: SessionError, GameID: gameID, Err: err})
		}
	}
}

// onDeadline fires when the round window closes on this client's clock. The
// client auto-submits a random position if it has not answered, and the host
// additionally runs the completion check so expired rounds still resolve.
func (c *Coordinator) onDeadline(index int) {
	c.mu.Lock()
	if !c.hasRound || c.round.RoundIndex != index || c.round.Resolved {
		c.mu.Unlock()
		return
	}
	needsSubmit := !c.submitted[index] && c.selfAliveLocked()
	position := 0
	if needsSubmit {
		position = c.rng.Intn(len(c.timeline) + 1)
	}
	host := c.hasGame && c.game.HostID == c.userID
	gameID := c.gameID
	c.mu.Unlock()

	ctx := context.Background()
	if needsSubmit {
		if err := c.submit(ctx, position, true); err != nil && !errors.Is(err, ErrRoundExpired) {
			c.emit(SessionEvent{Kind: SessionError, GameID: gameID, RoundIndex: index, Err: err})
		}
	}
	if host {
		c.maybeResolve(ctx)
	}
}

// selfAliveLocked reports whether this participant can still play. Lives of
// -1 means the game has not dealt lives yet. Caller holds c.mu.
func (c *Coordinator) selfAliveLocked() bool {
	for _, player := range c.players {
		if player.ID == c.userID {
			return !player.IsEliminated && player.Lives != 0
		}
	}
	return false
}

// --- host-only resolution ---

// maybeResolve runs the round completion check. Only the host ever gets
// here; every other client observes resolution through the round document.
func (c *Coordinator) maybeResolve(ctx context.Context) {
	c.mu.Lock()
	if !c.hasGame || !c.hasRound || c.round.Resolved || c.game.HostID != c.userID {
		c.mu.Unlock()
		return
	}
	round := c.round
	gameID := c.gameID
	now := c.st.Now()

	submitted := make(map[string]struct{})
	roundSubs := make([]Submission, 0, len(c.submissions))
	for _, submission := range c.submissions {
		if submission.RoundIndex == round.RoundIndex {
			submitted[submission.PlayerID] = struct{}{}
			roundSubs = append(roundSubs, submission)
		}
	}
	alive := make(map[string]struct{})
	for _, player := range c.players {
		if !player.IsEliminated && player.Lives > 0 {
			alive[player.ID] = struct{}{}
		}
	}

	// An empty alive set means the lives merges from the start batch have not
	// landed yet; only the deadline may close a round in that state.
	complete := len(alive) > 0 && (len(roundSubs) >= len(alive) || setsEqual(submitted, alive))
	if !complete && !now.Before(round.RoundEndsAt) {
		complete = true
	}
	if !complete {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.resolveRound(ctx); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return
		}
		// Leave the round unresolved; the next completion check retries from
		// the same snapshot, and the recomputed position is identical.
		c.emit(SessionEvent{Kind: SessionError, GameID: gameID, RoundIndex: round.RoundIndex, Err: err})
	}
}

// resolveRound writes the resolution batch: mark the round resolved with the
// canonical position, award scores, apply eliminations, then either create
// the next round or finish the game. The batch is atomic and guarded on
// resolved == false, so replays and racing writers cannot double-apply.
func (c *Coordinator) resolveRound(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasGame || !c.hasRound || c.round.Resolved || !c.hasCard {
		c.mu.Unlock()
		return nil
	}
	gameID := c.gameID
	round := c.round
	card := c.currentCard
	cards := c.deckLocked()
	timeline := buildTimeline(round.TimelineBefore, cards, round.CardIndex)

	correct := CorrectPosition(timeline, card)
	next := insertCard(timeline, card, correct)
	ids := timelineIDs(next)

	players := append([]Player(nil), c.players...)
	roundSubs := make([]Submission, 0, len(c.submissions))
	for _, submission := range c.submissions {
		if submission.RoundIndex == round.RoundIndex {
			roundSubs = append(roundSubs, submission)
		}
	}
	now := c.st.Now()
	c.mu.Unlock()

	batch := store.NewBatch().
		MergeIf(roundPath(gameID, round.RoundIndex), map[string]any{
			"resolved":        true,
			"correctPosition": correct,
		}, "resolved", false)

	for _, submission := range roundSubs {
		if !submission.IsCorrect {
			continue
		}
		fields := map[string]any{
			"score": store.Increment{By: int64(10 + 2*len(timeline))},
		}
		if avg, ok := runningAverage(players, submission, round.RoundIndex); ok {
			fields["avgResponseMs"] = avg
		}
		batch.Merge(playerPath(gameID, submission.PlayerID), fields)
	}

	gameFields := make(map[string]any)
	eliminated := 0
	for _, player := range players {
		if player.Lives == 0 && !player.IsEliminated {
			batch.Merge(playerPath(gameID, player.ID), map[string]any{"isEliminated": true})
			eliminated++
		}
	}
	if eliminated > 0 {
		gameFields["aliveCount"] = store.Increment{By: -int64(eliminated)}
	}

	nextIndex := round.RoundIndex + 1
	finished := nextIndex >= len(c.catalogDeck())
	if !finished {
		nextCard := c.catalogDeck()[nextIndex]
		nextRound := Round{
			RoundIndex:     nextIndex,
			CardID:         nextCard.ID,
			CardIndex:      nextIndex,
			RoundEndsAt:    now.Add(c.roundDuration()),
			TimelineBefore: ids,
		}
		batch.Set(roundPath(gameID, nextIndex), nextRound.doc())
		gameFields["currentRound"] = nextIndex
	} else {
		gameFields["status"] = StatusFinished
	}
	batch.Merge(gamePath(gameID), gameFields)

	if err := c.st.Commit(ctx, batch); err != nil {
		return err
	}
	log.Printf("round resolved game_id=%s round=%d correct_position=%d finished=%v",
		gameID, round.RoundIndex, correct, finished)
	return nil
}

func (c *Coordinator) catalogDeck() []deck.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deckLocked()
}

// runningAverage folds one round's latency into the player's stored average,
// weighting by the number of rounds completed so far.
func runningAverage(players []Player, submission Submission, roundIndex int) (float64, bool) {
	for _, player := range players {
		if player.ID != submission.PlayerID {
			continue
		}
		n := float64(roundIndex)
		if n < 1 {
			n = 1
		}
		return (player.AvgResponseMs*(n-1) + submission.LatencyMs) / n, true
	}
	return 0, false
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for key := range a {
		if _, ok := b[key]; !ok {
			return false
		}
	}
	return true
}
