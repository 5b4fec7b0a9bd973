package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func testConfig() *Config {
	return &Config{
		port:        8080,
		turnTimeout: 5 * time.Minute,
	}
}

func newTestHub(recorder moveRecorder) (*Hub, *Config, *clockwork.FakeClock) {
	cfg := testConfig()
	clock := clockwork.NewFakeClock()
	h := newHub("testgame", cfg.turnTimeout, clock, recorder)
	return h, cfg, clock
}

func newTestClient() *Client {
	return &Client{send: make(chan any, 256)}
}

// join attaches a fresh fake client and sends a JOIN for name.
func join(h *Hub, cfg *Config, name string) *Client {
	c := newTestClient()
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	h.handleJoin(cfg, c, ClientMessage{Type: "JOIN", Player: name})
	return c
}

// awaitMessage drains c.send until a message of type T arrives. Timer
// callbacks fire on their own goroutine, so the deadline is real time.
func awaitMessage[T any](t *testing.T, c *Client) T {
	t.Helper()

	var zero T
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %T", zero)
			}
			if msg, ok := raw.(T); ok {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", zero)
		}
	}
}

// awaitTurnFor drains c.send until a turn announcement naming player
// arrives, skipping announcements queued for earlier turns.
func awaitTurnFor(t *testing.T, c *Client, player string) TurnMessage {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				t.Fatalf("send channel closed while waiting for %s's turn", player)
			}
			if msg, ok := raw.(TurnMessage); ok && msg.Player == player {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s's turn", player)
		}
	}
}

type captureRecorder struct {
	mu    sync.Mutex
	games []string
	moves []Move
}

func (c *captureRecorder) AppendMove(_ context.Context, gameID string, m Move) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.games = append(c.games, gameID)
	c.moves = append(c.moves, m)
	return nil
}

func TestNewBlockSetIssuesTwoOfEachColor(t *testing.T) {
	blocks := newBlockSet()

	if len(blocks) != len(blockColors)*blocksPerColor {
		t.Fatalf("expected %d blocks, got %d", len(blockColors)*blocksPerColor, len(blocks))
	}

	perColor := make(map[string]int)
	for _, b := range blocks {
		perColor[b.Color]++
		if b.Weight < minBlockWeight || b.Weight > maxBlockWeight {
			t.Fatalf("block weight %d outside [%d, %d]", b.Weight, minBlockWeight, maxBlockWeight)
		}
	}
	for _, color := range blockColors {
		if perColor[color] != blocksPerColor {
			t.Fatalf("expected %d %s blocks, got %d", blocksPerColor, color, perColor[color])
		}
	}
}

func TestRandWeightBounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		w := randWeight()
		if w < minBlockWeight || w > maxBlockWeight {
			t.Fatalf("weight %d outside [%d, %d]", w, minBlockWeight, maxBlockWeight)
		}
	}
}

func TestQuorumStartsSession(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")

	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if started {
		t.Fatalf("session started with a single player")
	}

	b := join(h, cfg, "bob")

	h.mu.Lock()
	started = h.started
	h.mu.Unlock()
	if !started {
		t.Fatalf("session did not start at two players")
	}

	turnA := awaitMessage[TurnMessage](t, a)
	if turnA.Player != "alice" || !turnA.YourTurn {
		t.Fatalf("first joiner should hold the first turn, got %+v", turnA)
	}

	turnB := awaitMessage[TurnMessage](t, b)
	if turnB.Player != "alice" || turnB.YourTurn {
		t.Fatalf("second joiner should see alice's turn without holding it, got %+v", turnB)
	}
}

func TestJoinDeliversBlockSet(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")

	blocks := awaitMessage[BlockSetMessage](t, a)
	if len(blocks.Blocks) != len(blockColors)*blocksPerColor {
		t.Fatalf("expected %d issued blocks, got %d", len(blockColors)*blocksPerColor, len(blocks.Blocks))
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	join(h, cfg, "alice")
	impostor := join(h, cfg, "alice")

	errMsg := awaitMessage[ErrorMessage](t, impostor)
	if errMsg.Message == "" {
		t.Fatalf("expected an error message for the duplicate name")
	}

	h.mu.Lock()
	_, stillConnected := h.clients[impostor]
	playerCount := len(h.players)
	h.mu.Unlock()

	if stillConnected {
		t.Fatalf("duplicate-name client should have been dropped")
	}
	if playerCount != 1 {
		t.Fatalf("expected 1 registered player, got %d", playerCount)
	}
}

func TestRejectedClientMessagesIgnored(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	join(h, cfg, "alice")
	impostor := join(h, cfg, "alice")
	awaitMessage[ErrorMessage](t, impostor)

	// The connection's pumps take a moment to wind down, so in-flight
	// messages from the dropped client can still reach the hub. They must
	// not register a player or write to the closed send channel.
	h.handleJoin(cfg, impostor, ClientMessage{Type: "JOIN", Player: "mallory"})
	h.handleMove(cfg, impostor, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 10})

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.players) != 1 || h.players[0].name != "alice" {
		t.Fatalf("dropped client registered a player: %d players", len(h.players))
	}
	if h.movesMade != 0 {
		t.Fatalf("dropped client's move was accepted")
	}
}

func TestSoloJoinDoesNotTouchSession(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	c := newTestClient()
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	h.handleJoin(cfg, c, ClientMessage{Type: "JOIN", Player: "hermit", Mode: modeSolo})

	blocks := awaitMessage[BlockSetMessage](t, c)
	if len(blocks.Blocks) == 0 {
		t.Fatalf("solo player received no blocks")
	}

	turn := awaitMessage[TurnMessage](t, c)
	if !turn.YourTurn {
		t.Fatalf("solo player should always hold the turn")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.players) != 0 || h.started {
		t.Fatalf("solo join must not register a shared-session player")
	}
}

func TestMoveBeforeQuorumRejected(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")
	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 10})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.movesMade != 0 || h.leftWeight != 0 {
		t.Fatalf("move accepted before the session started")
	}
}

func TestNonHolderMoveRejected(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	join(h, cfg, "alice")
	b := join(h, cfg, "bob")

	h.handleMove(cfg, b, ClientMessage{Type: "MOVE", Side: sideRight, Weight: 5})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.movesMade != 0 || h.rightWeight != 0 {
		t.Fatalf("move from non-holder mutated the session")
	}
	if h.players[h.currentTurn].name != "alice" {
		t.Fatalf("turn advanced on a rejected move")
	}
}

func TestInvalidMovesDropped(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")
	join(h, cfg, "bob")

	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: "middle", Weight: 10})
	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: minBlockWeight - 1})
	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: maxBlockWeight + 1})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.movesMade != 0 || h.leftWeight != 0 || h.rightWeight != 0 {
		t.Fatalf("invalid move mutated the session")
	}
}

func TestAcceptedMoveUpdatesScaleAndAdvancesTurn(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)
	awaitMessage[TurnMessage](t, b)

	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 7, Color: "red"})

	scale := awaitMessage[ScaleMessage](t, b)
	if scale.Left != 7 || scale.Right != 0 || scale.Player != "alice" {
		t.Fatalf("unexpected scale update: %+v", scale)
	}

	turn := awaitMessage[TurnMessage](t, b)
	if turn.Player != "bob" || !turn.YourTurn {
		t.Fatalf("turn should pass to bob, got %+v", turn)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.moveLog) != 1 {
		t.Fatalf("expected 1 logged move, got %d", len(h.moveLog))
	}
	logged := h.moveLog[0]
	if logged.Seq != 1 || logged.Player != "alice" || logged.Side != sideLeft || logged.Weight != 7 {
		t.Fatalf("unexpected logged move: %+v", logged)
	}
}

func TestAcceptedMovesAreRecorded(t *testing.T) {
	recorder := &captureRecorder{}
	h, cfg, _ := newTestHub(recorder)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")

	h.handleMove(cfg, b, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 5}) // rejected
	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 5})

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.moves) != 1 {
		t.Fatalf("expected 1 recorded move, got %d", len(recorder.moves))
	}
	if recorder.games[0] != "testgame" {
		t.Fatalf("move recorded under game %q", recorder.games[0])
	}
	if recorder.moves[0].Player != "alice" || recorder.moves[0].Seq != 1 {
		t.Fatalf("unexpected recorded move: %+v", recorder.moves[0])
	}
}

func TestHolderWithoutBlocksCannotOverPlace(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")
	join(h, cfg, "bob")
	awaitTurnFor(t, a, "alice")

	h.mu.Lock()
	h.placed["alice"] = len(h.blocksByPlayer["alice"])
	h.mu.Unlock()

	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 10})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.movesMade != 0 || h.leftWeight != 0 {
		t.Fatalf("move accepted from a holder with no unplaced blocks")
	}
	if h.remainingLocked() != len(blockColors)*blocksPerColor {
		t.Fatalf("over-placement corrupted the remaining-block count: %d", h.remainingLocked())
	}
}

func TestRotationSkipsPlayerOutOfBlocks(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")
	join(h, cfg, "bob")
	c := join(h, cfg, "carol")
	awaitTurnFor(t, a, "alice")

	// Bob has placed his whole set; he stays a survivor but takes no more
	// turns.
	h.mu.Lock()
	h.placed["bob"] = len(h.blocksByPlayer["bob"])
	h.mu.Unlock()

	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 10})

	turn := awaitTurnFor(t, c, "carol")
	if !turn.YourTurn {
		t.Fatalf("rotation should skip bob and hand carol the turn, got %+v", turn)
	}
}

func TestTurnTimeoutEliminatesHolder(t *testing.T) {
	h, cfg, clock := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)

	elim := awaitMessage[EliminatedMessage](t, a)
	if elim.Message == "" {
		t.Fatalf("expected an elimination message")
	}

	turn := awaitTurnFor(t, b, "bob")
	if !turn.YourTurn {
		t.Fatalf("turn should pass to bob after alice's timeout, got %+v", turn)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	alice, _ := h.findPlayerLocked("alice")
	if alice == nil || !alice.eliminated {
		t.Fatalf("alice should be eliminated but still registered")
	}
}

func TestAcceptedMoveSupersedesTimeout(t *testing.T) {
	h, cfg, clock := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 4})

	// A full timeout later, only bob's clock should have run out.
	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)
	awaitMessage[EliminatedMessage](t, b)

	h.mu.Lock()
	defer h.mu.Unlock()
	alice, _ := h.findPlayerLocked("alice")
	bob, _ := h.findPlayerLocked("bob")
	if alice.eliminated {
		t.Fatalf("alice was eliminated despite moving in time")
	}
	if !bob.eliminated {
		t.Fatalf("bob should have been eliminated")
	}
}

func TestEliminatedPlayerSkippedInRotation(t *testing.T) {
	h, cfg, clock := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	c := join(h, cfg, "carol")
	awaitMessage[TurnMessage](t, a)

	// Alice times out; the turn passes to bob.
	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)
	awaitMessage[EliminatedMessage](t, a)
	turn := awaitTurnFor(t, b, "bob")
	if !turn.YourTurn {
		t.Fatalf("expected bob's turn, got %+v", turn)
	}

	h.handleMove(cfg, b, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 3})
	turn = awaitTurnFor(t, c, "carol")
	if !turn.YourTurn {
		t.Fatalf("expected carol's turn, got %+v", turn)
	}

	// Rotation wraps past the eliminated alice back to bob.
	h.handleMove(cfg, c, ClientMessage{Type: "MOVE", Side: sideRight, Weight: 3})
	turn = awaitTurnFor(t, b, "bob")
	if !turn.YourTurn {
		t.Fatalf("rotation should skip alice and return to bob, got %+v", turn)
	}
}

func TestEliminatedPlayerCannotMove(t *testing.T) {
	h, cfg, clock := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)
	awaitMessage[EliminatedMessage](t, a)
	awaitMessage[TurnMessage](t, b)

	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 9})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.movesMade != 0 {
		t.Fatalf("eliminated player's move was accepted")
	}
}

func TestSurvivorFinishingTriggersSummary(t *testing.T) {
	h, cfg, clock := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)
	awaitMessage[EliminatedMessage](t, a)
	awaitMessage[TurnMessage](t, b)

	// Bob, the sole survivor, keeps the turn and places every issued block.
	total := len(blockColors) * blocksPerColor
	for i := 0; i < total; i++ {
		h.handleMove(cfg, b, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 10})
	}

	summary := awaitMessage[SummaryMessage](t, b)
	if summary.Left != total*10 || summary.Right != 0 {
		t.Fatalf("unexpected pan totals: left=%d right=%d", summary.Left, summary.Right)
	}
	if summary.Winner != sideLeft {
		t.Fatalf("heavier pan should win, got %q", summary.Winner)
	}
	if len(summary.Survivors) != 1 || summary.Survivors[0] != "bob" {
		t.Fatalf("expected bob as sole survivor, got %v", summary.Survivors)
	}
	if len(summary.Moves) != total {
		t.Fatalf("expected %d moves in summary, got %d", total, len(summary.Moves))
	}
	for i, m := range summary.Moves {
		if m.Seq != i+1 {
			t.Fatalf("move %d has sequence %d", i, m.Seq)
		}
	}
	if len(summary.BlocksByPlayer["alice"]) != total || len(summary.BlocksByPlayer["bob"]) != total {
		t.Fatalf("summary should reveal every issued block set")
	}

	// The room resets for a fresh session.
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || len(h.players) != 0 || h.movesMade != 0 {
		t.Fatalf("hub did not reset after the summary")
	}
}

func TestTwoPlayerTimeoutScenario(t *testing.T) {
	h, cfg, clock := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 5})

	scale := awaitMessage[ScaleMessage](t, a)
	if scale.Left != 5 || scale.Right != 0 {
		t.Fatalf("expected left=5 right=0, got left=%d right=%d", scale.Left, scale.Right)
	}
	turn := awaitTurnFor(t, b, "bob")
	if !turn.YourTurn {
		t.Fatalf("expected bob's turn, got %+v", turn)
	}

	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)

	awaitMessage[EliminatedMessage](t, b)
	turn = awaitTurnFor(t, a, "alice")
	if !turn.YourTurn {
		t.Fatalf("turn should return to alice after bob's timeout, got %+v", turn)
	}

	// Alice places her remaining nine blocks, all on the left pan.
	for i := 0; i < len(blockColors)*blocksPerColor-1; i++ {
		h.handleMove(cfg, a, ClientMessage{Type: "MOVE", Side: sideLeft, Weight: 5})
	}

	summary := awaitMessage[SummaryMessage](t, a)
	if summary.Left != 50 || summary.Right != 0 {
		t.Fatalf("expected left=50 right=0, got left=%d right=%d", summary.Left, summary.Right)
	}
	if summary.Winner != sideLeft {
		t.Fatalf("expected the left pan to win, got %q", summary.Winner)
	}
	if len(summary.Survivors) != 1 || summary.Survivors[0] != "alice" {
		t.Fatalf("expected alice as sole survivor, got %v", summary.Survivors)
	}
	if len(summary.Moves) != len(blockColors)*blocksPerColor {
		t.Fatalf("expected %d logged moves, got %d", len(blockColors)*blocksPerColor, len(summary.Moves))
	}
}

func TestAllEliminatedEndsWithoutWinner(t *testing.T) {
	h, cfg, clock := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)
	awaitMessage[EliminatedMessage](t, a)
	awaitMessage[TurnMessage](t, b)

	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)
	awaitMessage[EliminatedMessage](t, b)

	summary := awaitMessage[SummaryMessage](t, a)
	if summary.Winner != "" {
		t.Fatalf("no winner should be declared when nobody survived, got %q", summary.Winner)
	}
	if len(summary.Survivors) != 0 {
		t.Fatalf("expected no survivors, got %v", summary.Survivors)
	}
}

func TestTieDeclaredWhenPansBalance(t *testing.T) {
	h, cfg, clock := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	clock.BlockUntil(1)
	clock.Advance(cfg.turnTimeout)
	awaitMessage[EliminatedMessage](t, a)
	awaitMessage[TurnMessage](t, b)

	total := len(blockColors) * blocksPerColor
	for i := 0; i < total; i++ {
		side := sideLeft
		if i%2 == 1 {
			side = sideRight
		}
		h.handleMove(cfg, b, ClientMessage{Type: "MOVE", Side: side, Weight: 6})
	}

	summary := awaitMessage[SummaryMessage](t, b)
	if summary.Winner != "tie" {
		t.Fatalf("balanced pans should tie, got %q (left=%d right=%d)",
			summary.Winner, summary.Left, summary.Right)
	}
}

func TestRejoinReusesIssuedBlocks(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")
	join(h, cfg, "bob")
	first := awaitMessage[BlockSetMessage](t, a)

	h.mu.Lock()
	delete(h.clients, a)
	h.removePlayerLocked(cfg, "alice")
	h.mu.Unlock()

	again := join(h, cfg, "alice")
	second := awaitMessage[BlockSetMessage](t, again)

	if len(first.Blocks) != len(second.Blocks) {
		t.Fatalf("rejoin issued %d blocks, originally %d", len(second.Blocks), len(first.Blocks))
	}
	for i := range first.Blocks {
		if first.Blocks[i] != second.Blocks[i] {
			t.Fatalf("rejoin re-rolled block %d: %+v vs %+v", i, first.Blocks[i], second.Blocks[i])
		}
	}
}

func TestMidSessionJoinerSeesCurrentTurn(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")
	join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	late := join(h, cfg, "carol")
	awaitMessage[BlockSetMessage](t, late)

	turn := awaitMessage[TurnMessage](t, late)
	if turn.Player != "alice" || turn.YourTurn {
		t.Fatalf("late joiner should see alice's turn without holding it, got %+v", turn)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.players[len(h.players)-1].name != "carol" {
		t.Fatalf("late joiner should enter at the end of the turn order")
	}
}

func TestPlayerLeavingClampsTurnCursor(t *testing.T) {
	h, cfg, _ := newTestHub(nil)

	a := join(h, cfg, "alice")
	b := join(h, cfg, "bob")
	awaitMessage[TurnMessage](t, a)

	h.mu.Lock()
	delete(h.clients, b)
	h.removePlayerLocked(cfg, "bob")
	h.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.players) != 1 || h.players[0].name != "alice" {
		t.Fatalf("expected alice alone, got %d players", len(h.players))
	}
	if h.currentTurn != 0 {
		t.Fatalf("turn cursor should clamp to 0, got %d", h.currentTurn)
	}
}

func TestHubRunLoopHandlesRegistration(t *testing.T) {
	h, cfg, _ := newTestHub(nil)
	go h.run(cfg)

	c := newTestClient()
	h.register <- c

	count := awaitMessage[ParticipantCountMessage](t, c)
	if count.Count != 0 {
		t.Fatalf("fresh hub should report 0 players, got %d", count.Count)
	}

	h.inbound <- inboundMessage{client: c, msg: ClientMessage{Type: "JOIN", Player: "alice"}}

	blocks := awaitMessage[BlockSetMessage](t, c)
	if len(blocks.Blocks) == 0 {
		t.Fatalf("joined player received no blocks")
	}
}

func TestGameManagerReusesHubsByID(t *testing.T) {
	cfg := testConfig()
	gm := newGameManager(0, clockwork.NewFakeClock(), nil)

	first := gm.getHub(cfg, "room1")
	second := gm.getHub(cfg, "room1")
	other := gm.getHub(cfg, "room2")

	if first != second {
		t.Fatalf("same game ID should map to the same hub")
	}
	if first == other {
		t.Fatalf("distinct game IDs should map to distinct hubs")
	}
}

func TestNewGameIDFormat(t *testing.T) {
	gm := newGameManager(0, clockwork.NewFakeClock(), nil)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gm.newGameID()
		if len(id) != 8 {
			t.Fatalf("expected 8-char game ID, got %q", id)
		}
		for _, r := range id {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
			default:
				t.Fatalf("unexpected character %q in game ID %q", r, id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 90 {
		t.Fatalf("expected mostly unique IDs, got %d of 100", len(seen))
	}
}

func TestReaperRemovesIdleHubs(t *testing.T) {
	cfg := testConfig()
	clock := clockwork.NewFakeClock()
	gm := newGameManager(time.Hour, clock, nil)

	gm.getHub(cfg, "stale")

	// Wait for the reaper's ticker to register before advancing.
	clock.BlockUntil(1)
	clock.Advance(2 * time.Hour)

	deadline := time.After(2 * time.Second)
	for {
		gm.mu.Lock()
		_, exists := gm.hubs["stale"]
		gm.mu.Unlock()
		if !exists {
			return
		}

		select {
		case <-deadline:
			t.Fatalf("idle hub was not reaped")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
