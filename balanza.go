// Balanza Scale Game
//
// Each player receives ten colored blocks of hidden random weight and, on
// their turn, drags one block onto the left or right pan of a shared balance
// scale. Placing a block ends the turn. Players who let their turn clock run
// out are eliminated and skipped in rotation, but stay connected to watch.
// Once every issued block has been placed, all players receive a summary with
// the final pan totals, the winning side, the survivors, and the full move
// history, then the session resets so the same room can play again.
//
// Features:
// - WebSockets per game ID: /balanza/:gameid and /balanza/:gameid/ws
// - Sessions start at two players; later joiners enter at the end of the order
// - Duplicate player names rejected with an error before the socket is closed
// - Per-turn countdown driven by an injected clock, cancellable on every move
// - Solo practice mode that issues blocks without touching the shared session
// - Accepted moves written through to the records store for later retrieval
// - Post-game guess-the-weight results accepted via the records API
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current session, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Block is a single weighted piece from a player's starting set. Weights are
// hidden from other players until the post-game summary.
type Block struct {
	Color  string `json:"color"`
	Weight int    `json:"weight"`
}

// Move is one accepted placement, immutable once recorded. Seq reflects
// acceptance order, starting at 1.
type Move struct {
	Player string `json:"player"`
	Seq    int    `json:"seq"`
	Weight int    `json:"weight"`
	Side   string `json:"side"`
	Color  string `json:"color,omitempty"`
}

const (
	blocksPerColor = 2
	minBlockWeight = 2
	maxBlockWeight = 20

	sideLeft  = "left"
	sideRight = "right"

	modeMulti = "multi"
	modeSolo  = "solo"

	quorum = 2
)

var blockColors = []string{"red", "blue", "green", "orange", "purple"}

// randWeight returns a uniform block weight using crypto/rand.
func randWeight() int {
	span := maxBlockWeight - minBlockWeight + 1
	max := byte(255 - (256 % span))

	for {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		if b[0] <= max {
			return minBlockWeight + int(b[0])%span
		}
	}
}

// newBlockSet issues a player's starting blocks: two of each color.
func newBlockSet() []Block {
	blocks := make([]Block, 0, len(blockColors)*blocksPerColor)
	for _, color := range blockColors {
		for i := 0; i < blocksPerColor; i++ {
			blocks = append(blocks, Block{Color: color, Weight: randWeight()})
		}
	}
	return blocks
}

// Messages coming from clients
type ClientMessage struct {
	Type   string `json:"type"`             // "JOIN", "MOVE"
	Player string `json:"player,omitempty"` // JOIN
	Mode   string `json:"mode,omitempty"`   // JOIN: "multi" (default) or "solo"
	Side   string `json:"side,omitempty"`   // MOVE: "left" or "right"
	Weight int    `json:"weight,omitempty"` // MOVE
	Color  string `json:"color,omitempty"`  // MOVE
}

// Messages sent to clients
type ParticipantCountMessage struct {
	Type  string `json:"type"` // "PARTICIPANT_COUNT"
	Count int    `json:"count"`
}

// BlockSetMessage hands a joining player their issued blocks.
type BlockSetMessage struct {
	Type   string  `json:"type"` // "BLOCKS"
	Blocks []Block `json:"blocks"`
}

// TurnMessage is broadcast on every turn transition. Everyone sees who holds
// the turn; YourTurn is true only on the holder's own copy.
type TurnMessage struct {
	Type     string `json:"type"` // "TURN"
	Player   string `json:"player"`
	YourTurn bool   `json:"your_turn"`
}

// ScaleMessage is broadcast after every accepted move.
type ScaleMessage struct {
	Type   string `json:"type"` // "ACCUMULATORS_UPDATED"
	Left   int    `json:"left"`
	Right  int    `json:"right"`
	Player string `json:"player"`
}

// EliminatedMessage is sent to the specific player removed for inactivity.
type EliminatedMessage struct {
	Type    string `json:"type"` // "ELIMINATED"
	Message string `json:"message"`
}

// NoticeMessage is for generic human-readable announcements.
type NoticeMessage struct {
	Type    string `json:"type"` // "NOTICE"
	Message string `json:"message"`
}

// ErrorMessage is sent to a single client before its connection is closed.
type ErrorMessage struct {
	Type    string `json:"type"` // "ERROR"
	Message string `json:"message"`
}

// SummaryMessage is the terminal broadcast that ends a session.
type SummaryMessage struct {
	Type           string             `json:"type"` // "SUMMARY"
	Left           int                `json:"left"`
	Right          int                `json:"right"`
	Winner         string             `json:"winner"` // "left", "right", "tie", or "" when nobody survived
	Survivors      []string           `json:"survivors"`
	Moves          []Move             `json:"moves"`
	BlocksByPlayer map[string][]Block `json:"blocks_by_player"`
}

// moveRecorder is what the hub needs from the records store.
type moveRecorder interface {
	AppendMove(ctx context.Context, gameID string, m Move) error
}

type Client struct {
	conn *websocket.Conn
	send chan any

	// name and solo are owned by the hub and only touched under its lock.
	name string
	solo bool
}

type inboundMessage struct {
	client *Client
	msg    ClientMessage
}

// player is one registered participant. Order in Hub.players is turn order.
type player struct {
	name       string
	client     *Client
	eliminated bool
}

type Hub struct {
	id      string
	clients map[*Client]bool
	players []*player

	register chan *Client
	unreg    chan *Client
	inbound  chan inboundMessage

	mu sync.Mutex

	createdAt  time.Time
	lastActive time.Time

	clock       clockwork.Clock
	records     moveRecorder // may be nil when persistence is disabled
	turnTimeout time.Duration

	started     bool
	currentTurn int
	turnSeq     int // bumped on every re-arm; a stale timer firing is a no-op
	turnTimer   clockwork.Timer

	leftWeight     int
	rightWeight    int
	movesMade      int
	placed         map[string]int
	blocksByPlayer map[string][]Block
	moveLog        []Move
}

func newHub(gameID string, turnTimeout time.Duration, clock clockwork.Clock, records moveRecorder) *Hub {
	now := clock.Now()
	return &Hub{
		id:             gameID,
		clients:        make(map[*Client]bool),
		register:       make(chan *Client),
		unreg:          make(chan *Client),
		inbound:        make(chan inboundMessage),
		createdAt:      now,
		lastActive:     now,
		clock:          clock,
		records:        records,
		turnTimeout:    turnTimeout,
		placed:         make(map[string]int),
		blocksByPlayer: make(map[string][]Block),
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = h.clock.Now()
			h.clients[c] = true
			h.sendLocked(c, ParticipantCountMessage{
				Type:  "PARTICIPANT_COUNT",
				Count: len(h.players),
			})
			h.mu.Unlock()

		case c := <-h.unreg:
			h.mu.Lock()
			h.lastActive = h.clock.Now()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			if c.name != "" && !c.solo {
				h.removePlayerLocked(cfg, c.name)
			}
			h.mu.Unlock()

		case in := <-h.inbound:
			switch in.msg.Type {
			case "JOIN":
				h.handleJoin(cfg, in.client, in.msg)
			case "MOVE":
				h.handleMove(cfg, in.client, in.msg)
			default:
				logf(cfg, "GAMES: Dropping malformed %q message in %s", in.msg.Type, h.id)
			}
		}
	}
}

// sendLocked queues msg for one client, dropping the client if its send
// buffer is full. Assumes h.mu is held.
func (h *Hub) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcastLocked queues msg for every connected client. Assumes h.mu is held.
func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		h.sendLocked(client, msg)
	}
}

func (h *Hub) findPlayerLocked(name string) (*player, int) {
	for i, p := range h.players {
		if p.name == name {
			return p, i
		}
	}
	return nil, -1
}

// handleJoin processes "JOIN" messages.
func (h *Hub) handleJoin(cfg *Config, c *Client, msg ClientMessage) {
	name := strings.TrimSpace(msg.Player)
	if name == "" {
		logf(cfg, "GAMES: Dropping JOIN without a player name in %s", h.id)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// A client dropped for a duplicate name or a full send buffer may still
	// deliver in-flight messages until its pumps wind down; its channel is
	// closed, so it must never be registered or written to again.
	if !h.clients[c] {
		logf(cfg, "GAMES: Dropping JOIN from a disconnected client in %s", h.id)
		return
	}

	h.lastActive = h.clock.Now()

	if msg.Mode == modeSolo {
		c.name = name
		c.solo = true

		// Solo practice never touches the shared session: issue blocks and
		// grant a permanent turn, placement stays client-side.
		h.sendLocked(c, BlockSetMessage{Type: "BLOCKS", Blocks: newBlockSet()})
		h.sendLocked(c, TurnMessage{Type: "TURN", Player: name, YourTurn: true})
		return
	}

	if existing, _ := h.findPlayerLocked(name); existing != nil {
		h.sendLocked(c, ErrorMessage{
			Type:    "ERROR",
			Message: "That name is already in use.",
		})
		if h.clients[c] {
			delete(h.clients, c)
			close(c.send)
		}
		logf(cfg, "GAMES: Rejected duplicate name %q in %s", name, h.id)
		return
	}

	c.name = name
	h.players = append(h.players, &player{name: name, client: c})

	// Reuse a block set issued earlier in this session, so a player who
	// dropped and came back does not get fresh weights.
	blocks, ok := h.blocksByPlayer[name]
	if !ok {
		blocks = newBlockSet()
		h.blocksByPlayer[name] = blocks
	}

	h.sendLocked(c, BlockSetMessage{Type: "BLOCKS", Blocks: blocks})

	h.broadcastLocked(NoticeMessage{Type: "NOTICE", Message: name + " joined."})
	h.broadcastLocked(ParticipantCountMessage{
		Type:  "PARTICIPANT_COUNT",
		Count: len(h.players),
	})
	logf(cfg, "GAMES: Player %q joined %s", name, h.id)

	if h.started {
		// Mid-session joiners enter at the end of the turn order; tell them
		// who currently holds the turn without resetting the holder's clock.
		h.sendLocked(c, TurnMessage{
			Type:   "TURN",
			Player: h.players[h.currentTurn].name,
		})
		return
	}

	if len(h.players) >= quorum {
		h.started = true
		h.currentTurn = 0
		logf(cfg, "GAMES: Session started in %s with %d players", h.id, len(h.players))
		h.announceTurnLocked(cfg)
	}
}

// handleMove processes "MOVE" messages. Every precondition failure is a
// silent no-op: shared state is only mutated once all checks pass.
func (h *Hub) handleMove(cfg *Config, c *Client, msg ClientMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		logf(cfg, "GAMES: Dropping MOVE from a disconnected client in %s", h.id)
		return
	}

	h.lastActive = h.clock.Now()

	if c.solo {
		return
	}

	if msg.Side != sideLeft && msg.Side != sideRight {
		logf(cfg, "GAMES: Dropping MOVE with bad side %q in %s", msg.Side, h.id)
		return
	}
	if msg.Weight < minBlockWeight || msg.Weight > maxBlockWeight {
		logf(cfg, "GAMES: Dropping MOVE with out-of-range weight %d in %s", msg.Weight, h.id)
		return
	}

	if !h.started {
		logf(cfg, "GAMES: Rejected MOVE from %q in %s: no active session", c.name, h.id)
		return
	}

	holder := h.players[h.currentTurn]
	if holder.name != c.name {
		logf(cfg, "GAMES: Rejected MOVE from %q in %s: not their turn", c.name, h.id)
		return
	}
	if holder.eliminated {
		logf(cfg, "GAMES: Rejected MOVE from eliminated %q in %s", c.name, h.id)
		return
	}
	if h.remainingForLocked(holder.name) <= 0 {
		logf(cfg, "GAMES: Rejected MOVE from %q in %s: no unplaced blocks", c.name, h.id)
		return
	}

	// Accepted: the pending timeout is superseded before anything else fires.
	h.stopTurnTimerLocked()

	h.movesMade++
	move := Move{
		Player: holder.name,
		Seq:    h.movesMade,
		Weight: msg.Weight,
		Side:   msg.Side,
		Color:  msg.Color,
	}
	h.moveLog = append(h.moveLog, move)
	h.placed[holder.name]++

	if msg.Side == sideLeft {
		h.leftWeight += msg.Weight
	} else {
		h.rightWeight += msg.Weight
	}

	if h.records != nil {
		if err := h.records.AppendMove(context.Background(), h.id, move); err != nil {
			log.Printf("record move in %s: %v", h.id, err)
		}
	}

	h.broadcastLocked(ScaleMessage{
		Type:   "ACCUMULATORS_UPDATED",
		Left:   h.leftWeight,
		Right:  h.rightWeight,
		Player: holder.name,
	})
	h.broadcastLocked(NoticeMessage{
		Type:    "NOTICE",
		Message: holder.name + " placed a block on the " + msg.Side + " pan.",
	})

	if h.remainingLocked() == 0 {
		h.finishLocked(cfg)
		return
	}
	h.advanceTurnLocked(cfg)
}

// remainingLocked counts the unplaced blocks still in play: those held by
// registered, non-eliminated players. The session completes when it hits
// zero, so an eliminated or departed player's leftover blocks never stall
// the game.
func (h *Hub) remainingLocked() int {
	remaining := 0
	for _, p := range h.players {
		if p.eliminated {
			continue
		}
		remaining += h.remainingForLocked(p.name)
	}
	return remaining
}

// remainingForLocked counts one player's unplaced blocks.
func (h *Hub) remainingForLocked(name string) int {
	return len(h.blocksByPlayer[name]) - h.placed[name]
}

// eligibleLocked reports whether p may be handed the turn: not eliminated
// and still holding unplaced blocks.
func (h *Hub) eligibleLocked(p *player) bool {
	return !p.eliminated && h.remainingForLocked(p.name) > 0
}

// advanceTurnLocked moves the cursor to the next eligible player in cyclic
// order, wrapping back to the current holder if nobody else remains. Players
// who already placed their whole set are passed over without losing survivor
// status. If no eligible player is left, the session completes.
func (h *Hub) advanceTurnLocked(cfg *Config) {
	n := len(h.players)
	if n == 0 {
		h.resetLocked()
		return
	}

	for i := 1; i <= n; i++ {
		next := (h.currentTurn + i) % n
		if h.eligibleLocked(h.players[next]) {
			h.currentTurn = next
			h.announceTurnLocked(cfg)
			return
		}
	}

	logf(cfg, "GAMES: No eligible turn holder left in %s", h.id)
	h.finishLocked(cfg)
}

func (h *Hub) announceTurnLocked(cfg *Config) {
	holder := h.players[h.currentTurn]

	for client := range h.clients {
		h.sendLocked(client, TurnMessage{
			Type:     "TURN",
			Player:   holder.name,
			YourTurn: client == holder.client,
		})
	}

	h.armTurnTimerLocked(cfg)
}

func (h *Hub) stopTurnTimerLocked() {
	if h.turnTimer != nil {
		h.turnTimer.Stop()
	}
	h.turnSeq++
}

// armTurnTimerLocked replaces any pending timeout with a fresh one for the
// current holder. The sequence number lets a timer that already fired but
// lost the race for the lock detect that it was superseded.
func (h *Hub) armTurnTimerLocked(cfg *Config) {
	h.stopTurnTimerLocked()

	seq := h.turnSeq
	h.turnTimer = h.clock.AfterFunc(h.turnTimeout, func() {
		h.turnExpired(cfg, seq)
	})
}

// turnExpired fires when the holder let their clock run out: they are
// eliminated and the turn advances.
func (h *Hub) turnExpired(cfg *Config, seq int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || seq != h.turnSeq || h.currentTurn >= len(h.players) {
		return
	}

	holder := h.players[h.currentTurn]
	holder.eliminated = true

	if h.clients[holder.client] {
		h.sendLocked(holder.client, EliminatedMessage{
			Type:    "ELIMINATED",
			Message: "You have been eliminated for inactivity.",
		})
	}
	h.broadcastLocked(NoticeMessage{
		Type:    "NOTICE",
		Message: holder.name + " was eliminated for inactivity.",
	})
	logf(cfg, "GAMES: Player %q eliminated for inactivity in %s", holder.name, h.id)

	// Their unplaced blocks drop out of the completion target, so the moves
	// already made may now be all that was expected.
	if h.remainingLocked() == 0 {
		h.finishLocked(cfg)
		return
	}

	h.advanceTurnLocked(cfg)
}

// removePlayerLocked drops a disconnected player from the registry, clamps
// the turn cursor, and re-announces or completes as needed.
func (h *Hub) removePlayerLocked(cfg *Config, name string) {
	_, idx := h.findPlayerLocked(name)
	if idx < 0 {
		return
	}

	h.players = append(h.players[:idx], h.players[idx+1:]...)

	h.broadcastLocked(ParticipantCountMessage{
		Type:  "PARTICIPANT_COUNT",
		Count: len(h.players),
	})
	h.broadcastLocked(NoticeMessage{Type: "NOTICE", Message: name + " left."})
	logf(cfg, "GAMES: Player %q left %s", name, h.id)

	if len(h.players) == 0 {
		h.resetLocked()
		return
	}
	if !h.started {
		return
	}

	if idx < h.currentTurn {
		h.currentTurn--
	}
	if h.currentTurn >= len(h.players) {
		h.currentTurn = 0
	}

	// Their unplaced blocks leave with them; already-placed moves stand.
	if h.remainingLocked() == 0 && h.movesMade > 0 {
		h.finishLocked(cfg)
		return
	}

	if h.eligibleLocked(h.players[h.currentTurn]) {
		h.announceTurnLocked(cfg)
	} else {
		h.advanceTurnLocked(cfg)
	}
}

// finishLocked assembles and broadcasts the final summary, then resets the
// hub so the room can host a fresh session.
func (h *Hub) finishLocked(cfg *Config) {
	h.stopTurnTimerLocked()

	survivors := make([]string, 0, len(h.players))
	for _, p := range h.players {
		if !p.eliminated {
			survivors = append(survivors, p.name)
		}
	}

	// Heavier pan wins; no winner is declared when nobody survived to the end.
	winner := ""
	if len(survivors) > 0 {
		switch {
		case h.leftWeight > h.rightWeight:
			winner = sideLeft
		case h.rightWeight > h.leftWeight:
			winner = sideRight
		default:
			winner = "tie"
		}
	}

	h.broadcastLocked(SummaryMessage{
		Type:           "SUMMARY",
		Left:           h.leftWeight,
		Right:          h.rightWeight,
		Winner:         winner,
		Survivors:      survivors,
		Moves:          h.moveLog,
		BlocksByPlayer: h.blocksByPlayer,
	})
	logf(cfg, "GAMES: Session complete in %s: left=%d right=%d winner=%q survivors=%d",
		h.id, h.leftWeight, h.rightWeight, winner, len(survivors))

	h.resetLocked()
}

// resetLocked returns the hub to its waiting-for-players state. Connected
// clients stay attached and may JOIN again, under any free name.
func (h *Hub) resetLocked() {
	h.stopTurnTimerLocked()
	h.turnTimer = nil

	h.started = false
	h.currentTurn = 0
	h.players = nil
	h.leftWeight = 0
	h.rightWeight = 0
	h.movesMade = 0
	h.placed = make(map[string]int)
	h.blocksByPlayer = make(map[string][]Block)
	h.moveLog = nil

	for client := range h.clients {
		if !client.solo {
			client.name = ""
		}
	}
}

// closeAll disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopTurnTimerLocked()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each /balanza/:gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	clock       clockwork.Clock
	records     moveRecorder
}

func newGameManager(idleTimeout time.Duration, clock clockwork.Clock, records moveRecorder) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		clock:       clock,
		records:     records,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID, cfg.turnTimeout, gm.clock, gm.records)
	gm.hubs[gameID] = hub
	go hub.run(cfg)
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := gm.clock.NewTicker(gm.idleTimeout / 2)
	for range ticker.Chan() {
		cutoff := gm.clock.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			hub.mu.Lock()
			last := hub.lastActive
			hub.mu.Unlock()

			if last.Before(cutoff) {
				delete(gm.hubs, id)
				go hub.closeAll()
			}
		}
		gm.mu.Unlock()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		hub.register <- client

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		h.inbound <- inboundMessage{
			client: c,
			msg:    msg,
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed balanza/index.html
var indexHTML []byte

//go:embed balanza/app.css
var balanzaCSS []byte

//go:embed balanza/app.js
var balanzaJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(balanzaCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(balanzaJS)
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerBalanzaGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerBalanzaGame(cfg *Config, path string, mux *httprouter.Router, store *Store) {
	var records moveRecorder
	if store != nil {
		records = store
	}

	gm := newGameManager(cfg.sessionTimeout, clockwork.NewRealClock(), records)

	full := cfg.prefix + path

	// Root path → redirect to new random game
	mux.GET(full, redirectNewGame(cfg, full, gm))

	// Per-game client view (HTML)
	mux.GET(full+"/:gameid", getIndexHandler(cfg))

	// Shared assets (no gameid in route)
	mux.GET(cfg.prefix+"/assets/balanza/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/balanza/app.js", getJsHandler(cfg))

	// Per-game websocket
	mux.GET(full+"/:gameid/ws", serveWSForManager(cfg, gm))

	// Per-game QR code
	mux.GET(full+"/:gameid/qr", qrHandler)
}
