package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// GuessedBlock is one entry of a post-game guess-the-weight attempt.
type GuessedBlock struct {
	Guess  int  `json:"guess"`
	Weight int  `json:"weight"`
	Hit    bool `json:"hit"`
}

// GuessRecord is a player's full guess-the-weight result for one game.
type GuessRecord struct {
	GameID    string         `json:"game,omitempty"`
	Player    string         `json:"player"`
	Hits      int            `json:"hits"`
	Total     int            `json:"total"`
	Blocks    []GuessedBlock `json:"blocks"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// Store persists move and guess records in SQLite.
type Store struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS moves (
	game_id    TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	player     TEXT    NOT NULL,
	side       TEXT    NOT NULL,
	weight     INTEGER NOT NULL,
	color      TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	PRIMARY KEY (game_id, seq)
);

CREATE TABLE IF NOT EXISTS guesses (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id    TEXT    NOT NULL DEFAULT '',
	player     TEXT    NOT NULL,
	hits       INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	detail     TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
`

// openStore opens the SQLite records database and applies the schema.
func openStore(path string) (*Store, error) {
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendMove records one accepted move.
func (s *Store) AppendMove(ctx context.Context, gameID string, m Move) error {
	if gameID == "" {
		return fmt.Errorf("game id is required")
	}
	if m.Player == "" {
		return fmt.Errorf("player is required")
	}
	if m.Seq < 1 {
		return fmt.Errorf("invalid move sequence number: %d", m.Seq)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO moves (game_id, seq, player, side, weight, color, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		gameID, m.Seq, m.Player, m.Side, m.Weight, m.Color, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert move: %w", err)
	}
	return nil
}

// Moves returns a game's recorded moves in acceptance order.
func (s *Store) Moves(ctx context.Context, gameID string) ([]Move, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT player, seq, weight, side, color
		 FROM moves WHERE game_id = ? ORDER BY seq`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	defer rows.Close()

	var moves []Move
	for rows.Next() {
		var m Move
		if err := rows.Scan(&m.Player, &m.Seq, &m.Weight, &m.Side, &m.Color); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moves: %w", err)
	}
	return moves, nil
}

// SaveGuess records a post-game guess-the-weight result. Hits are recomputed
// from the per-block detail rather than trusted from the client.
func (s *Store) SaveGuess(ctx context.Context, g GuessRecord) error {
	if g.Player == "" {
		return fmt.Errorf("player is required")
	}
	if len(g.Blocks) == 0 {
		return fmt.Errorf("at least one guessed block is required")
	}

	hits := 0
	for _, b := range g.Blocks {
		if b.Guess == b.Weight {
			hits++
		}
	}

	detail, err := json.Marshal(g.Blocks)
	if err != nil {
		return fmt.Errorf("marshal guess detail: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO guesses (game_id, player, hits, total, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.GameID, g.Player, hits, len(g.Blocks), string(detail), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert guess: %w", err)
	}
	return nil
}

// Guesses returns a player's recorded guess results, most recent first.
// An empty player returns every record.
func (s *Store) Guesses(ctx context.Context, player string) ([]GuessRecord, error) {
	query := `SELECT game_id, player, hits, total, detail, created_at
	          FROM guesses`
	args := []any{}
	if player != "" {
		query += ` WHERE player = ?`
		args = append(args, player)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query guesses: %w", err)
	}
	defer rows.Close()

	var guesses []GuessRecord
	for rows.Next() {
		var g GuessRecord
		var detail string
		var createdAt int64
		if err := rows.Scan(&g.GameID, &g.Player, &g.Hits, &g.Total, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan guess: %w", err)
		}
		if err := json.Unmarshal([]byte(detail), &g.Blocks); err != nil {
			return nil, fmt.Errorf("unmarshal guess detail: %w", err)
		}
		g.CreatedAt = time.UnixMilli(createdAt).UTC()
		guesses = append(guesses, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guesses: %w", err)
	}
	return guesses, nil
}
