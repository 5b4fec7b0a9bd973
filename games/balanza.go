// Package games holds design notes for the games served by this module.
package games

// Balanza
//
// Each player receives ten colored blocks (two each of red, blue, green,
// orange, and purple) with hidden random weights between 2g and 20g.
// Players take turns placing one block on the left or right pan of a shared
// balance scale; placing a block ends the turn.
//
// How to play
// - Each player joins a game by name; the session starts at two players
// - On your turn, pick a block and a pan before the turn clock runs out
// - Letting the clock expire eliminates you: you keep watching, but your
//   remaining blocks are still in play and your turns are skipped
// - When every block has been placed, the heavier pan wins and a summary
//   shows totals, survivors, and the full move history
// - Survivors can then try to guess the weight of each of their own blocks
//
// Display formats:
// - Two pans with running totals, plus a tray of your unplaced blocks
// - Activity feed of joins, placements, and eliminations
//
// Implementation details:
// - WebSockets carry all game traffic; each game ID is an isolated session
// - Moves and post-game guesses are persisted via the records API
