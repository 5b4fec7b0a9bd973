package main

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// storedMove is the request/response shape of the moves API: a Move plus the
// game it belongs to.
type storedMove struct {
	GameID string `json:"game"`
	Move
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(cfg *Config, w http.ResponseWriter, status int, msg string) {
	writeJSON(cfg, w, status, map[string]string{"error": msg})
}

func serveMoveAppend(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var m storedMove
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			writeJSONError(cfg, w, http.StatusBadRequest, "malformed move record")
			return
		}
		if m.Side != sideLeft && m.Side != sideRight {
			writeJSONError(cfg, w, http.StatusBadRequest, "side must be \"left\" or \"right\"")
			return
		}
		if m.Weight < minBlockWeight || m.Weight > maxBlockWeight {
			writeJSONError(cfg, w, http.StatusBadRequest, "weight out of range")
			return
		}

		if err := store.AppendMove(r.Context(), m.GameID, m.Move); err != nil {
			logf(cfg, "STORE: Failed to append move from %s: %v", realIP(r), err)
			writeJSONError(cfg, w, http.StatusInternalServerError, "failed to record move")
			return
		}

		writeJSON(cfg, w, http.StatusCreated, m)
	}
}

func serveMoveList(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		gameID := r.URL.Query().Get("game")
		if gameID == "" {
			writeJSONError(cfg, w, http.StatusBadRequest, "missing game query parameter")
			return
		}

		moves, err := store.Moves(r.Context(), gameID)
		if err != nil {
			logf(cfg, "STORE: Failed to list moves for %s: %v", gameID, err)
			writeJSONError(cfg, w, http.StatusInternalServerError, "failed to list moves")
			return
		}
		if moves == nil {
			moves = []Move{}
		}

		writeJSON(cfg, w, http.StatusOK, moves)
	}
}

func serveGuessAppend(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var g GuessRecord
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			writeJSONError(cfg, w, http.StatusBadRequest, "malformed guess record")
			return
		}

		if err := store.SaveGuess(r.Context(), g); err != nil {
			logf(cfg, "STORE: Failed to save guess from %s: %v", realIP(r), err)
			writeJSONError(cfg, w, http.StatusBadRequest, "failed to record guess")
			return
		}

		writeJSON(cfg, w, http.StatusCreated, map[string]string{"status": "recorded"})
	}
}

func serveGuessList(cfg *Config, store *Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		guesses, err := store.Guesses(r.Context(), r.URL.Query().Get("player"))
		if err != nil {
			logf(cfg, "STORE: Failed to list guesses: %v", err)
			writeJSONError(cfg, w, http.StatusInternalServerError, "failed to list guesses")
			return
		}
		if guesses == nil {
			guesses = []GuessRecord{}
		}

		writeJSON(cfg, w, http.StatusOK, guesses)
	}
}

func serveNoStore(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		writeJSONError(cfg, w, http.StatusServiceUnavailable, "persistence is disabled")
	}
}

// registerRecordRoutes exposes the records store over HTTP: appending and
// listing persisted moves and post-game guess results.
func registerRecordRoutes(cfg *Config, store *Store, mux *httprouter.Router) {
	if store == nil {
		unavailable := serveNoStore(cfg)
		mux.POST(cfg.prefix+"/api/moves", unavailable)
		mux.GET(cfg.prefix+"/api/moves", unavailable)
		mux.POST(cfg.prefix+"/api/guesses", unavailable)
		mux.GET(cfg.prefix+"/api/guesses", unavailable)
		return
	}

	mux.POST(cfg.prefix+"/api/moves", serveMoveAppend(cfg, store))
	mux.GET(cfg.prefix+"/api/moves", serveMoveList(cfg, store))
	mux.POST(cfg.prefix+"/api/guesses", serveGuessAppend(cfg, store))
	mux.GET(cfg.prefix+"/api/guesses", serveGuessList(cfg, store))
}
