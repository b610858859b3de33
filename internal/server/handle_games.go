package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lasersoldier/Turtle-Soup/internal/engine"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

// GameState is a snapshot plus display counters.
type GameState struct {
	models.Snapshot
	TotalStages int `json:"totalStages"`
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Outcome engine.Outcome `json:"outcome"`
	Game    GameState      `json:"game"`
}

func gameState(s *engine.Session) GameState {
	return GameState{
		Snapshot:    s.Snapshot(),
		TotalStages: s.Puzzle().TotalStages(),
	}
}

// currentState reads the game after an operation; err is the operation's error.
func currentState(w http.ResponseWriter, r *http.Request, games *engine.Manager, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s, err := games.Open(r.Context(), language(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameState(s))
}

func handleGameState(games *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currentState(w, r, games, nil)
	}
}

func handleStart(games *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := games.Start(r.Context(), language(r), chi.URLParam(r, "id"))
		currentState(w, r, games, err)
	}
}

func handleSkip(games *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := games.Skip(r.Context(), language(r), chi.URLParam(r, "id"))
		currentState(w, r, games, err)
	}
}

func handleRestart(games *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := games.Restart(r.Context(), language(r), chi.URLParam(r, "id"))
		currentState(w, r, games, err)
	}
}

func handleAsk(games *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}

		lang, id := language(r), chi.URLParam(r, "id")
		out, err := games.Ask(r.Context(), lang, id, req.Question)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s, err := games.Open(r.Context(), lang, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AskResponse{Outcome: out, Game: gameState(s)})
	}
}
