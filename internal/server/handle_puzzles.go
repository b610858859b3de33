package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lasersoldier/Turtle-Soup/internal/engine"
	"github.com/lasersoldier/Turtle-Soup/internal/importer"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/store"
)

// PuzzleRequest is the editable part of a puzzle.
type PuzzleRequest struct {
	Title        string         `json:"title"`
	Scenario     string         `json:"scenario"`
	Truth        string         `json:"truth"`
	IsChallenge  bool           `json:"isChallenge"`
	MaxQuestions *int           `json:"maxQuestions,omitempty"`
	Persona      string         `json:"persona,omitempty"`
	Stages       []models.Stage `json:"stages,omitempty"`
}

func (req PuzzleRequest) apply(p *models.Puzzle) {
	p.Title = strings.TrimSpace(req.Title)
	p.Scenario = strings.TrimSpace(req.Scenario)
	p.Truth = strings.TrimSpace(req.Truth)
	p.IsChallenge = req.IsChallenge
	p.MaxQuestions = req.MaxQuestions
	p.Persona = strings.TrimSpace(req.Persona)
	p.Stages = req.Stages
}

type ImportFailure struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type ImportResponse struct {
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
	Failures []ImportFailure `json:"failures"`
	Puzzles  []models.Puzzle `json:"puzzles"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func handleListPuzzles(puzzles store.PuzzleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := puzzles.List(r.Context(), language(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if list == nil {
			list = []models.Puzzle{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetPuzzle(puzzles store.PuzzleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := puzzles.Get(r.Context(), language(r), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleCreatePuzzle(puzzles store.PuzzleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PuzzleRequest
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}

		lang := language(r)
		p := models.Puzzle{
			ID:        uuid.NewString(),
			Language:  lang,
			CreatedAt: time.Now().UTC(),
		}
		req.apply(&p)
		if err := p.Validate(); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := puzzles.Upsert(r.Context(), lang, p); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleUpdatePuzzle(puzzles store.PuzzleStore, games *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PuzzleRequest
		if err := readJSON(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}

		lang, id := language(r), chi.URLParam(r, "id")
		p, err := puzzles.Get(r.Context(), lang, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		req.apply(&p)
		if err := p.Validate(); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := puzzles.Upsert(r.Context(), lang, p); err != nil {
			writeDomainError(w, err)
			return
		}
		// A running game would keep judging against the old text.
		if err := games.Discard(r.Context(), lang, id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeletePuzzle(puzzles store.PuzzleStore, games *engine.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lang, id := language(r), chi.URLParam(r, "id")
		if err := puzzles.Delete(r.Context(), lang, id); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := games.Discard(r.Context(), lang, id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleImportPuzzles accepts pipe-delimited text, or an .xlsx workbook when
// sent with the spreadsheet content type.
func handleImportPuzzles(logger *slog.Logger, puzzles store.PuzzleStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		lang := language(r)
		body := http.MaxBytesReader(w, r.Body, maxImportBody)

		var (
			res importer.Result
			err error
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), xlsxContentType) {
			res, err = importer.ImportWorkbook(body, lang)
		} else {
			res, err = importer.Import(body, lang)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "import too large")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		for _, p := range res.Puzzles {
			if err := puzzles.Upsert(r.Context(), lang, p); err != nil {
				writeDomainError(w, err)
				return
			}
		}

		resp := ImportResponse{
			Imported: res.Imported(),
			Skipped:  res.Skipped,
			Failures: []ImportFailure{},
			Puzzles:  res.Puzzles,
		}
		for _, f := range res.Failures {
			resp.Failures = append(resp.Failures, ImportFailure{Line: f.Line, Error: f.Err.Error()})
		}
		if resp.Puzzles == nil {
			resp.Puzzles = []models.Puzzle{}
		}
		logger.Info("puzzles imported", "language", lang, "imported", resp.Imported, "failed", len(resp.Failures))
		writeJSON(w, http.StatusOK, resp)
	}
}
