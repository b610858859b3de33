package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/lasersoldier/Turtle-Soup/internal/metrics"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

type ctxKey int

const ctxKeyLanguage ctxKey = iota

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Turtle Soup API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, deps.DB))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/{lang}", func(r chi.Router) {
		r.Use(languageMiddleware)

		r.Route("/puzzles", func(r chi.Router) {
			r.Get("/", handleListPuzzles(deps.Puzzles))
			r.Post("/", handleCreatePuzzle(deps.Puzzles))
			r.Post("/import", handleImportPuzzles(logger, deps.Puzzles))
			r.Get("/{id}", handleGetPuzzle(deps.Puzzles))
			r.Put("/{id}", handleUpdatePuzzle(deps.Puzzles, deps.Games))
			r.Delete("/{id}", handleDeletePuzzle(deps.Puzzles, deps.Games))
		})

		r.Route("/games/{id}", func(r chi.Router) {
			r.Get("/", handleGameState(deps.Games))
			r.Post("/start", handleStart(deps.Games))
			r.Post("/ask", handleAsk(deps.Games))
			r.Post("/skip", handleSkip(deps.Games))
			r.Post("/restart", handleRestart(deps.Games))
			r.Get("/events", handleEvents(deps.Broker))
		})
	})
}

// languageMiddleware resolves the {lang} partition; unknown tags are 404s.
func languageMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang, ok := models.ParseLanguage(chi.URLParam(r, "lang"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown language")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyLanguage, lang)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func language(r *http.Request) models.Language {
	lang, _ := r.Context().Value(ctxKeyLanguage).(models.Language)
	return lang
}
