package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LangParam and PuzzleParams document the path placeholders.
type LangParam struct {
	Lang string `path:"lang" enum:"en,zh"`
}

type PuzzleParams struct {
	Lang string `path:"lang" enum:"en,zh"`
	ID   string `path:"id"`
}

type createPuzzleInput struct {
	LangParam
	PuzzleRequest
}

type updatePuzzleInput struct {
	PuzzleParams
	PuzzleRequest
}

type askInput struct {
	PuzzleParams
	AskRequest
}

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	errors                             []int
	contentType                        string
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Turtle Soup API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Lateral-thinking riddles judged by an oracle, partitioned by language.")

	ops := []operation{
		{method: http.MethodGet, path: "/healthz", summary: "Health check",
			description: "Returns the health status of backend dependencies.",
			resp:        HealthResponse{}, status: http.StatusOK, errors: []int{http.StatusServiceUnavailable}},

		{method: http.MethodGet, path: "/api/{lang}/puzzles", summary: "List puzzles",
			description: "Returns the puzzles of one language partition, newest first.",
			req:         LangParam{}, resp: []models.Puzzle{}, status: http.StatusOK},
		{method: http.MethodPost, path: "/api/{lang}/puzzles", summary: "Create puzzle",
			description: "Creates a puzzle with a generated ID.",
			req:         createPuzzleInput{}, resp: models.Puzzle{}, status: http.StatusCreated,
			errors: []int{http.StatusBadRequest}},
		{method: http.MethodPost, path: "/api/{lang}/puzzles/import", summary: "Import puzzles",
			description: "Imports pipe-delimited lines (title|scenario|truth|challenge|max|persona|stages...) or an .xlsx workbook.",
			req:         LangParam{}, resp: ImportResponse{}, status: http.StatusOK, errors: []int{http.StatusBadRequest}},
		{method: http.MethodGet, path: "/api/{lang}/puzzles/{id}", summary: "Get puzzle",
			req: PuzzleParams{}, resp: models.Puzzle{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodPut, path: "/api/{lang}/puzzles/{id}", summary: "Update puzzle",
			description: "Replaces the editable fields. Any game in progress on the puzzle is discarded.",
			req:         updatePuzzleInput{}, resp: models.Puzzle{}, status: http.StatusOK,
			errors: []int{http.StatusBadRequest, http.StatusNotFound}},
		{method: http.MethodDelete, path: "/api/{lang}/puzzles/{id}", summary: "Delete puzzle",
			req: PuzzleParams{}, status: http.StatusNoContent, errors: []int{http.StatusNotFound}},

		{method: http.MethodGet, path: "/api/{lang}/games/{id}", summary: "Get game state",
			description: "Returns the game for a puzzle, restoring it from its snapshot if needed.",
			req:         PuzzleParams{}, resp: GameState{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodPost, path: "/api/{lang}/games/{id}/start", summary: "Start game",
			description: "Moves an IDLE game to PLAYING and shows the opening scenario.",
			req:         PuzzleParams{}, resp: GameState{}, status: http.StatusOK,
			errors: []int{http.StatusNotFound, http.StatusConflict, http.StatusServiceUnavailable}},
		{method: http.MethodPost, path: "/api/{lang}/games/{id}/ask", summary: "Ask a question",
			description: "Spends one question and returns the oracle's reply. Running out of questions is reported in the outcome.",
			req:         askInput{}, resp: AskResponse{}, status: http.StatusOK,
			errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusBadGateway, http.StatusServiceUnavailable}},
		{method: http.MethodPost, path: "/api/{lang}/games/{id}/skip", summary: "Skip stage",
			description: "Unlocks the next stage of a non-challenge game.",
			req:         PuzzleParams{}, resp: GameState{}, status: http.StatusOK, errors: []int{http.StatusNotFound, http.StatusConflict}},
		{method: http.MethodPost, path: "/api/{lang}/games/{id}/restart", summary: "Restart game",
			description: "Discards all progress and returns the game to IDLE.",
			req:         PuzzleParams{}, resp: GameState{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodGet, path: "/api/{lang}/games/{id}/events", summary: "SSE event stream",
			description: "Server-Sent Events stream of game changes.",
			req:         PuzzleParams{}, status: http.StatusOK, contentType: "text/event-stream"},
	}

	for _, op := range ops {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		if op.contentType != "" {
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(op.status), openapi.WithContentType(op.contentType))
		} else {
			oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		}
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
