// Command simulate_game lets a Gemini "player" interrogate the configured oracle
// on one of the demo puzzles until the game ends or the turn limit is hit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/lasersoldier/Turtle-Soup/internal/config"
	"github.com/lasersoldier/Turtle-Soup/internal/engine"
	"github.com/lasersoldier/Turtle-Soup/internal/logging"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
	"github.com/lasersoldier/Turtle-Soup/internal/store"
)

const maxTurns = 25

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	langFlag := flag.String("lang", "en", "puzzle language")
	puzzleID := flag.String("puzzle", "", "puzzle id (defaults to the first demo puzzle)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY is required for the player")
	}
	lang, ok := models.ParseLanguage(*langFlag)
	if !ok {
		log.Fatalf("Unsupported language %q", *langFlag)
	}

	// The host is whatever ORACLE_PROVIDER selects.
	host, err := oracle.New(ctx, cfg.Oracle())
	if err != nil {
		log.Fatalf("Failed to create oracle: %v", err)
	}
	defer oracle.Close(host)

	puzzles := store.NewMemory()
	logger, _ := logging.New(os.Stderr, cfg.LogLevel, "")
	if err := store.SeedDemo(ctx, logger, puzzles); err != nil {
		log.Fatalf("Failed to seed puzzles: %v", err)
	}
	games := engine.NewManager(puzzles, puzzles, host, logger)

	id := *puzzleID
	if id == "" {
		list, err := puzzles.List(ctx, lang)
		if err != nil || len(list) == 0 {
			log.Fatalf("No puzzles for %s: %v", lang, err)
		}
		id = list[0].ID
	}
	puzzle, err := puzzles.Get(ctx, lang, id)
	if err != nil {
		log.Fatalf("Failed to load puzzle %s: %v", id, err)
	}

	playerClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create player client: %v", err)
	}
	defer playerClient.Close()
	playerModel := playerClient.GenerativeModel(cfg.GeminiModel)

	snap, err := games.Start(ctx, lang, id)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	fmt.Printf("Title: %s\n", puzzle.Title)
	fmt.Printf("Scenario: %s\n\n", puzzle.Scenario)

	for turn := 1; turn <= maxTurns; turn++ {
		fmt.Printf("--- Turn %d (stage %d/%d) ---\n", turn, snap.CurrentStageIndex+1, puzzle.TotalStages())

		question := getPlayerQuestion(ctx, playerModel, snap)
		fmt.Printf("Player: %s\n", question)

		out, err := games.Ask(ctx, lang, id, question)
		if err != nil {
			fmt.Printf("Error asking: %v\n", err)
			break
		}
		if out.BudgetExhausted {
			fmt.Println("Out of questions.")
		} else {
			fmt.Printf("Host: %s\n", out.Reply)
		}
		if out.Cleared {
			fmt.Println("STAGE CLEARED")
		}
		if out.QuestionsRemaining != nil {
			fmt.Printf("Questions left: %d\n", *out.QuestionsRemaining)
		}
		fmt.Println()

		snap, err = games.State(ctx, lang, id)
		if err != nil {
			log.Fatalf("Failed to read state: %v", err)
		}
		if snap.Status == models.StatusWon {
			fmt.Println("Game Ended: Player Won!")
			break
		}
		if snap.Status == models.StatusLost {
			fmt.Println("Game Ended: Player Lost!")
			break
		}
	}
	fmt.Printf("Truth: %s\n", puzzle.Truth)
}

func getPlayerQuestion(ctx context.Context, model *genai.GenerativeModel, snap models.Snapshot) string {
	var transcript strings.Builder
	for _, t := range snap.Transcript {
		fmt.Fprintf(&transcript, "%s: %s\n", t.Role, t.Text)
	}

	prompt := fmt.Sprintf(`You are playing a lateral-thinking riddle game. The host knows the hidden story
and answers yes/no questions. Ask one short yes/no question, or state your full guess
of the hidden story when you are confident.

Conversation so far:
%s

Return ONLY the question, no extra commentary.`, transcript.String())

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "Did someone die?"
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "Is it related to the weather?"
	}
	return strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]))
}
