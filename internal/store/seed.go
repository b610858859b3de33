package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// DemoPuzzles returns the built-in puzzles for lang.
func DemoPuzzles(lang models.Language) ([]models.Puzzle, error) {
	data, err := seedFS.ReadFile("seed/" + string(lang) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no demo puzzles for %q: %w", lang, err)
	}
	var pf puzzleFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing demo puzzles: %w", err)
	}
	for i := range pf.Puzzles {
		pf.Puzzles[i].Language = lang
	}
	return pf.Puzzles, nil
}

// SeedDemo stores the demo puzzles in every empty language partition.
// Idempotent: partitions that already hold puzzles are left alone.
func SeedDemo(ctx context.Context, logger *slog.Logger, ps PuzzleStore) error {
	now := time.Now().UTC()
	for _, lang := range []models.Language{models.LanguageEN, models.LanguageZH} {
		existing, err := ps.List(ctx, lang)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}

		demos, err := DemoPuzzles(lang)
		if err != nil {
			return err
		}
		for i, p := range demos {
			// Keep file order when listing newest first.
			p.CreatedAt = now.Add(-time.Duration(i) * time.Second)
			if err := ps.Upsert(ctx, lang, p); err != nil {
				return fmt.Errorf("seeding %s: %w", p.ID, err)
			}
		}
		logger.Info("demo puzzles seeded", "language", lang, "count", len(demos))
	}
	return nil
}
