package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasersoldier/Turtle-Soup/internal/database"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

type backend interface {
	PuzzleStore
	SnapshotStore
}

func backends(t *testing.T) map[string]backend {
	t.Helper()
	ctx := context.Background()

	file, err := NewFile(t.TempDir())
	require.NoError(t, err)

	db, err := database.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	docs, err := NewDocStore(ctx, db)
	require.NoError(t, err)

	return map[string]backend{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": docs,
	}
}

func samplePuzzle(id string, created time.Time) models.Puzzle {
	return models.Puzzle{
		ID:           id,
		Title:        "Title " + id,
		Scenario:     "scenario",
		Truth:        "truth",
		IsChallenge:  true,
		MaxQuestions: models.Int(5),
		Stages: []models.Stage{
			{Content: "s1", Truth: "t1", MaxQuestions: models.Int(3)},
		},
		CreatedAt: created,
	}
}

func TestPuzzleStoreContract(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Upsert(ctx, models.LanguageEN, samplePuzzle("a", base)))
			require.NoError(t, s.Upsert(ctx, models.LanguageEN, samplePuzzle("b", base.Add(time.Hour))))

			list, err := s.List(ctx, models.LanguageEN)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b", list[0].ID, "newest first")
			assert.Equal(t, models.LanguageEN, list[0].Language)

			got, err := s.Get(ctx, models.LanguageEN, "a")
			require.NoError(t, err)
			require.NotNil(t, got.MaxQuestions)
			assert.Equal(t, 5, *got.MaxQuestions)
			require.Len(t, got.Stages, 1)
			assert.Equal(t, 3, *got.Stages[0].MaxQuestions)

			updated := samplePuzzle("a", base)
			updated.Title = "Renamed"
			require.NoError(t, s.Upsert(ctx, models.LanguageEN, updated))
			got, err = s.Get(ctx, models.LanguageEN, "a")
			require.NoError(t, err)
			assert.Equal(t, "Renamed", got.Title)

			require.NoError(t, s.Delete(ctx, models.LanguageEN, "a"))
			_, err = s.Get(ctx, models.LanguageEN, "a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, models.LanguageEN, "a"), ErrNotFound)
		})
	}
}

func TestLanguagePartitionsAreIndependent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Upsert(ctx, models.LanguageZH, samplePuzzle("same", time.Now())))

			en, err := s.List(ctx, models.LanguageEN)
			require.NoError(t, err)
			assert.Empty(t, en)

			_, err = s.Get(ctx, models.LanguageEN, "same")
			assert.ErrorIs(t, err, ErrNotFound)

			zh, err := s.Get(ctx, models.LanguageZH, "same")
			require.NoError(t, err)
			assert.Equal(t, models.LanguageZH, zh.Language)
		})
	}
}

func TestSnapshotStoreContract(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := models.SnapshotKey(models.LanguageEN, "a")

			_, err := s.Load(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			snap := models.Snapshot{
				PuzzleID:          "a",
				Language:          models.LanguageEN,
				Status:            models.StatusPlaying,
				CurrentStageIndex: 1,
				Transcript: []models.Turn{
					{Role: models.RoleOracle, Text: "welcome", Timestamp: ts},
					{Role: models.RolePlayer, Text: "Is he alive?", Timestamp: ts},
				},
				QuestionsRemaining: models.Int(2),
				UpdatedAt:          ts,
			}
			require.NoError(t, s.Save(ctx, key, snap))

			got, err := s.Load(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPlaying, got.Status)
			assert.Equal(t, 1, got.CurrentStageIndex)
			require.Len(t, got.Transcript, 2)
			assert.Equal(t, "Is he alive?", got.Transcript[1].Text)
			require.NotNil(t, got.QuestionsRemaining)
			assert.Equal(t, 2, *got.QuestionsRemaining)

			other := models.SnapshotKey(models.LanguageZH, "a")
			_, err = s.Load(ctx, other)
			assert.ErrorIs(t, err, ErrNotFound, "keys are scoped by language")

			require.NoError(t, s.Clear(ctx, key))
			_, err = s.Load(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.NoError(t, s.Clear(ctx, key), "clearing twice is fine")
		})
	}
}

func TestMemorySnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := models.SnapshotKey(models.LanguageEN, "a")

	snap := models.Snapshot{QuestionsRemaining: models.Int(3)}
	require.NoError(t, m.Save(ctx, key, snap))
	*snap.QuestionsRemaining = 0

	got, err := m.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, *got.QuestionsRemaining)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Upsert(ctx, models.LanguageEN, samplePuzzle("a", time.Now())))

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, models.LanguageEN, "a")
	require.NoError(t, err)
	assert.Equal(t, "Title a", got.Title)
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMemory()

	require.NoError(t, SeedDemo(ctx, logger, m))

	en, err := m.List(ctx, models.LanguageEN)
	require.NoError(t, err)
	require.NotEmpty(t, en)
	for _, p := range en {
		assert.NoError(t, p.Validate())
	}

	zh, err := m.List(ctx, models.LanguageZH)
	require.NoError(t, err)
	require.Len(t, zh, 2)
	assert.Equal(t, "demo-zh-turtle", zh[0].ID)
	assert.Equal(t, 3, zh[1].TotalStages())

	// A second run leaves edited partitions alone.
	require.NoError(t, m.Delete(ctx, models.LanguageZH, "demo-zh-turtle"))
	require.NoError(t, SeedDemo(ctx, logger, m))
	zh, err = m.List(ctx, models.LanguageZH)
	require.NoError(t, err)
	assert.Len(t, zh, 1)
}
