// Package store persists puzzles and game snapshots.
package store

import (
	"context"
	"errors"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

var ErrNotFound = errors.New("not found")

// PuzzleStore keeps puzzles in independent language partitions.
type PuzzleStore interface {
	List(ctx context.Context, lang models.Language) ([]models.Puzzle, error)
	Get(ctx context.Context, lang models.Language, id string) (models.Puzzle, error)
	Upsert(ctx context.Context, lang models.Language, p models.Puzzle) error
	Delete(ctx context.Context, lang models.Language, id string) error
}

// SnapshotStore keeps one session snapshot per key (see models.SnapshotKey).
type SnapshotStore interface {
	Load(ctx context.Context, key string) (models.Snapshot, error)
	Save(ctx context.Context, key string, snap models.Snapshot) error
	Clear(ctx context.Context, key string) error
}
